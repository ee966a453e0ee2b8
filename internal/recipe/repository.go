package recipe

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/storeledger/internal/shared"
)

// Repository persists recipes and products in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Upsert replaces the component for its item or appends it after the last one.
func (r *Repository) Upsert(ctx context.Context, productID uuid.UUID, c Component) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO recipe_components (product_id, item_id, position, quantity, unit)
VALUES ($1, $2, (SELECT COALESCE(MAX(position), 0) + 1 FROM recipe_components WHERE product_id = $1), $3, $4)
ON CONFLICT (product_id, item_id) DO UPDATE SET quantity = EXCLUDED.quantity, unit = EXCLUDED.unit`,
		productID, c.ItemID, c.Quantity, c.Unit)
	return err
}

// Delete removes a component if present.
func (r *Repository) Delete(ctx context.Context, productID, itemID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM recipe_components WHERE product_id = $1 AND item_id = $2`, productID, itemID)
	return err
}

// Components lists a product's components in insertion order.
func (r *Repository) Components(ctx context.Context, productID uuid.UUID) ([]Component, error) {
	rows, err := r.pool.Query(ctx, `SELECT item_id, quantity, unit FROM recipe_components
WHERE product_id = $1 ORDER BY position`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var comps []Component
	for rows.Next() {
		var c Component
		if err := rows.Scan(&c.ItemID, &c.Quantity, &c.Unit); err != nil {
			return nil, err
		}
		comps = append(comps, c)
	}
	return comps, rows.Err()
}

// All returns every recipe keyed by product.
func (r *Repository) All(ctx context.Context) (map[uuid.UUID][]Component, error) {
	rows, err := r.pool.Query(ctx, `SELECT product_id, item_id, quantity, unit FROM recipe_components
ORDER BY product_id, position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uuid.UUID][]Component)
	for rows.Next() {
		var (
			productID uuid.UUID
			c         Component
		)
		if err := rows.Scan(&productID, &c.ItemID, &c.Quantity, &c.Unit); err != nil {
			return nil, err
		}
		out[productID] = append(out[productID], c)
	}
	return out, rows.Err()
}

// ProductRepository reads and maintains the products table.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository constructs ProductRepository.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// Get loads a product.
func (r *ProductRepository) Get(ctx context.Context, id uuid.UUID) (Product, error) {
	var p Product
	err := r.pool.QueryRow(ctx, `SELECT id, name, sell_price FROM products WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.SellPrice)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, shared.NewNotFoundError("product", id)
	}
	return p, err
}

// Put creates or updates a product.
func (r *ProductRepository) Put(ctx context.Context, p Product) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO products (id, name, sell_price) VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, sell_price = EXCLUDED.sell_price`, p.ID, p.Name, p.SellPrice)
	return err
}
