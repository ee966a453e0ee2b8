package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/storeledger/internal/platform/db"
	"github.com/odyssey-erp/storeledger/internal/shared"
)

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	GetItemForUpdate(ctx context.Context, id uuid.UUID) (StockItem, error)
	InsertItem(ctx context.Context, item StockItem) error
	UpdateItem(ctx context.Context, item StockItem) error
	InsertMovement(ctx context.Context, mv Movement) error
}

type txRepo struct {
	tx pgx.Tx
}

const itemColumns = `id, name, category, unit, quantity, min_threshold, unit_cost, tracking_enabled, created_at, updated_at`

const movementColumns = `id, item_id, kind, delta, qty_before, qty_after, unit_cost, reason, actor, recipient, destination, recorded_at`

// WithTx executes the callback inside repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// GetItem loads one item.
func (r *Repository) GetItem(ctx context.Context, id uuid.UUID) (StockItem, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM stock_items WHERE id = $1`, id)
	return scanItem(row, id)
}

// ListItems returns every item.
func (r *Repository) ListItems(ctx context.Context) ([]StockItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM stock_items ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []StockItem
	for rows.Next() {
		item, err := scanItem(rows, uuid.Nil)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListMovements returns movements matching filter in commit order.
func (r *Repository) ListMovements(ctx context.Context, filter HistoryFilter) ([]Movement, error) {
	var (
		where []string
		args  []any
	)
	if filter.ItemID != uuid.Nil {
		args = append(args, filter.ItemID)
		where = append(where, fmt.Sprintf("item_id = $%d", len(args)))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		where = append(where, fmt.Sprintf("recorded_at >= $%d", len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		where = append(where, fmt.Sprintf("recorded_at <= $%d", len(args)))
	}
	query := `SELECT ` + movementColumns + ` FROM stock_movements`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY recorded_at, seq"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var movements []Movement
	for rows.Next() {
		var mv Movement
		if err := rows.Scan(&mv.ID, &mv.ItemID, &mv.Kind, &mv.Delta, &mv.Before, &mv.After, &mv.UnitCost,
			&mv.Reason, &mv.Actor, &mv.Recipient, &mv.Destination, &mv.RecordedAt); err != nil {
			return nil, err
		}
		movements = append(movements, mv)
	}
	return movements, rows.Err()
}

func (t *txRepo) GetItemForUpdate(ctx context.Context, id uuid.UUID) (StockItem, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+itemColumns+` FROM stock_items WHERE id = $1 FOR UPDATE`, id)
	return scanItem(row, id)
}

func (t *txRepo) InsertItem(ctx context.Context, item StockItem) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO stock_items (`+itemColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		item.ID, item.Name, item.Category, item.Unit, item.Quantity, item.MinThreshold,
		item.UnitCost, item.TrackingEnabled, item.CreatedAt, item.UpdatedAt)
	return err
}

func (t *txRepo) UpdateItem(ctx context.Context, item StockItem) error {
	tag, err := t.tx.Exec(ctx, `UPDATE stock_items
SET name = $2, category = $3, unit = $4, quantity = $5, min_threshold = $6, unit_cost = $7,
    tracking_enabled = $8, updated_at = $9
WHERE id = $1`,
		item.ID, item.Name, item.Category, item.Unit, item.Quantity, item.MinThreshold,
		item.UnitCost, item.TrackingEnabled, item.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NewNotFoundError("stock item", item.ID)
	}
	return nil
}

func (t *txRepo) InsertMovement(ctx context.Context, mv Movement) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO stock_movements (`+movementColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		mv.ID, mv.ItemID, string(mv.Kind), mv.Delta, mv.Before, mv.After, mv.UnitCost,
		mv.Reason, mv.Actor, mv.Recipient, mv.Destination, mv.RecordedAt)
	return err
}

func scanItem(row pgx.Row, id uuid.UUID) (StockItem, error) {
	var item StockItem
	err := row.Scan(&item.ID, &item.Name, &item.Category, &item.Unit, &item.Quantity, &item.MinThreshold,
		&item.UnitCost, &item.TrackingEnabled, &item.CreatedAt, &item.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return StockItem{}, shared.NewNotFoundError("stock item", id)
	}
	return item, err
}
