package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/storeledger/internal/shared"
)

// SalesRepository reads and appends point-of-sale lines in PostgreSQL.
type SalesRepository struct {
	pool *pgxpool.Pool
}

// NewSalesRepository constructs SalesRepository.
func NewSalesRepository(pool *pgxpool.Pool) *SalesRepository {
	return &SalesRepository{pool: pool}
}

// Sales lists sale lines inside window.
func (r *SalesRepository) Sales(ctx context.Context, window Window) ([]Sale, error) {
	rows, err := r.pool.Query(ctx, `SELECT product_id, quantity, status, sold_at FROM sales_lines
WHERE ($1::timestamptz IS NULL OR sold_at >= $1) AND ($2::timestamptz IS NULL OR sold_at <= $2)
ORDER BY sold_at, id`, nullBound(window.From), nullBound(window.To))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sales []Sale
	for rows.Next() {
		var s Sale
		if err := rows.Scan(&s.ProductID, &s.Quantity, &s.Status, &s.SoldAt); err != nil {
			return nil, err
		}
		sales = append(sales, s)
	}
	return sales, rows.Err()
}

// Append stores a sale line.
func (r *SalesRepository) Append(ctx context.Context, sale Sale) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO sales_lines (product_id, quantity, status, sold_at) VALUES ($1, $2, $3, $4)`,
		sale.ProductID, sale.Quantity, string(sale.Status), sale.SoldAt)
	return err
}

// MemorySalesFeed keeps sale lines in process.
type MemorySalesFeed struct {
	mu    sync.Mutex
	sales []Sale
}

// NewMemorySalesFeed constructs an empty feed.
func NewMemorySalesFeed() *MemorySalesFeed {
	return &MemorySalesFeed{}
}

// Sales lists sale lines inside window.
func (f *MemorySalesFeed) Sales(_ context.Context, window Window) ([]Sale, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Sale, 0, len(f.sales))
	for _, s := range f.sales {
		if window.Contains(s.SoldAt) {
			out = append(out, s)
		}
	}
	return out, nil
}

// Append stores a sale line.
func (f *MemorySalesFeed) Append(_ context.Context, sale Sale) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sales = append(f.sales, sale)
	return nil
}

// ValidateSale checks a sale line before it is appended.
func ValidateSale(sale Sale) error {
	if sale.ProductID == uuid.Nil {
		return shared.NewValidationError("product_id", "is required")
	}
	if !sale.Quantity.IsPositive() {
		return shared.NewValidationError("quantity", "must be > 0")
	}
	switch sale.Status {
	case SaleCompleted, SalePending, SaleCancelled:
	default:
		return shared.NewValidationError("status", fmt.Sprintf("%q is not a sale status", sale.Status))
	}
	if sale.SoldAt.IsZero() {
		return shared.NewValidationError("sold_at", "is required")
	}
	return nil
}

func nullBound(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
