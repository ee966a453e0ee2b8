package cashbook

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists the cash ledger in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Append inserts entry; the database assigns its sequence.
func (r *Repository) Append(ctx context.Context, entry Entry) (Entry, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO cash_entries
(id, entry_date, remark, category, mode, amount_in, amount_out, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING seq`,
		entry.ID, entry.Date, entry.Remark, entry.Category, string(entry.Mode),
		entry.AmountIn, entry.AmountOut, entry.CreatedAt).Scan(&entry.Seq)
	if err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// ListUntil returns entries dated at or before to.
func (r *Repository) ListUntil(ctx context.Context, to time.Time) ([]Entry, error) {
	query := `SELECT seq, id, entry_date, remark, category, mode, amount_in, amount_out, created_at FROM cash_entries`
	var args []any
	if !to.IsZero() {
		query += ` WHERE entry_date <= $1`
		args = append(args, to)
	}
	query += ` ORDER BY entry_date, seq`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Seq, &e.ID, &e.Date, &e.Remark, &e.Category, &e.Mode, &e.AmountIn, &e.AmountOut, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// MemoryRepository keeps the ledger in process.
type MemoryRepository struct {
	mu      sync.Mutex
	entries []Entry
	seq     int64
}

// NewMemoryRepository constructs an empty ledger.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

// Append stores entry with the next sequence.
func (m *MemoryRepository) Append(_ context.Context, entry Entry) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	entry.Seq = m.seq
	m.entries = append(m.entries, entry)
	return entry, nil
}

// ListUntil returns a copy of the entries dated at or before to.
func (m *MemoryRepository) ListUntil(_ context.Context, to time.Time) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		if !to.IsZero() && e.Date.After(to) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
