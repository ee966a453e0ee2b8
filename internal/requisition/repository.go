package requisition

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/storeledger/internal/platform/db"
	"github.com/odyssey-erp/storeledger/internal/shared"
)

// Repository persists requisitions in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx executes the callback inside repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// Get loads a requisition with its lines.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Requisition, error) {
	return loadRequisition(ctx, r.pool, id, false)
}

// List returns requisitions newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Requisition, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM requisitions
WHERE ($1 = '' OR status = $1)
ORDER BY created_at DESC`, string(filter.Status))
	if err != nil {
		return nil, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, err
	}
	out := make([]Requisition, 0, len(ids))
	for _, id := range ids {
		req, err := loadRequisition(ctx, r.pool, id, false)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, nil
}

func (t *txRepo) Insert(ctx context.Context, req Requisition) error {
	if _, err := t.tx.Exec(ctx, `INSERT INTO requisitions (id, requester_name, requester_role, status, approver, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`,
		req.ID, req.RequesterName, req.RequesterRole, string(req.Status), req.Approver, req.CreatedAt); err != nil {
		return err
	}
	batch := &pgx.Batch{}
	for i, line := range req.Lines {
		batch.Queue(`INSERT INTO requisition_lines
(requisition_id, line_no, item_id, item_name, quantity, unit, department)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			req.ID, i+1, line.ItemID, line.ItemName, line.Quantity, line.Unit, line.Department)
	}
	return t.tx.SendBatch(ctx, batch).Close()
}

func (t *txRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (Requisition, error) {
	return loadRequisition(ctx, t.tx, id, true)
}

func (t *txRepo) Resolve(ctx context.Context, req Requisition) error {
	tag, err := t.tx.Exec(ctx, `UPDATE requisitions SET status = $2, approver = $3, resolved_at = $4 WHERE id = $1`,
		req.ID, string(req.Status), req.Approver, req.ResolvedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NewNotFoundError("requisition", req.ID)
	}
	batch := &pgx.Batch{}
	for i, line := range req.Lines {
		batch.Queue(`UPDATE requisition_lines SET fulfilled = $3, skip_reason = $4, movement_id = $5
WHERE requisition_id = $1 AND line_no = $2`,
			req.ID, i+1, line.Fulfilled, line.SkipReason, line.MovementID)
	}
	return t.tx.SendBatch(ctx, batch).Close()
}

func loadRequisition(ctx context.Context, q querier, id uuid.UUID, forUpdate bool) (Requisition, error) {
	query := `SELECT id, requester_name, requester_role, status, approver, created_at, resolved_at
FROM requisitions WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var req Requisition
	err := q.QueryRow(ctx, query, id).Scan(&req.ID, &req.RequesterName, &req.RequesterRole, &req.Status,
		&req.Approver, &req.CreatedAt, &req.ResolvedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Requisition{}, shared.NewNotFoundError("requisition", id)
	}
	if err != nil {
		return Requisition{}, err
	}
	rows, err := q.Query(ctx, `SELECT item_id, item_name, quantity, unit, department, fulfilled, skip_reason, movement_id
FROM requisition_lines WHERE requisition_id = $1 ORDER BY line_no`, id)
	if err != nil {
		return Requisition{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line Line
		if err := rows.Scan(&line.ItemID, &line.ItemName, &line.Quantity, &line.Unit, &line.Department,
			&line.Fulfilled, &line.SkipReason, &line.MovementID); err != nil {
			return Requisition{}, err
		}
		req.Lines = append(req.Lines, line)
	}
	return req, rows.Err()
}
