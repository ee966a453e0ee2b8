package requisition

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/odyssey-erp/storeledger/internal/shared"
)

// MemoryRepository keeps requisitions in process. Transactions are serialized and
// their writes become visible only when the callback succeeds.
type MemoryRepository struct {
	mu    sync.Mutex
	items map[uuid.UUID]Requisition
}

// NewMemoryRepository constructs an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: make(map[uuid.UUID]Requisition)}
}

type memoryTx struct {
	base   map[uuid.UUID]Requisition
	staged map[uuid.UUID]Requisition
}

// WithTx runs fn with exclusive access and merges its writes on success.
func (r *MemoryRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx := &memoryTx{base: r.items, staged: make(map[uuid.UUID]Requisition)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for id, req := range tx.staged {
		r.items[id] = req
	}
	return nil
}

// Get returns a copy of one requisition.
func (r *MemoryRepository) Get(_ context.Context, id uuid.UUID) (Requisition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.items[id]
	if !ok {
		return Requisition{}, shared.NewNotFoundError("requisition", id)
	}
	return clone(req), nil
}

// List returns requisitions newest first.
func (r *MemoryRepository) List(_ context.Context, filter ListFilter) ([]Requisition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Requisition, 0, len(r.items))
	for _, req := range r.items {
		if filter.Status != "" && req.Status != filter.Status {
			continue
		}
		out = append(out, clone(req))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (t *memoryTx) Insert(_ context.Context, req Requisition) error {
	t.staged[req.ID] = clone(req)
	return nil
}

func (t *memoryTx) GetForUpdate(_ context.Context, id uuid.UUID) (Requisition, error) {
	if req, ok := t.staged[id]; ok {
		return clone(req), nil
	}
	if req, ok := t.base[id]; ok {
		return clone(req), nil
	}
	return Requisition{}, shared.NewNotFoundError("requisition", id)
}

func (t *memoryTx) Resolve(ctx context.Context, req Requisition) error {
	if _, err := t.GetForUpdate(ctx, req.ID); err != nil {
		return err
	}
	t.staged[req.ID] = clone(req)
	return nil
}

func clone(req Requisition) Requisition {
	req.Lines = append([]Line(nil), req.Lines...)
	return req
}
