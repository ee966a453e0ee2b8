package inventory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/odyssey-erp/storeledger/internal/shared"
)

// MemoryRepository keeps items and movements in process. Transactions are serialized and
// their writes become visible only when the callback succeeds.
type MemoryRepository struct {
	mu        sync.Mutex
	items     map[uuid.UUID]StockItem
	movements []Movement
}

// NewMemoryRepository constructs an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: make(map[uuid.UUID]StockItem)}
}

type memoryTx struct {
	base      map[uuid.UUID]StockItem
	staged    map[uuid.UUID]StockItem
	movements []Movement
}

// WithTx runs fn with exclusive access and merges its writes on success.
func (r *MemoryRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx := &memoryTx{base: r.items, staged: make(map[uuid.UUID]StockItem)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for id, item := range tx.staged {
		r.items[id] = item
	}
	r.movements = append(r.movements, tx.movements...)
	return nil
}

// GetItem loads one item.
func (r *MemoryRepository) GetItem(_ context.Context, id uuid.UUID) (StockItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		return StockItem{}, shared.NewNotFoundError("stock item", id)
	}
	return item, nil
}

// ListItems returns every item.
func (r *MemoryRepository) ListItems(_ context.Context) ([]StockItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]StockItem, 0, len(r.items))
	for _, item := range r.items {
		items = append(items, item)
	}
	return items, nil
}

// ListMovements returns movements matching filter in commit order.
func (r *MemoryRepository) ListMovements(_ context.Context, filter HistoryFilter) ([]Movement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Movement, 0)
	for _, mv := range r.movements {
		if filter.Matches(mv) {
			out = append(out, mv)
		}
	}
	return out, nil
}

func (t *memoryTx) lookup(id uuid.UUID) (StockItem, bool) {
	if item, ok := t.staged[id]; ok {
		return item, true
	}
	item, ok := t.base[id]
	return item, ok
}

func (t *memoryTx) GetItemForUpdate(_ context.Context, id uuid.UUID) (StockItem, error) {
	item, ok := t.lookup(id)
	if !ok {
		return StockItem{}, shared.NewNotFoundError("stock item", id)
	}
	return item, nil
}

func (t *memoryTx) InsertItem(_ context.Context, item StockItem) error {
	t.staged[item.ID] = item
	return nil
}

func (t *memoryTx) UpdateItem(_ context.Context, item StockItem) error {
	if _, ok := t.lookup(item.ID); !ok {
		return shared.NewNotFoundError("stock item", item.ID)
	}
	t.staged[item.ID] = item
	return nil
}

func (t *memoryTx) InsertMovement(_ context.Context, mv Movement) error {
	t.movements = append(t.movements, mv)
	return nil
}
