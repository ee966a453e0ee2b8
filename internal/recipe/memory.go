package recipe

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/odyssey-erp/storeledger/internal/shared"
)

// MemoryRepository keeps recipes in process.
type MemoryRepository struct {
	mu      sync.Mutex
	recipes map[uuid.UUID][]Component
}

// NewMemoryRepository constructs an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{recipes: make(map[uuid.UUID][]Component)}
}

// Upsert replaces the component for its item or appends it.
func (m *MemoryRepository) Upsert(_ context.Context, productID uuid.UUID, c Component) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	comps := m.recipes[productID]
	for i := range comps {
		if comps[i].ItemID == c.ItemID {
			comps[i] = c
			return nil
		}
	}
	m.recipes[productID] = append(comps, c)
	return nil
}

// Delete removes a component if present.
func (m *MemoryRepository) Delete(_ context.Context, productID, itemID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	comps := m.recipes[productID]
	for i := range comps {
		if comps[i].ItemID == itemID {
			m.recipes[productID] = append(comps[:i:i], comps[i+1:]...)
			return nil
		}
	}
	return nil
}

// Components returns a copy of a product's components.
func (m *MemoryRepository) Components(_ context.Context, productID uuid.UUID) ([]Component, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Component(nil), m.recipes[productID]...), nil
}

// All returns a copy of every recipe.
func (m *MemoryRepository) All(_ context.Context) (map[uuid.UUID][]Component, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[uuid.UUID][]Component, len(m.recipes))
	for id, comps := range m.recipes {
		if len(comps) == 0 {
			continue
		}
		out[id] = append([]Component(nil), comps...)
	}
	return out, nil
}

// MemoryProductCatalog keeps products in process.
type MemoryProductCatalog struct {
	mu       sync.RWMutex
	products map[uuid.UUID]Product
}

// NewMemoryProductCatalog constructs an empty catalog.
func NewMemoryProductCatalog() *MemoryProductCatalog {
	return &MemoryProductCatalog{products: make(map[uuid.UUID]Product)}
}

// Get loads a product.
func (c *MemoryProductCatalog) Get(_ context.Context, id uuid.UUID) (Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.products[id]
	if !ok {
		return Product{}, shared.NewNotFoundError("product", id)
	}
	return p, nil
}

// Put creates or updates a product.
func (c *MemoryProductCatalog) Put(_ context.Context, p Product) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[p.ID] = p
	return nil
}
