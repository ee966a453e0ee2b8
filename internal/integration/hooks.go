package integration

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/storeledger/internal/cashbook"
	"github.com/odyssey-erp/storeledger/internal/inventory"
)

// CashLedger exposes the purchase posting required by integrations.
type CashLedger interface {
	PostAutomaticPurchase(ctx context.Context, itemName string, qty decimal.Decimal, unit string, unitCost decimal.Decimal) (cashbook.Entry, error)
}

// ReportCache is invalidated whenever reconciliation inputs change.
type ReportCache interface {
	Invalidate(ctx context.Context) error
}

// MovementCounter observes committed stock movements.
type MovementCounter interface {
	CountMovement(kind string)
}

// Hooks wires inventory and recipe events into the cash ledger and read-side caches.
type Hooks struct {
	cash    CashLedger
	cache   ReportCache
	counter MovementCounter
}

// NewHooks constructs integration hooks. Either dependency may be nil.
func NewHooks(cash CashLedger, cache ReportCache) *Hooks {
	return &Hooks{cash: cash, cache: cache}
}

// SetReportCache attaches the cache after construction; the reconciliation service
// depends on inventory, which depends on these hooks.
func (h *Hooks) SetReportCache(cache ReportCache) {
	h.cache = cache
}

// SetMovementCounter attaches a metrics sink for committed movements.
func (h *Hooks) SetMovementCounter(counter MovementCounter) {
	h.counter = counter
}

// HandleStockPurchased posts the cash paid for a costed receipt.
func (h *Hooks) HandleStockPurchased(ctx context.Context, evt inventory.PurchaseEvent) error {
	if h == nil || h.cash == nil {
		return nil
	}
	if evt.ItemName == "" {
		return errors.New("integration: purchase item name required")
	}
	if !evt.Quantity.IsPositive() || !evt.UnitCost.IsPositive() {
		return nil
	}
	// The cash ledger keeps cents; a sub-cent purchase has nothing to post.
	if evt.Quantity.Mul(evt.UnitCost).Round(2).IsZero() {
		return nil
	}
	_, err := h.cash.PostAutomaticPurchase(ctx, evt.ItemName, evt.Quantity, evt.Unit, evt.UnitCost)
	return err
}

// HandleMovementsRecorded counts the movements and invalidates cached
// reconciliation reports.
func (h *Hooks) HandleMovementsRecorded(ctx context.Context, movements []inventory.Movement) error {
	if h == nil || len(movements) == 0 {
		return nil
	}
	if h.counter != nil {
		for _, mv := range movements {
			h.counter.CountMovement(string(mv.Kind))
		}
	}
	if h.cache == nil {
		return nil
	}
	return h.cache.Invalidate(ctx)
}

// RecipeChanged invalidates cached reconciliation reports.
func (h *Hooks) RecipeChanged(ctx context.Context, _ uuid.UUID) error {
	if h == nil || h.cache == nil {
		return nil
	}
	return h.cache.Invalidate(ctx)
}

// HandleItemChanged invalidates cached reconciliation reports, which carry
// item names and skip untracked items.
func (h *Hooks) HandleItemChanged(ctx context.Context, _ inventory.StockItem) error {
	if h == nil || h.cache == nil {
		return nil
	}
	return h.cache.Invalidate(ctx)
}
