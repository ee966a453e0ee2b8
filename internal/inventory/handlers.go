package inventory

import "context"

// IntegrationHandler receives inventory events for the cash ledger and read-side caches.
type IntegrationHandler interface {
	HandleStockPurchased(ctx context.Context, evt PurchaseEvent) error
	HandleMovementsRecorded(ctx context.Context, movements []Movement) error
	// HandleItemChanged fires when an edit changes anything besides the quantity.
	HandleItemChanged(ctx context.Context, item StockItem) error
}
