package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PurchaseEvent is emitted after a costed receipt commits.
type PurchaseEvent struct {
	ItemID     uuid.UUID
	ItemName   string
	Unit       string
	Quantity   decimal.Decimal
	UnitCost   decimal.Decimal
	ReceivedAt time.Time
}
