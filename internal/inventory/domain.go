package inventory

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MovementKind enumerates supported stock movements.
type MovementKind string

const (
	// MovementReceipt represents an inbound delivery.
	MovementReceipt MovementKind = "RECEIPT"
	// MovementIssue represents stock handed out to a department or person.
	MovementIssue MovementKind = "ISSUE"
	// MovementWaste represents spoiled or discarded stock.
	MovementWaste MovementKind = "WASTE"
	// MovementAuditAdjustment records a manual correction of the quantity on hand.
	MovementAuditAdjustment MovementKind = "AUDIT_ADJUSTMENT"
	// MovementRequisitionFulfillment records stock released for an approved requisition.
	MovementRequisitionFulfillment MovementKind = "REQUISITION_FULFILLMENT"
)

const (
	// WasteReasonPrefix tags waste movements inside the free-text reason.
	WasteReasonPrefix = "WASTE:"
	// ReasonInitialRegistration is the reason of the opening receipt of every item.
	ReasonInitialRegistration = "initial registration"
	// ReasonManualEdit is the reason of adjustments synthesized by item edits.
	ReasonManualEdit = "manual inventory edit"
	// ReasonReceiptReversed is the reason of the negative receipt that undoes a delivery
	// whose cash posting failed.
	ReasonReceiptReversed = "receipt reversed: cash posting failed"
)

// Valid reports whether k is a known movement kind.
func (k MovementKind) Valid() bool {
	switch k {
	case MovementReceipt, MovementIssue, MovementWaste, MovementAuditAdjustment, MovementRequisitionFulfillment:
		return true
	}
	return false
}

// IsOutflow reports whether the kind removes stock.
func (k MovementKind) IsOutflow() bool {
	return k == MovementIssue || k == MovementWaste || k == MovementRequisitionFulfillment
}

// StockItem is a trackable inventory unit. Quantity is a projection of the movement ledger.
type StockItem struct {
	ID              uuid.UUID           `json:"id"`
	Name            string              `json:"name"`
	Category        string              `json:"category"`
	Unit            string              `json:"unit"`
	Quantity        decimal.Decimal     `json:"quantity"`
	MinThreshold    decimal.Decimal     `json:"min_threshold"`
	UnitCost        decimal.NullDecimal `json:"unit_cost"`
	TrackingEnabled bool                `json:"tracking_enabled"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// IsLow reports whether a tracked item is at or below its reorder threshold.
func (i StockItem) IsLow() bool {
	return i.TrackingEnabled && i.Quantity.LessThanOrEqual(i.MinThreshold)
}

// Movement is an immutable change of an item's quantity.
type Movement struct {
	ID          uuid.UUID           `json:"id"`
	ItemID      uuid.UUID           `json:"item_id"`
	Kind        MovementKind        `json:"kind"`
	Delta       decimal.Decimal     `json:"delta"`
	Before      decimal.Decimal     `json:"quantity_before"`
	After       decimal.Decimal     `json:"quantity_after"`
	UnitCost    decimal.NullDecimal `json:"unit_cost"`
	Reason      string              `json:"reason"`
	Actor       string              `json:"actor"`
	Recipient   string              `json:"recipient,omitempty"`
	Destination string              `json:"destination,omitempty"`
	RecordedAt  time.Time           `json:"recorded_at"`
}

// IsWaste reports whether the movement counts as waste for reconciliation.
func (m Movement) IsWaste() bool {
	return m.Kind == MovementWaste || strings.HasPrefix(m.Reason, WasteReasonPrefix)
}

// RegisterItemInput describes a new stock item.
type RegisterItemInput struct {
	Name            string
	Category        string
	Unit            string
	InitialQuantity decimal.Decimal
	MinThreshold    decimal.Decimal
	UnitCost        decimal.NullDecimal
	// TrackingEnabled defaults to true when nil.
	TrackingEnabled *bool
	Actor           string
}

// ItemPatch lists the fields an edit changes; nil fields are left untouched.
type ItemPatch struct {
	Name            *string
	Category        *string
	Unit            *string
	Quantity        *decimal.Decimal
	MinThreshold    *decimal.Decimal
	UnitCost        *decimal.Decimal
	TrackingEnabled *bool
}

// RecordInput describes a single movement.
type RecordInput struct {
	ItemID      uuid.UUID
	Kind        MovementKind
	Delta       decimal.Decimal
	Reason      string
	Actor       string
	UnitCost    decimal.NullDecimal
	Recipient   string
	Destination string
}

// ReceiveInput records a delivery. Reference, when set, makes the receipt idempotent.
type ReceiveInput struct {
	ItemID    uuid.UUID
	Quantity  decimal.Decimal
	UnitCost  decimal.NullDecimal
	Reason    string
	Actor     string
	Reference string
}

// IssueInput hands stock out to a department or person.
type IssueInput struct {
	ItemID      uuid.UUID
	Quantity    decimal.Decimal
	Reason      string
	Actor       string
	Recipient   string
	Destination string
}

// WasteInput writes off spoiled stock.
type WasteInput struct {
	ItemID   uuid.UUID
	Quantity decimal.Decimal
	Reason   string
	Actor    string
}

// HistoryFilter narrows movement history. Zero values mean unbounded.
type HistoryFilter struct {
	ItemID uuid.UUID
	From   time.Time
	To     time.Time
}

// Matches reports whether m passes the filter.
func (f HistoryFilter) Matches(m Movement) bool {
	if f.ItemID != uuid.Nil && m.ItemID != f.ItemID {
		return false
	}
	if !f.From.IsZero() && m.RecordedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && m.RecordedAt.After(f.To) {
		return false
	}
	return true
}

// BatchOptions controls RecordBatch.
type BatchOptions struct {
	// SkipInsufficient records the other movements when one lacks stock instead of failing the batch.
	SkipInsufficient bool
	// IdempotencyKey, when set, lets the batch commit at most once. A repeat returns
	// shared.ErrIdempotencyConflict; a failed batch releases the key.
	IdempotencyKey string
}

// BatchResult reports the outcome of one RecordBatch input.
type BatchResult struct {
	Movement *Movement
	Err      error
}
