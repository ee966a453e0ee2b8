package reconcile

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SaleStatus is the order state reported by the sales feed.
type SaleStatus string

const (
	SaleCompleted SaleStatus = "COMPLETED"
	SalePending   SaleStatus = "PENDING"
	SaleCancelled SaleStatus = "CANCELLED"
)

// Sale is one sold product line from the point of sale.
type Sale struct {
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	Status    SaleStatus      `json:"status"`
	SoldAt    time.Time       `json:"sold_at"`
}

// Counts reports whether the sale consumed stock.
func (s Sale) Counts() bool {
	return s.Status == SaleCompleted
}

// Window is an inclusive time range. Zero bounds are open.
type Window struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	if !w.From.IsZero() && t.Before(w.From) {
		return false
	}
	if !w.To.IsZero() && t.After(w.To) {
		return false
	}
	return true
}

// Row compares what came into the store with what the recipes say left it.
type Row struct {
	ItemID   uuid.UUID       `json:"item_id"`
	ItemName string          `json:"item_name"`
	Unit     string          `json:"unit"`
	Received decimal.Decimal `json:"received"`
	Sold     decimal.Decimal `json:"sold"`
	Wasted   decimal.Decimal `json:"wasted"`
	Variance decimal.Decimal `json:"variance"`
}

// Report is a reconciliation over a window.
type Report struct {
	Window      Window    `json:"window"`
	Rows        []Row     `json:"rows"`
	GeneratedAt time.Time `json:"generated_at"`
}
