package cashbook

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Direction of a cash movement.
type Direction string

const (
	// DirectionIn is money received.
	DirectionIn Direction = "IN"
	// DirectionOut is money paid out.
	DirectionOut Direction = "OUT"
)

// PaymentMode is how the money moved.
type PaymentMode string

const (
	ModeCash        PaymentMode = "CASH"
	ModeMobileMoney PaymentMode = "MOBILE_MONEY"
	ModeBank        PaymentMode = "BANK"
)

// Valid reports whether m is a known payment mode.
func (m PaymentMode) Valid() bool {
	switch m {
	case ModeCash, ModeMobileMoney, ModeBank:
		return true
	}
	return false
}

// PurchaseCategory is the category of entries posted for stock purchases.
const PurchaseCategory = "Inventory"

// Entry is one append-only cash ledger row. Exactly one of AmountIn and AmountOut is non-zero.
type Entry struct {
	ID        uuid.UUID       `json:"id"`
	Date      time.Time       `json:"date"`
	Remark    string          `json:"remark"`
	Category  string          `json:"category"`
	Mode      PaymentMode     `json:"mode"`
	AmountIn  decimal.Decimal `json:"amount_in"`
	AmountOut decimal.Decimal `json:"amount_out"`
	CreatedAt time.Time       `json:"created_at"`
	// Seq orders entries sharing a date by insertion.
	Seq int64 `json:"-"`
}

// Net is AmountIn minus AmountOut.
func (e Entry) Net() decimal.Decimal {
	return e.AmountIn.Sub(e.AmountOut)
}

// LedgerLine is an entry with the balance after it.
type LedgerLine struct {
	Entry
	Balance decimal.Decimal `json:"balance"`
}

// PostInput describes a manual cash posting. A zero Date means now; an empty Mode means CASH.
type PostInput struct {
	Direction Direction
	Amount    decimal.Decimal
	Remark    string
	Category  string
	Mode      PaymentMode
	Date      time.Time
}

// LedgerFilter bounds a ledger query. Zero values mean unbounded.
type LedgerFilter struct {
	From time.Time
	To   time.Time
}

// Summary aggregates the ledger for a window.
type Summary struct {
	Opening  decimal.Decimal `json:"opening"`
	TotalIn  decimal.Decimal `json:"total_in"`
	TotalOut decimal.Decimal `json:"total_out"`
	Closing  decimal.Decimal `json:"closing"`
	Entries  int             `json:"entries"`
}
