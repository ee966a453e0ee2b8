package requisition

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status enumerates requisition lifecycle states.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// Policy decides what approval does with lines that cannot be fulfilled.
type Policy string

const (
	// PolicyLenient fulfils what it can and records a skip reason on the rest.
	PolicyLenient Policy = "lenient"
	// PolicyStrict fails the approval when any stock line cannot be fulfilled.
	PolicyStrict Policy = "strict"
)

// ParsePolicy maps a configuration value to a Policy. Empty means lenient.
func ParsePolicy(raw string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", PolicyLenient:
		return PolicyLenient, nil
	case PolicyStrict:
		return PolicyStrict, nil
	}
	return "", fmt.Errorf("requisition: unknown policy %q", raw)
}

// Skip reasons recorded on unfulfilled lines.
const (
	SkipNotStockItem       = "not linked to a stock item"
	SkipItemNotFound       = "stock item not found"
	SkipInsufficientStock  = "insufficient stock"
	fulfilmentReasonPrefix = "Requisition Fulfill: "
)

// Line is one requested item. ItemID is nil for free-text requests.
type Line struct {
	ItemID     *uuid.UUID      `json:"item_id,omitempty"`
	ItemName   string          `json:"item_name"`
	Quantity   decimal.Decimal `json:"quantity"`
	Unit       string          `json:"unit"`
	Department string          `json:"department"`
	Fulfilled  bool            `json:"fulfilled"`
	SkipReason string          `json:"skip_reason,omitempty"`
	MovementID *uuid.UUID      `json:"movement_id,omitempty"`
}

// Requisition is a department's request for stock.
type Requisition struct {
	ID            uuid.UUID  `json:"id"`
	RequesterName string     `json:"requester_name"`
	RequesterRole string     `json:"requester_role"`
	Status        Status     `json:"status"`
	Lines         []Line     `json:"lines"`
	CreatedAt     time.Time  `json:"created_at"`
	Approver      string     `json:"approver,omitempty"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
}

// LineInput describes a requested line.
type LineInput struct {
	ItemID     *uuid.UUID
	ItemName   string
	Quantity   decimal.Decimal
	Unit       string
	Department string
}

// SubmitInput describes a new requisition.
type SubmitInput struct {
	RequesterName string
	RequesterRole string
	Lines         []LineInput
}

// ListFilter narrows List. An empty Status lists all.
type ListFilter struct {
	Status Status
}
