package recipe

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UnitPolicy controls how component units relate to the stock item's unit.
type UnitPolicy string

const (
	// UnitPermissive takes component quantities as given, in whatever unit they were entered.
	UnitPermissive UnitPolicy = "permissive"
	// UnitStrict requires a unit of the item's dimension and converts quantities to the item's unit.
	UnitStrict UnitPolicy = "strict"
)

// ParseUnitPolicy maps a configuration value to a UnitPolicy. Empty means permissive.
func ParseUnitPolicy(raw string) (UnitPolicy, error) {
	switch UnitPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", UnitPermissive:
		return UnitPermissive, nil
	case UnitStrict:
		return UnitStrict, nil
	}
	return "", fmt.Errorf("recipe: unknown unit policy %q", raw)
}

// Component is the quantity of one stock item consumed per unit of product sold.
type Component struct {
	ItemID   uuid.UUID       `json:"item_id"`
	Quantity decimal.Decimal `json:"quantity"`
	Unit     string          `json:"unit"`
}

// Recipe lists a product's components in insertion order.
type Recipe struct {
	ProductID  uuid.UUID   `json:"product_id"`
	Components []Component `json:"components"`
}

// Product is a sellable menu entry.
type Product struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	SellPrice decimal.Decimal `json:"sell_price"`
}

// CostLine is the cost contribution of one component.
type CostLine struct {
	ItemID   uuid.UUID       `json:"item_id"`
	ItemName string          `json:"item_name"`
	Quantity decimal.Decimal `json:"quantity"`
	Unit     string          `json:"unit"`
	UnitCost decimal.Decimal `json:"unit_cost"`
	Cost     decimal.Decimal `json:"cost"`
}

// Costing is the theoretical cost and margin of a product.
type Costing struct {
	ProductID       uuid.UUID       `json:"product_id"`
	SellPrice       decimal.Decimal `json:"sell_price"`
	TheoreticalCost decimal.Decimal `json:"theoretical_cost"`
	MarginPercent   decimal.Decimal `json:"margin_percent"`
	Lines           []CostLine      `json:"lines"`
}
