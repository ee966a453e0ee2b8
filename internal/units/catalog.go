// Package units holds the static catalog of measurement units accepted for stock entries.
package units

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/storeledger/internal/shared"
)

// Dimension groups units that measure the same physical quantity.
type Dimension string

const (
	DimensionMass      Dimension = "MASS"
	DimensionVolume    Dimension = "VOLUME"
	DimensionCount     Dimension = "COUNT"
	DimensionPackaging Dimension = "PACKAGING"
)

// Unit represents a unit of measure.
type Unit struct {
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Dimension Dimension `json:"dimension"`
	// Factor converts one of this unit into the dimension's base unit.
	Factor decimal.Decimal `json:"-"`
}

var catalog = []Unit{
	{Code: "g", Name: "Gram", Dimension: DimensionMass, Factor: decimal.NewFromInt(1)},
	{Code: "kg", Name: "Kilogram", Dimension: DimensionMass, Factor: decimal.NewFromInt(1000)},
	{Code: "ml", Name: "Millilitre", Dimension: DimensionVolume, Factor: decimal.NewFromInt(1)},
	{Code: "l", Name: "Litre", Dimension: DimensionVolume, Factor: decimal.NewFromInt(1000)},
	{Code: "pcs", Name: "Pieces", Dimension: DimensionCount, Factor: decimal.NewFromInt(1)},
	{Code: "dozen", Name: "Dozen", Dimension: DimensionCount, Factor: decimal.NewFromInt(12)},
	{Code: "box", Name: "Box", Dimension: DimensionPackaging, Factor: decimal.NewFromInt(1)},
	{Code: "bag", Name: "Bag", Dimension: DimensionPackaging, Factor: decimal.NewFromInt(1)},
	{Code: "crate", Name: "Crate", Dimension: DimensionPackaging, Factor: decimal.NewFromInt(1)},
	{Code: "carton", Name: "Carton", Dimension: DimensionPackaging, Factor: decimal.NewFromInt(1)},
	{Code: "bottle", Name: "Bottle", Dimension: DimensionPackaging, Factor: decimal.NewFromInt(1)},
	{Code: "tray", Name: "Tray", Dimension: DimensionPackaging, Factor: decimal.NewFromInt(1)},
}

var index = func() map[string]Unit {
	m := make(map[string]Unit, len(catalog))
	for _, u := range catalog {
		m[u.Code] = u
	}
	return m
}()

// Normalize canonicalises a unit code as entered by an operator.
func Normalize(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

// All returns a copy of the catalog.
func All() []Unit {
	out := make([]Unit, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup finds a unit by code, case-insensitively.
func Lookup(code string) (Unit, bool) {
	u, ok := index[Normalize(code)]
	return u, ok
}

// Validate reports a ValidationError when code is not in the catalog.
func Validate(code string) error {
	if strings.TrimSpace(code) == "" {
		return shared.NewValidationError("unit", "is required")
	}
	if _, ok := Lookup(code); !ok {
		return shared.NewValidationError("unit", fmt.Sprintf("%q is not a known unit", code))
	}
	return nil
}

// Compatible reports whether quantities in from can be expressed in to.
// Packaging units only convert to themselves.
func Compatible(from, to string) bool {
	a, okA := Lookup(from)
	b, okB := Lookup(to)
	if !okA || !okB {
		return false
	}
	if a.Code == b.Code {
		return true
	}
	return a.Dimension == b.Dimension && a.Dimension != DimensionPackaging
}

// Convert expresses qty, measured in from, in the unit to.
func Convert(qty decimal.Decimal, from, to string) (decimal.Decimal, error) {
	if !Compatible(from, to) {
		return decimal.Zero, shared.NewValidationError("unit", fmt.Sprintf("cannot convert %s to %s", from, to))
	}
	a, _ := Lookup(from)
	b, _ := Lookup(to)
	if a.Code == b.Code {
		return qty, nil
	}
	return qty.Mul(a.Factor).Div(b.Factor), nil
}
