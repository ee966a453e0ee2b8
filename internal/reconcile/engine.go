package reconcile

import (
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/storeledger/internal/inventory"
	"github.com/odyssey-erp/storeledger/internal/recipe"
)

// Compute reconciles tracked items over window: received and wasted come from the movement
// ledger, sold is the recipe consumption of completed sales. All-zero rows are dropped and
// the rest are ordered by item name.
func Compute(items []inventory.StockItem, movements []inventory.Movement, recipes map[uuid.UUID][]recipe.Component, sales []Sale, window Window) []Row {
	acc := make(map[uuid.UUID]*Row, len(items))
	for _, item := range items {
		if !item.TrackingEnabled {
			continue
		}
		acc[item.ID] = &Row{
			ItemID:   item.ID,
			ItemName: item.Name,
			Unit:     item.Unit,
			Received: decimal.Zero,
			Sold:     decimal.Zero,
			Wasted:   decimal.Zero,
		}
	}
	for _, mv := range movements {
		row, ok := acc[mv.ItemID]
		if !ok || !window.Contains(mv.RecordedAt) {
			continue
		}
		switch {
		case mv.IsWaste():
			row.Wasted = row.Wasted.Add(mv.Delta.Abs())
		case mv.Kind == inventory.MovementReceipt:
			// Signed so a reversed receipt nets out.
			row.Received = row.Received.Add(mv.Delta)
		}
	}
	for _, sale := range sales {
		if !sale.Counts() || !window.Contains(sale.SoldAt) {
			continue
		}
		for _, c := range recipes[sale.ProductID] {
			row, ok := acc[c.ItemID]
			if !ok {
				continue
			}
			row.Sold = row.Sold.Add(c.Quantity.Mul(sale.Quantity))
		}
	}
	rows := make([]Row, 0, len(acc))
	for _, row := range acc {
		if row.Received.IsZero() && row.Sold.IsZero() && row.Wasted.IsZero() {
			continue
		}
		row.Variance = row.Received.Sub(row.Sold).Sub(row.Wasted)
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := strings.ToLower(rows[i].ItemName), strings.ToLower(rows[j].ItemName)
		if a != b {
			return a < b
		}
		return rows[i].ItemID.String() < rows[j].ItemID.String()
	})
	return rows
}
