package reconcile

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/storeledger/internal/inventory"
	"github.com/odyssey-erp/storeledger/internal/recipe"
)

func n(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var base = time.Date(2024, time.May, 1, 12, 0, 0, 0, time.UTC)

func item(name string) inventory.StockItem {
	return inventory.StockItem{ID: uuid.New(), Name: name, Unit: "pcs", TrackingEnabled: true}
}

func movement(itemID uuid.UUID, kind inventory.MovementKind, delta string, at time.Time, reason string) inventory.Movement {
	return inventory.Movement{ID: uuid.New(), ItemID: itemID, Kind: kind, Delta: n(delta), Reason: reason, RecordedAt: at}
}

func TestComputeVarianceFromRecipes(t *testing.T) {
	x := item("Buns")
	product := uuid.New()
	movements := []inventory.Movement{
		movement(x.ID, inventory.MovementReceipt, "60", base, inventory.ReasonInitialRegistration),
		movement(x.ID, inventory.MovementReceipt, "40", base.Add(time.Hour), "delivery"),
	}
	recipes := map[uuid.UUID][]recipe.Component{product: {{ItemID: x.ID, Quantity: n("2"), Unit: "pcs"}}}
	sales := []Sale{
		{ProductID: product, Quantity: n("30"), Status: SaleCompleted, SoldAt: base.Add(2 * time.Hour)},
		{ProductID: product, Quantity: n("10"), Status: SaleCompleted, SoldAt: base.Add(3 * time.Hour)},
	}

	rows := Compute([]inventory.StockItem{x}, movements, recipes, sales, Window{})
	require.Len(t, rows, 1)
	row := rows[0]
	assert.True(t, row.Received.Equal(n("100")))
	assert.True(t, row.Sold.Equal(n("80")))
	assert.True(t, row.Wasted.IsZero())
	assert.True(t, row.Variance.Equal(n("20")), row.Variance.String())
}

func TestComputeCountsWasteAndIgnoresOtherKinds(t *testing.T) {
	x := item("Milk")
	movements := []inventory.Movement{
		movement(x.ID, inventory.MovementReceipt, "10", base, "delivery"),
		movement(x.ID, inventory.MovementWaste, "-2", base, "WASTE: sour"),
		movement(x.ID, inventory.MovementAuditAdjustment, "-1", base, "WASTE: found spoiled at count"),
		movement(x.ID, inventory.MovementIssue, "-3", base, "to bar"),
		movement(x.ID, inventory.MovementRequisitionFulfillment, "-1", base, "Requisition Fulfill: Bar"),
		movement(x.ID, inventory.MovementAuditAdjustment, "2", base, "manual inventory edit"),
	}

	rows := Compute([]inventory.StockItem{x}, movements, nil, nil, Window{})
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Received.Equal(n("10")))
	assert.True(t, rows[0].Wasted.Equal(n("3")))
	assert.True(t, rows[0].Sold.IsZero())
	assert.True(t, rows[0].Variance.Equal(n("7")))
}

func TestComputeFiltersWindowStatusAndTracking(t *testing.T) {
	tracked := item("Eggs")
	untracked := item("Napkins")
	untracked.TrackingEnabled = false
	idle := item("Yeast")
	product := uuid.New()

	movements := []inventory.Movement{
		movement(tracked.ID, inventory.MovementReceipt, "12", base.Add(-48*time.Hour), "before window"),
		movement(tracked.ID, inventory.MovementReceipt, "6", base, "delivery"),
		movement(untracked.ID, inventory.MovementReceipt, "100", base, "delivery"),
	}
	recipes := map[uuid.UUID][]recipe.Component{product: {
		{ItemID: tracked.ID, Quantity: n("1.5"), Unit: "pcs"},
		{ItemID: untracked.ID, Quantity: n("1"), Unit: "pcs"},
	}}
	sales := []Sale{
		{ProductID: product, Quantity: n("2"), Status: SaleCompleted, SoldAt: base},
		{ProductID: product, Quantity: n("5"), Status: SaleCancelled, SoldAt: base},
		{ProductID: product, Quantity: n("5"), Status: SalePending, SoldAt: base},
		{ProductID: product, Quantity: n("5"), Status: SaleCompleted, SoldAt: base.Add(72 * time.Hour)},
		{ProductID: uuid.New(), Quantity: n("5"), Status: SaleCompleted, SoldAt: base},
	}
	window := Window{From: base.Add(-time.Hour), To: base.Add(time.Hour)}

	rows := Compute([]inventory.StockItem{idle, untracked, tracked}, movements, recipes, sales, window)
	require.Len(t, rows, 1)
	assert.Equal(t, tracked.ID, rows[0].ItemID)
	assert.True(t, rows[0].Received.Equal(n("6")))
	assert.True(t, rows[0].Sold.Equal(n("3")))
	assert.True(t, rows[0].Variance.Equal(n("3")))
}

func TestComputeOrdersByName(t *testing.T) {
	items := []inventory.StockItem{item("rice"), item("Apples"), item("beans")}
	var movements []inventory.Movement
	for _, it := range items {
		movements = append(movements, movement(it.ID, inventory.MovementReceipt, "1", base, "delivery"))
	}
	rows := Compute(items, movements, nil, nil, Window{})
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Apples", "beans", "rice"}, []string{rows[0].ItemName, rows[1].ItemName, rows[2].ItemName})
}
