package integration

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/storeledger/internal/cashbook"
	"github.com/odyssey-erp/storeledger/internal/inventory"
	"github.com/odyssey-erp/storeledger/internal/recipe"
	"github.com/odyssey-erp/storeledger/internal/reconcile"
)

type invalidations struct {
	count int
}

func (i *invalidations) Invalidate(context.Context) error {
	i.count++
	return nil
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCostedReceiptPostsCashOut(t *testing.T) {
	ctx := context.Background()
	cash := cashbook.NewService(cashbook.NewMemoryRepository(), nil, nil)
	cache := &invalidations{}
	hooks := NewHooks(cash, cache)
	stock := inventory.NewService(inventory.NewMemoryRepository(), nil, nil, hooks, nil)

	sugar, err := stock.RegisterItem(ctx, inventory.RegisterItemInput{
		Name:            "Sugar",
		Category:        "Dry goods",
		Unit:            "kg",
		InitialQuantity: d("10"),
		MinThreshold:    d("2"),
	})
	require.NoError(t, err)

	_, err = stock.Receive(ctx, inventory.ReceiveInput{
		ItemID:   sugar.ID,
		Quantity: d("5"),
		UnitCost: decimal.NewNullDecimal(d("2000")),
	})
	require.NoError(t, err)

	lines, err := cash.LedgerWithRunningBalance(ctx, cashbook.LedgerFilter{})
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.True(t, lines[0].AmountOut.Equal(d("10000")))
	require.Equal(t, "Purchased: Sugar (5kg)", lines[0].Remark)
	require.Equal(t, cashbook.ModeCash, lines[0].Mode)

	current, err := stock.GetItem(ctx, sugar.ID)
	require.NoError(t, err)
	require.True(t, current.Quantity.Equal(d("15")))
	require.Equal(t, 2, cache.count)
}

func TestUncostedReceiptSkipsCash(t *testing.T) {
	ctx := context.Background()
	cash := cashbook.NewService(cashbook.NewMemoryRepository(), nil, nil)
	hooks := NewHooks(cash, nil)

	require.NoError(t, hooks.HandleStockPurchased(ctx, inventory.PurchaseEvent{
		ItemID: uuid.New(), ItemName: "Salt", Unit: "kg", Quantity: d("1"), UnitCost: d("0"),
	}))
	require.Error(t, hooks.HandleStockPurchased(ctx, inventory.PurchaseEvent{Quantity: d("1"), UnitCost: d("1")}))

	lines, err := cash.LedgerWithRunningBalance(ctx, cashbook.LedgerFilter{})
	require.NoError(t, err)
	require.Empty(t, lines)
}

type kindCounter map[string]int

func (k kindCounter) CountMovement(kind string) {
	k[kind]++
}

func TestMovementsAreCounted(t *testing.T) {
	ctx := context.Background()
	counter := kindCounter{}
	hooks := NewHooks(nil, nil)
	hooks.SetMovementCounter(counter)
	stock := inventory.NewService(inventory.NewMemoryRepository(), nil, nil, hooks, nil)

	item, err := stock.RegisterItem(ctx, inventory.RegisterItemInput{Name: "Oil", Category: "Dry goods", Unit: "l", InitialQuantity: d("4")})
	require.NoError(t, err)
	_, err = stock.Issue(ctx, inventory.IssueInput{ItemID: item.ID, Quantity: d("1"), Recipient: "Kitchen"})
	require.NoError(t, err)

	require.Equal(t, 1, counter["RECEIPT"])
	require.Equal(t, 1, counter["ISSUE"])
}

func TestRecipeChangeInvalidatesReports(t *testing.T) {
	cache := &invalidations{}
	hooks := NewHooks(nil, cache)
	require.NoError(t, hooks.RecipeChanged(context.Background(), uuid.New()))
	require.NoError(t, hooks.HandleMovementsRecorded(context.Background(), nil))
	require.Equal(t, 1, cache.count)
}

func TestItemEditInvalidatesCachedReport(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	hooks := NewHooks(nil, nil)
	stock := inventory.NewService(inventory.NewMemoryRepository(), nil, nil, hooks, nil)
	products := recipe.NewMemoryProductCatalog()
	recipes := recipe.NewService(recipe.NewMemoryRepository(), stock, products, hooks, recipe.UnitPermissive, nil)
	sales := reconcile.NewMemorySalesFeed()
	reports := reconcile.NewService(stock, recipes, sales, reconcile.NewCache(client, time.Minute), nil)
	hooks.SetReportCache(reports)

	buns, err := stock.RegisterItem(ctx, inventory.RegisterItemInput{Name: "Buns", Category: "Bakery", Unit: "pcs", InitialQuantity: d("100")})
	require.NoError(t, err)
	product := uuid.New()
	require.NoError(t, products.Put(ctx, recipe.Product{ID: product, Name: "Burger", SellPrice: d("5")}))
	_, err = recipes.AddOrReplaceComponent(ctx, product, buns.ID, d("2"), "pcs")
	require.NoError(t, err)
	require.NoError(t, sales.Append(ctx, reconcile.Sale{ProductID: product, Quantity: d("10"), Status: reconcile.SaleCompleted, SoldAt: time.Now().UTC()}))

	report, err := reports.Report(ctx, reconcile.Window{})
	require.NoError(t, err)
	require.Len(t, report.Rows, 1)
	require.Equal(t, "Buns", report.Rows[0].ItemName)

	name := "Brioche"
	_, err = stock.EditItem(ctx, buns.ID, inventory.ItemPatch{Name: &name}, "store")
	require.NoError(t, err)
	report, err = reports.Report(ctx, reconcile.Window{})
	require.NoError(t, err)
	require.Len(t, report.Rows, 1)
	require.Equal(t, "Brioche", report.Rows[0].ItemName)

	off := false
	_, err = stock.EditItem(ctx, buns.ID, inventory.ItemPatch{TrackingEnabled: &off}, "store")
	require.NoError(t, err)
	report, err = reports.Report(ctx, reconcile.Window{})
	require.NoError(t, err)
	require.Empty(t, report.Rows)
}

func TestItemChangeWithoutCacheIsNoop(t *testing.T) {
	require.NoError(t, NewHooks(nil, nil).HandleItemChanged(context.Background(), inventory.StockItem{}))
	var hooks *Hooks
	require.NoError(t, hooks.HandleItemChanged(context.Background(), inventory.StockItem{}))
}

func TestSubCentPurchaseSkipsCash(t *testing.T) {
	ctx := context.Background()
	cash := cashbook.NewService(cashbook.NewMemoryRepository(), nil, nil)
	hooks := NewHooks(cash, nil)
	require.NoError(t, hooks.HandleStockPurchased(ctx, inventory.PurchaseEvent{
		ItemName: "Saffron", Unit: "g", Quantity: d("0.001"), UnitCost: d("3"),
	}))
	lines, err := cash.LedgerWithRunningBalance(ctx, cashbook.LedgerFilter{})
	require.NoError(t, err)
	require.Empty(t, lines)
}
