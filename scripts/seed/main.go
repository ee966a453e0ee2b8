package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/storeledger/internal/app"
	"github.com/odyssey-erp/storeledger/internal/cashbook"
	"github.com/odyssey-erp/storeledger/internal/inventory"
	"github.com/odyssey-erp/storeledger/internal/recipe"
	"github.com/odyssey-erp/storeledger/internal/reconcile"
	"github.com/odyssey-erp/storeledger/internal/requisition"
	"github.com/odyssey-erp/storeledger/internal/shared"
)

type seedItem struct {
	name, category, unit string
	qty, min, cost       string
}

var items = []seedItem{
	{"Burger Buns", "Bakery", "pcs", "120", "40", "150"},
	{"Beef Patty", "Meat", "pcs", "80", "30", "900"},
	{"Cheddar", "Dairy", "kg", "4", "1", "12000"},
	{"Cooking Oil", "Dry goods", "l", "10", "3", "4500"},
	{"Sugar", "Dry goods", "kg", "10", "2", "2000"},
}

func main() {
	_ = godotenv.Load()
	if os.Getenv("STORAGE_DRIVER") == "" {
		_ = os.Setenv("STORAGE_DRIVER", app.StoragePostgres)
	}
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.StorageDriver != app.StoragePostgres {
		log.Fatalf("seed requires STORAGE_DRIVER=%s", app.StoragePostgres)
	}

	ctx := shared.ContextWithActor(context.Background(), "seed")
	svc, err := app.NewServices(ctx, cfg, app.NewLogger(cfg), nil)
	if err != nil {
		log.Fatalf("init services: %v", err)
	}
	defer svc.Close()

	fmt.Println("→ Seeding stock items...")
	byName := make(map[string]inventory.StockItem, len(items))
	for _, it := range items {
		item, err := svc.Inventory.RegisterItem(ctx, inventory.RegisterItemInput{
			Name:            it.name,
			Category:        it.category,
			Unit:            it.unit,
			InitialQuantity: decimal.RequireFromString(it.qty),
			MinThreshold:    decimal.RequireFromString(it.min),
			UnitCost:        decimal.NewNullDecimal(decimal.RequireFromString(it.cost)),
			Actor:           "seed",
		})
		if err != nil {
			log.Fatalf("register %s: %v", it.name, err)
		}
		byName[it.name] = item
	}

	fmt.Println("→ Seeding cash float...")
	if _, err := svc.Cash.Post(ctx, cashbook.PostInput{
		Direction: cashbook.DirectionIn,
		Amount:    decimal.NewFromInt(500000),
		Remark:    "Opening float",
		Category:  "Float",
	}); err != nil {
		log.Fatalf("post float: %v", err)
	}

	fmt.Println("→ Seeding purchases...")
	if _, err := svc.Inventory.Receive(ctx, inventory.ReceiveInput{
		ItemID:    byName["Sugar"].ID,
		Quantity:  decimal.NewFromInt(5),
		UnitCost:  decimal.NewNullDecimal(decimal.NewFromInt(2000)),
		Reference: "SEED-PO-1",
		Actor:     "seed",
	}); err != nil {
		log.Fatalf("receive sugar: %v", err)
	}

	fmt.Println("→ Seeding products and recipes...")
	burger := recipe.Product{ID: uuid.New(), Name: "Cheeseburger", SellPrice: decimal.NewFromInt(3500)}
	if err := svc.Products.Put(ctx, burger); err != nil {
		log.Fatalf("put product: %v", err)
	}
	components := []struct {
		item, unit, qty string
	}{
		{"Burger Buns", "pcs", "1"},
		{"Beef Patty", "pcs", "1"},
		{"Cheddar", "g", "30"},
	}
	for _, c := range components {
		if _, err := svc.Recipes.AddOrReplaceComponent(ctx, burger.ID, byName[c.item].ID, decimal.RequireFromString(c.qty), c.unit); err != nil {
			log.Fatalf("add component %s: %v", c.item, err)
		}
	}

	fmt.Println("→ Seeding sales...")
	now := time.Now().UTC()
	for i, status := range []reconcile.SaleStatus{reconcile.SaleCompleted, reconcile.SaleCompleted, reconcile.SalePending} {
		if err := svc.Sales.Append(ctx, reconcile.Sale{
			ProductID: burger.ID,
			Quantity:  decimal.NewFromInt(int64(10 + i)),
			Status:    status,
			SoldAt:    now.Add(-time.Duration(i) * time.Hour),
		}); err != nil {
			log.Fatalf("append sale: %v", err)
		}
	}

	fmt.Println("→ Seeding requisitions...")
	oilID := byName["Cooking Oil"].ID
	req, err := svc.Requisition.Submit(ctx, requisition.SubmitInput{
		RequesterName: "Kitchen lead",
		RequesterRole: "kitchen",
		Lines: []requisition.LineInput{
			{ItemID: &oilID, ItemName: "Cooking Oil", Quantity: decimal.NewFromInt(2), Unit: "l", Department: "Kitchen"},
			{ItemName: "Paper towels", Quantity: decimal.NewFromInt(4), Unit: "pcs", Department: "Kitchen"},
		},
	})
	if err != nil {
		log.Fatalf("submit requisition: %v", err)
	}
	if _, err := svc.Requisition.Approve(ctx, req.ID, "Store manager"); err != nil {
		log.Fatalf("approve requisition: %v", err)
	}

	fmt.Println("✓ Seed complete")
}
