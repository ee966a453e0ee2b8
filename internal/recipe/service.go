package recipe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/storeledger/internal/inventory"
	"github.com/odyssey-erp/storeledger/internal/shared"
	"github.com/odyssey-erp/storeledger/internal/units"
)

// RepositoryPort abstracts recipe storage.
type RepositoryPort interface {
	// Upsert replaces the component for its item or appends it.
	Upsert(ctx context.Context, productID uuid.UUID, c Component) error
	Delete(ctx context.Context, productID, itemID uuid.UUID) error
	Components(ctx context.Context, productID uuid.UUID) ([]Component, error)
	All(ctx context.Context) (map[uuid.UUID][]Component, error)
}

// ItemPort reads stock items.
type ItemPort interface {
	GetItem(ctx context.Context, id uuid.UUID) (inventory.StockItem, error)
	ListItems(ctx context.Context) ([]inventory.StockItem, error)
}

// ProductCatalog resolves sell prices.
type ProductCatalog interface {
	Get(ctx context.Context, id uuid.UUID) (Product, error)
}

// ChangeNotifier is told when a product's composition changes.
type ChangeNotifier interface {
	RecipeChanged(ctx context.Context, productID uuid.UUID) error
}

// Service manages recipes and their costing.
type Service struct {
	repo     RepositoryPort
	items    ItemPort
	products ProductCatalog
	notifier ChangeNotifier
	policy   UnitPolicy
	logger   *slog.Logger
}

// NewService builds Service. notifier may be nil.
func NewService(repo RepositoryPort, items ItemPort, products ProductCatalog, notifier ChangeNotifier, policy UnitPolicy, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if policy == "" {
		policy = UnitPermissive
	}
	return &Service{repo: repo, items: items, products: products, notifier: notifier, policy: policy, logger: logger}
}

// AddOrReplaceComponent sets the quantity of itemID consumed per unit of productID.
func (s *Service) AddOrReplaceComponent(ctx context.Context, productID, itemID uuid.UUID, qty decimal.Decimal, unit string) (Recipe, error) {
	if productID == uuid.Nil {
		return Recipe{}, shared.NewValidationError("product_id", "is required")
	}
	if itemID == uuid.Nil {
		return Recipe{}, shared.NewValidationError("item_id", "is required")
	}
	if !qty.IsPositive() {
		return Recipe{}, shared.NewValidationError("quantity", "must be > 0")
	}
	if err := units.Validate(unit); err != nil {
		return Recipe{}, err
	}
	unit = units.Normalize(unit)
	item, err := s.items.GetItem(ctx, itemID)
	if err != nil {
		return Recipe{}, err
	}
	if s.policy == UnitStrict && !units.Compatible(unit, item.Unit) {
		return Recipe{}, shared.NewValidationError("unit", fmt.Sprintf("%s cannot be converted to %s of %s", unit, item.Unit, item.Name))
	}
	if err := s.repo.Upsert(ctx, productID, Component{ItemID: itemID, Quantity: qty, Unit: unit}); err != nil {
		return Recipe{}, err
	}
	s.changed(ctx, productID)
	return s.Components(ctx, productID)
}

// RemoveComponent drops itemID from the recipe. Removing an absent component is a no-op.
func (s *Service) RemoveComponent(ctx context.Context, productID, itemID uuid.UUID) (Recipe, error) {
	if err := s.repo.Delete(ctx, productID, itemID); err != nil {
		return Recipe{}, err
	}
	s.changed(ctx, productID)
	return s.Components(ctx, productID)
}

// Components returns the recipe of productID, empty when none is defined.
func (s *Service) Components(ctx context.Context, productID uuid.UUID) (Recipe, error) {
	comps, err := s.repo.Components(ctx, productID)
	if err != nil {
		return Recipe{}, err
	}
	if comps == nil {
		comps = []Component{}
	}
	return Recipe{ProductID: productID, Components: comps}, nil
}

// ComputeCost prices a product's recipe at current item unit costs. Items without a cost count as zero.
func (s *Service) ComputeCost(ctx context.Context, productID uuid.UUID) (Costing, error) {
	product, err := s.products.Get(ctx, productID)
	if err != nil {
		return Costing{}, err
	}
	comps, err := s.repo.Components(ctx, productID)
	if err != nil {
		return Costing{}, err
	}
	costing := Costing{
		ProductID:       productID,
		SellPrice:       product.SellPrice,
		TheoreticalCost: decimal.Zero,
		MarginPercent:   decimal.Zero,
		Lines:           make([]CostLine, 0, len(comps)),
	}
	for _, c := range comps {
		item, err := s.items.GetItem(ctx, c.ItemID)
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			return Costing{}, err
		}
		qty, err := s.consumed(c, item)
		if err != nil {
			return Costing{}, err
		}
		unitCost := decimal.Zero
		if item.UnitCost.Valid {
			unitCost = item.UnitCost.Decimal
		}
		line := CostLine{
			ItemID:   c.ItemID,
			ItemName: item.Name,
			Quantity: c.Quantity,
			Unit:     c.Unit,
			UnitCost: unitCost,
			Cost:     qty.Mul(unitCost),
		}
		costing.TheoreticalCost = costing.TheoreticalCost.Add(line.Cost)
		costing.Lines = append(costing.Lines, line)
	}
	costing.MarginPercent = MarginPercent(product.SellPrice, costing.TheoreticalCost)
	return costing, nil
}

// ResolvedRecipes returns every recipe with quantities expressed for consumption. Under the
// strict unit policy quantities are converted to the item's unit.
func (s *Service) ResolvedRecipes(ctx context.Context) (map[uuid.UUID][]Component, error) {
	all, err := s.repo.All(ctx)
	if err != nil {
		return nil, err
	}
	if s.policy != UnitStrict {
		return all, nil
	}
	items, err := s.items.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]inventory.StockItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}
	out := make(map[uuid.UUID][]Component, len(all))
	for productID, comps := range all {
		resolved := make([]Component, 0, len(comps))
		for _, c := range comps {
			item, ok := byID[c.ItemID]
			if !ok {
				continue
			}
			qty, err := s.consumed(c, item)
			if err != nil {
				return nil, err
			}
			resolved = append(resolved, Component{ItemID: c.ItemID, Quantity: qty, Unit: item.Unit})
		}
		out[productID] = resolved
	}
	return out, nil
}

// MarginPercent is (sell - cost) / sell * 100 rounded to two places, or zero without a sell price.
func MarginPercent(sell, cost decimal.Decimal) decimal.Decimal {
	if !sell.IsPositive() {
		return decimal.Zero
	}
	return sell.Sub(cost).Div(sell).Mul(decimal.NewFromInt(100)).Round(2)
}

func (s *Service) consumed(c Component, item inventory.StockItem) (decimal.Decimal, error) {
	if s.policy != UnitStrict || item.ID == uuid.Nil || strings.EqualFold(c.Unit, item.Unit) {
		return c.Quantity, nil
	}
	return units.Convert(c.Quantity, c.Unit, item.Unit)
}

func (s *Service) changed(ctx context.Context, productID uuid.UUID) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.RecipeChanged(ctx, productID); err != nil {
		s.logger.Warn("recipe change notification", slog.Any("error", err), slog.String("product_id", productID.String()))
	}
}
