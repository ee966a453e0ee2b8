package reconcile

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/storeledger/internal/inventory"
	"github.com/odyssey-erp/storeledger/internal/platform/export"
	"github.com/odyssey-erp/storeledger/internal/recipe"
	"github.com/odyssey-erp/storeledger/internal/shared"
)

// StockSource reads items and the movement ledger.
type StockSource interface {
	ListItems(ctx context.Context) ([]inventory.StockItem, error)
	History(ctx context.Context, filter inventory.HistoryFilter) ([]inventory.Movement, error)
}

// RecipeSource reads product compositions in consumption units.
type RecipeSource interface {
	ResolvedRecipes(ctx context.Context) (map[uuid.UUID][]recipe.Component, error)
}

// SalesFeed lists sale lines sold inside a window.
type SalesFeed interface {
	Sales(ctx context.Context, window Window) ([]Sale, error)
}

// Service builds reconciliation reports.
type Service struct {
	stock   StockSource
	recipes RecipeSource
	sales   SalesFeed
	cache   *Cache
	group   singleflight.Group
	logger  *slog.Logger
	now     func() time.Time
}

// NewService constructs Service. cache may be nil.
func NewService(stock StockSource, recipes RecipeSource, sales SalesFeed, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		stock:   stock,
		recipes: recipes,
		sales:   sales,
		cache:   cache,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Report reconciles window, serving from cache while no movement, recipe or sale has changed.
func (s *Service) Report(ctx context.Context, window Window) (Report, error) {
	if !window.From.IsZero() && !window.To.IsZero() && window.To.Before(window.From) {
		return Report{}, shared.NewValidationError("to", "must not be before from")
	}
	key, err := s.cache.BuildKey(ctx, "reconcile", "report", formatBound(window.From), formatBound(window.To))
	if err != nil {
		s.logger.Warn("reconcile cache key", slog.Any("error", err))
		return s.build(ctx, window)
	}
	v, err, _ := s.group.Do(key, func() (any, error) {
		var report Report
		err := s.cache.FetchJSON(ctx, key, &report, func(ctx context.Context) (any, error) {
			return s.build(ctx, window)
		})
		return report, err
	})
	if err != nil {
		return Report{}, err
	}
	return v.(Report), nil
}

// Invalidate drops every cached report.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

func (s *Service) build(ctx context.Context, window Window) (Report, error) {
	items, err := s.stock.ListItems(ctx)
	if err != nil {
		return Report{}, err
	}
	movements, err := s.stock.History(ctx, inventory.HistoryFilter{From: window.From, To: window.To})
	if err != nil {
		return Report{}, err
	}
	recipes, err := s.recipes.ResolvedRecipes(ctx)
	if err != nil {
		return Report{}, err
	}
	sales, err := s.sales.Sales(ctx, window)
	if err != nil {
		return Report{}, err
	}
	return Report{
		Window:      window,
		Rows:        Compute(items, movements, recipes, sales, window),
		GeneratedAt: s.now(),
	}, nil
}

// ExportXLSX writes report rows as a spreadsheet.
func ExportXLSX(w io.Writer, report Report) error {
	rows := make([][]any, 0, len(report.Rows))
	for _, r := range report.Rows {
		rows = append(rows, []any{
			r.ItemName,
			r.Unit,
			r.Received.InexactFloat64(),
			r.Sold.InexactFloat64(),
			r.Wasted.InexactFloat64(),
			r.Variance.InexactFloat64(),
		})
	}
	return export.WriteXLSX(w, "Reconciliation", []string{"Item", "Unit", "Received", "Sold", "Wasted", "Variance"}, rows)
}

func formatBound(t time.Time) string {
	if t.IsZero() {
		return "open"
	}
	return t.UTC().Format(time.RFC3339Nano)
}
