package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/storeledger/internal/cashbook"
	"github.com/odyssey-erp/storeledger/internal/integration"
	"github.com/odyssey-erp/storeledger/internal/inventory"
	"github.com/odyssey-erp/storeledger/internal/observability"
	"github.com/odyssey-erp/storeledger/internal/platform/cache"
	"github.com/odyssey-erp/storeledger/internal/platform/db"
	"github.com/odyssey-erp/storeledger/internal/recipe"
	"github.com/odyssey-erp/storeledger/internal/reconcile"
	"github.com/odyssey-erp/storeledger/internal/requisition"
	"github.com/odyssey-erp/storeledger/internal/shared"
)

// Services holds the constructed domain services and their storage.
type Services struct {
	Pool  *pgxpool.Pool
	Redis *redis.Client

	Hooks       *integration.Hooks
	Inventory   *inventory.Service
	Cash        *cashbook.Service
	Requisition *requisition.Service
	Recipes     *recipe.Service
	Reconcile   *reconcile.Service

	Products recipe.ProductWriter
	Sales    reconcile.SaleWriter
}

type auditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

type idempotencyStore interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

type productStore interface {
	recipe.ProductCatalog
	recipe.ProductWriter
}

type saleStore interface {
	reconcile.SalesFeed
	reconcile.SaleWriter
}

// NewServices builds every domain service on the configured storage driver.
// Redis is optional; without it reports are computed on every request.
func NewServices(ctx context.Context, cfg *Config, logger *slog.Logger, metrics *observability.Metrics) (*Services, error) {
	reqPolicy, err := requisition.ParsePolicy(cfg.RequisitionPolicy)
	if err != nil {
		return nil, err
	}
	unitPolicy, err := recipe.ParseUnitPolicy(cfg.RecipeUnitPolicy)
	if err != nil {
		return nil, err
	}

	svc := &Services{}
	if cfg.RedisAddr != "" {
		client, err := cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Warn("redis unavailable, reconciliation cache disabled", slog.Any("error", err))
		} else {
			svc.Redis = client
		}
	}

	var (
		stockRepo  inventory.RepositoryPort
		cashRepo   cashbook.RepositoryPort
		reqRepo    requisition.RepositoryPort
		recipeRepo recipe.RepositoryPort
		products   productStore
		sales      saleStore
		audit      auditRecorder
		idem       idempotencyStore
		approvals  requisition.ApprovalPort
	)

	switch cfg.StorageDriver {
	case StoragePostgres:
		pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
		if err != nil {
			svc.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := db.Migrate(ctx, pool); err != nil {
			pool.Close()
			svc.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		svc.Pool = pool
		stockRepo = inventory.NewRepository(pool)
		cashRepo = cashbook.NewRepository(pool)
		reqRepo = requisition.NewRepository(pool)
		recipeRepo = recipe.NewRepository(pool)
		products = recipe.NewProductRepository(pool)
		sales = reconcile.NewSalesRepository(pool)
		audit = shared.NewAuditLogger(pool)
		idem = shared.NewIdempotencyStore(pool)
		approvals = shared.NewApprovalRecorder(pool, logger)
	default:
		stockRepo = inventory.NewMemoryRepository()
		cashRepo = cashbook.NewMemoryRepository()
		reqRepo = requisition.NewMemoryRepository()
		recipeRepo = recipe.NewMemoryRepository()
		products = recipe.NewMemoryProductCatalog()
		sales = reconcile.NewMemorySalesFeed()
		audit = shared.SlogAuditLogger{Logger: logger}
		idem = shared.NewMemoryIdempotencyStore()
		approvals = shared.NewMemoryApprovalRecorder()
	}

	svc.Cash = cashbook.NewService(cashRepo, audit, logger)
	svc.Hooks = integration.NewHooks(svc.Cash, nil)
	if metrics != nil {
		svc.Hooks.SetMovementCounter(metrics)
	}
	svc.Inventory = inventory.NewService(stockRepo, audit, idem, svc.Hooks, logger)
	svc.Requisition = requisition.NewService(reqRepo, svc.Inventory, approvals, reqPolicy, logger)
	svc.Recipes = recipe.NewService(recipeRepo, svc.Inventory, products, svc.Hooks, unitPolicy, logger)

	var reportCache *reconcile.Cache
	if svc.Redis != nil {
		reportCache = reconcile.NewCache(svc.Redis, cfg.ReconcileCacheTTL)
	}
	svc.Reconcile = reconcile.NewService(svc.Inventory, svc.Recipes, sales, reportCache, logger)
	svc.Hooks.SetReportCache(svc.Reconcile)

	svc.Products = products
	svc.Sales = sales
	return svc, nil
}

// Close releases storage connections.
func (s *Services) Close() {
	if s == nil {
		return
	}
	if s.Redis != nil {
		_ = s.Redis.Close()
	}
	if s.Pool != nil {
		s.Pool.Close()
	}
}
