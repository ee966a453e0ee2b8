package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/storeledger/internal/cashbook"
	"github.com/odyssey-erp/storeledger/internal/inventory"
	"github.com/odyssey-erp/storeledger/internal/observability"
	"github.com/odyssey-erp/storeledger/internal/recipe"
	"github.com/odyssey-erp/storeledger/internal/reconcile"
	"github.com/odyssey-erp/storeledger/internal/requisition"
	"github.com/odyssey-erp/storeledger/internal/units"
	"github.com/odyssey-erp/storeledger/jobs"
)

func testConfig() *Config {
	return &Config{
		AppEnv:             "test",
		StorageDriver:      StorageMemory,
		RequisitionPolicy:  "lenient",
		RecipeUnitPolicy:   "permissive",
		RateLimitPerMinute: 1000,
	}
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := testConfig()
	logger := NewLogger(cfg)
	metrics := observability.NewMetrics()
	svc, err := NewServices(context.Background(), cfg, logger, metrics)
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	return NewRouter(RouterParams{
		Logger:             logger,
		Config:             cfg,
		UnitsHandler:       units.NewHandler(),
		InventoryHandler:   inventory.NewHandler(logger, svc.Inventory),
		CashHandler:        cashbook.NewHandler(logger, svc.Cash),
		RequisitionHandler: requisition.NewHandler(logger, svc.Requisition),
		RecipeHandler:      recipe.NewHandler(logger, svc.Recipes, svc.Products),
		ReconcileHandler:   reconcile.NewHandler(logger, svc.Reconcile, svc.Sales),
		JobHandler:         jobs.NewHandler(nil, nil, logger),
		Metrics:            metrics,
	})
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor", "Amina")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealthz(t *testing.T) {
	rr := do(t, newTestRouter(t), http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
}

func TestCostedReceiptFlowsToCashLedger(t *testing.T) {
	h := newTestRouter(t)

	rr := do(t, h, http.MethodPost, "/api/items", map[string]any{
		"name":             "Sugar",
		"category":         "Dry goods",
		"unit":             "kg",
		"initial_quantity": "10",
		"min_threshold":    "2",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var item inventory.StockItem
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &item))

	rr = do(t, h, http.MethodPost, "/api/items/"+item.ID.String()+"/receipts", map[string]any{
		"quantity":  "5",
		"unit_cost": "2000",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var mv inventory.Movement
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &mv))
	assert.Equal(t, "Amina", mv.Actor)

	rr = do(t, h, http.MethodGet, "/api/items/"+item.ID.String(), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &item))
	assert.True(t, item.Quantity.Equal(decimal.NewFromInt(15)))

	rr = do(t, h, http.MethodGet, "/api/cash/ledger", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var lines []cashbook.LedgerLine
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &lines))
	require.Len(t, lines, 1)
	assert.True(t, lines[0].AmountOut.Equal(decimal.NewFromInt(10000)))
	assert.True(t, lines[0].Balance.Equal(decimal.NewFromInt(-10000)))

	rr = do(t, h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `storeledger_stock_movements_total{kind="RECEIPT"} 2`)
}

func TestErrorsMapToProblems(t *testing.T) {
	h := newTestRouter(t)

	rr := do(t, h, http.MethodGet, "/api/items/"+uuid.NewString(), nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.True(t, strings.HasPrefix(rr.Header().Get("Content-Type"), "application/problem+json"))

	rr = do(t, h, http.MethodPost, "/api/items", map[string]any{"category": "Dry goods", "unit": "kg"})
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodPost, "/api/items", map[string]any{"name": "Salt", "category": "Dry goods", "unit": "kg", "initial_quantity": "1"})
	require.Equal(t, http.StatusCreated, rr.Code)
	var item inventory.StockItem
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &item))

	rr = do(t, h, http.MethodPost, "/api/items/"+item.ID.String()+"/issues", map[string]any{"quantity": "3", "recipient": "Kitchen"})
	require.Equal(t, http.StatusConflict, rr.Code)
}

func TestUnitsListed(t *testing.T) {
	rr := do(t, newTestRouter(t), http.MethodGet, "/api/units", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"kg"`)
}

func TestConfigValidate(t *testing.T) {
	cfg := testConfig()
	require.NoError(t, cfg.Validate())

	bad := *cfg
	bad.StorageDriver = "sqlite"
	require.Error(t, bad.Validate())

	bad = *cfg
	bad.RequisitionPolicy = "eager"
	require.Error(t, bad.Validate())

	bad = *cfg
	bad.RecipeUnitPolicy = "loose"
	require.Error(t, bad.Validate())

	bad = *cfg
	bad.RateLimitPerMinute = 0
	require.Error(t, bad.Validate())
}

func TestTestModeFlag(t *testing.T) {
	t.Setenv(testModeEnv, "1")
	RefreshTestMode()
	require.True(t, InTestMode())

	t.Setenv(testModeEnv, "")
	RefreshTestMode()
	require.False(t, InTestMode())
}

func TestStoreWorkflowRoundTrip(t *testing.T) {
	h := newTestRouter(t)
	product := uuid.New()
	var (
		buns inventory.StockItem
		req  requisition.Requisition
	)
	itemPath := func() string { return buns.ID.String() }
	reqPath := func() string { return "/api/requisitions/" + req.ID.String() }

	steps := []struct {
		name   string
		method string
		path   func() string
		body   func() any
		want   int
		check  func(t *testing.T, body []byte)
	}{
		{
			name: "register item", method: http.MethodPost,
			path: func() string { return "/api/items" },
			body: func() any {
				return map[string]any{"name": "Buns", "category": "Bakery", "unit": "pcs", "initial_quantity": "100", "unit_cost": "0.5"}
			},
			want:  http.StatusCreated,
			check: func(t *testing.T, body []byte) { require.NoError(t, json.Unmarshal(body, &buns)) },
		},
		{
			name: "put product", method: http.MethodPut,
			path: func() string { return "/api/products/" + product.String() },
			body: func() any { return map[string]any{"name": "Burger", "sell_price": "5"} },
			want: http.StatusOK,
		},
		{
			name: "put recipe component", method: http.MethodPut,
			path: func() string { return "/api/recipes/" + product.String() + "/components/" + itemPath() },
			body: func() any { return map[string]any{"quantity": "2", "unit": "pcs"} },
			want: http.StatusOK,
		},
		{
			name: "get recipe", method: http.MethodGet,
			path: func() string { return "/api/recipes/" + product.String() },
			want: http.StatusOK,
			check: func(t *testing.T, body []byte) {
				var rec recipe.Recipe
				require.NoError(t, json.Unmarshal(body, &rec))
				require.Len(t, rec.Components, 1)
				assert.Equal(t, buns.ID, rec.Components[0].ItemID)
			},
		},
		{
			name: "recipe cost", method: http.MethodGet,
			path: func() string { return "/api/recipes/" + product.String() + "/cost" },
			want: http.StatusOK,
			check: func(t *testing.T, body []byte) {
				var costing recipe.Costing
				require.NoError(t, json.Unmarshal(body, &costing))
				assert.True(t, costing.TheoreticalCost.Equal(decimal.NewFromInt(1)), costing.TheoreticalCost.String())
			},
		},
		{
			name: "record sale", method: http.MethodPost,
			path: func() string { return "/api/sales" },
			body: func() any {
				return map[string]any{"product_id": product.String(), "quantity": "10", "status": "COMPLETED"}
			},
			want: http.StatusCreated,
		},
		{
			name: "submit requisition", method: http.MethodPost,
			path: func() string { return "/api/requisitions" },
			body: func() any {
				return map[string]any{
					"requester_name": "Amina",
					"requester_role": "Cook",
					"lines": []map[string]any{
						{"item_id": buns.ID.String(), "item_name": "Buns", "quantity": "4", "unit": "pcs", "department": "Kitchen"},
					},
				}
			},
			want: http.StatusCreated,
			check: func(t *testing.T, body []byte) {
				require.NoError(t, json.Unmarshal(body, &req))
				assert.Equal(t, requisition.StatusPending, req.Status)
			},
		},
		{
			name: "approve requisition", method: http.MethodPost,
			path: func() string { return reqPath() + "/approve" },
			want: http.StatusOK,
			check: func(t *testing.T, body []byte) {
				var approved requisition.Requisition
				require.NoError(t, json.Unmarshal(body, &approved))
				assert.Equal(t, requisition.StatusApproved, approved.Status)
				assert.Equal(t, "Amina", approved.Approver)
			},
		},
		{
			name: "approve again", method: http.MethodPost,
			path: func() string { return reqPath() + "/approve" },
			want: http.StatusConflict,
		},
		{
			name: "reject resolved", method: http.MethodPost,
			path: func() string { return reqPath() + "/reject" },
			want: http.StatusConflict,
		},
		{
			name: "item after fulfilment", method: http.MethodGet,
			path: func() string { return "/api/items/" + itemPath() },
			want: http.StatusOK,
			check: func(t *testing.T, body []byte) {
				var item inventory.StockItem
				require.NoError(t, json.Unmarshal(body, &item))
				assert.True(t, item.Quantity.Equal(decimal.NewFromInt(96)), item.Quantity.String())
			},
		},
		{
			name: "reconciliation", method: http.MethodGet,
			path: func() string { return "/api/reconciliation" },
			want: http.StatusOK,
			check: func(t *testing.T, body []byte) {
				var report reconcile.Report
				require.NoError(t, json.Unmarshal(body, &report))
				require.Len(t, report.Rows, 1)
				row := report.Rows[0]
				assert.Equal(t, "Buns", row.ItemName)
				assert.True(t, row.Received.Equal(decimal.NewFromInt(100)))
				assert.True(t, row.Sold.Equal(decimal.NewFromInt(20)))
				assert.True(t, row.Variance.Equal(decimal.NewFromInt(80)))
			},
		},
		{
			name: "post cash entry", method: http.MethodPost,
			path: func() string { return "/api/cash/entries" },
			body: func() any { return map[string]any{"direction": "IN", "amount": "250", "remark": "float"} },
			want: http.StatusCreated,
		},
		{
			name: "sub-cent cash entry", method: http.MethodPost,
			path: func() string { return "/api/cash/entries" },
			body: func() any { return map[string]any{"direction": "OUT", "amount": "0.004", "remark": "rounding"} },
			want: http.StatusBadRequest,
		},
		{
			name: "cash summary", method: http.MethodGet,
			path: func() string { return "/api/cash/summary" },
			want: http.StatusOK,
			check: func(t *testing.T, body []byte) {
				var sum cashbook.Summary
				require.NoError(t, json.Unmarshal(body, &sum))
				assert.Equal(t, 1, sum.Entries)
				assert.True(t, sum.TotalIn.Equal(decimal.NewFromInt(250)))
				assert.True(t, sum.Closing.Equal(decimal.NewFromInt(250)))
			},
		},
		{
			name: "remove recipe component", method: http.MethodDelete,
			path: func() string { return "/api/recipes/" + product.String() + "/components/" + itemPath() },
			want: http.StatusOK,
		},
		{
			name: "reconciliation after recipe change", method: http.MethodGet,
			path: func() string { return "/api/reconciliation" },
			want: http.StatusOK,
			check: func(t *testing.T, body []byte) {
				var report reconcile.Report
				require.NoError(t, json.Unmarshal(body, &report))
				require.Len(t, report.Rows, 1)
				assert.True(t, report.Rows[0].Sold.IsZero())
			},
		},
	}

	for _, step := range steps {
		var body any
		if step.body != nil {
			body = step.body()
		}
		rr := do(t, h, step.method, step.path(), body)
		require.Equal(t, step.want, rr.Code, "%s: %s", step.name, rr.Body.String())
		if step.check != nil {
			step.check(t, rr.Body.Bytes())
		}
	}
}
