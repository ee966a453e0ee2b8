package recipe

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/storeledger/internal/platform/httpx"
	"github.com/odyssey-erp/storeledger/internal/shared"
)

// ProductWriter maintains the product catalog.
type ProductWriter interface {
	Put(ctx context.Context, p Product) error
}

// Handler exposes recipes over HTTP.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	products ProductWriter
}

// NewHandler constructs Handler. products may be nil to leave the catalog read-only.
func NewHandler(logger *slog.Logger, service *Service, products ProductWriter) *Handler {
	return &Handler{logger: logger, service: service, products: products}
}

// MountRoutes registers recipe routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/recipes/{productID}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Get("/cost", h.cost)
		r.Put("/components/{itemID}", h.putComponent)
		r.Delete("/components/{itemID}", h.deleteComponent)
	})
	if h.products != nil {
		r.Put("/products/{productID}", h.putProduct)
	}
}

type componentRequest struct {
	Quantity decimal.Decimal `json:"quantity"`
	Unit     string          `json:"unit" validate:"required"`
}

type productRequest struct {
	Name      string          `json:"name" validate:"required,max=200"`
	SellPrice decimal.Decimal `json:"sell_price"`
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	productID, err := httpx.URLUUID(r, "productID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rec, err := h.service.Components(r.Context(), productID)
	if err != nil {
		h.fail(w, "get recipe", err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) cost(w http.ResponseWriter, r *http.Request) {
	productID, err := httpx.URLUUID(r, "productID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	costing, err := h.service.ComputeCost(r.Context(), productID)
	if err != nil {
		h.fail(w, "compute cost", err)
		return
	}
	httpx.JSON(w, http.StatusOK, costing)
}

func (h *Handler) putComponent(w http.ResponseWriter, r *http.Request) {
	productID, err := httpx.URLUUID(r, "productID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	itemID, err := httpx.URLUUID(r, "itemID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req componentRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	rec, err := h.service.AddOrReplaceComponent(r.Context(), productID, itemID, req.Quantity, req.Unit)
	if err != nil {
		h.fail(w, "put component", err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) deleteComponent(w http.ResponseWriter, r *http.Request) {
	productID, err := httpx.URLUUID(r, "productID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	itemID, err := httpx.URLUUID(r, "itemID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rec, err := h.service.RemoveComponent(r.Context(), productID, itemID)
	if err != nil {
		h.fail(w, "remove component", err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) putProduct(w http.ResponseWriter, r *http.Request) {
	productID, err := httpx.URLUUID(r, "productID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req productRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if req.SellPrice.IsNegative() {
		httpx.RespondError(w, shared.NewValidationError("sell_price", "must be >= 0"))
		return
	}
	p := Product{ID: productID, Name: strings.TrimSpace(req.Name), SellPrice: req.SellPrice}
	if err := h.products.Put(r.Context(), p); err != nil {
		h.fail(w, "put product", err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}
