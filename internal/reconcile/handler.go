package reconcile

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/storeledger/internal/platform/export"
	"github.com/odyssey-erp/storeledger/internal/platform/httpx"
)

// SaleWriter appends sale lines to the sales feed.
type SaleWriter interface {
	Append(ctx context.Context, sale Sale) error
}

// Handler exposes reconciliation reports over HTTP.
type Handler struct {
	logger  *slog.Logger
	service *Service
	sales   SaleWriter
}

// NewHandler constructs Handler. sales may be nil when the feed is owned elsewhere.
func NewHandler(logger *slog.Logger, service *Service, sales SaleWriter) *Handler {
	return &Handler{logger: logger, service: service, sales: sales}
}

// MountRoutes registers reconciliation routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/reconciliation", h.report)
	r.Get("/reconciliation.xlsx", h.reportXLSX)
	if h.sales != nil {
		r.Post("/sales", h.recordSale)
	}
}

type saleRequest struct {
	ProductID uuid.UUID       `json:"product_id" validate:"required"`
	Quantity  decimal.Decimal `json:"quantity"`
	Status    SaleStatus      `json:"status" validate:"required,oneof=COMPLETED PENDING CANCELLED"`
	SoldAt    *time.Time      `json:"sold_at"`
}

func (h *Handler) report(w http.ResponseWriter, r *http.Request) {
	report, ok := h.load(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) reportXLSX(w http.ResponseWriter, r *http.Request) {
	report, ok := h.load(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", export.ContentTypeXLSX)
	w.Header().Set("Content-Disposition", `attachment; filename="reconciliation.xlsx"`)
	if err := ExportXLSX(w, report); err != nil {
		h.logger.Error("write reconciliation workbook", slog.Any("error", err))
	}
}

func (h *Handler) recordSale(w http.ResponseWriter, r *http.Request) {
	var req saleRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	sale := Sale{ProductID: req.ProductID, Quantity: req.Quantity, Status: req.Status, SoldAt: time.Now().UTC()}
	if req.SoldAt != nil {
		sale.SoldAt = req.SoldAt.UTC()
	}
	if err := ValidateSale(sale); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.sales.Append(r.Context(), sale); err != nil {
		h.logger.Error("record sale", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Invalidate(r.Context()); err != nil {
		h.logger.Warn("invalidate reconciliation cache", slog.Any("error", err))
	}
	httpx.JSON(w, http.StatusCreated, sale)
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) (Report, bool) {
	from, err := httpx.QueryDate(r, "from", false)
	if err != nil {
		httpx.RespondError(w, err)
		return Report{}, false
	}
	to, err := httpx.QueryDate(r, "to", true)
	if err != nil {
		httpx.RespondError(w, err)
		return Report{}, false
	}
	report, err := h.service.Report(r.Context(), Window{From: from, To: to})
	if err != nil {
		h.logger.Error("reconciliation report", slog.Any("error", err))
		httpx.RespondError(w, err)
		return Report{}, false
	}
	return report, true
}
