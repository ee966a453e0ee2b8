package cashbook

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/storeledger/internal/platform/export"
	"github.com/odyssey-erp/storeledger/internal/platform/httpx"
)

// Handler exposes the cash ledger over HTTP.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers cash routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/cash", func(r chi.Router) {
		r.Post("/entries", h.post)
		r.Get("/ledger", h.ledger)
		r.Get("/ledger.xlsx", h.ledgerXLSX)
		r.Get("/summary", h.summary)
	})
}

type postRequest struct {
	Direction Direction       `json:"direction" validate:"required,oneof=IN OUT"`
	Amount    decimal.Decimal `json:"amount"`
	Remark    string          `json:"remark" validate:"required,max=500"`
	Category  string          `json:"category" validate:"max=100"`
	Mode      PaymentMode     `json:"mode" validate:"omitempty,oneof=CASH MOBILE_MONEY BANK"`
	Date      *time.Time      `json:"date"`
}

func (h *Handler) post(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	input := PostInput{
		Direction: req.Direction,
		Amount:    req.Amount,
		Remark:    req.Remark,
		Category:  req.Category,
		Mode:      req.Mode,
	}
	if req.Date != nil {
		input.Date = *req.Date
	}
	entry, err := h.service.Post(r.Context(), input)
	if err != nil {
		h.logger.Error("post cash entry", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) ledger(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	lines, err := h.service.LedgerWithRunningBalance(r.Context(), filter)
	if err != nil {
		h.logger.Error("cash ledger", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, lines)
}

func (h *Handler) ledgerXLSX(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	lines, err := h.service.LedgerWithRunningBalance(r.Context(), filter)
	if err != nil {
		h.logger.Error("cash ledger export", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", export.ContentTypeXLSX)
	w.Header().Set("Content-Disposition", `attachment; filename="cash-ledger.xlsx"`)
	if err := ExportXLSX(w, lines); err != nil {
		h.logger.Error("write cash ledger workbook", slog.Any("error", err))
	}
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	sum, err := h.service.Summary(r.Context(), filter)
	if err != nil {
		h.logger.Error("cash summary", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sum)
}

func parseFilter(r *http.Request) (LedgerFilter, error) {
	from, err := httpx.QueryDate(r, "from", false)
	if err != nil {
		return LedgerFilter{}, err
	}
	to, err := httpx.QueryDate(r, "to", true)
	if err != nil {
		return LedgerFilter{}, err
	}
	return LedgerFilter{From: from, To: to}, nil
}
