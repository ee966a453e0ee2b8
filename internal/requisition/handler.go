package requisition

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/storeledger/internal/platform/httpx"
	"github.com/odyssey-erp/storeledger/internal/shared"
)

// Handler exposes the requisition workflow over HTTP.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers requisition routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/requisitions", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.submit)
		r.Get("/{id}", h.get)
		r.Get("/{id}/history", h.history)
		r.Post("/{id}/approve", h.approve)
		r.Post("/{id}/reject", h.reject)
	})
}

type lineRequest struct {
	ItemID     *uuid.UUID      `json:"item_id"`
	ItemName   string          `json:"item_name" validate:"max=200"`
	Quantity   decimal.Decimal `json:"quantity"`
	Unit       string          `json:"unit"`
	Department string          `json:"department" validate:"max=100"`
}

type submitRequest struct {
	RequesterName string        `json:"requester_name" validate:"required,max=200"`
	RequesterRole string        `json:"requester_role" validate:"max=100"`
	Lines         []lineRequest `json:"lines" validate:"required,min=1,dive"`
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	input := SubmitInput{RequesterName: req.RequesterName, RequesterRole: req.RequesterRole}
	for _, l := range req.Lines {
		input.Lines = append(input.Lines, LineInput(l))
	}
	created, err := h.service.Submit(r.Context(), input)
	if err != nil {
		h.fail(w, "submit requisition", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.service.List(r.Context(), ListFilter{Status: Status(r.URL.Query().Get("status"))})
	if err != nil {
		h.fail(w, "list requisitions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, reqs)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	req, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get requisition", err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	logs, err := h.service.History(r.Context(), id)
	if err != nil {
		h.fail(w, "requisition history", err)
		return
	}
	httpx.JSON(w, http.StatusOK, logs)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	req, err := h.service.Approve(r.Context(), id, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, "approve requisition", err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	req, err := h.service.Reject(r.Context(), id, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, "reject requisition", err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}
