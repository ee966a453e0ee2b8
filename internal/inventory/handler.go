package inventory

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/storeledger/internal/platform/httpx"
	"github.com/odyssey-erp/storeledger/internal/shared"
)

// Handler wires HTTP endpoints for inventory module.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/items", func(r chi.Router) {
		r.Get("/", h.listItems)
		r.Post("/", h.registerItem)
		r.Get("/low-stock", h.lowStock)
		r.Get("/{id}", h.getItem)
		r.Patch("/{id}", h.editItem)
		r.Post("/{id}/receipts", h.receive)
		r.Post("/{id}/issues", h.issue)
		r.Post("/{id}/waste", h.waste)
	})
	r.Get("/movements", h.history)
}

type registerItemRequest struct {
	Name            string              `json:"name" validate:"required,max=200"`
	Category        string              `json:"category" validate:"required,max=100"`
	Unit            string              `json:"unit" validate:"required"`
	InitialQuantity decimal.Decimal     `json:"initial_quantity"`
	MinThreshold    decimal.Decimal     `json:"min_threshold"`
	UnitCost        decimal.NullDecimal `json:"unit_cost"`
	TrackingEnabled *bool               `json:"tracking_enabled"`
}

type editItemRequest struct {
	Name            *string          `json:"name"`
	Category        *string          `json:"category"`
	Unit            *string          `json:"unit"`
	Quantity        *decimal.Decimal `json:"quantity"`
	MinThreshold    *decimal.Decimal `json:"min_threshold"`
	UnitCost        *decimal.Decimal `json:"unit_cost"`
	TrackingEnabled *bool            `json:"tracking_enabled"`
}

type receiveRequest struct {
	Quantity  decimal.Decimal     `json:"quantity"`
	UnitCost  decimal.NullDecimal `json:"unit_cost"`
	Reason    string              `json:"reason" validate:"max=500"`
	Reference string              `json:"reference" validate:"max=100"`
}

type issueRequest struct {
	Quantity    decimal.Decimal `json:"quantity"`
	Reason      string          `json:"reason" validate:"max=500"`
	Recipient   string          `json:"recipient" validate:"required_without=Destination"`
	Destination string          `json:"destination"`
}

type wasteRequest struct {
	Quantity decimal.Decimal `json:"quantity"`
	Reason   string          `json:"reason" validate:"required,max=500"`
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListItems(r.Context())
	if err != nil {
		h.fail(w, "list items", err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.LowStock(r.Context())
	if err != nil {
		h.fail(w, "low stock", err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) getItem(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	item, err := h.service.GetItem(r.Context(), id)
	if err != nil {
		h.fail(w, "get item", err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) registerItem(w http.ResponseWriter, r *http.Request) {
	var req registerItemRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	item, err := h.service.RegisterItem(r.Context(), RegisterItemInput{
		Name:            req.Name,
		Category:        req.Category,
		Unit:            req.Unit,
		InitialQuantity: req.InitialQuantity,
		MinThreshold:    req.MinThreshold,
		UnitCost:        req.UnitCost,
		TrackingEnabled: req.TrackingEnabled,
		Actor:           shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.fail(w, "register item", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, item)
}

func (h *Handler) editItem(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req editItemRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	item, err := h.service.EditItem(r.Context(), id, ItemPatch(req), shared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, "edit item", err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) receive(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req receiveRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	mv, err := h.service.Receive(r.Context(), ReceiveInput{
		ItemID:    id,
		Quantity:  req.Quantity,
		UnitCost:  req.UnitCost,
		Reason:    req.Reason,
		Actor:     shared.ActorFromContext(r.Context()),
		Reference: req.Reference,
	})
	if err != nil {
		h.fail(w, "receive stock", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, mv)
}

func (h *Handler) issue(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req issueRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	mv, err := h.service.Issue(r.Context(), IssueInput{
		ItemID:      id,
		Quantity:    req.Quantity,
		Reason:      req.Reason,
		Actor:       shared.ActorFromContext(r.Context()),
		Recipient:   req.Recipient,
		Destination: req.Destination,
	})
	if err != nil {
		h.fail(w, "issue stock", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, mv)
}

func (h *Handler) waste(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req wasteRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	mv, err := h.service.Waste(r.Context(), WasteInput{
		ItemID:   id,
		Quantity: req.Quantity,
		Reason:   req.Reason,
		Actor:    shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.fail(w, "record waste", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, mv)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	var filter HistoryFilter
	if raw := r.URL.Query().Get("item_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httpx.RespondError(w, shared.NewValidationError("item_id", "must be a UUID"))
			return
		}
		filter.ItemID = id
	}
	var err error
	if filter.From, err = httpx.QueryDate(r, "from", false); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if filter.To, err = httpx.QueryDate(r, "to", true); err != nil {
		httpx.RespondError(w, err)
		return
	}
	movements, err := h.service.History(r.Context(), filter)
	if err != nil {
		h.fail(w, "movement history", err)
		return
	}
	httpx.JSON(w, http.StatusOK, movements)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Error("inventory "+op, slog.Any("error", err))
	httpx.RespondError(w, err)
}
