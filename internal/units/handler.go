package units

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/storeledger/internal/platform/httpx"
)

// Handler exposes the unit catalog over HTTP.
type Handler struct{}

// NewHandler constructs the units handler.
func NewHandler() *Handler {
	return &Handler{}
}

// MountRoutes registers unit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/units", h.list)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, All())
}
