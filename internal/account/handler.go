package account

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/accounts/internal/gate"
	"github.com/odyssey-erp/accounts/internal/platform/httpx"
	"github.com/odyssey-erp/accounts/internal/shared"
)

// AdminService is the subset of Service the handler depends on.
type AdminService interface {
	List(ctx context.Context) ([]Account, error)
	Update(ctx context.Context, id string, input UpdateInput) (*Account, error)
	Delete(ctx context.Context, actorID, id string) error
	Stats(ctx context.Context) (Stats, error)
}

// Handler exposes admin account endpoints.
type Handler struct {
	logger  *slog.Logger
	service AdminService
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service AdminService) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers admin account routes. Every route requires an admin session.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(gate.RequireAdmin)
		r.Get("/", h.list)
		r.Get("/stats", h.stats)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.delete)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.List(r.Context())
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, accounts)
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var input UpdateInput
	if err := httpx.DecodeJSON(w, r, &input); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	updated, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), input)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	claims := shared.ClaimsFromContext(r.Context())
	if claims == nil {
		httpx.RespondError(w, r, h.logger, shared.ErrForbidden)
		return
	}
	if err := h.service.Delete(r.Context(), claims.Subject, chi.URLParam(r, "id")); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	if h.logger != nil {
		h.logger.Info("account deleted",
			slog.String("account_id", chi.URLParam(r, "id")),
			slog.String("actor_id", claims.Subject))
	}
	w.WriteHeader(http.StatusNoContent)
}
