package address

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/accounts/internal/platform/httpx"
	"github.com/odyssey-erp/accounts/internal/shared"
)

// Resolver is the lookup surface the handler needs; *Cache satisfies it.
type Resolver interface {
	Resolve(ctx context.Context, raw string) (Address, error)
}

// Handler exposes postal code lookups over HTTP.
type Handler struct {
	logger   *slog.Logger
	resolver Resolver
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, resolver Resolver) *Handler {
	return &Handler{logger: logger, resolver: resolver}
}

// MountRoutes registers the lookup route.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.lookup)
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(r.URL.Query().Get("code"))
	if code == "" {
		verr := shared.NewValidationError()
		verr.Add("code", "is required")
		httpx.RespondError(w, r, h.logger, verr)
		return
	}
	addr, err := h.resolver.Resolve(r.Context(), code)
	if err != nil {
		if h.logger != nil && !isClientError(err) {
			h.logger.Warn("address lookup failed", slog.String("code", code), slog.Any("error", err))
		}
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, addr)
}

func isClientError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, shared.ErrValidation)
}
