package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/accounts/internal/account"
	"github.com/odyssey-erp/accounts/internal/platform/httpx"
	"github.com/odyssey-erp/accounts/internal/shared"
	"github.com/odyssey-erp/accounts/internal/view"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	templates      *view.Engine
	sessionManager *shared.SessionManager
	validator      *validator.Validate
	limiter        func(http.Handler) http.Handler
}

// NewHandler constructs a Handler instance. templates and limiter may be nil.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, sessions *shared.SessionManager, limiter func(http.Handler) http.Handler) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		templates:      templates,
		sessionManager: sessions,
		validator:      validator.New(),
		limiter:        limiter,
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.limiter != nil {
			r.Use(h.limiter)
		}
		r.Post("/login", h.handleLogin)
		r.Post("/session", h.createSession)
	})
	r.Get("/login", h.showLogin)
	r.Post("/logout", h.handleLogout)
	r.Get("/session", h.currentSession)
	r.Delete("/session", h.deleteSession)
}

type sessionResponse struct {
	User      *account.Account `json:"user"`
	ExpiresAt time.Time        `json:"expiresAt"`
}

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	var input LoginInput
	if err := httpx.DecodeJSON(w, r, &input); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	if err := h.validator.Struct(input); err != nil {
		httpx.RespondError(w, r, h.logger, requiredFields(err))
		return
	}
	token, acc, err := h.service.Login(r.Context(), input.Email, input.Password)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	h.sessionManager.Commit(w, token.Token, token.Claims.ExpiresAt)
	httpx.JSON(w, http.StatusOK, sessionResponse{User: acc, ExpiresAt: token.Claims.ExpiresAt})
}

func (h *Handler) currentSession(w http.ResponseWriter, r *http.Request) {
	acc, err := h.service.Current(r.Context(), shared.ClaimsFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sessionResponse{User: acc, ExpiresAt: shared.ClaimsFromContext(r.Context()).ExpiresAt})
}

func (h *Handler) deleteSession(w http.ResponseWriter, r *http.Request) {
	claims := shared.ClaimsFromContext(r.Context())
	if claims == nil {
		httpx.RespondError(w, r, h.logger, shared.ErrUnauthenticated)
		return
	}
	h.logout(w, r, claims)
	w.WriteHeader(http.StatusNoContent)
}

type loginPageData struct {
	Email       string
	CallbackURL string
	Errors      map[string]string
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	h.renderLogin(w, r, http.StatusOK, loginPageData{CallbackURL: safeCallback(r.URL.Query().Get("callbackUrl"))})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	input := LoginInput{Email: r.PostFormValue("email"), Password: r.PostFormValue("password")}
	data := loginPageData{Email: input.Email, CallbackURL: safeCallback(r.PostFormValue("callbackUrl")), Errors: map[string]string{}}

	if err := h.validator.Struct(input); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fieldErr := range verrs {
				data.Errors[strings.ToLower(fieldErr.Field())] = "required"
			}
		}
		h.renderLogin(w, r, http.StatusBadRequest, data)
		return
	}

	token, acc, err := h.service.Login(r.Context(), input.Email, input.Password)
	if err != nil {
		if !errors.Is(err, shared.ErrInvalidCredentials) {
			h.logger.Error("login failed", slog.Any("error", err))
		}
		data.Errors["general"] = shared.ErrInvalidCredentials.Error()
		h.renderLogin(w, r, http.StatusUnauthorized, data)
		return
	}
	h.sessionManager.Commit(w, token.Token, token.Claims.ExpiresAt)

	target := data.CallbackURL
	if target == "" {
		target = "/dashboard"
		if acc.Role == shared.RoleAdmin {
			target = "/admin"
		}
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if claims := shared.ClaimsFromContext(r.Context()); claims != nil {
		h.logout(w, r, claims)
	} else {
		h.sessionManager.Destroy(w)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request, claims *shared.Claims) {
	if err := h.service.Logout(r.Context(), claims); err != nil {
		h.logger.Warn("revoke session", slog.Any("error", err))
	}
	h.sessionManager.Destroy(w)
}

func (h *Handler) renderLogin(w http.ResponseWriter, r *http.Request, status int, data loginPageData) {
	if h.templates == nil {
		http.Error(w, http.StatusText(status), status)
		return
	}
	viewData := view.TemplateData{
		Title:       "Sign in",
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	if err := h.templates.Render(w, status, "pages/login.html", viewData); err != nil {
		h.logger.Error("render login", slog.Any("error", err))
	}
}

func requiredFields(err error) error {
	verr := shared.NewValidationError()
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fieldErr := range verrs {
			verr.Add(strings.ToLower(fieldErr.Field()), "is required")
		}
	}
	if verr.Empty() {
		verr.Add("body", err.Error())
	}
	return verr
}

// safeCallback keeps only same-origin absolute paths. Backslashes and control
// characters are refused because browsers rewrite or drop them.
func safeCallback(raw string) string {
	if strings.ContainsFunc(raw, func(r rune) bool { return r == '\\' || r < 0x20 || r == 0x7f }) {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "" || u.Host != "" || u.User != nil {
		return ""
	}
	if !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") {
		return ""
	}
	return raw
}
