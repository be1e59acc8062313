package registration

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/accounts/internal/account"
	"github.com/odyssey-erp/accounts/internal/platform/httpx"
	"github.com/odyssey-erp/accounts/internal/shared"
	"github.com/odyssey-erp/accounts/internal/view"
)

// Registrar creates accounts from sign-up input.
type Registrar interface {
	Register(ctx context.Context, in Input) (*account.Account, error)
}

// Handler serves the sign-up API and the sign-up page.
type Handler struct {
	logger    *slog.Logger
	registrar Registrar
	templates *view.Engine
	limiter   func(http.Handler) http.Handler
}

// NewHandler builds Handler instance. templates and limiter may be nil.
func NewHandler(logger *slog.Logger, registrar Registrar, templates *view.Engine, limiter func(http.Handler) http.Handler) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, registrar: registrar, templates: templates, limiter: limiter}
}

type registerResponse struct {
	Message string           `json:"message"`
	User    *account.Account `json:"user"`
}

// MountRoutes registers the JSON sign-up route.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.limiter != nil {
			r.Use(h.limiter)
		}
		r.Post("/", h.register)
	})
}

// MountPages registers the HTML sign-up form.
func (h *Handler) MountPages(r chi.Router) {
	r.Get("/", h.showForm)
	r.Group(func(r chi.Router) {
		if h.limiter != nil {
			r.Use(h.limiter)
		}
		r.Post("/", h.submitForm)
	})
}

// registerRequest also accepts the form's "cep" key. Client-supplied address fields
// such as state and city are ignored; they come from the postal code lookup.
type registerRequest struct {
	Input
	CEP string `json:"cep"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSONAllowUnknown(w, r, &req); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	in := req.Input
	if in.PostalCode == "" {
		in.PostalCode = req.CEP
	}
	created, err := h.registrar.Register(r.Context(), in)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, registerResponse{Message: "account created", User: created})
}

type formPageData struct {
	Form   Input
	Errors map[string][]string
}

func (h *Handler) showForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, formPageData{})
}

func (h *Handler) submitForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	in := Input{
		Name:       r.PostFormValue("name"),
		Email:      r.PostFormValue("email"),
		Password:   r.PostFormValue("password"),
		PostalCode: r.PostFormValue("postalCode"),
	}
	_, err := h.registrar.Register(r.Context(), in)
	if err == nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	in.Password = ""
	data := formPageData{Form: in, Errors: map[string][]string{}}
	var verr *shared.ValidationError
	status := http.StatusBadRequest
	switch {
	case errors.As(err, &verr):
		data.Errors = verr.Fields
	case errors.Is(err, shared.ErrEmailInUse):
		status = http.StatusConflict
		data.Errors["email"] = []string{"email already in use"}
	default:
		h.logger.Error("register via form", slog.Any("error", err))
		status = http.StatusInternalServerError
		data.Errors["general"] = []string{"registration failed, please try again"}
	}
	h.render(w, r, status, data)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, data formPageData) {
	if h.templates == nil {
		http.Error(w, http.StatusText(status), status)
		return
	}
	viewData := view.TemplateData{Title: "Create account", CurrentPath: r.URL.Path, Data: data}
	if err := h.templates.Render(w, status, "pages/register.html", viewData); err != nil {
		h.logger.Error("render register", slog.Any("error", err))
	}
}
