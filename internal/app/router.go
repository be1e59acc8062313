package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/odyssey-erp/accounts/internal/account"
	"github.com/odyssey-erp/accounts/internal/address"
	"github.com/odyssey-erp/accounts/internal/auth"
	"github.com/odyssey-erp/accounts/internal/gate"
	"github.com/odyssey-erp/accounts/internal/observability"
	"github.com/odyssey-erp/accounts/internal/registration"
	"github.com/odyssey-erp/accounts/internal/shared"
	"github.com/odyssey-erp/accounts/internal/view"
	"github.com/odyssey-erp/accounts/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger              *slog.Logger
	Config              *Config
	Templates           *view.Engine
	SessionManager      *shared.SessionManager
	Verifier            TokenVerifier
	Gate                *gate.Engine
	AuthHandler         *auth.Handler
	AccountHandler      *account.Handler
	RegistrationHandler *registration.Handler
	AddressHandler      *address.Handler
	Accounts            AccountReader
	Admin               AdminReader
	DB                  Pinger
	Stats               StatsReader
	Metrics             *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		Verifier:       params.Verifier,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	engine := params.Gate
	if engine == nil {
		engine = gate.NewEngine(gate.DefaultRoutes())
	}
	var observer gate.Observer
	if params.Metrics != nil {
		observer = params.Metrics
	}
	r.Use(gate.Middleware(engine, logger, observer))

	r.Get("/healthz", healthz)
	r.Get("/status", statusHandler(logger, params.DB, params.Stats))
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	r.Get("/favicon.ico", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	if params.Templates != nil {
		p := &pages{logger: logger, templates: params.Templates, accounts: params.Accounts, admin: params.Admin}
		r.Get("/", p.home)
		if params.Accounts != nil {
			r.Get("/dashboard", p.dashboard)
		}
		if params.Admin != nil {
			r.Get("/admin", p.adminHome)
		}
	}

	if params.AuthHandler != nil {
		params.AuthHandler.MountRoutes(r)
	}
	r.Route("/users", func(r chi.Router) {
		if params.RegistrationHandler != nil {
			r.Route("/register", params.RegistrationHandler.MountRoutes)
		}
		if params.AccountHandler != nil {
			params.AccountHandler.MountRoutes(r)
		}
	})
	if params.RegistrationHandler != nil && params.Templates != nil {
		r.Route("/register", params.RegistrationHandler.MountPages)
	}
	if params.AddressHandler != nil {
		r.Route("/address-lookup", params.AddressHandler.MountRoutes)
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	return r
}

// staticCacheHandler lets browsers keep static assets for an hour.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
