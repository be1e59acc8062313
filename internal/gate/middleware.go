package gate

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/odyssey-erp/accounts/internal/platform/httpx"
	"github.com/odyssey-erp/accounts/internal/shared"
)

// Observer counts decisions. *observability.Metrics satisfies it.
type Observer interface {
	ObserveGate(outcome, reason string)
}

// Middleware applies the engine to every request. Claims must already be in the
// request context (see shared.ContextWithClaims). observer may be nil.
func Middleware(engine *Engine, logger *slog.Logger, observer Observer) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	routes := engine.Routes()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision := engine.Authorize(r.URL.Path, shared.ClaimsFromContext(r.Context()))
			if observer != nil {
				observer.ObserveGate(decision.Outcome.String(), decision.Reason.String())
			}
			switch decision.Outcome {
			case Redirect:
				http.Redirect(w, r, decision.Location, http.StatusSeeOther)
			case Deny:
				logger.Debug("gate deny",
					slog.String("path", r.URL.Path),
					slog.String("reason", decision.Reason.String()))
				if decision.Reason == ReasonUnauthenticated {
					target := routes.LoginPage + "?callbackUrl=" + url.QueryEscape(r.URL.RequestURI())
					http.Redirect(w, r, target, http.StatusSeeOther)
					return
				}
				http.Redirect(w, r, routes.MemberHome, http.StatusSeeOther)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

// RequireAdmin guards JSON APIs: anyone without an admin session gets 403.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsAdmin(shared.ClaimsFromContext(r.Context())) {
			httpx.Problem(w, http.StatusForbidden, "Forbidden", shared.ErrForbidden.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}
