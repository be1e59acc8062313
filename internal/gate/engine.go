// Package gate decides, per request path, whether a caller may proceed, must be
// redirected, or is denied. The decision table is pure; middleware.go adapts it to
// net/http.
package gate

import (
	"path"
	"strings"

	"github.com/odyssey-erp/accounts/internal/shared"
)

// Outcome is the kind of decision reached for a request.
type Outcome int

const (
	Allow Outcome = iota
	Redirect
	Deny
)

func (o Outcome) String() string {
	switch o {
	case Allow:
		return "allow"
	case Redirect:
		return "redirect"
	case Deny:
		return "deny"
	}
	return "unknown"
}

// Reason explains a Deny.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonUnauthenticated
	ReasonForbidden
)

func (r Reason) String() string {
	switch r {
	case ReasonUnauthenticated:
		return "unauthenticated"
	case ReasonForbidden:
		return "forbidden"
	}
	return "none"
}

// Decision is the result of Authorize.
type Decision struct {
	Outcome  Outcome
	Location string
	Reason   Reason
}

// Routes classifies paths. Prefixes match whole segments: "/admin" covers "/admin"
// and "/admin/users" but not "/administrator". Entries in PublicExact match only
// the exact path.
type Routes struct {
	PublicExact []string
	Public      []string
	AuthPages   []string
	Admin       []string
	Protected   []string
	AdminHome   string
	MemberHome  string
	LoginPage   string
}

// DefaultRoutes returns the route table served by the application.
func DefaultRoutes() Routes {
	return Routes{
		PublicExact: []string{"/"},
		Public: []string{
			"/static",
			"/favicon.ico",
			"/address-lookup",
			"/users/register",
			"/healthz",
			"/status",
			"/metrics",
		},
		AuthPages:  []string{"/login", "/register"},
		Admin:      []string{"/admin"},
		Protected:  []string{"/dashboard", "/admin"},
		AdminHome:  "/admin",
		MemberHome: "/dashboard",
		LoginPage:  "/login",
	}
}

// Engine evaluates the route table.
type Engine struct {
	routes Routes
}

// NewEngine builds an Engine over routes.
func NewEngine(routes Routes) *Engine {
	return &Engine{routes: routes}
}

// Routes exposes the table the engine evaluates.
func (e *Engine) Routes() Routes {
	return e.routes
}

// IsAdmin is the role check shared by the route table and the admin API guard.
func IsAdmin(claims *shared.Claims) bool {
	return claims.IsAdmin()
}

// Authorize decides the outcome for path given the caller's claims. Nil claims mean
// no valid session. Rules are evaluated in order and the first match wins.
func (e *Engine) Authorize(requestPath string, claims *shared.Claims) Decision {
	p := cleanPath(requestPath)
	authenticated := claims != nil

	if e.isPublic(p) {
		return Decision{Outcome: Allow}
	}
	if matchAny(p, e.routes.AuthPages) {
		if !authenticated {
			return Decision{Outcome: Allow}
		}
		if IsAdmin(claims) {
			return Decision{Outcome: Redirect, Location: e.routes.AdminHome}
		}
		return Decision{Outcome: Redirect, Location: e.routes.MemberHome}
	}
	if matchAny(p, e.routes.Admin) {
		if !authenticated {
			return Decision{Outcome: Deny, Reason: ReasonUnauthenticated}
		}
		if !IsAdmin(claims) {
			return Decision{Outcome: Deny, Reason: ReasonForbidden}
		}
		return Decision{Outcome: Allow}
	}
	if matchAny(p, e.routes.Protected) {
		if !authenticated {
			return Decision{Outcome: Deny, Reason: ReasonUnauthenticated}
		}
		return Decision{Outcome: Allow}
	}
	return Decision{Outcome: Allow}
}

func (e *Engine) isPublic(p string) bool {
	for _, exact := range e.routes.PublicExact {
		if p == exact {
			return true
		}
	}
	return matchAny(p, e.routes.Public)
}

func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

func matchAny(p string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if matchPrefix(p, prefix) {
			return true
		}
	}
	return false
}

func matchPrefix(p, prefix string) bool {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return true
	}
	if p == prefix {
		return true
	}
	return strings.HasPrefix(p, prefix+"/")
}
