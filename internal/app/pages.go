package app

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/odyssey-erp/accounts/internal/account"
	"github.com/odyssey-erp/accounts/internal/shared"
	"github.com/odyssey-erp/accounts/internal/view"
)

// AccountReader is what the pages need from account storage.
type AccountReader interface {
	FindByID(ctx context.Context, id string) (*account.Account, error)
}

// AdminReader is what the admin page needs from account administration.
type AdminReader interface {
	List(ctx context.Context) ([]account.Account, error)
	Stats(ctx context.Context) (account.Stats, error)
}

type pages struct {
	logger    *slog.Logger
	templates *view.Engine
	accounts  AccountReader
	admin     AdminReader
}

func (p *pages) home(w http.ResponseWriter, r *http.Request) {
	p.render(w, r, "pages/home.html", "Welcome", nil)
}

// dashboard is reachable only with a session; the gate redirects everyone else.
func (p *pages) dashboard(w http.ResponseWriter, r *http.Request) {
	claims := shared.ClaimsFromContext(r.Context())
	if claims == nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	acc, err := p.accounts.FindByID(r.Context(), claims.Subject)
	if err != nil {
		p.logger.Warn("dashboard account lookup", slog.String("account_id", claims.Subject), slog.Any("error", err))
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	p.render(w, r, "pages/dashboard.html", "Dashboard", map[string]any{"Account": acc})
}

func (p *pages) adminHome(w http.ResponseWriter, r *http.Request) {
	stats, err := p.admin.Stats(r.Context())
	if err != nil {
		p.fail(w, "admin stats", err)
		return
	}
	accounts, err := p.admin.List(r.Context())
	if err != nil {
		p.fail(w, "admin list", err)
		return
	}
	p.render(w, r, "pages/admin.html", "Administration", map[string]any{"Stats": stats, "Accounts": accounts})
}

func (p *pages) render(w http.ResponseWriter, r *http.Request, name, title string, data any) {
	viewData := view.TemplateData{
		Title:       title,
		CurrentPath: r.URL.Path,
		Claims:      shared.ClaimsFromContext(r.Context()),
		Data:        data,
	}
	if err := p.templates.Render(w, http.StatusOK, name, viewData); err != nil {
		p.logger.Error("render page", slog.String("template", name), slog.Any("error", err))
	}
}

func (p *pages) fail(w http.ResponseWriter, what string, err error) {
	p.logger.Error(what, slog.Any("error", err))
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}
