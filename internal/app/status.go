package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/odyssey-erp/accounts/internal/account"
	"github.com/odyssey-erp/accounts/internal/platform/httpx"
)

// Pinger reports database reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StatsReader counts accounts.
type StatsReader interface {
	Stats(ctx context.Context) (account.Stats, error)
}

type statusResponse struct {
	Status    string        `json:"status"`
	Database  string        `json:"database"`
	Accounts  *statusCounts `json:"accounts,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

type statusCounts struct {
	Total  int64 `json:"total"`
	Admins int64 `json:"admins"`
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusHandler reports database reachability and account counts. It never echoes
// configuration values.
func statusHandler(logger *slog.Logger, db Pinger, stats StatsReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := statusResponse{Status: "ok", Database: "connected", Timestamp: time.Now().UTC()}
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		if db == nil {
			resp.Status, resp.Database = "degraded", "unconfigured"
			httpx.JSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		if err := db.Ping(ctx); err != nil {
			logger.Warn("status: database unreachable", slog.Any("error", err))
			resp.Status, resp.Database = "error", "unreachable"
			httpx.JSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		if stats != nil {
			s, err := stats.Stats(ctx)
			if err != nil {
				logger.Warn("status: count accounts", slog.Any("error", err))
			} else {
				resp.Accounts = &statusCounts{Total: s.Total, Admins: s.Admins}
			}
		}
		httpx.JSON(w, http.StatusOK, resp)
	}
}
