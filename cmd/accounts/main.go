package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/odyssey-erp/accounts/internal/account"
	"github.com/odyssey-erp/accounts/internal/address"
	"github.com/odyssey-erp/accounts/internal/app"
	"github.com/odyssey-erp/accounts/internal/auth"
	"github.com/odyssey-erp/accounts/internal/credential"
	"github.com/odyssey-erp/accounts/internal/gate"
	"github.com/odyssey-erp/accounts/internal/observability"
	"github.com/odyssey-erp/accounts/internal/platform/cache"
	"github.com/odyssey-erp/accounts/internal/platform/db"
	"github.com/odyssey-erp/accounts/internal/policy"
	"github.com/odyssey-erp/accounts/internal/registration"
	"github.com/odyssey-erp/accounts/internal/shared"
	"github.com/odyssey-erp/accounts/internal/view"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	if err := run(ctx, stop, cfg, logger); err != nil {
		logger.Error("accounts exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, stop context.CancelFunc, cfg *app.Config, logger *slog.Logger) error {
	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return err
	}
	defer dbpool.Close()

	if cfg.DBMigrate {
		if err := db.Migrate(ctx, dbpool, logger); err != nil {
			return err
		}
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	templates, err := view.NewEngine()
	if err != nil {
		return err
	}

	metrics := observability.NewMetrics()
	emails := policy.New(cfg.DisposableEmailDomains...)
	hasher := credential.NewHasher(credential.DefaultParams)

	accountRepo := account.NewRepository(dbpool)
	accountService := account.NewService(accountRepo, emails, hasher, logger)
	if cfg.BootstrapAdminEnabled() {
		if _, err := accountService.EnsureAdmin(ctx, account.BootstrapAdmin{
			Name:     cfg.AdminName,
			Email:    cfg.AdminEmail,
			Password: cfg.AdminPassword,
		}); err != nil {
			return err
		}
	}

	addressCache := address.NewCache(
		address.NewViaCEP(cfg.AddressLookupURL, cfg.AddressLookupTimeout),
		address.WithTTL(cfg.AddressCacheTTL),
		address.WithMetrics(address.NewMetrics(metrics.Registerer())),
	)
	defer addressCache.Purge()

	issuer, err := auth.NewIssuer(cfg.SessionSecret, cfg.SessionTTL)
	if err != nil {
		return err
	}
	authService := auth.NewService(accountRepo, hasher, issuer, auth.NewRedisRevocations(redisClient), logger).
		WithObserver(metrics)
	sessionManager := shared.NewSessionManager(cfg.SessionCookie, cfg.SessionTTL, cfg.IsProduction())
	authLimiter := app.AuthRateLimit(cfg)

	pipeline := registration.NewPipeline(accountRepo, emails, addressCache, hasher, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:              logger,
		Config:              cfg,
		Templates:           templates,
		SessionManager:      sessionManager,
		Verifier:            authService,
		Gate:                gate.NewEngine(gate.DefaultRoutes()),
		AuthHandler:         auth.NewHandler(logger, authService, templates, sessionManager, authLimiter),
		AccountHandler:      account.NewHandler(logger, accountService),
		RegistrationHandler: registration.NewHandler(logger, pipeline, templates, authLimiter),
		AddressHandler:      address.NewHandler(logger, addressCache),
		Accounts:            accountRepo,
		Admin:               accountService,
		DB:                  dbpool,
		Stats:               accountService,
		Metrics:             metrics,
	})

	server := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           router,
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
	return nil
}
