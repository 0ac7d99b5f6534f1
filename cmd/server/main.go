package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Harshitk-cp/tenantbridge/internal/api"
	"github.com/Harshitk-cp/tenantbridge/internal/buildconfig"
	"github.com/Harshitk-cp/tenantbridge/internal/config"
	"github.com/Harshitk-cp/tenantbridge/internal/domain"
	"github.com/Harshitk-cp/tenantbridge/internal/index"
	"github.com/Harshitk-cp/tenantbridge/internal/metrics"
	"github.com/Harshitk-cp/tenantbridge/internal/notify"
	"github.com/Harshitk-cp/tenantbridge/internal/service"
	"github.com/Harshitk-cp/tenantbridge/internal/store"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := config.Load(); err != nil {
		bootstrap, _ := zap.NewProduction()
		bootstrap.Fatal("failed to load config", zap.Error(err))
	}

	logger := newLogger(config.LogLevel())
	defer func() { _ = logger.Sync() }()

	logger.Info("starting tenantbridge", zap.String("build", buildconfig.String()))

	ctx := context.Background()
	checks := map[string]api.Pinger{}

	var tenantStore domain.TenantStore
	switch config.StoreBackend() {
	case "memory":
		logger.Warn("using in-memory tenant store; records are lost on restart")
		tenantStore = store.NewInMemoryTenantStore()
	default:
		dbURL := config.DatabaseURL()
		if dbURL == "" {
			logger.Fatal("DATABASE_URL is required")
		}

		pool, err := pgxpool.New(ctx, dbURL)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer pool.Close()

		if err := pool.Ping(ctx); err != nil {
			logger.Fatal("failed to ping database", zap.Error(err))
		}
		if err := store.EnsureSchema(ctx, pool); err != nil {
			logger.Fatal("failed to apply schema", zap.Error(err))
		}
		logger.Info("connected to database")

		tenantStore = store.NewTenantStore(pool)
		checks["store"] = pool
	}

	// The index and notifier stay untyped nil when not configured.
	var tenantIndex domain.TenantIndex
	if url := config.RedisURL(); url != "" {
		idx, err := index.NewRedisIndex(ctx, url, logger)
		if err != nil {
			logger.Warn("tenant index unavailable, continuing without it", zap.Error(err))
		} else {
			defer func() { _ = idx.Close() }()
			tenantIndex = idx
			checks["index"] = idx
			logger.Info("connected to tenant index")
		}
	}

	notifier, err := notify.New(notify.Config{
		Provider:      config.NotifyProvider(),
		To:            config.NotifyTo(),
		From:          config.NotifyFrom(),
		SMTPHost:      config.SMTPHost(),
		SMTPPort:      config.SMTPPort(),
		SMTPUsername:  config.SMTPUsername(),
		SMTPPassword:  config.SMTPPassword(),
		SMTPSecurity:  config.SMTPSecurity(),
		MailgunDomain: config.MailgunDomain(),
		MailgunAPIKey: config.MailgunAPIKey(),
		MailgunRegion: config.MailgunRegion(),
	}, logger)
	if err != nil {
		logger.Fatal("invalid notification config", zap.Error(err))
	}
	logger.Info("new tenant notifications enabled", zap.String("provider", config.NotifyProvider()))

	m := metrics.New()

	tenantSvc := service.NewTenantService(tenantStore, tenantIndex, notifier, m, logger)
	tenantSvc.SetTimeouts(config.StoreTimeout(), config.NotifyTimeout())

	var reconciler *service.IndexReconciler
	if tenantIndex != nil && config.IndexReconcileInterval() > 0 {
		reconciler = service.NewIndexReconciler(tenantStore, tenantIndex, m, logger)
		reconciler.SetInterval(config.IndexReconcileInterval())
		reconciler.Start()
	}

	turnSvc := service.NewTurnService(tenantSvc, service.TurnDefaults{
		APIKey:      config.VoiceflowAPIKey(),
		VersionID:   config.VoiceflowVersion(),
		CompanyName: config.CompanyName(),
	}, m, logger)

	if config.AdminAPIKey() == "" {
		logger.Warn("ADMIN_API_KEY not set, administrative endpoints disabled")
	}

	app := api.NewApp(api.Deps{
		Tenants:        tenantSvc,
		Turns:          turnSvc,
		Metrics:        m,
		Logger:         logger,
		HealthChecks:   checks,
		AdminAPIKey:    config.AdminAPIKey(),
		RateLimitRPS:   config.RateLimitRPS(),
		RateLimitBurst: config.RateLimitBurst(),
	})

	addr := config.ServerAddr()
	srv := &http.Server{
		Addr:              addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	app.Close()
	if reconciler != nil {
		reconciler.Stop()
	}
	// Let in-flight new-tenant notifications finish before the clients close.
	tenantSvc.Close()

	logger.Info("server stopped")
}

func newLogger(level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if lvl, err := zapcore.ParseLevel(level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	logger, err := cfg.Build()
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}
