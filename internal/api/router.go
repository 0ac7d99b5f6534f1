package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/Harshitk-cp/tenantbridge/internal/api/handlers"
	mw "github.com/Harshitk-cp/tenantbridge/internal/api/middleware"
	"github.com/Harshitk-cp/tenantbridge/internal/buildconfig"
	"github.com/Harshitk-cp/tenantbridge/internal/domain"
	"github.com/Harshitk-cp/tenantbridge/internal/index"
	"github.com/Harshitk-cp/tenantbridge/internal/metrics"
	"github.com/Harshitk-cp/tenantbridge/internal/notify"
	"github.com/Harshitk-cp/tenantbridge/internal/service"
	"github.com/Harshitk-cp/tenantbridge/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Pinger is a dependency /health can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the process-wide handles built in main.
type Deps struct {
	Tenants *service.TenantService
	Turns   *service.TurnService
	Metrics *metrics.Metrics
	Logger  *zap.Logger

	// HealthChecks are probed by /health, keyed by component name.
	HealthChecks map[string]Pinger

	AdminAPIKey    string
	RateLimitRPS   float64
	RateLimitBurst int
}

// App holds the router and the background work tied to it.
type App struct {
	Router    *chi.Mux
	startTime time.Time
	stop      chan struct{}
	stopOnce  sync.Once
}

func NewApp(d Deps) *App {
	tenantHandler := handlers.NewTenantHandler(d.Tenants)
	messageHandler := handlers.NewMessageHandler(d.Turns)

	r := chi.NewRouter()

	app := &App{
		Router:    r,
		startTime: time.Now(),
		stop:      make(chan struct{}),
	}

	// Global middleware (order matters)
	r.Use(mw.RequestID)                                                          // Generate/extract request ID first
	r.Use(middleware.RealIP)                                                     // Extract real IP
	r.Use(mw.Metrics(d.Metrics))                                                 // Collect metrics
	r.Use(mw.Logging(d.Logger))                                                  // Log all requests
	r.Use(middleware.Recoverer)                                                  // Recover from panics
	r.Use(mw.RateLimit(d.RateLimitRPS, d.RateLimitBurst, mw.ClientIP, app.stop)) // Rate limiting

	// Health (no auth)
	r.Get("/health", app.healthHandler(d.HealthChecks))

	// Metrics (no auth)
	r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())

	// Bot messaging endpoint
	r.Post("/api/messages", messageHandler.Receive)

	// Administrative console
	r.Route("/v1/tenants", func(r chi.Router) {
		r.Use(mw.AdminAuth(d.AdminAPIKey))

		r.Get("/", tenantHandler.List)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", tenantHandler.Get)
			r.Put("/credentials", tenantHandler.UpdateCredentials)
		})
	})

	return app
}

// Close stops the background work started by NewApp.
func (app *App) Close() {
	app.stopOnce.Do(func() { close(app.stop) })
}

func (app *App) healthHandler(checks map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		components := make(map[string]string, len(checks))
		for name, c := range checks {
			if err := c.Ping(ctx); err != nil {
				components[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			components[name] = "ok"
		}

		overall := "ok"
		if status != http.StatusOK {
			overall = "error"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":         overall,
			"components":     components,
			"build":          buildconfig.VersionInfo(),
			"uptime_seconds": time.Since(app.startTime).Seconds(),
		})
	}
}

// Ensure stores and clients satisfy interfaces at compile time.
var (
	_ domain.TenantStore    = (*store.TenantStore)(nil)
	_ domain.TenantStore    = (*store.InMemoryTenantStore)(nil)
	_ domain.TenantIndex    = (*index.RedisIndex)(nil)
	_ domain.TenantNotifier = (*notify.LogNotifier)(nil)
	_ domain.TenantNotifier = (*notify.SMTPNotifier)(nil)
	_ domain.TenantNotifier = (*notify.MailgunNotifier)(nil)
	_ Pinger                = (*index.RedisIndex)(nil)
)
