package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"replyhub/internal/http/handlers"
	"replyhub/internal/middleware"
	"replyhub/internal/telemetry"
)

// NewRouter wires the admin/ops surface. Everything except health and
// metrics sits behind the admin token.
func NewRouter(app *handlers.App, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(logger),
		middleware.CORS(app.Cfg.CORSAllowedOrigins),
		middleware.RateLimit(app.Cfg.RateLimitPerMin, time.Minute),
	)

	r.Get("/v1/healthz", app.Health)
	r.Method(http.MethodGet, "/metrics", telemetry.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.AdminAuth(app.Cfg.AdminToken))

		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", app.ListJobs)
			r.Get("/{id}", app.GetJob)
		})

		r.Route("/ops", func(r chi.Router) {
			r.Get("/status", app.OpsStatus)
			r.Post("/kill-switch", app.SetKillSwitch)
			r.Post("/sync/run", app.EnqueueSync)
			r.Post("/jobs/retry-failed", app.RetryFailed)
			r.Post("/jobs/cancel", app.CancelJobs)
			r.Get("/jobs/failed/export", app.ExportFailedJobs)
		})

		r.Route("/shops/{id}", func(r chi.Router) {
			r.Get("/billing", app.ShopBilling)
			r.Post("/credits", app.TopUpCredits)
		})
	})

	return r
}
