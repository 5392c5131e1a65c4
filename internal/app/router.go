package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	decisionhandler "sherlock/internal/decision/handler"
	"sherlock/internal/platform/metrics"
	"sherlock/internal/platform/middleware"
	shadowhandler "sherlock/internal/shadow/handler"
	"sherlock/pkg/platform/httputil"
)

const healthTimeout = 2 * time.Second

// RouterDeps are the handlers and middleware inputs for NewRouter. Decision
// is nil in the shadow worker.
type RouterDeps struct {
	Decision    *decisionhandler.Handler
	Shadow      *shadowhandler.Handler
	HTTPMetrics *metrics.Metrics
	Verifier    *middleware.APIKeyVerifier
	Health      func(ctx context.Context) error
	Logger      *slog.Logger
}

// NewRouter mounts the operational endpoints unauthenticated and the API
// behind the API key check.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestContext)
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.AccessLog(deps.Logger))
	if deps.HTTPMetrics != nil {
		r.Use(deps.HTTPMetrics.Middleware)
	}

	r.Get("/healthz", healthHandler(deps.Health))
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAPIKey(deps.Verifier, deps.Logger))
		if deps.Decision != nil {
			deps.Decision.Register(r)
		}
		if deps.Shadow != nil {
			deps.Shadow.Register(r)
		}
	})
	return r
}

func healthHandler(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
			defer cancel()
			if err := check(ctx); err != nil {
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "degraded",
					"error":  err.Error(),
				})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
