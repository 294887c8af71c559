package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/ridehouse/api/internal/platform/auth"
	"github.com/ridehouse/api/internal/platform/observability"
)

// RouterConfig carries everything the HTTP surface needs.
type RouterConfig struct {
	Logger   *zap.Logger
	Auth     *auth.Middleware
	Sales    *SalesHandler
	Tracking *TrackingHandler
}

// NewRouter assembles the chi router: request ID and logging middleware, a
// public health probe, and the authenticated sale routes.
func NewRouter(cfg RouterConfig) (chi.Router, error) {
	if cfg.Auth == nil {
		return nil, errors.New("router requires auth middleware")
	}
	if cfg.Sales == nil || cfg.Tracking == nil {
		return nil, errors.New("router requires sales and tracking handlers")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(cfg.Auth.Handler)
		api.Route("/sales", func(sales chi.Router) {
			cfg.Sales.Routes(sales)
			sales.Route("/{saleID}/tracking", cfg.Tracking.Routes)
		})
	})

	return r, nil
}
