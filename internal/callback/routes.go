package callback

import (
	"net/http"

	"github.com/gigmarket/gigmarket/internal/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// NewRouter builds the listener's routes.
//
//	GET /auth/callback   → h.AuthCallback
//	GET /payment/return  → h.PaymentReturn
//	GET /healthz         → Healthz
//	GET /metrics         → prometheus exposition
//
// Every route is restricted to loopback callers and logged.
func NewRouter(h *Handler, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.WithRequestLogging(logger))
	r.Use(middleware.LoopbackOnly)

	r.Get("/auth/callback", h.AuthCallback)
	r.Get("/payment/return", h.PaymentReturn)
	r.Get("/healthz", Healthz)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
