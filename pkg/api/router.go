// Package api wires the hub's HTTP surface: the node WebSocket endpoints,
// the frontend streaming and admin endpoints, health, and metrics.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marmos91/sdrhub/internal/logger"
	"github.com/marmos91/sdrhub/pkg/api/handlers"
	"github.com/marmos91/sdrhub/pkg/metrics"
	"github.com/marmos91/sdrhub/pkg/protocol"
	"github.com/marmos91/sdrhub/pkg/registry"
	"github.com/marmos91/sdrhub/pkg/store"
)

// Deps carries everything the router hands to the handlers.
type Deps struct {
	Registry     *registry.Registry
	Store        store.Store
	Metrics      metrics.HubMetrics
	NodeDefaults protocol.NodeConfig

	// PromRegistry, when set, exposes GET /metrics.
	PromRegistry *prometheus.Registry
}

// NewRouter creates and configures the chi router with all middleware and
// routes.
//
// No request timeout middleware is installed: every WebSocket endpoint is
// long-lived by design.
//
// Routes:
//   - GET  /node/api/control - node control session (WebSocket)
//   - GET  /node/api/data/{kind}/{freq}/{amp}/{lna}/{vga}/{sample_rate} - node ingest (WebSocket)
//   - GET  /frontend_api/data/{node_id}/{kind} - live stream or archived replay (WebSocket)
//   - GET  /frontend_api/nodes - node listing
//   - POST /frontend_api/config - config update
//   - GET  /health - liveness probe
//   - GET  /metrics - Prometheus metrics (when enabled)
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(crossOriginHeaders)

	h := handlers.New(deps.Registry, deps.Store, deps.Metrics, deps.NodeDefaults)

	r.Route("/node/api", func(r chi.Router) {
		r.Get("/control", h.NodeControl)
		r.Get("/data/{kind}/{freq}/{amp}/{lna}/{vga}/{sample_rate}", h.NodeData)
	})

	r.Route("/frontend_api", func(r chi.Router) {
		r.Get("/data/{node_id}/{kind}", h.FrontendData)
		r.Get("/nodes", h.ListNodes)
		r.Post("/config", h.UpdateConfig)
	})

	r.Get("/health", h.Health)

	if deps.PromRegistry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.PromRegistry, promhttp.HandlerOpts{}))
	}

	return r
}

// crossOriginHeaders opens the API to any origin and opts every response
// into cross-origin isolation. The spectrum frontend needs
// SharedArrayBuffer for its render pipeline, which browsers only enable
// under COEP require-corp + COOP same-origin.
func crossOriginHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Cross-Origin-Embedder-Policy", "require-corp")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogger is a custom middleware that logs requests using the
// internal logger.
//
// It logs:
//   - Request start (DEBUG level): method, path, remote addr
//   - Request completion (INFO level): method, path, status, duration
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		logger.Debug("API request started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		// Wrap response writer to capture status code
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		duration := time.Since(start)

		logger.Info("API request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", duration.String(),
		)
	})
}
