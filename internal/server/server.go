package server

import (
	"bufio"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/edgetensor/fleetdash/internal/config"
	"github.com/edgetensor/fleetdash/internal/handlers"
	"github.com/edgetensor/fleetdash/internal/metrics"
	"github.com/edgetensor/fleetdash/internal/middleware"
	"github.com/edgetensor/fleetdash/internal/websocket"
	gorillahandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// signedURLWindow is the window of the signed URL rate limit.
const signedURLWindow = time.Minute

func NewServer(cfg *config.Config, deps *handlers.Dependencies) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      NewRouter(cfg, deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}

// NewRouter builds the public handler: the REST API, signed media, the
// dashboard pages and the live map websocket.
func NewRouter(cfg *config.Config, deps *handlers.Dependencies) http.Handler {
	r := mux.NewRouter()
	r.Use(loggingMiddleware)

	cors := gorillahandlers.CORS(
		gorillahandlers.AllowedOrigins(cfg.API.AllowedOrigins),
		gorillahandlers.AllowedMethods([]string{http.MethodGet, http.MethodOptions}),
		gorillahandlers.AllowedHeaders([]string{"Content-Type", "X-API-Key"}),
	)
	apiKey := middleware.APIKeyMiddleware(cfg.API.Key)

	// REST API consumed by the dashboard views and external clients
	api := r.PathPrefix("/api/v2.0/devices/matrack").Subrouter()
	api.Use(cors, apiKey)
	api.HandleFunc("", handlers.ListDevicesHandler(deps)).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/{id}/location", handlers.DeviceLocationHandler(deps)).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/{id}/history", handlers.DeviceHistoryHandler(deps)).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/{id}/trips", handlers.DeviceTripsHandler(deps)).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/{id}/alarms", handlers.DeviceAlarmsHandler(deps)).Methods(http.MethodGet, http.MethodOptions)

	// Signed media URLs, rate limited per client
	signed := r.PathPrefix("/dashcamAlertFiles").Subrouter()
	signed.Use(cors, apiKey)
	if deps.Conns != nil && deps.Conns.Redis != nil {
		signed.Use(middleware.RateLimitMiddleware(deps.Conns.Redis, "signed_url",
			int64(cfg.API.SignedURLRateLimit), signedURLWindow))
	}
	signed.HandleFunc("/getSignedUrl", handlers.SignedURLHandler(deps)).Methods(http.MethodGet, http.MethodOptions)

	r.HandleFunc("/media/{path:.+}", handlers.MediaHandler(deps)).Methods(http.MethodGet, http.MethodHead)

	r.HandleFunc(handlers.MapWebSocketPath,
		websocket.MapWebSocketHandler(deps.Hub, deps.LiveMap, cfg.Server.ExposedDomain))

	// Dashboard pages
	pages := r.NewRoute().Subrouter()
	pages.Use(middleware.SecurityHeadersMiddleware(cfg.Media.BaseURL))
	pages.HandleFunc("/", handlers.LiveMapPageHandler(deps)).Methods(http.MethodGet)
	pages.HandleFunc("/devices/{id}", handlers.DeviceDetailPageHandler(deps)).Methods(http.MethodGet)
	pages.HandleFunc("/devices/{id}/history", handlers.TripHistoryPageHandler(deps)).Methods(http.MethodGet)

	// Apply middleware chain:
	// 1. Recover - outermost so every panic becomes a 500
	// 2. Request ID
	// 3. Remote metadata (Cloudflare headers, HTTPS redirect, HSTS)
	// 4. Logging and metrics - inside the router so the route template is known
	return middleware.Recover(
		middleware.RequestIDMiddleware(
			middleware.RemoteMetadataMiddleware(cfg.Server.ExposedDomain, cfg.Server.TrustedProxies)(r),
		),
	)
}

// NewMetricsServer creates a new HTTP server for internal metrics and health checks
// This server should not be exposed to the public internet
func NewMetricsServer(cfg *config.Config, deps *handlers.Dependencies) *http.Server {
	mux := http.NewServeMux()

	// Health check endpoints
	mux.HandleFunc("/health", handlers.HealthHandler)
	mux.HandleFunc("/ready", handlers.ReadyHandler(deps))

	// Prometheus metrics endpoint
	mux.Handle("/metrics", promhttp.Handler())

	return &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler: mux,
	}
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap ResponseWriter to capture status code
		sw := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}

		// Serve the request
		next.ServeHTTP(sw, r)

		// Calculate duration
		duration := time.Since(start)

		// Label by route template so path parameters don't explode cardinality
		route := routeTemplate(r)

		metrics.HTTPRequestDuration.WithLabelValues(
			r.Method,
			route,
			strconv.Itoa(sw.statusCode),
		).Observe(duration.Seconds())

		metrics.HTTPRequestsTotal.WithLabelValues(
			r.Method,
			route,
			strconv.Itoa(sw.statusCode),
		).Inc()

		// Log the request
		slog.Info("http.request",
			"method", r.Method,
			"path", r.URL.Path,
			"route", route,
			"status", sw.statusCode,
			"duration_ms", duration.Milliseconds(),
			"remote_addr", middleware.RemoteFromContext(r.Context()).IP,
			"request_id", middleware.RequestIDFromContext(r.Context()),
			"user_agent", r.UserAgent(),
		)
	})
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// statusWriter wraps http.ResponseWriter to capture the status code
type statusWriter struct {
	http.ResponseWriter
	statusCode int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.statusCode = code
	sw.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrade through the wrapper.
func (sw *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := sw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	sw.statusCode = http.StatusSwitchingProtocols
	return hj.Hijack()
}
