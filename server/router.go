package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ebogdum/mediasource/auth"
	"github.com/ebogdum/mediasource/config"
	"github.com/ebogdum/mediasource/core"
	"github.com/ebogdum/mediasource/metrics"
	"github.com/ebogdum/mediasource/server/handlers"
	authMiddleware "github.com/ebogdum/mediasource/server/middleware"
)

// Dependencies are the components the router serves.
type Dependencies struct {
	Registry      *core.Registry
	Engine        *core.TransferEngine
	Authenticator auth.Authenticator
	Authorizer    auth.Authorizer
	Server        config.ServerConfig
	// ServeMetrics mounts /metrics on this router.
	ServeMetrics bool
}

// NewRouter creates and configures the HTTP router
func NewRouter(deps Dependencies, logger *zap.Logger) chi.Router {
	api := handlers.NewAPI(deps.Registry, deps.Engine, deps.Authorizer, logger)

	requestTimeout := deps.Server.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 60 * time.Second
	}

	r := chi.NewRouter()

	// Basic middleware
	r.Use(authMiddleware.V1RequestIDMiddleware())
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(authMiddleware.V1SecurityHeaders())
	r.Use(requestLogger(logger))

	// Health check endpoint (no auth required)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		handlers.SendJSONResponse(w, logger, http.StatusOK, map[string]string{"status": "ok"})
	})

	if deps.ServeMetrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(authMiddleware.V1AuthMiddleware(deps.Authenticator, logger))

		// Websocket transfers outlive the request timeout
		r.Get("/transfers/ws", api.TransferWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))

			r.Get("/sources", api.ListSources)
			r.Route("/sources/{source}", func(r chi.Router) {
				r.Get("/", api.GetSource)

				r.Get("/containers", api.ListContainer)
				r.Post("/containers", api.CreateContainer)
				r.Patch("/containers", api.RenameContainer)
				r.Delete("/containers", api.RemoveContainer)

				r.Get("/objects", api.ListObjects)
				r.Post("/objects", api.CreateObject)
				r.Put("/objects", api.UpdateObject)
				r.Patch("/objects", api.RenameObject)
				r.Delete("/objects", api.RemoveObject)
				r.Post("/objects/move", api.MoveObject)

				r.Get("/contents", api.GetObjectContents)
				r.Post("/uploads", api.UploadObjects)
			})

			r.Post("/transfers/plan", api.PlanTransfer)

			rateLimit := deps.Server.TransferRateLimit
			if rateLimit <= 0 {
				rateLimit = 1
			}
			limiter := authMiddleware.NewRateLimiter(rateLimit, deps.Server.TransferBurst)
			r.With(authMiddleware.V1RateLimitMiddleware(limiter, logger)).
				Post("/transfers", api.Transfer)
		})
	})

	logger.Info("HTTP router configured successfully")

	return r
}

// requestLogger records metrics and logs every request by route pattern.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			duration := time.Since(start)
			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(duration.Seconds())

			logger.Info("HTTP request",
				zap.String("request_id", authMiddleware.GetRequestID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("route", route),
				zap.Int("status", status),
				zap.Duration("duration", duration),
				zap.String("user_agent", r.UserAgent()),
				zap.String("remote_addr", r.RemoteAddr))
		})
	}
}
