package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/upb/worldedit-policy/app"
	"github.com/upb/worldedit-policy/utils"
	"go.uber.org/zap"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(deps.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// Cross-origin access is off unless origins are listed explicitly
	if origins := deps.Config.Server.AllowedOrigins; len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	requireAdmin := chi.Chain(
		deps.AuthMiddleware.RequireAuth,
		deps.AuthMiddleware.RequireRole(deps.Config.Auth.AdminRole),
	)

	// Health check endpoints
	r.Get("/healthz", deps.Health.HandleHealth)
	r.Get("/readyz", deps.Health.HandleReadiness)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/limits", func(r chi.Router) {
			r.Get("/", deps.LimitsHandler.HandleGetLimits)
			r.With(requireAdmin...).Post("/reload", deps.LimitsHandler.HandleReload)
			r.Post("/radius/check", deps.LimitsHandler.HandleCheckRadius)
			r.Post("/brush-radius/check", deps.LimitsHandler.HandleCheckBrushRadius)
			r.Get("/polygon-points", deps.LimitsHandler.HandlePolygonPointLimit)
			r.Get("/change-limit", deps.LimitsHandler.HandleChangeLimit)
			r.Get("/butcher-radius", deps.LimitsHandler.HandleButcherRadius)
			r.Get("/blocks/{blockID}", deps.LimitsHandler.HandleBlockPlacement)
		})

		r.Route("/permissions", func(r chi.Router) {
			r.Get("/cache", deps.PermissionHandler.HandleCacheStats)

			// Admin routes
			r.Group(func(r chi.Router) {
				r.Use(requireAdmin...)
				r.Get("/{callerID}", deps.PermissionHandler.HandleListPermissions)
				r.Put("/{callerID}/{permission}", deps.PermissionHandler.HandleGrant)
				r.Delete("/{callerID}/{permission}", deps.PermissionHandler.HandleRevoke)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "endpoint not found")
	})

	return r
}

// requestLogger logs each request through zap
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Info("http request",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)))
		})
	}
}
