package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Travinkel/belsign-photo-doc-sub006/internal/core/domain"
	"github.com/Travinkel/belsign-photo-doc-sub006/internal/infra/config"
	"github.com/Travinkel/belsign-photo-doc-sub006/internal/transport/http/handlers"
	"github.com/Travinkel/belsign-photo-doc-sub006/internal/transport/http/middleware"
	"github.com/Travinkel/belsign-photo-doc-sub006/internal/usecase"
)

// ReviewService covers the approval decisions exposed over HTTP.
type ReviewService interface {
	handlers.UserReviewer
	handlers.OrderApprover
	handlers.PhotoReviewer
}

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Auth    handlers.SessionService
	Users   handlers.AccountService
	Reviews ReviewService
	Quality handlers.QualityQueries
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	RateLimiter *middleware.RateLimiter
	HTTPMetrics *middleware.HTTPMetrics
	Services    ServiceSet
	Database    DatabaseChecker
	Cache       CacheChecker
	Storage     CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache and object storage backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Tracing(middleware.TracingOptions{}))
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	if deps.HTTPMetrics != nil {
		r.Use(deps.HTTPMetrics.Handler())
	}
	if len(deps.Config.App.AllowedOrigins) > 0 {
		r.Use(middleware.CORS(deps.Config.App.AllowedOrigins))
	}

	healthOptions := make([]handlers.HealthOption, 0, 3)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}
	if deps.Storage != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("storage", deps.Storage.HealthCheck))
	}

	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	svc := deps.Services
	if svc.Auth == nil {
		return r
	}

	productionOnly := middleware.RequireAccess(usecase.NewAccessController(svc.Auth, domain.ProductionPolicy))
	qaOnly := middleware.RequireAccess(usecase.NewAccessController(svc.Auth, domain.QAPolicy))
	adminOnly := middleware.RequireAccess(usecase.NewAccessController(svc.Auth, domain.AdminPolicy))

	api := r.Group("/api/v1")
	{
		sessionHandler := handlers.NewSessionHandler(svc.Auth, idleTimeout(deps.Config).String())
		sessionHandler.RegisterRoutes(api.Group("/session"), buildLoginMiddlewares(deps)...)

		if svc.Users != nil && svc.Reviews != nil {
			handlers.NewUserHandler(svc.Users, svc.Reviews).RegisterRoutes(api.Group("/users"), adminOnly)
		}

		if svc.Quality != nil && svc.Reviews != nil {
			handlers.NewOrderHandler(svc.Quality, svc.Reviews).RegisterRoutes(api.Group("/orders"), productionOnly, qaOnly)
		}

		if svc.Reviews != nil {
			handlers.NewPhotoHandler(svc.Reviews).RegisterRoutes(api.Group("/photos"), qaOnly)
		}
	}

	return r
}

func idleTimeout(cfg *config.AppConfig) time.Duration {
	if cfg == nil || cfg.Auth.SessionIdleTimeout <= 0 {
		return usecase.DefaultSessionIdleTimeout
	}
	return cfg.Auth.SessionIdleTimeout
}

func buildLoginMiddlewares(deps Dependencies) []gin.HandlerFunc {
	if deps.RateLimiter == nil || deps.Config == nil {
		return nil
	}

	limit := deps.Config.RateLimit.LoginMaxAttempts
	if limit <= 0 {
		return nil
	}

	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Minute
	}

	rule := middleware.RateLimitRule{
		Name:       "session_login_ip",
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	}

	return []gin.HandlerFunc{deps.RateLimiter.RateLimit(rule)}
}
