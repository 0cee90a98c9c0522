package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Travinkel/belsign-photo-doc-sub006/internal/core/port"
	"github.com/Travinkel/belsign-photo-doc-sub006/internal/infra/config"
	"github.com/Travinkel/belsign-photo-doc-sub006/internal/infra/database"
	kafkainfra "github.com/Travinkel/belsign-photo-doc-sub006/internal/infra/kafka"
	redisinfra "github.com/Travinkel/belsign-photo-doc-sub006/internal/infra/redis"
	"github.com/Travinkel/belsign-photo-doc-sub006/internal/infra/security"
	"github.com/Travinkel/belsign-photo-doc-sub006/internal/infra/storage"
	"github.com/Travinkel/belsign-photo-doc-sub006/internal/infra/telemetry"
	"github.com/Travinkel/belsign-photo-doc-sub006/internal/repository/memory"
	postgresrepo "github.com/Travinkel/belsign-photo-doc-sub006/internal/repository/postgres"
	redisrepo "github.com/Travinkel/belsign-photo-doc-sub006/internal/repository/redis"
	"github.com/Travinkel/belsign-photo-doc-sub006/internal/transport/http/middleware"
	"github.com/Travinkel/belsign-photo-doc-sub006/internal/transport/http/routes"
	"github.com/Travinkel/belsign-photo-doc-sub006/internal/usecase"
)

type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	pool     *pgxpool.Pool
	redis    *redisinfra.Client
	tracker  *memory.LoginTracker
	producer *kafkainfra.Producer
	tracing  *telemetry.TracerProvider
}

// New wires every adapter and service. Resources acquired before a failure are released.
func New(ctx context.Context, cfg *config.AppConfig, log *zap.Logger) (application *Application, err error) {
	if log == nil {
		log = zap.NewNop()
	}
	a := &Application{cfg: cfg, logger: log}
	defer func() {
		if err != nil {
			a.release(context.Background())
		}
	}()

	a.tracing, err = telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	a.pool, err = database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	a.redis, err = redisinfra.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		return nil, fmt.Errorf("init redis: %w", err)
	}

	photoStore, err := storage.NewPhotoStore(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("init photo storage: %w", err)
	}

	hasher, err := security.NewPasswordHasher(security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	})
	if err != nil {
		return nil, fmt.Errorf("configure argon2: %w", err)
	}

	var events port.EventPublisher
	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) > 0 {
		producer, perr := kafkainfra.NewProducer(cfg.Kafka, log)
		if perr != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(perr))
			events = kafkainfra.NewStubPublisher(log)
		} else {
			a.producer = producer
			events = kafkainfra.NewEventPublisher(producer, cfg.App, log)
		}
	} else {
		log.Info("kafka disabled, using stub publisher")
		events = kafkainfra.NewStubPublisher(log)
	}

	authMetrics, err := telemetry.NewAuthMetrics(telemetry.AuthMetricsOptions{})
	if err != nil {
		return nil, fmt.Errorf("init auth metrics: %w", err)
	}
	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	rateLimitWindow := cfg.RateLimit.WindowDuration
	if rateLimitWindow <= 0 {
		rateLimitWindow = time.Minute
	}
	rateLimitStore := redisrepo.NewRateLimitRepository(a.redis.Client(), redisrepo.SlidingWindowConfig{
		KeyPrefix: cfg.Redis.RateLimitPrefix,
		TTL:       rateLimitWindow * 2,
	})
	rateLimiter := middleware.NewRateLimiter(rateLimitStore, log)

	repos := postgresrepo.NewRepositories(a.pool)
	a.tracker = memory.NewLoginTracker(cfg.Auth.TrackerRetention)

	authService := usecase.NewAuthService(cfg.Auth, repos.Users, hasher, a.tracker, events, log).
		WithMetrics(authMetrics)
	userService := usecase.NewUserService(repos.Users, hasher, security.NewPasswordPolicy(), events, log)
	reviewService := usecase.NewReviewService(repos.Users, repos.Orders, repos.Photos, photoStore, events, log).
		WithLoginTracker(a.tracker)
	qualityService := usecase.NewQualityService(repos.Orders, repos.Photos, log)

	a.engine = routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: rateLimiter,
		HTTPMetrics: httpMetrics,
		Database:    a.pool,
		Cache:       a.redis,
		Storage:     photoStore,
		Services: routes.ServiceSet{
			Auth:    authService,
			Users:   userService,
			Reviews: reviewService,
			Quality: qualityService,
		},
	})

	return a, nil
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer a.release(context.Background())

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting BelSign QC API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}

func (a *Application) release(ctx context.Context) {
	if a.tracker != nil {
		_ = a.tracker.Close()
		a.tracker = nil
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("close kafka producer", zap.Error(err))
		}
		a.producer = nil
	}
	if a.redis != nil {
		_ = a.redis.Close()
		a.redis = nil
	}
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
	if a.tracing != nil {
		if err := a.tracing.Shutdown(ctx); err != nil {
			a.logger.Warn("shutdown tracing", zap.Error(err))
		}
		a.tracing = nil
	}
}
