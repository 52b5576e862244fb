package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/kelmah/review-verification/internal/iprisk"
	"github.com/kelmah/review-verification/internal/textanalysis"
	"github.com/kelmah/review-verification/internal/verification"
	"github.com/kelmah/review-verification/pkg/common"
	"github.com/kelmah/review-verification/pkg/config"
	"github.com/kelmah/review-verification/pkg/database"
	"github.com/kelmah/review-verification/pkg/eventbus"
	"github.com/kelmah/review-verification/pkg/health"
	"github.com/kelmah/review-verification/pkg/logger"
	"github.com/kelmah/review-verification/pkg/middleware"
	"github.com/kelmah/review-verification/pkg/redis"
	"github.com/kelmah/review-verification/pkg/resilience"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	serviceName    = "review-verification"
	serviceVersion = "1.0.0"
	maxBodyBytes   = 1 << 20
)

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	if err := logger.Init(cfg.Server.Environment, zap.String("service", serviceName)); err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Server.Environment,
			Release:     serviceName + "@" + serviceVersion,
		}); err != nil {
			logger.Warn("Failed to initialize Sentry", zap.Error(err))
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(cfg.Database.URL()); err != nil {
			logger.Fatal("Failed to run migrations", zap.Error(err))
		}
	}

	pool, err := database.NewPostgresPool(ctx, &cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(pool)

	checks := map[string]func() error{
		"database": health.DatabaseChecker(pool),
	}

	// Redis is optional and only backs the IP info cache
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redis.NewRedisClient(&cfg.Redis)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		checks["redis"] = health.RedisChecker(redisClient.Client)
	}

	// Event bus
	var events eventbus.Publisher = eventbus.NoopPublisher{}
	if cfg.NATS.URL != "" {
		publisher, err := eventbus.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.SubjectPrefix, serviceName)
		if err != nil {
			logger.Warn("NATS unavailable, verification events will be dropped", zap.Error(err))
		} else {
			events = publisher
		}
	}
	defer events.Close()

	ipService, closeIP := buildIPRisk(ctx, cfg, redisClient)
	defer closeIP()

	textAnalyzer := buildTextAnalyzer(cfg)

	repo := verification.NewRepository(pool)
	service := verification.NewService(repo, textAnalyzer, ipService, events)
	handler := verification.NewHandler(service)

	router := setupRouter(cfg, handler, checks)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("Review verification service starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down review verification service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
}

func buildIPRisk(ctx context.Context, cfg *config.Config, redisClient *redis.Client) (*iprisk.Service, func()) {
	var cache iprisk.Cache = iprisk.NewMemoryCache(cfg.IPInfo.CacheTTL())
	if cfg.IPInfo.CacheBackend == "redis" {
		if redisClient != nil {
			cache = iprisk.NewRedisCache(redisClient, cfg.IPInfo.CacheTTL())
		} else {
			logger.Warn("Redis IP cache requested but Redis is disabled, using memory cache")
		}
	}

	noop := func() {}
	if !cfg.IPInfo.Enabled {
		return iprisk.NewService(false, nil, cache, nil, 0), noop
	}

	provider, err := iprisk.NewProvider(cfg.IPInfo)
	if err != nil {
		logger.Warn("IP info provider unavailable, locations will be unknown", zap.Error(err))
		return iprisk.NewService(false, nil, cache, nil, 0), noop
	}

	breaker := resilience.NewCircuitBreaker(
		resilience.SettingsFromConfig("ip-info-"+provider.Name(), cfg.Breaker),
		resilience.GracefulDegradation("ip-info"),
	)
	svc := iprisk.NewService(true, provider, cache, breaker, cfg.IPInfo.Timeout())
	svc.StartSweeper(ctx, cfg.IPInfo.SweepInterval())

	logger.Info("IP risk lookups enabled",
		zap.String("provider", provider.Name()),
		zap.String("cache", cfg.IPInfo.CacheBackend),
	)

	closeFn := noop
	if closer, ok := provider.(io.Closer); ok {
		closeFn = func() { _ = closer.Close() }
	}
	return svc, closeFn
}

func buildTextAnalyzer(cfg *config.Config) *textanalysis.Analyzer {
	if !cfg.TextAnalysis.Enabled {
		return textanalysis.NewAnalyzer(nil)
	}

	breaker := resilience.NewCircuitBreaker(
		resilience.SettingsFromConfig("text-analysis", cfg.Breaker),
		resilience.GracefulDegradation("text-analysis"),
	)
	client := textanalysis.NewNLPClient(cfg.TextAnalysis.Endpoint, cfg.TextAnalysis.APIKey, cfg.TextAnalysis.Timeout(), breaker)
	logger.Info("External text analysis enabled", zap.String("endpoint", cfg.TextAnalysis.Endpoint))

	return textanalysis.NewAnalyzer(client)
}

func setupRouter(cfg *config.Config, handler *verification.Handler, checks map[string]func() error) *gin.Engine {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	if cfg.Sentry.DSN != "" {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.Metrics(serviceName))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.MaxBodySize(maxBodyBytes))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = splitOrigins(cfg.Server.CORSOrigins)
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", middleware.CorrelationIDHeader}
	router.Use(cors.New(corsConfig))

	router.GET("/healthz", common.HealthCheckWithDeps(serviceName, serviceVersion, checks))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handler.RegisterRoutes(router, cfg.JWT.Secret)

	return router
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, origin := range strings.Split(raw, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
