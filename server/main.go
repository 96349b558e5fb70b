package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"boxoffice/api/routes"
	"boxoffice/internal/fulfillment"
	"boxoffice/internal/shared/config"
	"boxoffice/internal/shared/database"
	"boxoffice/pkg/logger"
	"boxoffice/pkg/metrics"
	"boxoffice/pkg/ratelimit"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	appLogger := logger.GetDefault()

	if err := godotenv.Load(); err != nil {
		if os.Getenv("GIN_MODE") == "release" || os.Getenv("DOCKER_CONTAINER") == "true" {
			appLogger.Info("Production environment: using container environment variables")
		} else {
			appLogger.Info("No .env file found, using system environment variables")
		}
	} else {
		appLogger.Info("Development environment: loaded .env file")
	}

	cfg := config.Load()
	gin.SetMode(cfg.GinMode)

	db, err := database.InitDB(cfg)
	if err != nil {
		appLogger.Error("Failed to initialize databases", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	var rateLimiter *ratelimit.RateLimiter
	switch {
	case !cfg.RateLimit.Enabled:
		appLogger.Info("Rate limiting disabled")
	case db.Redis == nil:
		appLogger.Warn("Rate limiting requires Redis, continuing without it")
	default:
		rateLimiter = ratelimit.NewRateLimiter(db.Redis, &ratelimit.Config{
			Enabled:            cfg.RateLimit.Enabled,
			WindowDuration:     cfg.RateLimit.WindowDuration,
			DefaultRequests:    cfg.RateLimit.DefaultRequests,
			PublicRequests:     cfg.RateLimit.PublicRequests,
			WebhookRequests:    cfg.RateLimit.WebhookRequests,
			PurchaseRequests:   cfg.RateLimit.PurchaseRequests,
			WithdrawalRequests: cfg.RateLimit.WithdrawalRequests,
			AdminRequests:      cfg.RateLimit.AdminRequests,
			HealthRequests:     cfg.RateLimit.HealthRequests,
			WhitelistedIPs:     cfg.RateLimit.WhitelistedIPs,
		})
		appLogger.Info("Rate limiter initialized",
			slog.Duration("window", cfg.RateLimit.WindowDuration),
			slog.Int("default_requests", cfg.RateLimit.DefaultRequests),
		)
	}

	appRouter, err := routes.NewRouter(cfg, db, appLogger)
	if err != nil {
		appLogger.Error("Failed to build application", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := appRouter.Close(); err != nil {
			appLogger.Error("Error closing tickets publisher", slog.Any("error", err))
		}
	}()

	// Payment confirmations from Kafka
	consumerCtx, consumerCancel := context.WithCancel(context.Background())
	defer consumerCancel()

	if cfg.Kafka.Enabled {
		consumerConfig := fulfillment.DefaultConsumerConfig()
		consumerConfig.Brokers = cfg.Kafka.Brokers
		consumerConfig.GroupID = cfg.Kafka.ConsumerGroup
		consumerConfig.Topics = []string{cfg.Kafka.PaymentsTopic}
		consumerConfig.MaxRetries = cfg.Kafka.MaxRetries
		consumerConfig.RetryBackoffDuration = cfg.Kafka.RetryBackoff

		consumer, err := fulfillment.NewConfirmationConsumer(consumerConfig, appRouter.ConfirmationHandler(), appLogger)
		if err != nil {
			appLogger.Error("Failed to create confirmation consumer", slog.Any("error", err))
			os.Exit(1)
		}
		go consumer.Start(consumerCtx)
		defer func() {
			appLogger.Info("Stopping confirmation consumer...")
			if err := consumer.Stop(); err != nil {
				appLogger.Error("Error stopping confirmation consumer", slog.Any("error", err))
			}
		}()
	} else {
		appLogger.Info("Kafka disabled, confirmations arrive through the webhook only")
	}

	router := setupRouter(cfg, appRouter, rateLimiter)

	srv := &http.Server{
		Addr:           cfg.GetServerAddress(),
		Handler:        router,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
	}

	go func() {
		appLogger.Info("Server running",
			slog.String("address", cfg.GetServerAddress()),
			slog.String("health_check", fmt.Sprintf("http://localhost:%s/health", cfg.Port)),
			slog.String("version", Version),
			slog.String("commit", GitCommit),
			slog.String("build_time", BuildTime),
			slog.Bool("redis", db.Redis != nil),
			slog.Bool("kafka", cfg.Kafka.Enabled),
			slog.Bool("rate_limiting", rateLimiter != nil),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server failed", slog.Any("error", err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down server...")

	consumerCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Forced shutdown", slog.Any("error", err))
	}

	appLogger.Info("Server exited gracefully")
}

func setupRouter(cfg *config.Config, appRouter *routes.Router, rateLimiter *ratelimit.RateLimiter) *gin.Engine {
	engine := gin.New()
	appLogger := logger.GetDefault()

	engine.Use(RequestLoggerMiddleware(appLogger), gin.Recovery(), metrics.PrometheusMiddleware())

	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", cfg.Webhook.SignatureHeader},
		ExposeHeaders:    []string{"Content-Length", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) > 0 && cfg.AllowedOrigins[0] != "*" {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowOriginFunc = func(origin string) bool { return true }
	}
	engine.Use(cors.New(corsConfig))

	if rateLimiter != nil {
		engine.Use(ratelimit.Middleware(rateLimiter))
	}

	appRouter.SetupRoutes(engine)
	return engine
}

func RequestLoggerMiddleware(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		l.LogHTTPRequest(c, time.Since(start))
	}
}
