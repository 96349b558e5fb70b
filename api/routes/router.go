// api/routes/router.go
package routes

import (
	"fmt"
	"net/http"
	"time"

	"boxoffice/internal/analytics"
	"boxoffice/internal/events"
	"boxoffice/internal/fees"
	"boxoffice/internal/fulfillment"
	"boxoffice/internal/inventory"
	"boxoffice/internal/payments"
	"boxoffice/internal/settlement"
	"boxoffice/internal/shared/config"
	"boxoffice/internal/shared/database"
	"boxoffice/pkg/cache"
	"boxoffice/pkg/lock"
	"boxoffice/pkg/logger"
	"boxoffice/pkg/metrics"
	"boxoffice/pkg/retry"

	"github.com/gin-gonic/gin"
)

// Router holds all route dependencies
type Router struct {
	config *config.Config
	db     *database.DB
	log    *logger.Logger

	locker    lock.Locker
	cache     cache.Service
	publisher fulfillment.Publisher

	eventService       events.Service
	inventoryService   inventory.Service
	paymentService     payments.Service
	fulfillmentService fulfillment.Service
	settlementService  settlement.Service
	analyticsService   analytics.Service
}

// NewRouter builds every service the routes depend on
func NewRouter(cfg *config.Config, db *database.DB, log *logger.Logger) (*Router, error) {
	rates, err := fees.ParseRates(cfg.Fees.PixPercentage, cfg.Fees.CardPercentage)
	if err != nil {
		return nil, err
	}
	calculator := fees.NewCalculator(rates)

	r := &Router{config: cfg, db: db, log: log}
	r.setupInfrastructure()
	if err := r.setupPublisher(); err != nil {
		return nil, err
	}

	pg := db.PostgreSQL

	r.eventService = events.NewService(events.NewRepository(pg), calculator, log)

	r.inventoryService = inventory.NewService(inventory.NewRepository(pg), inventory.Options{
		Retry: retry.Policy{
			MaxAttempts: cfg.Inventory.MaxRetries,
			Initial:     cfg.Inventory.RetryInitial,
			Max:         cfg.Inventory.RetryMax,
		},
		CourtesyCapacity: cfg.Inventory.CourtesyCapacity,
		Locker:           r.locker,
		Logger:           log,
	})

	r.paymentService = payments.NewService(payments.NewRepository(pg), log)

	r.fulfillmentService = fulfillment.NewService(r.inventoryService, r.paymentService, r.eventService, fulfillment.Options{
		AllOrNothing: cfg.Fulfillment.AllOrNothing,
		Locker:       r.locker,
		Publisher:    r.publisher,
		Logger:       log,
	})

	r.settlementService = settlement.NewService(settlement.NewRepository(pg), r.eventService, r.paymentService, calculator, settlement.Options{
		ReleaseWindow: cfg.Settlement.CardReleaseWindow,
		MinWithdrawal: cfg.Settlement.MinWithdrawal,
		BalanceTTL:    cfg.Redis.BalanceCacheTTL,
		Locker:        r.locker,
		Logger:        log,
	})

	r.analyticsService = analytics.NewService(r.eventService, r.paymentService, r.inventoryService, calculator, log)

	if r.cache != nil {
		r.eventService.SetCacheService(r.cache)
		r.settlementService.SetCacheService(r.cache)
		r.analyticsService.SetCacheService(r.cache)
	}
	return r, nil
}

// setupInfrastructure picks Redis-backed locks and cache when Redis is
// available and falls back to in-process locks without a cache.
func (r *Router) setupInfrastructure() {
	if r.db.Redis == nil {
		r.locker = lock.NewKeyedMutex()
		return
	}

	lockConfig := lock.DefaultRedisConfig()
	if r.config.Redis.LockTTL > 0 {
		lockConfig.TTL = r.config.Redis.LockTTL
		lockConfig.RefreshEvery = r.config.Redis.LockTTL / 3
	}
	r.locker = lock.NewRedisLocker(r.db.Redis, lockConfig)
	r.cache = cache.NewService(r.db.Redis)
}

func (r *Router) setupPublisher() error {
	if !r.config.Kafka.Enabled {
		r.publisher = fulfillment.NopPublisher{}
		return nil
	}

	producerConfig := fulfillment.DefaultProducerConfig()
	producerConfig.Brokers = r.config.Kafka.Brokers
	producerConfig.Topic = r.config.Kafka.TicketsTopic

	publisher, err := fulfillment.NewKafkaPublisher(producerConfig, r.log)
	if err != nil {
		return fmt.Errorf("failed to create tickets publisher: %w", err)
	}
	r.publisher = publisher
	return nil
}

// ConfirmationHandler is what the payments consumer feeds
func (r *Router) ConfirmationHandler() fulfillment.ConfirmationHandler {
	return r.fulfillmentService
}

// Close releases the Kafka producer, if any
func (r *Router) Close() error {
	if publisher, ok := r.publisher.(*fulfillment.KafkaPublisher); ok {
		return publisher.Close()
	}
	return nil
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	r.setupHealthRoutes(engine)

	api := engine.Group(r.config.GetAPIBasePath())
	{
		events.SetupEventRoutes(api, events.NewController(r.eventService))
		inventory.SetupInventoryRoutes(api, inventory.NewController(r.inventoryService, r.eventService))

		verifier := fulfillment.NewWebhookVerifier(r.config.Webhook.Secret)
		if !verifier.Enabled() {
			r.log.Warn("Webhook signature verification disabled")
		}
		fulfillment.SetupFulfillmentRoutes(api, fulfillment.NewController(
			r.fulfillmentService, r.eventService, verifier, r.config.Webhook.SignatureHeader, r.log,
		))

		settlement.SetupSettlementRoutes(api, settlement.NewController(r.settlementService))
		analytics.SetupAnalyticsRoutes(api, analytics.NewController(r.analyticsService, r.eventService))
	}
}

// setupHealthRoutes sets up health check and system status routes
func (r *Router) setupHealthRoutes(engine *gin.Engine) {
	engine.GET("/health", func(c *gin.Context) {
		if err := r.db.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "unhealthy",
				"error":     err.Error(),
				"timestamp": time.Now(),
				"service":   "boxoffice",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"service":   "boxoffice",
			"redis":     r.db.Redis != nil,
			"kafka":     r.config.Kafka.Enabled,
		})
	})

	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
			"version": r.config.APIVersion,
		})
	})

	engine.GET("/metrics", metrics.Handler())
}
