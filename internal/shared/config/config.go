package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for our application
type Config struct {
	// Server configuration
	Port           string
	GinMode        string
	APIVersion     string
	APIPrefix      string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	AllowedOrigins []string

	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	RateLimit   RateLimitConfig
	Kafka       KafkaConfig
	Fees        FeesConfig
	Inventory   InventoryConfig
	Fulfillment FulfillmentConfig
	Settlement  SettlementConfig
	Webhook     WebhookConfig

	// Logging
	LogLevel string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
	DSN      string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
	Addr     string

	BalanceCacheTTL time.Duration
	LockTTL         time.Duration
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret string
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled            bool          `json:"enabled"`
	WindowDuration     time.Duration `json:"window_duration"`
	DefaultRequests    int           `json:"default_requests"`
	PublicRequests     int           `json:"public_requests"`
	WebhookRequests    int           `json:"webhook_requests"`
	PurchaseRequests   int           `json:"purchase_requests"`
	WithdrawalRequests int           `json:"withdrawal_requests"`
	AdminRequests      int           `json:"admin_requests"`
	HealthRequests     int           `json:"health_requests"`
	WhitelistedIPs     []string      `json:"whitelisted_ips"`
}

// KafkaConfig holds broker and topic configuration
type KafkaConfig struct {
	Enabled       bool
	Brokers       []string
	ConsumerGroup string
	PaymentsTopic string
	TicketsTopic  string
	MaxRetries    int
	RetryBackoff  time.Duration
}

// FeesConfig holds platform default fee percentages, e.g. "4.49" for 4.49%
type FeesConfig struct {
	PixPercentage  string
	CardPercentage string
}

// InventoryConfig tunes the ledger
type InventoryConfig struct {
	MaxRetries       int
	RetryInitial     time.Duration
	RetryMax         time.Duration
	CourtesyCapacity int
}

// FulfillmentConfig tunes payment fulfillment
type FulfillmentConfig struct {
	AllOrNothing bool
}

// SettlementConfig holds payout rules
type SettlementConfig struct {
	CardReleaseWindow time.Duration
	MinWithdrawal     int64
}

// WebhookConfig holds the shared secret used to sign gateway deliveries
type WebhookConfig struct {
	Secret          string
	SignatureHeader string
}

// Load loads configuration from environment variables
func Load() *Config {
	cfg := &Config{
		// Server configuration
		Port:           getEnv("PORT", "8080"),
		GinMode:        getEnv("GIN_MODE", "debug"),
		APIVersion:     getEnv("API_VERSION", "v1"),
		APIPrefix:      getEnv("API_PREFIX", "/api"),
		ReadTimeout:    getDurationEnv("READ_TIMEOUT", 15*time.Second),
		WriteTimeout:   getDurationEnv("WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:    getDurationEnv("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes: getIntEnv("MAX_HEADER_BYTES", 1<<20), // 1 MB
		AllowedOrigins: getStringSliceEnv("CORS_ALLOWED_ORIGINS", []string{"*"}),

		// Database configuration
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			Name:            getEnv("DB_NAME", "boxoffice_db"),
			User:            getEnv("DB_USER", "boxoffice_user"),
			Password:        getEnv("DB_PASSWORD", "boxoffice_password"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},

		// Redis configuration
		Redis: RedisConfig{
			Enabled:  getBoolEnv("REDIS_ENABLED", true),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),

			BalanceCacheTTL: getDurationEnv("REDIS_BALANCE_CACHE_TTL", 30*time.Second),
			LockTTL:         getDurationEnv("REDIS_LOCK_TTL", 10*time.Second),
		},

		// JWT configuration
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "your-super-secret-jwt-key"),
		},

		// Rate limiting
		RateLimit: RateLimitConfig{
			Enabled:            getBoolEnv("RATE_LIMIT_ENABLED", true),
			WindowDuration:     getDurationEnv("RATE_LIMIT_WINDOW_DURATION", 60*time.Second),
			DefaultRequests:    getIntEnv("RATE_LIMIT_DEFAULT_REQUESTS", 60),
			PublicRequests:     getIntEnv("RATE_LIMIT_PUBLIC_REQUESTS", 100),
			WebhookRequests:    getIntEnv("RATE_LIMIT_WEBHOOK_REQUESTS", 600),
			PurchaseRequests:   getIntEnv("RATE_LIMIT_PURCHASE_REQUESTS", 20),
			WithdrawalRequests: getIntEnv("RATE_LIMIT_WITHDRAWAL_REQUESTS", 5),
			AdminRequests:      getIntEnv("RATE_LIMIT_ADMIN_REQUESTS", 200),
			HealthRequests:     getIntEnv("RATE_LIMIT_HEALTH_REQUESTS", 1000),
			WhitelistedIPs:     getStringSliceEnv("RATE_LIMIT_WHITELISTED_IPS", []string{}),
		},

		// Kafka
		Kafka: KafkaConfig{
			Enabled:       getBoolEnv("KAFKA_ENABLED", false),
			Brokers:       getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
			ConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "boxoffice-fulfillment"),
			PaymentsTopic: getEnv("KAFKA_PAYMENTS_TOPIC", "payments.confirmed"),
			TicketsTopic:  getEnv("KAFKA_TICKETS_TOPIC", "tickets.issued"),
			MaxRetries:    getIntEnv("KAFKA_MAX_RETRIES", 3),
			RetryBackoff:  getDurationEnv("KAFKA_RETRY_BACKOFF", time.Second),
		},

		// Platform fee defaults
		Fees: FeesConfig{
			PixPercentage:  getEnv("FEE_PIX_PERCENTAGE", "1"),
			CardPercentage: getEnv("FEE_CARD_PERCENTAGE", "4.49"),
		},

		Inventory: InventoryConfig{
			MaxRetries:       getIntEnv("INVENTORY_MAX_RETRIES", 5),
			RetryInitial:     getDurationEnv("INVENTORY_RETRY_INITIAL", 5*time.Millisecond),
			RetryMax:         getDurationEnv("INVENTORY_RETRY_MAX", 200*time.Millisecond),
			CourtesyCapacity: getIntEnv("INVENTORY_COURTESY_CAPACITY", 10000),
		},

		Fulfillment: FulfillmentConfig{
			AllOrNothing: getBoolEnv("FULFILLMENT_ALL_OR_NOTHING", false),
		},

		Settlement: SettlementConfig{
			CardReleaseWindow: getDurationEnv("SETTLEMENT_CARD_RELEASE_WINDOW", 14*24*time.Hour),
			MinWithdrawal:     getInt64Env("SETTLEMENT_MIN_WITHDRAWAL", 9000),
		},

		Webhook: WebhookConfig{
			Secret:          getEnv("WEBHOOK_SECRET", ""),
			SignatureHeader: getEnv("WEBHOOK_SIGNATURE_HEADER", "X-Signature"),
		},

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	// Build composite values
	cfg.Database.DSN = buildDatabaseDSN(cfg.Database)
	cfg.Redis.Addr = cfg.Redis.Host + ":" + cfg.Redis.Port

	return cfg
}

// buildDatabaseDSN builds the database connection string
func buildDatabaseDSN(db DatabaseConfig) string {
	return "host=" + db.Host +
		" port=" + db.Port +
		" user=" + db.User +
		" password=" + db.Password +
		" dbname=" + db.Name +
		" sslmode=" + db.SSLMode
}

// getEnv gets an environment variable with a fallback value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getIntEnv gets an integer environment variable with a fallback value
func getIntEnv(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return fallback
}

// getInt64Env gets an int64 environment variable with a fallback value
func getInt64Env(key string, fallback int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return fallback
}

// getDurationEnv gets a duration environment variable with a fallback value
func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return fallback
}

// getBoolEnv gets a boolean environment variable with a fallback value
func getBoolEnv(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return fallback
}

// getStringSliceEnv gets a comma-separated string environment variable as a slice
func getStringSliceEnv(key string, fallback []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		var result []string
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.GinMode == "release"
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.GinMode == "debug"
}

// GetServerAddress returns the full server address
func (c *Config) GetServerAddress() string {
	return ":" + c.Port
}

// GetAPIBasePath returns the API base path
func (c *Config) GetAPIBasePath() string {
	return c.APIPrefix + "/" + c.APIVersion
}
