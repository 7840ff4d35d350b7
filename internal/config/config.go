package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

func init() {
	// Load .env file - ignore error if file doesn't exist
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Note: .env file not found or could not be loaded: %v\n", err)
	}
}

type Config struct {
	Primary       PrimaryConfig
	Database      DatabaseConfig
	Server        ServerConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	Mongo         MongoConfig
	Observability *ObservabilityConfig
	Stripe        StripeConfig
	Checkout      CheckoutConfig
	Auth          AuthConfig
	Notify        NotifyConfig
	PubNub        PubNubConfig
	Sweeper       SweeperConfig
	Outbox        OutboxConfig
}

type PrimaryConfig struct {
	Env string
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
	ConnMaxIdleTime int
	MigrationsPath  string
}

// DSN builds the postgres connection URL shared by pgx and the migrator.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s", d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	IdleTimeout        int
	CORSAllowedOrigins []string
}

type RedisConfig struct {
	Address      string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	LockTTL      time.Duration
	KeyPrefix    string
}

type KafkaConfig struct {
	Brokers []string
}

type MongoConfig struct {
	URI        string
	Database   string
	Collection string
	Timeout    time.Duration
}

type ObservabilityConfig struct {
	ServiceName  string
	Environment  string
	Logging      LoggingConfig
	NewRelic     NewRelicConfig
	HealthChecks HealthChecksConfig
}

type LoggingConfig struct {
	Level              string
	Format             string
	SlowQueryThreshold time.Duration
}

type NewRelicConfig struct {
	LicenseKey                string
	AppLogForwardingEnabled   bool
	DistributedTracingEnabled bool
	DebugLogging              bool
}

type HealthChecksConfig struct {
	Enabled  bool
	Interval time.Duration
	Timeout  time.Duration
	Checks   []string
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	BaseURL       string
	Currency      string
	Timeout       time.Duration
	MaxRetries    int
}

type CheckoutConfig struct {
	ReservationTTL time.Duration
	ExpiryGrace    time.Duration
	CommissionRate decimal.Decimal
	CreateTimeout  time.Duration
	StatusTimeout  time.Duration
	IdempotencyTTL time.Duration
	RateLimit      int64
	RateWindow     time.Duration
	DisputeWindow  time.Duration
	QRSecret       string
}

type AuthConfig struct {
	JWTSecret  string
	CookieName string
}

type NotifyConfig struct {
	ResendAPIKey string
	ResendURL    string
	SenderEmail  string
	FrontendURL  string
}

type PubNubConfig struct {
	PublishKey   string
	SubscribeKey string
	UserID       string
}

// OutboxConfig drives the outbox relay process.
type OutboxConfig struct {
	BatchSize   int
	Interval    time.Duration
	MaxRetries  int
	MetricsAddr string
}

type SweeperConfig struct {
	ReservationInterval time.Duration
	AlertInterval       time.Duration
	LockTTL             time.Duration
}

// Helper functions for parsing env vars
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return fallback
}

func getEnvDecimal(key string, fallback decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return fallback
}

func (c *ObservabilityConfig) GetLogLevel() string {
	if c.Logging.Level == "" {
		switch c.Environment {
		case "production":
			return "info"
		case "development":
			return "debug"
		default:
			return "info"
		}
	}
	return c.Logging.Level
}

func (c *ObservabilityConfig) IsProduction() bool {
	return c.Environment == "production"
}

func LoadConfig() (*Config, error) {
	env := getEnv("TIX_ENV", "development")

	cfg := &Config{
		Primary: PrimaryConfig{
			Env: env,
		},
		Database: DatabaseConfig{
			Host:            getEnv("TIX_DB_HOST", "localhost"),
			Port:            getEnvInt("TIX_DB_PORT", 5432),
			User:            getEnv("TIX_DB_USER", "ticketcore"),
			Password:        getEnv("TIX_DB_PASSWORD", ""),
			Name:            getEnv("TIX_DB_NAME", "ticketcore"),
			SSLMode:         getEnv("TIX_DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvInt("TIX_DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("TIX_DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvInt("TIX_DB_CONN_MAX_LIFETIME", 300),
			ConnMaxIdleTime: getEnvInt("TIX_DB_CONN_MAX_IDLE_TIME", 60),
			MigrationsPath:  getEnv("TIX_DB_MIGRATIONS_PATH", "file://internal/database/migrations"),
		},
		Server: ServerConfig{
			Port:               getEnv("TIX_SERVER_PORT", "8080"),
			ReadTimeout:        getEnvInt("TIX_SERVER_READ_TIMEOUT", 30),
			WriteTimeout:       getEnvInt("TIX_SERVER_WRITE_TIMEOUT", 30),
			IdleTimeout:        getEnvInt("TIX_SERVER_IDLE_TIMEOUT", 60),
			CORSAllowedOrigins: getEnvSlice("TIX_SERVER_CORS_ORIGINS", []string{"*"}),
		},
		Redis: RedisConfig{
			Address:      getEnv("TIX_REDIS_ADDRESS", "localhost:6379"),
			Password:     getEnv("TIX_REDIS_PASSWORD", ""),
			DB:           getEnvInt("TIX_REDIS_DB", 0),
			PoolSize:     getEnvInt("TIX_REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("TIX_REDIS_MIN_IDLE_CONNS", 5),
			DialTimeout:  getEnvDuration("TIX_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("TIX_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("TIX_REDIS_WRITE_TIMEOUT", 3*time.Second),
			LockTTL:      getEnvDuration("TIX_REDIS_LOCK_TTL", 30*time.Second),
			KeyPrefix:    getEnv("TIX_REDIS_KEY_PREFIX", "ticketcore:"),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvSlice("TIX_KAFKA_BROKERS", []string{"localhost:9092"}),
		},
		Mongo: MongoConfig{
			URI:        getEnv("TIX_MONGO_URI", "mongodb://localhost:27017"),
			Database:   getEnv("TIX_MONGO_DB", "euromatchtickets"),
			Collection: getEnv("TIX_MONGO_EVENTS_COLLECTION", "events"),
			Timeout:    getEnvDuration("TIX_MONGO_TIMEOUT", 10*time.Second),
		},
		Observability: &ObservabilityConfig{
			ServiceName: "ticketcore",
			Environment: env,
			Logging: LoggingConfig{
				Level:              getEnv("TIX_LOG_LEVEL", "debug"),
				Format:             getEnv("TIX_LOG_FORMAT", "console"),
				SlowQueryThreshold: getEnvDuration("TIX_LOG_SLOW_QUERY_THRESHOLD", 100*time.Millisecond),
			},
			NewRelic: NewRelicConfig{
				LicenseKey:                getEnv("TIX_NEWRELIC_LICENSE_KEY", ""),
				AppLogForwardingEnabled:   getEnvBool("TIX_NEWRELIC_LOG_FORWARDING", true),
				DistributedTracingEnabled: getEnvBool("TIX_NEWRELIC_DISTRIBUTED_TRACING", true),
				DebugLogging:              getEnvBool("TIX_NEWRELIC_DEBUG", false),
			},
			HealthChecks: HealthChecksConfig{
				Enabled:  getEnvBool("TIX_HEALTHCHECK_ENABLED", true),
				Interval: getEnvDuration("TIX_HEALTHCHECK_INTERVAL", 30*time.Second),
				Timeout:  getEnvDuration("TIX_HEALTHCHECK_TIMEOUT", 5*time.Second),
				Checks:   getEnvSlice("TIX_HEALTHCHECK_CHECKS", []string{"database", "redis"}),
			},
		},
		Stripe: StripeConfig{
			SecretKey:     getEnv("TIX_STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("TIX_STRIPE_WEBHOOK_SECRET", ""),
			BaseURL:       getEnv("TIX_STRIPE_BASE_URL", "https://api.stripe.com"),
			Currency:      getEnv("TIX_CURRENCY", "eur"),
			Timeout:       getEnvDuration("TIX_STRIPE_TIMEOUT", 5*time.Second),
			MaxRetries:    getEnvInt("TIX_STRIPE_MAX_RETRIES", 2),
		},
		Checkout: CheckoutConfig{
			// Stripe refuses checkout expiries shorter than 30 minutes.
			ReservationTTL: getEnvDuration("TIX_RESERVATION_TTL", 30*time.Minute),
			ExpiryGrace:    getEnvDuration("TIX_RESERVATION_EXPIRY_GRACE", 2*time.Minute),
			CommissionRate: getEnvDecimal("TIX_COMMISSION_RATE", decimal.RequireFromString("0.10")),
			CreateTimeout:  getEnvDuration("TIX_CHECKOUT_CREATE_TIMEOUT", 15*time.Second),
			StatusTimeout:  getEnvDuration("TIX_CHECKOUT_STATUS_TIMEOUT", 5*time.Second),
			IdempotencyTTL: getEnvDuration("TIX_IDEMPOTENCY_TTL", 24*time.Hour),
			RateLimit:      getEnvInt64("TIX_CHECKOUT_RATE_LIMIT", 10),
			RateWindow:     getEnvDuration("TIX_CHECKOUT_RATE_WINDOW", time.Minute),
			DisputeWindow:  getEnvDuration("TIX_DISPUTE_WINDOW", 48*time.Hour),
			QRSecret:       getEnv("TIX_QR_SECRET", ""),
		},
		Auth: AuthConfig{
			JWTSecret:  getEnv("TIX_JWT_SECRET", ""),
			CookieName: getEnv("TIX_SESSION_COOKIE", "session_token"),
		},
		Notify: NotifyConfig{
			ResendAPIKey: getEnv("TIX_RESEND_API_KEY", ""),
			ResendURL:    getEnv("TIX_RESEND_URL", "https://api.resend.com/emails"),
			SenderEmail:  getEnv("TIX_SENDER_EMAIL", "onboarding@resend.dev"),
			FrontendURL:  getEnv("TIX_FRONTEND_URL", "https://euromatchtickets.com"),
		},
		PubNub: PubNubConfig{
			PublishKey:   getEnv("TIX_PUBNUB_PUBLISH_KEY", ""),
			SubscribeKey: getEnv("TIX_PUBNUB_SUBSCRIBE_KEY", ""),
			UserID:       getEnv("TIX_PUBNUB_USER_ID", "ticketcore-notify"),
		},
		Sweeper: SweeperConfig{
			ReservationInterval: getEnvDuration("TIX_SWEEP_RESERVATIONS_INTERVAL", 30*time.Second),
			AlertInterval:       getEnvDuration("TIX_SWEEP_ALERTS_INTERVAL", time.Minute),
			LockTTL:             getEnvDuration("TIX_SWEEP_LOCK_TTL", 25*time.Second),
		},
		Outbox: OutboxConfig{
			BatchSize:   getEnvInt("TIX_OUTBOX_BATCH_SIZE", 100),
			Interval:    getEnvDuration("TIX_OUTBOX_INTERVAL", time.Second),
			MaxRetries:  getEnvInt("TIX_OUTBOX_MAX_RETRIES", 10),
			MetricsAddr: getEnv("TIX_OUTBOX_METRICS_ADDR", ":9101"),
		},
	}

	// Validate required fields
	if cfg.Database.Host == "" {
		return nil, fmt.Errorf("TIX_DB_HOST is required")
	}
	if cfg.Database.Name == "" {
		return nil, fmt.Errorf("TIX_DB_NAME is required")
	}
	if cfg.Checkout.CommissionRate.IsNegative() || cfg.Checkout.CommissionRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("TIX_COMMISSION_RATE must be in [0, 1), got %s", cfg.Checkout.CommissionRate)
	}
	if cfg.Checkout.ReservationTTL <= 0 {
		return nil, fmt.Errorf("TIX_RESERVATION_TTL must be positive")
	}
	if cfg.Outbox.BatchSize <= 0 || cfg.Outbox.Interval <= 0 {
		return nil, fmt.Errorf("TIX_OUTBOX_BATCH_SIZE and TIX_OUTBOX_INTERVAL must be positive")
	}
	if cfg.Observability.IsProduction() {
		if cfg.Auth.JWTSecret == "" {
			return nil, fmt.Errorf("TIX_JWT_SECRET is required in production")
		}
		if cfg.Checkout.QRSecret == "" {
			return nil, fmt.Errorf("TIX_QR_SECRET is required in production")
		}
	}

	return cfg, nil
}
