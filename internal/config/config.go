package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	NewRelic  NewRelicConfig
	Log       LogConfig
	Auth      AuthConfig
	Lifecycle LifecycleConfig
	Broadcast BroadcastConfig
	Maps      MapsConfig
	Stripe    StripeConfig
	Firebase  FirebaseConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string

	MaxOpenConns int
	MaxIdleConns int
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
	Enabled  bool
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// LogConfig holds logrus settings.
type LogConfig struct {
	Level  string
	Format string
}

// AuthConfig holds the bearer token secret.
type AuthConfig struct {
	JWTSecret string
}

// LifecycleConfig tunes ride lifecycle locking and background completion.
type LifecycleConfig struct {
	RideMinInterval     time.Duration
	LockBackend         string // memory or redis
	LockTTL             time.Duration
	LockWait            time.Duration
	AutoCompleteEnabled bool
	AutoCompleteEvery   time.Duration
	AutoCompleteGrace   time.Duration
}

// BroadcastConfig holds the async fan-out settings and optional broker endpoints.
type BroadcastConfig struct {
	QueueSize          int
	Workers            int
	RedisEnabled       bool
	RabbitMQURL        string
	RabbitMQExchange   string
	KafkaBrokers       []string
	KafkaLocationTopic string
	PricingCacheTTL    time.Duration
}

// MapsConfig holds Google Maps credentials. An empty key selects the straight-line estimator.
type MapsConfig struct {
	APIKey string
}

// StripeConfig holds Stripe credentials. An empty key selects the in-memory funds service.
type StripeConfig struct {
	SecretKey  string
	MinorUnits float64
}

// FirebaseConfig holds the FCM service account file. Empty disables push.
type FirebaseConfig struct {
	CredentialsFile string
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "ridepool"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),

			MaxOpenConns: getIntEnv("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns: getIntEnv("DB_MAX_IDLE_CONNS", 25),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
			PoolSize: getIntEnv("REDIS_POOL_SIZE", 20),
			Enabled:  getBoolEnv("REDIS_ENABLED", true),
		},
		NewRelic: NewRelicConfig{
			AppName:    getEnv("NEW_RELIC_APP_NAME", "ridepool-service"),
			LicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
			Enabled:    getBoolEnv("NEW_RELIC_ENABLED", false),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Lifecycle: LifecycleConfig{
			RideMinInterval:     getDurationEnv("RIDE_MIN_INTERVAL", 15*time.Minute),
			LockBackend:         getEnv("LOCK_BACKEND", "memory"),
			LockTTL:             getDurationEnv("LOCK_TTL", 30*time.Second),
			LockWait:            getDurationEnv("LOCK_WAIT", 10*time.Second),
			AutoCompleteEnabled: getBoolEnv("AUTO_COMPLETE_ENABLED", true),
			AutoCompleteEvery:   getDurationEnv("AUTO_COMPLETE_INTERVAL", time.Minute),
			AutoCompleteGrace:   getDurationEnv("AUTO_COMPLETE_GRACE", 30*time.Minute),
		},
		Broadcast: BroadcastConfig{
			QueueSize:          getIntEnv("BROADCAST_QUEUE_SIZE", 1024),
			Workers:            getIntEnv("BROADCAST_WORKERS", 4),
			RedisEnabled:       getBoolEnv("BROADCAST_REDIS_ENABLED", true),
			RabbitMQURL:        getEnv("RABBITMQ_URL", ""),
			RabbitMQExchange:   getEnv("RABBITMQ_EXCHANGE", "ride_topic"),
			KafkaBrokers:       getListEnv("KAFKA_BROKERS", nil),
			KafkaLocationTopic: getEnv("KAFKA_LOCATION_TOPIC", "ride-location-updates"),
			PricingCacheTTL:    getDurationEnv("PRICING_CACHE_TTL", time.Minute),
		},
		Maps: MapsConfig{
			APIKey: getEnv("GOOGLE_MAPS_API_KEY", ""),
		},
		Stripe: StripeConfig{
			SecretKey:  getEnv("STRIPE_SECRET_KEY", ""),
			MinorUnits: getFloatEnv("STRIPE_MINOR_UNITS", 1),
		},
		Firebase: FirebaseConfig{
			CredentialsFile: getEnv("FIREBASE_CREDENTIALS_FILE", ""),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getListEnv splits a comma separated value, dropping empty entries.
func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
