package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Storage backend selectors
const (
	StorageBackendJSON     = "json"
	StorageBackendPostgres = "postgres"
)

// Config holds all application configuration
type Config struct {
	Server       ServerConfig
	Storage      StorageConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	Kafka        KafkaConfig
	AlphaVantage AlphaVantageConfig
	Analytics    AnalyticsConfig
	Refresh      RefreshConfig
	Logging      LoggingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
	Host string
}

// StorageConfig selects and configures the portfolio store
type StorageConfig struct {
	Backend        string // json or postgres
	PortfolioFile  string
	MigrationsPath string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds quote cache configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Enabled  bool
}

// KafkaConfig holds Kafka configuration
type KafkaConfig struct {
	Brokers []string
	Topic   string
	Enabled bool
}

// AlphaVantageConfig holds quote provider configuration
type AlphaVantageConfig struct {
	APIKey  string
	BaseURL string
}

// AnalyticsConfig holds analytics parameters
type AnalyticsConfig struct {
	RiskFreeRate float64 // annual, e.g. 0.02
}

// RefreshConfig holds the scheduled price refresh settings
type RefreshConfig struct {
	Enabled  bool
	Schedule string // cron expression
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level  string
	Pretty bool
}

// Load reads configuration from the environment, honoring a .env file
// when present
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Storage: StorageConfig{
			Backend:        getEnv("STORAGE_BACKEND", StorageBackendJSON),
			PortfolioFile:  getEnv("PORTFOLIO_FILE", "data/portfolio.json"),
			MigrationsPath: getEnv("MIGRATIONS_PATH", "db/migrations"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "portfolio"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			Enabled:  getEnvBool("REDIS_ENABLED", true),
		},
		Kafka: KafkaConfig{
			Brokers: []string{getEnv("KAFKA_BROKERS", "localhost:9092")},
			Topic:   getEnv("KAFKA_TOPIC", "portfolio-events"),
			Enabled: getEnvBool("KAFKA_ENABLED", false),
		},
		AlphaVantage: AlphaVantageConfig{
			APIKey:  getEnv("ALPHAVANTAGE_API_KEY", ""),
			BaseURL: getEnv("ALPHAVANTAGE_BASE_URL", ""),
		},
		Analytics: AnalyticsConfig{
			RiskFreeRate: getEnvFloat("RISK_FREE_RATE", 0.02),
		},
		Refresh: RefreshConfig{
			Enabled:  getEnvBool("REFRESH_ENABLED", true),
			Schedule: getEnv("REFRESH_SCHEDULE", "@every 5m"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Pretty: getEnvBool("LOG_PRETTY", true),
		},
	}
}

// ConnectionString returns the PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.DBName + "?sslmode=" + d.SSLMode
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
