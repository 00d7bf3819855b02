package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Gateway    GatewayConfig
	Settlement SettlementConfig
}

type ServerConfig struct {
	Port string
	Host string
	Env  string
}

type DatabaseConfig struct {
	URL      string // Full database URL
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type GatewayConfig struct {
	Currency       string
	InitialBalance int // advisory balance for new accounts, in cents
	RequestTimeout time.Duration
}

type SettlementConfig struct {
	SweepInterval time.Duration
	LockTTL       time.Duration
}

func Load() (*Config, error) {
	// Load .env files if they exist (try .env.local first, then .env)
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Host: getEnv("HOST", "localhost"),
			Env:  getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "ticketmarket"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Gateway: GatewayConfig{
			Currency:       getEnv("GATEWAY_CURRENCY", "USD"),
			InitialBalance: getEnvAsInt("GATEWAY_INITIAL_BALANCE", 10000000),
			RequestTimeout: getEnvAsDuration("GATEWAY_TIMEOUT", 10*time.Second),
		},
		Settlement: SettlementConfig{
			SweepInterval: getEnvAsDuration("SETTLEMENT_SWEEP_INTERVAL", 15*time.Minute),
			LockTTL:       getEnvAsDuration("SETTLEMENT_LOCK_TTL", 5*time.Minute),
		},
	}

	return config, nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
