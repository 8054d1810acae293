package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env           string
	ServerPort    int
	LogLevel      string
	Database      DatabaseConfig
	Auth          AuthConfig
	MigrationsDir string
}

type DatabaseConfig struct {
	// Driver selects the backing database: "sqlite" (default) or "postgres".
	Driver string

	// Path is the sqlite database file. ":memory:" is accepted.
	Path string

	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	UseSSL   bool
}

type AuthConfig struct {
	JWTSecret       string
	TokenTTL        time.Duration
	CacheTTL        time.Duration
	CacheCapacity   int
	SweepInterval   time.Duration
	RevocationLimit int
}

func LoadConfig() Config {
	if os.Getenv("ENV") == "dev" {
		godotenv.Load()
	}

	dbConfig := DatabaseConfig{
		Driver:   getEnv("DB_DRIVER", "sqlite"),
		Path:     getEnv("DB_PATH", "pulsecrm.db"),
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "pulsecrm"),
		Password: getEnv("DB_PASSWORD", "password"),
		DBName:   getEnv("DB_NAME", "pulsecrm_db"),
		UseSSL:   getEnv("DB_SSL", "") == "true",
	}

	authConfig := AuthConfig{
		JWTSecret:       getEnv("JWT_SECRET", ""),
		TokenTTL:        getEnvDuration("TOKEN_TTL", 24*time.Hour),
		CacheTTL:        getEnvDuration("USER_CACHE_TTL", 15*time.Minute),
		CacheCapacity:   getEnvInt("USER_CACHE_CAPACITY", 1000),
		SweepInterval:   getEnvDuration("USER_CACHE_SWEEP_INTERVAL", 5*time.Minute),
		RevocationLimit: getEnvInt("REVOCATION_LIMIT", 10000),
	}

	return Config{
		Env:           getEnv("ENV", "prod"),
		ServerPort:    getEnvInt("SERVER_PORT", 8080),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		Database:      dbConfig,
		Auth:          authConfig,
		MigrationsDir: getEnv("MIGRATIONS_DIR", "internal/db/migrations"),
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		var value int
		fmt.Sscanf(valueStr, "%d", &value)
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := time.ParseDuration(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}
