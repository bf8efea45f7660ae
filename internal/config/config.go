package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port        string
	CORSOrigins string
	LogLevel    string

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis (changefeed + message cache), empty disables both
	RedisURL        string
	MessageCacheTTL time.Duration

	// Auth
	JWTSecret        string
	PasswordResetTTL time.Duration

	// Message-insert hook
	HookSecret    string
	InlineReplies bool

	// Seed the scenario catalogue on startup
	SeedScenarios bool
}

// Load reads configuration from the environment, after loading an optional .env file.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	return &Config{
		Port:             getEnv("PORT", "8097"),
		CORSOrigins:      getEnv("CORS_ORIGINS", "*"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		DBHost:           getEnv("DB_HOST", "localhost"),
		DBPort:           getEnv("DB_PORT", "5432"),
		DBUser:           getEnv("DB_USER", "postgres"),
		DBPassword:       getEnv("DB_PASSWORD", ""),
		DBName:           getEnv("DB_NAME", "persona_trainer"),
		DBSSLMode:        getEnv("DB_SSLMODE", "disable"),
		RedisURL:         getEnv("REDIS_URL", ""),
		MessageCacheTTL:  time.Duration(getEnvAsInt("MESSAGE_CACHE_TTL", 86400)) * time.Second,
		JWTSecret:        getEnv("JWT_SECRET", ""),
		PasswordResetTTL: time.Duration(getEnvAsInt("PASSWORD_RESET_TTL", 60)) * time.Minute,
		HookSecret:       getEnv("HOOK_SECRET", ""),
		InlineReplies:    getEnvAsBool("INLINE_REPLIES", true),
		SeedScenarios:    getEnvAsBool("SEED_SCENARIOS", true),
	}
}

// Validate reports missing required values and warns about optional ones.
func (c *Config) Validate() error {
	var missing []string
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	if c.RedisURL == "" {
		slog.Warn("REDIS_URL not set, using in-process changefeed and no message cache")
	}
	if c.HookSecret == "" {
		slog.Warn("HOOK_SECRET not set, message-inserted webhook is disabled")
	}
	return nil
}

// SlogLevel maps LOG_LEVEL to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if v, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return v
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return v
	}
	return fallback
}
