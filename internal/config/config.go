package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr                string
	DBDriver            string
	DBPath              string
	LogLevel            string
	LogFormat           string
	AdminSecret         string
	JWTSecret           string
	TokenTTL            time.Duration
	OnlineWindow        time.Duration
	LiveInterval        time.Duration
	CORSOrigins         []string
	CatalogPath         string
	RosterPath          string
	ActivityWorkerCount int
	ActivityQueueSize   int
	PINCost             int
}

// Load reads configuration from a .env file (if present) and environment variables,
// applying sensible defaults when values are missing or invalid.
func Load() Config {
	// Ignore error so the app still starts when .env is absent in production.
	_ = godotenv.Load()

	return Config{
		Addr:                envOr("ADDR", ":8080"),
		DBDriver:            envOr("DB_DRIVER", "sqlite3"),
		DBPath:              envOr("DB_PATH", envOr("DB_DSN", "file:assessment.db")),
		LogLevel:            envOr("LOG_LEVEL", "INFO"),
		LogFormat:           envOr("LOG_FORMAT", "text"),
		AdminSecret:         os.Getenv("ADMIN_SECRET_KEY"),
		JWTSecret:           os.Getenv("JWT_SECRET"),
		TokenTTL:            envDurationOr("TOKEN_TTL", 12*time.Hour),
		OnlineWindow:        envDurationOr("ONLINE_WINDOW", 30*time.Second),
		LiveInterval:        envDurationOr("LIVE_INTERVAL", 5*time.Second),
		CORSOrigins:         csvOr("CORS_ORIGINS", []string{"*"}),
		CatalogPath:         os.Getenv("CATALOG_PATH"),
		RosterPath:          os.Getenv("ROSTER_PATH"),
		ActivityWorkerCount: envIntOr("ACTIVITY_WORKER_COUNT", 1),
		ActivityQueueSize:   envIntOr("ACTIVITY_QUEUE_SIZE", 256),
		PINCost:             envIntOr("PIN_COST", 10),
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("ADDR cannot be empty")
	}
	switch c.DBDriver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("DB_DRIVER must be sqlite3 or postgres, got %q", c.DBDriver)
	}
	if strings.TrimSpace(c.DBPath) == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.AdminSecret == "" {
		return fmt.Errorf("ADMIN_SECRET_KEY cannot be empty")
	}
	// Participant tokens are only as strong as this key, so there is no default.
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET cannot be empty")
	}
	if len(c.JWTSecret) < 16 {
		return fmt.Errorf("JWT_SECRET must be at least 16 characters")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive")
	}
	if c.OnlineWindow <= 0 {
		return fmt.Errorf("ONLINE_WINDOW must be positive")
	}
	if c.LiveInterval < time.Second {
		return fmt.Errorf("LIVE_INTERVAL must be at least 1s")
	}
	if c.ActivityWorkerCount < 1 {
		return fmt.Errorf("ACTIVITY_WORKER_COUNT must be at least 1")
	}
	if c.ActivityQueueSize < 1 {
		return fmt.Errorf("ACTIVITY_QUEUE_SIZE must be at least 1")
	}
	if c.PINCost < 4 || c.PINCost > 31 {
		return fmt.Errorf("PIN_COST must be between 4 and 31")
	}
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOr(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
		log.Printf("invalid value for %s=%q, using default %d", key, v, def)
	}
	return def
}

func envDurationOr(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Printf("invalid value for %s=%q, using default %s", key, v, def)
	}
	return def
}

func csvOr(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
