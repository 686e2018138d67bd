package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application level configuration loaded from environment variables.
type Config struct {
	ServerPort  string
	DBDriver    string
	DatabaseDSN string
	DBMaxOpen   int
	DBMaxIdle   int
	RedisAddr   string
	RedisDB     int
	RedisPass   string
	JWTSecret   string
	SwaggerHost string
	Timezone    string

	// AllowOrigins feeds CORS and the websocket origin check. Empty allows any origin.
	AllowOrigins []string

	OverdueSweepSpec        string
	VisibilitySweepSpec     string
	NotificationCleanupSpec string
	JobTimeout              time.Duration
	SchedulerEnabled        bool

	SeedAdminEmail    string
	SeedAdminPassword string
}

// Load builds Config from environment with sensible defaults.
// A .env file in the working directory is read first; variables already
// present in the environment win.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		DBDriver:    strings.ToLower(getEnv("DB_DRIVER", "mysql")),
		DatabaseDSN: getEnv("DATABASE_DSN", "user:password@tcp(localhost:3306)/taskflow?charset=utf8mb4&parseTime=True&loc=UTC"),
		DBMaxOpen:   getEnvInt("DB_MAX_OPEN", 25),
		DBMaxIdle:   getEnvInt("DB_MAX_IDLE", 5),
		RedisAddr:   getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:     getEnvInt("REDIS_DB", 0),
		RedisPass:   os.Getenv("REDIS_PASSWORD"),
		JWTSecret:   getEnv("JWT_SECRET", "change-me"),
		SwaggerHost: os.Getenv("SWAGGER_HOST"),
		Timezone:    getEnv("TZ_NAME", "UTC"),

		AllowOrigins: getEnvList("CORS_ALLOW_ORIGINS"),

		OverdueSweepSpec:        getEnv("OVERDUE_SWEEP_SPEC", "@hourly"),
		VisibilitySweepSpec:     getEnv("VISIBILITY_SWEEP_SPEC", "@hourly"),
		NotificationCleanupSpec: getEnv("NOTIFICATION_CLEANUP_SPEC", "@daily"),
		JobTimeout:              getEnvDuration("JOB_TIMEOUT", 30*time.Second),
		SchedulerEnabled:        getEnvBool("SCHEDULER_ENABLED", true),

		SeedAdminEmail:    getEnv("SEED_ADMIN_EMAIL", "admin@taskflow.local"),
		SeedAdminPassword: getEnv("SEED_ADMIN_PASSWORD", "admin12345"),
	}
}

// Location resolves Timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		log.Printf("unknown timezone %q, using UTC", c.Timezone)
		return time.UTC
	}
	return loc
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvList splits a comma-separated variable, dropping empty items.
func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil && parsed > 0 {
			return parsed
		}
	}
	return def
}
