package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration. It is built once in main and passed
// explicitly to every component that needs it.
type Config struct {
	AppPort string
	AppMode string

	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string

	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	JWTSecret string

	// Meta / Instagram platform settings.
	MetaAppSecret      string
	WebhookVerifyToken string
	GraphAPIVersion    string
	GraphAPIBaseURL    string

	// Key material for the credential vault.
	EncryptionKey string

	// Admission control (requests per minute per client IP).
	RateLimitPerMinute     int
	RateLimitAuthPerMinute int

	// Outbound action settings.
	DedupWindowHours  int
	WorkerConcurrency int

	// Subscription tier caps on automations.
	FreeTierMaxAutomations       int
	ProTierMaxAutomations        int
	EnterpriseTierMaxAutomations int
}

func LoadConfig() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		AppPort: getEnv("APP_PORT", "8080"),
		AppMode: getEnv("APP_MODE", "debug"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "instapilot"),
		DBPort:     getEnv("DB_PORT", "5432"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		JWTSecret: getEnv("JWT_SECRET", "change-me"),

		MetaAppSecret:      getEnv("META_APP_SECRET", ""),
		WebhookVerifyToken: getEnv("META_WEBHOOK_VERIFY_TOKEN", ""),
		GraphAPIVersion:    getEnv("INSTAGRAM_GRAPH_API_VERSION", "v18.0"),
		GraphAPIBaseURL:    getEnv("INSTAGRAM_GRAPH_API_BASE_URL", "https://graph.instagram.com"),

		EncryptionKey: getEnv("ENCRYPTION_KEY", ""),

		RateLimitPerMinute:     getEnvAsInt("RATE_LIMIT_PER_MINUTE", 60),
		RateLimitAuthPerMinute: getEnvAsInt("RATE_LIMIT_AUTH_PER_MINUTE", 10),

		DedupWindowHours:  getEnvAsInt("DEDUP_WINDOW_HOURS", 24),
		WorkerConcurrency: getEnvAsInt("WORKER_CONCURRENCY", 4),

		FreeTierMaxAutomations:       getEnvAsInt("FREE_TIER_MAX_AUTOMATIONS", 2),
		ProTierMaxAutomations:        getEnvAsInt("PRO_TIER_MAX_AUTOMATIONS", 10),
		EnterpriseTierMaxAutomations: getEnvAsInt("ENTERPRISE_TIER_MAX_AUTOMATIONS", 100),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}
