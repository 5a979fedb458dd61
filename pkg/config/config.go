package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port      string
	JWTSecret string

	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string

	TopicServerURL string

	GeminiAPIKey  string
	GeminiBaseURL string

	// Retry / sync tuning
	FetchMaxElapsed  time.Duration
	SummaryMaxTries  int
	SummaryWorkers   int
	SyncLookbackDays int
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	fetchMaxElapsed := 30 * time.Second
	if v := os.Getenv("FETCH_MAX_ELAPSED"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			fetchMaxElapsed = parsed
		}
	}

	return &Config{
		Port:      getEnv("PORT", "8080"),
		JWTSecret: getEnv("JWT_SECRET", "your-secret-key-change-in-production"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnvInt("DB_PORT", 5432),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "clustermail"),

		TopicServerURL: getEnv("TOPIC_SERVER_URL", "http://localhost:8000/cluster"),

		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		GeminiBaseURL: getEnv("GEMINI_BASE_URL", ""),

		FetchMaxElapsed:  fetchMaxElapsed,
		SummaryMaxTries:  getEnvInt("SUMMARY_MAX_TRIES", 5),
		SummaryWorkers:   getEnvInt("SUMMARY_WORKERS", 3),
		SyncLookbackDays: getEnvInt("SYNC_LOOKBACK_DAYS", 30),
	}
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
