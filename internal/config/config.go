package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Addr     string
	LogLevel string

	// Database
	DatabasePath string

	// Default per-tournament answer window.
	QuestionTimeLimit time.Duration

	// How often live matches are checked against their deadline.
	SweepInterval time.Duration
}

func Load() *Config {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	return &Config{
		Addr:              getEnv("ADDR", ":8080"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		DatabasePath:      getEnv("DATABASE_PATH", "quiz_arena.db"),
		QuestionTimeLimit: parseDuration(getEnv("QUESTION_TIME_LIMIT", "30s"), 30*time.Second),
		SweepInterval:     parseDuration(getEnv("SWEEP_INTERVAL", "5s"), 5*time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
