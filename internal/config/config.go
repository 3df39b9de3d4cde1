package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the service
type Config struct {
	// Discord
	DiscordToken    string
	ReviewChannelID string
	WebOnly         bool

	// Contact address stamped on every request
	ContactEmail string

	// Database
	DatabasePath string

	// Web intake
	HTTPAddr string

	// Throttling
	SubmitCooldownMinutes int
	OriginWindowMinutes   int
	OriginMaxRequests     int

	// Pending sweep
	SweepIntervalSeconds int

	// Logging
	LogLevel string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		DiscordToken:    os.Getenv("DISCORD_BOT_TOKEN"),
		ReviewChannelID: os.Getenv("REVIEW_CHANNEL_ID"),
		WebOnly:         os.Getenv("WEB_ONLY") == "true",
		ContactEmail:    getEnvOrDefault("CONTACT_EMAIL", "support@example.com"),
		DatabasePath:    getEnvOrDefault("DATABASE_PATH", "./data/bot.db"),
		HTTPAddr:        getEnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        getEnvOrDefault("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.SubmitCooldownMinutes, err = getEnvInt("SUBMIT_COOLDOWN_MINUTES", 10); err != nil {
		return nil, err
	}
	if cfg.OriginWindowMinutes, err = getEnvInt("ORIGIN_WINDOW_MINUTES", 15); err != nil {
		return nil, err
	}
	if cfg.OriginMaxRequests, err = getEnvInt("ORIGIN_MAX_REQUESTS", 3); err != nil {
		return nil, err
	}
	if cfg.SweepIntervalSeconds, err = getEnvInt("SWEEP_INTERVAL_SECONDS", 90); err != nil {
		return nil, err
	}

	// Validate required fields
	if !cfg.WebOnly {
		if cfg.DiscordToken == "" {
			return nil, fmt.Errorf("DISCORD_BOT_TOKEN is required (or set WEB_ONLY=true)")
		}
		if cfg.ReviewChannelID == "" {
			return nil, fmt.Errorf("REVIEW_CHANNEL_ID is required (or set WEB_ONLY=true)")
		}
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
