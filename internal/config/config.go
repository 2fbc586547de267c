package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"perpsim/internal/strategy"
)

// Config holds all application configuration.
type Config struct {
	Symbol          string
	Interval        string
	InitialCapital  float64
	Leverage        float64
	StrategyMode    strategy.Mode
	UseRegimeSizing bool

	// Batch mode window.
	StartDate time.Time
	EndDate   time.Time

	// Live mode.
	PollIntervalSeconds int
	FetchLimit          int

	LogLevel       string
	RequestTimeout int // seconds

	// Optional collaborators; empty means disabled.
	DatabaseURL    string
	TelegramToken  string
	TelegramChatID int64
	MetricsAddr    string

	// Risk overrides.
	BaseSlippage float64
	FundingRate  float64
	FeeRate      float64
}

// Load initializes configuration from environment variables.
func Load() (*Config, error) {
	// Load environment variables from .env file if present
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on actual environment variables")
	}

	cfg := &Config{
		Symbol:              getEnvWithDefault("SYMBOL", "BTCUSDT"),
		Interval:            getEnvWithDefault("INTERVAL", "1h"),
		InitialCapital:      getEnvFloatWithDefault("INITIAL_CAPITAL", 10000),
		Leverage:            getEnvFloatWithDefault("LEVERAGE", 3),
		UseRegimeSizing:     getEnvBoolWithDefault("USE_REGIME_SIZING", true),
		PollIntervalSeconds: getEnvIntWithDefault("POLL_INTERVAL_SECONDS", 60),
		FetchLimit:          getEnvIntWithDefault("FETCH_LIMIT", 400),
		LogLevel:            getEnvWithDefault("LOG_LEVEL", "info"),
		RequestTimeout:      getEnvIntWithDefault("REQUEST_TIMEOUT", 30),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		TelegramToken:       os.Getenv("TELEGRAM_TOKEN"),
		MetricsAddr:         os.Getenv("METRICS_ADDR"),
		BaseSlippage:        getEnvFloatWithDefault("BASE_SLIPPAGE", 0.0005),
		FundingRate:         getEnvFloatWithDefault("FUNDING_RATE", 0.0001),
		FeeRate:             getEnvFloatWithDefault("FEE_RATE", 0.0004),
	}

	mode, err := strategy.ParseMode(getEnvWithDefault("STRATEGY_MODE", "adaptive"))
	if err != nil {
		return nil, err
	}
	cfg.StrategyMode = mode

	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramChatID = id
	}

	if cfg.StartDate, err = parseDate("START_DATE", time.Now().UTC().AddDate(0, -6, 0)); err != nil {
		return nil, err
	}
	if cfg.EndDate, err = parseDate("END_DATE", time.Now().UTC()); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.InitialCapital <= 0 {
		return fmt.Errorf("INITIAL_CAPITAL must be positive, got %v", c.InitialCapital)
	}
	if c.Leverage < 1 {
		return fmt.Errorf("LEVERAGE must be at least 1, got %v", c.Leverage)
	}
	if c.PollIntervalSeconds <= 0 {
		return fmt.Errorf("POLL_INTERVAL_SECONDS must be positive, got %d", c.PollIntervalSeconds)
	}
	if !c.EndDate.After(c.StartDate) {
		return fmt.Errorf("END_DATE must be after START_DATE")
	}
	return nil
}

func parseDate(key string, defaultValue time.Time) (time.Time, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing %s: %w", key, err)
	}
	return t.UTC(), nil
}

// Helper functions for environment variable handling
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatWithDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolWithDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
