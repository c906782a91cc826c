package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bensuskins/gymthon/internal/database"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

type Config struct {
	Port           string
	DatabaseDriver database.Driver
	DatabaseURL    string
	LogLevel       string
	LogFile        string

	LLMBaseURL string
	LLMAPIKey  string
	LLMModel   string
	LLMTimeout time.Duration

	SchedulerEnabled       bool
	SchedulerLocation      *time.Location
	SubscriptionSchedule   string
	DailyDietSchedule      string
	WorkoutRenewalSchedule string

	GenerationRateLimit  int
	GenerationRateWindow time.Duration
	AIRateLimit          int
	AIRateWindow         time.Duration

	CORSAllowedOrigins []string
}

// Load reads configuration from the environment after applying an optional
// .env file. Variables already set in the environment win over the file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("loading .env: %w", err)
	}

	driver, err := database.ParseDriver(os.Getenv("DATABASE_DRIVER"))
	if err != nil {
		return Config{}, err
	}

	config := Config{
		Port:           envOrDefault("PORT", "8080"),
		DatabaseDriver: driver,
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		LogLevel:       envOrDefault("LOG_LEVEL", "info"),
		LogFile:        os.Getenv("LOG_FILE"),

		LLMBaseURL: envOrDefault("LLM_BASE_URL", "https://api.openai.com/v1"),
		LLMAPIKey:  os.Getenv("LLM_API_KEY"),
		LLMModel:   envOrDefault("LLM_MODEL", "gpt-4o-mini"),

		SubscriptionSchedule:   envOrDefault("SCHEDULE_SUBSCRIPTIONS", "0 1 * * *"),
		DailyDietSchedule:      envOrDefault("SCHEDULE_DAILY_DIET", "0 2 * * *"),
		WorkoutRenewalSchedule: envOrDefault("SCHEDULE_WORKOUT_RENEWAL", "0 3 * * *"),

		CORSAllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
	}

	if config.DatabaseURL == "" {
		if driver == database.DriverPostgres {
			return Config{}, fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
		config.DatabaseURL = "./data/gymthon.db"
	}

	if config.LLMTimeout, err = durationEnv("LLM_TIMEOUT", 60*time.Second); err != nil {
		return Config{}, err
	}
	if config.SchedulerEnabled, err = boolEnv("SCHEDULER_ENABLED", true); err != nil {
		return Config{}, err
	}
	if config.SchedulerLocation, err = time.LoadLocation(envOrDefault("SCHEDULER_TIMEZONE", "UTC")); err != nil {
		return Config{}, fmt.Errorf("SCHEDULER_TIMEZONE: %w", err)
	}
	for key, spec := range map[string]string{
		"SCHEDULE_SUBSCRIPTIONS":   config.SubscriptionSchedule,
		"SCHEDULE_DAILY_DIET":      config.DailyDietSchedule,
		"SCHEDULE_WORKOUT_RENEWAL": config.WorkoutRenewalSchedule,
	} {
		if _, err := cron.ParseStandard(spec); err != nil {
			return Config{}, fmt.Errorf("%s: invalid cron expression %q: %w", key, spec, err)
		}
	}

	if config.GenerationRateLimit, err = positiveIntEnv("GENERATION_RATE_LIMIT", 10); err != nil {
		return Config{}, err
	}
	if config.GenerationRateWindow, err = durationEnv("GENERATION_RATE_WINDOW", time.Minute); err != nil {
		return Config{}, err
	}
	if config.AIRateLimit, err = positiveIntEnv("AI_RATE_LIMIT", 20); err != nil {
		return Config{}, err
	}
	if config.AIRateWindow, err = durationEnv("AI_RATE_WINDOW", time.Hour); err != nil {
		return Config{}, err
	}

	if config.LLMAPIKey == "" {
		key, err := GetLLMKey()
		switch {
		case err == nil:
			config.LLMAPIKey = key
		case !errors.Is(err, ErrKeyNotFound):
			slog.Debug("reading llm key from keyring", "error", err)
		}
	}

	return config, nil
}

func envOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func durationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	duration, err := time.ParseDuration(value)
	if err != nil || duration <= 0 {
		return 0, fmt.Errorf("%s: expected a positive duration such as 30s, got %q", key, value)
	}
	return duration, nil
}

func positiveIntEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	number, err := strconv.Atoi(value)
	if err != nil || number <= 0 {
		return 0, fmt.Errorf("%s: expected a positive integer, got %q", key, value)
	}
	return number, nil
}

func boolEnv(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: expected true or false, got %q", key, value)
	}
	return parsed, nil
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
