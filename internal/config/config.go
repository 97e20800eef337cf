package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

type Config struct {
	Environment string `mapstructure:"ENV"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`

	StorageDriver string `mapstructure:"STORAGE_DRIVER"`
	DBDSN         string `mapstructure:"DB_DSN"`

	HTTPAddr string         `mapstructure:"HTTP_ADDR"`
	Timezone string         `mapstructure:"TIMEZONE"`
	Location *time.Location `mapstructure:"-"`

	TelegramToken string `mapstructure:"TELEGRAM_TOKEN"`

	MeetingBaseURL string `mapstructure:"MEETING_BASE_URL"`
	MeetingAPIURL  string `mapstructure:"MEETING_API_URL"`
	MeetingAPIKey  string `mapstructure:"MEETING_API_KEY"`

	OutboxInterval    time.Duration `mapstructure:"OUTBOX_INTERVAL"`
	OutboxBatch       int           `mapstructure:"OUTBOX_BATCH"`
	OutboxMaxAttempts int           `mapstructure:"OUTBOX_MAX_ATTEMPTS"`
}

func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	if err := godotenv.Load(".env"); err != nil {
		log.Println("⚠️  No .env file found, using environment variables")
	} else {
		log.Println("✅ Loaded configuration from .env file")
	}

	return FromEnv(os.Getenv)
}

// FromEnv собирает конфиг из переменных окружения; getenv подменяется в тестах
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		Environment:    getenv("ENV"),
		LogLevel:       getenv("LOG_LEVEL"),
		StorageDriver:  getenv("STORAGE_DRIVER"),
		DBDSN:          getenv("DB_DSN"),
		HTTPAddr:       getenv("HTTP_ADDR"),
		Timezone:       getenv("TIMEZONE"),
		TelegramToken:  getenv("TELEGRAM_TOKEN"),
		MeetingBaseURL: getenv("MEETING_BASE_URL"),
		MeetingAPIURL:  getenv("MEETING_API_URL"),
		MeetingAPIKey:  getenv("MEETING_API_KEY"),
	}

	// Устанавливаем дефолтные значения
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.StorageDriver == "" {
		cfg.StorageDriver = StoragePostgres
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "UTC"
	}
	if cfg.MeetingBaseURL == "" && cfg.MeetingAPIURL == "" {
		cfg.MeetingBaseURL = "https://meet.jit.si"
	}

	var errs error

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("TIMEZONE: %w", err))
	}
	cfg.Location = loc

	cfg.OutboxInterval, err = durationOr(getenv("OUTBOX_INTERVAL"), 30*time.Second)
	errs = multierr.Append(errs, err)
	cfg.OutboxBatch, err = intOr(getenv("OUTBOX_BATCH"), 50, "OUTBOX_BATCH")
	errs = multierr.Append(errs, err)
	cfg.OutboxMaxAttempts, err = intOr(getenv("OUTBOX_MAX_ATTEMPTS"), 5, "OUTBOX_MAX_ATTEMPTS")
	errs = multierr.Append(errs, err)

	// Проверяем обязательные поля
	switch cfg.StorageDriver {
	case StoragePostgres:
		if cfg.DBDSN == "" {
			errs = multierr.Append(errs, fmt.Errorf("DB_DSN is required but not set"))
		}
	case StorageMemory:
	default:
		errs = multierr.Append(errs, fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", StoragePostgres, StorageMemory, cfg.StorageDriver))
	}

	if errs != nil {
		return nil, errs
	}
	return cfg, nil
}

func (c *Config) GetDBDSN() string {
	return c.DBDSN
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func durationOr(raw string, def time.Duration) (time.Duration, error) {
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return def, fmt.Errorf("OUTBOX_INTERVAL: invalid duration %q", raw)
	}
	return d, nil
}

func intOr(raw string, def int, name string) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def, fmt.Errorf("%s: must be a positive integer, got %q", name, raw)
	}
	return n, nil
}
