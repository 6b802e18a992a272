package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
)

// ErrInvalidConfig wraps every configuration error. These are fatal at startup.
var ErrInvalidConfig = errors.New("invalid configuration")

// AppConfig holds all configuration for the application
type AppConfig struct {
	TelegramToken   string
	AdminTelegramID int64 // 0 disables admin commands
	DatabaseDriver  string
	DatabaseURL     string
	LogLevel        string
	Environment     string

	PaymentDays       []int
	DaysBefore        int
	DaysAfter         int
	PollInterval      string        // Go duration ("1h") or cron expression ("0 * * * *")
	PollSchedule      cron.Schedule // Parsed from PollInterval
	MinPaymentAmount  decimal.Decimal
	ReferenceTimezone *time.Location

	AccountPacing       time.Duration // Delay between two accounts within one cycle
	FailureCooldown     time.Duration // Sleep after a failed cycle
	ExternalCallTimeout time.Duration

	DNBBalanceURL      string
	DNBTransactionsURL string // Empty until the transactions endpoint is available
	DNBChannel         string
	CardNumberLength   int
}

// SchedulerConfig is the part of the configuration the payment scheduler needs.
type SchedulerConfig struct {
	PaymentDays         []int
	DaysBefore          int
	DaysAfter           int
	Schedule            cron.Schedule
	MinPaymentAmount    decimal.Decimal
	Location            *time.Location
	AccountPacing       time.Duration
	FailureCooldown     time.Duration
	ExternalCallTimeout time.Duration
}

const (
	defaultDatabaseDriver    = "sqlite3"
	defaultDatabaseURL       = "payments.db"
	defaultPaymentDays       = "1,16"
	defaultDaysBefore        = 2
	defaultDaysAfter         = 2
	defaultPollInterval      = "1h"
	defaultMinPaymentAmount  = "1000"
	defaultReferenceTimezone = "Europe/Oslo"
	defaultAccountPacing     = time.Second
	defaultFailureCooldown   = 5 * time.Minute
	defaultCallTimeout       = 30 * time.Second
	defaultDNBBalanceURL     = "https://api-open.ccp.dnb.no/v1/kronekort/balance"
	defaultDNBChannel        = "BMPULS"
	defaultCardNumberLength  = 12
)

// Load reads configuration from environment variables and .env file (if present).
// The Telegram token is only required by the bot itself, see RequireTelegram.
func Load() (*AppConfig, error) {
	// godotenv.Load does not override variables that are already set.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")

	if adminIDStr := os.Getenv("ADMIN_TELEGRAM_ID"); adminIDStr != "" {
		cfg.AdminTelegramID, err = strconv.ParseInt(adminIDStr, 10, 64)
		if err != nil {
			return nil, invalid("ADMIN_TELEGRAM_ID", err)
		}
	}

	cfg.DatabaseDriver = strings.ToLower(getEnv("DATABASE_DRIVER", defaultDatabaseDriver))
	if cfg.DatabaseDriver != "postgres" && cfg.DatabaseDriver != "sqlite3" {
		return nil, invalid("DATABASE_DRIVER", fmt.Errorf("unsupported driver %q", cfg.DatabaseDriver))
	}
	cfg.DatabaseURL = getEnv("DATABASE_URL", defaultDatabaseURL)

	cfg.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", "info"))
	cfg.Environment = strings.ToLower(getEnv("ENVIRONMENT", "development"))

	cfg.PaymentDays, err = ParsePaymentDays(getEnv("PAYMENT_DAYS", defaultPaymentDays))
	if err != nil {
		return nil, invalid("PAYMENT_DAYS", err)
	}

	if cfg.DaysBefore, err = getNonNegativeInt("PAYMENT_DAYS_BEFORE", defaultDaysBefore); err != nil {
		return nil, err
	}
	if cfg.DaysAfter, err = getNonNegativeInt("PAYMENT_DAYS_AFTER", defaultDaysAfter); err != nil {
		return nil, err
	}

	cfg.PollInterval = getEnv("POLL_INTERVAL", defaultPollInterval)
	cfg.PollSchedule, err = ParsePollSchedule(cfg.PollInterval)
	if err != nil {
		return nil, invalid("POLL_INTERVAL", err)
	}

	cfg.MinPaymentAmount, err = decimal.NewFromString(getEnv("PAYMENT_MIN_AMOUNT", defaultMinPaymentAmount))
	if err != nil {
		return nil, invalid("PAYMENT_MIN_AMOUNT", err)
	}

	cfg.ReferenceTimezone, err = time.LoadLocation(getEnv("REFERENCE_TIMEZONE", defaultReferenceTimezone))
	if err != nil {
		return nil, invalid("REFERENCE_TIMEZONE", err)
	}

	if cfg.AccountPacing, err = getDuration("ACCOUNT_PACING", defaultAccountPacing); err != nil {
		return nil, err
	}
	if cfg.FailureCooldown, err = getDuration("FAILURE_COOLDOWN", defaultFailureCooldown); err != nil {
		return nil, err
	}
	if cfg.ExternalCallTimeout, err = getDuration("EXTERNAL_CALL_TIMEOUT", defaultCallTimeout); err != nil {
		return nil, err
	}
	if cfg.ExternalCallTimeout <= 0 {
		return nil, invalid("EXTERNAL_CALL_TIMEOUT", errors.New("must be positive"))
	}

	cfg.DNBBalanceURL = getEnv("DNB_BALANCE_URL", defaultDNBBalanceURL)
	cfg.DNBTransactionsURL = os.Getenv("DNB_TRANSACTIONS_URL")
	cfg.DNBChannel = getEnv("DNB_CHANNEL", defaultDNBChannel)

	if cfg.CardNumberLength, err = getNonNegativeInt("CARD_NUMBER_LENGTH", defaultCardNumberLength); err != nil {
		return nil, err
	}
	if cfg.CardNumberLength < 2 {
		return nil, invalid("CARD_NUMBER_LENGTH", errors.New("must be at least 2"))
	}

	return cfg, nil
}

// RequireTelegram checks the settings needed to run the Telegram bot.
func (c *AppConfig) RequireTelegram() error {
	if c.TelegramToken == "" {
		return invalid("TELEGRAM_TOKEN", errors.New("not set"))
	}
	return nil
}

// Scheduler returns the settings of the payment scheduler.
func (c *AppConfig) Scheduler() SchedulerConfig {
	return SchedulerConfig{
		PaymentDays:         c.PaymentDays,
		DaysBefore:          c.DaysBefore,
		DaysAfter:           c.DaysAfter,
		Schedule:            c.PollSchedule,
		MinPaymentAmount:    c.MinPaymentAmount,
		Location:            c.ReferenceTimezone,
		AccountPacing:       c.AccountPacing,
		FailureCooldown:     c.FailureCooldown,
		ExternalCallTimeout: c.ExternalCallTimeout,
	}
}

// ParsePaymentDays parses a comma separated, ordered list of days of month.
// Order is kept. Out-of-range days are accepted; they simply never match.
func ParsePaymentDays(value string) ([]int, error) {
	var days []int
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		day, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid day of month %q: %w", part, err)
		}
		days = append(days, day)
	}
	if len(days) == 0 {
		return nil, errors.New("at least one payment day is required")
	}
	return days, nil
}

// ParsePollSchedule accepts either a Go duration or a cron expression (standard
// five fields or descriptors such as "@hourly").
func ParsePollSchedule(value string) (cron.Schedule, error) {
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		if d <= 0 {
			return nil, errors.New("poll interval must be positive")
		}
		return cron.Every(d), nil
	}
	schedule, err := cron.ParseStandard(value)
	if err != nil {
		return nil, fmt.Errorf("%q is neither a duration nor a cron expression: %w", value, err)
	}
	return schedule, nil
}

func invalid(key string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
}

// getEnv returns the value of key or fallback when it is unset or empty.
func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getNonNegativeInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, invalid(key, err)
	}
	if n < 0 {
		return 0, invalid(key, errors.New("must not be negative"))
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, invalid(key, err)
	}
	if d < 0 {
		return 0, invalid(key, errors.New("must not be negative"))
	}
	return d, nil
}
