package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"adspace-cli/booking"
	"adspace-cli/pricing"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	envDatabase     = "ADSPACE_DB"
	envCalendar     = "ADSPACE_CALENDAR"
	envCommission   = "ADSPACE_COMMISSION_PERCENT"
	envTax          = "ADSPACE_TAX_PERCENT"
	envCurrency     = "ADSPACE_CURRENCY"
	envRefundPolicy = "ADSPACE_REFUND_POLICY"
	envPaymentURL   = "ADSPACE_PAYMENT_URL"
	envPaymentRate  = "ADSPACE_PAYMENT_RPS"
	envLogLevel     = "ADSPACE_LOG_LEVEL"
	envLogFile      = "ADSPACE_LOG_FILE"
	envTimezone     = "ADSPACE_TZ"
	envTickInterval = "ADSPACE_TICK_INTERVAL"
)

type Config struct {
	DatabasePath      string  `json:"database_path"`
	CalendarPath      string  `json:"calendar_path"`
	Currency          string  `json:"currency" validate:"required,len=3"`
	CommissionPercent float64 `json:"commission_percent" validate:"gte=0,lte=100"`
	TaxPercent        float64 `json:"tax_percent" validate:"gte=0"`
	RefundPolicy      string  `json:"refund_policy" validate:"required"`
	PaymentURL        string  `json:"payment_url" validate:"omitempty,url"`
	PaymentRPS        float64 `json:"payment_rps" validate:"gt=0"`
	LogLevel          string  `json:"log_level" validate:"oneof=trace debug info warn warning error fatal panic"`
	LogFile           string  `json:"log_file"`
	Timezone          string  `json:"timezone"`
	TickInterval      string  `json:"tick_interval"`
}

func Default() Config {
	return Config{
		Currency:          "INR",
		CommissionPercent: 10,
		TaxPercent:        18,
		RefundPolicy:      booking.DefaultRefundPolicy().String(),
		PaymentRPS:        5,
		LogLevel:          "warn",
		Timezone:          "UTC",
		TickInterval:      "1h",
	}
}

// Load layers defaults, the JSON config file, an optional .env file in the
// working directory and ADSPACE_* environment variables, later layers winning.
func Load() (Config, error) {
	conf := Default()

	path, err := Path()
	if err != nil {
		return Config{}, err
	}
	if err := mergeFile(&conf, path); err != nil {
		return Config{}, err
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	if err := mergeEnv(&conf, os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := conf.Validate(); err != nil {
		return Config{}, err
	}
	return conf, nil
}

func Path() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "adspace", "config.json"), nil
}

func mergeFile(conf *Config, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("config path is a directory: %s", path)
	}

	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(conf); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func mergeEnv(conf *Config, lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		envDatabase:     &conf.DatabasePath,
		envCalendar:     &conf.CalendarPath,
		envCurrency:     &conf.Currency,
		envRefundPolicy: &conf.RefundPolicy,
		envPaymentURL:   &conf.PaymentURL,
		envLogLevel:     &conf.LogLevel,
		envLogFile:      &conf.LogFile,
		envTimezone:     &conf.Timezone,
		envTickInterval: &conf.TickInterval,
	}
	for key, dest := range strs {
		if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
			*dest = strings.TrimSpace(value)
		}
	}

	floats := map[string]*float64{
		envCommission:  &conf.CommissionPercent,
		envTax:         &conf.TaxPercent,
		envPaymentRate: &conf.PaymentRPS,
	}
	for key, dest := range floats {
		value, ok := lookup(key)
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return fmt.Errorf("%s: invalid number %q", key, value)
		}
		*dest = parsed
	}
	return nil
}

func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.Rates(); err != nil {
		return err
	}
	if _, err := c.Refunds(); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := c.Interval(); err != nil {
		return err
	}
	return nil
}

// Rates converts the configured percentages, rejecting NaN and infinities.
func (c Config) Rates() (pricing.Rates, error) {
	commission, err := pricing.FromFloat(c.CommissionPercent)
	if err != nil {
		return pricing.Rates{}, fmt.Errorf("commission_percent: %w", err)
	}
	tax, err := pricing.FromFloat(c.TaxPercent)
	if err != nil {
		return pricing.Rates{}, fmt.Errorf("tax_percent: %w", err)
	}
	rates := pricing.Rates{CommissionPercent: commission, TaxPercent: tax}
	if err := rates.Validate(); err != nil {
		return pricing.Rates{}, err
	}
	return rates, nil
}

func (c Config) Refunds() (booking.RefundPolicy, error) {
	policy, err := booking.ParseRefundPolicy(c.RefundPolicy)
	if err != nil {
		return booking.RefundPolicy{}, fmt.Errorf("refund_policy: %w", err)
	}
	return policy, nil
}

func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (c Config) Interval() (time.Duration, error) {
	if c.TickInterval == "" {
		return time.Hour, nil
	}
	d, err := time.ParseDuration(c.TickInterval)
	if err != nil {
		return 0, fmt.Errorf("tick_interval: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("tick_interval must be positive")
	}
	return d, nil
}

// Logger builds the process logger. Entries go to stderr, or to a rotated
// file when LogFile is set. The closer is nil when logging to stderr.
func (c Config) Logger() (*logrus.Logger, io.Closer) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.WarnLevel
	}
	logger.SetLevel(level)

	if c.LogFile == "" {
		logger.SetOutput(os.Stderr)
		return logger, nil
	}
	file := &lumberjack.Logger{
		Filename:   c.LogFile,
		MaxSize:    1,
		MaxBackups: 3,
		LocalTime:  true,
	}
	logger.SetOutput(file)
	return logger, file
}
