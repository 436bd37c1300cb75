package config

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"adspace-cli/pricing"

	"github.com/shopspring/decimal"
)

func TestDefaultIsValid(t *testing.T) {
	conf := Default()
	if err := conf.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	rates, err := conf.Rates()
	if err != nil {
		t.Fatal(err)
	}
	if !rates.CommissionPercent.Equal(decimal.NewFromInt(10)) || !rates.TaxPercent.Equal(decimal.NewFromInt(18)) {
		t.Fatalf("unexpected default rates %+v", rates)
	}
	policy, err := conf.Refunds()
	if err != nil {
		t.Fatal(err)
	}
	if !policy.PercentFor(3).Equal(decimal.NewFromInt(70)) {
		t.Fatalf("unexpected default refund policy %s", policy)
	}
}

func TestMergeEnv(t *testing.T) {
	env := map[string]string{
		envCommission:   "12.5",
		envTax:          " 5 ",
		envCurrency:     "EUR",
		envRefundPolicy: "14:100,0:0",
		envTickInterval: "15m",
		envLogLevel:     "",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	conf := Default()
	if err := mergeEnv(&conf, lookup); err != nil {
		t.Fatal(err)
	}
	if conf.CommissionPercent != 12.5 || conf.TaxPercent != 5 || conf.Currency != "EUR" {
		t.Fatalf("env not applied: %+v", conf)
	}
	if conf.LogLevel != "warn" {
		t.Fatalf("empty value should keep the default, got %q", conf.LogLevel)
	}
	interval, err := conf.Interval()
	if err != nil {
		t.Fatal(err)
	}
	if interval != 15*time.Minute {
		t.Fatalf("expected 15m, got %s", interval)
	}

	env[envTax] = "lots"
	if err := mergeEnv(&conf, lookup); err == nil {
		t.Fatal("expected an error for a non-numeric tax percent")
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(c *Config){
		"currency":      func(c *Config) { c.Currency = "RUPEE" },
		"commission":    func(c *Config) { c.CommissionPercent = 120 },
		"negative tax":  func(c *Config) { c.TaxPercent = -1 },
		"refund policy": func(c *Config) { c.RefundPolicy = "7:100,3:120" },
		"log level":     func(c *Config) { c.LogLevel = "loud" },
		"timezone":      func(c *Config) { c.Timezone = "Mars/Olympus" },
		"interval":      func(c *Config) { c.TickInterval = "-1h" },
		"payment url":   func(c *Config) { c.PaymentURL = "not a url" },
	}
	for name, mutate := range cases {
		conf := Default()
		mutate(&conf)
		if err := conf.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestRatesRejectNonFinite(t *testing.T) {
	conf := Default()
	conf.TaxPercent = math.NaN()
	if _, err := conf.Rates(); !errors.Is(err, pricing.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	conf = Default()
	conf.CommissionPercent = math.Inf(1)
	if _, err := conf.Rates(); !errors.Is(err, pricing.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestLoadLayers(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(envCurrency, "USD")

	path := filepath.Join(home, ".config", "adspace", "config.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	body := `{"currency": "EUR", "tax_percent": 7}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	conf, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if conf.Currency != "USD" {
		t.Fatalf("environment should override the file, got %q", conf.Currency)
	}
	if conf.TaxPercent != 7 || conf.CommissionPercent != 10 {
		t.Fatalf("file should override defaults only where set: %+v", conf)
	}
	loc, err := conf.Location()
	if err != nil {
		t.Fatal(err)
	}
	if loc != time.UTC {
		t.Fatalf("unexpected location %s", loc)
	}
}

func TestLoadRejectsBrokenFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	path := filepath.Join(home, ".config", "adspace", "config.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("{"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(); err == nil {
		t.Fatal("expected a decode error")
	}
}

func TestLoggerWritesToFile(t *testing.T) {
	conf := Default()
	conf.LogLevel = "info"
	conf.LogFile = filepath.Join(t.TempDir(), "adspace.log")

	logger, closer := conf.Logger()
	if closer == nil {
		t.Fatal("expected a closer for file logging")
	}
	logger.WithField("booking_id", "b-1").Info("booking created")
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(conf.LogFile)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "booking_id=b-1") {
		t.Fatalf("log entry missing from file: %q", data)
	}

	conf.LogFile = ""
	if _, closer := conf.Logger(); closer != nil {
		t.Fatal("stderr logging should not need closing")
	}
}
