package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"adspace-cli/booking"
	"adspace-cli/pricing"
	"adspace-cli/storage"

	"github.com/shopspring/decimal"
	"golang.org/x/term"
)

// app bundles what a command needs; close releases the database.
type app struct {
	store    *storage.SQLiteStore
	service  *booking.Service
	location *time.Location
}

func openApp() (*app, error) {
	calendar, err := loadCalendar()
	if err != nil {
		return nil, err
	}
	rates, err := cfg.Rates()
	if err != nil {
		return nil, err
	}
	refunds, err := cfg.Refunds()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	store, err := storage.OpenSQLite(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	service, err := booking.NewService(store,
		booking.WithCalendar(calendar),
		booking.WithRates(rates),
		booking.WithRefundPolicy(refunds),
		booking.WithLogger(logger),
	)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return &app{store: store, service: service, location: loc}, nil
}

func (a *app) close() {
	_ = a.store.Close()
}

func calendarPath() (string, error) {
	if cfg.CalendarPath != "" {
		return cfg.CalendarPath, nil
	}
	return storage.CalendarPath()
}

func loadCalendar() (pricing.Calendar, error) {
	path, err := calendarPath()
	if err != nil {
		return pricing.Calendar{}, err
	}
	return storage.LoadCalendar(path)
}

// parseDateInput accepts YYYY-MM-DD, "today" or "tomorrow" in loc and returns
// the calendar date.
func parseDateInput(input string, loc *time.Location) (time.Time, error) {
	if input == "" {
		return time.Time{}, fmt.Errorf("date is required")
	}
	now := localNow(loc)
	switch strings.ToLower(input) {
	case "today":
		return pricing.Day(now), nil
	case "tomorrow":
		return pricing.Day(now.AddDate(0, 0, 1)), nil
	}
	return pricing.ParseDate(input)
}

func localNow(loc *time.Location) time.Time {
	return time.Now().In(loc)
}

func parseDateRange(from, to string, loc *time.Location) (time.Time, time.Time, error) {
	if from == "" || to == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("--from and --to are required")
	}
	start, err := parseDateInput(from, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := parseDateInput(to, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

func writeJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func formatMoney(amount decimal.Decimal) string {
	return pricing.FormatMoney(cfg.Currency, amount)
}

// confirm asks a yes/no question on an interactive terminal. Without a
// terminal it answers yes so scripts are not blocked.
func confirm(question string) (bool, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return true, nil
	}
	fmt.Fprintf(os.Stderr, "%s [y/N]: ", question)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false, err
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes", nil
}

func parseTiers(values []string) ([]pricing.DiscountTier, error) {
	tiers := make([]pricing.DiscountTier, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			fields := strings.Split(part, ":")
			if len(fields) != 2 {
				return nil, fmt.Errorf("invalid tier %q (expected days:percent)", part)
			}
			var days int
			if _, err := fmt.Sscanf(strings.TrimSpace(fields[0]), "%d", &days); err != nil {
				return nil, fmt.Errorf("invalid tier days %q", fields[0])
			}
			percent, err := pricing.ParseAmount(fields[1])
			if err != nil {
				return nil, fmt.Errorf("invalid tier percent %q: %w", fields[1], err)
			}
			tiers = append(tiers, pricing.DiscountTier{MinimumDays: days, DiscountPercent: percent})
		}
	}
	return tiers, nil
}
