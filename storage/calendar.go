package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"adspace-cli/pricing"
)

type calendarFilePayload struct {
	WeekendDays []string `json:"weekend_days"`
	Holidays    []string `json:"holidays"`
}

// LoadCalendar reads the weekend/holiday calendar at path. A missing file
// yields the default Saturday/Sunday calendar.
func LoadCalendar(path string) (pricing.Calendar, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return pricing.DefaultCalendar(), nil
		}
		return pricing.Calendar{}, err
	}
	if info.IsDir() {
		return pricing.Calendar{}, fmt.Errorf("calendar path is a directory: %s", path)
	}

	file, err := os.Open(path)
	if err != nil {
		return pricing.Calendar{}, err
	}
	defer file.Close()

	var payload calendarFilePayload
	if err := json.NewDecoder(file).Decode(&payload); err != nil {
		return pricing.Calendar{}, fmt.Errorf("decode calendar: %w", err)
	}

	cal := pricing.Calendar{Holidays: payload.Holidays}
	for _, name := range payload.WeekendDays {
		days, err := pricing.ParseWeekdays(name)
		if err != nil {
			return pricing.Calendar{}, err
		}
		cal.WeekendDays = append(cal.WeekendDays, days...)
	}
	if payload.WeekendDays == nil {
		cal.WeekendDays = pricing.DefaultCalendar().WeekendDays
	}
	if err := cal.Validate(); err != nil {
		return pricing.Calendar{}, err
	}
	return cal, nil
}

func SaveCalendar(path string, cal pricing.Calendar) error {
	if err := cal.Validate(); err != nil {
		return err
	}
	if err := ensureDir(filepath.Dir(path)); err != nil {
		return err
	}

	holidays := append([]string(nil), cal.Holidays...)
	sort.Strings(holidays)
	weekend := make([]time.Weekday, len(cal.WeekendDays))
	copy(weekend, cal.WeekendDays)
	sort.Slice(weekend, func(i, j int) bool { return weekend[i] < weekend[j] })

	payload := calendarFilePayload{WeekendDays: []string{}, Holidays: holidays}
	for _, day := range weekend {
		payload.WeekendDays = append(payload.WeekendDays, day.String())
	}
	if payload.Holidays == nil {
		payload.Holidays = []string{}
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(payload)
}
