package booking_test

import (
	"testing"

	"adspace-cli/revenue"
)

func mustPeriod(t *testing.T, from, to string) revenue.Period {
	t.Helper()
	p, err := revenue.NewPeriod(day(t, from), day(t, to))
	if err != nil {
		t.Fatal(err)
	}
	return p
}
