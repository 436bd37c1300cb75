package booking

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func bookingStarting(start string, final string) Booking {
	s, _ := time.Parse("2006-01-02", start)
	return Booking{
		ID:          "b-1",
		StartDate:   s,
		EndDate:     s.AddDate(0, 0, 10),
		FinalAmount: decimal.RequireFromString(final),
	}
}

func TestCalculateRefundTiers(t *testing.T) {
	policy := DefaultRefundPolicy()
	b := bookingStarting("2026-05-20", "9558")

	cases := []struct {
		cancel  string
		days    int
		percent string
		amount  string
	}{
		{"2026-04-01", 49, "100", "9558"},
		{"2026-05-13", 7, "100", "9558"},
		{"2026-05-14", 6, "70", "6690.6"},
		{"2026-05-17", 3, "70", "6690.6"},
		{"2026-05-18", 2, "50", "4779"},
		{"2026-05-19", 1, "50", "4779"},
		{"2026-05-20", 0, "0", "0"},
		{"2026-05-25", -5, "0", "0"},
	}
	for _, c := range cases {
		cancel, _ := time.Parse("2006-01-02", c.cancel)
		refund := CalculateRefund(policy, b, cancel)
		if refund.DaysBeforeStart != c.days {
			t.Fatalf("%s: expected %d days before start, got %d", c.cancel, c.days, refund.DaysBeforeStart)
		}
		if !refund.Percent.Equal(decimal.RequireFromString(c.percent)) {
			t.Fatalf("%s: expected %s%%, got %s%%", c.cancel, c.percent, refund.Percent)
		}
		if !refund.Amount.Equal(decimal.RequireFromString(c.amount)) {
			t.Fatalf("%s: expected refund %s, got %s", c.cancel, c.amount, refund.Amount)
		}
	}
}

func TestRefundMonotonic(t *testing.T) {
	policies := []RefundPolicy{
		DefaultRefundPolicy(),
		{Tiers: []RefundTier{{DaysBeforeStart: 30, Percent: decimal.NewFromInt(90)}, {DaysBeforeStart: 14, Percent: decimal.NewFromInt(40)}}},
		{Tiers: []RefundTier{{DaysBeforeStart: 1, Percent: decimal.NewFromInt(100)}}},
		{},
	}
	for _, policy := range policies {
		prev := policy.PercentFor(365)
		for days := 364; days >= -3; days-- {
			current := policy.PercentFor(days)
			if current.GreaterThan(prev) {
				t.Fatalf("policy %s: %d days refunds %s%%, more than %s%% one day earlier", policy, days, current, prev)
			}
			prev = current
		}
	}
}

func TestRefundRoundsToCents(t *testing.T) {
	policy := RefundPolicy{Tiers: []RefundTier{{DaysBeforeStart: 1, Percent: decimal.RequireFromString("33.3")}}}
	b := bookingStarting("2026-05-20", "100.01")
	cancel, _ := time.Parse("2006-01-02", "2026-05-10")
	refund := CalculateRefund(policy, b, cancel)
	if !refund.Amount.Equal(decimal.RequireFromString("33.3")) {
		t.Fatalf("expected 33.30, got %s", refund.Amount)
	}
}

func TestParseRefundPolicy(t *testing.T) {
	policy, err := ParseRefundPolicy("0:0, 7:100,1:50,3:70")
	if err != nil {
		t.Fatal(err)
	}
	if policy.String() != "7:100,3:70,1:50,0:0" {
		t.Fatalf("unexpected policy %s", policy)
	}
	if !policy.PercentFor(2).Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected 50%% at 2 days, got %s", policy.PercentFor(2))
	}

	bad := []string{
		"7",
		"x:10",
		"7:abc",
		"7:120",
		"7:50,3:70",
		"3:70,3:50",
		"-1:10",
	}
	for _, input := range bad {
		if _, err := ParseRefundPolicy(input); err == nil {
			t.Fatalf("expected %q to be rejected", input)
		}
	}
}
