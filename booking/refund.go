package booking

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"adspace-cli/pricing"

	"github.com/shopspring/decimal"
)

// RefundTier grants Percent of the final amount when a booking is cancelled at
// least DaysBeforeStart days before it starts.
type RefundTier struct {
	DaysBeforeStart int             `json:"days_before_start"`
	Percent         decimal.Decimal `json:"refund_percent"`
}

type RefundPolicy struct {
	Tiers []RefundTier `json:"tiers"`
}

type Refund struct {
	DaysBeforeStart int             `json:"days_before_start"`
	Percent         decimal.Decimal `json:"percent"`
	Amount          decimal.Decimal `json:"amount"`
}

func DefaultRefundPolicy() RefundPolicy {
	return RefundPolicy{Tiers: []RefundTier{
		{DaysBeforeStart: 7, Percent: decimal.NewFromInt(100)},
		{DaysBeforeStart: 3, Percent: decimal.NewFromInt(70)},
		{DaysBeforeStart: 1, Percent: decimal.NewFromInt(50)},
		{DaysBeforeStart: 0, Percent: decimal.Zero},
	}}
}

// ParseRefundPolicy reads "days:percent" pairs, e.g. "7:100,3:70,1:50,0:0".
func ParseRefundPolicy(input string) (RefundPolicy, error) {
	policy := RefundPolicy{}
	for _, part := range strings.Split(input, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.Split(part, ":")
		if len(fields) != 2 {
			return RefundPolicy{}, fmt.Errorf("invalid refund tier %q (expected days:percent)", part)
		}
		days, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil {
			return RefundPolicy{}, fmt.Errorf("invalid refund tier days %q", fields[0])
		}
		percent, err := decimal.NewFromString(strings.TrimSpace(fields[1]))
		if err != nil {
			return RefundPolicy{}, fmt.Errorf("invalid refund tier percent %q", fields[1])
		}
		policy.Tiers = append(policy.Tiers, RefundTier{DaysBeforeStart: days, Percent: percent})
	}
	if err := policy.Validate(); err != nil {
		return RefundPolicy{}, err
	}
	return policy, nil
}

func (p RefundPolicy) Validate() error {
	tiers := p.sorted()
	for i, tier := range tiers {
		if tier.DaysBeforeStart < 0 {
			return fmt.Errorf("refund tier bound %d is negative", tier.DaysBeforeStart)
		}
		if tier.Percent.IsNegative() || tier.Percent.GreaterThan(decimal.NewFromInt(100)) {
			return fmt.Errorf("refund tier %d days: percent %s outside [0,100]", tier.DaysBeforeStart, tier.Percent)
		}
		if i == 0 {
			continue
		}
		prev := tiers[i-1]
		if prev.DaysBeforeStart == tier.DaysBeforeStart {
			return fmt.Errorf("duplicate refund tier for %d days", tier.DaysBeforeStart)
		}
		if tier.Percent.GreaterThan(prev.Percent) {
			return fmt.Errorf("refund tier %d days (%s%%) refunds more than tier %d days (%s%%)",
				tier.DaysBeforeStart, tier.Percent, prev.DaysBeforeStart, prev.Percent)
		}
	}
	return nil
}

// PercentFor walks the tiers from the most generous bound down and returns the
// first one met. Cancelling on or after the start date refunds nothing.
func (p RefundPolicy) PercentFor(daysBeforeStart int) decimal.Decimal {
	if daysBeforeStart <= 0 {
		return decimal.Zero
	}
	for _, tier := range p.sorted() {
		if daysBeforeStart >= tier.DaysBeforeStart {
			return tier.Percent
		}
	}
	return decimal.Zero
}

func (p RefundPolicy) String() string {
	parts := make([]string, 0, len(p.Tiers))
	for _, tier := range p.sorted() {
		parts = append(parts, fmt.Sprintf("%d:%s", tier.DaysBeforeStart, tier.Percent))
	}
	return strings.Join(parts, ",")
}

// sorted orders tiers by bound, largest first.
func (p RefundPolicy) sorted() []RefundTier {
	tiers := make([]RefundTier, len(p.Tiers))
	copy(tiers, p.Tiers)
	sort.SliceStable(tiers, func(i, j int) bool {
		return tiers[i].DaysBeforeStart > tiers[j].DaysBeforeStart
	})
	return tiers
}

func CalculateRefund(policy RefundPolicy, b Booking, cancelDate time.Time) Refund {
	days := pricing.DaysBetween(cancelDate, b.StartDate)
	percent := policy.PercentFor(days)
	return Refund{
		DaysBeforeStart: days,
		Percent:         percent,
		Amount:          pricing.Round(b.FinalAmount.Mul(percent).Div(decimal.NewFromInt(100))),
	}
}
