package pricing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Breakdown is the gross price of a date range before commission and tax.
type Breakdown struct {
	TotalDays       int             `json:"total_days"`
	BaseAmount      decimal.Decimal `json:"base_amount"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	DayType         DayType         `json:"day_type"`
	Multiplier      decimal.Decimal `json:"multiplier"`
	Subtotal        decimal.Decimal `json:"subtotal"`
}

// Price is a breakdown together with its commission and tax split.
type Price struct {
	Breakdown Breakdown `json:"breakdown"`
	Split     Split     `json:"split"`
}

type Calculator struct {
	Calendar Calendar
}

func NewCalculator(cal Calendar) *Calculator {
	return &Calculator{Calendar: cal}
}

var defaultCalculator = NewCalculator(DefaultCalendar())

// Quote prices [start, end) with the default Saturday/Sunday calendar.
func Quote(card RateCard, start, end time.Time) (Breakdown, error) {
	return defaultCalculator.Quote(card, start, end)
}

// Quote prices the half-open range [start, end) against card.
//
// The day-type multiplier is chosen by the start date alone: a range that
// starts on a Friday and runs through the weekend is priced as weekday days.
func (c *Calculator) Quote(card RateCard, start, end time.Time) (Breakdown, error) {
	if err := card.Validate(); err != nil {
		return Breakdown{}, err
	}

	totalDays := DaysBetween(start, end)
	if totalDays <= 0 {
		return Breakdown{}, fmt.Errorf("%w: end %s is not after start %s", ErrInvalidDateRange, FormatDate(end), FormatDate(start))
	}
	if totalDays < card.MinimumDays {
		return Breakdown{}, fmt.Errorf("%w: %d days requested, listing requires %d", ErrBelowMinimumDays, totalDays, card.MinimumDays)
	}

	base := card.BasePrice.Mul(decimal.NewFromInt(int64(totalDays)))

	discountPercent := decimal.Zero
	if tier, ok := card.TierFor(totalDays); ok {
		discountPercent = tier.DiscountPercent
	}
	discounted := base.Sub(percentOf(base, discountPercent))

	dayType := c.Calendar.Classify(start)
	multiplier := card.multiplierFor(dayType)

	return Breakdown{
		TotalDays:       totalDays,
		BaseAmount:      Round(base),
		DiscountPercent: discountPercent,
		DiscountAmount:  Round(base.Sub(discounted)),
		DayType:         dayType,
		Multiplier:      multiplier,
		Subtotal:        Round(discounted.Mul(multiplier)),
	}, nil
}

// Price runs Quote and splits the subtotal with rates.
func (c *Calculator) Price(card RateCard, rates Rates, start, end time.Time) (Price, error) {
	breakdown, err := c.Quote(card, start, end)
	if err != nil {
		return Price{}, err
	}
	split, err := SplitAmount(breakdown.Subtotal, rates)
	if err != nil {
		return Price{}, err
	}
	return Price{Breakdown: breakdown, Split: split}, nil
}
