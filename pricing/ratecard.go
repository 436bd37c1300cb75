package pricing

import (
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type DiscountTier struct {
	MinimumDays     int             `json:"minimum_days" validate:"min=1"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
}

// RateCard is the price list of a single listing. Pricing does not depend on
// ListingID; the booking service requires it when a card is stored.
type RateCard struct {
	ListingID         string          `json:"listing_id"`
	BasePrice         decimal.Decimal `json:"base_price"`
	WeekendMultiplier decimal.Decimal `json:"weekend_multiplier"`
	HolidayMultiplier decimal.Decimal `json:"holiday_multiplier"`
	Tiers             []DiscountTier  `json:"tiers" validate:"dive"`
	MinimumDays       int             `json:"minimum_days" validate:"min=1"`
}

// NewRateCard returns a card with neutral multipliers, no tiers and a one day
// minimum.
func NewRateCard(listingID string, basePrice decimal.Decimal) RateCard {
	return RateCard{
		ListingID:         listingID,
		BasePrice:         basePrice,
		WeekendMultiplier: one,
		HolidayMultiplier: one,
		MinimumDays:       1,
	}
}

func (c RateCard) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRateCard, err)
	}
	if err := checkNonNegative("base price", c.BasePrice); err != nil {
		return err
	}
	if err := checkNonNegative("weekend multiplier", c.WeekendMultiplier); err != nil {
		return err
	}
	if err := checkNonNegative("holiday multiplier", c.HolidayMultiplier); err != nil {
		return err
	}
	for _, tier := range c.Tiers {
		if err := checkNonNegative(fmt.Sprintf("discount for %d days", tier.MinimumDays), tier.DiscountPercent); err != nil {
			return err
		}
	}
	if c.WeekendMultiplier.LessThan(one) {
		return fmt.Errorf("%w: weekend multiplier %s is below 1", ErrInvalidRateCard, c.WeekendMultiplier)
	}
	if c.HolidayMultiplier.LessThan(one) {
		return fmt.Errorf("%w: holiday multiplier %s is below 1", ErrInvalidRateCard, c.HolidayMultiplier)
	}

	tiers := c.SortedTiers()
	for i, tier := range tiers {
		if tier.DiscountPercent.GreaterThanOrEqual(hundred) {
			return fmt.Errorf("%w: discount %s%% for %d days outside [0,100)", ErrInvalidRateCard, tier.DiscountPercent, tier.MinimumDays)
		}
		if i == 0 {
			continue
		}
		prev := tiers[i-1]
		if prev.MinimumDays == tier.MinimumDays {
			return fmt.Errorf("%w: duplicate tier for %d days", ErrInvalidRateCard, tier.MinimumDays)
		}
		if tier.DiscountPercent.LessThan(prev.DiscountPercent) {
			return fmt.Errorf("%w: tier %d days (%s%%) discounts less than tier %d days (%s%%)",
				ErrInvalidRateCard, tier.MinimumDays, tier.DiscountPercent, prev.MinimumDays, prev.DiscountPercent)
		}
	}
	return nil
}

// SortedTiers returns the tiers ordered by MinimumDays ascending.
func (c RateCard) SortedTiers() []DiscountTier {
	tiers := make([]DiscountTier, len(c.Tiers))
	copy(tiers, c.Tiers)
	sort.SliceStable(tiers, func(i, j int) bool {
		return tiers[i].MinimumDays < tiers[j].MinimumDays
	})
	return tiers
}

// TierFor selects the tier with the largest MinimumDays not above days.
func (c RateCard) TierFor(days int) (DiscountTier, bool) {
	var best DiscountTier
	found := false
	for _, tier := range c.Tiers {
		if tier.MinimumDays > days {
			continue
		}
		if !found || tier.MinimumDays > best.MinimumDays {
			best = tier
			found = true
		}
	}
	return best, found
}

func (c RateCard) multiplierFor(dayType DayType) decimal.Decimal {
	switch dayType {
	case Holiday:
		return c.HolidayMultiplier
	case Weekend:
		return c.WeekendMultiplier
	default:
		return one
	}
}
