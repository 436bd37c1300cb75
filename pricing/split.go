package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Rates are the platform-wide commission and tax percentages.
type Rates struct {
	CommissionPercent decimal.Decimal `json:"commission_percent"`
	TaxPercent        decimal.Decimal `json:"tax_percent"`
}

func DefaultRates() Rates {
	return Rates{
		CommissionPercent: decimal.NewFromInt(10),
		TaxPercent:        decimal.NewFromInt(18),
	}
}

func (r Rates) Validate() error {
	if err := checkNonNegative("commission rate", r.CommissionPercent); err != nil {
		return err
	}
	if err := checkNonNegative("tax rate", r.TaxPercent); err != nil {
		return err
	}
	if r.CommissionPercent.GreaterThan(hundred) {
		return fmt.Errorf("%w: commission rate %s%% exceeds 100", ErrInvalidAmount, r.CommissionPercent)
	}
	return nil
}

type Split struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	Commission decimal.Decimal `json:"commission"`
	Net        decimal.Decimal `json:"net"`
	Tax        decimal.Decimal `json:"tax"`
	Final      decimal.Decimal `json:"final"`
}

// SplitAmount takes the platform commission off subtotal and adds tax on the
// remainder: final = (subtotal - commission) + tax.
func SplitAmount(subtotal decimal.Decimal, rates Rates) (Split, error) {
	if err := checkNonNegative("subtotal", subtotal); err != nil {
		return Split{}, err
	}
	if err := rates.Validate(); err != nil {
		return Split{}, err
	}

	subtotal = Round(subtotal)
	commission := Round(percentOf(subtotal, rates.CommissionPercent))
	net := subtotal.Sub(commission)
	tax := Round(percentOf(net, rates.TaxPercent))

	return Split{
		Subtotal:   subtotal,
		Commission: commission,
		Net:        net,
		Tax:        tax,
		Final:      net.Add(tax),
	}, nil
}
