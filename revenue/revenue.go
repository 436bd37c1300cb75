package revenue

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"adspace-cli/booking"
	"adspace-cli/pricing"

	"github.com/shopspring/decimal"
)

var (
	ErrLedgerMismatch = errors.New("ledger mismatch")
	ErrInvalidPeriod  = errors.New("invalid reporting period")
)

// Period is a half-open reporting window [Start, End) of calendar dates.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func NewPeriod(start, end time.Time) (Period, error) {
	p := Period{Start: pricing.Day(start), End: pricing.Day(end)}
	if err := p.Validate(); err != nil {
		return Period{}, err
	}
	return p, nil
}

// Month returns the period covering the calendar month containing t.
func Month(t time.Time) Period {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return Period{Start: start, End: start.AddDate(0, 1, 0)}
}

func (p Period) Validate() error {
	if !p.End.After(p.Start) {
		return fmt.Errorf("%w: end %s is not after start %s", ErrInvalidPeriod, pricing.FormatDate(p.End), pricing.FormatDate(p.Start))
	}
	return nil
}

func (p Period) String() string {
	return pricing.FormatDate(p.Start) + ".." + pricing.FormatDate(p.End)
}

// ActiveDays counts the days of [start, end) that fall inside the period.
func (p Period) ActiveDays(start, end time.Time) int {
	from := start
	if p.Start.After(from) {
		from = p.Start
	}
	to := end
	if p.End.Before(to) {
		to = p.End
	}
	days := pricing.DaysBetween(from, to)
	if days < 0 {
		return 0
	}
	return days
}

// Record is the revenue of one listing over one period.
type Record struct {
	ListingID      string          `json:"listing_id"`
	PeriodStart    time.Time       `json:"period_start"`
	PeriodEnd      time.Time       `json:"period_end"`
	GrossRevenue   decimal.Decimal `json:"gross_revenue"`
	Commission     decimal.Decimal `json:"commission"`
	NetRevenue     decimal.Decimal `json:"net_revenue"`
	Tax            decimal.Decimal `json:"tax"`
	FinalRevenue   decimal.Decimal `json:"final_revenue"`
	PercentOfTotal decimal.Decimal `json:"percent_of_total"`
	BookingCount   int             `json:"booking_count"`
	ActiveDays     int             `json:"active_days"`
}

// Aggregate folds completed bookings that intersect the period into one
// record per listing, ordered by listing ID. Bookings in any other status or
// outside the period are ignored.
func Aggregate(period Period, bookings []booking.Booking) []Record {
	byListing := map[string]*Record{}
	for _, b := range bookings {
		if b.Status != booking.Completed {
			continue
		}
		if !booking.Overlaps(b.StartDate, b.EndDate, period.Start, period.End) {
			continue
		}
		rec, ok := byListing[b.ListingID]
		if !ok {
			rec = &Record{
				ListingID:   b.ListingID,
				PeriodStart: period.Start,
				PeriodEnd:   period.End,
			}
			byListing[b.ListingID] = rec
		}
		rec.GrossRevenue = rec.GrossRevenue.Add(b.GrossAmount)
		rec.Commission = rec.Commission.Add(b.CommissionAmount)
		rec.NetRevenue = rec.NetRevenue.Add(b.NetAmount)
		rec.Tax = rec.Tax.Add(b.TaxAmount)
		rec.FinalRevenue = rec.FinalRevenue.Add(b.FinalAmount)
		rec.BookingCount++
		rec.ActiveDays += period.ActiveDays(b.StartDate, b.EndDate)
	}

	records := make([]Record, 0, len(byListing))
	total := decimal.Zero
	for _, rec := range byListing {
		total = total.Add(rec.FinalRevenue)
		records = append(records, *rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].ListingID < records[j].ListingID
	})

	for i := range records {
		records[i].PercentOfTotal = percentOfTotal(records[i].FinalRevenue, total)
	}
	return records
}

func percentOfTotal(part, total decimal.Decimal) decimal.Decimal {
	if total.IsZero() {
		return decimal.Zero
	}
	return pricing.Round(part.Div(total).Mul(decimal.NewFromInt(100)))
}

// Total sums the final revenue of records.
func Total(records []Record) decimal.Decimal {
	total := decimal.Zero
	for _, rec := range records {
		total = total.Add(rec.FinalRevenue)
	}
	return total
}

// Tolerance is one minor currency unit per record, absorbing per-booking
// rounding.
func Tolerance(records int) decimal.Decimal {
	return pricing.MinorUnit().Mul(decimal.NewFromInt(int64(records)))
}

type MismatchError struct {
	Period     Period
	Computed   decimal.Decimal
	Ledger     decimal.Decimal
	Difference decimal.Decimal
	Tolerance  decimal.Decimal
	Records    int
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s for %s: computed %s, ledger %s, difference %s exceeds tolerance %s over %d records",
		ErrLedgerMismatch, e.Period, e.Computed.StringFixed(2), e.Ledger.StringFixed(2),
		e.Difference.StringFixed(2), e.Tolerance.StringFixed(2), e.Records)
}

func (e *MismatchError) Is(target error) bool {
	return target == ErrLedgerMismatch
}
