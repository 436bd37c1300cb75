package booking

import (
	"time"

	"github.com/shopspring/decimal"
)

type Listing struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// Booking is a request for a listing over the half-open date range
// [StartDate, EndDate). Dates are calendar dates at UTC midnight.
type Booking struct {
	ID          string    `json:"id"`
	ListingID   string    `json:"listing_id"`
	RequesterID string    `json:"requester_id"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	TotalDays   int       `json:"total_days"`
	Status      Status    `json:"status"`

	BaseAmount       decimal.Decimal `json:"base_amount"`
	DiscountAmount   decimal.Decimal `json:"discount_amount"`
	GrossAmount      decimal.Decimal `json:"gross_amount"`
	CommissionAmount decimal.Decimal `json:"commission_amount"`
	NetAmount        decimal.Decimal `json:"net_amount"`
	TaxAmount        decimal.Decimal `json:"tax_amount"`
	FinalAmount      decimal.Decimal `json:"final_amount"`

	DecidedBy     string          `json:"decided_by,omitempty"`
	RejectReason  string          `json:"reject_reason,omitempty"`
	CancelledBy   string          `json:"cancelled_by,omitempty"`
	CancelledAt   *time.Time      `json:"cancelled_at,omitempty"`
	RefundPercent decimal.Decimal `json:"refund_percent"`
	RefundAmount  decimal.Decimal `json:"refund_amount"`
	ChargeID      string          `json:"charge_id,omitempty"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	ArchivedAt *time.Time `json:"archived_at,omitempty"`
}

func (b Booking) Archived() bool {
	return b.ArchivedAt != nil
}

func (b Booking) Paid() bool {
	return b.PaidAt != nil
}

func (b Booking) Overlaps(start, end time.Time) bool {
	return Overlaps(b.StartDate, b.EndDate, start, end)
}

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) share a day.
// Ranges that only touch (aEnd == bStart) do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// LedgerEntry records the amount collected for a completed booking. Ledger
// totals are computed from these entries, never from bookings.
type LedgerEntry struct {
	ID        string          `json:"id"`
	BookingID string          `json:"booking_id"`
	ListingID string          `json:"listing_id"`
	Amount    decimal.Decimal `json:"amount"`
	StartDate time.Time       `json:"start_date"`
	EndDate   time.Time       `json:"end_date"`
	PostedAt  time.Time       `json:"posted_at"`
}
