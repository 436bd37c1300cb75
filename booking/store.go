package booking

import (
	"context"
	"time"

	"adspace-cli/pricing"
)

// Store is the persistence boundary of the lifecycle. Every read-modify-write
// of a listing's bookings happens inside WithListing.
type Store interface {
	// WithListing runs fn in a transaction scoped to listingID. Calls for the
	// same listing never interleave, and fn's writes are committed only when it
	// returns nil.
	WithListing(ctx context.Context, listingID string, fn func(tx ListingTx) error) error

	// ListingOf resolves the listing a booking belongs to.
	ListingOf(ctx context.Context, bookingID string) (string, error)

	Listings(ctx context.Context) ([]Listing, error)
	Find(ctx context.Context, filter Filter) ([]Booking, error)
}

type ListingTx interface {
	Listing() (Listing, error)
	PutListing(l Listing) error
	// DeleteListing removes the listing and its rate card. Bookings are
	// never touched.
	DeleteListing() error
	RateCard() (pricing.RateCard, error)
	PutRateCard(card pricing.RateCard) error
	Bookings() ([]Booking, error)
	Booking(id string) (Booking, error)
	Insert(b Booking) error
	Update(b Booking) error
	PostLedger(entry LedgerEntry) error
}

// Filter selects bookings. Zero fields match everything; From/To keep
// bookings whose range intersects [From, To).
type Filter struct {
	ListingID       string
	RequesterID     string
	Statuses        []Status
	From            time.Time
	To              time.Time
	IncludeArchived bool
}

func (f Filter) Match(b Booking) bool {
	if f.ListingID != "" && b.ListingID != f.ListingID {
		return false
	}
	if f.RequesterID != "" && b.RequesterID != f.RequesterID {
		return false
	}
	if !f.IncludeArchived && b.Archived() {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if s == b.Status {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.From.IsZero() && !b.EndDate.After(f.From) {
		return false
	}
	if !f.To.IsZero() && !b.StartDate.Before(f.To) {
		return false
	}
	return true
}
