package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"adspace-cli/booking"
	"adspace-cli/pricing"
	"adspace-cli/revenue"

	"github.com/shopspring/decimal"
)

// MemoryStore is an in-process Store. Writes made inside WithListing are
// staged and applied together when the callback succeeds.
type MemoryStore struct {
	locks keyedMutex

	mu       sync.RWMutex
	listings map[string]booking.Listing
	cards    map[string]pricing.RateCard
	bookings map[string]booking.Booking
	ledger   []booking.LedgerEntry
	records  map[revenue.Period][]revenue.Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		listings: map[string]booking.Listing{},
		cards:    map[string]pricing.RateCard{},
		bookings: map[string]booking.Booking{},
		records:  map[revenue.Period][]revenue.Record{},
	}
}

func (m *MemoryStore) WithListing(ctx context.Context, listingID string, fn func(tx booking.ListingTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	unlock := m.locks.lock(listingID)
	defer unlock()

	tx := &memoryTx{store: m, listingID: listingID, bookings: map[string]booking.Booking{}}
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (m *MemoryStore) ListingOf(ctx context.Context, bookingID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bookings[bookingID]
	if !ok {
		return "", booking.NotFound("booking", bookingID)
	}
	return b.ListingID, nil
}

func (m *MemoryStore) Listings(ctx context.Context) ([]booking.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	listings := make([]booking.Listing, 0, len(m.listings))
	for _, l := range m.listings {
		listings = append(listings, l)
	}
	sort.Slice(listings, func(i, j int) bool { return listings[i].ID < listings[j].ID })
	return listings, nil
}

func (m *MemoryStore) Find(ctx context.Context, filter booking.Filter) ([]booking.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.findLocked(filter), nil
}

func (m *MemoryStore) findLocked(filter booking.Filter) []booking.Booking {
	found := []booking.Booking{}
	for _, b := range m.bookings {
		if filter.Match(b) {
			found = append(found, b)
		}
	}
	sortBookings(found)
	return found
}

func (m *MemoryStore) Snapshot(ctx context.Context, period revenue.Period) (revenue.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	bookings := m.findLocked(booking.Filter{
		Statuses:        []booking.Status{booking.Completed},
		From:            period.Start,
		To:              period.End,
		IncludeArchived: true,
	})
	total := decimal.Zero
	count := 0
	for _, entry := range m.ledger {
		if booking.Overlaps(entry.StartDate, entry.EndDate, period.Start, period.End) {
			total = total.Add(entry.Amount)
			count++
		}
	}
	return revenue.Snapshot{Bookings: bookings, LedgerTotal: total, LedgerEntries: count}, nil
}

func (m *MemoryStore) SaveRecords(ctx context.Context, period revenue.Period, records []revenue.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[period] = append([]revenue.Record(nil), records...)
	return nil
}

func (m *MemoryStore) Records(ctx context.Context, period revenue.Period) ([]revenue.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]revenue.Record{}, m.records[period]...), nil
}

func (m *MemoryStore) LedgerEntries(ctx context.Context, period revenue.Period) ([]booking.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := []booking.LedgerEntry{}
	for _, entry := range m.ledger {
		if booking.Overlaps(entry.StartDate, entry.EndDate, period.Start, period.End) {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func sortBookings(bookings []booking.Booking) {
	sort.Slice(bookings, func(i, j int) bool {
		a, b := bookings[i], bookings[j]
		if !a.StartDate.Equal(b.StartDate) {
			return a.StartDate.Before(b.StartDate)
		}
		if a.ListingID != b.ListingID {
			return a.ListingID < b.ListingID
		}
		return a.ID < b.ID
	})
}

type memoryTx struct {
	store     *MemoryStore
	listingID string

	listing       *booking.Listing
	card          *pricing.RateCard
	deleteListing bool
	bookings      map[string]booking.Booking
	ledger        []booking.LedgerEntry
}

func (t *memoryTx) Listing() (booking.Listing, error) {
	if t.deleteListing {
		return booking.Listing{}, booking.NotFound("listing", t.listingID)
	}
	if t.listing != nil {
		return *t.listing, nil
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	l, ok := t.store.listings[t.listingID]
	if !ok {
		return booking.Listing{}, booking.NotFound("listing", t.listingID)
	}
	return l, nil
}

func (t *memoryTx) PutListing(l booking.Listing) error {
	l.ID = t.listingID
	t.listing = &l
	t.deleteListing = false
	return nil
}

func (t *memoryTx) DeleteListing() error {
	if _, err := t.Listing(); err != nil {
		return err
	}
	t.listing = nil
	t.card = nil
	t.deleteListing = true
	return nil
}

func (t *memoryTx) RateCard() (pricing.RateCard, error) {
	if t.deleteListing {
		return pricing.RateCard{}, booking.NotFound("rate card", t.listingID)
	}
	if t.card != nil {
		return *t.card, nil
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	card, ok := t.store.cards[t.listingID]
	if !ok {
		return pricing.RateCard{}, booking.NotFound("rate card", t.listingID)
	}
	return card, nil
}

func (t *memoryTx) PutRateCard(card pricing.RateCard) error {
	card.ListingID = t.listingID
	card.Tiers = card.SortedTiers()
	t.card = &card
	return nil
}

func (t *memoryTx) Bookings() ([]booking.Booking, error) {
	t.store.mu.RLock()
	merged := map[string]booking.Booking{}
	for id, b := range t.store.bookings {
		if b.ListingID == t.listingID {
			merged[id] = b
		}
	}
	t.store.mu.RUnlock()
	for id, b := range t.bookings {
		merged[id] = b
	}

	bookings := make([]booking.Booking, 0, len(merged))
	for _, b := range merged {
		bookings = append(bookings, b)
	}
	sortBookings(bookings)
	return bookings, nil
}

func (t *memoryTx) Booking(id string) (booking.Booking, error) {
	if b, ok := t.bookings[id]; ok {
		return b, nil
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	b, ok := t.store.bookings[id]
	if !ok || b.ListingID != t.listingID {
		return booking.Booking{}, booking.NotFound("booking", id)
	}
	return b, nil
}

func (t *memoryTx) Insert(b booking.Booking) error {
	if _, err := t.Booking(b.ID); err == nil {
		return fmt.Errorf("booking %s already exists", b.ID)
	}
	if b.ListingID != t.listingID {
		return fmt.Errorf("booking %s belongs to listing %s, not %s", b.ID, b.ListingID, t.listingID)
	}
	t.bookings[b.ID] = b
	return nil
}

func (t *memoryTx) Update(b booking.Booking) error {
	if _, err := t.Booking(b.ID); err != nil {
		return err
	}
	t.bookings[b.ID] = b
	return nil
}

func (t *memoryTx) PostLedger(entry booking.LedgerEntry) error {
	t.ledger = append(t.ledger, entry)
	return nil
}

func (t *memoryTx) commit() {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.deleteListing {
		delete(s.listings, t.listingID)
		delete(s.cards, t.listingID)
	}
	if t.listing != nil {
		s.listings[t.listingID] = *t.listing
	}
	if t.card != nil {
		s.cards[t.listingID] = *t.card
	}
	for id, b := range t.bookings {
		s.bookings[id] = b
	}
	s.ledger = append(s.ledger, t.ledger...)
}
