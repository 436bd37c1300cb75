package booking

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"adspace-cli/pricing"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type CreateRequest struct {
	ListingID   string    `json:"listing_id" validate:"required"`
	RequesterID string    `json:"requester_id" validate:"required"`
	StartDate   time.Time `json:"start_date" validate:"required"`
	EndDate     time.Time `json:"end_date" validate:"required"`
}

// Service applies booking lifecycle transitions. It holds no booking state of
// its own; every operation goes through the Store's per-listing transaction.
type Service struct {
	store   Store
	calc    *pricing.Calculator
	rates   pricing.Rates
	refunds RefundPolicy
	logger  logrus.FieldLogger
	now     func() time.Time
}

type Option func(*Service)

func WithCalendar(cal pricing.Calendar) Option {
	return func(s *Service) { s.calc = pricing.NewCalculator(cal) }
}

func WithRates(rates pricing.Rates) Option {
	return func(s *Service) { s.rates = rates }
}

func WithRefundPolicy(policy RefundPolicy) Option {
	return func(s *Service) { s.refunds = policy }
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithClock overrides the time source used for audit timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store Store, opts ...Option) (*Service, error) {
	quiet := logrus.New()
	quiet.SetOutput(io.Discard)

	s := &Service{
		store:   store,
		calc:    pricing.NewCalculator(pricing.DefaultCalendar()),
		rates:   pricing.DefaultRates(),
		refunds: DefaultRefundPolicy(),
		logger:  quiet,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.rates.Validate(); err != nil {
		return nil, err
	}
	if err := s.refunds.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Service) Rates() pricing.Rates {
	return s.rates
}

func (s *Service) RefundPolicy() RefundPolicy {
	return s.refunds
}

// Quote prices a prospective booking against the listing's current rate card
// without reserving anything.
func (s *Service) Quote(ctx context.Context, listingID string, start, end time.Time) (pricing.Price, error) {
	var price pricing.Price
	err := s.store.WithListing(ctx, listingID, func(tx ListingTx) error {
		card, err := tx.RateCard()
		if err != nil {
			return err
		}
		price, err = s.calc.Price(card, s.rates, start, end)
		return err
	})
	return price, err
}

// SetRateCard replaces a listing's rate card. Existing bookings keep the
// amounts they were priced at.
func (s *Service) SetRateCard(ctx context.Context, card pricing.RateCard) error {
	if strings.TrimSpace(card.ListingID) == "" {
		return fmt.Errorf("%w: rate card has no listing", ErrInvalidRequest)
	}
	if err := card.Validate(); err != nil {
		return err
	}
	return s.store.WithListing(ctx, card.ListingID, func(tx ListingTx) error {
		if _, err := tx.Listing(); err != nil {
			return err
		}
		if err := tx.PutRateCard(card); err != nil {
			return err
		}
		s.logger.WithField("listing_id", card.ListingID).Info("rate card updated")
		return nil
	})
}

func (s *Service) CreateBooking(ctx context.Context, req CreateRequest) (Booking, error) {
	if err := validate.Struct(req); err != nil {
		return Booking{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	start := pricing.Day(req.StartDate)
	end := pricing.Day(req.EndDate)

	var created Booking
	err := s.store.WithListing(ctx, req.ListingID, func(tx ListingTx) error {
		card, err := tx.RateCard()
		if err != nil {
			return err
		}
		price, err := s.calc.Price(card, s.rates, start, end)
		if err != nil {
			return err
		}

		existing, err := tx.Bookings()
		if err != nil {
			return err
		}
		for _, other := range existing {
			if other.Status.HoldsDates() && other.Overlaps(start, end) {
				return &ConflictError{
					ListingID:     req.ListingID,
					ConflictingID: other.ID,
					Start:         pricing.FormatDate(other.StartDate),
					End:           pricing.FormatDate(other.EndDate),
				}
			}
		}

		now := s.now().UTC()
		created = Booking{
			ID:               uuid.NewString(),
			ListingID:        req.ListingID,
			RequesterID:      req.RequesterID,
			StartDate:        start,
			EndDate:          end,
			TotalDays:        price.Breakdown.TotalDays,
			Status:           Pending,
			BaseAmount:       price.Breakdown.BaseAmount,
			DiscountAmount:   price.Breakdown.DiscountAmount,
			GrossAmount:      price.Split.Subtotal,
			CommissionAmount: price.Split.Commission,
			NetAmount:        price.Split.Net,
			TaxAmount:        price.Split.Tax,
			FinalAmount:      price.Split.Final,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		return tx.Insert(created)
	})
	if err != nil {
		return Booking{}, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": created.ID,
		"listing_id": created.ListingID,
		"start":      pricing.FormatDate(created.StartDate),
		"end":        pricing.FormatDate(created.EndDate),
		"final":      created.FinalAmount.StringFixed(pricing.MoneyPlaces),
	}).Info("booking created")
	return created, nil
}

func (s *Service) Approve(ctx context.Context, id, approverID string) (Booking, error) {
	return s.transition(ctx, id, Approved, func(_ ListingTx, b *Booking) error {
		b.DecidedBy = approverID
		return nil
	})
}

func (s *Service) Reject(ctx context.Context, id, approverID, reason string) (Booking, error) {
	return s.transition(ctx, id, Rejected, func(_ ListingTx, b *Booking) error {
		b.DecidedBy = approverID
		b.RejectReason = reason
		return nil
	})
}

// Activate moves an approved booking to Active once now has reached its start
// date.
func (s *Service) Activate(ctx context.Context, id string, now time.Time) (Booking, error) {
	return s.transition(ctx, id, Active, func(_ ListingTx, b *Booking) error {
		if pricing.Day(now).Before(b.StartDate) {
			return &TransitionError{BookingID: b.ID, From: b.Status, To: Active,
				Reason: "starts on " + pricing.FormatDate(b.StartDate)}
		}
		return nil
	})
}

// Complete moves an active booking to Completed once now has reached its end
// date and posts its final amount to the ledger.
func (s *Service) Complete(ctx context.Context, id string, now time.Time) (Booking, error) {
	return s.transition(ctx, id, Completed, func(tx ListingTx, b *Booking) error {
		if pricing.Day(now).Before(b.EndDate) {
			return &TransitionError{BookingID: b.ID, From: b.Status, To: Completed,
				Reason: "ends on " + pricing.FormatDate(b.EndDate)}
		}
		return tx.PostLedger(LedgerEntry{
			ID:        uuid.NewString(),
			BookingID: b.ID,
			ListingID: b.ListingID,
			Amount:    b.FinalAmount,
			StartDate: b.StartDate,
			EndDate:   b.EndDate,
			PostedAt:  s.now().UTC(),
		})
	})
}

// Cancel is permitted from any live status. The refund owed under the policy
// is recorded on the booking before it becomes Cancelled.
func (s *Service) Cancel(ctx context.Context, id, actorID string, cancelDate time.Time) (Booking, error) {
	return s.transition(ctx, id, Cancelled, func(_ ListingTx, b *Booking) error {
		refund := CalculateRefund(s.refunds, *b, cancelDate)
		at := cancelDate.UTC()
		b.CancelledBy = actorID
		b.CancelledAt = &at
		b.RefundPercent = refund.Percent
		b.RefundAmount = refund.Amount
		return nil
	})
}

// RecordCharge stores a successful charge on a pending booking. A booking is
// charged at most once.
func (s *Service) RecordCharge(ctx context.Context, id, chargeID string, paidAt time.Time) (Booking, error) {
	var paid Booking
	err := s.withBooking(ctx, id, func(tx ListingTx, b Booking) error {
		if b.Paid() {
			return fmt.Errorf("%w: booking %s (charge %s)", ErrAlreadyPaid, b.ID, b.ChargeID)
		}
		if b.Status != Pending || b.Archived() {
			return &TransitionError{BookingID: b.ID, From: b.Status, To: b.Status, Reason: "only pending bookings are charged"}
		}
		at := paidAt.UTC()
		b.ChargeID = chargeID
		b.PaidAt = &at
		b.UpdatedAt = s.now().UTC()
		paid = b
		return tx.Update(b)
	})
	if err != nil {
		return Booking{}, err
	}
	s.logger.WithFields(logrus.Fields{"booking_id": id, "charge_id": chargeID}).Info("booking paid")
	return paid, nil
}

// Archive retires a booking in a terminal status. Archived bookings keep their
// financial record but can no longer change.
func (s *Service) Archive(ctx context.Context, id string) (Booking, error) {
	var archived Booking
	err := s.withBooking(ctx, id, func(tx ListingTx, b Booking) error {
		if b.Archived() {
			return &TransitionError{BookingID: b.ID, From: b.Status, To: b.Status, Reason: "already archived"}
		}
		if !b.Status.Terminal() {
			return &TransitionError{BookingID: b.ID, From: b.Status, To: b.Status, Reason: "only finished bookings can be archived"}
		}
		now := s.now().UTC()
		b.ArchivedAt = &now
		b.UpdatedAt = now
		archived = b
		return tx.Update(b)
	})
	if err != nil {
		return Booking{}, err
	}
	s.logger.WithFields(logrus.Fields{"booking_id": id, "listing_id": archived.ListingID}).Info("booking archived")
	return archived, nil
}

func (s *Service) Get(ctx context.Context, id string) (Booking, error) {
	var found Booking
	err := s.withBooking(ctx, id, func(_ ListingTx, b Booking) error {
		found = b
		return nil
	})
	return found, err
}

func (s *Service) List(ctx context.Context, filter Filter) ([]Booking, error) {
	return s.store.Find(ctx, filter)
}

func (s *Service) withBooking(ctx context.Context, id string, fn func(tx ListingTx, b Booking) error) error {
	listingID, err := s.store.ListingOf(ctx, id)
	if err != nil {
		return err
	}
	return s.store.WithListing(ctx, listingID, func(tx ListingTx) error {
		b, err := tx.Booking(id)
		if err != nil {
			return err
		}
		return fn(tx, b)
	})
}

func (s *Service) transition(ctx context.Context, id string, to Status, apply func(tx ListingTx, b *Booking) error) (Booking, error) {
	var (
		updated Booking
		from    Status
	)
	err := s.withBooking(ctx, id, func(tx ListingTx, b Booking) error {
		from = b.Status
		if b.Archived() {
			return &TransitionError{BookingID: id, From: from, To: to, Reason: "archived"}
		}
		if !from.CanTransitionTo(to) {
			return &TransitionError{BookingID: id, From: from, To: to}
		}
		if err := apply(tx, &b); err != nil {
			return err
		}
		b.Status = to
		b.UpdatedAt = s.now().UTC()
		updated = b
		return tx.Update(b)
	})
	if err != nil {
		return Booking{}, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": id,
		"listing_id": updated.ListingID,
		"from":       from.String(),
		"to":         to.String(),
	}).Info("booking transitioned")
	return updated, nil
}
