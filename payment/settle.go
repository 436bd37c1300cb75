package payment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"adspace-cli/booking"

	"github.com/sirupsen/logrus"
)

type Charger interface {
	Charge(ctx context.Context, charge ChargeRequest) (ChargeResult, error)
}

type Lifecycle interface {
	Get(ctx context.Context, id string) (booking.Booking, error)
	Reject(ctx context.Context, id, approverID, reason string) (booking.Booking, error)
	RecordCharge(ctx context.Context, id, chargeID string, paidAt time.Time) (booking.Booking, error)
}

// Settler charges a pending booking's final amount. When the charge fails the
// booking is rejected rather than left pending; the computed price is never
// revisited.
type Settler struct {
	charger   Charger
	lifecycle Lifecycle
	currency  string
	actor     string
	logger    logrus.FieldLogger
	now       func() time.Time
}

func NewSettler(charger Charger, lifecycle Lifecycle, currency string, logger logrus.FieldLogger) *Settler {
	if logger == nil {
		quiet := logrus.New()
		quiet.SetOutput(io.Discard)
		logger = quiet
	}
	return &Settler{charger: charger, lifecycle: lifecycle, currency: currency, actor: "payment", logger: logger, now: time.Now}
}

type Outcome struct {
	Booking booking.Booking `json:"booking"`
	Charge  ChargeResult    `json:"charge"`
	Paid    bool            `json:"paid"`
}

func (s *Settler) Settle(ctx context.Context, bookingID string) (Outcome, error) {
	b, err := s.lifecycle.Get(ctx, bookingID)
	if err != nil {
		return Outcome{}, err
	}
	if b.Paid() {
		return Outcome{}, fmt.Errorf("%w: booking %s (charge %s)", booking.ErrAlreadyPaid, b.ID, b.ChargeID)
	}
	if b.Status != booking.Pending {
		return Outcome{}, &booking.TransitionError{BookingID: b.ID, From: b.Status, To: booking.Rejected, Reason: "only pending bookings are charged"}
	}

	log := s.logger.WithFields(logrus.Fields{"booking_id": b.ID, "listing_id": b.ListingID, "amount": b.FinalAmount.StringFixed(2)})
	result, chargeErr := s.charger.Charge(ctx, ChargeRequest{
		BookingID:      b.ID,
		Amount:         b.FinalAmount,
		Currency:       s.currency,
		IdempotencyKey: "booking-" + b.ID,
	})
	if notAttempted(chargeErr) {
		return Outcome{}, chargeErr
	}
	if chargeErr == nil && result.Succeeded() {
		log.WithField("charge_id", result.ChargeID).Info("charge succeeded")
		paid, err := s.lifecycle.RecordCharge(ctx, b.ID, result.ChargeID, s.now())
		if err != nil {
			return Outcome{}, fmt.Errorf("record charge %s: %w", result.ChargeID, err)
		}
		return Outcome{Booking: paid, Charge: result, Paid: true}, nil
	}

	reason := "payment failed: "
	if chargeErr != nil {
		reason += chargeErr.Error()
	} else if result.Message != "" {
		reason += result.Message
	} else {
		reason += result.Status
	}
	log.WithField("reason", reason).Warn("charge failed, rejecting booking")

	rejected, err := s.lifecycle.Reject(ctx, b.ID, s.actor, reason)
	if err != nil {
		return Outcome{}, fmt.Errorf("reject after failed charge: %w", err)
	}
	return Outcome{Booking: rejected, Charge: result, Paid: false}, nil
}

// notAttempted reports errors after which the booking is left pending: the
// collaborator was never reached or the caller gave up waiting.
func notAttempted(err error) bool {
	return errors.Is(err, ErrNotConfigured) ||
		errors.Is(err, ErrUnavailable) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
