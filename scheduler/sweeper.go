package scheduler

import (
	"context"
	"io"
	"time"

	"adspace-cli/booking"
	"adspace-cli/pricing"

	"github.com/sirupsen/logrus"
)

// Lifecycle is the part of booking.Service the sweeper drives.
type Lifecycle interface {
	List(ctx context.Context, filter booking.Filter) ([]booking.Booking, error)
	Activate(ctx context.Context, id string, now time.Time) (booking.Booking, error)
	Complete(ctx context.Context, id string, now time.Time) (booking.Booking, error)
}

type Result struct {
	Activated []string `json:"activated"`
	Completed []string `json:"completed"`
	Failed    []string `json:"failed"`
}

// Sweeper activates approved bookings whose start date has arrived and
// completes active bookings whose end date has arrived.
type Sweeper struct {
	lifecycle Lifecycle
	logger    logrus.FieldLogger
}

func NewSweeper(lifecycle Lifecycle, logger logrus.FieldLogger) *Sweeper {
	if logger == nil {
		quiet := logrus.New()
		quiet.SetOutput(io.Discard)
		logger = quiet
	}
	return &Sweeper{lifecycle: lifecycle, logger: logger}
}

// Sweep applies every transition due at now. Activations run first, so a
// booking whose whole range has already elapsed is completed in the same
// sweep. A failing booking is logged and skipped.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (Result, error) {
	result := Result{Activated: []string{}, Completed: []string{}, Failed: []string{}}
	today := pricing.Day(now)

	approved, err := s.lifecycle.List(ctx, booking.Filter{Statuses: []booking.Status{booking.Approved}})
	if err != nil {
		return result, err
	}
	for _, b := range approved {
		if today.Before(b.StartDate) {
			continue
		}
		if _, err := s.lifecycle.Activate(ctx, b.ID, now); err != nil {
			s.logger.WithError(err).WithField("booking_id", b.ID).Warn("activate failed")
			result.Failed = append(result.Failed, b.ID)
			continue
		}
		result.Activated = append(result.Activated, b.ID)
	}

	active, err := s.lifecycle.List(ctx, booking.Filter{Statuses: []booking.Status{booking.Active}})
	if err != nil {
		return result, err
	}
	for _, b := range active {
		if today.Before(b.EndDate) {
			continue
		}
		if _, err := s.lifecycle.Complete(ctx, b.ID, now); err != nil {
			s.logger.WithError(err).WithField("booking_id", b.ID).Warn("complete failed")
			result.Failed = append(result.Failed, b.ID)
			continue
		}
		result.Completed = append(result.Completed, b.ID)
	}

	s.logger.WithFields(logrus.Fields{
		"activated": len(result.Activated),
		"completed": len(result.Completed),
		"failed":    len(result.Failed),
	}).Info("sweep finished")
	return result, nil
}

// Run sweeps immediately and then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration, clock func() time.Time) error {
	if clock == nil {
		clock = time.Now
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.Sweep(ctx, clock()); err != nil {
			s.logger.WithError(err).Error("sweep failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
