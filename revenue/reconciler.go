package revenue

import (
	"context"
	"io"
	"time"

	"adspace-cli/booking"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Snapshot is one consistent read of a period: the completed bookings that
// intersect it and the ledger total posted for the same bookings' ranges.
type Snapshot struct {
	Bookings      []booking.Booking
	LedgerTotal   decimal.Decimal
	LedgerEntries int
}

type Source interface {
	Snapshot(ctx context.Context, period Period) (Snapshot, error)
}

// Sink stores reconciled records. SaveRecords replaces whatever was stored
// for the period before.
type Sink interface {
	SaveRecords(ctx context.Context, period Period, records []Record) error
}

type Result struct {
	Period      Period          `json:"period"`
	Records     []Record        `json:"records"`
	Total       decimal.Decimal `json:"total"`
	LedgerTotal decimal.Decimal `json:"ledger_total"`
	Difference  decimal.Decimal `json:"difference"`
	Tolerance   decimal.Decimal `json:"tolerance"`
	ComputedAt  time.Time       `json:"computed_at"`
}

type Reconciler struct {
	source Source
	sink   Sink
	logger logrus.FieldLogger
	now    func() time.Time
}

type Option func(*Reconciler)

func WithSink(sink Sink) Option {
	return func(r *Reconciler) { r.sink = sink }
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(r *Reconciler) { r.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

func NewReconciler(source Source, opts ...Option) *Reconciler {
	quiet := logrus.New()
	quiet.SetOutput(io.Discard)
	r := &Reconciler{source: source, logger: quiet, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile aggregates the period's completed bookings and checks the total
// against the ledger. A difference beyond Tolerance fails with a
// *MismatchError and nothing is stored; figures are never scaled to agree.
func (r *Reconciler) Reconcile(ctx context.Context, period Period) (Result, error) {
	if err := period.Validate(); err != nil {
		return Result{}, err
	}

	snap, err := r.source.Snapshot(ctx, period)
	if err != nil {
		return Result{}, err
	}

	records := Aggregate(period, snap.Bookings)
	total := Total(records)
	diff := total.Sub(snap.LedgerTotal).Abs()
	tolerance := Tolerance(len(records))

	log := r.logger.WithFields(logrus.Fields{
		"period":   period.String(),
		"records":  len(records),
		"computed": total.StringFixed(2),
		"ledger":   snap.LedgerTotal.StringFixed(2),
	})

	if diff.GreaterThan(tolerance) {
		log.WithField("difference", diff.StringFixed(2)).Error("revenue does not reconcile with ledger")
		return Result{}, &MismatchError{
			Period:     period,
			Computed:   total,
			Ledger:     snap.LedgerTotal,
			Difference: diff,
			Tolerance:  tolerance,
			Records:    len(records),
		}
	}

	if r.sink != nil {
		if err := r.sink.SaveRecords(ctx, period, records); err != nil {
			return Result{}, err
		}
	}

	log.Info("revenue reconciled")
	return Result{
		Period:      period,
		Records:     records,
		Total:       total,
		LedgerTotal: snap.LedgerTotal,
		Difference:  diff,
		Tolerance:   tolerance,
		ComputedAt:  r.now().UTC(),
	}, nil
}
