package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"adspace-cli/booking"
	"adspace-cli/pricing"
	"adspace-cli/storage"

	"github.com/shopspring/decimal"
)

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := pricing.ParseDate(s)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func newService(t *testing.T) *booking.Service {
	t.Helper()
	svc, err := booking.NewService(storage.NewMemoryStore())
	if err != nil {
		t.Fatal(err)
	}
	card := pricing.NewRateCard("bb-1", decimal.NewFromInt(500))
	if _, err := svc.AddListing(context.Background(), booking.NewListing{ID: "bb-1", OwnerID: "owner", Card: card}); err != nil {
		t.Fatal(err)
	}
	return svc
}

func approved(t *testing.T, svc *booking.Service, from, to string) booking.Booking {
	t.Helper()
	ctx := context.Background()
	b, err := svc.CreateBooking(ctx, booking.CreateRequest{
		ListingID: "bb-1", RequesterID: "adv", StartDate: mustDate(t, from), EndDate: mustDate(t, to),
	})
	if err != nil {
		t.Fatal(err)
	}
	if b, err = svc.Approve(ctx, b.ID, "owner"); err != nil {
		t.Fatal(err)
	}
	return b
}

func TestSweepActivatesAndCompletes(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	running := approved(t, svc, "2026-03-01", "2026-03-10")
	elapsed := approved(t, svc, "2026-02-01", "2026-02-05")
	future := approved(t, svc, "2026-04-01", "2026-04-05")

	sweeper := NewSweeper(svc, nil)
	now := time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)
	result, err := sweeper.Sweep(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Activated) != 2 || len(result.Completed) != 1 || len(result.Failed) != 0 {
		t.Fatalf("unexpected sweep result %+v", result)
	}
	if result.Completed[0] != elapsed.ID {
		t.Fatalf("expected %s to complete, got %v", elapsed.ID, result.Completed)
	}

	want := map[string]booking.Status{
		running.ID: booking.Active,
		elapsed.ID: booking.Completed,
		future.ID:  booking.Approved,
	}
	for id, status := range want {
		got, err := svc.Get(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if got.Status != status {
			t.Fatalf("booking %s: expected %s, got %s", id, status, got.Status)
		}
	}

	again, err := sweeper.Sweep(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	if len(again.Activated)+len(again.Completed) != 0 {
		t.Fatalf("second sweep at the same time should be a no-op, got %+v", again)
	}
}

func TestSweepCompletesOnEndDate(t *testing.T) {
	svc := newService(t)
	b := approved(t, svc, "2026-03-01", "2026-03-10")
	sweeper := NewSweeper(svc, nil)

	if _, err := sweeper.Sweep(context.Background(), mustDate(t, "2026-03-09")); err != nil {
		t.Fatal(err)
	}
	result, err := sweeper.Sweep(context.Background(), mustDate(t, "2026-03-10"))
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Completed) != 1 || result.Completed[0] != b.ID {
		t.Fatalf("expected completion on the end date, got %+v", result)
	}
}

type flakyLifecycle struct {
	Lifecycle
	failID string
}

func (f flakyLifecycle) Activate(ctx context.Context, id string, now time.Time) (booking.Booking, error) {
	if id == f.failID {
		return booking.Booking{}, errors.New("store unavailable")
	}
	return f.Lifecycle.Activate(ctx, id, now)
}

func TestSweepSkipsFailures(t *testing.T) {
	svc := newService(t)
	bad := approved(t, svc, "2026-03-01", "2026-03-03")
	good := approved(t, svc, "2026-03-04", "2026-03-06")

	sweeper := NewSweeper(flakyLifecycle{Lifecycle: svc, failID: bad.ID}, nil)
	result, err := sweeper.Sweep(context.Background(), mustDate(t, "2026-03-05"))
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Failed) != 1 || result.Failed[0] != bad.ID {
		t.Fatalf("expected %s to fail, got %+v", bad.ID, result)
	}
	if len(result.Activated) != 1 || result.Activated[0] != good.ID {
		t.Fatalf("expected %s to activate, got %+v", good.ID, result)
	}
}

func TestRunStopsWithContext(t *testing.T) {
	svc := newService(t)
	b := approved(t, svc, "2026-03-01", "2026-03-03")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- NewSweeper(svc, nil).Run(ctx, time.Hour, func() time.Time {
			return time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
		})
	}()

	deadline := time.After(5 * time.Second)
	for {
		got, err := svc.Get(context.Background(), b.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Status == booking.Active {
			break
		}
		select {
		case <-deadline:
			t.Fatal("first sweep did not run")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
