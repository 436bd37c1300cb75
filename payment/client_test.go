package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"adspace-cli/booking"
	"adspace-cli/pricing"
	"adspace-cli/storage"

	"github.com/shopspring/decimal"
)

type keyLog struct {
	mu   sync.Mutex
	keys []string
}

func (k *keyLog) add(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.keys = append(k.keys, key)
}

func (k *keyLog) all() []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]string(nil), k.keys...)
}

func chargeServer(t *testing.T, status int, result ChargeResult) (*httptest.Server, *int32) {
	srv, calls, _ := chargeServerWithKeys(t, status, result)
	return srv, calls
}

func chargeServerWithKeys(t *testing.T, status int, result ChargeResult) (*httptest.Server, *int32, *keyLog) {
	t.Helper()
	var calls int32
	keys := &keyLog{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		keys.add(r.Header.Get("Idempotency-Key"))
		if r.Method != http.MethodPost || r.URL.Path != "/v1/charges" {
			http.NotFound(w, r)
			return
		}
		var req ChargeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.BookingID == "" || req.Currency == "" {
			http.Error(w, "missing fields", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status < 500 {
			_ = json.NewEncoder(w).Encode(result)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &calls, keys
}

func pendingBooking(t *testing.T) (*booking.Service, booking.Booking) {
	t.Helper()
	ctx := context.Background()
	svc, err := booking.NewService(storage.NewMemoryStore())
	if err != nil {
		t.Fatal(err)
	}
	card := pricing.NewRateCard("bb-1", decimal.NewFromInt(1000))
	if _, err := svc.AddListing(ctx, booking.NewListing{ID: "bb-1", OwnerID: "owner", Card: card}); err != nil {
		t.Fatal(err)
	}
	start, _ := pricing.ParseDate("2026-05-04")
	end, _ := pricing.ParseDate("2026-05-06")
	b, err := svc.CreateBooking(ctx, booking.CreateRequest{ListingID: "bb-1", RequesterID: "adv", StartDate: start, EndDate: end})
	if err != nil {
		t.Fatal(err)
	}
	return svc, b
}

func TestChargeSucceeds(t *testing.T) {
	srv, _ := chargeServer(t, http.StatusOK, ChargeResult{ChargeID: "ch_1", Status: "succeeded"})
	svc, b := pendingBooking(t)

	settler := NewSettler(NewClient(srv.URL+"/v1", 100, nil), svc, "INR", nil)
	outcome, err := settler.Settle(context.Background(), b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !outcome.Paid || outcome.Charge.ChargeID != "ch_1" {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	got, err := svc.Get(context.Background(), b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != booking.Pending {
		t.Fatalf("paid booking should stay pending for approval, got %s", got.Status)
	}
}

func TestDeclinedChargeRejectsBooking(t *testing.T) {
	srv, _ := chargeServer(t, http.StatusPaymentRequired, ChargeResult{Status: "declined", Message: "card declined"})
	svc, b := pendingBooking(t)

	outcome, err := NewSettler(NewClient(srv.URL+"/v1", 100, nil), svc, "INR", nil).Settle(context.Background(), b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Paid || outcome.Booking.Status != booking.Rejected {
		t.Fatalf("expected a rejected booking, got %+v", outcome)
	}
	if outcome.Booking.RejectReason != "payment failed: card declined" || outcome.Booking.DecidedBy != "payment" {
		t.Fatalf("unexpected rejection %q by %q", outcome.Booking.RejectReason, outcome.Booking.DecidedBy)
	}
	if !outcome.Booking.FinalAmount.Equal(b.FinalAmount) {
		t.Fatalf("rejection must not change the price: %s vs %s", outcome.Booking.FinalAmount, b.FinalAmount)
	}

	if _, err := NewSettler(NewClient(srv.URL+"/v1", 100, nil), svc, "INR", nil).Settle(context.Background(), b.ID); !errors.Is(err, booking.ErrInvalidTransition) {
		t.Fatalf("settling a rejected booking should fail, got %v", err)
	}
}

func TestServerErrorRejectsBooking(t *testing.T) {
	srv, _ := chargeServer(t, http.StatusInternalServerError, ChargeResult{})
	svc, b := pendingBooking(t)

	outcome, err := NewSettler(NewClient(srv.URL+"/v1", 100, nil), svc, "INR", nil).Settle(context.Background(), b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Booking.Status != booking.Rejected {
		t.Fatalf("expected rejection after a server error, got %s", outcome.Booking.Status)
	}
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	srv, calls := chargeServer(t, http.StatusInternalServerError, ChargeResult{})
	client := NewClient(srv.URL+"/v1", 100, nil)
	req := ChargeRequest{BookingID: "b-1", Amount: decimal.NewFromInt(10), Currency: "INR"}

	for i := 0; i < 3; i++ {
		if _, err := client.Charge(context.Background(), req); err == nil || errors.Is(err, ErrUnavailable) {
			t.Fatalf("call %d: expected a plain request error, got %v", i, err)
		}
	}
	if _, err := client.Charge(context.Background(), req); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable once the breaker is open, got %v", err)
	}
	if n := atomic.LoadInt32(calls); n != 3 {
		t.Fatalf("open breaker should not reach the server, got %d calls", n)
	}
}

func TestDeclinesDoNotTripBreaker(t *testing.T) {
	srv, calls := chargeServer(t, http.StatusPaymentRequired, ChargeResult{Status: "declined"})
	client := NewClient(srv.URL+"/v1", 100, nil)
	req := ChargeRequest{BookingID: "b-1", Amount: decimal.NewFromInt(10), Currency: "INR"}

	for i := 0; i < 5; i++ {
		result, err := client.Charge(context.Background(), req)
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if result.Succeeded() {
			t.Fatalf("call %d: decline reported as success", i)
		}
	}
	if n := atomic.LoadInt32(calls); n != 5 {
		t.Fatalf("expected 5 calls, got %d", n)
	}
}

func TestNotConfiguredLeavesBookingPending(t *testing.T) {
	svc, b := pendingBooking(t)

	_, err := NewSettler(NewClient("", 0, nil), svc, "INR", nil).Settle(context.Background(), b.ID)
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	got, err := svc.Get(context.Background(), b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != booking.Pending {
		t.Fatalf("booking should stay pending, got %s", got.Status)
	}
}

func TestSettleChargesOnce(t *testing.T) {
	srv, calls, keys := chargeServerWithKeys(t, http.StatusOK, ChargeResult{ChargeID: "ch_1", Status: "succeeded"})
	svc, b := pendingBooking(t)
	settler := NewSettler(NewClient(srv.URL+"/v1", 100, nil), svc, "INR", nil)

	outcome, err := settler.Settle(context.Background(), b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !outcome.Paid || outcome.Booking.ChargeID != "ch_1" || outcome.Booking.PaidAt == nil {
		t.Fatalf("charge not recorded on the booking: %+v", outcome.Booking)
	}

	stored, err := svc.Get(context.Background(), b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !stored.Paid() || stored.ChargeID != "ch_1" || stored.Status != booking.Pending {
		t.Fatalf("unexpected stored booking %+v", stored)
	}

	if _, err := settler.Settle(context.Background(), b.ID); !errors.Is(err, booking.ErrAlreadyPaid) {
		t.Fatalf("second settle should be refused, got %v", err)
	}
	if n := atomic.LoadInt32(calls); n != 1 {
		t.Fatalf("expected one charge request, got %d", n)
	}
	if got := keys.all(); len(got) != 1 || got[0] != "booking-"+b.ID {
		t.Fatalf("unexpected idempotency keys %v", got)
	}
}

func TestUnavailableLeavesBookingPending(t *testing.T) {
	srv, calls := chargeServer(t, http.StatusInternalServerError, ChargeResult{})
	client := NewClient(srv.URL+"/v1", 100, nil)
	for i := 0; i < 3; i++ {
		_, _ = client.Charge(context.Background(), ChargeRequest{BookingID: "other", Amount: decimal.NewFromInt(1), Currency: "INR"})
	}
	svc, b := pendingBooking(t)

	_, err := NewSettler(client, svc, "INR", nil).Settle(context.Background(), b.ID)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if n := atomic.LoadInt32(calls); n != 3 {
		t.Fatalf("open breaker should not reach the server, got %d calls", n)
	}
	got, err := svc.Get(context.Background(), b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != booking.Pending {
		t.Fatalf("booking should stay pending, got %s", got.Status)
	}
}

type chargerFunc func(ctx context.Context, charge ChargeRequest) (ChargeResult, error)

func (f chargerFunc) Charge(ctx context.Context, charge ChargeRequest) (ChargeResult, error) {
	return f(ctx, charge)
}

func TestTimeoutLeavesBookingPending(t *testing.T) {
	svc, b := pendingBooking(t)
	slow := chargerFunc(func(ctx context.Context, _ ChargeRequest) (ChargeResult, error) {
		ctx, cancel := context.WithTimeout(ctx, time.Millisecond)
		defer cancel()
		<-ctx.Done()
		return ChargeResult{}, ctx.Err()
	})

	_, err := NewSettler(slow, svc, "INR", nil).Settle(context.Background(), b.ID)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
	got, err := svc.Get(context.Background(), b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != booking.Pending || got.Paid() {
		t.Fatalf("booking should stay pending and unpaid, got %+v", got)
	}
}
