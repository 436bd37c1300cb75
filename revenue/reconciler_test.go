package revenue

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"adspace-cli/booking"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(s string) time.Time {
	parsed, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return parsed
}

func completed(id, listing, from, to, gross string) booking.Booking {
	g := dec(gross)
	commission := g.Mul(dec("0.1")).Round(2)
	net := g.Sub(commission)
	tax := net.Mul(dec("0.18")).Round(2)
	return booking.Booking{
		ID:               id,
		ListingID:        listing,
		StartDate:        date(from),
		EndDate:          date(to),
		Status:           booking.Completed,
		GrossAmount:      g,
		CommissionAmount: commission,
		NetAmount:        net,
		TaxAmount:        tax,
		FinalAmount:      net.Add(tax),
	}
}

type fakeSource struct {
	snap  Snapshot
	calls int
}

func (f *fakeSource) Snapshot(ctx context.Context, period Period) (Snapshot, error) {
	f.calls++
	return f.snap, nil
}

type fakeSink struct {
	saved map[Period][]Record
	saves int
}

func (f *fakeSink) SaveRecords(ctx context.Context, period Period, records []Record) error {
	if f.saved == nil {
		f.saved = map[Period][]Record{}
	}
	f.saves++
	f.saved[period] = records
	return nil
}

func ledgerOf(bookings []booking.Booking) decimal.Decimal {
	total := decimal.Zero
	for _, b := range bookings {
		total = total.Add(b.FinalAmount)
	}
	return total
}

func january() Period {
	return Month(date("2026-01-17"))
}

func TestAggregatePerListing(t *testing.T) {
	bookings := []booking.Booking{
		completed("b1", "bb-2", "2026-01-05", "2026-01-15", "9000"),
		completed("b2", "bb-1", "2026-01-10", "2026-01-12", "2000"),
		completed("b3", "bb-1", "2025-12-28", "2026-01-03", "6000"),
		completed("b4", "bb-1", "2026-02-01", "2026-02-03", "2000"),
	}
	pending := completed("b5", "bb-1", "2026-01-20", "2026-01-22", "2000")
	pending.Status = booking.Approved
	bookings = append(bookings, pending)

	records := Aggregate(january(), bookings)
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ListingID != "bb-1" || records[1].ListingID != "bb-2" {
		t.Fatalf("records not ordered by listing: %s, %s", records[0].ListingID, records[1].ListingID)
	}

	bb1 := records[0]
	if bb1.BookingCount != 2 {
		t.Fatalf("bb-1: expected 2 bookings, got %d", bb1.BookingCount)
	}
	if bb1.ActiveDays != 4 {
		t.Fatalf("bb-1: expected 2 + 2 days inside January, got %d", bb1.ActiveDays)
	}
	if !bb1.GrossRevenue.Equal(dec("8000")) || !bb1.FinalRevenue.Equal(dec("8496")) {
		t.Fatalf("bb-1: unexpected gross %s final %s", bb1.GrossRevenue, bb1.FinalRevenue)
	}
	bb2 := records[1]
	if !bb2.FinalRevenue.Equal(dec("9558")) || !bb2.Commission.Equal(dec("900")) || !bb2.Tax.Equal(dec("1458")) {
		t.Fatalf("bb-2: unexpected record %+v", bb2)
	}

	share := bb1.PercentOfTotal.Add(bb2.PercentOfTotal)
	if share.Sub(dec("100")).Abs().GreaterThan(dec("0.01")) {
		t.Fatalf("shares should sum to 100, got %s", share)
	}
	if !bb2.PercentOfTotal.Equal(dec("52.94")) {
		t.Fatalf("bb-2: expected 52.94%%, got %s", bb2.PercentOfTotal)
	}
}

func TestReconcileMatchesLedger(t *testing.T) {
	bookings := []booking.Booking{
		completed("b1", "bb-1", "2026-01-05", "2026-01-15", "9000"),
		completed("b2", "bb-2", "2026-01-10", "2026-01-12", "2000.33"),
	}
	source := &fakeSource{snap: Snapshot{Bookings: bookings, LedgerTotal: ledgerOf(bookings), LedgerEntries: 2}}
	sink := &fakeSink{}
	r := NewReconciler(source, WithSink(sink), WithClock(func() time.Time { return date("2026-02-01") }))

	result, err := r.Reconcile(context.Background(), january())
	if err != nil {
		t.Fatal(err)
	}
	if !result.Total.Equal(result.LedgerTotal) || !result.Difference.IsZero() {
		t.Fatalf("expected exact match, got total %s ledger %s", result.Total, result.LedgerTotal)
	}
	if !result.Tolerance.Equal(dec("0.02")) {
		t.Fatalf("expected tolerance 0.02, got %s", result.Tolerance)
	}
	if len(sink.saved[january()]) != 2 {
		t.Fatalf("expected records saved for the period, got %+v", sink.saved)
	}
}

func TestReconcileWithinTolerance(t *testing.T) {
	bookings := []booking.Booking{
		completed("b1", "bb-1", "2026-01-05", "2026-01-15", "9000"),
		completed("b2", "bb-2", "2026-01-10", "2026-01-12", "2000"),
	}
	ledger := ledgerOf(bookings).Add(dec("0.02"))
	source := &fakeSource{snap: Snapshot{Bookings: bookings, LedgerTotal: ledger}}

	result, err := NewReconciler(source).Reconcile(context.Background(), january())
	if err != nil {
		t.Fatalf("0.02 over 2 records is within tolerance: %v", err)
	}
	if !result.Total.Equal(ledgerOf(bookings)) {
		t.Fatalf("figures must not be adjusted towards the ledger: %s", result.Total)
	}
}

func TestReconcileMismatchFailsWithoutAdjusting(t *testing.T) {
	bookings := []booking.Booking{
		completed("b1", "bb-1", "2026-01-05", "2026-01-15", "9000"),
		completed("b2", "bb-2", "2026-01-10", "2026-01-12", "2000"),
	}
	ledger := ledgerOf(bookings).Add(dec("0.03"))
	source := &fakeSource{snap: Snapshot{Bookings: bookings, LedgerTotal: ledger}}
	sink := &fakeSink{}

	_, err := NewReconciler(source, WithSink(sink)).Reconcile(context.Background(), january())
	if !errors.Is(err, ErrLedgerMismatch) {
		t.Fatalf("expected ErrLedgerMismatch, got %v", err)
	}
	var mismatch *MismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected *MismatchError, got %T", err)
	}
	if !mismatch.Difference.Equal(dec("0.03")) || !mismatch.Computed.Equal(ledgerOf(bookings)) || mismatch.Records != 2 {
		t.Fatalf("unexpected mismatch detail %+v", mismatch)
	}
	if sink.saves != 0 {
		t.Fatal("a failed reconciliation must not store records")
	}
}

func TestReconcileMissingLedgerEntry(t *testing.T) {
	bookings := []booking.Booking{completed("b1", "bb-1", "2026-01-05", "2026-01-15", "9000")}
	source := &fakeSource{snap: Snapshot{Bookings: bookings, LedgerTotal: decimal.Zero}}
	if _, err := NewReconciler(source).Reconcile(context.Background(), january()); !errors.Is(err, ErrLedgerMismatch) {
		t.Fatalf("expected ErrLedgerMismatch, got %v", err)
	}
}

func TestReconcileIdempotent(t *testing.T) {
	bookings := []booking.Booking{
		completed("b1", "bb-1", "2026-01-05", "2026-01-15", "9000"),
		completed("b2", "bb-2", "2026-01-10", "2026-01-12", "2000"),
	}
	source := &fakeSource{snap: Snapshot{Bookings: bookings, LedgerTotal: ledgerOf(bookings)}}
	sink := &fakeSink{}
	r := NewReconciler(source, WithSink(sink))

	first, err := r.Reconcile(context.Background(), january())
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.Reconcile(context.Background(), january())
	if err != nil {
		t.Fatal(err)
	}
	if len(first.Records) != len(second.Records) {
		t.Fatalf("record counts differ: %d vs %d", len(first.Records), len(second.Records))
	}
	for i := range first.Records {
		a, b := first.Records[i], second.Records[i]
		if a.ListingID != b.ListingID || !a.FinalRevenue.Equal(b.FinalRevenue) || !a.PercentOfTotal.Equal(b.PercentOfTotal) {
			t.Fatalf("run %d differs: %+v vs %+v", i, a, b)
		}
	}
	if len(sink.saved) != 1 || sink.saves != 2 {
		t.Fatalf("expected the period to be replaced, got %d periods over %d saves", len(sink.saved), sink.saves)
	}
}

func TestReconcileEmptyPeriod(t *testing.T) {
	source := &fakeSource{}
	result, err := NewReconciler(source).Reconcile(context.Background(), january())
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Records) != 0 || !result.Total.IsZero() {
		t.Fatalf("expected empty result, got %+v", result)
	}
}

func TestReconcileInvalidPeriod(t *testing.T) {
	source := &fakeSource{}
	_, err := NewReconciler(source).Reconcile(context.Background(), Period{Start: date("2026-02-01"), End: date("2026-01-01")})
	if !errors.Is(err, ErrInvalidPeriod) {
		t.Fatalf("expected ErrInvalidPeriod, got %v", err)
	}
	if source.calls != 0 {
		t.Fatal("invalid period must not read the source")
	}
}

func TestPeriodActiveDays(t *testing.T) {
	p := january()
	cases := []struct {
		from, to string
		want     int
	}{
		{"2026-01-05", "2026-01-15", 10},
		{"2025-12-20", "2026-01-03", 2},
		{"2026-01-30", "2026-02-10", 2},
		{"2025-12-01", "2026-03-01", 31},
		{"2026-02-01", "2026-02-05", 0},
	}
	for _, c := range cases {
		if got := p.ActiveDays(date(c.from), date(c.to)); got != c.want {
			t.Fatalf("%s..%s: expected %d, got %d", c.from, c.to, c.want, got)
		}
	}
}

func TestWriteTable(t *testing.T) {
	bookings := []booking.Booking{completed("b1", "bb-1", "2026-01-05", "2026-01-15", "9000")}
	result, err := NewReconciler(&fakeSource{snap: Snapshot{Bookings: bookings, LedgerTotal: ledgerOf(bookings)}}).
		Reconcile(context.Background(), january())
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := WriteTable(&buf, result, false); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"LISTING", "bb-1", "9558.00", "100.00%", "LEDGER"} {
		if !strings.Contains(out, want) {
			t.Fatalf("table missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	if err := WriteTable(&buf, result, true); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "LISTING") {
		t.Fatalf("compact table should have no header:\n%s", buf.String())
	}
}

func TestWritePDF(t *testing.T) {
	bookings := []booking.Booking{completed("b1", "bb-1", "2026-01-05", "2026-01-15", "9000")}
	result, err := NewReconciler(&fakeSource{snap: Snapshot{Bookings: bookings, LedgerTotal: ledgerOf(bookings)}}).
		Reconcile(context.Background(), january())
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := WritePDF(&buf, result, "INR"); err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Fatalf("expected a PDF document, got %q", buf.Bytes()[:10])
	}
}
