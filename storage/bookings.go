package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"adspace-cli/booking"
	"adspace-cli/pricing"

	"github.com/shopspring/decimal"
)

const bookingColumns = `id, listing_id, requester_id, start_date, end_date, total_days, status,
  base_amount, discount_amount, gross_amount, commission_amount, net_amount, tax_amount, final_amount,
  decided_by, reject_reason, cancelled_by, cancelled_at, refund_percent, refund_amount,
  created_at, updated_at, archived_at, charge_id, paid_at`

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type scanner interface {
	Scan(dest ...any) error
}

// sqliteTx is the view of one listing inside an open transaction.
type sqliteTx struct {
	ctx       context.Context
	tx        *sql.Tx
	listingID string
}

func (t *sqliteTx) Bookings() ([]booking.Booking, error) {
	return queryBookings(t.ctx, t.tx,
		"SELECT "+bookingColumns+" FROM bookings WHERE listing_id = ? ORDER BY start_date, id", t.listingID)
}

func (t *sqliteTx) Booking(id string) (booking.Booking, error) {
	row := t.tx.QueryRowContext(t.ctx,
		"SELECT "+bookingColumns+" FROM bookings WHERE id = ? AND listing_id = ?", id, t.listingID)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return booking.Booking{}, booking.NotFound("booking", id)
	}
	return b, err
}

func (t *sqliteTx) Insert(b booking.Booking) error {
	if b.ListingID != t.listingID {
		return fmt.Errorf("booking %s belongs to listing %s, not %s", b.ID, b.ListingID, t.listingID)
	}
	query := `INSERT INTO bookings (` + bookingColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`
	_, err := t.tx.ExecContext(t.ctx, query, bookingArgs(b)...)
	if err != nil {
		return fmt.Errorf("insert booking %s: %w", b.ID, err)
	}
	return nil
}

func (t *sqliteTx) Update(b booking.Booking) error {
	query := `
UPDATE bookings SET
  status = ?, decided_by = ?, reject_reason = ?, cancelled_by = ?, cancelled_at = ?,
  refund_percent = ?, refund_amount = ?, updated_at = ?, archived_at = ?,
  charge_id = ?, paid_at = ?
WHERE id = ? AND listing_id = ?;`
	res, err := t.tx.ExecContext(t.ctx, query,
		b.Status.String(),
		nullString(b.DecidedBy),
		nullString(b.RejectReason),
		nullString(b.CancelledBy),
		nullTime(b.CancelledAt),
		b.RefundPercent.String(),
		b.RefundAmount.String(),
		formatTimestamp(b.UpdatedAt),
		nullTime(b.ArchivedAt),
		nullString(b.ChargeID),
		nullTime(b.PaidAt),
		b.ID,
		t.listingID,
	)
	if err != nil {
		return fmt.Errorf("update booking %s: %w", b.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return booking.NotFound("booking", b.ID)
	}
	return nil
}

func bookingArgs(b booking.Booking) []any {
	return []any{
		b.ID,
		b.ListingID,
		b.RequesterID,
		pricing.FormatDate(b.StartDate),
		pricing.FormatDate(b.EndDate),
		b.TotalDays,
		b.Status.String(),
		b.BaseAmount.String(),
		b.DiscountAmount.String(),
		b.GrossAmount.String(),
		b.CommissionAmount.String(),
		b.NetAmount.String(),
		b.TaxAmount.String(),
		b.FinalAmount.String(),
		nullString(b.DecidedBy),
		nullString(b.RejectReason),
		nullString(b.CancelledBy),
		nullTime(b.CancelledAt),
		b.RefundPercent.String(),
		b.RefundAmount.String(),
		formatTimestamp(b.CreatedAt),
		formatTimestamp(b.UpdatedAt),
		nullTime(b.ArchivedAt),
		nullString(b.ChargeID),
		nullTime(b.PaidAt),
	}
}

func queryBookings(ctx context.Context, q queryer, query string, args ...any) ([]booking.Booking, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookings := []booking.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return bookings, nil
}

func scanBooking(row scanner) (booking.Booking, error) {
	var (
		b            booking.Booking
		start, end   string
		status       string
		decidedBy    sql.NullString
		rejectReason sql.NullString
		cancelledBy  sql.NullString
		cancelledAt  sql.NullString
		refundPct    decimal.NullDecimal
		refundAmt    decimal.NullDecimal
		createdAt    string
		updatedAt    string
		archivedAt   sql.NullString
		chargeID     sql.NullString
		paidAt       sql.NullString
	)
	if err := row.Scan(
		&b.ID,
		&b.ListingID,
		&b.RequesterID,
		&start,
		&end,
		&b.TotalDays,
		&status,
		&b.BaseAmount,
		&b.DiscountAmount,
		&b.GrossAmount,
		&b.CommissionAmount,
		&b.NetAmount,
		&b.TaxAmount,
		&b.FinalAmount,
		&decidedBy,
		&rejectReason,
		&cancelledBy,
		&cancelledAt,
		&refundPct,
		&refundAmt,
		&createdAt,
		&updatedAt,
		&archivedAt,
		&chargeID,
		&paidAt,
	); err != nil {
		return booking.Booking{}, err
	}

	var err error
	if b.StartDate, err = pricing.ParseDate(start); err != nil {
		return booking.Booking{}, err
	}
	if b.EndDate, err = pricing.ParseDate(end); err != nil {
		return booking.Booking{}, err
	}
	if b.Status, err = booking.ParseStatus(status); err != nil {
		return booking.Booking{}, err
	}
	if b.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return booking.Booking{}, err
	}
	if b.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return booking.Booking{}, err
	}
	if b.CancelledAt, err = parseNullTime(cancelledAt); err != nil {
		return booking.Booking{}, err
	}
	if b.ArchivedAt, err = parseNullTime(archivedAt); err != nil {
		return booking.Booking{}, err
	}
	if b.PaidAt, err = parseNullTime(paidAt); err != nil {
		return booking.Booking{}, err
	}
	b.ChargeID = chargeID.String
	b.DecidedBy = decidedBy.String
	b.RejectReason = rejectReason.String
	b.CancelledBy = cancelledBy.String
	if refundPct.Valid {
		b.RefundPercent = refundPct.Decimal
	}
	if refundAmt.Valid {
		b.RefundAmount = refundAmt.Decimal
	}
	return b, nil
}

// findQuery translates a booking.Filter into SQL. Dates are stored as
// YYYY-MM-DD so they compare correctly as text.
func findQuery(filter booking.Filter) (string, []any) {
	conds := []string{}
	args := []any{}

	if filter.ListingID != "" {
		conds = append(conds, "listing_id = ?")
		args = append(args, filter.ListingID)
	}
	if filter.RequesterID != "" {
		conds = append(conds, "requester_id = ?")
		args = append(args, filter.RequesterID)
	}
	if !filter.IncludeArchived {
		conds = append(conds, "archived_at IS NULL")
	}
	if len(filter.Statuses) > 0 {
		marks := make([]string, 0, len(filter.Statuses))
		for _, status := range filter.Statuses {
			marks = append(marks, "?")
			args = append(args, status.String())
		}
		conds = append(conds, "status IN ("+strings.Join(marks, ", ")+")")
	}
	if !filter.From.IsZero() {
		conds = append(conds, "end_date > ?")
		args = append(args, pricing.FormatDate(filter.From))
	}
	if !filter.To.IsZero() {
		conds = append(conds, "start_date < ?")
		args = append(args, pricing.FormatDate(filter.To))
	}

	query := "SELECT " + bookingColumns + " FROM bookings"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY start_date, listing_id, id"
	return query, args
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimestamp(value string) (time.Time, error) {
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", value, err)
	}
	return parsed, nil
}

func parseNullTime(value sql.NullString) (*time.Time, error) {
	if !value.Valid || value.String == "" {
		return nil, nil
	}
	parsed, err := parseTimestamp(value.String)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTimestamp(*t), Valid: true}
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}
