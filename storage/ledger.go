package storage

import (
	"context"
	"fmt"

	"adspace-cli/booking"
	"adspace-cli/pricing"
	"adspace-cli/revenue"

	"github.com/shopspring/decimal"
)

func (t *sqliteTx) PostLedger(entry booking.LedgerEntry) error {
	query := `
INSERT INTO ledger (id, booking_id, listing_id, amount, start_date, end_date, posted_at)
VALUES (?, ?, ?, ?, ?, ?, ?);`
	_, err := t.tx.ExecContext(t.ctx, query,
		entry.ID,
		entry.BookingID,
		entry.ListingID,
		entry.Amount.String(),
		pricing.FormatDate(entry.StartDate),
		pricing.FormatDate(entry.EndDate),
		formatTimestamp(entry.PostedAt),
	)
	if err != nil {
		return fmt.Errorf("post ledger entry for booking %s: %w", entry.BookingID, err)
	}
	return nil
}

// LedgerEntries lists the entries whose booking range intersects period.
func (s *SQLiteStore) LedgerEntries(ctx context.Context, period revenue.Period) ([]booking.LedgerEntry, error) {
	return queryLedger(ctx, s.db, period)
}

// Snapshot reads the period's completed bookings and its ledger total inside
// one transaction, so a booking completing concurrently is either fully in
// both or in neither.
func (s *SQLiteStore) Snapshot(ctx context.Context, period revenue.Period) (revenue.Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return revenue.Snapshot{}, fmt.Errorf("begin snapshot: %w", err)
	}
	defer tx.Rollback()

	query, args := findQuery(booking.Filter{
		Statuses:        []booking.Status{booking.Completed},
		From:            period.Start,
		To:              period.End,
		IncludeArchived: true,
	})
	bookings, err := queryBookings(ctx, tx, query, args...)
	if err != nil {
		return revenue.Snapshot{}, fmt.Errorf("read completed bookings: %w", err)
	}
	entries, err := queryLedger(ctx, tx, period)
	if err != nil {
		return revenue.Snapshot{}, fmt.Errorf("read ledger: %w", err)
	}

	total := decimal.Zero
	for _, entry := range entries {
		total = total.Add(entry.Amount)
	}
	return revenue.Snapshot{Bookings: bookings, LedgerTotal: total, LedgerEntries: len(entries)}, nil
}

// SaveRecords replaces the stored records of period.
func (s *SQLiteStore) SaveRecords(ctx context.Context, period revenue.Period, records []revenue.Record) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save records: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	start := pricing.FormatDate(period.Start)
	end := pricing.FormatDate(period.End)
	if _, err = tx.ExecContext(ctx, "DELETE FROM revenue_records WHERE period_start = ? AND period_end = ?", start, end); err != nil {
		return fmt.Errorf("clear revenue records: %w", err)
	}

	query := `
INSERT INTO revenue_records (
  period_start, period_end, listing_id, gross_revenue, commission, net_revenue, tax, final_revenue,
  percent_of_total, booking_count, active_days
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`
	for _, rec := range records {
		_, err = tx.ExecContext(ctx, query,
			start,
			end,
			rec.ListingID,
			rec.GrossRevenue.String(),
			rec.Commission.String(),
			rec.NetRevenue.String(),
			rec.Tax.String(),
			rec.FinalRevenue.String(),
			rec.PercentOfTotal.String(),
			rec.BookingCount,
			rec.ActiveDays,
		)
		if err != nil {
			return fmt.Errorf("save revenue record %s: %w", rec.ListingID, err)
		}
	}
	return tx.Commit()
}

// Records returns the records last saved for period.
func (s *SQLiteStore) Records(ctx context.Context, period revenue.Period) ([]revenue.Record, error) {
	query := `
SELECT listing_id, gross_revenue, commission, net_revenue, tax, final_revenue, percent_of_total, booking_count, active_days
FROM revenue_records WHERE period_start = ? AND period_end = ? ORDER BY listing_id`
	rows, err := s.db.QueryContext(ctx, query, pricing.FormatDate(period.Start), pricing.FormatDate(period.End))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []revenue.Record{}
	for rows.Next() {
		rec := revenue.Record{PeriodStart: period.Start, PeriodEnd: period.End}
		if err := rows.Scan(
			&rec.ListingID,
			&rec.GrossRevenue,
			&rec.Commission,
			&rec.NetRevenue,
			&rec.Tax,
			&rec.FinalRevenue,
			&rec.PercentOfTotal,
			&rec.BookingCount,
			&rec.ActiveDays,
		); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func queryLedger(ctx context.Context, q queryer, period revenue.Period) ([]booking.LedgerEntry, error) {
	query := `
SELECT id, booking_id, listing_id, amount, start_date, end_date, posted_at
FROM ledger WHERE end_date > ? AND start_date < ? ORDER BY posted_at, id`
	rows, err := q.QueryContext(ctx, query, pricing.FormatDate(period.Start), pricing.FormatDate(period.End))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []booking.LedgerEntry{}
	for rows.Next() {
		var entry booking.LedgerEntry
		var start, end, posted string
		if err := rows.Scan(&entry.ID, &entry.BookingID, &entry.ListingID, &entry.Amount, &start, &end, &posted); err != nil {
			return nil, err
		}
		if entry.StartDate, err = pricing.ParseDate(start); err != nil {
			return nil, err
		}
		if entry.EndDate, err = pricing.ParseDate(end); err != nil {
			return nil, err
		}
		if entry.PostedAt, err = parseTimestamp(posted); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
