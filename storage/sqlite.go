package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"

	"adspace-cli/booking"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore keeps listings, rate cards, bookings, the ledger and reconciled
// revenue records in one SQLite database.
type SQLiteStore struct {
	db    *sql.DB
	locks keyedMutex
}

// OpenSQLite opens (creating if needed) the database at path. An empty path
// uses DatabasePath().
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		var err error
		path, err = DatabasePath()
		if err != nil {
			return nil, err
		}
	}
	if path != ":memory:" {
		if err := ensureDir(filepath.Dir(path)); err != nil {
			return nil, err
		}
	}

	dsn := fmt.Sprintf("file:%s?_txlock=immediate&_busy_timeout=5000&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	// One connection serializes writers across listings as well; SQLite would
	// otherwise answer concurrent writers with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func ensureSchema(db *sql.DB) error {
	statements := []struct {
		name string
		sql  string
	}{
		{"listings table", `
CREATE TABLE IF NOT EXISTS listings (
  id TEXT PRIMARY KEY,
  owner_id TEXT NOT NULL,
  title TEXT,
  created_at TEXT NOT NULL
);`},
		{"rate cards table", `
CREATE TABLE IF NOT EXISTS rate_cards (
  listing_id TEXT PRIMARY KEY REFERENCES listings(id) ON DELETE CASCADE,
  base_price TEXT NOT NULL,
  weekend_multiplier TEXT NOT NULL,
  holiday_multiplier TEXT NOT NULL,
  minimum_days INTEGER NOT NULL,
  tiers TEXT NOT NULL
);`},
		{"bookings table", `
CREATE TABLE IF NOT EXISTS bookings (
  id TEXT PRIMARY KEY,
  listing_id TEXT NOT NULL,
  requester_id TEXT NOT NULL,
  start_date TEXT NOT NULL,
  end_date TEXT NOT NULL,
  total_days INTEGER NOT NULL,
  status TEXT NOT NULL,
  base_amount TEXT NOT NULL,
  discount_amount TEXT NOT NULL,
  gross_amount TEXT NOT NULL,
  commission_amount TEXT NOT NULL,
  net_amount TEXT NOT NULL,
  tax_amount TEXT NOT NULL,
  final_amount TEXT NOT NULL,
  decided_by TEXT,
  reject_reason TEXT,
  cancelled_by TEXT,
  cancelled_at TEXT,
  refund_percent TEXT,
  refund_amount TEXT,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL,
  archived_at TEXT,
  charge_id TEXT,
  paid_at TEXT
);`},
		{"bookings listing index", "CREATE INDEX IF NOT EXISTS idx_bookings_listing ON bookings(listing_id, start_date);"},
		{"bookings status index", "CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status);"},
		{"ledger table", `
CREATE TABLE IF NOT EXISTS ledger (
  id TEXT PRIMARY KEY,
  booking_id TEXT NOT NULL UNIQUE,
  listing_id TEXT NOT NULL,
  amount TEXT NOT NULL,
  start_date TEXT NOT NULL,
  end_date TEXT NOT NULL,
  posted_at TEXT NOT NULL
);`},
		{"revenue records table", `
CREATE TABLE IF NOT EXISTS revenue_records (
  period_start TEXT NOT NULL,
  period_end TEXT NOT NULL,
  listing_id TEXT NOT NULL,
  gross_revenue TEXT NOT NULL,
  commission TEXT NOT NULL,
  net_revenue TEXT NOT NULL,
  tax TEXT NOT NULL,
  final_revenue TEXT NOT NULL,
  percent_of_total TEXT NOT NULL,
  booking_count INTEGER NOT NULL,
  active_days INTEGER NOT NULL,
  PRIMARY KEY (period_start, period_end, listing_id)
);`},
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt.sql); err != nil {
			return fmt.Errorf("create %s: %w", stmt.name, err)
		}
	}

	return ensureColumns(db, "bookings", []string{"refund_percent", "refund_amount", "archived_at", "charge_id", "paid_at"})
}

// ensureColumns adds TEXT columns missing from databases created by older
// builds.
func ensureColumns(db *sql.DB, table string, columns []string) error {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s);", table))
	if err != nil {
		return fmt.Errorf("inspect %s table: %w", table, err)
	}
	defer rows.Close()

	existing := map[string]struct{}{}
	for rows.Next() {
		var cid int
		var name string
		var ctype string
		var notnull int
		var dflt sql.NullString
		var pk int
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return fmt.Errorf("inspect %s columns: %w", table, err)
		}
		existing[name] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("inspect %s columns: %w", table, err)
	}

	for _, column := range columns {
		if _, ok := existing[column]; ok {
			continue
		}
		_, err := db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s TEXT;", table, column))
		if err != nil {
			return fmt.Errorf("add %s column %s: %w", table, column, err)
		}
	}
	return nil
}

// WithListing runs fn inside an immediate transaction while holding the
// listing's lock.
func (s *SQLiteStore) WithListing(ctx context.Context, listingID string, fn func(tx booking.ListingTx) error) (err error) {
	unlock := s.locks.lock(listingID)
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin listing %s: %w", listingID, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(&sqliteTx{ctx: ctx, tx: tx, listingID: listingID}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit listing %s: %w", listingID, err)
	}
	return nil
}

func (s *SQLiteStore) ListingOf(ctx context.Context, bookingID string) (string, error) {
	var listingID string
	err := s.db.QueryRowContext(ctx, "SELECT listing_id FROM bookings WHERE id = ?", bookingID).Scan(&listingID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", booking.NotFound("booking", bookingID)
	}
	if err != nil {
		return "", err
	}
	return listingID, nil
}

func (s *SQLiteStore) Listings(ctx context.Context) ([]booking.Listing, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, owner_id, title, created_at FROM listings ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	listings := []booking.Listing{}
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, listing)
	}
	return listings, rows.Err()
}

func (s *SQLiteStore) Find(ctx context.Context, filter booking.Filter) ([]booking.Booking, error) {
	query, args := findQuery(filter)
	return queryBookings(ctx, s.db, query, args...)
}
