package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"adspace-cli/booking"
	"adspace-cli/pricing"
)

func (t *sqliteTx) Listing() (booking.Listing, error) {
	row := t.tx.QueryRowContext(t.ctx, "SELECT id, owner_id, title, created_at FROM listings WHERE id = ?", t.listingID)
	listing, err := scanListing(row)
	if errors.Is(err, sql.ErrNoRows) {
		return booking.Listing{}, booking.NotFound("listing", t.listingID)
	}
	return listing, err
}

func (t *sqliteTx) PutListing(l booking.Listing) error {
	query := `
INSERT INTO listings (id, owner_id, title, created_at) VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET owner_id = excluded.owner_id, title = excluded.title;`
	if _, err := t.tx.ExecContext(t.ctx, query, t.listingID, l.OwnerID, l.Title, formatTimestamp(l.CreatedAt)); err != nil {
		return fmt.Errorf("save listing %s: %w", t.listingID, err)
	}
	return nil
}

func (t *sqliteTx) DeleteListing() error {
	if _, err := t.tx.ExecContext(t.ctx, "DELETE FROM rate_cards WHERE listing_id = ?", t.listingID); err != nil {
		return fmt.Errorf("delete rate card %s: %w", t.listingID, err)
	}
	res, err := t.tx.ExecContext(t.ctx, "DELETE FROM listings WHERE id = ?", t.listingID)
	if err != nil {
		return fmt.Errorf("delete listing %s: %w", t.listingID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return booking.NotFound("listing", t.listingID)
	}
	return nil
}

func (t *sqliteTx) RateCard() (pricing.RateCard, error) {
	query := `
SELECT base_price, weekend_multiplier, holiday_multiplier, minimum_days, tiers
FROM rate_cards WHERE listing_id = ?`
	card := pricing.RateCard{ListingID: t.listingID}
	var tiers string
	err := t.tx.QueryRowContext(t.ctx, query, t.listingID).Scan(
		&card.BasePrice,
		&card.WeekendMultiplier,
		&card.HolidayMultiplier,
		&card.MinimumDays,
		&tiers,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return pricing.RateCard{}, booking.NotFound("rate card", t.listingID)
	}
	if err != nil {
		return pricing.RateCard{}, err
	}
	if err := json.Unmarshal([]byte(tiers), &card.Tiers); err != nil {
		return pricing.RateCard{}, fmt.Errorf("decode tiers of %s: %w", t.listingID, err)
	}
	return card, nil
}

func (t *sqliteTx) PutRateCard(card pricing.RateCard) error {
	tiers := card.SortedTiers()
	encoded, err := json.Marshal(tiers)
	if err != nil {
		return err
	}
	query := `
INSERT INTO rate_cards (listing_id, base_price, weekend_multiplier, holiday_multiplier, minimum_days, tiers)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(listing_id) DO UPDATE SET
  base_price = excluded.base_price,
  weekend_multiplier = excluded.weekend_multiplier,
  holiday_multiplier = excluded.holiday_multiplier,
  minimum_days = excluded.minimum_days,
  tiers = excluded.tiers;`
	_, err = t.tx.ExecContext(t.ctx, query,
		t.listingID,
		card.BasePrice.String(),
		card.WeekendMultiplier.String(),
		card.HolidayMultiplier.String(),
		card.MinimumDays,
		string(encoded),
	)
	if err != nil {
		return fmt.Errorf("save rate card %s: %w", t.listingID, err)
	}
	return nil
}

func scanListing(row scanner) (booking.Listing, error) {
	var listing booking.Listing
	var title sql.NullString
	var createdAt string
	if err := row.Scan(&listing.ID, &listing.OwnerID, &title, &createdAt); err != nil {
		return booking.Listing{}, err
	}
	listing.Title = title.String
	parsed, err := parseTimestamp(createdAt)
	if err != nil {
		return booking.Listing{}, err
	}
	listing.CreatedAt = parsed
	return listing, nil
}
