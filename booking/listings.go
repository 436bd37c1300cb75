package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"adspace-cli/pricing"

	"github.com/sirupsen/logrus"
)

type NewListing struct {
	ID      string           `json:"id" validate:"required"`
	OwnerID string           `json:"owner_id" validate:"required"`
	Title   string           `json:"title"`
	Card    pricing.RateCard `json:"rate_card"`
}

// AddListing registers a listing together with its rate card.
func (s *Service) AddListing(ctx context.Context, req NewListing) (Listing, error) {
	req.ID = strings.TrimSpace(req.ID)
	if err := validate.Struct(req); err != nil {
		return Listing{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	req.Card.ListingID = req.ID
	if err := req.Card.Validate(); err != nil {
		return Listing{}, err
	}

	listing := Listing{
		ID:        req.ID,
		OwnerID:   req.OwnerID,
		Title:     req.Title,
		CreatedAt: s.now().UTC(),
	}
	err := s.store.WithListing(ctx, req.ID, func(tx ListingTx) error {
		if _, err := tx.Listing(); err == nil {
			return fmt.Errorf("%w: listing %q already exists", ErrInvalidRequest, req.ID)
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		if err := tx.PutListing(listing); err != nil {
			return err
		}
		return tx.PutRateCard(req.Card)
	})
	if err != nil {
		return Listing{}, err
	}
	s.logger.WithFields(logrus.Fields{"listing_id": listing.ID, "owner_id": listing.OwnerID}).Info("listing added")
	return listing, nil
}

// RemoveListing deletes a listing and its rate card. It is refused while any
// unarchived booking still references the listing; archived bookings keep
// their financial record after the listing is gone.
func (s *Service) RemoveListing(ctx context.Context, id string) error {
	err := s.store.WithListing(ctx, id, func(tx ListingTx) error {
		if _, err := tx.Listing(); err != nil {
			return err
		}
		bookings, err := tx.Bookings()
		if err != nil {
			return err
		}
		open := 0
		for _, b := range bookings {
			if !b.Archived() {
				open++
			}
		}
		if open > 0 {
			return fmt.Errorf("%w: listing %s has %d unarchived bookings", ErrListingInUse, id, open)
		}
		return tx.DeleteListing()
	})
	if err != nil {
		return err
	}
	s.logger.WithField("listing_id", id).Info("listing removed")
	return nil
}

func (s *Service) Listings(ctx context.Context) ([]Listing, error) {
	return s.store.Listings(ctx)
}

func (s *Service) RateCard(ctx context.Context, listingID string) (pricing.RateCard, error) {
	var card pricing.RateCard
	err := s.store.WithListing(ctx, listingID, func(tx ListingTx) error {
		var err error
		card, err = tx.RateCard()
		return err
	})
	return card, err
}
