package booking

import (
	"errors"
	"fmt"
)

var (
	ErrDateRangeConflict = errors.New("dates unavailable")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrNotFound          = errors.New("not found")
	ErrListingInUse      = errors.New("listing has bookings")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrAlreadyPaid       = errors.New("booking already paid")
)

// ConflictError names the live booking that already holds the requested dates.
type ConflictError struct {
	ListingID     string
	ConflictingID string
	Start         string
	End           string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: listing %s is held by booking %s from %s to %s",
		ErrDateRangeConflict, e.ListingID, e.ConflictingID, e.Start, e.End)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrDateRangeConflict
}

type TransitionError struct {
	BookingID string
	From      Status
	To        Status
	Reason    string
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("%s: booking %s cannot move from %s to %s", ErrInvalidTransition, e.BookingID, e.From, e.To)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	return msg
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// NotFound wraps ErrNotFound with the kind and id that were looked up.
func NotFound(kind, id string) error {
	return fmt.Errorf("%s %q: %w", kind, id, ErrNotFound)
}
