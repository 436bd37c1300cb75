package booking

import (
	"fmt"
	"strings"
)

type Status int

const (
	Pending Status = iota + 1
	Approved
	Rejected
	Active
	Completed
	Cancelled
)

var statusNames = map[Status]string{
	Pending:   "pending",
	Approved:  "approved",
	Rejected:  "rejected",
	Active:    "active",
	Completed: "completed",
	Cancelled: "cancelled",
}

// transitions lists every legal move. Anything absent is rejected.
var transitions = map[Status][]Status{
	Pending:  {Approved, Rejected, Cancelled},
	Approved: {Active, Cancelled},
	Active:   {Completed, Cancelled},
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

func (s Status) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	return s == Completed || s == Rejected || s == Cancelled
}

// HoldsDates reports whether a booking in this status blocks its date range
// for other requests on the same listing.
func (s Status) HoldsDates() bool {
	return s == Pending || s == Approved || s == Active
}

func ParseStatus(input string) (Status, error) {
	needle := strings.ToLower(strings.TrimSpace(input))
	for status, name := range statusNames {
		if name == needle {
			return status, nil
		}
	}
	return 0, fmt.Errorf("unknown booking status %q", input)
}

func (s Status) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("unknown booking status %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// LiveStatuses are the statuses that hold dates on a listing.
func LiveStatuses() []Status {
	return []Status{Pending, Approved, Active}
}
