package booking

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidInterval reports a time range that cannot form a valid interval:
// an endpoint is missing, unparsable, or start is not before end.
var ErrInvalidInterval = errors.New("invalid interval")

// Interval is a half-open time range [Start, End). Comparisons operate on the
// underlying instants, so two intervals expressed in different zones compare
// by the moment in time they denote.
type Interval struct {
	Start time.Time
	End   time.Time
}

// NewInterval constructs an interval, requiring start < end.
func NewInterval(start, end time.Time) (Interval, error) {
	if start.IsZero() || end.IsZero() {
		return Interval{}, fmt.Errorf("%w: missing endpoint", ErrInvalidInterval)
	}
	if !start.Before(end) {
		return Interval{}, fmt.Errorf("%w: start %s is not before end %s",
			ErrInvalidInterval, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return Interval{Start: start, End: end}, nil
}

// ParseInterval constructs an interval from RFC 3339 timestamps. RFC 3339
// requires a zone offset, so zone-less strings are rejected rather than
// guessed at.
func ParseInterval(start, end string) (Interval, error) {
	s, err := time.Parse(time.RFC3339, start)
	if err != nil {
		return Interval{}, fmt.Errorf("%w: start %q: %v", ErrInvalidInterval, start, err)
	}
	e, err := time.Parse(time.RFC3339, end)
	if err != nil {
		return Interval{}, fmt.Errorf("%w: end %q: %v", ErrInvalidInterval, end, err)
	}
	return NewInterval(s, e)
}

// Overlaps reports whether the two intervals share at least one instant.
// Half-open semantics: back-to-back intervals do not overlap.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// Equal reports whether both endpoints denote the same instants.
func (iv Interval) Equal(other Interval) bool {
	return iv.Start.Equal(other.Start) && iv.End.Equal(other.End)
}

// Day returns the UTC calendar day containing the interval's start. Store
// adapters use it to bound day-scoped listings.
func (iv Interval) Day() time.Time {
	u := iv.Start.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func (iv Interval) String() string {
	return iv.Start.Format(time.RFC3339) + "/" + iv.End.Format(time.RFC3339)
}
