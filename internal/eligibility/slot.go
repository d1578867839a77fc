package eligibility

import (
	"time"
)

// Slot is one scheduled occurrence, the half-open interval [Start, Start+Duration).
type Slot struct {
	Start    time.Time
	Duration time.Duration
}

func (s Slot) End() time.Time {
	return s.Start.Add(s.Duration)
}

// Overlaps reports whether two slots share any instant.
func (s Slot) Overlaps(other Slot) bool {
	return s.Start.Before(other.End()) && other.Start.Before(s.End())
}

// UserSet is a set of user IDs.
type UserSet map[uint]struct{}

func NewUserSet(ids ...uint) UserSet {
	set := make(UserSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func (s UserSet) Has(id uint) bool {
	_, ok := s[id]
	return ok
}
