package domain

import (
	"fmt"
	"strings"
	"time"
)

// DayPolicy decides which calendar day an instant belongs to. Duplicate
// detection compares days, never instants.
type DayPolicy struct {
	location *time.Location
}

// UTCDays is the default policy: days roll over at UTC midnight.
var UTCDays = DayPolicy{location: time.UTC}

// NewDayPolicy builds a policy whose days roll over at midnight in loc.
func NewDayPolicy(loc *time.Location) DayPolicy {
	if loc == nil {
		loc = time.UTC
	}
	return DayPolicy{location: loc}
}

// LoadDayPolicy builds a policy from an IANA zone name. Empty means UTC.
func LoadDayPolicy(zone string) (DayPolicy, error) {
	zone = strings.TrimSpace(zone)
	if zone == "" || strings.EqualFold(zone, "UTC") {
		return UTCDays, nil
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return DayPolicy{}, fmt.Errorf("load day location %q: %w", zone, err)
	}
	return NewDayPolicy(loc), nil
}

// Location returns the zone that defines day boundaries.
func (p DayPolicy) Location() *time.Location {
	if p.location == nil {
		return time.UTC
	}
	return p.location
}

// DayKey returns the ISO calendar date t falls on under this policy.
func (p DayPolicy) DayKey(t time.Time) string {
	return t.In(p.Location()).Format(DateLayout)
}

// SameDay reports whether a and b fall on the same calendar day.
func (p DayPolicy) SameDay(a, b time.Time) bool {
	if a.IsZero() || b.IsZero() {
		return false
	}
	return p.DayKey(a) == p.DayKey(b)
}
