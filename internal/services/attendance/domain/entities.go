package domain

import (
	"strings"
	"time"
)

// UnknownAttendeeName is written when a check-in references an attendee id
// that cannot be resolved. The check-in is kept rather than rejected.
const UnknownAttendeeName = "Unknown Attendee"

// DefaultRecurringInterval is the day gap between instances when a recurring
// parent does not define a positive interval.
const DefaultRecurringInterval = 7

// DateLayout is the calendar-date format used for session dates and day keys.
const DateLayout = "2006-01-02"

// Method identifies how a check-in was captured.
type Method string

const (
	// MethodQRScan is a check-in captured by scanning an attendee badge.
	MethodQRScan Method = "QR_SCAN"
	// MethodManual is a check-in entered by staff.
	MethodManual Method = "MANUAL"
)

// Valid reports whether m is one of the enumerated methods.
func (m Method) Valid() bool {
	return m == MethodQRScan || m == MethodManual
}

// ParseMethod validates a raw method value. Matching is exact.
func ParseMethod(raw string) (Method, error) {
	method := Method(strings.TrimSpace(raw))
	if !method.Valid() {
		return "", ValidationError("method", "must be QR_SCAN or MANUAL")
	}
	return method, nil
}

// Attendee is a person who can check in to sessions. ID and QRCode are
// globally unique and never change after creation.
type Attendee struct {
	ID        string
	Name      string
	Email     string
	QRCode    string
	CreatedAt time.Time
}

// SessionKind distinguishes the three shapes a session row can take.
type SessionKind int

const (
	// SessionStandalone is a one-off session.
	SessionStandalone SessionKind = iota
	// SessionRecurringParent defines a repetition rule.
	SessionRecurringParent
	// SessionRecurringInstance is one generated occurrence of a parent.
	SessionRecurringInstance
)

func (k SessionKind) String() string {
	switch k {
	case SessionRecurringParent:
		return "recurring_parent"
	case SessionRecurringInstance:
		return "recurring_instance"
	default:
		return "standalone"
	}
}

// Session is a scheduled event attendees check in to.
type Session struct {
	ID                string
	Title             string
	Date              string
	Time              string
	CreatedAt         time.Time
	IsRecurring       bool
	RecurringWeeks    int
	RecurringInterval int
	ParentSessionID   string
}

// Kind classifies the session. Instances are never parents.
func (s Session) Kind() SessionKind {
	switch {
	case s.ParentSessionID != "":
		return SessionRecurringInstance
	case s.IsRecurring:
		return SessionRecurringParent
	default:
		return SessionStandalone
	}
}

// Interval returns the effective day gap between instances.
func (s Session) Interval() int {
	if s.RecurringInterval <= 0 {
		return DefaultRecurringInterval
	}
	return s.RecurringInterval
}

// ParseDate parses a session date. Plain calendar dates are expected;
// RFC 3339 timestamps are accepted and truncated to their UTC date.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, ValidationError("date", "is required")
	}
	if parsed, err := time.Parse(DateLayout, raw); err == nil {
		return parsed, nil
	}
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		utc := parsed.UTC()
		return time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	return time.Time{}, ValidationError("date", "must be a calendar date (YYYY-MM-DD)")
}

// AttendanceRecord is one admitted check-in. Records are append-only.
type AttendanceRecord struct {
	ID           string
	SessionID    string
	AttendeeID   string
	AttendeeName string
	Timestamp    time.Time
	Method       Method
}
