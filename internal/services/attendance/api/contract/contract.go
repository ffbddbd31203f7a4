// Package contract defines the JSON shapes the attendance service exposes
// over HTTP, the live feed, and the event stream.
package contract

import (
	"time"

	"github.com/louisbranch/rollcall/internal/services/attendance/domain"
	"github.com/louisbranch/rollcall/internal/services/attendance/reports"
)

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

func timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timestampLayout)
}

// Attendee is the public attendee shape.
type Attendee struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	QRCode    string `json:"qrCode"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// NewAttendee converts a domain attendee.
func NewAttendee(a domain.Attendee) Attendee {
	return Attendee{ID: a.ID, Name: a.Name, Email: a.Email, QRCode: a.QRCode, CreatedAt: timestamp(a.CreatedAt)}
}

// NewAttendees converts a slice, never returning nil.
func NewAttendees(in []domain.Attendee) []Attendee {
	out := make([]Attendee, 0, len(in))
	for _, a := range in {
		out = append(out, NewAttendee(a))
	}
	return out
}

// Session is the public session shape.
type Session struct {
	ID                string `json:"id"`
	Title             string `json:"title"`
	Date              string `json:"date"`
	Time              string `json:"time"`
	CreatedAt         string `json:"createdAt,omitempty"`
	IsRecurring       bool   `json:"isRecurring"`
	RecurringWeeks    int    `json:"recurringWeeks,omitempty"`
	RecurringInterval int    `json:"recurringInterval,omitempty"`
	ParentSessionID   string `json:"parentSessionId,omitempty"`
}

// NewSession converts a domain session.
func NewSession(s domain.Session) Session {
	return Session{
		ID:                s.ID,
		Title:             s.Title,
		Date:              s.Date,
		Time:              s.Time,
		CreatedAt:         timestamp(s.CreatedAt),
		IsRecurring:       s.IsRecurring,
		RecurringWeeks:    s.RecurringWeeks,
		RecurringInterval: s.RecurringInterval,
		ParentSessionID:   s.ParentSessionID,
	}
}

// NewSessions converts a slice, never returning nil.
func NewSessions(in []domain.Session) []Session {
	out := make([]Session, 0, len(in))
	for _, s := range in {
		out = append(out, NewSession(s))
	}
	return out
}

// Record is the public attendance record shape. Fast-accepted duplicates
// carry no id.
type Record struct {
	ID           string `json:"id,omitempty"`
	SessionID    string `json:"sessionId"`
	AttendeeID   string `json:"attendeeId"`
	AttendeeName string `json:"attendeeName"`
	Timestamp    string `json:"timestamp"`
	Method       string `json:"method"`
}

// NewRecord converts a domain record.
func NewRecord(r domain.AttendanceRecord) Record {
	return Record{
		ID:           r.ID,
		SessionID:    r.SessionID,
		AttendeeID:   r.AttendeeID,
		AttendeeName: r.AttendeeName,
		Timestamp:    timestamp(r.Timestamp),
		Method:       string(r.Method),
	}
}

// NewRecords converts a slice, never returning nil.
func NewRecords(in []domain.AttendanceRecord) []Record {
	out := make([]Record, 0, len(in))
	for _, r := range in {
		out = append(out, NewRecord(r))
	}
	return out
}

// AdmissionEventType names admission frames and events.
const AdmissionEventType = "attendance.admitted"

// Admission is the payload pushed to the live feed.
type Admission struct {
	Record    Record `json:"record"`
	Duplicate bool   `json:"duplicate"`
}

// SessionSummary is one dashboard session row.
type SessionSummary struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	AttendeeCount int    `json:"attendeeCount"`
	Capacity      int    `json:"capacity"`
}

// Dashboard is the public dashboard shape.
type Dashboard struct {
	TotalAttendees        int              `json:"totalAttendees"`
	TotalSessions         int              `json:"totalSessions"`
	AverageAttendanceRate int              `json:"averageAttendanceRate"`
	UpcomingSessions      int              `json:"upcomingSessions"`
	NextSessionDate       *string          `json:"nextSessionDate"`
	RecentSessions        []SessionSummary `json:"recentSessions"`
	UpcomingSessionsList  []SessionSummary `json:"upcomingSessionsList"`
}

// NewDashboard converts a report.
func NewDashboard(d reports.Dashboard) Dashboard {
	out := Dashboard{
		TotalAttendees:        d.TotalAttendees,
		TotalSessions:         d.TotalSessions,
		AverageAttendanceRate: d.AverageAttendanceRate,
		UpcomingSessions:      d.UpcomingSessions,
		RecentSessions:        summaries(d.RecentSessions),
		UpcomingSessionsList:  summaries(d.UpcomingSessionsList),
	}
	if d.NextSessionDate != "" {
		next := d.NextSessionDate
		out.NextSessionDate = &next
	}
	return out
}

func summaries(in []reports.SessionSummary) []SessionSummary {
	out := make([]SessionSummary, 0, len(in))
	for _, s := range in {
		out = append(out, SessionSummary{
			ID: s.ID, Title: s.Title, Date: s.Date, Time: s.Time,
			AttendeeCount: s.AttendeeCount, Capacity: s.Capacity,
		})
	}
	return out
}
