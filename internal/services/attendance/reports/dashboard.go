// Package reports builds the admin dashboard summary from the attendee,
// session, and attendance tables.
package reports

import (
	"context"
	"math"
	"slices"
	"time"

	"github.com/louisbranch/rollcall/internal/services/attendance/domain"
)

// DefaultCapacity is the assumed seat count of every session.
const DefaultCapacity = 30

const listSize = 3

// Source lists the tables a dashboard reads.
type Source interface {
	ListAttendees(ctx context.Context) ([]domain.Attendee, error)
	ListSessions(ctx context.Context) ([]domain.Session, error)
	ListAttendance(ctx context.Context) ([]domain.AttendanceRecord, error)
}

// SessionSummary is one session row on the dashboard.
type SessionSummary struct {
	ID            string
	Title         string
	Date          string
	Time          string
	AttendeeCount int
	Capacity      int
}

// Dashboard is the admin overview.
type Dashboard struct {
	TotalAttendees        int
	TotalSessions         int
	AverageAttendanceRate int
	UpcomingSessions      int
	NextSessionDate       string
	RecentSessions        []SessionSummary
	UpcomingSessionsList  []SessionSummary
}

// Service computes reports.
type Service struct {
	source   Source
	days     domain.DayPolicy
	capacity int
}

// NewService constructs a report service. Sessions dated today or later
// under days count as upcoming.
func NewService(source Source, days domain.DayPolicy) *Service {
	return &Service{source: source, days: days, capacity: DefaultCapacity}
}

type datedSession struct {
	session domain.Session
	date    time.Time
}

// Dashboard summarizes the roster and schedule as of now. The average
// attendance rate covers the three most recent past sessions.
func (s *Service) Dashboard(ctx context.Context, now time.Time) (Dashboard, error) {
	attendees, err := s.source.ListAttendees(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	sessions, err := s.source.ListSessions(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	records, err := s.source.ListAttendance(ctx)
	if err != nil {
		return Dashboard{}, err
	}

	counts := make(map[string]int)
	for _, record := range records {
		counts[record.SessionID]++
	}

	today, _ := time.Parse(domain.DateLayout, s.days.DayKey(now))
	var upcoming, past []datedSession
	for _, session := range sessions {
		date, err := domain.ParseDate(session.Date)
		if err != nil {
			continue
		}
		if date.Before(today) {
			past = append(past, datedSession{session: session, date: date})
		} else {
			upcoming = append(upcoming, datedSession{session: session, date: date})
		}
	}
	slices.SortStableFunc(upcoming, func(a, b datedSession) int { return a.date.Compare(b.date) })
	slices.SortStableFunc(past, func(a, b datedSession) int { return b.date.Compare(a.date) })

	dashboard := Dashboard{
		TotalAttendees:       len(attendees),
		TotalSessions:        len(sessions),
		UpcomingSessions:     len(upcoming),
		RecentSessions:       s.summaries(past, counts),
		UpcomingSessionsList: s.summaries(upcoming, counts),
	}
	if len(upcoming) > 0 {
		dashboard.NextSessionDate = upcoming[0].date.Format(domain.DateLayout)
	}

	attended, capacity := 0, 0
	for _, summary := range dashboard.RecentSessions {
		attended += summary.AttendeeCount
		capacity += summary.Capacity
	}
	if capacity > 0 {
		dashboard.AverageAttendanceRate = int(math.Round(float64(attended) / float64(capacity) * 100))
	}
	return dashboard, nil
}

func (s *Service) summaries(sessions []datedSession, counts map[string]int) []SessionSummary {
	n := min(len(sessions), listSize)
	out := make([]SessionSummary, 0, n)
	for _, dated := range sessions[:n] {
		out = append(out, SessionSummary{
			ID:            dated.session.ID,
			Title:         dated.session.Title,
			Date:          dated.date.Format(domain.DateLayout),
			Time:          dated.session.Time,
			AttendeeCount: counts[dated.session.ID],
			Capacity:      s.capacity,
		})
	}
	return out
}
