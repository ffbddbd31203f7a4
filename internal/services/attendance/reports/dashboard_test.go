package reports

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/louisbranch/rollcall/internal/services/attendance/domain"
)

type fakeSource struct {
	attendees []domain.Attendee
	sessions  []domain.Session
	records   []domain.AttendanceRecord
	err       error
}

func (f fakeSource) ListAttendees(context.Context) ([]domain.Attendee, error) {
	return f.attendees, f.err
}

func (f fakeSource) ListSessions(context.Context) ([]domain.Session, error) {
	return f.sessions, nil
}

func (f fakeSource) ListAttendance(context.Context) ([]domain.AttendanceRecord, error) {
	return f.records, nil
}

func attendanceFor(sessionID string, n int) []domain.AttendanceRecord {
	out := make([]domain.AttendanceRecord, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.AttendanceRecord{ID: fmt.Sprintf("att_%s_%d", sessionID, i), SessionID: sessionID})
	}
	return out
}

func TestDashboard(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 15, 18, 0, 0, 0, time.UTC)
	var records []domain.AttendanceRecord
	records = append(records, attendanceFor("s-jan-14", 15)...)
	records = append(records, attendanceFor("s-jan-10", 9)...)
	records = append(records, attendanceFor("s-jan-07", 6)...)
	records = append(records, attendanceFor("s-jan-01", 30)...)
	records = append(records, attendanceFor("s-jan-15", 2)...)

	source := fakeSource{
		attendees: []domain.Attendee{{ID: "a1"}, {ID: "a2"}},
		sessions: []domain.Session{
			{ID: "s-jan-01", Date: "2025-01-01"},
			{ID: "s-jan-20", Date: "2025-01-20"},
			{ID: "s-jan-10", Date: "2025-01-10"},
			{ID: "s-jan-15", Date: "2025-01-15", Time: "19:00"},
			{ID: "s-jan-07", Date: "2025-01-07"},
			{ID: "s-jan-14", Date: "2025-01-14"},
			{ID: "s-bad", Date: "someday"},
		},
		records: records,
	}
	got, err := NewService(source, domain.UTCDays).Dashboard(context.Background(), now)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if got.TotalAttendees != 2 {
		t.Fatalf("total attendees = %d, want 2", got.TotalAttendees)
	}
	if got.TotalSessions != 7 {
		t.Fatalf("total sessions = %d, want 7", got.TotalSessions)
	}
	if got.UpcomingSessions != 2 {
		t.Fatalf("upcoming = %d, want 2", got.UpcomingSessions)
	}
	if got.NextSessionDate != "2025-01-15" {
		t.Fatalf("next session date = %q, want 2025-01-15", got.NextSessionDate)
	}

	wantRecent := []string{"s-jan-14", "s-jan-10", "s-jan-07"}
	if len(got.RecentSessions) != len(wantRecent) {
		t.Fatalf("recent = %d, want %d", len(got.RecentSessions), len(wantRecent))
	}
	for i, summary := range got.RecentSessions {
		if summary.ID != wantRecent[i] {
			t.Fatalf("recent[%d] = %s, want %s", i, summary.ID, wantRecent[i])
		}
		if summary.Capacity != DefaultCapacity {
			t.Fatalf("capacity = %d, want %d", summary.Capacity, DefaultCapacity)
		}
	}
	// (15 + 9 + 6) / 90 = 33.3%
	if got.AverageAttendanceRate != 33 {
		t.Fatalf("average rate = %d, want 33", got.AverageAttendanceRate)
	}
	if got.UpcomingSessionsList[0].AttendeeCount != 2 {
		t.Fatalf("today's count = %d, want 2", got.UpcomingSessionsList[0].AttendeeCount)
	}
}

func TestDashboardEmpty(t *testing.T) {
	t.Parallel()

	got, err := NewService(fakeSource{}, domain.UTCDays).Dashboard(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if got.AverageAttendanceRate != 0 || got.NextSessionDate != "" || len(got.RecentSessions) != 0 {
		t.Fatalf("dashboard = %+v, want zero values", got)
	}
}

func TestDashboardPropagatesErrors(t *testing.T) {
	t.Parallel()

	boom := domain.StoreReadError("list Attendees", errors.New("down"))
	if _, err := NewService(fakeSource{err: boom}, domain.UTCDays).Dashboard(context.Background(), time.Now()); !domain.IsStoreRead(err) {
		t.Fatalf("error = %v, want store read", err)
	}
}
