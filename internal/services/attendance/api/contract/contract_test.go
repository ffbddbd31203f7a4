package contract

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/louisbranch/rollcall/internal/services/attendance/domain"
	"github.com/louisbranch/rollcall/internal/services/attendance/reports"
)

func TestRecordJSONUsesCamelCase(t *testing.T) {
	t.Parallel()

	record := NewRecord(domain.AttendanceRecord{
		ID: "att_1", SessionID: "s1", AttendeeID: "a1", AttendeeName: "Ana",
		Timestamp: time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC), Method: domain.MethodQRScan,
	})
	data, err := json.Marshal(record)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"id":"att_1","sessionId":"s1","attendeeId":"a1","attendeeName":"Ana","timestamp":"2025-01-01T09:00:00.000Z","method":"QR_SCAN"}`
	if string(data) != want {
		t.Fatalf("json = %s, want %s", data, want)
	}
}

func TestFastAcceptRecordOmitsID(t *testing.T) {
	t.Parallel()

	data, _ := json.Marshal(NewRecord(domain.AttendanceRecord{SessionID: "s1"}))
	if strings.Contains(string(data), `"id"`) {
		t.Fatalf("json = %s, want no id", data)
	}
}

func TestSessionOmitsEmptyRecurrence(t *testing.T) {
	t.Parallel()

	data, _ := json.Marshal(NewSession(domain.Session{ID: "s1", Title: "Yoga", Date: "2025-01-01", Time: "7"}))
	for _, field := range []string{"recurringWeeks", "recurringInterval", "parentSessionId", "createdAt"} {
		if strings.Contains(string(data), field) {
			t.Fatalf("json = %s, want no %s", data, field)
		}
	}
	if !strings.Contains(string(data), `"isRecurring":false`) {
		t.Fatalf("json = %s, want isRecurring", data)
	}
}

func TestDashboardNextSessionDateIsNullable(t *testing.T) {
	t.Parallel()

	data, _ := json.Marshal(NewDashboard(reports.Dashboard{}))
	if !strings.Contains(string(data), `"nextSessionDate":null`) {
		t.Fatalf("json = %s, want null next session date", data)
	}
	if !strings.Contains(string(data), `"recentSessions":[]`) {
		t.Fatalf("json = %s, want empty recent list", data)
	}
	data, _ = json.Marshal(NewDashboard(reports.Dashboard{NextSessionDate: "2025-01-08"}))
	if !strings.Contains(string(data), `"nextSessionDate":"2025-01-08"`) {
		t.Fatalf("json = %s", data)
	}
}
