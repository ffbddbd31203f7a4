package repository

import (
	"strconv"
	"strings"
	"time"

	"github.com/louisbranch/rollcall/internal/services/attendance/domain"
	"github.com/louisbranch/rollcall/internal/services/attendance/storage"
)

// timestampLayout matches the millisecond ISO-8601 form already present in
// existing sheets (2025-01-01T09:00:00.000Z).
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	parsed, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return parsed.UTC()
}

func formatCount(n int) string {
	if n <= 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func parseCount(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func encodeAttendee(a domain.Attendee) storage.Row {
	return storage.Row{a.ID, a.Name, a.Email, a.QRCode, formatTimestamp(a.CreatedAt)}
}

func decodeAttendee(row storage.Row) domain.Attendee {
	return domain.Attendee{
		ID:        strings.TrimSpace(row.Cell(0)),
		Name:      row.Cell(1),
		Email:     row.Cell(2),
		QRCode:    row.Cell(3),
		CreatedAt: parseTimestamp(row.Cell(4)),
	}
}

func encodeSession(s domain.Session) storage.Row {
	return storage.Row{
		s.ID,
		s.Title,
		s.Date,
		s.Time,
		formatTimestamp(s.CreatedAt),
		strconv.FormatBool(s.IsRecurring),
		formatCount(s.RecurringWeeks),
		formatCount(s.RecurringInterval),
		s.ParentSessionID,
	}
}

func decodeSession(row storage.Row) domain.Session {
	return domain.Session{
		ID:                strings.TrimSpace(row.Cell(0)),
		Title:             row.Cell(1),
		Date:              strings.TrimSpace(row.Cell(2)),
		Time:              row.Cell(3),
		CreatedAt:         parseTimestamp(row.Cell(4)),
		IsRecurring:       strings.EqualFold(strings.TrimSpace(row.Cell(5)), "true"),
		RecurringWeeks:    parseCount(row.Cell(6)),
		RecurringInterval: parseCount(row.Cell(7)),
		ParentSessionID:   strings.TrimSpace(row.Cell(8)),
	}
}

func encodeRecord(r domain.AttendanceRecord) storage.Row {
	return storage.Row{
		r.ID,
		r.SessionID,
		r.AttendeeID,
		r.AttendeeName,
		formatTimestamp(r.Timestamp),
		string(r.Method),
	}
}

func decodeRecord(row storage.Row) domain.AttendanceRecord {
	return domain.AttendanceRecord{
		ID:           strings.TrimSpace(row.Cell(0)),
		SessionID:    strings.TrimSpace(row.Cell(1)),
		AttendeeID:   strings.TrimSpace(row.Cell(2)),
		AttendeeName: row.Cell(3),
		Timestamp:    parseTimestamp(row.Cell(4)),
		Method:       domain.Method(strings.TrimSpace(row.Cell(5))),
	}
}
