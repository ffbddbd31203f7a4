// Package repository maps Store Adapter rows to attendance entities and
// back. It is the only package that knows column positions, and it owns id
// generation for every entity.
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/louisbranch/rollcall/internal/platform/id"
	"github.com/louisbranch/rollcall/internal/services/attendance/domain"
	"github.com/louisbranch/rollcall/internal/services/attendance/storage"
)

// Id prefixes per entity.
const (
	AttendanceIDPrefix = "att"
	AttendeeIDPrefix   = "attendee"
	SessionIDPrefix    = "session"
)

// Stored pairs an entity with its row index so callers can update or clear
// the row it came from.
type Stored[T any] struct {
	Index int
	Value T
}

// Repository reads and writes typed entities through a RowStore. It caches
// nothing: every read re-fetches the table.
type Repository struct {
	store storage.RowStore
	clock func() time.Time
	newID func() (string, error)
}

// New constructs a repository. Nil clock and id generator fall back to the
// wall clock and platform ids.
func New(store storage.RowStore, clock func() time.Time, newID func() (string, error)) *Repository {
	if clock == nil {
		clock = time.Now
	}
	if newID == nil {
		newID = id.NewID
	}
	return &Repository{store: store, clock: clock, newID: newID}
}

// Now returns the repository clock in UTC.
func (r *Repository) Now() time.Time {
	return r.clock().UTC()
}

// NewID returns a fresh id of the form <prefix>_<token>.
func (r *Repository) NewID(prefix string) (string, error) {
	token, err := r.newID()
	if err != nil {
		return "", fmt.Errorf("generate %s id: %w", prefix, err)
	}
	return prefix + "_" + token, nil
}

// EnsureSchema creates missing tables and writes header rows. A header
// narrower than the current layout is widened in place.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if ensurer, ok := r.store.(storage.TableEnsurer); ok {
		if err := ensurer.EnsureTables(ctx, storage.Tables()); err != nil {
			return domain.StoreWriteError("ensure tables", err)
		}
	}
	for _, table := range storage.Tables() {
		rows, err := r.store.ListRows(ctx, table.Name)
		if err != nil {
			return domain.StoreReadError("read "+table.Name+" header", err)
		}
		switch {
		case len(rows) == 0:
			if err := r.store.AppendRows(ctx, table.Name, []storage.Row{table.Header()}); err != nil {
				return domain.StoreWriteError("write "+table.Name+" header", err)
			}
		case len(rows[0]) < table.Width():
			if err := r.store.UpdateRow(ctx, table.Name, 0, table.Header()); err != nil {
				return domain.StoreWriteError("widen "+table.Name+" header", err)
			}
		}
	}
	return nil
}

// listStored decodes every data row of table, skipping the header and
// cleared rows while keeping their indices exact.
func listStored[T any](ctx context.Context, r *Repository, table storage.Table, decode func(storage.Row) T, idOf func(T) string) ([]Stored[T], error) {
	rows, err := r.store.ListRows(ctx, table.Name)
	if err != nil {
		return nil, domain.StoreReadError("list "+table.Name, err)
	}
	var out []Stored[T]
	for i, row := range rows {
		if i == 0 {
			continue
		}
		value := decode(row)
		if idOf(value) == "" {
			continue
		}
		out = append(out, Stored[T]{Index: i, Value: value})
	}
	return out, nil
}

func values[T any](stored []Stored[T]) []T {
	out := make([]T, 0, len(stored))
	for _, s := range stored {
		out = append(out, s.Value)
	}
	return out
}

func (r *Repository) append(ctx context.Context, table storage.Table, rows []storage.Row) error {
	if len(rows) == 0 {
		return nil
	}
	if err := r.store.AppendRows(ctx, table.Name, rows); err != nil {
		return domain.StoreWriteError("append "+table.Name, err)
	}
	return nil
}

// ListAttendeeRows returns attendees with their row indices.
func (r *Repository) ListAttendeeRows(ctx context.Context) ([]Stored[domain.Attendee], error) {
	return listStored(ctx, r, storage.Attendees, decodeAttendee, func(a domain.Attendee) string { return a.ID })
}

// ListAttendees returns every attendee in store order.
func (r *Repository) ListAttendees(ctx context.Context) ([]domain.Attendee, error) {
	stored, err := r.ListAttendeeRows(ctx)
	if err != nil {
		return nil, err
	}
	return values(stored), nil
}

// AppendAttendee writes one attendee row.
func (r *Repository) AppendAttendee(ctx context.Context, attendee domain.Attendee) error {
	return r.append(ctx, storage.Attendees, []storage.Row{encodeAttendee(attendee)})
}

// UpdateAttendee rewrites the attendee row at index.
func (r *Repository) UpdateAttendee(ctx context.Context, index int, attendee domain.Attendee) error {
	if err := r.store.UpdateRow(ctx, storage.Attendees.Name, index, encodeAttendee(attendee)); err != nil {
		return domain.StoreWriteError("update "+storage.Attendees.Name, err)
	}
	return nil
}

// ListSessionRows returns sessions with their row indices.
func (r *Repository) ListSessionRows(ctx context.Context) ([]Stored[domain.Session], error) {
	return listStored(ctx, r, storage.Sessions, decodeSession, func(s domain.Session) string { return s.ID })
}

// ListSessions returns every session in store order.
func (r *Repository) ListSessions(ctx context.Context) ([]domain.Session, error) {
	stored, err := r.ListSessionRows(ctx)
	if err != nil {
		return nil, err
	}
	return values(stored), nil
}

// AppendSessions writes sessions in a single batched append.
func (r *Repository) AppendSessions(ctx context.Context, sessions ...domain.Session) error {
	rows := make([]storage.Row, 0, len(sessions))
	for _, session := range sessions {
		rows = append(rows, encodeSession(session))
	}
	return r.append(ctx, storage.Sessions, rows)
}

// ClearSession blanks the session row at index.
func (r *Repository) ClearSession(ctx context.Context, index int) error {
	if err := r.store.ClearRow(ctx, storage.Sessions.Name, index); err != nil {
		return domain.StoreWriteError("clear "+storage.Sessions.Name, err)
	}
	return nil
}

// ListAttendance returns every attendance record in store order.
func (r *Repository) ListAttendance(ctx context.Context) ([]domain.AttendanceRecord, error) {
	stored, err := listStored(ctx, r, storage.Attendance, decodeRecord, func(rec domain.AttendanceRecord) string { return rec.ID })
	if err != nil {
		return nil, err
	}
	return values(stored), nil
}

// AppendAttendance writes one attendance record.
func (r *Repository) AppendAttendance(ctx context.Context, record domain.AttendanceRecord) error {
	return r.append(ctx, storage.Attendance, []storage.Row{encodeRecord(record)})
}
