// Package storage defines the row-oriented Store Adapter contract the
// attendance service persists through, and the positional layout of each
// table it owns.
//
// Backends are spreadsheet-shaped: every table is an ordered list of string
// rows, the first of which is a header. Row indices are positions in the
// ListRows result, so index 0 is always the header row. Cleared rows keep
// their position and read back empty.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownTable indicates a table name the backend does not manage.
	ErrUnknownTable = errors.New("unknown table")
	// ErrRowOutOfRange indicates an update or clear past the end of a table.
	ErrRowOutOfRange = errors.New("row index out of range")
)

// Row is one positional tuple of cell values.
type Row []string

// Cell returns the value at column i, or "" when the row is short.
func (r Row) Cell(i int) string {
	if i < 0 || i >= len(r) {
		return ""
	}
	return r[i]
}

// IsEmpty reports whether every cell in the row is blank.
func (r Row) IsEmpty() bool {
	for _, cell := range r {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// Table names one table and its ordered columns.
type Table struct {
	Name    string
	Columns []string
}

// Width returns the number of columns.
func (t Table) Width() int {
	return len(t.Columns)
}

// Header returns the header row written when a table is bootstrapped.
func (t Table) Header() Row {
	header := make(Row, len(t.Columns))
	copy(header, t.Columns)
	return header
}

// Range returns the A1 notation covering every column of the table.
func (t Table) Range() string {
	return fmt.Sprintf("%s!A:%s", t.Name, columnLetter(t.Width()))
}

// RowRange returns the A1 notation covering one row, where index is the
// zero-based ListRows position.
func (t Table) RowRange(index int) string {
	line := index + 1
	return fmt.Sprintf("%s!A%d:%s%d", t.Name, line, columnLetter(t.Width()), line)
}

func columnLetter(n int) string {
	if n <= 0 {
		return "A"
	}
	var letters []byte
	for n > 0 {
		n--
		letters = append([]byte{byte('A' + n%26)}, letters...)
		n /= 26
	}
	return string(letters)
}

var (
	// Attendees holds one row per attendee.
	Attendees = Table{
		Name:    "Attendees",
		Columns: []string{"id", "name", "email", "qrCode", "createdAt"},
	}
	// Sessions holds standalone sessions, recurring parents, and instances.
	Sessions = Table{
		Name: "Sessions",
		Columns: []string{
			"id", "title", "date", "time", "createdAt",
			"isRecurring", "recurringWeeks", "recurringInterval", "parentSessionId",
		},
	}
	// Attendance holds the append-only check-in ledger.
	Attendance = Table{
		Name:    "Attendance",
		Columns: []string{"id", "sessionId", "attendeeId", "attendeeName", "timestamp", "method"},
	}
)

// Tables returns every table the attendance service owns.
func Tables() []Table {
	return []Table{Attendees, Sessions, Attendance}
}

// LookupTable resolves a table by name.
func LookupTable(name string) (Table, error) {
	for _, table := range Tables() {
		if table.Name == name {
			return table, nil
		}
	}
	return Table{}, fmt.Errorf("%w: %q", ErrUnknownTable, name)
}

// RowStore is the Store Adapter contract. Implementations are not
// transactional and may be eventually consistent across readers.
type RowStore interface {
	// ListRows returns every row of the table, header included.
	ListRows(ctx context.Context, table string) ([]Row, error)
	// AppendRows writes rows after the last row of the table in one call.
	AppendRows(ctx context.Context, table string, rows []Row) error
	// UpdateRow replaces the row at index.
	UpdateRow(ctx context.Context, table string, index int, row Row) error
	// ClearRow blanks the row at index without shifting later rows.
	ClearRow(ctx context.Context, table string, index int) error
}

// TableEnsurer is implemented by backends that must create a table before
// rows can be written to it.
type TableEnsurer interface {
	EnsureTables(ctx context.Context, tables []Table) error
}
