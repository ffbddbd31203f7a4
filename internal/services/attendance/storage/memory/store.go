// Package memory provides an in-process RowStore for local runs and tests.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/louisbranch/rollcall/internal/services/attendance/storage"
)

// Option configures a Store.
type Option func(*Store)

// WithVisibilityLag delays when appended rows become readable, modelling a
// backend whose reads trail its writes.
func WithVisibilityLag(lag time.Duration) Option {
	return func(s *Store) {
		if lag > 0 {
			s.lag = lag
		}
	}
}

// WithClock overrides the clock used to evaluate visibility.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

type entry struct {
	row       storage.Row
	visibleAt time.Time
}

// Store keeps tables as ordered slices guarded by one mutex.
type Store struct {
	mu     sync.Mutex
	tables map[string][]entry
	lag    time.Duration
	clock  func() time.Time
}

// New returns an empty store managing every attendance table.
func New(opts ...Option) *Store {
	s := &Store{
		tables: make(map[string][]entry),
		clock:  time.Now,
	}
	for _, table := range storage.Tables() {
		s.tables[table.Name] = nil
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureTables registers tables that are not managed yet.
func (s *Store) EnsureTables(ctx context.Context, tables []storage.Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, table := range tables {
		if _, ok := s.tables[table.Name]; !ok {
			s.tables[table.Name] = nil
		}
	}
	return nil
}

// ListRows returns the visible rows of table. Rows become visible in append
// order, so the result is always a prefix of the table.
func (s *Store) ListRows(ctx context.Context, table string) ([]storage.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, ok := s.tables[table]
	if !ok {
		return nil, fmt.Errorf("%w: %q", storage.ErrUnknownTable, table)
	}
	now := s.clock()
	rows := make([]storage.Row, 0, len(entries))
	for _, e := range entries {
		if e.visibleAt.After(now) {
			break
		}
		rows = append(rows, cloneRow(e.row))
	}
	return rows, nil
}

// AppendRows adds rows to the end of table.
func (s *Store) AppendRows(ctx context.Context, table string, rows []storage.Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, ok := s.tables[table]
	if !ok {
		return fmt.Errorf("%w: %q", storage.ErrUnknownTable, table)
	}
	visibleAt := s.clock().Add(s.lag)
	for _, row := range rows {
		entries = append(entries, entry{row: cloneRow(row), visibleAt: visibleAt})
	}
	s.tables[table] = entries
	return nil
}

// UpdateRow replaces the row at index. Updates are visible immediately.
func (s *Store) UpdateRow(ctx context.Context, table string, index int, row storage.Row) error {
	return s.replace(ctx, table, index, cloneRow(row))
}

// ClearRow blanks the row at index.
func (s *Store) ClearRow(ctx context.Context, table string, index int) error {
	return s.replace(ctx, table, index, storage.Row{})
}

func (s *Store) replace(ctx context.Context, table string, index int, row storage.Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, ok := s.tables[table]
	if !ok {
		return fmt.Errorf("%w: %q", storage.ErrUnknownTable, table)
	}
	if index < 0 || index >= len(entries) {
		return fmt.Errorf("%w: %s[%d]", storage.ErrRowOutOfRange, table, index)
	}
	entries[index].row = row
	return nil
}

func cloneRow(row storage.Row) storage.Row {
	if row == nil {
		return storage.Row{}
	}
	out := make(storage.Row, len(row))
	copy(out, row)
	return out
}

var _ storage.RowStore = (*Store)(nil)
var _ storage.TableEnsurer = (*Store)(nil)
