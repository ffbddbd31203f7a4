package ledger

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/louisbranch/rollcall/internal/platform/id"
	"github.com/louisbranch/rollcall/internal/services/attendance/domain"
)

// DefaultLockTTL bounds how long a settled lock entry survives without
// release.
const DefaultLockTTL = 30 * time.Second

// Lease is one holder's claim on a lock key.
type Lease struct {
	Key   string
	Token string
	// Since is when the holder acquired the key.
	Since time.Time
	// Record is what the holder admitted. It stays zero until the holder
	// settles.
	Record domain.AttendanceRecord
}

// Settled reports whether the holder has finished its store calls.
func (l Lease) Settled() bool {
	return l.Record.SessionID != ""
}

// LockTable serializes admission attempts that share a lock key.
type LockTable interface {
	// TryAcquire takes key if it is free. When key is already held it
	// returns false and the holder's lease.
	TryAcquire(ctx context.Context, key string, now time.Time) (Lease, bool, error)
	// Peek returns the current holder of key, if any.
	Peek(ctx context.Context, key string) (Lease, bool, error)
	// Settle attaches the admitted record to lease. Only settled entries
	// older than the table's ttl may be reclaimed by another caller.
	Settle(ctx context.Context, lease Lease, record domain.AttendanceRecord, now time.Time) error
	// Release frees the key if lease still owns it. Releasing a free or
	// reclaimed key is not an error.
	Release(ctx context.Context, lease Lease) error
}

// LockKey builds the lock key for one admission attempt. Components are
// length-prefixed so distinct tuples never collide.
func LockKey(sessionID, attendeeID, day string, method domain.Method) string {
	return joinKey(sessionID, attendeeID, day, string(method))
}

// dayKey identifies a (session, attendee, day) regardless of method.
func dayKey(sessionID, attendeeID, day string) string {
	return joinKey(sessionID, attendeeID, day)
}

func joinKey(parts ...string) string {
	var b strings.Builder
	for i, part := range parts {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(strconv.Itoa(len(part)))
		b.WriteByte(':')
		b.WriteString(part)
	}
	return b.String()
}

// NewLeaseToken returns a token unique to one acquisition.
func NewLeaseToken() (string, error) {
	return id.NewID()
}

type lockEntry struct {
	lease     Lease
	settledAt time.Time
}

// MemoryLocks is a process-local LockTable.
type MemoryLocks struct {
	mu      sync.Mutex
	entries map[string]lockEntry
	ttl     time.Duration
}

// NewMemoryLocks returns an empty table. Settled entries older than ttl are
// treated as free; a non-positive ttl disables reclamation.
func NewMemoryLocks(ttl time.Duration) *MemoryLocks {
	return &MemoryLocks{entries: make(map[string]lockEntry), ttl: ttl}
}

// TryAcquire implements LockTable. An unsettled entry is never reclaimed,
// however old it is.
func (m *MemoryLocks) TryAcquire(_ context.Context, key string, now time.Time) (Lease, bool, error) {
	token, err := NewLeaseToken()
	if err != nil {
		return Lease{}, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry, ok := m.entries[key]; ok && !m.reclaimable(entry, now) {
		return entry.lease, false, nil
	}
	lease := Lease{Key: key, Token: token, Since: now}
	m.entries[key] = lockEntry{lease: lease}
	return lease, true, nil
}

func (m *MemoryLocks) reclaimable(entry lockEntry, now time.Time) bool {
	if m.ttl <= 0 || entry.settledAt.IsZero() {
		return false
	}
	return now.Sub(entry.settledAt) >= m.ttl
}

// Peek implements LockTable.
func (m *MemoryLocks) Peek(_ context.Context, key string) (Lease, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[key]
	return entry.lease, ok, nil
}

// Settle implements LockTable.
func (m *MemoryLocks) Settle(_ context.Context, lease Lease, record domain.AttendanceRecord, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[lease.Key]
	if !ok || entry.lease.Token != lease.Token {
		return nil
	}
	entry.lease.Record = record
	entry.settledAt = now
	m.entries[lease.Key] = entry
	return nil
}

// Release implements LockTable.
func (m *MemoryLocks) Release(_ context.Context, lease Lease) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry, ok := m.entries[lease.Key]; ok && entry.lease.Token == lease.Token {
		delete(m.entries, lease.Key)
	}
	return nil
}

func (m *MemoryLocks) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// dayGates serializes the duplicate-check read and the append for one
// (session, attendee, day) across every method.
type dayGates struct {
	mu      sync.Mutex
	entries map[string]*dayGate
}

type dayGate struct {
	mu   sync.Mutex
	refs int
}

func (g *dayGates) lock(key string) func() {
	g.mu.Lock()
	if g.entries == nil {
		g.entries = make(map[string]*dayGate)
	}
	gate, ok := g.entries[key]
	if !ok {
		gate = &dayGate{}
		g.entries[key] = gate
	}
	gate.refs++
	g.mu.Unlock()

	gate.mu.Lock()
	return func() {
		gate.mu.Unlock()
		g.mu.Lock()
		gate.refs--
		if gate.refs == 0 {
			delete(g.entries, key)
		}
		g.mu.Unlock()
	}
}
