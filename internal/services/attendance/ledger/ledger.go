// Package ledger admits check-in attempts exactly once per session,
// attendee, and calendar day.
//
// Each attempt first takes a lock keyed by session, attendee, day, and
// method. A held lock is a fast accept: the caller sees a duplicate
// admission and nothing is written. Otherwise the ledger waits on a gate
// shared by every method for the same session, attendee, and day, reads the
// attendance table, treats any same-day record for the pair as a duplicate
// regardless of method, and appends a new record when none exists. Locks
// outlive successful writes by a grace window so a concurrent attempt cannot
// slip past a store whose reads trail its writes. A lock whose holder is
// still waiting on the store is never reclaimed.
package ledger

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	platformotel "github.com/louisbranch/rollcall/internal/platform/otel"
	"github.com/louisbranch/rollcall/internal/services/attendance/domain"
	"github.com/louisbranch/rollcall/internal/services/attendance/repository"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Store is the persistence the ledger needs.
type Store interface {
	ListAttendance(ctx context.Context) ([]domain.AttendanceRecord, error)
	AppendAttendance(ctx context.Context, record domain.AttendanceRecord) error
	NewID(prefix string) (string, error)
}

// NameResolver finds an attendee by id.
type NameResolver interface {
	FindByID(ctx context.Context, attendeeID string) (domain.Attendee, error)
}

// Notifier observes admissions. Implementations must not block.
type Notifier interface {
	Admitted(ctx context.Context, result Result)
}

// Request is one check-in attempt.
type Request struct {
	SessionID    string
	AttendeeID   string
	Method       domain.Method
	AttendeeName string
}

// Result describes an admission. Duplicate is set when no row was written
// because the attendee was already checked in for the day.
type Result struct {
	Admitted  bool
	Duplicate bool
	Record    domain.AttendanceRecord
}

// Ledger records attendance.
type Ledger struct {
	store       Store
	locks       LockTable
	resolver    NameResolver
	notifier    Notifier
	days        domain.DayPolicy
	grace       time.Duration
	readFailure ReadFailurePolicy
	clock       func() time.Time
	afterFunc   func(time.Duration, func()) Timer
	logf        func(format string, args ...any)
	tracer      trace.Tracer

	gates dayGates

	mu      sync.Mutex
	pending map[string]pendingRelease
	closed  bool
}

type pendingRelease struct {
	lease Lease
	timer Timer
}

var methods = []domain.Method{domain.MethodQRScan, domain.MethodManual}

// New constructs a ledger over store.
func New(store Store, opts Options) *Ledger {
	l := &Ledger{
		store:       store,
		locks:       opts.Locks,
		resolver:    opts.Resolver,
		notifier:    opts.Notifier,
		days:        opts.Days,
		grace:       opts.Grace,
		readFailure: opts.ReadFailure,
		clock:       opts.Clock,
		afterFunc:   opts.AfterFunc,
		logf:        opts.Logf,
		tracer:      platformotel.Tracer("attendance/ledger"),
		pending:     make(map[string]pendingRelease),
	}
	if l.locks == nil {
		l.locks = NewMemoryLocks(DefaultLockTTL)
	}
	if l.grace == 0 {
		l.grace = DefaultGrace
	}
	if l.readFailure == "" {
		l.readFailure = ReadFailureFail
	}
	if l.clock == nil {
		l.clock = time.Now
	}
	if l.afterFunc == nil {
		l.afterFunc = func(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
	}
	if l.logf == nil {
		l.logf = log.Printf
	}
	return l
}

// RecordAttendance admits one check-in attempt. A duplicate is a successful
// admission, never an error.
func (l *Ledger) RecordAttendance(ctx context.Context, req Request) (Result, error) {
	sessionID := strings.TrimSpace(req.SessionID)
	attendeeID := strings.TrimSpace(req.AttendeeID)
	if sessionID == "" {
		return Result{}, domain.ValidationError("sessionId", "is required")
	}
	if attendeeID == "" {
		return Result{}, domain.ValidationError("attendeeId", "is required")
	}
	method, err := domain.ParseMethod(string(req.Method))
	if err != nil {
		return Result{}, err
	}

	ctx, span := l.tracer.Start(ctx, "ledger.RecordAttendance", trace.WithAttributes(
		attribute.String("session.id", sessionID),
		attribute.String("attendee.id", attendeeID),
		attribute.String("attendance.method", string(method)),
	))
	defer span.End()

	result, err := l.record(ctx, sessionID, attendeeID, method, strings.TrimSpace(req.AttendeeName))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}
	span.SetAttributes(attribute.Bool("attendance.duplicate", result.Duplicate))
	if l.notifier != nil {
		l.notifier.Admitted(context.WithoutCancel(ctx), result)
	}
	return result, nil
}

func (l *Ledger) record(ctx context.Context, sessionID, attendeeID string, method domain.Method, name string) (Result, error) {
	now := l.clock().UTC()
	day := l.days.DayKey(now)
	key := LockKey(sessionID, attendeeID, day, method)

	lease, acquired, err := l.locks.TryAcquire(ctx, key, now)
	locked := err == nil
	switch {
	case err != nil:
		// Without the lock the same-day read below is the only guard.
		l.logf("lock unavailable, relying on store check key=%q err=%v", key, err)
	case !acquired:
		return l.fastAccept(ctx, sessionID, attendeeID, method, name, lease), nil
	}

	settled := false
	defer func() {
		if locked && !settled {
			l.releaseNow(ctx, lease)
		}
	}()
	unlock := l.gates.lock(dayKey(sessionID, attendeeID, day))
	defer unlock()

	existing, found, err := l.findSameDay(ctx, sessionID, attendeeID, day, method, now)
	if err != nil {
		return Result{}, err
	}
	if found {
		if existing.AttendeeName == "" {
			existing.AttendeeName = name
		}
		if locked {
			l.settle(ctx, lease, existing, now)
			settled = true
		}
		l.logf("attendance already logged session_id=%s attendee_id=%s record_id=%s", sessionID, attendeeID, existing.ID)
		return Result{Admitted: true, Duplicate: true, Record: existing}, nil
	}

	if name == "" {
		name = l.resolveName(ctx, attendeeID)
	}
	recordID, err := l.store.NewID(repository.AttendanceIDPrefix)
	if err != nil {
		return Result{}, fmt.Errorf("record attendance: %w", err)
	}
	record := domain.AttendanceRecord{
		ID:           recordID,
		SessionID:    sessionID,
		AttendeeID:   attendeeID,
		AttendeeName: name,
		Timestamp:    now,
		Method:       method,
	}
	if err := l.store.AppendAttendance(ctx, record); err != nil {
		l.logf("attendance write failed session_id=%s attendee_id=%s err=%v", sessionID, attendeeID, err)
		if !domain.IsStoreWrite(err) {
			err = domain.StoreWriteError("append attendance", err)
		}
		return Result{}, err
	}
	if locked {
		l.settle(ctx, lease, record, now)
		settled = true
	}
	l.logf("attendance logged session_id=%s attendee_id=%s record_id=%s method=%s", sessionID, attendeeID, record.ID, method)
	return Result{Admitted: true, Record: record}, nil
}

// fastAccept answers an attempt whose lock key is already held. A settled
// holder supplies its record; otherwise the record is rebuilt from the
// request and the holder's acquisition time.
func (l *Ledger) fastAccept(ctx context.Context, sessionID, attendeeID string, method domain.Method, name string, holder Lease) Result {
	l.logf("attendance fast-accept session_id=%s attendee_id=%s method=%s", sessionID, attendeeID, method)
	if holder.Settled() {
		record := holder.Record
		if record.AttendeeName == "" {
			record.AttendeeName = name
		}
		return Result{Admitted: true, Duplicate: true, Record: record}
	}
	if name == "" {
		name = l.resolveName(ctx, attendeeID)
	}
	return Result{
		Admitted:  true,
		Duplicate: true,
		Record: domain.AttendanceRecord{
			SessionID:    sessionID,
			AttendeeID:   attendeeID,
			AttendeeName: name,
			Timestamp:    holder.Since.UTC(),
			Method:       method,
		},
	}
}

// findSameDay looks for an existing record for the pair on now's day,
// ignoring method. Records settled under another method's lock count even
// when the store does not show them yet.
func (l *Ledger) findSameDay(ctx context.Context, sessionID, attendeeID, day string, method domain.Method, now time.Time) (domain.AttendanceRecord, bool, error) {
	for _, other := range methods {
		if other == method {
			continue
		}
		holder, ok, err := l.locks.Peek(ctx, LockKey(sessionID, attendeeID, day, other))
		if err != nil {
			l.logf("lock peek failed session_id=%s attendee_id=%s method=%s err=%v", sessionID, attendeeID, other, err)
			continue
		}
		if ok && holder.Settled() {
			return holder.Record, true, nil
		}
	}

	records, err := l.store.ListAttendance(ctx)
	if err != nil {
		if l.readFailure == ReadFailureProceed {
			l.logf("duplicate check read failed, proceeding session_id=%s attendee_id=%s err=%v", sessionID, attendeeID, err)
			return domain.AttendanceRecord{}, false, nil
		}
		if !domain.IsStoreRead(err) {
			err = domain.StoreReadError("list attendance", err)
		}
		return domain.AttendanceRecord{}, false, err
	}
	for _, record := range records {
		if record.SessionID == sessionID && record.AttendeeID == attendeeID && l.days.SameDay(record.Timestamp, now) {
			return record, true, nil
		}
	}
	return domain.AttendanceRecord{}, false, nil
}

func (l *Ledger) resolveName(ctx context.Context, attendeeID string) string {
	if l.resolver == nil {
		return domain.UnknownAttendeeName
	}
	attendee, err := l.resolver.FindByID(ctx, attendeeID)
	if err != nil {
		if !domain.IsNotFound(err) {
			l.logf("attendee name lookup failed attendee_id=%s err=%v", attendeeID, err)
		}
		return domain.UnknownAttendeeName
	}
	if strings.TrimSpace(attendee.Name) == "" {
		return domain.UnknownAttendeeName
	}
	return attendee.Name
}

func (l *Ledger) releaseNow(ctx context.Context, lease Lease) {
	if err := l.locks.Release(context.WithoutCancel(ctx), lease); err != nil {
		l.logf("release lock key=%q err=%v", lease.Key, err)
	}
}

// settle attaches record to lease and schedules its release after the
// grace window, or immediately once the ledger is closed.
func (l *Ledger) settle(ctx context.Context, lease Lease, record domain.AttendanceRecord, now time.Time) {
	if err := l.locks.Settle(context.WithoutCancel(ctx), lease, record, now); err != nil {
		l.logf("settle lock key=%q err=%v", lease.Key, err)
	}
	if l.grace < 0 {
		l.releaseNow(ctx, lease)
		return
	}
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		l.releaseNow(ctx, lease)
		return
	}
	var timer Timer
	timer = l.afterFunc(l.grace, func() {
		l.mu.Lock()
		if l.pending[lease.Token].timer == timer {
			delete(l.pending, lease.Token)
		}
		l.mu.Unlock()
		l.releaseNow(context.Background(), lease)
	})
	l.pending[lease.Token] = pendingRelease{lease: lease, timer: timer}
	l.mu.Unlock()
}

func (l *Ledger) pendingReleases() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

// Close releases every lock still waiting out its grace window.
func (l *Ledger) Close() error {
	l.mu.Lock()
	l.closed = true
	pending := l.pending
	l.pending = make(map[string]pendingRelease)
	l.mu.Unlock()

	for _, p := range pending {
		if p.timer.Stop() {
			l.releaseNow(context.Background(), p.lease)
		}
	}
	return nil
}

// ListAttendance returns stored records in store order, limited to
// sessionID when it is not empty.
func (l *Ledger) ListAttendance(ctx context.Context, sessionID string) ([]domain.AttendanceRecord, error) {
	records, err := l.store.ListAttendance(ctx)
	if err != nil {
		return nil, err
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return records, nil
	}
	filtered := make([]domain.AttendanceRecord, 0, len(records))
	for _, record := range records {
		if record.SessionID == sessionID {
			filtered = append(filtered, record)
		}
	}
	return filtered, nil
}
