package redislock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/louisbranch/rollcall/internal/services/attendance/domain"
	"github.com/louisbranch/rollcall/internal/services/attendance/ledger"
	"github.com/redis/go-redis/v9"
)

func newTestLocks(t *testing.T, ttl time.Duration) (*Locks, *miniredis.Miniredis) {
	t.Helper()

	server := miniredis.RunT(t)
	client, err := Connect(context.Background(), server.Addr())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return New(client, ttl), server
}

func TestTryAcquireIsExclusive(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	locks, _ := newTestLocks(t, time.Minute)
	key := ledger.LockKey("s1", "a1", "2025-01-01", domain.MethodQRScan)
	now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

	lease, acquired, err := locks.TryAcquire(ctx, key, now)
	if err != nil || !acquired || !lease.Since.Equal(now) {
		t.Fatalf("first acquire = %+v %v %v", lease, acquired, err)
	}
	holder, acquired, err := locks.TryAcquire(ctx, key, now.Add(time.Second))
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if acquired {
		t.Fatal("expected held key to refuse")
	}
	if !holder.Since.Equal(now) || holder.Token != lease.Token {
		t.Fatalf("holder = %+v, want %+v", holder, lease)
	}

	if err := locks.Release(ctx, lease); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, acquired, _ := locks.TryAcquire(ctx, key, now.Add(2*time.Second)); !acquired {
		t.Fatal("expected released key to be free")
	}
}

func TestSettledEntriesExpireAfterTTL(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	locks, server := newTestLocks(t, 30*time.Second)
	now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	lease, acquired, _ := locks.TryAcquire(ctx, "k", now)
	if !acquired {
		t.Fatal("expected first acquire")
	}
	record := domain.AttendanceRecord{ID: "att_1", SessionID: "s1", AttendeeID: "a1", AttendeeName: "Ana", Timestamp: now, Method: domain.MethodManual}
	if err := locks.Settle(ctx, lease, record, now); err != nil {
		t.Fatalf("settle: %v", err)
	}
	server.FastForward(31 * time.Second)
	if _, acquired, _ := locks.TryAcquire(ctx, "k", now.Add(31*time.Second)); !acquired {
		t.Fatal("expected expired key to be free")
	}
}

func TestSettleExposesRecordToOtherCallers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	locks, _ := newTestLocks(t, time.Minute)
	now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	lease, _, _ := locks.TryAcquire(ctx, "k", now)
	record := domain.AttendanceRecord{ID: "att_1", SessionID: "s1", AttendeeID: "a1", AttendeeName: "Ana", Timestamp: now, Method: domain.MethodManual}
	if err := locks.Settle(ctx, lease, record, now); err != nil {
		t.Fatalf("settle: %v", err)
	}

	holder, acquired, err := locks.TryAcquire(ctx, "k", now.Add(time.Second))
	if err != nil || acquired {
		t.Fatalf("acquire = %v %v, want held", acquired, err)
	}
	if !holder.Settled() || holder.Record != record {
		t.Fatalf("holder record = %+v, want %+v", holder.Record, record)
	}
	peeked, ok, err := locks.Peek(ctx, "k")
	if err != nil || !ok || peeked.Record != record {
		t.Fatalf("peek = %+v %v %v", peeked, ok, err)
	}
	if _, ok, _ := locks.Peek(ctx, "missing"); ok {
		t.Fatal("expected missing key to be free")
	}
}

func TestReleaseIgnoresStaleLease(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	locks, server := newTestLocks(t, 30*time.Second)
	now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	stale, _, _ := locks.TryAcquire(ctx, "k", now)
	if err := locks.Settle(ctx, stale, domain.AttendanceRecord{SessionID: "s1"}, now); err != nil {
		t.Fatalf("settle: %v", err)
	}
	server.FastForward(31 * time.Second)
	current, acquired, _ := locks.TryAcquire(ctx, "k", now.Add(31*time.Second))
	if !acquired {
		t.Fatal("expected expired key to be reacquired")
	}

	if err := locks.Release(ctx, stale); err != nil {
		t.Fatalf("stale release: %v", err)
	}
	holder, ok, err := locks.Peek(ctx, "k")
	if err != nil || !ok || holder.Token != current.Token {
		t.Fatalf("holder after stale release = %+v %v %v, want %s", holder, ok, err, current.Token)
	}
	if err := locks.Release(ctx, current); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, ok, _ := locks.Peek(ctx, "k"); ok {
		t.Fatal("expected owner release to free the key")
	}
}

func TestUnsettledEntriesAreKeptAlive(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	locks, server := newTestLocks(t, 300*time.Millisecond)
	now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	lease, _, _ := locks.TryAcquire(ctx, "k", now)
	defer locks.Release(ctx, lease)

	// Each refresh restores the full ttl; without one the key would be gone
	// after the second fast-forward.
	server.FastForward(250 * time.Millisecond)
	time.Sleep(250 * time.Millisecond)
	server.FastForward(100 * time.Millisecond)
	if _, ok, _ := locks.Peek(ctx, "k"); !ok {
		t.Fatal("expected in-flight entry to survive past its ttl")
	}
}

func TestTryAcquireSurfacesBackendErrors(t *testing.T) {
	t.Parallel()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	locks := New(client, 0)
	server.Close()

	if _, _, err := locks.TryAcquire(context.Background(), "k", time.Now()); err == nil {
		t.Fatal("expected error from closed server")
	}
}

func TestConnectRejectsEmptyURL(t *testing.T) {
	t.Parallel()

	if _, err := Connect(context.Background(), " "); err == nil {
		t.Fatal("expected empty url error")
	}
}

func TestConnectParsesURL(t *testing.T) {
	t.Parallel()

	server := miniredis.RunT(t)
	client, err := Connect(context.Background(), "redis://"+server.Addr()+"/0")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	_ = client.Close()
}

func TestLedgerWithRedisLocksWritesOnce(t *testing.T) {
	t.Parallel()

	locks, _ := newTestLocks(t, time.Minute)
	store := &countingStore{}
	l := ledger.New(store, ledger.Options{Locks: locks, Grace: time.Hour, Logf: t.Logf})
	defer l.Close()

	for i := 0; i < 3; i++ {
		result, err := l.RecordAttendance(context.Background(), ledger.Request{SessionID: "s1", AttendeeID: "a1", Method: domain.MethodManual, AttendeeName: "Ana"})
		if err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
		if !result.Admitted {
			t.Fatalf("attempt %d not admitted", i)
		}
	}
	if store.appends != 1 {
		t.Fatalf("appends = %d, want 1", store.appends)
	}
}

// countingStore never reports existing records, so only the lock can stop
// repeated writes.
type countingStore struct {
	appends int
}

func (s *countingStore) ListAttendance(context.Context) ([]domain.AttendanceRecord, error) {
	return nil, nil
}

func (s *countingStore) AppendAttendance(context.Context, domain.AttendanceRecord) error {
	s.appends++
	return nil
}

func (s *countingStore) NewID(prefix string) (string, error) {
	return prefix + "_1", nil
}
