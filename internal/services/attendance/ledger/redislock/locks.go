// Package redislock provides a Redis-backed ledger lock table so several
// replicas serialize admission attempts for the same key.
package redislock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/louisbranch/rollcall/internal/services/attendance/domain"
	"github.com/louisbranch/rollcall/internal/services/attendance/ledger"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "rollcall:lock:"

// Connect initializes a Redis client from URL or host:port input and
// verifies it answers.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	redisURL = strings.TrimSpace(redisURL)
	if redisURL == "" {
		return nil, fmt.Errorf("redis url is required")
	}
	var client *redis.Client
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: redisURL})
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Locks implements ledger.LockTable with SET NX PX. A holder keeps its
// entry alive until it settles; settled entries expire after ttl so a
// crashed replica never blocks a key forever.
type Locks struct {
	client redis.Cmdable
	ttl    time.Duration

	mu    sync.Mutex
	alive map[string]context.CancelFunc
}

// New builds a lock table over client. A non-positive ttl uses
// ledger.DefaultLockTTL.
func New(client redis.Cmdable, ttl time.Duration) *Locks {
	if ttl <= 0 {
		ttl = ledger.DefaultLockTTL
	}
	return &Locks{client: client, ttl: ttl, alive: make(map[string]context.CancelFunc)}
}

// Values are "<token>\n<json>" so scripts can check ownership without
// decoding JSON.
var (
	refreshScript = redis.NewScript(`
local raw = redis.call("GET", KEYS[1])
if raw and string.sub(raw, 1, string.len(ARGV[1])) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
	settleScript = redis.NewScript(`
local raw = redis.call("GET", KEYS[1])
if raw and string.sub(raw, 1, string.len(ARGV[1])) == ARGV[1] then
	redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
	return 1
end
return 0`)
	releaseScript = redis.NewScript(`
local raw = redis.call("GET", KEYS[1])
if raw and string.sub(raw, 1, string.len(ARGV[1])) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
)

type lockValue struct {
	Since        int64  `json:"since"`
	ID           string `json:"id,omitempty"`
	SessionID    string `json:"sessionId,omitempty"`
	AttendeeID   string `json:"attendeeId,omitempty"`
	AttendeeName string `json:"attendeeName,omitempty"`
	Timestamp    int64  `json:"timestamp,omitempty"`
	Method       string `json:"method,omitempty"`
}

func encodeValue(lease ledger.Lease) (string, error) {
	value := lockValue{Since: lease.Since.UnixMilli()}
	if lease.Settled() {
		record := lease.Record
		value.ID = record.ID
		value.SessionID = record.SessionID
		value.AttendeeID = record.AttendeeID
		value.AttendeeName = record.AttendeeName
		value.Timestamp = record.Timestamp.UnixMilli()
		value.Method = string(record.Method)
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("encode lock value: %w", err)
	}
	return ownerPrefix(lease.Token) + string(payload), nil
}

func decodeValue(key, raw string) ledger.Lease {
	token, payload, _ := strings.Cut(raw, "\n")
	lease := ledger.Lease{Key: key, Token: token}
	var value lockValue
	if err := json.Unmarshal([]byte(payload), &value); err != nil {
		return lease
	}
	lease.Since = time.UnixMilli(value.Since).UTC()
	if value.SessionID != "" {
		lease.Record = domain.AttendanceRecord{
			ID:           value.ID,
			SessionID:    value.SessionID,
			AttendeeID:   value.AttendeeID,
			AttendeeName: value.AttendeeName,
			Timestamp:    time.UnixMilli(value.Timestamp).UTC(),
			Method:       domain.Method(value.Method),
		}
	}
	return lease
}

func ownerPrefix(token string) string {
	return token + "\n"
}

// TryAcquire implements ledger.LockTable.
func (l *Locks) TryAcquire(ctx context.Context, key string, now time.Time) (ledger.Lease, bool, error) {
	token, err := ledger.NewLeaseToken()
	if err != nil {
		return ledger.Lease{}, false, err
	}
	lease := ledger.Lease{Key: key, Token: token, Since: now}
	value, err := encodeValue(lease)
	if err != nil {
		return ledger.Lease{}, false, err
	}
	redisKey := keyPrefix + key
	for attempt := 0; attempt < 2; attempt++ {
		acquired, err := l.client.SetNX(ctx, redisKey, value, l.ttl).Result()
		if err != nil {
			return ledger.Lease{}, false, fmt.Errorf("acquire lock: %w", err)
		}
		if acquired {
			l.keepAlive(lease)
			return lease, true, nil
		}
		holder, held, err := l.Peek(ctx, key)
		if err != nil {
			return ledger.Lease{}, false, err
		}
		if held {
			return holder, false, nil
		}
		// Released between SETNX and GET; try again.
	}
	return ledger.Lease{Key: key, Since: now}, false, nil
}

// Peek implements ledger.LockTable.
func (l *Locks) Peek(ctx context.Context, key string) (ledger.Lease, bool, error) {
	raw, err := l.client.Get(ctx, keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return ledger.Lease{}, false, nil
	}
	if err != nil {
		return ledger.Lease{}, false, fmt.Errorf("read lock holder: %w", err)
	}
	return decodeValue(key, raw), true, nil
}

// Settle implements ledger.LockTable. The entry's ttl restarts at settle.
func (l *Locks) Settle(ctx context.Context, lease ledger.Lease, record domain.AttendanceRecord, _ time.Time) error {
	l.stopKeepAlive(lease.Token)
	lease.Record = record
	value, err := encodeValue(lease)
	if err != nil {
		return err
	}
	if err := settleScript.Run(ctx, l.client, []string{keyPrefix + lease.Key}, ownerPrefix(lease.Token), value, l.ttl.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("settle lock: %w", err)
	}
	return nil
}

// Release implements ledger.LockTable. Only the owning lease deletes the
// entry.
func (l *Locks) Release(ctx context.Context, lease ledger.Lease) error {
	l.stopKeepAlive(lease.Token)
	if err := releaseScript.Run(ctx, l.client, []string{keyPrefix + lease.Key}, ownerPrefix(lease.Token)).Err(); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

// keepAlive extends an unsettled entry every third of the ttl until the
// holder settles or releases it, or loses ownership.
func (l *Locks) keepAlive(lease ledger.Lease) {
	ctx, cancel := context.WithCancel(context.Background())
	l.mu.Lock()
	l.alive[lease.Token] = cancel
	l.mu.Unlock()

	interval := l.ttl / 3
	if interval <= 0 {
		interval = l.ttl
	}
	go func() {
		defer l.stopKeepAlive(lease.Token)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				extended, err := refreshScript.Run(ctx, l.client, []string{keyPrefix + lease.Key}, ownerPrefix(lease.Token), l.ttl.Milliseconds()).Int()
				if err == nil && extended == 0 {
					return
				}
			}
		}
	}()
}

func (l *Locks) stopKeepAlive(token string) {
	l.mu.Lock()
	cancel, ok := l.alive[token]
	delete(l.alive, token)
	l.mu.Unlock()
	if ok {
		cancel()
	}
}

var _ ledger.LockTable = (*Locks)(nil)
