package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/rollcall/internal/services/attendance/domain"
)

// DefaultGrace is how long a lock outlives a successful write or a
// duplicate match, absorbing store read-after-write lag.
const DefaultGrace = 3 * time.Second

// ReadFailurePolicy decides what happens when the duplicate-check read fails.
type ReadFailurePolicy string

const (
	// ReadFailureFail rejects the attempt with a store read error.
	ReadFailureFail ReadFailurePolicy = "fail"
	// ReadFailureProceed treats the read as empty and writes anyway.
	ReadFailureProceed ReadFailurePolicy = "proceed"
)

// ParseReadFailurePolicy validates a configured policy. Empty means fail.
func ParseReadFailurePolicy(raw string) (ReadFailurePolicy, error) {
	switch policy := ReadFailurePolicy(strings.ToLower(strings.TrimSpace(raw))); policy {
	case "":
		return ReadFailureFail, nil
	case ReadFailureFail, ReadFailureProceed:
		return policy, nil
	default:
		return "", fmt.Errorf("unknown read failure policy %q", raw)
	}
}

// Timer is a pending delayed release.
type Timer interface {
	Stop() bool
}

// Options tunes ledger behavior. Zero values select defaults.
type Options struct {
	// Grace delays lock release after a write or duplicate match. Negative
	// releases immediately.
	Grace time.Duration
	// Days decides which calendar day a check-in belongs to.
	Days domain.DayPolicy
	// ReadFailure decides how a failed duplicate-check read is handled.
	ReadFailure ReadFailurePolicy
	// Locks serializes attempts; defaults to MemoryLocks with DefaultLockTTL.
	Locks LockTable
	// Resolver supplies attendee names when the caller omits one.
	Resolver NameResolver
	// Notifier observes every admission.
	Notifier Notifier
	Clock     func() time.Time
	AfterFunc func(time.Duration, func()) Timer
	Logf      func(format string, args ...any)
}
