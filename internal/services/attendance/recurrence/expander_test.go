package recurrence

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/louisbranch/rollcall/internal/services/attendance/domain"
)

type fakeStore struct {
	batches   [][]domain.Session
	appendErr error
	next      int
}

func (f *fakeStore) AppendSessions(_ context.Context, sessions ...domain.Session) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.batches = append(f.batches, sessions)
	return nil
}

func (f *fakeStore) NewID(prefix string) (string, error) {
	f.next++
	return fmt.Sprintf("%s_%d", prefix, f.next), nil
}

var createdAt = time.Date(2024, 12, 20, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return createdAt }

func weeklyParent() domain.Session {
	return domain.Session{
		ID:                "session_parent",
		Title:             "Morning Yoga",
		Date:              "2025-01-01",
		Time:              "07:00",
		IsRecurring:       true,
		RecurringWeeks:    4,
		RecurringInterval: 7,
	}
}

func TestExpandWeeklyDates(t *testing.T) {
	t.Parallel()

	instances, err := NewExpander(&fakeStore{}, fixedClock).Expand(weeklyParent())
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	want := []string{"2025-01-08", "2025-01-15", "2025-01-22", "2025-01-29"}
	if len(instances) != len(want) {
		t.Fatalf("instances = %d, want %d", len(instances), len(want))
	}
	for i, instance := range instances {
		if instance.Date != want[i] {
			t.Fatalf("instance %d date = %s, want %s", i, instance.Date, want[i])
		}
		if instance.Date == "2025-01-01" {
			t.Fatal("parent date must not be repeated")
		}
		if instance.ParentSessionID != "session_parent" {
			t.Fatalf("parent id = %q", instance.ParentSessionID)
		}
		if instance.IsRecurring || instance.RecurringWeeks != 0 || instance.RecurringInterval != 0 {
			t.Fatalf("instance carries recurrence fields: %+v", instance)
		}
		if instance.Title != "Morning Yoga" || instance.Time != "07:00" {
			t.Fatalf("instance title/time = %q/%q", instance.Title, instance.Time)
		}
		if !instance.CreatedAt.Equal(createdAt) {
			t.Fatalf("created at = %v, want %v", instance.CreatedAt, createdAt)
		}
	}
}

func TestExpandIsDeterministicExceptIDs(t *testing.T) {
	t.Parallel()

	expander := NewExpander(&fakeStore{}, fixedClock)
	first, _ := expander.Expand(weeklyParent())
	second, _ := expander.Expand(weeklyParent())
	seen := map[string]bool{}
	for i := range first {
		if first[i].Date != second[i].Date {
			t.Fatalf("date %d differs: %s vs %s", i, first[i].Date, second[i].Date)
		}
		for _, id := range []string{first[i].ID, second[i].ID} {
			if seen[id] {
				t.Fatalf("duplicate instance id %s", id)
			}
			seen[id] = true
		}
	}
}

func TestExpandIntervalDefaultsAndCrossesMonths(t *testing.T) {
	t.Parallel()

	parent := weeklyParent()
	parent.Date = "2024-02-20"
	parent.RecurringWeeks = 2
	parent.RecurringInterval = 0
	instances, err := NewExpander(&fakeStore{}, fixedClock).Expand(parent)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if instances[0].Date != "2024-02-27" || instances[1].Date != "2024-03-05" {
		t.Fatalf("dates = %s, %s", instances[0].Date, instances[1].Date)
	}

	parent.RecurringInterval = 14
	parent.RecurringWeeks = 1
	instances, _ = NewExpander(&fakeStore{}, fixedClock).Expand(parent)
	if instances[0].Date != "2024-03-05" {
		t.Fatalf("biweekly date = %s, want 2024-03-05", instances[0].Date)
	}
}

func TestExpandRejects(t *testing.T) {
	t.Parallel()

	expander := NewExpander(&fakeStore{}, fixedClock)

	standalone := weeklyParent()
	standalone.IsRecurring = false
	if _, err := expander.Expand(standalone); !domain.IsValidation(err) {
		t.Fatalf("standalone error = %v, want validation", err)
	}

	instance := weeklyParent()
	instance.ParentSessionID = "session_other"
	if _, err := expander.Expand(instance); !domain.IsValidation(err) {
		t.Fatalf("instance error = %v, want validation", err)
	}

	badDate := weeklyParent()
	badDate.Date = "01/02/2025"
	if _, err := expander.Expand(badDate); !domain.IsValidation(err) {
		t.Fatalf("bad date error = %v, want validation", err)
	}

	tooMany := weeklyParent()
	tooMany.RecurringWeeks = MaxRecurringWeeks + 1
	if _, err := expander.Expand(tooMany); !domain.IsValidation(err) {
		t.Fatalf("too many weeks error = %v, want validation", err)
	}

	zero := weeklyParent()
	zero.RecurringWeeks = 0
	instances, err := expander.Expand(zero)
	if err != nil || len(instances) != 0 {
		t.Fatalf("zero weeks = %v, %v; want none", instances, err)
	}
}

func TestPersistWritesOneBatch(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	instances, err := NewExpander(store, fixedClock).Persist(context.Background(), weeklyParent())
	if err != nil {
		t.Fatalf("persist: %v", err)
	}
	if len(store.batches) != 1 {
		t.Fatalf("batches = %d, want 1", len(store.batches))
	}
	if len(store.batches[0]) != 4 || len(instances) != 4 {
		t.Fatalf("batch size = %d, returned = %d", len(store.batches[0]), len(instances))
	}
}

func TestPersistFailureIsExpansionError(t *testing.T) {
	t.Parallel()

	cause := domain.StoreWriteError("append Sessions", errors.New("quota"))
	store := &fakeStore{appendErr: cause}
	_, err := NewExpander(store, fixedClock).Persist(context.Background(), weeklyParent())
	if !domain.IsExpansion(err) {
		t.Fatalf("error = %v, want expansion error", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("error = %v, want cause in chain", err)
	}
}
