package sessions

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/louisbranch/rollcall/internal/services/attendance/domain"
	"github.com/louisbranch/rollcall/internal/services/attendance/recurrence"
	"github.com/louisbranch/rollcall/internal/services/attendance/repository"
	"github.com/louisbranch/rollcall/internal/services/attendance/storage/memory"
)

var now = time.Date(2024, 12, 20, 12, 0, 0, 0, time.UTC)

func sequentialIDs() func() (string, error) {
	next := 0
	return func() (string, error) {
		next++
		return fmt.Sprintf("%d", next), nil
	}
}

// flakyStore fails the Nth AppendSessions call (1-based).
type flakyStore struct {
	*repository.Repository
	failOn  int
	appends int
}

func (f *flakyStore) AppendSessions(ctx context.Context, sessions ...domain.Session) error {
	f.appends++
	if f.appends == f.failOn {
		return domain.StoreWriteError("append Sessions", errors.New("quota exceeded"))
	}
	return f.Repository.AppendSessions(ctx, sessions...)
}

func newService(t *testing.T, failOn int, cascade bool) (*Service, *flakyStore) {
	t.Helper()

	repo := repository.New(memory.New(), func() time.Time { return now }, sequentialIDs())
	if err := repo.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	store := &flakyStore{Repository: repo, failOn: failOn}
	svc := NewService(store, recurrence.NewExpander(store, func() time.Time { return now }), Options{
		CascadeDelete: cascade,
		Logf:          t.Logf,
	})
	return svc, store
}

func weekly() CreateInput {
	return CreateInput{Title: "Yoga", Date: "2025-01-01", Time: "07:00", IsRecurring: true, RecurringWeeks: 4, RecurringInterval: 7}
}

func TestCreateStandaloneSession(t *testing.T) {
	t.Parallel()

	svc, _ := newService(t, 0, false)
	result, err := svc.CreateSession(context.Background(), CreateInput{Title: " Pilates ", Date: "2025-02-03", Time: "18:30", RecurringWeeks: 5})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	want := domain.Session{ID: "session_1", Title: "Pilates", Date: "2025-02-03", Time: "18:30", CreatedAt: now}
	if result.Session != want {
		t.Fatalf("session = %+v, want %+v", result.Session, want)
	}
	if len(result.Instances) != 0 || result.ExpansionErr != nil {
		t.Fatalf("unexpected expansion: %+v", result)
	}
}

func TestCreateRecurringSessionExpands(t *testing.T) {
	t.Parallel()

	svc, store := newService(t, 0, false)
	result, err := svc.CreateSession(context.Background(), weekly())
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if len(result.Instances) != 4 {
		t.Fatalf("instances = %d, want 4", len(result.Instances))
	}
	if store.appends != 2 {
		t.Fatalf("append calls = %d, want 2 (parent, batch)", store.appends)
	}
	listed, err := svc.Instances(context.Background(), result.Session.ID)
	if err != nil {
		t.Fatalf("instances: %v", err)
	}
	wantDates := []string{"2025-01-08", "2025-01-15", "2025-01-22", "2025-01-29"}
	for i, instance := range listed {
		if instance.Date != wantDates[i] {
			t.Fatalf("instance %d date = %s, want %s", i, instance.Date, wantDates[i])
		}
	}
}

func TestCreateRecurringDefaultsInterval(t *testing.T) {
	t.Parallel()

	svc, _ := newService(t, 0, false)
	in := weekly()
	in.RecurringInterval = 0
	result, err := svc.CreateSession(context.Background(), in)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if result.Session.RecurringInterval != 7 {
		t.Fatalf("interval = %d, want 7", result.Session.RecurringInterval)
	}
}

func TestExpansionFailureKeepsParent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _ := newService(t, 2, false)
	result, err := svc.CreateSession(ctx, weekly())
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if !domain.IsExpansion(result.ExpansionErr) {
		t.Fatalf("expansion err = %v, want expansion error", result.ExpansionErr)
	}
	if _, err := svc.GetSession(ctx, result.Session.ID); err != nil {
		t.Fatalf("parent must persist: %v", err)
	}

	orphans, err := svc.OrphanedParents(ctx)
	if err != nil {
		t.Fatalf("orphaned parents: %v", err)
	}
	if len(orphans) != 1 || orphans[0].ID != result.Session.ID {
		t.Fatalf("orphans = %+v", orphans)
	}

	instances, err := svc.ResumeExpansion(ctx, result.Session.ID)
	if err != nil {
		t.Fatalf("resume expansion: %v", err)
	}
	if len(instances) != 4 {
		t.Fatalf("instances = %d, want 4", len(instances))
	}
	if orphans, _ := svc.OrphanedParents(ctx); len(orphans) != 0 {
		t.Fatalf("orphans after resume = %d, want 0", len(orphans))
	}
	if _, err := svc.ResumeExpansion(ctx, result.Session.ID); !domain.IsValidation(err) {
		t.Fatalf("second resume error = %v, want validation", err)
	}
}

func TestParentWriteFailureIsFatal(t *testing.T) {
	t.Parallel()

	svc, _ := newService(t, 1, false)
	if _, err := svc.CreateSession(context.Background(), weekly()); !domain.IsStoreWrite(err) {
		t.Fatalf("error = %v, want store write", err)
	}
}

func TestCreateValidation(t *testing.T) {
	t.Parallel()

	svc, store := newService(t, 0, false)
	tests := []CreateInput{
		{Date: "2025-01-01", Time: "07:00"},
		{Title: "Yoga", Time: "07:00"},
		{Title: "Yoga", Date: "Jan 1", Time: "07:00"},
		{Title: "Yoga", Date: "2025-01-01"},
		{Title: "Yoga", Date: "2025-01-01", Time: "07:00", IsRecurring: true},
		{Title: "Yoga", Date: "2025-01-01", Time: "07:00", IsRecurring: true, RecurringWeeks: 105},
	}
	for _, in := range tests {
		if _, err := svc.CreateSession(context.Background(), in); !domain.IsValidation(err) {
			t.Fatalf("input %+v error = %v, want validation", in, err)
		}
	}
	if store.appends != 0 {
		t.Fatalf("append calls = %d, want 0", store.appends)
	}
}

func TestDeleteParentDoesNotCascadeByDefault(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _ := newService(t, 0, false)
	result, err := svc.CreateSession(ctx, weekly())
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	deleted, err := svc.DeleteSession(ctx, result.Session.ID)
	if err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if len(deleted.Cleared) != 1 {
		t.Fatalf("cleared = %v, want parent only", deleted.Cleared)
	}
	sessions, _ := svc.ListSessions(ctx)
	if len(sessions) != 4 {
		t.Fatalf("sessions = %d, want 4 surviving instances", len(sessions))
	}
	if _, err := svc.GetSession(ctx, result.Session.ID); !domain.IsNotFound(err) {
		t.Fatalf("get deleted error = %v, want not found", err)
	}
}

func TestDeleteParentCascades(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _ := newService(t, 0, true)
	result, err := svc.CreateSession(ctx, weekly())
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	standalone, err := svc.CreateSession(ctx, CreateInput{Title: "Open Gym", Date: "2025-01-02", Time: "09:00"})
	if err != nil {
		t.Fatalf("create standalone: %v", err)
	}
	deleted, err := svc.DeleteSession(ctx, result.Session.ID)
	if err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if len(deleted.Cleared) != 5 {
		t.Fatalf("cleared = %v, want parent and 4 instances", deleted.Cleared)
	}
	sessions, _ := svc.ListSessions(ctx)
	if len(sessions) != 1 || sessions[0].ID != standalone.Session.ID {
		t.Fatalf("sessions = %+v, want only the standalone session", sessions)
	}
}

func TestDeleteInstanceLeavesParent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _ := newService(t, 0, true)
	result, err := svc.CreateSession(ctx, weekly())
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if _, err := svc.DeleteSession(ctx, result.Instances[0].ID); err != nil {
		t.Fatalf("delete instance: %v", err)
	}
	instances, err := svc.Instances(ctx, result.Session.ID)
	if err != nil {
		t.Fatalf("instances: %v", err)
	}
	if len(instances) != 3 {
		t.Fatalf("instances = %d, want 3", len(instances))
	}
}

func TestDeleteUnknownSession(t *testing.T) {
	t.Parallel()

	svc, _ := newService(t, 0, false)
	if _, err := svc.DeleteSession(context.Background(), "session_missing"); !domain.IsNotFound(err) {
		t.Fatalf("error = %v, want not found", err)
	}
	if _, err := svc.DeleteSession(context.Background(), ""); !domain.IsValidation(err) {
		t.Fatalf("error = %v, want validation", err)
	}
}

func TestResumeRejectsStandalone(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _ := newService(t, 0, false)
	result, err := svc.CreateSession(ctx, CreateInput{Title: "Open Gym", Date: "2025-01-02", Time: "09:00"})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if _, err := svc.ResumeExpansion(ctx, result.Session.ID); !domain.IsValidation(err) {
		t.Fatalf("error = %v, want validation", err)
	}
}
