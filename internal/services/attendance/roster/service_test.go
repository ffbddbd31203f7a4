package roster

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/louisbranch/rollcall/internal/services/attendance/domain"
	"github.com/louisbranch/rollcall/internal/services/attendance/repository"
	"github.com/louisbranch/rollcall/internal/services/attendance/storage/memory"
)

var now = time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)

func newRepo(t *testing.T) *repository.Repository {
	t.Helper()

	next := 0
	repo := repository.New(memory.New(), func() time.Time { return now }, func() (string, error) {
		next++
		return fmt.Sprintf("%d", next), nil
	})
	if err := repo.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return repo
}

func fixedCodes(codes ...string) func() (string, error) {
	next := 0
	return func() (string, error) {
		if next >= len(codes) {
			return "", errors.New("codes exhausted")
		}
		code := codes[next]
		next++
		return code, nil
	}
}

func TestGenerateQRCodeShape(t *testing.T) {
	t.Parallel()

	pattern := regexp.MustCompile(`^QR[A-Z0-9]{8}$`)
	for i := 0; i < 50; i++ {
		code, err := GenerateQRCode()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if !pattern.MatchString(code) {
			t.Fatalf("code = %q, want QR + 8 [A-Z0-9]", code)
		}
	}
}

func TestCreateAttendee(t *testing.T) {
	t.Parallel()

	svc := NewService(newRepo(t), fixedCodes("QRAAAA0001"))
	got, err := svc.CreateAttendee(context.Background(), CreateInput{Name: " Ana ", Email: "ana@example.com"})
	if err != nil {
		t.Fatalf("create attendee: %v", err)
	}
	want := domain.Attendee{ID: "attendee_1", Name: "Ana", Email: "ana@example.com", QRCode: "QRAAAA0001", CreatedAt: now}
	if got != want {
		t.Fatalf("attendee = %+v, want %+v", got, want)
	}
	listed, err := svc.ListAttendees(context.Background())
	if err != nil {
		t.Fatalf("list attendees: %v", err)
	}
	if len(listed) != 1 || listed[0] != want {
		t.Fatalf("listed = %+v", listed)
	}
}

func TestCreateAttendeeRegeneratesCollidingCode(t *testing.T) {
	t.Parallel()

	repo := newRepo(t)
	if _, err := NewService(repo, fixedCodes("QRAAAA0001")).CreateAttendee(context.Background(), CreateInput{Name: "Ana", Email: "ana@example.com"}); err != nil {
		t.Fatalf("seed attendee: %v", err)
	}
	svc := NewService(repo, fixedCodes("qraaaa0001", "QRBBBB0002"))
	got, err := svc.CreateAttendee(context.Background(), CreateInput{Name: "Bo", Email: "bo@example.com"})
	if err != nil {
		t.Fatalf("create attendee: %v", err)
	}
	if got.QRCode != "QRBBBB0002" {
		t.Fatalf("qr code = %q, want regenerated QRBBBB0002", got.QRCode)
	}
}

func TestCreateAttendeeGivesUpAfterRepeatedCollisions(t *testing.T) {
	t.Parallel()

	repo := newRepo(t)
	if _, err := NewService(repo, fixedCodes("QRAAAA0001")).CreateAttendee(context.Background(), CreateInput{Name: "Ana", Email: "ana@example.com"}); err != nil {
		t.Fatalf("seed attendee: %v", err)
	}
	same := func() (string, error) { return "QRAAAA0001", nil }
	_, err := NewService(repo, same).CreateAttendee(context.Background(), CreateInput{Name: "Bo", Email: "bo@example.com"})
	if !errors.Is(err, ErrQRCodeExhausted) {
		t.Fatalf("error = %v, want ErrQRCodeExhausted", err)
	}
}

func TestCreateAttendeeValidation(t *testing.T) {
	t.Parallel()

	svc := NewService(newRepo(t), nil)
	tests := []CreateInput{
		{Email: "ana@example.com"},
		{Name: "Ana"},
		{Name: "Ana", Email: "not-an-email"},
	}
	for _, in := range tests {
		if _, err := svc.CreateAttendee(context.Background(), in); !domain.IsValidation(err) {
			t.Fatalf("input %+v error = %v, want validation", in, err)
		}
	}
}

func TestUpdateAttendeeRewritesNameAndEmailOnly(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := NewService(newRepo(t), fixedCodes("QRAAAA0001", "QRBBBB0002"))
	first, _ := svc.CreateAttendee(ctx, CreateInput{Name: "Ana", Email: "ana@example.com"})
	second, _ := svc.CreateAttendee(ctx, CreateInput{Name: "Bo", Email: "bo@example.com"})

	name := "Bo Lima"
	updated, err := svc.UpdateAttendee(ctx, second.ID, UpdateInput{Name: &name})
	if err != nil {
		t.Fatalf("update attendee: %v", err)
	}
	if updated.Name != "Bo Lima" || updated.Email != "bo@example.com" {
		t.Fatalf("updated = %+v", updated)
	}
	if updated.ID != second.ID || updated.QRCode != second.QRCode || !updated.CreatedAt.Equal(second.CreatedAt) {
		t.Fatalf("immutable fields changed: %+v vs %+v", updated, second)
	}

	listed, _ := svc.ListAttendees(ctx)
	if len(listed) != 2 || listed[0] != first || listed[1] != updated {
		t.Fatalf("listed = %+v", listed)
	}
}

func TestUpdateAttendeeErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := NewService(newRepo(t), fixedCodes("QRAAAA0001"))
	created, _ := svc.CreateAttendee(ctx, CreateInput{Name: "Ana", Email: "ana@example.com"})

	if _, err := svc.UpdateAttendee(ctx, "attendee_missing", UpdateInput{}); !domain.IsNotFound(err) {
		t.Fatalf("missing error = %v, want not found", err)
	}
	bad := "nope"
	if _, err := svc.UpdateAttendee(ctx, created.ID, UpdateInput{Email: &bad}); !domain.IsValidation(err) {
		t.Fatalf("bad email error = %v, want validation", err)
	}
	blank := " "
	if _, err := svc.UpdateAttendee(ctx, created.ID, UpdateInput{Name: &blank}); !domain.IsValidation(err) {
		t.Fatalf("blank name error = %v, want validation", err)
	}
}
