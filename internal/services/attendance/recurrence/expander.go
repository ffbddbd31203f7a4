// Package recurrence expands a recurring parent session into its dated
// instances and persists them in one batch.
package recurrence

import (
	"context"
	"time"

	platformotel "github.com/louisbranch/rollcall/internal/platform/otel"
	"github.com/louisbranch/rollcall/internal/services/attendance/domain"
	"github.com/louisbranch/rollcall/internal/services/attendance/repository"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// MaxRecurringWeeks caps how many instances one parent may generate.
const MaxRecurringWeeks = 104

// Store persists generated sessions.
type Store interface {
	AppendSessions(ctx context.Context, sessions ...domain.Session) error
	NewID(prefix string) (string, error)
}

// Expander generates and persists recurring instances.
type Expander struct {
	store  Store
	clock  func() time.Time
	tracer trace.Tracer
}

// NewExpander constructs an expander. A nil clock uses the wall clock.
func NewExpander(store Store, clock func() time.Time) *Expander {
	if clock == nil {
		clock = time.Now
	}
	return &Expander{store: store, clock: clock, tracer: platformotel.Tracer("attendance/recurrence")}
}

// Expand returns the instances of parent without persisting them. Instance
// i (1-based) is dated parent.Date + i*interval days; the parent's own date
// is never repeated.
func (e *Expander) Expand(parent domain.Session) ([]domain.Session, error) {
	if parent.Kind() != domain.SessionRecurringParent {
		return nil, domain.ValidationError("session", "is not a recurring parent")
	}
	if parent.RecurringWeeks <= 0 {
		return nil, nil
	}
	if parent.RecurringWeeks > MaxRecurringWeeks {
		return nil, domain.ValidationError("recurringWeeks", "must be at most 104")
	}
	start, err := domain.ParseDate(parent.Date)
	if err != nil {
		return nil, err
	}
	interval := parent.Interval()
	createdAt := e.clock().UTC()

	instances := make([]domain.Session, 0, parent.RecurringWeeks)
	for i := 1; i <= parent.RecurringWeeks; i++ {
		instanceID, err := e.store.NewID(repository.SessionIDPrefix)
		if err != nil {
			return nil, err
		}
		instances = append(instances, domain.Session{
			ID:              instanceID,
			Title:           parent.Title,
			Date:            start.AddDate(0, 0, i*interval).Format(domain.DateLayout),
			Time:            parent.Time,
			CreatedAt:       createdAt,
			ParentSessionID: parent.ID,
		})
	}
	return instances, nil
}

// Persist expands parent and writes every instance in a single append. A
// failed append returns an expansion error; the parent is left as is.
func (e *Expander) Persist(ctx context.Context, parent domain.Session) ([]domain.Session, error) {
	ctx, span := e.tracer.Start(ctx, "recurrence.Persist", trace.WithAttributes(
		attribute.String("session.id", parent.ID),
		attribute.Int("recurrence.weeks", parent.RecurringWeeks),
		attribute.Int("recurrence.interval", parent.Interval()),
	))
	defer span.End()

	instances, err := e.Expand(parent)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if len(instances) == 0 {
		return nil, nil
	}
	if err := e.store.AppendSessions(ctx, instances...); err != nil {
		err = domain.ExpansionError(parent.ID, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return instances, nil
}
