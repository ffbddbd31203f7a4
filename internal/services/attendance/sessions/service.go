// Package sessions manages the schedule: creating standalone and recurring
// sessions, deleting them, and repairing recurring parents whose instances
// were never written.
package sessions

import (
	"context"
	"log"
	"strings"
	"time"

	platformotel "github.com/louisbranch/rollcall/internal/platform/otel"
	"github.com/louisbranch/rollcall/internal/services/attendance/domain"
	"github.com/louisbranch/rollcall/internal/services/attendance/recurrence"
	"github.com/louisbranch/rollcall/internal/services/attendance/repository"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Store is the session persistence the service needs.
type Store interface {
	ListSessionRows(ctx context.Context) ([]repository.Stored[domain.Session], error)
	AppendSessions(ctx context.Context, sessions ...domain.Session) error
	ClearSession(ctx context.Context, index int) error
	NewID(prefix string) (string, error)
	Now() time.Time
}

// Expander persists the instances of a recurring parent.
type Expander interface {
	Persist(ctx context.Context, parent domain.Session) ([]domain.Session, error)
}

// Options tunes the service.
type Options struct {
	// CascadeDelete clears a recurring parent's instances with it.
	CascadeDelete bool
	Logf          func(format string, args ...any)
}

// Service is the session use-case layer.
type Service struct {
	store    Store
	expander Expander
	cascade  bool
	logf     func(format string, args ...any)
	tracer   trace.Tracer
}

// NewService constructs a session service.
func NewService(store Store, expander Expander, opts Options) *Service {
	logf := opts.Logf
	if logf == nil {
		logf = log.Printf
	}
	return &Service{
		store:    store,
		expander: expander,
		cascade:  opts.CascadeDelete,
		logf:     logf,
		tracer:   platformotel.Tracer("attendance/sessions"),
	}
}

// CreateInput describes a new session.
type CreateInput struct {
	Title             string
	Date              string
	Time              string
	IsRecurring       bool
	RecurringWeeks    int
	RecurringInterval int
}

// CreateResult is a created session and, for recurring parents, its
// instances. ExpansionErr is set when the parent was written but its
// instances were not; the parent is not rolled back.
type CreateResult struct {
	Session      domain.Session
	Instances    []domain.Session
	ExpansionErr error
}

// CreateSession validates input, writes the session, and expands it when
// recurring.
func (s *Service) CreateSession(ctx context.Context, in CreateInput) (CreateResult, error) {
	session, err := s.buildSession(in)
	if err != nil {
		return CreateResult{}, err
	}

	ctx, span := s.tracer.Start(ctx, "sessions.CreateSession", trace.WithAttributes(
		attribute.String("session.id", session.ID),
		attribute.Bool("session.recurring", session.IsRecurring),
	))
	defer span.End()

	if err := s.store.AppendSessions(ctx, session); err != nil {
		span.RecordError(err)
		return CreateResult{}, err
	}
	result := CreateResult{Session: session}
	if session.Kind() != domain.SessionRecurringParent {
		return result, nil
	}

	instances, err := s.expander.Persist(ctx, session)
	if err != nil {
		s.logf("recurring expansion failed session_id=%s err=%v", session.ID, err)
		span.RecordError(err)
		result.ExpansionErr = err
		return result, nil
	}
	result.Instances = instances
	span.SetAttributes(attribute.Int("session.instances", len(instances)))
	return result, nil
}

func (s *Service) buildSession(in CreateInput) (domain.Session, error) {
	title := strings.TrimSpace(in.Title)
	date := strings.TrimSpace(in.Date)
	clock := strings.TrimSpace(in.Time)
	if title == "" {
		return domain.Session{}, domain.ValidationError("title", "is required")
	}
	if date == "" {
		return domain.Session{}, domain.ValidationError("date", "is required")
	}
	if _, err := time.Parse(domain.DateLayout, date); err != nil {
		return domain.Session{}, domain.ValidationError("date", "must be a calendar date (YYYY-MM-DD)")
	}
	if clock == "" {
		return domain.Session{}, domain.ValidationError("time", "is required")
	}

	session := domain.Session{
		Title:     title,
		Date:      date,
		Time:      clock,
		CreatedAt: s.store.Now(),
	}
	if in.IsRecurring {
		if in.RecurringWeeks <= 0 {
			return domain.Session{}, domain.ValidationError("recurringWeeks", "must be greater than zero")
		}
		if in.RecurringWeeks > recurrence.MaxRecurringWeeks {
			return domain.Session{}, domain.ValidationError("recurringWeeks", "must be at most 104")
		}
		session.IsRecurring = true
		session.RecurringWeeks = in.RecurringWeeks
		session.RecurringInterval = in.RecurringInterval
		if session.RecurringInterval <= 0 {
			session.RecurringInterval = domain.DefaultRecurringInterval
		}
	}

	sessionID, err := s.store.NewID(repository.SessionIDPrefix)
	if err != nil {
		return domain.Session{}, err
	}
	session.ID = sessionID
	return session, nil
}

// ListSessions returns every session in store order.
func (s *Service) ListSessions(ctx context.Context) ([]domain.Session, error) {
	stored, err := s.store.ListSessionRows(ctx)
	if err != nil {
		return nil, err
	}
	sessions := make([]domain.Session, 0, len(stored))
	for _, entry := range stored {
		sessions = append(sessions, entry.Value)
	}
	return sessions, nil
}

// GetSession returns one session by id.
func (s *Service) GetSession(ctx context.Context, sessionID string) (domain.Session, error) {
	stored, err := s.find(ctx, sessionID)
	if err != nil {
		return domain.Session{}, err
	}
	return stored.Value, nil
}

func (s *Service) find(ctx context.Context, sessionID string) (repository.Stored[domain.Session], error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return repository.Stored[domain.Session]{}, domain.ValidationError("sessionId", "is required")
	}
	stored, err := s.store.ListSessionRows(ctx)
	if err != nil {
		return repository.Stored[domain.Session]{}, err
	}
	for _, entry := range stored {
		if entry.Value.ID == sessionID {
			return entry, nil
		}
	}
	return repository.Stored[domain.Session]{}, domain.NotFound("session", sessionID)
}

// DeleteResult lists the session ids whose rows were cleared.
type DeleteResult struct {
	Cleared []string
}

// DeleteSession clears the session row. Instances of a recurring parent are
// cleared too only when cascading is enabled; deleting an instance never
// touches its parent.
func (s *Service) DeleteSession(ctx context.Context, sessionID string) (DeleteResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return DeleteResult{}, domain.ValidationError("sessionId", "is required")
	}
	stored, err := s.store.ListSessionRows(ctx)
	if err != nil {
		return DeleteResult{}, err
	}

	var target *repository.Stored[domain.Session]
	for i := range stored {
		if stored[i].Value.ID == sessionID {
			target = &stored[i]
			break
		}
	}
	if target == nil {
		return DeleteResult{}, domain.NotFound("session", sessionID)
	}
	if err := s.store.ClearSession(ctx, target.Index); err != nil {
		return DeleteResult{}, err
	}
	result := DeleteResult{Cleared: []string{sessionID}}

	if !s.cascade || target.Value.Kind() != domain.SessionRecurringParent {
		return result, nil
	}
	for _, entry := range stored {
		if entry.Value.ParentSessionID != sessionID {
			continue
		}
		if err := s.store.ClearSession(ctx, entry.Index); err != nil {
			s.logf("cascade delete stopped session_id=%s instance_id=%s err=%v", sessionID, entry.Value.ID, err)
			return result, err
		}
		result.Cleared = append(result.Cleared, entry.Value.ID)
	}
	return result, nil
}

// Instances returns the generated instances of parentID in store order.
func (s *Service) Instances(ctx context.Context, parentID string) ([]domain.Session, error) {
	parent, err := s.find(ctx, parentID)
	if err != nil {
		return nil, err
	}
	sessions, err := s.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	return instancesOf(sessions, parent.Value.ID), nil
}

func instancesOf(sessions []domain.Session, parentID string) []domain.Session {
	var instances []domain.Session
	for _, session := range sessions {
		if session.ParentSessionID == parentID {
			instances = append(instances, session)
		}
	}
	return instances
}

// OrphanedParents returns recurring parents with no instances, the state a
// failed expansion leaves behind.
func (s *Service) OrphanedParents(ctx context.Context) ([]domain.Session, error) {
	sessions, err := s.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	hasInstances := make(map[string]bool)
	for _, session := range sessions {
		if session.ParentSessionID != "" {
			hasInstances[session.ParentSessionID] = true
		}
	}
	var orphans []domain.Session
	for _, session := range sessions {
		if session.Kind() == domain.SessionRecurringParent && session.RecurringWeeks > 0 && !hasInstances[session.ID] {
			orphans = append(orphans, session)
		}
	}
	return orphans, nil
}

// ResumeExpansion re-runs the instance batch for an orphaned parent.
func (s *Service) ResumeExpansion(ctx context.Context, parentID string) ([]domain.Session, error) {
	parent, err := s.find(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if parent.Value.Kind() != domain.SessionRecurringParent {
		return nil, domain.ValidationError("sessionId", "is not a recurring parent")
	}
	sessions, err := s.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	if len(instancesOf(sessions, parent.Value.ID)) > 0 {
		return nil, domain.ValidationError("sessionId", "already has instances")
	}
	instances, err := s.expander.Persist(ctx, parent.Value)
	if err != nil {
		return nil, err
	}
	s.logf("recurring expansion resumed session_id=%s instances=%d", parent.Value.ID, len(instances))
	return instances, nil
}
