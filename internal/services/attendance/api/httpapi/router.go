// Package httpapi serves the attendance JSON API used by the scanner,
// roster, and schedule pages.
package httpapi

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/louisbranch/rollcall/internal/services/attendance/domain"
	"github.com/louisbranch/rollcall/internal/services/attendance/ledger"
	"github.com/louisbranch/rollcall/internal/services/attendance/reports"
	"github.com/louisbranch/rollcall/internal/services/attendance/roster"
	"github.com/louisbranch/rollcall/internal/services/attendance/sessions"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

// Attendance records and lists check-ins.
type Attendance interface {
	RecordAttendance(ctx context.Context, req ledger.Request) (ledger.Result, error)
	ListAttendance(ctx context.Context, sessionID string) ([]domain.AttendanceRecord, error)
}

// Scanner records a check-in from a badge code.
type Scanner interface {
	Scan(ctx context.Context, sessionID, code string) (ledger.Result, domain.Attendee, error)
}

// Directory finds attendees.
type Directory interface {
	FindByQRCode(ctx context.Context, code string) (domain.Attendee, error)
	FindByID(ctx context.Context, attendeeID string) (domain.Attendee, error)
	Search(ctx context.Context, query string) ([]domain.Attendee, error)
}

// Roster administers attendees.
type Roster interface {
	CreateAttendee(ctx context.Context, in roster.CreateInput) (domain.Attendee, error)
	UpdateAttendee(ctx context.Context, attendeeID string, in roster.UpdateInput) (domain.Attendee, error)
}

// Schedule administers sessions.
type Schedule interface {
	ListSessions(ctx context.Context) ([]domain.Session, error)
	CreateSession(ctx context.Context, in sessions.CreateInput) (sessions.CreateResult, error)
	DeleteSession(ctx context.Context, sessionID string) (sessions.DeleteResult, error)
	Instances(ctx context.Context, parentID string) ([]domain.Session, error)
	OrphanedParents(ctx context.Context) ([]domain.Session, error)
	ResumeExpansion(ctx context.Context, parentID string) ([]domain.Session, error)
}

// Reports builds the dashboard summary.
type Reports interface {
	Dashboard(ctx context.Context, now time.Time) (reports.Dashboard, error)
}

// Services bundles the handler dependencies. Feed is optional.
type Services struct {
	Attendance Attendance
	Scanner    Scanner
	Directory  Directory
	Roster     Roster
	Schedule   Schedule
	Reports    Reports
	Feed       http.Handler
	Clock      func() time.Time
	Logf       func(format string, args ...any)
}

// Handler serves the JSON API.
type Handler struct {
	svc      Services
	validate *validator.Validate
	clock    func() time.Time
	logf     func(format string, args ...any)
}

// NewHandler builds the API router.
func NewHandler(svc Services) http.Handler {
	h := &Handler{
		svc:      svc,
		validate: newValidator(),
		clock:    svc.Clock,
		logf:     svc.Logf,
	}
	if h.clock == nil {
		h.clock = time.Now
	}
	if h.logf == nil {
		h.logf = log.Printf
	}
	return h.routes()
}

func (h *Handler) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/up", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/attendance", h.listAttendance)
		r.Post("/attendance", h.recordAttendance)
		r.Post("/attendance/scan", h.scanAttendance)

		r.Get("/attendees", h.searchAttendees)
		r.Get("/attendees/{id}", h.getAttendee)
		r.Get("/attendees/qrcode/{code}", h.getAttendeeByQRCode)

		r.Get("/clients", h.listClients)
		r.Post("/clients", h.createClient)
		r.Put("/clients/{id}", h.updateClient)

		r.Get("/sessions", h.listSessions)
		r.Post("/sessions", h.createSession)
		r.Get("/sessions/orphaned", h.orphanedSessions)
		r.Delete("/sessions/{id}", h.deleteSession)
		r.Get("/sessions/{id}/instances", h.sessionInstances)
		r.Post("/sessions/{id}/expand", h.expandSession)

		r.Get("/dashboard", h.dashboard)
		if h.svc.Feed != nil {
			r.Method(http.MethodGet, "/feed", h.svc.Feed)
		}
	})
	return r
}
