package httpapi

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	apperrors "github.com/louisbranch/rollcall/internal/platform/errors"
	"github.com/louisbranch/rollcall/internal/platform/errors/i18n"
	"github.com/louisbranch/rollcall/internal/services/attendance/api/contract"
	"github.com/louisbranch/rollcall/internal/services/attendance/sessions"
)

type createSessionRequest struct {
	Title             string `json:"title" validate:"required"`
	Date              string `json:"date" validate:"required,datetime=2006-01-02"`
	Time              string `json:"time" validate:"required"`
	IsRecurring       bool   `json:"isRecurring"`
	RecurringWeeks    int    `json:"recurringWeeks" validate:"gte=0,lte=104"`
	RecurringInterval int    `json:"recurringInterval" validate:"gte=0"`
}

type sessionsResponse struct {
	Sessions []contract.Session `json:"sessions"`
}

type instancesResponse struct {
	Instances []contract.Session `json:"instances"`
}

type createSessionResponse struct {
	Success   bool               `json:"success"`
	Message   string             `json:"message"`
	Session   contract.Session   `json:"session"`
	Instances []contract.Session `json:"instances"`
	Warning   string             `json:"warning,omitempty"`
}

type deleteSessionResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Cleared []string `json:"cleared"`
}

func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Schedule.ListSessions(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionsResponse{Sessions: contract.NewSessions(list)})
}

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	result, err := h.svc.Schedule.CreateSession(r.Context(), sessions.CreateInput{
		Title:             req.Title,
		Date:              req.Date,
		Time:              req.Time,
		IsRecurring:       req.IsRecurring,
		RecurringWeeks:    req.RecurringWeeks,
		RecurringInterval: req.RecurringInterval,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := createSessionResponse{
		Success:   true,
		Message:   fmt.Sprintf("Created session %q", result.Session.Title),
		Session:   contract.NewSession(result.Session),
		Instances: contract.NewSessions(result.Instances),
	}
	if result.Session.IsRecurring {
		resp.Message = fmt.Sprintf("Created recurring session %q with %d instances", result.Session.Title, len(result.Instances))
	}
	if result.ExpansionErr != nil {
		h.logf("session created without instances session_id=%s err=%v", result.Session.ID, result.ExpansionErr)
		catalog := i18n.GetCatalog(i18n.Negotiate(r.Header.Get("Accept-Language")))
		resp.Warning = catalog.Format(string(apperrors.CodeRecurrenceExpansion), nil)
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) deleteSession(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.Schedule.DeleteSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	cleared := result.Cleared
	if cleared == nil {
		cleared = []string{}
	}
	writeJSON(w, http.StatusOK, deleteSessionResponse{
		Success: true,
		Message: "Session deleted successfully",
		Cleared: cleared,
	})
}

func (h *Handler) sessionInstances(w http.ResponseWriter, r *http.Request) {
	instances, err := h.svc.Schedule.Instances(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, instancesResponse{Instances: contract.NewSessions(instances)})
}

func (h *Handler) orphanedSessions(w http.ResponseWriter, r *http.Request) {
	orphans, err := h.svc.Schedule.OrphanedParents(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionsResponse{Sessions: contract.NewSessions(orphans)})
}

func (h *Handler) expandSession(w http.ResponseWriter, r *http.Request) {
	instances, err := h.svc.Schedule.ResumeExpansion(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, instancesResponse{Instances: contract.NewSessions(instances)})
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.Reports.Dashboard(r.Context(), h.clock())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, contract.NewDashboard(summary))
}
