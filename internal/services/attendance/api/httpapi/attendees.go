package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/louisbranch/rollcall/internal/services/attendance/api/contract"
	"github.com/louisbranch/rollcall/internal/services/attendance/roster"
)

type attendeesResponse struct {
	Attendees []contract.Attendee `json:"attendees"`
}

type attendeeResponse struct {
	Success  bool              `json:"success"`
	Attendee contract.Attendee `json:"attendee"`
}

type clientsResponse struct {
	Clients []contract.Attendee `json:"clients"`
}

type clientResponse struct {
	Success bool              `json:"success"`
	Client  contract.Attendee `json:"client"`
}

type createClientRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

type updateClientRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email" validate:"omitempty,email"`
}

func (h *Handler) searchAttendees(w http.ResponseWriter, r *http.Request) {
	attendees, err := h.svc.Directory.Search(r.Context(), r.URL.Query().Get("query"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, attendeesResponse{Attendees: contract.NewAttendees(attendees)})
}

func (h *Handler) getAttendee(w http.ResponseWriter, r *http.Request) {
	attendee, err := h.svc.Directory.FindByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, attendeeResponse{Success: true, Attendee: contract.NewAttendee(attendee)})
}

func (h *Handler) getAttendeeByQRCode(w http.ResponseWriter, r *http.Request) {
	attendee, err := h.svc.Directory.FindByQRCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, attendeeResponse{Success: true, Attendee: contract.NewAttendee(attendee)})
}

// listClients is the admin view of the roster: one client by id, or a
// search over all of them.
func (h *Handler) listClients(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if id := strings.TrimSpace(query.Get("id")); id != "" {
		attendee, err := h.svc.Directory.FindByID(r.Context(), id)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, clientResponse{Success: true, Client: contract.NewAttendee(attendee)})
		return
	}
	attendees, err := h.svc.Directory.Search(r.Context(), query.Get("query"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, clientsResponse{Clients: contract.NewAttendees(attendees)})
}

func (h *Handler) createClient(w http.ResponseWriter, r *http.Request) {
	var req createClientRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	attendee, err := h.svc.Roster.CreateAttendee(r.Context(), roster.CreateInput{Name: req.Name, Email: req.Email})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, clientResponse{Success: true, Client: contract.NewAttendee(attendee)})
}

func (h *Handler) updateClient(w http.ResponseWriter, r *http.Request) {
	var req updateClientRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	attendee, err := h.svc.Roster.UpdateAttendee(r.Context(), chi.URLParam(r, "id"), roster.UpdateInput{
		Name:  req.Name,
		Email: req.Email,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, clientResponse{Success: true, Client: contract.NewAttendee(attendee)})
}
