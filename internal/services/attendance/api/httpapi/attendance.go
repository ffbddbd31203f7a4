package httpapi

import (
	"net/http"

	"github.com/louisbranch/rollcall/internal/services/attendance/api/contract"
	"github.com/louisbranch/rollcall/internal/services/attendance/domain"
	"github.com/louisbranch/rollcall/internal/services/attendance/ledger"
)

const (
	messageLogged        = "Attendance logged successfully"
	messageAlreadyLogged = "Attendance already recorded for this session today"
)

type recordRequest struct {
	SessionID    string `json:"sessionId" validate:"required"`
	AttendeeID   string `json:"attendeeId" validate:"required"`
	Method       string `json:"method" validate:"required,oneof=QR_SCAN MANUAL"`
	AttendeeName string `json:"attendeeName"`
}

type scanRequest struct {
	SessionID string `json:"sessionId" validate:"required"`
	QRCode    string `json:"qrCode" validate:"required"`
}

type admissionResponse struct {
	Success       bool               `json:"success"`
	Message       string             `json:"message"`
	AlreadyLogged bool               `json:"alreadyLogged"`
	Record        contract.Record    `json:"record"`
	Attendee      *contract.Attendee `json:"attendee,omitempty"`
}

type recordsResponse struct {
	Success bool              `json:"success"`
	Records []contract.Record `json:"records"`
}

func admission(result ledger.Result) (int, admissionResponse) {
	resp := admissionResponse{
		Success:       true,
		Message:       messageLogged,
		AlreadyLogged: result.Duplicate,
		Record:        contract.NewRecord(result.Record),
	}
	if result.Duplicate {
		resp.Message = messageAlreadyLogged
		return http.StatusOK, resp
	}
	return http.StatusCreated, resp
}

func (h *Handler) recordAttendance(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	result, err := h.svc.Attendance.RecordAttendance(r.Context(), ledger.Request{
		SessionID:    req.SessionID,
		AttendeeID:   req.AttendeeID,
		Method:       domain.Method(req.Method),
		AttendeeName: req.AttendeeName,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	status, resp := admission(result)
	writeJSON(w, status, resp)
}

func (h *Handler) scanAttendance(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	result, attendee, err := h.svc.Scanner.Scan(r.Context(), req.SessionID, req.QRCode)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	status, resp := admission(result)
	view := contract.NewAttendee(attendee)
	resp.Attendee = &view
	writeJSON(w, status, resp)
}

func (h *Handler) listAttendance(w http.ResponseWriter, r *http.Request) {
	records, err := h.svc.Attendance.ListAttendance(r.Context(), r.URL.Query().Get("sessionId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recordsResponse{Success: true, Records: contract.NewRecords(records)})
}
