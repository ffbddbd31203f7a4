package ledger

import (
	"context"
	"strings"

	"github.com/louisbranch/rollcall/internal/services/attendance/domain"
)

// BadgeLookup resolves an attendee from a scanned QR code.
type BadgeLookup interface {
	FindByQRCode(ctx context.Context, code string) (domain.Attendee, error)
}

// Scanner turns badge scans into QR_SCAN admissions.
type Scanner struct {
	ledger *Ledger
	badges BadgeLookup
}

// NewScanner constructs a scanner recording through l.
func NewScanner(l *Ledger, badges BadgeLookup) *Scanner {
	return &Scanner{ledger: l, badges: badges}
}

// Scan resolves code and records a QR_SCAN admission for sessionID. An
// unknown code is NotFound and nothing is recorded.
func (s *Scanner) Scan(ctx context.Context, sessionID, code string) (Result, domain.Attendee, error) {
	if strings.TrimSpace(sessionID) == "" {
		return Result{}, domain.Attendee{}, domain.ValidationError("sessionId", "is required")
	}
	attendee, err := s.badges.FindByQRCode(ctx, code)
	if err != nil {
		return Result{}, domain.Attendee{}, err
	}
	result, err := s.ledger.RecordAttendance(ctx, Request{
		SessionID:    sessionID,
		AttendeeID:   attendee.ID,
		Method:       domain.MethodQRScan,
		AttendeeName: attendee.Name,
	})
	if err != nil {
		return Result{}, domain.Attendee{}, err
	}
	return result, attendee, nil
}
