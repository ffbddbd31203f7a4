// Package lookup resolves attendees by QR code or id and searches the
// roster. Every call is a projection over a fresh attendee listing.
package lookup

import (
	"context"
	"strings"

	"github.com/louisbranch/rollcall/internal/services/attendance/domain"
	"golang.org/x/text/cases"
)

// AttendeeSource lists every attendee.
type AttendeeSource interface {
	ListAttendees(ctx context.Context) ([]domain.Attendee, error)
}

// Service answers attendee lookups.
type Service struct {
	source AttendeeSource
}

// NewService constructs a lookup service over source.
func NewService(source AttendeeSource) *Service {
	return &Service{source: source}
}

// fold normalizes for caseless comparison. A fresh Caser per call keeps the
// service safe for concurrent use.
func fold(value string) string {
	return cases.Fold().String(strings.TrimSpace(value))
}

// FindByQRCode matches code against stored QR codes ignoring case and
// surrounding whitespace.
func (s *Service) FindByQRCode(ctx context.Context, code string) (domain.Attendee, error) {
	want := fold(code)
	if want == "" {
		return domain.Attendee{}, domain.ValidationError("qrCode", "is required")
	}
	attendees, err := s.source.ListAttendees(ctx)
	if err != nil {
		return domain.Attendee{}, err
	}
	for _, attendee := range attendees {
		if fold(attendee.QRCode) == want {
			return attendee, nil
		}
	}
	return domain.Attendee{}, domain.NotFound("attendee", strings.TrimSpace(code))
}

// FindByID returns the attendee with the exact id.
func (s *Service) FindByID(ctx context.Context, attendeeID string) (domain.Attendee, error) {
	attendeeID = strings.TrimSpace(attendeeID)
	if attendeeID == "" {
		return domain.Attendee{}, domain.ValidationError("attendeeId", "is required")
	}
	attendees, err := s.source.ListAttendees(ctx)
	if err != nil {
		return domain.Attendee{}, err
	}
	for _, attendee := range attendees {
		if attendee.ID == attendeeID {
			return attendee, nil
		}
	}
	return domain.Attendee{}, domain.NotFound("attendee", attendeeID)
}

// Search returns attendees whose name or email contains query, ignoring
// case. An empty query returns everyone.
func (s *Service) Search(ctx context.Context, query string) ([]domain.Attendee, error) {
	attendees, err := s.source.ListAttendees(ctx)
	if err != nil {
		return nil, err
	}
	needle := fold(query)
	if needle == "" {
		return attendees, nil
	}
	matches := make([]domain.Attendee, 0, len(attendees))
	for _, attendee := range attendees {
		if strings.Contains(fold(attendee.Name), needle) || strings.Contains(fold(attendee.Email), needle) {
			matches = append(matches, attendee)
		}
	}
	return matches, nil
}
