// Package roster administers attendees: creation with a unique badge QR
// code, in-place edits of name and email, and listing.
package roster

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/louisbranch/rollcall/internal/services/attendance/domain"
	"github.com/louisbranch/rollcall/internal/services/attendance/repository"
)

const (
	qrCodePrefix   = "QR"
	qrCodeLength   = 8
	qrCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	maxQRAttempts  = 5
)

// ErrQRCodeExhausted indicates every generated QR code collided.
var ErrQRCodeExhausted = errors.New("could not generate a unique qr code")

// Store is the attendee persistence the roster needs.
type Store interface {
	ListAttendeeRows(ctx context.Context) ([]repository.Stored[domain.Attendee], error)
	AppendAttendee(ctx context.Context, attendee domain.Attendee) error
	UpdateAttendee(ctx context.Context, index int, attendee domain.Attendee) error
	NewID(prefix string) (string, error)
	Now() time.Time
}

// Service is the roster use-case layer.
type Service struct {
	store     Store
	validate  *validator.Validate
	newQRCode func() (string, error)
}

// NewService constructs a roster service. A nil generator uses
// GenerateQRCode.
func NewService(store Store, newQRCode func() (string, error)) *Service {
	if newQRCode == nil {
		newQRCode = GenerateQRCode
	}
	return &Service{store: store, validate: validator.New(), newQRCode: newQRCode}
}

// GenerateQRCode returns "QR" followed by eight random characters from
// [A-Z0-9].
func GenerateQRCode() (string, error) {
	var b strings.Builder
	b.WriteString(qrCodePrefix)
	limit := big.NewInt(int64(len(qrCodeAlphabet)))
	for i := 0; i < qrCodeLength; i++ {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b.WriteByte(qrCodeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// CreateInput describes a new attendee.
type CreateInput struct {
	Name  string
	Email string
}

// CreateAttendee validates input and appends a new attendee with a fresh id
// and QR code.
func (s *Service) CreateAttendee(ctx context.Context, in CreateInput) (domain.Attendee, error) {
	name := strings.TrimSpace(in.Name)
	email := strings.TrimSpace(in.Email)
	if err := s.checkName(name); err != nil {
		return domain.Attendee{}, err
	}
	if err := s.checkEmail(email); err != nil {
		return domain.Attendee{}, err
	}

	stored, err := s.store.ListAttendeeRows(ctx)
	if err != nil {
		return domain.Attendee{}, err
	}
	taken := make(map[string]struct{}, len(stored))
	for _, entry := range stored {
		taken[strings.ToUpper(strings.TrimSpace(entry.Value.QRCode))] = struct{}{}
	}
	code, err := s.uniqueQRCode(taken)
	if err != nil {
		return domain.Attendee{}, err
	}

	attendeeID, err := s.store.NewID(repository.AttendeeIDPrefix)
	if err != nil {
		return domain.Attendee{}, err
	}
	attendee := domain.Attendee{
		ID:        attendeeID,
		Name:      name,
		Email:     email,
		QRCode:    code,
		CreatedAt: s.store.Now(),
	}
	if err := s.store.AppendAttendee(ctx, attendee); err != nil {
		return domain.Attendee{}, err
	}
	return attendee, nil
}

func (s *Service) uniqueQRCode(taken map[string]struct{}) (string, error) {
	for attempt := 0; attempt < maxQRAttempts; attempt++ {
		code, err := s.newQRCode()
		if err != nil {
			return "", err
		}
		if _, clash := taken[strings.ToUpper(code)]; !clash {
			return code, nil
		}
	}
	return "", ErrQRCodeExhausted
}

// UpdateInput carries optional replacements. Nil fields are left as is.
type UpdateInput struct {
	Name  *string
	Email *string
}

// UpdateAttendee rewrites the attendee row in place. Id, QR code, and
// creation time never change.
func (s *Service) UpdateAttendee(ctx context.Context, attendeeID string, in UpdateInput) (domain.Attendee, error) {
	attendeeID = strings.TrimSpace(attendeeID)
	if attendeeID == "" {
		return domain.Attendee{}, domain.ValidationError("id", "is required")
	}
	stored, err := s.store.ListAttendeeRows(ctx)
	if err != nil {
		return domain.Attendee{}, err
	}
	for _, entry := range stored {
		if entry.Value.ID != attendeeID {
			continue
		}
		updated := entry.Value
		if in.Name != nil {
			name := strings.TrimSpace(*in.Name)
			if err := s.checkName(name); err != nil {
				return domain.Attendee{}, err
			}
			updated.Name = name
		}
		if in.Email != nil {
			email := strings.TrimSpace(*in.Email)
			if err := s.checkEmail(email); err != nil {
				return domain.Attendee{}, err
			}
			updated.Email = email
		}
		if err := s.store.UpdateAttendee(ctx, entry.Index, updated); err != nil {
			return domain.Attendee{}, err
		}
		return updated, nil
	}
	return domain.Attendee{}, domain.NotFound("attendee", attendeeID)
}

// ListAttendees returns every attendee in store order.
func (s *Service) ListAttendees(ctx context.Context) ([]domain.Attendee, error) {
	stored, err := s.store.ListAttendeeRows(ctx)
	if err != nil {
		return nil, err
	}
	attendees := make([]domain.Attendee, 0, len(stored))
	for _, entry := range stored {
		attendees = append(attendees, entry.Value)
	}
	return attendees, nil
}

func (s *Service) checkName(name string) error {
	if name == "" {
		return domain.ValidationError("name", "is required")
	}
	return nil
}

func (s *Service) checkEmail(email string) error {
	if email == "" {
		return domain.ValidationError("email", "is required")
	}
	if err := s.validate.Var(email, "email"); err != nil {
		return domain.ValidationError("email", "must be a valid email address")
	}
	return nil
}
