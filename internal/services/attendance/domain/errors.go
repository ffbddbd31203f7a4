package domain

import (
	"fmt"

	apperrors "github.com/louisbranch/rollcall/internal/platform/errors"
)

// ValidationError reports missing or invalid caller input.
func ValidationError(field, reason string) error {
	return apperrors.WithMetadata(
		apperrors.CodeValidation,
		fmt.Sprintf("%s %s", field, reason),
		map[string]string{"Field": field, "Reason": reason},
	)
}

// NotFound reports a lookup miss for kind (attendee, session) and key.
func NotFound(kind, key string) error {
	return apperrors.WithMetadata(
		apperrors.CodeNotFound,
		fmt.Sprintf("%s %q not found", kind, key),
		map[string]string{"Kind": kind, "Key": key},
	)
}

// StoreReadError wraps a backing-store read failure.
func StoreReadError(op string, cause error) error {
	return apperrors.WrapWithMetadata(apperrors.CodeStoreRead, op, map[string]string{"Op": op}, cause)
}

// StoreWriteError wraps a backing-store write failure.
func StoreWriteError(op string, cause error) error {
	return apperrors.WrapWithMetadata(apperrors.CodeStoreWrite, op, map[string]string{"Op": op}, cause)
}

// ExpansionError reports recurring instances that could not be persisted
// for a parent that was.
func ExpansionError(parentID string, cause error) error {
	return apperrors.WrapWithMetadata(
		apperrors.CodeRecurrenceExpansion,
		fmt.Sprintf("expand recurring session %s", parentID),
		map[string]string{"ParentSessionID": parentID},
		cause,
	)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool { return apperrors.HasCode(err, apperrors.CodeValidation) }

// IsNotFound reports whether err is a NotFound miss.
func IsNotFound(err error) bool { return apperrors.HasCode(err, apperrors.CodeNotFound) }

// IsStoreRead reports whether err is a StoreReadError.
func IsStoreRead(err error) bool { return apperrors.HasCode(err, apperrors.CodeStoreRead) }

// IsStoreWrite reports whether err is a StoreWriteError.
func IsStoreWrite(err error) bool { return apperrors.HasCode(err, apperrors.CodeStoreWrite) }

// IsExpansion reports whether err is an ExpansionError.
func IsExpansion(err error) bool { return apperrors.HasCode(err, apperrors.CodeRecurrenceExpansion) }
