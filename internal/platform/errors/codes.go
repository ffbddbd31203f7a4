// Package errors provides structured error handling with i18n support.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// CodeValidation marks missing or invalid caller input. Never retried.
	CodeValidation Code = "VALIDATION_FAILED"
	// CodeNotFound marks a lookup miss. It is an expected outcome.
	CodeNotFound Code = "NOT_FOUND"

	// CodeStoreRead marks a backing-store read failure. Callers may retry.
	CodeStoreRead Code = "STORE_READ_FAILED"
	// CodeStoreWrite marks a backing-store write failure. Callers may retry.
	CodeStoreWrite Code = "STORE_WRITE_FAILED"

	// CodeRecurrenceExpansion marks a recurring parent whose instances could
	// not be written. The parent itself is persisted.
	CodeRecurrenceExpansion Code = "RECURRENCE_EXPANSION_FAILED"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeStoreRead, CodeStoreWrite, CodeRecurrenceExpansion:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether a caller may safely retry the failed operation.
func (c Code) Retryable() bool {
	switch c {
	case CodeStoreRead, CodeStoreWrite:
		return true
	default:
		return false
	}
}
