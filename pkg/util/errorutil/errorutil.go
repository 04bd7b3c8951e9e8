package errorutil

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes surfaced to callers.
const (
	CodeMissingParameter   = "MISSING_PARAMETER"
	CodeValidationFailed   = "VALIDATION_FAILED"
	CodeUnknownEvent       = "UNKNOWN_EVENT"
	CodeNotFound           = "NOT_FOUND"
	CodeQRMismatch         = "QR_MISMATCH"
	CodeAlreadyUsed        = "ALREADY_USED"
	CodeAlreadyClaimed     = "ALREADY_CLAIMED"
	CodeAlreadyExists      = "ALREADY_EXISTS"
	CodeInvalidTransition  = "INVALID_TRANSITION"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeStorageUnavailable = "STORAGE_UNAVAILABLE"
	CodeLockUnavailable    = "LOCK_UNAVAILABLE"
	CodeInternal           = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewMissingParameter(message string, details map[string]any) error {
	return NewDomainError(CodeMissingParameter, message, http.StatusBadRequest, details)
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidationFailed, message, http.StatusBadRequest, details)
}

func NewUnknownEvent(event string) error {
	return NewDomainError(CodeUnknownEvent, "unknown event type", http.StatusBadRequest, map[string]any{"event": event})
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewQRMismatch(ticketID string) error {
	return NewDomainError(CodeQRMismatch, "Invalid QR code", http.StatusBadRequest, map[string]any{"tokenId": ticketID})
}

func NewAlreadyUsed(ticketID string) error {
	return NewDomainError(CodeAlreadyUsed, "Ticket already used", http.StatusBadRequest, map[string]any{"tokenId": ticketID})
}

func NewAlreadyClaimed(attendee, eventID string) error {
	return NewDomainError(CodeAlreadyClaimed, "Reward already claimed for this event", http.StatusBadRequest,
		map[string]any{"attendee": attendee, "eventId": eventID})
}

func NewAlreadyExists(resource string, details map[string]any) error {
	return NewDomainError(CodeAlreadyExists, fmt.Sprintf("%s already exists", resource), http.StatusConflict, details)
}

func NewInvalidTransition(from, to string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	details["from"] = from
	details["to"] = to
	return NewDomainError(CodeInvalidTransition, "invalid state transition", http.StatusConflict, details)
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

// NewStorageUnavailable wraps a persistence backend fault.
func NewStorageUnavailable(err error) error {
	return &DomainError{
		Code:       CodeStorageUnavailable,
		Message:    "storage unavailable",
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

// NewLockUnavailable reports that a per-key lock could not be acquired in time.
func NewLockUnavailable(key string, err error) error {
	return &DomainError{
		Code:       CodeLockUnavailable,
		Message:    "resource busy",
		HTTPStatus: http.StatusServiceUnavailable,
		Details:    map[string]any{"key": key},
		Err:        err,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// HasCode reports whether err carries the given domain error code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

func MapError(err error) error {
	return ToDomainError(err)
}
