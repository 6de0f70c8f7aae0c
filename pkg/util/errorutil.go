package util

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// Error codes shared by the sync engine, the adapters and the HTTP surface.
const (
	CodeValidation   = "VALIDATION_FAILED"
	CodeNotFound     = "NOT_FOUND"
	CodeAmbiguous    = "AMBIGUOUS_MATCH"
	CodeUnknownEnum  = "UNKNOWN_ENUM_VALUE"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeConflict     = "CONFLICT"
	CodeUpstream     = "UPSTREAM_ERROR"
	CodeInternal     = "INTERNAL_ERROR"
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

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
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

// NewAmbiguousMatch reports a lookup that matched more than one candidate.
func NewAmbiguousMatch(resource string, count int) error {
	return NewDomainError(CodeAmbiguous, fmt.Sprintf("%s matched %d candidates", resource, count),
		http.StatusConflict, map[string]any{"count": count})
}

// NewUnknownEnumValue reports a raw value with no known translation.
func NewUnknownEnumValue(kind, value string) error {
	return NewDomainError(CodeUnknownEnum, fmt.Sprintf("unknown %s %q", kind, value),
		http.StatusUnprocessableEntity, map[string]any{"value": value})
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

// NewUpstreamError wraps a failure reported by one of the remote systems.
func NewUpstreamError(system string, status int, err error) error {
	return &DomainError{
		Code:       CodeUpstream,
		Message:    fmt.Sprintf("%s returned status %d", system, status),
		HTTPStatus: http.StatusBadGateway,
		Details:    map[string]any{"system": system, "status": status},
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

// FromHTTPStatus classifies a non-2xx response from a remote system.
func FromHTTPStatus(system string, status int, body string) error {
	details := map[string]any{"system": system, "status": status}
	switch {
	case status == http.StatusNotFound:
		return &DomainError{Code: CodeNotFound, Message: system + " resource not found",
			HTTPStatus: http.StatusNotFound, Details: details}
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &DomainError{Code: CodeUnauthorized, Message: system + " rejected credentials",
			HTTPStatus: http.StatusBadGateway, Details: details}
	default:
		return NewUpstreamError(system, status, errors.New(body))
	}
}

// HasCode reports whether err carries a DomainError with the given code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Code == code
}

// IsNotFound reports whether err is a recoverable not-found condition.
func IsNotFound(err error) bool {
	return HasCode(err, CodeNotFound) || errors.Is(err, pgx.ErrNoRows)
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
	if errors.Is(err, pgx.ErrNoRows) {
		if de, ok := NewNotFound("resource", nil).(*DomainError); ok {
			return de
		}
	}
	if de, ok := NewInternalError(err).(*DomainError); ok {
		return de
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	return ToDomainError(err)
}
