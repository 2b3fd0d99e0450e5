package apiclient

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failed call.
type Kind string

const (
	KindUnreachable        Kind = "unreachable"
	KindMalformed          Kind = "malformed_response"
	KindRejected           Kind = "rejected"
	KindReportedFailure    Kind = "reported_failure"
	KindProtocolViolation  Kind = "protocol_violation"
	KindPaymentUnconfirmed Kind = "payment_unconfirmed"
)

const (
	msgUnreachable = "Unable to reach the server. Please check your connection and try again."
	msgMalformed   = "The server returned an invalid response."
	msgNotSuccess  = "The request was not successful."
	msgNotSent     = "The request could not be sent. Please try again."
)

// Error is the single failure type surfaced to callers.
// Message is always human readable.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds an Error of the given kind.
func NewError(kind Kind, status int, message string, cause error) *Error {
	return &Error{Kind: kind, Status: status, Message: message, Err: cause}
}

// AsError checks if the error is an *Error.
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// KindOf returns the kind of err, or an empty Kind if err is not an *Error.
func KindOf(err error) Kind {
	if apiErr, ok := AsError(err); ok {
		return apiErr.Kind
	}
	return ""
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// DefaultMessage returns the generic message for an HTTP status.
func DefaultMessage(status int) string {
	switch {
	case status == http.StatusBadRequest:
		return "Invalid request."
	case status == http.StatusUnauthorized:
		return "Your session has expired. Please sign in again."
	case status == http.StatusForbidden:
		return "You do not have permission to perform this action."
	case status == http.StatusNotFound:
		return "The requested resource was not found."
	case status == http.StatusConflict:
		return "The request conflicts with the current state of the resource."
	case status == http.StatusUnprocessableEntity:
		return "The submitted data is invalid."
	case status == http.StatusTooManyRequests:
		return "Too many requests. Please try again later."
	case status >= 500:
		return "The server encountered an error. Please try again later."
	default:
		return fmt.Sprintf("Request failed with status %d.", status)
	}
}
