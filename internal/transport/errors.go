package transport

import (
	"errors"
	"fmt"
)

// Sentinel errors for transport operations.
var (
	// ErrUnreachable indicates a network-level failure: timeout, refused
	// connection, or no response within the deadline. Recoverable by
	// falling back to another transport.
	ErrUnreachable = errors.New("transport: unreachable")

	// ErrRejected indicates the transport refused the command at the
	// protocol level. Match with errors.Is; inspect the reason via
	// errors.As with *RejectedError.
	ErrRejected = errors.New("transport: rejected")
)

// Reason classifies why a transport rejected a command. Reasons are
// structured codes mapped from protocol responses, never derived from
// error message text.
type Reason string

// Rejection reasons.
const (
	ReasonUnsupportedCapability Reason = "unsupported_capability"
	ReasonBadRequest            Reason = "bad_request"
	ReasonAuth                  Reason = "auth"
	ReasonRateLimited           Reason = "rate_limited"
	ReasonUnknown               Reason = "unknown"
)

// RejectedError carries the structured rejection detail from a transport.
type RejectedError struct {
	// Reason is the structured rejection classification.
	Reason Reason

	// Status is the HTTP status code, when the rejection came from the
	// cloud API. Zero otherwise.
	Status int

	// APICode is the vendor body-level code, when present. Zero otherwise.
	APICode int

	// Message is the human-readable detail from the protocol response.
	Message string
}

func (e *RejectedError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("transport: rejected (%s): %s", e.Reason, e.Message)
	}
	return fmt.Sprintf("transport: rejected (%s)", e.Reason)
}

// Is makes errors.Is(err, ErrRejected) match any RejectedError.
func (e *RejectedError) Is(target error) bool {
	return target == ErrRejected
}

// NewRejectedError builds a RejectedError with the given classification.
func NewRejectedError(reason Reason, status, apiCode int, message string) *RejectedError {
	return &RejectedError{
		Reason:  reason,
		Status:  status,
		APICode: apiCode,
		Message: message,
	}
}
