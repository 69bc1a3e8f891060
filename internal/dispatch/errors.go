package dispatch

import "errors"

// Sentinel errors for dispatch operations.
var (
	// ErrVerificationMismatch indicates every accepting transport's
	// observed state failed to match the desired state within tolerance
	// after bounded retries. Always surfaced, never swallowed.
	ErrVerificationMismatch = errors.New("dispatch: verification mismatch")

	// ErrNoTransport indicates no transport was eligible for the device.
	ErrNoTransport = errors.New("dispatch: no transport available")

	// ErrEmptyCommand indicates the desired state asserts no fields.
	ErrEmptyCommand = errors.New("dispatch: command asserts no fields")

	// ErrNilDevice indicates a missing device record.
	ErrNilDevice = errors.New("dispatch: device is required")
)
