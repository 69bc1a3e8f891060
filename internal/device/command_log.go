package device

import (
	"context"
	"time"
)

// CommandLogEntry represents a single dispatched command record.
//
// Each entry stores the desired state that was sent, the verification
// verdict, and which transport ultimately carried the command. This
// provides a local audit trail even when the time-series database is
// unavailable.
type CommandLogEntry struct {
	// ID is the auto-incremented primary key for the log row.
	ID int64 `json:"id"`

	// DeviceID is the unique identifier of the device.
	DeviceID string `json:"device_id"`

	// Desired is the JSON snapshot of the requested state.
	Desired State `json:"desired"`

	// Verdict is the command outcome (verified, unverified, failed).
	Verdict string `json:"verdict"`

	// Transport identifies which path carried the command (lan, cloud).
	// Empty when no transport accepted the command.
	Transport string `json:"transport,omitempty"`

	// Mismatched lists the state keys that failed verification.
	Mismatched []string `json:"mismatched,omitempty"`

	// Error holds the failure detail when the command did not complete.
	Error string `json:"error,omitempty"`

	// LatencyMS is the end-to-end dispatch duration in milliseconds.
	LatencyMS int64 `json:"latency_ms"`

	// CreatedAt is the timestamp of the dispatch (UTC).
	CreatedAt time.Time `json:"created_at"`
}

// CommandLogRepository stores and retrieves dispatched command records.
//
// Implementations must be thread-safe and use UTC timestamps.
type CommandLogRepository interface {
	// RecordCommand records a dispatched command and its outcome.
	RecordCommand(ctx context.Context, entry *CommandLogEntry) error

	// GetCommands returns recent command records for the device,
	// ordered newest first. Implementations may clamp the limit.
	GetCommands(ctx context.Context, deviceID string, limit int) ([]CommandLogEntry, error)

	// PruneCommands deletes records older than the given duration and
	// returns the number of rows removed.
	PruneCommands(ctx context.Context, olderThan time.Duration) (int64, error)
}
