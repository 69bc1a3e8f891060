package dispatch

import (
	"time"

	"github.com/nerrad567/lumen-core/internal/transport"
)

// Verdict is the terminal classification of a dispatched command.
type Verdict string

// Verdicts, strongest first.
const (
	// VerdictVerified: a transport accepted the command and the observed
	// state matched the desired state within tolerance.
	VerdictVerified Verdict = "verified"

	// VerdictUnverified: at least one transport accepted the command but
	// no observation matched within tolerance after bounded retries.
	VerdictUnverified Verdict = "unverified"

	// VerdictFailed: every transport rejected the command or was
	// unreachable at the send step.
	VerdictFailed Verdict = "failed"
)

// CommandOutcome is the immutable result returned to callers.
type CommandOutcome struct {
	// Verdict classifies the result.
	Verdict Verdict `json:"verdict"`

	// Observed is the last state snapshot read during verification.
	// Nil when no query succeeded.
	Observed *transport.ObservedState `json:"observed,omitempty"`

	// Mismatched lists the desired fields that failed verification.
	// Populated only for unverified outcomes.
	Mismatched []string `json:"mismatched,omitempty"`

	// Transport is the path that produced the verdict. Empty for failed
	// outcomes where no transport accepted the command.
	Transport transport.Kind `json:"transport,omitempty"`

	// Attempted lists every transport tried, in order.
	Attempted []transport.Kind `json:"attempted"`

	// Err is the terminal error for unverified and failed outcomes.
	Err error `json:"-"`

	// Latency is the end-to-end dispatch duration.
	Latency time.Duration `json:"latency"`
}
