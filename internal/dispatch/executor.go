package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/lumen-core/internal/device"
	"github.com/nerrad567/lumen-core/internal/transport"
)

// Default executor timing.
const (
	DefaultLANSettleDelay   = 500 * time.Millisecond
	DefaultCloudSettleDelay = 2 * time.Second
	DefaultPollInterval     = 500 * time.Millisecond
	DefaultMaxPollRetries   = 1
)

// attemptStatus is the terminal state of one (device, transport,
// command) verification sequence.
type attemptStatus int

const (
	// attemptVerified: send accepted, observed state matched.
	attemptVerified attemptStatus = iota

	// attemptMismatched: send accepted, but no poll matched within
	// tolerance after bounded retries.
	attemptMismatched

	// attemptRejected: the transport refused the command at the send step.
	attemptRejected

	// attemptUnreachable: network failure at send or during polling.
	attemptUnreachable

	// attemptAborted: the caller cancelled; not a transport fault.
	attemptAborted
)

// attemptResult carries the terminal state of one executor run.
type attemptResult struct {
	status     attemptStatus
	observed   *transport.ObservedState
	mismatched []string
	err        error
}

// executor runs the bounded verification state machine for a single
// transport: Sent, Delaying, Polling, then Verified, Mismatched, or
// Unreachable. Every wait honours ctx; every retry path has a fixed
// upper bound and a deterministic terminal outcome.
type executor struct {
	lanSettleDelay   time.Duration
	cloudSettleDelay time.Duration
	pollInterval     time.Duration
	maxPollRetries   int
	tolerances       Tolerances
	logger           Logger
}

// run executes one verification sequence. Verification state never
// leaks between transports: each fallback starts a fresh run.
func (e *executor) run(ctx context.Context, tr transport.Transport, dev *device.Device, desired transport.DesiredState) attemptResult {
	// Sent
	if err := e.safeSend(ctx, tr, dev, desired); err != nil {
		if ctx.Err() != nil {
			return attemptResult{status: attemptAborted, err: ctx.Err()}
		}
		if errors.Is(err, transport.ErrRejected) {
			return attemptResult{status: attemptRejected, err: err}
		}
		return attemptResult{status: attemptUnreachable, err: err}
	}

	// Delaying: honour device-side command processing latency before the
	// first poll. Polling immediately after send is a known source of
	// false negatives.
	if err := sleepCtx(ctx, e.settleDelay(tr.Kind())); err != nil {
		return attemptResult{status: attemptAborted, err: err}
	}

	// Polling, bounded
	var last attemptResult
	polls := e.maxPollRetries + 1
	for i := 0; i < polls; i++ {
		if i > 0 {
			if err := sleepCtx(ctx, e.pollInterval); err != nil {
				return attemptResult{status: attemptAborted, err: err}
			}
		}

		observed, err := e.safeQuery(ctx, tr, dev)
		if err != nil {
			if ctx.Err() != nil {
				return attemptResult{status: attemptAborted, err: ctx.Err()}
			}
			// Any failure during polling reads as unreachable for this
			// transport, never an unhandled fault
			return attemptResult{status: attemptUnreachable, err: err}
		}

		cmp := Compare(desired, observed, e.tolerances)
		if cmp.FullMatch() {
			return attemptResult{status: attemptVerified, observed: observed}
		}

		e.logger.Debug("verification poll mismatched",
			"device", dev.ID, "transport", string(tr.Kind()),
			"poll", i+1, "mismatched", cmp.Mismatched)
		last = attemptResult{
			status:     attemptMismatched,
			observed:   observed,
			mismatched: cmp.Mismatched,
			err:        fmt.Errorf("%w: fields %v", ErrVerificationMismatch, cmp.Mismatched),
		}
	}

	return last
}

// query reads state once without the verification loop.
func (e *executor) query(ctx context.Context, tr transport.Transport, dev *device.Device) (*transport.ObservedState, error) {
	return e.safeQuery(ctx, tr, dev)
}

func (e *executor) settleDelay(kind transport.Kind) time.Duration {
	if kind == transport.KindCloud {
		return e.cloudSettleDelay
	}
	return e.lanSettleDelay
}

// safeSend invokes the adapter, converting a panic into an unreachable
// error rather than a crash.
func (e *executor) safeSend(ctx context.Context, tr transport.Transport, dev *device.Device, desired transport.DesiredState) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("transport send panicked", "transport", string(tr.Kind()), "panic", r)
			err = fmt.Errorf("send panic (%v): %w", r, transport.ErrUnreachable)
		}
	}()
	return tr.Send(ctx, dev, desired)
}

// safeQuery invokes the adapter, converting a panic into an unreachable
// error rather than a crash.
func (e *executor) safeQuery(ctx context.Context, tr transport.Transport, dev *device.Device) (obs *transport.ObservedState, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("transport query panicked", "transport", string(tr.Kind()), "panic", r)
			obs = nil
			err = fmt.Errorf("query panic (%v): %w", r, transport.ErrUnreachable)
		}
	}()
	return tr.Query(ctx, dev)
}

// sleepCtx waits for the duration or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
