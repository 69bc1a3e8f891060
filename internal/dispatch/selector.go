package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/lumen-core/internal/device"
	"github.com/nerrad567/lumen-core/internal/transport"
)

// Logger defines the logging interface used by the dispatcher.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// EventSink receives dispatch events for telemetry and persistence.
// Implementations must not block for long; they are called inline.
type EventSink interface {
	// CommandExecuted is called once per ExecuteCommand with the final
	// outcome.
	CommandExecuted(ctx context.Context, dev *device.Device, desired transport.DesiredState, outcome *CommandOutcome)

	// StateObserved is called when a query (standalone or during
	// verification) produced a fresh snapshot that callers may persist.
	StateObserved(ctx context.Context, dev *device.Device, observed *transport.ObservedState)
}

type noopSink struct{}

func (noopSink) CommandExecuted(context.Context, *device.Device, transport.DesiredState, *CommandOutcome) {
}
func (noopSink) StateObserved(context.Context, *device.Device, *transport.ObservedState) {}

// Config holds dispatcher timing and tolerance settings.
type Config struct {
	// LANSettleDelay is the wait between a LAN send and the first poll.
	LANSettleDelay time.Duration

	// CloudSettleDelay is the wait between a cloud send and the first
	// poll. Longer than LAN because the API's state view lags.
	CloudSettleDelay time.Duration

	// PollInterval is the wait between verification polls.
	PollInterval time.Duration

	// MaxPollRetries is the number of extra polls after the first.
	MaxPollRetries int

	// Tolerances configures the comparator.
	Tolerances Tolerances
}

func (c *Config) applyDefaults() {
	if c.LANSettleDelay == 0 {
		c.LANSettleDelay = DefaultLANSettleDelay
	}
	if c.CloudSettleDelay == 0 {
		c.CloudSettleDelay = DefaultCloudSettleDelay
	}
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.MaxPollRetries < 0 {
		c.MaxPollRetries = DefaultMaxPollRetries
	}
	if c.Tolerances == (Tolerances{}) {
		c.Tolerances = DefaultTolerances()
	}
}

// Dispatcher is the command dispatch and state-verification core. It
// selects a transport ordering per device, runs the verified command
// executor once per transport in sequence, and folds the attempts into
// a single deterministic CommandOutcome.
//
// Commands for different devices may run concurrently; within one
// command, transport attempts are strictly sequential. Callers must not
// issue overlapping commands asserting the same fields on the same
// device; the dispatcher keeps no cross-command lock.
type Dispatcher struct {
	transports []transport.Transport // preference order, LAN before cloud
	health     *HealthStore
	exec       *executor
	logger     Logger
	sink       EventSink
}

// NewDispatcher creates a dispatcher over the given transports, in
// preference order. The health store is injected so tests can supply a
// fresh instance per case.
func NewDispatcher(cfg Config, health *HealthStore, transports ...transport.Transport) *Dispatcher {
	cfg.applyDefaults()
	if health == nil {
		health = NewHealthStore(0)
	}

	logger := Logger(noopLogger{})
	return &Dispatcher{
		transports: transports,
		health:     health,
		logger:     logger,
		sink:       noopSink{},
		exec: &executor{
			lanSettleDelay:   cfg.LANSettleDelay,
			cloudSettleDelay: cfg.CloudSettleDelay,
			pollInterval:     cfg.PollInterval,
			maxPollRetries:   cfg.MaxPollRetries,
			tolerances:       cfg.Tolerances,
			logger:           logger,
		},
	}
}

// SetLogger sets the logger for the dispatcher.
func (d *Dispatcher) SetLogger(logger Logger) {
	d.logger = logger
	d.exec.logger = logger
}

// SetEventSink sets the sink receiving dispatch events.
func (d *Dispatcher) SetEventSink(sink EventSink) {
	if sink == nil {
		sink = noopSink{}
	}
	d.sink = sink
}

// Health exposes the dispatcher's health store for inspection.
func (d *Dispatcher) Health() *HealthStore {
	return d.health
}

// ExecuteCommand dispatches a desired state to a device and verifies
// the effect, falling back across transports. The returned outcome is
// always terminal: verified, unverified, or failed. An error return
// means the command never started (bad input or caller cancellation).
func (d *Dispatcher) ExecuteCommand(ctx context.Context, dev *device.Device, desired transport.DesiredState) (*CommandOutcome, error) {
	if dev == nil {
		return nil, ErrNilDevice
	}
	if desired.IsEmpty() {
		return nil, ErrEmptyCommand
	}

	order := d.order(dev)
	if len(order) == 0 {
		return nil, ErrNoTransport
	}

	start := time.Now()
	outcome := &CommandOutcome{Verdict: VerdictFailed}

	for _, tr := range order {
		kind := tr.Kind()
		outcome.Attempted = append(outcome.Attempted, kind)

		result := d.exec.run(ctx, tr, dev, desired)

		switch result.status {
		case attemptAborted:
			return nil, result.err

		case attemptVerified:
			d.health.MarkSuccess(dev.ID, kind)
			outcome.Verdict = VerdictVerified
			outcome.Observed = result.observed
			outcome.Mismatched = nil
			outcome.Transport = kind
			outcome.Err = nil
			outcome.Latency = time.Since(start)
			d.finish(ctx, dev, desired, outcome)
			return outcome, nil

		case attemptMismatched:
			// The transport is responsive: the command was accepted and
			// polls answered. The mismatch is a device-state question,
			// not a path-health one.
			d.health.MarkSuccess(dev.ID, kind)
			outcome.Verdict = VerdictUnverified
			outcome.Observed = result.observed
			outcome.Mismatched = result.mismatched
			outcome.Transport = kind
			outcome.Err = result.err
			d.logger.Warn("verification mismatched, escalating",
				"device", dev.ID, "transport", string(kind), "mismatched", result.mismatched)

		case attemptRejected, attemptUnreachable:
			d.health.MarkFailure(dev.ID, kind)
			if outcome.Verdict != VerdictUnverified {
				outcome.Err = result.err
			}
			d.logger.Warn("transport attempt failed, escalating",
				"device", dev.ID, "transport", string(kind), "error", result.err)
		}
	}

	outcome.Latency = time.Since(start)
	d.finish(ctx, dev, desired, outcome)
	return outcome, nil
}

// QueryState reads current device state using the same transport
// ordering as commands, without the verification retry loop.
func (d *Dispatcher) QueryState(ctx context.Context, dev *device.Device) (*transport.ObservedState, error) {
	if dev == nil {
		return nil, ErrNilDevice
	}

	order := d.order(dev)
	if len(order) == 0 {
		return nil, ErrNoTransport
	}

	var lastErr error
	for _, tr := range order {
		kind := tr.Kind()

		observed, err := d.exec.query(ctx, tr, dev)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			d.health.MarkFailure(dev.ID, kind)
			lastErr = err
			continue
		}

		d.health.MarkSuccess(dev.ID, kind)
		d.sink.StateObserved(ctx, dev, observed)
		return observed, nil
	}

	return nil, fmt.Errorf("querying state: %w", lastErr)
}

// order produces the transport attempt ordering for a device: LAN
// before cloud when the device has a LAN address and the LAN path is
// not currently marked unreachable, otherwise cloud only. The
// unreachable mark decays, so a skipped LAN path returns on a later
// call.
func (d *Dispatcher) order(dev *device.Device) []transport.Transport {
	var order []transport.Transport
	for _, tr := range d.transports {
		switch tr.Kind() {
		case transport.KindLAN:
			if !dev.LANCapable() {
				continue
			}
			if d.health.Get(dev.ID, transport.KindLAN).State == HealthUnreachable {
				continue
			}
			order = append(order, tr)
		default:
			order = append(order, tr)
		}
	}
	return order
}

// finish emits the outcome to the sink and observer hooks.
func (d *Dispatcher) finish(ctx context.Context, dev *device.Device, desired transport.DesiredState, outcome *CommandOutcome) {
	if outcome.Observed != nil {
		d.sink.StateObserved(ctx, dev, outcome.Observed)
	}
	d.sink.CommandExecuted(ctx, dev, desired, outcome)

	d.logger.Info("command dispatched",
		"device", dev.ID,
		"verdict", string(outcome.Verdict),
		"transport", string(outcome.Transport),
		"attempted", len(outcome.Attempted),
		"latency_ms", outcome.Latency.Milliseconds())
}
