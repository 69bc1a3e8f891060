package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/lumen-core/internal/device"
	"github.com/nerrad567/lumen-core/internal/transport"
)

// mockTransport is a scripted test implementation of transport.Transport.
type mockTransport struct {
	kind transport.Kind

	mu         sync.Mutex
	sendErr    error
	sendPanic  bool
	queryErr   error
	queryPanic bool
	// observations are returned in order; the last repeats once exhausted.
	observations []*transport.ObservedState

	sendCalls  int
	queryCalls int
}

func (m *mockTransport) Kind() transport.Kind { return m.kind }

func (m *mockTransport) Send(ctx context.Context, dev *device.Device, desired transport.DesiredState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendCalls++
	if m.sendPanic {
		panic("send exploded")
	}
	return m.sendErr
}

func (m *mockTransport) Query(ctx context.Context, dev *device.Device) (*transport.ObservedState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queryCalls++
	if m.queryPanic {
		panic("query exploded")
	}
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	if len(m.observations) == 0 {
		return &transport.ObservedState{Transport: m.kind, ObservedAt: time.Now()}, nil
	}
	obs := m.observations[0]
	if len(m.observations) > 1 {
		m.observations = m.observations[1:]
	}
	cpy := *obs
	cpy.Transport = m.kind
	cpy.ObservedAt = time.Now()
	return &cpy, nil
}

func (m *mockTransport) counts() (sends, queries int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sendCalls, m.queryCalls
}

// recordingSink captures dispatch events.
type recordingSink struct {
	mu       sync.Mutex
	outcomes []*CommandOutcome
	observed []*transport.ObservedState
}

func (s *recordingSink) CommandExecuted(_ context.Context, _ *device.Device, _ transport.DesiredState, o *CommandOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, o)
}

func (s *recordingSink) StateObserved(_ context.Context, _ *device.Device, obs *transport.ObservedState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observed = append(s.observed, obs)
}

func fastConfig() Config {
	return Config{
		LANSettleDelay:   time.Millisecond,
		CloudSettleDelay: time.Millisecond,
		PollInterval:     time.Millisecond,
		MaxPollRetries:   1,
		Tolerances:       DefaultTolerances(),
	}
}

func dualDevice() *device.Device {
	addr := "192.168.1.50"
	return &device.Device{
		ID:         "dev-1",
		Name:       "Test Strip",
		SKU:        "H6159",
		LANAddress: &addr,
		Capabilities: []device.Capability{
			device.CapabilityPower,
			device.CapabilityBrightness,
			device.CapabilityColorRGB,
		},
	}
}

func cloudOnlyDevice() *device.Device {
	d := dualDevice()
	d.LANAddress = nil
	return d
}

func powerOn() transport.DesiredState {
	return transport.DesiredState{Power: boolPtr(true)}
}

func observedOn() *transport.ObservedState {
	return &transport.ObservedState{Power: boolPtr(true), Brightness: intPtr(100)}
}

func observedOff() *transport.ObservedState {
	return &transport.ObservedState{Power: boolPtr(false), Brightness: intPtr(100)}
}

func TestExecuteCommandVerifiedOnLAN(t *testing.T) {
	lan := &mockTransport{kind: transport.KindLAN, observations: []*transport.ObservedState{observedOn()}}
	cloud := &mockTransport{kind: transport.KindCloud}
	d := NewDispatcher(fastConfig(), NewHealthStore(0), lan, cloud)

	outcome, err := d.ExecuteCommand(context.Background(), dualDevice(), powerOn())
	if err != nil {
		t.Fatalf("ExecuteCommand failed: %v", err)
	}

	if outcome.Verdict != VerdictVerified {
		t.Errorf("expected verified, got %q (err: %v)", outcome.Verdict, outcome.Err)
	}
	if outcome.Transport != transport.KindLAN {
		t.Errorf("expected lan transport, got %q", outcome.Transport)
	}
	if outcome.Observed == nil {
		t.Error("expected final observed state")
	}

	cloudSends, _ := cloud.counts()
	if cloudSends != 0 {
		t.Error("cloud must not be attempted after lan verified")
	}
}

func TestExecuteCommandNoLANAddressSkipsLAN(t *testing.T) {
	lan := &mockTransport{kind: transport.KindLAN}
	cloud := &mockTransport{kind: transport.KindCloud, observations: []*transport.ObservedState{observedOn()}}
	d := NewDispatcher(fastConfig(), NewHealthStore(0), lan, cloud)

	outcome, err := d.ExecuteCommand(context.Background(), cloudOnlyDevice(), powerOn())
	if err != nil {
		t.Fatalf("ExecuteCommand failed: %v", err)
	}

	lanSends, lanQueries := lan.counts()
	if lanSends != 0 || lanQueries != 0 {
		t.Error("lan adapter must never be invoked for a device without a lan address")
	}
	if len(outcome.Attempted) != 1 || outcome.Attempted[0] != transport.KindCloud {
		t.Errorf("expected exactly one cloud attempt, got %v", outcome.Attempted)
	}
	if outcome.Verdict != VerdictVerified {
		t.Errorf("expected verified, got %q", outcome.Verdict)
	}
}

func TestExecuteCommandLANUnreachableFallsBack(t *testing.T) {
	lan := &mockTransport{kind: transport.KindLAN, sendErr: transport.ErrUnreachable}
	cloud := &mockTransport{kind: transport.KindCloud, observations: []*transport.ObservedState{observedOn()}}
	health := NewHealthStore(0)
	d := NewDispatcher(fastConfig(), health, lan, cloud)

	dev := dualDevice()
	outcome, err := d.ExecuteCommand(context.Background(), dev, powerOn())
	if err != nil {
		t.Fatalf("ExecuteCommand failed: %v", err)
	}

	// Unreachable send must not be followed by polling on that transport
	_, lanQueries := lan.counts()
	if lanQueries != 0 {
		t.Error("executor must not poll a transport whose send was unreachable")
	}

	if outcome.Verdict != VerdictVerified || outcome.Transport != transport.KindCloud {
		t.Errorf("expected cloud verification, got %q on %q", outcome.Verdict, outcome.Transport)
	}
	if len(outcome.Attempted) != 2 {
		t.Errorf("expected both transports attempted, got %v", outcome.Attempted)
	}

	if h := health.Get(dev.ID, transport.KindLAN); h.State != HealthDegraded {
		t.Errorf("expected lan downgraded, got %q", h.State)
	}
	if h := health.Get(dev.ID, transport.KindCloud); h.State != HealthHealthy {
		t.Errorf("expected cloud healthy, got %q", h.State)
	}
}

func TestExecuteCommandBoundaryBrightnessVerifies(t *testing.T) {
	// Desired 50, observed sequence [45, 52], tolerance 5: the first poll
	// is at the inclusive boundary and must match immediately.
	lan := &mockTransport{kind: transport.KindLAN, observations: []*transport.ObservedState{
		{Brightness: intPtr(45)},
		{Brightness: intPtr(52)},
	}}
	cfg := fastConfig()
	cfg.Tolerances = Tolerances{Brightness: 5, ColorChannel: 10, ColorTemp: 100}
	d := NewDispatcher(cfg, NewHealthStore(0), lan)

	outcome, err := d.ExecuteCommand(context.Background(), dualDevice(),
		transport.DesiredState{Brightness: intPtr(50)})
	if err != nil {
		t.Fatalf("ExecuteCommand failed: %v", err)
	}

	if outcome.Verdict != VerdictVerified {
		t.Fatalf("expected verified, got %q", outcome.Verdict)
	}
	_, queries := lan.counts()
	if queries != 1 {
		t.Errorf("expected verification on first poll, got %d polls", queries)
	}
}

func TestExecuteCommandMismatchIsUnverifiedNotFailed(t *testing.T) {
	// Send accepted everywhere, but the device reports power off on every
	// poll. With max_poll_retries=1 each transport polls twice, then the
	// overall outcome is unverified, never failed.
	lan := &mockTransport{kind: transport.KindLAN, observations: []*transport.ObservedState{observedOff()}}
	cloud := &mockTransport{kind: transport.KindCloud, observations: []*transport.ObservedState{observedOff()}}
	d := NewDispatcher(fastConfig(), NewHealthStore(0), lan, cloud)

	outcome, err := d.ExecuteCommand(context.Background(), dualDevice(), powerOn())
	if err != nil {
		t.Fatalf("ExecuteCommand failed: %v", err)
	}

	if outcome.Verdict != VerdictUnverified {
		t.Fatalf("expected unverified, got %q", outcome.Verdict)
	}
	if len(outcome.Mismatched) != 1 || outcome.Mismatched[0] != transport.FieldPower {
		t.Errorf("expected power mismatch, got %v", outcome.Mismatched)
	}
	if !errors.Is(outcome.Err, ErrVerificationMismatch) {
		t.Errorf("expected ErrVerificationMismatch, got %v", outcome.Err)
	}
	if outcome.Observed == nil {
		t.Error("expected last observed state")
	}

	_, lanQueries := lan.counts()
	if lanQueries != 2 {
		t.Errorf("expected 2 lan polls (1 + 1 retry), got %d", lanQueries)
	}
}

func TestExecuteCommandAllRejectedIsFailed(t *testing.T) {
	rejection := transport.NewRejectedError(transport.ReasonUnsupportedCapability, 400, 0, "nope")
	lan := &mockTransport{kind: transport.KindLAN, sendErr: rejection}
	cloud := &mockTransport{kind: transport.KindCloud, sendErr: rejection}
	d := NewDispatcher(fastConfig(), NewHealthStore(0), lan, cloud)

	outcome, err := d.ExecuteCommand(context.Background(), dualDevice(), powerOn())
	if err != nil {
		t.Fatalf("ExecuteCommand failed: %v", err)
	}

	if outcome.Verdict != VerdictFailed {
		t.Errorf("expected failed, got %q", outcome.Verdict)
	}
	if !errors.Is(outcome.Err, transport.ErrRejected) {
		t.Errorf("expected rejection error surfaced, got %v", outcome.Err)
	}
	if outcome.Transport != "" {
		t.Errorf("no transport accepted; expected empty transport, got %q", outcome.Transport)
	}
}

func TestExecuteCommandIdempotent(t *testing.T) {
	// Issuing the identical command against an already matching device
	// verifies both times.
	lan := &mockTransport{kind: transport.KindLAN, observations: []*transport.ObservedState{observedOn()}}
	d := NewDispatcher(fastConfig(), NewHealthStore(0), lan)

	dev := dualDevice()
	for i := 0; i < 2; i++ {
		outcome, err := d.ExecuteCommand(context.Background(), dev, powerOn())
		if err != nil {
			t.Fatalf("ExecuteCommand %d failed: %v", i+1, err)
		}
		if outcome.Verdict != VerdictVerified {
			t.Errorf("run %d: expected verified, got %q", i+1, outcome.Verdict)
		}
	}
}

func TestExecuteCommandPanicBecomesTypedOutcome(t *testing.T) {
	lan := &mockTransport{kind: transport.KindLAN, sendPanic: true}
	cloud := &mockTransport{kind: transport.KindCloud, observations: []*transport.ObservedState{observedOn()}}
	d := NewDispatcher(fastConfig(), NewHealthStore(0), lan, cloud)

	outcome, err := d.ExecuteCommand(context.Background(), dualDevice(), powerOn())
	if err != nil {
		t.Fatalf("panic must not escape ExecuteCommand: %v", err)
	}
	if outcome.Verdict != VerdictVerified || outcome.Transport != transport.KindCloud {
		t.Errorf("expected cloud fallback after panic, got %q on %q", outcome.Verdict, outcome.Transport)
	}
}

func TestExecuteCommandCancellation(t *testing.T) {
	lan := &mockTransport{kind: transport.KindLAN, observations: []*transport.ObservedState{observedOff()}}
	cfg := fastConfig()
	cfg.LANSettleDelay = 10 * time.Second
	health := NewHealthStore(0)
	d := NewDispatcher(cfg, health, lan)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	dev := dualDevice()
	start := time.Now()
	_, err := d.ExecuteCommand(ctx, dev, powerOn())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("cancellation did not interrupt the settle delay")
	}

	// Abandonment must not mark the transport failed
	if h := health.Get(dev.ID, transport.KindLAN); h.State != HealthHealthy {
		t.Errorf("abandoned command must not downgrade health, got %q", h.State)
	}
}

func TestExecuteCommandSkipsUnreachableLAN(t *testing.T) {
	lan := &mockTransport{kind: transport.KindLAN, observations: []*transport.ObservedState{observedOn()}}
	cloud := &mockTransport{kind: transport.KindCloud, observations: []*transport.ObservedState{observedOn()}}
	health := NewHealthStore(time.Hour)

	dev := dualDevice()
	health.MarkFailure(dev.ID, transport.KindLAN)
	health.MarkFailure(dev.ID, transport.KindLAN) // now unreachable

	d := NewDispatcher(fastConfig(), health, lan, cloud)
	outcome, err := d.ExecuteCommand(context.Background(), dev, powerOn())
	if err != nil {
		t.Fatalf("ExecuteCommand failed: %v", err)
	}

	lanSends, _ := lan.counts()
	if lanSends != 0 {
		t.Error("lan marked unreachable must be skipped")
	}
	if outcome.Transport != transport.KindCloud {
		t.Errorf("expected cloud, got %q", outcome.Transport)
	}
}

func TestExecuteCommandEmptyDesired(t *testing.T) {
	d := NewDispatcher(fastConfig(), NewHealthStore(0), &mockTransport{kind: transport.KindLAN})

	_, err := d.ExecuteCommand(context.Background(), dualDevice(), transport.DesiredState{})
	if !errors.Is(err, ErrEmptyCommand) {
		t.Errorf("expected ErrEmptyCommand, got %v", err)
	}

	_, err = d.ExecuteCommand(context.Background(), nil, powerOn())
	if !errors.Is(err, ErrNilDevice) {
		t.Errorf("expected ErrNilDevice, got %v", err)
	}
}

func TestExecuteCommandEventSink(t *testing.T) {
	lan := &mockTransport{kind: transport.KindLAN, observations: []*transport.ObservedState{observedOn()}}
	d := NewDispatcher(fastConfig(), NewHealthStore(0), lan)

	sink := &recordingSink{}
	d.SetEventSink(sink)

	if _, err := d.ExecuteCommand(context.Background(), dualDevice(), powerOn()); err != nil {
		t.Fatalf("ExecuteCommand failed: %v", err)
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.outcomes) != 1 {
		t.Fatalf("expected 1 outcome event, got %d", len(sink.outcomes))
	}
	if sink.outcomes[0].Verdict != VerdictVerified {
		t.Errorf("unexpected outcome verdict %q", sink.outcomes[0].Verdict)
	}
	if len(sink.observed) != 1 {
		t.Errorf("expected 1 observation event, got %d", len(sink.observed))
	}
}

func TestQueryStateFallsBack(t *testing.T) {
	lan := &mockTransport{kind: transport.KindLAN, queryErr: transport.ErrUnreachable}
	cloud := &mockTransport{kind: transport.KindCloud, observations: []*transport.ObservedState{observedOn()}}
	health := NewHealthStore(0)
	d := NewDispatcher(fastConfig(), health, lan, cloud)

	dev := dualDevice()
	obs, err := d.QueryState(context.Background(), dev)
	if err != nil {
		t.Fatalf("QueryState failed: %v", err)
	}
	if obs.Transport != transport.KindCloud {
		t.Errorf("expected cloud observation, got %q", obs.Transport)
	}
	if h := health.Get(dev.ID, transport.KindLAN); h.State != HealthDegraded {
		t.Errorf("expected lan downgraded, got %q", h.State)
	}
}

func TestQueryStateAllFail(t *testing.T) {
	lan := &mockTransport{kind: transport.KindLAN, queryErr: transport.ErrUnreachable}
	cloud := &mockTransport{kind: transport.KindCloud, queryErr: transport.ErrUnreachable}
	d := NewDispatcher(fastConfig(), NewHealthStore(0), lan, cloud)

	_, err := d.QueryState(context.Background(), dualDevice())
	if !errors.Is(err, transport.ErrUnreachable) {
		t.Errorf("expected ErrUnreachable, got %v", err)
	}
}

func TestConcurrentCommandsDifferentDevices(t *testing.T) {
	lan := &mockTransport{kind: transport.KindLAN, observations: []*transport.ObservedState{observedOn()}}
	d := NewDispatcher(fastConfig(), NewHealthStore(0), lan)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			dev := dualDevice()
			dev.ID = dev.ID + string(rune('a'+n))
			outcome, err := d.ExecuteCommand(context.Background(), dev, powerOn())
			if err != nil {
				errs <- err
				return
			}
			if outcome.Verdict != VerdictVerified {
				errs <- errors.New("expected verified outcome")
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}
