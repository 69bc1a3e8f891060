package dispatch

import (
	"sync"
	"time"

	"github.com/nerrad567/lumen-core/internal/transport"
)

// HealthState is the rolling status of one (device, transport) path.
type HealthState string

// Health states.
const (
	HealthHealthy     HealthState = "healthy"
	HealthDegraded    HealthState = "degraded"
	HealthUnreachable HealthState = "unreachable"
)

// DefaultHealthDecay is how long an unreachable mark persists before it
// relaxes to degraded, making the transport eligible again.
const DefaultHealthDecay = 60 * time.Second

// unreachableThreshold is the consecutive failure count at which a path
// is marked unreachable rather than degraded.
const unreachableThreshold = 2

// TransportHealth is one path's status snapshot. Values are copies;
// mutating a returned TransportHealth has no effect on the store.
type TransportHealth struct {
	State               HealthState `json:"state"`
	LastSuccess         time.Time   `json:"last_success,omitempty"`
	LastFailure         time.Time   `json:"last_failure,omitempty"`
	ConsecutiveFailures int         `json:"consecutive_failures"`
}

// HealthChangeFunc is notified when a path's state changes.
type HealthChangeFunc func(deviceID string, kind transport.Kind, prev, next HealthState)

// HealthStore tracks per-(device, transport) health. Health biases
// transport ordering only; it is never a permanent veto, because an
// unreachable mark decays to degraded after the configured interval.
//
// Updates use atomic replace-on-write per key: readers always see a
// complete snapshot, never a partially updated entry. Safe for
// concurrent use. Tests inject a fresh instance per case.
type HealthStore struct {
	mu       sync.RWMutex
	entries  map[healthKey]TransportHealth
	decay    time.Duration
	now      func() time.Time
	onChange HealthChangeFunc
}

type healthKey struct {
	deviceID string
	kind     transport.Kind
}

// NewHealthStore creates a health store. A zero decay uses the default.
func NewHealthStore(decay time.Duration) *HealthStore {
	if decay <= 0 {
		decay = DefaultHealthDecay
	}
	return &HealthStore{
		entries: make(map[healthKey]TransportHealth),
		decay:   decay,
		now:     time.Now,
	}
}

// SetOnChange registers a callback invoked whenever a path's state
// flips. Set before concurrent use.
func (s *HealthStore) SetOnChange(fn HealthChangeFunc) {
	s.onChange = fn
}

// Get returns the current health for a path, applying time decay:
// an unreachable mark older than the decay interval reads as degraded.
// Unknown paths read as healthy.
func (s *HealthStore) Get(deviceID string, kind transport.Kind) TransportHealth {
	s.mu.RLock()
	entry, ok := s.entries[healthKey{deviceID, kind}]
	s.mu.RUnlock()

	if !ok {
		return TransportHealth{State: HealthHealthy}
	}

	if entry.State == HealthUnreachable && s.now().Sub(entry.LastFailure) > s.decay {
		entry.State = HealthDegraded
	}
	return entry
}

// MarkSuccess records a successful interaction, resetting the path to
// healthy.
func (s *HealthStore) MarkSuccess(deviceID string, kind transport.Kind) {
	key := healthKey{deviceID, kind}

	s.mu.Lock()
	old := s.entries[key]
	updated := TransportHealth{
		State:               HealthHealthy,
		LastSuccess:         s.now().UTC(),
		LastFailure:         old.LastFailure,
		ConsecutiveFailures: 0,
	}
	s.entries[key] = updated
	s.mu.Unlock()

	s.notify(deviceID, kind, old.State, updated.State)
}

// MarkFailure records a failed interaction. One failure degrades the
// path; repeated consecutive failures mark it unreachable.
func (s *HealthStore) MarkFailure(deviceID string, kind transport.Kind) {
	key := healthKey{deviceID, kind}

	s.mu.Lock()
	old := s.entries[key]
	failures := old.ConsecutiveFailures + 1
	state := HealthDegraded
	if failures >= unreachableThreshold {
		state = HealthUnreachable
	}
	updated := TransportHealth{
		State:               state,
		LastSuccess:         old.LastSuccess,
		LastFailure:         s.now().UTC(),
		ConsecutiveFailures: failures,
	}
	s.entries[key] = updated
	s.mu.Unlock()

	s.notify(deviceID, kind, old.State, updated.State)
}

// Reset clears all recorded health, making every path healthy again.
func (s *HealthStore) Reset() {
	s.mu.Lock()
	s.entries = make(map[healthKey]TransportHealth)
	s.mu.Unlock()
}

// Snapshot returns the health of both transports for a device.
func (s *HealthStore) Snapshot(deviceID string) map[transport.Kind]TransportHealth {
	return map[transport.Kind]TransportHealth{
		transport.KindLAN:   s.Get(deviceID, transport.KindLAN),
		transport.KindCloud: s.Get(deviceID, transport.KindCloud),
	}
}

func (s *HealthStore) notify(deviceID string, kind transport.Kind, prev, next HealthState) {
	if prev == "" {
		prev = HealthHealthy
	}
	if s.onChange != nil && prev != next {
		s.onChange(deviceID, kind, prev, next)
	}
}
