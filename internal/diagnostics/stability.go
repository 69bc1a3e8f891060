package diagnostics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/nerrad567/lumen-core/internal/device"
)

// Defaults for a stability check run.
const (
	DefaultFetches    = 3
	DefaultFetchDelay = 1 * time.Second
)

// Logger defines the logging interface used by the checker.
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

// CloudLister is the slice of the cloud adapter the checker needs.
type CloudLister interface {
	ListDevices(ctx context.Context) ([]json.RawMessage, error)
	ListScenes(ctx context.Context, dev *device.Device) ([]json.RawMessage, error)
	ListDIYScenes(ctx context.Context, dev *device.Device) ([]json.RawMessage, error)
}

// Comparison is the result of comparing two fetches of the same
// endpoint. Items are matched by canonical JSON form, so ordering and
// key order differences do not count as drift.
type Comparison struct {
	// TotalFirst and TotalSecond are the item counts of each fetch.
	TotalFirst  int `json:"total_first"`
	TotalSecond int `json:"total_second"`

	// OnlyInFirst and OnlyInSecond enumerate the exact symmetric
	// difference, in canonical form, sorted for determinism.
	OnlyInFirst  []json.RawMessage `json:"only_in_first"`
	OnlyInSecond []json.RawMessage `json:"only_in_second"`

	// IsIdentical is true when the symmetric difference is empty.
	IsIdentical bool `json:"is_identical"`
}

// Report summarises one stability check: N identical fetches of one
// endpoint, each compared against the first.
type Report struct {
	Endpoint    string       `json:"endpoint"`
	DeviceID    string       `json:"device_id,omitempty"`
	Fetches     int          `json:"fetches"`
	Stable      bool         `json:"stable"`
	Comparisons []Comparison `json:"comparisons"`
	StartedAt   time.Time    `json:"started_at"`
	Duration    time.Duration `json:"duration"`
}

// Checker probes the cloud API for response drift: the upstream API has
// been observed returning different result sets for identical
// successive requests. The checker only detects and surfaces this; it
// makes no attempt to repair it.
type Checker struct {
	lister  CloudLister
	fetches int
	delay   time.Duration
	logger  Logger
}

// NewChecker creates a stability checker. Zero fetches or delay use the
// defaults.
func NewChecker(lister CloudLister, fetches int, delay time.Duration) *Checker {
	if fetches < 2 {
		fetches = DefaultFetches
	}
	if delay <= 0 {
		delay = DefaultFetchDelay
	}
	return &Checker{
		lister:  lister,
		fetches: fetches,
		delay:   delay,
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the checker.
func (c *Checker) SetLogger(logger Logger) {
	c.logger = logger
}

// CheckDevices runs the stability check against the device list endpoint.
func (c *Checker) CheckDevices(ctx context.Context) (*Report, error) {
	return c.run(ctx, "user/devices", "", func(ctx context.Context) ([]json.RawMessage, error) {
		return c.lister.ListDevices(ctx)
	})
}

// CheckScenes runs the stability check against the built-in scene list
// for one device.
func (c *Checker) CheckScenes(ctx context.Context, dev *device.Device) (*Report, error) {
	return c.run(ctx, "device/scenes", dev.ID, func(ctx context.Context) ([]json.RawMessage, error) {
		return c.lister.ListScenes(ctx, dev)
	})
}

// CheckDIYScenes runs the stability check against the user-created
// scene list for one device.
func (c *Checker) CheckDIYScenes(ctx context.Context, dev *device.Device) (*Report, error) {
	return c.run(ctx, "device/diy-scenes", dev.ID, func(ctx context.Context) ([]json.RawMessage, error) {
		return c.lister.ListDIYScenes(ctx, dev)
	})
}

func (c *Checker) run(ctx context.Context, endpoint, deviceID string, fetch func(context.Context) ([]json.RawMessage, error)) (*Report, error) {
	start := time.Now()

	results := make([][]json.RawMessage, 0, c.fetches)
	for i := 0; i < c.fetches; i++ {
		if i > 0 {
			if err := sleepCtx(ctx, c.delay); err != nil {
				return nil, err
			}
		}

		items, err := fetch(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch %d of %s: %w", i+1, endpoint, err)
		}
		c.logger.Debug("stability fetch complete", "endpoint", endpoint, "fetch", i+1, "items", len(items))
		results = append(results, items)
	}

	report := &Report{
		Endpoint:  endpoint,
		DeviceID:  deviceID,
		Fetches:   c.fetches,
		Stable:    true,
		StartedAt: start.UTC(),
	}

	for i := 1; i < len(results); i++ {
		cmp, err := CompareLists(results[0], results[i])
		if err != nil {
			return nil, fmt.Errorf("comparing fetch 1 and %d: %w", i+1, err)
		}
		report.Comparisons = append(report.Comparisons, cmp)
		if !cmp.IsIdentical {
			report.Stable = false
			c.logger.Warn("api response drift detected",
				"endpoint", endpoint,
				"only_in_first", len(cmp.OnlyInFirst),
				"only_in_second", len(cmp.OnlyInSecond))
		}
	}

	report.Duration = time.Since(start)
	return report, nil
}

// CompareLists compares two JSON item lists as sets of canonical
// documents and enumerates the exact symmetric difference. Key order
// and list order never count as differences.
func CompareLists(first, second []json.RawMessage) (Comparison, error) {
	firstSet, err := canonicalSet(first)
	if err != nil {
		return Comparison{}, err
	}
	secondSet, err := canonicalSet(second)
	if err != nil {
		return Comparison{}, err
	}

	cmp := Comparison{
		TotalFirst:  len(first),
		TotalSecond: len(second),
	}

	for key := range firstSet {
		if _, ok := secondSet[key]; !ok {
			cmp.OnlyInFirst = append(cmp.OnlyInFirst, json.RawMessage(key))
		}
	}
	for key := range secondSet {
		if _, ok := firstSet[key]; !ok {
			cmp.OnlyInSecond = append(cmp.OnlyInSecond, json.RawMessage(key))
		}
	}

	sortRaw(cmp.OnlyInFirst)
	sortRaw(cmp.OnlyInSecond)
	cmp.IsIdentical = len(cmp.OnlyInFirst) == 0 && len(cmp.OnlyInSecond) == 0

	return cmp, nil
}

// canonicalSet maps each item to its canonical JSON form. Unmarshalling
// into any and re-marshalling sorts object keys, making byte equality a
// structural equality.
func canonicalSet(items []json.RawMessage) (map[string]struct{}, error) {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		var v any
		if err := json.Unmarshal(item, &v); err != nil {
			return nil, fmt.Errorf("parsing item: %w", err)
		}
		canonical, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("canonicalising item: %w", err)
		}
		set[string(canonical)] = struct{}{}
	}
	return set, nil
}

func sortRaw(items []json.RawMessage) {
	sort.Slice(items, func(i, j int) bool {
		return bytes.Compare(items[i], items[j]) < 0
	})
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
