package diagnostics

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/lumen-core/internal/device"
)

func raw(items ...string) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(items))
	for _, item := range items {
		out = append(out, json.RawMessage(item))
	}
	return out
}

func TestCompareListsIdentical(t *testing.T) {
	a := raw(`{"id":1,"name":"lamp"}`, `{"id":2,"name":"strip"}`)
	b := raw(`{"id":1,"name":"lamp"}`, `{"id":2,"name":"strip"}`)

	cmp, err := CompareLists(a, b)
	if err != nil {
		t.Fatalf("CompareLists() error = %v", err)
	}
	if !cmp.IsIdentical {
		t.Error("expected identical lists")
	}
	if len(cmp.OnlyInFirst) != 0 || len(cmp.OnlyInSecond) != 0 {
		t.Errorf("expected empty differences, got %d/%d", len(cmp.OnlyInFirst), len(cmp.OnlyInSecond))
	}
	if cmp.TotalFirst != 2 || cmp.TotalSecond != 2 {
		t.Errorf("totals = %d/%d, want 2/2", cmp.TotalFirst, cmp.TotalSecond)
	}
}

func TestCompareListsIgnoresOrder(t *testing.T) {
	a := raw(`{"id":1}`, `{"id":2}`)
	b := raw(`{"id":2}`, `{"id":1}`)

	cmp, err := CompareLists(a, b)
	if err != nil {
		t.Fatalf("CompareLists() error = %v", err)
	}
	if !cmp.IsIdentical {
		t.Error("list order should not count as drift")
	}
}

func TestCompareListsIgnoresKeyOrder(t *testing.T) {
	a := raw(`{"id":1,"name":"lamp"}`)
	b := raw(`{"name":"lamp","id":1}`)

	cmp, err := CompareLists(a, b)
	if err != nil {
		t.Fatalf("CompareLists() error = %v", err)
	}
	if !cmp.IsIdentical {
		t.Error("key order should not count as drift")
	}
}

func TestCompareListsSymmetricDifference(t *testing.T) {
	a := raw(`{"id":1}`, `{"id":2}`, `{"id":3}`)
	b := raw(`{"id":2}`, `{"id":3}`, `{"id":4}`)

	cmp, err := CompareLists(a, b)
	if err != nil {
		t.Fatalf("CompareLists() error = %v", err)
	}
	if cmp.IsIdentical {
		t.Error("expected drift")
	}
	if len(cmp.OnlyInFirst) != 1 || string(cmp.OnlyInFirst[0]) != `{"id":1}` {
		t.Errorf("OnlyInFirst = %v, want [{\"id\":1}]", cmp.OnlyInFirst)
	}
	if len(cmp.OnlyInSecond) != 1 || string(cmp.OnlyInSecond[0]) != `{"id":4}` {
		t.Errorf("OnlyInSecond = %v, want [{\"id\":4}]", cmp.OnlyInSecond)
	}
}

func TestCompareListsNestedStructures(t *testing.T) {
	a := raw(`{"id":1,"caps":[{"type":"on_off"},{"type":"range"}]}`)
	b := raw(`{"id":1,"caps":[{"type":"on_off"}]}`)

	cmp, err := CompareLists(a, b)
	if err != nil {
		t.Fatalf("CompareLists() error = %v", err)
	}
	if cmp.IsIdentical {
		t.Error("nested capability difference must count as drift")
	}
}

func TestCompareListsEmpty(t *testing.T) {
	cmp, err := CompareLists(nil, nil)
	if err != nil {
		t.Fatalf("CompareLists() error = %v", err)
	}
	if !cmp.IsIdentical {
		t.Error("two empty lists are identical")
	}
}

func TestCompareListsInvalidJSON(t *testing.T) {
	if _, err := CompareLists(raw(`{broken`), nil); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

// mockLister returns scripted results per call, in order. The last
// script entry repeats once exhausted.
type mockLister struct {
	deviceResults [][]json.RawMessage
	deviceErr     error
	sceneResults  [][]json.RawMessage
	calls         int
	sceneCalls    int
}

func (m *mockLister) take(results [][]json.RawMessage, n int) []json.RawMessage {
	if len(results) == 0 {
		return nil
	}
	if n >= len(results) {
		n = len(results) - 1
	}
	return results[n]
}

func (m *mockLister) ListDevices(ctx context.Context) ([]json.RawMessage, error) {
	if m.deviceErr != nil {
		return nil, m.deviceErr
	}
	out := m.take(m.deviceResults, m.calls)
	m.calls++
	return out, nil
}

func (m *mockLister) ListScenes(ctx context.Context, dev *device.Device) ([]json.RawMessage, error) {
	out := m.take(m.sceneResults, m.sceneCalls)
	m.sceneCalls++
	return out, nil
}

func (m *mockLister) ListDIYScenes(ctx context.Context, dev *device.Device) ([]json.RawMessage, error) {
	return m.ListScenes(ctx, dev)
}

func testChecker(lister CloudLister, fetches int) *Checker {
	c := NewChecker(lister, fetches, time.Millisecond)
	return c
}

func TestCheckDevicesStable(t *testing.T) {
	lister := &mockLister{
		deviceResults: [][]json.RawMessage{raw(`{"id":1}`, `{"id":2}`)},
	}
	report, err := testChecker(lister, 3).CheckDevices(context.Background())
	if err != nil {
		t.Fatalf("CheckDevices() error = %v", err)
	}
	if !report.Stable {
		t.Error("expected stable report")
	}
	if report.Fetches != 3 {
		t.Errorf("Fetches = %d, want 3", report.Fetches)
	}
	if len(report.Comparisons) != 2 {
		t.Errorf("Comparisons = %d, want 2", len(report.Comparisons))
	}
	if lister.calls != 3 {
		t.Errorf("lister called %d times, want 3", lister.calls)
	}
	if report.Endpoint != "user/devices" {
		t.Errorf("Endpoint = %q", report.Endpoint)
	}
}

func TestCheckDevicesDrift(t *testing.T) {
	lister := &mockLister{
		deviceResults: [][]json.RawMessage{
			raw(`{"id":1}`, `{"id":2}`),
			raw(`{"id":1}`, `{"id":2}`),
			raw(`{"id":1}`),
		},
	}
	report, err := testChecker(lister, 3).CheckDevices(context.Background())
	if err != nil {
		t.Fatalf("CheckDevices() error = %v", err)
	}
	if report.Stable {
		t.Error("expected drift to mark the report unstable")
	}
	if report.Comparisons[0].IsIdentical != true {
		t.Error("fetch 2 matched fetch 1, comparison should be identical")
	}
	if report.Comparisons[1].IsIdentical {
		t.Error("fetch 3 dropped an item, comparison should differ")
	}
	if got := len(report.Comparisons[1].OnlyInFirst); got != 1 {
		t.Errorf("OnlyInFirst = %d items, want 1", got)
	}
}

func TestCheckDevicesFetchError(t *testing.T) {
	wantErr := errors.New("api down")
	lister := &mockLister{deviceErr: wantErr}
	if _, err := testChecker(lister, 3).CheckDevices(context.Background()); !errors.Is(err, wantErr) {
		t.Errorf("error = %v, want wrapped %v", err, wantErr)
	}
}

func TestCheckDevicesContextCancelled(t *testing.T) {
	lister := &mockLister{
		deviceResults: [][]json.RawMessage{raw(`{"id":1}`)},
	}
	checker := NewChecker(lister, 3, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	if _, err := checker.CheckDevices(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestCheckScenesCarriesDeviceID(t *testing.T) {
	lister := &mockLister{
		sceneResults: [][]json.RawMessage{raw(`{"id":100,"name":"sunset"}`)},
	}
	dev := &device.Device{ID: "dev-1"}
	report, err := testChecker(lister, 2).CheckScenes(context.Background(), dev)
	if err != nil {
		t.Fatalf("CheckScenes() error = %v", err)
	}
	if report.DeviceID != "dev-1" {
		t.Errorf("DeviceID = %q, want dev-1", report.DeviceID)
	}
	if report.Endpoint != "device/scenes" {
		t.Errorf("Endpoint = %q", report.Endpoint)
	}
	if !report.Stable {
		t.Error("expected stable report")
	}
}

func TestNewCheckerDefaults(t *testing.T) {
	c := NewChecker(&mockLister{}, 0, 0)
	if c.fetches != DefaultFetches {
		t.Errorf("fetches = %d, want %d", c.fetches, DefaultFetches)
	}
	if c.delay != DefaultFetchDelay {
		t.Errorf("delay = %v, want %v", c.delay, DefaultFetchDelay)
	}
}
