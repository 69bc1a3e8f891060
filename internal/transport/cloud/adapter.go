package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/lumen-core/internal/device"
	"github.com/nerrad567/lumen-core/internal/transport"
)

// DefaultBaseURL is the vendor openapi endpoint.
const DefaultBaseURL = "https://openapi.api.govee.com"

// DefaultTimeout bounds a single API round-trip.
const DefaultTimeout = 10 * time.Second

const (
	pathControl   = "/router/api/v1/device/control"
	pathState     = "/router/api/v1/device/state"
	pathDevices   = "/router/api/v1/user/devices"
	pathScenes    = "/router/api/v1/device/scenes"
	pathDIYScenes = "/router/api/v1/device/diy-scenes"

	apiKeyHeader = "Govee-API-Key"

	maxResponseBytes = 1 << 20 // 1 MiB
)

// Logger defines the logging interface used by the adapter.
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

// Config holds the cloud adapter settings.
type Config struct {
	// APIKey authenticates every request. Required.
	APIKey string

	// BaseURL overrides the vendor endpoint (tests).
	BaseURL string

	// Timeout bounds a single API round-trip.
	Timeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
}

// Adapter implements transport.Transport over the vendor HTTPS API.
//
// "Accepted" means the API returned a success code; the API's view of
// device state may lag the real device by an interval the adapter
// cannot control. The adapter never retries.
type Adapter struct {
	cfg    Config
	client *http.Client
	logger Logger
}

// New creates a cloud adapter.
func New(cfg Config) *Adapter {
	cfg.applyDefaults()
	return &Adapter{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the adapter.
func (a *Adapter) SetLogger(logger Logger) {
	a.logger = logger
}

// Kind identifies this adapter as the cloud transport.
func (a *Adapter) Kind() transport.Kind {
	return transport.KindCloud
}

// Send issues one control request per asserted capability.
// Capabilities the device does not declare are rejected before any
// network traffic, with a structured reason rather than a message match.
func (a *Adapter) Send(ctx context.Context, dev *device.Device, desired transport.DesiredState) error {
	if err := a.checkCapabilities(dev, desired); err != nil {
		return err
	}

	caps := commandCapabilities(desired)
	if len(caps) == 0 {
		return transport.NewRejectedError(transport.ReasonBadRequest, 0, 0, "no controllable fields in command")
	}

	for _, capability := range caps {
		req := controlRequest{
			RequestID: uuid.New().String(),
			Payload: controlPayload{
				SKU:        dev.SKU,
				Device:     dev.ID,
				Capability: capability,
			},
		}

		if _, err := a.post(ctx, pathControl, req); err != nil {
			return err
		}
	}

	a.logger.Debug("cloud command sent", "device", dev.ID, "capabilities", len(caps))
	return nil
}

// Query fetches the API's last-known device state.
func (a *Adapter) Query(ctx context.Context, dev *device.Device) (*transport.ObservedState, error) {
	req := stateRequest{
		RequestID: uuid.New().String(),
		Payload:   statePayload{SKU: dev.SKU, Device: dev.ID},
	}

	resp, err := a.post(ctx, pathState, req)
	if err != nil {
		return nil, err
	}

	var payload stateResponsePayload
	if err := json.Unmarshal(resp.Payload, &payload); err != nil {
		return nil, fmt.Errorf("unmarshalling state payload: %w", err)
	}

	obs := payload.toObserved()
	obs.ObservedAt = time.Now().UTC()
	return obs, nil
}

// ListDevices fetches the account's device list as raw JSON records.
// Used by the diagnostics stability checker, which needs byte-level
// comparability rather than a typed model.
func (a *Adapter) ListDevices(ctx context.Context) ([]json.RawMessage, error) {
	resp, err := a.get(ctx, pathDevices)
	if err != nil {
		return nil, err
	}
	return decodeRawList(resp.Data)
}

// ListScenes fetches the built-in scene list for a device as raw JSON.
func (a *Adapter) ListScenes(ctx context.Context, dev *device.Device) ([]json.RawMessage, error) {
	return a.listSceneEndpoint(ctx, pathScenes, dev)
}

// ListDIYScenes fetches the user-created scene list for a device as raw JSON.
func (a *Adapter) ListDIYScenes(ctx context.Context, dev *device.Device) ([]json.RawMessage, error) {
	return a.listSceneEndpoint(ctx, pathDIYScenes, dev)
}

func (a *Adapter) listSceneEndpoint(ctx context.Context, path string, dev *device.Device) ([]json.RawMessage, error) {
	req := stateRequest{
		RequestID: uuid.New().String(),
		Payload:   statePayload{SKU: dev.SKU, Device: dev.ID},
	}

	resp, err := a.post(ctx, path, req)
	if err != nil {
		return nil, err
	}

	// Scene payloads nest the list under capabilities
	var payload struct {
		Capabilities []json.RawMessage `json:"capabilities"`
	}
	if err := json.Unmarshal(resp.Payload, &payload); err != nil {
		return nil, fmt.Errorf("unmarshalling scene payload: %w", err)
	}
	return payload.Capabilities, nil
}

// checkCapabilities rejects asserted fields the device does not declare.
func (a *Adapter) checkCapabilities(dev *device.Device, desired transport.DesiredState) error {
	checks := []struct {
		asserted bool
		cap      device.Capability
		field    string
	}{
		{desired.Power != nil, device.CapabilityPower, transport.FieldPower},
		{desired.Brightness != nil, device.CapabilityBrightness, transport.FieldBrightness},
		{desired.Color != nil, device.CapabilityColorRGB, transport.FieldColor},
		{desired.ColorTempK != nil, device.CapabilityColorTemp, transport.FieldColorTemp},
		{desired.Scene != nil, device.CapabilityScene, transport.FieldScene},
	}

	for _, c := range checks {
		if c.asserted && !dev.HasCapability(c.cap) {
			return transport.NewRejectedError(transport.ReasonUnsupportedCapability, 0, 0,
				fmt.Sprintf("device %s does not support %s", dev.SKU, c.field))
		}
	}
	return nil
}

// post sends a JSON request and decodes the envelope.
func (a *Adapter) post(ctx context.Context, path string, body any) (*apiResponse, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshalling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return a.do(req)
}

// get sends a GET request and decodes the envelope.
func (a *Adapter) get(ctx context.Context, path string) (*apiResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.BaseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	return a.do(req)
}

func (a *Adapter) do(req *http.Request) (*apiResponse, error) {
	req.Header.Set(apiKeyHeader, a.cfg.APIKey)

	resp, err := a.client.Do(req)
	if err != nil {
		if req.Context().Err() != nil {
			return nil, req.Context().Err()
		}
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, transport.ErrUnreachable)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", transport.ErrUnreachable)
	}

	var envelope apiResponse
	if len(raw) > 0 {
		// A body that fails to parse on an error status still maps to a
		// structured rejection below
		_ = json.Unmarshal(raw, &envelope)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, rejectionFromStatus(resp.StatusCode, envelope.Code, envelope.message())
	}
	if envelope.Code != 0 && envelope.Code != 200 {
		return nil, rejectionFromStatus(resp.StatusCode, envelope.Code, envelope.message())
	}

	return &envelope, nil
}

// rejectionFromStatus maps HTTP and body-level codes to a structured
// rejection reason. Server-side failures are unreachable, not rejected:
// the command may succeed on another transport or a later call.
func rejectionFromStatus(status, apiCode int, message string) error {
	code := status
	if code == 200 && apiCode != 0 {
		code = apiCode
	}

	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return transport.NewRejectedError(transport.ReasonAuth, status, apiCode, message)
	case code == http.StatusTooManyRequests:
		return transport.NewRejectedError(transport.ReasonRateLimited, status, apiCode, message)
	case code >= 500:
		return fmt.Errorf("api returned %d: %w", code, transport.ErrUnreachable)
	case code >= 400:
		return transport.NewRejectedError(transport.ReasonBadRequest, status, apiCode, message)
	default:
		return transport.NewRejectedError(transport.ReasonUnknown, status, apiCode, message)
	}
}

// decodeRawList splits a JSON array into raw elements.
func decodeRawList(data json.RawMessage) ([]json.RawMessage, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("unmarshalling list: %w", err)
	}
	return items, nil
}
