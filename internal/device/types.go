package device

import "time"

// Device represents a controllable light known to the registry.
//
// The ID is the vendor device identifier (for discovered devices) or a
// generated UUID (for manually registered ones). It is opaque to the rest
// of the system. A device record is immutable for the lifetime of a
// command: the dispatcher resolves it once and only reads it.
type Device struct {
	// Identity
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`

	// SKU is the vendor model string (e.g. "H6159"). The Cloud API
	// requires it alongside the device ID on every request.
	SKU string `json:"sku"`

	// LANAddress is the device's IP on the local network. Present only if
	// the device supports LAN control; its absence gates the LAN transport.
	LANAddress *string `json:"lan_address,omitempty"`

	// Capabilities lists which state fields are controllable.
	Capabilities []Capability `json:"capabilities"`

	// Last known state
	State          State      `json:"state"`
	StateUpdatedAt *time.Time `json:"state_updated_at,omitempty"`

	// Health monitoring
	HealthStatus   HealthStatus `json:"health_status"`
	HealthLastSeen *time.Time   `json:"health_last_seen,omitempty"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeepCopy creates a complete independent copy of the Device.
// All map and slice fields are cloned so modifications to the copy
// do not affect the original. This is essential for cache isolation.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}

	cpy := *d // Shallow copy of value fields

	cpy.State = deepCopyMap(d.State)

	if d.Capabilities != nil {
		cpy.Capabilities = make([]Capability, len(d.Capabilities))
		copy(cpy.Capabilities, d.Capabilities)
	}

	if d.LANAddress != nil {
		addr := *d.LANAddress
		cpy.LANAddress = &addr
	}

	// Pointer fields (*time.Time) don't need deep copy because time.Time
	// is immutable in Go

	return &cpy
}

// HasCapability reports whether the device declares the given capability.
func (d *Device) HasCapability(c Capability) bool {
	for _, cap := range d.Capabilities {
		if cap == c {
			return true
		}
	}
	return false
}

// LANCapable reports whether the device can be reached over the LAN
// transport. Devices without a LAN address are Cloud-only.
func (d *Device) LANCapable() bool {
	return d.LANAddress != nil && *d.LANAddress != ""
}

// deepCopyMap creates a deep copy of a map[string]any.
// Nested maps and slices are recursively copied.
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cpy := make(map[string]any, len(m))
	for k, v := range m {
		cpy[k] = deepCopyValue(v)
	}
	return cpy
}

// deepCopyValue recursively copies a value, handling nested maps and slices.
func deepCopyValue(v any) any {
	if v == nil {
		return nil
	}
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		cpy := make([]any, len(val))
		for i, elem := range val {
			cpy[i] = deepCopyValue(elem)
		}
		return cpy
	default:
		// Primitives (string, bool, int, float64, etc.) are safe to copy by value
		return v
	}
}

// State holds the last known device state as a JSON map.
//
// Example: {"power": true, "brightness": 75, "color": {"r": 255, "g": 0, "b": 0}}
type State map[string]any

// Capability represents a controllable state field.
type Capability string

// Capability constants.
const (
	CapabilityPower      Capability = "power"
	CapabilityBrightness Capability = "brightness"
	CapabilityColorRGB   Capability = "color_rgb"
	CapabilityColorTemp  Capability = "color_temp"
	CapabilityScene      Capability = "scene"
)

// AllCapabilities returns all valid capability values.
func AllCapabilities() []Capability {
	return []Capability{
		CapabilityPower, CapabilityBrightness, CapabilityColorRGB,
		CapabilityColorTemp, CapabilityScene,
	}
}

// HealthStatus represents the device health state.
type HealthStatus string

// HealthStatus constants.
const (
	HealthStatusOnline   HealthStatus = "online"
	HealthStatusOffline  HealthStatus = "offline"
	HealthStatusDegraded HealthStatus = "degraded"
	HealthStatusUnknown  HealthStatus = "unknown"
)

// AllHealthStatuses returns all valid health status values.
func AllHealthStatuses() []HealthStatus {
	return []HealthStatus{
		HealthStatusOnline, HealthStatusOffline, HealthStatusDegraded, HealthStatusUnknown,
	}
}
