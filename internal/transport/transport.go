package transport

import (
	"context"
	"time"

	"github.com/nerrad567/lumen-core/internal/device"
)

// Kind identifies a transport path. The set is closed: commands travel
// over the local network or the vendor cloud, nothing else.
type Kind string

// Transport kinds.
const (
	KindLAN   Kind = "lan"
	KindCloud Kind = "cloud"
)

// Field names used in desired/observed state fragments. These are the
// canonical names shared by the comparator, the command log, and the API.
const (
	FieldPower      = "power"
	FieldBrightness = "brightness"
	FieldColor      = "color"
	FieldColorTemp  = "color_temp"
	FieldScene      = "scene"
)

// RGB is a 24-bit colour value with each channel in 0-255.
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// DesiredState is a partial command payload. Only non-nil fields are
// asserted; nil fields are left untouched on the device.
//
// Semantic units are fixed: power is a boolean, brightness is a
// percentage (0-100), colour channels are 0-255, colour temperature is
// Kelvin, scene is a vendor scene identifier.
type DesiredState struct {
	Power      *bool  `json:"power,omitempty"`
	Brightness *int   `json:"brightness,omitempty"`
	Color      *RGB   `json:"color,omitempty"`
	ColorTempK *int   `json:"color_temp,omitempty"`
	Scene      *int64 `json:"scene,omitempty"`
}

// IsEmpty reports whether no fields are asserted.
func (d DesiredState) IsEmpty() bool {
	return d.Power == nil && d.Brightness == nil && d.Color == nil &&
		d.ColorTempK == nil && d.Scene == nil
}

// Fields returns the canonical names of the asserted fields.
func (d DesiredState) Fields() []string {
	var fields []string
	if d.Power != nil {
		fields = append(fields, FieldPower)
	}
	if d.Brightness != nil {
		fields = append(fields, FieldBrightness)
	}
	if d.Color != nil {
		fields = append(fields, FieldColor)
	}
	if d.ColorTempK != nil {
		fields = append(fields, FieldColorTemp)
	}
	if d.Scene != nil {
		fields = append(fields, FieldScene)
	}
	return fields
}

// ObservedState is a snapshot of device state as reported by one
// transport. Fields the device omitted from its response are nil.
// Scene is never observable: neither protocol reports the active scene.
type ObservedState struct {
	Power      *bool `json:"power,omitempty"`
	Brightness *int  `json:"brightness,omitempty"`
	Color      *RGB  `json:"color,omitempty"`
	ColorTempK *int  `json:"color_temp,omitempty"`

	// Transport is the path that produced this snapshot.
	Transport Kind `json:"transport"`

	// ObservedAt is when the snapshot was read (UTC).
	ObservedAt time.Time `json:"observed_at"`
}

// Transport is the uniform contract both adapters satisfy.
//
// Send delivers a command; a nil return means "accepted", which for LAN
// means only that the datagram was emitted. Errors are ErrUnreachable
// for network failures and *RejectedError for protocol-level refusals.
// Adapters never retry internally; all retry policy lives in the caller.
//
// Query returns the transport's view of current device state. Cloud
// responses may lag real device state by an API-side interval.
type Transport interface {
	Kind() Kind
	Send(ctx context.Context, dev *device.Device, desired DesiredState) error
	Query(ctx context.Context, dev *device.Device) (*ObservedState, error)
}
