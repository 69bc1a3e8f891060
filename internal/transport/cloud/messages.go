package cloud

import (
	"encoding/json"

	"github.com/nerrad567/lumen-core/internal/transport"
)

// Vendor capability type/instance identifiers.
const (
	capTypePower     = "devices.capabilities.on_off"
	capTypeRange     = "devices.capabilities.range"
	capTypeColor     = "devices.capabilities.color_setting"
	capTypeScene     = "devices.capabilities.dynamic_scene"
	instancePower    = "powerSwitch"
	instanceLevel    = "brightness"
	instanceColorRGB = "colorRgb"
	instanceColorTem = "colorTemperatureK"
	instanceScene    = "lightScene"
)

// apiCapability is one capability assertion in a control request or one
// capability report in a state response.
type apiCapability struct {
	Type     string    `json:"type"`
	Instance string    `json:"instance"`
	Value    any       `json:"value,omitempty"`
	State    *apiState `json:"state,omitempty"`
}

type apiState struct {
	Value json.RawMessage `json:"value"`
}

// controlRequest is the body of POST /router/api/v1/device/control.
type controlRequest struct {
	RequestID string         `json:"requestId"`
	Payload   controlPayload `json:"payload"`
}

type controlPayload struct {
	SKU        string        `json:"sku"`
	Device     string        `json:"device"`
	Capability apiCapability `json:"capability"`
}

// stateRequest is the body of POST /router/api/v1/device/state.
type stateRequest struct {
	RequestID string       `json:"requestId"`
	Payload   statePayload `json:"payload"`
}

type statePayload struct {
	SKU    string `json:"sku"`
	Device string `json:"device"`
}

// apiResponse is the envelope every endpoint returns. A body-level code
// of 200 means success regardless of payload shape.
type apiResponse struct {
	RequestID string          `json:"requestId,omitempty"`
	Code      int             `json:"code"`
	Message   string          `json:"message,omitempty"`
	Msg       string          `json:"msg,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

func (r *apiResponse) message() string {
	if r.Message != "" {
		return r.Message
	}
	return r.Msg
}

// stateResponsePayload is the payload of a device/state response.
type stateResponsePayload struct {
	SKU          string          `json:"sku"`
	Device       string          `json:"device"`
	Capabilities []apiCapability `json:"capabilities"`
}

// commandCapabilities converts a desired state into the capability
// assertions the control endpoint expects, one request per capability,
// in a fixed order.
func commandCapabilities(desired transport.DesiredState) []apiCapability {
	var caps []apiCapability

	if desired.Power != nil {
		value := 0
		if *desired.Power {
			value = 1
		}
		caps = append(caps, apiCapability{Type: capTypePower, Instance: instancePower, Value: value})
	}
	if desired.Brightness != nil {
		caps = append(caps, apiCapability{Type: capTypeRange, Instance: instanceLevel, Value: *desired.Brightness})
	}
	if desired.Color != nil {
		caps = append(caps, apiCapability{
			Type:     capTypeColor,
			Instance: instanceColorRGB,
			Value:    encodeRGB(*desired.Color),
		})
	}
	if desired.ColorTempK != nil {
		caps = append(caps, apiCapability{Type: capTypeColor, Instance: instanceColorTem, Value: *desired.ColorTempK})
	}
	if desired.Scene != nil {
		caps = append(caps, apiCapability{Type: capTypeScene, Instance: instanceScene, Value: *desired.Scene})
	}

	return caps
}

// encodeRGB packs colour channels into the vendor's single integer form.
func encodeRGB(c transport.RGB) int {
	return int(c.R)<<16 | int(c.G)<<8 | int(c.B)
}

// decodeRGB unpacks the vendor's integer colour form.
func decodeRGB(v int) transport.RGB {
	return transport.RGB{
		R: uint8(v >> 16 & 0xff),
		G: uint8(v >> 8 & 0xff),
		B: uint8(v & 0xff),
	}
}

// toObserved converts a state response into the shared observed form.
// Capabilities the API omitted stay nil.
func (p *stateResponsePayload) toObserved() *transport.ObservedState {
	obs := &transport.ObservedState{Transport: transport.KindCloud}

	for _, c := range p.Capabilities {
		if c.State == nil || len(c.State.Value) == 0 {
			continue
		}

		switch c.Instance {
		case instancePower:
			var v int
			if err := json.Unmarshal(c.State.Value, &v); err == nil {
				on := v == 1
				obs.Power = &on
			}
		case instanceLevel:
			var v int
			if err := json.Unmarshal(c.State.Value, &v); err == nil {
				obs.Brightness = &v
			}
		case instanceColorRGB:
			var v int
			if err := json.Unmarshal(c.State.Value, &v); err == nil {
				rgb := decodeRGB(v)
				obs.Color = &rgb
			}
		case instanceColorTem:
			var v int
			if err := json.Unmarshal(c.State.Value, &v); err == nil && v > 0 {
				obs.ColorTempK = &v
			}
		}
	}

	return obs
}
