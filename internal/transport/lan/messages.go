package lan

import (
	"encoding/json"
	"fmt"

	"github.com/nerrad567/lumen-core/internal/transport"
)

// Wire command names.
const (
	cmdTurn       = "turn"
	cmdBrightness = "brightness"
	cmdColor      = "colorwc"
	cmdStatus     = "devStatus"
)

// message is the envelope every LAN datagram uses, in both directions.
//
//	{"msg": {"cmd": "turn", "data": {"value": 1}}}
type message struct {
	Msg body `json:"msg"`
}

type body struct {
	Cmd  string          `json:"cmd"`
	Data json.RawMessage `json:"data"`
}

type turnData struct {
	Value int `json:"value"`
}

type brightnessData struct {
	Value int `json:"value"`
}

type colorData struct {
	Color          rgbData `json:"color"`
	ColorTemKelvin int     `json:"colorTemInKelvin"`
}

type rgbData struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
}

// statusData is the devStatus response payload.
type statusData struct {
	OnOff          *int     `json:"onOff"`
	Brightness     *int     `json:"brightness"`
	Color          *rgbData `json:"color"`
	ColorTemKelvin *int     `json:"colorTemInKelvin"`
}

// encodeMessage builds a wire datagram for the given command.
func encodeMessage(cmd string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshalling %s data: %w", cmd, err)
	}
	payload, err := json.Marshal(message{Msg: body{Cmd: cmd, Data: raw}})
	if err != nil {
		return nil, fmt.Errorf("marshalling %s message: %w", cmd, err)
	}
	return payload, nil
}

// commandDatagrams converts a desired state into the wire datagrams to
// emit, one per protocol command, in a fixed order.
func commandDatagrams(desired transport.DesiredState) ([][]byte, error) {
	var datagrams [][]byte

	if desired.Power != nil {
		value := 0
		if *desired.Power {
			value = 1
		}
		d, err := encodeMessage(cmdTurn, turnData{Value: value})
		if err != nil {
			return nil, err
		}
		datagrams = append(datagrams, d)
	}

	if desired.Brightness != nil {
		d, err := encodeMessage(cmdBrightness, brightnessData{Value: *desired.Brightness})
		if err != nil {
			return nil, err
		}
		datagrams = append(datagrams, d)
	}

	if desired.Color != nil {
		d, err := encodeMessage(cmdColor, colorData{
			Color: rgbData{R: int(desired.Color.R), G: int(desired.Color.G), B: int(desired.Color.B)},
		})
		if err != nil {
			return nil, err
		}
		datagrams = append(datagrams, d)
	}

	if desired.ColorTempK != nil {
		// Colour temperature rides the colorwc command with zeroed channels.
		d, err := encodeMessage(cmdColor, colorData{ColorTemKelvin: *desired.ColorTempK})
		if err != nil {
			return nil, err
		}
		datagrams = append(datagrams, d)
	}

	return datagrams, nil
}

// decodeStatus parses a devStatus response datagram.
func decodeStatus(raw []byte) (*statusData, error) {
	var env message
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("unmarshalling status envelope: %w", err)
	}
	if env.Msg.Cmd != cmdStatus {
		return nil, fmt.Errorf("unexpected response command %q", env.Msg.Cmd)
	}

	var status statusData
	if err := json.Unmarshal(env.Msg.Data, &status); err != nil {
		return nil, fmt.Errorf("unmarshalling status data: %w", err)
	}
	return &status, nil
}

// toObserved converts a status payload into the shared observed form.
func (s *statusData) toObserved() *transport.ObservedState {
	obs := &transport.ObservedState{Transport: transport.KindLAN}

	if s.OnOff != nil {
		on := *s.OnOff == 1
		obs.Power = &on
	}
	if s.Brightness != nil {
		level := *s.Brightness
		obs.Brightness = &level
	}
	if s.Color != nil {
		obs.Color = &transport.RGB{
			R: uint8(s.Color.R),
			G: uint8(s.Color.G),
			B: uint8(s.Color.B),
		}
	}
	if s.ColorTemKelvin != nil && *s.ColorTemKelvin > 0 {
		k := *s.ColorTemKelvin
		obs.ColorTempK = &k
	}

	return obs
}
