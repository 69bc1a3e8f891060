package main

import (
	"context"

	"github.com/nerrad567/lumen-core/internal/device"
	"github.com/nerrad567/lumen-core/internal/dispatch"
	"github.com/nerrad567/lumen-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/lumen-core/internal/infrastructure/logging"
	"github.com/nerrad567/lumen-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/lumen-core/internal/transport"
)

// telemetrySink fans dispatch events out to the command log, the device
// registry, and the optional MQTT and InfluxDB clients. Failures are
// logged and swallowed: telemetry never fails a command.
type telemetrySink struct {
	registry   *device.Registry
	commandLog device.CommandLogRepository
	health     *dispatch.HealthStore
	mqtt       *mqtt.Client     // nil when disabled
	influx     *influxdb.Client // nil when disabled
	log        *logging.Logger
}

// CommandExecuted records the outcome in the command log and forwards
// it to MQTT and InfluxDB.
func (s *telemetrySink) CommandExecuted(ctx context.Context, dev *device.Device, desired transport.DesiredState, outcome *dispatch.CommandOutcome) {
	entry := &device.CommandLogEntry{
		DeviceID:   dev.ID,
		Desired:    desiredToState(desired),
		Verdict:    string(outcome.Verdict),
		Transport:  string(outcome.Transport),
		Mismatched: outcome.Mismatched,
		LatencyMS:  outcome.Latency.Milliseconds(),
	}
	if outcome.Err != nil {
		entry.Error = outcome.Err.Error()
	}

	if err := s.commandLog.RecordCommand(ctx, entry); err != nil {
		s.log.Error("recording command failed", "device", dev.ID, "error", err)
	}

	if s.mqtt != nil {
		topic := mqtt.Topics{}.DeviceCommand(dev.ID)
		if err := s.mqtt.PublishJSON(topic, entry, false); err != nil {
			s.log.Warn("publishing command outcome failed", "device", dev.ID, "error", err)
		}
	}

	if s.influx != nil {
		s.influx.WriteCommandOutcome(dev.ID, string(outcome.Verdict), string(outcome.Transport),
			outcome.Latency, len(outcome.Mismatched))
	}
}

// StateObserved merges a fresh snapshot into the registry's last known
// state, marks the device online, and forwards the snapshot.
func (s *telemetrySink) StateObserved(ctx context.Context, dev *device.Device, observed *transport.ObservedState) {
	state := observedToState(observed)
	if len(state) > 0 {
		if err := s.registry.SetDeviceState(ctx, dev.ID, state); err != nil {
			s.log.Error("persisting observed state failed", "device", dev.ID, "error", err)
		}
	}
	if err := s.registry.SetDeviceHealth(ctx, dev.ID, device.HealthStatusOnline); err != nil {
		s.log.Error("updating device health failed", "device", dev.ID, "error", err)
	}

	if s.mqtt != nil {
		topic := mqtt.Topics{}.DeviceState(dev.ID)
		if err := s.mqtt.PublishJSON(topic, observed, true); err != nil {
			s.log.Warn("publishing device state failed", "device", dev.ID, "error", err)
		}
	}

	if s.influx != nil {
		s.influx.WriteObservedState(dev.ID, string(observed.Transport),
			observed.Power, observed.Brightness, observed.ColorTempK)
	}
}

// TransportHealthChanged forwards path health transitions. Wired to the
// health store's change callback.
func (s *telemetrySink) TransportHealthChanged(deviceID string, kind transport.Kind, prev, next dispatch.HealthState) {
	s.log.Info("transport health changed",
		"device", deviceID, "transport", string(kind),
		"from", string(prev), "to", string(next))

	if s.mqtt != nil {
		topic := mqtt.Topics{}.DeviceTransportHealth(deviceID, string(kind))
		payload := map[string]string{
			"state":    string(next),
			"previous": string(prev),
		}
		if err := s.mqtt.PublishJSON(topic, payload, false); err != nil {
			s.log.Warn("publishing transport health failed", "device", deviceID, "error", err)
		}
	}

	if s.influx != nil {
		failures := s.health.Get(deviceID, kind).ConsecutiveFailures
		s.influx.WriteTransportHealth(deviceID, string(kind), string(next), failures)
	}
}

// desiredToState converts a command payload to registry state keys.
func desiredToState(d transport.DesiredState) device.State {
	st := device.State{}
	if d.Power != nil {
		st[transport.FieldPower] = *d.Power
	}
	if d.Brightness != nil {
		st[transport.FieldBrightness] = *d.Brightness
	}
	if d.Color != nil {
		st[transport.FieldColor] = map[string]any{
			"r": int(d.Color.R), "g": int(d.Color.G), "b": int(d.Color.B),
		}
	}
	if d.ColorTempK != nil {
		st[transport.FieldColorTemp] = *d.ColorTempK
	}
	if d.Scene != nil {
		st[transport.FieldScene] = *d.Scene
	}
	return st
}

// observedToState converts an observed snapshot to registry state keys.
// Nil fields are omitted so the merge leaves them untouched.
func observedToState(o *transport.ObservedState) device.State {
	st := device.State{}
	if o.Power != nil {
		st[transport.FieldPower] = *o.Power
	}
	if o.Brightness != nil {
		st[transport.FieldBrightness] = *o.Brightness
	}
	if o.Color != nil {
		st[transport.FieldColor] = map[string]any{
			"r": int(o.Color.R), "g": int(o.Color.G), "b": int(o.Color.B),
		}
	}
	if o.ColorTempK != nil {
		st[transport.FieldColorTemp] = *o.ColorTempK
	}
	return st
}
