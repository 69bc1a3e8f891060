// Package influxdb records command and transport telemetry in InfluxDB v2.
//
// Three measurements are written:
//
//	command_outcome   one point per executed command (verdict, transport, latency)
//	transport_health  one point per health state change of a (device, transport) path
//	device_state      numeric channels of observed device state
//
// Writes are batched and non-blocking; a slow or unavailable metrics
// backend never delays command dispatch. Async write failures surface
// through the SetOnError callback.
//
// Usage:
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // metrics turned off, run without them
//	}
//	defer client.Close()
//
//	client.WriteCommandOutcome("living-room-lamp", "verified", "lan", latency, 0)
package influxdb
