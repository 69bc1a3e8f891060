package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteCommandOutcome records one executed command.
//
// The verdict tag carries the verification result (verified,
// unverified, failed), transport carries which path the command was
// accepted on (lan, cloud, or empty when no path accepted it).
// Mismatches is the number of fields still differing after the final
// verification poll. The write is non-blocking.
func (c *Client) WriteCommandOutcome(deviceID, verdict, transport string, latency time.Duration, mismatches int) {
	if !c.IsConnected() {
		return
	}

	if transport == "" {
		transport = "none"
	}

	point := write.NewPoint(
		"command_outcome",
		map[string]string{
			"device_id": deviceID,
			"verdict":   verdict,
			"transport": transport,
		},
		map[string]interface{}{
			"latency_ms": float64(latency.Milliseconds()),
			"mismatches": mismatches,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteTransportHealth records a health state change for one
// (device, transport) path. State is healthy, degraded, or unreachable.
func (c *Client) WriteTransportHealth(deviceID, transport, state string, consecutiveFailures int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"transport_health",
		map[string]string{
			"device_id": deviceID,
			"transport": transport,
		},
		map[string]interface{}{
			"state":                state,
			"consecutive_failures": consecutiveFailures,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteObservedState records the numeric channels of an observed
// device state. Fields left nil are omitted from the point.
func (c *Client) WriteObservedState(deviceID, transport string, power *bool, brightness *int, colorTempK *int) {
	if !c.IsConnected() {
		return
	}

	fields := map[string]interface{}{}
	if power != nil {
		on := 0
		if *power {
			on = 1
		}
		fields["power"] = on
	}
	if brightness != nil {
		fields["brightness"] = *brightness
	}
	if colorTempK != nil {
		fields["color_temp_k"] = *colorTempK
	}
	if len(fields) == 0 {
		return
	}

	point := write.NewPoint(
		"device_state",
		map[string]string{
			"device_id": deviceID,
			"transport": transport,
		},
		fields,
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
// Tags should stay low cardinality; fields carry the actual data.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
// Use this when the timestamp is not "now".
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
