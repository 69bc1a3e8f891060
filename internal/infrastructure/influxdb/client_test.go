package influxdb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/lumen-core/internal/infrastructure/config"
)

func testConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           "http://127.0.0.1:8086",
		Token:         "lumen-dev-token",
		Org:           "lumen",
		Bucket:        "metrics",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

func TestConnectDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	if _, err := Connect(cfg); !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnectUnreachable(t *testing.T) {
	cfg := testConfig()
	// Nothing listens on port 1, so the ping fails fast.
	cfg.URL = "http://127.0.0.1:1"

	if _, err := Connect(cfg); !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestHealthCheckDisconnected(t *testing.T) {
	c := &Client{}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestCloseNil(t *testing.T) {
	c := &Client{}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on zero client error = %v, want nil", err)
	}
}

// Writes on a disconnected client must be silent no-ops: dispatch never
// depends on the metrics pipeline being up.
func TestWritesWhenDisconnected(t *testing.T) {
	c := &Client{}

	on := true
	brightness := 80

	c.WriteCommandOutcome("dev-1", "verified", "lan", 750*time.Millisecond, 0)
	c.WriteTransportHealth("dev-1", "lan", "degraded", 1)
	c.WriteObservedState("dev-1", "lan", &on, &brightness, nil)
	c.WritePoint("custom", map[string]string{"k": "v"}, map[string]interface{}{"f": 1.0})
	c.WritePointWithTime("custom", nil, map[string]interface{}{"f": 1.0}, time.Now())
	c.Flush()

	if c.IsConnected() {
		t.Error("zero client reports connected")
	}
}
