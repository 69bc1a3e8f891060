package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
site:
  id: "test-site"
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
cloud:
  api_key: "test-api-key"
lan:
  control_port: 4003
  response_port: 4002
api:
  host: "0.0.0.0"
  port: 8080
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.ID != "test-site" {
		t.Errorf("Site.ID = %q, want %q", cfg.Site.ID, "test-site")
	}
	if cfg.Cloud.APIKey != "test-api-key" {
		t.Errorf("Cloud.APIKey = %q, want %q", cfg.Cloud.APIKey, "test-api-key")
	}
	// Defaults survive a partial file.
	if cfg.Cloud.BaseURL != "https://openapi.api.govee.com" {
		t.Errorf("Cloud.BaseURL = %q, want default", cfg.Cloud.BaseURL)
	}
	if cfg.Dispatch.MaxPollRetries != 1 {
		t.Errorf("Dispatch.MaxPollRetries = %d, want 1", cfg.Dispatch.MaxPollRetries)
	}
	if cfg.Tolerances.Brightness != 5 {
		t.Errorf("Tolerances.Brightness = %d, want 5", cfg.Tolerances.Brightness)
	}
	if cfg.Tolerances.ColorChannel != 10 {
		t.Errorf("Tolerances.ColorChannel = %d, want 10", cfg.Tolerances.ColorChannel)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_MissingAPIKey(t *testing.T) {
	content := `
site:
  id: "test-site"
database:
  path: "/tmp/test.db"
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Fatal("Load() expected validation error for missing cloud.api_key, got nil")
	}
	if !strings.Contains(err.Error(), "cloud.api_key") {
		t.Errorf("error %q does not mention cloud.api_key", err)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	content := `
site:
  id: "test-site"
database:
  path: "/tmp/test.db"
cloud:
  api_key: "file-key"
`
	t.Setenv("LUMEN_CLOUD_API_KEY", "env-key")
	t.Setenv("LUMEN_DATABASE_PATH", "/tmp/override.db")

	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Cloud.APIKey != "env-key" {
		t.Errorf("Cloud.APIKey = %q, want env override %q", cfg.Cloud.APIKey, "env-key")
	}
	if cfg.Database.Path != "/tmp/override.db" {
		t.Errorf("Database.Path = %q, want env override", cfg.Database.Path)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := defaultConfig()
		cfg.Cloud.APIKey = "test-api-key"
		return cfg
	}

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid defaults with api key",
			modify:  func(_ *Config) {},
			wantErr: false,
		},
		{
			name:    "empty site id",
			modify:  func(c *Config) { c.Site.ID = "" },
			wantErr: true,
		},
		{
			name:    "empty database path",
			modify:  func(c *Config) { c.Database.Path = "" },
			wantErr: true,
		},
		{
			name:    "missing cloud api key",
			modify:  func(c *Config) { c.Cloud.APIKey = "" },
			wantErr: true,
		},
		{
			name:    "invalid control port",
			modify:  func(c *Config) { c.LAN.ControlPort = 0 },
			wantErr: true,
		},
		{
			name:    "negative poll retries",
			modify:  func(c *Config) { c.Dispatch.MaxPollRetries = -1 },
			wantErr: true,
		},
		{
			name:    "negative command log retention",
			modify:  func(c *Config) { c.Database.CommandLogRetention = -1 },
			wantErr: true,
		},
		{
			name:    "negative brightness tolerance",
			modify:  func(c *Config) { c.Tolerances.Brightness = -1 },
			wantErr: true,
		},
		{
			name:    "invalid api port",
			modify:  func(c *Config) { c.API.Port = 70000 },
			wantErr: true,
		},
		{
			name: "invalid qos only checked when mqtt enabled",
			modify: func(c *Config) {
				c.MQTT.Enabled = false
				c.MQTT.QoS = 7
			},
			wantErr: false,
		},
		{
			name: "invalid qos with mqtt enabled",
			modify: func(c *Config) {
				c.MQTT.Enabled = true
				c.MQTT.QoS = 7
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_DurationHelpers(t *testing.T) {
	cfg := defaultConfig()

	if got := cfg.GetLANSettleDelay(); got != 500*time.Millisecond {
		t.Errorf("GetLANSettleDelay() = %v, want 500ms", got)
	}
	if got := cfg.GetCloudSettleDelay(); got != 2*time.Second {
		t.Errorf("GetCloudSettleDelay() = %v, want 2s", got)
	}
	if got := cfg.GetLANTimeout(); got != time.Second {
		t.Errorf("GetLANTimeout() = %v, want 1s", got)
	}
	if got := cfg.GetCloudTimeout(); got != 10*time.Second {
		t.Errorf("GetCloudTimeout() = %v, want 10s", got)
	}
	if got := cfg.GetHealthDecay(); got != 60*time.Second {
		t.Errorf("GetHealthDecay() = %v, want 60s", got)
	}
	if got := cfg.GetCommandLogRetention(); got != 30*24*time.Hour {
		t.Errorf("GetCommandLogRetention() = %v, want 720h", got)
	}

	cfg.Database.CommandLogRetention = 0
	if got := cfg.GetCommandLogRetention(); got != 0 {
		t.Errorf("GetCommandLogRetention() = %v, want 0 when disabled", got)
	}
}
