package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Lumen Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site       SiteConfig       `yaml:"site"`
	Database   DatabaseConfig   `yaml:"database"`
	Cloud      CloudConfig      `yaml:"cloud"`
	LAN        LANConfig        `yaml:"lan"`
	Dispatch   DispatchConfig   `yaml:"dispatch"`
	Tolerances TolerancesConfig `yaml:"tolerances"`
	API        APIConfig        `yaml:"api"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
	// CommandLogRetention is how long command records are kept, in days.
	// Zero disables pruning.
	CommandLogRetention int `yaml:"command_log_retention"`
}

// CloudConfig contains the vendor Cloud API settings.
//
// The API key is the authentication credential for the HTTPS transport.
// It is deliberately not given a YAML default; set it in config or via
// the LUMEN_CLOUD_API_KEY environment variable.
type CloudConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	// Timeout is the per-request timeout in seconds. The Cloud API is an
	// external service and needs a longer budget than the LAN path.
	Timeout int `yaml:"timeout"`
}

// LANConfig contains the local UDP transport settings.
type LANConfig struct {
	// ControlPort is the UDP port devices listen on for commands.
	ControlPort int `yaml:"control_port"`
	// ResponsePort is the local UDP port devices send status replies to.
	// Set to 0 in tests to bind an ephemeral port.
	ResponsePort int `yaml:"response_port"`
	// Timeout is the status query timeout in milliseconds. LAN queries are
	// network-bound only, so this stays short.
	Timeout int `yaml:"timeout"`
}

// DispatchConfig contains command verification settings.
type DispatchConfig struct {
	// LANSettleDelay is the wait in milliseconds between sending a LAN
	// command and the first verification poll.
	LANSettleDelay int `yaml:"lan_settle_delay"`
	// CloudSettleDelay is the wait in milliseconds before the first poll on
	// the Cloud path. The vendor API lags real device state, so this is
	// longer than the LAN delay.
	CloudSettleDelay int `yaml:"cloud_settle_delay"`
	// PollInterval is the wait in milliseconds between verification polls.
	PollInterval int `yaml:"poll_interval"`
	// MaxPollRetries is the number of extra polls after the first mismatch.
	MaxPollRetries int `yaml:"max_poll_retries"`
	// HealthDecay is the time in seconds after which an unreachable
	// transport mark decays back to degraded and is retried.
	HealthDecay int `yaml:"health_decay"`
}

// TolerancesConfig contains state comparison tolerances.
type TolerancesConfig struct {
	// Brightness is the allowed deviation in percentage points.
	Brightness int `yaml:"brightness"`
	// ColorChannel is the allowed deviation per RGB channel (0-255 scale).
	ColorChannel int `yaml:"color_channel"`
	// ColorTemp is the allowed deviation in Kelvin.
	ColorTemp int `yaml:"color_temp"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Key      string           `yaml:"key"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// MQTTConfig contains MQTT broker connection settings.
// MQTT is outbound telemetry only; state observation stays pull-based.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: LUMEN_SECTION_KEY
// For example: LUMEN_CLOUD_API_KEY, LUMEN_DATABASE_PATH
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
//
// The verification defaults mirror observed device behaviour: 500ms settle
// on LAN, 2s on Cloud, one extra poll, tolerance 5 percentage points for
// brightness and 10 units per colour channel.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "site-001",
			Name: "Lumen",
		},
		Database: DatabaseConfig{
			Path:                "./data/lumen.db",
			WALMode:             true,
			BusyTimeout:         5,
			CommandLogRetention: 30,
		},
		Cloud: CloudConfig{
			BaseURL: "https://openapi.api.govee.com",
			Timeout: 10,
		},
		LAN: LANConfig{
			ControlPort:  4003,
			ResponsePort: 4002,
			Timeout:      1000,
		},
		Dispatch: DispatchConfig{
			LANSettleDelay:   500,
			CloudSettleDelay: 2000,
			PollInterval:     500,
			MaxPollRetries:   1,
			HealthDecay:      60,
		},
		Tolerances: TolerancesConfig{
			Brightness:   5,
			ColorChannel: 10,
			ColorTemp:    100,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "lumen-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: LUMEN_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LUMEN_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Credentials should come from the environment rather than sit in a
	// config file on disk.
	if v := os.Getenv("LUMEN_CLOUD_API_KEY"); v != "" {
		cfg.Cloud.APIKey = v
	}
	if v := os.Getenv("LUMEN_CLOUD_BASE_URL"); v != "" {
		cfg.Cloud.BaseURL = v
	}

	if v := os.Getenv("LUMEN_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("LUMEN_API_KEY"); v != "" {
		cfg.API.Key = v
	}

	if v := os.Getenv("LUMEN_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("LUMEN_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("LUMEN_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("LUMEN_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// A missing Cloud API key is a configuration error surfaced here, before
// any transport attempt is made.
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if c.Database.CommandLogRetention < 0 {
		errs = append(errs, "database.command_log_retention must not be negative")
	}

	if c.Cloud.APIKey == "" {
		errs = append(errs, "cloud.api_key is required (set LUMEN_CLOUD_API_KEY environment variable)")
	}
	if c.Cloud.BaseURL == "" {
		errs = append(errs, "cloud.base_url is required")
	}
	if c.Cloud.Timeout <= 0 {
		errs = append(errs, "cloud.timeout must be positive")
	}

	if c.LAN.ControlPort < 1 || c.LAN.ControlPort > 65535 {
		errs = append(errs, "lan.control_port must be between 1 and 65535")
	}
	if c.LAN.ResponsePort < 0 || c.LAN.ResponsePort > 65535 {
		errs = append(errs, "lan.response_port must be between 0 and 65535")
	}
	if c.LAN.Timeout <= 0 {
		errs = append(errs, "lan.timeout must be positive")
	}

	if c.Dispatch.MaxPollRetries < 0 {
		errs = append(errs, "dispatch.max_poll_retries must not be negative")
	}
	if c.Dispatch.LANSettleDelay < 0 || c.Dispatch.CloudSettleDelay < 0 {
		errs = append(errs, "dispatch settle delays must not be negative")
	}
	if c.Dispatch.PollInterval < 0 {
		errs = append(errs, "dispatch.poll_interval must not be negative")
	}

	if c.Tolerances.Brightness < 0 || c.Tolerances.ColorChannel < 0 || c.Tolerances.ColorTemp < 0 {
		errs = append(errs, "tolerances must not be negative")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.MQTT.Enabled && (c.MQTT.QoS < 0 || c.MQTT.QoS > 2) {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetCommandLogRetention returns the command log retention window as a
// Duration. Zero means pruning is disabled.
func (c *Config) GetCommandLogRetention() time.Duration {
	return time.Duration(c.Database.CommandLogRetention) * 24 * time.Hour
}

// GetCloudTimeout returns the Cloud request timeout as a Duration.
func (c *Config) GetCloudTimeout() time.Duration {
	return time.Duration(c.Cloud.Timeout) * time.Second
}

// GetLANTimeout returns the LAN query timeout as a Duration.
func (c *Config) GetLANTimeout() time.Duration {
	return time.Duration(c.LAN.Timeout) * time.Millisecond
}

// GetLANSettleDelay returns the LAN settle delay as a Duration.
func (c *Config) GetLANSettleDelay() time.Duration {
	return time.Duration(c.Dispatch.LANSettleDelay) * time.Millisecond
}

// GetCloudSettleDelay returns the Cloud settle delay as a Duration.
func (c *Config) GetCloudSettleDelay() time.Duration {
	return time.Duration(c.Dispatch.CloudSettleDelay) * time.Millisecond
}

// GetPollInterval returns the verification poll interval as a Duration.
func (c *Config) GetPollInterval() time.Duration {
	return time.Duration(c.Dispatch.PollInterval) * time.Millisecond
}

// GetHealthDecay returns the transport health decay window as a Duration.
func (c *Config) GetHealthDecay() time.Duration {
	return time.Duration(c.Dispatch.HealthDecay) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
