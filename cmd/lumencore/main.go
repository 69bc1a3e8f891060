// Lumen Core - smart lighting command dispatch and verification.
//
// Lumen Core sits between callers that want a light to be in a given
// state and the two unreliable paths that can make it so: vendor UDP
// control on the LAN and the vendor Cloud HTTPS API. Every command is
// dispatched, then verified by polling the device until the observed
// state matches the request or the retry budget runs out.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/lumen-core/migrations"

	"github.com/nerrad567/lumen-core/internal/api"
	"github.com/nerrad567/lumen-core/internal/device"
	"github.com/nerrad567/lumen-core/internal/diagnostics"
	"github.com/nerrad567/lumen-core/internal/dispatch"
	"github.com/nerrad567/lumen-core/internal/infrastructure/config"
	"github.com/nerrad567/lumen-core/internal/infrastructure/database"
	"github.com/nerrad567/lumen-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/lumen-core/internal/infrastructure/logging"
	"github.com/nerrad567/lumen-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/lumen-core/internal/transport"
	"github.com/nerrad567/lumen-core/internal/transport/cloud"
	"github.com/nerrad567/lumen-core/internal/transport/lan"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Lumen Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Device registry
	deviceRepo := device.NewSQLiteRepository(db.DB)
	registry := device.NewRegistry(deviceRepo)
	registry.SetLogger(log)

	if refreshErr := registry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading device registry: %w", refreshErr)
	}
	log.Info("device registry initialised", "devices", registry.GetDeviceCount())

	commandLog := device.NewSQLiteCommandLogRepository(db.DB)
	if retention := cfg.GetCommandLogRetention(); retention > 0 {
		go runCommandLogPruner(ctx, commandLog, pruneInterval, retention, log.With("component", "command_log"))
		log.Info("command log pruner started", "retention", retention)
	}

	// Transports: LAN first, cloud fallback.
	lanAdapter := lan.New(lan.Config{
		ControlPort:  cfg.LAN.ControlPort,
		ResponsePort: cfg.LAN.ResponsePort,
		Timeout:      cfg.GetLANTimeout(),
	})
	lanAdapter.SetLogger(log.With("component", "lan"))
	defer func() {
		if closeErr := lanAdapter.Close(); closeErr != nil {
			log.Error("error closing LAN adapter", "error", closeErr)
		}
	}()

	cloudAdapter := cloud.New(cloud.Config{
		APIKey:  cfg.Cloud.APIKey,
		BaseURL: cfg.Cloud.BaseURL,
		Timeout: cfg.GetCloudTimeout(),
	})
	cloudAdapter.SetLogger(log.With("component", "cloud"))

	// MQTT telemetry (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.With("component", "mqtt"))
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT connected")
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	// InfluxDB metrics (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Dispatcher with telemetry sink and health change fan-out.
	healthStore := dispatch.NewHealthStore(cfg.GetHealthDecay())

	dispatcher := dispatch.NewDispatcher(dispatch.Config{
		LANSettleDelay:   cfg.GetLANSettleDelay(),
		CloudSettleDelay: cfg.GetCloudSettleDelay(),
		PollInterval:     cfg.GetPollInterval(),
		MaxPollRetries:   cfg.Dispatch.MaxPollRetries,
		Tolerances: dispatch.Tolerances{
			Brightness:   cfg.Tolerances.Brightness,
			ColorChannel: cfg.Tolerances.ColorChannel,
			ColorTemp:    cfg.Tolerances.ColorTemp,
		},
	}, healthStore, lanAdapter, cloudAdapter)
	dispatcher.SetLogger(log.With("component", "dispatch"))

	sink := &telemetrySink{
		registry:   registry,
		commandLog: commandLog,
		health:     healthStore,
		mqtt:       mqttClient,
		influx:     influxClient,
		log:        log.With("component", "telemetry"),
	}
	dispatcher.SetEventSink(sink)
	healthStore.SetOnChange(sink.TransportHealthChanged)

	// Cloud stability checker for on-demand diagnostics.
	checker := diagnostics.NewChecker(cloudAdapter, diagnostics.DefaultFetches, diagnostics.DefaultFetchDelay)
	checker.SetLogger(log.With("component", "diagnostics"))

	// HTTP API
	server, err := api.New(api.Deps{
		Config:     cfg.API,
		Logger:     log.With("component", "api"),
		Registry:   registry,
		Dispatcher: dispatcher,
		CommandLog: commandLog,
		Stability:  checker,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// API server, InfluxDB, MQTT, LAN adapter, database.

	log.Info("Lumen Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses the LUMEN_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("LUMEN_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
// Optional clients may be nil when disabled in config.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

// interface conformance checks
var (
	_ api.Dispatcher          = (*dispatch.Dispatcher)(nil)
	_ api.StabilityChecker    = (*diagnostics.Checker)(nil)
	_ transport.Transport     = (*lan.Adapter)(nil)
	_ transport.Transport     = (*cloud.Adapter)(nil)
	_ diagnostics.CloudLister = (*cloud.Adapter)(nil)
)
