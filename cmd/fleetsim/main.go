// FleetSim Core - Fleet Telemetry Synthesizer
//
// This is the main entry point for the FleetSim daemon. FleetSim
// synthesizes device readings from fleet reference data on a fixed
// cadence and publishes them over MQTT:
//   - Reference cache mirroring the PostgreSQL document store
//   - Change-driven and poll-driven cache refresh
//   - Resilient delivery pipeline with retry and lazy reconnect
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/lib/pq"

	"github.com/fleetsim/fleetsim-core/internal/api"
	"github.com/fleetsim/fleetsim-core/internal/infrastructure/config"
	"github.com/fleetsim/fleetsim-core/internal/infrastructure/database"
	"github.com/fleetsim/fleetsim-core/internal/infrastructure/influxdb"
	"github.com/fleetsim/fleetsim-core/internal/infrastructure/logging"
	"github.com/fleetsim/fleetsim-core/internal/infrastructure/mqtt"
	"github.com/fleetsim/fleetsim-core/internal/orchestrator"
	"github.com/fleetsim/fleetsim-core/internal/publisher"
	"github.com/fleetsim/fleetsim-core/internal/refcache"
	"github.com/fleetsim/fleetsim-core/internal/telemetry"
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
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - args: Command-line arguments after the binary name
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, args []string) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting FleetSim Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
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

	// Resolve the tick interval: the single optional CLI argument
	// overrides the configured cadence.
	tickInterval := resolveTickInterval(args, cfg.Scheduler.TickInterval.Std(), log)

	// Open reference store
	db, err := database.Open(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("opening reference store: %w", err)
	}
	defer func() {
		log.Info("closing reference store")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing reference store", "error", closeErr)
		}
	}()
	log.Info("reference store connected")

	// Initialise reference cache
	store := refcache.NewPostgresStore(db.DB)
	cache := refcache.New(store, cfg.Scheduler.CachePollInterval.Std())
	cache.SetLogger(log)

	// Listen for device-type change notifications
	listener, err := db.NewListener(cfg.Store.NotifyChannel, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.Warn("store listener event", "event", ev, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("listening for store changes: %w", err)
	}
	watcher := refcache.NewWatcher(listener, cache)
	watcher.SetLogger(log)

	// Create MQTT client. No connection is made yet: the pipeline dials
	// lazily on first delivery, so a missing broker degrades instead of
	// aborting startup.
	mqttClient := mqtt.New(cfg.MQTT)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		)
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()

	// Build delivery pipeline
	transport := publisher.NewMQTTTransport(mqttClient, cfg.MQTT.Topic, byte(cfg.MQTT.QoS))
	pipeline := publisher.New(transport,
		cfg.Publisher.Slots,
		cfg.Publisher.MaxRetries,
		float64(cfg.Publisher.BackoffBase),
	)
	pipeline.SetLogger(log)

	// Connect to InfluxDB readings archive (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
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
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Start ops API (optional)
	if cfg.API.Enabled {
		apiServer, apiErr := api.New(api.Deps{
			Config:   cfg,
			Cache:    cache,
			Pipeline: pipeline,
			Broker:   mqttClient,
			Version:  version,
		})
		if apiErr != nil {
			return fmt.Errorf("building ops API: %w", apiErr)
		}
		apiServer.SetLogger(log)
		apiServer.Start()
		defer func() {
			log.Info("stopping ops API")
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error stopping ops API", "error", closeErr)
			}
		}()
	} else {
		log.Info("ops API disabled")
	}

	// Build the synthesis cycle
	generator := telemetry.NewGenerator()
	generator.SetLogger(log)

	var archiver orchestrator.Archiver
	if influxClient != nil {
		archiver = influxClient
	}
	orch := orchestrator.New(cache, generator, pipeline, archiver, tickInterval)
	orch.SetLogger(log)

	// Start background refresh machinery and the pipeline
	go cache.Run(ctx)
	go watcher.Run(ctx)
	pipeline.Start(ctx)
	defer func() {
		log.Info("stopping delivery pipeline")
		pipeline.Close() //nolint:errcheck // Close never fails
	}()

	log.Info("initialisation complete, starting synthesis cycle",
		"tick_interval", tickInterval,
	)

	// Blocks until ctx is cancelled. The initial reference load happens
	// inside Run and is fatal on failure.
	if err := orch.Run(ctx); err != nil {
		return fmt.Errorf("synthesis cycle: %w", err)
	}

	log.Info("FleetSim Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses FLEETSIM_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("FLEETSIM_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// resolveTickInterval applies the optional positional CLI argument over
// the configured cadence.
//
// The argument accepts Go duration syntax ("10s", "1m") or a bare integer
// meaning seconds. An unparseable argument logs a warning and falls back
// to the configured value rather than aborting.
func resolveTickInterval(args []string, configured time.Duration, log *logging.Logger) time.Duration {
	if len(args) == 0 || args[0] == "" {
		return configured
	}
	arg := args[0]

	if d, err := time.ParseDuration(arg); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(arg); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}

	log.Warn("unparseable tick interval argument, using configured value",
		"arg", arg,
		"configured", configured,
	)
	return configured
}
