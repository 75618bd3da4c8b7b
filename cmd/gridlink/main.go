// GridLink Core - IEEE 2030.5 Resource Directory
//
// This is the main entry point for the GridLink Core server. GridLink
// serves the resource tree a 2030.5 client walks:
//   - Device capability, end devices and function set assignments
//   - DER programs, controls and curves with a running event lifecycle
//   - Mirror metering for clients that post their own readings
//
// Stores are held in memory and snapshotted to SQLite on every change.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	_ "github.com/nerrad567/gridlink-core/migrations"

	"github.com/nerrad567/gridlink-core/internal/api"
	"github.com/nerrad567/gridlink-core/internal/directory"
	"github.com/nerrad567/gridlink-core/internal/infrastructure/config"
	"github.com/nerrad567/gridlink-core/internal/infrastructure/database"
	"github.com/nerrad567/gridlink-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/gridlink-core/internal/infrastructure/logging"
	"github.com/nerrad567/gridlink-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/gridlink-core/internal/lifecycle"
	"github.com/nerrad567/gridlink-core/internal/persist"
	"github.com/nerrad567/gridlink-core/internal/telemetry"
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

// shutdownFlushTimeout bounds the final snapshot written on shutdown.
const shutdownFlushTimeout = 10 * time.Second

// options are the command-line flags.
type options struct {
	configPath  string
	cleanse     bool
	showVersion bool
}

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	if opts.showVersion {
		fmt.Printf("gridlink %s (commit %s, built %s)\n", version, commit, date)
		return
	}

	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// parseFlags reads the command line into options.
func parseFlags(args []string) (options, error) {
	var opts options

	flagSet := pflag.NewFlagSet("gridlink", pflag.ContinueOnError)
	flagSet.StringVarP(&opts.configPath, "config", "c", "", "path to the YAML config file (default: $GRIDLINK_CONFIG or "+defaultConfigPath+")")
	flagSet.BoolVar(&opts.cleanse, "cleanse", false, "empty every store before seeding")
	flagSet.BoolVar(&opts.showVersion, "version", false, "print version and exit")

	if err := flagSet.Parse(args); err != nil {
		return options{}, err
	}
	if extra := flagSet.Args(); len(extra) > 0 {
		return options{}, fmt.Errorf("unexpected argument: %s", extra[0])
	}
	return opts, nil
}

// purgeSnapshots drops every saved snapshot, including those of stores no
// longer in use, so a cleansed start hydrates nothing.
func purgeSnapshots(ctx context.Context, p *persist.SQLitePersister, log *logging.Logger) error {
	names, err := p.Stores(ctx)
	if err != nil {
		return fmt.Errorf("listing saved snapshots: %w", err)
	}
	if err := p.Purge(ctx); err != nil {
		return fmt.Errorf("purging saved snapshots: %w", err)
	}
	log.Info("saved snapshots purged", "stores", names)
	return nil
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - opts: Parsed command-line flags
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, opts options) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting GridLink Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath(opts.configPath)
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if opts.cleanse {
		cfg.Storage.Cleanse = true
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version, "server_id", cfg.Server.ID)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	loc, err := time.LoadLocation(cfg.Server.Timezone)
	if err != nil {
		return fmt.Errorf("loading server timezone: %w", err)
	}

	hub := persist.NewHub()
	hub.SetLogger(log.Component("persist"))

	var sinks telemetry.Multi

	// Open database (sqlite backend only)
	var db *database.DB
	if cfg.Storage.Backend == "sqlite" {
		db, err = database.Open(database.Config{
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

		persister := persist.NewSQLitePersister(db)
		if cfg.Storage.Cleanse {
			if purgeErr := purgeSnapshots(ctx, persister, log); purgeErr != nil {
				return purgeErr
			}
		}
		hub.Register(persister)
		sinks = append(sinks, telemetry.NewSQLiteSink(db))
	} else {
		hub.Register(persist.NewMemoryPersister())
		log.Info("using in-memory storage backend, state will not survive a restart")
	}

	// Connect to MQTT broker (optional)
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
		mqttClient.SetLogger(log.Component("mqtt"))
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		hub.Register(persist.NewMQTTNotifier(mqttClient))
		sinks = append(sinks, telemetry.NewMQTTSink(mqttClient))
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
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
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})

		sinks = append(sinks, telemetry.NewInfluxSink(influxClient))
	} else {
		log.Info("InfluxDB disabled")
	}

	clock := newClock(cfg.Lifecycle)

	dir := directory.New(hub, directory.Options{
		Clock:          clock,
		Sink:           sinks,
		MirrorPostRate: cfg.API.MirrorPostRate,
		Location:       loc,
		Logger:         log.Component("directory"),
	})
	if err := dir.Open(ctx); err != nil {
		return fmt.Errorf("hydrating stores: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownFlushTimeout)
		defer cancel()
		log.Info("flushing stores")
		if closeErr := dir.Close(flushCtx); closeErr != nil {
			log.Error("error flushing stores", "error", closeErr)
		}
	}()

	if err := dir.Seed(cfg); err != nil {
		return fmt.Errorf("seeding directory: %w", err)
	}
	log.Info("directory ready",
		"end_devices", dir.EndDevices.Count(),
		"fsas", dir.FSAs.Count(),
		"programs", dir.Lists.Size("/derp"),
	)

	if mqttClient != nil {
		if subErr := dir.SubscribeCommands(mqttClient, byte(cfg.MQTT.QoS)); subErr != nil {
			return fmt.Errorf("subscribing to MQTT commands: %w", subErr)
		}
	}

	// Start the control lifecycle
	engine := lifecycle.NewEngine(dir.Lists, clock, log.Component("lifecycle"))
	if mqttClient != nil {
		engine.AddObserver(lifecycle.NewMQTTEvents(mqttClient, log.Component("lifecycle")))
	}
	if influxClient != nil {
		engine.AddObserver(lifecycle.NewInfluxEvents(influxClient))
	}
	engineCtx, stopEngine := context.WithCancel(ctx)
	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		if runErr := engine.Run(engineCtx, cfg.GetTickInterval()); runErr != nil {
			log.Error("control lifecycle stopped with error", "error", runErr)
		}
	}()
	defer func() {
		stopEngine()
		<-engineDone
	}()

	// Start the HTTP API
	apiServer, err := api.New(api.Deps{
		Config:    cfg.API,
		Logger:    log.Component("api"),
		Directory: dir,
		Health:    hub,
		Version:   version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := apiServer.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, mqttClient, influxClient, apiServer); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order: API server, lifecycle engine,
	// store flush, InfluxDB, MQTT, database.

	return nil
}

// getConfigPath returns the configuration file path.
// The --config flag wins, then GRIDLINK_CONFIG, then the default.
func getConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if path := os.Getenv("GRIDLINK_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// newClock returns the clock shared by the directory and the lifecycle
// engine, so /tm always reports the tick controls are evaluated against.
func newClock(cfg config.LifecycleConfig) lifecycle.Clock {
	if !cfg.Simulated {
		return lifecycle.WallClock{}
	}
	start := cfg.StartTick
	if start == 0 {
		start = time.Now().Unix()
	}
	return lifecycle.NewSimulatedClock(start, 1)
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check (nil with the memory backend)
//   - mqttClient: MQTT client to check (nil if disabled)
//   - influxClient: InfluxDB client to check (nil if disabled)
//   - apiServer: HTTP API server to check
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client, apiServer *api.Server) error {
	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
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

	if err := apiServer.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}

	return nil
}
