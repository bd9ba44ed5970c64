// indiweb - INDI device server manager
//
// This is the main entry point for the INDI web manager. It supervises
// an indiserver process for a remote observatory: named equipment
// profiles, driver catalog, start/stop control over HTTP, and a
// WebSocket event feed.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/astrohub/indiweb-core/migrations"

	"github.com/astrohub/indiweb-core/internal/agent"
	"github.com/astrohub/indiweb-core/internal/api"
	"github.com/astrohub/indiweb-core/internal/driver"
	"github.com/astrohub/indiweb-core/internal/indiserver"
	"github.com/astrohub/indiweb-core/internal/infrastructure/config"
	"github.com/astrohub/indiweb-core/internal/infrastructure/database"
	"github.com/astrohub/indiweb-core/internal/infrastructure/logging"
	"github.com/astrohub/indiweb-core/internal/infrastructure/mqtt"
	"github.com/astrohub/indiweb-core/internal/infrastructure/tsdb"
	"github.com/astrohub/indiweb-core/internal/profile"
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

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting indiweb",
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

	// Open profile database
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

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	profileRepo := profile.NewSQLiteRepository(db.DB)

	// Load the driver catalog
	registry := driver.NewRegistry(cfg.INDI.DataDir)
	registry.SetLogger(log)
	if loadErr := registry.Load(); loadErr != nil {
		return fmt.Errorf("loading driver definitions: %w", loadErr)
	}
	log.Info("driver catalog loaded", "drivers", registry.Count())

	// Device server supervisor
	supervisor := indiserver.NewManager(indiserver.Config{
		Binary:          cfg.INDI.Binary,
		FIFOPath:        cfg.INDI.FIFOPath,
		ConfigDir:       cfg.INDI.ConfigDir,
		MaxClients:      cfg.INDI.MaxClients,
		StartTimeout:    cfg.INDI.StartTimeout,
		GracefulTimeout: cfg.INDI.GracefulTimeout,
	})
	supervisor.SetLogger(log)
	defer func() {
		if stopErr := supervisor.Stop(); stopErr != nil {
			log.Error("error stopping indiserver", "error", stopErr)
		}
	}()

	// INDIHub relay agent
	relayAgent := agent.NewManager(agent.Config{
		Binary:               cfg.Agent.Binary,
		INDIServerManagerURL: fmt.Sprintf("http://localhost:%d", cfg.Web.Port),
		GracefulTimeout:      cfg.INDI.GracefulTimeout,
	})
	relayAgent.SetLogger(log)
	defer func() {
		if stopErr := relayAgent.Stop(); stopErr != nil {
			log.Error("error stopping indihub agent", "error", stopErr)
		}
	}()

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		mqttClient.SetLogger(log)
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		if pubErr := mqttClient.PublishStatus(map[string]any{"online": true, "version": version}); pubErr != nil {
			log.Warn("publishing online status", "error", pubErr)
		}
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	var recorder *tsdb.Recorder
	if cfg.InfluxDB.Enabled {
		recorder, err = tsdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := recorder.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		recorder.SetOnError(func(err error) {
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

	// HTTP API server
	apiServer, err := api.New(api.Deps{
		Config:     cfg.Web,
		WS:         cfg.WebSocket,
		INDI:       cfg.INDI,
		System:     cfg.System,
		Logger:     log,
		Registry:   registry,
		Supervisor: supervisor,
		Agent:      relayAgent,
		Profiles:   profileRepo,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	// Layer stored custom drivers over the built-in catalog.
	if reloadErr := apiServer.ReloadCustomDrivers(ctx); reloadErr != nil {
		return fmt.Errorf("loading custom drivers: %w", reloadErr)
	}

	// Fan supervisor lifecycle events out to the WebSocket feed and
	// the optional MQTT/InfluxDB observers.
	supervisor.OnEvent(func(ev indiserver.Event) {
		apiServer.BroadcastEvent(ev)
		if mqttClient != nil {
			if pubErr := mqttClient.PublishEvent(ev); pubErr != nil {
				log.Warn("publishing event to MQTT", "error", pubErr)
			}
		}
		if recorder != nil {
			recorder.RecordEvent(string(ev.Type), ev.Label, ev.Port, ev.Time)
		}
	})

	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Periodic uptime samples for dashboards
	if recorder != nil {
		go recordUptime(ctx, recorder, supervisor)
	}

	// Start the first autostart profile, if any
	if autoErr := apiServer.Autostart(ctx); autoErr != nil {
		log.Error("autostart failed", "error", autoErr)
	}

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, apiServer, mqttClient, recorder); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	if mqttClient != nil {
		if pubErr := mqttClient.PublishStatus(map[string]any{"online": false}); pubErr != nil {
			log.Warn("publishing offline status", "error", pubErr)
		}
	}

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. InfluxDB (if enabled)
	// 3. MQTT (if enabled)
	// 4. indihub agent
	// 5. indiserver
	// 6. Database

	log.Info("indiweb stopped")
	return nil
}

// uptimeSampleInterval is how often the uptime recorder samples the
// supervisor.
const uptimeSampleInterval = time.Minute

// recordUptime periodically samples server liveness into InfluxDB.
func recordUptime(ctx context.Context, recorder *tsdb.Recorder, supervisor *indiserver.Manager) {
	ticker := time.NewTicker(uptimeSampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := supervisor.Stats()
			recorder.RecordUptime(supervisor.IsRunning(), stats.Uptime, len(supervisor.RunningDrivers()))
		}
	}
}

// getConfigPath returns the configuration file path.
// Uses INDIWEB_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("INDIWEB_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
// MQTT and InfluxDB are skipped when disabled.
func healthCheck(ctx context.Context, db *database.DB, apiServer *api.Server, mqttClient *mqtt.Client, recorder *tsdb.Recorder) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := apiServer.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if recorder != nil {
		if err := recorder.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
