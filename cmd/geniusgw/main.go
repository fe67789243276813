// Genius Gateway - Hekatron Genius smoke detector radio gateway
//
// This is the main entry point for the gateway. It listens to the Genius
// radio network through a CC1101 transceiver, tracks smoke detectors and
// alarm lines, and bridges alarms, line tests and detector state to MQTT.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	_ "github.com/nerrad567/genius-gateway/migrations"

	"github.com/nerrad567/genius-gateway/internal/alarmline"
	"github.com/nerrad567/genius-gateway/internal/blocker"
	"github.com/nerrad567/genius-gateway/internal/bridges/genius"
	"github.com/nerrad567/genius-gateway/internal/device"
	"github.com/nerrad567/genius-gateway/internal/events"
	"github.com/nerrad567/genius-gateway/internal/infrastructure/config"
	"github.com/nerrad567/genius-gateway/internal/infrastructure/database"
	"github.com/nerrad567/genius-gateway/internal/infrastructure/influxdb"
	"github.com/nerrad567/genius-gateway/internal/infrastructure/logging"
	"github.com/nerrad567/genius-gateway/internal/infrastructure/mqtt"
	"github.com/nerrad567/genius-gateway/internal/radio"
	"github.com/nerrad567/genius-gateway/internal/radio/cc1101"
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
	// Cancel on Ctrl+C and SIGTERM for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Running the root command without a
// subcommand starts the gateway.
func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "geniusgw",
		Short:         "Hekatron Genius radio gateway",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", getConfigPath(), "path to the YAML configuration file")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the gateway (default)",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(cmd.Context(), configPath)
			},
		},
		newMigrateCmd(&configPath),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "geniusgw %s (commit %s, built %s)\n", version, commit, date)
			},
		},
	)
	return root
}

func newMigrateCmd(configPath *string) *cobra.Command {
	var down, status bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			db, err := openDatabase(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck // read-mostly command

			out := cmd.OutOrStdout()
			switch {
			case status:
				applied, pending, err := db.GetMigrationStatus(cmd.Context())
				if err != nil {
					return fmt.Errorf("reading migration status: %w", err)
				}
				for _, m := range applied {
					fmt.Fprintf(out, "applied  %s  %s\n", m.Version, m.AppliedAt.Format("2006-01-02 15:04:05"))
				}
				for _, m := range pending {
					fmt.Fprintf(out, "pending  %s  %s\n", m.Version, m.Name)
				}
				return nil
			case down:
				if err := db.MigrateDown(cmd.Context()); err != nil {
					return fmt.Errorf("rolling back migration: %w", err)
				}
				fmt.Fprintln(out, "rolled back latest migration")
				return nil
			}

			if err := db.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("running migrations: %w", err)
			}
			fmt.Fprintln(out, "database migrations complete")
			return nil
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "roll back the latest migration")
	cmd.Flags().BoolVar(&status, "status", false, "list applied and pending migrations")
	cmd.MarkFlagsMutuallyExclusive("down", "status")
	return cmd
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - configPath: Path to the YAML configuration file
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, configPath string) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Genius Gateway",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	// Registries
	devices := device.NewRegistry(device.NewSQLiteRepository(db.DB))
	devices.SetLogger(log.Component("devices"))
	if loadErr := devices.Load(ctx); loadErr != nil {
		return fmt.Errorf("loading devices: %w", loadErr)
	}

	lines := alarmline.NewRegistry(alarmline.NewSQLiteRepository(db.DB))
	lines.SetLogger(log.Component("alarm-lines"))
	if loadErr := lines.Load(ctx); loadErr != nil {
		return fmt.Errorf("loading alarm lines: %w", loadErr)
	}
	log.Info("registries loaded", "devices", devices.Count(), "alarm_lines", lines.Count())

	// Radio. A missing or unsupported transceiver is fatal.
	hw, err := cc1101.OpenHost(cc1101.HostConfig{
		SPIPort:       cfg.Radio.SPIPort,
		SPISpeedHz:    cfg.Radio.SPISpeedHz,
		ChipSelectPin: cfg.Radio.ChipSelectPin,
		GDO0Pin:       cfg.Radio.GDO0Pin,
	})
	if err != nil {
		return fmt.Errorf("opening radio: %w", err)
	}
	defer func() {
		if closeErr := hw.Close(); closeErr != nil {
			log.Error("error closing radio", "error", closeErr)
		}
	}()
	if initErr := hw.Driver.Init(cc1101.DefaultConfig[:]); initErr != nil {
		return fmt.Errorf("initialising radio: %w", initErr)
	}
	log.Info("radio initialised", "spi_port", cfg.Radio.SPIPort, "gdo0", cfg.Radio.GDO0Pin)

	supervisor := radio.NewSupervisor(hw.Driver, hw.GDO0, radio.Config{
		PollInterval:   cfg.GetSupervisorInterval(),
		StuckThreshold: cfg.GetStuckThreshold(),
	})
	supervisor.SetLogger(log.Component("radio"))

	// MQTT
	mqttClient, err := mqtt.Connect(cfg.MQTT)
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
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	healthChecks := []genius.DependencyCheck{
		{Name: "database", Checker: db},
		{Name: "mqtt", Checker: mqttClient},
	}

	// InfluxDB (optional)
	var timeSeries genius.TimeSeries
	influxClient, err := influxdb.Connect(cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB disabled")
	case err != nil:
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	default:
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		timeSeries = influxClient
		healthChecks = append(healthChecks, genius.DependencyCheck{Name: "influxdb", Checker: influxClient})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	bus := events.NewBus(cfg.Gateway.EventBuffer)
	defer bus.Close()

	alarmBlocker := blocker.New(bus)
	alarmBlocker.SetLogger(log.Component("blocker"))

	bridge, err := genius.NewBridge(genius.BridgeOptions{
		Config:     cfg,
		MQTTClient: mqttClient,
		Supervisor: supervisor,
		Devices:    devices,
		Lines:      lines,
		Blocker:    alarmBlocker,
		Bus:        bus,
		SeqStore:   database.NewKVStore(db),
		TimeSeries: timeSeries,
		Logger:     log.Component("genius"),
		Version:    version,

		HealthChecks: healthChecks,
	})
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}
	if err := bridge.Start(ctx); err != nil {
		return fmt.Errorf("starting bridge: %w", err)
	}
	defer bridge.Stop()

	log.Info("Genius Gateway started")
	<-ctx.Done()
	log.Info("shutdown signal received, stopping...")

	return nil
}

func openDatabase(ctx context.Context, cfg *config.Config) (*database.DB, error) {
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

// getConfigPath returns the configuration file path from the environment
// or the default.
func getConfigPath() string {
	if path := os.Getenv("GENIUSGW_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
