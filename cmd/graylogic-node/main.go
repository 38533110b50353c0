// Gray Logic Node - climate sensor and LED actuator for a Gray Logic site.
//
// The node samples temperature and humidity, publishes them to the site
// broker, and drives one LED from either a subscribed feed or a local
// push-button. A single control loop owns all of it; when the broker stays
// unreachable past the retry budget the process exits with status 1 and
// its supervisor (systemd Restart=always or a watchdog) restarts it.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/actuator"
	"github.com/nerrad567/gray-logic-node/internal/controlloop"
	"github.com/nerrad567/gray-logic-node/internal/dispatch"
	"github.com/nerrad567/gray-logic-node/internal/hardware"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-node/internal/journal"
	"github.com/nerrad567/gray-logic-node/internal/session"
	"github.com/nerrad567/gray-logic-node/internal/telemetry"
	"github.com/nerrad567/gray-logic-node/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	defaultConfigPath = "configs/node.yaml"

	// Values reported by the simulated sensor when hardware is disabled.
	simulatedTemperature = 21.0
	simulatedHumidity    = 50.0

	startupCheckTimeout = 5 * time.Second
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires the node and blocks in the control loop.
//
// Returns:
//   - nil on a signal-driven shutdown
//   - session.ErrRetriesExhausted when the broker could not be reached
//   - any startup error
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Gray Logic Node",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version).With("device", cfg.Node.Device)
	log.Info("configuration loaded", "path", configPath)

	if cfg.Hardware.Enabled && cfg.Hardware.NetworkWait {
		log.Info("waiting for network")
		if _, err := hardware.WaitForNetwork(ctx, log); err != nil {
			return fmt.Errorf("waiting for network: %w", err)
		}
	}

	b, err := openBoard(cfg, log)
	if err != nil {
		return fmt.Errorf("opening hardware: %w", err)
	}
	defer b.close(log)

	topics := mqtt.NewTopics(cfg.Node.Device)

	transport := mqtt.New(cfg.MQTT, cfg.Node.Device)
	transport.SetLogger(log.With("component", "mqtt"))
	if err := transport.Subscribe(topics.Actuator(), 1); err != nil {
		return fmt.Errorf("subscribing to actuator feed: %w", err)
	}
	defer func() {
		log.Info("disconnecting from broker")
		if closeErr := transport.Close(); closeErr != nil {
			log.Error("error closing broker connection", "error", closeErr)
		}
	}()

	manager := session.New(session.Config{
		Transport:   transport,
		MaxAttempts: cfg.Session.MaxAttempts,
		RetryDelay:  retryDelay(cfg.Session.RetryDelay.Std()),
		PingTimeout: cfg.Session.PingTimeout.Std(),
	})
	manager.SetLogger(log.With("component", "session"))
	manager.OnStateChange(func(from, to session.State) {
		log.Debug("session state changed", "from", from.String(), "to", to.String())
	})

	reconciler := actuator.NewReconciler(b.io, cfg.Hardware.LEDPin)
	reconciler.SetLogger(log.With("component", "actuator"))

	dispatcher, err := dispatch.New(transport, dispatch.Topic{
		Name:    topics.Actuator(),
		QoS:     1,
		Handler: reconciler.HandleRemote,
	})
	if err != nil {
		return fmt.Errorf("binding feeds: %w", err)
	}
	dispatcher.SetLogger(log.With("component", "dispatch"))

	publisher := telemetry.NewPublisher(transport, manager, topics)
	publisher.SetLogger(log.With("component", "telemetry"))

	var pruner controlloop.Pruner
	if cfg.Database.Enabled {
		db, err := openJournal(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()

		store := journal.NewStore(db.DB, cfg.Node.Device)
		publisher.AddRecorder(store)
		reconciler.AddRecorder(store)
		pruner = store
	} else {
		log.Info("journal disabled")
	}

	if cfg.InfluxDB.Enabled {
		influxClient, err := influxdb.Connect(cfg.InfluxDB, cfg.Node.Device)
		if err != nil {
			// Readings still reach the broker and the journal.
			log.Warn("InfluxDB unavailable, continuing without it", "error", err)
		} else {
			defer func() {
				log.Info("closing InfluxDB connection")
				if closeErr := influxClient.Close(); closeErr != nil {
					log.Error("error closing InfluxDB", "error", closeErr)
				}
			}()
			influxClient.SetLogger(log.With("component", "influxdb"))
			publisher.AddRecorder(influxClient)
			log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
		}
	} else {
		log.Info("InfluxDB disabled")
	}

	loop, err := controlloop.New(controlloop.Config{
		Session:         manager,
		Dispatcher:      dispatcher,
		Actuator:        reconciler,
		Button:          actuator.NewButtonEdge(b.io, cfg.Hardware.ButtonPin),
		Sensor:          b.sensor,
		Publisher:       publisher,
		Pruner:          pruner,
		Retention:       cfg.Database.Retention.Std(),
		DrainTimeout:    cfg.Loop.DrainTimeout.Std(),
		PublishInterval: cfg.Loop.PublishInterval.Std(),
	})
	if err != nil {
		return fmt.Errorf("creating control loop: %w", err)
	}
	loop.SetLogger(log.With("component", "loop"))

	log.Info("Gray Logic Node started",
		"broker", cfg.BrokerAddress(),
		"client_id", transport.ClientID(),
		"hardware", cfg.Hardware.Enabled,
	)

	err = loop.Run(ctx)
	switch {
	case errors.Is(err, session.ErrRetriesExhausted):
		log.Error("broker unreachable, exiting for supervisor restart",
			"attempts", cfg.Session.MaxAttempts,
		)
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		log.Info("shutdown signal received")
	case err != nil:
		return err
	}

	log.Info("Gray Logic Node stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses GRAYLOGIC_NODE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GRAYLOGIC_NODE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// retryDelay maps a configured "0s" to the session's no-wait value.
func retryDelay(d time.Duration) time.Duration {
	if d == 0 {
		return -1
	}
	return d
}

// board holds the node's physical (or simulated) I/O.
type board struct {
	io     hardware.DigitalIO
	sensor controlloop.Sensor
	closer func() error
}

func openBoard(cfg *config.Config, log *logging.Logger) (*board, error) {
	hw := cfg.Hardware
	if !hw.Enabled {
		log.Info("hardware disabled, using simulated board")
		return &board{
			io:     hardware.NewSimulatedGPIO(hw.LEDPin, hw.ButtonPin),
			sensor: hardware.NewSimulatedSensor(simulatedTemperature, simulatedHumidity),
		}, nil
	}

	gpio, err := hardware.OpenGPIO(hw.GPIOChip, hw.LEDPin, hw.ButtonPin)
	if err != nil {
		return nil, err
	}

	sensor, err := hardware.OpenSHT2x(hw.I2CBus)
	if err != nil {
		gpio.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, err
	}
	sensor.SetLogger(log.With("component", "sensor"))

	log.Info("hardware opened",
		"gpio_chip", hw.GPIOChip,
		"led_pin", hw.LEDPin,
		"button_pin", hw.ButtonPin,
		"i2c_bus", hw.I2CBus,
	)
	return &board{io: gpio, sensor: sensor, closer: sensor.Close}, nil
}

func (b *board) close(log *logging.Logger) {
	if b.closer != nil {
		if err := b.closer(); err != nil {
			log.Error("error closing sensor", "error", err)
		}
	}
	if err := b.io.Close(); err != nil {
		log.Error("error closing GPIO", "error", err)
	}
}

// openJournal opens, migrates and checks the SQLite journal.
func openJournal(ctx context.Context, cfg *config.Config, log *logging.Logger) (*database.DB, error) {
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	checkCtx, cancel := context.WithTimeout(ctx, startupCheckTimeout)
	defer cancel()
	if err := db.HealthCheck(checkCtx); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, err
	}

	log.Info("journal ready", "path", db.Path())
	return db, nil
}
