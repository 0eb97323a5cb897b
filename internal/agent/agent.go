package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/deepsleep-agent/internal/actuator"
	"github.com/nerrad567/deepsleep-agent/internal/api"
	"github.com/nerrad567/deepsleep-agent/internal/automation"
	"github.com/nerrad567/deepsleep-agent/internal/command"
	"github.com/nerrad567/deepsleep-agent/internal/hardware"
	"github.com/nerrad567/deepsleep-agent/internal/infrastructure/config"
	"github.com/nerrad567/deepsleep-agent/internal/infrastructure/database"
	"github.com/nerrad567/deepsleep-agent/internal/infrastructure/influxdb"
	"github.com/nerrad567/deepsleep-agent/internal/infrastructure/logging"
	"github.com/nerrad567/deepsleep-agent/internal/infrastructure/mqtt"
	"github.com/nerrad567/deepsleep-agent/internal/sensor"
	"github.com/nerrad567/deepsleep-agent/internal/settings"
	"github.com/nerrad567/deepsleep-agent/internal/telemetry"
	"github.com/nerrad567/deepsleep-agent/migrations"
)

// ErrStartup wraps every failure that prevents the agent from running.
var ErrStartup = errors.New("agent: startup failed")

// Transport is the MQTT client as the agent uses it. mqtt.Client implements it.
type Transport interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	IsConnected() bool
	HealthCheck(ctx context.Context) error
	Close() error
}

// Deps are the opened resources an Agent is built from.
type Deps struct {
	Config    *config.Config
	Logger    *logging.Logger
	Version   string
	Hardware  *hardware.Set
	Transport Transport
	// Sink mirrors telemetry to a time-series store. Optional.
	Sink telemetry.Sink
	// Outbound reports the persistent outbound queue length. Optional.
	Outbound api.QueueMeter
	// Health are the opened resources reported by the status API. Optional.
	Health map[string]api.HealthChecker
}

// closer is a resource released after the transport, in reverse order of
// opening.
type closer struct {
	name  string
	close func() error
}

// Agent runs the automation loop and the command router.
type Agent struct {
	cfg       *config.Config
	logger    *logging.Logger
	hw        *hardware.Set
	transport Transport
	closers   []closer

	settings   *settings.Store
	controller *actuator.Controller
	inbox      *command.Inbox
	router     *command.Router
	loop       *automation.Loop
	api        *api.Server

	closeOnce sync.Once
	closeErr  error
}

// Open acquires every resource the configuration asks for and builds the
// agent. Whatever was acquired is released again if a later step fails.
//
// Parameters:
//   - ctx: Context for connection attempts
//   - cfg: Validated configuration
//   - logger: Logger instance
//   - version: Build version for the status API
//
// Returns:
//   - *Agent: Ready to Run
//   - error: Wrapping ErrStartup
func Open(ctx context.Context, cfg *config.Config, logger *logging.Logger, version string) (*Agent, error) {
	hw, err := hardware.Open(cfg.Hardware, logger)
	if err != nil {
		return nil, fmt.Errorf("%w: opening hardware: %w", ErrStartup, err)
	}
	logger.Info("hardware opened", "mode", cfg.Hardware.Mode, "sensor", hw.Sensor.Type())

	var closers []closer
	fail := func(err error) (*Agent, error) {
		releaseHardware(hw, logger)
		closeAll(closers, logger)
		return nil, err
	}

	var (
		store    pahomqtt.Store
		outbound api.QueueMeter
		health   = make(map[string]api.HealthChecker)
	)
	if cfg.MQTT.Persistence.Enabled {
		db, dbErr := database.Open(ctx, database.Config{
			Path:        cfg.Database.Path,
			WALMode:     cfg.Database.WALMode,
			BusyTimeout: cfg.Database.BusyTimeout,
		})
		if dbErr != nil {
			return fail(fmt.Errorf("%w: opening database: %w", ErrStartup, dbErr))
		}
		closers = append(closers, closer{"database", db.Close})
		health["database"] = db

		if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
			return fail(fmt.Errorf("%w: running migrations: %w", ErrStartup, migrateErr))
		}

		sqlStore := mqtt.NewSQLiteStore(db)
		sqlStore.SetLogger(logger)
		store, outbound = sqlStore, sqlStore
		logger.Info("MQTT outbound store ready", "path", db.Path())
	}

	client, err := mqtt.Connect(cfg.MQTT, cfg.Device.ID, store)
	if err != nil {
		return fail(fmt.Errorf("%w: connecting to MQTT: %w", ErrStartup, err))
	}
	client.SetLogger(logger)
	client.SetOnConnect(func() {
		logger.Info("MQTT connected")
	})
	client.SetOnDisconnect(func(err error) {
		logger.Warn("MQTT disconnected", "error", err)
	})
	logger.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", mqtt.ClientID(cfg.MQTT, cfg.Device.ID),
		"persistent", cfg.MQTT.Persistence.Enabled,
	)

	var sink telemetry.Sink
	if cfg.InfluxDB.Enabled {
		influx, influxErr := influxdb.Connect(ctx, cfg.InfluxDB, cfg.Device.ID)
		if influxErr != nil {
			// The mirror is an extra; the device works without it.
			logger.Warn("InfluxDB unavailable, telemetry mirror disabled", "error", influxErr)
		} else {
			influx.SetOnError(func(err error) {
				logger.Error("InfluxDB write error", "error", err)
			})
			sink = influx
			health["influxdb"] = influx
			closers = append(closers, closer{"influxdb", influx.Close})
			logger.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
		}
	}

	a, err := New(Deps{
		Config:    cfg,
		Logger:    logger,
		Version:   version,
		Hardware:  hw,
		Transport: client,
		Sink:      sink,
		Outbound:  outbound,
		Health:    health,
	})
	if err != nil {
		if closeErr := client.Close(); closeErr != nil {
			logger.Error("error closing MQTT", "error", closeErr)
		}
		return fail(err)
	}
	a.closers = closers
	return a, nil
}

// New builds an Agent from already opened resources.
//
// Returns:
//   - *Agent: Ready to Run
//   - error: Wrapping ErrStartup if the initial settings are invalid or
//     the status API cannot be created
func New(deps Deps) (*Agent, error) {
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	store, err := settings.NewStore(initialSettings(cfg.Automation))
	if err != nil {
		return nil, fmt.Errorf("%w: initial automation settings: %w", ErrStartup, err)
	}

	controller := actuator.NewController(deps.Hardware.Humidifier, deps.Hardware.Speaker)
	poller := sensor.NewPoller(deps.Hardware.Sensor, cfg.Hardware.Sensor.MinInterval, cfg.Hardware.Sensor.ReadTimeout)

	publisher := telemetry.NewPublisher(deps.Transport, telemetry.Options{
		DeviceID:   cfg.Device.ID,
		SensorType: poller.SensorType(),
		Format:     cfg.Telemetry.Format,
		QoS:        byte(cfg.MQTT.QoS),
		Sink:       deps.Sink,
		Logger:     logger,
	})

	routerCfg := command.Config{
		Actuators: controller,
		Settings:  store,
		Status:    publisher,
		Logger:    logger,
	}
	loopDeps := automation.Deps{
		Poller:    poller,
		Settings:  store,
		Actuators: controller,
		Telemetry: publisher,
	}
	if hr := cfg.Automation.HeartRate; hr.Enabled {
		tracker := sensor.NewHeartRateTracker(hr.MaxAge)
		routerCfg.HeartRate = tracker
		routerCfg.HeartRateTopic = hr.Topic
		loopDeps.HeartRate = tracker
	}

	a := &Agent{
		cfg:        cfg,
		logger:     logger,
		hw:         deps.Hardware,
		transport:  deps.Transport,
		settings:   store,
		controller: controller,
		inbox:      command.NewInbox(cfg.Telemetry.InboundQueue),
		router:     command.NewRouter(routerCfg),
	}
	a.loop = automation.NewLoop(loopDeps, automation.Config{
		Interval:               cfg.Automation.Interval,
		HeartRateVolume:        uint8(cfg.Automation.HeartRate.Volume), //nolint:gosec // validated <= 100
		DisabledPolicy:         cfg.Automation.DisabledPolicy,
		PublishUnchangedStatus: cfg.Automation.PublishUnchangedStatus,
	}, logger)

	if cfg.API.Enabled {
		a.api, err = api.New(api.Deps{
			Config:    cfg.API,
			Logger:    logger,
			DeviceID:  cfg.Device.ID,
			Version:   deps.Version,
			Transport: deps.Transport,
			Settings:  store,
			Actuators: controller,
			Readings:  a.loop,
			Outbound:  deps.Outbound,
			Health:    deps.Health,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: creating status API: %w", ErrStartup, err)
		}
	}

	return a, nil
}

// initialSettings seeds the settings store from configuration. The
// heart-rate threshold is only set when heart-rate control is enabled.
func initialSettings(cfg config.AutomationConfig) settings.Settings {
	s := settings.Settings{
		Enabled:           cfg.Enabled,
		HumidityThreshold: cfg.HumidityThreshold,
	}
	if cfg.HeartRate.Enabled {
		threshold := cfg.HeartRate.Threshold
		s.HeartRateThreshold = &threshold
	}
	return s
}

// Run subscribes to the inbound topics and runs the router and the loop
// until ctx is cancelled, then releases every resource.
//
// Returns:
//   - error: Wrapping ErrStartup if subscriptions or the status API
//     failed; nil after a normal shutdown
func (a *Agent) Run(ctx context.Context) error {
	defer func() {
		if err := a.Close(); err != nil {
			a.logger.Error("shutdown completed with errors", "error", err)
		}
	}()

	qos := byte(a.cfg.MQTT.QoS)
	heartRateTopic := ""
	if a.cfg.Automation.HeartRate.Enabled {
		heartRateTopic = a.cfg.Automation.HeartRate.Topic
	}
	for _, topic := range (mqtt.Topics{}).Inbound(heartRateTopic) {
		if err := a.transport.Subscribe(topic, qos, a.inbox.Deliver); err != nil {
			return fmt.Errorf("%w: subscribing to %s: %w", ErrStartup, topic, err)
		}
	}

	if a.api != nil {
		if err := a.api.Start(ctx); err != nil {
			return fmt.Errorf("%w: starting status API: %w", ErrStartup, err)
		}
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		a.router.Run(ctx, a.inbox.C())
	}()
	go func() {
		defer wg.Done()
		if err := a.loop.Run(ctx); err != nil {
			a.logger.Error("automation loop stopped", "error", err)
		}
	}()

	a.logger.Info("agent running",
		"device_id", a.cfg.Device.ID,
		"interval", a.cfg.Automation.Interval,
		"heart_rate_control", a.cfg.Automation.HeartRate.Enabled,
	)

	<-ctx.Done()
	a.logger.Info("shutdown signal received, cleaning up")
	wg.Wait()
	return nil
}

// Close releases all resources. It is safe to call more than once; only
// the first call does anything.
func (a *Agent) Close() error {
	a.closeOnce.Do(func() {
		var errs []error

		if a.api != nil {
			if err := a.api.Close(); err != nil {
				errs = append(errs, err)
			}
		}

		if err := a.hw.CloseSensor(); err != nil {
			errs = append(errs, fmt.Errorf("closing sensor: %w", err))
		}
		if err := a.hw.CloseActuators(); err != nil {
			errs = append(errs, fmt.Errorf("closing actuators: %w", err))
		}

		a.logger.Info("disconnecting from MQTT")
		if err := a.transport.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing MQTT: %w", err))
		}

		if err := closeAll(a.closers, a.logger); err != nil {
			errs = append(errs, err)
		}

		a.closeErr = errors.Join(errs...)
		a.logger.Info("agent stopped")
	})
	return a.closeErr
}

// Settings returns the live automation settings store.
func (a *Agent) Settings() *settings.Store {
	return a.settings
}

// Controller returns the actuator controller.
func (a *Agent) Controller() *actuator.Controller {
	return a.controller
}

func releaseHardware(hw *hardware.Set, logger *logging.Logger) {
	if err := hw.CloseSensor(); err != nil {
		logger.Error("error closing sensor", "error", err)
	}
	if err := hw.CloseActuators(); err != nil {
		logger.Error("error closing actuators", "error", err)
	}
}

// closeAll closes in reverse order of opening.
func closeAll(closers []closer, logger *logging.Logger) error {
	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		c := closers[i]
		logger.Info("closing " + c.name)
		if err := c.close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", c.name, err))
		}
	}
	return errors.Join(errs...)
}
