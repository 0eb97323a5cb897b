package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/deepsleep-agent/internal/actuator"
	"github.com/nerrad567/deepsleep-agent/internal/infrastructure/config"
	"github.com/nerrad567/deepsleep-agent/internal/infrastructure/logging"
	"github.com/nerrad567/deepsleep-agent/internal/sensor"
	"github.com/nerrad567/deepsleep-agent/internal/settings"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// HealthChecker is a component that can verify it is working.
// database.DB and influxdb.Client implement it.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Transport reports broker connectivity. mqtt.Client implements it.
type Transport interface {
	HealthChecker
	IsConnected() bool
}

// SettingsSource provides the current automation settings.
type SettingsSource interface {
	Get() settings.Settings
}

// ActuatorSource provides the recorded actuator state.
type ActuatorSource interface {
	State() actuator.State
}

// ReadingSource provides the most recent sensor reading.
type ReadingSource interface {
	LastReading() sensor.Reading
}

// QueueMeter reports the number of messages waiting in the outbound store.
type QueueMeter interface {
	Len(ctx context.Context) (int, error)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	Logger    *logging.Logger
	DeviceID  string
	Version   string
	Transport Transport
	Settings  SettingsSource
	Actuators ActuatorSource
	Readings  ReadingSource
	Outbound  QueueMeter // Optional

	// Health lists extra components reported by /api/v1/health, keyed by
	// name. Optional; the transport is always checked as "mqtt".
	Health map[string]HealthChecker
}

// Server is the HTTP status server.
//
// It is created with New(), started with Start() and stopped with Close().
type Server struct {
	cfg       config.APIConfig
	logger    *logging.Logger
	deviceID  string
	version   string
	transport Transport
	settings  SettingsSource
	actuators ActuatorSource
	readings  ReadingSource
	outbound  QueueMeter
	health    map[string]HealthChecker
	startTime time.Time
	server    *http.Server
	listener  net.Listener
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Settings == nil || deps.Actuators == nil || deps.Readings == nil {
		return nil, fmt.Errorf("settings, actuator and reading sources are required")
	}

	health := make(map[string]HealthChecker, len(deps.Health))
	for name, hc := range deps.Health {
		if hc != nil {
			health[name] = hc
		}
	}

	return &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		deviceID:  deps.DeviceID,
		version:   deps.Version,
		transport: deps.Transport,
		settings:  deps.Settings,
		actuators: deps.Actuators,
		readings:  deps.Readings,
		outbound:  deps.Outbound,
		health:    health,
		startTime: time.Now(),
	}, nil
}

// Start binds the listener and serves in a background goroutine.
//
// Returns:
//   - error: If the address cannot be bound (port in use, etc.)
func (s *Server) Start(_ context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.GetReadTimeout(),
		ReadHeaderTimeout: s.cfg.GetReadTimeout(),
		WriteTimeout:      s.cfg.GetWriteTimeout(),
		IdleTimeout:       s.cfg.GetIdleTimeout(),
	}

	s.logger.Info("API server starting", "address", ln.Addr().String())
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}
