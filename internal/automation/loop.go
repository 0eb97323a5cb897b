package automation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/deepsleep-agent/internal/actuator"
	"github.com/nerrad567/deepsleep-agent/internal/infrastructure/config"
	"github.com/nerrad567/deepsleep-agent/internal/sensor"
	"github.com/nerrad567/deepsleep-agent/internal/settings"
	"github.com/nerrad567/deepsleep-agent/internal/telemetry"
)

// Poller takes one sensor reading. sensor.Poller implements it.
type Poller interface {
	Poll(ctx context.Context) sensor.Reading
}

// SettingsSource provides the current automation settings.
type SettingsSource interface {
	Get() settings.Settings
}

// Actuators is the part of actuator.Controller the loop drives.
type Actuators interface {
	SetHumidifier(on bool) (actuator.DeviceStatusEvent, error)
	SetSpeaker(on bool, volume uint8) (actuator.DeviceStatusEvent, error)
}

// Telemetry publishes readings and actuator status. telemetry.Publisher
// implements it.
type Telemetry interface {
	PublishReading(metric telemetry.Metric, value float64) error
	PublishStatus(ev actuator.DeviceStatusEvent) error
}

// HeartRate reports the most recent fresh heart-rate sample.
type HeartRate interface {
	Latest() (bpm float64, ok bool)
}

// Logger is the logging interface used by the loop.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Deps are the loop's collaborators. HeartRate may be nil.
type Deps struct {
	Poller    Poller
	Settings  SettingsSource
	Actuators Actuators
	Telemetry Telemetry
	HeartRate HeartRate
}

// Config is the loop policy.
type Config struct {
	// Interval is the tick period. Defaults to 10s.
	Interval time.Duration

	// HeartRateVolume is the speaker volume used when heart rate is high.
	HeartRateVolume uint8

	// DisabledPolicy is config.DisabledPolicyPause (default) or
	// config.DisabledPolicyForceOff.
	DisabledPolicy string

	// PublishUnchangedStatus publishes status every tick, not only on change.
	PublishUnchangedStatus bool
}

const defaultInterval = 10 * time.Second

// Loop is the periodic automation controller.
type Loop struct {
	poller    Poller
	settings  SettingsSource
	actuators Actuators
	telemetry Telemetry
	heartRate HeartRate

	interval         time.Duration
	heartRateVolume  uint8
	forceOff         bool
	publishUnchanged bool
	logger           Logger

	// forcedOff is set once the force_off policy has switched the
	// actuators off and cleared when automation is re-enabled.
	forcedOff bool

	mu          sync.RWMutex
	lastReading sensor.Reading

	now func() time.Time
}

// NewLoop creates a Loop.
//
// Parameters:
//   - deps: Sensor, settings, actuators, telemetry and optional heart-rate source
//   - cfg: Tick interval and policy
//   - logger: Logger instance (may be nil)
func NewLoop(deps Deps, cfg Config, logger Logger) *Loop {
	if logger == nil {
		logger = noopLogger{}
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	volume := cfg.HeartRateVolume
	if volume > actuator.MaxVolume {
		volume = actuator.MaxVolume
	}
	return &Loop{
		poller:           deps.Poller,
		settings:         deps.Settings,
		actuators:        deps.Actuators,
		telemetry:        deps.Telemetry,
		heartRate:        deps.HeartRate,
		interval:         interval,
		heartRateVolume:  volume,
		forceOff:         cfg.DisabledPolicy == config.DisabledPolicyForceOff,
		publishUnchanged: cfg.PublishUnchangedStatus,
		logger:           logger,
		now:              time.Now,
	}
}

// Run ticks until ctx is cancelled. The first tick runs immediately.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("automation loop started", "interval", l.interval)

	wake := l.now()
	for {
		l.Tick(ctx)

		next := nextWake(wake, l.now(), l.interval)
		timer := time.NewTimer(next.Sub(l.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			l.logger.Info("automation loop stopped")
			return nil
		case <-timer.C:
		}
		wake = next
	}
}

// nextWake returns the first boundary last+n*interval (n >= 1) after now.
func nextWake(last, now time.Time, interval time.Duration) time.Time {
	next := last.Add(interval)
	if next.After(now) {
		return next
	}
	missed := now.Sub(last) / interval
	return last.Add((missed + 1) * interval)
}

// Tick runs one control cycle. Faults are logged, never returned.
func (l *Loop) Tick(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			l.logger.Error("automation tick failed", "error", fmt.Errorf("%w: %v", ErrTickPanicked, rec))
		}
	}()

	s := l.settings.Get()
	if !s.Enabled {
		l.applyDisabledPolicy()
		return
	}
	l.forcedOff = false

	r := l.poller.Poll(ctx)
	l.setLastReading(r)
	if !r.OK() {
		if errors.Is(r.Err, context.Canceled) {
			return
		}
		l.logger.Warn("sensor read failed, skipping tick",
			"sensor_type", r.SensorType,
			"fault", sensor.FaultKind(r.Err),
			"error", r.Err,
		)
		return
	}

	var events []actuator.DeviceStatusEvent

	humidifierOn := r.Humidity < s.HumidityThreshold
	if ev, ok := l.setHumidifier(humidifierOn, r.Humidity, s.HumidityThreshold); ok {
		events = append(events, ev)
	}

	if s.HeartRateThreshold != nil && l.heartRate != nil {
		if bpm, fresh := l.heartRate.Latest(); fresh {
			if ev, ok := l.setSpeaker(bpm > *s.HeartRateThreshold, bpm, *s.HeartRateThreshold); ok {
				events = append(events, ev)
			}
		}
	}

	l.publishReading(telemetry.MetricHumidity, r.Humidity)
	l.publishReading(telemetry.MetricTemperature, r.Temperature)

	for _, ev := range events {
		if ev.Changed || l.publishUnchanged {
			l.publishStatus(ev)
		}
	}
}

// LastReading returns the most recent sensor reading, including failed ones.
func (l *Loop) LastReading() sensor.Reading {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastReading
}

func (l *Loop) setLastReading(r sensor.Reading) {
	l.mu.Lock()
	l.lastReading = r
	l.mu.Unlock()
}

func (l *Loop) applyDisabledPolicy() {
	if !l.forceOff || l.forcedOff {
		l.logger.Debug("automation disabled, tick skipped")
		return
	}
	l.logger.Info("automation disabled, switching actuators off")

	// Retried on the next disabled tick until both writes succeed.
	ok := true
	if ev, err := l.actuators.SetHumidifier(false); err != nil {
		ok = false
		l.logger.Error("switching humidifier off failed", "error", err)
	} else if ev.Changed || l.publishUnchanged {
		l.publishStatus(ev)
	}
	if ev, err := l.actuators.SetSpeaker(false, 0); err != nil {
		ok = false
		l.logger.Error("switching speaker off failed", "error", err)
	} else if ev.Changed || l.publishUnchanged {
		l.publishStatus(ev)
	}
	l.forcedOff = ok
}

func (l *Loop) setHumidifier(on bool, humidity, threshold float64) (actuator.DeviceStatusEvent, bool) {
	ev, err := l.actuators.SetHumidifier(on)
	if err != nil {
		l.logger.Error("humidifier command failed",
			"status", actuator.StatusOf(on),
			"humidity", humidity,
			"threshold", threshold,
			"error", err,
		)
		return ev, false
	}
	if ev.Changed {
		l.logger.Info("humidifier switched",
			"status", ev.Status,
			"humidity", humidity,
			"threshold", threshold,
		)
	}
	return ev, true
}

func (l *Loop) setSpeaker(on bool, bpm, threshold float64) (actuator.DeviceStatusEvent, bool) {
	volume := l.heartRateVolume
	if !on {
		volume = 0
	}
	ev, err := l.actuators.SetSpeaker(on, volume)
	if err != nil {
		l.logger.Error("speaker command failed",
			"status", actuator.StatusOf(on),
			"heart_rate", bpm,
			"threshold", threshold,
			"error", err,
		)
		return ev, false
	}
	if ev.Changed {
		l.logger.Info("speaker switched",
			"status", ev.Status,
			"volume", volume,
			"heart_rate", bpm,
			"threshold", threshold,
		)
	}
	return ev, true
}

func (l *Loop) publishReading(metric telemetry.Metric, value float64) {
	if err := l.telemetry.PublishReading(metric, value); err != nil {
		l.logger.Warn("publishing telemetry failed", "metric", metric, "value", value, "error", err)
	}
}

func (l *Loop) publishStatus(ev actuator.DeviceStatusEvent) {
	if err := l.telemetry.PublishStatus(ev); err != nil {
		l.logger.Warn("publishing status failed", "device", ev.DeviceType, "error", err)
	}
}
