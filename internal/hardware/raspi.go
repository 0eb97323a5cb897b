package hardware

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gobot.io/x/gobot/v2/drivers/gpio"
	"gobot.io/x/gobot/v2/drivers/i2c"
	"gobot.io/x/gobot/v2/platforms/raspi"

	"github.com/nerrad567/deepsleep-agent/internal/actuator"
	"github.com/nerrad567/deepsleep-agent/internal/infrastructure/config"
	"github.com/nerrad567/deepsleep-agent/internal/sensor"
)

// pwmMax is the top of gobot's 8-bit PWM range.
const pwmMax = 255

// openRaspi connects the Raspberry Pi adaptor and starts every driver.
// On failure everything started so far is released again.
func openRaspi(cfg config.HardwareConfig, logger Logger) (set *Set, err error) {
	adaptor := raspi.NewAdaptor()
	if err := adaptor.Connect(); err != nil {
		return nil, fmt.Errorf("connecting raspi adaptor: %w", err)
	}

	var started []func() error
	defer func() {
		if err == nil {
			return
		}
		for i := len(started) - 1; i >= 0; i-- {
			_ = started[i]() //nolint:errcheck // best effort cleanup on error path
		}
		_ = adaptor.Finalize() //nolint:errcheck // best effort cleanup on error path
	}()

	sht := i2c.NewSHT2xDriver(adaptor, i2c.WithBus(cfg.Sensor.I2CBus))
	if err := sht.Start(); err != nil {
		return nil, fmt.Errorf("starting SHT2x on i2c bus %d: %w", cfg.Sensor.I2CBus, err)
	}
	started = append(started, sht.Halt)

	humidifierRelay := gpio.NewRelayDriver(adaptor, cfg.Humidifier.Pin)
	if err := humidifierRelay.Start(); err != nil {
		return nil, fmt.Errorf("starting humidifier relay on pin %s: %w", cfg.Humidifier.Pin, err)
	}
	started = append(started, humidifierRelay.Halt)

	speakerRelay := gpio.NewRelayDriver(adaptor, cfg.Speaker.Pin)
	if err := speakerRelay.Start(); err != nil {
		return nil, fmt.Errorf("starting speaker relay on pin %s: %w", cfg.Speaker.Pin, err)
	}
	started = append(started, speakerRelay.Halt)

	speaker := &pwmSpeaker{
		power: relaySwitch{relay: speakerRelay, inverted: cfg.Speaker.Inverted},
	}
	if cfg.Speaker.VolumePin != "" {
		volumePin := gpio.NewDirectPinDriver(adaptor, cfg.Speaker.VolumePin)
		if err := volumePin.Start(); err != nil {
			return nil, fmt.Errorf("starting speaker volume pin %s: %w", cfg.Speaker.VolumePin, err)
		}
		started = append(started, volumePin.Halt)
		speaker.volume = volumePin
	}

	humidifier := relaySwitch{relay: humidifierRelay, inverted: cfg.Humidifier.Inverted}

	logger.Info("raspi hardware ready",
		"i2c_bus", cfg.Sensor.I2CBus,
		"humidifier_pin", cfg.Humidifier.Pin,
		"speaker_pin", cfg.Speaker.Pin,
		"volume_pin", cfg.Speaker.VolumePin,
	)

	return &Set{
		Sensor:      &sht2xSensor{driver: sht, sensorType: sensorType(cfg.Sensor.Type, "SHT2x")},
		Humidifier:  humidifier,
		Speaker:     speaker,
		closeSensor: sht.Halt,
		closeActuators: []func() error{
			releaseFunc("humidifier", humidifier.SetPower, humidifierRelay.Halt),
			releaseFunc("speaker", func(bool) error { return speaker.SetOutput(false, 0) }, speakerRelay.Halt),
			func() error {
				if speaker.volume == nil {
					return nil
				}
				return speaker.volume.Halt()
			},
		},
		closeAdaptor: adaptor.Finalize,
	}, nil
}

// releaseFunc switches an actuator off and then halts its driver.
func releaseFunc(name string, setOff func(on bool) error, halt func() error) func() error {
	return func() error {
		offErr := setOff(false)
		haltErr := halt()
		if err := errors.Join(offErr, haltErr); err != nil {
			return fmt.Errorf("releasing %s: %w", name, err)
		}
		return nil
	}
}

// sht2xReader is the part of gobot's SHT2x driver the sensor uses.
type sht2xReader interface {
	Humidity() (float32, error)
	Temperature() (float32, error)
}

// sht2xSensor adapts gobot's SHT2x driver to sensor.Driver.
type sht2xSensor struct {
	driver     sht2xReader
	sensorType string
}

// Read takes humidity then temperature. gobot's I2C calls cannot be
// cancelled, so ctx is ignored and the Poller enforces the timeout.
func (s *sht2xSensor) Read(_ context.Context) (float64, float64, error) {
	h, err := s.driver.Humidity()
	if err != nil {
		return 0, 0, classifyI2CError("humidity", err)
	}
	t, err := s.driver.Temperature()
	if err != nil {
		return 0, 0, classifyI2CError("temperature", err)
	}
	return float64(h), float64(t), nil
}

func (s *sht2xSensor) Type() string { return s.sensorType }

// classifyI2CError maps a gobot I2C error onto a sensor fault.
func classifyI2CError(what string, err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "crc"):
		return fmt.Errorf("%w: reading %s: %w", sensor.ErrChecksum, what, err)
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "timed out"):
		return fmt.Errorf("%w: reading %s: %w", sensor.ErrTimeout, what, err)
	default:
		return fmt.Errorf("%w: reading %s: %w", sensor.ErrDeviceAbsent, what, err)
	}
}

// relay is the part of gobot's RelayDriver the actuators use.
type relay interface {
	On() error
	Off() error
}

// relaySwitch drives a relay, honouring active-low wiring.
type relaySwitch struct {
	relay    relay
	inverted bool
}

// SetPower energises the relay for on, or de-energises it when inverted.
func (r relaySwitch) SetPower(on bool) error {
	if on != r.inverted {
		return r.relay.On()
	}
	return r.relay.Off()
}

// pwmWriter is the part of gobot's DirectPinDriver used for volume.
type pwmWriter interface {
	PwmWrite(level byte) error
	Halt() error
}

// pwmSpeaker switches speaker power through a relay and sets volume
// through an optional PWM pin.
type pwmSpeaker struct {
	power  relaySwitch
	volume pwmWriter
}

// SetOutput sets the volume before switching power so the speaker never
// starts at a stale level.
func (s *pwmSpeaker) SetOutput(on bool, volume uint8) error {
	if s.volume != nil {
		level := byte(0)
		if on {
			level = pwmLevel(volume)
		}
		if err := s.volume.PwmWrite(level); err != nil {
			return fmt.Errorf("setting speaker volume: %w", err)
		}
	}
	return s.power.SetPower(on)
}

// pwmLevel scales a 0..100 volume to the 8-bit PWM range.
func pwmLevel(volume uint8) byte {
	if volume > actuator.MaxVolume {
		volume = actuator.MaxVolume
	}
	return byte(uint(volume) * pwmMax / uint(actuator.MaxVolume))
}

func sensorType(configured, fallback string) string {
	if configured != "" {
		return configured
	}
	return fallback
}
