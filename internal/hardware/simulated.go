package hardware

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/nerrad567/deepsleep-agent/internal/infrastructure/config"
	"github.com/nerrad567/deepsleep-agent/internal/sensor"
)

// Simulated reading ranges, a plausible bedroom.
const (
	simHumidityMin    = 30.0
	simHumidityMax    = 70.0
	simTemperatureMin = 18.0
	simTemperatureMax = 28.0
)

// simulatedFaults are drawn from when a simulated read fails.
var simulatedFaults = []error{sensor.ErrDeviceAbsent, sensor.ErrChecksum, sensor.ErrTimeout}

func openSimulated(cfg config.HardwareConfig, logger Logger) *Set {
	seed := cfg.Simulated.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	logger.Info("simulated hardware ready", "fault_rate", cfg.Simulated.FaultRate, "seed", seed)

	humidifier := &SimulatedSwitch{name: "humidifier", logger: logger}
	speaker := &SimulatedSpeaker{logger: logger}
	return &Set{
		Sensor:     NewSimulatedSensor(sensorType(cfg.Sensor.Type, "simulated"), cfg.Simulated.FaultRate, seed),
		Humidifier: humidifier,
		Speaker:    speaker,
		closeActuators: []func() error{
			func() error { return humidifier.SetPower(false) },
			func() error { return speaker.SetOutput(false, 0) },
		},
	}
}

// SimulatedSensor produces random readings and occasional faults.
type SimulatedSensor struct {
	mu         sync.Mutex
	rng        *rand.Rand
	faultRate  float64
	sensorType string
}

// NewSimulatedSensor creates a simulated sensor.
//
// Parameters:
//   - sensorType: Reported as the sensor model
//   - faultRate: Probability 0..1 that a read fails
//   - seed: Random seed; the same seed gives the same sequence
func NewSimulatedSensor(sensorType string, faultRate float64, seed uint64) *SimulatedSensor {
	return &SimulatedSensor{
		rng:        rand.New(rand.NewPCG(seed, seed>>1|1)),
		faultRate:  faultRate,
		sensorType: sensorType,
	}
}

// Read returns humidity in 30..70 % and temperature in 18..28 °C,
// rounded to one decimal like a real sensor report.
func (s *SimulatedSensor) Read(ctx context.Context) (float64, float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.faultRate > 0 && s.rng.Float64() < s.faultRate {
		fault := simulatedFaults[s.rng.IntN(len(simulatedFaults))]
		return 0, 0, fmt.Errorf("%w: simulated", fault)
	}

	h := round1(simHumidityMin + s.rng.Float64()*(simHumidityMax-simHumidityMin))
	t := round1(simTemperatureMin + s.rng.Float64()*(simTemperatureMax-simTemperatureMin))
	return h, t, nil
}

// Type returns the configured sensor model.
func (s *SimulatedSensor) Type() string { return s.sensorType }

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// SimulatedSwitch logs power changes for an on/off actuator.
type SimulatedSwitch struct {
	mu     sync.Mutex
	name   string
	on     bool
	writes int
	logger Logger
}

// SetPower records and logs the new state.
func (s *SimulatedSwitch) SetPower(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.on = on
	s.writes++
	s.logger.Info("simulated actuator", "device", s.name, "on", on)
	return nil
}

// On reports the last commanded state.
func (s *SimulatedSwitch) On() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.on
}

// SimulatedSpeaker logs speaker output changes.
type SimulatedSpeaker struct {
	mu     sync.Mutex
	on     bool
	volume uint8
	logger Logger
}

// SetOutput records and logs the new state.
func (s *SimulatedSpeaker) SetOutput(on bool, volume uint8) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.on = on
	s.volume = volume
	s.logger.Info("simulated actuator", "device", "speaker", "on", on, "volume", volume)
	return nil
}

// Output reports the last commanded state.
func (s *SimulatedSpeaker) Output() (on bool, volume uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.on, s.volume
}
