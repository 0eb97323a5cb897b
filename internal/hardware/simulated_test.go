package hardware

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/deepsleep-agent/internal/infrastructure/config"
	"github.com/nerrad567/deepsleep-agent/internal/sensor"
)

func TestOpen_Simulated(t *testing.T) {
	cfg := config.Default().Hardware
	cfg.Simulated.Seed = 42

	set, err := Open(cfg, nil)
	require.NoError(t, err)

	require.NotNil(t, set.Sensor)
	require.NotNil(t, set.Humidifier)
	require.NotNil(t, set.Speaker)
	assert.Equal(t, "simulated", set.Sensor.Type(), "fake readings must not carry a real sensor model")

	require.NoError(t, set.Humidifier.SetPower(true))
	require.NoError(t, set.Speaker.SetOutput(true, 30))

	require.NoError(t, set.CloseSensor())
	require.NoError(t, set.CloseActuators())

	assert.False(t, set.Humidifier.(*SimulatedSwitch).On(), "close must switch the humidifier off")
	on, _ := set.Speaker.(*SimulatedSpeaker).Output()
	assert.False(t, on, "close must switch the speaker off")
}

func TestOpen_UnsupportedMode(t *testing.T) {
	cfg := config.Default().Hardware
	cfg.Mode = "arduino"

	_, err := Open(cfg, nil)
	assert.ErrorIs(t, err, ErrUnsupportedMode)
}

func TestSimulatedSensor_Ranges(t *testing.T) {
	s := NewSimulatedSensor("simulated", 0, 7)

	for i := 0; i < 500; i++ {
		h, temp, err := s.Read(context.Background())
		require.NoError(t, err)
		assert.GreaterOrEqual(t, h, simHumidityMin)
		assert.LessOrEqual(t, h, simHumidityMax)
		assert.GreaterOrEqual(t, temp, simTemperatureMin)
		assert.LessOrEqual(t, temp, simTemperatureMax)
		assert.NoError(t, sensor.CheckRange(h, temp))
	}
}

func TestSimulatedSensor_Reproducible(t *testing.T) {
	a := NewSimulatedSensor("simulated", 0.2, 99)
	b := NewSimulatedSensor("simulated", 0.2, 99)

	for i := 0; i < 50; i++ {
		ha, ta, ea := a.Read(context.Background())
		hb, tb, eb := b.Read(context.Background())
		assert.Equal(t, ha, hb)
		assert.Equal(t, ta, tb)
		assert.Equal(t, ea == nil, eb == nil)
	}
}

func TestSimulatedSensor_FaultRate(t *testing.T) {
	always := NewSimulatedSensor("simulated", 1, 1)
	for i := 0; i < 20; i++ {
		_, _, err := always.Read(context.Background())
		require.Error(t, err)
		assert.NotEqual(t, "unknown", sensor.FaultKind(err), "simulated faults must be typed sensor faults")
	}

	never := NewSimulatedSensor("simulated", 0, 1)
	for i := 0; i < 20; i++ {
		_, _, err := never.Read(context.Background())
		require.NoError(t, err)
	}
}

func TestSimulatedSensor_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := NewSimulatedSensor("simulated", 0, 1).Read(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
