package actuator

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingDriver struct {
	mu     sync.Mutex
	writes []string
	fail   error
	// active counts concurrent writes to detect interleaving.
	active  int
	maxSeen int
}

func (d *recordingDriver) record(entry string) error {
	d.mu.Lock()
	d.active++
	if d.active > d.maxSeen {
		d.maxSeen = d.active
	}
	d.mu.Unlock()

	time.Sleep(time.Millisecond)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.active--
	if d.fail != nil {
		return d.fail
	}
	d.writes = append(d.writes, entry)
	return nil
}

func (d *recordingDriver) SetPower(on bool) error {
	return d.record(string(StatusOf(on)))
}

func (d *recordingDriver) SetOutput(on bool, volume uint8) error {
	return d.record(fmt.Sprintf("%s@%d", StatusOf(on), volume))
}

func (d *recordingDriver) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.writes)
}

func newTestController() (*Controller, *recordingDriver, *recordingDriver) {
	h, s := &recordingDriver{}, &recordingDriver{}
	c := NewController(h, s)
	c.now = func() time.Time { return time.UnixMilli(1729200000000) }
	return c, h, s
}

func TestNewController_InitialState(t *testing.T) {
	c, h, s := newTestController()

	assert.Equal(t, State{Volume: DefaultVolume}, c.State())
	assert.Zero(t, h.count(), "construction must not touch hardware")
	assert.Zero(t, s.count())
}

func TestSetHumidifier(t *testing.T) {
	c, h, _ := newTestController()

	ev, err := c.SetHumidifier(true)
	require.NoError(t, err)
	assert.Equal(t, Humidifier, ev.DeviceType)
	assert.Equal(t, StatusOn, ev.Status)
	assert.True(t, ev.Changed)
	assert.Nil(t, ev.Volume)
	assert.Equal(t, int64(1729200000000), ev.TimestampMs)
	assert.True(t, c.State().HumidifierOn)
	assert.Equal(t, 1, h.count())
}

func TestSetHumidifier_IdempotentStillWrites(t *testing.T) {
	c, h, _ := newTestController()

	_, err := c.SetHumidifier(true)
	require.NoError(t, err)
	ev, err := c.SetHumidifier(true)
	require.NoError(t, err)

	assert.False(t, ev.Changed)
	assert.Equal(t, StatusOn, ev.Status)
	assert.Equal(t, 2, h.count(), "every call performs exactly one driver write")
}

func TestSetHumidifier_FaultLeavesStateUnchanged(t *testing.T) {
	c, h, _ := newTestController()
	h.fail = errors.New("gpio write failed")

	ev, err := c.SetHumidifier(true)

	assert.ErrorIs(t, err, ErrActuatorFault)
	assert.False(t, c.State().HumidifierOn)
	assert.Equal(t, StatusOff, ev.Status)
	assert.False(t, ev.Changed)
}

func TestSetSpeaker(t *testing.T) {
	c, _, s := newTestController()

	ev, err := c.SetSpeaker(true, 30)
	require.NoError(t, err)
	assert.Equal(t, Speaker, ev.DeviceType)
	assert.Equal(t, StatusOn, ev.Status)
	require.NotNil(t, ev.Volume)
	assert.Equal(t, uint8(30), *ev.Volume)
	assert.True(t, ev.Changed)

	// Same state again: still written, not changed.
	ev, err = c.SetSpeaker(true, 30)
	require.NoError(t, err)
	assert.False(t, ev.Changed)

	// Volume change alone counts as a change.
	ev, err = c.SetSpeaker(true, 60)
	require.NoError(t, err)
	assert.True(t, ev.Changed)

	assert.Equal(t, 3, s.count())
	assert.Equal(t, State{SpeakerOn: true, Volume: 60}, c.State())
}

func TestSetSpeaker_InvalidVolume(t *testing.T) {
	c, _, s := newTestController()

	_, err := c.SetSpeaker(true, 101)

	assert.ErrorIs(t, err, ErrInvalidVolume)
	assert.Zero(t, s.count())
	assert.Equal(t, State{Volume: DefaultVolume}, c.State())
}

func TestSetSpeaker_FaultLeavesStateUnchanged(t *testing.T) {
	c, _, s := newTestController()
	s.fail = errors.New("pwm unavailable")

	ev, err := c.SetSpeaker(true, 20)

	assert.ErrorIs(t, err, ErrActuatorFault)
	assert.Equal(t, State{Volume: DefaultVolume}, c.State())
	assert.Equal(t, StatusOff, ev.Status)
	assert.Equal(t, DefaultVolume, *ev.Volume)
}

func TestController_SerialisesWrites(t *testing.T) {
	h, s := &recordingDriver{}, &recordingDriver{}
	shared := &sharedDriver{h: h}
	c := NewController(shared, shared)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(on bool) {
			defer wg.Done()
			_, _ = c.SetHumidifier(on)
		}(i%2 == 0)
		go func(on bool) {
			defer wg.Done()
			_, _ = c.SetSpeaker(on, 40)
		}(i%2 == 1)
	}
	wg.Wait()

	assert.Equal(t, 1, h.maxSeen, "driver writes interleaved")
	assert.Equal(t, 40, h.count())
	assert.Zero(t, s.count())
}

// sharedDriver routes both actuators to one recorder so interleaving
// between humidifier and speaker writes is visible.
type sharedDriver struct{ h *recordingDriver }

func (d *sharedDriver) SetPower(on bool) error                { return d.h.SetPower(on) }
func (d *sharedDriver) SetOutput(on bool, volume uint8) error { return d.h.SetOutput(on, volume) }

func TestDeviceStatusEvent_JSON(t *testing.T) {
	volume := uint8(30)
	tests := []struct {
		name string
		ev   DeviceStatusEvent
		want string
	}{
		{
			name: "humidifier",
			ev:   DeviceStatusEvent{DeviceType: Humidifier, Status: StatusOn, TimestampMs: 1000, Changed: true},
			want: `{"status":"on","timestamp":1000}`,
		},
		{
			name: "speaker",
			ev:   DeviceStatusEvent{DeviceType: Speaker, Status: StatusOff, TimestampMs: 1000, Volume: &volume},
			want: `{"status":"off","timestamp":1000,"volume":30}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := json.Marshal(tt.ev)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(raw))
		})
	}
}
