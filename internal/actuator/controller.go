package actuator

import (
	"fmt"
	"sync"
	"time"
)

// Controller serialises actuator commands and records their state.
//
// Thread Safety: all methods are safe for concurrent use.
type Controller struct {
	humidifier HumidifierDriver
	speaker    SpeakerDriver

	mu    sync.Mutex
	state State

	now func() time.Time
}

// NewController creates a Controller with both actuators recorded as off
// and the speaker volume at DefaultVolume. No driver write happens here.
func NewController(humidifier HumidifierDriver, speaker SpeakerDriver) *Controller {
	return &Controller{
		humidifier: humidifier,
		speaker:    speaker,
		state:      State{Volume: DefaultVolume},
		now:        time.Now,
	}
}

// State returns a snapshot of the recorded actuator state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetHumidifier switches the humidifier.
//
// Returns:
//   - DeviceStatusEvent: The humidifier's state after the call
//   - error: Wrapping ErrActuatorFault; the recorded state is unchanged
func (c *Controller) SetHumidifier(on bool) (DeviceStatusEvent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.humidifier.SetPower(on); err != nil {
		return c.humidifierEvent(false), fmt.Errorf("%w: humidifier %s: %w", ErrActuatorFault, StatusOf(on), err)
	}

	changed := c.state.HumidifierOn != on
	c.state.HumidifierOn = on
	return c.humidifierEvent(changed), nil
}

// SetSpeaker switches the speaker and sets its volume.
//
// Returns:
//   - DeviceStatusEvent: The speaker's state after the call
//   - error: ErrInvalidVolume, or wrapping ErrActuatorFault; the recorded
//     state is unchanged in both cases
func (c *Controller) SetSpeaker(on bool, volume uint8) (DeviceStatusEvent, error) {
	if volume > MaxVolume {
		return c.speakerSnapshot(), fmt.Errorf("%w: got %d", ErrInvalidVolume, volume)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.speaker.SetOutput(on, volume); err != nil {
		return c.speakerEvent(false), fmt.Errorf("%w: speaker %s at volume %d: %w", ErrActuatorFault, StatusOf(on), volume, err)
	}

	changed := c.state.SpeakerOn != on || c.state.Volume != volume
	c.state.SpeakerOn = on
	c.state.Volume = volume
	return c.speakerEvent(changed), nil
}

func (c *Controller) speakerSnapshot() DeviceStatusEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speakerEvent(false)
}

// humidifierEvent and speakerEvent must be called with mu held.
func (c *Controller) humidifierEvent(changed bool) DeviceStatusEvent {
	return DeviceStatusEvent{
		DeviceType:  Humidifier,
		Status:      StatusOf(c.state.HumidifierOn),
		TimestampMs: c.now().UnixMilli(),
		Changed:     changed,
	}
}

func (c *Controller) speakerEvent(changed bool) DeviceStatusEvent {
	volume := c.state.Volume
	return DeviceStatusEvent{
		DeviceType:  Speaker,
		Status:      StatusOf(c.state.SpeakerOn),
		TimestampMs: c.now().UnixMilli(),
		Volume:      &volume,
		Changed:     changed,
	}
}
