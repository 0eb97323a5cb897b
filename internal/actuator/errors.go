package actuator

import "errors"

var (
	// ErrActuatorFault wraps every driver failure.
	ErrActuatorFault = errors.New("actuator: driver fault")

	// ErrInvalidVolume is returned for a speaker volume above MaxVolume.
	ErrInvalidVolume = errors.New("actuator: volume must be 0..100")
)
