// Package settings holds the automation settings the control plane can
// change at runtime.
//
// There is one Store per process. The command router is its only writer;
// the automation loop and the status API read value snapshots.
package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
)

// ErrValidation is wrapped by every rejected patch.
var ErrValidation = errors.New("settings: validation failed")

// Accepted threshold ranges.
const (
	MinHumidityThreshold  = 0.0
	MaxHumidityThreshold  = 100.0
	MaxHeartRateThreshold = 250.0
)

// Wire field names, shared with the control plane.
const (
	fieldEnabled            = "enabled"
	fieldHumidityThreshold  = "humidityThreshold"
	fieldHeartRateThreshold = "heartRateThreshold"
)

// Settings is a snapshot of the automation settings.
type Settings struct {
	Enabled           bool    `json:"enabled"`
	HumidityThreshold float64 `json:"humidityThreshold"`
	// HeartRateThreshold is nil when heart-rate-aware control is off.
	HeartRateThreshold *float64 `json:"heartRateThreshold,omitempty"`
}

// Validate checks every field of s.
func (s Settings) Validate() error {
	if err := checkHumidityThreshold(s.HumidityThreshold); err != nil {
		return err
	}
	if s.HeartRateThreshold != nil {
		if err := checkHeartRateThreshold(*s.HeartRateThreshold); err != nil {
			return err
		}
	}
	return nil
}

// clone returns a copy that shares no memory with s.
func (s Settings) clone() Settings {
	if s.HeartRateThreshold != nil {
		v := *s.HeartRateThreshold
		s.HeartRateThreshold = &v
	}
	return s
}

// Store guards the current Settings.
//
// Thread Safety: all methods are safe for concurrent use. Readers never
// observe a partially applied patch.
type Store struct {
	mu      sync.RWMutex
	current Settings
}

// NewStore creates a Store holding initial.
//
// Returns:
//   - *Store: Ready store
//   - error: Wrapping ErrValidation if initial is invalid
func NewStore(initial Settings) (*Store, error) {
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	return &Store{current: initial.clone()}, nil
}

// Get returns a snapshot of the current settings.
func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.clone()
}

// ApplyPatch applies a partial update received as JSON.
//
// Only the fields present in raw change. The patch is all-or-nothing:
// if any recognised field is invalid nothing changes. Unrecognised
// fields (the control plane also sends "timestamp" and "source") are
// ignored. A null heartRateThreshold turns heart-rate control off.
//
// Parameters:
//   - raw: JSON object, e.g. {"humidityThreshold":45}
//
// Returns:
//   - Settings: The settings after the patch
//   - error: Wrapping ErrValidation if the patch was rejected
func (s *Store) ApplyPatch(raw []byte) (Settings, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return s.Get(), fmt.Errorf("%w: payload is not a JSON object", ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.current.clone()

	if v, ok := fields[fieldEnabled]; ok {
		var enabled bool
		if err := decodeStrict(v, &enabled); err != nil {
			return s.current.clone(), fmt.Errorf("%w: %s must be a boolean", ErrValidation, fieldEnabled)
		}
		next.Enabled = enabled
	}

	if v, ok := fields[fieldHumidityThreshold]; ok {
		var threshold float64
		if err := decodeStrict(v, &threshold); err != nil {
			return s.current.clone(), fmt.Errorf("%w: %s must be a number", ErrValidation, fieldHumidityThreshold)
		}
		if err := checkHumidityThreshold(threshold); err != nil {
			return s.current.clone(), err
		}
		next.HumidityThreshold = threshold
	}

	if v, ok := fields[fieldHeartRateThreshold]; ok {
		if isNull(v) {
			next.HeartRateThreshold = nil
		} else {
			var threshold float64
			if err := decodeStrict(v, &threshold); err != nil {
				return s.current.clone(), fmt.Errorf("%w: %s must be a number", ErrValidation, fieldHeartRateThreshold)
			}
			if err := checkHeartRateThreshold(threshold); err != nil {
				return s.current.clone(), err
			}
			next.HeartRateThreshold = &threshold
		}
	}

	s.current = next
	return next.clone(), nil
}

// decodeStrict decodes a JSON value, rejecting null.
// json.Unmarshal leaves the target untouched for null, which would make
// {"enabled":null} silently succeed.
func decodeStrict(raw json.RawMessage, v any) error {
	if isNull(raw) {
		return errors.New("null value")
	}
	return json.Unmarshal(raw, v)
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func checkHumidityThreshold(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < MinHumidityThreshold || v > MaxHumidityThreshold {
		return fmt.Errorf("%w: %s %v not in [%v, %v]",
			ErrValidation, fieldHumidityThreshold, v, MinHumidityThreshold, MaxHumidityThreshold)
	}
	return nil
}

func checkHeartRateThreshold(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 || v > MaxHeartRateThreshold {
		return fmt.Errorf("%w: %s %v not in (0, %v]",
			ErrValidation, fieldHeartRateThreshold, v, MaxHeartRateThreshold)
	}
	return nil
}
