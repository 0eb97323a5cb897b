package sensor

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// MaxHeartRate is the largest bpm value accepted from a wearable.
const MaxHeartRate = 250.0

// HeartRateTracker holds the latest heart-rate sample.
//
// Samples older than maxAge are treated as absent so a wearable that
// stops reporting does not pin the speaker in its last state.
type HeartRateTracker struct {
	mu     sync.RWMutex
	bpm    float64
	at     time.Time
	maxAge time.Duration
	now    func() time.Time
}

// NewHeartRateTracker creates a tracker. A maxAge <= 0 means samples never expire.
func NewHeartRateTracker(maxAge time.Duration) *HeartRateTracker {
	return &HeartRateTracker{
		maxAge: maxAge,
		now:    time.Now,
	}
}

// Update records a sample received now.
func (t *HeartRateTracker) Update(bpm float64) error {
	if math.IsNaN(bpm) || math.IsInf(bpm, 0) || bpm <= 0 || bpm > MaxHeartRate {
		return fmt.Errorf("%w: %v bpm", ErrInvalidHeartRate, bpm)
	}

	t.mu.Lock()
	t.bpm = bpm
	t.at = t.now()
	t.mu.Unlock()
	return nil
}

// Latest returns the most recent sample if it is still fresh.
func (t *HeartRateTracker) Latest() (bpm float64, ok bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.at.IsZero() {
		return 0, false
	}
	if t.maxAge > 0 && t.now().Sub(t.at) > t.maxAge {
		return 0, false
	}
	return t.bpm, true
}
