package sensor

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultMinInterval is the minimum time between reads for DHT11/SHT2x class sensors.
const DefaultMinInterval = 2 * time.Second

// Poller rate-limits and time-bounds reads from a Driver.
//
// Thread Safety: Poll is safe for concurrent use; concurrent callers are
// serialised and each still respects the minimum interval.
type Poller struct {
	driver      Driver
	minInterval time.Duration
	readTimeout time.Duration

	mu       sync.Mutex
	lastRead time.Time
	// inflight is closed when the most recent driver read returns. A read
	// abandoned by a cancelled Poll keeps running in the background and
	// the next Poll waits for it.
	inflight chan struct{}

	now func() time.Time
}

// NewPoller creates a Poller for driver.
//
// Parameters:
//   - driver: The sensor to read
//   - minInterval: Minimum time between read starts (DefaultMinInterval if <= 0)
//   - readTimeout: Maximum time to wait for one read (no limit if <= 0)
func NewPoller(driver Driver, minInterval, readTimeout time.Duration) *Poller {
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	return &Poller{
		driver:      driver,
		minInterval: minInterval,
		readTimeout: readTimeout,
		now:         time.Now,
	}
}

// SensorType returns the driver's sensor model.
func (p *Poller) SensorType() string {
	return p.driver.Type()
}

// Poll takes one reading.
//
// If called before the minimum interval has elapsed since the previous
// read started, Poll blocks until it has. The wait and the read both end
// early when ctx is done; in that case Err holds ctx.Err().
func (p *Poller) Poll(ctx context.Context) Reading {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.waitReady(ctx); err != nil {
		return p.failed(err)
	}

	p.lastRead = p.now()
	results := make(chan readResult, 1)
	inflight := make(chan struct{})
	p.inflight = inflight

	go func() {
		defer close(inflight)
		results <- p.read(ctx)
	}()

	var timeout <-chan time.Time
	if p.readTimeout > 0 {
		timer := time.NewTimer(p.readTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case res := <-results:
		if res.err != nil {
			return p.failed(res.err)
		}
		if err := CheckRange(res.humidity, res.temperature); err != nil {
			return p.failed(err)
		}
		return Reading{
			Humidity:    res.humidity,
			Temperature: res.temperature,
			TakenAt:     p.now(),
			SensorType:  p.driver.Type(),
		}
	case <-timeout:
		return p.failed(fmt.Errorf("%w: no response after %v", ErrTimeout, p.readTimeout))
	case <-ctx.Done():
		return p.failed(ctx.Err())
	}
}

// waitReady blocks until no read is in flight and the minimum interval has passed.
func (p *Poller) waitReady(ctx context.Context) error {
	if p.inflight != nil {
		select {
		case <-p.inflight:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if p.lastRead.IsZero() {
		return nil
	}
	wait := p.lastRead.Add(p.minInterval).Sub(p.now())
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type readResult struct {
	humidity    float64
	temperature float64
	err         error
}

// read calls the driver, converting a panic into a device fault.
func (p *Poller) read(ctx context.Context) (res readResult) {
	defer func() {
		if r := recover(); r != nil {
			res = readResult{err: fmt.Errorf("%w: driver panic: %v", ErrDeviceAbsent, r)}
		}
	}()
	h, t, err := p.driver.Read(ctx)
	return readResult{humidity: h, temperature: t, err: err}
}

func (p *Poller) failed(err error) Reading {
	return Reading{
		TakenAt:    p.now(),
		SensorType: p.driver.Type(),
		Err:        err,
	}
}
