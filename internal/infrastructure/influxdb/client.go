package influxdb

import (
	"context"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/nerrad567/deepsleep-agent/internal/infrastructure/config"
)

const (
	connectTimeout = 10 * time.Second
	pingTimeout    = 5 * time.Second

	defaultBatchSize     = 100
	defaultFlushInterval = 10 // seconds
)

// Client mirrors agent telemetry into an InfluxDB v2 bucket.
//
// The agent keeps no history of its own; when this sink is enabled every
// reading and actuator status change is also written here as a point.
// Writes are batched and never block the automation loop. All methods are
// safe for concurrent use.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	deviceID string

	mu        sync.RWMutex
	connected bool
	onError   func(err error)

	// Async write failures since the last HealthCheck.
	writeFailures int
	lastWriteErr  error
}

// Connect pings the server and opens a batched, non-blocking write API
// for cfg.Bucket.
//
// Parameters:
//   - ctx: Context bounding the initial ping
//   - cfg: InfluxDB section of the agent configuration
//   - deviceID: Tag value attached to every point
//
// Returns:
//   - *Client: Ready for WriteReading / WriteActuatorStatus
//   - error: ErrDisabled, or wrapping ErrConnectionFailed
func Connect(ctx context.Context, cfg config.InfluxDBConfig, deviceID string) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	flushSeconds := cfg.FlushInterval
	if flushSeconds <= 0 {
		flushSeconds = defaultFlushInterval
	}

	// #nosec G115 -- both values are positive here
	opts := influxdb2.DefaultOptions().
		SetBatchSize(uint(batchSize)).
		SetFlushInterval(uint(time.Duration(flushSeconds) * time.Second / time.Millisecond))
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := ping(pingCtx, client); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)
	c := &Client{
		client:    client,
		writeAPI:  writeAPI,
		deviceID:  deviceID,
		connected: true,
	}
	go c.handleWriteErrors(writeAPI.Errors())

	return c, nil
}

func ping(ctx context.Context, client influxdb2.Client) error {
	healthy, err := client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	if !healthy {
		return fmt.Errorf("server not healthy")
	}
	return nil
}

// handleWriteErrors drains async batch errors until the write API closes.
func (c *Client) handleWriteErrors(errorsCh <-chan error) {
	for err := range errorsCh {
		c.mu.Lock()
		c.writeFailures++
		c.lastWriteErr = err
		callback := c.onError
		c.mu.Unlock()

		if callback != nil {
			callback(err)
		}
	}
}

// takeWriteFailures returns an error wrapping ErrWriteFailed if any batch
// failed since the previous call, and resets the count.
func (c *Client) takeWriteFailures() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeFailures == 0 {
		return nil
	}
	err := fmt.Errorf("%w: %d batch(es), last: %w", ErrWriteFailed, c.writeFailures, c.lastWriteErr)
	c.writeFailures, c.lastWriteErr = 0, nil
	return err
}

// Close flushes pending writes and closes the underlying client.
// Calls after the first are no-ops.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return nil
	}
	c.connected = false
	c.mu.Unlock()

	c.writeAPI.Flush()
	c.client.Close()
	return nil
}

// HealthCheck pings the server and reports batch writes that failed since
// the previous check. The status API calls it for the "influxdb" component.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := ping(pingCtx, c.client); err != nil {
		return fmt.Errorf("influxdb health check: %w", err)
	}
	return c.takeWriteFailures()
}

// IsConnected reports whether Connect succeeded and Close has not been
// called. It does not contact the server.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// SetOnError sets a callback for async batch write failures.
func (c *Client) SetOnError(callback func(err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = callback
}
