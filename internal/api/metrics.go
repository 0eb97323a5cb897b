package api

import (
	"context"
	"net/http"
	"runtime"
	"time"
)

// outboundQueryTimeout bounds the outbound queue count.
const outboundQueryTimeout = 2 * time.Second

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string         `json:"timestamp"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Runtime       RuntimeMetrics `json:"runtime"`
	MQTT          MQTTMetrics    `json:"mqtt"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Connected bool `json:"connected"`
	// OutboundQueued is the number of packets in the persistent outbound
	// store; nil when persistence is disabled or the count failed.
	OutboundQueued *int `json:"outbound_queued,omitempty"`
}

// handleMetrics returns runtime and transport metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
	}

	if s.transport != nil {
		metrics.MQTT.Connected = s.transport.IsConnected()
	}

	if s.outbound != nil {
		ctx, cancel := context.WithTimeout(r.Context(), outboundQueryTimeout)
		defer cancel()
		if n, err := s.outbound.Len(ctx); err != nil {
			s.logger.Warn("counting outbound queue failed", "error", err)
		} else {
			metrics.MQTT.OutboundQueued = &n
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}
