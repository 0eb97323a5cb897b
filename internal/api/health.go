package api

import (
	"context"
	"net/http"
	"time"
)

// healthCheckTimeout bounds each component check.
const healthCheckTimeout = 2 * time.Second

// HealthResponse is the body of GET /api/v1/health.
type HealthResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	Components map[string]string `json:"components"`
}

// handleHealth runs every component check. Any failure answers 503 so
// supervisors can tell a degraded agent apart.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:     "ok",
		Version:    s.version,
		Components: make(map[string]string, len(s.health)+1),
	}

	if s.transport == nil {
		resp.Components["mqtt"] = "not configured"
	} else {
		resp.Components["mqtt"] = s.check(r.Context(), "mqtt", s.transport)
	}
	for name, hc := range s.health {
		resp.Components[name] = s.check(r.Context(), name, hc)
	}

	code := http.StatusOK
	for _, state := range resp.Components {
		if state != "ok" {
			resp.Status, code = "degraded", http.StatusServiceUnavailable
			break
		}
	}
	writeJSON(w, code, resp)
}

// check returns "ok" or the failure message for one component.
func (s *Server) check(ctx context.Context, name string, hc HealthChecker) string {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	if err := hc.HealthCheck(ctx); err != nil {
		s.logger.Warn("health check failed", "component", name, "error", err)
		return err.Error()
	}
	return "ok"
}
