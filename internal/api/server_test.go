package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nerrad567/deepsleep-agent/internal/actuator"
	"github.com/nerrad567/deepsleep-agent/internal/infrastructure/config"
	"github.com/nerrad567/deepsleep-agent/internal/infrastructure/logging"
	"github.com/nerrad567/deepsleep-agent/internal/sensor"
	"github.com/nerrad567/deepsleep-agent/internal/settings"
)

type stubTransport struct{ connected bool }

func (s stubTransport) IsConnected() bool { return s.connected }

func (s stubTransport) HealthCheck(context.Context) error {
	if !s.connected {
		return errors.New("mqtt: client not connected")
	}
	return nil
}

type stubChecker struct{ err error }

func (s stubChecker) HealthCheck(context.Context) error { return s.err }

type stubSettings struct{ s settings.Settings }

func (s stubSettings) Get() settings.Settings { return s.s }

type stubActuators struct{ state actuator.State }

func (s stubActuators) State() actuator.State { return s.state }

type stubReadings struct{ r sensor.Reading }

func (s stubReadings) LastReading() sensor.Reading { return s.r }

type stubQueue struct {
	n   int
	err error
}

func (s stubQueue) Len(context.Context) (int, error) { return s.n, s.err }

func testDeps() Deps {
	threshold := 80.0
	return Deps{
		Config: config.APIConfig{
			Host:     "127.0.0.1",
			Port:     0,
			Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
		},
		Logger:    logging.Discard(),
		DeviceID:  "bedroom-01",
		Version:   "test",
		Transport: stubTransport{connected: true},
		Settings:  stubSettings{settings.Settings{Enabled: true, HumidityThreshold: 40, HeartRateThreshold: &threshold}},
		Actuators: stubActuators{actuator.State{HumidifierOn: true, Volume: 30}},
		Readings: stubReadings{sensor.Reading{
			Humidity:    35.5,
			Temperature: 21.2,
			SensorType:  "SHT2x",
			TakenAt:     time.Date(2026, 10, 18, 22, 0, 0, 0, time.UTC),
		}},
	}
}

func testServer(t *testing.T, deps Deps) *Server {
	t.Helper()
	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return srv
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
}

func TestNew_MissingDeps(t *testing.T) {
	deps := testDeps()
	deps.Logger = nil
	if _, err := New(deps); err == nil {
		t.Error("New() without logger should fail")
	}

	deps = testDeps()
	deps.Readings = nil
	if _, err := New(deps); err == nil {
		t.Error("New() without reading source should fail")
	}
}

func TestHandleHealth(t *testing.T) {
	tests := []struct {
		name           string
		transport      Transport
		health         map[string]HealthChecker
		wantCode       int
		wantStatus     string
		wantComponents map[string]string
	}{
		{
			name:           "connected",
			transport:      stubTransport{connected: true},
			wantCode:       http.StatusOK,
			wantStatus:     "ok",
			wantComponents: map[string]string{"mqtt": "ok"},
		},
		{
			name:           "disconnected",
			transport:      stubTransport{connected: false},
			wantCode:       http.StatusServiceUnavailable,
			wantStatus:     "degraded",
			wantComponents: map[string]string{"mqtt": "mqtt: client not connected"},
		},
		{
			name:           "no transport",
			wantCode:       http.StatusServiceUnavailable,
			wantStatus:     "degraded",
			wantComponents: map[string]string{"mqtt": "not configured"},
		},
		{
			name:      "all components healthy",
			transport: stubTransport{connected: true},
			health: map[string]HealthChecker{
				"database": stubChecker{},
				"influxdb": stubChecker{},
			},
			wantCode:       http.StatusOK,
			wantStatus:     "ok",
			wantComponents: map[string]string{"mqtt": "ok", "database": "ok", "influxdb": "ok"},
		},
		{
			name:      "influxdb unreachable",
			transport: stubTransport{connected: true},
			health: map[string]HealthChecker{
				"database": stubChecker{},
				"influxdb": stubChecker{err: errors.New("influxdb health check failed: timeout")},
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "degraded",
			wantComponents: map[string]string{
				"mqtt":     "ok",
				"database": "ok",
				"influxdb": "influxdb health check failed: timeout",
			},
		},
		{
			name:           "nil checker skipped",
			transport:      stubTransport{connected: true},
			health:         map[string]HealthChecker{"database": nil},
			wantCode:       http.StatusOK,
			wantStatus:     "ok",
			wantComponents: map[string]string{"mqtt": "ok"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := testDeps()
			deps.Transport = tt.transport
			deps.Health = tt.health
			rec := get(t, testServer(t, deps), "/api/v1/health")

			if rec.Code != tt.wantCode {
				t.Errorf("status code = %d, want %d", rec.Code, tt.wantCode)
			}
			var body HealthResponse
			decode(t, rec, &body)
			if body.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", body.Status, tt.wantStatus)
			}
			if body.Version != "test" {
				t.Errorf("version = %q, want test", body.Version)
			}
			if len(body.Components) != len(tt.wantComponents) {
				t.Errorf("components = %v, want %v", body.Components, tt.wantComponents)
			}
			for name, want := range tt.wantComponents {
				if got := body.Components[name]; got != want {
					t.Errorf("components[%s] = %q, want %q", name, got, want)
				}
			}
		})
	}
}

func TestHandleStatus(t *testing.T) {
	rec := get(t, testServer(t, testDeps()), "/api/v1/status")

	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d, want 200", rec.Code)
	}
	var body StatusResponse
	decode(t, rec, &body)

	if body.DeviceID != "bedroom-01" {
		t.Errorf("device_id = %q, want bedroom-01", body.DeviceID)
	}
	if body.Settings.HumidityThreshold != 40 || body.Settings.HeartRateThreshold == nil {
		t.Errorf("settings = %+v, want threshold 40 and a heart-rate threshold", body.Settings)
	}
	if body.Humidifier.Status != actuator.StatusOn {
		t.Errorf("humidifier = %q, want on", body.Humidifier.Status)
	}
	if body.Speaker.Status != actuator.StatusOff || body.Speaker.Volume == nil || *body.Speaker.Volume != 30 {
		t.Errorf("speaker = %+v, want off at volume 30", body.Speaker)
	}
	if body.LastReading == nil || body.LastReading.Humidity == nil || *body.LastReading.Humidity != 35.5 {
		t.Fatalf("last_reading = %+v, want humidity 35.5", body.LastReading)
	}
	if body.LastReading.TakenAt != "2026-10-18T22:00:00Z" {
		t.Errorf("taken_at = %q", body.LastReading.TakenAt)
	}
}

func TestHandleStatus_FailedReading(t *testing.T) {
	deps := testDeps()
	deps.Readings = stubReadings{sensor.Reading{SensorType: "SHT2x", Err: fmt.Errorf("read: %w", sensor.ErrChecksum)}}
	rec := get(t, testServer(t, deps), "/api/v1/status")

	var body StatusResponse
	decode(t, rec, &body)
	if body.LastReading == nil {
		t.Fatal("last_reading missing for a failed read")
	}
	if body.LastReading.Fault != "checksum" {
		t.Errorf("fault = %q, want checksum", body.LastReading.Fault)
	}
	if body.LastReading.Humidity != nil {
		t.Error("failed reading should carry no values")
	}
}

func TestHandleStatus_NoReadingYet(t *testing.T) {
	deps := testDeps()
	deps.Readings = stubReadings{}
	rec := get(t, testServer(t, deps), "/api/v1/status")

	var body StatusResponse
	decode(t, rec, &body)
	if body.LastReading != nil {
		t.Errorf("last_reading = %+v, want omitted", body.LastReading)
	}
}

func TestHandleMetrics(t *testing.T) {
	tests := []struct {
		name       string
		outbound   QueueMeter
		wantQueued *int
	}{
		{"no persistence", nil, nil},
		{"queued", stubQueue{n: 3}, intPtr(3)},
		{"count failed", stubQueue{err: errors.New("locked")}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := testDeps()
			deps.Outbound = tt.outbound
			rec := get(t, testServer(t, deps), "/api/v1/metrics")

			var body SystemMetrics
			decode(t, rec, &body)
			if !body.MQTT.Connected {
				t.Error("mqtt.connected = false, want true")
			}
			if body.Runtime.Goroutines == 0 {
				t.Error("runtime.goroutines = 0")
			}
			switch {
			case tt.wantQueued == nil && body.MQTT.OutboundQueued != nil:
				t.Errorf("outbound_queued = %d, want omitted", *body.MQTT.OutboundQueued)
			case tt.wantQueued != nil && (body.MQTT.OutboundQueued == nil || *body.MQTT.OutboundQueued != *tt.wantQueued):
				t.Errorf("outbound_queued = %v, want %d", body.MQTT.OutboundQueued, *tt.wantQueued)
			}
		})
	}
}

func intPtr(n int) *int { return &n }

func TestRouter_ReadOnlyAndNotFound(t *testing.T) {
	srv := testServer(t, testDeps())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/status", nil)
	rec := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST status code = %d, want 405", rec.Code)
	}

	rec = get(t, srv, "/api/v1/devices")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown path status code = %d, want 404", rec.Code)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	srv := testServer(t, testDeps())

	rec := get(t, srv, "/api/v1/health")
	if id := rec.Header().Get("X-Request-ID"); len(id) != 36 {
		t.Errorf("generated X-Request-ID = %q, want a UUID", id)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "abc123")
	rec = httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "abc123" {
		t.Errorf("X-Request-ID = %q, want client value", got)
	}
}

type panickingActuators struct{}

func (panickingActuators) State() actuator.State { panic("boom") }

func TestRecoveryMiddleware(t *testing.T) {
	deps := testDeps()
	deps.Actuators = panickingActuators{}
	rec := get(t, testServer(t, deps), "/api/v1/status")

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status code = %d, want 500", rec.Code)
	}
}

func TestServer_StartClose(t *testing.T) {
	srv := testServer(t, testDeps())
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	resp, err := http.Get("http://" + srv.Addr() + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status code = %d, want 200", resp.StatusCode)
	}

	if err := srv.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
}

func TestServer_CloseBeforeStart(t *testing.T) {
	srv := testServer(t, testDeps())
	if err := srv.Close(); err != nil {
		t.Errorf("Close() before Start() error: %v", err)
	}
	if srv.Addr() != "" {
		t.Errorf("Addr() before Start() = %q, want empty", srv.Addr())
	}
}
