package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veris-ai/sentinel/internal/alert"
	"github.com/veris-ai/sentinel/internal/check"
	"github.com/veris-ai/sentinel/internal/credentials"
	"github.com/veris-ai/sentinel/internal/probe"
	"github.com/veris-ai/sentinel/internal/scheduler"
	"github.com/veris-ai/sentinel/internal/state"
	"github.com/veris-ai/sentinel/internal/store"
	"github.com/veris-ai/sentinel/internal/telemetry/logging"
	"github.com/veris-ai/sentinel/internal/telemetry/metrics"
	"github.com/veris-ai/sentinel/internal/telemetry/tracing"
)

type fnRunner func(ctx context.Context, rc check.RunContext) check.Result

func (f fnRunner) Run(ctx context.Context, rc check.RunContext) check.Result { return f(ctx, rc) }

const testSecret = "a-very-long-shared-secret-value"

func newTestServer(t *testing.T) (*Server, *check.Registry) {
	t.Helper()
	reg := check.NewRegistry()
	reg.Register(check.CheckDescriptor{ID: "S1-probes", Enabled: true}, fnRunner(func(ctx context.Context, rc check.RunContext) check.Result {
		return check.Result{CheckID: "S1-probes", Status: check.StatusPass, Timestamp: time.Now()}
	}))
	reg.Register(check.CheckDescriptor{ID: "S11-firewall-status", Enabled: true, HostIngested: true}, nil)

	st := state.New()
	s, err := store.Open(context.Background(), ":memory:", logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	mp := metrics.New()
	policy := alert.New(3, 15*time.Minute, nil, mp, logging.NewNop())

	cfg := scheduler.Config{
		Period: time.Hour, JitterFraction: 0, MaxParallel: 4,
		PerCheckTimeout: time.Second, CycleBudget: 5 * time.Second,
	}
	sched := scheduler.New(cfg, reg, st, s, policy, mp, logging.NewNop(), tracing.New("test"), probe.NewClient(probe.Options{}), credentials.Bundle{})

	srv := New(Config{HostCheckSharedSecret: testSecret}, reg, st, sched, s, policy, mp, logging.NewNop())
	return srv, reg
}

func decodeJSON(t *testing.T, body *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(body.Body).Decode(v))
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	decodeJSON(t, rec, &body)
	assert.Equal(t, "alive", body["status"])
}

func TestHandleRunExecutesCycleAndReturnsReport(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/run", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var report check.CycleReport
	decodeJSON(t, rec, &report)
	assert.Equal(t, 1, report.TotalChecks)
	assert.Equal(t, 1, report.Passed)
}

func TestHandleRunReturnsConflictWhenCycleInFlight(t *testing.T) {
	srv, reg := newTestServer(t)
	release := make(chan struct{})
	reg.Register(check.CheckDescriptor{ID: "S1-probes", Enabled: true}, fnRunner(func(ctx context.Context, rc check.RunContext) check.Result {
		<-release
		return check.Result{CheckID: "S1-probes", Status: check.StatusPass, Timestamp: time.Now()}
	}))

	done := make(chan struct{})
	go func() {
		defer close(done)
		req := httptest.NewRequest(http.MethodPost, "/run", nil)
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)
	}()

	time.Sleep(20 * time.Millisecond)
	req := httptest.NewRequest(http.MethodPost, "/run", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(release)
	<-done
}

func TestHandleListChecks(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/checks", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string][]check.CheckDescriptor
	decodeJSON(t, rec, &body)
	assert.Len(t, body["checks"], 2)
}

func TestHandleGetCheckNotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/checks/does-not-exist", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleCheckHistoryClampsLimit(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/checks/S1-probes/history?limit=99999", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleStartStop(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/stop", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	var body map[string]bool
	decodeJSON(t, rec, &body)
	assert.False(t, body["running"])

	req = httptest.NewRequest(http.MethodPost, "/start", nil)
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	decodeJSON(t, rec, &body)
	assert.True(t, body["running"])
}

func TestHandleHostCheckAcceptsValidIngestion(t *testing.T) {
	srv, _ := newTestServer(t)
	body := strings.NewReader(`{"status":"fail","message":"port 9999 open"}`)
	req := httptest.NewRequest(http.MethodPost, "/host-checks/S11-firewall-status", body)
	req.Header.Set("X-Host-Check-Secret", testSecret)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestHandleHostCheckRejectsUnknownID(t *testing.T) {
	srv, _ := newTestServer(t)
	body := strings.NewReader(`{"status":"pass"}`)
	req := httptest.NewRequest(http.MethodPost, "/host-checks/S1-probes", body)
	req.Header.Set("X-Host-Check-Secret", testSecret)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleHostCheckRejectsShortSecret(t *testing.T) {
	srv, _ := newTestServer(t)
	body := strings.NewReader(`{"status":"pass"}`)
	req := httptest.NewRequest(http.MethodPost, "/host-checks/S11-firewall-status", body)
	req.Header.Set("X-Host-Check-Secret", "short")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleHostCheckRejectsShellMetacharacters(t *testing.T) {
	srv, _ := newTestServer(t)
	body := strings.NewReader(`{"status":"pass"}`)
	req := httptest.NewRequest(http.MethodPost, "/host-checks/S11-firewall-status", body)
	req.Header.Set("X-Host-Check-Secret", "valid-looking-secret;$(rm -rf)")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleHostCheckRejectsPlaceholderSecret(t *testing.T) {
	srv, _ := newTestServer(t)
	body := strings.NewReader(`{"status":"pass"}`)
	req := httptest.NewRequest(http.MethodPost, "/host-checks/S11-firewall-status", body)
	req.Header.Set("X-Host-Check-Secret", placeholderSharedSecret)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleHostCheckRejectsMismatchedSecret(t *testing.T) {
	srv, _ := newTestServer(t)
	body := strings.NewReader(`{"status":"pass"}`)
	req := httptest.NewRequest(http.MethodPost, "/host-checks/S11-firewall-status", body)
	req.Header.Set("X-Host-Check-Secret", "a-completely-different-secret-value")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleHostCheckRejectsInvalidStatus(t *testing.T) {
	srv, _ := newTestServer(t)
	body := strings.NewReader(`{"status":"critical"}`)
	req := httptest.NewRequest(http.MethodPost, "/host-checks/S11-firewall-status", body)
	req.Header.Set("X-Host-Check-Secret", testSecret)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
