package alert

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookTransportSendsEnvelope(t *testing.T) {
	var got webhookEnvelope
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	wt := NewWebhookTransport(srv.URL)
	ts := time.Now().UTC()
	err := wt.Send(context.Background(), Alert{
		CheckID: "S1-probes", Severity: SeverityCritical, Status: "fail",
		Message: "target unreachable", ConsecutiveFails: 3, FirstFailedAt: ts.Add(-time.Minute),
		Timestamp: ts, Details: map[string]any{"status_code": float64(503)},
	})
	require.NoError(t, err)

	assert.Equal(t, "S1-probes", got.CheckID)
	assert.Equal(t, "critical", got.Severity)
	assert.Equal(t, "fail", got.Status)
	assert.Equal(t, 3, got.ConsecutiveFails)
	assert.Equal(t, "target unreachable", got.Message)
	assert.Equal(t, float64(503), got.Details["status_code"])
}

func TestWebhookTransportNameIsWebhook(t *testing.T) {
	assert.Equal(t, "webhook", NewWebhookTransport("http://example.invalid").Name())
}

func TestWebhookTransportErrorsOnNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	wt := NewWebhookTransport(srv.URL)
	err := wt.Send(context.Background(), Alert{CheckID: "S1-probes", Severity: SeverityCritical})
	assert.Error(t, err)
}
