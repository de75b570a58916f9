package checks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/veris-ai/sentinel/internal/check"
)

func TestBackupParityPassesWithCompleteSchema(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"backup_id":"b-1","created_at":"2026-07-01T00:00:00Z","size_bytes":1024,"schema_version":"v2"}`))
	}))
	defer srv.Close()

	b := NewBackupParity()
	res := b.Run(context.Background(), newRunContext(t, srv.URL))
	assert.Equal(t, check.StatusPass, res.Status)
}

func TestBackupParityFailsWhenFieldsMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"backup_id":"b-1"}`))
	}))
	defer srv.Close()

	b := NewBackupParity()
	res := b.Run(context.Background(), newRunContext(t, srv.URL))
	assert.Equal(t, check.StatusFail, res.Status)
}

func TestBackupParityErrorsOnTransportFailure(t *testing.T) {
	b := NewBackupParity()
	res := b.Run(context.Background(), newRunContext(t, "http://127.0.0.1:1"))
	assert.Equal(t, check.StatusError, res.Status)
}
