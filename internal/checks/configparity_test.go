package checks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/veris-ai/sentinel/internal/check"
)

func TestConfigParityPassesWhenEnvelopeMatches(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"auth_required":true,"vector_store":"enabled","graph_store":"enabled"}`))
	}))
	defer srv.Close()

	c := NewConfigParity()
	res := c.Run(context.Background(), newRunContext(t, srv.URL))
	assert.Equal(t, check.StatusPass, res.Status)
}

func TestConfigParityFailsOnDivergence(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"auth_required":false,"vector_store":"enabled","graph_store":"enabled"}`))
	}))
	defer srv.Close()

	c := NewConfigParity()
	res := c.Run(context.Background(), newRunContext(t, srv.URL))
	assert.Equal(t, check.StatusFail, res.Status)
	mismatches, ok := res.Details["mismatches"].(map[string]any)
	assert.True(t, ok)
	assert.Contains(t, mismatches, "auth_required")
}
