package checks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/veris-ai/sentinel/internal/check"
)

func TestMetricsWiringPassesWithServicesEnumerated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"services":["recall","graph"],"uptime_seconds":10,"request_count":5}`))
	}))
	defer srv.Close()

	m := NewMetricsWiring()
	res := m.Run(context.Background(), newRunContext(t, srv.URL))
	assert.Equal(t, check.StatusPass, res.Status)
}

func TestMetricsWiringFailsWhenServicesEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"services":[],"uptime_seconds":10,"request_count":5}`))
	}))
	defer srv.Close()

	m := NewMetricsWiring()
	res := m.Run(context.Background(), newRunContext(t, srv.URL))
	assert.Equal(t, check.StatusFail, res.Status)
}

func TestMetricsWiringFailsWhenFieldsMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	m := NewMetricsWiring()
	res := m.Run(context.Background(), newRunContext(t, srv.URL))
	assert.Equal(t, check.StatusFail, res.Status)
}
