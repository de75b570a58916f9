package probe

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

func TestTimedGetSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "alive"})
	}))
	defer srv.Close()

	c := NewClient(Options{DefaultTimeout: time.Second})
	resp := c.TimedGet(context.Background(), srv.URL, time.Second, nil)

	require.NoError(t, resp.TransportError)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.GreaterOrEqual(t, resp.ElapsedMS, int64(0))

	var payload map[string]string
	require.NoError(t, ParseJSON(resp.Body, &payload))
	assert.Equal(t, "alive", payload["status"])
}

func TestTimedGetHonorsHeaders(t *testing.T) {
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-API-Key")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(Options{})
	c.TimedGet(context.Background(), srv.URL, time.Second, map[string]string{"X-API-Key": "secret"})
	assert.Equal(t, "secret", gotHeader)
}

func TestTimedGetTimeoutClassifiesAsTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(Options{})
	resp := c.TimedGet(context.Background(), srv.URL, 5*time.Millisecond, nil)
	require.Error(t, resp.TransportError)
	assert.Equal(t, ErrorClassTimeout, ClassifyError(resp.TransportError))
}

func TestNoRedirectsFollowedByDefault(t *testing.T) {
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer target.Close()

	redirector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target.URL, http.StatusFound)
	}))
	defer redirector.Close()

	c := NewClient(Options{})
	resp := c.TimedGet(context.Background(), redirector.URL, time.Second, nil)
	require.NoError(t, resp.TransportError)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
}

func TestParseJSONRejectsEmptyBody(t *testing.T) {
	var v map[string]string
	err := ParseJSON(nil, &v)
	assert.Error(t, err)
}

func TestClassifyErrorDNS(t *testing.T) {
	c := NewClient(Options{DefaultTimeout: 200 * time.Millisecond})
	resp := c.TimedGet(context.Background(), "http://this-host-does-not-resolve.invalid", 200*time.Millisecond, nil)
	require.Error(t, resp.TransportError)
	class := ClassifyError(resp.TransportError)
	assert.Contains(t, []ErrorClass{ErrorClassDNS, ErrorClassConnect, ErrorClassTimeout, ErrorClassOther}, class)
}
