// Package api exposes the HTTP surface (C8) and host-check ingestion (C9).
// Routing is built on go-chi, CORS on go-chi/cors, and request body
// validation on go-playground/validator, the same stack the rest of the
// pack reaches for around chi.
package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"

	"github.com/veris-ai/sentinel/internal/alert"
	"github.com/veris-ai/sentinel/internal/check"
	"github.com/veris-ai/sentinel/internal/scheduler"
	"github.com/veris-ai/sentinel/internal/state"
	"github.com/veris-ai/sentinel/internal/store"
	"github.com/veris-ai/sentinel/internal/telemetry/logging"
	"github.com/veris-ai/sentinel/internal/telemetry/metrics"
)

// placeholderSharedSecret is the value operators ship by default in example
// configuration; presenting it is always rejected (§4.9).
const placeholderSharedSecret = "changeme-shared-secret"

const shellMetacharacters = ";&|`$(){}[]\\"

// Server wires the registry, live state, scheduler, store, alert policy,
// and metrics provider behind chi's router.
type Server struct {
	registry  *check.Registry
	state     *state.State
	scheduler *scheduler.Scheduler
	store     *store.Store
	alerts    *alert.Policy
	metrics   *metrics.Provider
	logger    logging.Logger
	validate  *validator.Validate

	hostCheckSharedSecret string
	allowedOrigins        []string
}

// Config carries the server's construction-time settings.
type Config struct {
	HostCheckSharedSecret string
	AllowedOrigins        []string
}

// New builds a Server. Call Router to obtain the http.Handler to serve.
func New(cfg Config, registry *check.Registry, st *state.State, sch *scheduler.Scheduler, st6 *store.Store, alerts *alert.Policy, mp *metrics.Provider, logger logging.Logger) *Server {
	return &Server{
		registry:              registry,
		state:                 st,
		scheduler:             sch,
		store:                 st6,
		alerts:                alerts,
		metrics:               mp,
		logger:                logger,
		validate:              validator.New(),
		hostCheckSharedSecret: cfg.HostCheckSharedSecret,
		allowedOrigins:        cfg.AllowedOrigins,
	}
}

// Router builds the chi mux with every route from §4.8/§4.9.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	origins := s.allowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", "X-Host-Check-Secret"},
		MaxAge:         300,
	}))

	r.Get("/status", s.handleStatus)
	r.Post("/run", s.handleRun)
	r.Get("/checks", s.handleListChecks)
	r.Get("/checks/{id}", s.handleGetCheck)
	r.Get("/checks/{id}/history", s.handleCheckHistory)
	r.Get("/report", s.handleReport)
	r.Get("/metrics", s.metrics.Handler().ServeHTTP)
	r.Get("/health", s.handleHealth)
	r.Post("/start", s.handleStart)
	r.Post("/stop", s.handleStop)
	r.Post("/host-checks/{id}", s.handleHostCheck)

	return r
}

// errorCode is the stable machine-readable error code in a 4xx/5xx body.
type errorCode string

const (
	errCodeNotFound     errorCode = "not_found"
	errCodeBadRequest   errorCode = "bad_request"
	errCodeUnauthorized errorCode = "unauthorized"
	errCodeConflict     errorCode = "conflict"
	errCodeInternal     errorCode = "internal"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code errorCode, message string) {
	writeJSON(w, status, errorBody{Code: string(code), Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// handleStatus serves GET /status: running flag, last cycle summary,
// counts, recent failures count, and the host-check results map.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	last := s.state.LastCycle()
	hostResults := make(map[string]check.Result)
	for id := range s.registry.HostIngestedIDs() {
		if res, ok := s.state.LatestResult(id); ok {
			hostResults[id] = res
		}
	}
	resp := map[string]any{
		"running":               s.scheduler.Running(),
		"last_cycle":            last,
		"recent_failures_count": len(s.state.RecentFailures()),
		"host_check_results":    hostResults,
		"skipped_ticks":         s.scheduler.SkippedTicks(),
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleRun serves POST /run: one on-demand cycle, serialized against the
// periodic loop (§4.8: 409 if one is already running).
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	report, err := s.scheduler.RunNow(r.Context())
	if err != nil {
		if errors.Is(err, scheduler.ErrCycleInFlight) {
			writeError(w, http.StatusConflict, errCodeConflict, "a cycle is already running")
			return
		}
		writeError(w, http.StatusInternalServerError, errCodeInternal, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleListChecks serves GET /checks: the registry listing with
// enabled/deprecated flags.
func (s *Server) handleListChecks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"checks": s.registry.List()})
}

// handleGetCheck serves GET /checks/{id}: descriptor plus latest result.
func (s *Server) handleGetCheck(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	desc, err := s.registry.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, errCodeNotFound, "unknown check id")
		return
	}
	latest, _ := s.state.LatestResult(id)
	writeJSON(w, http.StatusOK, map[string]any{"descriptor": desc, "latest_result": latest})
}

// handleCheckHistory serves GET /checks/{id}/history?limit=N (default 20,
// max 200).
func (s *Server) handleCheckHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.registry.Get(id); err != nil {
		writeError(w, http.StatusNotFound, errCodeNotFound, "unknown check id")
		return
	}
	limit := parseLimit(r.URL.Query().Get("limit"), 20, 200)
	if s.store == nil {
		writeJSON(w, http.StatusOK, map[string]any{"results": []check.Result{}})
		return
	}
	results, err := s.store.History(r.Context(), id, time.Time{}, time.Time{}, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, errCodeInternal, "history lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// handleReport serves GET /report?n=N: last N cycle reports.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	n := parseLimit(r.URL.Query().Get("n"), 1, 200)
	if s.store == nil {
		if last := s.state.LastCycle(); last != nil {
			writeJSON(w, http.StatusOK, map[string]any{"reports": []check.CycleReport{*last}})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"reports": []check.CycleReport{}})
		return
	}
	reports, err := s.store.RecentCycles(r.Context(), n)
	if err != nil {
		writeError(w, http.StatusInternalServerError, errCodeInternal, "report lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": reports})
}

// handleHealth serves GET /health: Sentinel's own liveness, always cheap.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "alive"})
}

// handleStart serves POST /start.
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.scheduler.Resume()
	writeJSON(w, http.StatusOK, map[string]any{"running": true})
}

// handleStop serves POST /stop.
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.scheduler.Stop()
	writeJSON(w, http.StatusOK, map[string]any{"running": false})
}

// ingestRequest is the partial CheckResult body for host-check ingestion
// (§4.9): status, message, details, timestamp; other fields are derived.
type ingestRequest struct {
	Status    string         `json:"status" validate:"required,oneof=pass warn fail error"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details"`
	Timestamp *time.Time     `json:"timestamp"`
}

// handleHostCheck serves POST /host-checks/{id} (§4.9).
func (s *Server) handleHostCheck(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	presented := r.Header.Get("X-Host-Check-Secret")
	if reason, ok := s.authenticateHostCheck(presented); !ok {
		writeError(w, http.StatusUnauthorized, errCodeUnauthorized, reason)
		return
	}

	if !s.registry.HostIngestedIDs()[id] {
		writeError(w, http.StatusBadRequest, errCodeBadRequest, "id is not declared as host-ingested")
		return
	}

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errCodeBadRequest, "malformed request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body: "+err.Error())
		return
	}

	ts := time.Now().UTC()
	if req.Timestamp != nil {
		ts = req.Timestamp.UTC()
	}
	result := check.Result{
		CheckID:   id,
		Timestamp: ts,
		Status:    check.Status(req.Status),
		Message:   req.Message,
		Details:   req.Details,
	}
	s.state.ApplyIngested(result)
	if s.alerts != nil {
		s.alerts.Observe(r.Context(), result)
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"accepted": true})
}

// authenticateHostCheck applies §4.9's validation rules to the presented
// secret and requires it to match the configured one.
func (s *Server) authenticateHostCheck(presented string) (string, bool) {
	if len(presented) < 16 {
		return "shared secret too short", false
	}
	if strings.ContainsAny(presented, shellMetacharacters) {
		return "shared secret contains disallowed characters", false
	}
	if presented == placeholderSharedSecret {
		return "shared secret is the placeholder value", false
	}
	if s.hostCheckSharedSecret == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(s.hostCheckSharedSecret)) != 1 {
		return "shared secret mismatch", false
	}
	return "", true
}

func parseLimit(raw string, def, max int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
