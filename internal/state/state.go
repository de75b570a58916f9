// Package state holds the process's live, in-memory view of check and
// cycle results: the single "latest result per check id" rendezvous point
// shared by the scheduler, host-check ingestion, and the API (§4.9, §9),
// the atomically-swapped "last cycle" slot, and the bounded ring buffers
// for recent failures/reports/traces (§3).
package state

import (
	"sync"
	"time"

	"github.com/veris-ai/sentinel/internal/check"
)

const (
	recentFailuresCapacity = 200
	recentReportsCapacity  = 50
	recentTracesCapacity   = 500
)

// TraceEntry is one (check_id, trace_id, timestamp, excerpt) tuple in the
// recent-traces ring buffer (§3).
type TraceEntry struct {
	CheckID   string    `json:"check_id"`
	TraceID   string    `json:"trace_id"`
	Timestamp time.Time `json:"timestamp"`
	Excerpt   string    `json:"excerpt"`
}

// State is the shared mutable core the scheduler writes to and the API
// reads from. Its lock guards only the "last cycle" slot and the latest-
// result map; the ring buffers carry their own internal locks (§9).
type State struct {
	mu            sync.RWMutex
	lastCycle     *check.CycleReport
	latestResults map[string]check.Result

	failures *ring[check.Result]
	reports  *ring[check.CycleReport]
	traces   *ring[TraceEntry]
}

// New builds an empty State with the fixed ring-buffer capacities from §3.
func New() *State {
	return &State{
		latestResults: make(map[string]check.Result),
		failures:      newRing[check.Result](recentFailuresCapacity),
		reports:       newRing[check.CycleReport](recentReportsCapacity),
		traces:        newRing[TraceEntry](recentTracesCapacity),
	}
}

// ApplyCycle atomically swaps in a completed cycle report (§4.5 step 5,
// §5 "between cycles the slot is replaced atomically"), updates every
// result's "latest" entry, and folds failing results into the recent-
// failures buffer.
func (s *State) ApplyCycle(report check.CycleReport) {
	s.mu.Lock()
	reportCopy := report
	s.lastCycle = &reportCopy
	for _, r := range report.Results {
		s.latestResults[r.CheckID] = r
	}
	s.mu.Unlock()

	s.reports.push(report)
	for _, r := range report.Results {
		if r.IsNonPass() {
			s.failures.push(r)
		}
		if r.TraceID != "" {
			s.traces.push(TraceEntry{CheckID: r.CheckID, TraceID: r.TraceID, Timestamp: r.Timestamp, Excerpt: r.Message})
		}
	}
}

// ApplyIngested folds an externally produced result into the latest-result
// map and failure buffer outside the scheduler loop (§4.9, §9).
func (s *State) ApplyIngested(r check.Result) {
	s.mu.Lock()
	s.latestResults[r.CheckID] = r
	s.mu.Unlock()

	if r.IsNonPass() {
		s.failures.push(r)
	}
	if r.TraceID != "" {
		s.traces.push(TraceEntry{CheckID: r.CheckID, TraceID: r.TraceID, Timestamp: r.Timestamp, Excerpt: r.Message})
	}
}

// LastCycle returns a copy of the most recently completed cycle, or nil if
// no cycle has completed yet.
func (s *State) LastCycle() *check.CycleReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastCycle == nil {
		return nil
	}
	cp := *s.lastCycle
	return &cp
}

// LatestResult returns the latest known result for id, if any.
func (s *State) LatestResult(id string) (check.Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.latestResults[id]
	return r, ok
}

// LatestAll returns a snapshot copy of every check id's latest result,
// keyed by check id.
func (s *State) LatestAll() map[string]check.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]check.Result, len(s.latestResults))
	for k, v := range s.latestResults {
		out[k] = v
	}
	return out
}

// RecentFailures returns a newest-first snapshot of the recent-failures
// ring buffer.
func (s *State) RecentFailures() []check.Result { return s.failures.snapshot() }

// RecentReports returns a newest-first snapshot of the recent cycle
// reports ring buffer.
func (s *State) RecentReports() []check.CycleReport { return s.reports.snapshot() }

// RecentTraces returns a newest-first snapshot of the recent-traces ring
// buffer.
func (s *State) RecentTraces() []TraceEntry { return s.traces.snapshot() }
