// Package check defines the result and descriptor contracts shared by every
// check implementation, the registry, and the scheduler.
package check

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status is the outcome of one check execution.
type Status string

const (
	StatusPass  Status = "pass"
	StatusWarn  Status = "warn"
	StatusFail  Status = "fail"
	StatusError Status = "error"
)

// maxDetailsBytes bounds the serialized size of a Result's Details map (§3).
const maxDetailsBytes = 16 * 1024

// DeprecationInfo is attached to results produced by the deprecation shim (C10).
type DeprecationInfo struct {
	DeprecatedSince string `json:"deprecated_since"`
	RemovalPlanned  string `json:"removal_planned,omitempty"`
	ConsolidatedInto string `json:"consolidated_into"`
}

// Result is the immutable outcome of one check execution (C1).
type Result struct {
	CheckID         string          `json:"check_id"`
	Timestamp       time.Time       `json:"timestamp"`
	Status          Status          `json:"status"`
	LatencyMS       int64           `json:"latency_ms"`
	Message         string          `json:"message"`
	Details         map[string]any  `json:"details,omitempty"`
	TraceID         string          `json:"trace_id"`
	Deprecated      bool            `json:"deprecated,omitempty"`
	DeprecationInfo *DeprecationInfo `json:"deprecation_info,omitempty"`
}

// Validate enforces the invariants in §3: latency is non-negative, status is
// one of the four known values, and error results carry a message.
func (r Result) Validate() error {
	if r.LatencyMS < 0 {
		return fmt.Errorf("check %s: negative latency_ms %d", r.CheckID, r.LatencyMS)
	}
	switch r.Status {
	case StatusPass, StatusWarn, StatusFail, StatusError:
	default:
		return fmt.Errorf("check %s: invalid status %q", r.CheckID, r.Status)
	}
	if r.Status == StatusError && r.Message == "" {
		return fmt.Errorf("check %s: error result missing message", r.CheckID)
	}
	return nil
}

// DetailsJSON marshals Details, truncating (and noting truncation) if the
// encoded form would exceed maxDetailsBytes.
func (r Result) DetailsJSON() ([]byte, error) {
	if r.Details == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(r.Details)
	if err != nil {
		return nil, err
	}
	if len(b) <= maxDetailsBytes {
		return b, nil
	}
	truncated := map[string]any{
		"_truncated":     true,
		"_original_size": len(b),
	}
	tb, err := json.Marshal(truncated)
	if err != nil {
		return nil, err
	}
	return tb, nil
}

// IsNonPass reports whether this result counts toward an alert streak (§4.7):
// fail and error do, pass and warn do not (warn never counts by default).
func (r Result) IsNonPass() bool {
	return r.Status == StatusFail || r.Status == StatusError
}

// CycleReport aggregates the results of one scheduler tick (C5 produces it).
type CycleReport struct {
	CycleID     string    `json:"cycle_id"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Results     []Result  `json:"results"`
	TotalChecks int       `json:"total_checks"`
	Passed      int       `json:"passed"`
	Warned      int       `json:"warned"`
	Failed      int       `json:"failed"`
	Errored     int       `json:"errored"`
	DurationMS  int64     `json:"duration_ms"`
	Truncated   bool      `json:"truncated"`
}

// NewCycleReport derives the count fields from results and the duration
// from the start and finish instants. It does not validate the individual
// results.
func NewCycleReport(cycleID string, startedAt, finishedAt time.Time, results []Result, truncated bool) CycleReport {
	r := CycleReport{
		CycleID:    cycleID,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		Results:    results,
		Truncated:  truncated,
		DurationMS: finishedAt.Sub(startedAt).Milliseconds(),
	}
	for _, res := range results {
		switch res.Status {
		case StatusPass:
			r.Passed++
		case StatusWarn:
			r.Warned++
		case StatusFail:
			r.Failed++
		case StatusError:
			r.Errored++
		}
	}
	r.TotalChecks = len(results)
	return r
}

// CheckDescriptor is the registry's metadata record for one check (C2).
type CheckDescriptor struct {
	ID                string `json:"id"`
	HumanDescription  string `json:"human_description"`
	DefaultTimeoutMS  int64  `json:"default_timeout_ms"`
	Enabled           bool   `json:"enabled"`
	Deprecated        bool   `json:"deprecated"`
	SuccessorID       string `json:"successor_id,omitempty"`
	HostIngested      bool   `json:"host_ingested,omitempty"`
}

// CycleBudgetExceededMessage is the fixed message used for synthetic error
// results produced when the cycle wall-clock budget elapses (§3, §4.5).
const CycleBudgetExceededMessage = "cycle budget exceeded"

// CheckTimeoutMessage is the fixed message used when a check is cancelled
// for exceeding its per-check timeout (§4.5).
const CheckTimeoutMessage = "check timeout"
