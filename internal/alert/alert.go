// Package alert implements the failure-streak debounce policy (C7): per
// check id it tracks consecutive failures, decides when to emit or
// suppress an alert, maps severity, and fans the alert out to zero or more
// transports.
package alert

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/veris-ai/sentinel/internal/check"
	"github.com/veris-ai/sentinel/internal/telemetry/logging"
	"github.com/veris-ai/sentinel/internal/telemetry/metrics"
)

// Severity bounds which transports carry an alert (§4.7).
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// criticalCheckIDs names the checks whose error/fail status is always
// critical regardless of the generic status->severity mapping (§4.7: "error
// or specific critical checks (S1, S6) -> critical").
var criticalCheckIDs = map[string]bool{
	"S1-probes":               true,
	"S6-backup-restore-parity": true,
}

// FailureStreak is the per-check-id bookkeeping the policy maintains (C7
// data model).
type FailureStreak struct {
	CheckID             string
	ConsecutiveFails    int
	FirstFailedAt       time.Time
	LastAlertedAt       time.Time
	LastAlertFingerprint string
}

// Alert is the structured payload handed to every transport (§6: webhook
// envelope is {check_id, severity, status, consecutive_fails,
// first_failed_at, last_ts, message, details}).
type Alert struct {
	CheckID          string
	Severity         Severity
	Status           check.Status
	Message          string
	Details          map[string]any
	ConsecutiveFails int
	FirstFailedAt    time.Time
	Timestamp        time.Time
	Recovery         bool
}

// Transport delivers an Alert; failures are isolated per-transport (§4.7).
type Transport interface {
	Name() string
	Send(ctx context.Context, a Alert) error
}

// Policy owns the failure-streak table and the configured transport set.
type Policy struct {
	mu         sync.Mutex
	streaks    map[string]*FailureStreak
	threshold  int
	cooldown   time.Duration
	transports []Transport
	metrics    *metrics.Provider
	logger     logging.Logger
}

// New builds a Policy. threshold is the consecutive-failure count (A,
// default 3) that triggers the first alert; cooldown bounds re-emission
// while the streak continues (default 15m).
func New(threshold int, cooldown time.Duration, transports []Transport, mp *metrics.Provider, logger logging.Logger) *Policy {
	if threshold <= 0 {
		threshold = 3
	}
	return &Policy{
		streaks:    make(map[string]*FailureStreak),
		threshold:  threshold,
		cooldown:   cooldown,
		transports: transports,
		metrics:    mp,
		logger:     logger,
	}
}

// Observe folds one result into the failure-streak table and emits an
// alert (or recovery notification) when the policy's rules call for one
// (§4.7). It is called once per result, from the scheduler and from
// host-check ingestion alike.
func (p *Policy) Observe(ctx context.Context, r check.Result) {
	a, ok := p.evaluate(r)
	if !ok {
		return
	}
	p.dispatch(ctx, a)
}

func (p *Policy) evaluate(r check.Result) (Alert, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.streaks[r.CheckID]
	if !ok {
		s = &FailureStreak{CheckID: r.CheckID}
		p.streaks[r.CheckID] = s
	}

	now := r.Timestamp
	if now.IsZero() {
		now = time.Now().UTC()
	}

	if r.IsNonPass() {
		if s.ConsecutiveFails == 0 {
			s.FirstFailedAt = now
		}
		s.ConsecutiveFails++

		if s.ConsecutiveFails < p.threshold {
			return Alert{}, false
		}

		fp := fingerprint(r.CheckID, string(r.Status), now)
		first := s.LastAlertedAt.IsZero()
		withinCooldown := !first && now.Sub(s.LastAlertedAt) < p.cooldown
		sameFingerprint := s.LastAlertFingerprint == fp
		continuing := s.ConsecutiveFails > p.threshold
		if withinCooldown && (continuing || sameFingerprint) {
			return Alert{}, false
		}

		s.LastAlertedAt = now
		s.LastAlertFingerprint = fp
		return Alert{
			CheckID:          r.CheckID,
			Severity:         severityFor(r.CheckID, r.Status),
			Status:           r.Status,
			Message:          r.Message,
			Details:          r.Details,
			ConsecutiveFails: s.ConsecutiveFails,
			FirstFailedAt:    s.FirstFailedAt,
			Timestamp:        now,
		}, true
	}

	// pass or warn: recover if the streak had crossed the threshold.
	wasAlerting := s.ConsecutiveFails >= p.threshold
	s.ConsecutiveFails = 0
	s.FirstFailedAt = time.Time{}
	s.LastAlertFingerprint = ""
	if !wasAlerting {
		return Alert{}, false
	}
	return Alert{
		CheckID:   r.CheckID,
		Severity:  SeverityInfo,
		Status:    r.Status,
		Message:   "recovered",
		Timestamp: now,
		Recovery:  true,
	}, true
}

func (p *Policy) dispatch(ctx context.Context, a Alert) {
	if p.metrics != nil {
		p.metrics.ObserveAlert(string(a.Severity))
	}
	for _, t := range p.transports {
		if a.Severity == SeverityInfo && t.Name() == "webhook" && !a.Recovery {
			// webhook only for warning and above (§4.7); chat always carries info.
			continue
		}
		if err := t.Send(ctx, a); err != nil {
			p.logger.ErrorCtx(ctx, "alert transport failed",
				zap.String("transport", t.Name()), zap.String("check_id", a.CheckID), zap.Error(err))
		}
	}
}

// severityFor maps a non-pass status to severity (§4.7).
func severityFor(checkID string, status check.Status) Severity {
	if status == check.StatusError || criticalCheckIDs[checkID] {
		return SeverityCritical
	}
	if status == check.StatusFail {
		return SeverityWarning
	}
	return SeverityInfo
}

// fingerprint hashes (check_id, status, bucketed_hour) so an identical
// alert is not resent inside the cooldown window (§4.7). Fingerprints are
// kept only in the in-memory streak table.
func fingerprint(checkID, status string, ts time.Time) string {
	bucket := ts.UTC().Truncate(time.Hour).Unix()
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d", checkID, status, bucket)))
	return hex.EncodeToString(sum[:])
}

// Snapshot returns a copy of the current failure-streak table, keyed by
// check id (used by GET /status diagnostics).
func (p *Policy) Snapshot() map[string]FailureStreak {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]FailureStreak, len(p.streaks))
	for k, v := range p.streaks {
		out[k] = *v
	}
	return out
}
