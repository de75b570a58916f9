// Package scheduler drives the periodic cycle loop (C5): jittered ticks,
// bounded per-cycle parallelism, per-check and per-cycle deadlines, and
// serialization between the periodic loop and on-demand runs.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/google/uuid"

	"github.com/veris-ai/sentinel/internal/check"
	"github.com/veris-ai/sentinel/internal/credentials"
	"github.com/veris-ai/sentinel/internal/probe"
	"github.com/veris-ai/sentinel/internal/state"
	"github.com/veris-ai/sentinel/internal/telemetry/logging"
	"github.com/veris-ai/sentinel/internal/telemetry/metrics"
	"github.com/veris-ai/sentinel/internal/telemetry/tracing"
	"go.uber.org/zap"
)

// ErrCycleInFlight is returned by RunNow when a cycle (periodic or
// on-demand) is already executing; the two are serialized against the
// same guard (§4.5, §4.8 "POST /run ... 409 if a cycle is already running").
var ErrCycleInFlight = errors.New("scheduler: a cycle is already in flight")

// ReportSink persists a completed cycle; implemented by internal/store.
type ReportSink interface {
	SaveCycle(ctx context.Context, report check.CycleReport) error
}

// AlertSink reacts to individual results as a cycle completes; implemented
// by internal/alert.Policy.
type AlertSink interface {
	Observe(ctx context.Context, result check.Result)
}

// Config carries the scheduler's tunables, resolved from internal/config.
type Config struct {
	Period            time.Duration
	JitterFraction    float64
	MaxParallel       int
	PerCheckTimeout   time.Duration
	CycleBudget       time.Duration
	TargetBaseURL     string
	Endpoints         map[string]string
}

// Scheduler owns the periodic loop and exposes RunNow for on-demand cycles.
type Scheduler struct {
	cfg        Config
	registry   *check.Registry
	state      *state.State
	store      ReportSink
	alerts     AlertSink
	metrics    *metrics.Provider
	logger     logging.Logger
	tracer     tracing.Tracer
	httpClient *probe.Client
	creds      credentials.Bundle

	inFlight atomic.Bool
	enabled  atomic.Bool

	skippedTicks atomic.Int64

	rngMu sync.Mutex
	rng   *rand.Rand

	stopCh chan struct{}
	doneCh chan struct{}
}

// New builds a Scheduler. The loop does not start until Start is called.
func New(cfg Config, registry *check.Registry, st *state.State, store ReportSink, alerts AlertSink, mp *metrics.Provider, logger logging.Logger, tracer tracing.Tracer, httpClient *probe.Client, creds credentials.Bundle) *Scheduler {
	s := &Scheduler{
		cfg:        cfg,
		registry:   registry,
		state:      st,
		store:      store,
		alerts:     alerts,
		metrics:    mp,
		logger:     logger,
		tracer:     tracer,
		httpClient: httpClient,
		creds:      creds,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
	s.enabled.Store(true)
	return s
}

// Start launches the periodic loop in a goroutine. It returns immediately;
// the loop runs until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	go s.loop(ctx)
}

// Stop pauses the periodic loop's scheduling of new ticks (§4.8 "POST
// /stop"). Any cycle already in flight runs to completion.
func (s *Scheduler) Stop() {
	s.enabled.Store(false)
	s.metrics.SetRunning(false)
}

// Resume re-enables the periodic loop (§4.8 "POST /start").
func (s *Scheduler) Resume() {
	s.enabled.Store(true)
	s.metrics.SetRunning(true)
}

// Running reports whether the periodic loop is currently enabled.
func (s *Scheduler) Running() bool { return s.enabled.Load() }

// SkippedTicks returns the number of periodic ticks skipped because a cycle
// was already running when they fired.
func (s *Scheduler) SkippedTicks() int64 { return s.skippedTicks.Load() }

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.doneCh)
	s.metrics.SetRunning(s.enabled.Load())
	lastStart := time.Now()
	for {
		wait := s.nextInterval() - time.Since(lastStart)
		if wait < 0 {
			wait = 0
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.stopCh:
			timer.Stop()
			return
		case <-timer.C:
		}
		lastStart = time.Now()
		if !s.enabled.Load() {
			continue
		}
		if _, err := s.attemptCycle(ctx); err != nil {
			if errors.Is(err, ErrCycleInFlight) {
				s.skippedTicks.Add(1)
				s.metrics.ObserveCycleSkipped()
				s.logger.WarnCtx(ctx, "periodic tick skipped, cycle already in flight")
			}
		}
	}
}

// nextInterval computes T + jitter, jitter uniform in [-T*J, +T*J] (§4.5);
// the loop schedules the next tick at previous_start plus this interval.
// The minimum possible gap is T*(1-J), never smaller.
func (s *Scheduler) nextInterval() time.Duration {
	t := s.cfg.Period
	j := s.cfg.JitterFraction
	if j <= 0 {
		return t
	}
	span := float64(t) * j
	s.rngMu.Lock()
	offset := (s.rng.Float64()*2 - 1) * span
	s.rngMu.Unlock()
	d := time.Duration(float64(t) + offset)
	if d < 0 {
		d = 0
	}
	return d
}

// RunNow executes an immediate, out-of-schedule cycle (§4.8 "POST /run").
// It is serialized against the periodic loop and against other on-demand
// calls through the same in-flight guard; ErrCycleInFlight maps to a 409.
func (s *Scheduler) RunNow(ctx context.Context) (check.CycleReport, error) {
	return s.attemptCycle(ctx)
}

func (s *Scheduler) attemptCycle(ctx context.Context) (check.CycleReport, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return check.CycleReport{}, ErrCycleInFlight
	}
	defer s.inFlight.Store(false)
	return s.runCycle(ctx)
}

func (s *Scheduler) runCycle(ctx context.Context) (check.CycleReport, error) {
	cycleID := uuid.NewString()
	startedAt := time.Now().UTC()
	budget := s.cfg.CycleBudget
	if budget <= 0 {
		budget = 45 * time.Second
	}
	cycleCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	ids := s.registry.EnabledIDs()
	results := make([]check.Result, len(ids))

	maxParallel := s.cfg.MaxParallel
	if maxParallel <= 0 {
		maxParallel = 1
	}
	sem := semaphore.NewWeighted(int64(maxParallel))

	var wg sync.WaitGroup
	var truncated atomic.Bool

	for i, id := range ids {
		i, id := i, id
		if err := sem.Acquire(cycleCtx, 1); err != nil {
			results[i] = budgetExceededResult(id, startedAt)
			truncated.Store(true)
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			results[i] = s.runOne(cycleCtx, id)
		}()
	}
	wg.Wait()

	if cycleCtx.Err() != nil {
		truncated.Store(true)
	}

	finishedAt := time.Now().UTC()
	report := check.NewCycleReport(cycleID, startedAt, finishedAt, results, truncated.Load())

	s.state.ApplyCycle(report)
	s.metrics.ObserveCycle(report.Passed, report.Warned, report.Failed, report.Errored, report.DurationMS, report.Truncated)

	if s.store != nil {
		if err := s.store.SaveCycle(ctx, report); err != nil {
			s.logger.ErrorCtx(ctx, "persist cycle failed", zap.String("cycle_id", cycleID), zap.Error(err))
		}
	}

	for _, r := range results {
		s.metrics.ObserveCheck(r.CheckID, string(r.Status), r.LatencyMS)
		if s.alerts != nil {
			s.alerts.Observe(ctx, r)
		}
	}

	return report, nil
}

func (s *Scheduler) runOne(ctx context.Context, id string) check.Result {
	start := time.Now()
	desc, err := s.registry.Get(id)
	if err != nil {
		return errResult(id, "", start, "check not found in registry")
	}
	runner, err := s.registry.Runner(id)
	if err != nil || runner == nil {
		return errResult(id, "", start, "check has no runner")
	}

	timeout := s.cfg.PerCheckTimeout
	if desc.DefaultTimeoutMS > 0 {
		timeout = time.Duration(desc.DefaultTimeoutMS) * time.Millisecond
	}
	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	spanCtx, span := s.tracer.StartCheckSpan(checkCtx, id)
	defer span.End()
	traceID := span.TraceID()

	rc := check.RunContext{
		TargetBaseURL: s.cfg.TargetBaseURL,
		Timeout:       timeout,
		HTTP:          s.httpClient,
		Credentials:   s.creds,
		Logger:        s.logger,
		TraceID:       traceID,
		Endpoints:     s.cfg.Endpoints,
	}

	resultCh := make(chan check.Result, 1)
	go func() {
		resultCh <- s.safeRun(runner, spanCtx, rc, id, traceID, start)
	}()

	select {
	case r := <-resultCh:
		if verr := r.Validate(); verr != nil {
			s.logger.WarnCtx(ctx, "check returned invalid result", zap.String("check_id", id), zap.Error(verr))
		}
		return r
	case <-checkCtx.Done():
		return check.Result{
			CheckID:   id,
			Timestamp: time.Now().UTC(),
			Status:    check.StatusError,
			LatencyMS: time.Since(start).Milliseconds(),
			Message:   check.CheckTimeoutMessage,
			TraceID:   traceID,
		}
	}
}

func (s *Scheduler) safeRun(runner check.Runner, ctx context.Context, rc check.RunContext, id, traceID string, start time.Time) (result check.Result) {
	defer func() {
		if p := recover(); p != nil {
			result = check.Result{
				CheckID:   id,
				Timestamp: time.Now().UTC(),
				Status:    check.StatusError,
				LatencyMS: time.Since(start).Milliseconds(),
				Message:   fmt.Sprintf("check panicked: %v", p),
				TraceID:   traceID,
			}
		}
	}()
	return runner.Run(ctx, rc)
}

func budgetExceededResult(id string, cycleStart time.Time) check.Result {
	return check.Result{
		CheckID:   id,
		Timestamp: time.Now().UTC(),
		Status:    check.StatusError,
		LatencyMS: time.Since(cycleStart).Milliseconds(),
		Message:   check.CycleBudgetExceededMessage,
	}
}

func errResult(id, traceID string, start time.Time, msg string) check.Result {
	return check.Result{
		CheckID:   id,
		Timestamp: time.Now().UTC(),
		Status:    check.StatusError,
		LatencyMS: time.Since(start).Milliseconds(),
		Message:   msg,
		TraceID:   traceID,
	}
}
