// Package metrics exposes the Prometheus-style text scrape endpoint
// required by C8's /metrics. The provider mirrors the teacher's
// engine/telemetry/metrics/prometheus.go shape (a small registry wrapper
// that lazily creates vectors by name) but is narrowed to exactly the
// instruments Sentinel needs: gauges for scheduler state, counters for
// cycles/alerts, and a histogram for per-check latency.
package metrics

import (
	"net/http"
	"sync"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Provider is the metrics facade the scheduler, alert policy, and API
// server record into.
type Provider struct {
	reg *prom.Registry

	running           prom.Gauge
	lastCycleDuration prom.Gauge
	lastCyclePassed   prom.Gauge
	lastCycleWarned   prom.Gauge
	lastCycleFailed   prom.Gauge
	lastCycleErrored  prom.Gauge
	cyclesTotal       prom.Counter
	cyclesSkipped     prom.Counter
	cyclesTruncated   prom.Counter
	alertsTotal       *prom.CounterVec
	checkLatency      *prom.HistogramVec
	checkStatusTotal  *prom.CounterVec

	handler http.Handler
	mu      sync.Mutex
}

// New builds a Provider with its own registry (never the global default,
// so tests can create independent instances).
func New() *Provider {
	reg := prom.NewRegistry()
	p := &Provider{
		reg: reg,
		running: prom.NewGauge(prom.GaugeOpts{
			Name: "sentinel_scheduler_running", Help: "1 if the scheduler loop is active, 0 if stopped.",
		}),
		lastCycleDuration: prom.NewGauge(prom.GaugeOpts{
			Name: "sentinel_last_cycle_duration_ms", Help: "Duration of the most recently completed cycle, in milliseconds.",
		}),
		lastCyclePassed: prom.NewGauge(prom.GaugeOpts{
			Name: "sentinel_last_cycle_passed", Help: "Number of checks that passed in the most recent cycle.",
		}),
		lastCycleWarned: prom.NewGauge(prom.GaugeOpts{
			Name: "sentinel_last_cycle_warned", Help: "Number of checks that warned in the most recent cycle.",
		}),
		lastCycleFailed: prom.NewGauge(prom.GaugeOpts{
			Name: "sentinel_last_cycle_failed", Help: "Number of checks that failed in the most recent cycle.",
		}),
		lastCycleErrored: prom.NewGauge(prom.GaugeOpts{
			Name: "sentinel_last_cycle_errored", Help: "Number of checks that errored in the most recent cycle.",
		}),
		cyclesTotal: prom.NewCounter(prom.CounterOpts{
			Name: "sentinel_cycles_total", Help: "Total number of scheduler cycles completed.",
		}),
		cyclesSkipped: prom.NewCounter(prom.CounterOpts{
			Name: "sentinel_cycles_skipped_total", Help: "Total number of periodic ticks skipped because a cycle was already in flight.",
		}),
		cyclesTruncated: prom.NewCounter(prom.CounterOpts{
			Name: "sentinel_cycles_truncated_total", Help: "Total number of cycles that hit the cycle wall-clock budget.",
		}),
		alertsTotal: prom.NewCounterVec(prom.CounterOpts{
			Name: "sentinel_alerts_total", Help: "Total number of alerts emitted, by severity.",
		}, []string{"severity"}),
		checkLatency: prom.NewHistogramVec(prom.HistogramOpts{
			Name:    "sentinel_check_latency_ms",
			Help:    "Per-check execution latency in milliseconds.",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}, []string{"check_id"}),
		checkStatusTotal: prom.NewCounterVec(prom.CounterOpts{
			Name: "sentinel_check_status_total", Help: "Total check executions, by check id and status.",
		}, []string{"check_id", "status"}),
	}
	reg.MustRegister(
		p.running, p.lastCycleDuration, p.lastCyclePassed, p.lastCycleWarned,
		p.lastCycleFailed, p.lastCycleErrored, p.cyclesTotal, p.cyclesSkipped,
		p.cyclesTruncated, p.alertsTotal, p.checkLatency, p.checkStatusTotal,
	)
	p.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	return p
}

// Handler returns the /metrics HTTP handler.
func (p *Provider) Handler() http.Handler { return p.handler }

// SetRunning records the scheduler loop's running state.
func (p *Provider) SetRunning(running bool) {
	if running {
		p.running.Set(1)
	} else {
		p.running.Set(0)
	}
}

// ObserveCycle records a completed cycle's summary counts and duration.
func (p *Provider) ObserveCycle(passed, warned, failed, errored int, durationMS int64, truncated bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastCyclePassed.Set(float64(passed))
	p.lastCycleWarned.Set(float64(warned))
	p.lastCycleFailed.Set(float64(failed))
	p.lastCycleErrored.Set(float64(errored))
	p.lastCycleDuration.Set(float64(durationMS))
	p.cyclesTotal.Inc()
	if truncated {
		p.cyclesTruncated.Inc()
	}
}

// ObserveCycleSkipped records a periodic tick skipped due to an in-flight cycle.
func (p *Provider) ObserveCycleSkipped() { p.cyclesSkipped.Inc() }

// ObserveCheck records one check's latency and terminal status.
func (p *Provider) ObserveCheck(checkID, status string, latencyMS int64) {
	p.checkLatency.WithLabelValues(checkID).Observe(float64(latencyMS))
	p.checkStatusTotal.WithLabelValues(checkID, status).Inc()
}

// ObserveAlert records one alert emission by severity.
func (p *Provider) ObserveAlert(severity string) {
	p.alertsTotal.WithLabelValues(severity).Inc()
}
