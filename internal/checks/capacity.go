package checks

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/veris-ai/sentinel/internal/check"
)

// CapacitySmoke implements S8: a small burst of concurrent health requests,
// asserting p95/p99 latency bounds and an error-rate ceiling. Latency
// statistics are collected only from successful responses; if fewer than
// half the attempts succeed, the check fails regardless of latency (§4.2).
type CapacitySmoke struct {
	BurstSize     int
	P95BoundMS    int64
	P99BoundMS    int64
	MaxErrorRatio float64
}

// NewCapacitySmoke builds S8 with default burst parameters.
func NewCapacitySmoke() *CapacitySmoke {
	return &CapacitySmoke{BurstSize: 20, P95BoundMS: 1000, P99BoundMS: 2000, MaxErrorRatio: 0.1}
}

func (c *CapacitySmoke) Run(ctx context.Context, rc check.RunContext) check.Result {
	start := time.Now()
	res := check.Result{CheckID: "S8-capacity-smoke", TraceID: rc.TraceID}

	path := rc.Endpoint("health_live", "/health/live")
	url := rc.TargetBaseURL + path

	type outcome struct {
		ok        bool
		latencyMS int64
	}
	outcomes := make([]outcome, c.BurstSize)
	var wg sync.WaitGroup
	for i := 0; i < c.BurstSize; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			resp := rc.HTTP.TimedGet(ctx, url, rc.Timeout, nil)
			ok := resp.TransportError == nil && resp.StatusCode == http.StatusOK
			outcomes[idx] = outcome{ok: ok, latencyMS: resp.ElapsedMS}
		}(i)
	}
	wg.Wait()

	successes := make([]int64, 0, c.BurstSize)
	successCount := 0
	for _, o := range outcomes {
		if o.ok {
			successCount++
			successes = append(successes, o.latencyMS)
		}
	}
	successRatio := float64(successCount) / float64(c.BurstSize)
	errorRatio := 1 - successRatio

	details := map[string]any{
		"attempts":    c.BurstSize,
		"successes":   successCount,
		"error_ratio": errorRatio,
	}

	if successRatio < 0.5 {
		return failResult(res, start, fmt.Sprintf("only %d/%d requests succeeded (<50%%)", successCount, c.BurstSize), details)
	}

	sort.Slice(successes, func(i, j int) bool { return successes[i] < successes[j] })
	p95 := percentile(successes, 0.95)
	p99 := percentile(successes, 0.99)
	details["p95_ms"] = p95
	details["p99_ms"] = p99

	if errorRatio > c.MaxErrorRatio {
		return failResult(res, start, fmt.Sprintf("error ratio %.2f exceeds ceiling %.2f", errorRatio, c.MaxErrorRatio), details)
	}
	if p95 > c.P95BoundMS || p99 > c.P99BoundMS {
		return failResult(res, start, fmt.Sprintf("p95=%dms/p99=%dms exceed bounds %d/%d", p95, p99, c.P95BoundMS, c.P99BoundMS), details)
	}
	return passResult(res, start, fmt.Sprintf("p95=%dms p99=%dms error_ratio=%.2f within bounds", p95, p99, errorRatio), details)
}

// percentile returns the value at rank p (0..1) of a sorted slice, using
// the nearest-rank method: the smallest element with at least p of the
// samples at or below it.
func percentile(sorted []int64, p float64) int64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := p * float64(len(sorted))
	idx := int(rank)
	if float64(idx) < rank {
		idx++
	}
	idx-- // ranks are 1-based
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
