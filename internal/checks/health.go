// Package checks holds the catalog of concrete check implementations
// (C3, S1-S11). Each type implements check.Runner's single Run method and
// classifies its own outcome; none of them are expected to panic.
package checks

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/veris-ai/sentinel/internal/check"
	"github.com/veris-ai/sentinel/internal/probe"
)

// HealthProbes implements S1: liveness + readiness.
type HealthProbes struct{}

type livenessPayload struct {
	Status string `json:"status"`
}

type readinessPayload struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components"`
}

func (HealthProbes) Run(ctx context.Context, rc check.RunContext) check.Result {
	start := time.Now()
	res := check.Result{CheckID: "S1-probes", TraceID: rc.TraceID}

	livePath := rc.Endpoint("health_live", "/health/live")
	readyPath := rc.Endpoint("health_ready", "/health/ready")

	liveResp := rc.HTTP.TimedGet(ctx, rc.TargetBaseURL+livePath, rc.Timeout, nil)
	if liveResp.TransportError != nil {
		return errorResult(res, start, "liveness probe failed", map[string]any{
			"endpoint":    livePath,
			"error_class": string(probe.ClassifyError(liveResp.TransportError)),
			"error":       liveResp.TransportError.Error(),
		})
	}
	var live livenessPayload
	if err := probe.ParseJSON(liveResp.Body, &live); err != nil || liveResp.StatusCode != http.StatusOK {
		return failResult(res, start, "liveness payload malformed or non-200", map[string]any{
			"endpoint":    livePath,
			"status_code": liveResp.StatusCode,
		})
	}
	if live.Status != "alive" {
		return failResult(res, start, fmt.Sprintf("liveness status %q, want alive", live.Status), map[string]any{
			"endpoint": livePath,
			"status":   live.Status,
		})
	}

	readyResp := rc.HTTP.TimedGet(ctx, rc.TargetBaseURL+readyPath, rc.Timeout, nil)
	if readyResp.TransportError != nil {
		return errorResult(res, start, "readiness probe failed", map[string]any{
			"endpoint":    readyPath,
			"error_class": string(probe.ClassifyError(readyResp.TransportError)),
			"error":       readyResp.TransportError.Error(),
		})
	}
	var ready readinessPayload
	if err := probe.ParseJSON(readyResp.Body, &ready); err != nil || readyResp.StatusCode != http.StatusOK {
		return failResult(res, start, "readiness payload malformed or non-200", map[string]any{
			"endpoint":    readyPath,
			"status_code": readyResp.StatusCode,
		})
	}

	unhealthy := []string{}
	for name, status := range ready.Components {
		if status != "ok" {
			unhealthy = append(unhealthy, name)
		}
	}
	details := map[string]any{
		"endpoint":   readyPath,
		"components": ready.Components,
	}
	if len(unhealthy) > 0 {
		return failResult(res, start, fmt.Sprintf("unhealthy components: %v", unhealthy), details)
	}
	return passResult(res, start, "liveness and readiness both healthy", details)
}
