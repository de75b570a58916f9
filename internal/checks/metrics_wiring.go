package checks

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/veris-ai/sentinel/internal/check"
)

// MetricsWiring implements S4: asserts the target's dashboard/analytics
// endpoint exposes the required top-level fields and enumerates services.
type MetricsWiring struct {
	RequiredFields []string
}

// NewMetricsWiring builds S4 with the default required-field set.
func NewMetricsWiring() *MetricsWiring {
	return &MetricsWiring{RequiredFields: []string{"services", "uptime_seconds", "request_count"}}
}

func (m *MetricsWiring) Run(ctx context.Context, rc check.RunContext) check.Result {
	start := time.Now()
	res := check.Result{CheckID: "S4-metrics-wiring", TraceID: rc.TraceID}

	path := rc.Endpoint("dashboard_analytics", "/dashboard/analytics")
	headers := rc.Credentials.AuthHeaders()
	resp := rc.HTTP.TimedGet(ctx, rc.TargetBaseURL+path, rc.Timeout, headers)
	if resp.TransportError != nil {
		return errorResult(res, start, "dashboard/analytics probe failed", map[string]any{"error": resp.TransportError.Error()})
	}
	if resp.StatusCode != http.StatusOK {
		return failResult(res, start, fmt.Sprintf("dashboard/analytics returned status %d", resp.StatusCode), map[string]any{"status_code": resp.StatusCode})
	}

	var payload map[string]any
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return failResult(res, start, "dashboard/analytics payload is not valid JSON", nil)
	}

	missing := []string{}
	for _, field := range m.RequiredFields {
		if _, ok := payload[field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return failResult(res, start, fmt.Sprintf("missing required fields: %v", missing), map[string]any{"payload_keys": keysOf(payload)})
	}

	services, _ := payload["services"].([]any)
	if len(services) == 0 {
		return failResult(res, start, "services field present but empty", nil)
	}
	return passResult(res, start, fmt.Sprintf("%d services enumerated", len(services)), map[string]any{"service_count": len(services)})
}

func keysOf(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
