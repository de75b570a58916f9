package checks

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"time"

	"github.com/veris-ai/sentinel/internal/check"
)

// ConfigParity implements S7: compares a snapshot of the target's
// self-reported configuration against an expected envelope.
type ConfigParity struct {
	Expected map[string]any
}

// NewConfigParity builds S7 with the default expected envelope.
func NewConfigParity() *ConfigParity {
	return &ConfigParity{
		Expected: map[string]any{
			"auth_required":    true,
			"vector_store":     "enabled",
			"graph_store":      "enabled",
		},
	}
}

func (c *ConfigParity) Run(ctx context.Context, rc check.RunContext) check.Result {
	start := time.Now()
	res := check.Result{CheckID: "S7-config-parity", TraceID: rc.TraceID}

	path := rc.Endpoint("config_snapshot", "/admin/config")
	headers := rc.Credentials.RoleHeaders(rc.Credentials.AdminToken)
	if headers == nil {
		headers = rc.Credentials.AuthHeaders()
	}
	resp := rc.HTTP.TimedGet(ctx, rc.TargetBaseURL+path, rc.Timeout, headers)
	if resp.TransportError != nil {
		return errorResult(res, start, "config snapshot probe failed", map[string]any{"error": resp.TransportError.Error()})
	}
	if resp.StatusCode != http.StatusOK {
		return failResult(res, start, fmt.Sprintf("config snapshot returned %d", resp.StatusCode), map[string]any{"status_code": resp.StatusCode})
	}

	var actual map[string]any
	if err := json.Unmarshal(resp.Body, &actual); err != nil {
		return failResult(res, start, "config snapshot payload is not valid JSON", nil)
	}

	mismatches := map[string]any{}
	for k, want := range c.Expected {
		got, ok := actual[k]
		if !ok || !reflect.DeepEqual(got, want) {
			mismatches[k] = map[string]any{"want": want, "got": got, "present": ok}
		}
	}
	details := map[string]any{"expected": c.Expected, "actual": actual}
	if len(mismatches) > 0 {
		details["mismatches"] = mismatches
		return failResult(res, start, fmt.Sprintf("%d config keys diverge from expected envelope", len(mismatches)), details)
	}
	return passResult(res, start, "config snapshot matches expected envelope", details)
}
