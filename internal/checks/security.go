package checks

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/veris-ai/sentinel/internal/check"
)

// securityNegativeCase is one request that the target must reject.
type securityNegativeCase struct {
	Name         string
	Path         string
	Headers      map[string]string
	Body         any
	ExpectStatus []int // any status in this set counts as a correct rejection
}

// SecurityNegatives implements S5: sends requests the target must reject
// (bad/missing auth, admin endpoints from non-admin creds, injection-shaped
// payloads) and asserts it does.
type SecurityNegatives struct {
	Cases func(rc check.RunContext) []securityNegativeCase
}

// NewSecurityNegatives builds S5 with the default negative-case catalog.
func NewSecurityNegatives() *SecurityNegatives {
	return &SecurityNegatives{Cases: defaultSecurityCases}
}

func defaultSecurityCases(rc check.RunContext) []securityNegativeCase {
	storePath := rc.Endpoint("store_context", "/tools/store_context")
	adminPath := rc.Endpoint("admin_users", "/admin/users")
	return []securityNegativeCase{
		{
			Name:         "missing-auth",
			Path:         storePath,
			Headers:      nil,
			Body:         storeContextRequest{ID: fixtureNamespace + "-sec-noauth", Content: "x", Namespace: fixtureNamespace},
			ExpectStatus: []int{http.StatusUnauthorized, http.StatusForbidden},
		},
		{
			Name:         "bad-auth",
			Path:         storePath,
			Headers:      map[string]string{"X-API-Key": "not-a-real-key"},
			Body:         storeContextRequest{ID: fixtureNamespace + "-sec-badauth", Content: "x", Namespace: fixtureNamespace},
			ExpectStatus: []int{http.StatusUnauthorized, http.StatusForbidden},
		},
		{
			Name:         "admin-from-non-admin",
			Path:         adminPath,
			Headers:      rc.Credentials.AuthHeaders(),
			Body:         nil,
			ExpectStatus: []int{http.StatusForbidden, http.StatusUnauthorized},
		},
		{
			Name:         "injection-shaped-payload",
			Path:         storePath,
			Headers:      rc.Credentials.AuthHeaders(),
			Body:         storeContextRequest{ID: "'; DROP TABLE contexts; --", Content: "$(rm -rf /)", Namespace: fixtureNamespace},
			ExpectStatus: []int{http.StatusBadRequest, http.StatusUnprocessableEntity},
		},
	}
}

func (s *SecurityNegatives) Run(ctx context.Context, rc check.RunContext) check.Result {
	start := time.Now()
	res := check.Result{CheckID: "S5-security-negatives", TraceID: rc.TraceID}

	cases := s.Cases(rc)
	results := make([]map[string]any, 0, len(cases))
	failures := 0
	for _, c := range cases {
		resp := rc.HTTP.TimedPost(ctx, rc.TargetBaseURL+c.Path, c.Body, rc.Timeout, c.Headers)
		if resp.TransportError != nil {
			results = append(results, map[string]any{"case": c.Name, "error": resp.TransportError.Error()})
			failures++
			continue
		}
		accepted := !statusIn(resp.StatusCode, c.ExpectStatus)
		if accepted {
			failures++
		}
		results = append(results, map[string]any{
			"case": c.Name, "status_code": resp.StatusCode, "correctly_rejected": !accepted,
		})
	}

	details := map[string]any{"cases": results}
	if failures > 0 {
		return failResult(res, start, fmt.Sprintf("%d/%d negative cases were not rejected as expected", failures, len(cases)), details)
	}
	return passResult(res, start, fmt.Sprintf("all %d negative cases correctly rejected", len(cases)), details)
}

func statusIn(status int, set []int) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}
