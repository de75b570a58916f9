package check

import (
	"time"

	"github.com/veris-ai/sentinel/internal/credentials"
	"github.com/veris-ai/sentinel/internal/probe"
	"github.com/veris-ai/sentinel/internal/telemetry/logging"
)

// RunContext is passed to every check's Run method (C3): the target base
// URL, per-check timeout, shared HTTP client, credentials, a logger, and
// the trace id the scheduler already minted for this execution.
type RunContext struct {
	TargetBaseURL string
	Timeout       time.Duration
	HTTP          *probe.Client
	Credentials   credentials.Bundle
	Logger        logging.Logger
	TraceID       string

	// Endpoints maps a logical endpoint name (declared by each check, per
	// §6) to the path configured for it, so paths are configuration, not
	// hard-coded in the check body.
	Endpoints map[string]string
}

// Endpoint returns the configured path for a logical endpoint name,
// falling back to def if unset.
func (rc RunContext) Endpoint(name, def string) string {
	if rc.Endpoints == nil {
		return def
	}
	if v, ok := rc.Endpoints[name]; ok && v != "" {
		return v
	}
	return def
}
