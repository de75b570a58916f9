package checks

import (
	"context"
	"time"

	"github.com/veris-ai/sentinel/internal/check"
)

// Deprecated implements C10's shim: when the runner executes a deprecated
// check it returns a pass whose details carry deprecation metadata instead
// of running the original logic. This keeps dashboards stable across the
// deprecation window without generating false failures or silently
// dropping the id (§4.10).
type Deprecated struct {
	CheckID          string
	DeprecatedSince  string
	RemovalPlanned   string
	ConsolidatedInto string
}

func (d Deprecated) Run(ctx context.Context, rc check.RunContext) check.Result {
	start := time.Now()
	res := check.Result{
		CheckID:    d.CheckID,
		TraceID:    rc.TraceID,
		Deprecated: true,
		DeprecationInfo: &check.DeprecationInfo{
			DeprecatedSince:  d.DeprecatedSince,
			RemovalPlanned:   d.RemovalPlanned,
			ConsolidatedInto: d.ConsolidatedInto,
		},
	}
	details := map[string]any{
		"deprecated":        true,
		"deprecated_since":  d.DeprecatedSince,
		"removal_planned":   d.RemovalPlanned,
		"consolidated_into": d.ConsolidatedInto,
	}
	return passResult(res, start, "deprecated check, see consolidated successor", details)
}
