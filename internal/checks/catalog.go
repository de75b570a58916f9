package checks

import (
	"time"

	"github.com/veris-ai/sentinel/internal/check"
)

// EndpointDefaults is the canonical set of logical endpoint names checks
// declare and the default paths bound to them (§6: "Endpoint paths are
// configured, not hard-coded; each check declares which endpoint it
// uses"). Operators may override any of these via configuration.
var EndpointDefaults = map[string]string{
	"health_live":         "/health/live",
	"health_ready":        "/health/ready",
	"store_context":       "/tools/store_context",
	"retrieve_context":    "/tools/retrieve_context",
	"dashboard_analytics": "/dashboard/analytics",
	"admin_users":         "/admin/users",
	"backup_status":       "/admin/backup/status",
	"config_snapshot":     "/admin/config",
}

// allowList, when non-empty, restricts which ids are Enabled at
// registration time (§6 enabled_checks).
type buildOptions struct {
	allowList map[string]bool
}

// Register populates reg with the full S1-S11 catalog. allowList is the
// optional `enabled_checks` allow-list from configuration; an empty list
// means "all non-disabled checks are enabled" (§6).
func Register(reg *check.Registry, allowList []string, defaultTimeout time.Duration) {
	opts := buildOptions{allowList: toSet(allowList)}

	register(reg, opts, check.CheckDescriptor{
		ID: "S1-probes", HumanDescription: "Liveness and readiness probes.",
		DefaultTimeoutMS: defaultTimeout.Milliseconds(),
	}, HealthProbes{})

	register(reg, opts, check.CheckDescriptor{
		ID: "S2-golden-fact-recall", HumanDescription: "Golden-fact recall precision@1 and graph relationship smoke test.",
		DefaultTimeoutMS: defaultTimeout.Milliseconds(),
	}, NewGoldenFactRecall())

	register(reg, opts, check.CheckDescriptor{
		ID: "S3-paraphrase-robustness", HumanDescription: "Paraphrase robustness (optimized runtime variant).",
		DefaultTimeoutMS: defaultTimeout.Milliseconds(),
	}, NewParaphraseRobustness())

	register(reg, opts, check.CheckDescriptor{
		ID: "S4-metrics-wiring", HumanDescription: "Dashboard/analytics metrics wiring.",
		DefaultTimeoutMS: defaultTimeout.Milliseconds(),
	}, NewMetricsWiring())

	register(reg, opts, check.CheckDescriptor{
		ID: "S5-security-negatives", HumanDescription: "Security negative cases must be rejected.",
		DefaultTimeoutMS: defaultTimeout.Milliseconds(),
	}, NewSecurityNegatives())

	register(reg, opts, check.CheckDescriptor{
		ID: "S6-backup-restore-parity", HumanDescription: "Backup artifact exists and matches expected schema.",
		DefaultTimeoutMS: defaultTimeout.Milliseconds(),
	}, NewBackupParity())

	register(reg, opts, check.CheckDescriptor{
		ID: "S7-config-parity", HumanDescription: "Target configuration snapshot matches expected envelope.",
		DefaultTimeoutMS: defaultTimeout.Milliseconds(),
	}, NewConfigParity())

	register(reg, opts, check.CheckDescriptor{
		ID: "S8-capacity-smoke", HumanDescription: "Concurrent burst latency/error-rate smoke test.",
		DefaultTimeoutMS: defaultTimeout.Milliseconds(),
	}, NewCapacitySmoke())

	register(reg, opts, check.CheckDescriptor{
		ID: "S9-graph-intent", HumanDescription: "Deprecated; consolidated into S2.",
		DefaultTimeoutMS: defaultTimeout.Milliseconds(), Deprecated: true, SuccessorID: "S2-golden-fact-recall",
	}, Deprecated{CheckID: "S9-graph-intent", DeprecatedSince: "2025-01-01", ConsolidatedInto: "S2-golden-fact-recall"})

	register(reg, opts, check.CheckDescriptor{
		ID: "S10-content-pipeline", HumanDescription: "Deprecated; consolidated into S2.",
		DefaultTimeoutMS: defaultTimeout.Milliseconds(), Deprecated: true, SuccessorID: "S2-golden-fact-recall",
	}, Deprecated{CheckID: "S10-content-pipeline", DeprecatedSince: "2025-01-01", ConsolidatedInto: "S2-golden-fact-recall"})

	// S11 never executes inside the core; its result arrives via host-check
	// ingestion (§4.9). It still needs a descriptor so /checks lists it and
	// the registry can validate ingestion requests against it.
	reg.Register(check.CheckDescriptor{
		ID: "S11-firewall-status", HumanDescription: "Host firewall status, ingested from an off-process agent.",
		Enabled: true, HostIngested: true,
	}, nil)
}

func register(reg *check.Registry, opts buildOptions, d check.CheckDescriptor, runner check.Runner) {
	d.Enabled = enabledFor(d.ID, opts)
	reg.Register(d, runner)
}

func enabledFor(id string, opts buildOptions) bool {
	if len(opts.allowList) == 0 {
		return true
	}
	return opts.allowList[id]
}

func toSet(ids []string) map[string]bool {
	if len(ids) == 0 {
		return nil
	}
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out
}
