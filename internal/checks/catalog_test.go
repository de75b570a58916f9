package checks

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veris-ai/sentinel/internal/check"
)

func TestRegisterPopulatesFullCatalogInOrder(t *testing.T) {
	reg := check.NewRegistry()
	Register(reg, nil, 10*time.Second)

	want := []string{
		"S1-probes", "S2-golden-fact-recall", "S3-paraphrase-robustness", "S4-metrics-wiring",
		"S5-security-negatives", "S6-backup-restore-parity", "S7-config-parity", "S8-capacity-smoke",
		"S9-graph-intent", "S10-content-pipeline", "S11-firewall-status",
	}
	got := reg.List()
	require.Len(t, got, len(want))
	for i, id := range want {
		assert.Equal(t, id, got[i].ID)
	}
}

func TestRegisterAllowListNarrowsEnabledSet(t *testing.T) {
	reg := check.NewRegistry()
	Register(reg, []string{"S1-probes"}, 10*time.Second)

	desc, err := reg.Get("S1-probes")
	require.NoError(t, err)
	assert.True(t, desc.Enabled)

	desc, err = reg.Get("S2-golden-fact-recall")
	require.NoError(t, err)
	assert.False(t, desc.Enabled)
}

func TestRegisterDeprecatedChecksCarryDeprecationMetadata(t *testing.T) {
	reg := check.NewRegistry()
	Register(reg, nil, 10*time.Second)

	desc, err := reg.Get("S9-graph-intent")
	require.NoError(t, err)
	assert.True(t, desc.Deprecated)
	assert.Equal(t, "S2-golden-fact-recall", desc.SuccessorID)
}

func TestRegisterS11IsHostIngestedAndNeverEnabledForScheduling(t *testing.T) {
	reg := check.NewRegistry()
	Register(reg, nil, 10*time.Second)

	assert.NotContains(t, reg.EnabledIDs(), "S11-firewall-status")
	assert.True(t, reg.HostIngestedIDs()["S11-firewall-status"])
}
