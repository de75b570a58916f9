package check

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRunner struct{ status Status }

func (s stubRunner) Run(ctx context.Context, rc RunContext) Result {
	return Result{CheckID: "stub", Status: s.status}
}

func TestRegistryListPreservesRegistrationOrder(t *testing.T) {
	reg := NewRegistry()
	// Deliberately registered out of lexicographic order to prove List()
	// does not re-sort: S10/S11 would otherwise land before S2.
	ids := []string{"S1-probes", "S2-golden-fact-recall", "S10-content-pipeline", "S11-firewall-status"}
	for _, id := range ids {
		reg.Register(CheckDescriptor{ID: id, Enabled: true}, stubRunner{status: StatusPass})
	}

	got := reg.List()
	require.Len(t, got, len(ids))
	for i, id := range ids {
		assert.Equal(t, id, got[i].ID)
	}
}

func TestRegistryEnabledIDsExcludesDisabledAndHostIngested(t *testing.T) {
	reg := NewRegistry()
	reg.Register(CheckDescriptor{ID: "S1-probes", Enabled: true}, stubRunner{})
	reg.Register(CheckDescriptor{ID: "S5-security-negatives", Enabled: false}, stubRunner{})
	reg.Register(CheckDescriptor{ID: "S11-firewall-status", Enabled: true, HostIngested: true}, nil)

	got := reg.EnabledIDs()
	assert.Equal(t, []string{"S1-probes"}, got)
}

func TestRegistryHostIngestedIDs(t *testing.T) {
	reg := NewRegistry()
	reg.Register(CheckDescriptor{ID: "S1-probes", Enabled: true}, stubRunner{})
	reg.Register(CheckDescriptor{ID: "S11-firewall-status", Enabled: true, HostIngested: true}, nil)

	got := reg.HostIngestedIDs()
	assert.Equal(t, map[string]bool{"S11-firewall-status": true}, got)
}

func TestRegistryGetAndRunnerNotFound(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = reg.Runner("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistryRegisterIsIdempotentOnOrder(t *testing.T) {
	reg := NewRegistry()
	reg.Register(CheckDescriptor{ID: "S1-probes", Enabled: true, HumanDescription: "v1"}, stubRunner{})
	reg.Register(CheckDescriptor{ID: "S1-probes", Enabled: true, HumanDescription: "v2"}, stubRunner{})

	got := reg.List()
	require.Len(t, got, 1)
	assert.Equal(t, "v2", got[0].HumanDescription)
}
