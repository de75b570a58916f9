package checks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veris-ai/sentinel/internal/check"
)

func TestDeprecatedAlwaysPassesWithMetadata(t *testing.T) {
	d := Deprecated{
		CheckID:          "S9-old-check",
		DeprecatedSince:  "2026-01-01",
		RemovalPlanned:   "2026-06-01",
		ConsolidatedInto: "S1-probes",
	}
	r := d.Run(context.Background(), check.RunContext{TraceID: "trace-1"})

	require.NoError(t, r.Validate())
	assert.Equal(t, check.StatusPass, r.Status)
	assert.True(t, r.Deprecated)
	require.NotNil(t, r.DeprecationInfo)
	assert.Equal(t, "S1-probes", r.DeprecationInfo.ConsolidatedInto)
	assert.Equal(t, "S9-old-check", r.CheckID)
	assert.Equal(t, "trace-1", r.TraceID)
}
