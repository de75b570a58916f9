package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veris-ai/sentinel/internal/check"
	"github.com/veris-ai/sentinel/internal/telemetry/logging"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:", logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleReport(cycleID string, at time.Time) check.CycleReport {
	results := []check.Result{
		{CheckID: "S1-probes", Status: check.StatusPass, Timestamp: at, LatencyMS: 12, TraceID: "t1"},
		{CheckID: "S6-backup-restore-parity", Status: check.StatusFail, Timestamp: at, LatencyMS: 900, Message: "mismatch", Details: map[string]any{"field": "content"}},
	}
	return check.NewCycleReport(cycleID, at, at.Add(time.Second), results, false)
}

func TestSaveCycleAndRecentCyclesRoundTrip(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, s.SaveCycle(context.Background(), sampleReport("cycle-a", now)))

	reports, err := s.RecentCycles(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "cycle-a", reports[0].CycleID)
	require.Len(t, reports[0].Results, 2)
	assert.Equal(t, "S1-probes", reports[0].Results[0].CheckID)
	assert.Equal(t, check.StatusFail, reports[0].Results[1].Status)
	assert.Equal(t, "content", reports[0].Results[1].Details["field"])
}

func TestRecentCyclesOrdersNewestFirst(t *testing.T) {
	s := openTestStore(t)
	base := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, s.SaveCycle(context.Background(), sampleReport("cycle-1", base)))
	require.NoError(t, s.SaveCycle(context.Background(), sampleReport("cycle-2", base.Add(time.Minute))))

	reports, err := s.RecentCycles(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "cycle-2", reports[0].CycleID)
	assert.Equal(t, "cycle-1", reports[1].CycleID)
}

func TestHistoryFiltersByCheckIDAndTimeRange(t *testing.T) {
	s := openTestStore(t)
	base := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, s.SaveCycle(context.Background(), sampleReport("cycle-1", base)))
	require.NoError(t, s.SaveCycle(context.Background(), sampleReport("cycle-2", base.Add(time.Hour))))

	results, err := s.History(context.Background(), "S1-probes", base.Add(-time.Minute), base.Add(30*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "S1-probes", results[0].CheckID)
}

func TestLatestResultReturnsNoRowsWhenEmpty(t *testing.T) {
	s := openTestStore(t)
	_, err := s.LatestResult(context.Background(), "S1-probes")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestLatestResultReturnsMostRecent(t *testing.T) {
	s := openTestStore(t)
	base := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, s.SaveCycle(context.Background(), sampleReport("cycle-1", base)))
	require.NoError(t, s.SaveCycle(context.Background(), sampleReport("cycle-2", base.Add(time.Hour))))

	r, err := s.LatestResult(context.Background(), "S6-backup-restore-parity")
	require.NoError(t, err)
	assert.Equal(t, check.StatusFail, r.Status)
	assert.WithinDuration(t, base.Add(time.Hour), r.Timestamp, time.Second)
}

func TestRetentionSweepDeletesOldRows(t *testing.T) {
	s := openTestStore(t)
	old := time.Now().UTC().Add(-48 * time.Hour)
	require.NoError(t, s.SaveCycle(context.Background(), sampleReport("cycle-old", old)))

	recent := time.Now().UTC()
	require.NoError(t, s.SaveCycle(context.Background(), sampleReport("cycle-new", recent)))

	s.sweepOnce(context.Background(), 24*time.Hour)

	reports, err := s.RecentCycles(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "cycle-new", reports[0].CycleID)
}
