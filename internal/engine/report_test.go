package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reporanger/internal/ops"
)

func TestReportAggregatorRecordAndFinalize(t *testing.T) {
	refs := testRefs(3)
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	agg := newReportAggregator("label-sync", refs, started)

	require.NoError(t, agg.Record(0, ops.Succeeded("ok", 1)))
	require.NoError(t, agg.Record(2, ops.Failed(ops.KindPermission, "denied", 1)))
	require.NoError(t, agg.Record(1, ops.Skipped("cancelled")))

	report, err := agg.Finalize(started.Add(3 * time.Second))
	require.NoError(t, err)

	assert.Equal(t, "label-sync", report.Op)
	assert.Equal(t, started, report.Started)
	assert.Equal(t, 3*time.Second, report.Duration)
	assert.Len(t, report.RunID, 26, "ULID run IDs are 26 chars")

	counts := report.Counts()
	assert.Equal(t, 1, counts[ops.StatusSucceeded])
	assert.Equal(t, 1, counts[ops.StatusFailed])
	assert.Equal(t, 1, counts[ops.StatusSkipped])

	failures := report.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, "repo-2", failures[0].Ref.Name)
}

func TestReportAggregatorRejectsDoubleRecord(t *testing.T) {
	agg := newReportAggregator("op", testRefs(2), time.Now())

	require.NoError(t, agg.Record(0, ops.Succeeded("ok", 1)))
	err := agg.Record(0, ops.Succeeded("again", 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recorded twice")
}

func TestReportAggregatorRejectsOutOfRangeSlot(t *testing.T) {
	agg := newReportAggregator("op", testRefs(2), time.Now())

	assert.Error(t, agg.Record(-1, ops.Succeeded("ok", 1)))
	assert.Error(t, agg.Record(2, ops.Succeeded("ok", 1)))
}

func TestReportAggregatorFinalizeRequiresAllOutcomes(t *testing.T) {
	agg := newReportAggregator("op", testRefs(2), time.Now())
	require.NoError(t, agg.Record(0, ops.Succeeded("ok", 1)))

	_, err := agg.Finalize(time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "owner/repo-1")
}

func TestReportAggregatorFinalizeOnlyOnce(t *testing.T) {
	agg := newReportAggregator("op", testRefs(1), time.Now())
	require.NoError(t, agg.Record(0, ops.Succeeded("ok", 1)))

	_, err := agg.Finalize(time.Now())
	require.NoError(t, err)

	_, err = agg.Finalize(time.Now())
	assert.Error(t, err)

	assert.Error(t, agg.Record(0, ops.Succeeded("late", 1)), "record after finalize")
}

func TestRunIDsAreUniqueAndSortable(t *testing.T) {
	now := time.Now()
	a := newRunID(now)
	b := newRunID(now.Add(time.Second))
	assert.NotEqual(t, a, b)
	assert.Less(t, a, b, "ULIDs sort by timestamp")
}
