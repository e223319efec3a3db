package profiler

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuntimeProfiler_RecordOperation(t *testing.T) {
	rp := NewRuntimeProfiler(ProfilingOptions{MaxSamples: 2})

	rp.RecordOperation("analyze", 30*time.Millisecond)
	rp.RecordOperation("analyze", 10*time.Millisecond)
	rp.RecordOperation("analyze", 20*time.Millisecond)

	op, ok := rp.Snapshot().Operations["analyze"]
	require.True(t, ok)
	assert.Equal(t, int64(3), op.Count)
	assert.Equal(t, 2, op.Samples)
	assert.Equal(t, 15*time.Millisecond, op.Mean, "mean covers the retained samples")
	assert.Equal(t, 10*time.Millisecond, op.Min)
	assert.Equal(t, 30*time.Millisecond, op.Max)
}

func TestRuntimeProfiler_StartOperation(t *testing.T) {
	rp := NewRuntimeProfiler(ProfilingOptions{})
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rp.now = func() time.Time {
		now = now.Add(5 * time.Millisecond)
		return now
	}

	done := rp.StartOperation("decode")
	done()

	op := rp.Snapshot().Operations["decode"]
	assert.Equal(t, int64(1), op.Count)
	assert.Equal(t, 5*time.Millisecond, op.Mean)
}

func TestRuntimeProfiler_Counters(t *testing.T) {
	rp := NewRuntimeProfiler(ProfilingOptions{})
	rp.Count("cache_hit")
	rp.Count("cache_hit")
	rp.Count("cache_miss")

	stats := rp.Snapshot()
	assert.Equal(t, map[string]int64{"cache_hit": 2, "cache_miss": 1}, stats.Counters)

	stats.Counters["cache_hit"] = 100
	assert.Equal(t, int64(2), rp.Snapshot().Counters["cache_hit"], "snapshot is a copy")
}

func TestRuntimeProfiler_Nil(t *testing.T) {
	var rp *RuntimeProfiler
	assert.NotPanics(t, func() {
		rp.StartOperation("x")()
		rp.RecordOperation("x", time.Second)
		rp.Count("x")
	})
	assert.Empty(t, rp.Snapshot().Operations)
}

func TestRuntimeProfiler_Report(t *testing.T) {
	log, hook := test.NewNullLogger()
	rp := NewRuntimeProfiler(ProfilingOptions{})
	rp.RecordOperation("b", time.Millisecond)
	rp.RecordOperation("a", time.Millisecond)
	rp.Count("cache_hit")

	rp.Report(log)

	entries := hook.AllEntries()
	require.Len(t, entries, 3)
	assert.Equal(t, "a", entries[0].Data["operation"])
	assert.Equal(t, "b", entries[1].Data["operation"])
	assert.Equal(t, int64(1), entries[2].Data["cache_hit"])
}
