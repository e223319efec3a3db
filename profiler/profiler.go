// Package profiler - Operation timings and counters for analysis runs.
package profiler

import (
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ProfilingOptions configures the profiler.
type ProfilingOptions struct {
	// MaxSamples is the number of recent durations kept per operation (default: 600).
	MaxSamples int
}

// TimeTracker tracks operation timing statistics.
type TimeTracker struct {
	durations []time.Duration
	totalTime time.Duration
	minTime   time.Duration
	maxTime   time.Duration
	count     int64
}

// OperationStats is a snapshot of one operation's timings. Mean is taken over
// the retained samples, Min and Max over every recorded duration.
type OperationStats struct {
	Count   int64
	Samples int
	Mean    time.Duration
	Min     time.Duration
	Max     time.Duration
}

// Stats is a snapshot of the profiler.
type Stats struct {
	Uptime     time.Duration
	Operations map[string]OperationStats
	Counters   map[string]int64
}

// RuntimeProfiler records how long named operations take and counts events
// such as cache hits. A nil *RuntimeProfiler is valid and records nothing.
type RuntimeProfiler struct {
	mu         sync.Mutex
	startTime  time.Time
	maxSamples int
	now        func() time.Time

	operationTimes map[string]*TimeTracker
	counters       map[string]int64
}

// NewRuntimeProfiler creates a new profiler with the specified options.
//
// Arguments:
// - opts: Configuration options for the profiler
//
// Returns:
// - A configured RuntimeProfiler instance
func NewRuntimeProfiler(opts ProfilingOptions) *RuntimeProfiler {
	if opts.MaxSamples <= 0 {
		opts.MaxSamples = 600
	}
	return &RuntimeProfiler{
		startTime:      time.Now(),
		maxSamples:     opts.MaxSamples,
		now:            time.Now,
		operationTimes: make(map[string]*TimeTracker),
		counters:       make(map[string]int64),
	}
}

// StartOperation begins timing an operation.
//
// Arguments:
// - name: The name of the operation to track
//
// Returns:
// - A function to call when the operation completes
func (rp *RuntimeProfiler) StartOperation(name string) func() {
	if rp == nil {
		return func() {}
	}
	start := rp.now()
	return func() {
		rp.RecordOperation(name, rp.now().Sub(start))
	}
}

// RecordOperation records the duration of a completed operation.
func (rp *RuntimeProfiler) RecordOperation(name string, duration time.Duration) {
	if rp == nil {
		return
	}
	rp.mu.Lock()
	defer rp.mu.Unlock()

	tracker, exists := rp.operationTimes[name]
	if !exists {
		tracker = &TimeTracker{minTime: duration, maxTime: duration}
		rp.operationTimes[name] = tracker
	}

	tracker.durations = append(tracker.durations, duration)
	tracker.totalTime += duration
	if len(tracker.durations) > rp.maxSamples {
		tracker.totalTime -= tracker.durations[0]
		tracker.durations = tracker.durations[1:]
	}
	tracker.count++

	if duration < tracker.minTime {
		tracker.minTime = duration
	}
	if duration > tracker.maxTime {
		tracker.maxTime = duration
	}
}

// Count increments the named counter.
func (rp *RuntimeProfiler) Count(name string) {
	if rp == nil {
		return
	}
	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.counters[name]++
}

// Snapshot returns the current statistics.
func (rp *RuntimeProfiler) Snapshot() Stats {
	stats := Stats{
		Operations: make(map[string]OperationStats),
		Counters:   make(map[string]int64),
	}
	if rp == nil {
		return stats
	}

	rp.mu.Lock()
	defer rp.mu.Unlock()

	stats.Uptime = rp.now().Sub(rp.startTime)
	for name, tracker := range rp.operationTimes {
		if len(tracker.durations) == 0 {
			continue
		}
		stats.Operations[name] = OperationStats{
			Count:   tracker.count,
			Samples: len(tracker.durations),
			Mean:    tracker.totalTime / time.Duration(len(tracker.durations)),
			Min:     tracker.minTime,
			Max:     tracker.maxTime,
		}
	}
	for name, n := range rp.counters {
		stats.Counters[name] = n
	}
	return stats
}

// Report logs one line per operation and one line with the counters.
func (rp *RuntimeProfiler) Report(log logrus.FieldLogger) {
	stats := rp.Snapshot()

	names := make([]string, 0, len(stats.Operations))
	for name := range stats.Operations {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		op := stats.Operations[name]
		log.WithFields(logrus.Fields{
			"operation": name,
			"count":     op.Count,
			"avg":       op.Mean.Truncate(time.Microsecond),
			"min":       op.Min.Truncate(time.Microsecond),
			"max":       op.Max.Truncate(time.Microsecond),
		}).Info("operation timings")
	}

	if len(stats.Counters) > 0 {
		fields := logrus.Fields{"uptime": stats.Uptime.Truncate(time.Millisecond)}
		for name, n := range stats.Counters {
			fields[name] = n
		}
		log.WithFields(fields).Info("counters")
	}
}
