// Package controller - Routes analysis requests through the result cache and
// the detector pipeline, and prefetches neighbouring images while paging.
package controller

import (
	"context"
	"fmt"

	"github.com/FTsune/kape/cache"
	"github.com/FTsune/kape/config"
	"github.com/FTsune/kape/images"
	"github.com/FTsune/kape/pipeline"
	"github.com/FTsune/kape/profiler"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Profiler counter and operation names.
const (
	CounterCacheHit  = "cache_hit"
	CounterCacheMiss = "cache_miss"
	CounterShared    = "shared_analysis"
	CounterPrefetch  = "prefetch_submitted"
	CounterDropped   = "prefetch_dropped"

	OperationAnalyze = "analyze"
	OperationDecode  = "decode"
)

// Options configures a Controller.
type Options struct {
	// MaxCacheEntries bounds the cache after every analysis.
	MaxCacheEntries int
	// Prefetcher runs neighbour prefetches. Navigate does not prefetch when nil.
	Prefetcher *Prefetcher
	// Profiler records timings. May be nil.
	Profiler *profiler.RuntimeProfiler
}

// Controller answers analysis requests from the cache when it can and runs the
// detector passes otherwise.
type Controller struct {
	aggregator *pipeline.Aggregator
	source     pipeline.ModelSource
	cache      *cache.ResultCache
	group      singleflight.Group

	maxEntries int
	prefetcher *Prefetcher
	profiler   *profiler.RuntimeProfiler
	log        logrus.FieldLogger
}

// New creates a controller.
//
// Arguments:
//   - aggregator: Runs the detector passes.
//   - source: Provides the detectors for each plan.
//   - results: The result cache.
//   - opts: Cache bound, prefetcher and profiler.
//   - log: The logger.
//
// Returns:
//   - *Controller: The controller. Close stops its prefetcher.
func New(aggregator *pipeline.Aggregator, source pipeline.ModelSource, results *cache.ResultCache, opts Options, log logrus.FieldLogger) *Controller {
	if opts.MaxCacheEntries <= 0 {
		opts.MaxCacheEntries = config.Default().Cache.MaxEntries
	}
	return &Controller{
		aggregator: aggregator,
		source:     source,
		cache:      results,
		maxEntries: opts.MaxCacheEntries,
		prefetcher: opts.Prefetcher,
		profiler:   opts.Profiler,
		log:        log,
	}
}

// Analyze returns the aggregate result for an encoded image under the given
// settings.
//
// Concurrent calls with the same fingerprint share one computation. The
// computation runs with the context of the call that started it. A caller
// that joined a computation cancelled by another caller runs it again with
// its own context. Every caller receives its own copy of the result.
//
// Arguments:
//   - ctx: Cancels the detector passes.
//   - data: The encoded image.
//   - settings: The detection settings.
//   - progress: Receives milestones when the passes run. May be nil.
//
// Returns:
//   - *pipeline.Result: The result.
//   - error: A *config.MalformedConfigurationError for invalid settings, a
//     *pipeline.DetectionFailure, or a decoding error.
func (c *Controller) Analyze(ctx context.Context, data []byte, settings config.Settings, progress pipeline.ProgressFunc) (*pipeline.Result, error) {
	done := c.profiler.StartOperation(OperationAnalyze)
	defer done()

	fp, err := cache.Fingerprint(data, settings)
	if err != nil {
		return nil, err
	}

	if r, ok := c.cache.Get(fp); ok {
		c.profiler.Count(CounterCacheHit)
		return r, nil
	}

	for attempt := 0; ; attempt++ {
		v, err, shared := c.group.Do(fp, func() (interface{}, error) {
			return c.compute(ctx, fp, data, settings, progress)
		})
		if shared {
			c.profiler.Count(CounterShared)
		}
		if err == nil {
			return v.(*pipeline.Result).Clone(), nil
		}
		// A joined flight cancelled by its own caller says nothing about this
		// call. Start a new flight while ctx is still live.
		if !shared || attempt >= maxJoinRetries || !isCancellation(err) || ctx.Err() != nil {
			return nil, err
		}
		c.log.WithField("fingerprint", fp).Debug("shared analysis was cancelled, retrying")
	}
}

// maxJoinRetries bounds how often Analyze restarts after joining a flight
// that was cancelled by another caller.
const maxJoinRetries = 2

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// compute runs the passes for a fingerprint that missed the cache and stores
// the result.
func (c *Controller) compute(ctx context.Context, fp string, data []byte, settings config.Settings, progress pipeline.ProgressFunc) (*pipeline.Result, error) {
	// A flight that finished between the lookup and Do may have filled it.
	if r, ok := c.cache.Get(fp); ok {
		c.profiler.Count(CounterCacheHit)
		return r, nil
	}
	c.profiler.Count(CounterCacheMiss)

	decodeDone := c.profiler.StartOperation(OperationDecode)
	meta, img, err := images.Load(data)
	decodeDone()
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode image")
	}

	passes, err := pipeline.Plan(settings, c.source)
	if err != nil {
		return nil, err
	}

	result, err := c.aggregator.Aggregate(ctx, img, passes, pipeline.Options{
		ConfidenceFloor: settings.ConfidenceFloor,
		IoUThreshold:    settings.IoUThreshold,
		Progress:        progress,
	})
	if err != nil {
		return nil, err
	}

	if err := c.cache.Put(fp, result); err != nil {
		c.log.WithError(err).WithField("fingerprint", fp).Warn("failed to cache result")
	}
	if n := c.cache.EvictToLimit(c.maxEntries); n > 0 {
		c.log.WithFields(logrus.Fields{"evicted": n, "limit": c.maxEntries}).Debug("trimmed result cache")
	}

	c.log.WithFields(logrus.Fields{
		"fingerprint": fp,
		"format":      meta.Format,
		"size":        fmt.Sprintf("%dx%d", meta.Width, meta.Height),
		"mode":        settings.Mode,
		"variant":     settings.Variant,
		"instances":   result.TotalCount,
		"elapsed":     result.ProcessingTime,
	}).Info("analyzed image")

	return result, nil
}

// Navigate selects image index of the session, analyzes it with the session
// settings and queues prefetches of the previous and next images.
//
// Arguments:
//   - ctx: Cancels the foreground analysis only.
//   - session: The session to page through.
//   - index: The image to select.
//   - progress: Receives milestones of the foreground analysis. May be nil.
//
// Returns:
//   - *pipeline.Result: The result for the selected image.
//   - error: An error if the index is out of range or the analysis fails.
func (c *Controller) Navigate(ctx context.Context, session *Session, index int, progress pipeline.ProgressFunc) (*pipeline.Result, error) {
	if err := session.Select(index); err != nil {
		return nil, err
	}
	file, _ := session.Image(index)
	settings := session.Settings()

	result, err := c.Analyze(ctx, file.Data, settings, progress)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to analyze %s", file.Name)
	}
	session.markApplied(settings)

	for _, neighbour := range []int{index - 1, index + 1} {
		c.prefetch(session, neighbour, settings)
	}
	return result, nil
}

// prefetch queues the analysis of image index unless it is already cached.
func (c *Controller) prefetch(session *Session, index int, settings config.Settings) {
	if c.prefetcher == nil {
		return
	}
	file, ok := session.Image(index)
	if !ok {
		return
	}
	if fp, err := cache.Fingerprint(file.Data, settings); err != nil || c.cache.Contains(fp) {
		return
	}

	log := c.log.WithFields(logrus.Fields{"image": file.Name, "index": index})
	submitted := c.prefetcher.TrySubmit(func(ctx context.Context) {
		if _, err := c.Analyze(ctx, file.Data, settings, nil); err != nil {
			log.WithError(err).Debug("prefetch failed")
			return
		}
		log.Debug("prefetched image")
	})
	if submitted {
		c.profiler.Count(CounterPrefetch)
	} else {
		c.profiler.Count(CounterDropped)
	}
}

// Cache returns the result cache.
func (c *Controller) Cache() *cache.ResultCache {
	return c.cache
}

// Close stops the prefetcher and waits for running prefetches to finish.
func (c *Controller) Close() error {
	if c.prefetcher != nil {
		c.prefetcher.Stop()
	}
	return nil
}
