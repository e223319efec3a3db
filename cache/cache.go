package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/FTsune/kape/images"
	"github.com/FTsune/kape/pipeline"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Options configures a ResultCache.
type Options struct {
	// MaxDimension caps the longest side of cached images. 0 keeps the size.
	MaxDimension int
	// Quality is the JPEG quality cached images are re-encoded with.
	Quality int
	// Now is the clock stamping entries. time.Now when nil.
	Now func() time.Time
}

// DefaultOptions returns the options used by the application.
func DefaultOptions() Options {
	return Options{MaxDimension: 1200, Quality: images.DefaultJPEGQuality}
}

// entry is one cached result. The rendered image is kept encoded.
type entry struct {
	fingerprint string
	result      *pipeline.Result
	image       []byte
	createdAt   time.Time
	seq         uint64
}

// ResultCache maps fingerprints to aggregate results.
//
// Stored images are downscaled and re-encoded, so a cached result matches the
// original in every field except the image resolution and encoding. All
// methods are safe for concurrent use.
type ResultCache struct {
	mu      sync.RWMutex
	entries map[string]*entry
	seq     uint64
	opts    Options
	log     logrus.FieldLogger
}

// New creates an empty cache.
//
// Arguments:
//   - opts: Image compression and clock options.
//   - log: The logger corrupt entries are reported to.
//
// Returns:
//   - *ResultCache: The cache.
func New(opts Options, log logrus.FieldLogger) *ResultCache {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = images.DefaultJPEGQuality
	}
	return &ResultCache{
		entries: make(map[string]*entry),
		opts:    opts,
		log:     log,
	}
}

// Put stores a copy of result under fingerprint, replacing any previous entry.
// The caller's result is not modified.
//
// Arguments:
//   - fingerprint: The key, see Fingerprint.
//   - result: The result to store.
//
// Returns:
//   - error: An error if the result is nil or its image cannot be encoded.
func (c *ResultCache) Put(fingerprint string, result *pipeline.Result) error {
	if result == nil {
		return errors.New("cannot cache a nil result")
	}

	stored := result.Clone()
	stored.Image = nil

	var encoded []byte
	if result.Image != nil {
		var err error
		encoded, err = images.Compress(result.Image, c.opts.MaxDimension, c.opts.Quality)
		if err != nil {
			return errors.Wrap(err, "failed to compress cached image")
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	c.entries[fingerprint] = &entry{
		fingerprint: fingerprint,
		result:      stored,
		image:       encoded,
		createdAt:   c.opts.Now(),
		seq:         c.seq,
	}
	return nil
}

// Get returns the result cached under fingerprint.
//
// A malformed entry is logged, removed and reported as a miss.
//
// Arguments:
//   - fingerprint: The key.
//
// Returns:
//   - *pipeline.Result: A copy of the cached result with its image decoded.
//   - bool: false on a miss.
func (c *ResultCache) Get(fingerprint string) (*pipeline.Result, bool) {
	c.mu.RLock()
	e, ok := c.entries[fingerprint]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	result, err := e.restore()
	if err != nil {
		c.log.WithError(err).WithFields(logrus.Fields{
			"fingerprint": fingerprint,
			"created_at":  e.createdAt,
		}).Warn("cache entry is corrupt, treating as a miss")

		c.mu.Lock()
		if c.entries[fingerprint] == e {
			delete(c.entries, fingerprint)
		}
		c.mu.Unlock()
		return nil, false
	}
	return result, true
}

func (e *entry) restore() (*pipeline.Result, error) {
	if e.result == nil {
		return nil, errors.New("entry has no result")
	}
	if err := e.result.Validate(); err != nil {
		return nil, err
	}

	result := e.result.Clone()
	if e.image != nil {
		img, _, err := images.Decode(e.image)
		if err != nil {
			return nil, errors.Wrap(err, "cached image cannot be decoded")
		}
		result.Image = img
	}
	return result, nil
}

// Contains reports whether fingerprint has an entry, without decoding it.
func (c *ResultCache) Contains(fingerprint string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[fingerprint]
	return ok
}

// EvictToLimit removes the oldest entries until at most maxEntries remain.
// Entries created at the same instant leave in insertion order.
//
// Arguments:
//   - maxEntries: The number of entries to keep.
//
// Returns:
//   - int: The number of removed entries.
func (c *ResultCache) EvictToLimit(maxEntries int) int {
	if maxEntries < 0 {
		maxEntries = 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	excess := len(c.entries) - maxEntries
	if excess <= 0 {
		return 0
	}

	ordered := make([]*entry, 0, len(c.entries))
	for _, e := range c.entries {
		ordered = append(ordered, e)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if !ordered[i].createdAt.Equal(ordered[j].createdAt) {
			return ordered[i].createdAt.Before(ordered[j].createdAt)
		}
		return ordered[i].seq < ordered[j].seq
	})

	for _, e := range ordered[:excess] {
		delete(c.entries, e.fingerprint)
	}

	c.log.WithFields(logrus.Fields{
		"evicted":   excess,
		"remaining": len(c.entries),
	}).Debug("evicted cache entries")

	return excess
}

// Clear removes every entry and reports whether anything was removed.
func (c *ResultCache) Clear() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) == 0 {
		return false
	}
	c.entries = make(map[string]*entry)
	return true
}

// Size returns the number of entries.
func (c *ResultCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
