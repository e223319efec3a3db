package controller

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"
	"testing"
	"time"

	"github.com/FTsune/kape/cache"
	"github.com/FTsune/kape/config"
	"github.com/FTsune/kape/images"
	"github.com/FTsune/kape/inference"
	"github.com/FTsune/kape/models/model"
	"github.com/FTsune/kape/models/postprocess"
	"github.com/FTsune/kape/pipeline"
	"github.com/FTsune/kape/profiler"
	"github.com/FTsune/kape/util"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockDetector returns one fixed box and counts its invocations. When gate is
// set every call blocks until it is closed.
type MockDetector struct {
	name  string
	label string
	err   error
	gate  chan struct{}

	mu    sync.Mutex
	calls int
}

func (m *MockDetector) Name() string { return m.name }

func (m *MockDetector) Predict(ctx context.Context, _ image.Image, _ float32) (*inference.Prediction, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.gate != nil {
		select {
		case <-m.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return &inference.Prediction{
		Boxes:  []postprocess.Box{{Rect: images.Rect{X1: 4, Y1: 4, X2: 20, Y2: 20}, Score: 0.9, Class: 0}},
		Labels: []string{m.label},
	}, nil
}

func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockSource serves mock detectors by model name.
type MockSource map[model.Name]*MockDetector

func (s MockSource) Detector(name model.Name) (inference.Detector, error) {
	d, ok := s[name]
	if !ok {
		return nil, errors.Errorf("model %s not available", name)
	}
	return d, nil
}

func newSource() (MockSource, *MockDetector) {
	spots := &MockDetector{name: "spots", label: "late-stage-rust"}
	return MockSource{
		model.ModelNameSpots:    spots,
		model.ModelNameFullLeaf: &MockDetector{name: "full-leaf", label: "rust"},
		model.ModelNameLeaf:     &MockDetector{name: "leaf", label: "arabica"},
	}, spots
}

func newTestController(t *testing.T, source MockSource, opts Options) *Controller {
	t.Helper()
	log, _ := test.NewNullLogger()
	c := New(pipeline.NewAggregator(nil, log), source, cache.New(cache.DefaultOptions(), log), opts, log)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// encodedImage returns a PNG whose content depends on seed.
func encodedImage(t *testing.T, seed uint8) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 48, 32))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{R: seed, G: 140, B: 60, A: 255}), image.Point{}, draw.Src)
	data, err := images.Encode(img, images.FormatPNG, 0)
	require.NoError(t, err)
	return data
}

func TestController_AnalyzeUsesCache(t *testing.T) {
	source, spots := newSource()
	c := newTestController(t, source, Options{})
	data := encodedImage(t, 10)
	settings := config.DefaultSettings()

	first, err := c.Analyze(context.Background(), data, settings, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"rust"}, first.Labels)
	assert.Equal(t, 1, spots.Calls())

	second, err := c.Analyze(context.Background(), encodedImage(t, 10), settings, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, spots.Calls(), "identical request is served from the cache")
	assert.Equal(t, first.Instances, second.Instances)
	assert.Equal(t, first.BestConfidence, second.BestConfidence)

	settings.ConfidenceFloor = 0.5
	_, err = c.Analyze(context.Background(), data, settings, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, spots.Calls(), "changed settings miss the cache")
	assert.Equal(t, 2, c.Cache().Size())
}

func TestController_AnalyzeReportsProgressOnMiss(t *testing.T) {
	source, _ := newSource()
	c := newTestController(t, source, Options{})
	data := encodedImage(t, 11)

	var fractions []float64
	progress := func(f float64, _ string) { fractions = append(fractions, f) }

	_, err := c.Analyze(context.Background(), data, config.DefaultSettings(), progress)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2, 0.9, 1.0}, fractions)

	fractions = nil
	_, err = c.Analyze(context.Background(), data, config.DefaultSettings(), progress)
	require.NoError(t, err)
	assert.Empty(t, fractions, "cache hits run no passes")
}

func TestController_ConcurrentAnalyzeSharesComputation(t *testing.T) {
	source, spots := newSource()
	spots.gate = make(chan struct{})
	rp := profiler.NewRuntimeProfiler(profiler.ProfilingOptions{})
	c := newTestController(t, source, Options{Profiler: rp})
	data := encodedImage(t, 12)

	const callers = 8
	var wg sync.WaitGroup
	results := make([]*pipeline.Result, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Analyze(context.Background(), data, config.DefaultSettings(), nil)
		}(i)
	}

	require.Eventually(t, func() bool { return spots.Calls() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(spots.gate)
	wg.Wait()

	assert.Equal(t, 1, spots.Calls())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0].Instances, results[i].Instances)
	}
	assert.Equal(t, int64(1), rp.Snapshot().Counters[CounterCacheMiss])
}

func TestController_AnalyzeErrors(t *testing.T) {
	t.Run("malformed settings", func(t *testing.T) {
		source, spots := newSource()
		c := newTestController(t, source, Options{})

		_, err := c.Analyze(context.Background(), encodedImage(t, 1), config.Settings{Mode: config.ModeDisease}, nil)
		var malformed *config.MalformedConfigurationError
		require.ErrorAs(t, err, &malformed)
		assert.Equal(t, config.KeyDiseaseVariant, malformed.Field)
		assert.Equal(t, 0, spots.Calls())
	})

	t.Run("undecodable image", func(t *testing.T) {
		source, spots := newSource()
		c := newTestController(t, source, Options{})

		_, err := c.Analyze(context.Background(), []byte("not an image"), config.DefaultSettings(), nil)
		assert.Error(t, err)
		assert.Equal(t, 0, spots.Calls())
	})

	t.Run("detector failure is not cached", func(t *testing.T) {
		source, spots := newSource()
		boom := errors.New("runtime exploded")
		spots.err = boom
		c := newTestController(t, source, Options{})
		data := encodedImage(t, 2)

		_, err := c.Analyze(context.Background(), data, config.DefaultSettings(), nil)
		var failure *pipeline.DetectionFailure
		require.ErrorAs(t, err, &failure)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 0, c.Cache().Size())

		spots.err = nil
		_, err = c.Analyze(context.Background(), data, config.DefaultSettings(), nil)
		require.NoError(t, err)
		assert.Equal(t, 2, spots.Calls())
	})
}

func TestController_EvictsAfterAnalyze(t *testing.T) {
	source, _ := newSource()
	c := newTestController(t, source, Options{MaxCacheEntries: 2})

	for i := 0; i < 4; i++ {
		_, err := c.Analyze(context.Background(), encodedImage(t, uint8(20+i)), config.DefaultSettings(), nil)
		require.NoError(t, err)
		assert.LessOrEqual(t, c.Cache().Size(), 2)
	}

	newest, err := cache.Fingerprint(encodedImage(t, 23), config.DefaultSettings())
	require.NoError(t, err)
	assert.True(t, c.Cache().Contains(newest))
}

func TestController_ForegroundSurvivesCancelledPrefetch(t *testing.T) {
	source, spots := newSource()
	spots.gate = make(chan struct{})
	log, _ := test.NewNullLogger()
	prefetcher := NewPrefetcher(1, 1, log)
	prefetcher.Start()
	c := newTestController(t, source, Options{Prefetcher: prefetcher})

	data := encodedImage(t, 13)
	session, err := NewSession([]util.ImageFile{{Name: "leaf.png", Data: data}}, config.DefaultSettings())
	require.NoError(t, err)

	c.prefetch(session, 0, session.Settings())
	require.Eventually(t, func() bool { return spots.Calls() == 1 }, time.Second, time.Millisecond)

	type outcome struct {
		result *pipeline.Result
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		r, err := c.Analyze(context.Background(), data, session.Settings(), nil)
		done <- outcome{r, err}
	}()
	// Let the foreground call join the running prefetch.
	time.Sleep(20 * time.Millisecond)

	prefetcher.Stop()
	close(spots.gate)

	select {
	case got := <-done:
		require.NoError(t, got.err)
		assert.Equal(t, []string{"rust"}, got.result.Labels)
	case <-time.After(2 * time.Second):
		t.Fatal("foreground analysis did not finish")
	}
	assert.Equal(t, 2, spots.Calls())
	assert.Equal(t, 1, c.Cache().Size())
}

func TestController_NavigatePrefetchesNeighbours(t *testing.T) {
	source, spots := newSource()
	log, _ := test.NewNullLogger()
	prefetcher := NewPrefetcher(2, 4, log)
	prefetcher.Start()
	c := newTestController(t, source, Options{Prefetcher: prefetcher})

	files := make([]util.ImageFile, 4)
	for i := range files {
		files[i] = util.ImageFile{Name: fmt.Sprintf("leaf-%d.png", i), Data: encodedImage(t, uint8(40+i))}
	}
	session, err := NewSession(files, config.DefaultSettings())
	require.NoError(t, err)
	assert.True(t, session.ConfigChanged())

	result, err := c.Navigate(context.Background(), session, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.TotalCount)
	assert.Equal(t, 1, session.Selected())
	assert.False(t, session.ConfigChanged())

	fingerprints := make([]string, len(files))
	for i := range files {
		fingerprints[i], err = cache.Fingerprint(files[i].Data, config.DefaultSettings())
		require.NoError(t, err)
	}
	require.Eventually(t, func() bool {
		return c.Cache().Contains(fingerprints[0]) && c.Cache().Contains(fingerprints[2])
	}, 2*time.Second, 5*time.Millisecond)
	assert.False(t, c.Cache().Contains(fingerprints[3]))

	// Paging to a prefetched image runs no passes.
	var fractions []float64
	_, err = c.Navigate(context.Background(), session, 2, func(f float64, _ string) { fractions = append(fractions, f) })
	require.NoError(t, err)
	assert.Empty(t, fractions)
	require.Eventually(t, func() bool { return c.Cache().Contains(fingerprints[3]) }, 2*time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, spots.Calls(), 4)
}

func TestController_NavigateErrors(t *testing.T) {
	source, _ := newSource()
	c := newTestController(t, source, Options{})
	session, err := NewSession([]util.ImageFile{{Name: "a.png", Data: encodedImage(t, 1)}}, config.DefaultSettings())
	require.NoError(t, err)

	_, err = c.Navigate(context.Background(), session, 1, nil)
	assert.Error(t, err)
	_, err = c.Navigate(context.Background(), session, -1, nil)
	assert.Error(t, err)
	assert.Equal(t, 0, session.Selected())
}

func TestSession_Settings(t *testing.T) {
	_, err := NewSession(nil, config.Settings{})
	assert.Error(t, err)

	session, err := NewSession(nil, config.DefaultSettings())
	require.NoError(t, err)
	assert.Equal(t, 0, session.Len())
	_, ok := session.Image(0)
	assert.False(t, ok)

	session.markApplied(session.Settings())
	assert.False(t, session.ConfigChanged())

	changed := config.DefaultSettings()
	changed.Mode = config.ModeBoth
	require.NoError(t, session.SetSettings(changed))
	assert.True(t, session.ConfigChanged())

	invalid := changed
	invalid.IoUThreshold = 2
	assert.Error(t, session.SetSettings(invalid))
	assert.Equal(t, changed, session.Settings())
}

func TestPrefetcher(t *testing.T) {
	log, _ := test.NewNullLogger()
	p := NewPrefetcher(1, 1, log)

	assert.False(t, p.TrySubmit(func(context.Context) {}), "stopped prefetcher rejects work")

	p.Start()
	started := make(chan struct{})
	stopped := make(chan struct{})
	require.True(t, p.TrySubmit(func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		close(stopped)
	}))
	<-started

	ran := false
	assert.True(t, p.TrySubmit(func(context.Context) { ran = true }), "queued behind the busy worker")
	assert.False(t, p.TrySubmit(func(context.Context) {}), "full queue drops work")

	p.Stop()
	<-stopped
	assert.False(t, ran, "queued work is discarded on stop")
	assert.False(t, p.TrySubmit(func(context.Context) {}))

	p.Stop()
}
