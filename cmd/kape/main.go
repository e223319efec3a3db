// Command kape runs the coffee leaf detectors over a directory of images,
// writes the annotated images and optionally records disease detections.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/FTsune/kape/cache"
	"github.com/FTsune/kape/config"
	"github.com/FTsune/kape/controller"
	"github.com/FTsune/kape/images"
	"github.com/FTsune/kape/inference/detectors"
	"github.com/FTsune/kape/inference/providers"
	"github.com/FTsune/kape/models"
	"github.com/FTsune/kape/pipeline"
	"github.com/FTsune/kape/profiler"
	"github.com/FTsune/kape/records"
	"github.com/FTsune/kape/render"
	"github.com/FTsune/kape/render/opencv"
	"github.com/FTsune/kape/util"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultOutputDir is where annotated images are written.
	DefaultOutputDir = "detections"
	// outputQuality is the JPEG quality of annotated images.
	outputQuality = 95
)

type flags struct {
	configPath string
	input      string
	outputDir  string
	renderer   string
	mode       string
	variant    string
	confidence float64
	iou        float64
	records    bool
	logLevel   string
}

func main() {
	var f flags
	flag.StringVar(&f.configPath, "config", "", "Path to a YAML configuration file")
	flag.StringVar(&f.input, "input", "", "Image file or directory of images (.jpg, .jpeg, .png, .webp, .bmp)")
	flag.StringVar(&f.outputDir, "output-dir", DefaultOutputDir, "Output directory for annotated images")
	flag.StringVar(&f.renderer, "renderer", "raster", "Box renderer: raster or opencv")
	flag.StringVar(&f.mode, "mode", "", "Detection mode: disease, leaf or both")
	flag.StringVar(&f.variant, "variant", "", "Disease model: spots, full-leaf or spots+full-leaf")
	flag.Float64Var(&f.confidence, "confidence", 0, "Confidence floor in [0, 1]")
	flag.Float64Var(&f.iou, "iou", 0, "Overlap threshold in [0, 1]")
	flag.BoolVar(&f.records, "records", false, "Append disease detections to the records file")
	flag.StringVar(&f.logLevel, "log-level", "", "Log level")
	flag.Parse()

	if err := run(f); err != nil {
		logrus.WithError(err).Fatal("kape failed")
	}
}

// loadConfig reads the configuration and applies the flags that were set.
func loadConfig(f flags) (*config.AppConfig, error) {
	cfg := config.Default()
	if f.configPath != "" {
		var err error
		if cfg, err = config.Load(f.configPath); err != nil {
			return nil, err
		}
	}

	flag.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "mode":
			cfg.Detection.Mode = config.DetectionMode(f.mode)
		case "variant":
			cfg.Detection.Variant = config.DiseaseVariant(f.variant)
		case "confidence":
			cfg.Detection.ConfidenceFloor = f.confidence
		case "iou":
			cfg.Detection.IoUThreshold = f.iou
		case "records":
			cfg.Records.Enabled = f.records
		case "log-level":
			cfg.Log.Level = f.logLevel
		}
	})

	return cfg, cfg.Validate()
}

func newRenderer(name string) (render.Renderer, error) {
	switch strings.ToLower(name) {
	case "", "raster":
		return render.NewRaster(), nil
	case "opencv":
		return opencv.NewRenderer(), nil
	default:
		return nil, errors.Errorf("unknown renderer %q", name)
	}
}

func loadInput(path string) ([]util.ImageFile, error) {
	if path == "" {
		return nil, errors.New("no input given, use -input")
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to stat %s", path)
	}
	if !info.IsDir() {
		file, err := util.LoadImageFile(path)
		if err != nil {
			return nil, err
		}
		return []util.ImageFile{file}, nil
	}
	return util.LoadDirectoryImageFiles(path)
}

func run(f flags) error {
	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}
	log := cfg.Log.NewLogger()

	files, err := loadInput(f.input)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		log.WithField("input", f.input).Warn("no images found")
		return nil
	}

	renderer, err := newRenderer(f.renderer)
	if err != nil {
		return err
	}

	backend, err := providers.ParseBackend(cfg.Runtime.Backend)
	if err != nil {
		return err
	}
	loader := detectors.OpenCVLoader
	if cfg.Runtime.Engine == config.EngineONNXRuntime {
		loader = detectors.ONNXLoader
		if err := providers.Initialize(cfg.Runtime.SharedLibrary); err != nil {
			return err
		}
		defer func() {
			if err := providers.Shutdown(); err != nil {
				log.WithError(err).Warn("failed to shut down onnxruntime")
			}
		}()
	}

	configs := make([]detectors.Config, 0, len(cfg.Models))
	for _, m := range cfg.Models {
		dc := detectors.DefaultConfig(m)
		dc.Backend = backend
		dc.IntraOpThreads = cfg.Runtime.IntraOpThreads
		configs = append(configs, dc)
	}
	registry := detectors.NewRegistry(configs, loader, log)
	defer func() {
		if err := registry.Close(); err != nil {
			log.WithError(err).Warn("failed to close detectors")
		}
	}()

	prof := profiler.NewRuntimeProfiler(profiler.ProfilingOptions{})
	opts := controller.Options{MaxCacheEntries: cfg.Cache.MaxEntries, Profiler: prof}
	if cfg.Prefetch.Enabled {
		opts.Prefetcher = controller.NewPrefetcher(cfg.Prefetch.Workers, cfg.Prefetch.QueueSize, log)
		opts.Prefetcher.Start()
	}
	results := cache.New(cache.Options{MaxDimension: cfg.Cache.MaxDimension, Quality: cfg.Cache.JPEGQuality}, log)
	ctrl := controller.New(pipeline.NewAggregator(renderer, log), registry, results, opts, log)
	defer ctrl.Close()

	var recorder *records.Recorder
	if cfg.Records.Enabled {
		policy := records.Policy{MinConfidence: cfg.Records.MinConfidence}
		recorder = records.NewRecorder(policy, records.NewCSVSink(cfg.Records.Path), log)
	}

	session, err := controller.NewSession(files, cfg.Detection)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(f.outputDir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create %s", f.outputDir)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	log.WithFields(logrus.Fields{
		"images":  len(files),
		"mode":    cfg.Detection.Mode,
		"variant": cfg.Detection.Variant,
		"engine":  cfg.Runtime.Engine,
		"backend": backend,
	}).Info("starting batch")

	failed := 0
	for i := 0; i < session.Len(); i++ {
		if ctx.Err() != nil {
			break
		}
		if err := processImage(ctx, ctrl, session, i, f.outputDir, recorder, log); err != nil {
			failed++
			log.WithError(err).Error("failed to process image")
		}
	}

	prof.Report(log)
	if failed > 0 {
		return errors.Errorf("%d of %d images failed", failed, len(files))
	}
	return ctx.Err()
}

func processImage(ctx context.Context, ctrl *controller.Controller, session *controller.Session, index int,
	outputDir string, recorder *records.Recorder, log logrus.FieldLogger,
) error {
	file, _ := session.Image(index)
	log = log.WithField("image", file.Name)

	result, err := ctrl.Navigate(ctx, session, index, func(fraction float64, message string) {
		log.WithField("progress", fmt.Sprintf("%.0f%%", fraction*100)).Debug(message)
	})
	if err != nil {
		return err
	}

	diseases, leaves := summarize(result)
	log.WithFields(logrus.Fields{
		"detections": result.TotalCount,
		"diseases":   diseases,
		"leaves":     leaves,
	}).Info("detected")

	if result.Image != nil {
		data, err := images.Encode(result.Image, images.FormatJPEG, outputQuality)
		if err != nil {
			return err
		}
		name := strings.TrimSuffix(file.Name, filepath.Ext(file.Name)) + ".jpg"
		if err := os.WriteFile(filepath.Join(outputDir, name), data, 0o644); err != nil {
			return errors.Wrapf(err, "failed to write %s", name)
		}
	}

	if recorder != nil {
		if _, err := recorder.Record(file.Name, file.Data, result); err != nil {
			return err
		}
	}
	return nil
}

// summarize lists the disease labels and the leaf varieties of a result with
// their best confidence, in order of first appearance.
func summarize(result *pipeline.Result) (string, string) {
	describe := func(instances []pipeline.Detection) string {
		seen := make(map[string]bool, len(instances))
		parts := make([]string, 0, len(instances))
		for _, d := range instances {
			if seen[d.Label] {
				continue
			}
			seen[d.Label] = true
			parts = append(parts, fmt.Sprintf("%s %.1f%%", models.DisplayName(d.Label), result.BestConfidence[d.Label]))
		}
		return strings.Join(parts, ", ")
	}
	return describe(result.DiseaseInstances()), describe(result.LeafInstances())
}
