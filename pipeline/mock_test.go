package pipeline

import (
	"context"
	"image"
	"sync"

	"github.com/FTsune/kape/images"
	"github.com/FTsune/kape/inference"
	"github.com/FTsune/kape/models/model"
	"github.com/FTsune/kape/models/postprocess"
	"github.com/pkg/errors"
)

// stubDetector returns fixed boxes and counts its invocations.
type stubDetector struct {
	name   string
	labels []string
	boxes  []postprocess.Box
	err    error

	mu     sync.Mutex
	calls  int
	floors []float32
}

func (s *stubDetector) Name() string { return s.name }

func (s *stubDetector) Predict(_ context.Context, _ image.Image, floor float32) (*inference.Prediction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.floors = append(s.floors, floor)
	if s.err != nil {
		return nil, s.err
	}
	return &inference.Prediction{
		Boxes:  append([]postprocess.Box(nil), s.boxes...),
		Labels: s.labels,
	}, nil
}

func (s *stubDetector) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func box(x1, y1, x2, y2, score float32, class int) postprocess.Box {
	return postprocess.Box{Rect: images.Rect{X1: x1, Y1: y1, X2: x2, Y2: y2}, Score: score, Class: class}
}

// stubSource serves stub detectors by model name.
type stubSource map[model.Name]inference.Detector

func (s stubSource) Detector(name model.Name) (inference.Detector, error) {
	d, ok := s[name]
	if !ok {
		return nil, errors.Errorf("model %s not available", name)
	}
	return d, nil
}
