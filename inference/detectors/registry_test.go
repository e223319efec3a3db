package detectors

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/FTsune/kape/inference"
	"github.com/FTsune/kape/models/model"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closingDetector struct {
	inference.DetectorFunc
	closed int
}

func (c *closingDetector) Close() error {
	c.closed++
	return nil
}

func TestRegistry_LoadsLazilyOnce(t *testing.T) {
	logger, _ := test.NewNullLogger()
	loads := map[model.Name]int{}
	created := map[model.Name]*closingDetector{}

	loader := func(config Config, _ logrus.FieldLogger) (inference.Detector, error) {
		loads[config.Model.Name]++
		d := &closingDetector{DetectorFunc: inference.DetectorFunc{
			ID: string(config.Model.Name),
			Fn: func(context.Context, image.Image, float32) (*inference.Prediction, error) {
				return &inference.Prediction{}, nil
			},
		}}
		created[config.Model.Name] = d
		return d, nil
	}

	r := NewRegistry([]Config{
		DefaultConfig(model.Config{Name: model.ModelNameSpots, Path: "spots.onnx"}),
		DefaultConfig(model.Config{Name: model.ModelNameLeaf, Path: "leaf.onnx"}),
	}, loader, logger)

	assert.Empty(t, loads)

	d1, err := r.Detector(model.ModelNameSpots)
	require.NoError(t, err)
	d2, err := r.Detector(model.ModelNameSpots)
	require.NoError(t, err)

	assert.Same(t, d1, d2)
	assert.Equal(t, 1, loads[model.ModelNameSpots])
	assert.Equal(t, "spots", d1.Name())

	_, err = r.Detector(model.ModelNameFullLeaf)
	assert.Error(t, err)

	require.NoError(t, r.Close())
	assert.Equal(t, 1, created[model.ModelNameSpots].closed)
}

func TestRegistry_LoaderError(t *testing.T) {
	logger, _ := test.NewNullLogger()
	boom := errors.New("boom")
	r := NewRegistry([]Config{DefaultConfig(model.Config{Name: model.ModelNameLeaf})},
		func(Config, logrus.FieldLogger) (inference.Detector, error) { return nil, boom }, logger)

	_, err := r.Detector(model.ModelNameLeaf)
	assert.ErrorIs(t, err, boom)
}

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig(model.Config{Name: model.ModelNameLeaf})
	assert.Equal(t, 640, c.Model.InputSize)
}
