package detectors

import (
	"testing"

	"github.com/FTsune/kape/models/model"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveLabels(t *testing.T) {
	log, _ := test.NewNullLogger()

	t.Run("configured labels win", func(t *testing.T) {
		labels, err := resolveLabels(Config{Model: model.Config{Name: model.ModelNameLeaf, Labels: []string{"excelsa"}}}, log)
		require.NoError(t, err)
		assert.Equal(t, []string{"excelsa"}, labels)
	})

	t.Run("built-in table without metadata", func(t *testing.T) {
		labels, err := resolveLabels(Config{Model: model.Config{Name: model.ModelNameFullLeaf, Path: "missing.onnx"}}, log)
		require.NoError(t, err)
		assert.Equal(t, []string{"abiotic", "cercospora", "healthy", "rust", "sooty-mold", "late-stage-rust"}, labels)
	})

	t.Run("unknown model", func(t *testing.T) {
		_, err := resolveLabels(Config{Model: model.Config{Name: "yolov4", Path: "missing.onnx"}}, log)
		assert.Error(t, err)
	})
}
