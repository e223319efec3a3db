package pipeline

import (
	"github.com/FTsune/kape/config"
	"github.com/FTsune/kape/inference"
	"github.com/FTsune/kape/models"
	"github.com/FTsune/kape/models/model"
	"github.com/pkg/errors"
)

// ModelSource provides loaded detectors by model name.
type ModelSource interface {
	Detector(name model.Name) (inference.Detector, error)
}

// variantModels lists the models backing each disease variant, in run order.
var variantModels = map[config.DiseaseVariant][]model.Name{
	config.VariantSpots:    {model.ModelNameSpots},
	config.VariantFullLeaf: {model.ModelNameFullLeaf},
	config.VariantCombined: {model.ModelNameSpots, model.ModelNameFullLeaf},
}

// Plan turns settings into the passes to run: the disease pass for the
// configured variant, the leaf variety pass, or the disease pass followed by
// the leaf variety pass.
//
// Arguments:
//   - s: The validated settings.
//   - src: Provides the detectors.
//
// Returns:
//   - []DetectorPass: The passes in run order.
//   - error: A *config.MalformedConfigurationError for invalid settings, or
//     an error if a detector cannot be loaded.
func Plan(s config.Settings, src ModelSource) ([]DetectorPass, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	var passes []DetectorPass
	if s.RunsDisease() {
		p, err := diseasePass(s.Variant, src)
		if err != nil {
			return nil, err
		}
		passes = append(passes, p)
	}
	if s.RunsLeaf() {
		det, err := load(src, model.ModelNameLeaf)
		if err != nil {
			return nil, err
		}
		palette, err := paletteOf(model.ModelNameLeaf)
		if err != nil {
			return nil, err
		}
		passes = append(passes, Single{Detector: det, Palette: palette})
	}
	return passes, nil
}

func diseasePass(variant config.DiseaseVariant, src ModelSource) (DetectorPass, error) {
	names := variantModels[variant]
	dets := make([]inference.Detector, 0, len(names))
	for _, name := range names {
		det, err := load(src, name)
		if err != nil {
			return nil, err
		}
		dets = append(dets, det)
	}
	// Members of a composite pass share the palette of the first model.
	palette, err := paletteOf(names[0])
	if err != nil {
		return nil, err
	}
	if len(dets) == 1 {
		return Single{Detector: dets[0], Palette: palette}, nil
	}
	return Composite{Detectors: dets, Palette: palette}, nil
}

func paletteOf(name model.Name) (models.Palette, error) {
	d, err := models.Lookup(name)
	if err != nil {
		return nil, err
	}
	return d.Palette, nil
}

func load(src ModelSource, name model.Name) (inference.Detector, error) {
	det, err := src.Detector(name)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load %s detector", name)
	}
	return det, nil
}
