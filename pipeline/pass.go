// Package pipeline - Runs detector passes over an image and merges their
// boxes into one deduplicated, confidence ranked result.
package pipeline

import (
	"github.com/FTsune/kape/inference"
	"github.com/FTsune/kape/models"
)

// DetectorPass is one logical detection step: either a Single detector or a
// Composite of several detectors whose outputs are merged as one pass.
type DetectorPass interface {
	// Members returns the detectors of the pass in run order.
	Members() []inference.Detector
	// Colors returns the palette boxes of the pass are drawn with.
	Colors() models.Palette
	// sealed restricts implementations to this package.
	sealed()
}

// Single is a pass backed by one detector.
type Single struct {
	Detector inference.Detector
	Palette  models.Palette
}

// Members returns the detector of the pass.
func (s Single) Members() []inference.Detector { return []inference.Detector{s.Detector} }

// Colors returns the palette of the pass.
func (s Single) Colors() models.Palette { return s.Palette }

func (Single) sealed() {}

// Composite is a pass backed by several detectors run in sequence. Each
// member's boxes are suppressed independently and then merged.
type Composite struct {
	Detectors []inference.Detector
	Palette   models.Palette
}

// Members returns the detectors of the pass.
func (c Composite) Members() []inference.Detector { return c.Detectors }

// Colors returns the palette of the pass.
func (c Composite) Colors() models.Palette { return c.Palette }

func (Composite) sealed() {}
