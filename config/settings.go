// Package config - Typed detection settings and application configuration.
package config

import (
	"fmt"
)

// DetectionMode selects which detector passes run over an image.
type DetectionMode string

const (
	// ModeDisease runs the disease pass only.
	ModeDisease DetectionMode = "disease"
	// ModeLeaf runs the leaf variety pass only.
	ModeLeaf DetectionMode = "leaf"
	// ModeBoth runs the disease pass followed by the leaf variety pass.
	ModeBoth DetectionMode = "both"
)

// DiseaseVariant selects which underlying model(s) back the disease pass.
type DiseaseVariant string

const (
	// VariantSpots uses the lesion spot model.
	VariantSpots DiseaseVariant = "spots"
	// VariantFullLeaf uses the whole-leaf model.
	VariantFullLeaf DiseaseVariant = "full-leaf"
	// VariantCombined runs the spot and whole-leaf models as one composite pass.
	VariantCombined DiseaseVariant = "spots+full-leaf"
)

// Fingerprint mapping keys.
const (
	KeyDetectionMode   = "detection_mode"
	KeyDiseaseVariant  = "disease_model_variant"
	KeyConfidenceFloor = "confidence_floor"
	KeyIoUThreshold    = "iou_threshold"
)

// RecognizedKeys lists every key a fingerprint mapping must carry. No other
// key is accepted.
var RecognizedKeys = []string{KeyDetectionMode, KeyDiseaseVariant, KeyConfidenceFloor, KeyIoUThreshold}

// MalformedConfigurationError is returned when settings are incomplete or out
// of range. It is raised before any detector runs.
type MalformedConfigurationError struct {
	Field  string
	Reason string
}

func (e *MalformedConfigurationError) Error() string {
	return fmt.Sprintf("malformed configuration: %s: %s", e.Field, e.Reason)
}

// Settings is the per-request detection configuration. It is passed by value.
type Settings struct {
	Mode            DetectionMode  `json:"mode" yaml:"mode"`
	Variant         DiseaseVariant `json:"variant" yaml:"variant"`
	ConfidenceFloor float64        `json:"confidence_floor" yaml:"confidence_floor"`
	IoUThreshold    float64        `json:"iou_threshold" yaml:"iou_threshold"`
}

// DefaultSettings returns the settings used when nothing else is configured.
func DefaultSettings() Settings {
	return Settings{
		Mode:            ModeDisease,
		Variant:         VariantSpots,
		ConfidenceFloor: 0.6,
		IoUThreshold:    0.3,
	}
}

// ValidateThreshold checks that a threshold lies in [0, 1].
func ValidateThreshold(field string, v float64) error {
	if v != v || v < 0 || v > 1 {
		return &MalformedConfigurationError{Field: field, Reason: fmt.Sprintf("%v is outside [0, 1]", v)}
	}
	return nil
}

// Validate checks every field of the settings.
func (s Settings) Validate() error {
	switch s.Mode {
	case ModeDisease, ModeLeaf, ModeBoth:
	case "":
		return &MalformedConfigurationError{Field: KeyDetectionMode, Reason: "missing"}
	default:
		return &MalformedConfigurationError{Field: KeyDetectionMode, Reason: fmt.Sprintf("unknown mode %q", s.Mode)}
	}

	switch s.Variant {
	case VariantSpots, VariantFullLeaf, VariantCombined:
	case "":
		return &MalformedConfigurationError{Field: KeyDiseaseVariant, Reason: "missing"}
	default:
		return &MalformedConfigurationError{Field: KeyDiseaseVariant, Reason: fmt.Sprintf("unknown variant %q", s.Variant)}
	}

	if err := ValidateThreshold(KeyConfidenceFloor, s.ConfidenceFloor); err != nil {
		return err
	}
	return ValidateThreshold(KeyIoUThreshold, s.IoUThreshold)
}

// Mapping returns the settings as the key/value mapping hashed into cache
// fingerprints.
func (s Settings) Mapping() map[string]any {
	return map[string]any{
		KeyDetectionMode:   string(s.Mode),
		KeyDiseaseVariant:  string(s.Variant),
		KeyConfidenceFloor: s.ConfidenceFloor,
		KeyIoUThreshold:    s.IoUThreshold,
	}
}

// RunsDisease reports whether the disease pass is part of the plan.
func (s Settings) RunsDisease() bool {
	return s.Mode == ModeDisease || s.Mode == ModeBoth
}

// RunsLeaf reports whether the leaf variety pass is part of the plan.
func (s Settings) RunsLeaf() bool {
	return s.Mode == ModeLeaf || s.Mode == ModeBoth
}
