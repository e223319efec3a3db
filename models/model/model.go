// Package model - Definitions for the detection models the application can load.
package model

// Family is the family of models.
type Family string

const (
	// ModelFamilyDisease covers models predicting coffee leaf diseases.
	ModelFamilyDisease Family = "disease"
	// ModelFamilyLeaf covers models predicting the coffee leaf variety.
	ModelFamilyLeaf Family = "leaf"
)

// Name is the unique identifier of a model.
type Name string

const (
	// ModelNameSpots is the disease model trained on close-up lesion spots.
	ModelNameSpots Name = "spots"
	// ModelNameFullLeaf is the disease model trained on whole-leaf photographs.
	ModelNameFullLeaf Name = "full-leaf"
	// ModelNameLeaf is the leaf variety model (arabica, liberica, robusta).
	ModelNameLeaf Name = "leaf"
)

// Names lists every known model name.
var Names = []Name{ModelNameSpots, ModelNameFullLeaf, ModelNameLeaf}

// Config is a model with a family and path for loading.
type Config struct {
	Name   Name   `json:"name" yaml:"name"`
	Family Family `json:"family" yaml:"family"`
	Path   string `json:"path" yaml:"path"`
	// Labels overrides the built-in label table of the model when set.
	Labels []string `json:"labels" yaml:"labels"`
	// InputSize is the square input resolution of the network.
	InputSize int `json:"input_size" yaml:"input_size"`
	// Precision is the inference precision requested from OpenVINO.
	Precision Precision `json:"precision" yaml:"precision"`
}
