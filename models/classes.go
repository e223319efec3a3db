package models

import (
	"image/color"

	"github.com/FTsune/kape/models/model"
)

// OutputClass represents one detection label.
type OutputClass struct {
	// The integer index returned by the model.
	Index int
	// The human-readable label.
	Name string
}

// OutputClassSet ties a model family to its full list of labels.
type OutputClassSet struct {
	// Class set identifier.
	Family model.Family
	// Classes ordered by index.
	Classes []OutputClass
}

// Names returns the labels of the set ordered by index.
func (s *OutputClassSet) Names() []string {
	names := make([]string, len(s.Classes))
	for i, c := range s.Classes {
		names[i] = c.Name
	}
	return names
}

// ClassManager holds all registered class sets.
type ClassManager struct {
	sets map[model.Name]*OutputClassSet
}

// NewClassManager initializes an empty manager.
func NewClassManager() *ClassManager {
	return &ClassManager{sets: make(map[model.Name]*OutputClassSet)}
}

// Register adds the class set used by the named model.
func (m *ClassManager) Register(name model.Name, set *OutputClassSet) {
	m.sets[name] = set
}

// Set returns the class set of the named model.
func (m *ClassManager) Set(name model.Name) (*OutputClassSet, bool) {
	set, ok := m.sets[name]
	return set, ok
}

// DiseaseClasses is the label table of the lesion spot model.
var DiseaseClasses = OutputClassSet{
	Family: model.ModelFamilyDisease,
	Classes: []OutputClass{
		{0, "abiotic"},
		{1, "cercospora"},
		{2, "healthy"},
		{3, "rust"},
		{4, "sooty-mold"},
	},
}

// FullLeafClasses is the label table of the whole-leaf disease model. It
// predicts advanced rust as a separate class.
var FullLeafClasses = OutputClassSet{
	Family: model.ModelFamilyDisease,
	Classes: []OutputClass{
		{0, "abiotic"},
		{1, "cercospora"},
		{2, "healthy"},
		{3, "rust"},
		{4, "sooty-mold"},
		{5, "late-stage-rust"},
	},
}

// LeafClasses is the label table of the leaf variety model.
var LeafClasses = OutputClassSet{
	Family: model.ModelFamilyLeaf,
	Classes: []OutputClass{
		{0, "arabica"},
		{1, "liberica"},
		{2, "robusta"},
	},
}

// Palette maps a class index to the colour its boxes are drawn with.
type Palette map[int]color.RGBA

// fallbackColor is used for class indices missing from a palette.
var fallbackColor = color.RGBA{R: 255, G: 255, B: 255, A: 255}

// Color returns the colour of the class, or white when it has none.
func (p Palette) Color(class int) color.RGBA {
	if c, ok := p[class]; ok {
		return c
	}
	return fallbackColor
}

// DiseasePalette colours disease boxes.
var DiseasePalette = Palette{
	0: {R: 255, G: 255, B: 0, A: 255}, // abiotic: yellow
	1: {R: 255, G: 0, B: 0, A: 255},   // cercospora: red
	2: {R: 0, G: 204, B: 0, A: 255},   // healthy: green
	3: {R: 255, G: 165, B: 0, A: 255}, // rust: orange
	4: {R: 0, G: 0, B: 0, A: 255},     // sooty mold: black
	5: {R: 128, G: 0, B: 128, A: 255}, // late stage rust: purple
}

// LeafPalette colours leaf variety boxes.
var LeafPalette = Palette{
	0: {R: 0, G: 255, B: 0, A: 255},
	1: {R: 0, G: 255, B: 255, A: 255},
	2: {R: 0, G: 0, B: 255, A: 255},
}
