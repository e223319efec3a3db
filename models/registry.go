// Package models - registry for models.
package models

import (
	"github.com/FTsune/kape/models/model"
	"github.com/pkg/errors"
)

// Descriptor describes a built-in model: its family, its default label table
// and the palette its boxes are drawn with.
type Descriptor struct {
	Name    model.Name
	Family  model.Family
	Classes *OutputClassSet
	Palette Palette
}

var descriptors = map[model.Name]Descriptor{
	model.ModelNameSpots: {
		Name:    model.ModelNameSpots,
		Family:  model.ModelFamilyDisease,
		Classes: &DiseaseClasses,
		Palette: DiseasePalette,
	},
	model.ModelNameFullLeaf: {
		Name:    model.ModelNameFullLeaf,
		Family:  model.ModelFamilyDisease,
		Classes: &FullLeafClasses,
		Palette: DiseasePalette,
	},
	model.ModelNameLeaf: {
		Name:    model.ModelNameLeaf,
		Family:  model.ModelFamilyLeaf,
		Classes: &LeafClasses,
		Palette: LeafPalette,
	},
}

// Classes is the class manager holding the label table of every built-in model.
var Classes = func() *ClassManager {
	mgr := NewClassManager()
	for name, d := range descriptors {
		mgr.Register(name, d.Classes)
	}
	return mgr
}()

// Lookup returns the descriptor of a built-in model.
//
// Arguments:
//   - name: The model name.
//
// Returns:
//   - Descriptor: The model descriptor.
//   - error: An error if the model name is unsupported.
func Lookup(name model.Name) (Descriptor, error) {
	d, ok := descriptors[name]
	if !ok {
		return Descriptor{}, errors.Errorf("unsupported model name: %s", name)
	}
	return d, nil
}
