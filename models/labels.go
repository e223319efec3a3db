// Package models - Label tables, colours and label normalization for the
// coffee leaf models.
package models

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// severityVariants collapses advanced stages of a disease onto the disease
// itself. Keys are in canonical form (see canonicalKey).
var severityVariants = map[string]string{
	"late-stage-rust": "rust",
}

var leafTypes = map[string]struct{}{
	"arabica":  {},
	"liberica": {},
	"robusta":  {},
}

// SkipLabels are disease labels that never produce a persisted record.
var SkipLabels = []string{"healthy", "abiotic"}

var keyReplacer = strings.NewReplacer("_", "-", " ", "-")

// canonicalKey lower-cases the label and treats '-', '_' and ' ' alike.
func canonicalKey(label string) string {
	return keyReplacer.Replace(strings.ToLower(strings.TrimSpace(label)))
}

// Normalize maps a raw model label onto its canonical name.
//
// Severity variants collapse onto their parent disease so they share counts
// and confidence tracking. Every other label is returned unchanged.
//
// Arguments:
//   - raw: The label as predicted by the model.
//
// Returns:
//   - string: The canonical label. Normalize(Normalize(x)) == Normalize(x).
func Normalize(raw string) string {
	if parent, ok := severityVariants[canonicalKey(raw)]; ok {
		return parent
	}
	return raw
}

// IsLeafType reports whether the label names a coffee leaf variety rather
// than a disease.
func IsLeafType(label string) bool {
	_, ok := leafTypes[canonicalKey(label)]
	return ok
}

// IsSkipLabel reports whether detections with this label are never persisted.
func IsSkipLabel(label string) bool {
	key := canonicalKey(label)
	for _, s := range SkipLabels {
		if key == s {
			return true
		}
	}
	return false
}

// DisplayName renders a label for humans, e.g. "sooty-mold" -> "Sooty Mold".
func DisplayName(label string) string {
	words := strings.Fields(strings.NewReplacer("-", " ", "_", " ").Replace(label))
	return cases.Title(language.English).String(strings.ToLower(strings.Join(words, " ")))
}
