// Package postprocess - provides Non-Maximum Suppression for detection results.
package postprocess

import (
	"sort"

	"github.com/FTsune/kape/images"
)

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	IoUThreshold float32 `json:"iou_threshold" yaml:"iou_threshold"` // Overlap threshold for suppression.
	ClassAware   bool    `json:"class_aware" yaml:"class_aware"`     // If true, suppress only within same class.
}

// NMS runs class-agnostic greedy Non-Maximum Suppression over the boxes of a
// single detector pass.
//
// Arguments:
//   - boxes: Boxes from one detector pass, in any order.
//   - iouThreshold: Boxes overlapping a kept box by more than this are dropped.
//
// Returns:
//   - The surviving boxes, highest score first.
func NMS(boxes []Box, iouThreshold float32) []Box {
	return ApplyGreedyNMS(boxes, &NMSConfig{IoUThreshold: iouThreshold})
}

// ApplyGreedyNMS performs standard greedy Non-Maximum Suppression.
//
// The boxes are copied and stably sorted by descending score, so equal scores
// keep their input order and the output is reproducible. The input slice is
// never modified.
//
// Arguments:
//   - boxes: Slice of boxes in any order.
//   - config: NMS configuration.
//
// Returns:
//   - Filtered slice of boxes, highest score first. Empty input yields an empty slice.
func ApplyGreedyNMS(boxes []Box, config *NMSConfig) []Box {
	n := len(boxes)
	if n == 0 {
		return []Box{}
	}

	sorted := make([]Box, n)
	copy(sorted, boxes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	filtered := make([]Box, 0, n)
	used := make([]bool, n)

	for i := 0; i < n; i++ {
		if used[i] {
			continue
		}

		anchor := sorted[i]
		filtered = append(filtered, anchor)
		used[i] = true

		for j := i + 1; j < n; j++ {
			if used[j] {
				continue
			}
			if config.ClassAware && sorted[j].Class != anchor.Class {
				continue
			}

			// Suppress if IoU exceeds threshold
			if images.CalculateIoU(anchor.Rect, sorted[j].Rect) > config.IoUThreshold {
				used[j] = true
			}
		}
	}

	return filtered
}
