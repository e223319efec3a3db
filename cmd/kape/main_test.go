package main

import (
	"testing"

	"github.com/FTsune/kape/pipeline"
	"github.com/stretchr/testify/assert"
)

func TestSummarize(t *testing.T) {
	result := pipeline.NewResult(nil, []pipeline.Detection{
		{Label: "rust", Confidence: 88.4},
		{Label: "sooty-mold", Confidence: 61},
		{Label: "rust", Confidence: 70.2},
		{Label: "robusta", Confidence: 93.5},
	}, 0)

	diseases, leaves := summarize(result)
	assert.Equal(t, "Rust 88.4%, Sooty Mold 61.0%", diseases)
	assert.Equal(t, "Robusta 93.5%", leaves)

	diseases, leaves = summarize(pipeline.NewResult(nil, nil, 0))
	assert.Empty(t, diseases)
	assert.Empty(t, leaves)
}
