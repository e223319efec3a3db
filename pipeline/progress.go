package pipeline

// ProgressFunc receives progress milestones of an aggregation. fraction is in
// [0, 1].
type ProgressFunc func(fraction float64, message string)

// report calls f when it is set.
func (f ProgressFunc) report(fraction float64, message string) {
	if f != nil {
		f(fraction, message)
	}
}

// Progress milestones.
const (
	ProgressPrepare     = 0.1
	ProgressInference   = 0.2
	ProgressPostprocess = 0.9
	ProgressDone        = 1.0

	// inferenceSpan is shared evenly by the detector invocations.
	inferenceSpan = 0.6
)
