package posture

import (
	"github.com/swdee/go-posture/postprocess/result"
)

// DeviationSample is the displacement of the tracked landmarks from the
// Baseline for one frame, in reference frame pixels.  Positive values mean
// the landmarks sit lower than the baseline.  Invalid samples carry no value
type DeviationSample struct {
	Valid bool
	Value float64
	// Parts is the number of landmarks the value was averaged over
	Parts int
}

// invalidSample is returned when no measurement can be made
var invalidSample = DeviationSample{}

// DeviationTracker measures how far the tracked landmarks have dropped below
// the Baseline
type DeviationTracker struct {
	parts    []result.Part
	minScore float32
}

// NewDeviationTracker returns a DeviationTracker for the tracked parts in
// the Config
func NewDeviationTracker(cfg Config) *DeviationTracker {

	parts := make([]result.Part, len(cfg.TrackedParts))
	copy(parts, cfg.TrackedParts)

	return &DeviationTracker{
		parts:    parts,
		minScore: cfg.MinConfidence,
	}
}

// Measure returns the mean vertical drop of the tracked parts of pose below
// the baseline.  The sample is invalid when there is no baseline or any
// tracked part is missing or below the confidence threshold
func (d *DeviationTracker) Measure(pose result.Pose, baseline *Baseline) DeviationSample {

	if baseline == nil || !pose.Confident(d.parts, d.minScore) {
		return invalidSample
	}

	sum := 0.0
	n := 0

	for _, part := range d.parts {
		base, ok := baseline.Get(part)

		if !ok {
			return invalidSample
		}

		kp, _ := pose.Get(part)
		sum += kp.Y - base.Y
		n++
	}

	return DeviationSample{
		Valid: true,
		Value: sum / float64(n),
		Parts: n,
	}
}
