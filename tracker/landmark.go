package tracker

import (
	"github.com/swdee/go-posture/postprocess/result"
)

// LandmarkTracker smooths the position of selected pose landmarks across
// frames with a Kalman filter per landmark.  A landmark that drops below the
// confidence threshold has its filter discarded and is reinitialised when it
// is next seen.  It is not safe for concurrent use
type LandmarkTracker struct {
	kf       *KalmanFilter
	parts    []result.Part
	minScore float32
	states   map[result.Part]*PointState
}

// NewLandmarkTracker returns a LandmarkTracker for the given parts
func NewLandmarkTracker(parts []result.Part, minScore float32, measureStd,
	processStd float64) *LandmarkTracker {

	p := make([]result.Part, len(parts))
	copy(p, parts)

	return &LandmarkTracker{
		kf:       NewKalmanFilter(measureStd, processStd),
		parts:    p,
		minScore: minScore,
		states:   make(map[result.Part]*PointState),
	}
}

// Update returns a copy of the pose with the tracked landmarks replaced by
// their filtered positions.  Other landmarks are returned unchanged
func (t *LandmarkTracker) Update(pose result.Pose) result.Pose {

	out := pose.Clone()

	for _, part := range t.parts {
		idx := -1

		for i := range out {
			if out[i].Part == part {
				idx = i
				break
			}
		}

		if idx < 0 || out[idx].Score < t.minScore {
			delete(t.states, part)
			continue
		}

		kp := &out[idx]
		state, ok := t.states[part]

		if !ok {
			t.states[part] = t.kf.Initiate(kp.X, kp.Y)
			continue
		}

		t.kf.Predict(state)

		if err := t.kf.Update(state, kp.X, kp.Y); err != nil {
			// covariance degenerated, restart from this measurement
			t.states[part] = t.kf.Initiate(kp.X, kp.Y)
			continue
		}

		kp.X, kp.Y = state.Position()
	}

	return out
}

// Reset discards the filter state of all landmarks
func (t *LandmarkTracker) Reset() {
	t.states = make(map[result.Part]*PointState)
}

// Tracking returns the number of landmarks with an active filter
func (t *LandmarkTracker) Tracking() int {
	return len(t.states)
}
