package posture

import (
	"github.com/swdee/go-posture/postprocess/result"
	"gonum.org/v1/gonum/stat"
	"math"
)

// PartBaseline is the calibrated reference position of one tracked landmark
// in reference frame pixels
type PartBaseline struct {
	Part result.Part
	X    float64
	Y    float64
	// StdDevY is the vertical standard deviation observed while calibrating
	StdDevY float64
}

// Baseline is the "good posture" reference the Deviation Tracker measures
// against.  It is immutable once committed
type Baseline struct {
	Parts []PartBaseline
	// Frames is the number of frames averaged into the baseline
	Frames int
}

// Get returns the baseline of the given part
func (b *Baseline) Get(part result.Part) (PartBaseline, bool) {
	for _, p := range b.Parts {
		if p.Part == part {
			return p, true
		}
	}

	return PartBaseline{}, false
}

// MeanY returns the average vertical position of all parts in the baseline
func (b *Baseline) MeanY() float64 {

	if len(b.Parts) == 0 {
		return 0
	}

	sum := 0.0

	for _, p := range b.Parts {
		sum += p.Y
	}

	return sum / float64(len(b.Parts))
}

// point is the position of a tracked part in a single calibration frame
type point struct {
	x, y float64
}

// Calibrator establishes the Baseline from a run of consecutive confident
// and steady frames.  It exclusively owns the Baseline and is not safe for
// concurrent use
type Calibrator struct {
	parts     []result.Part
	minScore  float32
	frames    int
	maxJitter float64
	timeout   int
	// window holds the tracked part positions of the current stable run,
	// one entry per frame with one point per tracked part
	window [][]point
	// noConfident counts consecutive frames without confident landmarks
	noConfident int
	baseline    *Baseline
}

// NewCalibrator returns a Calibrator for the tracked parts in the Config
func NewCalibrator(cfg Config) *Calibrator {

	parts := make([]result.Part, len(cfg.TrackedParts))
	copy(parts, cfg.TrackedParts)

	return &Calibrator{
		parts:     parts,
		minScore:  cfg.MinConfidence,
		frames:    cfg.CalibrationFrames,
		maxJitter: cfg.CalibrationMaxJitter,
		timeout:   cfg.CalibrationTimeoutFrames,
		window:    make([][]point, 0, cfg.CalibrationFrames),
	}
}

// Reset clears the Baseline and any calibration progress
func (c *Calibrator) Reset() {
	c.window = c.window[:0]
	c.noConfident = 0
	c.baseline = nil
}

// Baseline returns the committed Baseline, or nil while calibrating
func (c *Calibrator) Baseline() *Baseline {
	return c.baseline
}

// Calibrated reports if a Baseline has been committed
func (c *Calibrator) Calibrated() bool {
	return c.baseline != nil
}

// Progress returns the number of stable frames collected and the number
// required
func (c *Calibrator) Progress() (int, int) {
	return len(c.window), c.frames
}

// Observe feeds a pose in reference frame coordinates to the calibrator and
// returns true once a Baseline has been committed.  Frames without confident
// tracked landmarks are ignored without losing progress, but after the
// configured number of them in a row ErrCalibrationTimeout is returned.
// Movement larger than the jitter limit restarts the stable run from the
// current frame
func (c *Calibrator) Observe(pose result.Pose) (bool, error) {

	if c.baseline != nil {
		return true, nil
	}

	if !pose.Confident(c.parts, c.minScore) {
		c.noConfident++

		if c.timeout > 0 && c.noConfident >= c.timeout {
			c.noConfident = 0
			return false, ErrCalibrationTimeout
		}

		return false, nil
	}

	c.noConfident = 0

	pts := make([]point, len(c.parts))

	for i, part := range c.parts {
		kp, _ := pose.Get(part)
		pts[i] = point{x: kp.X, y: kp.Y}
	}

	if n := len(c.window); n > 0 && c.jittered(c.window[n-1], pts) {
		c.window = c.window[:0]
	}

	c.window = append(c.window, pts)

	if len(c.window) < c.frames {
		return false, nil
	}

	c.commit()
	return true, nil
}

// jittered reports if any tracked part moved further than the jitter limit
// between two frames
func (c *Calibrator) jittered(prev, cur []point) bool {

	for i := range cur {
		if math.Hypot(cur[i].x-prev[i].x, cur[i].y-prev[i].y) > c.maxJitter {
			return true
		}
	}

	return false
}

// commit averages the stable window into the Baseline
func (c *Calibrator) commit() {

	b := &Baseline{
		Parts:  make([]PartBaseline, len(c.parts)),
		Frames: len(c.window),
	}

	xs := make([]float64, len(c.window))
	ys := make([]float64, len(c.window))

	for i, part := range c.parts {
		for f, pts := range c.window {
			xs[f] = pts[i].x
			ys[f] = pts[i].y
		}

		meanY, stdY := stat.MeanStdDev(ys, nil)

		if len(ys) < 2 {
			stdY = 0
		}

		b.Parts[i] = PartBaseline{
			Part:    part,
			X:       stat.Mean(xs, nil),
			Y:       meanY,
			StdDevY: stdY,
		}
	}

	c.baseline = b
	c.window = c.window[:0]
}
