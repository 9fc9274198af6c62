package render

import (
	"github.com/swdee/go-posture"
	"gocv.io/x/gocv"
	"image"
	"image/color"
	"math"
)

// TrailStyle defines the parameters used for rendering the deviation trail
type TrailStyle struct {
	LineColor     color.RGBA
	LineThickness int
	// ThresholdColor is the color of the line marking the deviation threshold
	ThresholdColor color.RGBA
	// Height of the graph in pixels, drawn along the bottom of the image
	Height       int
	CircleColor  color.RGBA
	CircleRadius int
}

// DefaultTrailStyle returns default trail style settings
func DefaultTrailStyle() TrailStyle {
	return TrailStyle{
		LineColor:      Yellow,
		LineThickness:  1,
		ThresholdColor: Red,
		Height:         80,
		CircleColor:    Pink,
		CircleRadius:   3,
	}
}

// Trail keeps a fixed length history of deviation samples for drawing as a
// graph, so drift towards the threshold is visible before the state changes
type Trail struct {
	values []float64
	next   int
	count  int
}

// NewTrail returns a Trail holding the last size samples
func NewTrail(size int) *Trail {

	if size < 2 {
		size = 2
	}

	return &Trail{
		values: make([]float64, size),
	}
}

// Add records a sample, invalid samples leave a gap in the trail
func (t *Trail) Add(s posture.DeviationSample) {

	v := math.NaN()

	if s.Valid {
		v = s.Value
	}

	t.values[t.next] = v
	t.next = (t.next + 1) % len(t.values)

	if t.count < len(t.values) {
		t.count++
	}
}

// Reset discards the history
func (t *Trail) Reset() {
	t.next = 0
	t.count = 0
}

// Values returns the recorded samples oldest first, gaps are NaN
func (t *Trail) Values() []float64 {

	out := make([]float64, t.count)
	start := (t.next - t.count + len(t.values)) % len(t.values)

	for i := 0; i < t.count; i++ {
		out[i] = t.values[(start+i)%len(t.values)]
	}

	return out
}

// Draw renders the trail as a graph along the bottom of the image.  The
// vertical axis spans twice the threshold either side of the baseline
func (t *Trail) Draw(img *gocv.Mat, threshold float64, style TrailStyle) {

	values := t.Values()

	if len(values) == 0 || threshold <= 0 {
		return
	}

	bottom := img.Rows() - 1
	height := style.Height

	if height > img.Rows() {
		height = img.Rows()
	}

	toY := func(v float64) int {
		f := (v + 2*threshold) / (4 * threshold)
		f = math.Max(0, math.Min(1, f))
		return bottom - int(f*float64(height))
	}

	stepX := float64(img.Cols()) / float64(len(t.values)-1)

	// threshold marker
	ty := toY(threshold)
	gocv.Line(img, image.Pt(0, ty), image.Pt(img.Cols(), ty), style.ThresholdColor, 1)

	var last image.Point
	haveLast := false

	for i, v := range values {
		if math.IsNaN(v) {
			haveLast = false
			continue
		}

		pt := image.Pt(int(float64(i)*stepX), toY(v))

		// draw line segment of trail
		if haveLast {
			gocv.Line(img, last, pt, style.LineColor, style.LineThickness)
		}

		last = pt
		haveLast = true
	}

	// draw circle on the current sample
	if haveLast {
		gocv.Circle(img, last, style.CircleRadius, style.CircleColor, -1)
	}
}
