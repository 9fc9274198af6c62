package preprocess

import (
	"math"
	"testing"
)

func almostEqual(a, b, epsilon float64) bool {
	return math.Abs(a-b) <= epsilon
}

func TestGeometryRoundTrip(t *testing.T) {

	g := NewGeometry(1280, 720, 192, 192, 640, 480)

	points := [][2]float64{
		{0, 0}, {640, 360}, {1279, 719}, {100.5, 33.25},
	}

	for _, pt := range points {
		nx, ny := g.FromSource(pt[0], pt[1])
		sx, sy := g.ToSource(nx, ny)

		if !almostEqual(sx, pt[0], 1e-9) || !almostEqual(sy, pt[1], 1e-9) {
			t.Errorf("Round trip of (%f, %f) returned (%f, %f)", pt[0], pt[1], sx, sy)
		}
	}
}

func TestGeometryReferenceIsResolutionIndependent(t *testing.T) {

	// the same tensor coordinate from a 640x480 and a 1280x960 camera frame
	// is the same physical position, so must map to the same reference
	// coordinate
	small := NewGeometry(640, 480, 192, 192, 640, 480)
	large := NewGeometry(1280, 960, 192, 192, 640, 480)

	tensorPts := [][2]float64{
		{0.5, 0.5}, {0.25, 0.2}, {0.9, 0.8}, {0.4321, 0.6543},
	}

	for _, pt := range tensorPts {
		sx, sy := small.ToReference(pt[0], pt[1])
		lx, ly := large.ToReference(pt[0], pt[1])

		if !almostEqual(sx, lx, 1e-9) || !almostEqual(sy, ly, 1e-9) {
			t.Errorf("Tensor point %v mapped to (%f, %f) at 640x480 but (%f, %f) at 1280x960",
				pt, sx, sy, lx, ly)
		}
	}

	// tensor centre is the frame centre
	x, y := large.ToReference(0.5, 0.5)

	if !almostEqual(x, 320, 1e-9) || !almostEqual(y, 240, 1e-9) {
		t.Errorf("Expected tensor centre to map to (320, 240), got (%f, %f)", x, y)
	}
}

func TestGeometryPaddingRemoved(t *testing.T) {

	g := NewGeometry(640, 480, 192, 192, 640, 480)

	// top edge of the scaled image sits below the 24 pixel letterbox band
	_, y := g.ToSource(0.5, 24.0/192.0)

	if !almostEqual(y, 0, 1e-9) {
		t.Errorf("Expected top of image content to map to source y=0, got %f", y)
	}

	_, y = g.ToSource(0.5, 168.0/192.0)

	if !almostEqual(y, 480, 1e-9) {
		t.Errorf("Expected bottom of image content to map to source y=480, got %f", y)
	}
}
