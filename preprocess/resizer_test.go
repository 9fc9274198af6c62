package preprocess

import (
	"gocv.io/x/gocv"
	"image/color"
	"testing"
)

var (
	white = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

func TestLetterBoxResize(t *testing.T) {

	tests := []struct {
		srcWidth      int
		srcHeight     int
		resizeWidth   int
		resizeHeight  int
		expectedXPad  int
		expectedYPad  int
		expectedScale float64
	}{
		{1280, 720, 640, 640, 0, 140, 0.50},
		{800, 1000, 640, 640, 64, 0, 0.64},
		{800, 800, 640, 640, 0, 0, 0.8},
		{640, 480, 192, 192, 0, 24, 0.3},
		{1280, 960, 192, 192, 0, 24, 0.15},
	}

	for _, tc := range tests {
		img := gocv.NewMatWithSize(tc.srcHeight, tc.srcWidth, gocv.MatTypeCV8UC3)

		resizedImg := gocv.NewMat()

		resizer := NewResizer(tc.srcWidth, tc.srcHeight, tc.resizeWidth,
			tc.resizeHeight, 640, 480)

		resizer.LetterBoxResize(img, &resizedImg, white)
		geom := resizer.Geometry()

		if geom.XPad != tc.expectedXPad || geom.YPad != tc.expectedYPad {
			t.Errorf("Test failed for src (%d, %d): Padding values wrong, expected XPad=%d, YPad=%d, got xPad=%d, yPad=%d",
				tc.srcWidth, tc.srcHeight, tc.expectedXPad, tc.expectedYPad, geom.XPad, geom.YPad)
		}

		if diff := geom.Scale - tc.expectedScale; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("Test failed for src (%d, %d): Scalefactor incorrect, expected %f, got %f",
				tc.srcWidth, tc.srcHeight, tc.expectedScale, geom.Scale)
		}

		if resizedImg.Cols() != tc.resizeWidth || resizedImg.Rows() != tc.resizeHeight {
			t.Errorf("Test failed for src (%d, %d): resized image is %dx%d, expected %dx%d",
				tc.srcWidth, tc.srcHeight, resizedImg.Cols(), resizedImg.Rows(),
				tc.resizeWidth, tc.resizeHeight)
		}

		if !resizer.Matches(tc.srcWidth, tc.srcHeight) {
			t.Errorf("Test failed for src (%d, %d): resizer does not match its own source size",
				tc.srcWidth, tc.srcHeight)
		}

		img.Close()
		resizedImg.Close()
		resizer.Close()
	}
}

func TestLetterBoxPaddingColor(t *testing.T) {

	// a black source letterboxed with white padding leaves white bands at
	// the top and bottom of the destination
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 480, 640,
		gocv.MatTypeCV8UC3)
	defer img.Close()

	dest := gocv.NewMat()
	defer dest.Close()

	resizer := NewResizer(640, 480, 192, 192, 640, 480)
	defer resizer.Close()

	resizer.LetterBoxResize(img, &dest, white)

	if v := dest.GetVecbAt(0, 96); v[0] != 255 || v[1] != 255 || v[2] != 255 {
		t.Errorf("Expected white padding at top row, got %v", v)
	}

	if v := dest.GetVecbAt(96, 96); v[0] != 0 || v[1] != 0 || v[2] != 0 {
		t.Errorf("Expected black image content at center, got %v", v)
	}

	if v := dest.GetVecbAt(191, 96); v[0] != 255 {
		t.Errorf("Expected white padding at bottom row, got %v", v)
	}
}
