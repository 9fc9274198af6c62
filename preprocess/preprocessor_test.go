package preprocess

import (
	"errors"
	"gocv.io/x/gocv"
	"testing"
)

func defaultParams() Params {
	return Params{
		InputSize: 192,
		RefWidth:  640,
		RefHeight: 480,
		Rotation:  Rotate0,
		Range:     PixelRangeUint8,
	}
}

func TestNewPreprocessorValidation(t *testing.T) {

	tests := []struct {
		name   string
		modify func(p *Params)
	}{
		{"zero input size", func(p *Params) { p.InputSize = 0 }},
		{"zero reference width", func(p *Params) { p.RefWidth = 0 }},
		{"bad rotation", func(p *Params) { p.Rotation = 45 }},
		{"bad range", func(p *Params) { p.Range = 7 }},
	}

	for _, tc := range tests {
		p := defaultParams()
		tc.modify(&p)

		if _, err := NewPreprocessor(p); err == nil {
			t.Errorf("%s: expected error, got nil", tc.name)
		}
	}
}

func TestProcessRejectsBadFrames(t *testing.T) {

	pre, err := NewPreprocessor(defaultParams())

	if err != nil {
		t.Fatalf("NewPreprocessor failed: %v", err)
	}

	defer pre.Close()

	empty := gocv.NewMat()
	defer empty.Close()

	if _, err := pre.Process(empty); !errors.Is(err, ErrEmptyFrame) {
		t.Errorf("Expected ErrEmptyFrame for empty Mat, got %v", err)
	}

	twoChan := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC2)
	defer twoChan.Close()

	if _, err := pre.Process(twoChan); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat for 2 channel Mat, got %v", err)
	}

	floatMat := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV32FC3)
	defer floatMat.Close()

	if _, err := pre.Process(floatMat); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat for float Mat, got %v", err)
	}
}

func TestProcessChannelsAndRange(t *testing.T) {

	tests := []struct {
		name     string
		matType  gocv.MatType
		pxRange  PixelRange
		expected gocv.MatType
	}{
		{"gray", gocv.MatTypeCV8UC1, PixelRangeUint8, gocv.MatTypeCV8UC3},
		{"bgr", gocv.MatTypeCV8UC3, PixelRangeUint8, gocv.MatTypeCV8UC3},
		{"bgra", gocv.MatTypeCV8UC4, PixelRangeUint8, gocv.MatTypeCV8UC3},
		{"bgr unit", gocv.MatTypeCV8UC3, PixelRangeUnit, gocv.MatTypeCV32FC3},
	}

	for _, tc := range tests {
		p := defaultParams()
		p.Range = tc.pxRange

		pre, err := NewPreprocessor(p)

		if err != nil {
			t.Fatalf("%s: NewPreprocessor failed: %v", tc.name, err)
		}

		frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 255),
			480, 640, tc.matType)

		tensor, err := pre.Process(frame)

		if err != nil {
			t.Fatalf("%s: Process failed: %v", tc.name, err)
		}

		if tensor.Mat.Cols() != 192 || tensor.Mat.Rows() != 192 {
			t.Errorf("%s: expected 192x192 tensor, got %dx%d", tc.name,
				tensor.Mat.Cols(), tensor.Mat.Rows())
		}

		if tensor.Mat.Type() != tc.expected {
			t.Errorf("%s: expected tensor mat type %d, got %d", tc.name,
				int(tc.expected), int(tensor.Mat.Type()))
		}

		if tc.pxRange == PixelRangeUnit {
			// centre pixel of a white frame is 1.0 once normalised
			if v := tensor.Mat.GetVecfAt(96, 96); v[0] < 0.999 || v[0] > 1.001 {
				t.Errorf("%s: expected normalised pixel value 1.0, got %f", tc.name, v[0])
			}
		}

		tensor.Close()
		frame.Close()
		pre.Close()
	}
}

func TestProcessRotationSwapsGeometry(t *testing.T) {

	p := defaultParams()
	p.Rotation = Rotate90
	p.RefWidth = 480
	p.RefHeight = 640

	pre, err := NewPreprocessor(p)

	if err != nil {
		t.Fatalf("NewPreprocessor failed: %v", err)
	}

	defer pre.Close()

	frame := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame.Close()

	tensor, err := pre.Process(frame)

	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	defer tensor.Close()

	if tensor.Geometry.SrcWidth != 480 || tensor.Geometry.SrcHeight != 640 {
		t.Errorf("Expected rotated source of 480x640, got %dx%d",
			tensor.Geometry.SrcWidth, tensor.Geometry.SrcHeight)
	}

	if tensor.Geometry.XPad != 24 || tensor.Geometry.YPad != 0 {
		t.Errorf("Expected xPad=24 yPad=0 for portrait source, got xPad=%d yPad=%d",
			tensor.Geometry.XPad, tensor.Geometry.YPad)
	}
}

func TestProcessRebuildsResizerOnResolutionChange(t *testing.T) {

	pre, err := NewPreprocessor(defaultParams())

	if err != nil {
		t.Fatalf("NewPreprocessor failed: %v", err)
	}

	defer pre.Close()

	sizes := [][2]int{{640, 480}, {1280, 720}, {640, 480}}
	expectedYPad := []int{24, 42, 24}

	for i, size := range sizes {
		frame := gocv.NewMatWithSize(size[1], size[0], gocv.MatTypeCV8UC3)

		tensor, err := pre.Process(frame)

		if err != nil {
			t.Fatalf("Process failed for %dx%d: %v", size[0], size[1], err)
		}

		if tensor.Geometry.SrcWidth != size[0] || tensor.Geometry.YPad != expectedYPad[i] {
			t.Errorf("Frame %dx%d: expected geometry for that size with yPad=%d, got src width %d yPad %d",
				size[0], size[1], expectedYPad[i], tensor.Geometry.SrcWidth, tensor.Geometry.YPad)
		}

		tensor.Close()
		frame.Close()
	}
}

func TestRotationApply(t *testing.T) {

	src := gocv.NewMatWithSize(2, 4, gocv.MatTypeCV8UC3)
	defer src.Close()

	tests := []struct {
		rot     Rotation
		rotated bool
		cols    int
		rows    int
	}{
		{Rotate0, false, 0, 0},
		{Rotate90, true, 2, 4},
		{Rotate180, true, 4, 2},
		{Rotate270, true, 2, 4},
	}

	for _, tc := range tests {
		dst := gocv.NewMat()

		if got := tc.rot.Apply(src, &dst); got != tc.rotated {
			t.Errorf("Rotation %d: expected rotated=%v, got %v", tc.rot, tc.rotated, got)
		}

		if tc.rotated && (dst.Cols() != tc.cols || dst.Rows() != tc.rows) {
			t.Errorf("Rotation %d: expected %dx%d, got %dx%d", tc.rot, tc.cols, tc.rows,
				dst.Cols(), dst.Rows())
		}

		dst.Close()
	}
}
