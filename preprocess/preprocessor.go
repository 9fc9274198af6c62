package preprocess

import (
	"errors"
	"fmt"
	"gocv.io/x/gocv"
	"image/color"
)

var (
	// ErrEmptyFrame is returned when the source frame has zero area
	ErrEmptyFrame = errors.New("frame has zero area")
	// ErrUnsupportedFormat is returned when the source frame is not an 8 bit
	// image of 1, 3 or 4 channels
	ErrUnsupportedFormat = errors.New("unsupported frame format")

	black = color.RGBA{R: 0, G: 0, B: 0, A: 255}
)

// Rotation is a clockwise rotation applied to frames before resizing, used
// for cameras mounted sideways or upside down
type Rotation int

const (
	Rotate0   Rotation = 0
	Rotate90  Rotation = 90
	Rotate180 Rotation = 180
	Rotate270 Rotation = 270
)

// Valid reports if the rotation is one of the supported right angles
func (r Rotation) Valid() bool {
	switch r {
	case Rotate0, Rotate90, Rotate180, Rotate270:
		return true
	}

	return false
}

// Apply rotates src into dst and reports if a rotation was made.  For
// Rotate0 dst is left untouched and src should be used as is
func (r Rotation) Apply(src gocv.Mat, dst *gocv.Mat) bool {
	switch r {
	case Rotate90:
		gocv.Rotate(src, dst, gocv.Rotate90Clockwise)
	case Rotate180:
		gocv.Rotate(src, dst, gocv.Rotate180Clockwise)
	case Rotate270:
		gocv.Rotate(src, dst, gocv.Rotate90CounterClockwise)
	default:
		return false
	}

	return true
}

// PixelRange defines the numeric range of the pixel values the model expects
type PixelRange int

const (
	// PixelRangeUint8 keeps pixel values as 8 bit integers in 0..255
	PixelRangeUint8 PixelRange = 0
	// PixelRangeUnit converts pixel values to float32 in 0..1
	PixelRangeUnit PixelRange = 1
)

// String returns a readable name of the pixel range
func (p PixelRange) String() string {
	switch p {
	case PixelRangeUint8:
		return "uint8"
	case PixelRangeUnit:
		return "unit"
	default:
		return fmt.Sprintf("PixelRange(%d)", int(p))
	}
}

// Tensor is a preprocessed model input along with the Geometry needed to map
// model output coordinates back to the reference frame
type Tensor struct {
	// Mat is the square RGB NHWC image passed to the model
	Mat gocv.Mat
	// Geometry of the letterbox transform that produced Mat
	Geometry Geometry
	// Range of the pixel values held in Mat
	Range PixelRange
}

// Close frees the tensor Mat
func (t *Tensor) Close() error {
	return t.Mat.Close()
}

// Params defines the parameters the Preprocessor is configured with once at
// startup
type Params struct {
	// InputSize is the width and height of the square model input tensor
	InputSize int
	// RefWidth and RefHeight are the dimensions of the reference frame that
	// keypoints are mapped back to.  They describe the frame after rotation
	RefWidth  int
	RefHeight int
	// Rotation is applied to every frame before resizing
	Rotation Rotation
	// Range is the pixel value range of the produced tensor
	Range PixelRange
}

// Preprocessor converts camera frames of arbitrary size into fixed size model
// input tensors.  Frames are letterboxed so the aspect ratio, and therefore
// landmark positions, are not distorted.  A Preprocessor is not safe for
// concurrent use
type Preprocessor struct {
	params  Params
	resizer *Resizer
	rotated gocv.Mat
	rgb     gocv.Mat
}

// NewPreprocessor returns a Preprocessor for the given parameters
func NewPreprocessor(p Params) (*Preprocessor, error) {

	if p.InputSize <= 0 {
		return nil, fmt.Errorf("input size must be > 0, got %d", p.InputSize)
	}

	if p.RefWidth <= 0 || p.RefHeight <= 0 {
		return nil, fmt.Errorf("reference frame must have positive dimensions, got %dx%d",
			p.RefWidth, p.RefHeight)
	}

	if !p.Rotation.Valid() {
		return nil, fmt.Errorf("unsupported rotation %d, use 0, 90, 180 or 270", p.Rotation)
	}

	if p.Range != PixelRangeUint8 && p.Range != PixelRangeUnit {
		return nil, fmt.Errorf("unsupported pixel range %s", p.Range)
	}

	return &Preprocessor{
		params:  p,
		rotated: gocv.NewMat(),
		rgb:     gocv.NewMat(),
	}, nil
}

// Close frees memory held by the Preprocessor
func (p *Preprocessor) Close() error {

	if p.resizer != nil {
		p.resizer.Close()
	}

	p.rotated.Close()
	return p.rgb.Close()
}

// Process converts the frame into a model input Tensor.  The caller owns the
// returned Tensor and must Close it
func (p *Preprocessor) Process(frame gocv.Mat) (*Tensor, error) {

	if frame.Empty() || frame.Cols() <= 0 || frame.Rows() <= 0 {
		return nil, ErrEmptyFrame
	}

	var code gocv.ColorConversionCode

	switch frame.Type() {
	case gocv.MatTypeCV8UC1:
		code = gocv.ColorGrayToBGR
	case gocv.MatTypeCV8UC3:
		code = gocv.ColorBGRToRGB
	case gocv.MatTypeCV8UC4:
		code = gocv.ColorBGRAToRGB
	default:
		return nil, fmt.Errorf("%w: %d channels of mat type %d", ErrUnsupportedFormat,
			frame.Channels(), int(frame.Type()))
	}

	// rotate before resizing so letterbox padding is calculated on the
	// upright frame
	src := frame

	if p.params.Rotation.Apply(frame, &p.rotated) {
		src = p.rotated
	}

	gocv.CvtColor(src, &p.rgb, code)

	// resizer is rebuilt only when the camera resolution changes
	if p.resizer == nil || !p.resizer.Matches(p.rgb.Cols(), p.rgb.Rows()) {
		if p.resizer != nil {
			p.resizer.Close()
		}

		p.resizer = NewResizer(p.rgb.Cols(), p.rgb.Rows(),
			p.params.InputSize, p.params.InputSize,
			p.params.RefWidth, p.params.RefHeight)
	}

	dest := gocv.NewMat()
	p.resizer.LetterBoxResize(p.rgb, &dest, black)

	if p.params.Range == PixelRangeUnit {
		norm := gocv.NewMat()
		dest.ConvertToWithParams(&norm, gocv.MatTypeCV32FC3, 1.0/255.0, 0)
		dest.Close()
		dest = norm
	}

	return &Tensor{
		Mat:      dest,
		Geometry: p.resizer.Geometry(),
		Range:    p.params.Range,
	}, nil
}
