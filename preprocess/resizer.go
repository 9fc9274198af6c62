package preprocess

import (
	"gocv.io/x/gocv"
	"image"
	"image/color"
)

// Resizer defines the struct used for letterbox resizing a source image of
// fixed dimensions to the input tensor size
type Resizer struct {
	// geom holds the precalculated letterbox scaling parameters
	geom Geometry
	// tempMat is a Mat used during the resize process
	tempMat gocv.Mat
}

// NewResizer returns a resizer used for scaling an image to the needed
// dimensions for input tensor size.  Keypoints mapped back through the
// resizer's Geometry are expressed in pixels of a reference frame of
// refWidth x refHeight
func NewResizer(srcWidth, srcHeight, destWidth, destHeight, refWidth,
	refHeight int) *Resizer {

	return &Resizer{
		geom: NewGeometry(srcWidth, srcHeight, destWidth, destHeight,
			refWidth, refHeight),
		tempMat: gocv.NewMat(),
	}
}

// Close frees memory allocated during resize process
func (r *Resizer) Close() error {
	return r.tempMat.Close()
}

// LetterBoxResize resizes the input image to the dimensions needed for the input
// tensor size whilst maintaining image aspect.  Color is that used for letter
// box padding
func (r *Resizer) LetterBoxResize(src gocv.Mat, dest *gocv.Mat, color color.RGBA) {

	gocv.Resize(src, &r.tempMat, image.Pt(r.geom.ResizeW, r.geom.ResizeH),
		0, 0, gocv.InterpolationArea)

	gocv.CopyMakeBorder(r.tempMat, dest, r.geom.YPad,
		r.geom.DestHeight-r.geom.ResizeH-r.geom.YPad,
		r.geom.XPad, r.geom.DestWidth-r.geom.ResizeW-r.geom.XPad,
		gocv.BorderConstant, color)
}

// Geometry returns the letterbox geometry used by the resizer
func (r *Resizer) Geometry() Geometry {
	return r.geom
}

// Matches reports if the resizer was built for a source image of the given
// dimensions
func (r *Resizer) Matches(srcWidth, srcHeight int) bool {
	return r.geom.SrcWidth == srcWidth && r.geom.SrcHeight == srcHeight
}
