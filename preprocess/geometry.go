package preprocess

import "math"

// Geometry describes how a source frame was mapped onto the input tensor by a
// letterbox resize, and how to map tensor coordinates back to a reference
// frame of fixed dimensions
type Geometry struct {
	// SrcWidth and SrcHeight are the dimensions of the frame after rotation
	SrcWidth  int
	SrcHeight int
	// DestWidth and DestHeight are the input tensor dimensions
	DestWidth  int
	DestHeight int
	// RefWidth and RefHeight are the dimensions of the reference frame that
	// keypoint coordinates are expressed in
	RefWidth  int
	RefHeight int
	// Scale is the letterbox scale factor from source to tensor pixels
	Scale float64
	// XPad and YPad are the letterbox padding on the left and top edges
	XPad int
	YPad int
	// ResizeW and ResizeH are the dimensions of the scaled image inside the
	// padded tensor
	ResizeW int
	ResizeH int
}

// NewGeometry calculates the letterbox geometry for scaling a source image
// to the destination tensor size whilst maintaining image aspect
func NewGeometry(srcWidth, srcHeight, destWidth, destHeight, refWidth,
	refHeight int) Geometry {

	g := Geometry{
		SrcWidth:   srcWidth,
		SrcHeight:  srcHeight,
		DestWidth:  destWidth,
		DestHeight: destHeight,
		RefWidth:   refWidth,
		RefHeight:  refHeight,
		ResizeW:    destWidth,
		ResizeH:    destHeight,
	}

	scaleW := float64(destWidth) / float64(srcWidth)
	scaleH := float64(destHeight) / float64(srcHeight)
	g.Scale = scaleH

	if scaleW < scaleH {
		g.Scale = scaleW
		g.ResizeH = int(math.Round(float64(srcHeight) * g.Scale))
	} else {
		g.ResizeW = int(math.Round(float64(srcWidth) * g.Scale))
	}

	g.YPad = (destHeight - g.ResizeH) / 2 // padding height / 2
	g.XPad = (destWidth - g.ResizeW) / 2  // padding width / 2

	return g
}

// ToSource maps a coordinate normalised to the tensor dimensions to pixel
// coordinates of the (rotated) source frame, removing letterbox padding
func (g Geometry) ToSource(nx, ny float64) (float64, float64) {

	tx := nx * float64(g.DestWidth)
	ty := ny * float64(g.DestHeight)

	return (tx - float64(g.XPad)) / g.Scale, (ty - float64(g.YPad)) / g.Scale
}

// ToReference maps a coordinate normalised to the tensor dimensions to pixel
// coordinates of the reference frame.  The result depends only on the
// position within the source frame, not on the source resolution
func (g Geometry) ToReference(nx, ny float64) (float64, float64) {

	sx, sy := g.ToSource(nx, ny)

	return sx / float64(g.SrcWidth) * float64(g.RefWidth),
		sy / float64(g.SrcHeight) * float64(g.RefHeight)
}

// FromSource maps source frame pixel coordinates to coordinates normalised
// to the tensor dimensions.  It is the inverse of ToSource
func (g Geometry) FromSource(sx, sy float64) (float64, float64) {

	tx := sx*g.Scale + float64(g.XPad)
	ty := sy*g.Scale + float64(g.YPad)

	return tx / float64(g.DestWidth), ty / float64(g.DestHeight)
}
