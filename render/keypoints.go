package render

import (
	"github.com/swdee/go-posture/postprocess/result"
	"gocv.io/x/gocv"
	"image"
)

// limb is a pair of parts joined by a line on the skeleton
type limb struct {
	from, to result.Part
}

// skeleton defines the pose skeleton points to draw lines between.  Each limb
// uses the matching color in limbColors
var skeleton = [19]limb{
	{result.RightAnkle, result.RightKnee},
	{result.RightKnee, result.RightHip},
	{result.LeftAnkle, result.LeftKnee},
	{result.LeftKnee, result.LeftHip},
	{result.RightHip, result.LeftHip},
	{result.RightShoulder, result.RightHip},
	{result.LeftShoulder, result.LeftHip},
	{result.RightShoulder, result.LeftShoulder},
	{result.RightShoulder, result.RightElbow},
	{result.LeftShoulder, result.LeftElbow},
	{result.RightElbow, result.RightWrist},
	{result.LeftElbow, result.LeftWrist},
	{result.LeftEye, result.RightEye},
	{result.Nose, result.LeftEye},
	{result.Nose, result.RightEye},
	{result.LeftEye, result.LeftEar},
	{result.RightEye, result.RightEar},
	{result.LeftEar, result.LeftShoulder},
	{result.RightEar, result.RightShoulder},
}

// Mapping scales reference frame coordinates onto the pixels of the image
// being rendered on
type Mapping struct {
	sx, sy float64
}

// NewMapping returns a Mapping from a reference frame of the given size to
// the image
func NewMapping(img gocv.Mat, refWidth, refHeight int) Mapping {
	return Mapping{
		sx: float64(img.Cols()) / float64(refWidth),
		sy: float64(img.Rows()) / float64(refHeight),
	}
}

// Point returns the image pixel of the reference coordinate
func (m Mapping) Point(x, y float64) image.Point {
	return image.Pt(int(x*m.sx+0.5), int(y*m.sy+0.5))
}

// Y returns the image row of the reference height
func (m Mapping) Y(y float64) int {
	return int(y*m.sy + 0.5)
}

// PoseKeyPoints renders the skeleton of the pose.  Keypoints with a score
// below minScore and the limbs joined to them are not drawn
func PoseKeyPoints(img *gocv.Mat, pose result.Pose, m Mapping, minScore float32,
	lineThickness int) {

	// draw skeleton lines
	for i, l := range skeleton {
		from, ok1 := pose.Get(l.from)
		to, ok2 := pose.Get(l.to)

		if !ok1 || !ok2 || from.Score < minScore || to.Score < minScore {
			continue
		}

		gocv.Line(img, m.Point(from.X, from.Y), m.Point(to.X, to.Y),
			limbColors[i], lineThickness)
	}

	// draw circles at skeleton joints
	for _, kp := range pose {
		if !kp.Part.Valid() || kp.Score < minScore {
			continue
		}

		gocv.Circle(img, m.Point(kp.X, kp.Y), 3, keyPointColors[kp.Part], -1)
	}
}
