package postprocess

import (
	"errors"
	"fmt"
	"github.com/swdee/go-posture/postprocess/result"
)

// ErrOutputShape is returned when the model output tensor does not hold the
// expected number of values
var ErrOutputShape = errors.New("unexpected output tensor shape")

// MoveNet defines the struct for MoveNet single pose model inference post
// processing
type MoveNet struct {
	// Params are the Model configuration parameters
	Params MoveNetParams
}

// MoveNetParams defines the struct containing the MoveNet parameters to use
// for post processing operations
type MoveNetParams struct {
	// KeyPointsNumber is the number of COCO keypoints representing different
	// parts of the body the pose model is trained on
	KeyPointsNumber int
	// ValuesPerKeyPoint is the number of values output per keypoint, MoveNet
	// outputs y, x and score
	ValuesPerKeyPoint int
}

// MoveNetCOCOParams returns an instance of MoveNetParams configured with
// default values for the MoveNet Lightning and Thunder single pose models
// featuring:
// - KeyPoints Number: 17
// - Values per KeyPoint: 3 (y, x, score)
func MoveNetCOCOParams() MoveNetParams {
	return MoveNetParams{
		KeyPointsNumber:   result.KeyPointsNumber,
		ValuesPerKeyPoint: 3,
	}
}

// NewMoveNet returns an instance of the MoveNet post processor
func NewMoveNet(p MoveNetParams) *MoveNet {
	return &MoveNet{
		Params: p,
	}
}

// OutputSize returns the number of float values the model output tensor
// must contain
func (m *MoveNet) OutputSize() int {
	return m.Params.KeyPointsNumber * m.Params.ValuesPerKeyPoint
}

// Decode takes the float32 output buffer of shape [1, 1, 17, 3] and returns
// the Pose.  Keypoint coordinates are normalised to the input tensor
// dimensions, where 0,0 is the top left corner and 1,1 the bottom right
func (m *MoveNet) Decode(buf []float32) (result.Pose, error) {

	if len(buf) < m.OutputSize() {
		return nil, fmt.Errorf("%w: got %d values, expected %d", ErrOutputShape,
			len(buf), m.OutputSize())
	}

	pose := make(result.Pose, m.Params.KeyPointsNumber)

	for j := 0; j < m.Params.KeyPointsNumber; j++ {
		base := j * m.Params.ValuesPerKeyPoint

		pose[j] = result.KeyPoint{
			Part:  result.Part(j),
			Y:     float64(buf[base+0]),
			X:     float64(buf[base+1]),
			Score: clampScore(buf[base+2]),
		}
	}

	return pose, nil
}

// DecodeQuantized takes the int8 output buffer of an affine quantized model
// along with the output tensor zero point and scale, and returns the Pose
func (m *MoveNet) DecodeQuantized(buf []int8, zp int32, scale float32) (result.Pose, error) {

	if len(buf) < m.OutputSize() {
		return nil, fmt.Errorf("%w: got %d values, expected %d", ErrOutputShape,
			len(buf), m.OutputSize())
	}

	vals := make([]float32, m.OutputSize())

	for i := range vals {
		vals[i] = deqntAffineToF32(buf[i], zp, scale)
	}

	return m.Decode(vals)
}

// clampScore restricts a confidence score to the range 0 to 1
func clampScore(val float32) float32 {

	if val < 0 {
		return 0
	}

	if val > 1 {
		return 1
	}

	return val
}
