package result

import (
	"fmt"
	"strings"
)

// Part identifies a body landmark in the 17 keypoint COCO layout output by
// MoveNet single pose models
type Part int

const (
	Nose Part = iota
	LeftEye
	RightEye
	LeftEar
	RightEar
	LeftShoulder
	RightShoulder
	LeftElbow
	RightElbow
	LeftWrist
	RightWrist
	LeftHip
	RightHip
	LeftKnee
	RightKnee
	LeftAnkle
	RightAnkle
)

// KeyPointsNumber is the number of keypoints in a Pose
const KeyPointsNumber = 17

var partNames = [KeyPointsNumber]string{
	"nose", "left_eye", "right_eye", "left_ear", "right_ear",
	"left_shoulder", "right_shoulder", "left_elbow", "right_elbow",
	"left_wrist", "right_wrist", "left_hip", "right_hip",
	"left_knee", "right_knee", "left_ankle", "right_ankle",
}

// String returns the snake case name of the part
func (p Part) String() string {
	if p < 0 || int(p) >= KeyPointsNumber {
		return fmt.Sprintf("part(%d)", int(p))
	}

	return partNames[p]
}

// Valid reports if the part is one of the known keypoints
func (p Part) Valid() bool {
	return p >= 0 && int(p) < KeyPointsNumber
}

// ParsePart returns the Part matching the given name, eg: "left_eye"
func ParsePart(name string) (Part, error) {

	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, "-", "_")

	for i, n := range partNames {
		if n == name {
			return Part(i), nil
		}
	}

	return 0, fmt.Errorf("unknown body part %q", name)
}

// MarshalText implements encoding.TextMarshaler
func (p Part) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("unknown body part %d", int(p))
	}

	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (p *Part) UnmarshalText(text []byte) error {
	part, err := ParsePart(string(text))

	if err != nil {
		return err
	}

	*p = part
	return nil
}

// KeyPoint is a single landmark of a Pose.  The coordinate space of X and Y
// depends on the producer, extractors emit coordinates normalised to the
// input tensor and the posture pipeline converts them to reference frame
// pixels
type KeyPoint struct {
	Part  Part
	X     float64
	Y     float64
	Score float32
}

// Pose is the set of keypoints for one person in one frame, indexed by Part
type Pose []KeyPoint

// Get returns the keypoint for the given part
func (p Pose) Get(part Part) (KeyPoint, bool) {

	if part >= 0 && int(part) < len(p) && p[part].Part == part {
		return p[part], true
	}

	// fall back to a scan for poses not stored in Part order
	for _, kp := range p {
		if kp.Part == part {
			return kp, true
		}
	}

	return KeyPoint{}, false
}

// Confident reports if every one of the given parts is present with a score
// of at least minScore
func (p Pose) Confident(parts []Part, minScore float32) bool {

	if len(parts) == 0 {
		return false
	}

	for _, part := range parts {
		kp, ok := p.Get(part)

		if !ok || kp.Score < minScore {
			return false
		}
	}

	return true
}

// Clone returns a copy of the pose
func (p Pose) Clone() Pose {
	if p == nil {
		return nil
	}

	c := make(Pose, len(p))
	copy(c, p)
	return c
}
