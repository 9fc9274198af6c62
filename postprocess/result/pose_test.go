package result

import (
	"testing"
)

func TestParsePart(t *testing.T) {

	tests := []struct {
		name     string
		expected Part
		wantErr  bool
	}{
		{"left_eye", LeftEye, false},
		{"Right-Shoulder", RightShoulder, false},
		{" nose ", Nose, false},
		{"tail", 0, true},
	}

	for _, tc := range tests {
		part, err := ParsePart(tc.name)

		if tc.wantErr {
			if err == nil {
				t.Errorf("Expected error parsing %q", tc.name)
			}
			continue
		}

		if err != nil || part != tc.expected {
			t.Errorf("ParsePart(%q) = %s, %v, expected %s", tc.name, part, err, tc.expected)
		}
	}
}

func TestPoseGet(t *testing.T) {

	ordered := Pose{{Part: Nose, Y: 1}, {Part: LeftEye, Y: 2}}
	unordered := Pose{{Part: RightEye, Y: 3}, {Part: Nose, Y: 1}}

	tests := []struct {
		name  string
		pose  Pose
		part  Part
		found bool
		y     float64
	}{
		{"indexed", ordered, LeftEye, true, 2},
		{"scanned", unordered, RightEye, true, 3},
		{"scanned nose", unordered, Nose, true, 1},
		{"missing", ordered, RightEye, false, 0},
		{"negative part", ordered, Part(-1), false, 0},
		{"out of range", ordered, Part(100), false, 0},
	}

	for _, tc := range tests {
		kp, ok := tc.pose.Get(tc.part)

		if ok != tc.found || kp.Y != tc.y {
			t.Errorf("%s: Get(%d) = %+v, %v, expected found=%v y=%v",
				tc.name, int(tc.part), kp, ok, tc.found, tc.y)
		}
	}
}

func TestPoseConfident(t *testing.T) {

	pose := make(Pose, KeyPointsNumber)

	for i := range pose {
		pose[i] = KeyPoint{Part: Part(i), Score: 0.9}
	}

	pose[RightEye].Score = 0.2

	eyes := []Part{LeftEye, RightEye}

	if pose.Confident(eyes, 0.3) {
		t.Errorf("Expected eyes not to be confident with right eye score 0.2")
	}

	if !pose.Confident([]Part{LeftEye}, 0.3) {
		t.Errorf("Expected left eye to be confident")
	}

	if pose.Confident(nil, 0.3) {
		t.Errorf("Expected no tracked parts to never be confident")
	}

	var empty Pose

	if empty.Confident(eyes, 0.3) {
		t.Errorf("Expected empty pose not to be confident")
	}
}

func TestPartText(t *testing.T) {

	var p Part

	if err := p.UnmarshalText([]byte("left_hip")); err != nil || p != LeftHip {
		t.Errorf("UnmarshalText failed: part=%s err=%v", p, err)
	}

	txt, err := RightAnkle.MarshalText()

	if err != nil || string(txt) != "right_ankle" {
		t.Errorf("MarshalText returned %q, %v", txt, err)
	}

	if _, err := Part(40).MarshalText(); err == nil {
		t.Errorf("Expected error marshalling unknown part")
	}
}
