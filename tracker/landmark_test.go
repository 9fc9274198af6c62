package tracker

import (
	"github.com/swdee/go-posture/postprocess/result"
	"math"
	"testing"
)

func eyePose(y float64, score float32) result.Pose {
	return result.Pose{
		{Part: result.Nose, X: 320, Y: y + 20, Score: score},
		{Part: result.LeftEye, X: 300, Y: y, Score: score},
		{Part: result.RightEye, X: 340, Y: y, Score: score},
	}
}

var eyes = []result.Part{result.LeftEye, result.RightEye}

func TestKalmanFilterStationary(t *testing.T) {

	kf := NewKalmanFilter(3, 1)
	s := kf.Initiate(100, 200)

	for i := 0; i < 50; i++ {
		kf.Predict(s)

		if err := kf.Update(s, 100, 200); err != nil {
			t.Fatalf("update %d failed: %v", i, err)
		}
	}

	x, y := s.Position()

	if x != 100 || y != 200 {
		t.Errorf("expected stationary point to stay at 100,200, got %v,%v", x, y)
	}
}

func TestKalmanFilterStep(t *testing.T) {

	kf := NewKalmanFilter(3, 1)
	s := kf.Initiate(0, 0)

	for i := 0; i < 20; i++ {
		kf.Predict(s)
		kf.Update(s, 0, 0)
	}

	kf.Predict(s)

	if err := kf.Update(s, 0, 10); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	_, y := s.Position()

	if y <= 0 || y >= 10 {
		t.Errorf("expected first step measurement to be smoothed, got y=%v", y)
	}

	for i := 0; i < 100; i++ {
		kf.Predict(s)
		kf.Update(s, 0, 10)
	}

	_, y = s.Position()

	if math.Abs(y-10) > 0.1 {
		t.Errorf("expected filter to converge on 10, got y=%v", y)
	}
}

func TestLandmarkTrackerSmoothsTrackedParts(t *testing.T) {

	lt := NewLandmarkTracker(eyes, 0.3, 3, 1)

	for i := 0; i < 20; i++ {
		lt.Update(eyePose(200, 0.9))
	}

	in := eyePose(220, 0.9)
	out := lt.Update(in)

	le, _ := out.Get(result.LeftEye)

	if le.Y <= 200 || le.Y >= 220 {
		t.Errorf("expected smoothed left eye between 200 and 220, got %v", le.Y)
	}

	nose, _ := out.Get(result.Nose)

	if nose.Y != 240 {
		t.Errorf("expected untracked nose to pass through, got %v", nose.Y)
	}

	// input pose must not be modified
	if in[1].Y != 220 {
		t.Errorf("input pose was modified")
	}
}

func TestLandmarkTrackerFirstFrameUnchanged(t *testing.T) {

	lt := NewLandmarkTracker(eyes, 0.3, 3, 1)
	out := lt.Update(eyePose(150, 0.9))

	re, _ := out.Get(result.RightEye)

	if re.Y != 150 || re.X != 340 {
		t.Errorf("expected first measurement returned as is, got %v,%v", re.X, re.Y)
	}

	if lt.Tracking() != 2 {
		t.Errorf("expected 2 tracked landmarks, got %d", lt.Tracking())
	}
}

func TestLandmarkTrackerDropsLowConfidence(t *testing.T) {

	lt := NewLandmarkTracker(eyes, 0.3, 3, 1)

	for i := 0; i < 10; i++ {
		lt.Update(eyePose(200, 0.9))
	}

	out := lt.Update(eyePose(260, 0.1))

	if lt.Tracking() != 0 {
		t.Errorf("expected filters dropped, got %d", lt.Tracking())
	}

	le, _ := out.Get(result.LeftEye)

	if le.Y != 260 || le.Score != 0.1 {
		t.Errorf("expected low confidence landmark unchanged, got %+v", le)
	}

	// reinitialised at the new position
	out = lt.Update(eyePose(260, 0.9))
	le, _ = out.Get(result.LeftEye)

	if le.Y != 260 {
		t.Errorf("expected restart at 260, got %v", le.Y)
	}
}

func TestLandmarkTrackerReset(t *testing.T) {

	lt := NewLandmarkTracker(eyes, 0.3, 3, 1)

	for i := 0; i < 10; i++ {
		lt.Update(eyePose(200, 0.9))
	}

	lt.Reset()

	if lt.Tracking() != 0 {
		t.Fatalf("expected no tracked landmarks after reset")
	}

	out := lt.Update(eyePose(300, 0.9))
	re, _ := out.Get(result.RightEye)

	if re.Y != 300 {
		t.Errorf("expected 300 after reset, got %v", re.Y)
	}
}
