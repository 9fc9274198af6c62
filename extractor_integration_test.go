//go:build integration
// +build integration

package posture

import (
	"context"
	"errors"
	"github.com/swdee/go-posture/postprocess/result"
	"github.com/swdee/go-posture/preprocess"
	"github.com/swdee/go-rknnlite"
	"gocv.io/x/gocv"
	"os"
	"testing"
	"time"
)

func newIntegrationExtractor(t *testing.T) *RuntimeExtractor {

	modelFile := os.Getenv("RKNN_MODEL")

	if modelFile == "" {
		t.Fatalf("No Model file provided in RKNN_MODEL")
	}

	ext, err := NewRuntimeExtractor(modelFile, rknnlite.NPUCoreAuto, 2*time.Second, false)

	if err != nil {
		t.Fatalf("NewRuntimeExtractor failed: %v", err)
	}

	return ext
}

func TestRuntimeExtractorPose(t *testing.T) {

	ext := newIntegrationExtractor(t)
	defer ext.Close()

	w, h := ext.InputSize()

	cfg := DefaultConfig()
	cfg.ModelInputSize = w
	pre, err := preprocess.NewPreprocessor(cfg.PreprocessParams())

	if err != nil {
		t.Fatalf("NewPreprocessor failed: %v", err)
	}

	defer pre.Close()

	var img gocv.Mat

	if imgFile := os.Getenv("RKNN_IMAGE"); imgFile != "" {
		img = gocv.IMRead(imgFile, gocv.IMReadColor)
	} else {
		img = gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	}

	defer img.Close()

	tensor, err := pre.Process(img)

	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	defer tensor.Close()

	if tensor.Mat.Cols() != w || tensor.Mat.Rows() != h {
		t.Fatalf("Tensor %dx%d does not match model %dx%d", tensor.Mat.Cols(),
			tensor.Mat.Rows(), w, h)
	}

	pose, err := ext.Extract(context.Background(), tensor)

	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if len(pose) != result.KeyPointsNumber {
		t.Fatalf("Expected %d keypoints, got %d", result.KeyPointsNumber, len(pose))
	}

	for _, kp := range pose {
		if kp.Score < 0 || kp.Score > 1 {
			t.Errorf("Keypoint %s score %v out of range", kp.Part, kp.Score)
		}
	}
}

func TestRuntimeExtractorShapeMismatch(t *testing.T) {

	ext := newIntegrationExtractor(t)
	defer ext.Close()

	tensor := &preprocess.Tensor{
		Mat: gocv.NewMatWithSize(10, 10, gocv.MatTypeCV8UC3),
	}
	defer tensor.Close()

	_, err := ext.Extract(context.Background(), tensor)

	var infErr *InferenceError

	if !errors.As(err, &infErr) || !infErr.Fatal {
		t.Errorf("Expected fatal InferenceError, got %v", err)
	}
}
