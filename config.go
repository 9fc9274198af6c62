package posture

import (
	"bytes"
	"errors"
	"fmt"
	"github.com/swdee/go-posture/overlay"
	"github.com/swdee/go-posture/postprocess/result"
	"github.com/swdee/go-posture/preprocess"
	"gopkg.in/yaml.v3"
	"io"
	"os"
	"time"
)

// Config holds the immutable settings the Pipeline is constructed with
type Config struct {
	// FrameWidth and FrameHeight define the reference frame that keypoints,
	// baseline and deviation are expressed in.  They describe the frame after
	// rotation, so a portrait mounted camera uses 480x640
	FrameWidth  int `yaml:"frame_width"`
	FrameHeight int `yaml:"frame_height"`
	// ModelInputSize is the width and height of the square model input tensor
	ModelInputSize int `yaml:"model_input_size"`
	// Rotation in degrees (0, 90, 180 or 270) applied clockwise to every frame
	Rotation preprocess.Rotation `yaml:"camera_rotation"`
	// InputFloat32 passes the tensor as float32 in 0..1 instead of uint8
	InputFloat32 bool `yaml:"input_float32"`

	// MinConfidence is the minimum keypoint score for a landmark to be used
	MinConfidence float32 `yaml:"min_confidence"`
	// TrackedParts are the landmarks whose vertical position is monitored
	TrackedParts []result.Part `yaml:"tracked_parts"`

	// DeviationThreshold in reference pixels a landmark may drop below the
	// baseline before the frame counts as bad posture
	DeviationThreshold float64 `yaml:"deviation_threshold"`
	// DebounceFrames is the number of consecutive bad frames needed to
	// switch from GOOD to BAD
	DebounceFrames int `yaml:"debounce_frames"`
	// RecoverFrames is the number of consecutive good frames needed to
	// switch from BAD to GOOD.  Zero uses DebounceFrames
	RecoverFrames int `yaml:"recover_frames"`
	// LostTrackingFrames is the number of consecutive invalid samples after
	// which the debounce streak is discarded.  Zero disables the limit
	LostTrackingFrames int `yaml:"lost_tracking_frames"`
	// RecalibrateOnLoss resets the baseline when tracking is lost
	RecalibrateOnLoss bool `yaml:"recalibrate_on_loss"`

	// CalibrationFrames is the number of consecutive stable confident frames
	// averaged into the baseline
	CalibrationFrames int `yaml:"calibration_frames"`
	// CalibrationMaxJitter is the largest frame to frame movement in
	// reference pixels tolerated while calibrating
	CalibrationMaxJitter float64 `yaml:"calibration_max_jitter"`
	// CalibrationTimeoutFrames is the number of consecutive frames without
	// confident landmarks after which calibration failure is reported.
	// Zero disables reporting
	CalibrationTimeoutFrames int `yaml:"calibration_timeout_frames"`

	// InferenceTimeout bounds the time a single inference may take
	InferenceTimeout time.Duration `yaml:"inference_timeout"`
	// MaxInferenceFailures is the number of consecutive transient inference
	// failures after which the backend is considered unusable
	MaxInferenceFailures int `yaml:"max_inference_failures"`

	// SmoothLandmarks filters the tracked landmarks across frames before
	// calibration and deviation are measured
	SmoothLandmarks bool `yaml:"smooth_landmarks"`
	// SmoothMeasurementStd is the expected landmark jitter in reference pixels
	SmoothMeasurementStd float64 `yaml:"smooth_measurement_std"`
	// SmoothProcessStd is the expected per frame change in landmark velocity
	// in reference pixels
	SmoothProcessStd float64 `yaml:"smooth_process_std"`

	// Overlay are the fade parameters of the on screen reminder
	Overlay overlay.Params `yaml:"overlay"`
}

// DefaultConfig returns a Config with default values featuring:
// - Reference frame: 640x480
// - Model input size: 192 (MoveNet Lightning)
// - Tracked parts: left and right eye, minimum confidence 0.3
// - Deviation threshold: 10 pixels, debounce 15 frames
// - Calibration: 10 frames, max jitter 4 pixels
func DefaultConfig() Config {
	return Config{
		FrameWidth:               640,
		FrameHeight:              480,
		ModelInputSize:           192,
		Rotation:                 preprocess.Rotate0,
		MinConfidence:            0.3,
		TrackedParts:             []result.Part{result.LeftEye, result.RightEye},
		DeviationThreshold:       10,
		DebounceFrames:           15,
		LostTrackingFrames:       30,
		CalibrationFrames:        10,
		CalibrationMaxJitter:     4,
		CalibrationTimeoutFrames: 90,
		InferenceTimeout:         500 * time.Millisecond,
		MaxInferenceFailures:     30,
		SmoothMeasurementStd:     3,
		SmoothProcessStd:         1,
		Overlay:                  overlay.DefaultParams(),
	}
}

// LoadConfig reads a YAML configuration file, overlaying its values on
// DefaultConfig, and validates the result
func LoadConfig(file string) (Config, error) {

	data, err := os.ReadFile(file)

	if err != nil {
		return Config{}, fmt.Errorf("error reading config file: %w", err)
	}

	cfg, err := ParseConfig(bytes.NewReader(data))

	if err != nil {
		return Config{}, fmt.Errorf("error parsing config file %s: %w", file, err)
	}

	return cfg, nil
}

// ParseConfig decodes YAML configuration from r, overlaying its values on
// DefaultConfig, and validates the result.  Unknown keys are rejected
func ParseConfig(r io.Reader) (Config, error) {

	cfg := DefaultConfig()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks the configuration is usable
func (c Config) Validate() error {

	if c.FrameWidth <= 0 || c.FrameHeight <= 0 {
		return fmt.Errorf("frame dimensions must be > 0, got %dx%d",
			c.FrameWidth, c.FrameHeight)
	}

	if c.ModelInputSize <= 0 {
		return fmt.Errorf("model_input_size must be > 0")
	}

	if !c.Rotation.Valid() {
		return fmt.Errorf("camera_rotation must be 0, 90, 180 or 270, got %d", c.Rotation)
	}

	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("min_confidence must be within 0 and 1")
	}

	if len(c.TrackedParts) == 0 {
		return fmt.Errorf("tracked_parts must name at least one body part")
	}

	for _, p := range c.TrackedParts {
		if !p.Valid() {
			return fmt.Errorf("tracked_parts contains unknown part %d", int(p))
		}
	}

	if c.DeviationThreshold <= 0 {
		return fmt.Errorf("deviation_threshold must be > 0")
	}

	if c.DebounceFrames <= 0 {
		return fmt.Errorf("debounce_frames must be > 0")
	}

	if c.RecoverFrames < 0 || c.LostTrackingFrames < 0 {
		return fmt.Errorf("recover_frames and lost_tracking_frames must be >= 0")
	}

	if c.CalibrationFrames <= 0 {
		return fmt.Errorf("calibration_frames must be > 0")
	}

	if c.CalibrationMaxJitter <= 0 {
		return fmt.Errorf("calibration_max_jitter must be > 0")
	}

	if c.CalibrationTimeoutFrames < 0 {
		return fmt.Errorf("calibration_timeout_frames must be >= 0")
	}

	if c.InferenceTimeout <= 0 {
		return fmt.Errorf("inference_timeout must be > 0")
	}

	if c.MaxInferenceFailures <= 0 {
		return fmt.Errorf("max_inference_failures must be > 0")
	}

	if c.SmoothLandmarks && (c.SmoothMeasurementStd <= 0 || c.SmoothProcessStd <= 0) {
		return fmt.Errorf("smooth_measurement_std and smooth_process_std must be > 0")
	}

	return c.Overlay.Validate()
}

// recoverFrames returns the debounce window for BAD to GOOD transitions
func (c Config) recoverFrames() int {
	if c.RecoverFrames > 0 {
		return c.RecoverFrames
	}

	return c.DebounceFrames
}

// PreprocessParams returns the preprocess.Params matching the configuration
func (c Config) PreprocessParams() preprocess.Params {

	pxRange := preprocess.PixelRangeUint8

	if c.InputFloat32 {
		pxRange = preprocess.PixelRangeUnit
	}

	return preprocess.Params{
		InputSize: c.ModelInputSize,
		RefWidth:  c.FrameWidth,
		RefHeight: c.FrameHeight,
		Rotation:  c.Rotation,
		Range:     pxRange,
	}
}
