package posture

import (
	"errors"
	"fmt"
)

var (
	// ErrCalibrationTimeout is reported when no frame with confident
	// landmarks has been seen for the configured number of frames while
	// calibrating.  It is not fatal, calibration continues on the next frame
	ErrCalibrationTimeout = errors.New("calibration timed out waiting for confident landmarks")
	// ErrBackendUnusable is returned when inference has failed for too many
	// consecutive frames
	ErrBackendUnusable = errors.New("inference backend unusable")
	// ErrInferenceBusy is returned when a previous inference that exceeded
	// its timeout is still running on the backend
	ErrInferenceBusy = errors.New("inference backend busy")
	// ErrPipelineBusy is returned when ProcessFrame is called while another
	// pass is still in flight.  The frame is dropped
	ErrPipelineBusy = errors.New("pipeline pass already in flight")
)

// PreprocessError is returned when a frame can not be converted into a model
// input tensor.  The frame is skipped and posture state is left unchanged
type PreprocessError struct {
	Err error
}

func (e *PreprocessError) Error() string {
	return fmt.Sprintf("preprocess failed: %v", e.Err)
}

func (e *PreprocessError) Unwrap() error {
	return e.Err
}

// InferenceError is returned when the Landmark Extractor fails.  Transient
// errors skip the frame, Fatal errors indicate a programming or model
// mismatch and should stop the caller
type InferenceError struct {
	Err   error
	Fatal bool
}

func (e *InferenceError) Error() string {
	if e.Fatal {
		return fmt.Sprintf("inference failed (fatal): %v", e.Err)
	}

	return fmt.Sprintf("inference failed: %v", e.Err)
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}

// IsFatal reports if an error returned from the Pipeline means processing
// can not continue
func IsFatal(err error) bool {

	if err == nil {
		return false
	}

	if errors.Is(err, ErrBackendUnusable) {
		return true
	}

	var infErr *InferenceError

	if errors.As(err, &infErr) {
		return infErr.Fatal
	}

	return false
}
