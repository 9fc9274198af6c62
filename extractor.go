package posture

import (
	"context"
	"errors"
	"fmt"
	"github.com/swdee/go-posture/postprocess"
	"github.com/swdee/go-posture/postprocess/result"
	"github.com/swdee/go-posture/preprocess"
	"github.com/swdee/go-rknnlite"
	"gocv.io/x/gocv"
	"sync"
	"sync/atomic"
	"time"
)

// Extractor is the single point where pose model inference occurs.  Given an
// input tensor it returns a Pose with one keypoint per body part, with
// coordinates normalised to the tensor dimensions
type Extractor interface {
	Extract(ctx context.Context, tensor *preprocess.Tensor) (result.Pose, error)
}

// inputShape is the expected height, width and channels of the model input
type inputShape struct {
	height   int
	width    int
	channels int
}

// RuntimeExtractor runs a MoveNet single pose model compiled for the Rockchip
// NPU.  The model is loaded once at construction.  Each inference is bounded
// by a timeout, a timed out inference keeps the NPU busy until it returns so
// further calls fail fast with ErrInferenceBusy rather than queue up
type RuntimeExtractor struct {
	rt      *rknnlite.Runtime
	decoder *postprocess.MoveNet
	shape   inputShape
	// quantized is set when the model outputs affine int8 values which are
	// dequantized by the decoder rather than the runtime
	quantized bool
	zp        int32
	scale     float32

	// inputFloat32 passes the tensor to the runtime as float32 instead of
	// uint8
	inputFloat32 bool
	timeout      time.Duration
	busy         atomic.Bool
	wg           sync.WaitGroup
	// run performs inference on a validated tensor
	run func(mat gocv.Mat) (result.Pose, error)
}

// NewRuntimeExtractor loads the RKNN compiled model file onto the NPU core
// given and returns an Extractor for it.  Set inputFloat32 for models that
// take float32 input, tensors must then be preprocessed to CV32FC3
func NewRuntimeExtractor(modelFile string, core rknnlite.CoreMask,
	timeout time.Duration, inputFloat32 bool) (*RuntimeExtractor, error) {

	rt, err := rknnlite.NewRuntime(modelFile, core)

	if err != nil {
		return nil, fmt.Errorf("error initializing RKNN runtime: %w", err)
	}

	attrs, err := rt.QueryInputTensors()

	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("error querying input tensors: %w", err)
	}

	if len(attrs) != 1 {
		rt.Close()
		return nil, fmt.Errorf("expected model with 1 input tensor, got %d", len(attrs))
	}

	outAttrs, err := rt.QueryOutputTensors()

	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("error querying output tensors: %w", err)
	}

	if len(outAttrs) < 1 {
		rt.Close()
		return nil, fmt.Errorf("model has no output tensors")
	}

	out := outAttrs[0]
	quantized := out.Type == rknnlite.TensorInt8 && out.QntType == rknnlite.TensorQntAffine

	rt.SetWantFloat(!quantized)
	rt.SetInputTypeFloat32(inputFloat32)

	e := &RuntimeExtractor{
		rt:           rt,
		decoder:      postprocess.NewMoveNet(postprocess.MoveNetCOCOParams()),
		shape:        shapeOf(attrs[0]),
		quantized:    quantized,
		zp:           out.ZP,
		scale:        out.Scale,
		inputFloat32: inputFloat32,
		timeout:      timeout,
	}

	e.run = e.infer
	return e, nil
}

// shapeOf returns the image dimensions of an input tensor attribute
func shapeOf(attr rknnlite.TensorAttr) inputShape {

	// default layout is NCHW
	s := inputShape{
		channels: int(attr.Dims[1]),
		height:   int(attr.Dims[2]),
		width:    int(attr.Dims[3]),
	}

	if attr.Fmt == rknnlite.TensorNHWC {
		s = inputShape{
			height:   int(attr.Dims[1]),
			width:    int(attr.Dims[2]),
			channels: int(attr.Dims[3]),
		}
	}

	return s
}

// InputSize returns the width and height of the model input tensor
func (e *RuntimeExtractor) InputSize() (int, int) {
	return e.shape.width, e.shape.height
}

// Close waits for any inference in flight and unloads the model from the NPU
func (e *RuntimeExtractor) Close() error {
	e.wg.Wait()
	return e.rt.Close()
}

// inferResult wraps the decoded pose and error from the inference goroutine
type inferResult struct {
	pose result.Pose
	err  error
}

// Extract runs inference on the tensor and decodes the MoveNet output
func (e *RuntimeExtractor) Extract(ctx context.Context,
	tensor *preprocess.Tensor) (result.Pose, error) {

	if err := e.validate(tensor.Mat); err != nil {
		return nil, &InferenceError{Err: err, Fatal: true}
	}

	if !e.busy.CompareAndSwap(false, true) {
		return nil, &InferenceError{Err: ErrInferenceBusy}
	}

	// the inference goroutine may outlive this call on timeout, so it works on
	// its own copy of the tensor
	mat := tensor.Mat.Clone()
	done := make(chan inferResult, 1)

	e.wg.Add(1)

	go func() {
		defer e.wg.Done()
		defer e.busy.Store(false)
		defer mat.Close()

		pose, err := e.run(mat)
		done <- inferResult{pose: pose, err: err}
	}()

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	select {
	case res := <-done:
		if res.err != nil {
			var infErr *InferenceError

			if errors.As(res.err, &infErr) {
				return nil, infErr
			}

			return nil, &InferenceError{Err: res.err}
		}

		return res.pose, nil

	case <-ctx.Done():
		return nil, &InferenceError{Err: fmt.Errorf("inference exceeded %s: %w",
			e.timeout, ctx.Err())}
	}
}

// validate checks the tensor matches the model input shape and type
func (e *RuntimeExtractor) validate(mat gocv.Mat) error {

	if mat.Rows() != e.shape.height || mat.Cols() != e.shape.width ||
		mat.Channels() != e.shape.channels {
		return fmt.Errorf("tensor shape %dx%dx%d does not match model input %dx%dx%d",
			mat.Cols(), mat.Rows(), mat.Channels(),
			e.shape.width, e.shape.height, e.shape.channels)
	}

	// the runtime reads Mat data as uint8 or float32 depending on the input
	// type it was configured with
	want := gocv.MatTypeCV8UC3

	if e.inputFloat32 {
		want = gocv.MatTypeCV32FC3
	}

	if mat.Type() != want {
		return fmt.Errorf("tensor mat type %d does not match model input type %d, check input_float32",
			int(mat.Type()), int(want))
	}

	return nil
}

// infer runs the model and decodes the output, freeing the C outputs
func (e *RuntimeExtractor) infer(mat gocv.Mat) (result.Pose, error) {

	outputs, err := e.rt.Inference([]gocv.Mat{mat})

	if err != nil {
		return nil, fmt.Errorf("runtime inferencing failed: %w", err)
	}

	defer outputs.Free()

	if len(outputs.Output) == 0 {
		return nil, &InferenceError{Err: postprocess.ErrOutputShape, Fatal: true}
	}

	var pose result.Pose

	// float16 outputs are converted to float32 by the runtime even when
	// float output is not requested
	if e.quantized && len(outputs.Output[0].BufInt) > 0 {
		pose, err = e.decoder.DecodeQuantized(outputs.Output[0].BufInt, e.zp, e.scale)
	} else {
		pose, err = e.decoder.Decode(outputs.Output[0].BufFloat)
	}

	if err != nil {
		return nil, &InferenceError{Err: err, Fatal: true}
	}

	return pose, nil
}
