package posture

import (
	"context"
	"errors"
	"fmt"
	"github.com/swdee/go-posture/postprocess/result"
	"github.com/swdee/go-posture/preprocess"
	"github.com/swdee/go-posture/source"
	"github.com/swdee/go-posture/tracker"
	"gocv.io/x/gocv"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Preprocessor converts a camera frame into a model input tensor
type Preprocessor interface {
	Process(frame gocv.Mat) (*preprocess.Tensor, error)
}

// Outcome is the result of a single Pipeline pass
type Outcome struct {
	// State is the posture state after the pass
	State State
	// Intensity in 0..1 for driving the overlay
	Intensity float64
	// Sample is the deviation measured this pass, invalid while calibrating
	Sample DeviationSample
	// Pose are the landmarks found in reference frame coordinates, nil if
	// the frame was skipped
	Pose result.Pose
	// Baseline is the committed baseline, nil while calibrating
	Baseline *Baseline
	// Skipped is set when the frame could not be processed and posture
	// state was left unchanged
	Skipped bool
	// Changed is set when the pass caused a state transition
	Changed bool
}

// Stats are counters of the work done by the Pipeline
type Stats struct {
	// Processed is the number of frames that reached the posture logic
	Processed uint64
	// Skipped is the number of frames dropped due to errors or a busy pipeline
	Skipped uint64
	// InferenceFailures is the total number of failed inferences
	InferenceFailures uint64
	// Transitions is the number of posture state changes
	Transitions uint64
}

// Option configures optional Pipeline settings
type Option func(*Pipeline)

// WithLogger sets the logger the Pipeline reports state changes and skipped
// frames to
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.log = l
		}
	}
}

// Pipeline runs each frame through preprocessing, landmark extraction,
// calibration, deviation tracking and the posture state machine.  Only one
// pass runs at a time, a frame offered while a pass is in flight is dropped
type Pipeline struct {
	cfg Config
	pre Preprocessor
	ext Extractor
	cal *Calibrator
	dev *DeviationTracker
	sm  *StateMachine
	log *slog.Logger
	mu  sync.Mutex
	// smoother filters tracked landmarks, nil when disabled
	smoother *tracker.LandmarkTracker

	// reset is set by ResetBaseline and consumed at the start of a pass
	reset atomic.Bool
	// state mirrors the StateMachine for readers outside a pass
	state atomic.Int32
	// failures counts consecutive transient inference failures
	failures int

	processed   atomic.Uint64
	skipped     atomic.Uint64
	infFailures atomic.Uint64
	transitions atomic.Uint64
}

// NewPipeline returns a Pipeline in the CALIBRATING state
func NewPipeline(cfg Config, pre Preprocessor, ext Extractor,
	opts ...Option) (*Pipeline, error) {

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if pre == nil || ext == nil {
		return nil, errors.New("pipeline requires a preprocessor and extractor")
	}

	p := &Pipeline{
		cfg: cfg,
		pre: pre,
		ext: ext,
		cal: NewCalibrator(cfg),
		dev: NewDeviationTracker(cfg),
		sm:  NewStateMachine(cfg),
		log: slog.Default(),
	}

	if cfg.SmoothLandmarks {
		p.smoother = tracker.NewLandmarkTracker(cfg.TrackedParts, cfg.MinConfidence,
			cfg.SmoothMeasurementStd, cfg.SmoothProcessStd)
	}

	for _, opt := range opts {
		opt(p)
	}

	p.state.Store(int32(Calibrating))
	return p, nil
}

// ResetBaseline discards the baseline and debounce counters.  It returns
// immediately and takes effect before the next pass begins
func (p *Pipeline) ResetBaseline() {
	p.reset.Store(true)
}

// State returns the posture state at the end of the last pass
func (p *Pipeline) State() State {
	return State(p.state.Load())
}

// Stats returns a snapshot of the Pipeline counters
func (p *Pipeline) Stats() Stats {
	return Stats{
		Processed:         p.processed.Load(),
		Skipped:           p.skipped.Load(),
		InferenceFailures: p.infFailures.Load(),
		Transitions:       p.transitions.Load(),
	}
}

// ProcessFrame runs a single pass over the frame.  The frame is only read,
// the caller keeps ownership of it.  Errors for a single bad frame skip that
// frame and leave posture state unchanged, use IsFatal to determine if the
// returned error means processing should stop
func (p *Pipeline) ProcessFrame(ctx context.Context, frame gocv.Mat) (Outcome, error) {

	if !p.mu.TryLock() {
		p.skipped.Add(1)
		return Outcome{State: p.State(), Skipped: true}, ErrPipelineBusy
	}

	defer p.mu.Unlock()

	if p.reset.Swap(false) {
		p.resetBaseline("requested")
	}

	tensor, err := p.pre.Process(frame)

	if err != nil {
		p.log.Debug("posture: skipping frame", "err", err)
		return p.skip(), &PreprocessError{Err: err}
	}

	defer tensor.Close()

	raw, err := p.ext.Extract(ctx, tensor)

	if err != nil {
		return p.skip(), p.inferenceFailed(err)
	}

	p.failures = 0
	pose := toReference(raw, tensor.Geometry)

	if p.smoother != nil {
		pose = p.smoother.Update(pose)
	}

	out, err := p.evaluate(pose)
	p.processed.Add(1)

	return out, err
}

// evaluate feeds the pose to the calibrator or deviation tracker depending
// on the current state and advances the state machine
func (p *Pipeline) evaluate(pose result.Pose) (Outcome, error) {

	var (
		sample  DeviationSample
		changed bool
		calErr  error
	)

	if p.sm.State() == Calibrating {
		var committed bool
		committed, calErr = p.cal.Observe(pose)

		if calErr != nil {
			p.log.Warn("posture: no confident landmarks while calibrating",
				"frames", p.cfg.CalibrationTimeoutFrames)
		}

		if committed {
			p.sm.Calibrated()
			changed = true
			p.log.Info("posture: baseline calibrated",
				"eye_y", p.cal.Baseline().MeanY(),
				"frames", p.cal.Baseline().Frames)
		}

	} else {
		sample = p.dev.Measure(pose, p.cal.Baseline())
		changed = p.sm.Update(sample)

		if changed {
			p.log.Info("posture: state changed", "state", p.sm.State(),
				"deviation", sample.Value)
		}

		if p.sm.LostOnUpdate() {
			p.log.Warn("posture: tracking lost",
				"frames", p.sm.Snapshot().InvalidStreak)

			if p.cfg.RecalibrateOnLoss {
				p.resetBaseline("tracking lost")
				changed = true
			}
		}
	}

	if changed {
		p.transitions.Add(1)
	}

	p.state.Store(int32(p.sm.State()))

	return Outcome{
		State:     p.sm.State(),
		Intensity: p.sm.Intensity(),
		Sample:    sample,
		Pose:      pose,
		Baseline:  p.cal.Baseline(),
		Changed:   changed,
	}, calErr
}

// resetBaseline returns calibrator and state machine to CALIBRATING
func (p *Pipeline) resetBaseline(reason string) {

	p.cal.Reset()
	p.sm.Reset()

	if p.smoother != nil {
		p.smoother.Reset()
	}

	p.state.Store(int32(Calibrating))

	p.log.Info("posture: baseline reset", "reason", reason)
}

// skip returns the Outcome of a frame that did not reach the posture logic
func (p *Pipeline) skip() Outcome {

	p.skipped.Add(1)

	return Outcome{
		State:     p.sm.State(),
		Intensity: p.sm.Intensity(),
		Baseline:  p.cal.Baseline(),
		Skipped:   true,
	}
}

// inferenceFailed classifies an extractor error and escalates a run of
// consecutive transient failures to ErrBackendUnusable
func (p *Pipeline) inferenceFailed(err error) error {

	p.infFailures.Add(1)

	var infErr *InferenceError

	if !errors.As(err, &infErr) {
		infErr = &InferenceError{Err: err}
	}

	if infErr.Fatal {
		p.log.Error("posture: inference failed", "err", infErr)
		return infErr
	}

	p.failures++

	if p.failures >= p.cfg.MaxInferenceFailures {
		p.log.Error("posture: inference backend unusable", "failures", p.failures,
			"err", infErr)
		return fmt.Errorf("%w: %d consecutive failures: %w", ErrBackendUnusable,
			p.failures, infErr)
	}

	p.log.Debug("posture: skipping frame", "err", infErr, "failures", p.failures)
	return infErr
}

// toReference maps a pose from normalised tensor coordinates to reference
// frame pixels
func toReference(pose result.Pose, geom preprocess.Geometry) result.Pose {

	ref := pose.Clone()

	for i := range ref {
		ref[i].X, ref[i].Y = geom.ToReference(ref[i].X, ref[i].Y)
	}

	return ref
}

// FrameFunc receives each frame processed by Run along with the pass
// Outcome and any non fatal error.  The frame is closed after FrameFunc
// returns.  Returning an error stops Run
type FrameFunc func(frame *source.Frame, out Outcome, err error) error

// Run processes frames from the slot until the context is cancelled, the
// slot is closed, fn returns an error or a fatal error occurs.  Cancelling
// the context closes the slot
func (p *Pipeline) Run(ctx context.Context, slot *source.Slot, fn FrameFunc) error {

	stop := context.AfterFunc(ctx, slot.Close)
	defer stop()

	for {
		frame := slot.Next()

		if frame == nil {
			return nil
		}

		out, err := p.ProcessFrame(ctx, frame.Mat)

		if IsFatal(err) {
			frame.Close()
			return err
		}

		if fn != nil {
			if ferr := fn(frame, out, err); ferr != nil {
				frame.Close()
				return ferr
			}
		}

		frame.Close()
	}
}
