package main

import (
	"context"
	"errors"
	"flag"
	"github.com/swdee/go-posture"
	"github.com/swdee/go-posture/overlay"
	"github.com/swdee/go-posture/preprocess"
	"github.com/swdee/go-posture/render"
	"github.com/swdee/go-posture/source"
	"github.com/swdee/go-rknnlite"
	"gocv.io/x/gocv"
	"image"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// errQuit is returned from the frame callback when the user quits
var errQuit = errors.New("quit")

func main() {
	// disable logging timestamps
	log.SetFlags(0)

	// read in cli flags
	modelFile := flag.String("m", "../data/movenet-singlepose-lightning-rk3588.rknn", "RKNN compiled MoveNet model file")
	configFile := flag.String("c", "", "YAML configuration file, defaults are used if not set")
	device := flag.String("d", "0", "Camera device index or video file")
	debug := flag.Bool("debug", true, "Show debug window with skeleton and baseline")
	fastCores := flag.Bool("fastcores", true, "Pin to the RK3588 fast CPU cores")
	flag.Parse()

	cfg := posture.DefaultConfig()

	if *configFile != "" {
		var err error
		cfg, err = posture.LoadConfig(*configFile)

		if err != nil {
			log.Fatal("Error loading config: ", err)
		}
	}

	if *fastCores {
		err := rknnlite.SetCPUAffinity(rknnlite.RK3588FastCores)

		if err != nil {
			log.Printf("Failed to set CPU Affinity: %v\n", err)
		}
	}

	ext, err := posture.NewRuntimeExtractor(*modelFile, rknnlite.NPUCoreAuto,
		cfg.InferenceTimeout, cfg.InputFloat32)

	if err != nil {
		log.Fatal("Error initializing landmark extractor: ", err)
	}

	defer ext.Close()

	if w, h := ext.InputSize(); w != cfg.ModelInputSize || h != cfg.ModelInputSize {
		log.Fatalf("Model input is %dx%d but model_input_size is %d", w, h,
			cfg.ModelInputSize)
	}

	pre, err := preprocess.NewPreprocessor(cfg.PreprocessParams())

	if err != nil {
		log.Fatal("Error creating preprocessor: ", err)
	}

	defer pre.Close()

	pipeline, err := posture.NewPipeline(cfg, pre, ext,
		posture.WithLogger(slog.Default()))

	if err != nil {
		log.Fatal("Error creating pipeline: ", err)
	}

	cam, err := source.NewCamera(source.CameraParams{
		Device: *device,
		Width:  cfg.FrameWidth,
		Height: cfg.FrameHeight,
	})

	if err != nil {
		log.Fatal("Error opening camera: ", err)
	}

	defer cam.Close()

	w, h := cam.Size()
	log.Printf("Camera capturing at %dx%d\n", w, h)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt,
		syscall.SIGTERM)
	defer cancel()

	slot := source.NewSlot()

	go func() {
		if err := cam.Run(ctx, slot); err != nil {
			log.Printf("Camera capture stopped: %v\n", err)
		}
		cancel()
	}()

	mon := newMonitor(cfg, pipeline, *debug)
	defer mon.Close()

	log.Println("Sit upright to calibrate, press 'r' to recalibrate and 'q' to quit")

	err = pipeline.Run(ctx, slot, mon.frame)

	if err != nil && !errors.Is(err, errQuit) {
		log.Printf("Pipeline stopped: %v\n", err)
	}

	stats := pipeline.Stats()
	log.Printf("Processed=%d, Skipped=%d, InferenceFailures=%d, Transitions=%d, Dropped=%d\n",
		stats.Processed, stats.Skipped, stats.InferenceFailures, stats.Transitions,
		slot.Drops())

	log.Println("done")
}

// monitor displays pipeline outcomes in the debug window and fades the bad
// posture overlay
type monitor struct {
	cfg      posture.Config
	pipeline *posture.Pipeline
	fader    *overlay.Fader
	trail    *render.Trail
	window   *gocv.Window
	display  gocv.Mat
	font     render.Font
}

func newMonitor(cfg posture.Config, p *posture.Pipeline, debug bool) *monitor {

	m := &monitor{
		cfg:      cfg,
		pipeline: p,
		fader:    overlay.NewFader(cfg.Overlay),
		trail:    render.NewTrail(150),
		display:  gocv.NewMat(),
		font:     render.DefaultFont(),
	}

	if debug {
		m.window = gocv.NewWindow("Posture")
	}

	return m
}

// frame is the pipeline callback run for every processed frame
func (m *monitor) frame(f *source.Frame, out posture.Outcome, err error) error {

	busy := errors.Is(err, posture.ErrPipelineBusy)

	if err != nil && !busy {
		log.Printf("Frame %d: %v\n", f.Seq, err)
	}

	// the reminder builds up while a bad streak is being confirmed and
	// fades as a good streak brings the state back to GOOD
	if !busy {
		m.fader.SetIntensity(out.Intensity)
	}

	alpha := m.fader.Update()

	if out.State == posture.Calibrating {
		m.trail.Reset()
	} else if !out.Skipped {
		m.trail.Add(out.Sample)
	}

	if m.window == nil {
		return nil
	}

	m.render(f.Mat, out, alpha)
	m.window.IMShow(m.display)

	switch m.window.WaitKey(1) {
	case 'r', 'R':
		log.Println("Posture reset")
		m.pipeline.ResetBaseline()
	case 'q', 'Q', 27:
		return errQuit
	}

	return nil
}

// render draws the debug view of the frame rotated and sized to the
// reference frame
func (m *monitor) render(frame gocv.Mat, out posture.Outcome, alpha uint8) {

	rotated := frame
	tmp := gocv.NewMat()
	defer tmp.Close()

	if m.cfg.Rotation.Apply(frame, &tmp) {
		rotated = tmp
	}

	gocv.Resize(rotated, &m.display, image.Pt(m.cfg.FrameWidth, m.cfg.FrameHeight),
		0, 0, gocv.InterpolationLinear)

	render.Overlay(&m.display, render.Red, alpha)

	if out.Pose != nil {
		render.PoseKeyPoints(&m.display, out.Pose,
			render.NewMapping(m.display, m.cfg.FrameWidth, m.cfg.FrameHeight),
			m.cfg.MinConfidence, 2)
	}

	render.PostureStatus(&m.display, out, m.cfg, m.font, 2)
	m.trail.Draw(&m.display, m.cfg.DeviationThreshold, render.DefaultTrailStyle())
}

// Close frees the window and display Mat
func (m *monitor) Close() {
	if m.window != nil {
		m.window.Close()
	}

	m.display.Close()
}
