package main

import (
	"context"
	"flag"
	"fmt"
	"github.com/swdee/go-posture"
	"github.com/swdee/go-posture/preprocess"
	"github.com/swdee/go-posture/render"
	"github.com/swdee/go-posture/source"
	"github.com/swdee/go-rknnlite"
	"gocv.io/x/gocv"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
)

func main() {
	// disable logging timestamps
	log.SetFlags(0)

	// read in cli flags
	modelFile := flag.String("m", "../data/movenet-singlepose-lightning-rk3588.rknn", "RKNN compiled MoveNet model file")
	configFile := flag.String("c", "", "YAML configuration file, defaults are used if not set")
	inDir := flag.String("i", "../data/frames", "Directory of image frames to replay")
	outDir := flag.String("o", "", "Directory to save annotated frames to, not saved if not set")
	watch := flag.Bool("watch", false, "After replaying, watch the directory for new frames")
	flag.Parse()

	cfg := posture.DefaultConfig()

	if *configFile != "" {
		var err error
		cfg, err = posture.LoadConfig(*configFile)

		if err != nil {
			log.Fatal("Error loading config: ", err)
		}
	}

	ext, err := posture.NewRuntimeExtractor(*modelFile, rknnlite.NPUCoreAuto,
		cfg.InferenceTimeout, cfg.InputFloat32)

	if err != nil {
		log.Fatal("Error initializing landmark extractor: ", err)
	}

	defer ext.Close()

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

	if *outDir != "" {
		if err := os.MkdirAll(*outDir, 0755); err != nil {
			log.Fatal("Error creating output directory: ", err)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt,
		syscall.SIGTERM)
	defer cancel()

	files, err := source.ListImages(*inDir)

	if err != nil {
		log.Fatal("Error listing frames: ", err)
	}

	log.Printf("Replaying %d frames from %s\n", len(files), *inDir)

	for i, file := range files {
		if ctx.Err() != nil {
			break
		}

		img, err := source.LoadImage(file)

		if err != nil {
			log.Printf("Skipping %s: %v\n", file, err)
			continue
		}

		out, err := pipeline.ProcessFrame(ctx, img)
		report(file, out, err)

		if posture.IsFatal(err) {
			img.Close()
			log.Fatal("Pipeline stopped: ", err)
		}

		if *outDir != "" {
			save(img, out, cfg, filepath.Join(*outDir, fmt.Sprintf("%05d.jpg", i)))
		}

		img.Close()
	}

	if *watch {
		dir, err := source.NewDir(*inDir, slog.Default())

		if err != nil {
			log.Fatal("Error watching directory: ", err)
		}

		defer dir.Close()

		slot := source.NewSlot()

		go func() {
			if err := dir.Run(ctx, slot); err != nil {
				log.Printf("Directory watch stopped: %v\n", err)
			}
		}()

		log.Printf("Watching %s for new frames\n", *inDir)

		err = pipeline.Run(ctx, slot, func(f *source.Frame, out posture.Outcome,
			err error) error {

			report(fmt.Sprintf("frame %d", f.Seq), out, err)

			if *outDir != "" {
				save(f.Mat, out, cfg, filepath.Join(*outDir,
					fmt.Sprintf("watch-%05d.jpg", f.Seq)))
			}

			return nil
		})

		if err != nil {
			log.Printf("Pipeline stopped: %v\n", err)
		}
	}

	stats := pipeline.Stats()
	log.Printf("Processed=%d, Skipped=%d, InferenceFailures=%d, Transitions=%d\n",
		stats.Processed, stats.Skipped, stats.InferenceFailures, stats.Transitions)

	log.Println("done")
}

// report prints the outcome of a frame
func report(name string, out posture.Outcome, err error) {

	if err != nil {
		log.Printf("%s: %s skipped=%v err=%v\n", name, out.State, out.Skipped, err)
		return
	}

	if out.Sample.Valid {
		log.Printf("%s: %s deviation=%.1fpx intensity=%.2f\n", name, out.State,
			out.Sample.Value, out.Intensity)
		return
	}

	log.Printf("%s: %s\n", name, out.State)
}

// save writes the annotated frame to file
func save(img gocv.Mat, out posture.Outcome, cfg posture.Config, file string) {

	annotated := gocv.NewMat()
	defer annotated.Close()

	if !cfg.Rotation.Apply(img, &annotated) {
		img.CopyTo(&annotated)
	}

	m := render.NewMapping(annotated, cfg.FrameWidth, cfg.FrameHeight)

	if out.Pose != nil {
		render.PoseKeyPoints(&annotated, out.Pose, m, cfg.MinConfidence, 2)
	}

	render.PostureStatus(&annotated, out, cfg, render.DefaultFont(), 2)

	if ok := gocv.IMWrite(file, annotated); !ok {
		log.Printf("Error saving annotated frame %s\n", file)
	}
}
