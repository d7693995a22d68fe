package main

import (
	"context"
	"fmt"
	"image"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"

	"go.viam.com/monovo/logging"
	"go.viam.com/monovo/rimage"
	"go.viam.com/monovo/rimage/transform"
	"go.viam.com/monovo/vision/odometry"
)

type runOptions struct {
	ImageDir       string
	PoseFile       string
	Frames         int
	ConfigFile     string
	IntrinsicsFile string
	OutFile        string
	ErrorPlotFile  string
}

// kittiCamera is the left gray camera of KITTI sequence 00.
func kittiCamera() *transform.PinholeCameraIntrinsics {
	return &transform.PinholeCameraIntrinsics{
		Width:  1241,
		Height: 376,
		Fx:     718.856,
		Fy:     718.856,
		Ppx:    607.1928,
		Ppy:    185.2157,
	}
}

func loadCamera(path string) (transform.CameraModel, error) {
	if path == "" {
		return kittiCamera(), nil
	}
	return transform.NewCameraModelFromJSONFile(path)
}

func loadConfig(path string) (*odometry.Config, error) {
	if path == "" {
		return odometry.DefaultConfig(), nil
	}
	return odometry.LoadConfig(path)
}

// loadFrame reads frame frameID of dir as a gray image.
func loadFrame(dir string, frameID int) (*image.Gray, error) {
	path := filepath.Join(dir, fmt.Sprintf("%06d.png", frameID))
	img, err := imaging.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read frame %d", frameID)
	}
	return rimage.MakeGray(img), nil
}

func run(ctx context.Context, opts runOptions, logger logging.Logger) error {
	ref, err := odometry.LoadReferenceTrajectory(opts.PoseFile)
	if err != nil {
		return err
	}
	cam, err := loadCamera(opts.IntrinsicsFile)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(opts.ConfigFile)
	if err != nil {
		return err
	}
	engine, err := odometry.NewEngine(cam, ref, cfg, logger.Sublogger("engine"))
	if err != nil {
		return err
	}

	frames := opts.Frames
	if frames <= 0 {
		frames = ref.Len()
	}
	trajMap := newTrajectoryMap(frames)
	var errPlot errorPlot
	frameCh, workers := prefetchFrames(ctx, opts.ImageDir, frames)
	defer workers.Stop()
	processed := 0
	for frame := range frameCh {
		if err := ctx.Err(); err != nil {
			return err
		}
		if frame.err != nil {
			return frame.err
		}
		start := time.Now()
		if err := engine.Update(frame.img, frame.id); err != nil {
			return errors.Wrapf(err, "error processing frame %d", frame.id)
		}
		step := engine.LastStep()
		logger.Infof("%06d.png processed in %v (%s, %d tracked, %s)",
			frame.id, time.Since(start), step.Stage, step.Tracked, step.Reason)
		trajMap.Add(frame.id, engine.CurrentTranslation(), engine.TrueTranslation())
		errPlot.Add(frame.id, engine.CurrentTranslation(), engine.TrueTranslation())
		processed++
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if processed != frames {
		return errors.Errorf("processed %d frames out of %d", processed, frames)
	}
	final := engine.CurrentTranslation()
	truth := engine.TrueTranslation()
	logger.Infow("trajectory done",
		"frames", processed,
		"x", final.X, "y", final.Y, "z", final.Z,
		"error", final.Sub(truth).Norm(),
	)
	if err := trajMap.SavePNG(opts.OutFile); err != nil {
		return err
	}
	if opts.ErrorPlotFile == "" {
		return nil
	}
	return errPlot.Save(opts.ErrorPlotFile)
}
