// Package main runs monocular visual odometry over an image sequence and draws the estimated trajectory next to
// the reference one.
package main

import (
	"os"

	"github.com/urfave/cli/v2"

	"go.viam.com/monovo/logging"
)

const (
	flagImageDir   = "image-dir"
	flagPoseFile   = "pose-file"
	flagFrames     = "frames"
	flagConfig     = "config"
	flagIntrinsics = "intrinsics"
	flagOut        = "out"
	flagErrorPlot  = "error-plot"
	flagDebug      = "debug"
)

func main() {
	logger := logging.NewLogger("monovo")
	if err := newApp(logger).Run(os.Args); err != nil {
		logger.Fatal(err)
	}
}

func newApp(logger logging.Logger) *cli.App {
	return &cli.App{
		Name:  "monovo",
		Usage: "estimate the trajectory of a camera from a sequence of images",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     flagImageDir,
				Required: true,
				Usage:    "directory holding the frames as `DIR`/000000.png, 000001.png, ...",
			},
			&cli.StringFlag{
				Name:     flagPoseFile,
				Required: true,
				Usage:    "reference trajectory `FILE`, one flattened 3x4 pose per line",
			},
			&cli.IntFlag{
				Name:  flagFrames,
				Usage: "number of frames to process, all the reference poses when 0",
			},
			&cli.StringFlag{
				Name:  flagConfig,
				Usage: "load engine configuration from `FILE`",
			},
			&cli.StringFlag{
				Name:  flagIntrinsics,
				Usage: "load camera intrinsics and distortion from `FILE`, KITTI sequence 00 when empty",
			},
			&cli.StringFlag{
				Name:  flagOut,
				Value: "map.png",
				Usage: "write the trajectory map to `FILE`",
			},
			&cli.StringFlag{
				Name:  flagErrorPlot,
				Usage: "also plot the translation error of every frame to `FILE`",
			},
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "enable debug logging",
			},
		},
		Action: func(c *cli.Context) error {
			if c.Bool(flagDebug) {
				logger = logging.NewDebugLogger("monovo")
			}
			logging.ReplaceGlobal(logger)
			return run(c.Context, runOptions{
				ImageDir:       c.String(flagImageDir),
				PoseFile:       c.String(flagPoseFile),
				Frames:         c.Int(flagFrames),
				ConfigFile:     c.String(flagConfig),
				IntrinsicsFile: c.String(flagIntrinsics),
				OutFile:        c.String(flagOut),
				ErrorPlotFile:  c.String(flagErrorPlot),
			}, logger)
		},
	}
}
