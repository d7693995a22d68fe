package odometry

import (
	"image"

	"github.com/golang/geo/r2"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/monovo/logging"
	"go.viam.com/monovo/rimage"
	"go.viam.com/monovo/vision/keypoints"
	"go.viam.com/monovo/vision/opticalflow"
)

// Correspondences are the points of the previous frame and their tracked positions in the current frame;
// index i of Prev and Curr is the same scene point.
type Correspondences struct {
	Prev []r2.Point
	Curr []r2.Point
	// Redetected is true when too few points survived and a fresh set was detected for the next frame.
	Redetected bool
	// MedianFlow is the median pixel displacement of the correspondences.
	MedianFlow float64
}

// Tracker follows features from frame to frame. It owns the last frame it has seen and its points.
type Tracker interface {
	// Initialize detects features on the first frame and returns how many were found.
	Initialize(frame *image.Gray) int
	// Track follows the current points into frame, which becomes the previous frame of the next call.
	Track(frame *image.Gray) (*Correspondences, error)
	// NumPoints is the number of points that the next Track call will follow.
	NumPoints() int
}

// FeatureTracker tracks FAST corners with pyramidal Lucas-Kanade and re-detects them when they run low.
type FeatureTracker struct {
	cfg       *TrackerConfig
	logger    logging.Logger
	prevFrame *image.Gray
	points    []r2.Point
}

// NewFeatureTracker returns a tracker with no frame yet.
func NewFeatureTracker(cfg *TrackerConfig, logger logging.Logger) *FeatureTracker {
	return &FeatureTracker{cfg: cfg, logger: logger}
}

// Initialize detects features on frame and keeps it as the previous frame.
func (ft *FeatureTracker) Initialize(frame *image.Gray) int {
	frame = rimage.MakeGray(frame)
	ft.prevFrame = frame
	ft.points = ft.detect(frame)
	ft.logger.Debugf("detected %d features on the first frame", len(ft.points))
	return len(ft.points)
}

// NumPoints is the number of points that the next Track call will follow.
func (ft *FeatureTracker) NumPoints() int {
	return len(ft.points)
}

// Track follows the current points into frame. When fewer than MinFeatures survive, the returned correspondences
// are still the tracked pairs, but the points kept for the next call are a fresh detection on frame.
func (ft *FeatureTracker) Track(frame *image.Gray) (*Correspondences, error) {
	if ft.prevFrame == nil {
		return nil, errors.New("tracker has no previous frame, call Initialize first")
	}
	frame = rimage.MakeGray(frame)
	prev, curr, err := TrackFeatures(ft.prevFrame, ft.points, frame, ft.cfg.Flow)
	if err != nil {
		return nil, err
	}
	result := &Correspondences{Prev: prev, Curr: curr, MedianFlow: MedianFlow(prev, curr)}
	ft.prevFrame = frame
	ft.points = curr
	if len(curr) < ft.cfg.MinFeatures {
		ft.points = ft.detect(frame)
		result.Redetected = true
		ft.logger.Infof("only %d features tracked, re-detected %d", len(curr), len(ft.points))
	}
	return result, nil
}

// detect finds the corners of frame, on a blurred copy when the tracker is configured to.
func (ft *FeatureTracker) detect(frame *image.Gray) []r2.Point {
	if ft.cfg.Blur {
		blurred, err := rimage.GaussianBlur(frame)
		if err != nil {
			ft.logger.Warnw("cannot blur frame, detecting on the raw frame", "error", err)
		} else {
			frame = blurred
		}
	}
	return DetectFeatures(frame, ft.cfg.FAST)
}

// TrackFeatures tracks prevPoints from prevFrame into currFrame and returns the points that were tracked inside
// the image, in both frames. Points are relative to the top left corner of the frames, whatever their origin.
func TrackFeatures(
	prevFrame *image.Gray,
	prevPoints []r2.Point,
	currFrame *image.Gray,
	cfg *opticalflow.LKConfig,
) ([]r2.Point, []r2.Point, error) {
	if len(prevPoints) == 0 {
		return []r2.Point{}, []r2.Point{}, nil
	}
	prevFrame, currFrame = rimage.MakeGray(prevFrame), rimage.MakeGray(currFrame)
	tracked, status, err := opticalflow.CalcOpticalFlowPyrLK(prevFrame, currFrame, prevPoints, cfg)
	if err != nil {
		return nil, nil, err
	}
	bounds := currFrame.Bounds()
	prev := make([]r2.Point, 0, len(prevPoints))
	curr := make([]r2.Point, 0, len(prevPoints))
	for i, ok := range status {
		pt := tracked[i]
		if !ok || pt.X < 0 || pt.Y < 0 || pt.X > float64(bounds.Dx()-1) || pt.Y > float64(bounds.Dy()-1) {
			continue
		}
		prev = append(prev, prevPoints[i])
		curr = append(curr, pt)
	}
	return prev, curr, nil
}

// DetectFeatures returns the FAST corners of frame as sub-pixel points relative to its top left corner.
func DetectFeatures(frame *image.Gray, cfg *keypoints.FASTConfig) []r2.Point {
	return keypoints.ComputeFAST(rimage.MakeGray(frame), cfg).ToR2()
}

// MedianFlow returns the median displacement between correspondent points, 0 for empty sets.
func MedianFlow(prev, curr []r2.Point) float64 {
	if len(prev) == 0 || len(prev) != len(curr) {
		return 0
	}
	flows := lo.Map(prev, func(p r2.Point, i int) float64 {
		return curr[i].Sub(p).Norm()
	})
	median, err := stats.Median(flows)
	if err != nil {
		return 0
	}
	return median
}
