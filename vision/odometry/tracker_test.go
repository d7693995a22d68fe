package odometry

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"

	"go.viam.com/monovo/logging"
	"go.viam.com/monovo/rimage"
	"go.viam.com/monovo/vision/keypoints"
	"go.viam.com/monovo/vision/opticalflow"
)

// squaresImage draws 6x6 white squares every 16 pixels on a black 320x240 image, starting at offset.
func squaresImage(offset int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, 320, 240))
	for y0 := offset; y0+6 <= 240; y0 += 16 {
		for x0 := offset; x0+6 <= 320; x0 += 16 {
			for y := y0; y < y0+6; y++ {
				for x := x0; x < x0+6; x++ {
					img.SetGray(x, y, color.Gray{255})
				}
			}
		}
	}
	return img
}

func testTrackerConfig() *TrackerConfig {
	flow := opticalflow.DefaultLKConfig()
	flow.MaxLevel = 1
	return &TrackerConfig{
		MinFeatures: 10,
		FAST:        keypoints.DefaultFASTConfig(),
		Flow:        flow,
	}
}

func TestFeatureTracker(t *testing.T) {
	logger := logging.NewTestLogger(t)
	tracker := NewFeatureTracker(testTrackerConfig(), logger)

	_, err := tracker.Track(squaresImage(5))
	test.That(t, err, test.ShouldNotBeNil)

	blank := image.NewGray(image.Rect(0, 0, 320, 240))
	test.That(t, tracker.Initialize(blank), test.ShouldEqual, 0)
	test.That(t, tracker.NumPoints(), test.ShouldEqual, 0)

	// nothing to track, so the features are detected again on the new frame
	corr, err := tracker.Track(squaresImage(5))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, corr.Prev, test.ShouldBeEmpty)
	test.That(t, corr.Curr, test.ShouldBeEmpty)
	test.That(t, corr.Redetected, test.ShouldBeTrue)
	test.That(t, corr.MedianFlow, test.ShouldEqual, 0.0)
	detected := tracker.NumPoints()
	test.That(t, detected, test.ShouldBeGreaterThan, 100)

	corr, err = tracker.Track(squaresImage(6))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, corr.Redetected, test.ShouldBeFalse)
	test.That(t, len(corr.Curr), test.ShouldBeGreaterThanOrEqualTo, testTrackerConfig().MinFeatures)
	test.That(t, len(corr.Prev), test.ShouldEqual, len(corr.Curr))
	test.That(t, len(corr.Curr), test.ShouldBeGreaterThanOrEqualTo, detected*8/10)
	test.That(t, tracker.NumPoints(), test.ShouldEqual, len(corr.Curr))
	test.That(t, corr.MedianFlow, test.ShouldAlmostEqual, math.Sqrt2, 0.2)
	for _, pt := range corr.Curr {
		test.That(t, pt.X, test.ShouldBeBetweenOrEqual, 0.0, 319.0)
		test.That(t, pt.Y, test.ShouldBeBetweenOrEqual, 0.0, 239.0)
	}
}

func TestFeatureTrackerRedetects(t *testing.T) {
	cfg := testTrackerConfig()
	cfg.MinFeatures = 100000
	tracker := NewFeatureTracker(cfg, logging.NewTestLogger(t))
	first := tracker.Initialize(squaresImage(5))
	test.That(t, first, test.ShouldBeGreaterThan, 100)

	corr, err := tracker.Track(squaresImage(6))
	test.That(t, err, test.ShouldBeNil)
	// the pairs are still the tracked ones
	test.That(t, len(corr.Curr), test.ShouldBeGreaterThan, 0)
	test.That(t, len(corr.Curr), test.ShouldBeLessThanOrEqualTo, first)
	test.That(t, corr.Redetected, test.ShouldBeTrue)
	test.That(t, tracker.NumPoints(), test.ShouldEqual, len(DetectFeatures(squaresImage(6), cfg.FAST)))
}

func TestTrackerSubImageOrigin(t *testing.T) {
	cfg := testTrackerConfig()
	sub, ok := squaresImage(5).SubImage(image.Rect(10, 10, 310, 230)).(*image.Gray)
	test.That(t, ok, test.ShouldBeTrue)
	rebased := rimage.MakeGray(sub)
	test.That(t, rebased.Bounds().Min, test.ShouldResemble, image.Point{})

	pts := DetectFeatures(sub, cfg.FAST)
	test.That(t, len(pts), test.ShouldBeGreaterThan, 100)
	test.That(t, pts, test.ShouldResemble, DetectFeatures(rebased, cfg.FAST))

	prev, curr, err := TrackFeatures(sub, pts, sub, cfg.Flow)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(curr), test.ShouldBeGreaterThanOrEqualTo, len(pts)*95/100)
	for i := range curr {
		test.That(t, curr[i].Sub(prev[i]).Norm(), test.ShouldBeLessThan, 0.1)
	}

	tracker := NewFeatureTracker(cfg, logging.NewTestLogger(t))
	test.That(t, tracker.Initialize(sub), test.ShouldEqual, len(pts))
	corr, err := tracker.Track(rimage.MakeGray(squaresImage(6).SubImage(image.Rect(10, 10, 310, 230))))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(corr.Curr), test.ShouldBeGreaterThanOrEqualTo, len(pts)*8/10)
	test.That(t, corr.MedianFlow, test.ShouldAlmostEqual, math.Sqrt2, 0.2)
}

func TestFeatureTrackerBlur(t *testing.T) {
	cfg := testTrackerConfig()
	cfg.Blur = true
	img := squaresImage(5)
	blurred, err := rimage.GaussianBlur(img)
	test.That(t, err, test.ShouldBeNil)

	tracker := NewFeatureTracker(cfg, logging.NewTestLogger(t))
	test.That(t, tracker.Initialize(img), test.ShouldEqual, len(DetectFeatures(blurred, cfg.FAST)))

	corr, err := tracker.Track(squaresImage(6))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(corr.Prev), test.ShouldEqual, len(corr.Curr))
}

func TestTrackFeaturesEmpty(t *testing.T) {
	img := squaresImage(5)
	prev, curr, err := TrackFeatures(img, nil, img, opticalflow.DefaultLKConfig())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, prev, test.ShouldNotBeNil)
	test.That(t, curr, test.ShouldNotBeNil)
	test.That(t, prev, test.ShouldBeEmpty)
	test.That(t, curr, test.ShouldBeEmpty)
}

func TestMedianFlow(t *testing.T) {
	prev := []r2.Point{{X: 0, Y: 0}, {X: 10, Y: 10}, {X: 5, Y: 5}}
	curr := []r2.Point{{X: 3, Y: 4}, {X: 10, Y: 11}, {X: 5, Y: 25}}
	test.That(t, MedianFlow(prev, curr), test.ShouldEqual, 5.0)
	test.That(t, MedianFlow(nil, nil), test.ShouldEqual, 0.0)
	test.That(t, MedianFlow(prev, curr[:2]), test.ShouldEqual, 0.0)
}
