package odometry

import (
	"math"
	"math/rand"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/monovo/logging"
	"go.viam.com/monovo/rimage/transform"
	"go.viam.com/monovo/utils"
)

// Motion3D contains the estimated 3D rotation and translation from 2 frames. They map points of the current camera
// into the previous one: X_prev = Rotation * X_curr + Translation.
type Motion3D struct {
	Rotation    *mat.Dense
	Translation *mat.Dense
}

// NewMotion3DFromRotationTranslation returns a new pointer to Motion3D from a rotation and a translation matrix.
func NewMotion3DFromRotationTranslation(rotation, translation *mat.Dense) *Motion3D {
	return &Motion3D{
		Rotation:    rotation,
		Translation: translation,
	}
}

// TranslationVector returns the translation as an r3.Vector.
func (m *Motion3D) TranslationVector() r3.Vector {
	return r3.Vector{X: m.Translation.At(0, 0), Y: m.Translation.At(1, 0), Z: m.Translation.At(2, 0)}
}

// MotionEstimate is a relative motion with unit translation and the statistics of its estimation.
type MotionEstimate struct {
	*Motion3D
	Inliers  int
	Parallax float64
}

// MotionEstimator estimates the relative motion of the camera between two frames from correspondences in pixels.
type MotionEstimator interface {
	Estimate(prev, curr []r2.Point) (*MotionEstimate, error)
}

// EssentialMotionEstimator estimates motion with a RANSAC essential matrix and a cheirality check.
// It is not safe for concurrent use.
type EssentialMotionEstimator struct {
	cam    transform.CameraModel
	cfg    *EstimatorConfig
	rnd    *rand.Rand
	logger logging.Logger
}

// NewEssentialMotionEstimator returns an estimator bound to a camera. Its random sampling is seeded from cfg so
// that runs are reproducible.
func NewEssentialMotionEstimator(cam transform.CameraModel, cfg *EstimatorConfig, logger logging.Logger,
) *EssentialMotionEstimator {
	return &EssentialMotionEstimator{
		cam:    cam,
		cfg:    cfg,
		rnd:    rand.New(rand.NewSource(cfg.Seed)), //nolint:gosec
		logger: logger,
	}
}

// Estimate returns the motion mapping the current camera into the previous one, with a unit translation.
// It fails with ErrInsufficientCorrespondences under 8 points and ErrEstimationDegeneracy when the points cannot
// constrain the motion.
func (me *EssentialMotionEstimator) Estimate(prev, curr []r2.Point) (*MotionEstimate, error) {
	if len(prev) != len(curr) {
		return nil, errors.Errorf("correspondent point sets have different lengths %d and %d", len(prev), len(curr))
	}
	if len(prev) < minCorrespondences {
		return nil, errors.Wrapf(ErrInsufficientCorrespondences, "got %d, need %d", len(prev), minCorrespondences)
	}
	parallax := MedianFlow(prev, curr)
	if parallax < me.cfg.MinParallaxPx {
		return nil, errors.Wrapf(ErrEstimationDegeneracy, "median parallax %.3f px below %.3f px",
			parallax, me.cfg.MinParallaxPx)
	}
	// camera 1 is the current frame, camera 2 the previous one
	pts1 := lo.Map(curr, func(p r2.Point, _ int) r2.Point { return me.cam.Normalize(p) })
	pts2 := lo.Map(prev, func(p r2.Point, _ int) r2.Point { return me.cam.Normalize(p) })

	essMat, inliers, err := me.ransacEssentialMatrix(pts1, pts2)
	if err != nil {
		return nil, err
	}
	in1 := lo.Filter(pts1, func(_ r2.Point, i int) bool { return inliers[i] })
	in2 := lo.Filter(pts2, func(_ r2.Point, i int) bool { return inliers[i] })
	rot, trans, nGood, err := transform.RecoverPose(essMat, in1, in2, me.cfg.DistanceThreshold)
	if err != nil {
		return nil, errors.Wrap(ErrEstimationDegeneracy, err.Error())
	}
	if nGood == 0 {
		return nil, errors.Wrap(ErrEstimationDegeneracy, "no decomposition puts the points in front of both cameras")
	}
	me.logger.Debugw("estimated motion", "inliers", len(in1), "in_front", nGood, "parallax", parallax)
	return &MotionEstimate{
		Motion3D: NewMotion3DFromRotationTranslation(rot, trans),
		Inliers:  len(in1),
		Parallax: parallax,
	}, nil
}

// ransacEssentialMatrix finds the essential matrix of normalized correspondences with the most Sampson inliers
// and refits it on them.
func (me *EssentialMotionEstimator) ransacEssentialMatrix(pts1, pts2 []r2.Point) (*mat.Dense, []bool, error) {
	n := len(pts1)
	threshold := utils.Square(me.cfg.RANSACThresholdPx / me.cam.Intrinsics().MeanFocal())
	minInliers := utils.MaxInt(minCorrespondences, int(math.Ceil(me.cfg.MinInlierRatio*float64(n))))

	var best *mat.Dense
	var bestMask []bool
	bestCount := 0
	scratch := utils.Range(n)
	sample1 := make([]r2.Point, minCorrespondences)
	sample2 := make([]r2.Point, minCorrespondences)
	maxIter := me.cfg.MaxIterations
	for iter := 0; iter < maxIter; iter++ {
		for k, idx := range utils.SampleDistinctIndices(minCorrespondences, scratch, me.rnd) {
			sample1[k] = pts1[idx]
			sample2[k] = pts2[idx]
		}
		candidate, err := transform.ComputeEssentialMatrix(sample1, sample2)
		if err != nil {
			continue
		}
		mask, count := sampsonInliers(candidate, pts1, pts2, threshold)
		if count > bestCount {
			best, bestMask, bestCount = candidate, mask, count
			maxIter = utils.MinInt(me.cfg.MaxIterations,
				ransacIterations(float64(count)/float64(n), me.cfg.Probability, minCorrespondences))
		}
	}
	if best == nil || bestCount < minInliers {
		return nil, nil, errors.Wrapf(ErrEstimationDegeneracy, "best model has %d inliers out of %d, need %d",
			bestCount, n, minInliers)
	}

	in1 := lo.Filter(pts1, func(_ r2.Point, i int) bool { return bestMask[i] })
	in2 := lo.Filter(pts2, func(_ r2.Point, i int) bool { return bestMask[i] })
	if refit, err := transform.ComputeEssentialMatrix(in1, in2); err == nil {
		if mask, count := sampsonInliers(refit, pts1, pts2, threshold); count >= bestCount {
			best, bestMask = refit, mask
		}
	}
	return best, bestMask, nil
}

func sampsonInliers(essMat *mat.Dense, pts1, pts2 []r2.Point, threshold float64) ([]bool, int) {
	mask := make([]bool, len(pts1))
	count := 0
	for i := range pts1 {
		if transform.SampsonDistance(essMat, pts1[i], pts2[i]) < threshold {
			mask[i] = true
			count++
		}
	}
	return mask, count
}

// ransacIterations is the number of samples of size sampleSize needed to draw an all inlier sample with the
// given probability when a fraction inlierRatio of the data are inliers.
func ransacIterations(inlierRatio, probability float64, sampleSize int) int {
	if inlierRatio >= 1 {
		return 1
	}
	outlierFree := math.Pow(inlierRatio, float64(sampleSize))
	if outlierFree <= 0 {
		return math.MaxInt32
	}
	num := math.Log(1 - probability)
	den := math.Log(1 - outlierFree)
	if den >= 0 {
		return math.MaxInt32
	}
	iterations := math.Ceil(num / den)
	if iterations > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(iterations)
}
