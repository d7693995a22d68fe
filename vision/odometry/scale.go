package odometry

import (
	"math"

	"github.com/pkg/errors"
)

// SkipReason tells why a frame did not update the cumulative pose.
type SkipReason int

// The reasons a frame can leave the pose untouched.
const (
	SkipReasonNone SkipReason = iota
	SkipReasonBootstrap
	SkipReasonInsufficientCorrespondences
	SkipReasonEstimationDegeneracy
	SkipReasonScaleBelowNoiseFloor
	SkipReasonNonForwardMotion
)

func (r SkipReason) String() string {
	switch r {
	case SkipReasonNone:
		return "none"
	case SkipReasonBootstrap:
		return "bootstrap"
	case SkipReasonInsufficientCorrespondences:
		return "insufficient_correspondences"
	case SkipReasonEstimationDegeneracy:
		return "estimation_degeneracy"
	case SkipReasonScaleBelowNoiseFloor:
		return "scale_below_noise_floor"
	case SkipReasonNonForwardMotion:
		return "non_forward_motion"
	default:
		return "unknown"
	}
}

// Correction is the absolute scale of a step and whether its motion should be integrated.
type Correction struct {
	Scale    float64
	Accepted bool
	Reason   SkipReason
}

// ScaleCorrector recovers the absolute scale of a step from a trajectory source and gates unreliable motion.
type ScaleCorrector struct {
	source TrajectorySource
	cfg    *ScaleConfig
}

// NewScaleCorrector returns a corrector reading scales from source.
func NewScaleCorrector(source TrajectorySource, cfg *ScaleConfig) *ScaleCorrector {
	return &ScaleCorrector{source: source, cfg: cfg}
}

// Scale returns the distance travelled between frameID-1 and frameID according to the source.
func (sc *ScaleCorrector) Scale(frameID int) (float64, error) {
	if frameID < 1 {
		return 0, errors.Wrapf(ErrGroundTruthIndex, "scale needs a previous frame, got frame %d", frameID)
	}
	prev, err := sc.source.Translation(frameID - 1)
	if err != nil {
		return 0, err
	}
	curr, err := sc.source.Translation(frameID)
	if err != nil {
		return 0, err
	}
	return curr.Sub(prev).Norm(), nil
}

// Correct returns the scale of frameID and accepts motion only above the noise floor and, when the forward gate
// is on, with a translation dominated by its optical axis component.
func (sc *ScaleCorrector) Correct(frameID int, motion *Motion3D) (Correction, error) {
	scale, err := sc.Scale(frameID)
	if err != nil {
		return Correction{}, err
	}
	if scale < sc.cfg.NoiseFloor {
		return Correction{Scale: scale, Reason: SkipReasonScaleBelowNoiseFloor}, nil
	}
	if sc.cfg.ForwardGate && !isForward(motion, sc.cfg.ForwardDominance) {
		return Correction{Scale: scale, Reason: SkipReasonNonForwardMotion}, nil
	}
	return Correction{Scale: scale, Accepted: true}, nil
}

func isForward(motion *Motion3D, dominance float64) bool {
	t := motion.TranslationVector()
	forward := math.Abs(t.Z)
	return forward > dominance*math.Abs(t.X) && forward > dominance*math.Abs(t.Y)
}
