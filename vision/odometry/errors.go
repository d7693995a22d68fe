package odometry

import "github.com/pkg/errors"

// Structural misuse of the engine. Update returns these wrapped with context and leaves the engine untouched.
var (
	// ErrGroundTruthIndex is returned when the reference trajectory has no pose for the requested frame.
	ErrGroundTruthIndex = errors.New("reference trajectory has no pose for frame")
	// ErrDimensionMismatch is returned when an image does not have the size of the camera intrinsics.
	ErrDimensionMismatch = errors.New("image size does not match camera intrinsics")
	// ErrFrameOrder is returned when a frame id is not the number of prior successful updates.
	ErrFrameOrder = errors.New("frame id out of order")
)

// Per-frame geometric failures. The engine absorbs these and records them in the StepResult.
var (
	// ErrInsufficientCorrespondences is returned when fewer than 8 correspondences are available.
	ErrInsufficientCorrespondences = errors.New("not enough correspondences to estimate motion")
	// ErrEstimationDegeneracy is returned when no essential matrix explains enough of the correspondences,
	// none of its decompositions puts the points in front of both cameras, or the parallax is too small.
	ErrEstimationDegeneracy = errors.New("correspondences are degenerate for motion estimation")
)

// minCorrespondences is the size of the minimal set of the 8 point algorithm.
const minCorrespondences = 8
