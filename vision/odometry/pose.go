package odometry

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// Pose is the cumulative world frame pose of the camera.
type Pose struct {
	Rotation    *mat.Dense
	Translation r3.Vector
}

// NewPose returns the identity pose.
func NewPose() Pose {
	return Pose{Rotation: eye3(), Translation: r3.Vector{}}
}

// Copy returns a deep copy of the pose.
func (p Pose) Copy() Pose {
	return Pose{Rotation: mat.DenseCopyOf(p.Rotation), Translation: p.Translation}
}

// Integrate composes a scaled relative motion onto pose. The translation is moved along the rotated motion
// using the rotation from before the update, then the rotations are composed. Inputs are not modified.
func Integrate(pose Pose, motion *Motion3D, scale float64) Pose {
	var step mat.VecDense
	step.MulVec(pose.Rotation, motion.Translation.ColView(0))
	delta := r3.Vector{X: step.AtVec(0), Y: step.AtVec(1), Z: step.AtVec(2)}.Mul(scale)
	var rot mat.Dense
	rot.Mul(motion.Rotation, pose.Rotation)
	return Pose{Rotation: &rot, Translation: pose.Translation.Add(delta)}
}

// SeedPose returns the pose of the second frame: the unscaled first relative motion.
func SeedPose(motion *Motion3D) Pose {
	return Pose{
		Rotation:    mat.DenseCopyOf(motion.Rotation),
		Translation: motion.TranslationVector(),
	}
}

func eye3() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	})
}
