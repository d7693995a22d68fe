package odometry

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"
)

func TestIntegrate(t *testing.T) {
	quarter := rotationY(math.Pi / 2)
	pose := Pose{Rotation: quarter, Translation: r3.Vector{X: 1, Y: 2, Z: 3}}
	motion := NewMotion3DFromRotationTranslation(rotationY(0.1), mat.NewDense(3, 1, []float64{0, 0, 1}))

	next := Integrate(pose, motion, 2)
	// the translation moves along the pre-update rotation: R_y(90) * (0, 0, 1) = (1, 0, 0)
	test.That(t, next.Translation.X, test.ShouldAlmostEqual, 3.0, 1e-12)
	test.That(t, next.Translation.Y, test.ShouldAlmostEqual, 2.0, 1e-12)
	test.That(t, next.Translation.Z, test.ShouldAlmostEqual, 3.0, 1e-12)
	var expected mat.Dense
	expected.Mul(rotationY(0.1), quarter)
	test.That(t, mat.EqualApprox(next.Rotation, &expected, 1e-12), test.ShouldBeTrue)

	// inputs are untouched
	test.That(t, mat.Equal(pose.Rotation, rotationY(math.Pi/2)), test.ShouldBeTrue)
	test.That(t, pose.Translation, test.ShouldResemble, r3.Vector{X: 1, Y: 2, Z: 3})
	test.That(t, motion.TranslationVector(), test.ShouldResemble, r3.Vector{Z: 1})
}

func TestIntegrateIdentityRotation(t *testing.T) {
	start := Pose{Rotation: rotationY(0.3), Translation: r3.Vector{X: -2}}
	identity := NewMotion3DFromRotationTranslation(eye3(), mat.NewDense(3, 1, []float64{0, 0, 1}))
	pose := start
	for i := 0; i < 25; i++ {
		pose = Integrate(pose, identity, 1.5)
	}
	test.That(t, mat.EqualApprox(pose.Rotation, start.Rotation, 1e-12), test.ShouldBeTrue)
	// every step moved along the same world direction
	test.That(t, pose.Translation.X, test.ShouldAlmostEqual, -2+25*1.5*math.Sin(0.3), 1e-9)
	test.That(t, pose.Translation.Z, test.ShouldAlmostEqual, 25*1.5*math.Cos(0.3), 1e-9)
}

func TestSeedPose(t *testing.T) {
	motion := NewMotion3DFromRotationTranslation(rotationY(0.2), mat.NewDense(3, 1, []float64{0.6, 0, 0.8}))
	pose := SeedPose(motion)
	test.That(t, pose.Translation, test.ShouldResemble, r3.Vector{X: 0.6, Z: 0.8})
	test.That(t, mat.Equal(pose.Rotation, motion.Rotation), test.ShouldBeTrue)
	pose.Rotation.Set(0, 0, 5)
	test.That(t, motion.Rotation.At(0, 0), test.ShouldNotEqual, 5.0)

	identity := NewPose()
	test.That(t, mat.Equal(identity.Rotation, eye3()), test.ShouldBeTrue)
	copied := identity.Copy()
	copied.Rotation.Set(1, 1, 3)
	test.That(t, identity.Rotation.At(1, 1), test.ShouldEqual, 1.0)
}
