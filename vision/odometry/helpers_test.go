package odometry

import (
	"image"
	"image/color"
	"math"
	"math/rand"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/monovo/rimage/transform"
)

func kittiIntrinsics() *transform.PinholeCameraIntrinsics {
	return &transform.PinholeCameraIntrinsics{
		Width:  1241,
		Height: 376,
		Fx:     718.856,
		Fy:     718.856,
		Ppx:    607.1928,
		Ppy:    185.2157,
	}
}

func rotationY(theta float64) *mat.Dense {
	c, s := math.Cos(theta), math.Sin(theta)
	return mat.NewDense(3, 3, []float64{
		c, 0, s,
		0, 1, 0,
		-s, 0, c,
	})
}

func forwardMotion() *Motion3D {
	return NewMotion3DFromRotationTranslation(eye3(), mat.NewDense(3, 1, []float64{0, 0, 1}))
}

func straightTrajectory(n int, step float64) ReferenceTrajectory {
	ref := make(ReferenceTrajectory, n)
	for i := range ref {
		ref[i] = r3.Vector{Z: step * float64(i)}
	}
	return ref
}

// syntheticCorrespondences projects random scene points seen by the previous camera and by the current camera,
// where X_prev = rot * X_curr + trans. A fraction of the current points are replaced by random pixels.
func syntheticCorrespondences(
	intrinsics *transform.PinholeCameraIntrinsics,
	rot, trans *mat.Dense,
	n int,
	outlierRatio float64,
	rnd *rand.Rand,
) ([]r2.Point, []r2.Point) {
	motion := NewMotion3DFromRotationTranslation(rot, trans)
	t := motion.TranslationVector()
	// X_curr = rot^T * (X_prev - trans)
	var rotT mat.Dense
	rotT.CloneFrom(rot.T())
	prev := make([]r2.Point, 0, n)
	curr := make([]r2.Point, 0, n)
	for attempts := 0; len(prev) < n && attempts < 100*n; attempts++ {
		z := 5 + 35*rnd.Float64()
		xPrev := r3.Vector{X: (rnd.Float64() - 0.5) * z, Y: (rnd.Float64() - 0.5) * 0.3 * z, Z: z}
		d := xPrev.Sub(t)
		xCurr := r3.Vector{
			X: rotT.At(0, 0)*d.X + rotT.At(0, 1)*d.Y + rotT.At(0, 2)*d.Z,
			Y: rotT.At(1, 0)*d.X + rotT.At(1, 1)*d.Y + rotT.At(1, 2)*d.Z,
			Z: rotT.At(2, 0)*d.X + rotT.At(2, 1)*d.Y + rotT.At(2, 2)*d.Z,
		}
		if xCurr.Z <= 1 {
			continue
		}
		pPrev := intrinsics.Project(xPrev)
		pCurr := intrinsics.Project(xCurr)
		if !intrinsics.Contains(pPrev) || !intrinsics.Contains(pCurr) {
			continue
		}
		if rnd.Float64() < outlierRatio {
			pCurr = r2.Point{
				X: rnd.Float64() * float64(intrinsics.Width-1),
				Y: rnd.Float64() * float64(intrinsics.Height-1),
			}
		}
		prev = append(prev, pPrev)
		curr = append(curr, pCurr)
	}
	return prev, curr
}

// syntheticTracker ignores the images and returns projections of a random scene moved by motion(frame).
type syntheticTracker struct {
	intrinsics   *transform.PinholeCameraIntrinsics
	motion       func(frame int) *Motion3D
	n            int
	outlierRatio float64
	rnd          *rand.Rand
	frame        int
}

func newSyntheticTracker(motion func(frame int) *Motion3D, n int, outlierRatio float64) *syntheticTracker {
	return &syntheticTracker{
		intrinsics:   kittiIntrinsics(),
		motion:       motion,
		n:            n,
		outlierRatio: outlierRatio,
		rnd:          rand.New(rand.NewSource(42)),
	}
}

func (st *syntheticTracker) Initialize(frame *image.Gray) int {
	st.frame = 0
	return st.n
}

func (st *syntheticTracker) Track(frame *image.Gray) (*Correspondences, error) {
	st.frame++
	m := st.motion(st.frame)
	prev, curr := syntheticCorrespondences(st.intrinsics, m.Rotation, m.Translation, st.n, st.outlierRatio, st.rnd)
	return &Correspondences{Prev: prev, Curr: curr, MedianFlow: MedianFlow(prev, curr)}, nil
}

func (st *syntheticTracker) NumPoints() int {
	return st.n
}

// stationaryTracker returns the same points in both frames.
type stationaryTracker struct {
	points []r2.Point
}

func (st *stationaryTracker) Initialize(frame *image.Gray) int {
	return len(st.points)
}

func (st *stationaryTracker) Track(frame *image.Gray) (*Correspondences, error) {
	return &Correspondences{Prev: st.points, Curr: st.points}, nil
}

func (st *stationaryTracker) NumPoints() int {
	return len(st.points)
}

// stubEstimator returns a fixed motion or a fixed error.
type stubEstimator struct {
	motion *Motion3D
	err    error
	calls  int
}

func (se *stubEstimator) Estimate(prev, curr []r2.Point) (*MotionEstimate, error) {
	se.calls++
	if se.err != nil {
		return nil, se.err
	}
	return &MotionEstimate{Motion3D: se.motion, Inliers: len(prev)}, nil
}

func grayFrame(intrinsics *transform.PinholeCameraIntrinsics) *image.Gray {
	return image.NewGray(image.Rect(0, 0, intrinsics.Width, intrinsics.Height))
}

// randomScene places n points in front of a camera at the origin, spread over its whole image, between 15 and 60
// meters away.
func randomScene(intrinsics *transform.PinholeCameraIntrinsics, n int, rnd *rand.Rand) []r3.Vector {
	scene := make([]r3.Vector, n)
	for i := range scene {
		px := r2.Point{
			X: rnd.Float64() * float64(intrinsics.Width-1),
			Y: rnd.Float64() * float64(intrinsics.Height-1),
		}
		z := 15 + 45*rnd.Float64()
		ray := intrinsics.Normalize(px)
		scene[i] = r3.Vector{X: ray.X * z, Y: ray.Y * z, Z: z}
	}
	return scene
}

// renderScene draws every scene point as a bright Gaussian blob, seen by a camera at (0, 0, cameraZ) looking
// along +Z.
func renderScene(intrinsics *transform.PinholeCameraIntrinsics, scene []r3.Vector, cameraZ float64) *image.Gray {
	const (
		background = 20.
		peak       = 180.
		sigma      = 1.2
		radius     = 4
	)
	w, h := intrinsics.Width, intrinsics.Height
	acc := make([]float64, w*h)
	for i := range acc {
		acc[i] = background
	}
	for _, pt := range scene {
		c := pt.Sub(r3.Vector{Z: cameraZ})
		if c.Z <= 1 {
			continue
		}
		center := intrinsics.Project(c)
		x0, y0 := int(math.Floor(center.X)), int(math.Floor(center.Y))
		for y := y0 - radius; y <= y0+radius; y++ {
			if y < 0 || y >= h {
				continue
			}
			for x := x0 - radius; x <= x0+radius; x++ {
				if x < 0 || x >= w {
					continue
				}
				dx, dy := float64(x)-center.X, float64(y)-center.Y
				acc[y*w+x] += peak * math.Exp(-(dx*dx+dy*dy)/(2*sigma*sigma))
			}
		}
	}
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{uint8(math.Min(255, math.Round(acc[y*w+x])))})
		}
	}
	return img
}
