package transform

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Two view conventions: pts1 are seen by camera 1 with projection [I|0] and pts2 by camera 2 with projection
// [R|t], so that X2 = R*X1 + t and pts2^T * E * pts1 = 0 for E = [t]x * R.

// GetEssentialMatrixFromFundamental returns the essential matrix from the fundamental matrix and intrinsics parameters.
// The result is projected onto the essential manifold, its singular values being (1, 1, 0).
func GetEssentialMatrixFromFundamental(k1, k2, f *mat.Dense) (*mat.Dense, error) {
	var essMat, tmp mat.Dense
	tmp.Mul(transposeDense(k2), f)
	essMat.Mul(&tmp, k1)
	// enforce rank 2 with equal singular values
	mats := performSVD(&essMat)
	if mats == nil {
		return nil, errors.New("SVD of the essential matrix did not converge")
	}
	S := eye(3)
	S.Set(2, 2, 0)

	essMat.Mul(mats.U, S)
	essMat.Mul(&essMat, mats.VT)
	return &essMat, nil
}

// ComputeEssentialMatrix estimates E from at least 8 correspondences given in normalized image coordinates.
func ComputeEssentialMatrix(pts1, pts2 []r2.Point) (*mat.Dense, error) {
	f, err := ComputeFundamentalMatrixAllPoints(pts1, pts2, true)
	if err != nil {
		return nil, err
	}
	return GetEssentialMatrixFromFundamental(eye(3), eye(3), f)
}

// DecomposeEssentialMatrix decomposes the Essential matrix into 2 possible 3D rotations and a 3D translation.
// The translation is known up to its sign, so the four candidate poses are (R1, t), (R1, -t), (R2, t), (R2, -t).
func DecomposeEssentialMatrix(essMat *mat.Dense) (*mat.Dense, *mat.Dense, *mat.Dense, error) {
	// svd
	mats := performSVD(essMat)
	if mats == nil {
		return nil, nil, nil, errors.New("SVD of the essential matrix did not converge")
	}
	// check determinant sign of U and V
	if mat.Det(mats.U) < 0 {
		mats.U.Scale(-1, mats.U)
	}
	if mat.Det(mats.VT) < 0 {
		mats.VT.Scale(-1, mats.VT)
	}
	// create matrix W
	W := mat.NewDense(3, 3, nil)
	W.Set(0, 1, 1)
	W.Set(1, 0, -1)
	W.Set(2, 2, 1)
	// compute possible poses
	var R1, R2 mat.Dense
	// UWV^T
	R1.Mul(mats.U, W)
	R1.Mul(&R1, mats.VT)
	U3 := mats.U.ColView(2)
	t := mat.NewDense(3, 1, []float64{U3.AtVec(0), U3.AtVec(1), U3.AtVec(2)})
	// UW^TV^T
	R2.Mul(mats.U, transposeDense(W))
	R2.Mul(&R2, mats.VT)
	return &R1, &R2, t, nil
}

// Convert2DPointsToHomogeneousPoints converts float64 image coordinates to homogeneous float64 coordinates.
func Convert2DPointsToHomogeneousPoints(pts []r2.Point) []r3.Vector {
	ptsHomogeneous := make([]r3.Vector, len(pts))
	for i, pt := range pts {
		ptsHomogeneous[i] = r3.Vector{
			X: pt.X,
			Y: pt.Y,
			Z: 1,
		}
	}
	return ptsHomogeneous
}

// ComputeFundamentalMatrixAllPoints compute the fundamental matrix from all points with the 8 point algorithm.
// F is returned with unit Frobenius norm.
func ComputeFundamentalMatrixAllPoints(pts1, pts2 []r2.Point, normalize bool) (*mat.Dense, error) {
	if len(pts1) != len(pts2) {
		return nil, errors.New("sets of points pts1 and pts2 must have the same number of elements")
	}
	if len(pts1) < 8 {
		return nil, errors.New("sets of points must have at least 8 elements")
	}
	nPoints := len(pts1)

	var points1, points2 []r2.Point
	var T1, T2 *mat.Dense

	// if normalize, normalize points and get transform
	if normalize {
		points1, T1 = normalizePoints(pts1)
		points2, T2 = normalizePoints(pts2)
	} else {
		points1 = make([]r2.Point, nPoints)
		copy(points1, pts1)
		points2 = make([]r2.Point, nPoints)
		copy(points2, pts2)
		T1 = eye(3)
		T2 = eye(3)
	}

	m := mat.NewDense(nPoints, 9, nil)
	for i := range points1 {
		v1 := points1[i]
		v2 := points2[i]
		row := []float64{
			v2.X * v1.X, v2.X * v1.Y, v2.X,
			v2.Y * v1.X, v2.Y * v1.Y, v2.Y,
			v1.X, v1.Y, 1,
		}
		m.SetRow(i, row)
	}

	// the null vector of m is the eigenvector of m^T m with the smallest eigenvalue
	var mtm mat.Dense
	mtm.Mul(m.T(), m)
	mats1 := performSVD(&mtm)
	if mats1 == nil {
		return nil, errors.New("SVD of the 8 point system did not converge")
	}
	lastColV := mats1.V.ColView(8)

	// reshape into F
	lastColVdata := make([]float64, 9)
	for i := range lastColVdata {
		lastColVdata[i] = lastColV.AtVec(i)
	}
	F := mat.NewDense(3, 3, lastColVdata)

	// enforce rank 2 of F
	mats2 := performSVD(F)
	if mats2 == nil {
		return nil, errors.New("SVD of the fundamental matrix did not converge")
	}
	S := mats2.S
	S.Set(2, 2, 0)

	// get refined F: U@S@V2^T
	Fhat := mat.NewDense(3, 3, nil)
	Fhat.Mul(mats2.U, S)
	F.Mul(Fhat, mats2.VT)
	// rescale F: T2^T @ F @ T1
	T2T := transposeDense(T2)
	F.Mul(T2T, F)
	F.Mul(F, T1)

	norm := mat.Norm(F, 2)
	if norm == 0 {
		return nil, errors.New("fundamental matrix is zero")
	}
	F.Scale(1/norm, F)

	return F, nil
}

// SampsonDistance returns the first order approximation of the squared reprojection error of the correspondence
// (pt1, pt2) with respect to the epipolar constraint pt2^T * F * pt1 = 0.
func SampsonDistance(f *mat.Dense, pt1, pt2 r2.Point) float64 {
	x1 := Convert2DPointsToHomogeneousPoints([]r2.Point{pt1})[0]
	x2 := Convert2DPointsToHomogeneousPoints([]r2.Point{pt2})[0]
	// F * x1
	fx1 := r3.Vector{
		X: f.At(0, 0)*x1.X + f.At(0, 1)*x1.Y + f.At(0, 2),
		Y: f.At(1, 0)*x1.X + f.At(1, 1)*x1.Y + f.At(1, 2),
		Z: f.At(2, 0)*x1.X + f.At(2, 1)*x1.Y + f.At(2, 2),
	}
	// F^T * x2
	ftx2 := r3.Vector{
		X: f.At(0, 0)*x2.X + f.At(1, 0)*x2.Y + f.At(2, 0),
		Y: f.At(0, 1)*x2.X + f.At(1, 1)*x2.Y + f.At(2, 1),
	}
	num := x2.Dot(fx1)
	den := fx1.X*fx1.X + fx1.Y*fx1.Y + ftx2.X*ftx2.X + ftx2.Y*ftx2.Y
	if den == 0 {
		return math.Inf(1)
	}
	return num * num / den
}

// ProjectionMatrix stacks a rotation and a translation into the 3x4 matrix [R|t].
func ProjectionMatrix(rot, trans *mat.Dense) *mat.Dense {
	p := mat.NewDense(3, 4, nil)
	p.Slice(0, 3, 0, 3).(*mat.Dense).Copy(rot)
	p.Slice(0, 3, 3, 4).(*mat.Dense).Copy(trans)
	return p
}

// TriangulatePoint computes the 3D point seen at pt1 through projection p1 and at pt2 through projection p2 with the
// linear (DLT) method. It returns false when the point is at infinity.
func TriangulatePoint(p1, p2 *mat.Dense, pt1, pt2 r2.Point) (r3.Vector, bool) {
	a := mat.NewDense(4, 4, nil)
	for j := 0; j < 4; j++ {
		a.Set(0, j, pt1.X*p1.At(2, j)-p1.At(0, j))
		a.Set(1, j, pt1.Y*p1.At(2, j)-p1.At(1, j))
		a.Set(2, j, pt2.X*p2.At(2, j)-p2.At(0, j))
		a.Set(3, j, pt2.Y*p2.At(2, j)-p2.At(1, j))
	}
	mats := performSVD(a)
	if mats == nil {
		return r3.Vector{}, false
	}
	x := mats.V.ColView(3)
	w := x.AtVec(3)
	if math.Abs(w) < 1e-12 {
		return r3.Vector{}, false
	}
	return r3.Vector{X: x.AtVec(0) / w, Y: x.AtVec(1) / w, Z: x.AtVec(2) / w}, true
}

// transformPoint returns R*pt + t.
func transformPoint(rot, trans *mat.Dense, pt r3.Vector) r3.Vector {
	return r3.Vector{
		X: rot.At(0, 0)*pt.X + rot.At(0, 1)*pt.Y + rot.At(0, 2)*pt.Z + trans.At(0, 0),
		Y: rot.At(1, 0)*pt.X + rot.At(1, 1)*pt.Y + rot.At(1, 2)*pt.Z + trans.At(1, 0),
		Z: rot.At(2, 0)*pt.X + rot.At(2, 1)*pt.Y + rot.At(2, 2)*pt.Z + trans.At(2, 0),
	}
}

// CountPointsInFront triangulates every correspondence for the pose (R, t) of camera 2 and counts the points with
// positive depth in both cameras and a depth below distanceThresh in camera 1. A distanceThresh <= 0 disables the
// distance check.
func CountPointsInFront(rot, trans *mat.Dense, pts1, pts2 []r2.Point, distanceThresh float64) int {
	p1 := ProjectionMatrix(eye(3), mat.NewDense(3, 1, nil))
	p2 := ProjectionMatrix(rot, trans)
	count := 0
	for i := range pts1 {
		x1, ok := TriangulatePoint(p1, p2, pts1[i], pts2[i])
		if !ok {
			continue
		}
		if x1.Z <= 0 || (distanceThresh > 0 && x1.Z >= distanceThresh) {
			continue
		}
		if x2 := transformPoint(rot, trans, x1); x2.Z <= 0 {
			continue
		}
		count++
	}
	return count
}

// RecoverPose picks among the four decompositions of E the pose of camera 2 that puts the most correspondences in
// front of both cameras. The translation has unit norm. It returns the number of points passing the check, which is
// zero when no candidate is physically valid.
func RecoverPose(essMat *mat.Dense, pts1, pts2 []r2.Point, distanceThresh float64) (*mat.Dense, *mat.Dense, int, error) {
	if len(pts1) != len(pts2) {
		return nil, nil, 0, errors.New("sets of points pts1 and pts2 must have the same number of elements")
	}
	r1, r2, t, err := DecomposeEssentialMatrix(essMat)
	if err != nil {
		return nil, nil, 0, err
	}
	if norm := mat.Norm(t, 2); norm > 0 {
		t.Scale(1/norm, t)
	}
	tNeg := mat.NewDense(3, 1, nil)
	tNeg.Scale(-1, t)

	var bestR, bestT *mat.Dense
	bestCount := 0
	for _, candidate := range []struct{ r, t *mat.Dense }{{r1, t}, {r1, tNeg}, {r2, t}, {r2, tNeg}} {
		count := CountPointsInFront(candidate.r, candidate.t, pts1, pts2, distanceThresh)
		if count > bestCount {
			bestR, bestT, bestCount = candidate.r, candidate.t, count
		}
	}
	if bestCount == 0 {
		return nil, nil, 0, nil
	}
	return mat.DenseCopyOf(bestR), mat.DenseCopyOf(bestT), bestCount, nil
}

// helpers
// normalizePoints normalizes points as described in Multiple View Geometry, Alg 11.1.
func normalizePoints(pts []r2.Point) ([]r2.Point, *mat.Dense) {
	nPoints := len(pts)
	// computer centroid of points
	mu := r2.Point{0, 0}

	for _, pt := range pts {
		mu.X += pt.X
		mu.Y += pt.Y
	}
	mu = mu.Mul(1. / float64(nPoints))
	// compute scale factor
	d := 0.0
	for _, pt := range pts {
		d += pt.Sub(mu).Norm() / float64(nPoints)
	}
	scale := 1.0
	if d > 0 {
		scale = math.Sqrt(2) / d
	}
	transformData := []float64{
		scale, 0, -scale * mu.X,
		0, scale, -scale * mu.Y,
		0, 0, 1,
	}
	T := mat.NewDense(3, 3, transformData)
	// apply transform to points
	pointsTransformed := make([]r2.Point, nPoints)
	for i := range pointsTransformed {
		pointsTransformed[i] = pts[i].Sub(mu).Mul(scale)
	}
	return pointsTransformed, T
}

// mat.Dense utils.
func transposeDense(m *mat.Dense) *mat.Dense {
	nRows, nCols := m.Dims()
	m2 := mat.NewDense(nCols, nRows, nil)
	m3 := m.T()
	m2.Copy(m3)
	return m2
}

// eye create an identity matrix of size nxn.
func eye(n int) *mat.Dense {
	if n <= 0 {
		return nil
	}
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

// matsSVD stores the matrices from SVD decomposition.
type matsSVD struct {
	U  *mat.Dense
	V  *mat.Dense
	VT *mat.Dense
	S  *mat.Dense
}

// performSVD performs SVD on inputMatrix and returns matrices U, Sigma and V from the decomposition.
func performSVD(inputMatrix *mat.Dense) *matsSVD {
	var svd mat.SVD
	ok := svd.Factorize(inputMatrix, mat.SVDFull)
	if !ok {
		return nil
	}

	u, v, sigma, vt := &mat.Dense{}, &mat.Dense{}, &mat.Dense{}, &mat.Dense{}

	svd.UTo(u)
	svd.VTo(v)
	vt.CloneFrom(v.T())

	singularValues := svd.Values(nil)
	// firstly create diag matrix. Next fill new sigma matrix with zeros
	sigma.CloneFrom(mat.NewDiagDense(len(singularValues), singularValues))

	return &matsSVD{u, v, vt, sigma}
}
