package transform

import "github.com/pkg/errors"

const (
	undistortMaxIterations = 20
	undistortTolerance     = 1e-10
)

// InverseBrownConrady removes Brown-Conrady lens distortion. Transform takes distorted normalized coordinates
// and solves for the undistorted ones with Newton-Raphson.
type InverseBrownConrady struct {
	RadialK1     float64 `json:"rk1"`
	RadialK2     float64 `json:"rk2"`
	RadialK3     float64 `json:"rk3"`
	TangentialP1 float64 `json:"tp1"`
	TangentialP2 float64 `json:"tp2"`
}

// CheckValid checks if the fields for InverseBrownConrady have valid inputs.
func (ibc *InverseBrownConrady) CheckValid() error {
	if ibc == nil {
		return InvalidDistortionError("InverseBrownConrady shaped distortion_parameters not provided")
	}
	return nil
}

// NewInverseBrownConrady reads k1, k2, k3, p1, p2 in that order; missing trailing values are zero.
func NewInverseBrownConrady(inp []float64) (*InverseBrownConrady, error) {
	if len(inp) > 5 {
		return nil, errors.Errorf("list of parameters too long, expected max 5, got %d", len(inp))
	}
	params := make([]float64, 5)
	copy(params, inp)
	return &InverseBrownConrady{params[0], params[1], params[2], params[3], params[4]}, nil
}

// ModelType returns the type of distortion model.
func (ibc *InverseBrownConrady) ModelType() DistortionType {
	return InverseBrownConradyDistortionType
}

// Parameters returns the parameters of the distortion model as a list of floats.
func (ibc *InverseBrownConrady) Parameters() []float64 {
	if ibc == nil {
		return []float64{}
	}
	return []float64{ibc.RadialK1, ibc.RadialK2, ibc.RadialK3, ibc.TangentialP1, ibc.TangentialP2}
}

// Distort applies the forward Brown-Conrady model:
//
//	x_d = x_u * (1 + k1*r² + k2*r⁴ + k3*r⁶) + 2*p1*x_u*y_u + p2*(r² + 2*x_u²)
//	y_d = y_u * (1 + k1*r² + k2*r⁴ + k3*r⁶) + 2*p2*x_u*y_u + p1*(r² + 2*y_u²)
func (ibc *InverseBrownConrady) Distort(xu, yu float64) (float64, float64) {
	r2 := xu*xu + yu*yu
	radial := ibc.radial(r2)
	xd := xu*radial + 2*ibc.TangentialP1*xu*yu + ibc.TangentialP2*(r2+2*xu*xu)
	yd := yu*radial + 2*ibc.TangentialP2*xu*yu + ibc.TangentialP1*(r2+2*yu*yu)
	return xd, yd
}

func (ibc *InverseBrownConrady) radial(r2 float64) float64 {
	return 1 + r2*(ibc.RadialK1+r2*(ibc.RadialK2+r2*ibc.RadialK3))
}

// jacobian returns the partial derivatives of Distort at (xu, yu) as [[dxd/dxu, dxd/dyu], [dyd/dxu, dyd/dyu]].
func (ibc *InverseBrownConrady) jacobian(xu, yu float64) (a, b, c, d float64) {
	r2 := xu*xu + yu*yu
	radial := ibc.radial(r2)
	dRadial := 2 * (ibc.RadialK1 + 2*ibc.RadialK2*r2 + 3*ibc.RadialK3*r2*r2)
	p1, p2 := ibc.TangentialP1, ibc.TangentialP2
	a = radial + xu*xu*dRadial + 2*p1*yu + 6*p2*xu
	b = xu*yu*dRadial + 2*p1*xu + 2*p2*yu
	c = xu*yu*dRadial + 2*p2*yu + 2*p1*xu
	d = radial + yu*yu*dRadial + 2*p2*xu + 6*p1*yu
	return a, b, c, d
}

// Transform returns the undistorted coordinates whose distortion is (xd, yd).
func (ibc *InverseBrownConrady) Transform(xd, yd float64) (float64, float64) {
	if ibc == nil {
		return xd, yd
	}
	xu, yu := xd, yd
	for i := 0; i < undistortMaxIterations; i++ {
		xEst, yEst := ibc.Distort(xu, yu)
		errX, errY := xEst-xd, yEst-yd
		if errX*errX+errY*errY < undistortTolerance*undistortTolerance {
			break
		}
		a, b, c, d := ibc.jacobian(xu, yu)
		det := a*d - b*c
		if det == 0 {
			break
		}
		xu -= (d*errX - b*errY) / det
		yu -= (-c*errX + a*errY) / det
	}
	return xu, yu
}
