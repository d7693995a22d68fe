package transform

import "github.com/pkg/errors"

// DistortionType is the name of the distortion model.
type DistortionType string

// InverseBrownConradyDistortionType undistorts points observed through a Brown-Conrady lens.
const InverseBrownConradyDistortionType = DistortionType("inverse_brown_conrady")

// Distorter defines a Transform on normalized image coordinates according to a lens model.
type Distorter interface {
	ModelType() DistortionType
	CheckValid() error
	Parameters() []float64
	Transform(x, y float64) (float64, float64)
}

// InvalidDistortionError is used when the distortion_parameters are invalid.
func InvalidDistortionError(msg string) error {
	return errors.Wrap(errors.New("invalid distortion_parameters"), msg)
}

// NewDistorter returns a Distorter given a valid DistortionType and its parameters.
func NewDistorter(distortionType DistortionType, parameters []float64) (Distorter, error) {
	switch distortionType {
	case InverseBrownConradyDistortionType:
		return NewInverseBrownConrady(parameters)
	default:
		return nil, errors.Errorf("do not know how to parse %q distortion model", distortionType)
	}
}
