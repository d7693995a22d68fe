package transform

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// ErrNoIntrinsics is when a camera does not have intrinsics parameters or other parameters.
var ErrNoIntrinsics = errors.New("camera intrinsic parameters are not available")

// NewNoIntrinsicsError is used when the intriniscs are not defined.
func NewNoIntrinsicsError(msg string) error {
	return errors.Wrap(ErrNoIntrinsics, msg)
}

// CameraModel turns pixel measurements of a camera into normalized image coordinates.
type CameraModel interface {
	// Intrinsics returns the pinhole parameters of the camera. It must not be modified.
	Intrinsics() *PinholeCameraIntrinsics
	// Normalize maps a pixel to the z = 1 plane of the camera, removing lens distortion if the model has any.
	Normalize(pt r2.Point) r2.Point
	CheckValid() error
}

// PinholeCameraIntrinsics holds the parameters necessary to do a perspective projection of a 3D scene to the 2D plane.
type PinholeCameraIntrinsics struct {
	Width  int     `json:"width_px"`
	Height int     `json:"height_px"`
	Fx     float64 `json:"fx"`
	Fy     float64 `json:"fy"`
	Ppx    float64 `json:"ppx"`
	Ppy    float64 `json:"ppy"`
}

// CheckValid checks if the fields for PinholeCameraIntrinsics have valid inputs.
func (params *PinholeCameraIntrinsics) CheckValid() error {
	if params == nil {
		return NewNoIntrinsicsError("Intrinsics do not exist")
	}
	if params.Width <= 0 || params.Height <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid size (%#v, %#v)", params.Width, params.Height))
	}
	if params.Fx <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid focal length Fx = %#v", params.Fx))
	}
	if params.Fy <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid focal length Fy = %#v", params.Fy))
	}
	if params.Ppx < 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid principal X point Ppx = %#v", params.Ppx))
	}
	if params.Ppy < 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid principal Y point Ppy = %#v", params.Ppy))
	}
	return nil
}

// Intrinsics returns params itself; a bare pinhole is the distortion free camera model.
func (params *PinholeCameraIntrinsics) Intrinsics() *PinholeCameraIntrinsics {
	return params
}

// Normalize maps a pixel to normalized image coordinates.
func (params *PinholeCameraIntrinsics) Normalize(pt r2.Point) r2.Point {
	return r2.Point{X: (pt.X - params.Ppx) / params.Fx, Y: (pt.Y - params.Ppy) / params.Fy}
}

// Denormalize maps normalized image coordinates back to a pixel.
func (params *PinholeCameraIntrinsics) Denormalize(pt r2.Point) r2.Point {
	return r2.Point{X: pt.X*params.Fx + params.Ppx, Y: pt.Y*params.Fy + params.Ppy}
}

// MeanFocal returns the average of both focal lengths, used to express pixel thresholds in normalized units.
func (params *PinholeCameraIntrinsics) MeanFocal() float64 {
	return (params.Fx + params.Fy) / 2
}

// Contains reports whether a sub-pixel position lies inside the image.
func (params *PinholeCameraIntrinsics) Contains(pt r2.Point) bool {
	return pt.X >= 0 && pt.Y >= 0 && pt.X <= float64(params.Width-1) && pt.Y <= float64(params.Height-1)
}

// NewPinholeCameraIntrinsicsFromJSONFile takes in a file path to a JSON and turns it into PinholeCameraIntrinsics.
func NewPinholeCameraIntrinsicsFromJSONFile(jsonPath string) (*PinholeCameraIntrinsics, error) {
	intrinsics := &PinholeCameraIntrinsics{}
	if err := readJSONFile(jsonPath, intrinsics); err != nil {
		return nil, err
	}
	return intrinsics, nil
}

func readJSONFile(jsonPath string, v interface{}) error {
	// open json file
	//nolint:gosec
	jsonFile, err := os.Open(jsonPath)
	if err != nil {
		return errors.Wrap(err, "error opening JSON file")
	}
	defer utils.UncheckedErrorFunc(jsonFile.Close)
	byteValue, err := io.ReadAll(jsonFile)
	if err != nil {
		return errors.Wrap(err, "error reading JSON data")
	}
	if err := json.Unmarshal(byteValue, v); err != nil {
		return errors.Wrap(err, "error parsing JSON string")
	}
	return nil
}

// Project projects a 3D point in camera coordinates to a sub-pixel image position. z must be non zero.
func (params *PinholeCameraIntrinsics) Project(pt r3.Vector) r2.Point {
	return params.Denormalize(r2.Point{pt.X / pt.Z, pt.Y / pt.Z})
}

// PinholeCameraModel is the model of a pinhole camera whose lens distortion is removed before normalization.
type PinholeCameraModel struct {
	*PinholeCameraIntrinsics `json:"intrinsic_parameters"`
	// Distortion maps distorted normalized coordinates to undistorted ones. Nil means no distortion.
	Distortion Distorter `json:"distortion"`
}

// Intrinsics returns the pinhole parameters of the model.
func (params *PinholeCameraModel) Intrinsics() *PinholeCameraIntrinsics {
	return params.PinholeCameraIntrinsics
}

// CheckValid checks both the intrinsics and the distortion parameters.
func (params *PinholeCameraModel) CheckValid() error {
	if params == nil {
		return NewNoIntrinsicsError("camera model does not exist")
	}
	if err := params.PinholeCameraIntrinsics.CheckValid(); err != nil {
		return err
	}
	if params.Distortion != nil {
		return params.Distortion.CheckValid()
	}
	return nil
}

// Normalize maps a distorted pixel to undistorted normalized image coordinates.
func (params *PinholeCameraModel) Normalize(pt r2.Point) r2.Point {
	n := params.PinholeCameraIntrinsics.Normalize(pt)
	if params.Distortion == nil {
		return n
	}
	x, y := params.Distortion.Transform(n.X, n.Y)
	return r2.Point{X: x, Y: y}
}

// cameraModelFile is the on-disk form of a camera model: the intrinsics fields plus optional distortion.
type cameraModelFile struct {
	PinholeCameraIntrinsics
	DistortionType       DistortionType `json:"distortion_type,omitempty"`
	DistortionParameters []float64      `json:"distortion_parameters,omitempty"`
}

// NewCameraModelFromJSONFile reads intrinsics and, when distortion_parameters are present, builds a
// PinholeCameraModel that undistorts pixels before normalizing them.
func NewCameraModelFromJSONFile(jsonPath string) (CameraModel, error) {
	var cfg cameraModelFile
	if err := readJSONFile(jsonPath, &cfg); err != nil {
		return nil, err
	}
	intrinsics := cfg.PinholeCameraIntrinsics
	if err := intrinsics.CheckValid(); err != nil {
		return nil, err
	}
	if len(cfg.DistortionParameters) == 0 {
		return &intrinsics, nil
	}
	if cfg.DistortionType == "" {
		cfg.DistortionType = InverseBrownConradyDistortionType
	}
	distortion, err := NewDistorter(cfg.DistortionType, cfg.DistortionParameters)
	if err != nil {
		return nil, err
	}
	return &PinholeCameraModel{PinholeCameraIntrinsics: &intrinsics, Distortion: distortion}, nil
}
