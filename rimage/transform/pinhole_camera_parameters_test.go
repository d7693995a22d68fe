package transform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"
)

func kittiIntrinsics() *PinholeCameraIntrinsics {
	return &PinholeCameraIntrinsics{
		Width:  1241,
		Height: 376,
		Fx:     718.856,
		Fy:     718.856,
		Ppx:    607.1928,
		Ppy:    185.2157,
	}
}

func TestPinholeCameraIntrinsics(t *testing.T) {
	intrinsics := kittiIntrinsics()
	test.That(t, intrinsics.CheckValid(), test.ShouldBeNil)

	n := intrinsics.Normalize(r2.Point{607.1928 + 718.856, 185.2157 - 359.428})
	test.That(t, n.X, test.ShouldAlmostEqual, 1.0, 1e-12)
	test.That(t, n.Y, test.ShouldAlmostEqual, -0.5, 1e-12)
	px := intrinsics.Denormalize(n)
	test.That(t, px.X, test.ShouldAlmostEqual, 607.1928+718.856, 1e-9)
	test.That(t, px.Y, test.ShouldAlmostEqual, 185.2157-359.428, 1e-9)

	pt := intrinsics.Project(r3.Vector{2, -1, 4})
	back := intrinsics.Normalize(pt)
	test.That(t, back.X, test.ShouldAlmostEqual, 0.5, 1e-9)
	test.That(t, back.Y, test.ShouldAlmostEqual, -0.25, 1e-9)

	test.That(t, intrinsics.MeanFocal(), test.ShouldAlmostEqual, 718.856)
	test.That(t, intrinsics.Contains(r2.Point{0, 0}), test.ShouldBeTrue)
	test.That(t, intrinsics.Contains(r2.Point{1240, 375}), test.ShouldBeTrue)
	test.That(t, intrinsics.Contains(r2.Point{1240.5, 10}), test.ShouldBeFalse)
	test.That(t, intrinsics.Contains(r2.Point{10, -0.1}), test.ShouldBeFalse)
}

func TestPinholeCameraIntrinsicsCheckValid(t *testing.T) {
	var nilIntrinsics *PinholeCameraIntrinsics
	err := nilIntrinsics.CheckValid()
	test.That(t, errors.Is(err, ErrNoIntrinsics), test.ShouldBeTrue)

	intrinsics := kittiIntrinsics()
	intrinsics.Width = 0
	err = intrinsics.CheckValid()
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "Invalid size")

	intrinsics = kittiIntrinsics()
	intrinsics.Fy = 0
	err = intrinsics.CheckValid()
	test.That(t, err.Error(), test.ShouldContainSubstring, "Invalid focal length Fy")

	intrinsics = kittiIntrinsics()
	intrinsics.Ppx = -1
	test.That(t, intrinsics.CheckValid(), test.ShouldNotBeNil)
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	test.That(t, os.WriteFile(path, []byte(content), 0o600), test.ShouldBeNil)
	return path
}

func TestNewPinholeCameraIntrinsicsFromJSONFile(t *testing.T) {
	path := writeFile(t, "intrinsics.json",
		`{"width_px": 1241, "height_px": 376, "fx": 718.856, "fy": 718.856, "ppx": 607.1928, "ppy": 185.2157}`)
	intrinsics, err := NewPinholeCameraIntrinsicsFromJSONFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, intrinsics, test.ShouldResemble, kittiIntrinsics())

	_, err = NewPinholeCameraIntrinsicsFromJSONFile(filepath.Join(t.TempDir(), "missing.json"))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "error opening JSON file")

	path = writeFile(t, "bad.json", `{"width_px": "wide"}`)
	_, err = NewPinholeCameraIntrinsicsFromJSONFile(path)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "error parsing JSON string")
}

func TestNewCameraModelFromJSONFile(t *testing.T) {
	path := writeFile(t, "pinhole.json",
		`{"width_px": 1241, "height_px": 376, "fx": 718.856, "fy": 718.856, "ppx": 607.1928, "ppy": 185.2157}`)
	model, err := NewCameraModelFromJSONFile(path)
	test.That(t, err, test.ShouldBeNil)
	_, ok := model.(*PinholeCameraIntrinsics)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, model.Intrinsics(), test.ShouldResemble, kittiIntrinsics())

	path = writeFile(t, "distorted.json",
		`{"width_px": 1241, "height_px": 376, "fx": 718.856, "fy": 718.856, "ppx": 607.1928, "ppy": 185.2157,
		"distortion_parameters": [-0.2, 0.05]}`)
	model, err = NewCameraModelFromJSONFile(path)
	test.That(t, err, test.ShouldBeNil)
	pinhole, ok := model.(*PinholeCameraModel)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, model.CheckValid(), test.ShouldBeNil)
	test.That(t, pinhole.Distortion.ModelType(), test.ShouldEqual, InverseBrownConradyDistortionType)
	test.That(t, pinhole.Distortion.Parameters(), test.ShouldResemble, []float64{-0.2, 0.05, 0, 0, 0})

	path = writeFile(t, "unknown.json",
		`{"width_px": 10, "height_px": 10, "fx": 1, "fy": 1, "ppx": 5, "ppy": 5,
		"distortion_type": "fisheye", "distortion_parameters": [0.1]}`)
	_, err = NewCameraModelFromJSONFile(path)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "fisheye")

	path = writeFile(t, "invalid.json", `{"width_px": 10, "height_px": 10, "fx": 0, "fy": 1}`)
	_, err = NewCameraModelFromJSONFile(path)
	test.That(t, errors.Is(err, ErrNoIntrinsics), test.ShouldBeTrue)
}

func TestPinholeCameraModelNormalize(t *testing.T) {
	distortion, err := NewInverseBrownConrady([]float64{-0.2, 0.05, 0.001, 0.001, -0.002})
	test.That(t, err, test.ShouldBeNil)
	model := &PinholeCameraModel{PinholeCameraIntrinsics: kittiIntrinsics(), Distortion: distortion}
	test.That(t, model.CheckValid(), test.ShouldBeNil)

	// a point seen through the lens normalizes back to where the pinhole would have put it
	undistorted := r2.Point{0.4, -0.15}
	xd, yd := distortion.Distort(undistorted.X, undistorted.Y)
	pixel := model.Intrinsics().Denormalize(r2.Point{xd, yd})
	n := model.Normalize(pixel)
	test.That(t, n.X, test.ShouldAlmostEqual, undistorted.X, 1e-8)
	test.That(t, n.Y, test.ShouldAlmostEqual, undistorted.Y, 1e-8)

	plain := &PinholeCameraModel{PinholeCameraIntrinsics: kittiIntrinsics()}
	test.That(t, plain.Normalize(pixel), test.ShouldResemble, kittiIntrinsics().Normalize(pixel))

	var nilModel *PinholeCameraModel
	test.That(t, errors.Is(nilModel.CheckValid(), ErrNoIntrinsics), test.ShouldBeTrue)
}

func TestInverseBrownConrady(t *testing.T) {
	_, err := NewInverseBrownConrady([]float64{1, 2, 3, 4, 5, 6})
	test.That(t, err, test.ShouldNotBeNil)

	empty, err := NewInverseBrownConrady(nil)
	test.That(t, err, test.ShouldBeNil)
	x, y := empty.Transform(0.3, -0.2)
	test.That(t, x, test.ShouldAlmostEqual, 0.3)
	test.That(t, y, test.ShouldAlmostEqual, -0.2)

	ibc, err := NewInverseBrownConrady([]float64{0.1, -0.05, 0.01, 0.002, 0.003})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ibc.CheckValid(), test.ShouldBeNil)
	for _, pt := range []r2.Point{{0, 0}, {0.5, 0.2}, {-0.3, 0.4}, {0.1, -0.6}} {
		xd, yd := ibc.Distort(pt.X, pt.Y)
		xu, yu := ibc.Transform(xd, yd)
		test.That(t, xu, test.ShouldAlmostEqual, pt.X, 1e-8)
		test.That(t, yu, test.ShouldAlmostEqual, pt.Y, 1e-8)
	}

	var nilIBC *InverseBrownConrady
	test.That(t, nilIBC.CheckValid(), test.ShouldNotBeNil)
	test.That(t, nilIBC.Parameters(), test.ShouldBeEmpty)
	x, y = nilIBC.Transform(1, 2)
	test.That(t, x, test.ShouldEqual, 1.0)
	test.That(t, y, test.ShouldEqual, 2.0)

	_, err = NewDistorter("kannala_brandt", nil)
	test.That(t, err, test.ShouldNotBeNil)
}
