package rimage

import (
	"image"
	"image/color"
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"
)

func TestMakeGray(t *testing.T) {
	rgba := image.NewRGBA(image.Rect(3, 4, 13, 9))
	rgba.Set(3, 4, color.RGBA{255, 255, 255, 255})
	gray := MakeGray(rgba)
	test.That(t, gray.Bounds(), test.ShouldResemble, image.Rect(0, 0, 10, 5))
	test.That(t, gray.GrayAt(0, 0).Y, test.ShouldEqual, 255)
	test.That(t, gray.GrayAt(1, 0).Y, test.ShouldEqual, 0)
	test.That(t, SameImgSize(rgba, gray), test.ShouldBeTrue)
	test.That(t, SameImgSize(gray, image.NewGray(image.Rect(0, 0, 5, 10))), test.ShouldBeFalse)

	// zero-origin gray images are not copied
	test.That(t, MakeGray(gray), test.ShouldEqual, gray)
}

func TestGrayToDense(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 6, 4))
	img.SetGray(3, 2, color.Gray{255})
	img.SetGray(4, 3, color.Gray{51})
	m := GrayToDense(img)
	r, c := m.Dims()
	test.That(t, r, test.ShouldEqual, 4)
	test.That(t, c, test.ShouldEqual, 6)
	test.That(t, m.At(2, 3), test.ShouldAlmostEqual, 1.0, 1e-12)
	test.That(t, m.At(3, 4), test.ShouldAlmostEqual, 0.2, 1e-12)
	test.That(t, m.At(0, 0), test.ShouldEqual, 0.)

	sub, ok := img.SubImage(image.Rect(2, 1, 5, 4)).(*image.Gray)
	test.That(t, ok, test.ShouldBeTrue)
	subM := GrayToDense(sub)
	r, c = subM.Dims()
	test.That(t, r, test.ShouldEqual, 3)
	test.That(t, c, test.ShouldEqual, 3)
	test.That(t, subM.At(1, 1), test.ShouldAlmostEqual, 1.0, 1e-12)
}

func TestBilinearInterpolationDense(t *testing.T) {
	w, h := 5, 4
	m := mat.NewDense(h, w, nil)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			m.Set(y, x, 2*float64(x)+3*float64(y))
		}
	}
	test.That(t, BilinearInterpolationDense(m, r2.Point{1.5, 2.25}), test.ShouldAlmostEqual, 9.75, 1e-12)
	test.That(t, BilinearInterpolationDense(m, r2.Point{3, 1}), test.ShouldAlmostEqual, 9.0, 1e-12)
	test.That(t, BilinearInterpolationDense(m, r2.Point{3.99, 2.5}), test.ShouldAlmostEqual, 15.48, 1e-9)
	// out of range samples are clamped to the border
	test.That(t, BilinearInterpolationDense(m, r2.Point{-3, 10}), test.ShouldAlmostEqual, 9.0, 1e-12)
	test.That(t, BilinearInterpolationDense(m, r2.Point{10, -1}), test.ShouldAlmostEqual, 8.0, 1e-12)
}
