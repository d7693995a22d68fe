package rimage

import (
	"image"
	"image/color"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/monovo/utils"
)

// Kernel is a convolution kernel. Content is indexed [row][column].
type Kernel struct {
	Content [][]float64
	Height  int
	Width   int
}

// Size returns the kernel size as an image.Point (X is the width).
func (k *Kernel) Size() image.Point {
	return image.Point{k.Width, k.Height}
}

// At returns the kernel element at column x and row y.
func (k *Kernel) At(x, y int) float64 {
	return k.Content[y][x]
}

// Normalize returns a new kernel whose elements sum to 1. A kernel summing to 0 (derivatives) is returned as is.
func (k *Kernel) Normalize() *Kernel {
	sum := 0.
	for _, row := range k.Content {
		for _, v := range row {
			sum += v
		}
	}
	if sum == 0 {
		sum = 1
	}
	out := make([][]float64, k.Height)
	for y, row := range k.Content {
		out[y] = make([]float64, k.Width)
		for x, v := range row {
			out[y][x] = v / sum
		}
	}
	return &Kernel{out, k.Height, k.Width}
}

// GetScharrX returns the Scharr derivative kernel in the x direction, scaled so that a unit ramp gives 1.
func GetScharrX() Kernel {
	return Kernel{
		[][]float64{
			{-3. / 32, 0, 3. / 32},
			{-10. / 32, 0, 10. / 32},
			{-3. / 32, 0, 3. / 32},
		},
		3,
		3,
	}
}

// GetScharrY returns the Scharr derivative kernel in the y direction, scaled so that a unit ramp gives 1.
func GetScharrY() Kernel {
	return Kernel{
		[][]float64{
			{-3. / 32, -10. / 32, -3. / 32},
			{0, 0, 0},
			{3. / 32, 10. / 32, 3. / 32},
		},
		3,
		3,
	}
}

// GetGaussian5 returns the 5x5 binomial approximation of a Gaussian. Call Normalize before use.
func GetGaussian5() Kernel {
	return Kernel{
		[][]float64{
			{1, 4, 6, 4, 1},
			{4, 16, 24, 16, 4},
			{6, 24, 36, 24, 6},
			{4, 16, 24, 16, 4},
			{1, 4, 6, 4, 1},
		},
		5,
		5,
	}
}

// BorderPad is the policy used to fill pixels outside an image.
type BorderPad int

const (
	// BorderConstant pads with zeros.
	BorderConstant BorderPad = iota
	// BorderReplicate repeats the edge pixel: aaa|abcd|ddd.
	BorderReplicate
	// BorderReflect mirrors including the edge pixel: cba|abcd|dcb.
	BorderReflect
)

// borderIndex maps an out of range index to a valid one; ok is false for constant padding.
func borderIndex(i, n int, border BorderPad) (int, bool) {
	if i >= 0 && i < n {
		return i, true
	}
	switch border {
	case BorderReplicate:
		return utils.ClampInt(i, 0, n-1), true
	case BorderReflect:
		period := 2 * n
		i %= period
		if i < 0 {
			i += period
		}
		if i >= n {
			i = period - 1 - i
		}
		return i, true
	case BorderConstant:
		return 0, false
	default:
		return 0, false
	}
}

func checkPadding(kernelSize, anchor image.Point) error {
	if kernelSize.X <= 0 || kernelSize.Y <= 0 {
		return errors.Errorf("kernel size must be positive, got %v", kernelSize)
	}
	if anchor.X < 0 || anchor.Y < 0 || anchor.X >= kernelSize.X || anchor.Y >= kernelSize.Y {
		return errors.Errorf("anchor %v must lie inside the kernel of size %v", anchor, kernelSize)
	}
	return nil
}

// PaddingGray pads a gray image so that a kernel of kernelSize anchored at anchor can be applied at every pixel.
func PaddingGray(img *image.Gray, kernelSize, anchor image.Point, border BorderPad) (*image.Gray, error) {
	if err := checkPadding(kernelSize, anchor); err != nil {
		return nil, err
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	padded := image.NewGray(image.Rect(0, 0, w+kernelSize.X-1, h+kernelSize.Y-1))
	pb := padded.Bounds()
	for y := 0; y < pb.Dy(); y++ {
		sy, okY := borderIndex(y-anchor.Y, h, border)
		for x := 0; x < pb.Dx(); x++ {
			sx, okX := borderIndex(x-anchor.X, w, border)
			if !okX || !okY {
				continue
			}
			padded.SetGray(x, y, img.GrayAt(b.Min.X+sx, b.Min.Y+sy))
		}
	}
	return padded, nil
}

// PaddingFloat64 pads a float matrix (rows are y) so that a kernel of kernelSize anchored at anchor can be applied
// at every element.
func PaddingFloat64(m *mat.Dense, kernelSize, anchor image.Point, border BorderPad) (*mat.Dense, error) {
	if err := checkPadding(kernelSize, anchor); err != nil {
		return nil, err
	}
	h, w := m.Dims()
	padded := mat.NewDense(h+kernelSize.Y-1, w+kernelSize.X-1, nil)
	ph, pw := padded.Dims()
	for y := 0; y < ph; y++ {
		sy, okY := borderIndex(y-anchor.Y, h, border)
		for x := 0; x < pw; x++ {
			sx, okX := borderIndex(x-anchor.X, w, border)
			if !okX || !okY {
				continue
			}
			padded.Set(y, x, m.At(sy, sx))
		}
	}
	return padded, nil
}

// ConvolveGray applies a convolution matrix (Kernel) to a grayscale image.
// Example of usage:
//
//	res, err := ConvolveGray(img, kernel, image.Point{1, 1}, BorderReflect)
//
// Note: the anchor represents a point inside the area of the kernel. After every step of the convolution the position
// specified by the anchor point gets updated on the result image.
func ConvolveGray(img *image.Gray, kernel *Kernel, anchor image.Point, border BorderPad) (*image.Gray, error) {
	kernelSize := kernel.Size()
	padded, err := PaddingGray(img, kernelSize, anchor, border)
	if err != nil {
		return nil, err
	}
	originalSize := img.Bounds().Size()
	resultImage := image.NewGray(image.Rect(0, 0, originalSize.X, originalSize.Y))
	utils.ParallelForEachPixel(originalSize, func(x, y int) {
		sum := float64(0)
		for ky := 0; ky < kernelSize.Y; ky++ {
			for kx := 0; kx < kernelSize.X; kx++ {
				pixel := padded.GrayAt(x+kx, y+ky)
				sum += float64(pixel.Y) * kernel.At(kx, ky)
			}
		}
		sum = utils.ClampF64(sum, 0, 255)
		resultImage.SetGray(x, y, color.Gray{uint8(sum)})
	})
	return resultImage, nil
}

// ConvolveGrayFloat64 implements a gray float64 image convolution with the Kernel filter, anchored at the kernel
// center. There is no clamping in this case.
func ConvolveGrayFloat64(m *mat.Dense, filter *Kernel, border BorderPad) (*mat.Dense, error) {
	h, w := m.Dims()
	result := mat.NewDense(h, w, nil)
	kernelSize := filter.Size()
	anchor := image.Point{kernelSize.X / 2, kernelSize.Y / 2}
	padded, err := PaddingFloat64(m, kernelSize, anchor, border)
	if err != nil {
		return nil, err
	}

	utils.ParallelForEachPixel(image.Point{w, h}, func(x, y int) {
		sum := float64(0)
		for ky := 0; ky < kernelSize.Y; ky++ {
			for kx := 0; kx < kernelSize.X; kx++ {
				sum += padded.At(y+ky, x+kx) * filter.At(kx, ky)
			}
		}
		result.Set(y, x, sum)
	})
	return result, nil
}

// GaussianBlur smooths a gray image with the normalized 5x5 binomial kernel, reflecting at the border. The result
// is anchored at (0, 0).
func GaussianBlur(img *image.Gray) (*image.Gray, error) {
	gauss := GetGaussian5()
	return ConvolveGray(img, gauss.Normalize(), image.Point{2, 2}, BorderReflect)
}
