package rimage

import (
	"image"
	"image/draw"
	"math"

	"github.com/golang/geo/r2"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/monovo/utils"
)

// SameImgSize compares images to see if they're the same size.
func SameImgSize(g1, g2 image.Image) bool {
	return g1.Bounds().Size() == g2.Bounds().Size()
}

// MakeGray converts any image into an *image.Gray anchored at (0, 0). Gray images with a zero origin are
// returned as is.
func MakeGray(pic image.Image) *image.Gray {
	if g, ok := pic.(*image.Gray); ok && g.Bounds().Min == (image.Point{}) {
		return g
	}
	size := pic.Bounds().Size()
	result := image.NewGray(image.Rect(0, 0, size.X, size.Y))
	draw.Draw(result, result.Bounds(), pic, pic.Bounds().Min, draw.Src)
	return result
}

// GrayToDense converts a gray image to a matrix of intensities in [0, 1]; rows are y.
func GrayToDense(img *image.Gray) *mat.Dense {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	data := make([]float64, w*h)
	for y := 0; y < h; y++ {
		start := img.PixOffset(b.Min.X, b.Min.Y+y)
		row := img.Pix[start : start+w]
		for x, v := range row {
			data[y*w+x] = float64(v) / 255.
		}
	}
	return mat.NewDense(h, w, data)
}

// BilinearInterpolationDense samples m (rows are y) at a sub-pixel position. Positions outside the matrix are
// clamped to the border.
func BilinearInterpolationDense(m *mat.Dense, pt r2.Point) float64 {
	h, w := m.Dims()
	x := utils.ClampF64(pt.X, 0, float64(w-1))
	y := utils.ClampF64(pt.Y, 0, float64(h-1))
	x0, y0 := int(math.Floor(x)), int(math.Floor(y))
	x1, y1 := utils.MinInt(x0+1, w-1), utils.MinInt(y0+1, h-1)
	ax, ay := x-float64(x0), y-float64(y0)
	top := (1-ax)*m.At(y0, x0) + ax*m.At(y0, x1)
	bottom := (1-ax)*m.At(y1, x0) + ax*m.At(y1, x1)
	return (1-ay)*top + ay*bottom
}
