// Package keypoints contains the implementation of keypoints in an image. For now:
// - FAST keypoints
package keypoints

import (
	"image"

	"github.com/fogleman/gg"
	"github.com/golang/geo/r2"
	"github.com/samber/lo"
)

// KeyPoints is a slice of image.Point that contains several kps.
type KeyPoints []image.Point

// ToR2 converts keypoints to sub-pixel points.
func (kps KeyPoints) ToR2() []r2.Point {
	return lo.Map(kps, func(p image.Point, _ int) r2.Point {
		return r2.Point{X: float64(p.X), Y: float64(p.Y)}
	})
}

// PlotKeypoints plots keypoints on image.
func PlotKeypoints(img *image.Gray, kps []image.Point, outName string) error {
	w, h := img.Bounds().Max.X, img.Bounds().Max.Y

	dc := gg.NewContext(w, h)
	dc.DrawImage(img, 0, 0)

	// draw keypoints on image
	dc.SetRGBA(0, 0, 1, 0.5)
	for _, p := range kps {
		dc.DrawCircle(float64(p.X), float64(p.Y), float64(3.0))
		dc.Fill()
	}
	return dc.SavePNG(outName)
}
