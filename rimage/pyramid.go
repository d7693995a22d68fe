package rimage

import (
	"image"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// ImagePyramid is a stack of successively half-sized images. Scales[i] is the factor from level i back to
// level 0 coordinates, the ratio of the base width to the level width, so odd sizes give factors slightly above
// a power of 2.
type ImagePyramid struct {
	Images []*image.Gray
	Scales []float64
}

// minPyramidSide stops the pyramid before a level becomes too small to hold a tracking window.
const minPyramidSide = 8

// GetImagePyramid builds a pyramid with at most maxLevel levels above the base image. Each level is downsampled by
// 2 with nfnt/resize's bilinear filter, which low-passes before decimating.
func GetImagePyramid(img *image.Gray, maxLevel int) (*ImagePyramid, error) {
	if img == nil {
		return nil, errors.New("input image is nil")
	}
	if maxLevel < 0 {
		return nil, errors.Errorf("pyramid max level should be >= 0, got %d", maxLevel)
	}
	base := MakeGray(img)
	pyramid := &ImagePyramid{
		Images: []*image.Gray{base},
		Scales: []float64{1},
	}
	current := base
	for level := 1; level <= maxLevel; level++ {
		w, h := current.Bounds().Dx()/2, current.Bounds().Dy()/2
		if w < minPyramidSide || h < minPyramidSide {
			break
		}
		next := MakeGray(resize.Resize(uint(w), uint(h), current, resize.Bilinear))
		pyramid.Images = append(pyramid.Images, next)
		pyramid.Scales = append(pyramid.Scales, float64(base.Bounds().Dx())/float64(w))
		current = next
	}
	return pyramid, nil
}
