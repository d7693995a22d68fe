// Package opticalflow implements sparse optical flow between two grayscale frames.
package opticalflow

import (
	"encoding/json"
	"image"
	"math"
	"os"
	"path/filepath"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/monovo/rimage"
	"go.viam.com/monovo/utils"
)

// LKConfig holds the parameters of the pyramidal Lucas-Kanade tracker.
type LKConfig struct {
	// WindowSize is the side of the square integration window, in pixels. It must be odd.
	WindowSize int `json:"window_size"`
	// MaxLevel is the index of the coarsest pyramid level; 0 tracks on the full resolution image only.
	MaxLevel      int     `json:"max_level"`
	MaxIterations int     `json:"max_iterations"`
	Epsilon       float64 `json:"epsilon"`
	// MinEigThreshold rejects windows whose gradient matrix, divided by the window area, has a smaller
	// minimum eigenvalue. Intensities are in [0, 1].
	MinEigThreshold float64 `json:"min_eig_threshold"`
}

// DefaultLKConfig returns a 21x21 window, 3 pyramid levels, 30 iterations and a 0.01 px stop criterion.
func DefaultLKConfig() *LKConfig {
	return &LKConfig{
		WindowSize:      21,
		MaxLevel:        3,
		MaxIterations:   30,
		Epsilon:         0.01,
		MinEigThreshold: 1e-4,
	}
}

// LoadLKConfiguration loads a LKConfig from a json file.
func LoadLKConfiguration(file string) (*LKConfig, error) {
	var config LKConfig
	//nolint:gosec
	configFile, err := os.Open(filepath.Clean(file))
	if err != nil {
		return nil, err
	}
	defer goutils.UncheckedErrorFunc(configFile.Close)
	if err := json.NewDecoder(configFile).Decode(&config); err != nil {
		return nil, err
	}
	if err := config.Validate(file); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate ensures all parts of the LKConfig are valid.
func (config *LKConfig) Validate(path string) error {
	var err error
	if config.WindowSize < 3 || config.WindowSize%2 == 0 {
		err = multierr.Append(err, goutils.NewConfigValidationError(path, errors.New("window_size should be odd and >= 3")))
	}
	if config.MaxLevel < 0 {
		err = multierr.Append(err, goutils.NewConfigValidationError(path, errors.New("max_level should be >= 0")))
	}
	if config.MaxIterations < 1 {
		err = multierr.Append(err, goutils.NewConfigValidationError(path, errors.New("max_iterations should be >= 1")))
	}
	if config.Epsilon <= 0 {
		err = multierr.Append(err, goutils.NewConfigValidationError(path, errors.New("epsilon should be > 0")))
	}
	if config.MinEigThreshold < 0 {
		err = multierr.Append(err, goutils.NewConfigValidationError(path, errors.New("min_eig_threshold should be >= 0")))
	}
	return err
}

// flowLevel is one pyramid level prepared for tracking.
type flowLevel struct {
	prev, next *mat.Dense
	gradX      *mat.Dense
	gradY      *mat.Dense
	scale      float64
}

func buildLevels(prev, next *image.Gray, maxLevel int) ([]flowLevel, error) {
	prevPyr, err := rimage.GetImagePyramid(prev, maxLevel)
	if err != nil {
		return nil, err
	}
	nextPyr, err := rimage.GetImagePyramid(next, maxLevel)
	if err != nil {
		return nil, err
	}
	nLevels := utils.MinInt(len(prevPyr.Images), len(nextPyr.Images))
	scharrX := rimage.GetScharrX()
	scharrY := rimage.GetScharrY()
	levels := make([]flowLevel, nLevels)
	for l := 0; l < nLevels; l++ {
		prevDense := rimage.GrayToDense(prevPyr.Images[l])
		gx, err := rimage.ConvolveGrayFloat64(prevDense, &scharrX, rimage.BorderReflect)
		if err != nil {
			return nil, err
		}
		gy, err := rimage.ConvolveGrayFloat64(prevDense, &scharrY, rimage.BorderReflect)
		if err != nil {
			return nil, err
		}
		levels[l] = flowLevel{
			prev:  prevDense,
			next:  rimage.GrayToDense(nextPyr.Images[l]),
			gradX: gx,
			gradY: gy,
			scale: prevPyr.Scales[l],
		}
	}
	return levels, nil
}

// CalcOpticalFlowPyrLK tracks prevPts from prev into next with the pyramidal Lucas-Kanade method (Bouguet).
// It returns the new positions and a status per point, false when the point was lost or left the image.
// Points are tracked in parallel.
func CalcOpticalFlowPyrLK(prev, next *image.Gray, prevPts []r2.Point, cfg *LKConfig) ([]r2.Point, []bool, error) {
	if prev == nil || next == nil {
		return nil, nil, errors.New("input image is nil")
	}
	if !rimage.SameImgSize(prev, next) {
		return nil, nil, errors.Errorf("images should have the same size, got %v and %v",
			prev.Bounds().Size(), next.Bounds().Size())
	}
	if cfg == nil {
		cfg = DefaultLKConfig()
	}
	nextPts := make([]r2.Point, len(prevPts))
	status := make([]bool, len(prevPts))
	if len(prevPts) == 0 {
		return nextPts, status, nil
	}
	levels, err := buildLevels(prev, next, cfg.MaxLevel)
	if err != nil {
		return nil, nil, err
	}
	size := prev.Bounds().Size()
	utils.ParallelForEach(len(prevPts), func(i int) {
		pt, ok := trackPoint(levels, prevPts[i], cfg)
		ok = ok && pt.X >= 0 && pt.Y >= 0 && pt.X <= float64(size.X-1) && pt.Y <= float64(size.Y-1)
		nextPts[i] = pt
		status[i] = ok
	})
	return nextPts, status, nil
}

// trackPoint runs the coarse to fine iterations for one point.
func trackPoint(levels []flowLevel, pt r2.Point, cfg *LKConfig) (r2.Point, bool) {
	half := cfg.WindowSize / 2
	area := float64(cfg.WindowSize * cfg.WindowSize)
	n := cfg.WindowSize * cfg.WindowSize
	patch := make([]float64, n)
	patchX := make([]float64, n)
	patchY := make([]float64, n)

	guess := r2.Point{}
	for l := len(levels) - 1; l >= 0; l-- {
		level := levels[l]
		h, w := level.prev.Dims()
		p := pt.Mul(1 / level.scale)

		// spatial gradient matrix over the window of the previous frame
		var gxx, gxy, gyy float64
		k := 0
		for dy := -half; dy <= half; dy++ {
			for dx := -half; dx <= half; dx++ {
				q := r2.Point{X: p.X + float64(dx), Y: p.Y + float64(dy)}
				patch[k] = rimage.BilinearInterpolationDense(level.prev, q)
				patchX[k] = rimage.BilinearInterpolationDense(level.gradX, q)
				patchY[k] = rimage.BilinearInterpolationDense(level.gradY, q)
				gxx += patchX[k] * patchX[k]
				gxy += patchX[k] * patchY[k]
				gyy += patchY[k] * patchY[k]
				k++
			}
		}
		minEig := (gxx + gyy - math.Sqrt((gxx-gyy)*(gxx-gyy)+4*gxy*gxy)) / 2
		if minEig/area < cfg.MinEigThreshold {
			return r2.Point{}, false
		}
		det := gxx*gyy - gxy*gxy
		if det < 1e-12 {
			return r2.Point{}, false
		}

		v := r2.Point{}
		for iter := 0; iter < cfg.MaxIterations; iter++ {
			c := p.Add(guess).Add(v)
			if c.X < -float64(half) || c.Y < -float64(half) || c.X > float64(w-1+half) || c.Y > float64(h-1+half) {
				return r2.Point{}, false
			}
			var bx, by float64
			k = 0
			for dy := -half; dy <= half; dy++ {
				for dx := -half; dx <= half; dx++ {
					q := r2.Point{X: c.X + float64(dx), Y: c.Y + float64(dy)}
					diff := patch[k] - rimage.BilinearInterpolationDense(level.next, q)
					bx += diff * patchX[k]
					by += diff * patchY[k]
					k++
				}
			}
			eta := r2.Point{X: (gyy*bx - gxy*by) / det, Y: (gxx*by - gxy*bx) / det}
			v = v.Add(eta)
			if eta.Norm() < cfg.Epsilon {
				break
			}
		}
		if l > 0 {
			guess = guess.Add(v).Mul(level.scale / levels[l-1].scale)
		} else {
			guess = guess.Add(v)
		}
	}
	return pt.Add(guess), true
}
