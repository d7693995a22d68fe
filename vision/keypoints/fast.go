package keypoints

import (
	"encoding/json"
	"image"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"go.viam.com/monovo/utils"
)

// FASTConfig holds the parameters necessary to compute the FAST keypoints.
type FASTConfig struct {
	// Threshold is the intensity difference (0-255) a circle pixel needs to be brighter or darker than the center.
	Threshold float64 `json:"threshold"`
	// NMatchesCircle is the number of contiguous circle pixels that must pass the threshold.
	NMatchesCircle int `json:"n_matches"`
	// NonMaxSuppression keeps only the best scored corner in each NMSWinSize neighborhood.
	NonMaxSuppression bool `json:"nms"`
	NMSWinSize        int  `json:"nms_win_size"`
	// MaxKeypoints caps the number of returned corners, best scores first. 0 means no cap.
	MaxKeypoints int `json:"max_keypoints"`
}

// DefaultFASTConfig returns a FAST-9 detector with threshold 25 and non maximum suppression.
func DefaultFASTConfig() *FASTConfig {
	return &FASTConfig{
		Threshold:         25,
		NMatchesCircle:    9,
		NonMaxSuppression: true,
		NMSWinSize:        3,
	}
}

// LoadFASTConfiguration loads a FASTConfig from a json file.
func LoadFASTConfiguration(file string) (*FASTConfig, error) {
	var config FASTConfig
	filePath := filepath.Clean(file)
	//nolint:gosec
	configFile, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer goutils.UncheckedErrorFunc(configFile.Close)
	jsonParser := json.NewDecoder(configFile)
	if err := jsonParser.Decode(&config); err != nil {
		return nil, err
	}
	if err := config.Validate(file); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate ensures all parts of the FASTConfig are valid.
func (config *FASTConfig) Validate(path string) error {
	var err error
	if config.Threshold <= 0 || config.Threshold >= 255 {
		err = multierr.Append(err, goutils.NewConfigValidationError(path, errors.New("threshold should be in (0, 255)")))
	}
	if config.NMatchesCircle < 1 || config.NMatchesCircle > len(CircleIdx) {
		err = multierr.Append(err, goutils.NewConfigValidationError(path,
			errors.Errorf("n_matches should be in [1, %d]", len(CircleIdx))))
	}
	if config.NonMaxSuppression && config.NMSWinSize < 1 {
		err = multierr.Append(err, goutils.NewConfigValidationError(path, errors.New("nms_win_size should be >= 1")))
	}
	if config.MaxKeypoints < 0 {
		err = multierr.Append(err, goutils.NewConfigValidationError(path, errors.New("max_keypoints should be >= 0")))
	}
	return err
}

type (
	// PixelType stores 0 if a pixel is darker than center pixel, and 1 if brighter.
	PixelType int
	// ScoredKeyPoint is a FAST corner with its score.
	ScoredKeyPoint struct {
		Point image.Point
		Score float64
	}
)

const (
	darker  PixelType = iota // 0
	brighter                 // 1
)

var (
	// CrossIdx contains the neighbors coordinates in a 3-cross neighborhood.
	CrossIdx = []image.Point{{3, 0}, {0, 3}, {-3, 0}, {0, -3}}
	// CircleIdx contains the neighbors coordinates in a circle of radius 3 neighborhood, clockwise from the top.
	CircleIdx = []image.Point{
		{0, -3},
		{1, -3},
		{2, -2},
		{3, -1},
		{3, 0},
		{3, 1},
		{2, 2},
		{1, 3},
		{0, 3},
		{-1, 3},
		{-2, 2},
		{-3, 1},
		{-3, 0},
		{-3, -1},
		{-2, -2},
		{-1, -3},
	}
)

// fastMargin keeps the circle inside the image.
const fastMargin = 3

// GetPointValuesInNeighborhood returns a slice of floats containing the values of neighborhood pixels in image img.
func GetPointValuesInNeighborhood(img *image.Gray, coords image.Point, neighborhood []image.Point) []float64 {
	vals := make([]float64, len(neighborhood))
	for i := 0; i < len(neighborhood); i++ {
		c := img.GrayAt(coords.X+neighborhood[i].X, coords.Y+neighborhood[i].Y).Y
		vals[i] = float64(c)
	}
	return vals
}

// isValidSliceVals returns true if s contains at least n contiguous ones, wrapping around the end of s.
func isValidSliceVals(s []float64, n int) bool {
	if n > len(s) || n <= 0 {
		return false
	}
	count := 0
	for i := 0; i < 2*len(s); i++ {
		if s[i%len(s)] > 0 {
			count++
			if count >= n {
				return true
			}
		} else {
			count = 0
		}
	}
	return false
}

func sumOfPositiveValuesSlice(s []float64) float64 {
	sum := 0.
	for _, v := range s {
		if v > 0 {
			sum += v
		}
	}
	return sum
}

func sumOfNegativeValuesSlice(s []float64) float64 {
	sum := 0.
	for _, v := range s {
		if v < 0 {
			sum += v
		}
	}
	return sum
}

// getBrighterValues returns a slice of 1 where s[i] > t, 0 elsewhere.
func getBrighterValues(s []float64, t float64) []float64 {
	out := make([]float64, len(s))
	for i, v := range s {
		if v > t {
			out[i] = 1
		}
	}
	return out
}

// getDarkerValues returns a slice of 1 where s[i] < t, 0 elsewhere.
func getDarkerValues(s []float64, t float64) []float64 {
	out := make([]float64, len(s))
	for i, v := range s {
		if v < t {
			out[i] = 1
		}
	}
	return out
}

// passesCrossTest is the FAST high speed test: an arc of n circle pixels always covers at least n/4 of the four
// cross pixels.
func passesCrossTest(img *image.Gray, pt image.Point, center, threshold float64, n int) bool {
	need := n / 4
	if need == 0 {
		return true
	}
	vals := GetPointValuesInNeighborhood(img, pt, CrossIdx)
	nBrighter, nDarker := 0, 0
	for _, v := range vals {
		switch {
		case v > center+threshold:
			nBrighter++
		case v < center-threshold:
			nDarker++
		}
	}
	return nBrighter >= need || nDarker >= need
}

// fastScore returns the corner score of pt and whether pt is a corner. The score is the sum of the absolute
// differences exceeding the threshold over the circle pixels of the winning type.
func fastScore(img *image.Gray, pt image.Point, cfg *FASTConfig) (float64, bool) {
	center := float64(img.GrayAt(pt.X, pt.Y).Y)
	if !passesCrossTest(img, pt, center, cfg.Threshold, cfg.NMatchesCircle) {
		return 0, false
	}
	circle := GetPointValuesInNeighborhood(img, pt, CircleIdx)
	best := 0.
	found := false
	for _, kind := range []PixelType{brighter, darker} {
		var mask []float64
		if kind == brighter {
			mask = getBrighterValues(circle, center+cfg.Threshold)
		} else {
			mask = getDarkerValues(circle, center-cfg.Threshold)
		}
		if !isValidSliceVals(mask, cfg.NMatchesCircle) {
			continue
		}
		diffs := make([]float64, len(circle))
		for i, v := range circle {
			if mask[i] > 0 {
				diffs[i] = v - center
			}
		}
		var score float64
		if kind == brighter {
			score = sumOfPositiveValuesSlice(diffs)
		} else {
			score = -sumOfNegativeValuesSlice(diffs)
		}
		score -= cfg.Threshold * sumOfPositiveValuesSlice(mask)
		if !found || score > best {
			best = score
		}
		found = true
	}
	return best, found
}

// ComputeFASTScored detects FAST corners and returns them with their scores, best first.
func ComputeFASTScored(img *image.Gray, cfg *FASTConfig) []ScoredKeyPoint {
	b := img.Bounds()
	rows := b.Dy() - 2*fastMargin
	cols := b.Dx() - 2*fastMargin
	if rows <= 0 || cols <= 0 {
		return nil
	}
	var mu sync.Mutex
	var candidates []ScoredKeyPoint
	utils.GroupWorkParallel(rows, nil, func(_, _, _, _ int) (utils.MemberWorkFunc, utils.GroupWorkDoneFunc) {
		var local []ScoredKeyPoint
		detectRow := func(_, row int) {
			y := b.Min.Y + fastMargin + row
			for x := b.Min.X + fastMargin; x < b.Min.X+fastMargin+cols; x++ {
				pt := image.Point{x, y}
				if score, ok := fastScore(img, pt, cfg); ok {
					local = append(local, ScoredKeyPoint{pt, score})
				}
			}
		}
		merge := func() {
			mu.Lock()
			candidates = append(candidates, local...)
			mu.Unlock()
		}
		return detectRow, merge
	})
	// ties broken by raster order so the result does not depend on scheduling
	sort.Slice(candidates, func(i, j int) bool {
		ci, cj := candidates[i], candidates[j]
		if ci.Score != cj.Score {
			return ci.Score > cj.Score
		}
		if ci.Point.Y != cj.Point.Y {
			return ci.Point.Y < cj.Point.Y
		}
		return ci.Point.X < cj.Point.X
	})
	if cfg.NonMaxSuppression {
		candidates = nonMaxSuppression(candidates, b, cfg.NMSWinSize)
	}
	if cfg.MaxKeypoints > 0 && len(candidates) > cfg.MaxKeypoints {
		candidates = candidates[:cfg.MaxKeypoints]
	}
	return candidates
}

// nonMaxSuppression greedily keeps corners in score order and drops those within radius of a kept one.
func nonMaxSuppression(sorted []ScoredKeyPoint, bounds image.Rectangle, radius int) []ScoredKeyPoint {
	w, h := bounds.Dx(), bounds.Dy()
	suppressed := make([]bool, w*h)
	kept := make([]ScoredKeyPoint, 0, len(sorted))
	for _, kp := range sorted {
		x, y := kp.Point.X-bounds.Min.X, kp.Point.Y-bounds.Min.Y
		if suppressed[y*w+x] {
			continue
		}
		kept = append(kept, kp)
		for yy := utils.MaxInt(0, y-radius); yy <= utils.MinInt(h-1, y+radius); yy++ {
			for xx := utils.MaxInt(0, x-radius); xx <= utils.MinInt(w-1, x+radius); xx++ {
				suppressed[yy*w+xx] = true
			}
		}
	}
	return kept
}

// ComputeFAST computes the location of FAST keypoints, best scores first.
func ComputeFAST(img *image.Gray, cfg *FASTConfig) KeyPoints {
	scored := ComputeFASTScored(img, cfg)
	kps := make(KeyPoints, len(scored))
	for i, s := range scored {
		kps[i] = s.Point
	}
	return kps
}
