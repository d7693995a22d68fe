package odometry

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// TrajectorySource supplies the absolute translation of the camera for a frame. It is the scale source of the
// engine; a reference trajectory is the benchmarking implementation.
type TrajectorySource interface {
	// Translation returns the translation of frame frameID, or an error wrapping ErrGroundTruthIndex.
	Translation(frameID int) (r3.Vector, error)
	Len() int
}

// ReferenceTrajectory is an index aligned list of absolute camera translations, one per frame.
type ReferenceTrajectory []r3.Vector

// Translation returns the reference translation of a frame.
func (rt ReferenceTrajectory) Translation(frameID int) (r3.Vector, error) {
	if frameID < 0 || frameID >= len(rt) {
		return r3.Vector{}, errors.Wrapf(ErrGroundTruthIndex, "frame %d, reference has %d poses", frameID, len(rt))
	}
	return rt[frameID], nil
}

// Len returns the number of poses.
func (rt ReferenceTrajectory) Len() int {
	return len(rt)
}

// posesPerLine is the number of values of a row-major 3x4 [R|t] matrix.
const posesPerLine = 12

// ParseReferenceTrajectory reads one pose per line, each twelve whitespace separated values of a row-major 3x4
// [R|t] matrix, and keeps the translations (4th, 8th and 12th values). Line i is frame i, so blank lines are only
// accepted at the end.
func ParseReferenceTrajectory(r io.Reader) (ReferenceTrajectory, error) {
	var trajectory ReferenceTrajectory
	scanner := bufio.NewScanner(r)
	lineNum := 0
	blankAt := 0
	for scanner.Scan() {
		lineNum++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			if blankAt == 0 {
				blankAt = lineNum
			}
			continue
		}
		if blankAt != 0 {
			return nil, errors.Errorf("line %d: blank line inside the trajectory", blankAt)
		}
		if len(fields) != posesPerLine {
			return nil, errors.Errorf("line %d: expected %d values, got %d", lineNum, posesPerLine, len(fields))
		}
		var values [posesPerLine]float64
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d: value %d", lineNum, i+1)
			}
			values[i] = v
		}
		trajectory = append(trajectory, r3.Vector{X: values[3], Y: values[7], Z: values[11]})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "error reading reference trajectory")
	}
	return trajectory, nil
}

// LoadReferenceTrajectory parses the reference trajectory stored at path.
func LoadReferenceTrajectory(path string) (ReferenceTrajectory, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, errors.Wrap(err, "error opening reference trajectory")
	}
	defer utils.UncheckedErrorFunc(f.Close)
	trajectory, err := ParseReferenceTrajectory(f)
	if err != nil {
		return nil, errors.Wrapf(err, "error parsing %s", path)
	}
	return trajectory, nil
}
