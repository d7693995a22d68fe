package odometry

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"go.viam.com/monovo/vision/keypoints"
	"go.viam.com/monovo/vision/opticalflow"
)

// Config contains the parameters of the visual odometry engine.
type Config struct {
	Tracker   TrackerConfig   `json:"tracker"`
	Estimator EstimatorConfig `json:"estimator"`
	Scale     ScaleConfig     `json:"scale"`
}

// TrackerConfig contains the parameters of the feature tracker.
type TrackerConfig struct {
	// MinFeatures is the tracked point count below which a fresh set of corners is detected.
	MinFeatures int `json:"min_features"`
	// Blur smooths frames with a 5x5 Gaussian before corner detection. Tracking always uses the raw frames.
	Blur bool                  `json:"blur"`
	FAST *keypoints.FASTConfig `json:"fast"`
	Flow *opticalflow.LKConfig `json:"flow"`
}

// EstimatorConfig contains the parameters of the essential matrix estimation.
type EstimatorConfig struct {
	// RANSACThresholdPx is the inlier threshold on the Sampson distance, in pixels.
	RANSACThresholdPx float64 `json:"ransac_threshold_px"`
	// Probability is the confidence of having drawn one outlier free sample when RANSAC stops.
	Probability   float64 `json:"probability"`
	MaxIterations int     `json:"max_iterations"`
	// MinInlierRatio is the fraction of correspondences the best model must explain.
	MinInlierRatio float64 `json:"min_inlier_ratio"`
	// DistanceThreshold drops triangulated points farther than this many baselines in the cheirality check.
	DistanceThreshold float64 `json:"distance_threshold"`
	// MinParallaxPx is the median pixel displacement under which the correspondences are degenerate.
	MinParallaxPx float64 `json:"min_parallax_px"`
	Seed          int64   `json:"seed"`
}

// ScaleConfig contains the acceptance gates of the scale corrector.
type ScaleConfig struct {
	// NoiseFloor is the reference displacement below which a frame is considered static.
	NoiseFloor float64 `json:"noise_floor"`
	// ForwardGate requires the estimated translation to point mostly along the optical axis.
	ForwardGate      bool    `json:"forward_gate"`
	ForwardDominance float64 `json:"forward_dominance"`
}

// DefaultConfig returns the default engine parameters.
func DefaultConfig() *Config {
	return &Config{
		Tracker: TrackerConfig{
			MinFeatures: 1500,
			FAST:        keypoints.DefaultFASTConfig(),
			Flow:        opticalflow.DefaultLKConfig(),
		},
		Estimator: EstimatorConfig{
			RANSACThresholdPx: 1.0,
			Probability:       0.999,
			MaxIterations:     1000,
			MinInlierRatio:    0.5,
			DistanceThreshold: 50,
			MinParallaxPx:     0.25,
			Seed:              1,
		},
		Scale: ScaleConfig{
			NoiseFloor:       0.1,
			ForwardGate:      true,
			ForwardDominance: 1.0,
		},
	}
}

// LoadConfig loads a configuration from a json file. Fields missing from the file keep their default value.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()
	configFile, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, errors.Wrap(err, "error opening config file")
	}
	defer utils.UncheckedErrorFunc(configFile.Close)
	if err := json.NewDecoder(configFile).Decode(config); err != nil {
		return nil, errors.Wrap(err, "error parsing config file")
	}
	if err := config.Validate(path); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate ensures all parts of the Config are valid.
func (config *Config) Validate(path string) error {
	return multierr.Combine(
		config.Tracker.Validate(path),
		config.Estimator.Validate(path),
		config.Scale.Validate(path),
	)
}

// Validate ensures all parts of the TrackerConfig are valid.
func (config *TrackerConfig) Validate(path string) error {
	var err error
	if config.MinFeatures < 0 {
		err = multierr.Append(err, utils.NewConfigValidationError(path, errors.New("tracker.min_features should be >= 0")))
	}
	if config.FAST == nil {
		err = multierr.Append(err, utils.NewConfigValidationFieldRequiredError(path, "tracker.fast"))
	} else {
		err = multierr.Append(err, config.FAST.Validate(path))
	}
	if config.Flow == nil {
		err = multierr.Append(err, utils.NewConfigValidationFieldRequiredError(path, "tracker.flow"))
	} else {
		err = multierr.Append(err, config.Flow.Validate(path))
	}
	return err
}

// Validate ensures all parts of the EstimatorConfig are valid.
func (config *EstimatorConfig) Validate(path string) error {
	var err error
	if config.RANSACThresholdPx <= 0 {
		err = multierr.Append(err, utils.NewConfigValidationError(path,
			errors.New("estimator.ransac_threshold_px should be > 0")))
	}
	if config.Probability <= 0 || config.Probability >= 1 {
		err = multierr.Append(err, utils.NewConfigValidationError(path,
			errors.New("estimator.probability should be in (0, 1)")))
	}
	if config.MaxIterations < 1 {
		err = multierr.Append(err, utils.NewConfigValidationError(path,
			errors.New("estimator.max_iterations should be >= 1")))
	}
	if config.MinInlierRatio < 0 || config.MinInlierRatio > 1 {
		err = multierr.Append(err, utils.NewConfigValidationError(path,
			errors.New("estimator.min_inlier_ratio should be in [0, 1]")))
	}
	if config.DistanceThreshold < 0 {
		err = multierr.Append(err, utils.NewConfigValidationError(path,
			errors.New("estimator.distance_threshold should be >= 0")))
	}
	if config.MinParallaxPx < 0 {
		err = multierr.Append(err, utils.NewConfigValidationError(path,
			errors.New("estimator.min_parallax_px should be >= 0")))
	}
	return err
}

// Validate ensures all parts of the ScaleConfig are valid.
func (config *ScaleConfig) Validate(path string) error {
	var err error
	if config.NoiseFloor < 0 {
		err = multierr.Append(err, utils.NewConfigValidationError(path, errors.New("scale.noise_floor should be >= 0")))
	}
	if config.ForwardDominance <= 0 {
		err = multierr.Append(err, utils.NewConfigValidationError(path,
			errors.New("scale.forward_dominance should be > 0")))
	}
	return err
}
