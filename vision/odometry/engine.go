// Package odometry implements monocular visual odometry: features are tracked from frame to frame, the relative
// camera motion is estimated from their epipolar geometry, scaled against a reference trajectory and integrated
// into a cumulative pose.
package odometry

import (
	"image"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/monovo/logging"
	"go.viam.com/monovo/rimage/transform"
)

// Stage is the bootstrap state of an Engine.
type Stage int

// The engine goes through Bootstrap0 and Bootstrap1 once and then stays in Tracking.
const (
	StageBootstrap0 Stage = iota
	StageBootstrap1
	StageTracking
)

func (s Stage) String() string {
	switch s {
	case StageBootstrap0:
		return "bootstrap0"
	case StageBootstrap1:
		return "bootstrap1"
	case StageTracking:
		return "tracking"
	default:
		return "unknown"
	}
}

// StepResult describes what one successful Update did.
type StepResult struct {
	FrameID    int
	Stage      Stage
	Tracked    int
	Redetected bool
	Inliers    int
	Scale      float64
	Accepted   bool
	Reason     SkipReason
	// Err is the estimation error absorbed by the engine, if any.
	Err error
}

// EngineState is a snapshot of an Engine.
type EngineState struct {
	// Stage is the stage the next frame will be processed in.
	Stage Stage
	// FrameID is the number of successful updates, which is the id the next frame must have.
	FrameID         int
	Pose            Pose
	NumPoints       int
	TrueTranslation r3.Vector
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithTracker replaces the feature tracker of the engine.
func WithTracker(tracker Tracker) EngineOption {
	return func(e *Engine) {
		e.tracker = tracker
	}
}

// WithMotionEstimator replaces the motion estimator of the engine.
func WithMotionEstimator(estimator MotionEstimator) EngineOption {
	return func(e *Engine) {
		e.estimator = estimator
	}
}

// Engine is the visual odometry state machine of one camera stream. It is not safe for concurrent use; each
// stream needs its own Engine.
type Engine struct {
	cam       transform.CameraModel
	cfg       *Config
	logger    logging.Logger
	tracker   Tracker
	estimator MotionEstimator
	ref       TrajectorySource
	corrector *ScaleCorrector

	stage   Stage
	frameID int
	pose    Pose
	trueT   r3.Vector
	last    StepResult
}

// NewEngine returns an engine in Bootstrap0 with the identity pose. A nil cfg uses DefaultConfig.
func NewEngine(
	cam transform.CameraModel,
	ref TrajectorySource,
	cfg *Config,
	logger logging.Logger,
	opts ...EngineOption,
) (*Engine, error) {
	if cam == nil {
		return nil, transform.NewNoIntrinsicsError("camera model is nil")
	}
	if err := cam.CheckValid(); err != nil {
		return nil, err
	}
	if ref == nil {
		return nil, errors.New("reference trajectory source is nil")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate("config"); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Global()
	}
	e := &Engine{
		cam:       cam,
		cfg:       cfg,
		logger:    logger,
		ref:       ref,
		corrector: NewScaleCorrector(ref, &cfg.Scale),
		stage:     StageBootstrap0,
		pose:      NewPose(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.tracker == nil {
		e.tracker = NewFeatureTracker(&cfg.Tracker, logger.Sublogger("tracker"))
	}
	if e.estimator == nil {
		e.estimator = NewEssentialMotionEstimator(cam, &cfg.Estimator, logger.Sublogger("estimator"))
	}
	return e, nil
}

// Update processes the next frame of the stream. frameID must be the number of prior successful updates and img
// must have the size of the camera. Those checks and the reference lookup happen before any state changes; a
// frame whose geometry does not allow a pose update is not an error, see LastStep.
func (e *Engine) Update(img *image.Gray, frameID int) error {
	if frameID != e.frameID {
		return errors.Wrapf(ErrFrameOrder, "got frame %d, expected frame %d", frameID, e.frameID)
	}
	intrinsics := e.cam.Intrinsics()
	if img == nil {
		return errors.Wrap(ErrDimensionMismatch, "image is nil")
	}
	if size := img.Bounds().Size(); size.X != intrinsics.Width || size.Y != intrinsics.Height {
		return errors.Wrapf(ErrDimensionMismatch, "image is %dx%d, camera is %dx%d",
			size.X, size.Y, intrinsics.Width, intrinsics.Height)
	}
	trueT, err := e.ref.Translation(frameID)
	if err != nil {
		return err
	}
	result := StepResult{FrameID: frameID, Stage: e.stage}
	if e.stage == StageTracking {
		scale, err := e.corrector.Scale(frameID)
		if err != nil {
			return err
		}
		// reported even when the motion cannot be estimated
		result.Scale = scale
	}

	switch e.stage {
	case StageBootstrap0:
		result.Tracked = e.tracker.Initialize(img)
		result.Reason = SkipReasonBootstrap
		e.stage = StageBootstrap1
	case StageBootstrap1:
		estimate, err := e.trackAndEstimate(img, &result)
		if err != nil {
			return err
		}
		if estimate != nil {
			e.pose = SeedPose(estimate.Motion3D)
			result.Scale = 1
			result.Accepted = true
		}
		e.stage = StageTracking
	case StageTracking:
		estimate, err := e.trackAndEstimate(img, &result)
		if err != nil {
			return err
		}
		if estimate != nil {
			correction, err := e.corrector.Correct(frameID, estimate.Motion3D)
			if err != nil {
				return err
			}
			result.Scale = correction.Scale
			result.Accepted = correction.Accepted
			result.Reason = correction.Reason
			if correction.Accepted {
				e.pose = Integrate(e.pose, estimate.Motion3D, correction.Scale)
			}
		}
	default:
		return errors.Errorf("unknown engine stage %d", e.stage)
	}

	e.frameID++
	e.trueT = trueT
	e.last = result
	e.logger.Debugw("frame processed",
		"frame", frameID,
		"stage", result.Stage.String(),
		"tracked", result.Tracked,
		"redetected", result.Redetected,
		"inliers", result.Inliers,
		"scale", result.Scale,
		"accepted", result.Accepted,
		"reason", result.Reason.String(),
	)
	return nil
}

// trackAndEstimate runs the tracker and the estimator. Geometric failures are recorded in result and yield a nil
// estimate; only tracker errors are returned.
func (e *Engine) trackAndEstimate(img *image.Gray, result *StepResult) (*MotionEstimate, error) {
	corr, err := e.tracker.Track(img)
	if err != nil {
		return nil, errors.Wrapf(err, "error tracking frame %d", result.FrameID)
	}
	result.Tracked = len(corr.Curr)
	result.Redetected = corr.Redetected
	estimate, err := e.estimator.Estimate(corr.Prev, corr.Curr)
	if err != nil {
		result.Err = err
		switch {
		case errors.Is(err, ErrInsufficientCorrespondences):
			result.Reason = SkipReasonInsufficientCorrespondences
		case errors.Is(err, ErrEstimationDegeneracy):
			result.Reason = SkipReasonEstimationDegeneracy
		default:
			e.logger.Warnf("motion estimation failed on frame %d: %v", result.FrameID, err)
			result.Reason = SkipReasonEstimationDegeneracy
		}
		return nil, nil
	}
	result.Inliers = estimate.Inliers
	return estimate, nil
}

// CurrentTranslation returns the cumulative translation of the camera.
func (e *Engine) CurrentTranslation() r3.Vector {
	return e.pose.Translation
}

// CurrentRotation returns a copy of the cumulative rotation of the camera.
func (e *Engine) CurrentRotation() *mat.Dense {
	return mat.DenseCopyOf(e.pose.Rotation)
}

// TrueTranslation returns the reference translation of the last processed frame.
func (e *Engine) TrueTranslation() r3.Vector {
	return e.trueT
}

// State returns a snapshot of the engine.
func (e *Engine) State() EngineState {
	return EngineState{
		Stage:           e.stage,
		FrameID:         e.frameID,
		Pose:            e.pose.Copy(),
		NumPoints:       e.tracker.NumPoints(),
		TrueTranslation: e.trueT,
	}
}

// LastStep returns the result of the last successful Update.
func (e *Engine) LastStep() StepResult {
	return e.last
}
