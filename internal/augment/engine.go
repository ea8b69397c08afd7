package augment

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gocv.io/x/gocv"

	"github.com/dudu/eyegaze/internal/eye"
	"github.com/dudu/eyegaze/internal/gaze"
	"github.com/dudu/eyegaze/internal/geometry"
)

// RenderEyeballRadius is the eyeball radius, in render pixels, of the
// synthetic eye model.
const RenderEyeballRadius = 71.7593

// Contour sizes of a render annotation
const (
	InteriorPoints = 16
	IrisPoints     = 32
)

// ErrInvalidAnnotation is returned when an annotation lacks the landmarks
// needed to place the eye crop.
var ErrInvalidAnnotation = errors.New("augment: invalid annotation")

// Config configures an Engine
type Config struct {
	Size         geometry.Size
	Difficulty   float64
	Ranges       Ranges
	Heatmaps     bool
	HeatmapScale float64
}

// DefaultConfig returns a 36x60 easy configuration without heatmaps
func DefaultConfig() Config {
	return Config{
		Size:         eye.DefaultSize,
		Ranges:       DefaultRanges(),
		HeatmapScale: 1.0,
	}
}

// Example is one augmented training sample
type Example struct {
	Eye  []float32 // row-major, in [-1, 1]
	Size geometry.Size

	// Landmarks follow the gaze layout: 8 eyelid, 8 iris, iris centre,
	// eyeball centre, all in eye-image pixels.
	Landmarks []geometry.Point
	Gaze      gaze.Angles
	Radius    float64

	Heatmaps    [][]float32
	HeatmapSize geometry.Size
}

const seedMix = 0x9e3779b97f4a7c15

// Engine turns annotated renders into augmented examples. An Engine owns its
// random source and multiplier pool and must not be shared between
// goroutines; build one per worker.
type Engine struct {
	ranges       Ranges
	difficulty   float64
	size         geometry.Size
	heatmaps     bool
	heatmapScale float64

	src  *rand.PCG
	rng  *rand.Rand
	pool *multiplierPool
}

// NewEngine validates cfg and seeds a private random source
func NewEngine(cfg Config, seed uint64) (*Engine, error) {
	if err := ValidateDifficulty(cfg.Difficulty); err != nil {
		return nil, err
	}
	if cfg.Size.W <= 0 || cfg.Size.H <= 0 {
		return nil, fmt.Errorf("invalid eye size %dx%d", cfg.Size.W, cfg.Size.H)
	}
	if cfg.Ranges == nil {
		cfg.Ranges = DefaultRanges()
	}
	for _, t := range []Type{Translation, Rotation, Intensity, Blur, Scale, Rescale, NumLine, HeatmapSigma} {
		if _, ok := cfg.Ranges[t]; !ok {
			return nil, fmt.Errorf("ranges table is missing %q", t)
		}
	}
	if cfg.HeatmapScale <= 0 {
		cfg.HeatmapScale = 1.0
	}

	src := rand.NewPCG(seed, seed^seedMix)
	rng := rand.New(src)
	return &Engine{
		ranges:       cfg.Ranges,
		difficulty:   cfg.Difficulty,
		size:         cfg.Size,
		heatmaps:     cfg.Heatmaps,
		heatmapScale: cfg.HeatmapScale,
		src:          src,
		rng:          rng,
		pool:         newMultiplierPool(len(cfg.Ranges), rng),
	}, nil
}

// Reseed restarts the engine's random stream as if it had been built with
// seed. The next Process call draws exactly what a fresh engine would.
func (e *Engine) Reseed(seed uint64) {
	e.src.Seed(seed, seed^seedMix)
	e.pool.next = len(e.pool.values)
}

// SetDifficulty changes the curriculum difficulty for subsequent examples
func (e *Engine) SetDifficulty(d float64) error {
	if err := ValidateDifficulty(d); err != nil {
		return err
	}
	e.difficulty = d
	return nil
}

// Difficulty returns the current difficulty
func (e *Engine) Difficulty() float64 {
	return e.difficulty
}

// SetRange replaces the range of a known augmentation type for this engine
func (e *Engine) SetRange(t Type, easy, hard float64) error {
	r, err := e.ranges.With(t, easy, hard)
	if err != nil {
		return err
	}
	e.ranges = r
	return nil
}

// ValueFromType is the nominal value of t at the current difficulty
func (e *Engine) ValueFromType(t Type) float64 {
	return e.ranges.Value(t, e.difficulty)
}

func (e *Engine) noisyValueFromType(t Type) float64 {
	return e.pool.take() * e.ValueFromType(t)
}

// Process builds one example from a. Renders with a non-frontal head pose
// return ErrOutOfFrontalRange.
func (e *Engine) Process(a *Annotation) (*Example, error) {
	if !a.HeadPose.Frontal() {
		return nil, ErrOutOfFrontalRange
	}
	if len(a.Interior) < InteriorPoints || len(a.Caruncle) == 0 || len(a.Iris) < IrisPoints {
		return nil, fmt.Errorf("%w: %d interior, %d caruncle, %d iris points",
			ErrInvalidAnnotation, len(a.Interior), len(a.Caruncle), len(a.Iris))
	}
	if a.Image.Empty() {
		return nil, fmt.Errorf("%w: empty image", ErrInvalidAnnotation)
	}

	e.pool.refill()

	frame := a.Size()
	pair, rotation, radius, err := e.placement(a, frame)
	if err != nil {
		return nil, err
	}

	img := gocv.NewMat()
	defer func() { img.Close() }()
	m := eye.AffineMat(pair.Forward)
	gocv.WarpAffine(a.Image, &img, m, e.size.Image())
	m.Close()

	unrotated, angles := GroundTruthGaze(a.LookVec, rotation)

	e.drawLines(&img, int(math.Round(e.noisyValueFromType(NumLine))))
	e.rescale(&img)
	e.addIntensity(&img)
	blur(&img, e.noisyValueFromType(Blur))

	ex := &Example{
		Eye:       finalize(&img),
		Size:      e.size,
		Landmarks: pair.Forward.ApplyAll(sourceLandmarks(a, frame, unrotated)),
		Gaze:      angles,
		Radius:    radius,
	}

	if e.heatmaps {
		ex.Heatmaps = Heatmaps(ex.Landmarks, e.size, e.heatmapScale, e.ValueFromType(HeatmapSigma))
		ex.HeatmapSize = geometry.Size{
			W: int(math.Round(e.heatmapScale * float64(e.size.W))),
			H: int(math.Round(e.heatmapScale * float64(e.size.H))),
		}
	}
	return ex, nil
}

// placement builds the render-to-crop transform, the rotation noise on its
// own and the eyeball radius in crop pixels.
func (e *Engine) placement(a *Annotation, frame geometry.Size) (geometry.Pair, geometry.Transform, float64, error) {
	leftCorner := geometry.Mean(a.Caruncle)
	rightCorner := a.Interior[8]
	eyeWidth := geometry.EyeWidthFactor * math.Abs(leftCorner.X-rightCorner.X)
	if eyeWidth == 0 {
		return geometry.Pair{}, geometry.Transform{}, 0, geometry.ErrDegenerateGeometry
	}
	lo, hi := geometry.Bounds(a.Interior)
	middle := lo.Mid(hi)

	half := frame.Center()
	centre := geometry.TranslateStep(-half.X, -half.Y)

	rotate := geometry.IdentityStep()
	if noise := e.noisyValueFromType(Rotation); noise > 0 {
		rotate = geometry.RotateStep(geometry.Radians(noise))
	}

	scale := 1 + e.noisyValueFromType(Scale)
	scaleInv := 1 / scale
	s := float64(e.size.W) / eyeWidth * scale
	radius := RenderEyeballRadius * s

	ow, oh := float64(e.size.W), float64(e.size.H)
	tx := half.X - middle.X + 0.5*eyeWidth*scaleInv
	ty := half.Y - middle.Y + 0.5*oh/ow*eyeWidth*scaleInv
	tx += e.noisyValueFromType(Translation)
	ty += e.noisyValueFromType(Translation)

	// The recentre offset is in render pixels, so it is applied before scaling.
	pair := geometry.Chain(centre, rotate, geometry.TranslateStep(tx, ty), geometry.ScaleStep(s))
	return pair, rotate.Forward, radius, nil
}

// GroundTruthGaze converts a render look vector into the gaze before and
// after the in-plane rotation noise. The rotated yaw is re-expressed with
// the camera facing the eye.
func GroundTruthGaze(look [3]float64, rotation geometry.Transform) (unrotated, rotated gaze.Angles) {
	look[0] = -look[0]
	unrotated.Pitch, unrotated.Yaw = geometry.VectorToPitchYaw(look)
	rotated.Pitch, rotated.Yaw = geometry.VectorToPitchYaw(rotation.ApplyVec3(look))
	rotated.Yaw = WrapYaw(rotated.Yaw)
	return unrotated, rotated
}

// WrapYaw maps a yaw measured from +z onto one measured from -z
func WrapYaw(yaw float64) float64 {
	switch {
	case yaw > 0:
		return math.Pi - yaw
	case yaw < 0:
		return -(math.Pi + yaw)
	}
	return yaw
}

// IrisCentre places the iris centre on the eyeball sphere of the render,
// from the unrotated gaze.
func IrisCentre(frame geometry.Size, unrotated gaze.Angles) geometry.Point {
	c := frame.Center()
	return geometry.Pt(
		c.X+RenderEyeballRadius*-math.Cos(unrotated.Pitch)*math.Sin(unrotated.Yaw),
		c.Y+RenderEyeballRadius*-math.Sin(unrotated.Pitch),
	)
}

// sourceLandmarks selects the 18 landmarks in render coordinates
func sourceLandmarks(a *Annotation, frame geometry.Size, unrotated gaze.Angles) []geometry.Point {
	pts := make([]geometry.Point, 0, gaze.NumLandmarks)
	for i := 0; i < InteriorPoints; i += 2 {
		pts = append(pts, a.Interior[i])
	}
	for i := 0; i < IrisPoints; i += 4 {
		pts = append(pts, a.Iris[i])
	}
	return append(pts, IrisCentre(frame, unrotated), frame.Center())
}
