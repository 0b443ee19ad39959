package actuator

import (
	"math"
	"math/rand"
	"time"

	"github.com/YoshitsuguKoike/ladas/internal/application/service/failsafe"
	"github.com/YoshitsuguKoike/ladas/internal/domain/model/action"
)

// MotionConfig tunes the human-like pointer animation
type MotionConfig struct {
	SpeedMultiplier float64
	BezierVariance  float64
	MinDuration     time.Duration
	MaxDuration     time.Duration
	FrameInterval   time.Duration
}

// DefaultMotionConfig mirrors the shipped configuration defaults
func DefaultMotionConfig() MotionConfig {
	return MotionConfig{
		SpeedMultiplier: 1.0,
		BezierVariance:  0.2,
		MinDuration:     200 * time.Millisecond,
		MaxDuration:     1200 * time.Millisecond,
		FrameInterval:   10 * time.Millisecond,
	}
}

func (c MotionConfig) withDefaults() MotionConfig {
	d := DefaultMotionConfig()
	if c.SpeedMultiplier <= 0 {
		c.SpeedMultiplier = d.SpeedMultiplier
	}
	if c.BezierVariance <= 0 {
		c.BezierVariance = d.BezierVariance
	}
	if c.MinDuration <= 0 {
		c.MinDuration = d.MinDuration
	}
	if c.MaxDuration <= 0 {
		c.MaxDuration = d.MaxDuration
	}
	if c.FrameInterval <= 0 {
		c.FrameInterval = d.FrameInterval
	}
	return c
}

// Animator generates human-like pointer paths along randomized cubic bezier
// curves with smoothstep easing. Every intermediate frame consults the abort
// signal so a movement in progress stops mid-path on abort.
type Animator struct {
	cfg    MotionConfig
	signal *failsafe.Signal
	rng    *rand.Rand
}

// NewAnimator creates an animator bound to the abort signal
func NewAnimator(cfg MotionConfig, signal *failsafe.Signal) *Animator {
	return &Animator{
		cfg:    cfg.withDefaults(),
		signal: signal,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// duration scales with distance (about 0.8s per 1000px at multiplier 1.0)
// with slight jitter, bounded by the configured min and max.
func (a *Animator) duration(distance float64) time.Duration {
	base := distance / 1000.0 * 0.8 * a.cfg.SpeedMultiplier
	base *= 0.9 + a.rng.Float64()*0.2
	d := time.Duration(base * float64(time.Second))
	if d < a.cfg.MinDuration {
		return a.cfg.MinDuration
	}
	if d > a.cfg.MaxDuration {
		return a.cfg.MaxDuration
	}
	return d
}

// path generates the intermediate points of a cubic bezier curve from start
// to end. Control points sit a third and two thirds along the straight line,
// perturbed proportionally to the distance.
func (a *Animator) path(start, end action.Point, frames int) []action.Point {
	if frames < 2 {
		return []action.Point{end}
	}

	x1, y1 := float64(start.X), float64(start.Y)
	x4, y4 := float64(end.X), float64(end.Y)
	distance := math.Hypot(x4-x1, y4-y1)
	variance := distance * a.cfg.BezierVariance

	cx1 := x1 + (x4-x1)*0.33 + a.rng.Float64()*2*variance - variance
	cy1 := y1 + (y4-y1)*0.33 + a.rng.Float64()*2*variance - variance
	cx2 := x1 + (x4-x1)*0.66 + a.rng.Float64()*2*variance - variance
	cy2 := y1 + (y4-y1)*0.66 + a.rng.Float64()*2*variance - variance

	points := make([]action.Point, 0, frames)
	for i := 0; i < frames; i++ {
		t := float64(i) / float64(frames-1)
		// smoothstep easing: accelerate then decelerate
		t = t * t * (3 - 2*t)
		mt := 1 - t
		x := mt*mt*mt*x1 + 3*mt*mt*t*cx1 + 3*mt*t*t*cx2 + t*t*t*x4
		y := mt*mt*mt*y1 + 3*mt*mt*t*cy1 + 3*mt*t*t*cy2 + t*t*t*y4
		points = append(points, action.Point{X: int(math.Round(x)), Y: int(math.Round(y))})
	}
	return points
}

// MoveAlong animates the pointer from its current position to target. It
// returns ErrTaskAborted as soon as the abort signal fires, leaving the
// pointer wherever the last emitted frame put it.
func (a *Animator) MoveAlong(pointer Pointer, target action.Point) error {
	if err := a.signal.Check(); err != nil {
		return err
	}

	sx, sy := pointer.Position()
	start := action.Point{X: sx, Y: sy}
	distance := math.Hypot(float64(target.X-start.X), float64(target.Y-start.Y))
	if distance < 1 {
		pointer.MoveTo(target.X, target.Y)
		return nil
	}

	d := a.duration(distance)
	frames := int(d / a.cfg.FrameInterval)
	if frames < 2 {
		frames = 2
	}

	ticker := time.NewTicker(a.cfg.FrameInterval)
	defer ticker.Stop()
	for _, p := range a.path(start, target, frames) {
		if err := a.signal.Check(); err != nil {
			return err
		}
		pointer.MoveTo(p.X, p.Y)
		select {
		case <-a.signal.Done():
			return a.signal.Check()
		case <-ticker.C:
		}
	}
	return nil
}
