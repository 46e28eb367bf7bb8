package rtls

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// EstimatorConfig holds the parameters of LeastSquaresEstimator.
type EstimatorConfig struct {
	MaxSampleAge    uint32  // Samples older than this (ticks) are ignored
	MinAnchors      int     // Minimum fresh constraints for a fit (>= 3)
	MaxIterations   int     // Gauss-Newton iteration cap
	Tolerance       float64 // Step norm below which the fit has converged
	Damping         float64 // Levenberg-Marquardt diagonal term
	SmoothingAlpha  float64 // Weight decay per sample age step, (0,1]
	MinAnchorSpread float64 // Second singular value required of the anchor cloud
}

// DefaultEstimatorConfig returns the built-in estimator parameters.
func DefaultEstimatorConfig() EstimatorConfig {
	return EstimatorConfig{
		MaxSampleAge:    5000,
		MinAnchors:      3,
		MaxIterations:   20,
		Tolerance:       1e-3,
		Damping:         1e-3,
		SmoothingAlpha:  0.5,
		MinAnchorSpread: 1e-3,
	}
}

// LeastSquaresEstimator fits a position to the smoothed ranges of its fresh
// neighbors with damped Gauss-Newton iterations, and extrapolates the device
// history when the neighbors cannot pin the position down.
type LeastSquaresEstimator struct {
	cfg EstimatorConfig
}

// NewLeastSquaresEstimator creates an estimator. Zero fields fall back to
// DefaultEstimatorConfig.
func NewLeastSquaresEstimator(cfg EstimatorConfig) *LeastSquaresEstimator {
	def := DefaultEstimatorConfig()
	if cfg.MaxSampleAge == 0 {
		cfg.MaxSampleAge = def.MaxSampleAge
	}
	if cfg.MinAnchors < 3 {
		cfg.MinAnchors = def.MinAnchors
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = def.MaxIterations
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = def.Tolerance
	}
	if cfg.Damping <= 0 {
		cfg.Damping = def.Damping
	}
	if cfg.SmoothingAlpha <= 0 || cfg.SmoothingAlpha > 1 {
		cfg.SmoothingAlpha = def.SmoothingAlpha
	}
	if cfg.MinAnchorSpread <= 0 {
		cfg.MinAnchorSpread = def.MinAnchorSpread
	}
	return &LeastSquaresEstimator{cfg: cfg}
}

// Config returns the effective parameters.
func (e *LeastSquaresEstimator) Config() EstimatorConfig {
	return e.cfg
}

type anchor struct {
	pos [3]float64
	rng float64
}

// CalcPosition implements PositionEstimator.
func (e *LeastSquaresEstimator) CalcPosition(in EstimateInput) Trace {
	anchors := e.anchors(in)
	if len(anchors) < e.cfg.MinAnchors || !e.spansPlane(anchors) {
		return Extrapolate(in.History, in.Timestamp)
	}

	start := centroid(anchors)
	if len(in.History) > 0 {
		c := in.History[0].Coord
		start = [3]float64{float64(c[0]), float64(c[1]), float64(c[2])}
	}

	p, ok := e.solve(anchors, start)
	if !ok {
		return Extrapolate(in.History, in.Timestamp)
	}
	out := Trace{
		Coord:     Coord{float32(p[0]), float32(p[1]), float32(p[2])},
		Timestamp: in.Timestamp,
	}
	if !out.Coord.IsFinite() {
		return Extrapolate(in.History, in.Timestamp)
	}
	return out
}

// EstimatePosition implements PositionEstimator.
func (e *LeastSquaresEstimator) EstimatePosition(history []Trace, timestamp uint32) Trace {
	return HoldPosition(history, timestamp)
}

// anchors keeps the constraints whose newest sample is fresh and reduces
// each to a smoothed range.
func (e *LeastSquaresEstimator) anchors(in EstimateInput) []anchor {
	out := make([]anchor, 0, len(in.Constraints))
	for _, c := range in.Constraints {
		if len(c.Samples) == 0 || !c.Position.Coord.IsFinite() {
			continue
		}
		if elapsed(in.Timestamp, c.Samples[0].Timestamp) > e.cfg.MaxSampleAge {
			continue
		}
		rng, ok := e.smoothedRange(c.Samples, in.Timestamp)
		if !ok {
			continue
		}
		pc := c.Position.Coord
		out = append(out, anchor{
			pos: [3]float64{float64(pc[0]), float64(pc[1]), float64(pc[2])},
			rng: rng,
		})
	}
	return out
}

// smoothedRange is the exponentially weighted mean of the fresh samples,
// newest weighted highest.
func (e *LeastSquaresEstimator) smoothedRange(samples []MeasurementSample, now uint32) (float64, bool) {
	var sum, wsum float64
	w := 1.0
	for _, s := range samples {
		if elapsed(now, s.Timestamp) <= e.cfg.MaxSampleAge {
			sum += w * float64(s.Distance)
			wsum += w
		}
		w *= e.cfg.SmoothingAlpha
	}
	if wsum == 0 {
		return 0, false
	}
	return sum / wsum, true
}

// spansPlane rejects anchor sets that are (nearly) collinear.
func (e *LeastSquaresEstimator) spansPlane(anchors []anchor) bool {
	c := centroid(anchors)
	m := mat.NewDense(len(anchors), 3, nil)
	for i, a := range anchors {
		for j := 0; j < 3; j++ {
			m.Set(i, j, a.pos[j]-c[j])
		}
	}
	var svd mat.SVD
	if !svd.Factorize(m, mat.SVDNone) {
		return false
	}
	vals := svd.Values(nil)
	return len(vals) >= 2 && vals[1] > e.cfg.MinAnchorSpread
}

func (e *LeastSquaresEstimator) solve(anchors []anchor, start [3]float64) ([3]float64, bool) {
	p := start
	for _, a := range anchors {
		if floats.Distance(p[:], a.pos[:], 2) < e.cfg.Tolerance {
			// The range gradient is undefined on an anchor.
			p[0] += 10 * e.cfg.Tolerance
			p[1] += 10 * e.cfg.Tolerance
			break
		}
	}

	n := len(anchors)
	J := mat.NewDense(n, 3, nil)
	r := mat.NewVecDense(n, nil)
	for iter := 0; iter < e.cfg.MaxIterations; iter++ {
		for i, a := range anchors {
			d := floats.Distance(p[:], a.pos[:], 2)
			if d < 1e-12 {
				J.SetRow(i, []float64{0, 0, 0})
				r.SetVec(i, -a.rng)
				continue
			}
			for j := 0; j < 3; j++ {
				J.Set(i, j, (p[j]-a.pos[j])/d)
			}
			r.SetVec(i, d-a.rng)
		}

		var jtj mat.Dense
		jtj.Mul(J.T(), J)
		for k := 0; k < 3; k++ {
			jtj.Set(k, k, jtj.At(k, k)+e.cfg.Damping)
		}
		var g mat.VecDense
		g.MulVec(J.T(), r)

		var step mat.VecDense
		if err := step.SolveVec(&jtj, &g); err != nil {
			var cond mat.Condition
			if !errors.As(err, &cond) {
				return p, false
			}
		}
		delta := step.RawVector().Data
		for k := 0; k < 3; k++ {
			p[k] -= delta[k]
		}
		if floats.Norm(delta, 2) < e.cfg.Tolerance {
			break
		}
	}
	for _, v := range p {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return p, false
		}
	}
	return p, true
}

func centroid(anchors []anchor) [3]float64 {
	var c [3]float64
	if len(anchors) == 0 {
		return c
	}
	for _, a := range anchors {
		for j := 0; j < 3; j++ {
			c[j] += a.pos[j]
		}
	}
	for j := 0; j < 3; j++ {
		c[j] /= float64(len(anchors))
	}
	return c
}
