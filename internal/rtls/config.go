package rtls

import (
	"github.com/ktrzcinx/rtls/internal/config"
	"github.com/ktrzcinx/rtls/internal/monitoring"
)

// DefaultStalenessThreshold applies when Config.StalenessThreshold is zero.
const DefaultStalenessThreshold uint32 = 5000

// Config holds the parameters of a Zone.
type Config struct {
	// ID identifies the zone in logs and recordings.
	ID int32
	// StalenessThreshold is the maximum age (ticks) of a neighbor's last
	// activity for it to constrain a recompute. Zero selects
	// DefaultStalenessThreshold.
	StalenessThreshold uint32
	// Estimator computes positions. Nil selects a LeastSquaresEstimator with
	// default parameters.
	Estimator PositionEstimator
	// Logf receives diagnostic events. Nil routes to monitoring.Logf.
	Logf func(format string, v ...interface{})
	// Observers are notified of every state change.
	Observers []Observer
}

// DefaultConfig returns a zone configuration with built-in defaults.
func DefaultConfig() Config {
	return Config{
		StalenessThreshold: DefaultStalenessThreshold,
		Estimator:          NewLeastSquaresEstimator(DefaultEstimatorConfig()),
	}
}

// ConfigFromTuning derives a zone configuration from loaded tuning values.
func ConfigFromTuning(t *config.TuningConfig) Config {
	return Config{
		StalenessThreshold: t.GetStalenessThreshold(),
		Estimator:          NewLeastSquaresEstimator(EstimatorConfigFromTuning(t)),
	}
}

// EstimatorConfigFromTuning derives estimator parameters from tuning values.
func EstimatorConfigFromTuning(t *config.TuningConfig) EstimatorConfig {
	return EstimatorConfig{
		MaxSampleAge:    t.GetMaxSampleAge(),
		MinAnchors:      t.GetMinAnchors(),
		MaxIterations:   t.GetMaxIterations(),
		Tolerance:       t.GetTolerance(),
		Damping:         t.GetDamping(),
		SmoothingAlpha:  t.GetSmoothingAlpha(),
		MinAnchorSpread: t.GetMinAnchorSpread(),
	}
}

func (c Config) logf() func(string, ...interface{}) {
	if c.Logf != nil {
		return c.Logf
	}
	return func(format string, v ...interface{}) { monitoring.Logf(format, v...) }
}
