package rtls

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHoldPosition(t *testing.T) {
	assert.Equal(t, Trace{Timestamp: 7}, HoldPosition(nil, 7))

	hist := []Trace{{Coord: Coord{1, 2, 3}, Timestamp: 5}}
	assert.Equal(t, Trace{Coord: Coord{1, 2, 3}, Timestamp: 9}, HoldPosition(hist, 9))
}

func TestExtrapolate(t *testing.T) {
	hist := []Trace{
		{Coord: Coord{2, 0, 0}, Timestamp: 200},
		{Coord: Coord{1, 0, 0}, Timestamp: 100},
	}

	tests := []struct {
		name string
		ts   uint32
		want Coord
	}{
		{"at newest", 200, Coord{2, 0, 0}},
		{"half interval", 250, Coord{2.5, 0, 0}},
		{"full interval", 300, Coord{3, 0, 0}},
		{"clamped", 1000, Coord{3, 0, 0}},
		{"query in the past", 50, Coord{2, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extrapolate(hist, tt.ts)
			assert.Equal(t, tt.ts, got.Timestamp)
			assert.InDeltaSlice(t, tt.want[:], got.Coord[:], 1e-5)
		})
	}
}

func TestExtrapolateHoldsWithoutMotionInterval(t *testing.T) {
	same := []Trace{
		{Coord: Coord{5, 5, 5}, Timestamp: 100},
		{Coord: Coord{0, 0, 0}, Timestamp: 100},
	}
	assert.Equal(t, Coord{5, 5, 5}, Extrapolate(same, 400).Coord)

	single := []Trace{{Coord: Coord{1, 1, 1}}}
	assert.Equal(t, Trace{Coord: Coord{1, 1, 1}, Timestamp: 30}, Extrapolate(single, 30))
}

func TestElapsedSaturates(t *testing.T) {
	assert.Equal(t, uint32(5), elapsed(10, 5))
	assert.Equal(t, uint32(0), elapsed(5, 10))
}

func constraintAt(id uint32, pos Coord, dist float32, ts uint32) Constraint {
	samples := make([]MeasurementSample, MeasureDepth)
	for i := range samples {
		samples[i] = MeasurementSample{Distance: dist, Timestamp: ts}
	}
	return Constraint{NeighborID: id, Samples: samples, Position: Trace{Coord: pos}}
}

func rangeTo(a, b Coord) float32 {
	return float32(a.Distance(b))
}

func TestLeastSquaresConvergesPlanar(t *testing.T) {
	truth := Coord{3, 4, 0}
	anchors := []Coord{{0, 0, 0}, {10, 0, 0}, {0, 10, 0}, {10, 10, 0}}

	in := EstimateInput{
		DeviceID:  9,
		History:   []Trace{{Coord: Coord{5, 5, 0}}},
		Timestamp: 1000,
	}
	for i, a := range anchors {
		in.Constraints = append(in.Constraints, constraintAt(uint32(i+1), a, rangeTo(truth, a), 1000))
	}

	got := NewLeastSquaresEstimator(DefaultEstimatorConfig()).CalcPosition(in)
	assert.Equal(t, uint32(1000), got.Timestamp)
	assert.InDeltaSlice(t, truth[:], got.Coord[:], 1e-2)
}

func TestLeastSquaresConvergesSpatial(t *testing.T) {
	truth := Coord{2, 3, 4}
	anchors := []Coord{{0, 0, 0}, {10, 0, 0}, {0, 10, 0}, {0, 0, 10}}

	in := EstimateInput{
		History:   []Trace{{Coord: Coord{1, 1, 1}}},
		Timestamp: 50,
	}
	for i, a := range anchors {
		in.Constraints = append(in.Constraints, constraintAt(uint32(i+1), a, rangeTo(truth, a), 40))
	}

	got := NewLeastSquaresEstimator(EstimatorConfig{MaxIterations: 50}).CalcPosition(in)
	assert.InDeltaSlice(t, truth[:], got.Coord[:], 1e-2)
}

func TestLeastSquaresFallsBack(t *testing.T) {
	hist := []Trace{
		{Coord: Coord{2, 0, 0}, Timestamp: 200},
		{Coord: Coord{1, 0, 0}, Timestamp: 100},
	}
	est := NewLeastSquaresEstimator(DefaultEstimatorConfig())
	want := Extrapolate(hist, 250)

	t.Run("too few anchors", func(t *testing.T) {
		in := EstimateInput{History: hist, Timestamp: 250, Constraints: []Constraint{
			constraintAt(1, Coord{0, 0, 0}, 3, 250),
			constraintAt(2, Coord{10, 0, 0}, 7, 250),
		}}
		assert.Equal(t, want, est.CalcPosition(in))
	})

	t.Run("collinear anchors", func(t *testing.T) {
		in := EstimateInput{History: hist, Timestamp: 250, Constraints: []Constraint{
			constraintAt(1, Coord{0, 0, 0}, 3, 250),
			constraintAt(2, Coord{5, 0, 0}, 2, 250),
			constraintAt(3, Coord{10, 0, 0}, 7, 250),
		}}
		assert.Equal(t, want, est.CalcPosition(in))
	})

	t.Run("stale samples", func(t *testing.T) {
		in := EstimateInput{History: hist, Timestamp: 20000, Constraints: []Constraint{
			constraintAt(1, Coord{0, 0, 0}, 3, 100),
			constraintAt(2, Coord{10, 0, 0}, 7, 100),
			constraintAt(3, Coord{0, 10, 0}, 7, 100),
		}}
		assert.Equal(t, Extrapolate(hist, 20000), est.CalcPosition(in))
	})

	t.Run("non-finite neighbor", func(t *testing.T) {
		nan := float32(math.NaN())
		in := EstimateInput{History: hist, Timestamp: 250, Constraints: []Constraint{
			constraintAt(1, Coord{0, 0, 0}, 3, 250),
			constraintAt(2, Coord{10, 0, 0}, 7, 250),
			constraintAt(3, Coord{nan, 10, 0}, 7, 250),
		}}
		assert.Equal(t, want, est.CalcPosition(in))
	})
}

func TestSmoothedRangeWeightsNewest(t *testing.T) {
	est := NewLeastSquaresEstimator(EstimatorConfig{SmoothingAlpha: 0.5})
	samples := []MeasurementSample{
		{Distance: 4, Timestamp: 100},
		{Distance: 2, Timestamp: 90},
	}
	got, ok := est.smoothedRange(samples, 100)
	require.True(t, ok)
	// (1*4 + 0.5*2) / 1.5
	assert.InDelta(t, 10.0/3.0, got, 1e-9)

	_, ok = est.smoothedRange(samples, 1_000_000)
	assert.False(t, ok)
}

func TestNewLeastSquaresEstimatorDefaults(t *testing.T) {
	cfg := NewLeastSquaresEstimator(EstimatorConfig{MinAnchors: 1, SmoothingAlpha: 3}).Config()
	assert.Equal(t, DefaultEstimatorConfig(), cfg)

	custom := EstimatorConfig{
		MaxSampleAge:    10,
		MinAnchors:      4,
		MaxIterations:   5,
		Tolerance:       0.1,
		Damping:         0.2,
		SmoothingAlpha:  1,
		MinAnchorSpread: 0.5,
	}
	assert.Equal(t, custom, NewLeastSquaresEstimator(custom).Config())
}

func TestEstimatePositionHolds(t *testing.T) {
	est := NewLeastSquaresEstimator(DefaultEstimatorConfig())
	hist := []Trace{{Coord: Coord{1, 2, 3}, Timestamp: 10}}
	assert.Equal(t, Trace{Coord: Coord{1, 2, 3}, Timestamp: 99}, est.EstimatePosition(hist, 99))
}
