package rtls

import "math"

// PositionTraceDepth is the number of position estimates kept per device.
const PositionTraceDepth = 3

// Coord is a position in zone coordinates.
type Coord [3]float32

// Trace is a position estimate at a timestamp. It is a value type and is
// never modified once stored.
type Trace struct {
	Coord     Coord  `json:"coord"`
	Timestamp uint32 `json:"timestamp"`
}

// At returns a copy of the trace stamped with ts.
func (t Trace) At(ts uint32) Trace {
	t.Timestamp = ts
	return t
}

// IsFinite reports whether every coordinate is a finite number.
func (c Coord) IsFinite() bool {
	for _, v := range c {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// Distance returns the euclidean distance between two coordinates.
func (c Coord) Distance(o Coord) float64 {
	dx := float64(c[0]) - float64(o[0])
	dy := float64(c[1]) - float64(o[1])
	dz := float64(c[2]) - float64(o[2])
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}
