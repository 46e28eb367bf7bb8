package rtls

// Constraint is one ranging partner offered to a PositionEstimator: the
// shared sample history and the partner's last known position.
type Constraint struct {
	NeighborID uint32
	Samples    []MeasurementSample // newest first
	Position   Trace
}

// EstimateInput is everything an estimator may use to place one device.
type EstimateInput struct {
	DeviceID    uint32
	History     []Trace // newest first
	Constraints []Constraint
	Timestamp   uint32
}

// PositionEstimator turns ranging data into position estimates.
// Implementations must be deterministic and keep no state between calls.
// Neither method may fail: with too little data they degrade to
// extrapolating the device's own history.
type PositionEstimator interface {
	// CalcPosition computes a fresh estimate for in.Timestamp.
	CalcPosition(in EstimateInput) Trace
	// EstimatePosition is the read-only path; it must be O(1).
	EstimatePosition(history []Trace, timestamp uint32) Trace
}

// HoldPosition returns the newest trace re-stamped with timestamp.
func HoldPosition(history []Trace, timestamp uint32) Trace {
	if len(history) == 0 {
		return Trace{Timestamp: timestamp}
	}
	return history[0].At(timestamp)
}

// Extrapolate continues the motion between the two newest traces up to
// timestamp. The look-ahead never exceeds the interval between those two
// traces; with fewer than two distinct timestamps the position is held.
func Extrapolate(history []Trace, timestamp uint32) Trace {
	if len(history) < 2 || history[0].Timestamp <= history[1].Timestamp {
		return HoldPosition(history, timestamp)
	}
	p0, p1 := history[0], history[1]
	interval := float64(p0.Timestamp - p1.Timestamp)
	ahead := float64(elapsed(timestamp, p0.Timestamp))
	if ahead > interval {
		ahead = interval
	}
	k := ahead / interval

	out := Trace{Timestamp: timestamp}
	for i := range out.Coord {
		out.Coord[i] = p0.Coord[i] + float32(float64(p0.Coord[i]-p1.Coord[i])*k)
	}
	if !out.Coord.IsFinite() {
		return HoldPosition(history, timestamp)
	}
	return out
}

// elapsed returns now-then, or zero when then is in the future.
func elapsed(now, then uint32) uint32 {
	if now < then {
		return 0
	}
	return now - then
}
