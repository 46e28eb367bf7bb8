package rtls

import (
	"fmt"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stepEstimator moves a device one unit along x per recompute and records
// what it was asked.
type stepEstimator struct {
	inputs []EstimateInput
}

func (s *stepEstimator) CalcPosition(in EstimateInput) Trace {
	s.inputs = append(s.inputs, in)
	out := HoldPosition(in.History, in.Timestamp)
	out.Coord[0]++
	return out
}

func (s *stepEstimator) EstimatePosition(history []Trace, ts uint32) Trace {
	return HoldPosition(history, ts)
}

type recordingObserver struct {
	NopObserver
	added    []uint32
	recorded []UpdateKind
	updated  map[uint32]int
	rejected []error
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{updated: make(map[uint32]int)}
}

func (r *recordingObserver) DeviceAdded(id uint32, _ Trace) { r.added = append(r.added, id) }
func (r *recordingObserver) MeasurementRecorded(_ MeasurementSample, k UpdateKind) {
	r.recorded = append(r.recorded, k)
}
func (r *recordingObserver) PositionUpdated(id uint32, _ Trace, constraints int) {
	r.updated[id] = constraints
}
func (r *recordingObserver) MeasurementRejected(_, _ uint32, err error) {
	r.rejected = append(r.rejected, err)
}

func quietConfig() Config {
	cfg := DefaultConfig()
	cfg.Logf = func(string, ...interface{}) {}
	return cfg
}

func TestInitScenario(t *testing.T) {
	z := Init(quietConfig())

	positions := z.GetAllPositions(0)
	require.Len(t, positions, 1)
	assert.Equal(t, Position{ID: 0, Trace: Trace{Coord: Coord{0, 0, 0}}}, positions[0])

	require.NoError(t, z.AddDevice(1, 10, 20, 30))
	err := z.AddDevice(1, 0, 0, 0)
	assert.ErrorIs(t, err, ErrDuplicateDevice)
	dev, _ := z.GetDevice(1)
	assert.Equal(t, Coord{10, 20, 30}, dev.Trace[0].Coord)

	kind, err := z.AddMeasure(0, 1, 5, 100)
	require.NoError(t, err)
	assert.Equal(t, Created, kind)
	for _, id := range []uint32{0, 1} {
		d, ok := z.GetDevice(id)
		require.True(t, ok)
		assert.Equal(t, uint32(100), d.LastActivity)
		assert.Len(t, d.Trace, 1, "created pair must not recompute device %d", id)
	}

	kind, err = z.AddMeasure(1, 0, 6, 200)
	require.NoError(t, err)
	assert.Equal(t, Updated, kind)
	latest, ok := z.Latest(0, 1)
	require.True(t, ok)
	assert.Equal(t, float32(6), latest.Distance)
	assert.Equal(t, uint32(200), latest.Timestamp)
	for _, id := range []uint32{0, 1} {
		d, _ := z.GetDevice(id)
		require.Len(t, d.Trace, 2)
		assert.Equal(t, uint32(200), d.Trace[0].Timestamp)
		assert.Equal(t, uint32(200), d.LastActivity)
	}
}

func TestInitDoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() { Init(quietConfig()) })
}

func TestAddMeasureRejections(t *testing.T) {
	obs := newRecordingObserver()
	cfg := quietConfig()
	cfg.Observers = []Observer{obs}
	z := Init(cfg)
	require.NoError(t, z.AddDevice(2, 1, 1, 1))

	tests := []struct {
		name    string
		a, b    uint32
		dist    float32
		wantErr error
	}{
		{"self", 2, 2, 1, ErrSelfMeasurement},
		{"negative", 0, 2, -1, ErrInvalidMeasurement},
		{"nan", 0, 2, float32(math.NaN()), ErrInvalidMeasurement},
		{"inf", 0, 2, float32(math.Inf(1)), ErrInvalidMeasurement},
		{"unknown", 0, 42, 1, ErrUnknownDevice},
		{"self before unknown", 42, 42, 1, ErrSelfMeasurement},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := z.AddMeasure(tt.a, tt.b, tt.dist, 10)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	assert.Equal(t, 0, z.PairCount())
	assert.Len(t, obs.rejected, len(tests))
	assert.Empty(t, obs.recorded)
	for _, id := range []uint32{0, 2} {
		d, _ := z.GetDevice(id)
		assert.Equal(t, uint32(0), d.LastActivity)
	}
}

func TestAddMeasureZeroDistanceAccepted(t *testing.T) {
	z := Init(quietConfig())
	require.NoError(t, z.AddDevice(1, 0, 0, 0))
	_, err := z.AddMeasure(0, 1, 0, 1)
	assert.NoError(t, err)
}

func TestRecomputeBothEndpointsFromPriorState(t *testing.T) {
	est := &stepEstimator{}
	cfg := quietConfig()
	cfg.Estimator = est
	z := Init(cfg)
	require.NoError(t, z.AddDevice(1, 10, 0, 0))

	_, err := z.AddMeasure(0, 1, 10, 100)
	require.NoError(t, err)
	assert.Empty(t, est.inputs)

	_, err = z.AddMeasure(1, 0, 10, 110)
	require.NoError(t, err)
	require.Len(t, est.inputs, 2)

	// Lower id first, and device 1 still sees device 0 at its old position.
	assert.Equal(t, uint32(0), est.inputs[0].DeviceID)
	assert.Equal(t, uint32(1), est.inputs[1].DeviceID)
	require.Len(t, est.inputs[1].Constraints, 1)
	assert.Equal(t, Coord{0, 0, 0}, est.inputs[1].Constraints[0].Position.Coord)

	d0, _ := z.GetDevice(0)
	d1, _ := z.GetDevice(1)
	assert.Equal(t, Coord{1, 0, 0}, d0.Trace[0].Coord)
	assert.Equal(t, Coord{11, 0, 0}, d1.Trace[0].Coord)
}

func TestStaleNeighborsExcluded(t *testing.T) {
	est := &stepEstimator{}
	cfg := quietConfig()
	cfg.Estimator = est
	cfg.StalenessThreshold = 50
	z := Init(cfg)
	for id := uint32(1); id <= 3; id++ {
		require.NoError(t, z.AddDevice(id, int32(id), 0, 0))
	}

	_, err := z.AddMeasure(0, 1, 1, 100)
	require.NoError(t, err)
	_, err = z.AddMeasure(0, 2, 1, 100)
	require.NoError(t, err)
	_, err = z.AddMeasure(0, 3, 1, 120)
	require.NoError(t, err)
	_, err = z.AddMeasure(0, 3, 1, 160)
	require.NoError(t, err)

	// Device 0's recompute at 160: 1 and 2 last active at 100 (age 60),
	// 3 touched at 160.
	require.Len(t, est.inputs, 2)
	var ids []uint32
	for _, c := range est.inputs[0].Constraints {
		ids = append(ids, c.NeighborID)
	}
	if diff := cmp.Diff([]uint32{3}, ids); diff != "" {
		t.Errorf("constraint ids mismatch (-want +got):\n%s", diff)
	}
}

func TestZoneMultilateratesTag(t *testing.T) {
	obs := newRecordingObserver()
	cfg := quietConfig()
	cfg.Observers = []Observer{obs}
	z := NewZone(cfg)

	anchors := map[uint32]Coord{1: {0, 0, 0}, 2: {10, 0, 0}, 3: {0, 10, 0}, 4: {10, 10, 0}}
	for id := uint32(1); id <= 4; id++ {
		c := anchors[id]
		require.NoError(t, z.AddDevice(id, int32(c[0]), int32(c[1]), int32(c[2])))
	}
	require.NoError(t, z.AddDevice(5, 5, 5, 0))
	truth := Coord{3, 4, 0}

	ts := uint32(100)
	for round := 0; round < 2; round++ {
		for id := uint32(1); id <= 4; id++ {
			_, err := z.AddMeasure(id, 5, rangeTo(truth, anchors[id]), ts)
			require.NoError(t, err)
			ts += 10
		}
	}

	tag, _ := z.GetDevice(5)
	assert.InDeltaSlice(t, truth[:], tag.Trace[0].Coord[:], 1e-2)
	assert.Equal(t, 4, obs.updated[5])
	for id, c := range anchors {
		d, _ := z.GetDevice(id)
		assert.Equal(t, c, d.Trace[0].Coord, "anchor %d moved", id)
	}
	assert.Equal(t, []uint32{1, 2, 3, 4, 5}, obs.added)
}

func TestZeroConfigUsesDefaultStaleness(t *testing.T) {
	z := Init(Config{Logf: func(string, ...interface{}) {}})

	anchors := map[uint32]Coord{1: {10, 0, 0}, 2: {0, 10, 0}, 3: {10, 10, 0}}
	for id := uint32(1); id <= 3; id++ {
		c := anchors[id]
		require.NoError(t, z.AddDevice(id, int32(c[0]), int32(c[1]), int32(c[2])))
	}
	anchors[BootstrapDeviceID] = Coord{}
	require.NoError(t, z.AddDevice(5, 5, 5, 0))
	truth := Coord{3, 4, 0}

	ts := uint32(100)
	for round := 0; round < 3; round++ {
		for id := uint32(0); id <= 3; id++ {
			_, err := z.AddMeasure(id, 5, rangeTo(truth, anchors[id]), ts)
			require.NoError(t, err)
			ts += 10
		}
	}

	tag, _ := z.GetDevice(5)
	assert.InDeltaSlice(t, truth[:], tag.Trace[0].Coord[:], 1e-2)
}

func TestTraceDepthBounded(t *testing.T) {
	z := Init(quietConfig())
	require.NoError(t, z.AddDevice(1, 1, 0, 0))
	for ts := uint32(1); ts <= 10; ts++ {
		_, err := z.AddMeasure(0, 1, 1, ts)
		require.NoError(t, err)
		d, _ := z.GetDevice(1)
		assert.LessOrEqual(t, len(d.Trace), PositionTraceDepth)
	}
}

func TestGetAllPositionsDoesNotMutate(t *testing.T) {
	z := Init(quietConfig())
	require.NoError(t, z.AddDevice(1, 1, 2, 3))
	_, _ = z.AddMeasure(0, 1, 3, 10)
	_, _ = z.AddMeasure(0, 1, 3, 20)

	before := snapshotAll(z)
	first := z.GetAllPositions(500)
	second := z.GetAllPositions(500)
	assert.Equal(t, first, second)
	assert.Equal(t, before, snapshotAll(z))
	for _, p := range first {
		assert.Equal(t, uint32(500), p.Timestamp)
	}
}

func TestEstimateDevice(t *testing.T) {
	z := Init(quietConfig())
	p, err := z.EstimateDevice(0, 42)
	require.NoError(t, err)
	assert.Equal(t, Position{ID: 0, Trace: Trace{Timestamp: 42}}, p)

	_, err = z.EstimateDevice(7, 42)
	assert.ErrorIs(t, err, ErrUnknownDevice)
}

func snapshotAll(z *Zone) []DeviceSnapshot {
	var out []DeviceSnapshot
	for i := uint32(0); i < 10; i++ {
		if d, ok := z.GetDevice(i); ok {
			out = append(out, d)
		}
	}
	return out
}

func ExampleZone() {
	z := Init(Config{StalenessThreshold: 5000, Logf: func(string, ...interface{}) {}})
	_ = z.AddDevice(1, 3, 4, 0)
	_, _ = z.AddMeasure(0, 1, 5, 100)
	kind, _ := z.AddMeasure(0, 1, 5, 200)
	fmt.Println(kind, z.DeviceCount(), z.PairCount())
	// Output: updated 2 1
}
