package rtls

import (
	"fmt"
	"math"
)

// BootstrapDeviceID is the device Init registers at the origin.
const BootstrapDeviceID uint32 = 0

// Position is the estimate of one device at a query timestamp.
type Position struct {
	ID uint32 `json:"id"`
	Trace
}

// Zone ties a device registry and a measurement graph together and runs
// position recomputation when ranging data arrives.
type Zone struct {
	id        int32
	devices   *DeviceRegistry
	graph     *MeasurementGraph
	estimator PositionEstimator
	staleness uint32
	logf      func(string, ...interface{})
	observers []Observer
}

// NewZone creates an empty zone.
func NewZone(cfg Config) *Zone {
	est := cfg.Estimator
	if est == nil {
		est = NewLeastSquaresEstimator(DefaultEstimatorConfig())
	}
	staleness := cfg.StalenessThreshold
	if staleness == 0 {
		staleness = DefaultStalenessThreshold
	}
	return &Zone{
		id:        cfg.ID,
		devices:   NewDeviceRegistry(),
		graph:     NewMeasurementGraph(),
		estimator: est,
		staleness: staleness,
		logf:      cfg.logf(),
		observers: append([]Observer(nil), cfg.Observers...),
	}
}

// Init creates a zone holding the bootstrap device at the origin.
func Init(cfg Config) *Zone {
	z := NewZone(cfg)
	if err := z.AddDevice(BootstrapDeviceID, 0, 0, 0); err != nil {
		panic(fmt.Sprintf("rtls: bootstrap device: %v", err))
	}
	return z
}

// ID returns the zone identifier.
func (z *Zone) ID() int32 {
	return z.id
}

// AddObserver attaches an observer for subsequent events.
func (z *Zone) AddObserver(o Observer) {
	z.observers = append(z.observers, o)
}

// AddDevice registers a device at the given position.
func (z *Zone) AddDevice(id uint32, x, y, zPos int32) error {
	coord := Coord{float32(x), float32(y), float32(zPos)}
	if err := z.devices.Register(id, coord); err != nil {
		z.logf("[zone %d] add device %d rejected: %v", z.id, id, err)
		return err
	}
	initial := Trace{Coord: coord}
	z.logf("[zone %d] device %d added at (%g, %g, %g)", z.id, id, coord[0], coord[1], coord[2])
	for _, o := range z.observers {
		o.DeviceAdded(id, initial)
	}
	return nil
}

// AddMeasure ingests a ranging sample between a and b. When the pair had
// been observed before, both endpoints get a new position estimate. A
// rejected sample leaves the zone untouched.
func (z *Zone) AddMeasure(a, b uint32, distance float32, timestamp uint32) (UpdateKind, error) {
	if err := z.validateMeasure(a, b, distance); err != nil {
		z.logf("[zone %d] measurement %d-%d rejected: %v", z.id, a, b, err)
		for _, o := range z.observers {
			o.MeasurementRejected(a, b, err)
		}
		return 0, err
	}

	kind := z.graph.Record(a, b, distance, timestamp)
	sample, _ := z.graph.Latest(CanonicalPair(a, b))
	for _, o := range z.observers {
		o.MeasurementRecorded(sample, kind)
	}

	// Both endpoints were validated above.
	_ = z.devices.Touch(a, timestamp)
	_ = z.devices.Touch(b, timestamp)

	if kind == Updated {
		z.recompute([]uint32{sample.Pair.Lo, sample.Pair.Hi}, timestamp)
	}
	return kind, nil
}

func (z *Zone) validateMeasure(a, b uint32, distance float32) error {
	if a == b {
		return fmt.Errorf("device %d ranged with itself: %w", a, ErrSelfMeasurement)
	}
	d := float64(distance)
	if math.IsNaN(d) || math.IsInf(d, 0) || d < 0 {
		return fmt.Errorf("distance %v between %d and %d: %w", distance, a, b, ErrInvalidMeasurement)
	}
	for _, id := range []uint32{a, b} {
		if !z.devices.Has(id) {
			return fmt.Errorf("measurement %d-%d: device %d: %w", a, b, id, ErrUnknownDevice)
		}
	}
	return nil
}

// recompute estimates every id against the current state first and stores
// the results afterwards, so no endpoint sees another's fresh estimate.
func (z *Zone) recompute(ids []uint32, timestamp uint32) {
	traces := make([]Trace, len(ids))
	used := make([]int, len(ids))
	for i, id := range ids {
		in := z.estimateInput(id, timestamp)
		traces[i] = z.estimator.CalcPosition(in)
		used[i] = len(in.Constraints)
	}
	for i, id := range ids {
		if err := z.devices.PushTrace(id, traces[i]); err != nil {
			panic(fmt.Sprintf("rtls: recompute of validated device: %v", err))
		}
		for _, o := range z.observers {
			o.PositionUpdated(id, traces[i], used[i])
		}
	}
}

// estimateInput gathers the fresh neighbors of id. Neighbors whose last
// activity is older than the staleness threshold are left out.
func (z *Zone) estimateInput(id uint32, timestamp uint32) EstimateInput {
	rec, _ := z.devices.Get(id)
	in := EstimateInput{
		DeviceID:  id,
		History:   rec.Trace(),
		Timestamp: timestamp,
	}
	for _, n := range z.graph.NeighborsOf(id) {
		other, ok := z.devices.Get(n.ID)
		if !ok {
			continue
		}
		if elapsed(timestamp, other.LastActivity) > z.staleness {
			continue
		}
		in.Constraints = append(in.Constraints, Constraint{
			NeighborID: n.ID,
			Samples:    n.History.Samples(),
			Position:   other.Position(),
		})
	}
	return in
}

// GetDevice returns a copy of the device record.
func (z *Zone) GetDevice(id uint32) (DeviceSnapshot, bool) {
	rec, ok := z.devices.Get(id)
	if !ok {
		return DeviceSnapshot{}, false
	}
	return rec.Snapshot(), true
}

// EstimateDevice returns the read-only estimate of one device.
func (z *Zone) EstimateDevice(id uint32, timestamp uint32) (Position, error) {
	rec, ok := z.devices.Get(id)
	if !ok {
		return Position{}, fmt.Errorf("estimate device %d: %w", id, ErrUnknownDevice)
	}
	return Position{ID: id, Trace: z.estimator.EstimatePosition(rec.Trace(), timestamp)}, nil
}

// GetAllPositions returns the estimate of every device at timestamp in
// registration order. It does not modify the zone.
func (z *Zone) GetAllPositions(timestamp uint32) []Position {
	recs := z.devices.All()
	out := make([]Position, 0, len(recs))
	for _, rec := range recs {
		out = append(out, Position{
			ID:    rec.ID,
			Trace: z.estimator.EstimatePosition(rec.Trace(), timestamp),
		})
	}
	return out
}

// Devices returns a snapshot of every device in registration order.
func (z *Zone) Devices() []DeviceSnapshot {
	recs := z.devices.All()
	out := make([]DeviceSnapshot, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.Snapshot())
	}
	return out
}

// Latest returns the most recent sample between a and b.
func (z *Zone) Latest(a, b uint32) (MeasurementSample, bool) {
	return z.graph.Latest(CanonicalPair(a, b))
}

// DeviceCount returns the number of registered devices.
func (z *Zone) DeviceCount() int {
	return z.devices.Len()
}

// PairCount returns the number of observed device pairs.
func (z *Zone) PairCount() int {
	return z.graph.Len()
}
