package rtls

import "fmt"

// DeviceRecord is a registered device with its recent position estimates.
type DeviceRecord struct {
	ID           uint32
	LastActivity uint32
	trace        *Ring[Trace]
}

// Position returns the most recent position estimate.
func (d *DeviceRecord) Position() Trace {
	t, _ := d.trace.Front()
	return t
}

// Trace copies the position history newest first.
func (d *DeviceRecord) Trace() []Trace {
	return d.trace.Slice()
}

// Snapshot returns a copy detached from the registry.
func (d *DeviceRecord) Snapshot() DeviceSnapshot {
	return DeviceSnapshot{
		ID:           d.ID,
		Trace:        d.Trace(),
		LastActivity: d.LastActivity,
	}
}

// DeviceSnapshot is a read-only copy of a DeviceRecord.
type DeviceSnapshot struct {
	ID           uint32  `json:"id"`
	Trace        []Trace `json:"trace"`
	LastActivity uint32  `json:"timestamp"`
}

// DeviceRegistry owns the devices of a zone. Iteration follows registration
// order.
type DeviceRegistry struct {
	devices map[uint32]*DeviceRecord
	order   []uint32
}

// NewDeviceRegistry creates an empty registry.
func NewDeviceRegistry() *DeviceRegistry {
	return &DeviceRegistry{
		devices: make(map[uint32]*DeviceRecord),
	}
}

// Register adds a device whose trace is seeded with coord at timestamp 0.
func (r *DeviceRegistry) Register(id uint32, coord Coord) error {
	if _, ok := r.devices[id]; ok {
		return fmt.Errorf("register device %d: %w", id, ErrDuplicateDevice)
	}
	rec := &DeviceRecord{
		ID:    id,
		trace: NewRing[Trace](PositionTraceDepth),
	}
	rec.trace.Push(Trace{Coord: coord})
	r.devices[id] = rec
	r.order = append(r.order, id)
	return nil
}

// Get returns the record for id. Callers must not modify it.
func (r *DeviceRegistry) Get(id uint32) (*DeviceRecord, bool) {
	rec, ok := r.devices[id]
	return rec, ok
}

// Has reports whether id is registered.
func (r *DeviceRegistry) Has(id uint32) bool {
	_, ok := r.devices[id]
	return ok
}

// Touch records activity for id at timestamp.
func (r *DeviceRegistry) Touch(id uint32, timestamp uint32) error {
	rec, ok := r.devices[id]
	if !ok {
		return fmt.Errorf("touch device %d: %w", id, ErrUnknownDevice)
	}
	rec.LastActivity = timestamp
	return nil
}

// PushTrace stores trace as the newest position of id, evicting the oldest
// when the history is full.
func (r *DeviceRegistry) PushTrace(id uint32, trace Trace) error {
	rec, ok := r.devices[id]
	if !ok {
		return fmt.Errorf("push trace for device %d: %w", id, ErrUnknownDevice)
	}
	rec.trace.Push(trace)
	return nil
}

// All returns the records in registration order.
func (r *DeviceRegistry) All() []*DeviceRecord {
	out := make([]*DeviceRecord, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.devices[id])
	}
	return out
}

// Len returns the number of registered devices.
func (r *DeviceRegistry) Len() int {
	return len(r.order)
}
