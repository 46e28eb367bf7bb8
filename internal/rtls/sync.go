package rtls

import "sync"

// SyncZone serializes access to a Zone shared between goroutines.
type SyncZone struct {
	mu   sync.Mutex
	zone *Zone
}

// NewSyncZone wraps z. The caller must stop using z directly.
func NewSyncZone(z *Zone) *SyncZone {
	return &SyncZone{zone: z}
}

// ID returns the zone identifier.
func (s *SyncZone) ID() int32 {
	return s.zone.ID()
}

// AddDevice calls Zone.AddDevice under the lock.
func (s *SyncZone) AddDevice(id uint32, x, y, z int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.zone.AddDevice(id, x, y, z)
}

// AddMeasure calls Zone.AddMeasure under the lock.
func (s *SyncZone) AddMeasure(a, b uint32, distance float32, timestamp uint32) (UpdateKind, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.zone.AddMeasure(a, b, distance, timestamp)
}

// GetDevice calls Zone.GetDevice under the lock.
func (s *SyncZone) GetDevice(id uint32) (DeviceSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.zone.GetDevice(id)
}

// EstimateDevice calls Zone.EstimateDevice under the lock.
func (s *SyncZone) EstimateDevice(id uint32, timestamp uint32) (Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.zone.EstimateDevice(id, timestamp)
}

// GetAllPositions calls Zone.GetAllPositions under the lock.
func (s *SyncZone) GetAllPositions(timestamp uint32) []Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.zone.GetAllPositions(timestamp)
}

// Devices calls Zone.Devices under the lock.
func (s *SyncZone) Devices() []DeviceSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.zone.Devices()
}

// Latest calls Zone.Latest under the lock.
func (s *SyncZone) Latest(a, b uint32) (MeasurementSample, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.zone.Latest(a, b)
}

// Stats returns the device and pair counts.
func (s *SyncZone) Stats() (devices, pairs int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.zone.DeviceCount(), s.zone.PairCount()
}
