package timeutil

import "time"

// TickSource converts wall time into zone timestamps: milliseconds since an
// epoch, wrapping at 2^32.
type TickSource struct {
	clock Clock
	epoch time.Time
}

// NewTickSource starts counting ticks from the clock's current time.
func NewTickSource(clock Clock) *TickSource {
	if clock == nil {
		clock = RealClock{}
	}
	return &TickSource{clock: clock, epoch: clock.Now()}
}

// Now returns the current tick.
func (s *TickSource) Now() uint32 {
	return s.At(s.clock.Now())
}

// At converts t to a tick. Times before the epoch map to zero.
func (s *TickSource) At(t time.Time) uint32 {
	d := t.Sub(s.epoch)
	if d < 0 {
		return 0
	}
	return uint32(d.Milliseconds())
}

// Epoch returns the time of tick zero.
func (s *TickSource) Epoch() time.Time {
	return s.epoch
}
