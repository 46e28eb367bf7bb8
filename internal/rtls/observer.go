package rtls

// Observer receives zone events. Calls happen synchronously on the zone's
// goroutine, so implementations must return quickly and must not call back
// into the zone.
type Observer interface {
	DeviceAdded(id uint32, initial Trace)
	MeasurementRecorded(sample MeasurementSample, kind UpdateKind)
	PositionUpdated(id uint32, trace Trace, constraints int)
	MeasurementRejected(a, b uint32, err error)
}

// NopObserver implements Observer with no-ops. Embed it to implement only
// the events of interest.
type NopObserver struct{}

func (NopObserver) DeviceAdded(uint32, Trace)                         {}
func (NopObserver) MeasurementRecorded(MeasurementSample, UpdateKind) {}
func (NopObserver) PositionUpdated(uint32, Trace, int)                {}
func (NopObserver) MeasurementRejected(uint32, uint32, error)         {}
