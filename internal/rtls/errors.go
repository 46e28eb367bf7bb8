package rtls

import "errors"

var (
	// ErrDuplicateDevice is returned when registering an id that already exists.
	ErrDuplicateDevice = errors.New("duplicate device")
	// ErrSelfMeasurement is returned for a measurement naming one device twice.
	ErrSelfMeasurement = errors.New("self measurement")
	// ErrInvalidMeasurement is returned for negative or non-finite distances.
	ErrInvalidMeasurement = errors.New("invalid measurement")
	// ErrUnknownDevice is returned when an operation names an unregistered id.
	ErrUnknownDevice = errors.New("unknown device")
)

// RejectReason maps a zone error to a short label for metrics and
// recordings.
func RejectReason(err error) string {
	switch {
	case errors.Is(err, ErrSelfMeasurement):
		return "self"
	case errors.Is(err, ErrInvalidMeasurement):
		return "invalid"
	case errors.Is(err, ErrUnknownDevice):
		return "unknown_device"
	case errors.Is(err, ErrDuplicateDevice):
		return "duplicate_device"
	default:
		return "other"
	}
}
