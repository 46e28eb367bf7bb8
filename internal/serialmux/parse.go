package serialmux

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	EventTypeRange   = "range"
	EventTypeDevice  = "device"
	EventTypeComment = "comment"
	EventTypeUnknown = "unknown"
)

// ErrMalformedLine is wrapped by every parse failure.
var ErrMalformedLine = errors.New("malformed gateway line")

// ClassifyPayload returns the event type of a gateway line from its prefix.
//
//	R,<a>,<b>,<distance>[,<timestamp>]   ranging report
//	D,<id>,<x>,<y>,<z>                   device announcement
//	# ...                                comment / gateway banner
func ClassifyPayload(payload string) string {
	p := strings.TrimSpace(payload)
	switch {
	case p == "" || strings.HasPrefix(p, "#"):
		return EventTypeComment
	case strings.HasPrefix(p, "R,"):
		return EventTypeRange
	case strings.HasPrefix(p, "D,"):
		return EventTypeDevice
	default:
		return EventTypeUnknown
	}
}

// RangeReport is one parsed ranging line. HasTimestamp is false when the
// gateway omitted the tick, in which case the receiver stamps it.
type RangeReport struct {
	A, B         uint32
	Distance     float32
	Timestamp    uint32
	HasTimestamp bool
}

// DeviceReport is one parsed device announcement.
type DeviceReport struct {
	ID      uint32
	X, Y, Z int32
}

// ParseRange parses an "R," line.
func ParseRange(line string) (RangeReport, error) {
	fields := splitFields(line)
	if len(fields) < 4 || len(fields) > 5 || fields[0] != "R" {
		return RangeReport{}, fmt.Errorf("%w: %q", ErrMalformedLine, line)
	}
	var r RangeReport
	var err error
	if r.A, err = parseID(fields[1]); err != nil {
		return RangeReport{}, err
	}
	if r.B, err = parseID(fields[2]); err != nil {
		return RangeReport{}, err
	}
	d, err := strconv.ParseFloat(fields[3], 32)
	if err != nil || math.IsNaN(d) || math.IsInf(d, 0) {
		return RangeReport{}, fmt.Errorf("%w: distance %q", ErrMalformedLine, fields[3])
	}
	r.Distance = float32(d)
	if len(fields) == 5 {
		ts, err := strconv.ParseUint(fields[4], 10, 32)
		if err != nil {
			return RangeReport{}, fmt.Errorf("%w: timestamp %q", ErrMalformedLine, fields[4])
		}
		r.Timestamp = uint32(ts)
		r.HasTimestamp = true
	}
	return r, nil
}

// ParseDevice parses a "D," line.
func ParseDevice(line string) (DeviceReport, error) {
	fields := splitFields(line)
	if len(fields) != 5 || fields[0] != "D" {
		return DeviceReport{}, fmt.Errorf("%w: %q", ErrMalformedLine, line)
	}
	var d DeviceReport
	var err error
	if d.ID, err = parseID(fields[1]); err != nil {
		return DeviceReport{}, err
	}
	coords := []*int32{&d.X, &d.Y, &d.Z}
	for i, f := range fields[2:] {
		v, err := strconv.ParseInt(f, 10, 32)
		if err != nil {
			return DeviceReport{}, fmt.Errorf("%w: coordinate %q", ErrMalformedLine, f)
		}
		*coords[i] = int32(v)
	}
	return d, nil
}

func splitFields(line string) []string {
	fields := strings.Split(strings.TrimSpace(line), ",")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields
}

func parseID(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: device id %q", ErrMalformedLine, s)
	}
	return uint32(v), nil
}
