package serialmux

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/ktrzcinx/rtls/internal/monitoring"
	"github.com/ktrzcinx/rtls/internal/rtls"
)

// ZoneSink is the part of a zone the ingest feeds. *rtls.SyncZone
// implements it.
type ZoneSink interface {
	AddDevice(id uint32, x, y, z int32) error
	AddMeasure(a, b uint32, distance float32, timestamp uint32) (rtls.UpdateKind, error)
}

// TickFunc returns the current zone timestamp.
type TickFunc func() uint32

// Ingest applies gateway lines to a zone.
type Ingest struct {
	sink ZoneSink
	now  TickFunc
	logf func(string, ...interface{})

	accepted atomic.Uint64
	rejected atomic.Uint64
	ignored  atomic.Uint64
}

// NewIngest creates an Ingest. now stamps ranging lines that carry no
// timestamp of their own.
func NewIngest(sink ZoneSink, now TickFunc) *Ingest {
	return &Ingest{
		sink: sink,
		now:  now,
		logf: func(format string, v ...interface{}) { monitoring.Logf(format, v...) },
	}
}

// SetLogger replaces the diagnostic logger.
func (in *Ingest) SetLogger(logf func(string, ...interface{})) {
	in.logf = logf
}

// HandleLine parses and applies one line. Comment lines are ignored.
// Re-announcing a known device is not an error.
func (in *Ingest) HandleLine(line string) error {
	switch ClassifyPayload(line) {
	case EventTypeComment:
		in.ignored.Add(1)
		return nil
	case EventTypeRange:
		r, err := ParseRange(line)
		if err != nil {
			return in.reject(line, err)
		}
		ts := r.Timestamp
		if !r.HasTimestamp {
			ts = in.now()
		}
		if _, err := in.sink.AddMeasure(r.A, r.B, r.Distance, ts); err != nil {
			return in.reject(line, err)
		}
	case EventTypeDevice:
		d, err := ParseDevice(line)
		if err != nil {
			return in.reject(line, err)
		}
		if err := in.sink.AddDevice(d.ID, d.X, d.Y, d.Z); err != nil && !errors.Is(err, rtls.ErrDuplicateDevice) {
			return in.reject(line, err)
		}
	default:
		in.ignored.Add(1)
		in.logf("serialmux: unknown line %q", line)
		return nil
	}
	in.accepted.Add(1)
	return nil
}

func (in *Ingest) reject(line string, err error) error {
	in.rejected.Add(1)
	in.logf("serialmux: rejected %q: %v", line, err)
	return err
}

// Run subscribes to mux and applies lines until ctx is done or the
// subscription closes.
func (in *Ingest) Run(ctx context.Context, mux SerialMuxInterface) error {
	id, lines := mux.Subscribe()
	defer mux.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			_ = in.HandleLine(line)
		}
	}
}

// Stats returns the accepted, rejected, and ignored line counts.
func (in *Ingest) Stats() (accepted, rejected, ignored uint64) {
	return in.accepted.Load(), in.rejected.Load(), in.ignored.Load()
}
