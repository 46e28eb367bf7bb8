package db

import (
	"context"
	"sync"
	"time"

	"github.com/ktrzcinx/rtls/internal/monitoring"
	"github.com/ktrzcinx/rtls/internal/rtls"
	"github.com/ktrzcinx/rtls/internal/timeutil"
)

// EventStore persists batches of zone events. DB implements it.
type EventStore interface {
	InsertEvents(ctx context.Context, runID string, events []Event) error
}

// Recorder buffers zone events and writes them to an EventStore in
// batches. It implements rtls.Observer; the observer methods only append
// to the buffer and never touch the database.
type Recorder struct {
	store    EventStore
	runID    string
	interval time.Duration
	capacity int
	clock    timeutil.Clock
	logf     func(string, ...interface{})

	mu      sync.Mutex
	pending []Event
	dropped uint64
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

var _ rtls.Observer = (*Recorder)(nil)

// RecorderConfig contains configuration for Recorder.
type RecorderConfig struct {
	// Store receives the flushed batches.
	Store EventStore
	// RunID tags every row written by this recorder.
	RunID string
	// Interval is how often to flush (e.g., 2*time.Second).
	Interval time.Duration
	// BufferSize caps the pending events; further events are dropped
	// until the next flush.
	BufferSize int
	// Clock drives the flush ticker and stamps rejection rows; nil uses
	// the wall clock.
	Clock timeutil.Clock
	// Logf is optional; nil uses monitoring.Logf.
	Logf func(string, ...interface{})
}

// NewRecorder creates a Recorder.
func NewRecorder(cfg RecorderConfig) *Recorder {
	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	logf := cfg.Logf
	if logf == nil {
		logf = func(format string, v ...interface{}) { monitoring.Logf(format, v...) }
	}
	capacity := cfg.BufferSize
	if capacity <= 0 {
		capacity = 1024
	}
	return &Recorder{
		store:    cfg.Store,
		runID:    cfg.RunID,
		interval: cfg.Interval,
		capacity: capacity,
		clock:    clock,
		logf:     logf,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// RunID returns the run this recorder writes to.
func (r *Recorder) RunID() string {
	return r.runID
}

func (r *Recorder) enqueue(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.pending) >= r.capacity {
		r.dropped++
		return
	}
	r.pending = append(r.pending, ev)
}

func (r *Recorder) DeviceAdded(id uint32, initial rtls.Trace) {
	r.enqueue(Event{Kind: EventDevice, DeviceID: id, Trace: initial})
}

func (r *Recorder) MeasurementRecorded(sample rtls.MeasurementSample, kind rtls.UpdateKind) {
	r.enqueue(Event{Kind: EventMeasurement, Sample: sample, Update: kind})
}

func (r *Recorder) PositionUpdated(id uint32, trace rtls.Trace, constraints int) {
	r.enqueue(Event{Kind: EventPosition, DeviceID: id, Trace: trace, Constraints: constraints})
}

func (r *Recorder) MeasurementRejected(a, b uint32, err error) {
	r.enqueue(Event{Kind: EventRejection, A: a, B: b, Reason: rtls.RejectReason(err), At: r.clock.Now()})
}

// Pending returns the number of buffered events.
func (r *Recorder) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Dropped returns the number of events discarded because the buffer was
// full.
func (r *Recorder) Dropped() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Run starts the periodic flushing loop. It blocks until the context is
// cancelled or Stop is called, flushing once more before returning.
func (r *Recorder) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = true
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	r.mu.Unlock()

	defer func() {
		close(r.doneCh)
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	if r.interval <= 0 {
		r.logf("Recorder: interval is zero or negative, not starting")
		return nil
	}

	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	r.logf("Recorder started: run=%s interval=%v", r.runID, r.interval)
	for {
		select {
		case <-ctx.Done():
			r.flushFinal()
			return nil
		case <-r.stopCh:
			r.flushFinal()
			return nil
		case <-ticker.C():
			if err := r.FlushNow(ctx); err != nil {
				r.logf("Recorder: error flushing: %v", err)
			}
		}
	}
}

// Stop requests the loop to stop and waits for the final flush. It is safe
// to call multiple times.
func (r *Recorder) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	select {
	case <-r.stopCh:
	default:
		close(r.stopCh)
	}
	done := r.doneCh
	r.mu.Unlock()

	<-done
}

// IsRunning reports whether the flush loop is active.
func (r *Recorder) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// FlushNow writes the buffered events immediately. On failure the batch is
// discarded so a broken store cannot grow the buffer without bound.
func (r *Recorder) FlushNow(ctx context.Context) error {
	r.mu.Lock()
	batch := r.pending
	r.pending = nil
	r.mu.Unlock()

	if len(batch) == 0 || r.store == nil {
		return nil
	}
	return r.store.InsertEvents(ctx, r.runID, batch)
}

func (r *Recorder) flushFinal() {
	// The run context is already cancelled here.
	if err := r.FlushNow(context.Background()); err != nil {
		r.logf("Recorder: error during final flush: %v", err)
		return
	}
	r.logf("Recorder: final batch written for run %s", r.runID)
}
