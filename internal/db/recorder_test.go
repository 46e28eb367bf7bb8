package db

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ktrzcinx/rtls/internal/rtls"
	"github.com/ktrzcinx/rtls/internal/timeutil"
)

type memStore struct {
	mu      sync.Mutex
	batches [][]Event
	err     error
}

func (m *memStore) InsertEvents(_ context.Context, _ string, events []Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.batches = append(m.batches, events)
	return nil
}

func (m *memStore) total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, b := range m.batches {
		n += len(b)
	}
	return n
}

func quiet(string, ...interface{}) {}

func TestRecorderBuffersObserverEvents(t *testing.T) {
	store := &memStore{}
	rec := NewRecorder(RecorderConfig{Store: store, RunID: "r1", Interval: time.Second, Logf: quiet})

	rec.DeviceAdded(1, rtls.Trace{})
	rec.MeasurementRecorded(rtls.MeasurementSample{Pair: rtls.CanonicalPair(0, 1)}, rtls.Created)
	rec.PositionUpdated(1, rtls.Trace{Timestamp: 5}, 3)
	rec.MeasurementRejected(2, 2, rtls.ErrSelfMeasurement)
	assert.Equal(t, 4, rec.Pending())

	require.NoError(t, rec.FlushNow(context.Background()))
	assert.Equal(t, 0, rec.Pending())
	require.Len(t, store.batches, 1)

	batch := store.batches[0]
	assert.Equal(t, EventDevice, batch[0].Kind)
	assert.Equal(t, EventMeasurement, batch[1].Kind)
	assert.Equal(t, 3, batch[2].Constraints)
	assert.Equal(t, "self", batch[3].Reason)
	assert.Equal(t, "r1", rec.RunID())
}

func TestRecorderDropsWhenFull(t *testing.T) {
	rec := NewRecorder(RecorderConfig{Store: &memStore{}, BufferSize: 2, Logf: quiet})
	for i := 0; i < 5; i++ {
		rec.PositionUpdated(uint32(i), rtls.Trace{}, 0)
	}
	assert.Equal(t, 2, rec.Pending())
	assert.Equal(t, uint64(3), rec.Dropped())
}

func TestRecorderFlushErrorDiscardsBatch(t *testing.T) {
	store := &memStore{err: errors.New("disk full")}
	rec := NewRecorder(RecorderConfig{Store: store, Logf: quiet})
	rec.DeviceAdded(1, rtls.Trace{})

	assert.Error(t, rec.FlushNow(context.Background()))
	assert.Equal(t, 0, rec.Pending())
}

func TestRecorderRunFlushesOnTickAndStop(t *testing.T) {
	store := &memStore{}
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	rec := NewRecorder(RecorderConfig{Store: store, Interval: time.Second, Clock: clock, Logf: quiet})

	done := make(chan error, 1)
	go func() { done <- rec.Run(context.Background()) }()
	require.Eventually(t, func() bool { return clock.Tickers() == 1 }, time.Second, time.Millisecond)
	assert.True(t, rec.IsRunning())

	rec.DeviceAdded(1, rtls.Trace{})
	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return store.total() == 1 }, time.Second, time.Millisecond)

	rec.DeviceAdded(2, rtls.Trace{})
	rec.Stop()
	require.NoError(t, <-done)
	assert.Equal(t, 2, store.total())
	assert.False(t, rec.IsRunning())

	// Stop on a stopped recorder returns immediately.
	rec.Stop()
}

func TestRecorderRunStopsOnCancel(t *testing.T) {
	store := &memStore{}
	rec := NewRecorder(RecorderConfig{Store: store, Interval: time.Hour, Logf: quiet})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- rec.Run(ctx) }()
	require.Eventually(t, rec.IsRunning, time.Second, time.Millisecond)

	rec.PositionUpdated(1, rtls.Trace{}, 0)
	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, 1, store.total())
}

func TestRecorderZeroIntervalDoesNotStart(t *testing.T) {
	rec := NewRecorder(RecorderConfig{Logf: quiet})
	assert.NoError(t, rec.Run(context.Background()))
	assert.False(t, rec.IsRunning())
}

func TestRecorderAgainstZone(t *testing.T) {
	db := newTestDB(t)
	run, err := db.StartRun(7, time.Now())
	require.NoError(t, err)

	rec := NewRecorder(RecorderConfig{Store: db, RunID: run.RunID, Logf: quiet})
	cfg := rtls.DefaultConfig()
	cfg.ID = 7
	cfg.Logf = quiet
	cfg.Observers = []rtls.Observer{rec}
	z := rtls.Init(cfg)

	require.NoError(t, z.AddDevice(1, 3, 4, 0))
	_, err = z.AddMeasure(0, 1, 5, 100)
	require.NoError(t, err)
	_, err = z.AddMeasure(1, 0, 5, 200)
	require.NoError(t, err)
	_, err = z.AddMeasure(0, 0, 1, 300)
	require.ErrorIs(t, err, rtls.ErrSelfMeasurement)

	require.NoError(t, rec.FlushNow(context.Background()))

	samples, err := db.Measurements(run.RunID, 0, 1, 10)
	require.NoError(t, err)
	assert.Len(t, samples, 2)

	positions, err := db.Positions(run.RunID, 1, 10)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, uint32(200), positions[0].Timestamp)

	counts, err := db.RejectionCounts(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"self": 1}, counts)
}

func TestAttachAdminRoutes(t *testing.T) {
	db := newTestDB(t)
	mux := http.NewServeMux()
	require.NoError(t, db.AttachAdminRoutes(mux))

	req := httptest.NewRequest(http.MethodGet, "/debug/backup", nil)
	req.RemoteAddr = "127.0.0.1:1234"
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.NotEqual(t, http.StatusNotFound, rec.Code)
	if rec.Code == http.StatusOK {
		assert.Equal(t, "application/gzip", rec.Header().Get("Content-Type"))
		assert.NotZero(t, rec.Body.Len())
	}

	req = httptest.NewRequest(http.MethodGet, "/debug/tailsql/", nil)
	req.RemoteAddr = "127.0.0.1:1234"
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.NotEqual(t, http.StatusNotFound, rec.Code)
}
