package rtls

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncZoneConcurrentAccess(t *testing.T) {
	s := NewSyncZone(Init(quietConfig()))
	for id := uint32(1); id <= 4; id++ {
		require.NoError(t, s.AddDevice(id, int32(id), 0, 0))
	}

	var wg sync.WaitGroup
	for w := uint32(1); w <= 4; w++ {
		wg.Add(2)
		go func(id uint32) {
			defer wg.Done()
			for ts := uint32(1); ts <= 50; ts++ {
				_, err := s.AddMeasure(0, id, float32(id), ts)
				assert.NoError(t, err)
			}
		}(w)
		go func() {
			defer wg.Done()
			for ts := uint32(1); ts <= 50; ts++ {
				assert.Len(t, s.GetAllPositions(ts), 5)
			}
		}()
	}
	wg.Wait()

	devices, pairs := s.Stats()
	assert.Equal(t, 5, devices)
	assert.Equal(t, 4, pairs)

	_, ok := s.GetDevice(3)
	assert.True(t, ok)
	_, err := s.EstimateDevice(9, 1)
	assert.ErrorIs(t, err, ErrUnknownDevice)
	assert.Equal(t, int32(0), s.ID())

	snaps := s.Devices()
	require.Len(t, snaps, 5)
	assert.Equal(t, uint32(0), snaps[0].ID)
	assert.Equal(t, uint32(4), snaps[4].ID)

	latest, ok := s.Latest(2, 0)
	require.True(t, ok)
	assert.Equal(t, Pair{Lo: 0, Hi: 2}, latest.Pair)
	assert.Equal(t, uint32(50), latest.Timestamp)
}
