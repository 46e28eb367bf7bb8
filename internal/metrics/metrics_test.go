package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ktrzcinx/rtls/internal/rtls"
)

func newObservedZone(t *testing.T) (*rtls.Zone, *ZoneMetrics) {
	t.Helper()
	m := NewZoneMetrics(3)
	cfg := rtls.DefaultConfig()
	cfg.ID = 3
	cfg.Logf = func(string, ...interface{}) {}
	cfg.Observers = []rtls.Observer{m}
	return rtls.Init(cfg), m
}

func TestZoneMetricsCountsEvents(t *testing.T) {
	z, m := newObservedZone(t)

	require.NoError(t, z.AddDevice(1, 10, 20, 30))
	_, err := z.AddMeasure(0, 1, 5, 100)
	require.NoError(t, err)
	_, err = z.AddMeasure(1, 0, 6, 200)
	require.NoError(t, err)
	_, err = z.AddMeasure(2, 2, 1, 10)
	require.Error(t, err)
	_, err = z.AddMeasure(0, 1, -1, 10)
	require.Error(t, err)
	_, err = z.AddMeasure(0, 9, 1, 10)
	require.Error(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.DevicesAdded))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MeasurementsTotal.WithLabelValues("created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MeasurementsTotal.WithLabelValues("updated")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PositionUpdates))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RejectedTotal.WithLabelValues("self")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RejectedTotal.WithLabelValues("invalid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RejectedTotal.WithLabelValues("unknown_device")))
}

func TestZoneMetricsHandler(t *testing.T) {
	z, m := newObservedZone(t)
	require.NoError(t, z.AddDevice(1, 0, 0, 0))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `rtls_devices_added_total{zone="3"} 2`), body)
}

func TestSeparateRegistries(t *testing.T) {
	// Two zones in one process must not collide on registration.
	a := NewZoneMetrics(1)
	b := NewZoneMetrics(2)
	assert.NotSame(t, a.Registry(), b.Registry())
}
