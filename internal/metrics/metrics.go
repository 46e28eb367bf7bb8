// Package metrics exposes zone activity as Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ktrzcinx/rtls/internal/rtls"
)

// ZoneMetrics implements rtls.Observer and counts zone events. Each
// instance owns its registry so several zones (or tests) never collide.
type ZoneMetrics struct {
	registry *prometheus.Registry

	DevicesAdded        prometheus.Counter
	MeasurementsTotal   *prometheus.CounterVec
	RejectedTotal       *prometheus.CounterVec
	PositionUpdates     prometheus.Counter
	ConstraintsPerSolve prometheus.Histogram
}

var _ rtls.Observer = (*ZoneMetrics)(nil)

// NewZoneMetrics creates and registers the collectors for one zone.
func NewZoneMetrics(zoneID int32) *ZoneMetrics {
	labels := prometheus.Labels{"zone": strconv.Itoa(int(zoneID))}
	m := &ZoneMetrics{
		registry: prometheus.NewRegistry(),
		DevicesAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "rtls_devices_added_total",
			Help:        "Total number of devices registered",
			ConstLabels: labels,
		}),
		MeasurementsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "rtls_measurements_total",
			Help:        "Total number of accepted ranging samples by update kind",
			ConstLabels: labels,
		}, []string{"kind"}),
		RejectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "rtls_measurements_rejected_total",
			Help:        "Total number of rejected ranging samples by reason",
			ConstLabels: labels,
		}, []string{"reason"}),
		PositionUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "rtls_position_updates_total",
			Help:        "Total number of recomputed positions",
			ConstLabels: labels,
		}),
		ConstraintsPerSolve: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "rtls_constraints_per_solve",
			Help:        "Number of fresh neighbor constraints offered per recompute",
			Buckets:     []float64{0, 1, 2, 3, 4, 6, 8, 12},
			ConstLabels: labels,
		}),
	}
	m.registry.MustRegister(
		m.DevicesAdded,
		m.MeasurementsTotal,
		m.RejectedTotal,
		m.PositionUpdates,
		m.ConstraintsPerSolve,
	)
	return m
}

// Registry returns the registry holding the zone collectors.
func (m *ZoneMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the collectors in the Prometheus text format.
func (m *ZoneMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *ZoneMetrics) DeviceAdded(uint32, rtls.Trace) {
	m.DevicesAdded.Inc()
}

func (m *ZoneMetrics) MeasurementRecorded(_ rtls.MeasurementSample, kind rtls.UpdateKind) {
	m.MeasurementsTotal.WithLabelValues(kind.String()).Inc()
}

func (m *ZoneMetrics) PositionUpdated(_ uint32, _ rtls.Trace, constraints int) {
	m.PositionUpdates.Inc()
	m.ConstraintsPerSolve.Observe(float64(constraints))
}

func (m *ZoneMetrics) MeasurementRejected(_, _ uint32, err error) {
	m.RejectedTotal.WithLabelValues(rtls.RejectReason(err)).Inc()
}
