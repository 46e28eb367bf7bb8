// Package api exposes a zone over HTTP with JSON bodies.
package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/ktrzcinx/rtls/internal/httputil"
	"github.com/ktrzcinx/rtls/internal/rtls"
)

// Server serves one zone. Requests that omit a timestamp use Now.
type Server struct {
	zone    *rtls.SyncZone
	now     func() uint32
	metrics http.Handler
}

// NewServer creates a server over zone. now supplies the zone tick for
// requests that do not carry one.
func NewServer(zone *rtls.SyncZone, now func() uint32) *Server {
	return &Server{zone: zone, now: now}
}

// SetMetricsHandler mounts h at /metrics.
func (s *Server) SetMetricsHandler(h http.Handler) {
	s.metrics = h
}

// ServeMux returns the routes without middleware.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/devices", s.addDevice)
	mux.HandleFunc("GET /api/devices", s.listDevices)
	mux.HandleFunc("GET /api/devices/{id}", s.getDevice)
	mux.HandleFunc("GET /api/devices/{id}/position", s.getDevicePosition)
	mux.HandleFunc("POST /api/measures", s.addMeasure)
	mux.HandleFunc("GET /api/positions", s.listPositions)
	mux.HandleFunc("GET /api/zone", s.showZone)
	mux.HandleFunc("GET /api/map.png", s.zoneMap)
	mux.HandleFunc("GET /debug/zone-chart", s.zoneChart)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}
	return mux
}

// Handler returns the routes wrapped in logging and fault recovery.
func (s *Server) Handler() http.Handler {
	return LoggingMiddleware(RecoverMiddleware(s.ServeMux()))
}

// writeZoneError maps zone sentinel errors onto HTTP status codes.
func writeZoneError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, rtls.ErrDuplicateDevice):
		httputil.Conflict(w, err.Error())
	case errors.Is(err, rtls.ErrUnknownDevice):
		httputil.NotFound(w, err.Error())
	case errors.Is(err, rtls.ErrSelfMeasurement), errors.Is(err, rtls.ErrInvalidMeasurement):
		httputil.BadRequest(w, err.Error())
	default:
		httputil.InternalServerError(w, err.Error())
	}
}

// timestampParam reads ?timestamp=, defaulting to the current tick.
func (s *Server) timestampParam(r *http.Request) (uint32, error) {
	v := r.URL.Query().Get("timestamp")
	if v == "" {
		return s.now(), nil
	}
	ts, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return 0, errors.New("invalid 'timestamp' parameter")
	}
	return uint32(ts), nil
}

func deviceIDParam(r *http.Request) (uint32, error) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 32)
	if err != nil {
		return 0, errors.New("invalid device id")
	}
	return uint32(id), nil
}
