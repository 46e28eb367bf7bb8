package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ktrzcinx/rtls/internal/httputil"
	"github.com/ktrzcinx/rtls/internal/render"
	"github.com/ktrzcinx/rtls/internal/rtls"
)

// DeviceRequest is the body of POST /api/devices.
type DeviceRequest struct {
	ID *uint32 `json:"id"`
	X  int32   `json:"x"`
	Y  int32   `json:"y"`
	Z  int32   `json:"z"`
}

// MeasureRequest is the body of POST /api/measures. Timestamp defaults to
// the server tick.
type MeasureRequest struct {
	A         uint32   `json:"a"`
	B         uint32   `json:"b"`
	Distance  *float64 `json:"distance"`
	Timestamp *uint32  `json:"timestamp,omitempty"`
}

// MeasureResponse reports how an accepted sample changed the graph.
type MeasureResponse struct {
	Kind      string `json:"kind"`
	Timestamp uint32 `json:"timestamp"`
}

// ZoneResponse summarises the zone.
type ZoneResponse struct {
	ID        int32  `json:"id"`
	Devices   int    `json:"devices"`
	Pairs     int    `json:"pairs"`
	Timestamp uint32 `json:"timestamp"`
}

const maxBodyBytes = 1 << 16

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func (s *Server) addDevice(w http.ResponseWriter, r *http.Request) {
	var req DeviceRequest
	if err := decodeBody(w, r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if req.ID == nil {
		httputil.BadRequest(w, "missing 'id'")
		return
	}
	if err := s.zone.AddDevice(*req.ID, req.X, req.Y, req.Z); err != nil {
		writeZoneError(w, err)
		return
	}
	snap, _ := s.zone.GetDevice(*req.ID)
	httputil.WriteJSONCreated(w, snap)
}

func (s *Server) listDevices(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, s.zone.Devices())
}

func (s *Server) getDevice(w http.ResponseWriter, r *http.Request) {
	id, err := deviceIDParam(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	snap, ok := s.zone.GetDevice(id)
	if !ok {
		httputil.NotFound(w, fmt.Sprintf("device %d not found", id))
		return
	}
	httputil.WriteJSONOK(w, snap)
}

func (s *Server) getDevicePosition(w http.ResponseWriter, r *http.Request) {
	id, err := deviceIDParam(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	ts, err := s.timestampParam(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	pos, err := s.zone.EstimateDevice(id, ts)
	if err != nil {
		writeZoneError(w, err)
		return
	}
	httputil.WriteJSONOK(w, pos)
}

func (s *Server) addMeasure(w http.ResponseWriter, r *http.Request) {
	var req MeasureRequest
	if err := decodeBody(w, r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if req.Distance == nil {
		httputil.BadRequest(w, "missing 'distance'")
		return
	}
	ts := s.now()
	if req.Timestamp != nil {
		ts = *req.Timestamp
	}
	kind, err := s.zone.AddMeasure(req.A, req.B, float32(*req.Distance), ts)
	if err != nil {
		writeZoneError(w, err)
		return
	}
	httputil.WriteJSONOK(w, MeasureResponse{Kind: kind.String(), Timestamp: ts})
}

func (s *Server) listPositions(w http.ResponseWriter, r *http.Request) {
	ts, err := s.timestampParam(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, s.zone.GetAllPositions(ts))
}

func (s *Server) showZone(w http.ResponseWriter, r *http.Request) {
	devices, pairs := s.zone.Stats()
	httputil.WriteJSONOK(w, ZoneResponse{
		ID:        s.zone.ID(),
		Devices:   devices,
		Pairs:     pairs,
		Timestamp: s.now(),
	})
}

func (s *Server) zoneMap(w http.ResponseWriter, r *http.Request) {
	ts, err := s.timestampParam(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	m := render.ZoneMap{
		Title:     fmt.Sprintf("Zone %d @ %d", s.zone.ID(), ts),
		Timestamp: ts,
		Positions: s.zone.GetAllPositions(ts),
		Traces:    make(map[uint32][]rtls.Trace),
	}
	for _, d := range s.zone.Devices() {
		m.Traces[d.ID] = d.Trace
	}

	var buf bytes.Buffer
	if err := render.WritePNG(&buf, m); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render map: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = buf.WriteTo(w)
}

func (s *Server) zoneChart(w http.ResponseWriter, r *http.Request) {
	ts, err := s.timestampParam(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	var buf bytes.Buffer
	if err := render.WriteChart(&buf, s.zone.ID(), ts, s.zone.GetAllPositions(ts)); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
