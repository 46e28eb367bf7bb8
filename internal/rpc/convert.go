package rpc

import (
	"fmt"
	"math"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ktrzcinx/rtls/internal/rtls"
)

func number(s *structpb.Struct, name string) (float64, bool, error) {
	v, ok := s.GetFields()[name]
	if !ok {
		return 0, false, nil
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, false, status.Errorf(codes.InvalidArgument, "%q must be a number", name)
	}
	return n.NumberValue, true, nil
}

func integral(name string, f float64, lo, hi float64) error {
	if math.IsNaN(f) || f != math.Trunc(f) || f < lo || f > hi {
		return status.Errorf(codes.InvalidArgument, "%q must be an integer in [%.0f, %.0f]", name, lo, hi)
	}
	return nil
}

func requireUint32(s *structpb.Struct, name string) (uint32, error) {
	f, ok, err := number(s, name)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, status.Errorf(codes.InvalidArgument, "missing %q", name)
	}
	if err := integral(name, f, 0, math.MaxUint32); err != nil {
		return 0, err
	}
	return uint32(f), nil
}

func optionalUint32(s *structpb.Struct, name string, def uint32) (uint32, error) {
	if _, ok := s.GetFields()[name]; !ok {
		return def, nil
	}
	return requireUint32(s, name)
}

func optionalInt32(s *structpb.Struct, name string) (int32, error) {
	f, ok, err := number(s, name)
	if err != nil || !ok {
		return 0, err
	}
	if err := integral(name, f, math.MinInt32, math.MaxInt32); err != nil {
		return 0, err
	}
	return int32(f), nil
}

func coordValue(c rtls.Coord) []any {
	return []any{float64(c[0]), float64(c[1]), float64(c[2])}
}

func traceValue(t rtls.Trace) map[string]any {
	return map[string]any{"coord": coordValue(t.Coord), "timestamp": t.Timestamp}
}

func positionValue(p rtls.Position) map[string]any {
	v := traceValue(p.Trace)
	v["id"] = p.ID
	return v
}

func deviceStruct(d rtls.DeviceSnapshot) (*structpb.Struct, error) {
	trace := make([]any, len(d.Trace))
	for i, t := range d.Trace {
		trace[i] = traceValue(t)
	}
	return structpb.NewStruct(map[string]any{
		"id":        d.ID,
		"timestamp": d.LastActivity,
		"trace":     trace,
	})
}

func positionsStruct(ts uint32, positions []rtls.Position) (*structpb.Struct, error) {
	list := make([]any, len(positions))
	for i, p := range positions {
		list[i] = positionValue(p)
	}
	return structpb.NewStruct(map[string]any{
		"timestamp": ts,
		"positions": list,
	})
}

func coordFrom(v *structpb.Value) (rtls.Coord, error) {
	var c rtls.Coord
	vals := v.GetListValue().GetValues()
	if len(vals) != len(c) {
		return c, fmt.Errorf("coord has %d components", len(vals))
	}
	for i, x := range vals {
		c[i] = float32(x.GetNumberValue())
	}
	return c, nil
}

func traceFrom(s *structpb.Struct) (rtls.Trace, error) {
	f := s.GetFields()
	c, err := coordFrom(f["coord"])
	if err != nil {
		return rtls.Trace{}, err
	}
	return rtls.Trace{Coord: c, Timestamp: uint32(f["timestamp"].GetNumberValue())}, nil
}

func deviceFrom(s *structpb.Struct) (rtls.DeviceSnapshot, error) {
	f := s.GetFields()
	d := rtls.DeviceSnapshot{
		ID:           uint32(f["id"].GetNumberValue()),
		LastActivity: uint32(f["timestamp"].GetNumberValue()),
	}
	for _, v := range f["trace"].GetListValue().GetValues() {
		t, err := traceFrom(v.GetStructValue())
		if err != nil {
			return d, fmt.Errorf("device %d trace: %w", d.ID, err)
		}
		d.Trace = append(d.Trace, t)
	}
	return d, nil
}

func positionsFrom(s *structpb.Struct) (uint32, []rtls.Position, error) {
	f := s.GetFields()
	values := f["positions"].GetListValue().GetValues()
	out := make([]rtls.Position, 0, len(values))
	for _, v := range values {
		ps := v.GetStructValue()
		t, err := traceFrom(ps)
		if err != nil {
			return 0, nil, err
		}
		out = append(out, rtls.Position{ID: uint32(ps.GetFields()["id"].GetNumberValue()), Trace: t})
	}
	return uint32(f["timestamp"].GetNumberValue()), out, nil
}
