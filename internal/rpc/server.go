package rpc

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ktrzcinx/rtls/internal/monitoring"
	"github.com/ktrzcinx/rtls/internal/rtls"
	"github.com/ktrzcinx/rtls/internal/timeutil"
)

// DefaultWatchInterval is used when a WatchPositions request names none.
const DefaultWatchInterval = time.Second

const minWatchInterval = 10 * time.Millisecond

// Ensure ZoneService implements the gRPC interface.
var _ ZoneServiceServer = (*ZoneService)(nil)

// ZoneService implements rtls.ZoneService over a shared zone.
type ZoneService struct {
	zone  *rtls.SyncZone
	now   func() uint32
	clock timeutil.Clock
}

// NewZoneService creates the service. now stamps requests without a
// timestamp; clock drives WatchPositions.
func NewZoneService(zone *rtls.SyncZone, now func() uint32, clock timeutil.Clock) *ZoneService {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &ZoneService{zone: zone, now: now, clock: clock}
}

// NewServer creates a gRPC server with logging and fault recovery
// interceptors and the zone service registered.
func NewServer(svc *ZoneService, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts,
		grpc.ChainUnaryInterceptor(loggingInterceptor, recoverInterceptor),
		grpc.ChainStreamInterceptor(recoverStreamInterceptor),
	)
	s := grpc.NewServer(opts...)
	RegisterZoneServiceServer(s, svc)
	return s
}

func zoneError(err error) error {
	switch {
	case errors.Is(err, rtls.ErrDuplicateDevice):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, rtls.ErrUnknownDevice):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, rtls.ErrSelfMeasurement), errors.Is(err, rtls.ErrInvalidMeasurement):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func encodeError(err error) error {
	return status.Errorf(codes.Internal, "encode response: %v", err)
}

// AddDevice registers {"id", "x", "y", "z"} and replies {"id"}.
func (s *ZoneService) AddDevice(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requireUint32(req, "id")
	if err != nil {
		return nil, err
	}
	var xyz [3]int32
	for i, name := range []string{"x", "y", "z"} {
		if xyz[i], err = optionalInt32(req, name); err != nil {
			return nil, err
		}
	}
	if err := s.zone.AddDevice(id, xyz[0], xyz[1], xyz[2]); err != nil {
		return nil, zoneError(err)
	}
	resp, err := structpb.NewStruct(map[string]any{"id": id})
	if err != nil {
		return nil, encodeError(err)
	}
	return resp, nil
}

// AddMeasure ingests {"a", "b", "distance", "timestamp"?} and replies
// {"kind", "timestamp"}.
func (s *ZoneService) AddMeasure(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	a, err := requireUint32(req, "a")
	if err != nil {
		return nil, err
	}
	b, err := requireUint32(req, "b")
	if err != nil {
		return nil, err
	}
	dist, ok, err := number(req, "distance")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, status.Error(codes.InvalidArgument, `missing "distance"`)
	}
	ts, err := optionalUint32(req, "timestamp", s.now())
	if err != nil {
		return nil, err
	}

	kind, err := s.zone.AddMeasure(a, b, float32(dist), ts)
	if err != nil {
		return nil, zoneError(err)
	}
	resp, err := structpb.NewStruct(map[string]any{"kind": kind.String(), "timestamp": ts})
	if err != nil {
		return nil, encodeError(err)
	}
	return resp, nil
}

// GetDevice replies with the snapshot of {"id"}.
func (s *ZoneService) GetDevice(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requireUint32(req, "id")
	if err != nil {
		return nil, err
	}
	d, ok := s.zone.GetDevice(id)
	if !ok {
		return nil, status.Errorf(codes.NotFound, "device %d not found", id)
	}
	resp, err := deviceStruct(d)
	if err != nil {
		return nil, encodeError(err)
	}
	return resp, nil
}

// GetAllPositions replies {"timestamp", "positions"} for {"timestamp"?}.
func (s *ZoneService) GetAllPositions(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ts, err := optionalUint32(req, "timestamp", s.now())
	if err != nil {
		return nil, err
	}
	resp, err := positionsStruct(ts, s.zone.GetAllPositions(ts))
	if err != nil {
		return nil, encodeError(err)
	}
	return resp, nil
}

// WatchPositions streams GetAllPositions replies, one immediately and one
// per interval_ms after that. A positive "limit" ends the stream after that
// many messages.
func (s *ZoneService) WatchPositions(req *structpb.Struct, stream grpc.ServerStream) error {
	ms, err := optionalUint32(req, "interval_ms", uint32(DefaultWatchInterval/time.Millisecond))
	if err != nil {
		return err
	}
	limit, err := optionalUint32(req, "limit", 0)
	if err != nil {
		return err
	}
	interval := time.Duration(ms) * time.Millisecond
	if interval < minWatchInterval {
		interval = minWatchInterval
	}

	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	send := func() error {
		ts := s.now()
		msg, err := positionsStruct(ts, s.zone.GetAllPositions(ts))
		if err != nil {
			return encodeError(err)
		}
		return stream.SendMsg(msg)
	}

	ctx := stream.Context()
	var sent uint32
	for {
		if err := send(); err != nil {
			monitoring.Logf("[gRPC] WatchPositions send error: %v", err)
			return err
		}
		sent++
		if limit > 0 && sent >= limit {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
		}
	}
}

func loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	duration := time.Since(start)
	if err != nil {
		monitoring.Logf("[gRPC] %s failed in %s: %v", info.FullMethod, duration, err)
	} else {
		monitoring.Logf("[gRPC] %s completed in %s", info.FullMethod, duration)
	}
	return resp, err
}

func recoverInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
	var fault error
	defer func() {
		if fault != nil {
			resp, err = nil, status.Error(codes.Internal, fault.Error())
		}
	}()
	defer monitoring.RecoverFault(info.FullMethod, &fault)
	return handler(ctx, req)
}

func recoverStreamInterceptor(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
	var fault error
	defer func() {
		if fault != nil {
			err = status.Error(codes.Internal, fault.Error())
		}
	}()
	defer monitoring.RecoverFault(info.FullMethod, &fault)
	return handler(srv, ss)
}
