package rpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ktrzcinx/rtls/internal/rtls"
)

// Client calls rtls.ZoneService over a connection.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) call(ctx context.Context, method string, req map[string]any) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out); err != nil {
		return nil, err
	}
	return out, nil
}

// AddDevice registers a device.
func (c *Client) AddDevice(ctx context.Context, id uint32, x, y, z int32) error {
	_, err := c.call(ctx, AddDeviceMethod, map[string]any{"id": id, "x": x, "y": y, "z": z})
	return err
}

// AddMeasure submits a ranging sample and returns the update kind. A nil
// ts lets the server stamp it.
func (c *Client) AddMeasure(ctx context.Context, a, b uint32, distance float64, ts *uint32) (string, error) {
	req := map[string]any{"a": a, "b": b, "distance": distance}
	if ts != nil {
		req["timestamp"] = *ts
	}
	out, err := c.call(ctx, AddMeasureMethod, req)
	if err != nil {
		return "", err
	}
	return out.GetFields()["kind"].GetStringValue(), nil
}

// GetDevice fetches a device snapshot.
func (c *Client) GetDevice(ctx context.Context, id uint32) (rtls.DeviceSnapshot, error) {
	out, err := c.call(ctx, GetDeviceMethod, map[string]any{"id": id})
	if err != nil {
		return rtls.DeviceSnapshot{}, err
	}
	return deviceFrom(out)
}

// GetAllPositions fetches every device estimate. A zero ts uses the
// server tick.
func (c *Client) GetAllPositions(ctx context.Context, ts uint32) ([]rtls.Position, error) {
	req := map[string]any{}
	if ts != 0 {
		req["timestamp"] = ts
	}
	out, err := c.call(ctx, GetAllPositionsMethod, req)
	if err != nil {
		return nil, err
	}
	_, positions, err := positionsFrom(out)
	return positions, err
}

// PositionStream receives WatchPositions messages.
type PositionStream struct {
	stream grpc.ClientStream
}

// Recv blocks for the next snapshot. It returns io.EOF when the server
// ends the stream.
func (p *PositionStream) Recv() (uint32, []rtls.Position, error) {
	msg := new(structpb.Struct)
	if err := p.stream.RecvMsg(msg); err != nil {
		return 0, nil, err
	}
	return positionsFrom(msg)
}

// WatchPositions opens a position stream. limit 0 streams until ctx ends.
func (c *Client) WatchPositions(ctx context.Context, interval time.Duration, limit uint32) (*PositionStream, error) {
	req, err := structpb.NewStruct(map[string]any{
		"interval_ms": uint32(interval / time.Millisecond),
		"limit":       limit,
	})
	if err != nil {
		return nil, err
	}
	stream, err := c.cc.NewStream(ctx, &ZoneServiceDesc.Streams[0], WatchPositionsMethod)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(req); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &PositionStream{stream: stream}, nil
}
