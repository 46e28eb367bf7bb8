package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ktrzcinx/rtls/internal/httputil"
	"github.com/ktrzcinx/rtls/internal/rtls"
)

// StatusError is a non-2xx reply from the server. 409 and 404 unwrap to
// rtls.ErrDuplicateDevice and rtls.ErrUnknownDevice.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

func (e *StatusError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusConflict:
		return rtls.ErrDuplicateDevice
	case http.StatusNotFound:
		return rtls.ErrUnknownDevice
	}
	return nil
}

// Client talks to a Server.
type Client struct {
	base string
	http httputil.HTTPClient
}

// NewClient creates a client for the server at baseURL. A nil hc uses
// http.DefaultClient.
func NewClient(baseURL string, hc httputil.HTTPClient) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{base: strings.TrimRight(baseURL, "/"), http: hc}
}

// AddDevice registers a device.
func (c *Client) AddDevice(ctx context.Context, id uint32, x, y, z int32) error {
	return c.do(ctx, http.MethodPost, "/api/devices", DeviceRequest{ID: &id, X: x, Y: y, Z: z}, nil)
}

// AddMeasure submits a ranging sample. A nil ts lets the server stamp it.
func (c *Client) AddMeasure(ctx context.Context, a, b uint32, distance float64, ts *uint32) (MeasureResponse, error) {
	req := MeasureRequest{A: a, B: b, Distance: &distance, Timestamp: ts}
	var resp MeasureResponse
	err := c.do(ctx, http.MethodPost, "/api/measures", req, &resp)
	return resp, err
}

// Device fetches one device snapshot.
func (c *Client) Device(ctx context.Context, id uint32) (rtls.DeviceSnapshot, error) {
	var snap rtls.DeviceSnapshot
	err := c.do(ctx, http.MethodGet, "/api/devices/"+strconv.FormatUint(uint64(id), 10), nil, &snap)
	return snap, err
}

// Positions fetches every device estimate. A zero ts uses the server tick.
func (c *Client) Positions(ctx context.Context, ts uint32) ([]rtls.Position, error) {
	path := "/api/positions"
	if ts != 0 {
		path += "?" + url.Values{"timestamp": {strconv.FormatUint(uint64(ts), 10)}}.Encode()
	}
	var out []rtls.Position
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// Zone fetches the zone summary.
func (c *Client) Zone(ctx context.Context) (ZoneResponse, error) {
	var z ZoneResponse
	err := c.do(ctx, http.MethodGet, "/api/zone", nil, &z)
	return z, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if json.Unmarshal(raw, &e) != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(raw))
		}
		return &StatusError{StatusCode: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
