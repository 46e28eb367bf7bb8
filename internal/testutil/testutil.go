// Package testutil provides shared test utilities and fixtures.
//
// HTTP helpers cover the JSON handlers; zone fixtures build small zones with
// a known anchor layout for adapter tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ktrzcinx/rtls/internal/rtls"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// NewTestRequest creates a test HTTP request.
func NewTestRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

// NewJSONRequest creates a test request whose body is body encoded as JSON.
// A string body is sent verbatim.
func NewJSONRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		AssertNoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// DecodeJSON decodes the recorded response body into v.
func DecodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

// Anchor is a fixed device in a fixture layout.
type Anchor struct {
	ID      uint32
	X, Y, Z int32
}

// SquareAnchors are three anchors that, with the bootstrap device at the
// origin, form a 10x10 square in the z=0 plane.
var SquareAnchors = []Anchor{
	{ID: 1, X: 10},
	{ID: 2, Y: 10},
	{ID: 3, X: 10, Y: 10},
}

// QuietConfig returns the default zone config with logging muted.
func QuietConfig() rtls.Config {
	cfg := rtls.DefaultConfig()
	cfg.Logf = func(string, ...interface{}) {}
	return cfg
}

// NewZone initialises a zone with the bootstrap device and anchors.
func NewZone(t *testing.T, anchors ...Anchor) *rtls.SyncZone {
	t.Helper()
	z := rtls.NewSyncZone(rtls.Init(QuietConfig()))
	for _, a := range anchors {
		if err := z.AddDevice(a.ID, a.X, a.Y, a.Z); err != nil {
			t.Fatalf("add anchor %d: %v", a.ID, err)
		}
	}
	return z
}

// FixedTick returns a tick source stuck at ts.
func FixedTick(ts uint32) func() uint32 {
	return func() uint32 { return ts }
}
