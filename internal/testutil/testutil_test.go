package testutil

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAssertHelpersPass(t *testing.T) {
	t.Parallel()

	AssertStatusCode(t, http.StatusOK, http.StatusOK)
	AssertNoError(t, nil)
	AssertError(t, errors.New("test error"))
}

func TestNewTestRequest(t *testing.T) {
	t.Parallel()

	req := NewTestRequest(http.MethodDelete, "/api/devices/3")
	if req.Method != http.MethodDelete || req.URL.Path != "/api/devices/3" {
		t.Errorf("got %s %s", req.Method, req.URL.Path)
	}
}

func TestNewJSONRequest(t *testing.T) {
	t.Parallel()

	req := NewJSONRequest(t, http.MethodPost, "/api/devices", map[string]int{"id": 4})
	if ct := req.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("content-type = %q", ct)
	}

	rec := httptest.NewRecorder()
	_, _ = rec.Body.ReadFrom(req.Body)
	var got map[string]int
	DecodeJSON(t, rec, &got)
	if got["id"] != 4 {
		t.Errorf("body = %v", got)
	}

	raw := NewJSONRequest(t, http.MethodPost, "/x", "{bad")
	rec = httptest.NewRecorder()
	_, _ = rec.Body.ReadFrom(raw.Body)
	if rec.Body.String() != "{bad" {
		t.Errorf("raw body = %q", rec.Body.String())
	}
}

func TestNewZone(t *testing.T) {
	t.Parallel()

	z := NewZone(t, SquareAnchors...)
	devices, pairs := z.Stats()
	if devices != 4 || pairs != 0 {
		t.Errorf("stats = %d devices, %d pairs", devices, pairs)
	}
	d, ok := z.GetDevice(3)
	if !ok || d.Trace[0].Coord[0] != 10 || d.Trace[0].Coord[1] != 10 {
		t.Errorf("anchor 3 = %+v", d)
	}
	if FixedTick(9)() != 9 {
		t.Error("FixedTick")
	}
}
