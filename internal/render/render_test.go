package render

import (
	"bytes"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ktrzcinx/rtls/internal/rtls"
)

func samplePositions() []rtls.Position {
	return []rtls.Position{
		{ID: 0, Trace: rtls.Trace{Coord: rtls.Coord{0, 0, 0}, Timestamp: 10}},
		{ID: 7, Trace: rtls.Trace{Coord: rtls.Coord{3, -4, 1}, Timestamp: 10}},
	}
}

func TestWritePNG(t *testing.T) {
	var buf bytes.Buffer
	err := WritePNG(&buf, ZoneMap{
		Timestamp: 10,
		Positions: samplePositions(),
		Traces: map[uint32][]rtls.Trace{
			7: {{Coord: rtls.Coord{3, -4, 1}}, {Coord: rtls.Coord{2, -3, 1}}},
			0: {{}},
		},
	})
	require.NoError(t, err)

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Greater(t, img.Bounds().Dx(), 100)
}

func TestWritePNGEmptyZone(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePNG(&buf, ZoneMap{Title: "empty"}))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")))
}

func TestWriteChart(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteChart(&buf, 2, 10, samplePositions()))

	html := buf.String()
	assert.True(t, strings.Contains(html, "echarts"), "page should load echarts")
	assert.Contains(t, html, "device 7")
	assert.Contains(t, html, "Zone 2")
}
