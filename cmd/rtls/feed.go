package main

import (
	"fmt"
	"math"

	"github.com/ktrzcinx/rtls/internal/config"
	"github.com/ktrzcinx/rtls/internal/rtls"
)

// mockTagID is the tag moved around by the synthetic gateway feed.
const mockTagID uint32 = 100

// defaultAnchors is used by the synthetic feed when no layout is given.
var defaultAnchors = []config.LayoutDevice{
	{ID: 1, Label: "east", X: 10},
	{ID: 2, Label: "north", Y: 10},
	{ID: 3, Label: "north-east", X: 10, Y: 10},
}

// syntheticFeed returns gateway lines for a tag circling the middle of the
// anchors. Anchors and the tag are announced first; re-announcing a known
// device is harmless. The bootstrap device at the origin ranges too.
func syntheticFeed(anchors []config.LayoutDevice, steps int) []string {
	type anchor struct {
		id  uint32
		pos rtls.Coord
	}
	all := []anchor{{id: rtls.BootstrapDeviceID}}
	var cx, cy float64
	for _, a := range anchors {
		all = append(all, anchor{id: a.ID, pos: rtls.Coord{float32(a.X), float32(a.Y), float32(a.Z)}})
	}
	for _, a := range all {
		cx += float64(a.pos[0])
		cy += float64(a.pos[1])
	}
	cx /= float64(len(all))
	cy /= float64(len(all))

	lines := []string{"# synthetic gateway feed"}
	for _, a := range anchors {
		lines = append(lines, fmt.Sprintf("D,%d,%d,%d,%d", a.ID, a.X, a.Y, a.Z))
	}
	lines = append(lines, fmt.Sprintf("D,%d,%d,%d,0", mockTagID, int32(cx), int32(cy)))
	const radius = 3.0
	for k := 0; k < steps; k++ {
		angle := 2 * math.Pi * float64(k) / float64(steps)
		tag := rtls.Coord{float32(cx + radius*math.Cos(angle)), float32(cy + radius*math.Sin(angle)), 0}
		for _, a := range all {
			lines = append(lines, fmt.Sprintf("R,%d,%d,%.3f", a.id, mockTagID, tag.Distance(a.pos)))
		}
	}
	return lines
}
