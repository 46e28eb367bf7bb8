// Package render draws zone snapshots: a PNG map for reports and an
// interactive HTML scatter for the debug pages.
package render

import (
	"fmt"
	"image/color"
	"io"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/ktrzcinx/rtls/internal/rtls"
)

// ZoneMap is the data drawn by WritePNG.
type ZoneMap struct {
	Title     string
	Timestamp uint32
	Positions []rtls.Position
	// Traces optionally holds each device's recent trace, newest first.
	Traces map[uint32][]rtls.Trace
}

// Size of the rendered PNG.
var (
	MapWidth  = 6 * vg.Inch
	MapHeight = 6 * vg.Inch
)

// WritePNG renders the top-down (x, y) view of the zone to w.
func WritePNG(w io.Writer, m ZoneMap) error {
	p := plot.New()
	p.Title.Text = m.Title
	if p.Title.Text == "" {
		p.Title.Text = fmt.Sprintf("Zone @ %d", m.Timestamp)
	}
	p.X.Label.Text = "X"
	p.Y.Label.Text = "Y"
	p.Add(plotter.NewGrid())

	if err := addTraces(p, m.Traces); err != nil {
		return err
	}

	if len(m.Positions) > 0 {
		pts := make(plotter.XYs, len(m.Positions))
		labels := make([]string, len(m.Positions))
		for i, pos := range m.Positions {
			pts[i] = plotter.XY{X: float64(pos.Coord[0]), Y: float64(pos.Coord[1])}
			labels[i] = fmt.Sprintf("%d", pos.ID)
		}
		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return err
		}
		sc.GlyphStyle.Shape = draw.CircleGlyph{}
		sc.GlyphStyle.Radius = vg.Points(4)
		sc.GlyphStyle.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
		p.Add(sc)

		lbl, err := plotter.NewLabels(plotter.XYLabels{XYs: pts, Labels: labels})
		if err != nil {
			return err
		}
		for i := range lbl.TextStyle {
			lbl.TextStyle[i].XAlign = draw.XCenter
			lbl.TextStyle[i].YAlign = draw.YBottom
		}
		lbl.Offset = vg.Point{Y: vg.Points(6)}
		p.Add(lbl)
	}

	wt, err := p.WriterTo(MapWidth, MapHeight, "png")
	if err != nil {
		return fmt.Errorf("render zone map: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}

func addTraces(p *plot.Plot, traces map[uint32][]rtls.Trace) error {
	ids := make([]uint32, 0, len(traces))
	for id, tr := range traces {
		if len(tr) > 1 {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		tr := traces[id]
		pts := make(plotter.XYs, len(tr))
		for i, t := range tr {
			pts[i] = plotter.XY{X: float64(t.Coord[0]), Y: float64(t.Coord[1])}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		line.Width = vg.Points(1)
		line.Color = color.Gray{Y: 150}
		line.Dashes = []vg.Length{vg.Points(3), vg.Points(2)}
		p.Add(line)
	}
	return nil
}
