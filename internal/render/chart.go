package render

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/ktrzcinx/rtls/internal/rtls"
)

// WriteChart renders an interactive scatter of the positions as a
// standalone HTML page. Height (z) is carried as the third value and shown
// in the tooltip.
func WriteChart(w io.Writer, zoneID int32, timestamp uint32, positions []rtls.Position) error {
	data := make([]opts.ScatterData, 0, len(positions))
	var pad float64 = 1
	for _, p := range positions {
		x, y, z := float64(p.Coord[0]), float64(p.Coord[1]), float64(p.Coord[2])
		data = append(data, opts.ScatterData{
			Name:  fmt.Sprintf("device %d", p.ID),
			Value: []interface{}{x, y, z},
		})
		for _, v := range []float64{x, -x, y, -y} {
			if v+1 > pad {
				pad = v + 1
			}
		}
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "RTLS Zone", Theme: "dark", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: fmt.Sprintf("Zone %d", zoneID), Subtitle: fmt.Sprintf("timestamp=%d devices=%d", timestamp, len(data))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: "X", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -pad, Max: pad, Name: "Y", NameLocation: "middle", NameGap: 30}),
	)
	scatter.AddSeries("devices", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 12}))

	return scatter.Render(w)
}
