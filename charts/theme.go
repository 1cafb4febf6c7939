// Package charts renders the dashboard's pre-built chart artifacts: gonum
// plots encoded as SVG and wrapped in standalone HTML fragments under the
// images directory.
package charts

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banerjixplores/climacrop/dataset"
)

// Colorblind is the ten-color colorblind-safe palette.
var Colorblind = []color.Color{
	rgb(0x01, 0x73, 0xB2),
	rgb(0xDE, 0x8F, 0x05),
	rgb(0x02, 0x9E, 0x73),
	rgb(0xD5, 0x5E, 0x00),
	rgb(0xCC, 0x78, 0xBC),
	rgb(0xCA, 0x91, 0x61),
	rgb(0xFB, 0xAF, 0xE4),
	rgb(0x94, 0x94, 0x94),
	rgb(0xEC, 0xE1, 0x33),
	rgb(0x56, 0xB4, 0xE9),
}

func rgb(r, g, b uint8) color.RGBA { return color.RGBA{R: r, G: g, B: b, A: 0xFF} }

// Theme holds the shared look of every chart.
type Theme struct {
	Palette   []color.Color
	Wild      color.Color
	Ag        color.Color
	High      color.Color
	Grid      color.Color
	TitleSize vg.Length
	LabelSize vg.Length
	TickSize  vg.Length
	Width     vg.Length
	Height    vg.Length
}

// DefaultTheme is the whitegrid look: colorblind palette, Wild in green,
// Agricultural in blue, dashed light grid.
func DefaultTheme() Theme {
	return Theme{
		Palette:   Colorblind,
		Wild:      Colorblind[2],
		Ag:        Colorblind[0],
		High:      color.RGBA{R: 0xFF, G: 0xA5, A: 0xFF},
		Grid:      color.RGBA{R: 0xB3, G: 0xB3, B: 0xB3, A: 0xFF},
		TitleSize: vg.Points(14),
		LabelSize: vg.Points(12),
		TickSize:  vg.Points(10),
		Width:     8 * vg.Inch,
		Height:    5 * vg.Inch,
	}
}

// SystemColor returns the color of a system type.
func (t Theme) SystemColor(system string) color.Color {
	if system == dataset.SystemWild {
		return t.Wild
	}
	return t.Ag
}

// ZoneColor returns the color of an incidence zone.
func (t Theme) ZoneColor(zone string) color.Color {
	switch zone {
	case dataset.ZoneLow:
		return t.Wild
	case dataset.ZoneMedium:
		return t.Ag
	default:
		return t.High
	}
}

// Color cycles through the palette.
func (t Theme) Color(i int) color.Color {
	return t.Palette[i%len(t.Palette)]
}

// newPlot returns a titled, themed plot with a dashed grid.
func (t Theme) newPlot(title, x, y string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.Title.TextStyle.Font.Size = t.TitleSize
	p.X.Label.Text = x
	p.Y.Label.Text = y
	p.X.Label.TextStyle.Font.Size = t.LabelSize
	p.Y.Label.TextStyle.Font.Size = t.LabelSize
	p.X.Tick.Label.Font.Size = t.TickSize
	p.Y.Tick.Label.Font.Size = t.TickSize
	p.Legend.Top = true
	p.Legend.TextStyle.Font.Size = t.TickSize

	grid := plotter.NewGrid()
	grid.Vertical.Color = t.Grid
	grid.Horizontal.Color = t.Grid
	grid.Vertical.Dashes = []vg.Length{vg.Points(3), vg.Points(3)}
	grid.Horizontal.Dashes = []vg.Length{vg.Points(3), vg.Points(3)}
	p.Add(grid)
	return p
}

// Hex formats c as #RRGGBB.
func Hex(c color.Color) string {
	r, g, b, _ := c.RGBA()
	return fmt.Sprintf("#%02X%02X%02X", r>>8, g>>8, b>>8)
}

var circle = draw.CircleGlyph{}
