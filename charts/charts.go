package charts

import (
	"fmt"
	"image/color"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banerjixplores/climacrop/core/frame"
	"github.com/banerjixplores/climacrop/dataset"
	"github.com/banerjixplores/climacrop/linear"
	"github.com/banerjixplores/climacrop/modeling"
	"github.com/banerjixplores/climacrop/pkg/errors"
)

// anomalyColumn maps a metric to its anomaly column and axis label.
func anomalyColumn(metric string) (string, string) {
	if metric == MetricRainfall {
		return dataset.ColRainAnomaly, "Rainfall anomaly (mm)"
	}
	return dataset.ColTempAnomaly, "Temperature anomaly (°C)"
}

// bySystem splits the finite (x, y) pairs of f by system type.
func bySystem(f *frame.Frame, xCol, yCol string) (map[string]plotter.XYs, error) {
	systems, err := f.Text(dataset.ColSystemType)
	if err != nil {
		return nil, err
	}
	x, err := f.Float(xCol)
	if err != nil {
		return nil, err
	}
	y, err := f.Float(yCol)
	if err != nil {
		return nil, err
	}
	out := make(map[string]plotter.XYs, len(dataset.Systems))
	for i := range systems {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		out[systems[i]] = append(out[systems[i]], plotter.XY{X: x[i], Y: y[i]})
	}
	return out, nil
}

// GlobalMap plots survey locations colored by system type.
func GlobalMap(f *frame.Frame, t Theme) (*plot.Plot, error) {
	pts, err := bySystem(f, dataset.ColLongitude, dataset.ColLatitude)
	if err != nil {
		return nil, err
	}
	p := t.newPlot("Survey locations by system type", "Longitude", "Latitude")
	p.X.Min, p.X.Max = -180, 180
	p.Y.Min, p.Y.Max = -90, 90
	for _, system := range dataset.Systems {
		if len(pts[system]) == 0 {
			continue
		}
		s, err := plotter.NewScatter(pts[system])
		if err != nil {
			return nil, err
		}
		s.GlyphStyle.Color = t.SystemColor(system)
		s.GlyphStyle.Shape = circle
		s.GlyphStyle.Radius = vg.Points(2.5)
		p.Add(s)
		p.Legend.Add(system, s)
	}
	return p, nil
}

// corrGrid adapts a correlation matrix to plotter.GridXYZ.
type corrGrid struct{ m mat.Symmetric }

func (g corrGrid) Dims() (c, r int)   { n := g.m.SymmetricDim(); return n, n }
func (g corrGrid) Z(c, r int) float64 { return g.m.At(r, c) }
func (g corrGrid) X(c int) float64    { return float64(c) }
func (g corrGrid) Y(r int) float64    { return float64(r) }

// CorrelationHeatmap draws a labelled heatmap of corr on a blue-red scale
// fixed to [-1, 1].
func CorrelationHeatmap(names []string, corr mat.Symmetric, t Theme) (*plot.Plot, error) {
	n := corr.SymmetricDim()
	if n != len(names) {
		return nil, errors.NewDimensionError("charts.CorrelationHeatmap", len(names), n, 0)
	}
	cm := moreland.SmoothBlueRed()
	cm.SetMin(-1)
	cm.SetMax(1)
	h := plotter.NewHeatMap(corrGrid{corr}, cm.Palette(255))
	h.Min, h.Max = -1, 1

	p := t.newPlot("Correlation of climate variables and incidence", "", "")
	p.Add(h)

	ticks := make([]plot.Tick, n)
	var xys plotter.XYs
	var labels []string
	for i, name := range names {
		ticks[i] = plot.Tick{Value: float64(i), Label: name}
		for j := 0; j < n; j++ {
			xys = append(xys, plotter.XY{X: float64(j), Y: float64(i)})
			labels = append(labels, fmt.Sprintf("%.2f", corr.At(i, j)))
		}
	}
	p.X.Tick.Marker = plot.ConstantTicks(ticks)
	p.Y.Tick.Marker = plot.ConstantTicks(ticks)
	p.X.Tick.Label.Rotation = math.Pi / 4

	l, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: labels})
	if err != nil {
		return nil, err
	}
	for i := range l.TextStyle {
		l.TextStyle[i].Font.Size = t.TickSize
	}
	p.Add(l)
	return p, nil
}

// AnomalyResponse scatters incidence against one anomaly for one system
// type, with the least squares line.
func AnomalyResponse(f *frame.Frame, system, metric string, t Theme) (*plot.Plot, error) {
	col, label := anomalyColumn(metric)
	pts, err := bySystem(f, col, dataset.ColIncidence)
	if err != nil {
		return nil, err
	}
	xy := pts[system]
	p := t.newPlot(fmt.Sprintf("%s: %s vs. incidence", system, label), label, "Incidence")
	if len(xy) == 0 {
		return p, nil
	}
	s, err := plotter.NewScatter(xy)
	if err != nil {
		return nil, err
	}
	s.GlyphStyle.Color = t.SystemColor(system)
	s.GlyphStyle.Shape = circle
	s.GlyphStyle.Radius = vg.Points(2)
	p.Add(s)

	if len(xy) < 3 {
		return p, nil
	}
	X := mat.NewDense(len(xy), 1, nil)
	Y := mat.NewDense(len(xy), 1, nil)
	lo, hi := math.Inf(1), math.Inf(-1)
	for i, pt := range xy {
		X.Set(i, 0, pt.X)
		Y.Set(i, 0, pt.Y)
		lo, hi = math.Min(lo, pt.X), math.Max(hi, pt.X)
	}
	m := linear.NewOLS()
	if err := m.Fit(X, Y); err != nil {
		if errors.Is(err, errors.ErrSingularMatrix) {
			return p, nil
		}
		return nil, err
	}
	w := m.GetWeights()[0]
	line, err := plotter.NewLine(plotter.XYs{
		{X: lo, Y: m.Intercept + w*lo},
		{X: hi, Y: m.Intercept + w*hi},
	})
	if err != nil {
		return nil, err
	}
	line.Color = color.Black
	line.Width = vg.Points(1.5)
	p.Add(line)
	p.Legend.Add(fmt.Sprintf("OLS slope %.3g (p=%.2g)", w, m.PValues[1]), line)
	return p, nil
}

// groupValues collects the finite values of col per pathogen group and
// system type.
func groupValues(f *frame.Frame, col string) ([]string, map[string]map[string]plotter.Values, error) {
	groups, err := f.Text(dataset.ColPathogenGroup)
	if err != nil {
		return nil, nil, err
	}
	systems, err := f.Text(dataset.ColSystemType)
	if err != nil {
		return nil, nil, err
	}
	var vals []float64
	if col != "" {
		if vals, err = f.Float(col); err != nil {
			return nil, nil, err
		}
	}
	out := make(map[string]map[string]plotter.Values)
	for i, g := range groups {
		if g == "" {
			continue
		}
		v := 1.0
		if vals != nil {
			if math.IsNaN(vals[i]) {
				continue
			}
			v = vals[i]
		}
		if out[g] == nil {
			out[g] = make(map[string]plotter.Values)
		}
		out[g][systems[i]] = append(out[g][systems[i]], v)
	}
	names := make([]string, 0, len(out))
	for g := range out {
		names = append(names, g)
	}
	sort.Strings(names)
	return names, out, nil
}

// swatch is a legend thumbnail filled with one color.
type swatch struct {
	fill color.Color
}

// Thumbnail implements plot.Thumbnailer.
func (s swatch) Thumbnail(c *draw.Canvas) {
	pts := []vg.Point{
		{X: c.Min.X, Y: c.Min.Y},
		{X: c.Min.X, Y: c.Max.Y},
		{X: c.Max.X, Y: c.Max.Y},
		{X: c.Max.X, Y: c.Min.Y},
	}
	c.FillPolygon(s.fill, c.ClipPolygonY(pts))
}

// PathogenBoxes draws side-by-side box plots of one anomaly per pathogen
// group, one box per system type.
func PathogenBoxes(f *frame.Frame, metric string, t Theme) (*plot.Plot, error) {
	col, label := anomalyColumn(metric)
	names, vals, err := groupValues(f, col)
	if err != nil {
		return nil, err
	}
	p := t.newPlot(label+" by pathogen group and system type", "Pathogen group", label)
	width := vg.Points(18)
	for si, system := range dataset.Systems {
		offset := -0.2 + 0.4*float64(si)
		first := true
		for gi, g := range names {
			v := vals[g][system]
			if len(v) == 0 {
				continue
			}
			b, err := plotter.NewBoxPlot(width, float64(gi)+offset, v)
			if err != nil {
				return nil, err
			}
			b.FillColor = t.SystemColor(system)
			p.Add(b)
			if first {
				p.Legend.Add(system, swatch{b.FillColor})
				first = false
			}
		}
	}
	if len(names) > 0 {
		p.NominalX(names...)
	}
	return p, nil
}

// PathogenHostDistribution draws record counts per pathogen group, one bar
// per system type.
func PathogenHostDistribution(f *frame.Frame, t Theme) (*plot.Plot, error) {
	names, vals, err := groupValues(f, "")
	if err != nil {
		return nil, err
	}
	p := t.newPlot("Records per pathogen group", "Pathogen group", "Records")
	if len(names) == 0 {
		return p, nil
	}
	w := vg.Points(16)
	for si, system := range dataset.Systems {
		counts := make(plotter.Values, len(names))
		for gi, g := range names {
			counts[gi] = float64(len(vals[g][system]))
		}
		bars, err := plotter.NewBarChart(counts, w)
		if err != nil {
			return nil, err
		}
		bars.Color = t.SystemColor(system)
		bars.LineStyle.Width = vg.Length(0)
		bars.Offset = w * vg.Length(2*si-1) / 2
		p.Add(bars)
		p.Legend.Add(system, bars)
	}
	p.NominalX(names...)
	return p, nil
}

// AnomalyDistribution overlays per-system histograms of one anomaly.
func AnomalyDistribution(f *frame.Frame, metric string, bins int, t Theme) (*plot.Plot, error) {
	col, label := anomalyColumn(metric)
	systems, err := f.Text(dataset.ColSystemType)
	if err != nil {
		return nil, err
	}
	x, err := f.Float(col)
	if err != nil {
		return nil, err
	}
	vals := make(map[string]plotter.Values)
	for i, s := range systems {
		if !math.IsNaN(x[i]) {
			vals[s] = append(vals[s], x[i])
		}
	}
	p := t.newPlot("Distribution of "+label, label, "Records")
	for _, system := range dataset.Systems {
		if len(vals[system]) == 0 {
			continue
		}
		h, err := plotter.NewHist(vals[system], bins)
		if err != nil {
			return nil, err
		}
		r, g, b, _ := t.SystemColor(system).RGBA()
		h.FillColor = color.NRGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: 0x99}
		h.LineStyle.Width = vg.Length(0)
		p.Add(h)
		p.Legend.Add(system, h)
	}
	return p, nil
}

// FeatureImportance draws the top n features as horizontal bars, largest
// on top.
func FeatureImportance(names []string, importances []float64, n int, t Theme) (*plot.Plot, error) {
	if len(names) != len(importances) {
		return nil, errors.NewDimensionError("charts.FeatureImportance", len(names), len(importances), 0)
	}
	order := make([]int, len(names))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return importances[order[a]] > importances[order[b]] })
	if n > 0 && n < len(order) {
		order = order[:n]
	}

	p := t.newPlot("Feature importance", "Importance", "")
	if len(order) == 0 {
		return p, nil
	}
	// Bottom to top, so the largest bar is drawn last.
	vals := make(plotter.Values, len(order))
	labels := make([]string, len(order))
	for i, idx := range order {
		k := len(order) - 1 - i
		vals[k] = importances[idx]
		labels[k] = names[idx]
	}
	bars, err := plotter.NewBarChart(vals, vg.Points(12))
	if err != nil {
		return nil, err
	}
	bars.Horizontal = true
	bars.Color = t.Ag
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)
	p.NominalY(labels...)
	return p, nil
}

// ModelComparison draws grouped bars per model: CV R², test R² and the
// accuracy of each incidence zone.
func ModelComparison(table *modeling.ComparisonTable, t Theme) (*plot.Plot, error) {
	p := t.newPlot(fmt.Sprintf("Model comparison: %s", table.System), "Model", "Score")
	if len(table.Rows) == 0 {
		return p, nil
	}
	series := []struct {
		name  string
		value func(modeling.Comparison) float64
	}{
		{"CV R²", func(c modeling.Comparison) float64 { return c.CVR2 }},
		{"Test R²", func(c modeling.Comparison) float64 { return c.TestR2 }},
	}
	for _, z := range dataset.Zones {
		z := z
		series = append(series, struct {
			name  string
			value func(modeling.Comparison) float64
		}{"Zone accuracy " + z, func(c modeling.Comparison) float64 { return c.ZoneAccuracy[z] }})
	}

	w := vg.Points(10)
	models := make([]string, len(table.Rows))
	for i, r := range table.Rows {
		models[i] = r.Model
	}
	for si, s := range series {
		vals := make(plotter.Values, len(table.Rows))
		for i, r := range table.Rows {
			vals[i] = s.value(r)
			if math.IsNaN(vals[i]) || math.IsInf(vals[i], 0) {
				vals[i] = 0
			}
		}
		bars, err := plotter.NewBarChart(vals, w)
		if err != nil {
			return nil, err
		}
		bars.Color = t.Color(si)
		bars.LineStyle.Width = vg.Length(0)
		bars.Offset = w * vg.Length(2*si-len(series)+1) / 2
		p.Add(bars)
		p.Legend.Add(s.name, bars)
	}
	p.NominalX(models...)
	return p, nil
}
