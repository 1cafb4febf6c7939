package analysis

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/banerjixplores/climacrop/core/frame"
	"github.com/banerjixplores/climacrop/dataset"
	"github.com/banerjixplores/climacrop/pkg/errors"
)

// CorrelationColumns are the columns of the correlation heatmap.
var CorrelationColumns = []string{
	dataset.ColIncidence,
	dataset.ColMonthlyTemp,
	dataset.ColContempTemp,
	dataset.ColTempAnomaly,
	dataset.ColMonthlyPrecip,
	dataset.ColContempPrecip,
	dataset.ColRainAnomaly,
}

// Correlation returns the Pearson correlation matrix of the columns of cols
// present in f, over the rows where all of them are finite.
func Correlation(f *frame.Frame, cols []string) ([]string, *mat.SymDense, error) {
	var names []string
	var data [][]float64
	for _, c := range cols {
		v, err := f.Float(c)
		if err != nil {
			continue
		}
		names = append(names, c)
		data = append(data, v)
	}
	if len(names) < 2 {
		return nil, nil, errors.NewModelError("analysis.Correlation", "fewer than two numeric columns", errors.ErrEmptyData)
	}

	var rows []int
	for i := 0; i < f.NRows(); i++ {
		ok := true
		for _, v := range data {
			if math.IsNaN(v[i]) || math.IsInf(v[i], 0) {
				ok = false
				break
			}
		}
		if ok {
			rows = append(rows, i)
		}
	}
	if len(rows) < 2 {
		return nil, nil, errors.NewModelError("analysis.Correlation", "fewer than two complete rows", errors.ErrEmptyData)
	}

	X := mat.NewDense(len(rows), len(names), nil)
	for r, i := range rows {
		for j, v := range data {
			X.Set(r, j, v[i])
		}
	}
	corr := mat.NewSymDense(len(names), nil)
	stat.CorrelationMatrix(corr, X, nil)
	return names, corr, nil
}

// ZoneMean is the mean climate anomaly of one incidence zone in one system.
type ZoneMean struct {
	System      string  `json:"system_type"`
	Zone        string  `json:"zone"`
	N           int     `json:"n"`
	TempAnomaly float64 `json:"temp_anomaly"`
	RainAnomaly float64 `json:"rain_anomaly"`
}

// ZoneMeans averages the anomalies per system type and zone. Means skip
// missing values and are NaN for a group without any.
func ZoneMeans(f *frame.Frame) ([]ZoneMean, error) {
	systems, err := f.Text(dataset.ColSystemType)
	if err != nil {
		return nil, err
	}
	zones, err := f.Text(dataset.ColIncidenceZone)
	if err != nil {
		return nil, err
	}
	temp := floatOrNaN(f, dataset.ColTempAnomaly)
	rain := floatOrNaN(f, dataset.ColRainAnomaly)

	var out []ZoneMean
	for _, system := range dataset.Systems {
		for _, zone := range dataset.Zones {
			var t, r []float64
			n := 0
			for i := range zones {
				if systems[i] != system || zones[i] != zone {
					continue
				}
				n++
				if !math.IsNaN(temp[i]) {
					t = append(t, temp[i])
				}
				if !math.IsNaN(rain[i]) {
					r = append(r, rain[i])
				}
			}
			out = append(out, ZoneMean{
				System:      system,
				Zone:        zone,
				N:           n,
				TempAnomaly: meanOrNaN(t),
				RainAnomaly: meanOrNaN(r),
			})
		}
	}
	return out, nil
}

// SystemSummary counts the records of one system type.
type SystemSummary struct {
	System        string  `json:"system_type"`
	Records       int     `json:"records"`
	MeanIncidence float64 `json:"mean_incidence"`
	Pathogens     int     `json:"pathogens"`
	Locations     int     `json:"locations"`
}

// Summarize describes each system type of a prepared table.
func Summarize(f *frame.Frame) ([]SystemSummary, error) {
	systems, err := f.Text(dataset.ColSystemType)
	if err != nil {
		return nil, err
	}
	inc := floatOrNaN(f, dataset.ColIncidence)
	text := func(name string) []string {
		v, err := f.Text(name)
		if err != nil {
			return make([]string, f.NRows())
		}
		return v
	}
	pathogens := text(dataset.ColPathogenGroup)
	locations := text(dataset.ColLocation)

	out := make([]SystemSummary, 0, len(dataset.Systems))
	for _, system := range dataset.Systems {
		s := SystemSummary{System: system}
		var vals []float64
		var ps, ls []string
		for i := range systems {
			if systems[i] != system {
				continue
			}
			s.Records++
			if !math.IsNaN(inc[i]) {
				vals = append(vals, inc[i])
			}
			ps = append(ps, pathogens[i])
			ls = append(ls, locations[i])
		}
		s.MeanIncidence = meanOrNaN(vals)
		s.Pathogens = len(levels(ps))
		s.Locations = len(levels(ls))
		out = append(out, s)
	}
	return out, nil
}

func meanOrNaN(v []float64) float64 {
	if len(v) == 0 {
		return math.NaN()
	}
	return stat.Mean(v, nil)
}
