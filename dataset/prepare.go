package dataset

import (
	"fmt"
	"math"
	"strings"

	"github.com/banerjixplores/climacrop/core/frame"
	"github.com/banerjixplores/climacrop/pkg/errors"
)

// Prepare returns a copy of f ready for analysis:
//   - system_type normalized to Agricultural or Wild (case-insensitive);
//     any other value, including a missing one, is an error;
//   - temp_anomaly and rain_anomaly derived from contemporaneous minus
//     historical values when absent;
//   - incidence derived as n_infected / n_total when absent;
//   - incidence_zone derived from incidence when absent.
func Prepare(f *Frame) (*Frame, error) {
	if f == nil || f.NRows() == 0 {
		return nil, errors.NewModelError("dataset.Prepare", "empty table", errors.ErrEmptyData)
	}
	all := make([]int, f.NRows())
	for i := range all {
		all[i] = i
	}
	out := f.Take(all)

	systems, err := out.Text(ColSystemType)
	if err != nil {
		return nil, errors.Wrap(err, "system type")
	}
	for i, s := range systems {
		norm, err := NormalizeSystem(s)
		if err != nil {
			return nil, errors.Wrapf(err, "row %d", i)
		}
		systems[i] = norm
	}

	derive := []struct {
		name, minuend, subtrahend string
	}{
		{ColTempAnomaly, ColContempTemp, ColMonthlyTemp},
		{ColRainAnomaly, ColContempPrecip, ColMonthlyPrecip},
	}
	for _, d := range derive {
		if out.Has(d.name) || !out.Has(d.minuend) || !out.Has(d.subtrahend) {
			continue
		}
		a, err := out.Float(d.minuend)
		if err != nil {
			return nil, err
		}
		b, err := out.Float(d.subtrahend)
		if err != nil {
			return nil, err
		}
		diff := make([]float64, len(a))
		for i := range a {
			diff[i] = a[i] - b[i]
		}
		if err := out.Set(frame.NewNumeric(d.name, diff)); err != nil {
			return nil, err
		}
	}

	if !out.Has(ColIncidence) && out.Has(ColInfected) && out.Has(ColTotal) {
		infected, err := out.Float(ColInfected)
		if err != nil {
			return nil, err
		}
		total, err := out.Float(ColTotal)
		if err != nil {
			return nil, err
		}
		inc := make([]float64, len(total))
		for i := range total {
			inc[i] = math.NaN()
			if total[i] > 0 {
				inc[i] = infected[i] / total[i]
			}
		}
		if err := out.Set(frame.NewNumeric(ColIncidence, inc)); err != nil {
			return nil, err
		}
	}

	if !out.Has(ColIncidenceZone) && out.Has(ColIncidence) {
		inc, err := out.Float(ColIncidence)
		if err != nil {
			return nil, err
		}
		zones := make([]string, len(inc))
		for i, v := range inc {
			zones[i] = ZoneOf(v)
		}
		if err := out.Set(frame.NewCategorical(ColIncidenceZone, zones)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// NormalizeSystem maps a system type spelling to Agricultural or Wild.
func NormalizeSystem(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "agricultural":
		return SystemAgricultural, nil
	case "wild":
		return SystemWild, nil
	}
	return "", errors.NewValidationError(ColSystemType, "must be Agricultural or Wild", s)
}

// ZoneOf buckets an incidence value. NaN has no zone.
func ZoneOf(incidence float64) string {
	switch {
	case math.IsNaN(incidence):
		return ""
	case incidence < LowUpper:
		return ZoneLow
	case incidence < MediumUpper:
		return ZoneMedium
	default:
		return ZoneHigh
	}
}

// BySystem returns the rows of f whose system_type equals system.
func BySystem(f *Frame, system string) (*Frame, error) {
	norm, err := NormalizeSystem(system)
	if err != nil {
		return nil, err
	}
	systems, err := f.Text(ColSystemType)
	if err != nil {
		return nil, err
	}
	return f.Filter(func(i int) bool { return systems[i] == norm }), nil
}

// SplitSubsets returns the Agricultural and Wild rows of a prepared table.
func SplitSubsets(f *Frame) (ag, wild *Frame, err error) {
	if ag, err = BySystem(f, SystemAgricultural); err != nil {
		return nil, nil, err
	}
	if wild, err = BySystem(f, SystemWild); err != nil {
		return nil, nil, err
	}
	if ag.NRows()+wild.NRows() != f.NRows() {
		return nil, nil, errors.NewValueError("dataset.SplitSubsets",
			fmt.Sprintf("%d + %d rows do not cover %d", ag.NRows(), wild.NRows(), f.NRows()))
	}
	return ag, wild, nil
}
