package analysis

import (
	"math"

	"github.com/banerjixplores/climacrop/core/frame"
	"github.com/banerjixplores/climacrop/dataset"
	"github.com/banerjixplores/climacrop/linear"
	"github.com/banerjixplores/climacrop/pkg/errors"
	"github.com/banerjixplores/climacrop/pkg/log"
)

// ResponseMetrics are the climate columns regressed one at a time against
// incidence, in table order.
var ResponseMetrics = []string{
	dataset.ColTempAnomaly,
	dataset.ColContempTemp,
	dataset.ColMonthlyTemp,
	dataset.ColRainAnomaly,
	dataset.ColContempPrecip,
	dataset.ColMonthlyPrecip,
}

// MismatchPairs pairs each anomaly with its historical normal.
var MismatchPairs = [][2]string{
	{dataset.ColTempAnomaly, dataset.ColMonthlyTemp},
	{dataset.ColRainAnomaly, dataset.ColMonthlyPrecip},
}

// MetricFit is the single-metric response of incidence in one system type.
type MetricFit struct {
	System      string  `json:"system_type"`
	Metric      string  `json:"metric"`
	N           int     `json:"n"`
	LinearCoef  float64 `json:"linear_coef"`
	LinearR2    float64 `json:"linear_r2"`
	LinearP     float64 `json:"linear_p"`
	QuadraticR2 float64 `json:"quadratic_r2"`
	// QuadraticP is the p-value of the squared term.
	QuadraticP float64 `json:"quadratic_p"`
}

// ClimateResponse fits incidence ~ metric and incidence ~ metric + metric²
// on the rows of system.
func ClimateResponse(f *frame.Frame, system, metric string) (MetricFit, error) {
	rows, err := dataset.BySystem(f, system)
	if err != nil {
		return MetricFit{}, err
	}
	y, err := rows.Float(dataset.ColIncidence)
	if err != nil {
		return MetricFit{}, err
	}
	x, err := rows.Float(metric)
	if err != nil {
		return MetricFit{}, err
	}
	sq := make([]float64, len(x))
	for i, v := range x {
		sq[i] = v * v
	}

	var lin design
	lin.add(metric, x)
	m1, n, err := fitOLS(lin, y)
	if err != nil {
		return MetricFit{}, errors.Wrapf(err, "%s linear fit", metric)
	}
	var quad design
	quad.add(metric, x)
	quad.add(metric+"^2", sq)
	m2, _, err := fitOLS(quad, y)
	if err != nil {
		return MetricFit{}, errors.Wrapf(err, "%s quadratic fit", metric)
	}

	norm, _ := dataset.NormalizeSystem(system)
	return MetricFit{
		System:      norm,
		Metric:      metric,
		N:           n,
		LinearCoef:  m1.GetWeights()[0],
		LinearR2:    m1.R2,
		LinearP:     m1.PValues[1],
		QuadraticR2: m2.R2,
		QuadraticP:  m2.PValues[2],
	}, nil
}

// ResponseTable runs ClimateResponse for every system type and every
// metric present in f. Fits the data cannot support are left out.
func ResponseTable(f *frame.Frame) ([]MetricFit, error) {
	var out []MetricFit
	for _, system := range dataset.Systems {
		for _, metric := range ResponseMetrics {
			if !f.Has(metric) {
				continue
			}
			fit, err := ClimateResponse(f, system, metric)
			if skippable(err) {
				logger().Warn("Response fit skipped", log.SystemKey, system, "metric", metric, log.ErrorKey, err.Error())
				continue
			}
			if err != nil {
				return nil, err
			}
			out = append(out, fit)
		}
	}
	return out, nil
}

// SensitivityRow compares the linear R² of one metric between system types.
type SensitivityRow struct {
	Metric       string  `json:"metric"`
	WildR2       float64 `json:"wild_r2"`
	AgR2         float64 `json:"ag_r2"`
	WildStronger bool    `json:"wild_stronger"`
}

// Sensitivity pairs the fits of each metric across system types. Metrics
// fitted in only one system type are omitted.
func Sensitivity(fits []MetricFit) []SensitivityRow {
	bySystem := map[string]map[string]float64{}
	for _, f := range fits {
		if bySystem[f.Metric] == nil {
			bySystem[f.Metric] = map[string]float64{}
		}
		bySystem[f.Metric][f.System] = f.LinearR2
	}
	var out []SensitivityRow
	for _, metric := range ResponseMetrics {
		r2, ok := bySystem[metric]
		if !ok {
			continue
		}
		wild, okW := r2[dataset.SystemWild]
		ag, okA := r2[dataset.SystemAgricultural]
		if !okW || !okA {
			continue
		}
		out = append(out, SensitivityRow{Metric: metric, WildR2: wild, AgR2: ag, WildStronger: wild > ag})
	}
	return out
}

// MismatchRow is the anomaly × historical interaction in one system type.
type MismatchRow struct {
	System     string  `json:"system_type"`
	Anomaly    string  `json:"anomaly"`
	Historical string  `json:"historical"`
	N          int     `json:"n"`
	Coef       float64 `json:"coef"`
	P          float64 `json:"p"`
	R2         float64 `json:"r2"`
}

// Mismatch fits incidence ~ anomaly + historical + anomaly×historical on the
// rows of system.
func Mismatch(f *frame.Frame, system, anomaly, historical string) (MismatchRow, error) {
	rows, err := dataset.BySystem(f, system)
	if err != nil {
		return MismatchRow{}, err
	}
	y, err := rows.Float(dataset.ColIncidence)
	if err != nil {
		return MismatchRow{}, err
	}
	a, err := rows.Float(anomaly)
	if err != nil {
		return MismatchRow{}, err
	}
	h, err := rows.Float(historical)
	if err != nil {
		return MismatchRow{}, err
	}
	ah := make([]float64, len(a))
	for i := range a {
		ah[i] = a[i] * h[i]
	}

	var d design
	d.add(anomaly, a)
	d.add(historical, h)
	d.add(anomaly+":"+historical, ah)
	m, n, err := fitOLS(d, y)
	if err != nil {
		return MismatchRow{}, errors.Wrapf(err, "%s x %s", anomaly, historical)
	}
	norm, _ := dataset.NormalizeSystem(system)
	return MismatchRow{
		System:     norm,
		Anomaly:    anomaly,
		Historical: historical,
		N:          n,
		Coef:       m.GetWeights()[2],
		P:          m.PValues[3],
		R2:         m.R2,
	}, nil
}

// MismatchTable runs Mismatch for every system type and pair present in f.
func MismatchTable(f *frame.Frame) ([]MismatchRow, error) {
	var out []MismatchRow
	for _, pair := range MismatchPairs {
		if !f.Has(pair[0]) || !f.Has(pair[1]) {
			continue
		}
		for _, system := range dataset.Systems {
			row, err := Mismatch(f, system, pair[0], pair[1])
			if skippable(err) {
				logger().Warn("Mismatch fit skipped", log.SystemKey, system, "anomaly", pair[0], log.ErrorKey, err.Error())
				continue
			}
			if err != nil {
				return nil, err
			}
			out = append(out, row)
		}
	}
	return out, nil
}

// InteractionRow is the slope difference of one factor level against the
// baseline level.
type InteractionRow struct {
	Level string  `json:"level"`
	Coef  float64 `json:"coef"`
	P     float64 `json:"p"`
}

// FactorTest is a numeric × factor interaction model.
type FactorTest struct {
	Numeric  string  `json:"numeric"`
	Factor   string  `json:"factor"`
	Absolute bool    `json:"absolute"`
	Baseline string  `json:"baseline"`
	N        int     `json:"n"`
	R2       float64 `json:"r2"`
	// Terms is the full coefficient table, intercept first.
	Terms        []linear.Coefficient `json:"terms"`
	Interactions []InteractionRow     `json:"interactions"`
}

// FactorInteraction fits incidence ~ x × C(factor) over all rows, with x the
// numeric column or its absolute value. The alphabetically first level is
// the baseline; each other level gets a main effect and a slope difference.
func FactorInteraction(f *frame.Frame, numeric, factor string, absolute bool) (*FactorTest, error) {
	y, err := f.Float(dataset.ColIncidence)
	if err != nil {
		return nil, err
	}
	raw, err := f.Float(numeric)
	if err != nil {
		return nil, err
	}
	groups, err := f.Text(factor)
	if err != nil {
		return nil, err
	}
	lv := levels(groups)
	if len(lv) < 2 {
		return nil, errors.NewValidationError(factor, "needs at least two levels", len(lv))
	}

	name := numeric
	x := make([]float64, len(raw))
	for i, v := range raw {
		x[i] = v
		if absolute {
			x[i] = math.Abs(v)
		}
		if groups[i] == "" {
			x[i] = math.NaN()
		}
	}
	if absolute {
		name = "abs(" + numeric + ")"
	}

	var d design
	d.add(name, x)
	for _, level := range lv[1:] {
		dummy := make([]float64, len(x))
		for i := range groups {
			if groups[i] == level {
				dummy[i] = 1
			}
		}
		d.add(factor+"["+level+"]", dummy)
	}
	for _, level := range lv[1:] {
		inter := make([]float64, len(x))
		for i := range groups {
			if groups[i] == level {
				inter[i] = x[i]
			}
		}
		d.add(name+":"+factor+"["+level+"]", inter)
	}

	m, n, err := fitOLS(d, y)
	if err != nil {
		return nil, errors.Wrapf(err, "%s x %s", name, factor)
	}
	terms := m.Coefficients(d.names)
	k := len(lv) - 1
	inter := make([]InteractionRow, k)
	for i := 0; i < k; i++ {
		c := terms[2+k+i]
		inter[i] = InteractionRow{Level: lv[i+1], Coef: c.Estimate, P: c.P}
	}
	return &FactorTest{
		Numeric:      numeric,
		Factor:       factor,
		Absolute:     absolute,
		Baseline:     lv[0],
		N:            n,
		R2:           m.R2,
		Terms:        terms,
		Interactions: inter,
	}, nil
}

// Report gathers every hypothesis table.
type Report struct {
	// H1: single-metric responses per system type.
	Response []MetricFit `json:"response"`
	// H2: wild versus agricultural sensitivity.
	Sensitivity []SensitivityRow `json:"sensitivity"`
	// H3: anomaly × historical mismatch.
	Mismatch []MismatchRow `json:"mismatch"`
	// H4: temperature anomaly × pathogen group. Nil without the column.
	Pathogen *FactorTest `json:"pathogen,omitempty"`
	// H5: |rain anomaly| × transmission mode. Nil without the column.
	Transmission *FactorTest `json:"transmission,omitempty"`
}

// Hypotheses computes the report for a prepared table.
func Hypotheses(f *frame.Frame) (*Report, error) {
	var r Report
	var err error
	if r.Response, err = ResponseTable(f); err != nil {
		return nil, errors.Wrap(err, "H1")
	}
	r.Sensitivity = Sensitivity(r.Response)
	if r.Mismatch, err = MismatchTable(f); err != nil {
		return nil, errors.Wrap(err, "H3")
	}

	factors := []struct {
		dst      **FactorTest
		numeric  string
		factor   string
		absolute bool
	}{
		{&r.Pathogen, dataset.ColTempAnomaly, dataset.ColPathogenGroup, false},
		{&r.Transmission, dataset.ColRainAnomaly, dataset.ColTransmissionMode, true},
	}
	for _, ft := range factors {
		if !f.Has(ft.numeric) || !f.Has(ft.factor) {
			continue
		}
		t, err := FactorInteraction(f, ft.numeric, ft.factor, ft.absolute)
		if skippable(err) || errors.Is(err, errors.ErrInvalidParameter) {
			logger().Warn("Interaction fit skipped", "factor", ft.factor, log.ErrorKey, err.Error())
			continue
		}
		if err != nil {
			return nil, err
		}
		*ft.dst = t
	}
	return &r, nil
}

func logger() log.Logger { return log.GetLoggerWithName("analysis") }
