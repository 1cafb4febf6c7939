// Package analysis computes the statistics behind the hypothesis and
// exploratory pages: least squares fits with coefficient p-values, factor
// interactions, correlations and per-zone summaries.
//
// Every fit uses complete cases only: a row missing any model column is
// dropped from that fit alone.
package analysis

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/banerjixplores/climacrop/core/frame"
	"github.com/banerjixplores/climacrop/linear"
	"github.com/banerjixplores/climacrop/pkg/errors"
)

// design is a set of named regressors built column by column.
type design struct {
	names []string
	cols  [][]float64
}

func (d *design) add(name string, col []float64) {
	d.names = append(d.names, name)
	d.cols = append(d.cols, col)
}

// fitOLS regresses y on d over the rows where y and every column are finite.
func fitOLS(d design, y []float64) (*linear.OLS, int, error) {
	var rows []int
	for i := range y {
		ok := !math.IsNaN(y[i]) && !math.IsInf(y[i], 0)
		for _, c := range d.cols {
			if !ok {
				break
			}
			ok = !math.IsNaN(c[i]) && !math.IsInf(c[i], 0)
		}
		if ok {
			rows = append(rows, i)
		}
	}
	if len(rows) == 0 {
		return nil, 0, errors.NewModelError("analysis.fit", "no complete rows", errors.ErrEmptyData)
	}

	X := mat.NewDense(len(rows), len(d.cols), nil)
	Y := mat.NewDense(len(rows), 1, nil)
	for r, i := range rows {
		for j, c := range d.cols {
			X.Set(r, j, c[i])
		}
		Y.Set(r, 0, y[i])
	}
	m := linear.NewOLS()
	if err := m.Fit(X, Y); err != nil {
		return nil, len(rows), err
	}
	return m, len(rows), nil
}

// skippable reports fit failures caused by the data rather than the code,
// which drop a table row instead of failing the page.
func skippable(err error) bool {
	return errors.Is(err, errors.ErrSingularMatrix) || errors.Is(err, errors.ErrEmptyData)
}

// levels returns the sorted non-empty values of a categorical column.
func levels(values []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, v := range values {
		if v != "" && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

// floatOrNaN returns the column, or an all-NaN column when f lacks it.
func floatOrNaN(f *frame.Frame, name string) []float64 {
	if v, err := f.Float(name); err == nil {
		return v
	}
	out := make([]float64, f.NRows())
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
