// Package impute fills missing values before scaling and encoding.
package impute

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/banerjixplores/climacrop/core/model"
	"github.com/banerjixplores/climacrop/pkg/errors"
)

// Imputation strategies.
const (
	StrategyMedian   = "median"
	StrategyMean     = "mean"
	StrategyConstant = "constant"
)

// MissingFill is the default fill value for categorical columns.
const MissingFill = "Missing"

// SimpleImputer replaces NaN in numeric columns with a per-column statistic.
type SimpleImputer struct {
	state *model.StateManager

	Strategy  string
	FillValue float64

	// Statistics holds the learned fill value of each column.
	Statistics []float64
}

// NewSimpleImputer creates an imputer with the given strategy.
func NewSimpleImputer(strategy string) *SimpleImputer {
	return &SimpleImputer{state: model.NewStateManager(), Strategy: strategy}
}

// Fit learns the fill value of every column, ignoring NaN. A column with no
// observed values is filled with 0 and reported through errors.Warn.
func (s *SimpleImputer) Fit(X mat.Matrix) (err error) {
	defer errors.Recover(&err, "SimpleImputer.Fit")
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("SimpleImputer.Fit", "empty data", errors.ErrEmptyData)
	}

	s.Statistics = make([]float64, c)
	for j := 0; j < c; j++ {
		vals := make([]float64, 0, r)
		for i := 0; i < r; i++ {
			if v := X.At(i, j); !math.IsNaN(v) {
				vals = append(vals, v)
			}
		}
		switch s.Strategy {
		case StrategyConstant:
			s.Statistics[j] = s.FillValue
		case StrategyMean, StrategyMedian:
			if len(vals) == 0 {
				errors.Warn(errors.Newf("SimpleImputer: column %d has no observed values, filling with 0", j))
				continue
			}
			if s.Strategy == StrategyMean {
				s.Statistics[j] = stat.Mean(vals, nil)
			} else {
				s.Statistics[j] = median(vals)
			}
		default:
			return errors.NewValidationError("strategy", "must be median, mean or constant", s.Strategy)
		}
	}

	s.state.SetDimensions(c, r)
	s.state.SetFitted()
	return nil
}

// median matches numpy: the mean of the two middle values for even lengths.
func median(vals []float64) float64 {
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// Transform replaces NaN with the learned statistics.
func (s *SimpleImputer) Transform(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "SimpleImputer.Transform")
	if !s.state.IsFitted() {
		return nil, errors.NewNotFittedError("SimpleImputer", "Transform")
	}
	r, c := X.Dims()
	if c != len(s.Statistics) {
		return nil, errors.NewDimensionError("SimpleImputer.Transform", len(s.Statistics), c, 1)
	}
	out := mat.DenseCopyOf(X)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if math.IsNaN(out.At(i, j)) {
				out.Set(i, j, s.Statistics[j])
			}
		}
	}
	return out, nil
}

// GetParams returns strategy and fill_value.
func (s *SimpleImputer) GetParams() map[string]interface{} {
	return map[string]interface{}{"strategy": s.Strategy, "fill_value": s.FillValue}
}

// SetParams updates strategy or fill_value.
func (s *SimpleImputer) SetParams(params map[string]interface{}) error {
	for k, v := range params {
		switch k {
		case "strategy":
			str, err := model.ParamString(k, v)
			if err != nil {
				return err
			}
			s.Strategy = str
		case "fill_value":
			f, err := model.ParamFloat(k, v)
			if err != nil {
				return err
			}
			s.FillValue = f
		default:
			return model.UnknownParam("SimpleImputer", k)
		}
	}
	s.state.Reset()
	return nil
}

// Clone returns an unfitted copy with the same parameters.
func (s *SimpleImputer) Clone() model.Estimator {
	c := NewSimpleImputer(s.Strategy)
	c.FillValue = s.FillValue
	return c
}

func (s *SimpleImputer) String() string {
	return fmt.Sprintf("SimpleImputer(strategy=%s)", s.Strategy)
}

// CategoricalImputer replaces empty strings with a constant.
type CategoricalImputer struct {
	FillValue string
}

// NewCategoricalImputer returns an imputer filling with fill.
func NewCategoricalImputer(fill string) *CategoricalImputer {
	return &CategoricalImputer{FillValue: fill}
}

// Transform returns a copy of rows with "" replaced by FillValue. It is
// stateless, so there is no Fit.
func (c *CategoricalImputer) Transform(rows [][]string) [][]string {
	out := make([][]string, len(rows))
	for i, row := range rows {
		cp := make([]string, len(row))
		for j, v := range row {
			if v == "" {
				v = c.FillValue
			}
			cp[j] = v
		}
		out[i] = cp
	}
	return out
}
