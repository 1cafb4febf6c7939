package preprocessing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/banerjixplores/climacrop/core/model"
	cerrors "github.com/banerjixplores/climacrop/pkg/errors"
)

// SplineTransformer expands every input feature into a B-spline basis.
//
// Knots are spaced uniformly over each feature's training range and extended
// by Degree knots on both sides with the same spacing, so every training
// value is covered by Degree+1 basis functions. Values outside the training
// range are clamped to it (constant extrapolation).
//
// Each feature produces NKnots+Degree-1 basis columns, or NKnots+Degree-2
// when IncludeBias is false (the last basis is dropped, since the full set
// sums to one and would duplicate an intercept).
type SplineTransformer struct {
	state *model.StateManager

	NKnots      int
	Degree      int
	IncludeBias bool

	// Knots holds the extended knot vector of each feature.
	Knots [][]float64
	// Min and Max are the training range of each feature.
	Min []float64
	Max []float64
}

// NewSplineTransformer returns a transformer with include_bias=false.
func NewSplineTransformer(nKnots, degree int) *SplineTransformer {
	return &SplineTransformer{
		state:       model.NewStateManager(),
		NKnots:      nKnots,
		Degree:      degree,
		IncludeBias: false,
	}
}

func (s *SplineTransformer) validate() error {
	if s.NKnots < 2 {
		return cerrors.NewValidationError("n_knots", "must be at least 2", s.NKnots)
	}
	if s.Degree < 1 {
		return cerrors.NewValidationError("degree", "must be at least 1", s.Degree)
	}
	return nil
}

// NSplines returns the number of basis functions per feature before the bias
// column is dropped.
func (s *SplineTransformer) NSplines() int {
	return s.NKnots + s.Degree - 1
}

// OutputWidth returns the number of output columns per input feature.
func (s *SplineTransformer) OutputWidth() int {
	if s.IncludeBias {
		return s.NSplines()
	}
	return s.NSplines() - 1
}

// Fit learns the knot vector of every column of X.
func (s *SplineTransformer) Fit(X mat.Matrix) (err error) {
	defer cerrors.Recover(&err, "SplineTransformer.Fit")
	if err := s.validate(); err != nil {
		return err
	}
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return cerrors.NewModelError("SplineTransformer.Fit", "empty data", cerrors.ErrEmptyData)
	}

	s.Knots = make([][]float64, c)
	s.Min = make([]float64, c)
	s.Max = make([]float64, c)

	for j := 0; j < c; j++ {
		col := make([]float64, 0, r)
		for i := 0; i < r; i++ {
			if v := X.At(i, j); !math.IsNaN(v) {
				col = append(col, v)
			}
		}
		if len(col) == 0 {
			return cerrors.NewModelError("SplineTransformer.Fit",
				fmt.Sprintf("feature %d has no finite values", j), cerrors.ErrEmptyData)
		}
		lo, hi := floats.Min(col), floats.Max(col)
		s.Min[j], s.Max[j] = lo, hi
		s.Knots[j] = uniformKnots(lo, hi, s.NKnots, s.Degree)
	}

	s.state.SetDimensions(c, r)
	s.state.SetFitted()
	return nil
}

// uniformKnots builds nKnots evenly spaced knots on [lo, hi] plus degree
// extra knots on each side. A constant feature gets unit spacing centred on it.
func uniformKnots(lo, hi float64, nKnots, degree int) []float64 {
	base := make([]float64, nKnots)
	if hi > lo {
		floats.Span(base, lo, hi)
	} else {
		half := float64(nKnots-1) / 2
		floats.Span(base, lo-half, lo+half)
	}
	step := base[1] - base[0]

	knots := make([]float64, 0, nKnots+2*degree)
	for k := degree; k >= 1; k-- {
		knots = append(knots, base[0]-float64(k)*step)
	}
	knots = append(knots, base...)
	for k := 1; k <= degree; k++ {
		knots = append(knots, base[nKnots-1]+float64(k)*step)
	}
	return knots
}

// basis evaluates all B-splines of the given degree on knot vector t at x
// with the Cox-de Boor recursion. It returns len(t)-degree-1 values.
func basis(t []float64, degree int, x float64) []float64 {
	m := len(t) - 1
	n := make([]float64, m)
	for i := 0; i < m; i++ {
		if t[i] <= x && x < t[i+1] {
			n[i] = 1
		}
	}
	for k := 1; k <= degree; k++ {
		for i := 0; i < m-k; i++ {
			var left, right float64
			if d := t[i+k] - t[i]; d != 0 {
				left = (x - t[i]) / d * n[i]
			}
			if d := t[i+k+1] - t[i+1]; d != 0 {
				right = (t[i+k+1] - x) / d * n[i+1]
			}
			n[i] = left + right
		}
	}
	return n[:len(t)-degree-1]
}

// Transform evaluates the basis for every value of X.
func (s *SplineTransformer) Transform(X mat.Matrix) (_ mat.Matrix, err error) {
	defer cerrors.Recover(&err, "SplineTransformer.Transform")
	if !s.state.IsFitted() {
		return nil, cerrors.NewNotFittedError("SplineTransformer", "Transform")
	}
	r, c := X.Dims()
	if c != len(s.Knots) {
		return nil, cerrors.NewDimensionError("SplineTransformer.Transform", len(s.Knots), c, 1)
	}

	width := s.OutputWidth()
	out := mat.NewDense(r, c*width, nil)
	for j := 0; j < c; j++ {
		for i := 0; i < r; i++ {
			x := X.At(i, j)
			if math.IsNaN(x) {
				continue
			}
			// 訓練範囲外は端点の値で外挿（constant）
			x = math.Max(s.Min[j], math.Min(s.Max[j], x))
			b := basis(s.Knots[j], s.Degree, x)
			for k := 0; k < width; k++ {
				out.Set(i, j*width+k, b[k])
			}
		}
	}
	return out, nil
}

// FitTransform fits and transforms X.
func (s *SplineTransformer) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// GetFeatureNamesOut names the outputs "<feature>_sp_<k>".
func (s *SplineTransformer) GetFeatureNamesOut(inputFeatures []string) []string {
	n := s.state.NFeatures()
	if len(inputFeatures) > n {
		n = len(inputFeatures)
	}
	width := s.OutputWidth()
	out := make([]string, 0, n*width)
	for j := 0; j < n; j++ {
		name := fmt.Sprintf("x%d", j)
		if j < len(inputFeatures) {
			name = inputFeatures[j]
		}
		for k := 0; k < width; k++ {
			out = append(out, fmt.Sprintf("%s_sp_%d", name, k))
		}
	}
	return out
}

// GetParams returns n_knots, degree and include_bias.
func (s *SplineTransformer) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_knots":      s.NKnots,
		"degree":       s.Degree,
		"include_bias": s.IncludeBias,
	}
}

// SetParams updates n_knots, degree or include_bias and resets the fit.
func (s *SplineTransformer) SetParams(params map[string]interface{}) error {
	for k, v := range params {
		switch k {
		case "n_knots":
			n, err := model.ParamInt(k, v)
			if err != nil {
				return err
			}
			s.NKnots = n
		case "degree":
			d, err := model.ParamInt(k, v)
			if err != nil {
				return err
			}
			s.Degree = d
		case "include_bias":
			b, ok := v.(bool)
			if !ok {
				return cerrors.NewValidationError(k, "expected a bool", v)
			}
			s.IncludeBias = b
		default:
			return model.UnknownParam("SplineTransformer", k)
		}
	}
	s.state.Reset()
	return s.validate()
}

// Clone returns an unfitted copy with the same parameters.
func (s *SplineTransformer) Clone() model.Estimator {
	c := NewSplineTransformer(s.NKnots, s.Degree)
	c.IncludeBias = s.IncludeBias
	return c
}
