package preprocessing_test

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	cerrors "github.com/banerjixplores/climacrop/pkg/errors"
	"github.com/banerjixplores/climacrop/preprocessing"
)

func TestSplineTransformer_OutputWidth(t *testing.T) {
	tests := []struct {
		nKnots, degree, features, want int
	}{
		{7, 3, 4, 4 * 8},
		{5, 3, 4, 4 * 6},
		{9, 4, 4, 4 * 11},
		{2, 1, 1, 1},
	}
	for _, tt := range tests {
		X := mat.NewDense(10, tt.features, nil)
		for i := 0; i < 10; i++ {
			for j := 0; j < tt.features; j++ {
				X.Set(i, j, float64(i*(j+1)))
			}
		}
		s := preprocessing.NewSplineTransformer(tt.nKnots, tt.degree)
		out, err := s.FitTransform(X)
		if err != nil {
			t.Fatalf("n_knots=%d degree=%d: %v", tt.nKnots, tt.degree, err)
		}
		if _, c := out.Dims(); c != tt.want {
			t.Errorf("n_knots=%d degree=%d: width %d, want %d", tt.nKnots, tt.degree, c, tt.want)
		}
		if got := len(s.GetFeatureNamesOut(nil)); got != tt.want {
			t.Errorf("feature names: %d, want %d", got, tt.want)
		}
	}
}

func TestSplineTransformer_PartitionOfUnity(t *testing.T) {
	X := mat.NewDense(21, 1, nil)
	for i := 0; i < 21; i++ {
		X.Set(i, 0, -3+0.3*float64(i))
	}

	s := preprocessing.NewSplineTransformer(6, 3)
	s.IncludeBias = true
	out, err := s.FitTransform(X)
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}

	r, c := out.Dims()
	for i := 0; i < r; i++ {
		sum := 0.0
		for j := 0; j < c; j++ {
			v := out.At(i, j)
			if v < -epsilon {
				t.Errorf("row %d col %d negative basis %f", i, j, v)
			}
			sum += v
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Errorf("row %d basis sums to %f, want 1", i, sum)
		}
	}
}

func TestSplineTransformer_ConstantExtrapolation(t *testing.T) {
	train := mat.NewDense(5, 1, []float64{0, 1, 2, 3, 4})
	s := preprocessing.NewSplineTransformer(5, 3)
	if err := s.Fit(train); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	edge, _ := s.Transform(mat.NewDense(2, 1, []float64{0, 4}))
	beyond, _ := s.Transform(mat.NewDense(2, 1, []float64{-10, 40}))
	if !mat.EqualApprox(edge, beyond, 1e-12) {
		t.Errorf("values outside the range should match the boundary:\n%v\n%v",
			mat.Formatted(edge), mat.Formatted(beyond))
	}
}

func TestSplineTransformer_ConstantFeature(t *testing.T) {
	s := preprocessing.NewSplineTransformer(5, 3)
	out, err := s.FitTransform(mat.NewDense(3, 1, []float64{2, 2, 2}))
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}
	if _, c := out.Dims(); c != 6 {
		t.Errorf("width %d, want 6", c)
	}
}

func TestSplineTransformer_Params(t *testing.T) {
	s := preprocessing.NewSplineTransformer(7, 3)
	if err := s.SetParams(map[string]interface{}{"n_knots": 9, "degree": 4.0}); err != nil {
		t.Fatalf("SetParams failed: %v", err)
	}
	if s.NKnots != 9 || s.Degree != 4 {
		t.Errorf("got n_knots=%d degree=%d", s.NKnots, s.Degree)
	}
	if err := s.SetParams(map[string]interface{}{"n_knots": 1}); !errors.Is(err, cerrors.ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter, got %v", err)
	}
	if _, err := s.Transform(mat.NewDense(1, 1, []float64{0})); !errors.Is(err, cerrors.ErrNotFitted) {
		t.Errorf("expected ErrNotFitted after SetParams, got %v", err)
	}
}
