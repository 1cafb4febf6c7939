package linear

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	cerrors "github.com/banerjixplores/climacrop/pkg/errors"
)

func TestOLS_Fit(t *testing.T) {
	tests := []struct {
		name    string
		X       *mat.Dense
		y       *mat.Dense
		wantErr error
	}{
		{
			name: "simple linear relationship y = 2x + 1",
			X:    mat.NewDense(5, 1, []float64{1, 2, 3, 4, 5}),
			y:    mat.NewDense(5, 1, []float64{3, 5, 7, 9, 11}),
		},
		{
			name: "multiple features",
			X: mat.NewDense(5, 2, []float64{
				1.0, 2.0,
				2.0, 1.0,
				3.0, 4.0,
				4.0, 3.0,
				5.0, 5.0,
			}),
			y: mat.NewDense(5, 1, []float64{5, 4, 11, 10, 15}),
		},
		{
			name:    "empty data",
			X:       &mat.Dense{},
			y:       &mat.Dense{},
			wantErr: cerrors.ErrEmptyData,
		},
		{
			name:    "mismatched dimensions",
			X:       mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6}),
			y:       mat.NewDense(2, 1, []float64{1, 2}),
			wantErr: cerrors.ErrDimensionMismatch,
		},
		{
			name:    "duplicate columns",
			X:       mat.NewDense(4, 2, []float64{1, 1, 2, 2, 3, 3, 4, 4}),
			y:       mat.NewDense(4, 1, []float64{1, 2, 3, 4}),
			wantErr: cerrors.ErrSingularMatrix,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewOLS()
			err := m.Fit(tt.X, tt.y)
			if tt.wantErr != nil {
				if !cerrors.Is(err, tt.wantErr) {
					t.Errorf("OLS.Fit() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("OLS.Fit() unexpected error: %v", err)
			}
			if !m.IsFitted() {
				t.Error("model should be fitted")
			}
		})
	}
}

func TestOLS_Inference(t *testing.T) {
	X := mat.NewDense(5, 1, []float64{1, 2, 3, 4, 5})
	y := mat.NewDense(5, 1, []float64{1, 2, 1.3, 3.75, 2.25})

	m := NewOLS()
	if err := m.Fit(X, y); err != nil {
		t.Fatal(err)
	}

	want := []Coefficient{
		{Term: InterceptTerm, Estimate: 0.785, StdErr: 1.0115705610583967, T: 0.7760210016181789, P: 0.4942986846956039},
		{Term: "x0", Estimate: 0.425, StdErr: 0.305, T: 1.3934426229508199, P: 0.25777730285388856},
	}
	got := m.Coefficients(nil)
	if len(got) != len(want) {
		t.Fatalf("got %d coefficients, want %d", len(got), len(want))
	}
	const tol = 1e-9
	for i := range want {
		if got[i].Term != want[i].Term {
			t.Errorf("term %d = %s, want %s", i, got[i].Term, want[i].Term)
		}
		pairs := [][2]float64{
			{got[i].Estimate, want[i].Estimate},
			{got[i].StdErr, want[i].StdErr},
			{got[i].T, want[i].T},
			{got[i].P, want[i].P},
		}
		for _, p := range pairs {
			if math.Abs(p[0]-p[1]) > tol {
				t.Errorf("%s: got %v, want %v", want[i].Term, p[0], p[1])
			}
		}
	}

	if m.DFResid != 3 {
		t.Errorf("DFResid = %d, want 3", m.DFResid)
	}
	if math.Abs(m.R2-0.3929192951925171) > tol {
		t.Errorf("R2 = %v", m.R2)
	}
	if math.Abs(m.AdjR2-0.19055906025668945) > tol {
		t.Errorf("AdjR2 = %v", m.AdjR2)
	}
}

func TestOLS_SaturatedFitHasNoInference(t *testing.T) {
	m := NewOLS()
	if err := m.Fit(mat.NewDense(2, 1, []float64{0, 1}), mat.NewDense(2, 1, []float64{1, 3})); err != nil {
		t.Fatal(err)
	}
	if m.DFResid != 0 {
		t.Errorf("DFResid = %d, want 0", m.DFResid)
	}
	for _, p := range m.PValues {
		if !math.IsNaN(p) {
			t.Errorf("p-value %v, want NaN", p)
		}
	}
	if math.Abs(m.GetWeights()[0]-2) > 1e-12 || math.Abs(m.Intercept-1) > 1e-12 {
		t.Errorf("weights %v intercept %v", m.GetWeights(), m.Intercept)
	}
}

func TestOLS_Predict(t *testing.T) {
	m := NewOLS()
	if _, err := m.Predict(mat.NewDense(1, 1, []float64{1})); !cerrors.Is(err, cerrors.ErrNotFitted) {
		t.Errorf("expected not fitted error, got %v", err)
	}
	if m.Coefficients(nil) != nil {
		t.Error("unfitted model has no coefficients")
	}

	X := mat.NewDense(4, 2, []float64{1, 1, 2, 1, 1, 2, 2, 2})
	y := mat.NewDense(4, 1, []float64{3, 4, 5, 6})
	if err := m.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	pred, err := m.Predict(mat.NewDense(1, 2, []float64{3, 3}))
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(pred.At(0, 0)-9) > 1e-9 {
		t.Errorf("prediction = %v, want 9", pred.At(0, 0))
	}
	if _, err := m.Predict(mat.NewDense(1, 3, nil)); !cerrors.Is(err, cerrors.ErrDimensionMismatch) {
		t.Errorf("expected dimension error, got %v", err)
	}
}
