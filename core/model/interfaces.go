package model

import (
	"gonum.org/v1/gonum/mat"

	"github.com/banerjixplores/climacrop/core/frame"
)

// Estimator is the hyperparameter surface shared by every model and transformer.
type Estimator interface {
	// GetParams returns the hyperparameters, nested ones with "step__" prefixes.
	GetParams() map[string]interface{}
	// SetParams updates hyperparameters. Unknown keys are an error.
	SetParams(params map[string]interface{}) error
	// Clone returns an unfitted copy with the same hyperparameters.
	Clone() Estimator
}

// Transformer learns a mapping of numeric matrices.
type Transformer interface {
	Estimator
	Fit(X mat.Matrix) error
	Transform(X mat.Matrix) (mat.Matrix, error)
}

// Regressor predicts a continuous target from a numeric matrix. y is n x 1.
type Regressor interface {
	Estimator
	Fit(X, y mat.Matrix) error
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// FrameTransformer turns a table into a numeric design matrix.
type FrameTransformer interface {
	Estimator
	Fit(f *frame.Frame) error
	Transform(f *frame.Frame) (mat.Matrix, error)
	GetFeatureNamesOut() []string
}

// FrameRegressor predicts a continuous target from a table. y is n x 1.
type FrameRegressor interface {
	Estimator
	Fit(f *frame.Frame, y mat.Matrix) error
	Predict(f *frame.Frame) (mat.Matrix, error)
}

// FeatureImportancer is implemented by tree ensembles.
type FeatureImportancer interface {
	FeatureImportances() ([]float64, error)
}

// Column returns column j of m as a slice.
func Column(m mat.Matrix, j int) []float64 {
	r, _ := m.Dims()
	out := make([]float64, r)
	for i := 0; i < r; i++ {
		out[i] = m.At(i, j)
	}
	return out
}

// Vector returns the first column of m as a slice. Used for n x 1 targets and predictions.
func Vector(m mat.Matrix) []float64 {
	return Column(m, 0)
}

// ColVec wraps a slice as an n x 1 matrix.
func ColVec(v []float64) *mat.Dense {
	return mat.NewDense(len(v), 1, v)
}
