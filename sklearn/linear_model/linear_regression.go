// Package linear_model implements least-squares and ridge regression.
//
// RidgeCV is the final estimator of the spline pipeline and of the stacking
// ensemble. LinearRegression is its unpenalized counterpart.
package linear_model

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/banerjixplores/climacrop/core/model"
	"github.com/banerjixplores/climacrop/pkg/errors"
)

// LinearRegression is a linear regression model using ordinary least squares
type LinearRegression struct {
	state *model.StateManager // State management (composition instead of embedding)

	// Hyperparameters
	fitIntercept bool // Whether to learn the intercept

	// Learned parameters
	coef_      []float64 // Weight coefficients
	intercept_ float64   // Intercept
	rank_      int       // Rank of the design matrix including the intercept column
}

// LinearRegressionOption is a configuration option
type LinearRegressionOption func(*LinearRegression)

// WithLRFitIntercept sets whether to learn intercept (for LinearRegression)
func WithLRFitIntercept(fit bool) LinearRegressionOption {
	return func(lr *LinearRegression) {
		lr.fitIntercept = fit
	}
}

// NewLinearRegression creates a new LinearRegression model
func NewLinearRegression(options ...LinearRegressionOption) *LinearRegression {
	lr := &LinearRegression{
		state:        model.NewStateManager(),
		fitIntercept: true,
	}
	for _, opt := range options {
		opt(lr)
	}
	return lr
}

// DesignMatrix returns X with a leading column of ones when the model fits
// an intercept.
func (lr *LinearRegression) DesignMatrix(X mat.Matrix) *mat.Dense {
	rows, cols := X.Dims()
	if !lr.fitIntercept {
		return mat.DenseCopyOf(X)
	}
	out := mat.NewDense(rows, cols+1, nil)
	for i := 0; i < rows; i++ {
		out.Set(i, 0, 1.0)
		for j := 0; j < cols; j++ {
			out.Set(i, j+1, X.At(i, j))
		}
	}
	return out
}

// Fit trains the model with training data
func (lr *LinearRegression) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "LinearRegression.Fit")
	rows, cols := X.Dims()
	yRows, yCols := y.Dims()

	if rows != yRows {
		return errors.NewDimensionError("LinearRegression.Fit", rows, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("LinearRegression.Fit", 1, yCols, 1)
	}

	XFit := lr.DesignMatrix(X)
	_, p := XFit.Dims()
	if rows < p {
		return errors.NewModelError("LinearRegression.Fit",
			fmt.Sprintf("%d samples cannot determine %d coefficients", rows, p), errors.ErrSingularMatrix)
	}

	// Use numerically stable QR decomposition
	var qr mat.QR
	qr.Factorize(XFit)

	coefficients := mat.NewDense(p, 1, nil)
	if err := qr.SolveTo(coefficients, false, y); err != nil {
		return errors.NewModelError("LinearRegression.Fit", "failed to solve linear system", errors.ErrSingularMatrix)
	}
	lr.rank_ = p

	offset := 0
	lr.intercept_ = 0
	if lr.fitIntercept {
		lr.intercept_ = coefficients.At(0, 0)
		offset = 1
	}
	lr.coef_ = make([]float64, cols)
	for i := 0; i < cols; i++ {
		lr.coef_[i] = coefficients.At(i+offset, 0)
	}

	lr.state.SetDimensions(cols, rows)
	lr.state.SetFitted()
	return nil
}

// Predict performs predictions on input data
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !lr.state.IsFitted() {
		return nil, errors.NewNotFittedError("LinearRegression", "Predict")
	}
	return linearPredict("LinearRegression.Predict", X, lr.coef_, lr.intercept_)
}

// Coef returns the learned weight coefficients
func (lr *LinearRegression) Coef() []float64 {
	return append([]float64(nil), lr.coef_...)
}

// Intercept returns the learned intercept
func (lr *LinearRegression) Intercept() float64 {
	return lr.intercept_
}

// Rank returns the number of fitted parameters, intercept included.
func (lr *LinearRegression) Rank() int { return lr.rank_ }

// IsFitted returns whether the model has been fitted
func (lr *LinearRegression) IsFitted() bool {
	return lr.state.IsFitted()
}

// GetParams returns the model's hyperparameters
func (lr *LinearRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{"fit_intercept": lr.fitIntercept}
}

// SetParams sets the model's hyperparameters
func (lr *LinearRegression) SetParams(params map[string]interface{}) error {
	for k, v := range params {
		if k != "fit_intercept" {
			return model.UnknownParam("LinearRegression", k)
		}
		b, ok := v.(bool)
		if !ok {
			return errors.NewValidationError(k, "expected a bool", v)
		}
		lr.fitIntercept = b
	}
	lr.state.Reset()
	return nil
}

// Clone creates a new unfitted instance with the same hyperparameters
func (lr *LinearRegression) Clone() model.Estimator {
	return NewLinearRegression(WithLRFitIntercept(lr.fitIntercept))
}

// String returns the string representation of the model
func (lr *LinearRegression) String() string {
	if !lr.state.IsFitted() {
		return fmt.Sprintf("LinearRegression(fit_intercept=%t)", lr.fitIntercept)
	}
	return fmt.Sprintf("LinearRegression(fit_intercept=%t, n_features=%d, fitted=true)",
		lr.fitIntercept, lr.state.NFeatures())
}

func linearPredict(op string, X mat.Matrix, coef []float64, intercept float64) (mat.Matrix, error) {
	rows, cols := X.Dims()
	if cols != len(coef) {
		return nil, errors.NewDimensionError(op, len(coef), cols, 1)
	}
	predictions := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		pred := intercept
		for j := 0; j < cols; j++ {
			pred += X.At(i, j) * coef[j]
		}
		predictions.Set(i, 0, pred)
	}
	return predictions, nil
}
