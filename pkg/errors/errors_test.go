package errors_test

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/banerjixplores/climacrop/pkg/errors"
)

func TestNotFittedErrorWrapping(t *testing.T) {
	original := cerrors.NewNotFittedError("RidgeCV", "Predict")
	wrapped := fmt.Errorf("pipeline step failed: %w", original)

	assert.True(t, errors.Is(wrapped, original))
	assert.True(t, errors.Is(wrapped, cerrors.ErrNotFitted))

	var nf *cerrors.NotFittedError
	require.True(t, errors.As(wrapped, &nf))
	assert.Equal(t, "RidgeCV", nf.ModelName)
	assert.Equal(t, "Predict", nf.Method)
}

func TestDimensionErrorMatchesSentinel(t *testing.T) {
	err := cerrors.NewDimensionError("StandardScaler.Transform", 5, 3, 1)

	assert.True(t, errors.Is(err, cerrors.ErrDimensionMismatch))
	assert.Contains(t, err.Error(), "expected 5, got 3")
	assert.Contains(t, err.Error(), "columns")
}

func TestModelErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("standard error")
	err := cerrors.NewModelError("GridSearchCV.Fit", "candidate failed", cause)
	wrapped := fmt.Errorf("tuning: %w", err)

	assert.True(t, errors.Is(wrapped, cause))

	var me *cerrors.ModelError
	require.True(t, errors.As(wrapped, &me))
	assert.Equal(t, cause, me.Unwrap())
}

func TestSentinelThroughModelError(t *testing.T) {
	err := cerrors.NewModelError("SimpleImputer.Fit", "empty data", cerrors.ErrEmptyData)
	wrapped := fmt.Errorf("preprocessing failed: %w", err)

	assert.True(t, errors.Is(wrapped, cerrors.ErrEmptyData))
	assert.False(t, errors.Is(wrapped, cerrors.ErrSingularMatrix))
}

func TestValidationErrorIsInvalidParameter(t *testing.T) {
	err := cerrors.NewValidationError("n_knots", "must be at least 2", 1)

	assert.True(t, errors.Is(err, cerrors.ErrInvalidParameter))
	assert.Equal(t, "climacrop: invalid n_knots (1): must be at least 2", err.Error())
}

func TestCheckScalar(t *testing.T) {
	assert.NoError(t, cerrors.CheckScalar("coef", 1.5, 3))
	assert.Error(t, cerrors.CheckScalar("coef", math.NaN(), 3))
	assert.Error(t, cerrors.CheckScalar("coef", math.Inf(-1), 3))
}

func TestWarnUsesHandler(t *testing.T) {
	var got []error
	cerrors.SetWarningHandler(func(err error) { got = append(got, err) })
	defer cerrors.SetWarningHandler(nil)

	cerrors.Warn(cerrors.NewConvergenceWarning("SVR", 1000, "maximum number of passes reached"))
	cerrors.Warn(nil)

	require.Len(t, got, 1)
	assert.Contains(t, got[0].Error(), "SVR did not converge after 1000 iterations")
}

func TestRecoverConvertsPanic(t *testing.T) {
	run := func() (err error) {
		defer cerrors.Recover(&err, "SplineTransformer.Transform")
		var rows []int
		_ = rows[3]
		return nil
	}

	err := run()
	require.Error(t, err)
	assert.True(t, errors.Is(err, cerrors.ErrPanic))
	assert.Contains(t, err.Error(), "SplineTransformer.Transform")
}

func Example() {
	err := cerrors.NewModelError("StackingRegressor.Fit", "base estimator failed", cerrors.ErrSingularMatrix)
	opErr := fmt.Errorf("agricultural tuning: %w", err)

	fmt.Println(opErr)
	fmt.Println(errors.Is(opErr, cerrors.ErrSingularMatrix))

	// Output: agricultural tuning: climacrop: StackingRegressor.Fit: base estimator failed: singular matrix
	// true
}

func Example_dimensionError() {
	dimErr := cerrors.NewDimensionError("ColumnTransformer.Transform", 12, 9, 1)
	wrapped := fmt.Errorf("preprocessing failed: %w", dimErr)

	var de *cerrors.DimensionError
	if errors.As(wrapped, &de) {
		fmt.Printf("expected %d, got %d\n", de.Expected, de.Got)
	}

	// Output: expected 12, got 9
}
