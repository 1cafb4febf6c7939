package svm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/banerjixplores/climacrop/metrics"
	"github.com/banerjixplores/climacrop/pkg/errors"
)

func sineData(n int) (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(n, 1, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		x := 2 * math.Pi * float64(i) / float64(n-1)
		X.Set(i, 0, x)
		y.Set(i, 0, math.Sin(x))
	}
	return X, y
}

func TestSVRFitsSine(t *testing.T) {
	X, y := sineData(60)
	s := NewSVR(10, 0.1)
	require.NoError(t, s.Fit(X, y))

	pred, err := s.Predict(X)
	require.NoError(t, err)
	r2, err := metrics.R2ScoreMatrix(y, pred)
	require.NoError(t, err)
	assert.Greater(t, r2, 0.9)
	assert.Greater(t, s.NSupport(), 0)
	assert.Less(t, s.NSupport(), 60)
}

func TestSVRConstantTarget(t *testing.T) {
	X, _ := sineData(10)
	y := mat.NewDense(10, 1, nil)
	for i := 0; i < 10; i++ {
		y.Set(i, 0, 5)
	}
	s := NewSVR(1, 0.1)
	require.NoError(t, s.Fit(X, y))
	assert.Equal(t, 0, s.NSupport())
	assert.InDelta(t, 5.0, s.Intercept(), 1e-12)

	pred, err := s.Predict(mat.NewDense(1, 1, []float64{100}))
	require.NoError(t, err)
	assert.InDelta(t, 5.0, pred.At(0, 0), 1e-12)
}

func TestGammaScale(t *testing.T) {
	s := NewSVR(1, 0.1)
	g, err := s.resolveGamma(mat.NewDense(2, 1, []float64{0, 2}))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, g, 1e-12)

	g, err = s.resolveGamma(mat.NewDense(2, 2, []float64{0, 0, 2, 2}))
	require.NoError(t, err)
	assert.InDelta(t, 0.5, g, 1e-12)

	require.NoError(t, s.SetParams(map[string]interface{}{"gamma": 0.25}))
	g, err = s.resolveGamma(mat.NewDense(2, 1, []float64{0, 2}))
	require.NoError(t, err)
	assert.Equal(t, 0.25, g)
}

func TestSVRConvergenceWarning(t *testing.T) {
	var warned []error
	errors.SetWarningHandler(func(w error) { warned = append(warned, w) })
	defer errors.SetWarningHandler(nil)

	X, y := sineData(30)
	s := NewSVR(1, 0.01)
	s.MaxIter = 1
	require.NoError(t, s.Fit(X, y))
	require.Len(t, warned, 1)
	var cw *errors.ConvergenceWarning
	assert.True(t, errors.As(warned[0], &cw))
	assert.Equal(t, "SVR", cw.Algorithm)
}

func TestSVRParamsAndErrors(t *testing.T) {
	s := NewSVR(1, 0.1)
	_, err := s.Predict(mat.NewDense(1, 1, nil))
	assert.True(t, errors.Is(err, errors.ErrNotFitted))

	assert.True(t, errors.Is(s.SetParams(map[string]interface{}{"kernel": "linear"}), errors.ErrInvalidParameter))
	assert.True(t, errors.Is(s.SetParams(map[string]interface{}{"degree": 3}), errors.ErrInvalidParameter))

	require.NoError(t, s.SetParams(map[string]interface{}{"C": 2.0, "epsilon": 0.2}))
	c := s.Clone().(*SVR)
	assert.Equal(t, 2.0, c.C)
	assert.Equal(t, 0.2, c.Epsilon)
	assert.False(t, c.IsFitted())

	s.C = -1
	X, y := sineData(5)
	assert.True(t, errors.Is(s.Fit(X, y), errors.ErrInvalidParameter))
}
