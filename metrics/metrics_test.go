package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/banerjixplores/climacrop/pkg/errors"
)

func TestRegressionMetrics(t *testing.T) {
	yTrue := mat.NewVecDense(4, []float64{3, -0.5, 2, 7})
	yPred := mat.NewVecDense(4, []float64{2.5, 0.0, 2, 8})

	mse, err := MSE(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, 0.375, mse, 1e-12)

	mae, err := MAE(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, mae, 1e-12)

	r2, err := R2Score(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, 0.9486081370449679, r2, 1e-12)
}

func TestR2ScoreConstantTarget(t *testing.T) {
	y := mat.NewVecDense(3, []float64{1, 1, 1})

	r2, err := R2Score(y, y)
	require.NoError(t, err)
	assert.Equal(t, 1.0, r2)

	r2, err = R2Score(y, mat.NewVecDense(3, []float64{1, 2, 1}))
	require.NoError(t, err)
	assert.Equal(t, 0.0, r2)
}

func TestMetricErrors(t *testing.T) {
	_, err := MSE(mat.NewVecDense(2, nil), mat.NewVecDense(3, nil))
	assert.True(t, errors.Is(err, errors.ErrDimensionMismatch))

	_, err = R2ScoreMatrix(mat.NewDense(2, 2, nil), mat.NewDense(2, 2, nil))
	var ve *errors.ValueError
	assert.True(t, errors.As(err, &ve))

	_, err = AccuracyScore(nil, nil)
	assert.Error(t, err)
}

func TestPerClassAccuracyUnseenClass(t *testing.T) {
	acc, seen, err := PerClassAccuracy([]string{"Low"}, []string{"Low"}, []string{"Low", "High"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, acc["Low"])
	assert.True(t, seen["Low"])
	assert.False(t, seen["High"])
}
