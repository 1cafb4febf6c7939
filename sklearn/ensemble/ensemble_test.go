package ensemble

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/banerjixplores/climacrop/core/frame"
	"github.com/banerjixplores/climacrop/core/model"
	"github.com/banerjixplores/climacrop/metrics"
	"github.com/banerjixplores/climacrop/pkg/errors"
	"github.com/banerjixplores/climacrop/preprocessing"
	"github.com/banerjixplores/climacrop/sklearn/compose"
	"github.com/banerjixplores/climacrop/sklearn/linear_model"
	"github.com/banerjixplores/climacrop/sklearn/pipeline"
)

// signalData returns y = 3·x0 + x0² with x1 pure noise.
func signalData(n int, seed int64) (*mat.Dense, *mat.Dense) {
	rng := rand.New(rand.NewSource(seed))
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		x0 := rng.Float64()*4 - 2
		X.Set(i, 0, x0)
		X.Set(i, 1, rng.NormFloat64())
		y.Set(i, 0, 3*x0+x0*x0)
	}
	return X, y
}

func trainR2(t *testing.T, r model.Regressor, X, y mat.Matrix) float64 {
	t.Helper()
	require.NoError(t, r.Fit(X, y))
	pred, err := r.Predict(X)
	require.NoError(t, err)
	score, err := metrics.R2ScoreMatrix(y, pred)
	require.NoError(t, err)
	return score
}

func TestRandomForestFitsSignal(t *testing.T) {
	X, y := signalData(200, 1)
	rf := NewRandomForestRegressor(30, 42)
	rf.NJobs = 2

	assert.Greater(t, trainR2(t, rf, X, y), 0.95)
	assert.Len(t, rf.Estimators_, 30)

	fi, err := rf.FeatureImportances()
	require.NoError(t, err)
	assert.InDelta(t, 1.0, fi[0]+fi[1], 1e-9)
	assert.Greater(t, fi[0], fi[1])
}

func TestRandomForestDeterministic(t *testing.T) {
	X, y := signalData(80, 2)
	a := NewRandomForestRegressor(10, 7)
	a.NJobs = 4
	b := a.Clone().(*RandomForestRegressor)
	b.NJobs = 1
	require.NoError(t, a.Fit(X, y))
	require.NoError(t, b.Fit(X, y))

	pa, err := a.Predict(X)
	require.NoError(t, err)
	pb, err := b.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(pa, pb))
}

func TestRandomForestClone(t *testing.T) {
	rf := NewRandomForestRegressor(12, 3)
	rf.MaxDepth, rf.MinSamplesLeaf, rf.MaxFeatures = 4, 2, 1
	rf.Bootstrap, rf.NJobs = false, 2
	c := rf.Clone().(*RandomForestRegressor)
	assert.Equal(t, rf.GetParams(), c.GetParams())
	assert.False(t, c.state.IsFitted())
}

func TestRandomForestParams(t *testing.T) {
	rf := NewRandomForestRegressor(200, 42)
	require.NoError(t, rf.SetParams(map[string]interface{}{"n_estimators": 5.0, "max_depth": 3}))
	assert.Equal(t, 5, rf.NEstimators)
	assert.Equal(t, 3, rf.MaxDepth)
	assert.True(t, errors.Is(rf.SetParams(map[string]interface{}{"criterion": "mse"}), errors.ErrInvalidParameter))

	_, err := rf.Predict(mat.NewDense(1, 2, nil))
	assert.True(t, errors.Is(err, errors.ErrNotFitted))
}

func TestGradientBoostingFitsSignal(t *testing.T) {
	X, y := signalData(300, 3)
	gb := NewGradientBoostingRegressor(42)
	gb.MaxDepth = 3

	assert.Greater(t, trainR2(t, gb, X, y), 0.99)
	assert.Len(t, gb.Trees_, 100)

	fi, err := gb.FeatureImportances()
	require.NoError(t, err)
	assert.Greater(t, fi[0], 0.9)
}

func TestGradientBoostingSingleRoundShrinks(t *testing.T) {
	// One stump on a two-level target: leaves move lr·(−G/(H+λ)) from the mean.
	X := mat.NewDense(4, 1, []float64{0, 0, 1, 1})
	y := mat.NewDense(4, 1, []float64{0, 0, 4, 4})
	gb := NewGradientBoostingRegressor(0)
	gb.NEstimators = 1
	gb.MaxDepth = 1
	gb.LearningRate = 0.5
	require.NoError(t, gb.Fit(X, y))

	pred, err := gb.Predict(X)
	require.NoError(t, err)
	// mean 2, residual ±2 over two rows: weight = 0.5·(2·2)/(2+1)
	assert.InDelta(t, 2-4.0/6, pred.At(0, 0), 1e-12)
	assert.InDelta(t, 2+4.0/6, pred.At(3, 0), 1e-12)
}

func TestGradientBoostingValidation(t *testing.T) {
	X, y := signalData(10, 4)
	gb := NewGradientBoostingRegressor(42)
	require.NoError(t, gb.SetParams(map[string]interface{}{"learning_rate": 0.0}))
	assert.True(t, errors.Is(gb.Fit(X, y), errors.ErrInvalidParameter))

	gb = NewGradientBoostingRegressor(42)
	X.Set(0, 0, math.NaN())
	assert.Error(t, gb.Fit(X, y))

	require.NoError(t, gb.SetParams(map[string]interface{}{"max_depth": 5, "learning_rate": 0.01}))
	assert.Equal(t, 5, gb.GetParams()["max_depth"])
	assert.Equal(t, 0.01, gb.GetParams()["learning_rate"])
}

func TestGradientBoostingClone(t *testing.T) {
	X, y := signalData(40, 2)
	gb := NewGradientBoostingRegressor(7)
	gb.NEstimators, gb.LearningRate, gb.MaxDepth = 5, 0.3, 2
	gb.Lambda, gb.Gamma, gb.MinChildWeight = 2, 0.5, 3
	gb.Subsample, gb.MaxBin = 0.8, 32
	require.NoError(t, gb.Fit(X, y))

	c := gb.Clone().(*GradientBoostingRegressor)
	assert.False(t, c.IsFitted())
	assert.Equal(t, gb.GetParams(), c.GetParams())
	assert.Empty(t, c.Trees_)
}

func TestQuantileCuts(t *testing.T) {
	vals := []float64{3, 1, 2, 2, 5}
	assert.Equal(t, []float64{1.5, 2.5, 4}, quantileCuts(vals, 256))

	many := make([]float64, 1000)
	for i := range many {
		many[i] = float64(i)
	}
	cuts := quantileCuts(many, 8)
	assert.Len(t, cuts, 7)
	assert.True(t, sort.Float64sAreSorted(cuts))
	for _, v := range []float64{0, 124.5, 125, 999} {
		b := sort.SearchFloat64s(cuts, v)
		if b < len(cuts) {
			assert.LessOrEqual(t, v, cuts[b])
		}
		if b > 0 {
			assert.Greater(t, v, cuts[b-1])
		}
	}

	assert.Empty(t, quantileCuts([]float64{7, 7, 7}, 256))
}

func linearFrame(t *testing.T, n int) (*frame.Frame, *mat.Dense) {
	t.Helper()
	x := make([]float64, n)
	z := make([]float64, n)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		x[i] = float64(i) / 10
		z[i] = math.Sin(float64(i))
		y.Set(i, 0, 2*x[i]+1)
	}
	f, err := frame.New(frame.NewNumeric("x", x), frame.NewNumeric("z", z))
	require.NoError(t, err)
	return f, y
}

func numericPipeline(reg model.Regressor) *pipeline.FramePipeline {
	pre := compose.NewColumnTransformer(
		compose.NumericBlock("num", []string{"x", "z"}, preprocessing.NewStandardScalerDefault()),
	)
	return pipeline.NewFramePipeline(pre, reg)
}

func newStack() *StackingRegressor {
	gb := NewGradientBoostingRegressor(42)
	gb.NEstimators = 20
	return NewStackingRegressor([]NamedEstimator{
		{Name: "xgb", Estimator: numericPipeline(gb)},
		{Name: "r_spl", Estimator: numericPipeline(linear_model.NewRidgeCV(linear_model.DefaultAlphas))},
	}, linear_model.NewRidgeCV(linear_model.DefaultAlphas))
}

func TestStackingFitPredict(t *testing.T) {
	f, y := linearFrame(t, 60)
	s := newStack()

	_, err := s.Predict(f)
	assert.True(t, errors.Is(err, errors.ErrNotFitted))

	require.NoError(t, s.Fit(f, y))
	meta, err := s.Transform(f)
	require.NoError(t, err)
	r, c := meta.Dims()
	assert.Equal(t, 60, r)
	assert.Equal(t, 2, c)

	pred, err := s.Predict(f)
	require.NoError(t, err)
	score, err := metrics.R2ScoreMatrix(y, pred)
	require.NoError(t, err)
	assert.Greater(t, score, 0.99)
}

func TestStackingParamRouting(t *testing.T) {
	s := newStack()
	params := s.GetParams()
	assert.Contains(t, params, "xgb__regressor__learning_rate")
	assert.Contains(t, params, "r_spl__regressor__alphas")
	assert.Contains(t, params, "final_estimator__alphas")

	require.NoError(t, s.SetParams(map[string]interface{}{
		"xgb__regressor__learning_rate": 0.01,
		"xgb__regressor__max_depth":     3,
		"r_spl__regressor__alphas":      []float64{0.001, 0.01, 0.1},
	}))
	gb := s.Estimators[0].Estimator.(*pipeline.FramePipeline).Regressor.(*GradientBoostingRegressor)
	assert.Equal(t, 0.01, gb.LearningRate)
	assert.Equal(t, 3, gb.MaxDepth)

	err := s.SetParams(map[string]interface{}{"svr__regressor__C": 1.0})
	assert.True(t, errors.Is(err, errors.ErrInvalidParameter))

	c := s.Clone().(*StackingRegressor)
	assert.False(t, c.IsFitted())
	assert.Equal(t, 0.01, c.GetParams()["xgb__regressor__learning_rate"])
}
