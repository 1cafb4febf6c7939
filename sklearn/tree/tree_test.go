package tree

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/banerjixplores/climacrop/pkg/errors"
)

func stepData(n int) (*mat.Dense, *mat.Dense) {
	rng := rand.New(rand.NewSource(7))
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		x0, x1 := rng.Float64()*10, rng.Float64()
		X.Set(i, 0, x0)
		X.Set(i, 1, x1)
		v := 1.0
		if x0 > 5 {
			v = 3.0
		}
		y.Set(i, 0, v)
	}
	return X, y
}

func TestDecisionTreeRegressorLearnsStep(t *testing.T) {
	X, y := stepData(200)
	dt := NewDecisionTreeRegressor()
	require.NoError(t, dt.Fit(X, y))

	pred, err := dt.Predict(mat.NewDense(2, 2, []float64{2, 0.5, 8, 0.5}))
	require.NoError(t, err)
	assert.Equal(t, 1.0, pred.At(0, 0))
	assert.Equal(t, 3.0, pred.At(1, 0))

	// A single split on feature 0 explains everything.
	assert.Equal(t, 3, len(dt.Tree_.Nodes))
	assert.Equal(t, 0, dt.Tree_.Nodes[0].Feature)

	fi, err := dt.FeatureImportances()
	require.NoError(t, err)
	assert.InDelta(t, 1.0, fi[0], 1e-12)
	assert.InDelta(t, 0.0, fi[1], 1e-12)
}

func TestDecisionTreeRegressorLimits(t *testing.T) {
	X := mat.NewDense(8, 1, []float64{1, 2, 3, 4, 5, 6, 7, 8})
	y := mat.NewDense(8, 1, []float64{1, 4, 9, 16, 25, 36, 49, 64})

	stump := NewDecisionTreeRegressor(WithMaxDepth(1))
	require.NoError(t, stump.Fit(X, y))
	assert.Equal(t, 1, stump.Tree_.Depth())
	assert.Equal(t, 2, stump.Tree_.NLeaves())

	leafy := NewDecisionTreeRegressor(WithMinSamplesLeaf(3))
	require.NoError(t, leafy.Fit(X, y))
	for _, n := range leafy.Tree_.Nodes {
		if n.IsLeaf() {
			assert.GreaterOrEqual(t, n.NSamples, 3)
		}
	}
}

func TestDecisionTreeRegressorBootstrapRows(t *testing.T) {
	cols := [][]float64{{0, 1, 2, 3}}
	y := []float64{0, 0, 10, 10}
	dt := NewDecisionTreeRegressor()
	require.NoError(t, dt.FitColumns(cols, y, []int{0, 0, 3, 3, 3}))
	assert.Equal(t, 5, dt.Tree_.Nodes[0].NSamples)
	assert.Equal(t, 10.0, dt.PredictRow(func(int) float64 { return 2.5 }))
	assert.Equal(t, 0.0, dt.PredictRow(func(int) float64 { return 0.4 }))
}

func TestDecisionTreeRegressorErrors(t *testing.T) {
	dt := NewDecisionTreeRegressor()
	_, err := dt.Predict(mat.NewDense(1, 1, nil))
	assert.True(t, errors.Is(err, errors.ErrNotFitted))

	assert.True(t, errors.Is(dt.SetParams(map[string]interface{}{"criterion": "mse"}), errors.ErrInvalidParameter))
	require.NoError(t, dt.SetParams(map[string]interface{}{"max_depth": 6.0, "random_state": 42}))
	assert.Equal(t, 6, dt.MaxDepth)
	assert.Equal(t, int64(42), dt.Clone().(*DecisionTreeRegressor).RandomState)
}

func zoneData() (*mat.Dense, []string) {
	X := mat.NewDense(9, 2, []float64{
		-4, -150,
		-3, -100,
		-2, -120,
		0, 0,
		0.5, 20,
		1, -10,
		3, 150,
		4, 120,
		4.5, 180,
	})
	labels := []string{"Low", "Low", "Low", "Medium", "Medium", "Medium", "High", "High", "High"}
	return X, labels
}

func TestDecisionTreeClassifierZones(t *testing.T) {
	X, labels := zoneData()
	dt := NewDecisionTreeClassifier(WithClassifierMaxDepth(4))
	require.NoError(t, dt.Fit(X, labels))

	assert.Equal(t, []string{"High", "Low", "Medium"}, dt.Classes())
	pred, err := dt.Predict(X)
	require.NoError(t, err)
	assert.Equal(t, labels, pred)

	proba, err := dt.PredictProba(mat.NewDense(1, 2, []float64{-5, -200}))
	require.NoError(t, err)
	assert.Equal(t, 1.0, proba.At(0, 1))
}

func TestDecisionTreeClassifierClone(t *testing.T) {
	dt := NewDecisionTreeClassifier(
		WithCriterion(CriterionEntropy),
		WithClassifierMaxDepth(3),
		WithClassifierMinSamplesLeaf(4),
	)
	c := dt.Clone().(*DecisionTreeClassifier)
	assert.Equal(t, dt.GetParams(), c.GetParams())
	assert.False(t, c.IsFitted())
}

func TestDecisionTreeClassifierJSON(t *testing.T) {
	X, labels := zoneData()
	dt := NewDecisionTreeClassifier(WithCriterion(CriterionEntropy))
	require.NoError(t, dt.Fit(X, labels))

	data, err := json.Marshal(dt)
	require.NoError(t, err)

	var restored DecisionTreeClassifier
	require.NoError(t, json.Unmarshal(data, &restored))
	assert.True(t, restored.IsFitted())
	assert.Equal(t, CriterionEntropy, restored.GetParams()["criterion"])

	probe := mat.NewDense(3, 2, []float64{-4.9, -190, 0.2, 5, 4.9, 200})
	want, _ := dt.Predict(probe)
	got, err := restored.Predict(probe)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDecisionTreeClassifierRejectsBadInput(t *testing.T) {
	_, err := json.Marshal(NewDecisionTreeClassifier())
	assert.Error(t, err)

	var dt DecisionTreeClassifier
	bad := `{"params":{},"classes":["Low"],"n_features":1,"tree":{"nodes":[{"feature":0,"left":0,"right":0}]}}`
	assert.Error(t, json.Unmarshal([]byte(bad), &dt))

	c := NewDecisionTreeClassifier()
	assert.True(t, errors.Is(c.Fit(mat.NewDense(2, 1, nil), []string{"a"}), errors.ErrDimensionMismatch))
}
