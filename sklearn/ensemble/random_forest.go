// Package ensemble implements tree ensembles and model stacking.
package ensemble

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/banerjixplores/climacrop/core/model"
	"github.com/banerjixplores/climacrop/core/parallel"
	"github.com/banerjixplores/climacrop/pkg/errors"
	"github.com/banerjixplores/climacrop/pkg/log"
	"github.com/banerjixplores/climacrop/sklearn/tree"
)

// RandomForestRegressor averages bootstrap-trained regression trees.
type RandomForestRegressor struct {
	state  *model.StateManager
	logger log.Logger

	NEstimators    int
	MaxDepth       int
	MinSamplesLeaf int
	MaxFeatures    int // 0 = all features, as in scikit-learn's regressor default
	Bootstrap      bool
	RandomState    int64
	NJobs          int

	Estimators_         []*tree.DecisionTreeRegressor
	featureImportances_ []float64
}

// NewRandomForestRegressor creates a forest of nEstimators fully grown trees.
func NewRandomForestRegressor(nEstimators int, randomState int64) *RandomForestRegressor {
	return &RandomForestRegressor{
		state:          model.NewStateManager(),
		logger:         log.GetLoggerWithName("RandomForestRegressor"),
		NEstimators:    nEstimators,
		MinSamplesLeaf: 1,
		Bootstrap:      true,
		RandomState:    randomState,
	}
}

// Fit grows NEstimators trees in parallel. Tree seeds are drawn up front
// from RandomState, so results do not depend on scheduling.
func (rf *RandomForestRegressor) Fit(X, y mat.Matrix) error {
	start := time.Now()
	n, p := X.Dims()
	if n == 0 || p == 0 {
		return errors.NewModelError("RandomForestRegressor.Fit", "empty data", errors.ErrEmptyData)
	}
	if yr, _ := y.Dims(); yr != n {
		return errors.NewDimensionError("RandomForestRegressor.Fit", n, yr, 0)
	}
	if rf.NEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be at least 1", rf.NEstimators)
	}

	cols := make([][]float64, p)
	for j := range cols {
		cols[j] = model.Column(X, j)
	}
	target := model.Vector(y)

	seeder := rand.New(rand.NewSource(rf.RandomState))
	seeds := make([]int64, rf.NEstimators)
	for i := range seeds {
		seeds[i] = seeder.Int63()
	}

	trees, err := parallel.Map(context.Background(), rf.NEstimators, parallel.Workers(rf.NJobs),
		func(_ context.Context, i int) (*tree.DecisionTreeRegressor, error) {
			rng := rand.New(rand.NewSource(seeds[i]))
			rows := make([]int, n)
			for k := range rows {
				if rf.Bootstrap {
					rows[k] = rng.Intn(n)
				} else {
					rows[k] = k
				}
			}
			t := tree.NewDecisionTreeRegressor(
				tree.WithMaxDepth(rf.MaxDepth),
				tree.WithMinSamplesLeaf(rf.MinSamplesLeaf),
				tree.WithMaxFeatures(rf.MaxFeatures),
				tree.WithRandomState(seeds[i]),
			)
			if err := t.FitColumns(cols, target, rows); err != nil {
				return nil, errors.Wrapf(err, "tree %d", i)
			}
			return t, nil
		})
	if err != nil {
		return err
	}

	importances := make([]float64, p)
	for _, t := range trees {
		fi, _ := t.FeatureImportances()
		for j, v := range fi {
			importances[j] += v / float64(len(trees))
		}
	}
	sum := 0.0
	for _, v := range importances {
		sum += v
	}
	if sum > 0 {
		for j := range importances {
			importances[j] /= sum
		}
	}

	rf.Estimators_ = trees
	rf.featureImportances_ = importances
	rf.state.SetDimensions(p, n)
	rf.state.SetFitted()
	rf.logger.Debug("Forest fitted",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.FeaturesKey, p,
		"trees", len(trees),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// Predict averages the trees' predictions.
func (rf *RandomForestRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !rf.state.IsFitted() {
		return nil, errors.NewNotFittedError("RandomForestRegressor", "Predict")
	}
	n, p := X.Dims()
	if p != rf.state.NFeatures() {
		return nil, errors.NewDimensionError("RandomForestRegressor.Predict", rf.state.NFeatures(), p, 1)
	}
	out := mat.NewDense(n, 1, nil)
	parallel.ParallelizeWithThreshold(n, 256, func(start, end int) {
		for i := start; i < end; i++ {
			row := func(j int) float64 { return X.At(i, j) }
			sum := 0.0
			for _, t := range rf.Estimators_ {
				sum += t.PredictRow(row)
			}
			out.Set(i, 0, sum/float64(len(rf.Estimators_)))
		}
	})
	return out, nil
}

// FeatureImportances returns the mean of the trees' normalized importances.
func (rf *RandomForestRegressor) FeatureImportances() ([]float64, error) {
	if !rf.state.IsFitted() {
		return nil, errors.NewNotFittedError("RandomForestRegressor", "FeatureImportances")
	}
	return append([]float64(nil), rf.featureImportances_...), nil
}

// GetParams returns the forest hyperparameters.
func (rf *RandomForestRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":     rf.NEstimators,
		"max_depth":        rf.MaxDepth,
		"min_samples_leaf": rf.MinSamplesLeaf,
		"max_features":     rf.MaxFeatures,
		"bootstrap":        rf.Bootstrap,
		"random_state":     rf.RandomState,
		"n_jobs":           rf.NJobs,
	}
}

// SetParams updates forest hyperparameters.
func (rf *RandomForestRegressor) SetParams(params map[string]interface{}) error {
	for k, v := range params {
		var err error
		switch k {
		case "n_estimators":
			rf.NEstimators, err = model.ParamInt(k, v)
		case "max_depth":
			rf.MaxDepth, err = model.ParamInt(k, v)
		case "min_samples_leaf":
			rf.MinSamplesLeaf, err = model.ParamInt(k, v)
		case "max_features":
			rf.MaxFeatures, err = model.ParamInt(k, v)
		case "n_jobs":
			rf.NJobs, err = model.ParamInt(k, v)
		case "random_state":
			rf.RandomState, err = model.ParamInt64(k, v)
		case "bootstrap":
			b, ok := v.(bool)
			if !ok {
				return errors.NewValidationError(k, "expected a bool", v)
			}
			rf.Bootstrap = b
		default:
			return model.UnknownParam("RandomForestRegressor", k)
		}
		if err != nil {
			return err
		}
	}
	rf.state.Reset()
	return nil
}

// Clone returns an unfitted copy.
func (rf *RandomForestRegressor) Clone() model.Estimator {
	c := NewRandomForestRegressor(rf.NEstimators, rf.RandomState)
	c.MaxDepth, c.MinSamplesLeaf, c.MaxFeatures = rf.MaxDepth, rf.MinSamplesLeaf, rf.MaxFeatures
	c.Bootstrap, c.NJobs = rf.Bootstrap, rf.NJobs
	return c
}

func (rf *RandomForestRegressor) String() string {
	return fmt.Sprintf("RandomForestRegressor(n_estimators=%d, random_state=%d)", rf.NEstimators, rf.RandomState)
}
