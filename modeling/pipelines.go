package modeling

import (
	"github.com/banerjixplores/climacrop/core/model"
	"github.com/banerjixplores/climacrop/sklearn/ensemble"
	"github.com/banerjixplores/climacrop/sklearn/linear_model"
	"github.com/banerjixplores/climacrop/sklearn/pipeline"
	"github.com/banerjixplores/climacrop/sklearn/svm"
)

// Model names, as shown on the comparison page and used in artifact keys.
const (
	ModelRidgeSpline  = "ridge_spline"
	ModelRandomForest = "random_forest"
	ModelXGBoost      = "xgboost"
	ModelSVR          = "svr"
	ModelStacking     = "stacking"
)

// Stack member names, which prefix the stacking grid parameters.
const (
	StackXGB         = "xgb"
	StackRidgeSpline = "r_spl"
)

// RandomState seeds every stochastic model.
const RandomState = 42

// ModelNames lists the compared models in display order.
var ModelNames = []string{ModelRidgeSpline, ModelRandomForest, ModelXGBoost, ModelSVR, ModelStacking}

// MakeRidgeSplinePipeline is pre → RidgeCV(0.1, 1, 10) with per-alpha LOO errors kept.
func MakeRidgeSplinePipeline(pre model.FrameTransformer) *pipeline.FramePipeline {
	return pipeline.NewFramePipeline(pre, linear_model.NewRidgeCV(linear_model.DefaultAlphas))
}

// MakeRFPipeline is pre → 200-tree random forest.
func MakeRFPipeline(pre model.FrameTransformer) *pipeline.FramePipeline {
	return pipeline.NewFramePipeline(pre, ensemble.NewRandomForestRegressor(200, RandomState))
}

// MakeXGBPipeline is pre → gradient boosting with 100 rounds at rate 0.1.
func MakeXGBPipeline(pre model.FrameTransformer) *pipeline.FramePipeline {
	return pipeline.NewFramePipeline(pre, ensemble.NewGradientBoostingRegressor(RandomState))
}

// MakeSVRPipeline is pre → RBF SVR with C=1 and epsilon=0.1.
func MakeSVRPipeline(pre model.FrameTransformer) *pipeline.FramePipeline {
	return pipeline.NewFramePipeline(pre, svm.NewSVR(1, 0.1))
}

// MakeStackingPipeline stacks the boosting and ridge-spline pipelines under
// RidgeCV. Each member gets its own copy of pre.
func MakeStackingPipeline(pre model.FrameTransformer) *ensemble.StackingRegressor {
	return ensemble.NewStackingRegressor([]ensemble.NamedEstimator{
		{Name: StackXGB, Estimator: MakeXGBPipeline(pre.Clone().(model.FrameTransformer))},
		{Name: StackRidgeSpline, Estimator: MakeRidgeSplinePipeline(pre.Clone().(model.FrameTransformer))},
	}, linear_model.NewRidgeCV(linear_model.DefaultAlphas))
}

// MakePipeline returns the named model over a copy of pre.
func MakePipeline(name string, pre model.FrameTransformer) (model.FrameRegressor, bool) {
	p := pre.Clone().(model.FrameTransformer)
	switch name {
	case ModelRidgeSpline:
		return MakeRidgeSplinePipeline(p), true
	case ModelRandomForest:
		return MakeRFPipeline(p), true
	case ModelXGBoost:
		return MakeXGBPipeline(p), true
	case ModelSVR:
		return MakeSVRPipeline(p), true
	case ModelStacking:
		return MakeStackingPipeline(p), true
	}
	return nil, false
}
