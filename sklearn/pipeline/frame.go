package pipeline

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/banerjixplores/climacrop/core/frame"
	"github.com/banerjixplores/climacrop/core/model"
	"github.com/banerjixplores/climacrop/metrics"
	"github.com/banerjixplores/climacrop/pkg/errors"
	"github.com/banerjixplores/climacrop/pkg/log"
)

// Step names of a FramePipeline, used as parameter prefixes.
const (
	StepPreprocessor = "preprocessor"
	StepRegressor    = "regressor"
)

// FramePipeline is a table preprocessor followed by a regressor.
//
// Parameters are addressed as "preprocessor__<path>" and
// "regressor__<param>", matching the grids the tuning workflow searches.
type FramePipeline struct {
	state  *model.StateManager
	logger log.Logger

	Preprocessor model.FrameTransformer
	Regressor    model.Regressor
}

// NewFramePipeline joins pre and reg.
func NewFramePipeline(pre model.FrameTransformer, reg model.Regressor) *FramePipeline {
	return &FramePipeline{
		state:        model.NewStateManager(),
		logger:       log.GetLoggerWithName("FramePipeline"),
		Preprocessor: pre,
		Regressor:    reg,
	}
}

// Fit fits the preprocessor on f, then the regressor on the design matrix.
func (p *FramePipeline) Fit(f *frame.Frame, y mat.Matrix) error {
	start := time.Now()
	if f == nil || f.NRows() == 0 {
		return errors.NewModelError("FramePipeline.Fit", "empty data", errors.ErrEmptyData)
	}
	if r, _ := y.Dims(); r != f.NRows() {
		return errors.NewDimensionError("FramePipeline.Fit", f.NRows(), r, 0)
	}

	if err := p.Preprocessor.Fit(f); err != nil {
		return errors.Wrapf(err, "failed to fit step '%s'", StepPreprocessor)
	}
	X, err := p.Preprocessor.Transform(f)
	if err != nil {
		return errors.Wrapf(err, "failed to transform at step '%s'", StepPreprocessor)
	}
	if err := p.Regressor.Fit(X, y); err != nil {
		return errors.Wrapf(err, "failed to fit step '%s'", StepRegressor)
	}

	_, c := X.Dims()
	p.state.SetDimensions(c, f.NRows())
	p.state.SetFitted()
	p.logger.Debug("FramePipeline fitted",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, f.NRows(),
		log.FeaturesKey, c,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// Predict transforms f and returns the regressor's n×1 predictions.
func (p *FramePipeline) Predict(f *frame.Frame) (mat.Matrix, error) {
	if !p.state.IsFitted() {
		return nil, errors.NewNotFittedError("FramePipeline", "Predict")
	}
	X, err := p.Preprocessor.Transform(f)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to transform at step '%s'", StepPreprocessor)
	}
	return p.Regressor.Predict(X)
}

// Score returns the R² of the predictions for f against y.
func (p *FramePipeline) Score(f *frame.Frame, y mat.Matrix) (float64, error) {
	pred, err := p.Predict(f)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, pred)
}

// IsFitted reports whether Fit has completed since the last parameter change.
func (p *FramePipeline) IsFitted() bool { return p.state.IsFitted() }

// GetFeatureNamesOut returns the design-matrix column names.
func (p *FramePipeline) GetFeatureNamesOut() []string {
	return p.Preprocessor.GetFeatureNamesOut()
}

// FeatureImportances forwards to the regressor when it exposes importances.
func (p *FramePipeline) FeatureImportances() ([]float64, error) {
	fi, ok := p.Regressor.(model.FeatureImportancer)
	if !ok {
		return nil, errors.NewValueError("FramePipeline.FeatureImportances",
			fmt.Sprintf("%T has no feature importances", p.Regressor))
	}
	return fi.FeatureImportances()
}

// GetParams returns both steps' parameters with step prefixes.
func (p *FramePipeline) GetParams() map[string]interface{} {
	params := make(map[string]interface{})
	model.PrefixParams(params, StepPreprocessor, p.Preprocessor.GetParams())
	model.PrefixParams(params, StepRegressor, p.Regressor.GetParams())
	return params
}

// SetParams routes prefixed keys to the preprocessor or regressor.
func (p *FramePipeline) SetParams(params map[string]interface{}) error {
	own, nested := model.SplitParams(params)
	if keys := model.SortedKeys(own); len(keys) > 0 {
		return model.UnknownParam("FramePipeline", keys[0])
	}
	for name, sub := range nested {
		var err error
		switch name {
		case StepPreprocessor:
			err = p.Preprocessor.SetParams(sub)
		case StepRegressor:
			err = p.Regressor.SetParams(sub)
		default:
			return errors.NewValidationError(name, "no such pipeline step", name)
		}
		if err != nil {
			return errors.Wrapf(err, "step '%s'", name)
		}
	}
	p.state.Reset()
	return nil
}

// Clone returns an unfitted pipeline with cloned steps.
func (p *FramePipeline) Clone() model.Estimator {
	return NewFramePipeline(
		p.Preprocessor.Clone().(model.FrameTransformer),
		p.Regressor.Clone().(model.Regressor),
	)
}
