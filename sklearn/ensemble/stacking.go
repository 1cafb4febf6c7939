package ensemble

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/banerjixplores/climacrop/core/frame"
	"github.com/banerjixplores/climacrop/core/model"
	"github.com/banerjixplores/climacrop/core/parallel"
	"github.com/banerjixplores/climacrop/pkg/errors"
	"github.com/banerjixplores/climacrop/pkg/log"
	"github.com/banerjixplores/climacrop/sklearn/model_selection"
)

// StepFinalEstimator prefixes the meta-model's parameters.
const StepFinalEstimator = "final_estimator"

// NamedEstimator is one base model of a stack.
type NamedEstimator struct {
	Name      string
	Estimator model.FrameRegressor
}

// StackingRegressor fits a meta-regressor on out-of-fold predictions of its
// base models. Base models see the raw table; the meta-model sees only their
// predictions, one column per base model in declaration order.
//
// Parameters route as "<name>__<param>" to a base model and
// "final_estimator__<param>" to the meta-model.
type StackingRegressor struct {
	state  *model.StateManager
	logger log.Logger

	Estimators     []NamedEstimator
	FinalEstimator model.Regressor
	CV             model_selection.KFold
	NJobs          int

	Estimators_     []model.FrameRegressor
	FinalEstimator_ model.Regressor
}

// NewStackingRegressor stacks estimators under final with unshuffled 5-fold
// out-of-fold predictions.
func NewStackingRegressor(estimators []NamedEstimator, final model.Regressor) *StackingRegressor {
	return &StackingRegressor{
		state:          model.NewStateManager(),
		logger:         log.GetLoggerWithName("StackingRegressor"),
		Estimators:     estimators,
		FinalEstimator: final,
		CV:             model_selection.NewKFold(5, false, 0),
		NJobs:          1,
	}
}

// Fit implements model.FrameRegressor.
func (s *StackingRegressor) Fit(f *frame.Frame, y mat.Matrix) error {
	return s.FitContext(context.Background(), f, y)
}

// FitContext builds the out-of-fold meta features, refits every base model on
// all rows and fits the meta-model.
func (s *StackingRegressor) FitContext(ctx context.Context, f *frame.Frame, y mat.Matrix) error {
	start := time.Now()
	if len(s.Estimators) == 0 {
		return errors.NewValidationError("estimators", "at least one base estimator is required", 0)
	}
	if f == nil || f.NRows() == 0 {
		return errors.NewModelError("StackingRegressor.Fit", "empty data", errors.ErrEmptyData)
	}
	n := f.NRows()
	if r, _ := y.Dims(); r != n {
		return errors.NewDimensionError("StackingRegressor.Fit", n, r, 0)
	}

	meta := mat.NewDense(n, len(s.Estimators), nil)
	for j, e := range s.Estimators {
		oof, err := model_selection.CrossValPredict(ctx, e.Estimator, f, y, s.CV, s.NJobs)
		if err != nil {
			return errors.Wrapf(err, "out-of-fold predictions for '%s'", e.Name)
		}
		meta.SetCol(j, oof.RawMatrix().Data)
	}

	fitted, err := parallel.Map(ctx, len(s.Estimators), parallel.Workers(s.NJobs),
		func(_ context.Context, j int) (model.FrameRegressor, error) {
			m := s.Estimators[j].Estimator.Clone().(model.FrameRegressor)
			if err := m.Fit(f, y); err != nil {
				return nil, errors.Wrapf(err, "fit base estimator '%s'", s.Estimators[j].Name)
			}
			return m, nil
		})
	if err != nil {
		return err
	}

	final := s.FinalEstimator.Clone().(model.Regressor)
	if err := final.Fit(meta, y); err != nil {
		return errors.Wrap(err, "fit final estimator")
	}

	s.Estimators_ = fitted
	s.FinalEstimator_ = final
	s.state.SetDimensions(len(s.Estimators), n)
	s.state.SetFitted()
	s.logger.Debug("Stack fitted",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		"estimators", len(s.Estimators),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// Transform returns the base models' predictions for f, one column each.
func (s *StackingRegressor) Transform(f *frame.Frame) (*mat.Dense, error) {
	if !s.state.IsFitted() {
		return nil, errors.NewNotFittedError("StackingRegressor", "Transform")
	}
	meta := mat.NewDense(f.NRows(), len(s.Estimators_), nil)
	for j, m := range s.Estimators_ {
		pred, err := m.Predict(f)
		if err != nil {
			return nil, errors.Wrapf(err, "predict base estimator '%s'", s.Estimators[j].Name)
		}
		for i := 0; i < f.NRows(); i++ {
			meta.Set(i, j, pred.At(i, 0))
		}
	}
	return meta, nil
}

// Predict feeds the base predictions for f through the meta-model.
func (s *StackingRegressor) Predict(f *frame.Frame) (mat.Matrix, error) {
	meta, err := s.Transform(f)
	if err != nil {
		return nil, err
	}
	return s.FinalEstimator_.Predict(meta)
}

// IsFitted reports whether Fit has completed since the last parameter change.
func (s *StackingRegressor) IsFitted() bool { return s.state.IsFitted() }

// GetParams returns every base model's and the meta-model's parameters.
func (s *StackingRegressor) GetParams() map[string]interface{} {
	params := map[string]interface{}{
		"cv":     s.CV.NSplits,
		"n_jobs": s.NJobs,
	}
	for _, e := range s.Estimators {
		model.PrefixParams(params, e.Name, e.Estimator.GetParams())
	}
	model.PrefixParams(params, StepFinalEstimator, s.FinalEstimator.GetParams())
	return params
}

// SetParams routes prefixed keys to the named base model or the meta-model.
func (s *StackingRegressor) SetParams(params map[string]interface{}) error {
	own, nested := model.SplitParams(params)
	for k, v := range own {
		var err error
		switch k {
		case "cv":
			s.CV.NSplits, err = model.ParamInt(k, v)
		case "n_jobs":
			s.NJobs, err = model.ParamInt(k, v)
		default:
			return model.UnknownParam("StackingRegressor", k)
		}
		if err != nil {
			return err
		}
	}
	for name, sub := range nested {
		var target model.Estimator
		if name == StepFinalEstimator {
			target = s.FinalEstimator
		}
		for _, e := range s.Estimators {
			if e.Name == name {
				target = e.Estimator
			}
		}
		if target == nil {
			return errors.NewValidationError(name, "no such estimator in stack", name)
		}
		if err := target.SetParams(sub); err != nil {
			return errors.Wrapf(err, "estimator '%s'", name)
		}
	}
	s.state.Reset()
	return nil
}

// Clone returns an unfitted stack with cloned base and meta models.
func (s *StackingRegressor) Clone() model.Estimator {
	estimators := make([]NamedEstimator, len(s.Estimators))
	for i, e := range s.Estimators {
		estimators[i] = NamedEstimator{Name: e.Name, Estimator: e.Estimator.Clone().(model.FrameRegressor)}
	}
	c := NewStackingRegressor(estimators, s.FinalEstimator.Clone().(model.Regressor))
	c.CV = s.CV
	c.NJobs = s.NJobs
	return c
}

func (s *StackingRegressor) String() string {
	names := make([]string, len(s.Estimators))
	for i, e := range s.Estimators {
		names[i] = e.Name
	}
	return fmt.Sprintf("StackingRegressor(estimators=[%s], cv=%d)", strings.Join(names, ", "), s.CV.NSplits)
}
