// Package pipeline chains transformers and estimators with sklearn-style
// named steps and "step__param" parameter routing.
//
// Pipeline chains numeric transformers (impute → spline → scale) and is
// itself a model.Transformer, so it can sit inside a ColumnTransformer block.
// FramePipeline joins a table preprocessor to a regressor and is what the
// modeling workflow tunes and evaluates.
package pipeline

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/banerjixplores/climacrop/core/model"
	"github.com/banerjixplores/climacrop/pkg/errors"
	"github.com/banerjixplores/climacrop/pkg/log"
)

// Step represents a single step in the pipeline.
type Step struct {
	Name      string            // Name of this step (for identification and parameter routing)
	Estimator model.Transformer // Transformer applied at this step
}

// Pipeline chains multiple transformers.
type Pipeline struct {
	state  *model.StateManager
	logger log.Logger

	steps      []Step
	namedSteps map[string]model.Transformer
}

// New creates a new Pipeline with the given steps.
// This is equivalent to sklearn.pipeline.Pipeline(steps)
func New(steps ...Step) *Pipeline {
	named := make(map[string]model.Transformer, len(steps))
	for _, step := range steps {
		named[step.Name] = step.Estimator
	}
	return &Pipeline{
		state:      model.NewStateManager(),
		logger:     log.GetLoggerWithName("Pipeline"),
		steps:      steps,
		namedSteps: named,
	}
}

// Make is a convenience function similar to sklearn.pipeline.make_pipeline.
// Steps are named step1, step2, ...
func Make(transformers ...model.Transformer) *Pipeline {
	steps := make([]Step, len(transformers))
	for i, t := range transformers {
		steps[i] = Step{Name: fmt.Sprintf("step%d", i+1), Estimator: t}
	}
	return New(steps...)
}

// Fit fits all the transformers one after the other, feeding each the
// output of the previous one.
func (p *Pipeline) Fit(X mat.Matrix) error {
	_, err := p.FitTransform(X)
	return err
}

// FitTransform fits the pipeline and returns the transformed training data.
func (p *Pipeline) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if len(p.steps) == 0 {
		return nil, errors.NewValueError("Pipeline.Fit", "pipeline has no steps")
	}
	Xt := X
	var err error
	for _, step := range p.steps {
		if err = step.Estimator.Fit(Xt); err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("failed to fit step '%s'", step.Name))
		}
		Xt, err = step.Estimator.Transform(Xt)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("failed to transform at step '%s'", step.Name))
		}
	}
	r, c := X.Dims()
	p.state.SetDimensions(c, r)
	p.state.SetFitted()
	p.logger.Debug("Pipeline fitted", log.SamplesKey, r, log.FeaturesKey, c, "steps", len(p.steps))
	return Xt, nil
}

// Transform applies every step in order.
func (p *Pipeline) Transform(X mat.Matrix) (mat.Matrix, error) {
	if !p.state.IsFitted() {
		return nil, errors.NewNotFittedError("Pipeline", "Transform")
	}
	Xt := X
	var err error
	for _, step := range p.steps {
		Xt, err = step.Estimator.Transform(Xt)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("failed to transform at step '%s'", step.Name))
		}
	}
	return Xt, nil
}

// GetFeatureNamesOut threads input names through steps that rename columns.
// Steps without GetFeatureNamesOut keep names unchanged.
func (p *Pipeline) GetFeatureNamesOut(inputFeatures []string) []string {
	names := inputFeatures
	for _, step := range p.steps {
		if namer, ok := step.Estimator.(interface {
			GetFeatureNamesOut([]string) []string
		}); ok {
			names = namer.GetFeatureNamesOut(names)
		}
	}
	return names
}

// GetParams returns the parameters of all steps, prefixed with the step name.
func (p *Pipeline) GetParams() map[string]interface{} {
	params := make(map[string]interface{})
	for _, step := range p.steps {
		model.PrefixParams(params, step.Name, step.Estimator.GetParams())
	}
	return params
}

// SetParams routes "step__param" keys to the named step.
func (p *Pipeline) SetParams(params map[string]interface{}) error {
	own, nested := model.SplitParams(params)
	if keys := model.SortedKeys(own); len(keys) > 0 {
		return model.UnknownParam("Pipeline", keys[0])
	}
	for name, sub := range nested {
		step, ok := p.namedSteps[name]
		if !ok {
			return errors.NewValidationError(name, "no such pipeline step", name)
		}
		if err := step.SetParams(sub); err != nil {
			return errors.Wrapf(err, "step '%s'", name)
		}
	}
	p.state.Reset()
	return nil
}

// Clone returns an unfitted pipeline with cloned steps.
func (p *Pipeline) Clone() model.Estimator {
	steps := make([]Step, len(p.steps))
	for i, s := range p.steps {
		steps[i] = Step{Name: s.Name, Estimator: s.Estimator.Clone().(model.Transformer)}
	}
	return New(steps...)
}

// NamedSteps returns the steps as a map for easy access by name.
func (p *Pipeline) NamedSteps() map[string]model.Transformer {
	out := make(map[string]model.Transformer, len(p.namedSteps))
	for k, v := range p.namedSteps {
		out[k] = v
	}
	return out
}

// Steps returns the list of steps.
func (p *Pipeline) Steps() []Step {
	steps := make([]Step, len(p.steps))
	copy(steps, p.steps)
	return steps
}
