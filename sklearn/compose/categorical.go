package compose

import (
	"gonum.org/v1/gonum/mat"

	"github.com/banerjixplores/climacrop/core/model"
	"github.com/banerjixplores/climacrop/preprocessing"
	"github.com/banerjixplores/climacrop/sklearn/impute"
)

// Step names inside a CategoricalPipeline.
const (
	StepImputer = "imputer"
	StepEncoder = "onehot"
)

// CategoricalPipeline fills missing categories with a constant and one-hot
// encodes the result.
type CategoricalPipeline struct {
	Imputer *impute.CategoricalImputer
	Encoder *preprocessing.OneHotEncoder
}

// NewCategoricalPipeline fills with "Missing" and ignores unknown categories.
func NewCategoricalPipeline() *CategoricalPipeline {
	return &CategoricalPipeline{
		Imputer: impute.NewCategoricalImputer(impute.MissingFill),
		Encoder: preprocessing.NewOneHotEncoder(),
	}
}

// Fit learns the categories after filling.
func (c *CategoricalPipeline) Fit(rows [][]string) error {
	return c.Encoder.Fit(c.Imputer.Transform(rows))
}

// Transform fills and encodes rows.
func (c *CategoricalPipeline) Transform(rows [][]string) (mat.Matrix, error) {
	return c.Encoder.Transform(c.Imputer.Transform(rows))
}

// GetFeatureNamesOut returns the encoder's "column_category" names.
func (c *CategoricalPipeline) GetFeatureNamesOut(inputFeatures []string) []string {
	return c.Encoder.GetFeatureNamesOut(inputFeatures)
}

// GetParams returns imputer__fill_value and onehot__handle_unknown.
func (c *CategoricalPipeline) GetParams() map[string]interface{} {
	params := map[string]interface{}{
		StepImputer + model.ParamSep + "fill_value": c.Imputer.FillValue,
	}
	model.PrefixParams(params, StepEncoder, c.Encoder.GetParams())
	return params
}

// SetParams routes imputer and encoder keys.
func (c *CategoricalPipeline) SetParams(params map[string]interface{}) error {
	own, nested := model.SplitParams(params)
	if keys := model.SortedKeys(own); len(keys) > 0 {
		return model.UnknownParam("CategoricalPipeline", keys[0])
	}
	for name, sub := range nested {
		switch name {
		case StepImputer:
			for k, v := range sub {
				if k != "fill_value" {
					return model.UnknownParam("CategoricalImputer", k)
				}
				s, err := model.ParamString(k, v)
				if err != nil {
					return err
				}
				c.Imputer.FillValue = s
			}
		case StepEncoder:
			if err := c.Encoder.SetParams(sub); err != nil {
				return err
			}
		default:
			return model.UnknownParam("CategoricalPipeline", name)
		}
	}
	return nil
}

// Clone returns an unfitted copy.
func (c *CategoricalPipeline) Clone() model.Estimator {
	out := NewCategoricalPipeline()
	out.Imputer.FillValue = c.Imputer.FillValue
	out.Encoder.HandleUnknown = c.Encoder.HandleUnknown
	return out
}
