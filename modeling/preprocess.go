// Package modeling builds the survey regression pipelines and runs the
// tuning, comparison and scenario-model workflows on top of them.
package modeling

import (
	"github.com/banerjixplores/climacrop/core/frame"
	"github.com/banerjixplores/climacrop/dataset"
	"github.com/banerjixplores/climacrop/preprocessing"
	"github.com/banerjixplores/climacrop/sklearn/compose"
	"github.com/banerjixplores/climacrop/sklearn/impute"
	"github.com/banerjixplores/climacrop/sklearn/pipeline"
)

// Block and step names, which form the tuning parameter paths.
const (
	BlockNumeric     = "num"
	BlockClimate     = "clim"
	BlockOtherNum    = "other_num"
	BlockCategorical = "cat"

	StepImputer = "imputer"
	StepSpline  = "spline"
	StepScaler  = "scaler"
)

// Default spline basis.
const (
	DefaultKnots  = 7
	DefaultDegree = 3
)

// excluded never enter a feature block: the target, the counts it is
// derived from, and its zone.
var excluded = map[string]bool{
	dataset.ColIncidence:     true,
	dataset.ColInfected:      true,
	dataset.ColTotal:         true,
	dataset.ColIncidenceZone: true,
}

// Columns groups feature column names by preprocessing block.
type Columns struct {
	Climate      []string
	OtherNumeric []string
	Categorical  []string
}

// InferColumns assigns the columns of f to blocks: the climate columns that
// are present, every other numeric column, and every categorical column.
func InferColumns(f *frame.Frame) Columns {
	var cols Columns
	climate := make(map[string]bool, len(dataset.ClimateColumns))
	for _, c := range dataset.ClimateColumns {
		climate[c] = true
		if f.Has(c) {
			cols.Climate = append(cols.Climate, c)
		}
	}
	for _, c := range f.ColumnsOfKind(frame.Numeric) {
		if !climate[c] && !excluded[c] {
			cols.OtherNumeric = append(cols.OtherNumeric, c)
		}
	}
	for _, c := range f.ColumnsOfKind(frame.Categorical) {
		if !excluded[c] {
			cols.Categorical = append(cols.Categorical, c)
		}
	}
	return cols
}

func numericPipeline() *pipeline.Pipeline {
	return pipeline.New(
		pipeline.Step{Name: StepImputer, Estimator: impute.NewSimpleImputer(impute.StrategyMedian)},
		pipeline.Step{Name: StepScaler, Estimator: preprocessing.NewStandardScalerDefault()},
	)
}

// MakePreprocessor imputes and scales numeric columns and one-hot encodes
// categorical ones.
func MakePreprocessor(numeric, categorical []string) *compose.ColumnTransformer {
	return compose.NewColumnTransformer(
		compose.NumericBlock(BlockNumeric, numeric, numericPipeline()),
		compose.CategoricalBlock(BlockCategorical, categorical, compose.NewCategoricalPipeline()),
	)
}

// MakeSplinePreprocessor is MakePreprocessor with a spline basis expansion
// of the climate columns between imputation and scaling.
func MakeSplinePreprocessor(climate, otherNumeric, categorical []string, nKnots, degree int) *compose.ColumnTransformer {
	clim := pipeline.New(
		pipeline.Step{Name: StepImputer, Estimator: impute.NewSimpleImputer(impute.StrategyMedian)},
		pipeline.Step{Name: StepSpline, Estimator: preprocessing.NewSplineTransformer(nKnots, degree)},
		pipeline.Step{Name: StepScaler, Estimator: preprocessing.NewStandardScalerDefault()},
	)
	return compose.NewColumnTransformer(
		compose.NumericBlock(BlockClimate, climate, clim),
		compose.NumericBlock(BlockOtherNum, otherNumeric, numericPipeline()),
		compose.CategoricalBlock(BlockCategorical, categorical, compose.NewCategoricalPipeline()),
	)
}

// DefaultPreprocessor is the spline preprocessor over InferColumns(f).
func DefaultPreprocessor(f *frame.Frame) *compose.ColumnTransformer {
	cols := InferColumns(f)
	return MakeSplinePreprocessor(cols.Climate, cols.OtherNumeric, cols.Categorical, DefaultKnots, DefaultDegree)
}
