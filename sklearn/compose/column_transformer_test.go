package compose

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banerjixplores/climacrop/core/frame"
	"github.com/banerjixplores/climacrop/pkg/errors"
	"github.com/banerjixplores/climacrop/preprocessing"
	"github.com/banerjixplores/climacrop/sklearn/impute"
	"github.com/banerjixplores/climacrop/sklearn/pipeline"
)

func surveyFrame(t *testing.T) *frame.Frame {
	t.Helper()
	n := 12
	temp := make([]float64, n)
	precip := make([]float64, n)
	lat := make([]float64, n)
	group := make([]string, n)
	system := make([]string, n)
	for i := 0; i < n; i++ {
		temp[i] = 10 + float64(i)
		precip[i] = 50 + 7*float64(i%5)
		lat[i] = -30 + 5*float64(i)
		group[i] = []string{"Fungus", "Virus", "Bacteria"}[i%3]
		system[i] = "Wild"
	}
	precip[3] = math.NaN()
	group[4] = ""
	f, err := frame.New(
		frame.NewNumeric("monthly_temp", temp),
		frame.NewNumeric("monthly_precip", precip),
		frame.NewNumeric("latitude", lat),
		frame.NewCategorical("pathogen_group", group),
		frame.NewCategorical("system_type", system),
	)
	require.NoError(t, err)
	return f
}

func climPipeline(nKnots, degree int) *pipeline.Pipeline {
	return pipeline.New(
		pipeline.Step{Name: "imputer", Estimator: impute.NewSimpleImputer(impute.StrategyMedian)},
		pipeline.Step{Name: "spline", Estimator: preprocessing.NewSplineTransformer(nKnots, degree)},
		pipeline.Step{Name: "scaler", Estimator: preprocessing.NewStandardScalerDefault()},
	)
}

func splineTransformer(nKnots, degree int) *ColumnTransformer {
	return NewColumnTransformer(
		NumericBlock("clim", []string{"monthly_temp", "monthly_precip"}, climPipeline(nKnots, degree)),
		NumericBlock("other_num", []string{"latitude"}, pipeline.New(
			pipeline.Step{Name: "imputer", Estimator: impute.NewSimpleImputer(impute.StrategyMedian)},
			pipeline.Step{Name: "scaler", Estimator: preprocessing.NewStandardScalerDefault()},
		)),
		CategoricalBlock("cat", []string{"pathogen_group", "system_type"}, NewCategoricalPipeline()),
	)
}

func TestColumnTransformerOutputWidth(t *testing.T) {
	f := surveyFrame(t)
	tests := []struct {
		nKnots, degree int
	}{
		{5, 3}, {7, 3}, {9, 4},
	}
	for _, tt := range tests {
		ct := splineTransformer(tt.nKnots, tt.degree)
		X, err := ct.FitTransform(f)
		require.NoError(t, err)

		// 2 climate columns, 1 other numeric, 4 pathogen levels (incl. Missing) + 1 system level.
		want := 2*(tt.nKnots+tt.degree-2) + 1 + 4 + 1
		r, c := X.Dims()
		assert.Equal(t, f.NRows(), r)
		assert.Equal(t, want, c, "n_knots=%d degree=%d", tt.nKnots, tt.degree)
		assert.Len(t, ct.GetFeatureNamesOut(), want)
	}
}

func TestColumnTransformerFeatureNames(t *testing.T) {
	ct := splineTransformer(7, 3)
	require.NoError(t, ct.Fit(surveyFrame(t)))

	names := ct.GetFeatureNamesOut()
	assert.Equal(t, "clim__monthly_temp_sp_0", names[0])
	assert.Contains(t, names, "other_num__latitude")
	assert.Contains(t, names, "cat__pathogen_group_Missing")
	assert.Equal(t, "cat__system_type_Wild", names[len(names)-1])
}

func TestColumnTransformerSkipsEmptyBlocksAndUnknown(t *testing.T) {
	f := surveyFrame(t)
	ct := NewColumnTransformer(
		NumericBlock("num", []string{"latitude"}, preprocessing.NewStandardScalerDefault()),
		CategoricalBlock("cat", nil, NewCategoricalPipeline()),
	)
	X, err := ct.FitTransform(f)
	require.NoError(t, err)
	_, c := X.Dims()
	assert.Equal(t, 1, c)

	cat := NewColumnTransformer(CategoricalBlock("cat", []string{"system_type"}, NewCategoricalPipeline()))
	require.NoError(t, cat.Fit(f))
	other, err := frame.New(frame.NewCategorical("system_type", []string{"Agricultural"}))
	require.NoError(t, err)
	out, err := cat.Transform(other)
	require.NoError(t, err)
	assert.Equal(t, 0.0, out.At(0, 0))
}

func TestColumnTransformerSetParams(t *testing.T) {
	ct := splineTransformer(7, 3)
	require.NoError(t, ct.SetParams(map[string]interface{}{
		"clim__spline__n_knots": 5,
		"clim__spline__degree":  4,
	}))
	params := ct.GetParams()
	assert.Equal(t, 5, params["clim__spline__n_knots"])
	assert.Equal(t, 4, params["clim__spline__degree"])
	assert.Equal(t, "Missing", params["cat__imputer__fill_value"])

	err := ct.SetParams(map[string]interface{}{"geo__spline__degree": 3})
	assert.True(t, errors.Is(err, errors.ErrInvalidParameter))

	_, err = ct.Clone().(*ColumnTransformer).Transform(surveyFrame(t))
	assert.True(t, errors.Is(err, errors.ErrNotFitted))
}

func TestColumnTransformerMissingColumn(t *testing.T) {
	ct := NewColumnTransformer(NumericBlock("clim", []string{"contemp_temp"}, preprocessing.NewStandardScalerDefault()))
	err := ct.Fit(surveyFrame(t))
	assert.True(t, errors.Is(err, errors.ErrMissingColumn))
}
