package modeling

import (
	"context"
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banerjixplores/climacrop/core/frame"
	"github.com/banerjixplores/climacrop/core/model"
	"github.com/banerjixplores/climacrop/dataset"
	"github.com/banerjixplores/climacrop/pkg/errors"
)

// surveyFrame builds a prepared survey with n rows per system type whose
// incidence rises with the temperature anomaly.
func surveyFrame(t *testing.T, n int) *frame.Frame {
	t.Helper()
	rng := rand.New(rand.NewSource(7))
	groups := []string{"Fungus", "Virus", "Bacteria"}

	var (
		systems, pathogens                  []string
		mTemp, cTemp, mPrecip, cPrecip, lat []float64
		infected, total                     []float64
	)
	for _, sys := range dataset.Systems {
		for i := 0; i < n; i++ {
			systems = append(systems, sys)
			pathogens = append(pathogens, groups[i%len(groups)])
			mt := 10 + 15*rng.Float64()
			anom := -4 + 8*rng.Float64()
			mp := 50 + 100*rng.Float64()
			mTemp = append(mTemp, mt)
			cTemp = append(cTemp, mt+anom)
			mPrecip = append(mPrecip, mp)
			cPrecip = append(cPrecip, mp-40+80*rng.Float64())
			lat = append(lat, -40+80*rng.Float64())

			inc := math.Min(1, math.Max(0, 0.5+0.11*anom+0.05*rng.NormFloat64()))
			total = append(total, 100)
			infected = append(infected, math.Round(100*inc))
		}
	}
	raw, err := frame.New(
		frame.NewCategorical(dataset.ColSystemType, systems),
		frame.NewCategorical(dataset.ColPathogenGroup, pathogens),
		frame.NewNumeric(dataset.ColMonthlyTemp, mTemp),
		frame.NewNumeric(dataset.ColContempTemp, cTemp),
		frame.NewNumeric(dataset.ColMonthlyPrecip, mPrecip),
		frame.NewNumeric(dataset.ColContempPrecip, cPrecip),
		frame.NewNumeric(dataset.ColLatitude, lat),
		frame.NewNumeric(dataset.ColInfected, infected),
		frame.NewNumeric(dataset.ColTotal, total),
	)
	require.NoError(t, err)
	f, err := dataset.Prepare(raw)
	require.NoError(t, err)
	return f
}

func TestInferColumnsExcludesTarget(t *testing.T) {
	cols := InferColumns(surveyFrame(t, 10))
	assert.Equal(t, dataset.ClimateColumns, cols.Climate)
	assert.ElementsMatch(t, []string{dataset.ColLatitude, dataset.ColTempAnomaly, dataset.ColRainAnomaly}, cols.OtherNumeric)
	assert.ElementsMatch(t, []string{dataset.ColSystemType, dataset.ColPathogenGroup}, cols.Categorical)
}

func TestSplinePreprocessorWidth(t *testing.T) {
	f := surveyFrame(t, 20)
	cases := []struct {
		knots, degree int
	}{
		{DefaultKnots, DefaultDegree},
		{5, 4},
		{9, 3},
	}
	for _, c := range cases {
		cols := InferColumns(f)
		pre := MakeSplinePreprocessor(cols.Climate, cols.OtherNumeric, cols.Categorical, c.knots, c.degree)
		out, err := pre.FitTransform(f)
		require.NoError(t, err)

		// Splines drop their bias column; one-hot keeps every level.
		want := len(cols.Climate)*(c.knots+c.degree-2) + len(cols.OtherNumeric) + 2 + 3
		rows, width := out.Dims()
		assert.Equal(t, f.NRows(), rows)
		assert.Equal(t, want, width, "knots=%d degree=%d", c.knots, c.degree)
		assert.Len(t, pre.GetFeatureNamesOut(), want)
	}
}

func TestPreprocessorWidth(t *testing.T) {
	f := surveyFrame(t, 20)
	pre := MakePreprocessor([]string{dataset.ColMonthlyTemp, dataset.ColLatitude}, []string{dataset.ColPathogenGroup})
	out, err := pre.FitTransform(f)
	require.NoError(t, err)
	_, width := out.Dims()
	assert.Equal(t, 2+3, width)
}

func TestSplitSystem(t *testing.T) {
	f := surveyFrame(t, 50)
	cfg := DefaultConfig()

	ag, err := SplitSystem(f, "agricultural", cfg)
	require.NoError(t, err)
	assert.Equal(t, dataset.SystemAgricultural, ag.System)
	assert.Equal(t, 40, ag.Train.NRows())
	assert.Equal(t, 10, ag.Test.NRows())
	r, _ := ag.YTrain.Dims()
	assert.Equal(t, 40, r)

	again, err := SplitSystem(f, dataset.SystemAgricultural, cfg)
	require.NoError(t, err)
	assert.Equal(t, ag.YTest.RawMatrix().Data, again.YTest.RawMatrix().Data)

	_, err = SplitSystem(f, "Urban", cfg)
	assert.True(t, errors.Is(err, errors.ErrInvalidParameter))
}

func TestTargetDropsMissingIncidence(t *testing.T) {
	f, err := frame.New(frame.NewNumeric(dataset.ColIncidence, []float64{0.1, math.NaN(), 0.7}))
	require.NoError(t, err)
	x, y, err := Target(f)
	require.NoError(t, err)
	assert.Equal(t, 2, x.NRows())
	assert.Equal(t, []float64{0.1, 0.7}, model.Vector(y))

	f, err = frame.New(frame.NewNumeric(dataset.ColIncidence, []float64{math.NaN()}))
	require.NoError(t, err)
	_, _, err = Target(f)
	assert.True(t, errors.Is(err, errors.ErrEmptyData))
}

func TestGridsRouteToPipelines(t *testing.T) {
	f := surveyFrame(t, 10)
	pre := DefaultPreprocessor(f)

	cases := []struct {
		name  string
		est   model.FrameRegressor
		grid  func() map[string][]interface{}
		count int
	}{
		{"agricultural", MakeStackingPipeline(pre), func() map[string][]interface{} { return AgriculturalGrid() }, 8},
		{"wild", MakeRidgeSplinePipeline(pre), func() map[string][]interface{} { return WildGrid() }, 18},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			grid := c.grid()
			n := 1
			for _, v := range grid {
				n *= len(v)
			}
			assert.Equal(t, c.count, n)
			for key, values := range grid {
				for _, v := range values {
					m := c.est.Clone().(model.FrameRegressor)
					assert.NoError(t, m.SetParams(map[string]interface{}{key: v}), key)
				}
			}
		})
	}
}

func TestMakePipeline(t *testing.T) {
	pre := DefaultPreprocessor(surveyFrame(t, 10))
	for _, name := range ModelNames {
		est, ok := MakePipeline(name, pre)
		assert.True(t, ok, name)
		assert.NotNil(t, est, name)
	}
	_, ok := MakePipeline("lasso", pre)
	assert.False(t, ok)
	assert.Equal(t, ModelStacking, CandidateModel(dataset.SystemAgricultural))
	assert.Equal(t, ModelRidgeSpline, CandidateModel(dataset.SystemWild))
}

func TestZoneAccuracy(t *testing.T) {
	yTrue := []float64{0.1, 0.2, 0.5, 0.9, 0.95}
	yPred := []float64{0.1, 0.4, 0.5, 0.5, 0.99}
	acc, support, err := ZoneAccuracy(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, acc[dataset.ZoneLow], 1e-12)
	assert.InDelta(t, 1.0, acc[dataset.ZoneMedium], 1e-12)
	assert.InDelta(t, 0.5, acc[dataset.ZoneHigh], 1e-12)
	assert.Equal(t, map[string]int{dataset.ZoneLow: 2, dataset.ZoneMedium: 1, dataset.ZoneHigh: 2}, support)

	_, _, err = ZoneAccuracy(yTrue, yPred[:2])
	assert.True(t, errors.Is(err, errors.ErrDimensionMismatch))
}

func TestZoneModelRoundTrip(t *testing.T) {
	f := surveyFrame(t, 60)
	z, err := TrainZoneModel(f)
	require.NoError(t, err)

	hot, err := z.Predict(4, 0)
	require.NoError(t, err)
	cold, err := z.Predict(-4, 0)
	require.NoError(t, err)
	assert.Equal(t, dataset.ZoneHigh, hot)
	assert.Equal(t, dataset.ZoneLow, cold)

	dir := t.TempDir()
	path, err := SaveZoneModel(z, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ZoneModelFile), path)

	loaded, err := LoadZoneModel(path)
	require.NoError(t, err)
	for _, anom := range []float64{-5, -2, 0, 2, 5} {
		want, _ := z.Predict(anom, 50)
		got, err := loaded.Predict(anom, 50)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err = LoadZoneModel(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	var empty *ZoneModel
	_, err = empty.Predict(0, 0)
	assert.True(t, errors.Is(err, errors.ErrNotFitted))
}

func TestRunTunesBothSystems(t *testing.T) {
	if testing.Short() {
		t.Skip("grid search over the stacking model")
	}
	f := surveyFrame(t, 40)
	res, err := Run(context.Background(), f, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, res.Subsets, 2)
	assert.NotEmpty(t, res.RunID)

	ag, ok := res.Subset(dataset.SystemAgricultural)
	require.True(t, ok)
	assert.Equal(t, ModelStacking, ag.Model)
	assert.Equal(t, 32, ag.NTrain)
	assert.Equal(t, 8, ag.NTest)
	assert.Len(t, ag.CVResults.MeanTestScore, 8)
	assert.Contains(t, ag.BestParams, StackXGB+"__regressor__max_depth")

	wild, ok := res.Subset(dataset.SystemWild)
	require.True(t, ok)
	assert.Len(t, wild.CVResults.MeanTestScore, 18)
	assert.Greater(t, wild.R2, 0.5)

	path, err := SaveResults(res, t.TempDir())
	require.NoError(t, err)
	loaded, err := LoadResults(path)
	require.NoError(t, err)
	assert.Equal(t, res.RunID, loaded.RunID)
	assert.Len(t, loaded.Subsets, 2)
	assert.InDelta(t, wild.R2, loaded.Subsets[1].R2, 1e-12)
}

func TestCompareModels(t *testing.T) {
	if testing.Short() {
		t.Skip("fits every pipeline")
	}
	f := surveyFrame(t, 40)
	table, err := CompareModels(context.Background(), f, dataset.SystemWild, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, dataset.SystemWild, table.System)
	require.Len(t, table.Rows, len(ModelNames))
	for i, row := range table.Rows {
		assert.Equal(t, ModelNames[i], row.Model)
		n := 0
		for _, z := range dataset.Zones {
			n += row.ZoneSupport[z]
			assert.GreaterOrEqual(t, row.ZoneAccuracy[z], 0.0)
			assert.LessOrEqual(t, row.ZoneAccuracy[z], 1.0)
		}
		assert.Equal(t, 8, n)
	}

	dir := t.TempDir()
	path, err := SaveComparison(table, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "comparison_Wild.json"), path)
	loaded, err := LoadComparison(path)
	require.NoError(t, err)
	assert.Equal(t, table.Rows[0].Model, loaded.Rows[0].Model)
}

func TestFeatureImportance(t *testing.T) {
	if testing.Short() {
		t.Skip("fits a 200-tree forest")
	}
	f := surveyFrame(t, 30)
	s, err := SplitSystem(f, dataset.SystemWild, DefaultConfig())
	require.NoError(t, err)
	pre := DefaultPreprocessor(f)

	imp, err := FeatureImportance(s, pre)
	require.NoError(t, err)
	require.NotEmpty(t, imp)
	sum := 0.0
	for i, v := range imp {
		assert.GreaterOrEqual(t, v.Importance, 0.0)
		assert.NotEmpty(t, v.Feature)
		if i > 0 {
			assert.LessOrEqual(t, v.Importance, imp[i-1].Importance)
		}
		sum += v.Importance
	}
	assert.InDelta(t, 1, sum, 1e-9)
	assert.Empty(t, pre.GetFeatureNamesOut(), "the shared preprocessor stays unfitted")
}
