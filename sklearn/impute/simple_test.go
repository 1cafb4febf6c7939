package impute

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/banerjixplores/climacrop/pkg/errors"
)

var nan = math.NaN()

func TestSimpleImputerMedian(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		1, nan,
		nan, 10,
		3, 20,
		4, 40,
	})
	imp := NewSimpleImputer(StrategyMedian)
	require.NoError(t, imp.Fit(X))
	assert.Equal(t, []float64{3, 20}, imp.Statistics)

	out, err := imp.Transform(X)
	require.NoError(t, err)
	assert.Equal(t, 3.0, out.At(1, 0))
	assert.Equal(t, 20.0, out.At(0, 1))
	assert.True(t, math.IsNaN(X.At(1, 0)), "input must not be modified")
}

func TestSimpleImputerEvenMedianAndMean(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{1, 2, 3, 10})

	med := NewSimpleImputer(StrategyMedian)
	require.NoError(t, med.Fit(X))
	assert.Equal(t, 2.5, med.Statistics[0])

	mean := NewSimpleImputer(StrategyMean)
	require.NoError(t, mean.Fit(X))
	assert.Equal(t, 4.0, mean.Statistics[0])
}

func TestSimpleImputerAllMissingWarns(t *testing.T) {
	var warned []error
	errors.SetWarningHandler(func(err error) { warned = append(warned, err) })
	defer errors.SetWarningHandler(nil)

	imp := NewSimpleImputer(StrategyMedian)
	require.NoError(t, imp.Fit(mat.NewDense(2, 1, []float64{nan, nan})))
	assert.Equal(t, 0.0, imp.Statistics[0])
	assert.Len(t, warned, 1)
}

func TestSimpleImputerErrors(t *testing.T) {
	imp := NewSimpleImputer("mode")
	assert.True(t, errors.Is(imp.Fit(mat.NewDense(1, 1, []float64{1})), errors.ErrInvalidParameter))

	imp = NewSimpleImputer(StrategyMedian)
	_, err := imp.Transform(mat.NewDense(1, 1, []float64{1}))
	assert.True(t, errors.Is(err, errors.ErrNotFitted))

	require.NoError(t, imp.Fit(mat.NewDense(1, 2, []float64{1, 2})))
	_, err = imp.Transform(mat.NewDense(1, 1, []float64{1}))
	assert.True(t, errors.Is(err, errors.ErrDimensionMismatch))
}

func TestSimpleImputerConstantAndParams(t *testing.T) {
	imp := NewSimpleImputer(StrategyMedian)
	require.NoError(t, imp.SetParams(map[string]interface{}{"strategy": StrategyConstant, "fill_value": -1}))

	out, err := func() (mat.Matrix, error) {
		if err := imp.Fit(mat.NewDense(2, 1, []float64{nan, 5})); err != nil {
			return nil, err
		}
		return imp.Transform(mat.NewDense(1, 1, []float64{nan}))
	}()
	require.NoError(t, err)
	assert.Equal(t, -1.0, out.At(0, 0))

	clone := imp.Clone().(*SimpleImputer)
	assert.Equal(t, StrategyConstant, clone.Strategy)
	assert.Equal(t, -1.0, clone.FillValue)
}

func TestCategoricalImputer(t *testing.T) {
	c := NewCategoricalImputer(MissingFill)
	in := [][]string{{"Virus", ""}, {"", "Wild"}}
	out := c.Transform(in)
	assert.Equal(t, [][]string{{"Virus", "Missing"}, {"Missing", "Wild"}}, out)
	assert.Equal(t, "", in[0][1])
}
