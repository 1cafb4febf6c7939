package frame

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banerjixplores/climacrop/pkg/errors"
)

func sample(t *testing.T) *Frame {
	t.Helper()
	f, err := New(
		NewNumeric("monthly_temp", []float64{10, 12, math.NaN(), 15}),
		NewNumeric("contemp_temp", []float64{11, 11, 13, 18}),
		NewCategorical("system_type", []string{"Wild", "Agricultural", "Wild", ""}),
	)
	require.NoError(t, err)
	return f
}

func TestNewValidates(t *testing.T) {
	_, err := New(NewNumeric("a", []float64{1, 2}), NewNumeric("b", []float64{1}))
	assert.True(t, errors.Is(err, errors.ErrDimensionMismatch))

	_, err = New(NewNumeric("a", []float64{1}), NewCategorical("a", []string{"x"}))
	assert.Error(t, err)
}

func TestNumericMatrix(t *testing.T) {
	f := sample(t)

	X, err := f.NumericMatrix([]string{"contemp_temp", "monthly_temp"})
	require.NoError(t, err)
	r, c := X.Dims()
	assert.Equal(t, 4, r)
	assert.Equal(t, 2, c)
	assert.Equal(t, 13.0, X.At(2, 0))
	assert.True(t, math.IsNaN(X.At(2, 1)))

	_, err = f.NumericMatrix([]string{"system_type"})
	assert.Error(t, err)

	_, err = f.NumericMatrix([]string{"nope"})
	assert.True(t, errors.Is(err, errors.ErrMissingColumn))
}

func TestTakeAndFilter(t *testing.T) {
	f := sample(t)

	wild := f.Filter(func(i int) bool { return f.cols[2].Str[i] == "Wild" })
	assert.Equal(t, 2, wild.NRows())
	temps, err := wild.Float("contemp_temp")
	require.NoError(t, err)
	assert.Equal(t, []float64{11, 13}, temps)

	sub := f.Take([]int{3, 0})
	sys, err := sub.Text("system_type")
	require.NoError(t, err)
	assert.Equal(t, []string{"", "Wild"}, sys)
}

func TestDropSelectSet(t *testing.T) {
	f := sample(t)

	d := f.Drop("monthly_temp", "unknown")
	assert.Equal(t, []string{"contemp_temp", "system_type"}, d.Names())
	assert.Equal(t, 4, d.NRows())

	s, err := f.Select("system_type", "monthly_temp")
	require.NoError(t, err)
	assert.Equal(t, []string{"system_type", "monthly_temp"}, s.Names())

	require.NoError(t, f.Set(NewNumeric("temp_anomaly", []float64{1, -1, 0, 3})))
	assert.True(t, f.Has("temp_anomaly"))
	assert.Error(t, f.Set(NewNumeric("short", []float64{1})))

	assert.Equal(t, []string{"monthly_temp", "contemp_temp", "temp_anomaly"}, f.ColumnsOfKind(Numeric))
}

func TestStringsAndLevels(t *testing.T) {
	f := sample(t)

	rows, err := f.Strings([]string{"system_type"})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Wild"}, {"Agricultural"}, {"Wild"}, {""}}, rows)

	levels, err := f.Levels("system_type")
	require.NoError(t, err)
	assert.Equal(t, []string{"Agricultural", "Wild"}, levels)

	c, err := f.Column("system_type")
	require.NoError(t, err)
	assert.True(t, c.IsMissing(3))
}
