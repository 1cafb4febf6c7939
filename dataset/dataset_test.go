package dataset

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/parquet-go/parquet-go"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banerjixplores/climacrop/core/frame"
	"github.com/banerjixplores/climacrop/pkg/errors"
	pmetrics "github.com/banerjixplores/climacrop/pkg/metrics"
)

const surveyCSV = `,Host_type,Latitude,Longitude,pathogen_group,monthly_temp,contemp_temp,monthly_precip,contemp_precip,n_infected,n_total
0,Agricultural,10.5,20,Fungus,20,21.5,3,2,1,10
1,wild,-5,30,Virus,15,14,4,6,5,10
2,WILD,40,-3,NA,18,18,2,2.5,9,10
3,agricultural,0,0,Fungus,,22,1,1,0,0
`

func loadSurvey(t *testing.T) *Frame {
	t.Helper()
	f, err := LoadCSV(strings.NewReader(surveyCSV))
	require.NoError(t, err)
	return f
}

func TestLoadCSV(t *testing.T) {
	f := loadSurvey(t)
	assert.Equal(t, 4, f.NRows())
	assert.Equal(t, []string{
		ColSystemType, ColLatitude, ColLongitude, ColPathogenGroup,
		ColMonthlyTemp, ColContempTemp, ColMonthlyPrecip, ColContempPrecip, ColInfected, ColTotal,
	}, f.Names())

	assert.Equal(t, []string{ColSystemType, ColPathogenGroup}, f.ColumnsOfKind(frame.Categorical))
	groups, err := f.Text(ColPathogenGroup)
	require.NoError(t, err)
	assert.Equal(t, "", groups[2])

	temps, err := f.Float(ColMonthlyTemp)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(temps[3]))

	_, err = LoadCSV(strings.NewReader(""))
	assert.True(t, errors.Is(err, errors.ErrEmptyData))
}

func TestPrepareDerivesColumns(t *testing.T) {
	raw := loadSurvey(t)
	f, err := Prepare(raw)
	require.NoError(t, err)
	assert.False(t, raw.Has(ColIncidence), "input must not be modified")

	systems, _ := f.Text(ColSystemType)
	assert.Equal(t, []string{SystemAgricultural, SystemWild, SystemWild, SystemAgricultural}, systems)

	tempAnom, _ := f.Float(ColTempAnomaly)
	assert.InDelta(t, 1.5, tempAnom[0], 1e-12)
	assert.InDelta(t, -1, tempAnom[1], 1e-12)
	assert.True(t, math.IsNaN(tempAnom[3]))
	rainAnom, _ := f.Float(ColRainAnomaly)
	assert.InDelta(t, 2, rainAnom[1], 1e-12)

	inc, _ := f.Float(ColIncidence)
	assert.InDelta(t, 0.1, inc[0], 1e-12)
	assert.True(t, math.IsNaN(inc[3]), "zero total has no incidence")

	zones, _ := f.Text(ColIncidenceZone)
	assert.Equal(t, []string{ZoneLow, ZoneMedium, ZoneHigh, ""}, zones)
}

func TestPrepareRejectsUnknownSystem(t *testing.T) {
	f, err := frame.New(frame.NewCategorical(ColSystemType, []string{"Wild", "Urban"}))
	require.NoError(t, err)
	_, err = Prepare(f)
	assert.True(t, errors.Is(err, errors.ErrInvalidParameter))

	f, err = frame.New(frame.NewNumeric(ColIncidence, []float64{0.1}))
	require.NoError(t, err)
	_, err = Prepare(f)
	assert.True(t, errors.Is(err, errors.ErrMissingColumn))
}

func TestZoneOf(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, ZoneLow},
		{0.2, ZoneLow},
		{1.0 / 3, ZoneMedium},
		{0.5, ZoneMedium},
		{2.0 / 3, ZoneHigh},
		{1, ZoneHigh},
		{math.NaN(), ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, ZoneOf(c.in), "incidence %v", c.in)
	}
}

func TestSplitSubsetsCoversAllRows(t *testing.T) {
	f, err := Prepare(loadSurvey(t))
	require.NoError(t, err)
	ag, wild, err := SplitSubsets(f)
	require.NoError(t, err)
	assert.Equal(t, 2, ag.NRows())
	assert.Equal(t, 2, wild.NRows())
	assert.Equal(t, f.NRows(), ag.NRows()+wild.NRows())

	lat, _ := wild.Float(ColLatitude)
	assert.Equal(t, []float64{-5, 40}, lat)
}

type parquetSurvey struct {
	HostType  string  `parquet:"Host_type"`
	Incidence float64 `parquet:"incidence"`
	NTotal    int64   `parquet:"n_total"`
}

func TestLoadParquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "survey.parquet")
	require.NoError(t, parquet.WriteFile(path, []parquetSurvey{
		{HostType: "Wild", Incidence: 0.5, NTotal: 12},
		{HostType: "Agricultural", Incidence: 0.1, NTotal: 30},
	}))

	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, f.NRows())
	assert.ElementsMatch(t, []string{ColSystemType, ColIncidence, ColTotal}, f.Names())

	systems, err := f.Text(ColSystemType)
	require.NoError(t, err)
	assert.Equal(t, []string{"Wild", "Agricultural"}, systems)
	totals, err := f.Float(ColTotal)
	require.NoError(t, err)
	assert.Equal(t, []float64{12, 30}, totals)
}

func writeSurvey(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestCacheMemoizesBySignature(t *testing.T) {
	dir := t.TempDir()
	path := writeSurvey(t, dir, "a.csv", surveyCSV)

	loads := 0
	clock := clockwork.NewFakeClock()
	m := pmetrics.NewCollector(nil)
	c := NewCache(2, time.Minute,
		WithClock(clock),
		WithMetrics(m),
		WithLoader(func(p string) (*Frame, error) {
			loads++
			return LoadPrepared(p)
		}),
	)

	f1, err := c.Get(path)
	require.NoError(t, err)
	f2, err := c.Get(path)
	require.NoError(t, err)
	assert.Same(t, f1, f2)
	assert.Equal(t, 1, loads)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DataCache.WithLabelValues(CacheHit)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DataCache.WithLabelValues(CacheMiss)))

	clock.Advance(2 * time.Minute)
	_, err = c.Get(path)
	require.NoError(t, err)
	assert.Equal(t, 2, loads)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DataCache.WithLabelValues(CacheExpired)))

	// A changed file has a new signature.
	writeSurvey(t, dir, "a.csv", surveyCSV+"4,Wild,1,1,Virus,1,1,1,1,1,2\n")
	f3, err := c.Get(path)
	require.NoError(t, err)
	assert.Equal(t, 3, loads)
	assert.Equal(t, 5, f3.NRows())
	assert.Equal(t, 2, c.Len())
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	dir := t.TempDir()
	a := writeSurvey(t, dir, "a.csv", surveyCSV)
	b := writeSurvey(t, dir, "b.csv", surveyCSV)
	c := NewCache(1, 0)

	_, err := c.Get(a)
	require.NoError(t, err)
	_, err = c.Get(b)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())

	c.Purge()
	assert.Equal(t, 0, c.Len())

	_, err = c.Get(filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)
}
