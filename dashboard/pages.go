package dashboard

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/banerjixplores/climacrop/analysis"
	"github.com/banerjixplores/climacrop/charts"
	"github.com/banerjixplores/climacrop/core/frame"
	"github.com/banerjixplores/climacrop/core/model"
	"github.com/banerjixplores/climacrop/dataset"
	"github.com/banerjixplores/climacrop/modeling"
	"github.com/banerjixplores/climacrop/pkg/errors"
)

// Page is one dashboard page.
type Page struct {
	Name  string
	Path  string
	Title string
	build func(s *Server, r *http.Request, v *View) error
}

// pages in navigation order.
var pages []Page

func init() {
	pages = []Page{
		{"home", "/", "Home", (*Server).home},
		{"geographic", "/geographic", "Geographic Analysis", (*Server).geographic},
		{"eda", "/eda", "Exploratory Analysis", (*Server).eda},
		{"correlations", "/correlations", "Correlations", (*Server).correlations},
		{"hypotheses", "/hypotheses", "Hypotheses & Validation", (*Server).hypotheses},
		{"mismatch", "/mismatch", "Climate Mismatch", (*Server).mismatch},
		{"climate", "/climate", "Climate Distributions", (*Server).climate},
		{"pathogens", "/pathogens", "Pathogen Distributions", (*Server).pathogens},
		{"comparison", "/comparison", "Model Comparison", (*Server).comparison},
		{"insights", "/insights", "Model Insights", (*Server).insights},
		{"simulator", "/simulator", "Scenario Simulator", (*Server).simulator},
		{"about", "/about", "About", (*Server).about},
	}
}

// Simulator slider ranges.
const (
	TempAnomalyMin = -5.0
	TempAnomalyMax = 5.0
	RainAnomalyMin = -200.0
	RainAnomalyMax = 200.0
)

var metricLabels = []string{"Temperature", "Rainfall"}

// data loads the prepared survey table through the cache.
func (s *Server) data() (*frame.Frame, error) {
	f, err := s.cache.Get(s.cfg.DataPath)
	if err != nil {
		return nil, serverError(errors.Wrap(err, "load survey data"))
	}
	return f, nil
}

// exists reports whether a model artifact file is present.
func exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, serverError(errors.Wrapf(err, "stat %s", path))
}

func (s *Server) home(_ *http.Request, v *View) error {
	v.Intro = "How climate anomalies relate to plant disease incidence in agricultural and wild systems."
	f, err := s.data()
	if err != nil {
		return err
	}
	summary, err := analysis.Summarize(f)
	if err != nil {
		return serverError(err)
	}
	t := &Table{Columns: []string{"System type", "Records", "Mean incidence", "Pathogen groups", "Locations"}}
	for _, row := range summary {
		t.Rows = append(t.Rows, []string{
			row.System,
			strconv.Itoa(row.Records),
			num(row.MeanIncidence),
			strconv.Itoa(row.Pathogens),
			strconv.Itoa(row.Locations),
		})
	}
	v.Sections = append(v.Sections,
		Section{Heading: "Dataset overview", Table: t},
		Section{Text: "Use the pages on the left to explore the survey, the hypothesis tests, and the tuned models."},
	)
	return nil
}

func (s *Server) geographic(_ *http.Request, v *View) error {
	v.Intro = "Where the surveyed diseases were recorded, by system type."
	sec, err := s.artifact(charts.FileGlobalMap, "Survey locations")
	if err != nil {
		return err
	}
	v.Sections = append(v.Sections, sec)
	return nil
}

func (s *Server) eda(r *http.Request, v *View) error {
	options := append([]string{"All"}, dataset.Systems...)
	system := choice(r, "system", options)
	v.Form = &Form{Selects: []Select{selectOf("system", "System type", options, nil, system)}}

	f, err := s.data()
	if err != nil {
		return err
	}
	summary, err := analysis.Summarize(f)
	if err != nil {
		return serverError(err)
	}
	means, err := analysis.ZoneMeans(f)
	if err != nil {
		return serverError(err)
	}

	st := &Table{Columns: []string{"System type", "Records", "Mean incidence", "Pathogen groups", "Locations"}}
	for _, row := range summary {
		if system != "All" && row.System != system {
			continue
		}
		st.Rows = append(st.Rows, []string{row.System, strconv.Itoa(row.Records), num(row.MeanIncidence),
			strconv.Itoa(row.Pathogens), strconv.Itoa(row.Locations)})
	}
	zt := &Table{Columns: []string{"System type", "Zone", "Records", "Mean temp anomaly (°C)", "Mean rain anomaly (mm)"}}
	for _, m := range means {
		if system != "All" && m.System != system {
			continue
		}
		zt.Rows = append(zt.Rows, []string{m.System, m.Zone, strconv.Itoa(m.N), num(m.TempAnomaly), num(m.RainAnomaly)})
	}
	v.Sections = append(v.Sections,
		Section{Heading: "Records", Table: st},
		Section{Heading: "Mean anomalies by incidence zone", Table: zt},
	)
	return nil
}

func (s *Server) correlations(_ *http.Request, v *View) error {
	v.Intro = "Pearson correlations between incidence, historical normals, contemporaneous weather and anomalies."
	sec, err := s.artifact(charts.FileCorrelation, "Correlation matrix")
	if err != nil {
		return err
	}
	v.Sections = append(v.Sections, sec)
	return nil
}

func (s *Server) hypotheses(_ *http.Request, v *View) error {
	v.Intro = "Ordinary least squares tests of the five hypotheses. p-values from the Student t distribution."
	f, err := s.data()
	if err != nil {
		return err
	}
	rep, err := analysis.Hypotheses(f)
	if err != nil {
		return serverError(err)
	}

	h1 := &Table{Columns: []string{"System type", "Metric", "n", "Slope", "Linear R²", "p", "Quadratic R²", "p (x²)"}}
	for _, m := range rep.Response {
		h1.Rows = append(h1.Rows, []string{m.System, m.Metric, strconv.Itoa(m.N), num(m.LinearCoef),
			num(m.LinearR2), pval(m.LinearP), num(m.QuadraticR2), pval(m.QuadraticP)})
	}
	h2 := &Table{Columns: []string{"Metric", "Wild R²", "Agricultural R²", "Wild more sensitive"}}
	for _, row := range rep.Sensitivity {
		h2.Rows = append(h2.Rows, []string{row.Metric, num(row.WildR2), num(row.AgR2), yesNo(row.WildStronger)})
	}
	h3 := &Table{Columns: []string{"System type", "Anomaly", "Historical", "n", "Interaction", "p", "R²"}}
	for _, row := range rep.Mismatch {
		h3.Rows = append(h3.Rows, []string{row.System, row.Anomaly, row.Historical, strconv.Itoa(row.N),
			num(row.Coef), pval(row.P), num(row.R2)})
	}
	v.Sections = append(v.Sections,
		Section{Heading: "H1: Incidence responds to climate", Table: h1},
		Section{Heading: "H2: Wild systems are more climate-sensitive", Table: h2},
		Section{Heading: "H3: Anomalies matter more where they depart from the historical climate", Table: h3},
		factorSection("H4: Temperature response differs by pathogen group", rep.Pathogen),
		factorSection("H5: Rainfall response differs by transmission mode", rep.Transmission),
	)
	return nil
}

func factorSection(heading string, ft *analysis.FactorTest) Section {
	if ft == nil {
		return Section{Heading: heading, Warning: "Not enough data to fit this test."}
	}
	t := &Table{Columns: []string{"Term", "Estimate", "Std. error", "t", "p"}}
	for _, c := range ft.Terms {
		t.Rows = append(t.Rows, []string{c.Term, num(c.Estimate), num(c.StdErr), num(c.T), pval(c.P)})
	}
	return Section{
		Heading: heading,
		Text:    fmt.Sprintf("n = %d, R² = %s, baseline level %s.", ft.N, num(ft.R2), ft.Baseline),
		Table:   t,
	}
}

func (s *Server) mismatch(r *http.Request, v *View) error {
	system := choice(r, "system", dataset.Systems)
	metric := choice(r, "metric", charts.Metrics)
	v.Intro = "Incidence against the climate anomaly, with the least squares line."
	v.Form = &Form{Selects: []Select{
		selectOf("system", "System type", dataset.Systems, nil, system),
		selectOf("metric", "Metric", charts.Metrics, metricLabels, metric),
	}}
	sec, err := s.artifact(charts.MismatchFile(system, metric), "")
	if err != nil {
		return err
	}
	v.Sections = append(v.Sections, sec)
	return nil
}

func (s *Server) climate(r *http.Request, v *View) error {
	metric := choice(r, "metric", charts.Metrics)
	v.Intro = "Distribution of climate anomalies in each system type."
	v.Form = &Form{Selects: []Select{selectOf("metric", "Metric", charts.Metrics, metricLabels, metric)}}
	sec, err := s.artifact(charts.DistributionFile(metric), "")
	if err != nil {
		return err
	}
	v.Sections = append(v.Sections, sec)
	return nil
}

// Pathogen page chart types.
const (
	PathogenTemperature = "temperature"
	PathogenRainfall    = "rainfall"
	PathogenHost        = "host"
)

func (s *Server) pathogens(r *http.Request, v *View) error {
	types := []string{PathogenTemperature, PathogenRainfall, PathogenHost}
	kind := choice(r, "type", types)
	v.Intro = "Climate anomalies and record counts per pathogen group."
	v.Form = &Form{Selects: []Select{selectOf("type", "Chart", types,
		[]string{"Temperature anomaly", "Rainfall anomaly", "Records per group"}, kind)}}

	name := charts.FilePathogenHost
	if kind != PathogenHost {
		name = charts.ViolinFile(kind)
	}
	sec, err := s.artifact(name, "")
	if err != nil {
		return err
	}
	v.Sections = append(v.Sections, sec)
	return nil
}

func (s *Server) comparison(r *http.Request, v *View) error {
	system := choice(r, "system", dataset.Systems)
	v.Intro = "All five pipelines evaluated on the same split: cross-validated and held-out R², and accuracy per incidence zone."
	v.Form = &Form{Selects: []Select{selectOf("system", "System type", dataset.Systems, nil, system)}}

	sec, err := s.artifact(charts.ComparisonFile(system), "")
	if err != nil {
		return err
	}
	v.Sections = append(v.Sections, sec)

	path := filepath.Join(s.cfg.ModelsDir, modeling.ComparisonFile(system))
	ok, err := exists(path)
	if err != nil {
		return err
	}
	if !ok {
		v.Sections = append(v.Sections, s.modelMissing(modeling.ComparisonFile(system)))
		return nil
	}
	table, err := modeling.LoadComparison(path)
	if err != nil {
		return serverError(err)
	}
	cols := []string{"Model", "CV R²", "CV R² std", "Test R²", "Test MSE"}
	for _, z := range dataset.Zones {
		cols = append(cols, z+" accuracy")
	}
	t := &Table{Columns: cols}
	for _, row := range table.Rows {
		cells := []string{row.Model, num(row.CVR2), num(row.CVR2Std), num(row.TestR2), num(row.TestMSE)}
		for _, z := range dataset.Zones {
			if row.ZoneSupport[z] == 0 {
				cells = append(cells, "n/a")
				continue
			}
			cells = append(cells, num(row.ZoneAccuracy[z]))
		}
		t.Rows = append(t.Rows, cells)
	}
	v.Sections = append(v.Sections, Section{Heading: "Scores", Table: t})
	return nil
}

func (s *Server) insights(_ *http.Request, v *View) error {
	v.Intro = "The tuned model of each system type and the features driving predictions."
	path := filepath.Join(s.cfg.ModelsDir, modeling.ResultsFile)
	ok, err := exists(path)
	if err != nil {
		return err
	}
	if ok {
		res, err := modeling.LoadResults(path)
		if err != nil {
			return serverError(err)
		}
		t := &Table{Columns: []string{"System type", "Model", "Train rows", "Test rows", "Best CV R²", "Test R²", "Test MSE", "Best parameters"}}
		for _, sr := range res.Subsets {
			t.Rows = append(t.Rows, []string{sr.System, sr.Model, strconv.Itoa(sr.NTrain), strconv.Itoa(sr.NTest),
				num(sr.BestCVScore), num(sr.R2), num(sr.MSE), model.FormatParams(sr.BestParams)})
		}
		v.Sections = append(v.Sections, Section{Heading: "Tuned models", Text: "Run " + res.RunID, Table: t})
	} else {
		v.Sections = append(v.Sections, s.modelMissing(modeling.ResultsFile))
	}

	sec, err := s.artifact(charts.FileFeatureImportance, "Feature importance")
	if err != nil {
		return err
	}
	v.Sections = append(v.Sections, sec)
	return nil
}

func (s *Server) simulator(r *http.Request, v *View) error {
	v.Intro = "Pick a temperature and rainfall anomaly to see the predicted incidence zone."
	temp, err := floatParam(r, "temp", TempAnomalyMin, TempAnomalyMax, 0)
	if err != nil {
		return err
	}
	rain, err := floatParam(r, "rain", RainAnomalyMin, RainAnomalyMax, 0)
	if err != nil {
		return err
	}
	v.Form = &Form{
		Ranges: []Range{
			{Name: "temp", Label: "Temperature anomaly (°C)", Min: TempAnomalyMin, Max: TempAnomalyMax, Step: 0.1, Value: temp},
			{Name: "rain", Label: "Rainfall anomaly (mm)", Min: RainAnomalyMin, Max: RainAnomalyMax, Step: 1, Value: rain},
		},
		Submit: "Predict",
	}

	path := filepath.Join(s.cfg.ModelsDir, modeling.ZoneModelFile)
	ok, err := exists(path)
	if err != nil {
		return err
	}
	if !ok {
		v.Sections = append(v.Sections, s.modelMissing(modeling.ZoneModelFile))
		return nil
	}
	zm, err := modeling.LoadZoneModel(path)
	if err != nil {
		return serverError(err)
	}
	zone, err := zm.Predict(temp, rain)
	if err != nil {
		return serverError(err)
	}
	s.metrics.Prediction()
	v.Sections = append(v.Sections, Section{Zone: zone})
	return nil
}

func (s *Server) about(_ *http.Request, v *View) error {
	v.Sections = []Section{
		{Heading: "Data", Text: "Plant disease survey records joined with historical climate normals and contemporaneous weather. Anomalies are contemporaneous minus historical values."},
		{Heading: "Models", Text: "Agricultural records are modeled with a stacked ensemble of gradient boosting and spline ridge regression; wild records with spline ridge regression. Both are tuned by five-fold cross-validated grid search."},
		{Heading: "Features", Text: "The infected and total plant counts are left out of every model's features because incidence is computed from them. Scores on the comparison and insights pages are therefore lower than those of a model allowed to see the counts."},
		{Heading: "Simulator", Text: "The scenario simulator uses a shallow decision tree over the two anomalies to predict the Low, Medium or High incidence zone."},
	}
	return nil
}
