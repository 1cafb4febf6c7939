package charts

import (
	"context"
	"time"

	"gonum.org/v1/plot"

	"github.com/banerjixplores/climacrop/analysis"
	"github.com/banerjixplores/climacrop/core/frame"
	"github.com/banerjixplores/climacrop/core/parallel"
	"github.com/banerjixplores/climacrop/dataset"
	"github.com/banerjixplores/climacrop/modeling"
	"github.com/banerjixplores/climacrop/pkg/errors"
	"github.com/banerjixplores/climacrop/pkg/log"
)

// DefaultBins is the histogram bin count of the distribution charts.
const DefaultBins = 30

// TopFeatures is the number of bars on the importance chart.
const TopFeatures = 15

// Inputs are the data a full render draws from. Results and Comparisons
// are optional; their charts are skipped when absent.
type Inputs struct {
	Data        *frame.Frame
	Results     *modeling.Results
	Comparisons []*modeling.ComparisonTable
}

// Renderer writes chart fragments into Dir.
type Renderer struct {
	Dir     string
	Theme   Theme
	Workers int
}

// NewRenderer returns a Renderer with the default theme.
func NewRenderer(dir string) *Renderer {
	return &Renderer{Dir: dir, Theme: DefaultTheme()}
}

type job struct {
	name  string
	build func() (*plot.Plot, error)
}

func (r *Renderer) jobs(in Inputs) []job {
	t := r.Theme
	f := in.Data
	var jobs []job
	if f != nil {
		jobs = append(jobs,
			job{FileGlobalMap, func() (*plot.Plot, error) { return GlobalMap(f, t) }},
			job{FileCorrelation, func() (*plot.Plot, error) {
				names, corr, err := analysis.Correlation(f, analysis.CorrelationColumns)
				if err != nil {
					return nil, err
				}
				return CorrelationHeatmap(names, corr, t)
			}},
			job{FilePathogenHost, func() (*plot.Plot, error) { return PathogenHostDistribution(f, t) }},
		)
		for _, metric := range Metrics {
			metric := metric
			for _, system := range dataset.Systems {
				system := system
				jobs = append(jobs, job{MismatchFile(system, metric), func() (*plot.Plot, error) {
					return AnomalyResponse(f, system, metric, t)
				}})
			}
			jobs = append(jobs,
				job{ViolinFile(metric), func() (*plot.Plot, error) { return PathogenBoxes(f, metric, t) }},
				job{DistributionFile(metric), func() (*plot.Plot, error) { return AnomalyDistribution(f, metric, DefaultBins, t) }},
			)
		}
	}
	if imp := importances(in.Results); len(imp) > 0 {
		jobs = append(jobs, job{FileFeatureImportance, func() (*plot.Plot, error) {
			names := make([]string, len(imp))
			vals := make([]float64, len(imp))
			for i, v := range imp {
				names[i], vals[i] = v.Feature, v.Importance
			}
			return FeatureImportance(names, vals, TopFeatures, t)
		}})
	}
	for _, table := range in.Comparisons {
		table := table
		jobs = append(jobs, job{ComparisonFile(table.System), func() (*plot.Plot, error) {
			return ModelComparison(table, t)
		}})
	}
	return jobs
}

// importances picks the Wild subset's importances, falling back to the
// first subset that has any.
func importances(res *modeling.Results) []modeling.Importance {
	if res == nil {
		return nil
	}
	if s, ok := res.Subset(dataset.SystemWild); ok && len(s.Importances) > 0 {
		return s.Importances
	}
	for _, s := range res.Subsets {
		if len(s.Importances) > 0 {
			return s.Importances
		}
	}
	return nil
}

// skippable reports chart failures caused by the input lacking what the
// chart draws, as opposed to rendering errors.
func skippable(err error) bool {
	return errors.Is(err, errors.ErrMissingColumn) || errors.Is(err, errors.ErrEmptyData)
}

// RenderAll renders every chart the inputs support and returns the written
// paths in job order. Charts whose columns are missing are skipped with a
// warning; any other failure aborts the render.
func (r *Renderer) RenderAll(ctx context.Context, in Inputs) ([]string, error) {
	logger := log.GetLoggerWithName("charts").With(log.OperationKey, log.OperationRender)
	start := time.Now()
	jobs := r.jobs(in)

	paths, err := parallel.Map(ctx, len(jobs), parallel.Workers(r.Workers), func(ctx context.Context, i int) (string, error) {
		j := jobs[i]
		p, err := j.build()
		if err != nil {
			if skippable(err) {
				logger.Warn("Chart skipped", "artifact", j.name, log.ErrorKey, err.Error())
				return "", nil
			}
			return "", errors.Wrapf(err, "chart %s", j.name)
		}
		return WriteFragment(p, r.Theme, r.Dir, j.name)
	})
	if err != nil {
		return nil, err
	}

	out := paths[:0]
	for _, p := range paths {
		if p != "" {
			out = append(out, p)
		}
	}
	logger.Info("Charts rendered",
		log.PathKey, r.Dir,
		"charts", len(out),
		"skipped", len(jobs)-len(out),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return out, nil
}
