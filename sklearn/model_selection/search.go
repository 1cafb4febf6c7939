package model_selection

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/banerjixplores/climacrop/core/frame"
	"github.com/banerjixplores/climacrop/core/model"
	"github.com/banerjixplores/climacrop/core/parallel"
	"github.com/banerjixplores/climacrop/pkg/errors"
	"github.com/banerjixplores/climacrop/pkg/log"
	pmetrics "github.com/banerjixplores/climacrop/pkg/metrics"
)

// CVResults summarizes every grid candidate, in candidate order.
type CVResults struct {
	Params        []map[string]interface{} `json:"params"`
	SplitScores   [][]float64              `json:"split_test_scores"`
	MeanTestScore []float64                `json:"mean_test_score"`
	StdTestScore  []float64                `json:"std_test_score"`
	RankTestScore []int                    `json:"rank_test_score"`
}

// GridSearchCV evaluates every combination of ParamGrid on the folds of CV
// and refits the best one on all rows.
//
// The (candidate, fold) fits fan out over a bounded worker pool. The first
// failing fit cancels the rest and Fit returns its error.
type GridSearchCV struct {
	Estimator model.FrameRegressor
	ParamGrid ParamGrid
	CV        KFold
	NJobs     int
	Refit     bool

	// Label tags log lines and metrics, e.g. the system type being tuned.
	Label   string
	Metrics *pmetrics.Collector

	CVResults_     CVResults
	BestIndex_     int
	BestParams_    map[string]interface{}
	BestScore_     float64
	BestEstimator_ model.FrameRegressor

	logger log.Logger
}

// NewGridSearchCV creates a search over grid with cv, refitting the winner.
func NewGridSearchCV(est model.FrameRegressor, grid ParamGrid, cv KFold) *GridSearchCV {
	return &GridSearchCV{
		Estimator: est,
		ParamGrid: grid,
		CV:        cv,
		Refit:     true,
		logger:    log.GetLoggerWithName("GridSearchCV"),
	}
}

// Fit runs the search. Candidates are ranked by mean validation R²; ties
// keep the earlier candidate.
func (g *GridSearchCV) Fit(ctx context.Context, f *frame.Frame, y mat.Matrix) error {
	start := time.Now()
	candidates, err := g.ParamGrid.Candidates()
	if err != nil {
		return err
	}
	folds, err := g.CV.Split(f.NRows())
	if err != nil {
		return err
	}

	nFolds := len(folds)
	tasks := len(candidates) * nFolds
	g.logger.Info("Grid search started",
		log.OperationKey, log.OperationTune,
		log.SystemKey, g.Label,
		"candidates", len(candidates),
		"folds", nFolds,
		log.SamplesKey, f.NRows(),
	)

	scores, err := parallel.Map(ctx, tasks, parallel.Workers(g.NJobs), func(ctx context.Context, t int) (float64, error) {
		c, k := t/nFolds, t%nFolds
		score, _, err := fitScore(g.Estimator, candidates[c], f, y, folds[k])
		if err != nil {
			return 0, errors.Wrapf(err, "candidate %s fold %d", model.FormatParams(candidates[c]), k)
		}
		g.Metrics.GridFit(g.Label)
		return score, nil
	})
	if err != nil {
		return errors.Wrap(err, "grid search")
	}

	res := CVResults{
		Params:        candidates,
		SplitScores:   make([][]float64, len(candidates)),
		MeanTestScore: make([]float64, len(candidates)),
		StdTestScore:  make([]float64, len(candidates)),
	}
	best := 0
	for c := range candidates {
		split := scores[c*nFolds : (c+1)*nFolds]
		res.SplitScores[c] = split
		res.MeanTestScore[c] = stat.Mean(split, nil)
		res.StdTestScore[c] = stat.PopStdDev(split, nil)
		if res.MeanTestScore[c] > res.MeanTestScore[best] {
			best = c
		}
	}
	res.RankTestScore = rank(res.MeanTestScore)

	g.CVResults_ = res
	g.BestIndex_ = best
	g.BestParams_ = candidates[best]
	g.BestScore_ = res.MeanTestScore[best]

	if g.Refit {
		m := g.Estimator.Clone().(model.FrameRegressor)
		if err := m.SetParams(g.BestParams_); err != nil {
			return err
		}
		if err := m.Fit(f, y); err != nil {
			return errors.Wrap(err, "refit best candidate")
		}
		g.BestEstimator_ = m
	}

	g.Metrics.ObserveFit(g.Label, "grid_search", start)
	g.logger.Info("Grid search finished",
		log.OperationKey, log.OperationTune,
		log.SystemKey, g.Label,
		"best_params", model.FormatParams(g.BestParams_),
		"best_score", g.BestScore_,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// Predict uses the refitted best estimator.
func (g *GridSearchCV) Predict(f *frame.Frame) (mat.Matrix, error) {
	if g.BestEstimator_ == nil {
		return nil, errors.NewNotFittedError("GridSearchCV", "Predict")
	}
	return g.BestEstimator_.Predict(f)
}

func (g *GridSearchCV) String() string {
	return fmt.Sprintf("GridSearchCV(candidates=%d, cv=%d)", g.ParamGrid.Size(), g.CV.NSplits)
}

// rank assigns 1 to the highest score; equal scores share the lower rank.
func rank(scores []float64) []int {
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })
	ranks := make([]int, len(scores))
	for pos, idx := range order {
		if pos > 0 && scores[idx] == scores[order[pos-1]] {
			ranks[idx] = ranks[order[pos-1]]
			continue
		}
		ranks[idx] = pos + 1
	}
	return ranks
}
