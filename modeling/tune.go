package modeling

import (
	"context"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/banerjixplores/climacrop/core/frame"
	"github.com/banerjixplores/climacrop/core/model"
	"github.com/banerjixplores/climacrop/dataset"
	"github.com/banerjixplores/climacrop/pkg/errors"
	pmetrics "github.com/banerjixplores/climacrop/pkg/metrics"
	"github.com/banerjixplores/climacrop/sklearn/model_selection"
)

// Config controls splitting, cross-validation and parallelism.
type Config struct {
	RandomState int64
	TestSize    float64
	CVFolds     int
	// NJobs bounds the worker pool; 0 or less uses every CPU.
	NJobs   int
	Metrics *pmetrics.Collector
}

// DefaultConfig is seed 42, a 20% test split and 5 folds.
func DefaultConfig() Config {
	return Config{RandomState: RandomState, TestSize: 0.2, CVFolds: 5}
}

// KFold is the shuffled splitter used for tuning and comparison.
func (c Config) KFold() model_selection.KFold {
	return model_selection.NewKFold(c.CVFolds, true, c.RandomState)
}

// Subset is one system type split into train and test rows.
type Subset struct {
	System string
	Train  *frame.Frame
	Test   *frame.Frame
	YTrain *mat.Dense
	YTest  *mat.Dense
}

// Target drops rows without incidence and returns the rest with incidence
// as a column vector.
func Target(f *frame.Frame) (*frame.Frame, *mat.Dense, error) {
	inc, err := f.Float(dataset.ColIncidence)
	if err != nil {
		return nil, nil, errors.Wrap(err, "target")
	}
	kept := f.Filter(func(i int) bool { return !math.IsNaN(inc[i]) })
	if kept.NRows() == 0 {
		return nil, nil, errors.NewModelError("modeling.Target", "no rows with incidence", errors.ErrEmptyData)
	}
	y, _ := kept.Float(dataset.ColIncidence)
	return kept, model.ColVec(y), nil
}

// SplitSystem selects the rows of system and holds out cfg.TestSize of them.
func SplitSystem(f *frame.Frame, system string, cfg Config) (*Subset, error) {
	rows, err := dataset.BySystem(f, system)
	if err != nil {
		return nil, err
	}
	x, y, err := Target(rows)
	if err != nil {
		return nil, errors.Wrapf(err, "system %s", system)
	}
	train, test, err := model_selection.TrainTestSplit(x.NRows(), cfg.TestSize, cfg.RandomState)
	if err != nil {
		return nil, errors.Wrapf(err, "system %s", system)
	}
	xTrain, yTrain := model_selection.Subset(x, y, train)
	xTest, yTest := model_selection.Subset(x, y, test)
	norm, _ := dataset.NormalizeSystem(system)
	return &Subset{System: norm, Train: xTrain, Test: xTest, YTrain: yTrain, YTest: yTest}, nil
}

// AgriculturalGrid tunes the boosting member and the ridge alphas of the stack.
func AgriculturalGrid() model_selection.ParamGrid {
	return model_selection.ParamGrid{
		StackXGB + "__regressor__learning_rate": {0.01, 0.1},
		StackXGB + "__regressor__max_depth":     {3, 5},
		StackRidgeSpline + "__regressor__alphas": {
			[]float64{0.001, 0.01, 0.1},
			[]float64{0.01, 0.1, 1},
		},
	}
}

// WildGrid tunes the climate spline basis and the ridge alphas.
func WildGrid() model_selection.ParamGrid {
	return model_selection.ParamGrid{
		"preprocessor__" + BlockClimate + "__" + StepSpline + "__n_knots": {5, 7, 9},
		"preprocessor__" + BlockClimate + "__" + StepSpline + "__degree":  {3, 4},
		"regressor__alphas": {
			[]float64{0.001, 0.01, 0.1},
			[]float64{0.01, 0.1, 1},
			[]float64{0.1, 1, 10},
		},
	}
}

func newSearch(est model.FrameRegressor, grid model_selection.ParamGrid, system string, cfg Config) *model_selection.GridSearchCV {
	gs := model_selection.NewGridSearchCV(est, grid, cfg.KFold())
	gs.NJobs = cfg.NJobs
	gs.Label = system
	gs.Metrics = cfg.Metrics
	return gs
}

// TuneAgricultural grid-searches the stacking model on the training rows.
func TuneAgricultural(ctx context.Context, s *Subset, pre model.FrameTransformer, cfg Config) (*model_selection.GridSearchCV, error) {
	gs := newSearch(MakeStackingPipeline(pre), AgriculturalGrid(), s.System, cfg)
	if err := gs.Fit(ctx, s.Train, s.YTrain); err != nil {
		return nil, errors.Wrap(err, "tune agricultural")
	}
	return gs, nil
}

// TuneWild grid-searches the ridge-spline pipeline on the training rows.
func TuneWild(ctx context.Context, s *Subset, pre model.FrameTransformer, cfg Config) (*model_selection.GridSearchCV, error) {
	gs := newSearch(MakeRidgeSplinePipeline(pre.Clone().(model.FrameTransformer)), WildGrid(), s.System, cfg)
	if err := gs.Fit(ctx, s.Train, s.YTrain); err != nil {
		return nil, errors.Wrap(err, "tune wild")
	}
	return gs, nil
}

// CandidateModel is the pipeline each system is tuned with.
func CandidateModel(system string) string {
	if system == dataset.SystemAgricultural {
		return ModelStacking
	}
	return ModelRidgeSpline
}

// Tune runs the search for s's system.
func Tune(ctx context.Context, s *Subset, pre model.FrameTransformer, cfg Config) (*model_selection.GridSearchCV, error) {
	switch s.System {
	case dataset.SystemAgricultural:
		return TuneAgricultural(ctx, s, pre, cfg)
	case dataset.SystemWild:
		return TuneWild(ctx, s, pre, cfg)
	}
	return nil, errors.NewValidationError(dataset.ColSystemType, "must be Agricultural or Wild", s.System)
}
