package model_selection

import (
	"context"

	"gonum.org/v1/gonum/mat"

	"github.com/banerjixplores/climacrop/core/frame"
	"github.com/banerjixplores/climacrop/core/model"
	"github.com/banerjixplores/climacrop/core/parallel"
	"github.com/banerjixplores/climacrop/metrics"
	"github.com/banerjixplores/climacrop/pkg/errors"
)

// TakeRows returns the rows of an n×1 target in the given order.
func TakeRows(y mat.Matrix, rows []int) *mat.Dense {
	out := mat.NewDense(len(rows), 1, nil)
	for i, r := range rows {
		out.Set(i, 0, y.At(r, 0))
	}
	return out
}

// Subset returns the table rows and target rows selected by rows.
func Subset(f *frame.Frame, y mat.Matrix, rows []int) (*frame.Frame, *mat.Dense) {
	return f.Take(rows), TakeRows(y, rows)
}

// fitScore fits a clone of est on the fold's training rows and returns the
// R² on its validation rows together with the validation predictions.
func fitScore(est model.FrameRegressor, params map[string]interface{}, f *frame.Frame, y mat.Matrix, fold Fold) (float64, mat.Matrix, error) {
	m := est.Clone().(model.FrameRegressor)
	if len(params) > 0 {
		if err := m.SetParams(params); err != nil {
			return 0, nil, err
		}
	}
	fTrain, yTrain := Subset(f, y, fold.Train)
	if err := m.Fit(fTrain, yTrain); err != nil {
		return 0, nil, err
	}
	fTest, yTest := Subset(f, y, fold.Test)
	pred, err := m.Predict(fTest)
	if err != nil {
		return 0, nil, err
	}
	score, err := metrics.R2ScoreMatrix(yTest, pred)
	if err != nil {
		return 0, nil, err
	}
	return score, pred, nil
}

// CrossValScore returns the R² of est on every fold of cv.
func CrossValScore(ctx context.Context, est model.FrameRegressor, f *frame.Frame, y mat.Matrix, cv KFold, nJobs int) ([]float64, error) {
	folds, err := cv.Split(f.NRows())
	if err != nil {
		return nil, err
	}
	return parallel.Map(ctx, len(folds), parallel.Workers(nJobs), func(ctx context.Context, i int) (float64, error) {
		score, _, err := fitScore(est, nil, f, y, folds[i])
		if err != nil {
			return 0, errors.Wrapf(err, "fold %d", i)
		}
		return score, nil
	})
}

// CrossValPredict returns out-of-fold predictions: every row is predicted by
// a clone fitted on the folds that exclude it.
func CrossValPredict(ctx context.Context, est model.FrameRegressor, f *frame.Frame, y mat.Matrix, cv KFold, nJobs int) (*mat.Dense, error) {
	folds, err := cv.Split(f.NRows())
	if err != nil {
		return nil, err
	}
	preds, err := parallel.Map(ctx, len(folds), parallel.Workers(nJobs), func(ctx context.Context, i int) (mat.Matrix, error) {
		_, pred, err := fitScore(est, nil, f, y, folds[i])
		if err != nil {
			return nil, errors.Wrapf(err, "fold %d", i)
		}
		return pred, nil
	})
	if err != nil {
		return nil, err
	}

	out := mat.NewDense(f.NRows(), 1, nil)
	for i, fold := range folds {
		for j, row := range fold.Test {
			out.Set(row, 0, preds[i].At(j, 0))
		}
	}
	return out, nil
}
