package modeling

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/banerjixplores/climacrop/core/frame"
	"github.com/banerjixplores/climacrop/core/model"
	"github.com/banerjixplores/climacrop/dataset"
	"github.com/banerjixplores/climacrop/metrics"
	"github.com/banerjixplores/climacrop/pkg/errors"
	"github.com/banerjixplores/climacrop/pkg/log"
	"github.com/banerjixplores/climacrop/sklearn/model_selection"
)

// ComparisonArtifact names the persisted comparison table.
const ComparisonArtifact = "ModelComparison"

// Comparison scores one pipeline on one system type.
type Comparison struct {
	Model   string  `json:"model"`
	CVR2    float64 `json:"cv_r2"`
	CVR2Std float64 `json:"cv_r2_std"`
	TestR2  float64 `json:"test_r2"`
	TestMSE float64 `json:"test_mse"`
	// ZoneAccuracy is, per true incidence zone of the test rows, the share
	// whose predicted incidence falls in the same zone.
	ZoneAccuracy map[string]float64 `json:"zone_accuracy"`
	// ZoneSupport counts test rows per true zone.
	ZoneSupport map[string]int `json:"zone_support"`
}

// ComparisonTable is the comparison of every pipeline on one system type.
type ComparisonTable struct {
	System string       `json:"system_type"`
	RunID  string       `json:"run_id,omitempty"`
	Rows   []Comparison `json:"rows"`
}

// ComparisonFile is the models-directory file name for system.
func ComparisonFile(system string) string {
	return fmt.Sprintf("comparison_%s.json", system)
}

// CompareModels evaluates the five pipelines on the rows of system: k-fold
// R² on the training rows, then a refit scored on the held-out rows.
func CompareModels(ctx context.Context, f *frame.Frame, system string, cfg Config) (*ComparisonTable, error) {
	logger := log.GetLoggerWithName("modeling").With(log.SystemKey, system)
	s, err := SplitSystem(f, system, cfg)
	if err != nil {
		return nil, err
	}
	pre := DefaultPreprocessor(f)
	table := &ComparisonTable{System: s.System}

	for _, name := range ModelNames {
		start := time.Now()
		est, _ := MakePipeline(name, pre)

		scores, err := model_selection.CrossValScore(ctx, est, s.Train, s.YTrain, cfg.KFold(), cfg.NJobs)
		if err != nil {
			return nil, errors.Wrapf(err, "cross-validate %s", name)
		}
		fitted := est.Clone().(model.FrameRegressor)
		if err := fitted.Fit(s.Train, s.YTrain); err != nil {
			return nil, errors.Wrapf(err, "fit %s", name)
		}
		pred, err := fitted.Predict(s.Test)
		if err != nil {
			return nil, errors.Wrapf(err, "predict %s", name)
		}

		row := Comparison{
			Model:   name,
			CVR2:    stat.Mean(scores, nil),
			CVR2Std: stat.PopStdDev(scores, nil),
		}
		if row.TestR2, err = metrics.R2ScoreMatrix(s.YTest, pred); err != nil {
			return nil, err
		}
		if row.TestMSE, err = metrics.MSEMatrix(s.YTest, pred); err != nil {
			return nil, err
		}
		if row.ZoneAccuracy, row.ZoneSupport, err = ZoneAccuracy(model.Vector(s.YTest), model.Vector(pred)); err != nil {
			return nil, err
		}
		table.Rows = append(table.Rows, row)
		cfg.Metrics.ObserveFit(s.System, name, start)

		logger.Info("Model compared",
			log.ModelNameKey, name,
			"cv_r2", row.CVR2,
			"test_r2", row.TestR2,
			log.DurationMsKey, time.Since(start).Milliseconds(),
		)
	}
	return table, nil
}

// ZoneAccuracy buckets true and predicted incidence into zones and returns
// the per-zone hit rate with the number of true rows per zone.
func ZoneAccuracy(yTrue, yPred []float64) (map[string]float64, map[string]int, error) {
	if len(yTrue) != len(yPred) {
		return nil, nil, errors.NewDimensionError("ZoneAccuracy", len(yTrue), len(yPred), 0)
	}
	trueZones := make([]string, len(yTrue))
	predZones := make([]string, len(yPred))
	support := make(map[string]int, len(dataset.Zones))
	for i := range yTrue {
		trueZones[i] = dataset.ZoneOf(yTrue[i])
		predZones[i] = dataset.ZoneOf(yPred[i])
		support[trueZones[i]]++
	}
	acc, _, err := metrics.PerClassAccuracy(trueZones, predZones, dataset.Zones)
	if err != nil {
		return nil, nil, err
	}
	out := make(map[string]int, len(dataset.Zones))
	for _, z := range dataset.Zones {
		out[z] = support[z]
	}
	return acc, out, nil
}

// SaveComparison writes t to dir under ComparisonFile.
func SaveComparison(t *ComparisonTable, dir string) (string, error) {
	a, err := model.NewArtifact(ComparisonArtifact, t)
	if err != nil {
		return "", err
	}
	a.Spec.SystemType = t.System
	a.Spec.RunID = t.RunID
	path := filepath.Join(dir, ComparisonFile(t.System))
	return path, model.SaveArtifact(a, path)
}

// LoadComparison reads a file written by SaveComparison.
func LoadComparison(path string) (*ComparisonTable, error) {
	a, err := model.LoadArtifact(path)
	if err != nil {
		return nil, err
	}
	var t ComparisonTable
	if err := a.Decode(ComparisonArtifact, &t); err != nil {
		return nil, err
	}
	return &t, nil
}
