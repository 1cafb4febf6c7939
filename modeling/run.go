package modeling

import (
	"context"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/banerjixplores/climacrop/core/frame"
	"github.com/banerjixplores/climacrop/core/model"
	"github.com/banerjixplores/climacrop/dataset"
	"github.com/banerjixplores/climacrop/metrics"
	"github.com/banerjixplores/climacrop/pkg/errors"
	"github.com/banerjixplores/climacrop/pkg/log"
	"github.com/banerjixplores/climacrop/sklearn/model_selection"
)

// Artifact names and files in the models directory.
const (
	ResultsArtifact = "ModelingResults"
	ResultsFile     = "modeling_results.json"
)

// SubsetResult is the tuned model of one system type.
type SubsetResult struct {
	System      string                    `json:"system_type"`
	Model       string                    `json:"model"`
	NTrain      int                       `json:"n_train"`
	NTest       int                       `json:"n_test"`
	R2          float64                   `json:"r2"`
	MSE         float64                   `json:"mse"`
	BestParams  map[string]interface{}    `json:"best_params"`
	BestCVScore float64                   `json:"best_cv_score"`
	CVResults   model_selection.CVResults `json:"cv_results"`
	Importances []Importance              `json:"importances,omitempty"`
}

// Results is one modeling run over both system types.
type Results struct {
	RunID   string         `json:"run_id"`
	Subsets []SubsetResult `json:"subsets"`

	// Searches holds the fitted searches by system type. Not persisted.
	Searches map[string]*model_selection.GridSearchCV `json:"-"`
}

// Subset returns the result for system.
func (r *Results) Subset(system string) (SubsetResult, bool) {
	for _, s := range r.Subsets {
		if s.System == system {
			return s, true
		}
	}
	return SubsetResult{}, false
}

// Run tunes one model per system type on a prepared table and scores each
// on its held-out rows. Any failure aborts the whole run.
func Run(ctx context.Context, f *frame.Frame, cfg Config) (*Results, error) {
	logger := log.GetLoggerWithName("modeling")
	res := &Results{
		RunID:    uuid.NewString(),
		Searches: make(map[string]*model_selection.GridSearchCV, len(dataset.Systems)),
	}
	logger = logger.With(log.RunIDKey, res.RunID)
	pre := DefaultPreprocessor(f)

	for _, system := range dataset.Systems {
		start := time.Now()
		s, err := SplitSystem(f, system, cfg)
		if err != nil {
			return nil, err
		}
		gs, err := Tune(ctx, s, pre, cfg)
		if err != nil {
			return nil, errors.Wrapf(err, "system %s", system)
		}
		pred, err := gs.Predict(s.Test)
		if err != nil {
			return nil, errors.Wrapf(err, "system %s", system)
		}
		r2, err := metrics.R2ScoreMatrix(s.YTest, pred)
		if err != nil {
			return nil, err
		}
		mse, err := metrics.MSEMatrix(s.YTest, pred)
		if err != nil {
			return nil, err
		}

		sr := SubsetResult{
			System:      system,
			Model:       CandidateModel(system),
			NTrain:      s.Train.NRows(),
			NTest:       s.Test.NRows(),
			R2:          r2,
			MSE:         mse,
			BestParams:  gs.BestParams_,
			BestCVScore: gs.BestScore_,
			CVResults:   gs.CVResults_,
		}
		if sr.Importances, err = FeatureImportance(s, pre); err != nil {
			return nil, errors.Wrapf(err, "importances for %s", system)
		}
		res.Subsets = append(res.Subsets, sr)
		res.Searches[system] = gs
		cfg.Metrics.ObserveFit(system, sr.Model, start)

		logger.Info("Subset tuned",
			log.SystemKey, system,
			log.ModelNameKey, sr.Model,
			"r2", r2,
			"mse", mse,
			"best_cv_score", gs.BestScore_,
			log.DurationMsKey, time.Since(start).Milliseconds(),
		)
	}
	return res, nil
}

// SaveResults writes r to dir/modeling_results.json.
func SaveResults(r *Results, dir string) (string, error) {
	a, err := model.NewArtifact(ResultsArtifact, r)
	if err != nil {
		return "", err
	}
	a.Spec.RunID = r.RunID
	path := filepath.Join(dir, ResultsFile)
	return path, model.SaveArtifact(a, path)
}

// LoadResults reads a file written by SaveResults.
func LoadResults(path string) (*Results, error) {
	a, err := model.LoadArtifact(path)
	if err != nil {
		return nil, err
	}
	var r Results
	if err := a.Decode(ResultsArtifact, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
