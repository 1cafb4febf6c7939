package modeling

import (
	"math"
	"path/filepath"

	"gonum.org/v1/gonum/mat"

	"github.com/banerjixplores/climacrop/core/frame"
	"github.com/banerjixplores/climacrop/core/model"
	"github.com/banerjixplores/climacrop/dataset"
	"github.com/banerjixplores/climacrop/pkg/errors"
	"github.com/banerjixplores/climacrop/pkg/log"
	"github.com/banerjixplores/climacrop/sklearn/tree"
)

// Zone model persistence.
const (
	ZoneModelArtifact = "ZoneClassifier"
	ZoneModelFile     = "best_model.json"
)

// Zone model shape.
const (
	ZoneMaxDepth       = 5
	ZoneMinSamplesLeaf = 5
)

// ZoneFeatures are the simulator inputs, in column order.
var ZoneFeatures = []string{dataset.ColTempAnomaly, dataset.ColRainAnomaly}

// ZoneModel predicts the incidence zone of a temperature and rainfall
// anomaly.
type ZoneModel struct {
	Features []string                     `json:"features"`
	Tree     *tree.DecisionTreeClassifier `json:"tree"`
}

// TrainZoneModel fits a shallow decision tree on the rows of f that have
// both anomalies and a zone.
func TrainZoneModel(f *frame.Frame) (*ZoneModel, error) {
	temp, err := f.Float(dataset.ColTempAnomaly)
	if err != nil {
		return nil, errors.Wrap(err, "zone model")
	}
	rain, err := f.Float(dataset.ColRainAnomaly)
	if err != nil {
		return nil, errors.Wrap(err, "zone model")
	}
	zones, err := f.Text(dataset.ColIncidenceZone)
	if err != nil {
		return nil, errors.Wrap(err, "zone model")
	}

	var data []float64
	var labels []string
	for i := range zones {
		if zones[i] == "" || math.IsNaN(temp[i]) || math.IsNaN(rain[i]) {
			continue
		}
		data = append(data, temp[i], rain[i])
		labels = append(labels, zones[i])
	}
	if len(labels) == 0 {
		return nil, errors.NewModelError("modeling.TrainZoneModel", "no labelled rows", errors.ErrEmptyData)
	}

	clf := tree.NewDecisionTreeClassifier(
		tree.WithClassifierMaxDepth(ZoneMaxDepth),
		tree.WithClassifierMinSamplesLeaf(ZoneMinSamplesLeaf),
	)
	if err := clf.Fit(mat.NewDense(len(labels), len(ZoneFeatures), data), labels); err != nil {
		return nil, err
	}
	log.GetLoggerWithName("modeling").Info("Zone model trained",
		log.ModelNameKey, ZoneModelArtifact,
		log.SamplesKey, len(labels),
		"depth", clf.GetDepth(),
		"leaves", clf.GetNLeaves(),
	)
	return &ZoneModel{Features: append([]string(nil), ZoneFeatures...), Tree: clf}, nil
}

// Predict returns the zone for one scenario.
func (z *ZoneModel) Predict(tempAnomaly, rainAnomaly float64) (string, error) {
	if z == nil || z.Tree == nil {
		return "", errors.NewNotFittedError("ZoneModel", "Predict")
	}
	out, err := z.Tree.Predict(mat.NewDense(1, 2, []float64{tempAnomaly, rainAnomaly}))
	if err != nil {
		return "", err
	}
	return out[0], nil
}

// SaveZoneModel writes z to dir/best_model.json.
func SaveZoneModel(z *ZoneModel, dir string) (string, error) {
	a, err := model.NewArtifact(ZoneModelArtifact, z)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, ZoneModelFile)
	return path, model.SaveArtifact(a, path)
}

// LoadZoneModel reads a file written by SaveZoneModel.
func LoadZoneModel(path string) (*ZoneModel, error) {
	a, err := model.LoadArtifact(path)
	if err != nil {
		return nil, err
	}
	var z ZoneModel
	if err := a.Decode(ZoneModelArtifact, &z); err != nil {
		return nil, err
	}
	if z.Tree == nil || len(z.Features) != len(ZoneFeatures) {
		return nil, errors.NewValueError("modeling.LoadZoneModel", "artifact has no tree")
	}
	return &z, nil
}
