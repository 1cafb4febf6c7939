package modeling

import (
	"sort"

	"github.com/banerjixplores/climacrop/core/model"
)

// Importance is a design-matrix column and its impurity importance.
type Importance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// FeatureImportance fits the random-forest pipeline on the training rows of
// s and returns its importances, largest first.
func FeatureImportance(s *Subset, pre model.FrameTransformer) ([]Importance, error) {
	rf := MakeRFPipeline(pre.Clone().(model.FrameTransformer))
	if err := rf.Fit(s.Train, s.YTrain); err != nil {
		return nil, err
	}
	imp, err := rf.FeatureImportances()
	if err != nil {
		return nil, err
	}
	names := rf.GetFeatureNamesOut()
	out := make([]Importance, len(imp))
	for i := range imp {
		out[i] = Importance{Feature: names[i], Importance: imp[i]}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Importance > out[b].Importance })
	return out, nil
}
