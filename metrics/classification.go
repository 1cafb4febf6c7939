package metrics

import (
	"github.com/banerjixplores/climacrop/pkg/errors"
)

// AccuracyScore is the fraction of labels predicted exactly.
//
// Parameters:
//   - yTrue: Ground truth labels
//   - yPred: Predicted labels
//
// Returns:
//   - The accuracy (between 0 and 1)
//   - An error if inputs are empty or of different lengths
func AccuracyScore(yTrue, yPred []string) (float64, error) {
	if len(yTrue) == 0 {
		return 0, errors.NewValueError("AccuracyScore", "input labels cannot be empty")
	}
	if len(yTrue) != len(yPred) {
		return 0, errors.NewDimensionError("AccuracyScore", len(yTrue), len(yPred), 0)
	}

	correct := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(yTrue)), nil
}

// PerClassAccuracy returns, for each label in classes, the fraction of rows
// whose true label is that class and whose prediction matches. Classes that
// never occur in yTrue score 0 and are absent from the second map.
func PerClassAccuracy(yTrue, yPred []string, classes []string) (map[string]float64, map[string]bool, error) {
	if len(yTrue) != len(yPred) {
		return nil, nil, errors.NewDimensionError("PerClassAccuracy", len(yTrue), len(yPred), 0)
	}

	total := make(map[string]int, len(classes))
	hit := make(map[string]int, len(classes))
	for i, t := range yTrue {
		total[t]++
		if yPred[i] == t {
			hit[t]++
		}
	}

	acc := make(map[string]float64, len(classes))
	seen := make(map[string]bool, len(classes))
	for _, c := range classes {
		if total[c] == 0 {
			acc[c] = 0
			continue
		}
		acc[c] = float64(hit[c]) / float64(total[c])
		seen[c] = true
	}
	return acc, seen, nil
}
