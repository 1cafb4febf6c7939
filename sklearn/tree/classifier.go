package tree

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/banerjixplores/climacrop/core/model"
	"github.com/banerjixplores/climacrop/pkg/errors"
)

// Splitting criteria for DecisionTreeClassifier.
const (
	CriterionGini    = "gini"
	CriterionEntropy = "entropy"
)

// DecisionTreeClassifier implements a decision tree for string class labels
type DecisionTreeClassifier struct {
	state *model.StateManager // State management

	// Hyperparameters
	criterion           string  // Splitting criterion: "gini", "entropy"
	maxDepth            int     // Maximum depth of tree (0 = unlimited)
	minSamplesSplit     int     // Minimum samples to split a node
	minSamplesLeaf      int     // Minimum samples in a leaf
	minImpurityDecrease float64 // Minimum impurity decrease for split

	// Tree structure
	tree_     Tree     // Fitted nodes; Node.Value is a class index
	classes_  []string // Sorted class labels
	nFeatures int

	// Feature importance
	featureImportances_ []float64 // Feature importance scores
}

// DecisionTreeClassifierOption is a functional option
type DecisionTreeClassifierOption func(*DecisionTreeClassifier)

// NewDecisionTreeClassifier creates a new decision tree classifier
func NewDecisionTreeClassifier(opts ...DecisionTreeClassifierOption) *DecisionTreeClassifier {
	dt := &DecisionTreeClassifier{
		state:           model.NewStateManager(),
		criterion:       CriterionGini,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
	}
	for _, opt := range opts {
		opt(dt)
	}
	return dt
}

// WithCriterion sets the splitting criterion
func WithCriterion(criterion string) DecisionTreeClassifierOption {
	return func(dt *DecisionTreeClassifier) { dt.criterion = criterion }
}

// WithClassifierMaxDepth sets the maximum tree depth
func WithClassifierMaxDepth(depth int) DecisionTreeClassifierOption {
	return func(dt *DecisionTreeClassifier) { dt.maxDepth = depth }
}

// WithClassifierMinSamplesLeaf sets minimum samples in leaf
func WithClassifierMinSamplesLeaf(n int) DecisionTreeClassifierOption {
	return func(dt *DecisionTreeClassifier) { dt.minSamplesLeaf = n }
}

// Fit trains the decision tree on rows of X labelled by labels.
func (dt *DecisionTreeClassifier) Fit(X mat.Matrix, labels []string) (err error) {
	defer errors.Recover(&err, "DecisionTreeClassifier.Fit")
	nSamples, nFeatures := X.Dims()
	if nSamples == 0 {
		return errors.NewModelError("DecisionTreeClassifier.Fit", "empty data", errors.ErrEmptyData)
	}
	if len(labels) != nSamples {
		return errors.NewDimensionError("DecisionTreeClassifier.Fit", nSamples, len(labels), 0)
	}
	if dt.criterion != CriterionGini && dt.criterion != CriterionEntropy {
		return errors.NewValidationError("criterion", "must be gini or entropy", dt.criterion)
	}

	dt.classes_ = sortedClasses(labels)
	classIdx := make(map[string]int, len(dt.classes_))
	for i, c := range dt.classes_ {
		classIdx[c] = i
	}
	y := make([]int, nSamples)
	for i, l := range labels {
		y[i] = classIdx[l]
	}

	dt.nFeatures = nFeatures
	dt.featureImportances_ = make([]float64, nFeatures)
	dt.tree_ = Tree{}

	indices := make([]int, nSamples)
	for i := range indices {
		indices[i] = i
	}
	dt.buildTree(X, y, indices, 0)
	normalize(dt.featureImportances_)

	dt.state.SetDimensions(nFeatures, nSamples)
	dt.state.SetFitted()
	return nil
}

func sortedClasses(labels []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, l := range labels {
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	sort.Strings(out)
	return out
}

// buildTree recursively builds the subtree for indices and returns its node index
func (dt *DecisionTreeClassifier) buildTree(X mat.Matrix, y []int, indices []int, depth int) int {
	nSamples := len(indices)

	classCounts := make([]int, len(dt.classes_))
	for _, i := range indices {
		classCounts[y[i]]++
	}

	// Majority class; ties go to the first class in sorted order
	predictClass := 0
	for i, count := range classCounts {
		if count > classCounts[predictClass] {
			predictClass = i
		}
	}

	impurity := dt.calculateImpurity(classCounts)
	idx := dt.tree_.add(Node{
		Feature:  Leaf,
		Value:    float64(predictClass),
		Counts:   classCounts,
		NSamples: nSamples,
		Impurity: impurity,
		Depth:    depth,
	})

	if dt.shouldStop(nSamples, impurity, depth) {
		return idx
	}

	bestFeature, bestThreshold, bestDecrease := dt.findBestSplit(X, y, indices, impurity)
	if bestFeature == -1 || bestDecrease < dt.minImpurityDecrease {
		return idx
	}

	var leftIdx, rightIdx []int
	for _, i := range indices {
		if X.At(i, bestFeature) <= bestThreshold {
			leftIdx = append(leftIdx, i)
		} else {
			rightIdx = append(rightIdx, i)
		}
	}

	dt.featureImportances_[bestFeature] += bestDecrease * float64(nSamples)

	left := dt.buildTree(X, y, leftIdx, depth+1)
	right := dt.buildTree(X, y, rightIdx, depth+1)
	node := &dt.tree_.Nodes[idx]
	node.Feature = bestFeature
	node.Threshold = bestThreshold
	node.Left = left
	node.Right = right
	return idx
}

// shouldStop checks stopping criteria
func (dt *DecisionTreeClassifier) shouldStop(nSamples int, impurity float64, depth int) bool {
	if dt.maxDepth > 0 && depth >= dt.maxDepth {
		return true
	}
	if nSamples < dt.minSamplesSplit || nSamples < 2*dt.minSamplesLeaf {
		return true
	}
	// Pure node
	return impurity == 0.0
}

// calculateImpurity calculates node impurity using Gini or Entropy
func (dt *DecisionTreeClassifier) calculateImpurity(classCounts []int) float64 {
	total := 0
	for _, count := range classCounts {
		total += count
	}
	if total == 0 {
		return 0.0
	}

	impurity := 0.0
	if dt.criterion == CriterionEntropy {
		// Entropy: -sum(p_i * log2(p_i))
		for _, count := range classCounts {
			if count > 0 {
				p := float64(count) / float64(total)
				impurity -= p * math.Log2(p)
			}
		}
		return impurity
	}

	// Gini impurity: 1 - sum(p_i^2)
	sumSquared := 0.0
	for _, count := range classCounts {
		p := float64(count) / float64(total)
		sumSquared += p * p
	}
	return 1.0 - sumSquared
}

// findBestSplit scans midpoints between consecutive distinct values of every
// feature, updating class counts incrementally along the sorted order.
func (dt *DecisionTreeClassifier) findBestSplit(X mat.Matrix, y []int, indices []int, parentImpurity float64) (int, float64, float64) {
	nSamples := len(indices)
	bestFeature := -1
	bestThreshold := 0.0
	bestDecrease := 0.0

	order := make([]int, nSamples)
	for feature := 0; feature < dt.nFeatures; feature++ {
		copy(order, indices)
		sort.SliceStable(order, func(a, b int) bool {
			return X.At(order[a], feature) < X.At(order[b], feature)
		})

		leftCounts := make([]int, len(dt.classes_))
		rightCounts := make([]int, len(dt.classes_))
		for _, i := range order {
			rightCounts[y[i]]++
		}

		for k := 0; k < nSamples-1; k++ {
			c := y[order[k]]
			leftCounts[c]++
			rightCounts[c]--
			nLeft := k + 1
			nRight := nSamples - nLeft

			v1, v2 := X.At(order[k], feature), X.At(order[k+1], feature)
			if v1 == v2 {
				continue
			}
			if nLeft < dt.minSamplesLeaf || nRight < dt.minSamplesLeaf {
				continue
			}

			weighted := (float64(nLeft)*dt.calculateImpurity(leftCounts) +
				float64(nRight)*dt.calculateImpurity(rightCounts)) / float64(nSamples)
			decrease := parentImpurity - weighted
			if decrease > bestDecrease {
				bestDecrease = decrease
				bestFeature = feature
				bestThreshold = (v1 + v2) / 2.0
			}
		}
	}

	return bestFeature, bestThreshold, bestDecrease
}

// Predict returns the predicted class label of every row of X
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) ([]string, error) {
	if !dt.state.IsFitted() {
		return nil, errors.NewNotFittedError("DecisionTreeClassifier", "Predict")
	}
	nSamples, nFeatures := X.Dims()
	if nFeatures != dt.nFeatures {
		return nil, errors.NewDimensionError("DecisionTreeClassifier.Predict", dt.nFeatures, nFeatures, 1)
	}

	out := make([]string, nSamples)
	for i := 0; i < nSamples; i++ {
		leaf := dt.tree_.Apply(func(j int) float64 { return X.At(i, j) })
		out[i] = dt.classes_[int(dt.tree_.Nodes[leaf].Value)]
	}
	return out, nil
}

// PredictProba returns class probabilities, one column per Classes() entry
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if !dt.state.IsFitted() {
		return nil, errors.NewNotFittedError("DecisionTreeClassifier", "PredictProba")
	}
	nSamples, nFeatures := X.Dims()
	if nFeatures != dt.nFeatures {
		return nil, errors.NewDimensionError("DecisionTreeClassifier.PredictProba", dt.nFeatures, nFeatures, 1)
	}

	probas := mat.NewDense(nSamples, len(dt.classes_), nil)
	for i := 0; i < nSamples; i++ {
		node := dt.tree_.Nodes[dt.tree_.Apply(func(j int) float64 { return X.At(i, j) })]
		for j, count := range node.Counts {
			probas.Set(i, j, float64(count)/float64(node.NSamples))
		}
	}
	return probas, nil
}

// Classes returns the sorted class labels
func (dt *DecisionTreeClassifier) Classes() []string {
	return append([]string(nil), dt.classes_...)
}

// IsFitted reports whether Fit has completed.
func (dt *DecisionTreeClassifier) IsFitted() bool { return dt.state.IsFitted() }

// GetParams returns the model hyperparameters
func (dt *DecisionTreeClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":             dt.criterion,
		"max_depth":             dt.maxDepth,
		"min_samples_split":     dt.minSamplesSplit,
		"min_samples_leaf":      dt.minSamplesLeaf,
		"min_impurity_decrease": dt.minImpurityDecrease,
	}
}

// SetParams sets the model hyperparameters
func (dt *DecisionTreeClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var err error
		switch key {
		case "criterion":
			dt.criterion, err = model.ParamString(key, value)
		case "max_depth":
			dt.maxDepth, err = model.ParamInt(key, value)
		case "min_samples_split":
			dt.minSamplesSplit, err = model.ParamInt(key, value)
		case "min_samples_leaf":
			dt.minSamplesLeaf, err = model.ParamInt(key, value)
		case "min_impurity_decrease":
			dt.minImpurityDecrease, err = model.ParamFloat(key, value)
		default:
			return model.UnknownParam("DecisionTreeClassifier", key)
		}
		if err != nil {
			return err
		}
	}
	dt.state.Reset()
	return nil
}

// Clone returns an unfitted copy with the same hyperparameters
func (dt *DecisionTreeClassifier) Clone() model.Estimator {
	c := NewDecisionTreeClassifier()
	c.criterion, c.maxDepth = dt.criterion, dt.maxDepth
	c.minSamplesSplit, c.minSamplesLeaf = dt.minSamplesSplit, dt.minSamplesLeaf
	c.minImpurityDecrease = dt.minImpurityDecrease
	return c
}

// FeatureImportances returns feature importance scores
func (dt *DecisionTreeClassifier) FeatureImportances() ([]float64, error) {
	if !dt.state.IsFitted() {
		return nil, errors.NewNotFittedError("DecisionTreeClassifier", "FeatureImportances")
	}
	return append([]float64(nil), dt.featureImportances_...), nil
}

// GetDepth returns the depth of the tree
func (dt *DecisionTreeClassifier) GetDepth() int { return dt.tree_.Depth() }

// GetNLeaves returns the number of leaf nodes
func (dt *DecisionTreeClassifier) GetNLeaves() int { return dt.tree_.NLeaves() }

// classifierState is the persisted form of a fitted classifier.
type classifierState struct {
	Params             map[string]interface{} `json:"params"`
	Classes            []string               `json:"classes"`
	NFeatures          int                    `json:"n_features"`
	FeatureImportances []float64              `json:"feature_importances"`
	Tree               Tree                   `json:"tree"`
}

// MarshalJSON encodes hyperparameters and the fitted tree.
func (dt *DecisionTreeClassifier) MarshalJSON() ([]byte, error) {
	if !dt.state.IsFitted() {
		return nil, errors.NewNotFittedError("DecisionTreeClassifier", "MarshalJSON")
	}
	return json.Marshal(classifierState{
		Params:             dt.GetParams(),
		Classes:            dt.classes_,
		NFeatures:          dt.nFeatures,
		FeatureImportances: dt.featureImportances_,
		Tree:               dt.tree_,
	})
}

// UnmarshalJSON restores a fitted classifier written by MarshalJSON.
func (dt *DecisionTreeClassifier) UnmarshalJSON(data []byte) error {
	var st classifierState
	if err := json.Unmarshal(data, &st); err != nil {
		return errors.Wrap(err, "decode decision tree")
	}
	if len(st.Tree.Nodes) == 0 || len(st.Classes) == 0 {
		return errors.NewValueError("DecisionTreeClassifier.UnmarshalJSON", "tree has no nodes or classes")
	}
	for i, n := range st.Tree.Nodes {
		if n.IsLeaf() {
			if c := int(n.Value); c < 0 || c >= len(st.Classes) {
				return errors.NewValueError("DecisionTreeClassifier.UnmarshalJSON", fmt.Sprintf("node %d has class %d", i, c))
			}
			continue
		}
		if n.Feature < 0 || n.Feature >= st.NFeatures || n.Left <= i || n.Right <= i || n.Left >= len(st.Tree.Nodes) || n.Right >= len(st.Tree.Nodes) {
			return errors.NewValueError("DecisionTreeClassifier.UnmarshalJSON", fmt.Sprintf("node %d is malformed", i))
		}
	}

	fresh := NewDecisionTreeClassifier()
	if err := fresh.SetParams(st.Params); err != nil {
		return err
	}
	*dt = *fresh
	dt.classes_ = st.Classes
	dt.nFeatures = st.NFeatures
	dt.featureImportances_ = st.FeatureImportances
	dt.tree_ = st.Tree
	dt.state.SetDimensions(st.NFeatures, st.Tree.Nodes[0].NSamples)
	dt.state.SetFitted()
	return nil
}
