package tree

import (
	"fmt"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/banerjixplores/climacrop/core/model"
	"github.com/banerjixplores/climacrop/pkg/errors"
)

// DecisionTreeRegressor is a CART regression tree with the squared-error
// criterion.
//
// Each feature is sorted once at the root. Sorted orders are partitioned
// stably at every split, so finding a split costs O(n_features · n_node)
// instead of re-sorting at each node.
type DecisionTreeRegressor struct {
	state *model.StateManager

	// Hyperparameters
	MaxDepth        int   // Maximum depth (0 = unlimited)
	MinSamplesSplit int   // Minimum samples to split a node
	MinSamplesLeaf  int   // Minimum samples in a leaf
	MaxFeatures     int   // Features considered per split (0 = all)
	RandomState     int64 // Seed for feature sampling

	Tree_               Tree
	featureImportances_ []float64
}

// RegressorOption configures a DecisionTreeRegressor.
type RegressorOption func(*DecisionTreeRegressor)

// WithMaxDepth sets the maximum tree depth
func WithMaxDepth(depth int) RegressorOption {
	return func(dt *DecisionTreeRegressor) { dt.MaxDepth = depth }
}

// WithMinSamplesLeaf sets minimum samples in leaf
func WithMinSamplesLeaf(n int) RegressorOption {
	return func(dt *DecisionTreeRegressor) { dt.MinSamplesLeaf = n }
}

// WithMaxFeatures sets the number of features considered per split.
func WithMaxFeatures(n int) RegressorOption {
	return func(dt *DecisionTreeRegressor) { dt.MaxFeatures = n }
}

// WithRandomState sets the random seed
func WithRandomState(seed int64) RegressorOption {
	return func(dt *DecisionTreeRegressor) { dt.RandomState = seed }
}

// NewDecisionTreeRegressor creates a fully grown regression tree by default.
func NewDecisionTreeRegressor(opts ...RegressorOption) *DecisionTreeRegressor {
	dt := &DecisionTreeRegressor{
		state:           model.NewStateManager(),
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
	}
	for _, opt := range opts {
		opt(dt)
	}
	return dt
}

// Fit grows the tree on all rows of X.
func (dt *DecisionTreeRegressor) Fit(X, y mat.Matrix) error {
	n, p := X.Dims()
	if yr, yc := y.Dims(); yr != n || yc != 1 {
		return errors.NewDimensionError("DecisionTreeRegressor.Fit", n, yr, 0)
	}
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	cols := make([][]float64, p)
	for j := range cols {
		cols[j] = model.Column(X, j)
	}
	return dt.FitColumns(cols, model.Vector(y), rows)
}

// FitColumns grows the tree on the given rows of column-major data. rows may
// repeat indices, which is how bootstrap samples are passed in.
func (dt *DecisionTreeRegressor) FitColumns(cols [][]float64, y []float64, rows []int) (err error) {
	defer errors.Recover(&err, "DecisionTreeRegressor.Fit")
	if len(rows) == 0 || len(cols) == 0 {
		return errors.NewModelError("DecisionTreeRegressor.Fit", "empty data", errors.ErrEmptyData)
	}
	if dt.MinSamplesLeaf < 1 {
		return errors.NewValidationError("min_samples_leaf", "must be at least 1", dt.MinSamplesLeaf)
	}
	if dt.MinSamplesSplit < 2 {
		return errors.NewValidationError("min_samples_split", "must be at least 2", dt.MinSamplesSplit)
	}

	b := &regBuilder{
		dt:          dt,
		cols:        cols,
		y:           y,
		rng:         rand.New(rand.NewSource(dt.RandomState)),
		importances: make([]float64, len(cols)),
		left:        make([]bool, len(y)),
	}
	sorted := make([][]int, len(cols))
	for j, col := range cols {
		order := append([]int(nil), rows...)
		sort.SliceStable(order, func(a, c int) bool { return col[order[a]] < col[order[c]] })
		sorted[j] = order
	}

	dt.Tree_ = Tree{}
	b.build(sorted, 0)
	normalize(b.importances)
	dt.featureImportances_ = b.importances

	dt.state.SetDimensions(len(cols), len(rows))
	dt.state.SetFitted()
	return nil
}

type regBuilder struct {
	dt          *DecisionTreeRegressor
	cols        [][]float64
	y           []float64
	rng         *rand.Rand
	importances []float64
	left        []bool
}

type regSplit struct {
	feature   int
	threshold float64
	nLeft     int
	proxy     float64
}

// build adds the node holding the rows of sorted and returns its index.
// sorted[j] lists the node's rows ordered by feature j.
func (b *regBuilder) build(sorted [][]int, depth int) int {
	rows := sorted[0]
	n := len(rows)
	sum, sumSq := 0.0, 0.0
	for _, r := range rows {
		sum += b.y[r]
		sumSq += b.y[r] * b.y[r]
	}
	mean := sum / float64(n)
	impurity := sumSq/float64(n) - mean*mean
	if impurity < 0 {
		impurity = 0
	}

	idx := b.dt.Tree_.add(Node{
		Feature:  Leaf,
		Value:    mean,
		NSamples: n,
		Impurity: impurity,
		Depth:    depth,
	})

	dt := b.dt
	if (dt.MaxDepth > 0 && depth >= dt.MaxDepth) || n < dt.MinSamplesSplit || n < 2*dt.MinSamplesLeaf || impurity <= 1e-12 {
		return idx
	}

	best, ok := b.bestSplit(sorted, sum, sumSq)
	if !ok {
		return idx
	}

	for _, r := range rows {
		b.left[r] = false
	}
	for _, r := range sorted[best.feature][:best.nLeft] {
		b.left[r] = true
	}
	leftSorted := make([][]int, len(sorted))
	rightSorted := make([][]int, len(sorted))
	for j, order := range sorted {
		l := make([]int, 0, best.nLeft)
		r := make([]int, 0, n-best.nLeft)
		for _, row := range order {
			if b.left[row] {
				l = append(l, row)
			} else {
				r = append(r, row)
			}
		}
		leftSorted[j], rightSorted[j] = l, r
	}

	// n·imp - n_L·imp_L - n_R·imp_R reduces to proxy - S²/n.
	b.importances[best.feature] += best.proxy - sum*sum/float64(n)

	left := b.build(leftSorted, depth+1)
	right := b.build(rightSorted, depth+1)
	node := &b.dt.Tree_.Nodes[idx]
	node.Feature = best.feature
	node.Threshold = best.threshold
	node.Left = left
	node.Right = right
	return idx
}

// bestSplit maximizes S_L²/n_L + S_R²/n_R, which minimizes the summed
// squared error of the children.
func (b *regBuilder) bestSplit(sorted [][]int, sum, sumSq float64) (regSplit, bool) {
	n := len(sorted[0])
	minLeaf := b.dt.MinSamplesLeaf
	parentProxy := sum * sum / float64(n)
	best := regSplit{feature: -1, proxy: parentProxy + 1e-12*(sumSq+1)}

	for _, j := range b.features() {
		col := b.cols[j]
		order := sorted[j]
		if col[order[0]] == col[order[n-1]] {
			continue
		}
		sumL := 0.0
		for i := 0; i < n-1; i++ {
			sumL += b.y[order[i]]
			nL := i + 1
			if nL < minLeaf {
				continue
			}
			if n-nL < minLeaf {
				break
			}
			v, next := col[order[i]], col[order[i+1]]
			if v == next {
				continue
			}
			sumR := sum - sumL
			proxy := sumL*sumL/float64(nL) + sumR*sumR/float64(n-nL)
			if proxy > best.proxy {
				threshold := v + (next-v)/2
				if threshold == next {
					threshold = v
				}
				best = regSplit{feature: j, threshold: threshold, nLeft: nL, proxy: proxy}
			}
		}
	}
	return best, best.feature >= 0
}

// features returns the candidate features for one split.
func (b *regBuilder) features() []int {
	p := len(b.cols)
	k := b.dt.MaxFeatures
	if k <= 0 || k >= p {
		all := make([]int, p)
		for i := range all {
			all[i] = i
		}
		return all
	}
	return b.rng.Perm(p)[:k]
}

// Predict returns the leaf means for every row of X as an n×1 matrix.
func (dt *DecisionTreeRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !dt.state.IsFitted() {
		return nil, errors.NewNotFittedError("DecisionTreeRegressor", "Predict")
	}
	n, p := X.Dims()
	if p != dt.state.NFeatures() {
		return nil, errors.NewDimensionError("DecisionTreeRegressor.Predict", dt.state.NFeatures(), p, 1)
	}
	out := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		out.Set(i, 0, dt.PredictRow(func(j int) float64 { return X.At(i, j) }))
	}
	return out, nil
}

// PredictRow returns the prediction for a single row accessor.
func (dt *DecisionTreeRegressor) PredictRow(row func(feature int) float64) float64 {
	return dt.Tree_.Nodes[dt.Tree_.Apply(row)].Value
}

// FeatureImportances returns normalized impurity-decrease importances.
func (dt *DecisionTreeRegressor) FeatureImportances() ([]float64, error) {
	if !dt.state.IsFitted() {
		return nil, errors.NewNotFittedError("DecisionTreeRegressor", "FeatureImportances")
	}
	return append([]float64(nil), dt.featureImportances_...), nil
}

// IsFitted reports whether Fit has completed.
func (dt *DecisionTreeRegressor) IsFitted() bool { return dt.state.IsFitted() }

// GetParams returns the model hyperparameters
func (dt *DecisionTreeRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"max_depth":         dt.MaxDepth,
		"min_samples_split": dt.MinSamplesSplit,
		"min_samples_leaf":  dt.MinSamplesLeaf,
		"max_features":      dt.MaxFeatures,
		"random_state":      dt.RandomState,
	}
}

// SetParams sets the model hyperparameters
func (dt *DecisionTreeRegressor) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var err error
		switch key {
		case "max_depth":
			dt.MaxDepth, err = model.ParamInt(key, value)
		case "min_samples_split":
			dt.MinSamplesSplit, err = model.ParamInt(key, value)
		case "min_samples_leaf":
			dt.MinSamplesLeaf, err = model.ParamInt(key, value)
		case "max_features":
			dt.MaxFeatures, err = model.ParamInt(key, value)
		case "random_state":
			dt.RandomState, err = model.ParamInt64(key, value)
		default:
			return model.UnknownParam("DecisionTreeRegressor", key)
		}
		if err != nil {
			return err
		}
	}
	dt.state.Reset()
	return nil
}

// Clone returns an unfitted copy.
func (dt *DecisionTreeRegressor) Clone() model.Estimator {
	return NewDecisionTreeRegressor(
		WithMaxDepth(dt.MaxDepth),
		WithMinSamplesLeaf(dt.MinSamplesLeaf),
		WithMaxFeatures(dt.MaxFeatures),
		WithRandomState(dt.RandomState),
		func(c *DecisionTreeRegressor) { c.MinSamplesSplit = dt.MinSamplesSplit },
	)
}

func (dt *DecisionTreeRegressor) String() string {
	return fmt.Sprintf("DecisionTreeRegressor(max_depth=%d, min_samples_leaf=%d)", dt.MaxDepth, dt.MinSamplesLeaf)
}
