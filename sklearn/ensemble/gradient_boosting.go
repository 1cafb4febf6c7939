package ensemble

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/banerjixplores/climacrop/core/model"
	"github.com/banerjixplores/climacrop/core/parallel"
	"github.com/banerjixplores/climacrop/pkg/errors"
	"github.com/banerjixplores/climacrop/pkg/log"
	"github.com/banerjixplores/climacrop/sklearn/tree"
)

// GradientBoostingRegressor is a second-order gradient boosted tree ensemble
// on the squared-error objective. Features are quantile-binned once and
// splits are searched over per-node gradient histograms.
//
// Trees grow depth-wise. A split is kept only when its regularized gain
//
//	½·[G_L²/(H_L+λ) + G_R²/(H_R+λ) − G²/(H+λ)] − γ
//
// is positive, and each leaf outputs −G/(H+λ) scaled by LearningRate.
type GradientBoostingRegressor struct {
	state  *model.StateManager
	logger log.Logger

	NEstimators    int
	LearningRate   float64
	MaxDepth       int
	Lambda         float64 // L2 penalty on leaf weights
	Gamma          float64 // Minimum gain to split
	MinChildWeight float64 // Minimum hessian sum per child
	Subsample      float64 // Row fraction sampled per round
	MaxBin         int
	RandomState    int64

	BaseScore_          float64
	Trees_              []tree.Tree
	featureImportances_ []float64
}

// NewGradientBoostingRegressor returns a booster with the usual XGBoost
// regressor defaults.
func NewGradientBoostingRegressor(randomState int64) *GradientBoostingRegressor {
	return &GradientBoostingRegressor{
		state:          model.NewStateManager(),
		logger:         log.GetLoggerWithName("GradientBoostingRegressor"),
		NEstimators:    100,
		LearningRate:   0.1,
		MaxDepth:       6,
		Lambda:         1,
		MinChildWeight: 1,
		Subsample:      1,
		MaxBin:         256,
		RandomState:    randomState,
	}
}

type histBin struct {
	grad, hess float64
	count      int
}

// Fit boosts NEstimators trees.
func (gb *GradientBoostingRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "GradientBoostingRegressor.Fit")
	start := time.Now()
	if err := gb.validate(); err != nil {
		return err
	}
	n, p := X.Dims()
	if n == 0 || p == 0 {
		return errors.NewModelError("GradientBoostingRegressor.Fit", "empty data", errors.ErrEmptyData)
	}
	if yr, _ := y.Dims(); yr != n {
		return errors.NewDimensionError("GradientBoostingRegressor.Fit", n, yr, 0)
	}

	target := model.Vector(y)
	cols := make([][]float64, p)
	cuts := make([][]float64, p)
	bins := make([][]uint16, p)
	for j := range cols {
		cols[j] = model.Column(X, j)
		for _, v := range cols[j] {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return errors.NewValueError("GradientBoostingRegressor.Fit", fmt.Sprintf("non-finite value in feature %d", j))
			}
		}
		cuts[j] = quantileCuts(cols[j], gb.MaxBin)
		bins[j] = make([]uint16, n)
		for i, v := range cols[j] {
			bins[j][i] = uint16(sort.SearchFloat64s(cuts[j], v))
		}
	}

	base := 0.0
	for _, v := range target {
		base += v
	}
	base /= float64(n)

	pred := make([]float64, n)
	for i := range pred {
		pred[i] = base
	}
	b := &boostBuilder{
		gb:          gb,
		cuts:        cuts,
		bins:        bins,
		grad:        make([]float64, n),
		hess:        make([]float64, n),
		importances: make([]float64, p),
		left:        make([]bool, n),
	}
	rng := rand.New(rand.NewSource(gb.RandomState))
	trees := make([]tree.Tree, 0, gb.NEstimators)

	for round := 0; round < gb.NEstimators; round++ {
		for i := range pred {
			b.grad[i] = pred[i] - target[i]
			b.hess[i] = 1
		}
		rows := gb.sampleRows(rng, n)

		b.tree = &tree.Tree{}
		hist, G, H := b.histogram(rows)
		b.grow(rows, hist, G, H, 0)
		t := *b.tree
		trees = append(trees, t)

		for i := range pred {
			row := func(j int) float64 { return cols[j][i] }
			pred[i] += t.Nodes[t.Apply(row)].Value
		}
	}

	sum := 0.0
	for _, v := range b.importances {
		sum += v
	}
	if sum > 0 {
		for j := range b.importances {
			b.importances[j] /= sum
		}
	}

	gb.BaseScore_ = base
	gb.Trees_ = trees
	gb.featureImportances_ = b.importances
	gb.state.SetDimensions(p, n)
	gb.state.SetFitted()
	gb.logger.Debug("Booster fitted",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.FeaturesKey, p,
		"trees", len(trees),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

func (gb *GradientBoostingRegressor) validate() error {
	switch {
	case gb.NEstimators < 1:
		return errors.NewValidationError("n_estimators", "must be at least 1", gb.NEstimators)
	case gb.LearningRate <= 0:
		return errors.NewValidationError("learning_rate", "must be positive", gb.LearningRate)
	case gb.MaxDepth < 1:
		return errors.NewValidationError("max_depth", "must be at least 1", gb.MaxDepth)
	case gb.Lambda < 0:
		return errors.NewValidationError("reg_lambda", "must be non-negative", gb.Lambda)
	case gb.Subsample <= 0 || gb.Subsample > 1:
		return errors.NewValidationError("subsample", "must be in (0, 1]", gb.Subsample)
	case gb.MaxBin < 2 || gb.MaxBin > math.MaxUint16:
		return errors.NewValidationError("max_bin", "must be in [2, 65535]", gb.MaxBin)
	}
	return nil
}

func (gb *GradientBoostingRegressor) sampleRows(rng *rand.Rand, n int) []int {
	if gb.Subsample >= 1 {
		rows := make([]int, n)
		for i := range rows {
			rows[i] = i
		}
		return rows
	}
	k := int(math.Max(1, math.Round(gb.Subsample*float64(n))))
	rows := rng.Perm(n)[:k]
	sort.Ints(rows)
	return rows
}

// quantileCuts returns sorted cut points between distinct values. A value v
// falls in bin SearchFloat64s(cuts, v), so bin <= b exactly when v <= cuts[b].
func quantileCuts(values []float64, maxBin int) []float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	unique := sorted[:1]
	for _, v := range sorted[1:] {
		if v != unique[len(unique)-1] {
			unique = append(unique, v)
		}
	}
	if len(unique) <= maxBin {
		cuts := make([]float64, len(unique)-1)
		for i := range cuts {
			cuts[i] = (unique[i] + unique[i+1]) / 2
		}
		return cuts
	}
	cuts := make([]float64, 0, maxBin-1)
	for i := 1; i < maxBin; i++ {
		q := (len(unique) - 1) * i / maxBin
		c := (unique[q] + unique[q+1]) / 2
		if len(cuts) == 0 || c > cuts[len(cuts)-1] {
			cuts = append(cuts, c)
		}
	}
	return cuts
}

type boostBuilder struct {
	gb          *GradientBoostingRegressor
	cuts        [][]float64
	bins        [][]uint16
	grad, hess  []float64
	importances []float64
	left        []bool
	tree        *tree.Tree
}

type boostSplit struct {
	feature int
	bin     int
	gain    float64
}

// histogram sums gradients and hessians of rows per feature bin.
func (b *boostBuilder) histogram(rows []int) ([][]histBin, float64, float64) {
	hist := make([][]histBin, len(b.cuts))
	for j := range hist {
		hist[j] = make([]histBin, len(b.cuts[j])+1)
	}
	G, H := 0.0, 0.0
	for _, r := range rows {
		g, h := b.grad[r], b.hess[r]
		G += g
		H += h
		for j, col := range b.bins {
			bin := &hist[j][col[r]]
			bin.grad += g
			bin.hess += h
			bin.count++
		}
	}
	return hist, G, H
}

func subtractHistogram(parent, sibling [][]histBin) [][]histBin {
	out := make([][]histBin, len(parent))
	for j := range parent {
		out[j] = make([]histBin, len(parent[j]))
		for k := range parent[j] {
			out[j][k] = histBin{
				grad:  parent[j][k].grad - sibling[j][k].grad,
				hess:  parent[j][k].hess - sibling[j][k].hess,
				count: parent[j][k].count - sibling[j][k].count,
			}
		}
	}
	return out
}

func (b *boostBuilder) leafWeight(G, H float64) float64 {
	return -G / (H + b.gb.Lambda) * b.gb.LearningRate
}

func (b *boostBuilder) grow(rows []int, hist [][]histBin, G, H float64, depth int) int {
	idx := len(b.tree.Nodes)
	b.tree.Nodes = append(b.tree.Nodes, tree.Node{
		Feature:  tree.Leaf,
		Value:    b.leafWeight(G, H),
		NSamples: len(rows),
		Depth:    depth,
	})
	if depth >= b.gb.MaxDepth || len(rows) < 2 {
		return idx
	}
	best, ok := b.bestSplit(hist, G, H)
	if !ok {
		return idx
	}

	col := b.bins[best.feature]
	var left, right []int
	for _, r := range rows {
		if int(col[r]) <= best.bin {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	b.importances[best.feature] += best.gain

	var lh, rh [][]histBin
	var GL, HL, GR, HR float64
	if len(left) <= len(right) {
		lh, GL, HL = b.histogram(left)
		rh = subtractHistogram(hist, lh)
		GR, HR = G-GL, H-HL
	} else {
		rh, GR, HR = b.histogram(right)
		lh = subtractHistogram(hist, rh)
		GL, HL = G-GR, H-HR
	}

	l := b.grow(left, lh, GL, HL, depth+1)
	r := b.grow(right, rh, GR, HR, depth+1)
	node := &b.tree.Nodes[idx]
	node.Feature = best.feature
	node.Threshold = b.cuts[best.feature][best.bin]
	node.Left = l
	node.Right = r
	return idx
}

func (b *boostBuilder) bestSplit(hist [][]histBin, G, H float64) (boostSplit, bool) {
	lambda := b.gb.Lambda
	parent := G * G / (H + lambda)
	best := boostSplit{feature: -1}
	for j, bins := range hist {
		var GL, HL float64
		nL := 0
		total := 0
		for _, bin := range bins {
			total += bin.count
		}
		for k := 0; k < len(bins)-1; k++ {
			GL += bins[k].grad
			HL += bins[k].hess
			nL += bins[k].count
			if nL == 0 {
				continue
			}
			if nL == total {
				break
			}
			GR, HR := G-GL, H-HL
			if HL < b.gb.MinChildWeight || HR < b.gb.MinChildWeight {
				continue
			}
			gain := 0.5*(GL*GL/(HL+lambda)+GR*GR/(HR+lambda)-parent) - b.gb.Gamma
			if gain > 1e-12 && (best.feature < 0 || gain > best.gain) {
				best = boostSplit{feature: j, bin: k, gain: gain}
			}
		}
	}
	return best, best.feature >= 0
}

// Predict sums the base score and every tree's leaf weight.
func (gb *GradientBoostingRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !gb.state.IsFitted() {
		return nil, errors.NewNotFittedError("GradientBoostingRegressor", "Predict")
	}
	n, p := X.Dims()
	if p != gb.state.NFeatures() {
		return nil, errors.NewDimensionError("GradientBoostingRegressor.Predict", gb.state.NFeatures(), p, 1)
	}
	out := mat.NewDense(n, 1, nil)
	parallel.ParallelizeWithThreshold(n, 256, func(start, end int) {
		for i := start; i < end; i++ {
			row := func(j int) float64 { return X.At(i, j) }
			v := gb.BaseScore_
			for t := range gb.Trees_ {
				v += gb.Trees_[t].Nodes[gb.Trees_[t].Apply(row)].Value
			}
			out.Set(i, 0, v)
		}
	})
	return out, nil
}

// FeatureImportances returns each feature's share of the total split gain.
func (gb *GradientBoostingRegressor) FeatureImportances() ([]float64, error) {
	if !gb.state.IsFitted() {
		return nil, errors.NewNotFittedError("GradientBoostingRegressor", "FeatureImportances")
	}
	return append([]float64(nil), gb.featureImportances_...), nil
}

// IsFitted reports whether Fit has completed.
func (gb *GradientBoostingRegressor) IsFitted() bool { return gb.state.IsFitted() }

// GetParams returns the booster hyperparameters.
func (gb *GradientBoostingRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":     gb.NEstimators,
		"learning_rate":    gb.LearningRate,
		"max_depth":        gb.MaxDepth,
		"reg_lambda":       gb.Lambda,
		"gamma":            gb.Gamma,
		"min_child_weight": gb.MinChildWeight,
		"subsample":        gb.Subsample,
		"max_bin":          gb.MaxBin,
		"random_state":     gb.RandomState,
	}
}

// SetParams updates booster hyperparameters.
func (gb *GradientBoostingRegressor) SetParams(params map[string]interface{}) error {
	for k, v := range params {
		var err error
		switch k {
		case "n_estimators":
			gb.NEstimators, err = model.ParamInt(k, v)
		case "learning_rate":
			gb.LearningRate, err = model.ParamFloat(k, v)
		case "max_depth":
			gb.MaxDepth, err = model.ParamInt(k, v)
		case "reg_lambda":
			gb.Lambda, err = model.ParamFloat(k, v)
		case "gamma":
			gb.Gamma, err = model.ParamFloat(k, v)
		case "min_child_weight":
			gb.MinChildWeight, err = model.ParamFloat(k, v)
		case "subsample":
			gb.Subsample, err = model.ParamFloat(k, v)
		case "max_bin":
			gb.MaxBin, err = model.ParamInt(k, v)
		case "random_state":
			gb.RandomState, err = model.ParamInt64(k, v)
		default:
			return model.UnknownParam("GradientBoostingRegressor", k)
		}
		if err != nil {
			return err
		}
	}
	gb.state.Reset()
	return nil
}

// Clone returns an unfitted copy.
func (gb *GradientBoostingRegressor) Clone() model.Estimator {
	c := NewGradientBoostingRegressor(gb.RandomState)
	c.NEstimators, c.LearningRate, c.MaxDepth = gb.NEstimators, gb.LearningRate, gb.MaxDepth
	c.Lambda, c.Gamma, c.MinChildWeight = gb.Lambda, gb.Gamma, gb.MinChildWeight
	c.Subsample, c.MaxBin = gb.Subsample, gb.MaxBin
	return c
}

func (gb *GradientBoostingRegressor) String() string {
	return fmt.Sprintf("GradientBoostingRegressor(n_estimators=%d, learning_rate=%g, max_depth=%d)",
		gb.NEstimators, gb.LearningRate, gb.MaxDepth)
}
