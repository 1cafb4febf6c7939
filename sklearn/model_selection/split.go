// Package model_selection splits data into folds, expands hyperparameter
// grids and runs cross-validated grid search.
package model_selection

import (
	"math"
	"math/rand"

	"github.com/banerjixplores/climacrop/pkg/errors"
)

// Fold is one train/validation partition of row indices.
type Fold struct {
	Train []int
	Test  []int
}

// KFold splits n rows into NSplits consecutive folds, optionally after a
// seeded shuffle. The first n % NSplits folds hold one extra row.
type KFold struct {
	NSplits     int
	Shuffle     bool
	RandomState int64
}

// NewKFold returns a k-fold splitter.
func NewKFold(nSplits int, shuffle bool, randomState int64) KFold {
	return KFold{NSplits: nSplits, Shuffle: shuffle, RandomState: randomState}
}

// Split returns the folds for n rows. Every row appears in exactly one Test set.
func (k KFold) Split(n int) ([]Fold, error) {
	if k.NSplits < 2 {
		return nil, errors.NewValidationError("n_splits", "must be at least 2", k.NSplits)
	}
	if n < k.NSplits {
		return nil, errors.NewValueError("KFold.Split",
			"cannot have more splits than samples")
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	if k.Shuffle {
		rng := rand.New(rand.NewSource(k.RandomState))
		rng.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })
	}

	folds := make([]Fold, k.NSplits)
	start := 0
	for f := 0; f < k.NSplits; f++ {
		size := n / k.NSplits
		if f < n%k.NSplits {
			size++
		}
		test := append([]int(nil), order[start:start+size]...)
		train := make([]int, 0, n-size)
		train = append(train, order[:start]...)
		train = append(train, order[start+size:]...)
		folds[f] = Fold{Train: train, Test: test}
		start += size
	}
	return folds, nil
}

// TrainTestSplit shuffles n row indices with seed and holds out
// ceil(testSize·n) of them.
func TrainTestSplit(n int, testSize float64, seed int64) (train, test []int, err error) {
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, errors.NewValidationError("test_size", "must be in (0, 1)", testSize)
	}
	nTest := int(math.Ceil(testSize * float64(n)))
	if nTest < 1 || n-nTest < 1 {
		return nil, nil, errors.NewValueError("TrainTestSplit",
			"split leaves an empty train or test set")
	}
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	return perm[nTest:], perm[:nTest], nil
}
