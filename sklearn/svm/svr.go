// Package svm implements epsilon-insensitive support vector regression.
package svm

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/banerjixplores/climacrop/core/model"
	"github.com/banerjixplores/climacrop/core/parallel"
	"github.com/banerjixplores/climacrop/pkg/errors"
	"github.com/banerjixplores/climacrop/pkg/log"
)

// GammaScale selects gamma = 1 / (n_features · Var(X)).
const GammaScale = "scale"

// SVR is epsilon-SVR with an RBF kernel, solved by SMO with second-order
// working set selection.
//
// The dual has 2n variables: α⁺ for the upper tube and α⁻ for the lower
// one. The prediction is Σ (α⁺_i − α⁻_i)·K(x_i, x) − ρ.
type SVR struct {
	state  *model.StateManager
	logger log.Logger

	C       float64
	Epsilon float64
	Gamma   string // GammaScale or a number formatted by SetParams
	Tol     float64
	MaxIter int

	gammaValue float64
	support_   *mat.Dense
	dualCoef_  []float64
	rho_       float64
	nIter_     int
}

// NewSVR returns an RBF SVR with gamma="scale".
func NewSVR(c, epsilon float64) *SVR {
	return &SVR{
		state:   model.NewStateManager(),
		logger:  log.GetLoggerWithName("SVR"),
		C:       c,
		Epsilon: epsilon,
		Gamma:   GammaScale,
		Tol:     1e-3,
		MaxIter: 10000000,
	}
}

func (s *SVR) resolveGamma(X mat.Matrix) (float64, error) {
	if s.Gamma != GammaScale {
		var g float64
		if _, err := fmt.Sscanf(s.Gamma, "%g", &g); err != nil || g <= 0 {
			return 0, errors.NewValidationError("gamma", "must be 'scale' or a positive number", s.Gamma)
		}
		return g, nil
	}
	r, c := X.Dims()
	all := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			all = append(all, X.At(i, j))
		}
	}
	v := stat.PopVariance(all, nil)
	if v == 0 {
		return 1, nil
	}
	return 1 / (float64(c) * v), nil
}

// Fit solves the dual problem on X, y.
func (s *SVR) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "SVR.Fit")
	start := time.Now()
	n, p := X.Dims()
	if n == 0 || p == 0 {
		return errors.NewModelError("SVR.Fit", "empty data", errors.ErrEmptyData)
	}
	if yr, _ := y.Dims(); yr != n {
		return errors.NewDimensionError("SVR.Fit", n, yr, 0)
	}
	if s.C <= 0 {
		return errors.NewValidationError("C", "must be positive", s.C)
	}
	if s.Epsilon < 0 {
		return errors.NewValidationError("epsilon", "must be non-negative", s.Epsilon)
	}
	gamma, err := s.resolveGamma(X)
	if err != nil {
		return err
	}

	K := rbfGram(X, gamma)
	target := model.Vector(y)
	sol := s.smo(K, target)

	support := make([]int, 0)
	coef := make([]float64, 0)
	for i := 0; i < n; i++ {
		if c := sol.alpha[i] - sol.alpha[i+n]; c != 0 {
			support = append(support, i)
			coef = append(coef, c)
		}
	}
	sv := mat.NewDense(max(len(support), 1), p, nil)
	for k, i := range support {
		for j := 0; j < p; j++ {
			sv.Set(k, j, X.At(i, j))
		}
	}

	s.gammaValue = gamma
	s.support_ = sv
	s.dualCoef_ = coef
	s.rho_ = sol.rho
	s.nIter_ = sol.iter
	s.state.SetDimensions(p, n)
	s.state.SetFitted()
	s.logger.Debug("SVR fitted",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.FeaturesKey, p,
		"support_vectors", len(support),
		"iterations", sol.iter,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// rbfGram returns exp(−γ‖x_i − x_j‖²) for all row pairs.
func rbfGram(X mat.Matrix, gamma float64) *mat.SymDense {
	n, _ := X.Dims()
	var G mat.Dense
	G.Mul(X, X.T())
	sq := make([]float64, n)
	for i := range sq {
		sq[i] = G.At(i, i)
	}
	K := mat.NewSymDense(n, nil)
	parallel.ParallelizeWithThreshold(n, 64, func(start, end int) {
		for i := start; i < end; i++ {
			for j := i; j < n; j++ {
				d := sq[i] + sq[j] - 2*G.At(i, j)
				if d < 0 {
					d = 0
				}
				K.SetSym(i, j, math.Exp(-gamma*d))
			}
		}
	})
	return K
}

type smoSolution struct {
	alpha []float64
	rho   float64
	iter  int
}

// smo minimizes ½αᵀQα + pᵀα subject to yᵀα = 0 and 0 ≤ α ≤ C, where the
// first n variables carry y=+1, p=ε−target and the last n carry y=−1,
// p=ε+target.
func (s *SVR) smo(K *mat.SymDense, target []float64) smoSolution {
	n := len(target)
	l := 2 * n
	C := s.C
	const tau = 1e-12

	sign := make([]float64, l)
	alpha := make([]float64, l)
	grad := make([]float64, l)
	for i := 0; i < n; i++ {
		sign[i], sign[i+n] = 1, -1
		grad[i] = s.Epsilon - target[i]
		grad[i+n] = s.Epsilon + target[i]
	}
	q := func(a, b int) float64 { return sign[a] * sign[b] * K.At(a%n, b%n) }
	isUp := func(t int) bool {
		return (sign[t] > 0 && alpha[t] < C) || (sign[t] < 0 && alpha[t] > 0)
	}
	isLow := func(t int) bool {
		return (sign[t] > 0 && alpha[t] > 0) || (sign[t] < 0 && alpha[t] < C)
	}

	iter := 0
	for ; iter < s.MaxIter; iter++ {
		// Maximal violating pair with second-order selection of j.
		gmax, i := math.Inf(-1), -1
		for t := 0; t < l; t++ {
			if isUp(t) && -sign[t]*grad[t] >= gmax {
				gmax, i = -sign[t]*grad[t], t
			}
		}
		gmin := math.Inf(1)
		objMin, j := math.Inf(1), -1
		for t := 0; t < l && i >= 0; t++ {
			if !isLow(t) {
				continue
			}
			v := -sign[t] * grad[t]
			if v < gmin {
				gmin = v
			}
			b := gmax - v
			if b <= 0 {
				continue
			}
			a := q(i, i) + q(t, t) - 2*sign[i]*sign[t]*q(i, t)
			if a <= 0 {
				a = tau
			}
			if obj := -b * b / a; obj <= objMin {
				objMin, j = obj, t
			}
		}
		if i < 0 || j < 0 || gmax-gmin < s.Tol {
			break
		}

		oldI, oldJ := alpha[i], alpha[j]
		qij := q(i, j)
		if sign[i] != sign[j] {
			quad := q(i, i) + q(j, j) + 2*qij
			if quad <= 0 {
				quad = tau
			}
			delta := (-grad[i] - grad[j]) / quad
			diff := alpha[i] - alpha[j]
			alpha[i] += delta
			alpha[j] += delta
			if diff > 0 {
				if alpha[j] < 0 {
					alpha[j], alpha[i] = 0, diff
				}
			} else if alpha[i] < 0 {
				alpha[i], alpha[j] = 0, -diff
			}
			if diff > 0 {
				if alpha[i] > C {
					alpha[i], alpha[j] = C, C-diff
				}
			} else if alpha[j] > C {
				alpha[j], alpha[i] = C, C+diff
			}
		} else {
			quad := q(i, i) + q(j, j) - 2*qij
			if quad <= 0 {
				quad = tau
			}
			delta := (grad[i] - grad[j]) / quad
			sum := alpha[i] + alpha[j]
			alpha[i] -= delta
			alpha[j] += delta
			if sum > C {
				if alpha[i] > C {
					alpha[i], alpha[j] = C, sum-C
				}
			} else if alpha[j] < 0 {
				alpha[j], alpha[i] = 0, sum
			}
			if sum > C {
				if alpha[j] > C {
					alpha[j], alpha[i] = C, sum-C
				}
			} else if alpha[i] < 0 {
				alpha[i], alpha[j] = 0, sum
			}
		}

		dI, dJ := alpha[i]-oldI, alpha[j]-oldJ
		for t := 0; t < l; t++ {
			grad[t] += q(t, i)*dI + q(t, j)*dJ
		}
	}
	if iter >= s.MaxIter {
		errors.Warn(errors.NewConvergenceWarning("SVR", iter, "SMO stopped before reaching tolerance"))
	}

	return smoSolution{alpha: alpha, rho: computeRho(sign, alpha, grad, C), iter: iter}
}

// computeRho averages yG over free variables, or takes the midpoint of the
// feasible interval when every variable is at a bound.
func computeRho(sign, alpha, grad []float64, C float64) float64 {
	ub, lb := math.Inf(1), math.Inf(-1)
	free := make([]float64, 0)
	for t := range alpha {
		yg := sign[t] * grad[t]
		switch {
		case alpha[t] >= C:
			if sign[t] < 0 {
				ub = math.Min(ub, yg)
			} else {
				lb = math.Max(lb, yg)
			}
		case alpha[t] <= 0:
			if sign[t] > 0 {
				ub = math.Min(ub, yg)
			} else {
				lb = math.Max(lb, yg)
			}
		default:
			free = append(free, yg)
		}
	}
	if len(free) > 0 {
		return floats.Sum(free) / float64(len(free))
	}
	return (ub + lb) / 2
}

// Predict evaluates the kernel expansion for every row of X.
func (s *SVR) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !s.state.IsFitted() {
		return nil, errors.NewNotFittedError("SVR", "Predict")
	}
	n, p := X.Dims()
	if p != s.state.NFeatures() {
		return nil, errors.NewDimensionError("SVR.Predict", s.state.NFeatures(), p, 1)
	}
	out := mat.NewDense(n, 1, nil)
	parallel.ParallelizeWithThreshold(n, 128, func(start, end int) {
		x := make([]float64, p)
		for i := start; i < end; i++ {
			mat.Row(x, i, X)
			v := -s.rho_
			for k, c := range s.dualCoef_ {
				d := 0.0
				for j := 0; j < p; j++ {
					diff := x[j] - s.support_.At(k, j)
					d += diff * diff
				}
				v += c * math.Exp(-s.gammaValue*d)
			}
			out.Set(i, 0, v)
		}
	})
	return out, nil
}

// NSupport returns the number of support vectors.
func (s *SVR) NSupport() int { return len(s.dualCoef_) }

// Intercept returns −ρ.
func (s *SVR) Intercept() float64 { return -s.rho_ }

// NIter returns the SMO iterations of the last fit.
func (s *SVR) NIter() int { return s.nIter_ }

// IsFitted reports whether Fit has completed.
func (s *SVR) IsFitted() bool { return s.state.IsFitted() }

// GetParams returns the SVR hyperparameters.
func (s *SVR) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"C":        s.C,
		"epsilon":  s.Epsilon,
		"kernel":   "rbf",
		"gamma":    s.Gamma,
		"tol":      s.Tol,
		"max_iter": s.MaxIter,
	}
}

// SetParams updates SVR hyperparameters. gamma accepts "scale" or a number.
func (s *SVR) SetParams(params map[string]interface{}) error {
	for k, v := range params {
		var err error
		switch k {
		case "C":
			s.C, err = model.ParamFloat(k, v)
		case "epsilon":
			s.Epsilon, err = model.ParamFloat(k, v)
		case "tol":
			s.Tol, err = model.ParamFloat(k, v)
		case "max_iter":
			s.MaxIter, err = model.ParamInt(k, v)
		case "kernel":
			if kv, _ := v.(string); kv != "rbf" {
				return errors.NewValidationError(k, "only 'rbf' is supported", v)
			}
		case "gamma":
			switch g := v.(type) {
			case string:
				s.Gamma = g
			default:
				var f float64
				f, err = model.ParamFloat(k, v)
				s.Gamma = fmt.Sprintf("%g", f)
			}
		default:
			return model.UnknownParam("SVR", k)
		}
		if err != nil {
			return err
		}
	}
	s.state.Reset()
	return nil
}

// Clone returns an unfitted copy.
func (s *SVR) Clone() model.Estimator {
	c := NewSVR(s.C, s.Epsilon)
	c.Gamma, c.Tol, c.MaxIter = s.Gamma, s.Tol, s.MaxIter
	return c
}

func (s *SVR) String() string {
	return fmt.Sprintf("SVR(C=%g, epsilon=%g, gamma=%s)", s.C, s.Epsilon, s.Gamma)
}
