package linear_model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/banerjixplores/climacrop/core/model"
	"github.com/banerjixplores/climacrop/pkg/errors"
	"github.com/banerjixplores/climacrop/pkg/log"
)

// DefaultAlphas is the regularization grid of the ridge pipelines.
var DefaultAlphas = []float64{0.1, 1, 10}

// Ridge is L2-regularized least squares with a fixed alpha.
type Ridge struct {
	state *model.StateManager

	Alpha        float64
	FitIntercept bool

	coef_      []float64
	intercept_ float64
}

// NewRidge creates a Ridge regressor with an intercept.
func NewRidge(alpha float64) *Ridge {
	return &Ridge{state: model.NewStateManager(), Alpha: alpha, FitIntercept: true}
}

// Fit solves (XᵀX + αI)w = Xᵀy on centered data.
func (r *Ridge) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "Ridge.Fit")
	if r.Alpha < 0 {
		return errors.NewValidationError("alpha", "must be non-negative", r.Alpha)
	}
	sys, err := newRidgeSystem("Ridge.Fit", X, y, r.FitIntercept)
	if err != nil {
		return err
	}
	r.coef_, r.intercept_ = sys.solve(r.Alpha)
	r.state.SetDimensions(sys.p, sys.n)
	r.state.SetFitted()
	return nil
}

// Predict returns X·w + b as an n×1 matrix.
func (r *Ridge) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !r.state.IsFitted() {
		return nil, errors.NewNotFittedError("Ridge", "Predict")
	}
	return linearPredict("Ridge.Predict", X, r.coef_, r.intercept_)
}

// Coef returns the learned weights.
func (r *Ridge) Coef() []float64 { return append([]float64(nil), r.coef_...) }

// Intercept returns the learned intercept.
func (r *Ridge) Intercept() float64 { return r.intercept_ }

// GetParams returns alpha and fit_intercept.
func (r *Ridge) GetParams() map[string]interface{} {
	return map[string]interface{}{"alpha": r.Alpha, "fit_intercept": r.FitIntercept}
}

// SetParams updates alpha or fit_intercept.
func (r *Ridge) SetParams(params map[string]interface{}) error {
	for k, v := range params {
		switch k {
		case "alpha":
			a, err := model.ParamFloat(k, v)
			if err != nil {
				return err
			}
			r.Alpha = a
		case "fit_intercept":
			b, ok := v.(bool)
			if !ok {
				return errors.NewValidationError(k, "expected a bool", v)
			}
			r.FitIntercept = b
		default:
			return model.UnknownParam("Ridge", k)
		}
	}
	r.state.Reset()
	return nil
}

// Clone returns an unfitted copy.
func (r *Ridge) Clone() model.Estimator {
	c := NewRidge(r.Alpha)
	c.FitIntercept = r.FitIntercept
	return c
}

// RidgeCV selects alpha by efficient leave-one-out cross-validation.
//
// One thin SVD of the centered design matrix gives, for every alpha, the hat
// matrix diagonal h and the in-sample residuals r, so the leave-one-out error
// of sample i is r_i / (1 - h_ii) without refitting.
type RidgeCV struct {
	state  *model.StateManager
	logger log.Logger

	Alphas        []float64
	FitIntercept  bool
	StoreCVValues bool

	// Alpha is the selected regularization strength.
	Alpha float64
	// BestScore is the negated mean squared leave-one-out error at Alpha.
	BestScore float64
	// CVValues holds squared leave-one-out errors, n_samples × len(Alphas),
	// when StoreCVValues is set.
	CVValues *mat.Dense

	coef_      []float64
	intercept_ float64
}

// NewRidgeCV creates a RidgeCV over alphas that stores its LOO errors.
func NewRidgeCV(alphas []float64) *RidgeCV {
	return &RidgeCV{
		state:         model.NewStateManager(),
		logger:        log.GetLoggerWithName("RidgeCV"),
		Alphas:        append([]float64(nil), alphas...),
		FitIntercept:  true,
		StoreCVValues: true,
	}
}

func (r *RidgeCV) validate() error {
	if len(r.Alphas) == 0 {
		return errors.NewValidationError("alphas", "must not be empty", r.Alphas)
	}
	for _, a := range r.Alphas {
		if a <= 0 || math.IsNaN(a) {
			return errors.NewValidationError("alphas", "must be strictly positive", r.Alphas)
		}
	}
	return nil
}

// Fit evaluates every alpha and refits the weights at the best one. Ties
// keep the earlier alpha.
func (r *RidgeCV) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "RidgeCV.Fit")
	if err := r.validate(); err != nil {
		return err
	}
	sys, err := newRidgeSystem("RidgeCV.Fit", X, y, r.FitIntercept)
	if err != nil {
		return err
	}
	if sys.n < 2 {
		return errors.NewValueError("RidgeCV.Fit", "leave-one-out needs at least 2 samples")
	}

	var cv *mat.Dense
	if r.StoreCVValues {
		cv = mat.NewDense(sys.n, len(r.Alphas), nil)
	}
	best := -1
	bestMSE := math.Inf(1)
	for j, alpha := range r.Alphas {
		loo := sys.looSquaredErrors(alpha)
		mse := 0.0
		for i, e := range loo {
			mse += e
			if cv != nil {
				cv.Set(i, j, e)
			}
		}
		mse /= float64(sys.n)
		if mse < bestMSE {
			best, bestMSE = j, mse
		}
	}
	if best < 0 {
		return errors.NewModelError("RidgeCV.Fit", "no alpha produced a finite leave-one-out error", errors.ErrSingularMatrix)
	}

	r.Alpha = r.Alphas[best]
	r.BestScore = -bestMSE
	r.CVValues = cv
	r.coef_, r.intercept_ = sys.solve(r.Alpha)
	r.state.SetDimensions(sys.p, sys.n)
	r.state.SetFitted()
	r.logger.Debug("RidgeCV fitted",
		log.SamplesKey, sys.n,
		log.FeaturesKey, sys.p,
		"alpha", r.Alpha,
		"loo_mse", bestMSE,
	)
	return nil
}

// Predict returns X·w + b as an n×1 matrix.
func (r *RidgeCV) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !r.state.IsFitted() {
		return nil, errors.NewNotFittedError("RidgeCV", "Predict")
	}
	return linearPredict("RidgeCV.Predict", X, r.coef_, r.intercept_)
}

// Coef returns the learned weights.
func (r *RidgeCV) Coef() []float64 { return append([]float64(nil), r.coef_...) }

// Intercept returns the learned intercept.
func (r *RidgeCV) Intercept() float64 { return r.intercept_ }

// IsFitted reports whether Fit has completed.
func (r *RidgeCV) IsFitted() bool { return r.state.IsFitted() }

// GetParams returns alphas, fit_intercept and store_cv_values.
func (r *RidgeCV) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"alphas":          append([]float64(nil), r.Alphas...),
		"fit_intercept":   r.FitIntercept,
		"store_cv_values": r.StoreCVValues,
	}
}

// SetParams updates the alpha grid or flags.
func (r *RidgeCV) SetParams(params map[string]interface{}) error {
	for k, v := range params {
		switch k {
		case "alphas":
			a, err := model.ParamFloats(k, v)
			if err != nil {
				return err
			}
			r.Alphas = a
		case "fit_intercept", "store_cv_values":
			b, ok := v.(bool)
			if !ok {
				return errors.NewValidationError(k, "expected a bool", v)
			}
			if k == "fit_intercept" {
				r.FitIntercept = b
			} else {
				r.StoreCVValues = b
			}
		default:
			return model.UnknownParam("RidgeCV", k)
		}
	}
	r.state.Reset()
	return r.validate()
}

// Clone returns an unfitted copy.
func (r *RidgeCV) Clone() model.Estimator {
	c := NewRidgeCV(r.Alphas)
	c.FitIntercept = r.FitIntercept
	c.StoreCVValues = r.StoreCVValues
	return c
}

func (r *RidgeCV) String() string {
	return fmt.Sprintf("RidgeCV(alphas=%v)", r.Alphas)
}

// ridgeSystem is the SVD of a centered design matrix, shared by all alphas.
type ridgeSystem struct {
	n, p      int
	intercept bool
	xMean     []float64
	yMean     float64
	yc        []float64
	u, v      mat.Dense
	s         []float64
	uty       []float64
}

func newRidgeSystem(op string, X, y mat.Matrix, fitIntercept bool) (*ridgeSystem, error) {
	n, p := X.Dims()
	if n == 0 || p == 0 {
		return nil, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	yr, yc := y.Dims()
	if yr != n {
		return nil, errors.NewDimensionError(op, n, yr, 0)
	}
	if yc != 1 {
		return nil, errors.NewDimensionError(op, 1, yc, 1)
	}

	sys := &ridgeSystem{n: n, p: p, intercept: fitIntercept, xMean: make([]float64, p), yc: make([]float64, n)}
	Xc := mat.DenseCopyOf(X)
	if fitIntercept {
		for j := 0; j < p; j++ {
			m := 0.0
			for i := 0; i < n; i++ {
				m += Xc.At(i, j)
			}
			m /= float64(n)
			sys.xMean[j] = m
			for i := 0; i < n; i++ {
				Xc.Set(i, j, Xc.At(i, j)-m)
			}
		}
		for i := 0; i < n; i++ {
			sys.yMean += y.At(i, 0)
		}
		sys.yMean /= float64(n)
	}
	for i := 0; i < n; i++ {
		sys.yc[i] = y.At(i, 0) - sys.yMean
	}

	var svd mat.SVD
	if ok := svd.Factorize(Xc, mat.SVDThin); !ok {
		return nil, errors.NewModelError(op, "SVD did not converge", errors.ErrSingularMatrix)
	}
	svd.UTo(&sys.u)
	svd.VTo(&sys.v)
	sys.s = svd.Values(nil)

	k := len(sys.s)
	sys.uty = make([]float64, k)
	for c := 0; c < k; c++ {
		sum := 0.0
		for i := 0; i < n; i++ {
			sum += sys.u.At(i, c) * sys.yc[i]
		}
		sys.uty[c] = sum
	}
	return sys, nil
}

// solve returns w = V diag(s/(s²+α)) Uᵀy and the matching intercept.
func (sys *ridgeSystem) solve(alpha float64) ([]float64, float64) {
	k := len(sys.s)
	scaled := make([]float64, k)
	for c := 0; c < k; c++ {
		if den := sys.s[c]*sys.s[c] + alpha; den > 0 {
			scaled[c] = sys.s[c] / den * sys.uty[c]
		}
	}
	coef := make([]float64, sys.p)
	for j := 0; j < sys.p; j++ {
		sum := 0.0
		for c := 0; c < k; c++ {
			sum += sys.v.At(j, c) * scaled[c]
		}
		coef[j] = sum
	}
	intercept := 0.0
	if sys.intercept {
		intercept = sys.yMean
		for j, m := range sys.xMean {
			intercept -= m * coef[j]
		}
	}
	return coef, intercept
}

// looSquaredErrors returns ((y_i - ŷ_i) / (1 - h_ii))² for every sample.
func (sys *ridgeSystem) looSquaredErrors(alpha float64) []float64 {
	k := len(sys.s)
	d := make([]float64, k)
	for c := 0; c < k; c++ {
		s2 := sys.s[c] * sys.s[c]
		d[c] = s2 / (s2 + alpha)
	}
	base := 0.0
	if sys.intercept {
		base = 1 / float64(sys.n)
	}
	out := make([]float64, sys.n)
	for i := 0; i < sys.n; i++ {
		fit, h := 0.0, base
		for c := 0; c < k; c++ {
			uic := sys.u.At(i, c)
			fit += uic * d[c] * sys.uty[c]
			h += uic * uic * d[c]
		}
		denom := 1 - h
		if denom < 1e-12 {
			denom = 1e-12
		}
		e := (sys.yc[i] - fit) / denom
		out[i] = e * e
	}
	return out
}
