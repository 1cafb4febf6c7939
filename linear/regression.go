// Package linear provides ordinary least squares regression with classical
// coefficient inference.
//
// OLS fits y = Xw + b by the normal equations and, from the same inverse of
// X^T X, reports for every coefficient:
//
//   - the standard error sqrt(s² · (X^T X)^-1_jj), with s² = RSS / (n - p)
//   - the t statistic estimate / standard error
//   - the two-sided p-value from Student's t with n - p degrees of freedom
//
// It is the estimator behind the hypothesis tables, where coefficients and
// their significance matter more than prediction.
//
// Example usage:
//
//	m := linear.NewOLS()
//	err := m.Fit(X, y) // X: features, y: target values
//	if err != nil {
//		log.Fatal(err)
//	}
//	for _, c := range m.Coefficients([]string{"temp_anomaly"}) {
//		fmt.Println(c.Term, c.Estimate, c.P)
//	}
//
// The intercept is always fitted and is reported first under the term
// name "Intercept".
package linear

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/banerjixplores/climacrop/core/model"
	"github.com/banerjixplores/climacrop/core/parallel"
	cerrors "github.com/banerjixplores/climacrop/pkg/errors"
	"github.com/banerjixplores/climacrop/pkg/log"
)

// InterceptTerm names the intercept row of a coefficient table.
const InterceptTerm = "Intercept"

// Coefficient is one row of a fitted model's coefficient table.
type Coefficient struct {
	Term     string  `json:"term"`
	Estimate float64 `json:"estimate"`
	StdErr   float64 `json:"std_err"`
	T        float64 `json:"t"`
	P        float64 `json:"p"`
}

// OLS is an ordinary least squares model with coefficient inference.
type OLS struct {
	State     *model.StateManager // State manager (composition instead of embedding)
	Weights   *mat.VecDense       // Model weights (coefficients)
	Intercept float64             // Model intercept
	NFeatures int                 // Number of features

	// StdErrors, TValues and PValues are indexed intercept first.
	StdErrors []float64
	TValues   []float64
	PValues   []float64

	RSS     float64 // Residual sum of squares
	R2      float64 // In-sample coefficient of determination
	AdjR2   float64 // R2 adjusted for the number of features
	DFResid int     // Residual degrees of freedom, n - p

	logger log.Logger
}

// NewOLS creates an unfitted OLS model.
//
// Returns:
//   - *OLS: A new untrained model
//
// Example:
//
//	m := linear.NewOLS()
//	err := m.Fit(X, y)
//	predictions, err := m.Predict(XTest)
func NewOLS() *OLS {
	m := &OLS{
		State: model.NewStateManager(),
	}

	// Set up logger with model context
	m.logger = log.GetLoggerWithName("linear").With(
		log.ModelNameKey, "OLS",
		log.ComponentKey, "linear",
	)

	return m
}

// Fit trains the model and computes the coefficient statistics.
//
// The method solves the normal equation (X^T * X)w = X^T * y. The inverse of
// X^T X is kept for the coefficient covariance s² (X^T X)^-1.
//
// Parameters:
//   - X: Feature matrix of shape (n_samples, n_features)
//   - y: Target column vector of shape (n_samples, 1)
//
// Returns:
//   - error: nil if training succeeds, otherwise an error describing the failure
//
// Errors:
//   - ErrEmptyData: if X or y are empty
//   - ErrDimensionMismatch: if the number of samples in X and y don't match
//   - ErrSingularMatrix: if X^T * X is singular or numerically so
//
// With no residual degrees of freedom (n <= p) the fit succeeds but every
// standard error, t statistic and p-value is NaN.
func (m *OLS) Fit(X, y mat.Matrix) (err error) {
	defer cerrors.Recover(&err, "OLS.Fit")

	startTime := time.Now()
	r, c := X.Dims()
	ry, cy := y.Dims()

	if m.logger != nil {
		m.logger.Debug("Training started",
			log.OperationKey, log.OperationFit,
			log.PhaseKey, log.PhaseTraining,
			log.SamplesKey, r,
			log.FeaturesKey, c,
		)
	}

	if r == 0 || c == 0 {
		return cerrors.NewModelError("OLS.Fit", "empty data", cerrors.ErrEmptyData)
	}
	if ry != r {
		return cerrors.NewDimensionError("OLS.Fit", r, ry, 0)
	}
	if cy != 1 {
		return cerrors.NewValueError("OLS.Fit", "y must be a column vector")
	}

	m.NFeatures = c
	p := c + 1

	// X_with_intercept = [1, X]
	design := mat.NewDense(r, p, nil)
	const parallelThreshold = 1000
	parallel.ParallelizeWithThreshold(r, parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			design.Set(i, 0, 1.0)
			for j := 0; j < c; j++ {
				design.Set(i, j+1, X.At(i, j))
			}
		}
	})

	var xtx mat.Dense
	xtx.Mul(design.T(), design)

	// A Condition error means the inverse is unreliable; treat it as singular.
	var xtxInv mat.Dense
	if err := xtxInv.Inverse(&xtx); err != nil {
		return cerrors.NewModelError("OLS.Fit", "singular matrix", cerrors.ErrSingularMatrix)
	}

	yVec := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		yVec.SetVec(i, y.At(i, 0))
	}

	var xty mat.VecDense
	xty.MulVec(design.T(), yVec)

	weights := mat.NewVecDense(p, nil)
	weights.MulVec(&xtxInv, &xty)

	m.Intercept = weights.AtVec(0)
	m.Weights = mat.NewVecDense(c, nil)
	for i := 0; i < c; i++ {
		m.Weights.SetVec(i, weights.AtVec(i+1))
	}

	var fitted mat.VecDense
	fitted.MulVec(design, weights)
	var mean float64
	for i := 0; i < r; i++ {
		mean += yVec.AtVec(i)
	}
	mean /= float64(r)
	var tss float64
	m.RSS = 0
	for i := 0; i < r; i++ {
		res := yVec.AtVec(i) - fitted.AtVec(i)
		m.RSS += res * res
		d := yVec.AtVec(i) - mean
		tss += d * d
	}
	m.R2 = math.NaN()
	m.AdjR2 = math.NaN()
	if tss > 0 {
		m.R2 = 1 - m.RSS/tss
	}

	m.DFResid = r - p
	m.StdErrors = make([]float64, p)
	m.TValues = make([]float64, p)
	m.PValues = make([]float64, p)
	if m.DFResid <= 0 {
		for j := 0; j < p; j++ {
			m.StdErrors[j], m.TValues[j], m.PValues[j] = math.NaN(), math.NaN(), math.NaN()
		}
	} else {
		if tss > 0 {
			m.AdjR2 = 1 - (1-m.R2)*float64(r-1)/float64(m.DFResid)
		}
		s2 := m.RSS / float64(m.DFResid)
		dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(m.DFResid)}
		for j := 0; j < p; j++ {
			se := math.Sqrt(s2 * xtxInv.At(j, j))
			t := weights.AtVec(j) / se
			m.StdErrors[j] = se
			m.TValues[j] = t
			m.PValues[j] = 2 * dist.Survival(math.Abs(t))
		}
	}

	m.State.SetFitted()
	m.State.SetDimensions(m.NFeatures, r)

	if m.logger != nil {
		m.logger.Debug("Training completed",
			log.OperationKey, log.OperationFit,
			log.PhaseKey, log.PhaseTraining,
			log.DurationMsKey, time.Since(startTime).Milliseconds(),
			log.SamplesKey, r,
			log.FeaturesKey, c,
			"r2", m.R2,
		)
	}
	return nil
}

// Predict returns X * weights + intercept as an (n_samples, 1) matrix.
//
// Errors:
//   - ErrNotFitted: if the model hasn't been trained yet
//   - ErrDimensionMismatch: if X has a different number of features than training data
func (m *OLS) Predict(X mat.Matrix) (_ mat.Matrix, err error) {
	defer cerrors.Recover(&err, "OLS.Predict")
	if !m.State.IsFitted() {
		return nil, cerrors.NewNotFittedError("OLS", "Predict")
	}

	r, c := X.Dims()
	if c != m.NFeatures {
		return nil, cerrors.NewDimensionError("OLS.Predict", m.NFeatures, c, 1)
	}

	predictions := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		pred := m.Intercept
		for j := 0; j < c; j++ {
			pred += X.At(i, j) * m.Weights.AtVec(j)
		}
		predictions.Set(i, 0, pred)
	}
	return predictions, nil
}

// Coefficients returns the coefficient table, intercept first, with the
// features named by names. Missing names default to x0, x1, ...
func (m *OLS) Coefficients(names []string) []Coefficient {
	if !m.State.IsFitted() {
		return nil
	}
	out := make([]Coefficient, 0, m.NFeatures+1)
	out = append(out, Coefficient{
		Term:     InterceptTerm,
		Estimate: m.Intercept,
		StdErr:   m.StdErrors[0],
		T:        m.TValues[0],
		P:        m.PValues[0],
	})
	for j := 0; j < m.NFeatures; j++ {
		term := fmt.Sprintf("x%d", j)
		if j < len(names) {
			term = names[j]
		}
		out = append(out, Coefficient{
			Term:     term,
			Estimate: m.Weights.AtVec(j),
			StdErr:   m.StdErrors[j+1],
			T:        m.TValues[j+1],
			P:        m.PValues[j+1],
		})
	}
	return out
}

// GetWeights returns the learned weights (coefficients)
func (m *OLS) GetWeights() []float64 {
	if m.Weights == nil {
		return nil
	}
	weights := make([]float64, m.Weights.Len())
	for i := range weights {
		weights[i] = m.Weights.AtVec(i)
	}
	return weights
}

// IsFitted returns whether the model has been fitted.
func (m *OLS) IsFitted() bool {
	return m.State.IsFitted()
}
