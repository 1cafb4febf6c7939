// Package errors provides the typed errors and warnings used across climacrop.
//
// The package sits on top of github.com/cockroachdb/errors so every error built
// here carries a stack trace (visible with "%+v") while staying compatible with
// the standard errors.Is / errors.As / errors.Unwrap helpers.
//
// Typed errors:
//
//   - NotFittedError: an estimator was used before Fit
//   - DimensionError: matrix or vector shapes disagree
//   - ValueError: an argument has an invalid value
//   - ModelError: an operation failed, wrapping a sentinel or cause
//   - ValidationError: a parameter or input failed validation
//
// Warnings (ConvergenceWarning, NumericalWarning) do not abort an operation;
// they are handed to Warn, which forwards them to the installed handler.
package errors

import (
	"fmt"
	"math"
	"sync"

	"github.com/cockroachdb/errors"
)

// Sentinel errors.
var (
	ErrNotImplemented    = errors.New("not implemented")
	ErrEmptyData         = errors.New("empty data")
	ErrSingularMatrix    = errors.New("singular matrix")
	ErrDimensionMismatch = errors.New("dimension mismatch")
	ErrNotFitted         = errors.New("estimator not fitted")
	ErrInvalidParameter  = errors.New("invalid parameter")
	ErrMissingColumn     = errors.New("missing column")
	ErrPanic             = errors.New("recovered panic")
)

const prefix = "climacrop"

// New returns an error with a stack trace.
func New(msg string) error { return errors.New(msg) }

// Newf returns a formatted error with a stack trace.
func Newf(format string, args ...interface{}) error { return errors.Newf(format, args...) }

// Wrap annotates err with msg. It returns nil if err is nil.
func Wrap(err error, msg string) error { return errors.Wrap(err, msg) }

// Wrapf annotates err with a formatted message. It returns nil if err is nil.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Unwrap returns the next error in err's chain.
func Unwrap(err error) error { return errors.Unwrap(err) }

// NotFittedError is returned when Predict/Transform is called before Fit.
type NotFittedError struct {
	ModelName string
	Method    string
}

// NewNotFittedError creates a NotFittedError.
func NewNotFittedError(modelName, method string) error {
	return errors.WithStack(&NotFittedError{ModelName: modelName, Method: method})
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("%s: %s: not fitted, call Fit before %s", prefix, e.ModelName, e.Method)
}

// Is matches ErrNotFitted.
func (e *NotFittedError) Is(target error) bool { return target == ErrNotFitted }

// DimensionError reports a shape disagreement along Axis (0 = rows, 1 = columns).
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int
}

// NewDimensionError creates a DimensionError.
func NewDimensionError(op string, expected, got, axis int) error {
	return errors.WithStack(&DimensionError{Op: op, Expected: expected, Got: got, Axis: axis})
}

func (e *DimensionError) Error() string {
	axis := "rows"
	if e.Axis == 1 {
		axis = "columns"
	}
	return fmt.Sprintf("%s: %s: dimension mismatch on %s: expected %d, got %d", prefix, e.Op, axis, e.Expected, e.Got)
}

// Is matches ErrDimensionMismatch.
func (e *DimensionError) Is(target error) bool { return target == ErrDimensionMismatch }

// ValueError reports an invalid argument value.
type ValueError struct {
	Op      string
	Message string
}

// NewValueError creates a ValueError.
func NewValueError(op, message string) error {
	return errors.WithStack(&ValueError{Op: op, Message: message})
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("%s: %s: %s", prefix, e.Op, e.Message)
}

// ModelError is a failed operation with an underlying cause.
type ModelError struct {
	Op      string
	Message string
	Err     error
}

// NewModelError creates a ModelError wrapping err.
func NewModelError(op, message string, err error) error {
	return errors.WithStack(&ModelError{Op: op, Message: message, Err: err})
}

func (e *ModelError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s: %s", prefix, e.Op, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s: %v", prefix, e.Op, e.Message, e.Err)
}

// Unwrap returns the wrapped cause.
func (e *ModelError) Unwrap() error { return e.Err }

// ValidationError reports a parameter or input that failed validation.
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

// NewValidationError creates a ValidationError.
func NewValidationError(paramName, reason string, value interface{}) error {
	return errors.WithStack(&ValidationError{ParamName: paramName, Reason: reason, Value: value})
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: invalid %s (%v): %s", prefix, e.ParamName, e.Value, e.Reason)
}

// Is matches ErrInvalidParameter.
func (e *ValidationError) Is(target error) bool { return target == ErrInvalidParameter }

// ConvergenceWarning is raised when an iterative solver stops before converging.
type ConvergenceWarning struct {
	Algorithm  string
	Iterations int
	Message    string
}

// NewConvergenceWarning creates a ConvergenceWarning.
func NewConvergenceWarning(algorithm string, iterations int, message string) *ConvergenceWarning {
	return &ConvergenceWarning{Algorithm: algorithm, Iterations: iterations, Message: message}
}

func (w *ConvergenceWarning) Error() string {
	return fmt.Sprintf("%s: %s did not converge after %d iterations: %s", prefix, w.Algorithm, w.Iterations, w.Message)
}

// NumericalWarning reports a NaN or infinite value produced during an iteration.
type NumericalWarning struct {
	Name      string
	Value     float64
	Iteration int
}

func (w *NumericalWarning) Error() string {
	return fmt.Sprintf("%s: numerical instability in %s at iteration %d: %v", prefix, w.Name, w.Iteration, w.Value)
}

// CheckScalar returns a NumericalWarning if v is NaN or infinite.
func CheckScalar(name string, v float64, iteration int) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &NumericalWarning{Name: name, Value: v, Iteration: iteration}
	}
	return nil
}

var (
	warnMu      sync.RWMutex
	warnHandler = func(error) {}
)

// SetWarningHandler installs the function that receives warnings passed to Warn.
func SetWarningHandler(h func(error)) {
	warnMu.Lock()
	defer warnMu.Unlock()
	if h == nil {
		h = func(error) {}
	}
	warnHandler = h
}

// Warn forwards a non-fatal warning to the installed handler.
func Warn(w error) {
	if w == nil {
		return
	}
	warnMu.RLock()
	h := warnHandler
	warnMu.RUnlock()
	h(w)
}

// Recover converts a panic in the calling function into a ModelError stored in *errp.
// Use it as `defer Recover(&err, "Op")`.
func Recover(errp *error, op string) {
	if r := recover(); r != nil {
		*errp = NewModelError(op, fmt.Sprintf("panic: %v", r), ErrPanic)
	}
}
