// Package model provides the core abstractions shared by every estimator in
// climacrop.
//
// This package defines:
//
//   - StateManager: fitted-state and dimension tracking embedded by estimators
//   - Estimator, Transformer, Regressor: matrix-level interfaces
//   - FrameTransformer, FrameRegressor: table-level interfaces used by pipelines
//   - Parameter helpers for sklearn-style "step__param" routing
//   - Artifact: the JSON envelope used to persist fitted models and results
//
// Typical estimator layout:
//
//	type MyModel struct {
//		state *model.StateManager
//		// hyperparameters and fitted fields
//	}
//
//	func (m *MyModel) Fit(X, y mat.Matrix) (err error) {
//		defer errors.Recover(&err, "MyModel.Fit")
//		// training logic
//		m.state.SetFitted()
//		return nil
//	}
package model

import (
	"sync"
)

// EstimatorState represents the learning state of a model
type EstimatorState int

const (
	// NotFitted indicates the model is not yet trained
	NotFitted EstimatorState = iota
	// Fitted indicates the model has been trained
	Fitted
)

// StateManager tracks whether an estimator is fitted and the shape it was fitted on.
// It is safe for concurrent use.
type StateManager struct {
	mu        sync.RWMutex
	state     EstimatorState
	nFeatures int
	nSamples  int
}

// NewStateManager returns an unfitted StateManager.
func NewStateManager() *StateManager {
	return &StateManager{}
}

// IsFitted returns whether the model has been fitted with training data.
//
// Example:
//
//	if !m.state.IsFitted() {
//	    return nil, errors.NewNotFittedError("RidgeCV", "Predict")
//	}
func (s *StateManager) IsFitted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state == Fitted
}

// SetFitted marks the estimator as fitted.
func (s *StateManager) SetFitted() {
	s.mu.Lock()
	s.state = Fitted
	s.mu.Unlock()
}

// Reset returns the estimator to its initial untrained state.
func (s *StateManager) Reset() {
	s.mu.Lock()
	s.state = NotFitted
	s.nFeatures = 0
	s.nSamples = 0
	s.mu.Unlock()
}

// SetDimensions records the training shape.
func (s *StateManager) SetDimensions(nFeatures, nSamples int) {
	s.mu.Lock()
	s.nFeatures = nFeatures
	s.nSamples = nSamples
	s.mu.Unlock()
}

// NFeatures returns the number of features seen during Fit.
func (s *StateManager) NFeatures() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nFeatures
}

// NSamples returns the number of samples seen during Fit.
func (s *StateManager) NSamples() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nSamples
}
