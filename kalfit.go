// Package kalfit provides track fitting for layered strip detectors using
// bidirectional linear Kalman filters.
//
// The package itself only declares the interfaces shared across the module.
// The concrete pieces live in the subpackages:
//
//   - matrix:   dense matrix arithmetic with Crout LU inversion
//   - track:    analytic trajectories and track generation
//   - detector: the strip/layer/layered detector model
//   - kalman:   linear and bidirectional Kalman filters
//   - fit:      the multi-track fit manager
package kalfit

import "github.com/jepio/kalfit/matrix"

// Track is an analytic two-dimensional trajectory.
type Track interface {
	// YIntercept returns the y coordinate of the track at x.
	YIntercept(x float64) float64
}

// State is a filter estimate: the state vector x and its covariance P.
type State struct {
	X *matrix.Dense
	P *matrix.Dense
}

// Filter is a manually steppable estimator. This is the surface the fit
// manager depends on: one Step per detector layer, with add controlling
// whether the supplied measurement is retained for later smoothing.
type Filter interface {
	// Step updates the estimate from z (skipped when z is nil), predicts the
	// next state and returns it.
	Step(z *matrix.Dense, add bool) (State, error)
	// State returns the current estimate.
	State() State
	// SetState overrides the current estimate.
	SetState(x, p *matrix.Dense)
}

// Iterator yields successive filter states from staged measurements. Next
// returns false once the measurements are exhausted; iteration is destructive
// and cannot be restarted.
type Iterator interface {
	Next() (State, bool, error)
}
