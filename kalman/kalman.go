// Package kalman implements a linear Kalman filter and a bidirectional
// variant over dense matrices. Filters are stepped manually through
// Update/Predict/Step, or swept over a staged measurement sequence through
// the Iterator protocol declared in the root package.
package kalman

import (
	"errors"
	"fmt"
	"math"

	kalfit "github.com/jepio/kalfit"
	"github.com/jepio/kalfit/matrix"
)

// ErrWrongMeasurementShape is returned by Update when the measurement size
// differs from the shape of H*x.
var ErrWrongMeasurementShape = errors.New("kalman: wrong measurement shape")

var (
	_ kalfit.Filter   = (*Filter)(nil)
	_ kalfit.Iterator = (*Filter)(nil)
)

// Filter is a linear Kalman filter. It carries the problem matrices
// (A, H, Q, R), the running estimate (x, P) and, optionally, the
// measurements it has consumed so far for later smoothing.
//
// Dimension consistency across the matrices is checked at first arithmetic
// use: incompatible shapes surface as matrix.ErrShapeMismatch from Update or
// Predict.
type Filter struct {
	a, h, q, r *matrix.Dense
	x, p       *matrix.Dense
	eye        *matrix.Dense

	// measurements retained by Step(..., add=true), nil entries marking
	// layers advanced without an update
	retained  []*matrix.Dense
	retaining bool

	// staged queue consumed by Next
	queue []*matrix.Dense

	steps int
}

// New returns a linear Kalman filter with state transition a, observation h,
// initial state x, initial covariance p, process covariance q and
// measurement covariance r. It returns an error if any matrix is missing.
func New(a, h, x, p, q, r *matrix.Dense) (*Filter, error) {
	for _, m := range []*matrix.Dense{a, h, x, p, q, r} {
		if m == nil {
			return nil, fmt.Errorf("missing filter matrix")
		}
	}
	rows, cols := x.Dims()
	dim := rows
	if cols > dim {
		dim = cols
	}
	eye, err := matrix.Identity(dim)
	if err != nil {
		return nil, fmt.Errorf("state vector %dx%d: %w", rows, cols, err)
	}
	return &Filter{a: a, h: h, x: x, p: p, q: q, r: r, eye: eye}, nil
}

// State returns the current state vector and covariance.
func (f *Filter) State() kalfit.State {
	return kalfit.State{X: f.x, P: f.p}
}

// SetState overrides the current state vector and covariance. Handing a
// freshly spawned filter its own matrices here is what decouples it from the
// filter it was cloned from.
func (f *Filter) SetState(x, p *matrix.Dense) {
	f.x = x
	f.p = p
}

// Steps returns the number of Step calls performed so far.
func (f *Filter) Steps() int { return f.steps }

// Update corrects the current state estimate with the measurement z:
//
//	y = z - H*x
//	S = H*P*H' + R
//	K = P*H'*S^-1
//	x = x + K*y
//	P = (I - K*H)*P
//
// It returns ErrWrongMeasurementShape if z is not shaped like H*x.
func (f *Filter) Update(z *matrix.Dense) error {
	hx, err := f.h.Mul(f.x)
	if err != nil {
		return err
	}
	zr, zc := z.Dims()
	hr, hc := hx.Dims()
	if zr != hr || zc != hc {
		return fmt.Errorf("measurement %dx%d, want %dx%d: %w", zr, zc, hr, hc, ErrWrongMeasurementShape)
	}
	y, err := z.Sub(hx)
	if err != nil {
		return err
	}
	hp, err := f.h.Mul(f.p)
	if err != nil {
		return err
	}
	hph, err := hp.Mul(f.h.T())
	if err != nil {
		return err
	}
	s, err := hph.Add(f.r)
	if err != nil {
		return err
	}
	sInv, err := s.Inverse()
	if err != nil {
		return err
	}
	pht, err := f.p.Mul(f.h.T())
	if err != nil {
		return err
	}
	k, err := pht.Mul(sInv)
	if err != nil {
		return err
	}
	ky, err := k.Mul(y)
	if err != nil {
		return err
	}
	x, err := f.x.Add(ky)
	if err != nil {
		return err
	}
	kh, err := k.Mul(f.h)
	if err != nil {
		return err
	}
	ikh, err := f.eye.Sub(kh)
	if err != nil {
		return err
	}
	p, err := ikh.Mul(f.p)
	if err != nil {
		return err
	}
	f.x, f.p = x, p
	return nil
}

// Predict projects the state estimate one step ahead:
//
//	x = A*x
//	P = A*P*A' + Q
func (f *Filter) Predict() error {
	x, err := f.a.Mul(f.x)
	if err != nil {
		return err
	}
	ap, err := f.a.Mul(f.p)
	if err != nil {
		return err
	}
	apa, err := ap.Mul(f.a.T())
	if err != nil {
		return err
	}
	p, err := apa.Add(f.q)
	if err != nil {
		return err
	}
	f.x, f.p = x, p
	return nil
}

// Step performs one filter iteration: Update from z when z is non-nil, then
// always Predict. The supplied measurement corresponds to the state before
// the call. When add is set the measurement is retained for later smoothing;
// the very first retaining call only arms retention, so that a filter seeded
// from a hit records one entry per layer it subsequently visits.
func (f *Filter) Step(z *matrix.Dense, add bool) (kalfit.State, error) {
	if add {
		if !f.retaining {
			f.retaining = true
		} else {
			f.retained = append(f.retained, z)
		}
	}
	if z != nil {
		if err := f.Update(z); err != nil {
			return kalfit.State{}, err
		}
	}
	if err := f.Predict(); err != nil {
		return kalfit.State{}, err
	}
	f.steps++
	return f.State(), nil
}

// Retained returns the measurements collected by Step with add set, in the
// order they were stepped. Entries are nil for steps taken without a
// measurement. The slice is shared with the filter.
func (f *Filter) Retained() []*matrix.Dense {
	return f.retained
}

// MeasurementValues projects the retained measurements to their first entry,
// rounded to 5 decimal digits. Steps taken without a measurement map to NaN.
func (f *Filter) MeasurementValues() []float64 {
	const scale = 1e5
	vals := make([]float64, len(f.retained))
	for i, m := range f.retained {
		if m == nil {
			vals[i] = math.NaN()
			continue
		}
		vals[i] = math.Round(m.At(0, 0)*scale) / scale
	}
	return vals
}

// AddMeasurements stages ms for iteration through Next. The slice is copied;
// iteration is destructive and cannot be restarted.
func (f *Filter) AddMeasurements(ms []*matrix.Dense) {
	f.queue = append([]*matrix.Dense(nil), ms...)
}

// Next consumes the head of the staged measurements, steps the filter and
// returns the new state. It reports false once the queue is exhausted.
func (f *Filter) Next() (kalfit.State, bool, error) {
	if len(f.queue) == 0 {
		return kalfit.State{}, false, nil
	}
	z := f.queue[0]
	f.queue = f.queue[1:]
	st, err := f.Step(z, false)
	if err != nil {
		return kalfit.State{}, false, err
	}
	return st, true, nil
}
