package kalman

import (
	kalfit "github.com/jepio/kalfit"
	"github.com/jepio/kalfit/matrix"
)

var (
	_ kalfit.Filter   = (*TwoWay)(nil)
	_ kalfit.Iterator = (*TwoWay)(nil)
)

// TwoWay is a bidirectional Kalman filter. It extends Filter with a
// direction flag and a second measurement buffer so that a staged
// measurement sequence is iterated twice: first backward through time, then
// forward, yielding 2*len(ms) states. The backward pass runs on the inverted
// state transition matrix; after a complete iteration A is restored up to
// the numerical drift of two inversions.
type TwoWay struct {
	Filter

	// pending is popped from the back by Next; queued takes over once
	// pending drains.
	pending []*matrix.Dense
	queued  []*matrix.Dense

	reversed bool
	started  bool
}

// NewTwoWay returns a bidirectional Kalman filter over the same matrices as
// New.
func NewTwoWay(a, h, x, p, q, r *matrix.Dense) (*TwoWay, error) {
	f, err := New(a, h, x, p, q, r)
	if err != nil {
		return nil, err
	}
	return &TwoWay{Filter: *f}, nil
}

// Reverse flips the direction the filter is stepping in by replacing the
// state transition matrix with its inverse. Calling it twice restores the
// original matrix modulo numerical error.
func (f *TwoWay) Reverse() error {
	inv, err := f.a.Inverse()
	if err != nil {
		return err
	}
	// the cached inverse is shared with the original; keep a private copy so
	// later writes cannot alias
	f.a = inv.Clone()
	f.reversed = !f.reversed
	return nil
}

// Reversed reports whether the filter is currently stepping backward.
func (f *TwoWay) Reversed() bool { return f.reversed }

// AddMeasurements stages ms for bidirectional iteration: the backward pass
// consumes the measurements last to first, the forward pass first to last.
func (f *TwoWay) AddMeasurements(ms []*matrix.Dense) {
	f.pending = append([]*matrix.Dense(nil), ms...)
	f.queued = make([]*matrix.Dense, len(ms))
	for i, m := range ms {
		f.queued[len(ms)-1-i] = m
	}
	f.started = false
}

// Next yields the next state of the bidirectional sweep. The first call
// reverses the filter and starts the backward pass; once the backward pass
// drains, the buffers swap, the filter reverses again and the forward pass
// replays the same measurements. It reports false after both passes.
func (f *TwoWay) Next() (kalfit.State, bool, error) {
	if !f.started {
		if len(f.pending) == 0 {
			return kalfit.State{}, false, nil
		}
		if err := f.Reverse(); err != nil {
			return kalfit.State{}, false, err
		}
		f.started = true
	}
	for {
		if n := len(f.pending); n > 0 {
			z := f.pending[n-1]
			f.pending = f.pending[:n-1]
			st, err := f.Step(z, false)
			if err != nil {
				return kalfit.State{}, false, err
			}
			return st, true, nil
		}
		// backward pass done; replay forward
		f.pending, f.queued = f.queued, nil
		if len(f.pending) == 0 {
			return kalfit.State{}, false, nil
		}
		if err := f.Reverse(); err != nil {
			return kalfit.State{}, false, err
		}
	}
}

// Clone returns a filter sharing no storage with the receiver: all problem
// matrices and the current estimate are deep-copied, measurement buffers and
// counters start empty. Spawned candidates must not bleed state into each
// other.
func (f *TwoWay) Clone() *TwoWay {
	return &TwoWay{
		Filter: Filter{
			a:   f.a.Clone(),
			h:   f.h.Clone(),
			q:   f.q.Clone(),
			r:   f.r.Clone(),
			x:   f.x.Clone(),
			p:   f.p.Clone(),
			eye: f.eye.Clone(),
		},
		reversed: f.reversed,
	}
}
