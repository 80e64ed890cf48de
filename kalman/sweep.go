package kalman

import (
	kalfit "github.com/jepio/kalfit"
	"github.com/jepio/kalfit/matrix"
)

// Collect drains an iterator and returns every yielded state. It stops at
// the first error, returning the states collected up to that point.
func Collect(it kalfit.Iterator) ([]kalfit.State, error) {
	var states []kalfit.State
	for {
		st, ok, err := it.Next()
		if err != nil {
			return states, err
		}
		if !ok {
			return states, nil
		}
		states = append(states, st)
	}
}

// Sweep stages ms on the filter and collects the resulting states, one per
// measurement.
func Sweep(f *Filter, ms []*matrix.Dense) ([]kalfit.State, error) {
	f.AddMeasurements(ms)
	return Collect(f)
}
