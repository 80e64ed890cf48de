package kalman

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jepio/kalfit/matrix"
)

// newRampFilter builds the constant-velocity test filter: state (y, y'),
// position observed, driven below by a ramp of measurements.
func newRampFilter(t *testing.T) *Filter {
	t.Helper()
	f, err := New(rampMatrices(t))
	require.NoError(t, err)
	return f
}

func rampMatrices(t *testing.T) (a, h, x, p, q, r *matrix.Dense) {
	t.Helper()
	var err error
	a, err = matrix.New([][]float64{{1, 1}, {0, 1}})
	require.NoError(t, err)
	h, err = matrix.New([][]float64{{1, 0}})
	require.NoError(t, err)
	x, err = matrix.Zero(2, 1)
	require.NoError(t, err)
	id, err := matrix.Identity(2)
	require.NoError(t, err)
	p = id.Scale(100)
	q = id.Scale(1e-4)
	r, err = matrix.New([][]float64{{5}})
	require.NoError(t, err)
	return a, h, x, p, q, r
}

func scalarMeasurement(t *testing.T, v float64) *matrix.Dense {
	t.Helper()
	m, err := matrix.New([][]float64{{v}})
	require.NoError(t, err)
	return m
}

func TestNewRequiresMatrices(t *testing.T) {
	a, h, x, p, q, _ := rampMatrices(t)
	_, err := New(a, h, x, p, q, nil)
	assert.Error(t, err)
}

func TestUpdateWrongMeasurementShape(t *testing.T) {
	f := newRampFilter(t)
	bad, err := matrix.New([][]float64{{1}, {2}})
	require.NoError(t, err)
	assert.ErrorIs(t, f.Update(bad), ErrWrongMeasurementShape)
}

func TestStepEqualsUpdateThenPredict(t *testing.T) {
	assert := assert.New(t)

	stepped := newRampFilter(t)
	manual := newRampFilter(t)
	z := scalarMeasurement(t, 1.5)

	st, err := stepped.Step(z, false)
	assert.NoError(err)
	assert.NoError(manual.Update(z))
	assert.NoError(manual.Predict())

	assert.True(st.X.EqualApprox(manual.State().X, 1e-12))
	assert.True(st.P.EqualApprox(manual.State().P, 1e-12))
}

func TestStepWithoutMeasurementEqualsPredict(t *testing.T) {
	assert := assert.New(t)

	stepped := newRampFilter(t)
	manual := newRampFilter(t)

	st, err := stepped.Step(nil, false)
	assert.NoError(err)
	assert.NoError(manual.Predict())

	assert.True(st.X.EqualApprox(manual.State().X, 1e-12))
	assert.True(st.P.EqualApprox(manual.State().P, 1e-12))
	assert.Equal(1, stepped.Steps())
}

func TestIterationYieldsOneStatePerMeasurement(t *testing.T) {
	assert := assert.New(t)

	f := newRampFilter(t)
	ms := make([]*matrix.Dense, 7)
	for i := range ms {
		ms[i] = scalarMeasurement(t, float64(i))
	}
	states, err := Sweep(f, ms)
	assert.NoError(err)
	assert.Len(states, 7)

	// iteration is destructive
	more, err := Collect(f)
	assert.NoError(err)
	assert.Empty(more)
}

func TestRampConvergence(t *testing.T) {
	assert := assert.New(t)

	f := newRampFilter(t)
	ms := make([]*matrix.Dense, 10)
	for i := range ms {
		ms[i] = scalarMeasurement(t, float64(i))
	}
	states, err := Sweep(f, ms)
	assert.NoError(err)
	require.Len(t, states, 10)

	// each state is the prediction for the next measurement; the estimate
	// should home in on the ramp
	for i := 1; i < len(states); i++ {
		assert.Greater(states[i].X.At(0, 0), states[i-1].X.At(0, 0))
	}
	last := states[len(states)-1].X.At(0, 0)
	assert.InDelta(10.0, last, 1.5)
}

func TestRetention(t *testing.T) {
	assert := assert.New(t)

	f := newRampFilter(t)

	// the arming step records nothing
	_, err := f.Step(nil, true)
	assert.NoError(err)
	assert.Empty(f.Retained())

	z := scalarMeasurement(t, 0.25)
	_, err = f.Step(z, true)
	assert.NoError(err)
	_, err = f.Step(nil, true)
	assert.NoError(err)
	// steps without add do not retain
	_, err = f.Step(scalarMeasurement(t, 9), false)
	assert.NoError(err)

	retained := f.Retained()
	require.Len(t, retained, 2)
	assert.Same(z, retained[0])
	assert.Nil(retained[1])

	vals := f.MeasurementValues()
	require.Len(t, vals, 2)
	assert.Equal(0.25, vals[0])
	assert.True(math.IsNaN(vals[1]))
}

func TestMeasurementValuesRounding(t *testing.T) {
	f := newRampFilter(t)
	_, err := f.Step(nil, true)
	require.NoError(t, err)
	_, err = f.Step(scalarMeasurement(t, 0.123456789), true)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.12346}, f.MeasurementValues())
}

func TestSetState(t *testing.T) {
	assert := assert.New(t)

	f := newRampFilter(t)
	x, err := matrix.New([][]float64{{3}, {1}})
	require.NoError(t, err)
	p, err := matrix.New([][]float64{{10, 0}, {0, 10}})
	require.NoError(t, err)

	f.SetState(x, p)
	st := f.State()
	assert.Same(x, st.X)
	assert.Same(p, st.P)
}
