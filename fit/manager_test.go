package fit

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kalfit "github.com/jepio/kalfit"
	"github.com/jepio/kalfit/detector"
	"github.com/jepio/kalfit/kalman"
	"github.com/jepio/kalfit/matrix"
	"github.com/jepio/kalfit/track"
)

// newTestSetup builds the reference detector and a matching filter
// prototype: state (y, y'), straight-line transition over one layer spacing.
func newTestSetup(t *testing.T) (*detector.Layered, *kalman.TwoWay) {
	t.Helper()

	det, err := detector.New(1, 0, 0.5, 8, 9, 25)
	require.NoError(t, err)

	dx := det.XStep()
	a, err := matrix.New([][]float64{{1, dx}, {0, 1}})
	require.NoError(t, err)
	h, err := matrix.New([][]float64{{1, 0}})
	require.NoError(t, err)
	x, err := matrix.Zero(2, 1)
	require.NoError(t, err)
	id, err := matrix.Identity(2)
	require.NoError(t, err)
	p := id.Scale(100)
	q, err := matrix.New([][]float64{{5e-5, 0}, {0, 5e-5}})
	require.NoError(t, err)
	yErr := 0.5 / 25 / math.Sqrt(12)
	r, err := matrix.New([][]float64{{yErr}})
	require.NoError(t, err)

	proto, err := kalman.NewTwoWay(a, h, x, p, q, r)
	require.NoError(t, err)
	return det, proto
}

func TestNewValidatesInputs(t *testing.T) {
	det, proto := newTestSetup(t)
	_, err := New(nil, proto)
	assert.Error(t, err)
	_, err = New(det, nil)
	assert.Error(t, err)
}

func TestNewReversesPrototype(t *testing.T) {
	det, proto := newTestSetup(t)
	_, err := New(det, proto)
	require.NoError(t, err)
	assert.True(t, proto.Reversed())
}

func TestFitSingleTrack(t *testing.T) {
	assert := assert.New(t)

	// scenario: one horizontal track through the middle of the detector
	det, proto := newTestSetup(t)
	require.NoError(t, det.PropagateTrack(track.NewLine(0, 0)))
	require.Equal(t, 9, det.Hits())

	mgr, err := New(det, proto)
	require.NoError(t, err)
	fitted, err := mgr.Fit()
	assert.NoError(err)
	require.Len(t, fitted, 1)

	f := fitted[0]
	assert.Greater(len(f.Retained()), 2)

	// every layer matched the central strip
	for _, v := range f.MeasurementValues() {
		assert.False(math.IsNaN(v))
		assert.InDelta(0.0, v, 1e-9)
	}

	// fitting consumed every hit
	assert.Equal(0, countHits(det))
}

func TestFitSeparatedTracks(t *testing.T) {
	assert := assert.New(t)

	det, proto := newTestSetup(t)
	tracks := []kalfit.Track{
		track.NewLine(0, 0.2),
		track.NewLine(0, 0),
		track.NewLine(0, -0.2),
	}
	require.NoError(t, det.PropagateTracks(tracks))

	mgr, err := New(det, proto)
	require.NoError(t, err)
	fitted, err := mgr.Fit()
	assert.NoError(err)
	assert.Len(fitted, 3)

	// each candidate follows one track: its measurements are constant
	for _, f := range fitted {
		vals := f.MeasurementValues()
		require.NotEmpty(t, vals)
		for _, v := range vals {
			assert.InDelta(vals[0], v, 1e-9)
		}
	}
}

func TestFitPrunesShortCandidates(t *testing.T) {
	assert := assert.New(t)

	det, proto := newTestSetup(t)
	require.NoError(t, det.PropagateTrack(track.NewLine(0, 0)))

	// a stray hit near the left edge spawns a candidate that can only
	// accumulate one retained entry before the sweep ends
	layers := det.Layers(false)
	require.NoError(t, layers[1].Hit(layers[1].X(), 0.2))

	mgr, err := New(det, proto)
	require.NoError(t, err)
	fitted, err := mgr.Fit()
	assert.NoError(err)
	assert.Len(fitted, 1)
	assert.InDelta(0.0, fitted[0].MeasurementValues()[0], 1e-9)
}

func TestFitEmptyDetector(t *testing.T) {
	det, proto := newTestSetup(t)
	mgr, err := New(det, proto)
	require.NoError(t, err)
	fitted, err := mgr.Fit()
	assert.NoError(t, err)
	assert.Empty(t, fitted)
}

func TestFitMultiplicitySpawnsOnePerHit(t *testing.T) {
	assert := assert.New(t)

	det, proto := newTestSetup(t)
	// two hits on the same strip of the rightmost layer
	right := det.Layers(true)[0]
	require.NoError(t, right.Hit(right.X(), 0.001))
	require.NoError(t, right.Hit(right.X(), 0.001))

	mgr, err := New(det, proto)
	require.NoError(t, err)
	fitted, err := mgr.Fit()
	assert.NoError(err)

	// both hits spawn their own candidate; with no further hits each one
	// advances through the remaining eight layers on predictions alone,
	// which still counts toward the retention threshold
	require.Len(t, fitted, 2)
	for _, f := range fitted {
		assert.Len(f.Retained(), 8)
		for _, v := range f.MeasurementValues() {
			assert.True(math.IsNaN(v))
		}
	}
}

func TestPropagateTracksLength(t *testing.T) {
	assert := assert.New(t)

	det, proto := newTestSetup(t)
	require.NoError(t, det.PropagateTrack(track.NewLine(0, 0)))

	mgr, err := New(det, proto)
	require.NoError(t, err)
	_, err = mgr.Fit()
	require.NoError(t, err)

	coords, err := mgr.PropagateTracks()
	assert.NoError(err)
	require.Len(t, coords, 1)

	// one point per layer plus the starting point outside the detector
	pts := coords[0]
	require.Len(t, pts, 10)
	assert.InDelta(0.0, pts[0].X, 1e-12)
	assert.InDelta(9.0, pts[len(pts)-1].X, 1e-9)
	for i := 1; i < len(pts); i++ {
		assert.InDelta(1.0, pts[i].X-pts[i-1].X, 1e-9)
	}

	// the reconstruction follows the flat track
	for _, p := range pts[2:] {
		assert.InDelta(0.0, p.Y, 0.05)
	}
}

func TestPropagateSeparatedTracks(t *testing.T) {
	assert := assert.New(t)

	det, proto := newTestSetup(t)
	tracks := []kalfit.Track{
		track.NewLine(0, 0.2),
		track.NewLine(0, -0.2),
	}
	require.NoError(t, det.PropagateTracks(tracks))

	mgr, err := New(det, proto)
	require.NoError(t, err)
	_, err = mgr.Fit()
	require.NoError(t, err)

	coords, err := mgr.PropagateTracks()
	assert.NoError(err)
	require.Len(t, coords, 2)
	for _, pts := range coords {
		assert.Len(pts, 10)
		// each reconstruction stays on its own side
		for _, p := range pts[2:] {
			assert.Greater(math.Abs(p.Y), 0.1)
		}
	}
}

func TestGreedyAssign(t *testing.T) {
	assert := assert.New(t)

	costs := [][]float64{
		{0.1, 0.5},
		{0.05, 0.6},
		{2.0, 3.0},
	}
	got := Greedy{}.Assign(costs)
	// row 0 takes column 0 first; row 1 falls back to column 1; row 2 is
	// fully outside the gate
	assert.Equal([]int{0, 1, -1}, got)

	assert.Equal([]int{-1}, Greedy{}.Assign([][]float64{{}}))
	assert.Empty(Greedy{}.Assign(nil))
}

func TestHungarianAssign(t *testing.T) {
	assert := assert.New(t)

	// greedy would give row 0 column 0 and leave row 1 badly matched; the
	// global optimum swaps them
	costs := [][]float64{
		{0.10, 0.12},
		{0.11, 0.90},
	}
	got := Hungarian{}.Assign(costs)
	assert.Equal([]int{1, 0}, got)

	// gated-out pairs stay unassigned
	far := Hungarian{}.Assign([][]float64{{5.0}})
	assert.Equal([]int{-1}, far)

	assert.Empty(Hungarian{}.Assign(nil))
}

func TestFitWithHungarianAssigner(t *testing.T) {
	assert := assert.New(t)

	det, proto := newTestSetup(t)
	require.NoError(t, det.PropagateTracks([]kalfit.Track{
		track.NewLine(0, 0.2),
		track.NewLine(0, -0.2),
	}))

	mgr, err := New(det, proto, WithAssigner(Hungarian{}))
	require.NoError(t, err)
	fitted, err := mgr.Fit()
	assert.NoError(err)
	assert.Len(fitted, 2)
}

func countHits(det *detector.Layered) int {
	total := 0
	for _, l := range det.Layers(false) {
		for _, s := range l.HitStrips() {
			total += s.Hits()
		}
	}
	return total
}
