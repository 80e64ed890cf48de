// Package track implements analytic two-dimensional trajectories for
// propagation through a layered detector. All tracks satisfy the
// kalfit.Track interface: given x they return the y coordinate of the
// trajectory.
package track

import (
	"math"
	"time"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Line is a straight line track with the equation y = A*x + B.
type Line struct {
	// A is the slope of the track.
	A float64
	// B is the y intercept at x = 0.
	B float64
}

// NewLine returns a straight line track with slope a and intercept b.
func NewLine(a, b float64) *Line {
	return &Line{A: a, B: b}
}

// YIntercept returns the y coordinate of the track at x.
func (l *Line) YIntercept(x float64) float64 {
	return l.A*x + l.B
}

// Magnetic is a track curved by a magnetic field of strength Field in the z
// direction. The field is uniform: within |A/Field| of x = A*sin(atan(A))/Field
// the trajectory is an arc of radius |A/Field| peaking at that x.
type Magnetic struct {
	Line
	// Field is the field strength along z.
	Field float64
}

// NewMagnetic returns a line track with slope a and intercept b that
// propagates in a magnetic field of the given strength along z.
func NewMagnetic(a, b, field float64) *Magnetic {
	return &Magnetic{Line: Line{A: a, B: b}, Field: field}
}

// YIntercept returns the y coordinate of the track at x, taking into account
// the curvature caused by the field.
func (m *Magnetic) YIntercept(x float64) float64 {
	alpha := math.Atan(m.A)
	vx0 := m.A * math.Cos(alpha)
	vy0 := m.A * math.Sin(alpha)
	r := m.A / m.Field
	return math.Sqrt(math.Abs(r*r-(x-vy0/m.Field)*(x-vy0/m.Field))) + m.B - vx0/m.Field
}

// GenerateLines returns n randomly generated straight line tracks with
// intercepts uniform in [-0.1, 0.1] and angles uniform in [-15, 15] degrees.
func GenerateLines(n int) []*Line {
	return GenerateLinesFrom(n, rand.NewSource(uint64(time.Now().UnixNano())))
}

// GenerateLinesFrom is GenerateLines drawing from src, for reproducible runs.
func GenerateLinesFrom(n int, src rand.Source) []*Line {
	u := distuv.Uniform{Min: 0, Max: 1, Src: src}
	tracks := make([]*Line, n)
	for i := range tracks {
		b := 0.2 * (u.Rand() - 0.5)
		// uniform angle between -15 and 15 degrees
		a := math.Tan(math.Pi / 6 * (u.Rand() - 0.5))
		tracks[i] = NewLine(a, b)
	}
	return tracks
}
