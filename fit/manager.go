// Package fit reconstructs tracks from the hits recorded in a layered
// detector. A Manager sweeps the layers from the far side of the detector,
// spawning one bidirectional Kalman filter per unassigned hit, feeding each
// candidate the gated nearest hit on every subsequent layer, and finally
// pruning the candidates that never accumulated enough measurements.
package fit

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jepio/kalfit/detector"
	"github.com/jepio/kalfit/kalman"
	"github.com/jepio/kalfit/matrix"
)

// Point is one reconstructed (x, y) estimate of a fitted track.
type Point struct {
	X float64
	Y float64
}

// minMeasurements is the retention count a candidate must exceed to survive
// the fit.
const minMeasurements = 2

// Option configures a Manager.
type Option func(*Manager)

// WithLogger routes the manager's debug events to log. The default manager
// is silent.
func WithLogger(log zerolog.Logger) Option {
	return func(m *Manager) { m.log = log }
}

// WithAssigner replaces the per-layer hit-to-candidate assignment strategy.
// The default is Greedy.
func WithAssigner(a Assigner) Option {
	return func(m *Manager) { m.assigner = a }
}

// Manager drives the fitting process over a populated detector. It owns the
// candidate filters it spawns, but neither the detector nor the prototype.
type Manager struct {
	det      *detector.Layered
	proto    *kalman.TwoWay
	cands    []*kalman.TwoWay
	assigner Assigner
	log      zerolog.Logger
}

// New returns a fit manager over det using proto as the template for
// candidate filters. The prototype is reversed once here so that the fit
// sweep, which walks the layers from the far side, steps the filters
// backward through the detector. Track propagation must be complete before
// Fit is called.
func New(det *detector.Layered, proto *kalman.TwoWay, opts ...Option) (*Manager, error) {
	if det == nil {
		return nil, fmt.Errorf("fit: missing detector")
	}
	if proto == nil {
		return nil, fmt.Errorf("fit: missing prototype filter")
	}
	if err := proto.Reverse(); err != nil {
		return nil, fmt.Errorf("fit: reversing prototype: %w", err)
	}
	m := &Manager{det: det, proto: proto, assigner: Greedy{}, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Candidates returns the current candidate filters.
func (m *Manager) Candidates() []*kalman.TwoWay {
	return append([]*kalman.TwoWay(nil), m.cands...)
}

// Fit sweeps the detector layer by layer in descending x order, associating
// hits with candidate filters inside a 3-sigma gate, spawning new candidates
// for the hits nobody claimed and finally discarding candidates with fewer
// than three retained measurements. It returns the surviving candidates.
func (m *Manager) Fit() ([]*kalman.TwoWay, error) {
	layers := m.det.Layers(true)
	if len(layers) == 0 {
		return nil, nil
	}

	if err := m.spawn(layers[0]); err != nil {
		return nil, err
	}

	for _, layer := range layers[1:] {
		if err := m.associate(layer); err != nil {
			return nil, err
		}
		if err := m.spawn(layer); err != nil {
			return nil, err
		}
	}

	kept := m.cands[:0]
	for _, f := range m.cands {
		if len(f.Retained()) > minMeasurements {
			kept = append(kept, f)
			continue
		}
		m.log.Debug().Int("retained", len(f.Retained())).Msg("pruned candidate")
	}
	m.cands = kept
	return m.Candidates(), nil
}

// associate advances every candidate across one layer, feeding it its
// assigned hit if one falls inside the gate and consuming that hit from the
// layer.
func (m *Manager) associate(layer *detector.Layer) error {
	if len(m.cands) == 0 {
		return nil
	}

	// one unit per hit, so a strip with multiplicity n can serve n candidates
	var units []*detector.Strip
	for _, s := range layer.HitStrips() {
		for i := 0; i < s.Hits(); i++ {
			units = append(units, s)
		}
	}

	costs := make([][]float64, len(m.cands))
	for i, f := range m.cands {
		st := f.State()
		predicted := st.X.At(0, 0)
		yVar := st.P.At(0, 0)
		costs[i] = make([]float64, len(units))
		for j, s := range units {
			_, y := s.Pos()
			d := y - predicted
			// residual over the 3-sigma window; above 1 is outside the gate
			costs[i][j] = d * d / (9 * yVar)
		}
	}

	assigned := m.assigner.Assign(costs)
	for i, f := range m.cands {
		if assigned[i] < 0 {
			// no hit inside the gate: advance on the prediction alone
			if _, err := f.Step(nil, true); err != nil {
				return err
			}
			continue
		}
		s := units[assigned[i]]
		_, y := s.Pos()
		z, err := matrix.New([][]float64{{y}})
		if err != nil {
			return err
		}
		if _, err := f.Step(z, true); err != nil {
			return err
		}
		layer.Consume(s)
		m.log.Debug().Float64("x", layer.X()).Float64("y", y).Int("candidate", i).Msg("hit assigned")
	}
	return nil
}

// spawn creates one candidate per unit of hit multiplicity left on the
// layer, seeds it with the strip position and a slope pointing back at the
// origin, and clears the layer.
func (m *Manager) spawn(layer *detector.Layer) error {
	for _, s := range layer.HitStrips() {
		x, y := s.Pos()
		for i := 0; i < s.Hits(); i++ {
			state, err := matrix.New([][]float64{{y}, {y / x}})
			if err != nil {
				return err
			}
			cov, err := matrix.New([][]float64{{10, 0}, {0, 10}})
			if err != nil {
				return err
			}
			f := m.proto.Clone()
			f.SetState(state, cov)
			// the arming step: retention starts with the next layer
			if _, err := f.Step(nil, true); err != nil {
				return err
			}
			m.cands = append(m.cands, f)
			m.log.Debug().Float64("x", x).Float64("y", y).Msg("spawned candidate")
		}
	}
	layer.ClearHits()
	return nil
}

// PropagateTracks reverses every surviving candidate back to forward time
// and replays its retained measurements across the detector, producing the
// starting point just outside the detector plus one (x, y) estimate per layer
// from the near edge up to the layer the candidate was spawned on. Only a
// candidate spawned on the far layer covers every layer; one spawned nearer
// gets no estimates beyond its spawn layer. Call it once, after Fit.
func (m *Manager) PropagateTracks() ([][]Point, error) {
	xStep := m.det.XStep()
	startX, _ := m.det.Pos()

	result := make([][]Point, 0, len(m.cands))
	for _, f := range m.cands {
		if err := f.Reverse(); err != nil {
			return nil, err
		}
		estimates := []Point{{X: startX - xStep, Y: f.State().X.At(0, 0)}}

		// the filter updates before it predicts; one unmatched predict
		// aligns the replay with the layer positions
		st, err := f.Step(nil, false)
		if err != nil {
			return nil, err
		}
		x := startX
		estimates = append(estimates, Point{X: x, Y: st.X.At(0, 0)})

		// retained measurements were recorded right to left; replay them in
		// ascending x order
		retained := f.Retained()
		for i := len(retained) - 1; i >= 0; i-- {
			st, err := f.Step(retained[i], false)
			if err != nil {
				return nil, err
			}
			x += xStep
			estimates = append(estimates, Point{X: x, Y: st.X.At(0, 0)})
		}
		result = append(result, estimates)
	}
	return result, nil
}
