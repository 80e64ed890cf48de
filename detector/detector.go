// Package detector models a layered silicon-strip style detector: a layered
// detector owns evenly spaced layers at fixed x positions, each layer owns a
// vertical stack of strips. Tracks propagated through the detector deposit
// at most one hit per layer; hits are recorded per strip and counted upward
// through the hierarchy.
package detector

import (
	"errors"
	"fmt"
	"math"
	"sort"

	kalfit "github.com/jepio/kalfit"
)

// ErrWrongLayerX is returned by Layer.Hit when the supplied x does not match
// the layer's own x position. This signals a caller bug, not a missed hit.
var ErrWrongLayerX = errors.New("detector: wrong layer x")

// Strip is a leaf sensor of a layer. Its vertical measurement uncertainty
// defaults to height/sqrt(12), the standard deviation of a uniform
// distribution across the strip.
type Strip struct {
	x, y   float64
	height float64
	xErr   float64
	yErr   float64
	hits   int
	layer  *Layer
}

// NewStrip returns a strip centered at (x, y) with the given height and
// measurement uncertainties. A negative yErr selects the uniform
// distribution default height/sqrt(12).
func NewStrip(x, y, height, xErr, yErr float64, layer *Layer) *Strip {
	if yErr < 0 {
		yErr = height / math.Sqrt(12)
	}
	return &Strip{x: x, y: y, height: height, xErr: xErr, yErr: yErr, layer: layer}
}

// Pos returns the center position of the strip.
func (s *Strip) Pos() (x, y float64) { return s.x, s.y }

// Height returns the vertical extent of the strip.
func (s *Strip) Height() float64 { return s.height }

// XErr returns the horizontal measurement uncertainty.
func (s *Strip) XErr() float64 { return s.xErr }

// YErr returns the vertical measurement uncertainty.
func (s *Strip) YErr() float64 { return s.yErr }

// Hits returns the number of hits currently recorded on the strip.
func (s *Strip) Hits() int { return s.hits }

// Layer returns the layer the strip belongs to.
func (s *Strip) Layer() *Layer { return s.layer }

// Layer is an ordered vertical stack of strips at a fixed x position.
type Layer struct {
	x, y        float64
	bottom, top float64
	stripHeight float64
	strips      []*Strip
	hitStrips   []*Strip
	hits        int
	det         *Layered
}

func newLayer(x, y, height float64, numStrips int, det *Layered) *Layer {
	l := &Layer{
		x:      x,
		y:      y,
		bottom: y - height*0.5,
		det:    det,
	}
	l.top = l.bottom + height
	l.stripHeight = height / float64(numStrips)
	l.strips = make([]*Strip, numStrips)
	for i := range l.strips {
		stripY := l.bottom + (float64(i)+0.5)*l.stripHeight
		l.strips[i] = NewStrip(x, stripY, l.stripHeight, 0, -1, l)
	}
	return l
}

// Pos returns the center position of the layer.
func (l *Layer) Pos() (x, y float64) { return l.x, l.y }

// X returns the x position shared by all strips of the layer.
func (l *Layer) X() float64 { return l.x }

// Bounds returns the half-open vertical interval [bottom, top) covered by
// the layer.
func (l *Layer) Bounds() (bottom, top float64) { return l.bottom, l.top }

// StripHeight returns the height of a single strip.
func (l *Layer) StripHeight() float64 { return l.stripHeight }

// Strips returns the strips of the layer ordered bottom to top.
func (l *Layer) Strips() []*Strip {
	return append([]*Strip(nil), l.strips...)
}

// HitStrips returns the strips currently holding at least one hit, in the
// order they were first hit.
func (l *Layer) HitStrips() []*Strip {
	return append([]*Strip(nil), l.hitStrips...)
}

// Hits returns the number of hits currently recorded on the layer.
func (l *Layer) Hits() int { return l.hits }

// Hit records a hit at (x, y). It returns ErrWrongLayerX when x does not
// match the layer position. A y outside [bottom, top) is silently dropped:
// the track missed the detector. The interval is half-open so that a hit
// landing exactly on top does not index the non-existent strip above.
func (l *Layer) Hit(x, y float64) error {
	if x != l.x {
		return fmt.Errorf("hit at x=%v on layer at x=%v: %w", x, l.x, ErrWrongLayerX)
	}
	if y >= l.top || y < l.bottom {
		return nil
	}
	if l.det != nil {
		l.det.hits++
	}
	l.hits++
	i := int(math.Floor((y - l.bottom) / l.stripHeight))
	s := l.strips[i]
	if s.hits == 0 {
		l.hitStrips = append(l.hitStrips, s)
	}
	s.hits++
	return nil
}

// Consume removes one hit from s and drops it from the hit strips once its
// count reaches zero. Strips from other layers are ignored.
func (l *Layer) Consume(s *Strip) {
	if s == nil || s.layer != l || s.hits == 0 {
		return
	}
	s.hits--
	if s.hits > 0 {
		return
	}
	for i, hs := range l.hitStrips {
		if hs == s {
			l.hitStrips = append(l.hitStrips[:i], l.hitStrips[i+1:]...)
			break
		}
	}
}

// ClearHits zeroes the layer's hit counter and the counters of the strips
// currently holding hits, then empties the hit strip set.
func (l *Layer) ClearHits() {
	for _, s := range l.hitStrips {
		s.hits = 0
	}
	l.hitStrips = nil
	l.hits = 0
}

// Layered is a detector consisting of evenly spaced layers spanning x to
// x + length.
type Layered struct {
	x, y   float64
	height float64
	length float64
	xStep  float64
	layers []*Layer
	hits   int
}

// New builds a layered detector with numLayers layers between x and
// x + length, each of the given height centered on y and split into
// numStrips strips. It returns an error if either count is smaller than 1.
func New(x, y, height, length float64, numLayers, numStrips int) (*Layered, error) {
	if numLayers < 1 {
		return nil, fmt.Errorf("invalid number of layers: %d", numLayers)
	}
	if numStrips < 1 {
		return nil, fmt.Errorf("invalid number of strips: %d", numStrips)
	}
	xStep := 0.0
	if numLayers > 1 {
		xStep = length / float64(numLayers-1)
	}
	d := &Layered{x: x, y: y, height: height, length: length, xStep: xStep}
	d.layers = make([]*Layer, numLayers)
	for i := range d.layers {
		d.layers[i] = newLayer(x+float64(i)*xStep, y, height, numStrips, d)
	}
	return d, nil
}

// Pos returns the x position of the leftmost layer and the common center y.
func (d *Layered) Pos() (x, y float64) { return d.x, d.y }

// XStep returns the distance between consecutive layers; 0 for a
// single-layer detector.
func (d *Layered) XStep() float64 { return d.xStep }

// Hits returns the total number of hits recorded in the detector.
func (d *Layered) Hits() int { return d.hits }

// Layers returns the layers sorted by x position, descending if reverse is
// set.
func (d *Layered) Layers(reverse bool) []*Layer {
	layers := append([]*Layer(nil), d.layers...)
	sort.SliceStable(layers, func(i, j int) bool {
		if reverse {
			return layers[i].x > layers[j].x
		}
		return layers[i].x < layers[j].x
	})
	return layers
}

// ClearHits clears every layer and zeroes the detector counter.
func (d *Layered) ClearHits() {
	for _, l := range d.layers {
		l.ClearHits()
	}
	d.hits = 0
}

// PropagateTrack evaluates the track at each layer in ascending x order and
// records the resulting hits.
func (d *Layered) PropagateTrack(t kalfit.Track) error {
	for _, l := range d.Layers(false) {
		if err := l.Hit(l.x, t.YIntercept(l.x)); err != nil {
			return err
		}
	}
	return nil
}

// PropagateTracks propagates every track through the detector.
func (d *Layered) PropagateTracks(tracks []kalfit.Track) error {
	for _, t := range tracks {
		if err := d.PropagateTrack(t); err != nil {
			return err
		}
	}
	return nil
}
