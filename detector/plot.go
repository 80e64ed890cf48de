package detector

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Plot renders the detector as a scatter plot: one marker per strip center,
// with the strips currently holding hits drawn on top in red. It returns an
// error if the detector is nil or a plotter fails to be created.
func Plot(d *Layered) (*plot.Plot, error) {
	if d == nil {
		return nil, fmt.Errorf("invalid detector supplied")
	}

	var strips, hits plotter.XYs
	for _, l := range d.Layers(false) {
		for _, s := range l.Strips() {
			x, y := s.Pos()
			strips = append(strips, plotter.XY{X: x, Y: y})
		}
		for _, s := range l.HitStrips() {
			x, y := s.Pos()
			for i := 0; i < s.Hits(); i++ {
				hits = append(hits, plotter.XY{X: x, Y: y})
			}
		}
	}

	p := plot.New()
	p.Title.Text = "Layered Detector"
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"

	stripScatter, err := plotter.NewScatter(strips)
	if err != nil {
		return nil, err
	}
	stripScatter.GlyphStyle.Color = color.RGBA{B: 255, A: 255}
	stripScatter.GlyphStyle.Radius = vg.Points(1.5)
	p.Add(stripScatter)
	p.Legend.Add("strips", stripScatter)

	if len(hits) > 0 {
		hitScatter, err := plotter.NewScatter(hits)
		if err != nil {
			return nil, err
		}
		hitScatter.GlyphStyle.Color = color.RGBA{R: 255, A: 255}
		hitScatter.GlyphStyle.Radius = vg.Points(3)
		p.Add(hitScatter)
		p.Legend.Add("hits", hitScatter)
	}

	return p, nil
}

// PlotTracks overlays per-track point sequences, as returned by the fit
// manager, on a detector plot.
func PlotTracks(d *Layered, tracks [][][2]float64) (*plot.Plot, error) {
	p, err := Plot(d)
	if err != nil {
		return nil, err
	}
	for i, tr := range tracks {
		pts := make(plotter.XYs, len(tr))
		for j, xy := range tr {
			pts[j] = plotter.XY{X: xy[0], Y: xy[1]}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, err
		}
		line.Color = color.RGBA{R: uint8(60 * (i % 4)), G: 160, B: 60, A: 255}
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("track %d", i), line)
	}
	return p, nil
}
