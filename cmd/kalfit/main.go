// Command kalfit runs the full reconstruction pipeline on synthetic data:
// it builds a layered detector, propagates randomly generated straight
// tracks through it, fits the recorded hits with bidirectional Kalman
// filters and optionally renders the result to an image.
package main

import (
	"fmt"
	"math"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/exp/rand"
	"gonum.org/v1/plot/vg"

	kalfit "github.com/jepio/kalfit"
	"github.com/jepio/kalfit/detector"
	"github.com/jepio/kalfit/fit"
	"github.com/jepio/kalfit/kalman"
	"github.com/jepio/kalfit/matrix"
	"github.com/jepio/kalfit/track"
)

type options struct {
	numTracks int
	numLayers int
	numStrips int
	height    float64
	length    float64
	seed      uint64
	plotPath  string
	hungarian bool
	verbose   bool
}

func main() {
	var opts options

	cmd := &cobra.Command{
		Use:   "kalfit",
		Short: "Fit straight tracks in a layered strip detector",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts)
		},
		SilenceUsage: true,
	}

	cmd.Flags().IntVarP(&opts.numTracks, "tracks", "t", 5, "number of generated tracks")
	cmd.Flags().IntVarP(&opts.numLayers, "layers", "l", 15, "number of detector layers")
	cmd.Flags().IntVarP(&opts.numStrips, "strips", "s", 25, "number of strips per layer")
	cmd.Flags().Float64Var(&opts.height, "height", 1.0, "layer height")
	cmd.Flags().Float64Var(&opts.length, "length", 8.0, "detector length")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 0, "random seed (0 picks one)")
	cmd.Flags().StringVarP(&opts.plotPath, "plot", "o", "", "write a plot of the result to this file")
	cmd.Flags().BoolVar(&opts.hungarian, "hungarian", false, "use globally optimal hit assignment")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(opts options) error {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if !opts.verbose {
		log = log.Level(zerolog.InfoLevel)
	}

	det, err := detector.New(1, 0, opts.height, opts.length, opts.numLayers, opts.numStrips)
	if err != nil {
		return err
	}

	var tracks []*track.Line
	if opts.seed != 0 {
		tracks = track.GenerateLinesFrom(opts.numTracks, rand.NewSource(opts.seed))
	} else {
		tracks = track.GenerateLines(opts.numTracks)
	}
	generated := make([]kalfit.Track, len(tracks))
	for i, tr := range tracks {
		generated[i] = tr
		log.Debug().Float64("a", tr.A).Float64("b", tr.B).Msg("generated track")
	}

	if err := det.PropagateTracks(generated); err != nil {
		return err
	}
	log.Info().Int("tracks", len(tracks)).Int("hits", det.Hits()).Msg("propagated")

	proto, err := prototype(det)
	if err != nil {
		return err
	}

	mgrOpts := []fit.Option{fit.WithLogger(log)}
	if opts.hungarian {
		mgrOpts = append(mgrOpts, fit.WithAssigner(fit.Hungarian{}))
	}
	mgr, err := fit.New(det, proto, mgrOpts...)
	if err != nil {
		return err
	}

	fitted, err := mgr.Fit()
	if err != nil {
		return err
	}
	log.Info().Int("candidates", len(fitted)).Msg("fitted")
	for i, f := range fitted {
		log.Debug().Int("candidate", i).Floats64("measurements", f.MeasurementValues()).Msg("fitted hits")
	}

	coords, err := mgr.PropagateTracks()
	if err != nil {
		return err
	}

	if opts.plotPath == "" {
		for i, pts := range coords {
			fmt.Printf("track %d:", i)
			for _, p := range pts {
				fmt.Printf(" (%.3f, %.5f)", p.X, p.Y)
			}
			fmt.Println()
		}
		return nil
	}

	lines := make([][][2]float64, len(coords))
	for i, pts := range coords {
		lines[i] = make([][2]float64, len(pts))
		for j, p := range pts {
			lines[i][j] = [2]float64{p.X, p.Y}
		}
	}
	p, err := detector.PlotTracks(det, lines)
	if err != nil {
		return err
	}
	if err := p.Save(8*vg.Inch, 4*vg.Inch, opts.plotPath); err != nil {
		return err
	}
	log.Info().Str("path", opts.plotPath).Msg("plot written")
	return nil
}

// prototype builds the straight-line filter template for the detector
// geometry: state (y, y'), transition over one layer spacing, position
// observed with the strip resolution.
func prototype(det *detector.Layered) (*kalman.TwoWay, error) {
	a, err := matrix.New([][]float64{{1, det.XStep()}, {0, 1}})
	if err != nil {
		return nil, err
	}
	h, err := matrix.New([][]float64{{1, 0}})
	if err != nil {
		return nil, err
	}
	x, err := matrix.Zero(2, 1)
	if err != nil {
		return nil, err
	}
	id, err := matrix.Identity(2)
	if err != nil {
		return nil, err
	}
	q, err := matrix.New([][]float64{{5e-5, 0}, {0, 5e-5}})
	if err != nil {
		return nil, err
	}
	layer := det.Layers(false)[0]
	yErr := layer.StripHeight() / math.Sqrt(12)
	r, err := matrix.New([][]float64{{yErr}})
	if err != nil {
		return nil, err
	}
	return kalman.NewTwoWay(a, h, x, id.Scale(100), q, r)
}
