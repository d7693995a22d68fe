package main

import (
	"image/color"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// errorPlot records the distance between the estimated and the reference position of every frame.
type errorPlot struct {
	pts plotter.XYs
}

func (ep *errorPlot) Add(frameID int, estimate, reference r3.Vector) {
	ep.pts = append(ep.pts, plotter.XY{X: float64(frameID), Y: estimate.Sub(reference).Norm()})
}

func (ep *errorPlot) Save(path string) error {
	p := plot.New()
	p.Title.Text = "Translation error"
	p.X.Label.Text = "frame"
	p.Y.Label.Text = "error (m)"
	line, err := plotter.NewLine(ep.pts)
	if err != nil {
		return errors.Wrap(err, "cannot plot translation error")
	}
	line.Width = vg.Points(1)
	line.Color = color.RGBA{R: 255, A: 255}
	p.Add(plotter.NewGrid(), line)
	return p.Save(10*vg.Inch, 4*vg.Inch, path)
}
