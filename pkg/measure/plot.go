// Copyright 2026 The LGT Authors. SPDX-License-Identifier: Apache-2.0

package measure

import (
	"fmt"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// PlotSize is the width and height of the plots saved by PlotPlaquette.
var PlotSize = [2]vg.Length{10 * vg.Inch, 5 * vg.Inch}

// PlotPlaquette saves a plot of the plaquette of each chain as a function of the trajectory.
// The format is taken from the extension of filePath (e.g. ".png", ".svg" or ".pdf").
func (h *History) PlotPlaquette(filePath string) error {
	records := h.Records()
	if len(records) == 0 {
		return errors.New("measure.PlotPlaquette: empty history")
	}
	p := plot.New()
	p.Title.Text = "Average plaquette"
	p.X.Label.Text = "trajectory"
	p.Y.Label.Text = "plaquette"
	p.Add(plotter.NewGrid())

	for b := range h.NumChains() {
		xys := make(plotter.XYs, len(records))
		for i, r := range records {
			xys[i].X = float64(r.Trajectory)
			xys[i].Y = r.Plaquette[b]
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return errors.Wrapf(err, "measure.PlotPlaquette: chain %d", b)
		}
		line.Color = plotutil.Color(b)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("chain %d", b), line)
	}
	if err := p.Save(PlotSize[0], PlotSize[1], filePath); err != nil {
		return errors.Wrapf(err, "measure.PlotPlaquette: saving to %q", filePath)
	}
	return nil
}
