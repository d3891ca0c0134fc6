// Copyright (C) The SynSigRun Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package synsigrun

import (
	"flag"
	"fmt"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// plotcmd renders an exposure catalog as a stacked per-sample bar
// chart, one bar segment per signature.
type plotcmd struct{}

func (cmd *plotcmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	inputFilename := flags.String("i", "", "exposure catalog `file`")
	outputFilename := flags.String("o", "", "output `filename` (e.g., './exposures.png')")
	width := flags.Float64("width", 10, "plot width in `inches`")
	height := flags.Float64("height", 4, "plot height in `inches`")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	}
	if *inputFilename == "" || *outputFilename == "" {
		err = fmt.Errorf("-i and -o are required (try -help)")
		return 2
	}

	cat, err := ReadCatalog(*inputFilename)
	if err != nil {
		return 1
	}
	err = plotExposures(cat, *outputFilename, vg.Length(*width)*vg.Inch, vg.Length(*height)*vg.Inch)
	if err != nil {
		return 1
	}
	fmt.Fprintln(stdout, *outputFilename)
	return 0
}

func plotExposures(cat *Catalog, filename string, width, height vg.Length) error {
	p := plot.New()
	p.Title.Text = "signature exposures"
	p.Y.Label.Text = "mutations"

	barWidth := vg.Points(20)
	var prev *plotter.BarChart
	for i, signame := range cat.MutationTypes {
		values := make(plotter.Values, len(cat.Samples))
		for j := range cat.Samples {
			values[j] = cat.Values.At(i, j)
		}
		bars, err := plotter.NewBarChart(values, barWidth)
		if err != nil {
			return err
		}
		bars.LineStyle.Width = 0
		bars.Color = plotutil.Color(i)
		if prev != nil {
			bars.StackOn(prev)
		}
		p.Add(bars)
		p.Legend.Add(signame, bars)
		prev = bars
	}
	p.Legend.Top = true
	p.NominalX(cat.Samples...)
	p.X.Tick.Label.Rotation = 0.9
	p.X.Tick.Label.XAlign = -1
	return p.Save(width, height, filename)
}
