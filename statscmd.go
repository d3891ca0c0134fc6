// Copyright (C) The SynSigRun Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package synsigrun

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/guptarohit/asciigraph"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

type statscmd struct {
	sketch bool
}

func (cmd *statscmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	inputFilename := flags.String("i", "", "catalog `file`")
	outputFilename := flags.String("o", "-", "output `file`")
	flags.BoolVar(&cmd.sketch, "v", false, "also sketch each sample spectrum on stderr")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	}
	if *inputFilename == "" {
		err = fmt.Errorf("-i is required (try -help)")
		return 2
	}

	cat, err := ReadCatalog(*inputFilename)
	if err != nil {
		return 1
	}

	var output io.WriteCloser
	if *outputFilename == "-" {
		output = nopCloser{stdout}
	} else {
		output, err = os.OpenFile(*outputFilename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0666)
		if err != nil {
			return 1
		}
		defer output.Close()
	}
	err = cmd.doStats(cat, output, stderr)
	if err != nil {
		return 1
	}
	err = output.Close()
	if err != nil {
		return 1
	}
	return 0
}

func (cmd *statscmd) doStats(cat *Catalog, output, sketchOut io.Writer) error {
	var ret struct {
		Kind          CatalogKind
		Region        string `json:",omitempty"`
		MutationTypes int
		Samples       int
		TotalCount    float64
		MeanBurden    float64
		MedianBurden  float64
		ZeroSamples   []string `json:",omitempty"` // samples with no mutations at all
		ZeroTypeRows  int      // mutation types observed in no sample
	}
	ret.Kind = cat.Meta.Kind
	ret.Region = cat.Meta.Region
	ret.MutationTypes = len(cat.MutationTypes)
	ret.Samples = len(cat.Samples)

	totals := cat.SampleTotals()
	ret.TotalCount = floats.Sum(totals)
	if len(totals) > 0 {
		ret.MeanBurden = stat.Mean(totals, nil)
		sorted := append([]float64(nil), totals...)
		floats.Argsort(sorted, make([]int, len(sorted)))
		ret.MedianBurden = stat.Quantile(0.5, stat.Empirical, sorted, nil)
	}
	for j, name := range cat.Samples {
		if totals[j] == 0 {
			ret.ZeroSamples = append(ret.ZeroSamples, name)
		}
	}
	for i := range cat.MutationTypes {
		sum := 0.0
		for j := range cat.Samples {
			sum += cat.Values.At(i, j)
		}
		if sum == 0 {
			ret.ZeroTypeRows++
		}
	}

	if cmd.sketch {
		for j, name := range cat.Samples {
			fmt.Fprintf(sketchOut, "%s (total %g):\n", name, totals[j])
			fmt.Fprintln(sketchOut, asciigraph.Plot(cat.Column(j), asciigraph.Height(8), asciigraph.Width(96)))
		}
	}

	enc := json.NewEncoder(output)
	enc.SetIndent("", "  ")
	return enc.Encode(ret)
}
