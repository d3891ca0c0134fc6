// Copyright (C) The SynSigRun Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package synsigrun

import (
	"bufio"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/james-bowman/nlp"
	"github.com/kshedden/gonpy"
	log "github.com/sirupsen/logrus"
)

// pcacmd projects sample spectra onto their first principal
// components, a quick look at whether simulated tumors separate by
// dominant signature.
type pcacmd struct{}

func (cmd *pcacmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	inputFilename := flags.String("i", "", "spectra catalog `file`")
	outputDir := flags.String("output-dir", "./out", "output `directory`")
	components := flags.Int("components", 4, "number of components")
	force := flags.Bool("force", false, "overwrite existing output files")
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
	if err = os.MkdirAll(*outputDir, 0777); err != nil {
		return 1
	}
	if !*force {
		for _, name := range []string{"pca.npy", "pca.samples.csv"} {
			if _, statErr := os.Stat(filepath.Join(*outputDir, name)); statErr == nil {
				err = &OutputExistsError{Path: filepath.Join(*outputDir, name)}
				return 1
			}
		}
	}

	// nlp wants one column per document, which is the catalog's
	// native orientation: mutation types are the features.
	log.Printf("fitting %d components over %d samples", *components, len(cat.Samples))
	transformer := nlp.NewPCA(*components)
	transformer.Fit(cat.Values)
	reduced, err := transformer.Transform(cat.Values)
	if err != nil {
		return 1
	}
	rows, cols := len(cat.Samples), *components

	out := make([]float64, rows*cols)
	for j := 0; j < rows; j++ {
		for c := 0; c < cols; c++ {
			out[j*cols+c] = reduced.At(c, j)
		}
	}

	npyPath := filepath.Join(*outputDir, "pca.npy")
	output, err := os.OpenFile(npyPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0666)
	if err != nil {
		return 1
	}
	bufw := bufio.NewWriter(output)
	npw, err := gonpy.NewWriter(nopCloser{bufw})
	if err != nil {
		return 1
	}
	npw.Shape = []int{rows, cols}
	if err = npw.WriteFloat64(out); err != nil {
		return 1
	}
	if err = bufw.Flush(); err != nil {
		return 1
	}
	if err = output.Close(); err != nil {
		return 1
	}

	samplesPath := filepath.Join(*outputDir, "pca.samples.csv")
	sf, err := os.OpenFile(samplesPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0666)
	if err != nil {
		return 1
	}
	csvw := csv.NewWriter(sf)
	for j, name := range cat.Samples {
		if err = csvw.Write([]string{fmt.Sprintf("%d", j), name}); err != nil {
			sf.Close()
			return 1
		}
	}
	csvw.Flush()
	err = csvw.Error()
	if cerr := sf.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 1
	}
	fmt.Fprintln(stdout, npyPath)
	return 0
}
