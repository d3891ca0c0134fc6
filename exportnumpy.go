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

	"github.com/kshedden/gonpy"
)

// exportNumpy dumps a catalog's value matrix as .npy plus row/column
// name CSVs, for picking results up from numpy/pandas.
type exportNumpy struct{}

func (cmd *exportNumpy) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	inputFilename := flags.String("i", "", "catalog `file`")
	outputDir := flags.String("output-dir", "./out", "output `directory`")
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
	names := []string{"matrix.npy", "matrix.rows.csv", "matrix.cols.csv"}
	if !*force {
		for _, name := range names {
			if _, statErr := os.Stat(filepath.Join(*outputDir, name)); statErr == nil {
				err = &OutputExistsError{Path: filepath.Join(*outputDir, name)}
				return 1
			}
		}
	}

	if err = writeCatalogNumpy(filepath.Join(*outputDir, names[0]), cat); err != nil {
		return 1
	}
	if err = writeNameColumn(filepath.Join(*outputDir, names[1]), cat.MutationTypes); err != nil {
		return 1
	}
	if err = writeNameColumn(filepath.Join(*outputDir, names[2]), cat.Samples); err != nil {
		return 1
	}
	fmt.Fprintln(stdout, filepath.Join(*outputDir, names[0]))
	return 0
}

func writeCatalogNumpy(path string, cat *Catalog) error {
	rows, cols := len(cat.MutationTypes), len(cat.Samples)
	out := make([]float64, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out[i*cols+j] = cat.Values.At(i, j)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0666)
	if err != nil {
		return err
	}
	bufw := bufio.NewWriter(f)
	err = writeNumpy(bufw, out, rows, cols)
	if err == nil {
		err = bufw.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

func writeNumpy(w io.Writer, data []float64, rows, cols int) error {
	npw, err := gonpy.NewWriter(nopCloser{w})
	if err != nil {
		return err
	}
	npw.Shape = []int{rows, cols}
	return npw.WriteFloat64(data)
}

func writeNameColumn(path string, names []string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0666)
	if err != nil {
		return err
	}
	csvw := csv.NewWriter(f)
	for i, name := range names {
		if err := csvw.Write([]string{fmt.Sprintf("%d", i), name}); err != nil {
			f.Close()
			return err
		}
	}
	csvw.Flush()
	err = csvw.Error()
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}
