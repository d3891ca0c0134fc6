// Copyright (C) The SynSigRun Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package synsigrun

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// AttributeRequest asks an engine to attribute each spectrum to a
// known set of signatures. Both matrices are in engine orientation.
type AttributeRequest struct {
	Spectra    *EngineMatrix // samples x mutation types
	Signatures *EngineMatrix // signatures x mutation types
	Seed       int64
}

// ExtractRequest asks an engine to extract NumSignatures new
// signatures de novo from the spectra alone.
type ExtractRequest struct {
	Spectra       *EngineMatrix // samples x mutation types
	NumSignatures int
	Seed          int64
}

// Result is the single variant every engine adapter normalizes its
// output into before rescaling. Exactly one of Weights (per-sample
// fractions summing to <= 1) and Loadings (unnormalized) is set;
// ExtractedSignatures is set only for de-novo extraction runs.
type Result struct {
	Weights             *EngineMatrix // samples x signatures
	Loadings            *EngineMatrix // samples x signatures
	ExtractedSignatures *EngineMatrix // signatures x mutation types
}

func (r Result) attribution() *EngineMatrix {
	if r.Loadings != nil {
		return r.Loadings
	}
	return r.Weights
}

// Engine is an external attribution/extraction program. Engines that
// only support one of the two run modes return errNotSupported from
// the other.
type Engine interface {
	Name() string
	// RNG identifies the engine's random number generator for the
	// provenance record.
	RNG() string
	// Version reports the engine's version string, best effort.
	Version(ctx context.Context) string
	// PerSample reports whether the engine attributes one sample
	// per invocation, letting the caller fan out across samples.
	PerSample() bool
	Attribute(ctx context.Context, req AttributeRequest) (Result, error)
	Extract(ctx context.Context, req ExtractRequest) (Result, error)
}

var errNotSupported = fmt.Errorf("run mode not supported by this engine")

var engines = map[string]Engine{}

func registerEngine(e Engine) {
	engines[e.Name()] = e
}

func lookupEngine(name string) (Engine, error) {
	if e, ok := engines[name]; ok {
		return e, nil
	}
	known := make([]string, 0, len(engines))
	for n := range engines {
		known = append(known, n)
	}
	sort.Strings(known)
	return nil, fmt.Errorf("unknown engine %q (have: %s)", name, strings.Join(known, ", "))
}

// writeEngineMatrix writes a matrix in the headered CSV layout the
// engine driver scripts read: empty first header cell, column names,
// then one named row per line.
func writeEngineMatrix(path string, m *EngineMatrix) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0666)
	if err != nil {
		return err
	}
	bufw := bufio.NewWriter(f)
	csvw := csv.NewWriter(bufw)
	if err := csvw.Write(append([]string{""}, m.Cols...)); err != nil {
		f.Close()
		return err
	}
	rec := make([]string, 1+len(m.Cols))
	for i, name := range m.Rows {
		rec[0] = name
		for j := range m.Cols {
			rec[1+j] = strconv.FormatFloat(m.Data.At(i, j), 'g', -1, 64)
		}
		if err := csvw.Write(rec); err != nil {
			f.Close()
			return err
		}
	}
	csvw.Flush()
	err = csvw.Error()
	if err == nil {
		err = bufw.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

// readEngineMatrix reads the layout writeEngineMatrix writes (which is
// also what R's write.csv produces for a named matrix).
func readEngineMatrix(path string) (*EngineMatrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	csvr := csv.NewReader(bufio.NewReader(f))
	head, err := csvr.Read()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(head) < 2 {
		return nil, fmt.Errorf("%s: header has %d cells, want a row-name cell plus at least one column", path, len(head))
	}
	cols := head[1:]
	var rows []string
	var values []float64
	for {
		rec, err := csvr.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		rows = append(rows, strings.Trim(rec[0], `"`))
		for j, field := range rec[1:] {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("%s: row %q, column %q: %w", path, rec[0], cols[j], err)
			}
			values = append(values, v)
		}
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: no data rows", path)
	}
	for j := range cols {
		cols[j] = strings.Trim(cols[j], `"`)
	}
	return &EngineMatrix{
		Rows: rows,
		Cols: cols,
		Data: mat.NewDense(len(rows), len(cols), values),
	}, nil
}
