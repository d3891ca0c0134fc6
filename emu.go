// Copyright (C) The SynSigRun Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package synsigrun

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

func init() {
	registerEngine(&emuEngine{prog: "EMu"})
}

// emuEngine drives the EMu binary (Fischer et al.), a de-novo
// extraction engine. EMu reads a whitespace-separated count matrix
// with one row per sample and reports per-sample assigned mutation
// loadings plus the extracted spectra.
type emuEngine struct {
	prog string
}

func (e *emuEngine) Name() string    { return "emu" }
func (e *emuEngine) RNG() string     { return "gsl" }
func (e *emuEngine) PerSample() bool { return false }

func (e *emuEngine) Version(ctx context.Context) string {
	out, err := exec.CommandContext(ctx, e.prog, "--version").CombinedOutput()
	if err != nil || len(out) == 0 {
		return "EMu (version unknown)"
	}
	return strings.TrimSpace(strings.Split(string(out), "\n")[0])
}

func (e *emuEngine) Attribute(ctx context.Context, req AttributeRequest) (Result, error) {
	return Result{}, &EngineError{Engine: e.Name(), Err: errNotSupported}
}

func (e *emuEngine) Extract(ctx context.Context, req ExtractRequest) (Result, error) {
	tmpdir, err := os.MkdirTemp("", "synsigrun-emu-")
	if err != nil {
		return Result{}, &EngineError{Engine: e.Name(), Err: err}
	}
	defer os.RemoveAll(tmpdir)

	mutfile := filepath.Join(tmpdir, "mut.txt")
	if err := writeEmuMatrix(mutfile, req.Spectra); err != nil {
		return Result{}, &EngineError{Engine: e.Name(), Err: err}
	}
	oppfile := filepath.Join(tmpdir, "opp.txt")
	if err := writeEmuOpportunity(oppfile, len(req.Spectra.Rows), len(req.Spectra.Cols)); err != nil {
		return Result{}, &EngineError{Engine: e.Name(), Err: err}
	}

	prefix := filepath.Join(tmpdir, "out")
	cmd := exec.CommandContext(ctx, e.prog,
		"--mut", mutfile,
		"--opp", oppfile,
		"--force", strconv.Itoa(req.NumSignatures),
		"--pre", prefix)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	log.WithField("engine", e.Name()).Info("running EMu")
	if err := cmd.Run(); err != nil {
		return Result{}, &EngineError{Engine: e.Name(), Err: fmt.Errorf("%s: %w (%s)", e.prog, err, lastLine(stderr.String()))}
	}

	k := req.NumSignatures
	signames := make([]string, k)
	for i := range signames {
		signames[i] = fmt.Sprintf("S%d", i+1)
	}
	spectra, err := readEmuMatrix(fmt.Sprintf("%s_%d_ml_spectra.txt", prefix, k), signames, req.Spectra.Cols)
	if err != nil {
		return Result{}, &EngineError{Engine: e.Name(), Err: err}
	}
	loadings, err := readEmuMatrix(fmt.Sprintf("%s_%d_assigned.txt", prefix, k), req.Spectra.Rows, signames)
	if err != nil {
		return Result{}, &EngineError{Engine: e.Name(), Err: err}
	}
	return Result{Loadings: loadings, ExtractedSignatures: spectra}, nil
}

func writeEmuMatrix(path string, m *EngineMatrix) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0666)
	if err != nil {
		return err
	}
	bufw := bufio.NewWriter(f)
	for i := range m.Rows {
		for j := range m.Cols {
			if j > 0 {
				fmt.Fprint(bufw, " ")
			}
			fmt.Fprint(bufw, strconv.FormatFloat(m.Data.At(i, j), 'g', -1, 64))
		}
		fmt.Fprintln(bufw)
	}
	err = bufw.Flush()
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

// writeEmuOpportunity writes a flat opportunity matrix, treating every
// channel as equally observable.
func writeEmuOpportunity(path string, rows, cols int) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0666)
	if err != nil {
		return err
	}
	bufw := bufio.NewWriter(f)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if j > 0 {
				fmt.Fprint(bufw, " ")
			}
			fmt.Fprint(bufw, "1")
		}
		fmt.Fprintln(bufw)
	}
	err = bufw.Flush()
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

func readEmuMatrix(path string, rows, cols []string) (*EngineMatrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var values []float64
	nrows := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1<<20), 1<<20)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != len(cols) {
			return nil, fmt.Errorf("%s: line %d has %d fields, want %d", path, nrows+1, len(fields), len(cols))
		}
		for _, field := range fields {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			values = append(values, v)
		}
		nrows++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if nrows != len(rows) {
		return nil, fmt.Errorf("%s: %d rows, want %d", path, nrows, len(rows))
	}
	return &EngineMatrix{
		Rows: append([]string(nil), rows...),
		Cols: append([]string(nil), cols...),
		Data: mat.NewDense(len(rows), len(cols), values),
	}, nil
}
