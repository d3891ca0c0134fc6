// Copyright (C) The SynSigRun Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package synsigrun

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

//go:embed deconstructsigs.R
var deconstructsigsScript string

//go:embed sigfit.R
var sigfitScript string

//go:embed signer.R
var signerScript string

//go:embed yapsa.R
var yapsaScript string

func init() {
	registerEngine(&rEngine{
		name:      "deconstructsigs",
		pkg:       "deconstructSigs",
		script:    deconstructsigsScript,
		perSample: true,
	})
	registerEngine(&rEngine{
		name:       "sigfit",
		pkg:        "sigfit",
		script:     sigfitScript,
		canExtract: true,
	})
	registerEngine(&rEngine{
		name:        "signer",
		pkg:         "signeR",
		script:      signerScript,
		loadings:    true,
		canExtract:  true,
		onlyExtract: true,
	})
	registerEngine(&rEngine{
		name:   "yapsa",
		pkg:    "YAPSA",
		script: yapsaScript,
	})
}

// rEngine drives one R attribution/extraction package. The embedded
// script is fed to Rscript on stdin; matrices travel through CSV files
// in a temp directory. The script installs its package on first use if
// it is absent.
type rEngine struct {
	name        string
	pkg         string
	script      string
	loadings    bool // engine reports unnormalized loadings, not weights
	perSample   bool
	canExtract  bool
	onlyExtract bool
}

func (e *rEngine) Name() string    { return e.name }
func (e *rEngine) RNG() string     { return "Mersenne-Twister" }
func (e *rEngine) PerSample() bool { return e.perSample }

func (e *rEngine) Version(ctx context.Context) string {
	out, err := exec.CommandContext(ctx, "Rscript", "--vanilla", "-e",
		fmt.Sprintf(`cat(as.character(packageVersion(%q)))`, e.pkg)).Output()
	if err != nil || len(out) == 0 {
		return e.pkg + " (version unknown)"
	}
	return e.pkg + " " + strings.TrimSpace(string(out))
}

func (e *rEngine) Attribute(ctx context.Context, req AttributeRequest) (Result, error) {
	if e.onlyExtract {
		return Result{}, &EngineError{Engine: e.name, Err: errNotSupported}
	}
	tmpdir, err := os.MkdirTemp("", "synsigrun-"+e.name+"-")
	if err != nil {
		return Result{}, &EngineError{Engine: e.name, Err: err}
	}
	defer os.RemoveAll(tmpdir)
	spectra := filepath.Join(tmpdir, "spectra.csv")
	sigs := filepath.Join(tmpdir, "signatures.csv")
	if err := writeEngineMatrix(spectra, req.Spectra); err != nil {
		return Result{}, &EngineError{Engine: e.name, Err: err}
	}
	if err := writeEngineMatrix(sigs, req.Signatures); err != nil {
		return Result{}, &EngineError{Engine: e.name, Err: err}
	}
	err = e.runScript(ctx, "attribute", spectra, sigs, req.Seed, tmpdir)
	if err != nil {
		return Result{}, &EngineError{Engine: e.name, Err: err}
	}
	return e.readResult(tmpdir, false)
}

func (e *rEngine) Extract(ctx context.Context, req ExtractRequest) (Result, error) {
	if !e.canExtract {
		return Result{}, &EngineError{Engine: e.name, Err: errNotSupported}
	}
	tmpdir, err := os.MkdirTemp("", "synsigrun-"+e.name+"-")
	if err != nil {
		return Result{}, &EngineError{Engine: e.name, Err: err}
	}
	defer os.RemoveAll(tmpdir)
	spectra := filepath.Join(tmpdir, "spectra.csv")
	if err := writeEngineMatrix(spectra, req.Spectra); err != nil {
		return Result{}, &EngineError{Engine: e.name, Err: err}
	}
	err = e.runScript(ctx, "extract", spectra, fmt.Sprintf("%d", req.NumSignatures), req.Seed, tmpdir)
	if err != nil {
		return Result{}, &EngineError{Engine: e.name, Err: err}
	}
	return e.readResult(tmpdir, true)
}

// runScript execs Rscript with the driver on stdin. args are:
// mode, spectra file, signatures file (or signature count for
// extraction), seed, output dir.
func (e *rEngine) runScript(ctx context.Context, mode, spectra, sigsOrK string, seed int64, outdir string) error {
	cmd := exec.CommandContext(ctx, "Rscript", "--vanilla", "-",
		mode, spectra, sigsOrK, fmt.Sprintf("%d", seed), outdir)
	cmd.Stdin = strings.NewReader(e.script)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	log.WithField("engine", e.name).Infof("running Rscript (%s)", mode)
	err := cmd.Run()
	if stderr.Len() > 0 {
		for _, line := range strings.Split(strings.TrimRight(stderr.String(), "\n"), "\n") {
			log.WithField("engine", e.name).Debug(line)
		}
	}
	if err != nil {
		return fmt.Errorf("Rscript: %w (%s)", err, lastLine(stderr.String()))
	}
	return nil
}

func (e *rEngine) readResult(tmpdir string, extracted bool) (Result, error) {
	m, err := readEngineMatrix(filepath.Join(tmpdir, "attribution.csv"))
	if err != nil {
		return Result{}, &EngineError{Engine: e.name, Err: err}
	}
	var res Result
	if e.loadings {
		res.Loadings = m
	} else {
		res.Weights = m
	}
	if extracted {
		res.ExtractedSignatures, err = readEngineMatrix(filepath.Join(tmpdir, "signatures.out.csv"))
		if err != nil {
			return Result{}, &EngineError{Engine: e.name, Err: err}
		}
	}
	return res, nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	return lines[len(lines)-1]
}
