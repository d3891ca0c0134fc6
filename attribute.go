// Copyright (C) The SynSigRun Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package synsigrun

import (
	"context"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

const exposuresFile = "inferred.exposures.csv"

type attributecmd struct{}

func (cmd *attributecmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	spectraFilename := flags.String("spectra", "", "spectra catalog `file`")
	sigsFilename := flags.String("signatures", "", "ground-truth signature catalog `file`")
	engineName := flags.String("engine", "deconstructsigs", "attribution `engine`")
	seed := flags.Int64("seed", 1, "pseudo-random `seed` passed to the engine")
	outputDir := flags.String("output-dir", "./out", "output `directory`")
	force := flags.Bool("force", false, "overwrite existing output files")
	maxParallel := flags.Int("max-parallel", runtime.GOMAXPROCS(0), "max concurrent engine calls for per-sample engines")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	}
	if *spectraFilename == "" || *sigsFilename == "" {
		err = fmt.Errorf("-spectra and -signatures are required (try -help)")
		return 2
	}

	eng, err := lookupEngine(*engineName)
	if err != nil {
		return 2
	}
	if err = ensureOutputDir(*outputDir, *force, exposuresFile); err != nil {
		return 1
	}
	exposures, err := runAttribution(context.Background(), eng, *spectraFilename, *sigsFilename, *seed, *maxParallel)
	if err != nil {
		return 1
	}
	if err = WriteCatalog(filepath.Join(*outputDir, exposuresFile), exposures); err != nil {
		return 1
	}
	prov := provenance{
		Seed:    *seed,
		RNG:     eng.RNG(),
		Engine:  eng.Version(context.Background()),
		Inputs:  []string{*spectraFilename, *sigsFilename},
		Started: time.Now(),
	}
	if err = prov.write(*outputDir); err != nil {
		return 1
	}
	fmt.Fprintln(stdout, filepath.Join(*outputDir, exposuresFile))
	return 0
}

// runAttribution reads both catalogs, hands them to the engine in its
// orientation, and rescales the reported weights or loadings into
// absolute exposures ordered like the inputs.
func runAttribution(ctx context.Context, eng Engine, spectraFilename, sigsFilename string, seed int64, maxParallel int) (*Catalog, error) {
	spectra, err := ReadCatalog(spectraFilename)
	if err != nil {
		return nil, err
	}
	sigs, err := ReadCatalog(sigsFilename)
	if err != nil {
		return nil, err
	}
	if err = sigs.checkSignatureColumns(); err != nil {
		return nil, err
	}
	if err = sameTypeOrder(spectra, sigs); err != nil {
		return nil, err
	}

	engineSpectra, meta, err := ToEngineFormat(spectra)
	if err != nil {
		return nil, err
	}
	// Signature catalog columns are signatures, so engine orientation
	// already means one row per signature.
	engineSigs, _, err := ToEngineFormat(sigs)
	if err != nil {
		return nil, err
	}

	req := AttributeRequest{Spectra: engineSpectra, Signatures: engineSigs, Seed: seed}
	var res Result
	if eng.PerSample() {
		res, err = attributePerSample(ctx, eng, req, maxParallel)
	} else {
		log.WithField("engine", eng.Name()).Infof("attributing %d samples", len(engineSpectra.Rows))
		res, err = eng.Attribute(ctx, req)
	}
	if err != nil {
		return nil, err
	}

	totals := map[string]float64{}
	for j, name := range spectra.Samples {
		totals[name] = spectra.SampleTotal(j)
	}
	exposures, err := rescaleResult(res, totals)
	if err != nil {
		return nil, err
	}
	exposures.Meta.Region = meta.Region
	return reorderRows(exposures, sigs.Samples)
}

// attributePerSample fans one engine call out per sample and reassembles
// the per-sample weight rows in input order. Sample attributions are
// independent, so concurrency cannot change the result.
func attributePerSample(ctx context.Context, eng Engine, req AttributeRequest, maxParallel int) (Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	nsamples := len(req.Spectra.Rows)
	ncols := len(req.Spectra.Cols)
	log.WithField("engine", eng.Name()).Infof("attributing %d samples, %d at a time", nsamples, maxParallel)

	rows := make([][]float64, nsamples)
	var mtx sync.Mutex
	var signames []string
	t := throttle{Max: maxParallel}
	for j := range req.Spectra.Rows {
		j := j
		t.Go(func() error {
			sample := req.Spectra.Rows[j]
			row := make([]float64, ncols)
			mat.Row(row, j, req.Spectra.Data)
			one := AttributeRequest{
				Spectra: &EngineMatrix{
					Rows: []string{sample},
					Cols: req.Spectra.Cols,
					Data: mat.NewDense(1, ncols, row),
				},
				Signatures: req.Signatures,
				Seed:       req.Seed,
			}
			res, err := eng.Attribute(ctx, one)
			if err != nil {
				if ee, ok := err.(*EngineError); ok && ee.Sample == "" {
					ee.Sample = sample
				}
				return err
			}
			m := res.attribution()
			w := make([]float64, len(m.Cols))
			mat.Row(w, 0, m.Data)
			mtx.Lock()
			defer mtx.Unlock()
			if signames == nil {
				signames = m.Cols
			} else {
				// The engine may list signatures in a different
				// order on every invocation.
				w, err = reorderBySignature(w, m.Cols, signames)
				if err != nil {
					return err
				}
			}
			rows[j] = w
			return nil
		})
	}
	if err := t.Wait(); err != nil {
		return Result{}, err
	}

	data := mat.NewDense(nsamples, len(signames), nil)
	for j, row := range rows {
		data.SetRow(j, row)
	}
	return Result{Weights: &EngineMatrix{
		Rows: append([]string(nil), req.Spectra.Rows...),
		Cols: signames,
		Data: data,
	}}, nil
}

// reorderBySignature rearranges one sample's weight vector from the
// engine's column order into want order. A column set that does not
// match want exactly is a FormatError.
func reorderBySignature(w []float64, cols, want []string) ([]float64, error) {
	if len(cols) != len(want) {
		return nil, &FormatError{fmt.Sprintf("engine returned %d signature columns for one sample, %d for another", len(cols), len(want))}
	}
	idx := make(map[string]int, len(cols))
	for i, name := range cols {
		idx[name] = i
	}
	out := make([]float64, len(want))
	for i, name := range want {
		k, ok := idx[name]
		if !ok {
			return nil, &FormatError{fmt.Sprintf("engine returned signature %q for one sample but not another", name)}
		}
		out[i] = w[k]
	}
	return out, nil
}

func sameTypeOrder(spectra, sigs *Catalog) error {
	if len(spectra.MutationTypes) != len(sigs.MutationTypes) {
		return &FormatError{fmt.Sprintf("spectra have %d mutation types, signatures %d", len(spectra.MutationTypes), len(sigs.MutationTypes))}
	}
	for i, mtype := range spectra.MutationTypes {
		if sigs.MutationTypes[i] != mtype {
			return &FormatError{"spectra and signature catalogs disagree on mutation-type order:\n" + orderDiff(sigs.MutationTypes, spectra.MutationTypes)}
		}
	}
	return nil
}

// reorderRows returns a catalog with rows rearranged into order; rows
// the engine added beyond order (none, for attribution) are appended
// as-is.
func reorderRows(cat *Catalog, order []string) (*Catalog, error) {
	idx := map[string]int{}
	for i, name := range cat.MutationTypes {
		idx[name] = i
	}
	rows := make([]int, 0, len(cat.MutationTypes))
	taken := make([]bool, len(cat.MutationTypes))
	for _, name := range order {
		i, ok := idx[name]
		if !ok {
			return nil, &FormatError{fmt.Sprintf("result is missing row %q", name)}
		}
		rows = append(rows, i)
		taken[i] = true
	}
	for i := range cat.MutationTypes {
		if !taken[i] {
			rows = append(rows, i)
		}
	}
	names := make([]string, len(rows))
	values := make([]float64, 0, len(rows)*len(cat.Samples))
	for k, i := range rows {
		names[k] = cat.MutationTypes[i]
		for j := range cat.Samples {
			values = append(values, cat.Values.At(i, j))
		}
	}
	return NewCatalog(names, cat.Samples, values, cat.Meta), nil
}
