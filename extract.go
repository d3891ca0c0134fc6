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
	"time"

	log "github.com/sirupsen/logrus"
)

const extractedSigsFile = "extracted.signatures.csv"

type extractcmd struct{}

func (cmd *extractcmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	spectraFilename := flags.String("spectra", "", "spectra catalog `file`")
	engineName := flags.String("engine", "signer", "extraction `engine`")
	numSignatures := flags.Int("num-signatures", 0, "`number` of signatures to extract")
	seed := flags.Int64("seed", 1, "pseudo-random `seed` passed to the engine")
	outputDir := flags.String("output-dir", "./out", "output `directory`")
	force := flags.Bool("force", false, "overwrite existing output files")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	}
	if *spectraFilename == "" {
		err = fmt.Errorf("-spectra is required (try -help)")
		return 2
	}
	if *numSignatures < 1 {
		err = fmt.Errorf("-num-signatures must be at least 1")
		return 2
	}

	eng, err := lookupEngine(*engineName)
	if err != nil {
		return 2
	}
	spectra, err := ReadCatalog(*spectraFilename)
	if err != nil {
		return 1
	}
	engineSpectra, meta, err := ToEngineFormat(spectra)
	if err != nil {
		return 1
	}
	if err = ensureOutputDir(*outputDir, *force, exposuresFile, extractedSigsFile); err != nil {
		return 1
	}

	ctx := context.Background()
	log.WithField("engine", eng.Name()).Infof("extracting %d signatures from %d samples", *numSignatures, len(engineSpectra.Rows))
	res, err := eng.Extract(ctx, ExtractRequest{
		Spectra:       engineSpectra,
		NumSignatures: *numSignatures,
		Seed:          *seed,
	})
	if err != nil {
		return 1
	}
	if res.ExtractedSignatures == nil {
		err = &EngineError{Engine: eng.Name(), Err: fmt.Errorf("extraction returned no signatures")}
		return 1
	}

	sigcat, err := FromEngineFormat(res.ExtractedSignatures, spectra.MutationTypes, Metadata{Kind: KindSignature, Region: meta.Region})
	if err != nil {
		return 1
	}
	sigcat = normalizeSignatureColumns(sigcat)

	totals := map[string]float64{}
	for j, name := range spectra.Samples {
		totals[name] = spectra.SampleTotal(j)
	}
	exposures, err := rescaleResult(res, totals)
	if err != nil {
		return 1
	}
	exposures.Meta.Region = meta.Region

	if err = WriteCatalog(filepath.Join(*outputDir, extractedSigsFile), sigcat); err != nil {
		return 1
	}
	if err = WriteCatalog(filepath.Join(*outputDir, exposuresFile), exposures); err != nil {
		return 1
	}
	prov := provenance{
		Seed:    *seed,
		RNG:     eng.RNG(),
		Engine:  eng.Version(ctx),
		Inputs:  []string{*spectraFilename},
		Started: time.Now(),
	}
	if err = prov.write(*outputDir); err != nil {
		return 1
	}
	fmt.Fprintln(stdout, filepath.Join(*outputDir, exposuresFile))
	return 0
}

// normalizeSignatureColumns rescales each signature column to sum to 1.
// Engines generally return distributions already; this squashes the
// numerical drift a long MCMC run leaves behind.
func normalizeSignatureColumns(cat *Catalog) *Catalog {
	values := make([]float64, 0, len(cat.MutationTypes)*len(cat.Samples))
	sums := cat.SampleTotals()
	for i := range cat.MutationTypes {
		for j := range cat.Samples {
			v := cat.Values.At(i, j)
			if sums[j] > 0 {
				v /= sums[j]
			}
			values = append(values, v)
		}
	}
	return NewCatalog(cat.MutationTypes, cat.Samples, values, cat.Meta)
}
