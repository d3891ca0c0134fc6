// Copyright (C) The SynSigRun Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package synsigrun

import (
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distmv"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	synCatalogFile   = "ground.truth.syn.catalog.csv"
	synExposuresFile = "ground.truth.syn.exposures.csv"
)

type simulatecmd struct{}

func (cmd *simulatecmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	sigsFilename := flags.String("signatures", "", "signature catalog `file` to simulate from")
	nsamples := flags.Int("samples", 100, "`number` of synthetic tumors")
	meanBurden := flags.Float64("mean-burden", 5000, "mean total mutation `count` per tumor")
	concentration := flags.Float64("concentration", 0.5, "Dirichlet concentration `alpha` for signature fractions")
	prefix := flags.String("prefix", "SynTumor", "sample name `prefix`")
	seed := flags.Int64("seed", 1, "pseudo-random `seed`")
	outputDir := flags.String("output-dir", "./out", "output `directory`")
	force := flags.Bool("force", false, "overwrite existing output files")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	}
	if *sigsFilename == "" {
		err = fmt.Errorf("-signatures is required (try -help)")
		return 2
	}

	sigs, err := ReadCatalog(*sigsFilename)
	if err != nil {
		return 1
	}
	if err = sigs.checkSignatureColumns(); err != nil {
		return 1
	}
	if err = ensureOutputDir(*outputDir, *force, synCatalogFile, synExposuresFile); err != nil {
		return 1
	}

	log.Infof("simulating %d tumors from %d signatures", *nsamples, len(sigs.Samples))
	catalog, exposures := simulateSpectra(sigs, *nsamples, *meanBurden, *concentration, *prefix, *seed)

	if err = WriteCatalog(filepath.Join(*outputDir, synCatalogFile), catalog); err != nil {
		return 1
	}
	if err = WriteCatalog(filepath.Join(*outputDir, synExposuresFile), exposures); err != nil {
		return 1
	}
	prov := provenance{
		Seed:    *seed,
		RNG:     "pcg64 (golang.org/x/exp/rand)",
		Inputs:  []string{*sigsFilename},
		Started: time.Now(),
	}
	if err = prov.write(*outputDir); err != nil {
		return 1
	}
	fmt.Fprintln(stdout, filepath.Join(*outputDir, synCatalogFile))
	return 0
}

// simulateSpectra draws, for each synthetic tumor, a signature mixture
// from a symmetric Dirichlet, a total burden from a Poisson around
// meanBurden, and then a Poisson count per mutation-type channel with
// mean burden * sum_k signature[type,k] * mixture[k]. It returns the
// spectra catalog and the ground-truth exposure matrix that generated
// it.
func simulateSpectra(sigs *Catalog, nsamples int, meanBurden, concentration float64, prefix string, seed int64) (*Catalog, *Catalog) {
	src := rand.NewSource(uint64(seed))
	nsig := len(sigs.Samples)
	ntypes := len(sigs.MutationTypes)

	alpha := make([]float64, nsig)
	for k := range alpha {
		alpha[k] = concentration
	}
	mixtureDist := distmv.NewDirichlet(alpha, src)
	burdenDist := distuv.Poisson{Lambda: meanBurden, Src: src}

	samples := make([]string, nsamples)
	catalogValues := make([]float64, ntypes*nsamples)
	exposureValues := make([]float64, nsig*nsamples)
	mixture := make([]float64, nsig)
	for j := 0; j < nsamples; j++ {
		samples[j] = fmt.Sprintf("%s%d", prefix, j+1)
		mixtureDist.Rand(mixture)
		burden := burdenDist.Rand()
		for k := 0; k < nsig; k++ {
			exposureValues[k*nsamples+j] = mixture[k] * burden
		}
		for i := 0; i < ntypes; i++ {
			var lambda float64
			for k := 0; k < nsig; k++ {
				lambda += sigs.Values.At(i, k) * mixture[k]
			}
			lambda *= burden
			if lambda > 0 {
				catalogValues[i*nsamples+j] = distuv.Poisson{Lambda: lambda, Src: src}.Rand()
			}
		}
	}

	catalog := NewCatalog(sigs.MutationTypes, samples, catalogValues, Metadata{Kind: KindCounts, Region: sigs.Meta.Region})
	exposures := NewCatalog(sigs.Samples, samples, exposureValues, Metadata{Kind: KindCounts, Region: sigs.Meta.Region})
	return catalog, exposures
}
