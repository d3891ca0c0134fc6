// Copyright (C) The SynSigRun Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package synsigrun

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"os"

	"gonum.org/v1/gonum/floats"
)

type scorecmd struct{}

func (cmd *scorecmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	inferredFilename := flags.String("inferred", "", "inferred exposures `file`")
	truthFilename := flags.String("truth", "", "ground-truth exposures `file`")
	outputFilename := flags.String("o", "-", "output `file`")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	}
	if *inferredFilename == "" || *truthFilename == "" {
		err = fmt.Errorf("-inferred and -truth are required (try -help)")
		return 2
	}

	inferred, err := ReadCatalog(*inferredFilename)
	if err != nil {
		return 1
	}
	truth, err := ReadCatalog(*truthFilename)
	if err != nil {
		return 1
	}
	report, err := scoreExposures(inferred, truth)
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
	enc := json.NewEncoder(output)
	enc.SetIndent("", "  ")
	if err = enc.Encode(report); err != nil {
		return 1
	}
	err = output.Close()
	if err != nil {
		return 1
	}
	return 0
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

type sampleScore struct {
	Sample            string
	CosineSimilarity  float64
	ScaledManhattan   float64
	InferredTotal     float64
	TruthTotal        float64
	UnexplainedOfUnit float64 // 1 - inferred/truth totals ratio, clamped at 0
}

type scoreReport struct {
	Samples              []sampleScore
	MeanCosineSimilarity float64
	MeanScaledManhattan  float64
}

// scoreExposures compares inferred exposures against ground truth,
// sample by sample, over the signatures the two catalogs share in the
// truth catalog's order. A signature missing from the inferred catalog
// counts as zero exposure everywhere.
func scoreExposures(inferred, truth *Catalog) (*scoreReport, error) {
	infSig := map[string]int{}
	for i, name := range inferred.MutationTypes {
		infSig[name] = i
	}
	infSample := map[string]int{}
	for j, name := range inferred.Samples {
		infSample[name] = j
	}

	report := &scoreReport{}
	for j, sample := range truth.Samples {
		ij, ok := infSample[sample]
		if !ok {
			return nil, &FormatError{fmt.Sprintf("sample %q missing from inferred exposures", sample)}
		}
		want := truth.Column(j)
		got := make([]float64, len(want))
		for k, signame := range truth.MutationTypes {
			if ik, ok := infSig[signame]; ok {
				got[k] = inferred.Values.At(ik, ij)
			}
		}
		score := sampleScore{
			Sample:           sample,
			CosineSimilarity: cosineSimilarity(got, want),
			InferredTotal:    floats.Sum(got),
			TruthTotal:       floats.Sum(want),
		}
		if score.TruthTotal > 0 {
			score.ScaledManhattan = manhattan(got, want) / score.TruthTotal
			score.UnexplainedOfUnit = math.Max(0, 1-score.InferredTotal/score.TruthTotal)
		}
		report.Samples = append(report.Samples, score)
		report.MeanCosineSimilarity += score.CosineSimilarity
		report.MeanScaledManhattan += score.ScaledManhattan
	}
	if n := float64(len(report.Samples)); n > 0 {
		report.MeanCosineSimilarity /= n
		report.MeanScaledManhattan /= n
	}
	return report, nil
}

func cosineSimilarity(a, b []float64) float64 {
	na := floats.Norm(a, 2)
	nb := floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return floats.Dot(a, b) / (na * nb)
}

func manhattan(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += math.Abs(a[i] - b[i])
	}
	return sum
}
