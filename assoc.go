// Copyright (C) The SynSigRun Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package synsigrun

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"

	"github.com/kshedden/statmodel/glm"
	"github.com/kshedden/statmodel/statmodel"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
	stdliblog "log"
)

var glmConfig = &glm.Config{
	Family:         glm.NewFamily(glm.BinomialFamily),
	FitMethod:      "IRLS",
	ConcurrentIRLS: 1000,
	Log:            stdliblog.New(io.Discard, "", 0),
}

// assoccmd fits, per signature, a logistic regression of a binary
// sample phenotype on that signature's exposure, reporting a
// likelihood-ratio p-value against the intercept-only model.
type assoccmd struct{}

func (cmd *assoccmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	exposuresFilename := flags.String("exposures", "", "exposure catalog `file`")
	phenotypeFilename := flags.String("phenotype", "", "`file` with sample,status CSV rows (status 0 or 1)")
	outputFilename := flags.String("o", "-", "output `file`")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	}
	if *exposuresFilename == "" || *phenotypeFilename == "" {
		err = fmt.Errorf("-exposures and -phenotype are required (try -help)")
		return 2
	}

	exposures, err := ReadCatalog(*exposuresFilename)
	if err != nil {
		return 1
	}
	phenotype, err := readPhenotype(*phenotypeFilename)
	if err != nil {
		return 1
	}

	report, err := exposureAssociations(exposures, phenotype)
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

func readPhenotype(path string) (map[string]bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	csvr := csv.NewReader(f)
	csvr.FieldsPerRecord = 2
	phenotype := map[string]bool{}
	for {
		rec, err := csvr.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		status, err := strconv.Atoi(rec[1])
		if err != nil || (status != 0 && status != 1) {
			return nil, &FormatError{fmt.Sprintf("%s: sample %q: status must be 0 or 1, got %q", path, rec[0], rec[1])}
		}
		phenotype[rec[0]] = status == 1
	}
	if len(phenotype) == 0 {
		return nil, &FormatError{path + ": no phenotype rows"}
	}
	return phenotype, nil
}

type signatureAssociation struct {
	Signature string
	PValue    float64
}

func exposureAssociations(exposures *Catalog, phenotype map[string]bool) ([]signatureAssociation, error) {
	var cols []int
	outcome := []statmodel.Dtype{}
	constants := []statmodel.Dtype{}
	for j, sample := range exposures.Samples {
		status, ok := phenotype[sample]
		if !ok {
			log.Warnf("sample %q has no phenotype, skipping", sample)
			continue
		}
		cols = append(cols, j)
		if status {
			outcome = append(outcome, 1)
		} else {
			outcome = append(outcome, 0)
		}
		constants = append(constants, 1)
	}
	if len(cols) < 3 {
		return nil, fmt.Errorf("only %d samples have phenotypes, need at least 3", len(cols))
	}

	report := make([]signatureAssociation, 0, len(exposures.MutationTypes))
	for i, signame := range exposures.MutationTypes {
		series := make([]statmodel.Dtype, len(cols))
		for k, j := range cols {
			series[k] = exposures.Values.At(i, j)
		}
		normalize(series)
		report = append(report, signatureAssociation{
			Signature: signame,
			PValue:    pvalueGLM(outcome, constants, series),
		})
	}
	sort.Slice(report, func(a, b int) bool { return report[a].PValue < report[b].PValue })
	return report, nil
}

func normalize(a []float64) {
	mean, std := stat.MeanStdDev(a, nil)
	if std == 0 {
		return
	}
	for i, x := range a {
		a[i] = (x - mean) / std
	}
}

// pvalueGLM is the likelihood-ratio p-value of adding one exposure
// covariate to the intercept-only logistic model.
func pvalueGLM(outcome, constants, exposure []statmodel.Dtype) (p float64) {
	defer func() {
		if recover() != nil {
			// typically "matrix singular or near-singular"
			p = math.NaN()
		}
	}()
	nullModel, err := glm.NewGLM(statmodel.NewDataset(
		[][]statmodel.Dtype{outcome, constants},
		[]string{"outcome", "constants"}), "outcome", []string{"constants"}, glmConfig)
	if err != nil {
		return math.NaN()
	}
	logNull := nullModel.Fit().LogLike()

	model, err := glm.NewGLM(statmodel.NewDataset(
		[][]statmodel.Dtype{outcome, constants, exposure},
		[]string{"outcome", "constants", "exposure"}), "outcome", []string{"constants", "exposure"}, glmConfig)
	if err != nil {
		return math.NaN()
	}
	logFull := model.Fit().LogLike()
	dist := distuv.ChiSquared{K: 1}
	return dist.Survival(-2 * (logNull - logFull))
}
