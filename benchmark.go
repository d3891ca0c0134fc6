// Copyright (C) The SynSigRun Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package synsigrun

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	sp "github.com/scipipe/scipipe"
)

// benchmarkcmd runs the whole evaluation as a scipipe workflow:
// simulate one synthetic dataset per replicate, fan each one out
// across the requested engines, and score every result against its
// ground truth. Each step shells out to this same binary, so the
// workflow is resumable file-by-file.
type benchmarkcmd struct{}

func (cmd *benchmarkcmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	sigsFilename := flags.String("signatures", "", "ground-truth signature catalog `file`")
	engineList := flags.String("engines", "deconstructsigs,yapsa", "comma-separated attribution `engines`")
	replicates := flags.Int("replicates", 3, "`number` of synthetic datasets")
	nsamples := flags.Int("samples", 50, "tumors per synthetic dataset")
	seed := flags.Int64("seed", 1, "base pseudo-random `seed`; replicate r uses seed+r")
	workDir := flags.String("work-dir", "./benchmark", "workflow `directory`")
	maxTasks := flags.Int("max-tasks", 2, "max concurrent workflow tasks")
	selfProg := flags.String("prog", os.Args[0], "synsigrun `binary` the workflow steps invoke")
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
	engines := strings.Split(*engineList, ",")
	for _, name := range engines {
		if _, err = lookupEngine(name); err != nil {
			return 2
		}
	}
	sigsPath, err := filepath.Abs(*sigsFilename)
	if err != nil {
		return 1
	}

	wf := sp.NewWorkflow("synsigrun-benchmark", *maxTasks)
	for r := 1; r <= *replicates; r++ {
		repDir := filepath.Join(*workDir, fmt.Sprintf("rep%d", r))
		repSeed := *seed + int64(r)

		sim := wf.NewProc(fmt.Sprintf("simulate_rep%d", r), fmt.Sprintf(
			`%s simulate -signatures %s -samples %d -seed %d -force -output-dir $(dirname {o:catalog}) && test -f {o:truth}`,
			*selfProg, sigsPath, *nsamples, repSeed))
		sim.SetOut("catalog", filepath.Join(repDir, synCatalogFile))
		sim.SetOut("truth", filepath.Join(repDir, synExposuresFile))

		for _, engine := range engines {
			engine := strings.TrimSpace(engine)
			engDir := filepath.Join(repDir, engine)

			attr := wf.NewProc(fmt.Sprintf("attribute_%s_rep%d", engine, r), fmt.Sprintf(
				`%s attribute -spectra {i:catalog} -signatures %s -engine %s -seed %d -force -output-dir $(dirname {o:exposures}) && test -f {o:exposures}`,
				*selfProg, sigsPath, engine, repSeed))
			attr.SetOut("exposures", filepath.Join(engDir, exposuresFile))
			attr.In("catalog").From(sim.Out("catalog"))

			score := wf.NewProc(fmt.Sprintf("score_%s_rep%d", engine, r), fmt.Sprintf(
				`%s score -inferred {i:exposures} -truth {i:truth} -o {o:report}`, *selfProg))
			score.SetOut("report", filepath.Join(engDir, "score.json"))
			score.In("exposures").From(attr.Out("exposures"))
			score.In("truth").From(sim.Out("truth"))
		}
	}
	wf.Run()
	fmt.Fprintln(stdout, *workDir)
	return 0
}
