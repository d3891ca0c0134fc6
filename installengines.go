// Copyright (C) The SynSigRun Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package synsigrun

import (
	_ "embed"
	"flag"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

//go:embed installengines.R
var installEnginesScript string

// installEngines installs any missing R engine packages up front, so
// the first attribute/extract run does not stall on package
// compilation. The EMu binary is a plain executable and is only
// checked for, not installed.
type installEngines struct{}

func (cmd *installEngines) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	}

	rscript := exec.Command("Rscript", "--vanilla", "-")
	rscript.Stdin = strings.NewReader(installEnginesScript)
	rscript.Stdout = stderr
	rscript.Stderr = stderr
	err = rscript.Run()
	if err != nil {
		return 1
	}

	if _, lookErr := exec.LookPath("EMu"); lookErr != nil {
		fmt.Fprintln(stderr, "note: EMu binary not found in PATH; the emu engine will not work until it is installed")
	}
	fmt.Fprintln(stdout, "engine packages installed")
	return 0
}
