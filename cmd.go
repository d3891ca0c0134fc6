// Copyright (C) The SynSigRun Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package synsigrun

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"sort"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

type commandHandler interface {
	RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int
}

var handlers = map[string]commandHandler{
	"version":   versioncmd{},
	"-version":  versioncmd{},
	"--version": versioncmd{},

	"attribute":       &attributecmd{},
	"extract":         &extractcmd{},
	"simulate":        &simulatecmd{},
	"score":           &scorecmd{},
	"stats":           &statscmd{},
	"pca":             &pcacmd{},
	"export-numpy":    &exportNumpy{},
	"assoc":           &assoccmd{},
	"plot":            &plotcmd{},
	"benchmark":       &benchmarkcmd{},
	"install-engines": &installEngines{},
}

func Main() {
	if !isatty.IsTerminal(os.Stderr.Fd()) {
		logrus.StandardLogger().Formatter = &logrus.TextFormatter{DisableTimestamp: true}
	}
	os.Exit(runCommand(os.Args[0], os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func runCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		usage(prog, stderr)
		return 2
	}
	handler, ok := handlers[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "%s: unrecognized command %q\n", prog, args[0])
		usage(prog, stderr)
		return 2
	}
	return handler.RunCommand(prog+" "+args[0], args[1:], stdin, stdout, stderr)
}

func usage(prog string, stderr io.Writer) {
	names := make([]string, 0, len(handlers))
	for name := range handlers {
		if name[0] == '-' {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintf(stderr, "usage: %s command [options]\n\ncommands:\n", prog)
	for _, name := range names {
		fmt.Fprintf(stderr, "  %s\n", name)
	}
}

type versioncmd struct{}

func (versioncmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	version := "(unknown)"
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		version = info.Main.Version
	}
	fmt.Fprintf(stdout, "synsigrun %s\n", version)
	return 0
}
