// Copyright (C) The SynSigRun Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package synsigrun

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
)

// provenance is written alongside every result so a run can be
// reproduced: the explicit seed, the RNG the engine used, and a
// session description including checksums of the exact inputs.
type provenance struct {
	Seed    int64
	RNG     string
	Engine  string // engine name + version, or "" for engine-free runs
	Inputs  []string
	Started time.Time
}

const (
	seedFile    = "seed.txt"
	rngFile     = "rng.txt"
	sessionFile = "session.txt"
)

func (p *provenance) write(dir string) error {
	err := os.WriteFile(filepath.Join(dir, seedFile), []byte(fmt.Sprintf("%d\n", p.Seed)), 0666)
	if err != nil {
		return err
	}
	err = os.WriteFile(filepath.Join(dir, rngFile), []byte(p.RNG+"\n"), 0666)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(dir, sessionFile), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0666)
	if err != nil {
		return err
	}
	bufw := bufio.NewWriter(f)
	fmt.Fprintf(bufw, "started: %s\n", p.Started.Format(time.RFC3339))
	fmt.Fprintf(bufw, "command: %s\n", strings.Join(os.Args, " "))
	fmt.Fprintf(bufw, "go: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	if p.Engine != "" {
		fmt.Fprintf(bufw, "engine: %s\n", p.Engine)
	}
	fmt.Fprintf(bufw, "seed: %d\n", p.Seed)
	fmt.Fprintf(bufw, "rng: %s\n", p.RNG)
	for _, input := range p.Inputs {
		sum, err := blake2bFile(input)
		if err != nil {
			return err
		}
		fmt.Fprintf(bufw, "input: %s blake2b:%x\n", input, sum)
	}
	err = bufw.Flush()
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

func blake2bFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	h, err := blake2b.New256(nil)
	if err != nil {
		return nil, err
	}
	if _, err = io.Copy(h, f); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}

// ensureOutputDir creates dir if needed and, unless force is set,
// refuses to clobber any of the files this run is about to write.
func ensureOutputDir(dir string, force bool, files ...string) error {
	if err := os.MkdirAll(dir, 0777); err != nil {
		return err
	}
	if force {
		return nil
	}
	for _, name := range append([]string{seedFile, rngFile, sessionFile}, files...) {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return &OutputExistsError{Path: path}
		}
	}
	return nil
}
