// Copyright (C) The SynSigRun Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package synsigrun

import "fmt"

// FormatError reports a shape or identifier mismatch between a catalog
// and the layout an external engine expects.
type FormatError struct {
	Detail string
}

func (e *FormatError) Error() string {
	return "catalog format: " + e.Detail
}

// DivisionByZeroError reports a sample whose raw loading vector (or
// mutation burden) sums to zero, i.e. a degenerate attribution that
// must not be silently skipped.
type DivisionByZeroError struct {
	Sample string
}

func (e *DivisionByZeroError) Error() string {
	return fmt.Sprintf("sample %q: loading vector sums to zero", e.Sample)
}

// OutputExistsError reports that a result file this run would write is
// already present in the output directory and -force was not given.
type OutputExistsError struct {
	Path string
}

func (e *OutputExistsError) Error() string {
	return fmt.Sprintf("output file %s already exists (use -force to overwrite)", e.Path)
}

// EngineError wraps a failed external engine invocation. Sample is the
// identifier of the sample that triggered the failure, or empty for
// whole-matrix engines.
type EngineError struct {
	Engine string
	Sample string
	Err    error
}

func (e *EngineError) Error() string {
	if e.Sample == "" {
		return fmt.Sprintf("engine %s: %v", e.Engine, e.Err)
	}
	return fmt.Sprintf("engine %s, sample %q: %v", e.Engine, e.Sample, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }
