// Copyright (C) The SynSigRun Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package synsigrun

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	"gonum.org/v1/gonum/mat"
)

// EngineMatrix is a plain named matrix in the orientation external
// engines expect: one row per sample, one column per mutation-type
// channel, no catalog metadata.
type EngineMatrix struct {
	Rows []string
	Cols []string
	Data *mat.Dense // len(Rows) x len(Cols)
}

// ToEngineFormat strips catalog metadata and transposes so each row is
// one sample and each column one mutation-type channel. The input
// catalog is not modified; its metadata is returned separately so the
// caller can reconstruct the catalog later. Duplicate row or column
// identifiers are a FormatError.
func ToEngineFormat(cat *Catalog) (*EngineMatrix, Metadata, error) {
	if dup := firstDuplicate(cat.MutationTypes); dup != "" {
		return nil, Metadata{}, &FormatError{fmt.Sprintf("duplicate mutation-type row %q", dup)}
	}
	if dup := firstDuplicate(cat.Samples); dup != "" {
		return nil, Metadata{}, &FormatError{fmt.Sprintf("duplicate sample column %q", dup)}
	}
	data := mat.NewDense(len(cat.Samples), len(cat.MutationTypes), nil)
	for i := range cat.MutationTypes {
		for j := range cat.Samples {
			data.Set(j, i, cat.Values.At(i, j))
		}
	}
	return &EngineMatrix{
		Rows: append([]string(nil), cat.Samples...),
		Cols: append([]string(nil), cat.MutationTypes...),
		Data: data,
	}, cat.Meta, nil
}

// FromEngineFormat is the inverse transform: it re-attaches the
// canonical mutation-type row order and the catalog metadata. The
// matrix columns may appear in any order as long as their names match
// mutationTypeOrder; an unnamed matrix is assumed to already follow
// it. Column count mismatch is a FormatError.
func FromEngineFormat(m *EngineMatrix, mutationTypeOrder []string, meta Metadata) (*Catalog, error) {
	_, cols := m.Data.Dims()
	if cols != len(mutationTypeOrder) {
		return nil, &FormatError{fmt.Sprintf("matrix has %d columns, want %d mutation types", cols, len(mutationTypeOrder))}
	}
	colidx := make([]int, len(mutationTypeOrder))
	if m.Cols == nil {
		for i := range colidx {
			colidx[i] = i
		}
	} else {
		byName := map[string]int{}
		for i, name := range m.Cols {
			byName[name] = i
		}
		for i, name := range mutationTypeOrder {
			idx, ok := byName[name]
			if !ok {
				return nil, &FormatError{"mutation-type order mismatch:\n" + orderDiff(m.Cols, mutationTypeOrder)}
			}
			colidx[i] = idx
		}
	}
	data := mat.NewDense(len(mutationTypeOrder), len(m.Rows), nil)
	for i := range mutationTypeOrder {
		for j := range m.Rows {
			data.Set(i, j, m.Data.At(j, colidx[i]))
		}
	}
	return &Catalog{
		MutationTypes: append([]string(nil), mutationTypeOrder...),
		Samples:       append([]string(nil), m.Rows...),
		Values:        data,
		Meta:          meta,
	}, nil
}

func firstDuplicate(names []string) string {
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			return name
		}
		seen[name] = true
	}
	return ""
}

// orderDiff renders a readable diff of two identifier orderings for
// FormatError messages.
func orderDiff(got, want []string) string {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(strings.Join(got, "\n")+"\n", strings.Join(want, "\n")+"\n")
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)
	var out strings.Builder
	for _, d := range diffs {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		default:
			continue
		}
		for _, line := range strings.Split(strings.TrimRight(d.Text, "\n"), "\n") {
			out.WriteString(prefix + line + "\n")
		}
	}
	return strings.TrimRight(out.String(), "\n")
}
