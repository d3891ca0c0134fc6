// Copyright (C) The SynSigRun Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package synsigrun

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/pgzip"
	"gonum.org/v1/gonum/mat"
)

// CatalogKind distinguishes mutation count catalogs from signature
// catalogs, whose columns are probability distributions.
type CatalogKind string

const (
	KindCounts    CatalogKind = "counts"
	KindDensity   CatalogKind = "density"
	KindSignature CatalogKind = "signature"
)

// Metadata is the catalog annotation that external engines do not
// understand and that must be stripped before handing a matrix to one.
type Metadata struct {
	Kind   CatalogKind
	Region string
}

// Catalog is a mutation spectra or signature table: rows are mutation
// types in a fixed order, columns are sample or signature identifiers
// in the insertion order of the source file. A Catalog is never
// mutated after construction.
type Catalog struct {
	MutationTypes []string
	Samples       []string
	Values        *mat.Dense // len(MutationTypes) x len(Samples)
	Meta          Metadata
}

func NewCatalog(mutationTypes, samples []string, values []float64, meta Metadata) *Catalog {
	return &Catalog{
		MutationTypes: append([]string(nil), mutationTypes...),
		Samples:       append([]string(nil), samples...),
		Values:        mat.NewDense(len(mutationTypes), len(samples), values),
		Meta:          meta,
	}
}

// SampleTotal returns the total mutation burden of sample column j.
func (cat *Catalog) SampleTotal(j int) float64 {
	var sum float64
	for i := range cat.MutationTypes {
		sum += cat.Values.At(i, j)
	}
	return sum
}

// SampleTotals returns the per-sample burdens in column order.
func (cat *Catalog) SampleTotals() []float64 {
	totals := make([]float64, len(cat.Samples))
	for j := range cat.Samples {
		totals[j] = cat.SampleTotal(j)
	}
	return totals
}

// Column returns a copy of sample column j.
func (cat *Catalog) Column(j int) []float64 {
	col := make([]float64, len(cat.MutationTypes))
	mat.Col(col, j, cat.Values)
	return col
}

const signatureSumTolerance = 1e-4

// checkSignatureColumns verifies that every column is a probability
// distribution over mutation types.
func (cat *Catalog) checkSignatureColumns() error {
	for j, name := range cat.Samples {
		sum := cat.SampleTotal(j)
		if math.Abs(sum-1) > signatureSumTolerance {
			return &FormatError{fmt.Sprintf("signature column %q sums to %g, want 1", name, sum)}
		}
	}
	return nil
}

// sbs96MutationTypes returns the canonical 96 trinucleotide context
// labels in COSMIC order: substitution class first, then 5' and 3'
// flanking base.
func sbs96MutationTypes() []string {
	subs := []string{"C>A", "C>G", "C>T", "T>A", "T>C", "T>G"}
	bases := []string{"A", "C", "G", "T"}
	types := make([]string, 0, 96)
	for _, sub := range subs {
		for _, five := range bases {
			for _, three := range bases {
				types = append(types, five+"["+sub+"]"+three)
			}
		}
	}
	return types
}

func openMaybeGz(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}
	gz, err := pgzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &gzReadCloser{Reader: gz, file: f}, nil
}

// gzReadCloser closes the decompressor as well as the underlying
// file, releasing the readahead goroutines even when the caller bails
// out mid-stream.
type gzReadCloser struct {
	*pgzip.Reader
	file *os.File
}

func (g *gzReadCloser) Close() error {
	err := g.Reader.Close()
	if cerr := g.file.Close(); err == nil {
		err = cerr
	}
	return err
}

// ReadCatalog loads a catalog from a delimited text file. Leading
// "# key: value" lines carry the catalog metadata; the header row
// names the sample (or signature) columns. Tab and comma delimiters
// are both accepted. A ".gz" suffix selects transparent gzip.
func ReadCatalog(path string) (*Catalog, error) {
	rdr, err := openMaybeGz(path)
	if err != nil {
		return nil, err
	}
	defer rdr.Close()
	cat, err := readCatalog(rdr)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cat, nil
}

func readCatalog(rdr io.Reader) (*Catalog, error) {
	buf := bufio.NewReader(rdr)
	meta := Metadata{Kind: KindCounts}
	var header string
	for {
		line, err := buf.ReadString('\n')
		if err == io.EOF && line == "" {
			return nil, &FormatError{"empty catalog file"}
		} else if err != nil && err != io.EOF {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if !strings.HasPrefix(line, "#") {
			header = line
			break
		}
		key, value, ok := strings.Cut(strings.TrimLeft(line, "# "), ":")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "kind":
			meta.Kind = CatalogKind(strings.TrimSpace(value))
		case "region":
			meta.Region = strings.TrimSpace(value)
		}
	}

	comma := byte(',')
	if strings.ContainsRune(header, '\t') {
		comma = '\t'
	}
	csvr := csv.NewReader(io.MultiReader(strings.NewReader(header+"\n"), buf))
	csvr.Comma = rune(comma)
	csvr.TrimLeadingSpace = true

	head, err := csvr.Read()
	if err != nil {
		return nil, err
	}
	if len(head) < 2 {
		return nil, &FormatError{fmt.Sprintf("header has %d columns, want a mutation-type column plus at least one sample", len(head))}
	}
	samples := head[1:]

	var types []string
	var values []float64
	for {
		rec, err := csvr.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}
		types = append(types, rec[0])
		for i, field := range rec[1:] {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, &FormatError{fmt.Sprintf("row %q, column %q: %v", rec[0], samples[i], err)}
			}
			if v < 0 {
				return nil, &FormatError{fmt.Sprintf("row %q, column %q: negative value %g", rec[0], samples[i], v)}
			}
			values = append(values, v)
		}
	}
	if len(types) == 0 {
		return nil, &FormatError{"catalog has no mutation-type rows"}
	}

	cat := &Catalog{
		MutationTypes: types,
		Samples:       samples,
		Values:        mat.NewDense(len(types), len(samples), values),
		Meta:          meta,
	}
	if meta.Kind == KindSignature {
		if err := cat.checkSignatureColumns(); err != nil {
			return nil, err
		}
	}
	return cat, nil
}

// WriteCatalog writes a catalog in the same format ReadCatalog
// accepts, comma-delimited, with metadata comment lines first.
func WriteCatalog(path string, cat *Catalog) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0666)
	if err != nil {
		return err
	}
	var out io.Writer = f
	var gz *pgzip.Writer
	if strings.HasSuffix(path, ".gz") {
		gz = pgzip.NewWriter(f)
		out = gz
	}
	bufw := bufio.NewWriter(out)
	err = writeCatalog(bufw, cat)
	if err == nil {
		err = bufw.Flush()
	}
	if gz != nil && err == nil {
		err = gz.Close()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

func writeCatalog(w io.Writer, cat *Catalog) error {
	if _, err := fmt.Fprintf(w, "# kind: %s\n", cat.Meta.Kind); err != nil {
		return err
	}
	if cat.Meta.Region != "" {
		if _, err := fmt.Fprintf(w, "# region: %s\n", cat.Meta.Region); err != nil {
			return err
		}
	}
	csvw := csv.NewWriter(w)
	if err := csvw.Write(append([]string{"MutationType"}, cat.Samples...)); err != nil {
		return err
	}
	rec := make([]string, 1+len(cat.Samples))
	for i, mtype := range cat.MutationTypes {
		rec[0] = mtype
		for j := range cat.Samples {
			rec[1+j] = strconv.FormatFloat(cat.Values.At(i, j), 'g', -1, 64)
		}
		if err := csvw.Write(rec); err != nil {
			return err
		}
	}
	csvw.Flush()
	return csvw.Error()
}
