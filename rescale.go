// Copyright (C) The SynSigRun Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package synsigrun

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Rescale converts one sample's relative signature weights (entries
// >= 0, summing to <= 1 with any shortfall being unexplained residual)
// into absolute mutation counts: out[k] = weights[k] * total. The sum
// of the result is total * sum(weights).
func Rescale(weights []float64, total float64) []float64 {
	out := make([]float64, len(weights))
	for k, w := range weights {
		out[k] = w * total
	}
	return out
}

// NormalizeThenRescale handles engines that return unnormalized
// loadings: the sample's loading vector is divided by its own sum to
// obtain relative weights, then rescaled to absolute counts summing to
// total. A zero loading sum means the engine produced a degenerate
// attribution for the sample and is reported as a DivisionByZeroError
// naming it.
func NormalizeThenRescale(raw []float64, total float64, sample string) ([]float64, error) {
	sum := floats.Sum(raw)
	if sum == 0 {
		return nil, &DivisionByZeroError{Sample: sample}
	}
	weights := make([]float64, len(raw))
	for k, v := range raw {
		weights[k] = v / sum
	}
	return Rescale(weights, total), nil
}

// rescaleResult converts an engine result (per-sample weights or
// loadings over signatures) into an exposure catalog with signatures
// as rows and samples as columns, scaled to each sample's observed
// mutation burden. Samples are independent; row order follows the
// engine's signature order.
func rescaleResult(res Result, sampleTotals map[string]float64) (*Catalog, error) {
	m := res.attribution()
	nsig := len(m.Cols)
	values := make([]float64, nsig*len(m.Rows))
	row := make([]float64, nsig)
	for j, sample := range m.Rows {
		mat.Row(row, j, m.Data)
		var abs []float64
		if res.Loadings != nil {
			var err error
			abs, err = NormalizeThenRescale(row, sampleTotals[sample], sample)
			if err != nil {
				return nil, err
			}
		} else {
			abs = Rescale(row, sampleTotals[sample])
		}
		for k, v := range abs {
			values[k*len(m.Rows)+j] = v
		}
	}
	return NewCatalog(m.Cols, m.Rows, values, Metadata{Kind: KindCounts}), nil
}
