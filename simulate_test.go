// Copyright (C) The SynSigRun Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package synsigrun

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gopkg.in/check.v1"
)

type simulateSuite struct{}

var _ = check.Suite(&simulateSuite{})

func testSignatures() *Catalog {
	// two sharply peaked toy signatures over four channels
	return NewCatalog(
		[]string{"A[C>A]A", "A[C>A]C", "A[C>A]G", "A[C>A]T"},
		[]string{"S1", "S2"},
		[]float64{
			0.7, 0.05,
			0.1, 0.05,
			0.1, 0.05,
			0.1, 0.85,
		},
		Metadata{Kind: KindSignature, Region: "genome"},
	)
}

func (s *simulateSuite) TestSimulateShape(c *check.C) {
	sigs := testSignatures()
	catalog, exposures := simulateSpectra(sigs, 20, 1000, 0.5, "Syn", 7)

	c.Check(catalog.MutationTypes, check.DeepEquals, sigs.MutationTypes)
	c.Check(catalog.Samples, check.HasLen, 20)
	c.Check(catalog.Samples[0], check.Equals, "Syn1")
	c.Check(catalog.Samples[19], check.Equals, "Syn20")
	c.Check(exposures.MutationTypes, check.DeepEquals, []string{"S1", "S2"})
	c.Check(exposures.Samples, check.DeepEquals, catalog.Samples)

	// burdens should sit in the right ballpark of the Poisson mean,
	// and exposure totals should track catalog totals
	for j := range catalog.Samples {
		burden := catalog.SampleTotal(j)
		c.Check(burden > 500 && burden < 1500, check.Equals, true,
			check.Commentf("sample %d burden %g", j, burden))
		c.Check(math.Abs(exposures.SampleTotal(j)-burden)/burden < 0.25, check.Equals, true)
	}
}

func (s *simulateSuite) TestSimulateReproducible(c *check.C) {
	sigs := testSignatures()
	cat1, exp1 := simulateSpectra(sigs, 10, 500, 0.5, "Syn", 11)
	cat2, exp2 := simulateSpectra(sigs, 10, 500, 0.5, "Syn", 11)
	c.Check(mat.Equal(cat1.Values, cat2.Values), check.Equals, true)
	c.Check(mat.Equal(exp1.Values, exp2.Values), check.Equals, true)

	cat3, _ := simulateSpectra(sigs, 10, 500, 0.5, "Syn", 12)
	c.Check(mat.Equal(cat1.Values, cat3.Values), check.Equals, false)
}
