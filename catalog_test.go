// Copyright (C) The SynSigRun Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package synsigrun

import (
	"os"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gopkg.in/check.v1"
)

type catalogSuite struct{}

var _ = check.Suite(&catalogSuite{})

func (s *catalogSuite) TestReadWriteRoundTrip(c *check.C) {
	tmpdir := c.MkDir()
	cat := randomCatalog(sbs96MutationTypes(), []string{"T1", "T2"}, Metadata{Kind: KindCounts, Region: "exome"})

	for _, name := range []string{"/cat.csv", "/cat.csv.gz"} {
		err := WriteCatalog(tmpdir+name, cat)
		c.Assert(err, check.IsNil)
		got, err := ReadCatalog(tmpdir + name)
		c.Assert(err, check.IsNil)
		c.Check(got.MutationTypes, check.DeepEquals, cat.MutationTypes)
		c.Check(got.Samples, check.DeepEquals, cat.Samples)
		c.Check(got.Meta, check.DeepEquals, cat.Meta)
		c.Check(mat.Equal(got.Values, cat.Values), check.Equals, true)
	}
}

func (s *catalogSuite) TestGzEarlyClose(c *check.C) {
	// closing mid-stream must release the decompressor cleanly
	tmpdir := c.MkDir()
	cat := randomCatalog(sbs96MutationTypes(), []string{"T1", "T2"}, Metadata{Kind: KindCounts})
	c.Assert(WriteCatalog(tmpdir+"/cat.csv.gz", cat), check.IsNil)
	rdr, err := openMaybeGz(tmpdir + "/cat.csv.gz")
	c.Assert(err, check.IsNil)
	buf := make([]byte, 16)
	_, err = rdr.Read(buf)
	c.Assert(err, check.IsNil)
	c.Check(rdr.Close(), check.IsNil)
}

func (s *catalogSuite) TestReadTabDelimited(c *check.C) {
	tmpdir := c.MkDir()
	err := os.WriteFile(tmpdir+"/cat.tsv", []byte("MutationType\tT1\tT2\nA[C>A]A\t3\t0\nA[C>A]C\t1\t12\n"), 0644)
	c.Assert(err, check.IsNil)
	cat, err := ReadCatalog(tmpdir + "/cat.tsv")
	c.Assert(err, check.IsNil)
	c.Check(cat.Samples, check.DeepEquals, []string{"T1", "T2"})
	c.Check(cat.Meta.Kind, check.Equals, KindCounts) // default when no metadata lines
	c.Check(cat.Values.At(1, 1), check.Equals, 12.0)
}

func (s *catalogSuite) TestReadRejectsNegative(c *check.C) {
	tmpdir := c.MkDir()
	err := os.WriteFile(tmpdir+"/bad.csv", []byte("MutationType,T1\nA[C>A]A,-3\n"), 0644)
	c.Assert(err, check.IsNil)
	_, err = ReadCatalog(tmpdir + "/bad.csv")
	c.Check(err, check.NotNil)
	c.Check(strings.Contains(err.Error(), "negative"), check.Equals, true)
}

func (s *catalogSuite) TestSignatureKindValidatesColumnSums(c *check.C) {
	tmpdir := c.MkDir()
	err := os.WriteFile(tmpdir+"/sig.csv", []byte("# kind: signature\nMutationType,S1\nA[C>A]A,0.5\nA[C>A]C,0.2\n"), 0644)
	c.Assert(err, check.IsNil)
	_, err = ReadCatalog(tmpdir + "/sig.csv")
	c.Assert(err, check.NotNil)
	c.Check(strings.Contains(err.Error(), "sums to"), check.Equals, true)

	err = os.WriteFile(tmpdir+"/sig.csv", []byte("# kind: signature\n# region: genome\nMutationType,S1\nA[C>A]A,0.75\nA[C>A]C,0.25\n"), 0644)
	c.Assert(err, check.IsNil)
	cat, err := ReadCatalog(tmpdir + "/sig.csv")
	c.Assert(err, check.IsNil)
	c.Check(cat.Meta, check.DeepEquals, Metadata{Kind: KindSignature, Region: "genome"})
}

func (s *catalogSuite) TestSampleTotals(c *check.C) {
	cat := NewCatalog([]string{"a", "b"}, []string{"T1", "T2"},
		[]float64{1, 10, 2, 20}, Metadata{Kind: KindCounts})
	c.Check(cat.SampleTotals(), check.DeepEquals, []float64{3, 30})
	c.Check(cat.Column(1), check.DeepEquals, []float64{10, 20})
}
