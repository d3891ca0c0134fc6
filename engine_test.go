// Copyright (C) The SynSigRun Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package synsigrun

import (
	"os"

	"gonum.org/v1/gonum/mat"
	"gopkg.in/check.v1"
)

type engineSuite struct{}

var _ = check.Suite(&engineSuite{})

func (s *engineSuite) TestEngineMatrixRoundTrip(c *check.C) {
	tmpdir := c.MkDir()
	m := &EngineMatrix{
		Rows: []string{"T1", "T2"},
		Cols: []string{"A[C>A]A", "A[C>A]C", "A[C>A]G"},
		Data: mat.NewDense(2, 3, []float64{1, 2.5, 0, 4, 0, 0.125}),
	}
	c.Assert(writeEngineMatrix(tmpdir+"/m.csv", m), check.IsNil)
	got, err := readEngineMatrix(tmpdir + "/m.csv")
	c.Assert(err, check.IsNil)
	c.Check(got.Rows, check.DeepEquals, m.Rows)
	c.Check(got.Cols, check.DeepEquals, m.Cols)
	c.Check(mat.Equal(got.Data, m.Data), check.Equals, true)
}

func (s *engineSuite) TestReadEngineMatrixQuoted(c *check.C) {
	// write.csv in R quotes the dimnames
	tmpdir := c.MkDir()
	err := os.WriteFile(tmpdir+"/r.csv", []byte("\"\",\"S1\",\"S2\"\n\"T1\",0.75,0.25\n"), 0644)
	c.Assert(err, check.IsNil)
	got, err := readEngineMatrix(tmpdir + "/r.csv")
	c.Assert(err, check.IsNil)
	c.Check(got.Rows, check.DeepEquals, []string{"T1"})
	c.Check(got.Cols, check.DeepEquals, []string{"S1", "S2"})
	c.Check(got.Data.At(0, 1), check.Equals, 0.25)
}

func (s *engineSuite) TestReadEngineMatrixDegenerate(c *check.C) {
	// a header with no column names must be an error, not a panic
	tmpdir := c.MkDir()
	err := os.WriteFile(tmpdir+"/bad.csv", []byte("\"\"\n\"T1\"\n"), 0644)
	c.Assert(err, check.IsNil)
	_, err = readEngineMatrix(tmpdir + "/bad.csv")
	c.Check(err, check.ErrorMatches, ".*header has 1 cells.*")
}

func (s *engineSuite) TestEmuMatrixRoundTrip(c *check.C) {
	tmpdir := c.MkDir()
	m := &EngineMatrix{
		Rows: []string{"T1", "T2"},
		Cols: []string{"c1", "c2"},
		Data: mat.NewDense(2, 2, []float64{10, 0, 3, 7}),
	}
	c.Assert(writeEmuMatrix(tmpdir+"/mut.txt", m), check.IsNil)
	got, err := readEmuMatrix(tmpdir+"/mut.txt", m.Rows, m.Cols)
	c.Assert(err, check.IsNil)
	c.Check(mat.Equal(got.Data, m.Data), check.Equals, true)

	_, err = readEmuMatrix(tmpdir+"/mut.txt", []string{"T1"}, m.Cols)
	c.Check(err, check.NotNil)
}

func (s *engineSuite) TestLookupEngine(c *check.C) {
	for _, name := range []string{"deconstructsigs", "sigfit", "signer", "yapsa", "emu"} {
		eng, err := lookupEngine(name)
		c.Assert(err, check.IsNil)
		c.Check(eng.Name(), check.Equals, name)
	}
	_, err := lookupEngine("nonesuch")
	c.Check(err, check.NotNil)
}
