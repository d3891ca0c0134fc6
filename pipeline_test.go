// Copyright (C) The SynSigRun Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package synsigrun

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/kshedden/gonpy"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/check.v1"
)

type pipelineSuite struct{}

var _ = check.Suite(&pipelineSuite{})

// uniformEngine is an in-process stand-in for an external engine: it
// attributes every sample evenly across the signatures it is given.
type uniformEngine struct {
	name      string
	perSample bool
}

func (e *uniformEngine) Name() string                       { return e.name }
func (e *uniformEngine) RNG() string                        { return "none" }
func (e *uniformEngine) Version(ctx context.Context) string { return e.name + " 0.0" }
func (e *uniformEngine) PerSample() bool                    { return e.perSample }

func (e *uniformEngine) Attribute(ctx context.Context, req AttributeRequest) (Result, error) {
	nsig := len(req.Signatures.Rows)
	data := mat.NewDense(len(req.Spectra.Rows), nsig, nil)
	for i := range req.Spectra.Rows {
		for k := 0; k < nsig; k++ {
			data.Set(i, k, 1/float64(nsig))
		}
	}
	return Result{Weights: &EngineMatrix{
		Rows: append([]string(nil), req.Spectra.Rows...),
		Cols: append([]string(nil), req.Signatures.Rows...),
		Data: data,
	}}, nil
}

func (e *uniformEngine) Extract(ctx context.Context, req ExtractRequest) (Result, error) {
	return Result{}, &EngineError{Engine: e.name, Err: errNotSupported}
}

func init() {
	registerEngine(&uniformEngine{name: "test-uniform"})
	registerEngine(&uniformEngine{name: "test-uniform-persample", perSample: true})
}

// shufflingEngine attributes 0.9 to S1 and 0.1 to S2 for every sample,
// but lists its signature columns in reverse order for sample T2.
type shufflingEngine struct{}

func (e *shufflingEngine) Name() string                       { return "test-shuffling" }
func (e *shufflingEngine) RNG() string                        { return "none" }
func (e *shufflingEngine) Version(ctx context.Context) string { return "test-shuffling 0.0" }
func (e *shufflingEngine) PerSample() bool                    { return true }

func (e *shufflingEngine) Attribute(ctx context.Context, req AttributeRequest) (Result, error) {
	cols := []string{"S1", "S2"}
	weights := []float64{0.9, 0.1}
	if req.Spectra.Rows[0] == "T2" {
		cols = []string{"S2", "S1"}
		weights = []float64{0.1, 0.9}
	}
	return Result{Weights: &EngineMatrix{
		Rows: append([]string(nil), req.Spectra.Rows...),
		Cols: cols,
		Data: mat.NewDense(1, 2, weights),
	}}, nil
}

func (e *shufflingEngine) Extract(ctx context.Context, req ExtractRequest) (Result, error) {
	return Result{}, &EngineError{Engine: e.Name(), Err: errNotSupported}
}

func (s *pipelineSuite) TestPerSampleColumnOrder(c *check.C) {
	req := AttributeRequest{
		Spectra: &EngineMatrix{
			Rows: []string{"T1", "T2", "T3"},
			Cols: []string{"A[C>A]A", "A[C>A]C"},
			Data: mat.NewDense(3, 2, []float64{50, 50, 60, 40, 70, 30}),
		},
		Signatures: &EngineMatrix{
			Rows: []string{"S1", "S2"},
			Cols: []string{"A[C>A]A", "A[C>A]C"},
			Data: mat.NewDense(2, 2, []float64{0.5, 0.5, 0.5, 0.5}),
		},
	}
	res, err := attributePerSample(context.Background(), &shufflingEngine{}, req, 2)
	c.Assert(err, check.IsNil)
	m := res.Weights
	c.Assert(m.Cols, check.HasLen, 2)
	s1 := 0
	if m.Cols[1] == "S1" {
		s1 = 1
	}
	// every sample gets 0.9 on S1 no matter how the engine ordered
	// its columns for that sample
	for j, sample := range m.Rows {
		c.Check(m.Data.At(j, s1), check.Equals, 0.9, check.Commentf("sample %s", sample))
		c.Check(m.Data.At(j, 1-s1), check.Equals, 0.1, check.Commentf("sample %s", sample))
	}
}

func (s *pipelineSuite) TestSimulateAttributeScore(c *check.C) {
	tmpdir := c.MkDir()
	sigsPath := tmpdir + "/signatures.csv"
	c.Assert(WriteCatalog(sigsPath, testSignatures()), check.IsNil)

	var stdout bytes.Buffer
	exited := runCommand("synsigrun", []string{"simulate",
		"-signatures", sigsPath,
		"-samples", "12",
		"-mean-burden", "800",
		"-seed", "5",
		"-output-dir", tmpdir + "/sim",
	}, &bytes.Buffer{}, &stdout, os.Stderr)
	c.Assert(exited, check.Equals, 0)

	seed, err := os.ReadFile(tmpdir + "/sim/seed.txt")
	c.Assert(err, check.IsNil)
	c.Check(string(seed), check.Equals, "5\n")
	rng, err := os.ReadFile(tmpdir + "/sim/rng.txt")
	c.Assert(err, check.IsNil)
	c.Check(strings.Contains(string(rng), "pcg64"), check.Equals, true)
	session, err := os.ReadFile(tmpdir + "/sim/session.txt")
	c.Assert(err, check.IsNil)
	c.Check(strings.Contains(string(session), "blake2b:"), check.Equals, true)

	spectraPath := tmpdir + "/sim/" + synCatalogFile
	for _, engine := range []string{"test-uniform", "test-uniform-persample"} {
		outdir := tmpdir + "/out-" + engine
		exited = runCommand("synsigrun", []string{"attribute",
			"-spectra", spectraPath,
			"-signatures", sigsPath,
			"-engine", engine,
			"-seed", "5",
			"-output-dir", outdir,
		}, &bytes.Buffer{}, &stdout, os.Stderr)
		c.Assert(exited, check.Equals, 0)

		exposures, err := ReadCatalog(outdir + "/" + exposuresFile)
		c.Assert(err, check.IsNil)
		c.Check(exposures.MutationTypes, check.DeepEquals, []string{"S1", "S2"})
		spectra, err := ReadCatalog(spectraPath)
		c.Assert(err, check.IsNil)
		c.Check(exposures.Samples, check.DeepEquals, spectra.Samples)
		// uniform weights sum to 1, so exposures account for every mutation
		for j := range exposures.Samples {
			c.Check(exposures.SampleTotal(j), check.Equals, spectra.SampleTotal(j))
		}

		// a second run without -force must refuse to clobber
		var stderrBuf bytes.Buffer
		exited = runCommand("synsigrun", []string{"attribute",
			"-spectra", spectraPath,
			"-signatures", sigsPath,
			"-engine", engine,
			"-output-dir", outdir,
		}, &bytes.Buffer{}, &stdout, &stderrBuf)
		c.Check(exited, check.Equals, 1)
		c.Check(strings.Contains(stderrBuf.String(), "already exists"), check.Equals, true)

		var scoreOut bytes.Buffer
		exited = runCommand("synsigrun", []string{"score",
			"-inferred", outdir + "/" + exposuresFile,
			"-truth", tmpdir + "/sim/" + synExposuresFile,
		}, &bytes.Buffer{}, &scoreOut, os.Stderr)
		c.Assert(exited, check.Equals, 0)
		var report scoreReport
		c.Assert(json.Unmarshal(scoreOut.Bytes(), &report), check.IsNil)
		c.Check(report.Samples, check.HasLen, 12)
		c.Check(report.MeanCosineSimilarity > 0, check.Equals, true)
	}
}

func (s *pipelineSuite) TestStatsAndExportNumpy(c *check.C) {
	tmpdir := c.MkDir()
	sigsPath := tmpdir + "/signatures.csv"
	c.Assert(WriteCatalog(sigsPath, testSignatures()), check.IsNil)

	exited := runCommand("synsigrun", []string{"simulate",
		"-signatures", sigsPath, "-samples", "4", "-seed", "3",
		"-output-dir", tmpdir + "/sim",
	}, &bytes.Buffer{}, &bytes.Buffer{}, os.Stderr)
	c.Assert(exited, check.Equals, 0)
	spectraPath := tmpdir + "/sim/" + synCatalogFile

	var statsOut bytes.Buffer
	exited = runCommand("synsigrun", []string{"stats", "-i", spectraPath}, &bytes.Buffer{}, &statsOut, os.Stderr)
	c.Assert(exited, check.Equals, 0)
	var summary struct {
		MutationTypes int
		Samples       int
		TotalCount    float64
	}
	c.Assert(json.Unmarshal(statsOut.Bytes(), &summary), check.IsNil)
	c.Check(summary.MutationTypes, check.Equals, 4)
	c.Check(summary.Samples, check.Equals, 4)
	c.Check(summary.TotalCount > 0, check.Equals, true)

	exited = runCommand("synsigrun", []string{"export-numpy", "-i", spectraPath, "-output-dir", tmpdir + "/npy"}, &bytes.Buffer{}, &bytes.Buffer{}, os.Stderr)
	c.Assert(exited, check.Equals, 0)
	f, err := os.Open(tmpdir + "/npy/matrix.npy")
	c.Assert(err, check.IsNil)
	defer f.Close()
	npy, err := gonpy.NewReader(f)
	c.Assert(err, check.IsNil)
	values, err := npy.GetFloat64()
	c.Assert(err, check.IsNil)
	c.Check(values, check.HasLen, 16)
	c.Check(npy.Shape, check.DeepEquals, []int{4, 4})
}

func (s *pipelineSuite) TestUnknownCommandAndEngine(c *check.C) {
	var stderrBuf bytes.Buffer
	exited := runCommand("synsigrun", []string{"frobnicate"}, &bytes.Buffer{}, &bytes.Buffer{}, &stderrBuf)
	c.Check(exited, check.Equals, 2)
	c.Check(strings.Contains(stderrBuf.String(), "unrecognized command"), check.Equals, true)

	stderrBuf.Reset()
	exited = runCommand("synsigrun", []string{"attribute",
		"-spectra", "x.csv", "-signatures", "y.csv", "-engine", "nonesuch",
	}, &bytes.Buffer{}, &bytes.Buffer{}, &stderrBuf)
	c.Check(exited, check.Equals, 2)
	c.Check(strings.Contains(stderrBuf.String(), "unknown engine"), check.Equals, true)
	// the error names the engines that do exist
	c.Check(strings.Contains(stderrBuf.String(), "deconstructsigs"), check.Equals, true)
}
