package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/fvcore/schemes"
	"github.com/notargets/fvcore/types"
)

var advectionCase = []byte(`
Title: Step advection
EndTime: 1
DeltaT: 0.25
WriteInterval: 2
Diffusivity: 0.01
Mesh:
  cells: [10, 1, 1]
  lengths: [1, 0.1, 0.1]
  patches: {bottom: empty, top: empty, back: empty, front: empty}
Schemes:
  divSchemes:
    div(phi,T): Gauss upwind
Solvers:
  T: {solver: PBiCGStab, preconditioner: DILU, tolerance: 1.e-10}
Fields:
  T:
    dimensions: "[0 0 0 1 0 0 0]"
    internalField: 0
    boundaryField:
      left: {type: fixedValue, value: 1}
      right: {type: zeroGradient}
  U:
    dimensions: "[0 1 -1 0 0 0 0]"
    internalField: [0.5, 0, 0]
    boundaryField:
      left: {type: fixedValue, value: [0.5, 0, 0]}
      right: {type: zeroGradient}
`)

func writeCase(t *testing.T) (caseFile string) {
	caseFile = filepath.Join(t.TempDir(), "advection.yaml")
	require.NoError(t, os.WriteFile(caseFile, advectionCase, 0o644))
	return
}

func execute(args ...string) (out string, err error) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err = rootCmd.Execute()
	return buf.String(), err
}

func TestRunCase(t *testing.T) {
	var (
		caseFile = writeCase(t)
		outDir   = t.TempDir()
	)
	{ // Serial and decomposed runs give one performance record per step
		c, err := RunCase(context.Background(), caseFile, outDir, 0)
		require.NoError(t, err)
		assert.Len(t, c.Perf, 4)
		assert.FileExists(t, filepath.Join(outDir, "0.5", "T"))
		assert.FileExists(t, filepath.Join(outDir, "1", "T"))
		for _, v := range c.T.Internal() {
			assert.True(t, v >= -1e-9 && v <= 1+1e-9)
		}
		pc, err := RunCase(context.Background(), caseFile, "", 2)
		require.NoError(t, err)
		assert.InDeltaSlice(t, types.Float64s(c.T.Internal()), types.Float64s(pc.T.Internal()), 1e-8)
	}
	{ // The command line writes per processor directories
		_, err := execute("run", "-I", caseFile, "-o", outDir, "-n", "2")
		require.NoError(t, err)
		assert.FileExists(t, filepath.Join(outDir, "processor1", "1", "T"))
	}
	{ // A missing case file prints an example
		out, err := execute("run", "-I", "")
		assert.Error(t, err)
		assert.Contains(t, out, "Example File")
	}
	{ // Unknown profiles are refused
		_, err := execute("run", "-I", caseFile, "-o", "", "-n", "0", "--profile", "disk")
		assert.ErrorContains(t, err, "disk")
	}
	{ // Cases are validated when read
		bad := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(bad, []byte("Title: no mesh\nDeltaT: 1\n"), 0o644))
		_, err := RunCase(context.Background(), bad, "", 0)
		assert.ErrorContains(t, err, "bad.yaml")
	}
}

func TestSchemes(t *testing.T) {
	out, err := execute("schemes")
	require.NoError(t, err)
	assert.Contains(t, out, "divSchemes: Gauss, bounded")
	assert.Contains(t, out, "linearUpwind")
	assert.Contains(t, out, "PBiCGStab")
	assert.Contains(t, out, "preconditioners: DIC, DILU, diagonal, none")
	assert.Contains(t, out, "fixedValue")
}

func TestDecompose(t *testing.T) {
	out, err := execute("decompose", "-I", writeCase(t), "-n", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "processor0: cells = 5")
	assert.Contains(t, out, "processor1: cells = 5")
	assert.Contains(t, out, "procBoundary0to1: faces = 1, neighbour = 1")
}

func TestCheckMesh(t *testing.T) {
	out, err := execute("checkMesh", "-I", writeCase(t))
	require.NoError(t, err)
	assert.Contains(t, out, "advection")
	assert.Contains(t, out, "cells: 10")
	assert.Contains(t, out, "open cells: 0")
	_, err = execute("checkMesh", "-I", "", "-F", "")
	assert.Error(t, err)
}

func TestConvergence(t *testing.T) {
	ctx := context.Background()
	{ // Central and upwind interpolation converge at second and first order
		cs, err := RunConvergence(ctx, "linear", []int{32, 64})
		require.NoError(t, err)
		assert.InDelta(t, 2., cs.Orders()[0], 0.05)
		cs, err = RunConvergence(ctx, "upwind", []int{32, 64})
		require.NoError(t, err)
		assert.InDelta(t, 1., cs.Orders()[0], 0.05)
		assert.Less(t, cs.RMS[1], cs.Max[1])
	}
	{ // The command line writes the entries of every study
		csvFile := filepath.Join(t.TempDir(), "study.csv")
		out, err := execute("convergence", "-s", "linear", "-s", "linearUpwind Gauss linear", "-c", "8,16", "--csvFile", csvFile)
		require.NoError(t, err)
		assert.Contains(t, out, "Scheme = linearUpwind Gauss linear")
		data, err := os.ReadFile(csvFile)
		require.NoError(t, err)
		assert.Equal(t, 5, bytes.Count(data, []byte("\n")))
		assert.True(t, bytes.HasPrefix(data, []byte("scheme,cells,rms,max\n")))
	}
	{ // Unknown schemes are reported
		_, err := RunConvergence(ctx, "bogus", []int{8})
		assert.ErrorIs(t, err, schemes.ErrUnknownScheme)
	}
}
