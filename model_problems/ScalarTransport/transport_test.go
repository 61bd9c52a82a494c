package ScalarTransport

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/fvcore/InputParameters"
	"github.com/notargets/fvcore/fields"
	"github.com/notargets/fvcore/solvers"
	"github.com/notargets/fvcore/types"
)

var wallCase = []byte(`
Title: Diffusion between two walls
StartTime: 0
EndTime: 200
DeltaT: 10
WriteInterval: 10
Diffusivity: 0.1
Mesh:
  cells: [10, 1, 1]
  lengths: [1, 0.1, 0.1]
  patches: {bottom: empty, top: empty, back: empty, front: empty}
Schemes:
  divSchemes:
    div(phi,T): Gauss upwind
Solvers:
  T: {solver: PCG, preconditioner: DIC, tolerance: 1.e-12}
Fields:
  T:
    dimensions: "[0 0 0 1 0 0 0]"
    internalField: 0
    boundaryField:
      left: {type: fixedValue, value: 0}
      right: {type: fixedValue, value: 1}
  U:
    dimensions: "[0 1 -1 0 0 0 0]"
    internalField: [0, 0, 0]
    boundaryField:
      left: {type: fixedValue, value: [0, 0, 0]}
      right: {type: fixedValue, value: [0, 0, 0]}
`)

func TestWallDiffusion(t *testing.T) {
	var (
		ctx = context.Background()
		cp  InputParameters.CaseParameters
	)
	require.NoError(t, cp.Parse(wallCase))
	m, err := cp.NewMesh("walls")
	require.NoError(t, err)
	dir := t.TempDir()
	c := NewScalarTransport(&cp, m, dir)
	require.NoError(t, c.Run(ctx))
	require.Len(t, c.Perf, 20)
	assert.Equal(t, "T", c.Perf[0].Field)
	// Steady state is the linear profile between the walls
	for i, v := range c.T.Internal() {
		assert.InDelta(t, (float64(i)+0.5)/10, float64(v), 1e-8)
	}
	{ // The last step is written
		back, err := fields.ReadVolFieldFile[types.Scalar](filepath.Join(dir, "200", "T"), m)
		require.NoError(t, err)
		assert.Equal(t, c.T.Internal(), back.Internal())
		assert.Equal(t, c.T.Dimensions(), back.Dimensions())
	}
	{ // Two subdomains give the serial answer
		cp.Decomposition.NumPartitions = 2
		pm, err := cp.NewMesh("walls")
		require.NoError(t, err)
		pc := NewScalarTransport(&cp, pm, "")
		require.NoError(t, pc.Run(ctx))
		assert.Len(t, pc.Perf, 20)
		assert.InDeltaSlice(t, types.Float64s(c.T.Internal()), types.Float64s(pc.T.Internal()), 1e-8)
	}
}

func TestAdvectionStaysBounded(t *testing.T) {
	var (
		ctx = context.Background()
		cp  InputParameters.CaseParameters
	)
	require.NoError(t, cp.Parse(wallCase))
	cp.EndTime, cp.DeltaT = 1, 0.05
	cp.Relaxation = map[string]float64{"T": 0.9}
	cp.NOuter = 2
	cp.Fields["U"] = InputParameters.FieldParameters{
		Dimensions:    cp.Fields["U"].Dimensions,
		InternalField: []any{1., 0., 0.},
		BoundaryField: map[string]fields.Dict{
			"left":  {"type": "fixedValue", "value": []any{1., 0., 0.}},
			"right": {"type": "zeroGradient"},
		},
	}
	cp.Solvers["T"] = solvers.Controls{Solver: "PBiCGStab", Preconditioner: "DILU", Tolerance: 1e-12}
	m, err := cp.NewMesh("channel")
	require.NoError(t, err)
	c := NewScalarTransport(&cp, m, "")
	require.NoError(t, c.Run(ctx))
	assert.Len(t, c.Perf, 20)
	for i, v := range c.T.Internal() {
		assert.True(t, v >= -1e-10 && v <= 1+1e-10, "cell %d = %g", i, v)
	}
}
