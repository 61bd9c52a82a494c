package InputParameters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/fvcore/dimensions"
	"github.com/notargets/fvcore/mesh"
	"github.com/notargets/fvcore/schemes"
	"github.com/notargets/fvcore/types"
)

var sample = []byte(`
Title: Test Case
EndTime: 4.
DeltaT: 0.5
Diffusivity: 0.01
Mesh:
  cells: [4, 2, 1]
  lengths: [2, 1, 0.1]
  patches:
    back: empty
    front: empty
    bottom: wall
Schemes:
  divSchemes:
    div(phi,T): bounded Gauss limitedLinear 1
Solvers:
  T:
    solver: PBiCGStab
    preconditioner: DILU
    tolerance: 1.e-8
    relTol: 0.1
RelaxationFactors:
  T: 0.7
Decomposition:
  numberOfSubdomains: 2
Fields:
  T:
    dimensions: "[0 0 0 1 0 0 0]"
    internalField: 300
    boundaryField:
      left: {type: fixedValue, value: 350}
      right: {type: zeroGradient}
      bottom: {type: zeroGradient}
      top: {type: mixed, refValue: 300, refGradient: 0, valueFraction: 0.5}
`)

func TestCaseParameters(t *testing.T) {
	var input CaseParameters
	require.NoError(t, input.Parse(sample))
	input.Print()
	assert.Equal(t, "Test Case", input.Title)
	assert.Equal(t, 4., input.EndTime)
	{ // Scheme entries add to the defaults
		assert.Equal(t, "bounded Gauss limitedLinear 1", input.Schemes.Div["div(phi,T)"])
		assert.Equal(t, "Gauss linear", input.Schemes.Div["default"])
		assert.Equal(t, "Euler", input.Schemes.Ddt["default"])
	}
	{ // Solver controls and relaxation by field
		c, err := input.SolverControls("T")
		require.NoError(t, err)
		assert.Equal(t, "PBiCGStab", c.Solver)
		assert.Equal(t, 1e-8, c.Tolerance)
		assert.Equal(t, 0.1, c.RelTol)
		_, err = input.SolverControls("p")
		assert.ErrorIs(t, err, ErrMissing)
		assert.Equal(t, 0.7, input.RelaxationFactor("T"))
		assert.Equal(t, 1., input.RelaxationFactor("p"))
	}
	{ // Decomposition keeps its defaults apart from the subdomains
		assert.Equal(t, 2, input.Decomposition.NumPartitions)
		assert.Equal(t, "simple", input.Decomposition.Method)
	}
	{ // The block mesh with its patch types and clock
		m, err := input.NewMesh("case")
		require.NoError(t, err)
		assert.Equal(t, 8, m.NCells())
		bottom, ok := m.FindPatch("bottom")
		require.True(t, ok)
		assert.Equal(t, mesh.KindWall, bottom.Kind)
		front, _ := m.FindPatch("front")
		assert.Equal(t, mesh.KindEmpty, front.Kind)
		assert.Equal(t, 0.5, m.Time().DeltaT)

		T, err := NewField[types.Scalar](&input, "T", m, nil)
		require.NoError(t, err)
		assert.Equal(t, dimensions.Set{dimensions.Temperature: 1}, T.Dimensions())
		assert.Equal(t, types.Scalar(300), T.Internal()[5])
		top, _ := T.Patch("top")
		assert.Equal(t, "mixed", top.Type())

		_, err = NewField[types.Vector](&input, "U", m, nil)
		assert.ErrorIs(t, err, ErrMissing)
	}
}

func TestCaseErrors(t *testing.T) {
	{ // A time step is required
		var input CaseParameters
		err := input.Parse([]byte("Title: no step\nMesh: {cells: [1, 1, 1], lengths: [1, 1, 1]}\n"))
		assert.ErrorIs(t, err, ErrMissing)
	}
	{ // Schemes are checked on reading
		var input CaseParameters
		err := input.Parse([]byte(`
DeltaT: 1
Mesh: {cells: [1, 1, 1], lengths: [1, 1, 1]}
Schemes:
  divSchemes:
    div(phi,U): Gauss bogus
`))
		assert.ErrorIs(t, err, schemes.ErrUnknownScheme)
		assert.Contains(t, err.Error(), "bogus")
	}
	{ // Relaxation factors must under-relax
		var input CaseParameters
		err := input.Parse([]byte(`
DeltaT: 1
Mesh: {cells: [1, 1, 1], lengths: [1, 1, 1]}
RelaxationFactors: {p: 1.5}
`))
		assert.Error(t, err)
	}
	{ // Block meshes need every extent
		var input CaseParameters
		err := input.Parse([]byte("DeltaT: 1\nMesh: {cells: [4, 1, 0], lengths: [1, 1, 1]}\n"))
		assert.ErrorIs(t, err, ErrMissing)
	}
}
