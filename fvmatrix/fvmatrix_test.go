package fvmatrix

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/fvcore/dimensions"
	"github.com/notargets/fvcore/fields"
	"github.com/notargets/fvcore/mesh"
	"github.com/notargets/fvcore/solvers"
	"github.com/notargets/fvcore/types"
)

func lineField(t *testing.T, name string, left fields.Dict) *fields.ScalarField {
	m, err := mesh.NewBlock(4, 1, 1, 4, 1, 1)
	require.NoError(t, err)
	bcs := map[string]fields.Dict{"left": left}
	for _, p := range []string{"right", "bottom", "top", "back", "front"} {
		bcs[p] = fields.Dict{"type": "zeroGradient"}
	}
	T, err := fields.NewUniform(name, m, dimensions.Dimensionless, types.Scalar(0), bcs)
	require.NoError(t, err)
	return T
}

// diffusion assembles minus the unit laplacian on the line, the left end
// held at 1 with a half cell distance
func diffusion(T *fields.ScalarField) *ScalarMatrix {
	m := New(T, dimensions.DimVolume)
	for f := range m.Lower {
		m.Lower[f], m.Upper[f] = -1, -1
	}
	copy(m.Diag, []float64{1, 2, 2, 1})
	m.InternalCoeffs()[0][0] = 2
	m.BoundaryCoeffs()[0][0] = 2
	return m
}

func TestMatrixAlgebra(t *testing.T) {
	T := lineField(t, "T", fields.Dict{"type": "fixedValue", "value": 1.})
	{ // Sums combine every coefficient
		a, b := diffusion(T), diffusion(T)
		b.FaceFluxCorrection = make([]types.Scalar, T.Mesh().NFaces())
		b.FaceFluxCorrection[0] = 3
		require.NoError(t, a.Add(b))
		assert.Equal(t, []float64{2, 4, 4, 2}, a.Diag)
		assert.Equal(t, []float64{-2, -2, -2}, a.Lower)
		assert.Equal(t, types.Scalar(4), a.InternalCoeffs()[0][0])
		assert.Equal(t, types.Scalar(3), a.FaceFluxCorrection[0])
		require.NoError(t, a.Sub(b))
		assert.Equal(t, []float64{1, 2, 2, 1}, a.Diag)
		assert.Equal(t, types.Scalar(0), a.FaceFluxCorrection[0])
		a.Negate()
		assert.Equal(t, []float64{1, 1, 1}, a.Upper)
		assert.Equal(t, types.Scalar(-2), a.BoundaryCoeffs()[0][0])
		a.Scale(-2)
		assert.Equal(t, []float64{2, 4, 4, 2}, a.Diag)
	}
	{ // Operands must solve for the same field in the same dimensions
		S := lineField(t, "S", fields.Dict{"type": "zeroGradient"})
		err := diffusion(T).Add(diffusion(S))
		assert.ErrorIs(t, err, ErrIncompatible)
		assert.Contains(t, err.Error(), "fvMatrix(S)")
		err = diffusion(T).Sub(New(T, dimensions.DimLength))
		assert.ErrorIs(t, err, dimensions.ErrMismatch)
	}
	{ // Explicit sources move to the right hand side per unit volume
		m := diffusion(T)
		su := fields.NewCalculated("su", T.Mesh(), dimensions.Dimensionless, []types.Scalar{2, 2, 2, 2})
		require.NoError(t, m.AddSource(su))
		assert.Equal(t, []types.Scalar{2, 2, 2, 2}, m.Source)
		bad := fields.NewCalculated("bad", T.Mesh(), dimensions.DimTime, []types.Scalar{1, 1, 1, 1})
		assert.ErrorIs(t, m.AddSource(bad), dimensions.ErrMismatch)
	}
	{ // Relaxation factors outside (0, 1] are programming errors
		m := diffusion(T)
		assert.Panics(t, func() { m.Relax(0) })
		assert.Panics(t, func() { m.Relax(1.5) })
	}
}

func TestMatrixSolve(t *testing.T) {
	var (
		ctx = context.Background()
		T   = lineField(t, "T", fields.Dict{"type": "fixedValue", "value": 1.})
		m   = diffusion(T)
	)
	perf, err := m.Solve(ctx, solvers.Controls{Solver: "PCG", Preconditioner: "DIC", Tolerance: 1e-12})
	require.NoError(t, err)
	assert.True(t, perf.Converged)
	assert.Equal(t, "T", perf.Field)
	assert.Equal(t, "DICPCG", perf.Solver)
	for _, v := range T.Internal() {
		assert.InDelta(t, 1, float64(v), 1e-10)
	}
	{ // Residual and the explicit operator vanish at the solution
		res, err := m.Residual(ctx)
		require.NoError(t, err)
		for _, r := range res {
			assert.InDelta(t, 0, float64(r), 1e-10)
		}
		out, err := m.Apply(ctx)
		require.NoError(t, err)
		for _, r := range out {
			assert.InDelta(t, 0, float64(r), 1e-10)
		}
	}
	{ // A psi balances H at the solution
		A, err := m.A(ctx)
		require.NoError(t, err)
		assert.Equal(t, []types.Scalar{3, 2, 2, 1}, A.Internal())
		H, err := m.H(ctx)
		require.NoError(t, err)
		for i, h := range H.Internal() {
			assert.InDelta(t, float64(A.Internal()[i]*T.Internal()[i]), float64(h), 1e-10)
		}
		H1, err := m.H1(ctx)
		require.NoError(t, err)
		assert.Equal(t, []types.Scalar{1, 2, 2, 1}, H1.Internal())
	}
	{ // The face fluxes of a uniform solution vanish, the boundary included
		flux, err := m.Flux(ctx)
		require.NoError(t, err)
		assert.True(t, flux.Oriented)
		for _, v := range flux.Values() {
			assert.InDelta(t, 0, float64(v), 1e-10)
		}
	}
	{ // Export with the boundary contributions on the diagonal
		csr, err := m.CSR(0)
		require.NoError(t, err)
		assert.Equal(t, 3., csr.At(0, 0))
		assert.Equal(t, -1., csr.At(0, 1))
		assert.Equal(t, -1., csr.At(1, 0))
		assert.Equal(t, 0., csr.At(0, 2))
	}
}

func TestRelaxPreservesResidual(t *testing.T) {
	var (
		ctx = context.Background()
		T   = lineField(t, "T", fields.Dict{"type": "fixedValue", "value": 1.})
		m   = diffusion(T)
	)
	copy(T.Ref(), []types.Scalar{0.5, 1, 2, -1})
	m.Diag[1] = 0.5
	before, err := m.Residual(ctx)
	require.NoError(t, err)
	m.Relax(0.8)
	after, err := m.Residual(ctx)
	require.NoError(t, err)
	assert.InDeltaSlice(t, types.Float64s(before), types.Float64s(after), 1e-12)
	sys, _ := m.System(0)
	sumOff := make([]float64, sys.NRows())
	for f, l := range sys.LowerAddr {
		sumOff[l] += math.Abs(sys.Upper[f])
		sumOff[sys.UpperAddr[f]] += math.Abs(sys.Lower[f])
	}
	for i, d := range sys.Diag {
		assert.GreaterOrEqual(t, d, sumOff[i]/0.8-1e-12, "row %d", i)
	}
	// Row 1 was not dominant and grew, its growth went to the source
	assert.InDelta(t, 2/0.8, sys.Diag[1], 1e-12)
}

func TestReference(t *testing.T) {
	ctx := context.Background()
	{ // A fixed value pins the solution
		T := lineField(t, "T", fields.Dict{"type": "fixedValue", "value": 1.})
		need, err := New(T, dimensions.DimVolume).NeedsReference(ctx)
		require.NoError(t, err)
		assert.False(t, need)
	}
	{ // Without one, a reference cell does
		T := lineField(t, "T", fields.Dict{"type": "zeroGradient"})
		m := diffusion(T)
		m.InternalCoeffs()[0][0], m.BoundaryCoeffs()[0][0] = 0, 0
		need, err := m.NeedsReference(ctx)
		require.NoError(t, err)
		assert.True(t, need)
		m.SetReference(-1, 5)
		assert.Equal(t, []float64{1, 2, 2, 1}, m.Diag)
		m.SetReference(0, 5)
		assert.Equal(t, []float64{2, 2, 2, 1}, m.Diag)
		assert.Equal(t, types.Scalar(5), m.Source[0])
		_, err = m.Solve(ctx, solvers.Controls{Solver: "PCG", Preconditioner: "DIC", Tolerance: 1e-12})
		require.NoError(t, err)
		for _, v := range T.Internal() {
			assert.InDelta(t, 5, float64(v), 1e-9)
		}
	}
}
