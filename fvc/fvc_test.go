package fvc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/fvcore/dimensions"
	"github.com/notargets/fvcore/fields"
	"github.com/notargets/fvcore/mesh"
	"github.com/notargets/fvcore/schemes"
	"github.com/notargets/fvcore/types"
)

// slab is a block of unit cells with empty front and back
func slab(t *testing.T, nx, ny int) *mesh.Mesh {
	m, err := mesh.Block{
		N:     [3]int{nx, ny, 1},
		L:     [3]float64{float64(nx), float64(ny), 1},
		Kinds: map[string]mesh.Kind{"back": mesh.KindEmpty, "front": mesh.KindEmpty},
	}.Build(mesh.Options{})
	require.NoError(t, err)
	return m
}

// sampled evaluates fn at the cell centres, and fixes the boundary values
// to fn at the face centres
func sampled[T types.Value[T]](t *testing.T, m *mesh.Mesh, name string, dims dimensions.Set,
	fn func(x types.Vector) T) *fields.VolField[T] {
	cells := make([]T, m.NCells())
	for i, c := range m.C() {
		cells[i] = fn(c)
	}
	bcs := make(map[string]fields.Dict)
	for _, p := range m.Patches() {
		if p.Kind == mesh.KindEmpty {
			continue
		}
		vals := make([]T, p.Size)
		for i := range vals {
			vals[i] = fn(m.Cf()[p.Start+i])
		}
		bcs[p.Name] = fields.Dict{"type": "fixedValue", "value": fields.EncodeValues(vals)}
	}
	vf, err := fields.New(name, m, dims, cells, bcs)
	require.NoError(t, err)
	return vf
}

func zeroGradient(m *mesh.Mesh) map[string]fields.Dict {
	bcs := make(map[string]fields.Dict)
	for _, p := range m.Patches() {
		if p.Kind != mesh.KindEmpty {
			bcs[p.Name] = fields.Dict{"type": "zeroGradient"}
		}
	}
	return bcs
}

func newSchemes(t *testing.T, edit func(d *schemes.Dictionary)) *schemes.Schemes {
	d := schemes.DefaultDictionary()
	if edit != nil {
		edit(&d)
	}
	sc, err := schemes.New(d)
	require.NoError(t, err)
	return sc
}

func plane(x types.Vector) types.Scalar { return types.Scalar(2*x[0] + 3*x[1] + 1) }

func TestGrad(t *testing.T) {
	var (
		ctx = context.Background()
		m   = slab(t, 4, 3)
		T   = sampled(t, m, "T", dimensions.Dimensionless, plane)
	)
	for _, spec := range []string{"Gauss linear", "leastSquares", "cellLimited Gauss linear 1", "cellLimited leastSquares 0.5"} {
		sc := newSchemes(t, func(d *schemes.Dictionary) { d.Grad = schemes.Section{"grad(T)": spec} })
		g, err := GradScalar(ctx, sc, T)
		require.NoError(t, err, spec)
		assert.Equal(t, "grad(T)", g.Name())
		assert.Equal(t, dimensions.DimLength.Pow(-1), g.Dimensions())
		for _, v := range g.Internal() {
			assert.InDeltaSlice(t, []float64{2, 3, 0}, v[:], 1e-10, spec)
		}
		// Boundary gradients take the normal part from the fixed values
		for _, v := range g.BoundaryValues(0) {
			assert.InDeltaSlice(t, []float64{2, 3, 0}, v[:], 1e-10, spec)
		}
	}
	{ // Rows of the gradient of a vector are the derivatives along each axis
		U := sampled(t, m, "U", dimensions.DimVelocity, func(x types.Vector) types.Vector { return types.Vector{x[0], 2 * x[1], 0} })
		g, err := GradVector(ctx, newSchemes(t, nil), U)
		require.NoError(t, err)
		for _, v := range g.Internal() {
			assert.InDeltaSlice(t, []float64{1, 0, 0, 0, 2, 0, 0, 0, 0}, v[:], 1e-10)
		}
	}
	{ // Unconfigured terms fail by key
		sc := newSchemes(t, func(d *schemes.Dictionary) { d.Grad = schemes.Section{"grad(p)": "Gauss linear"} })
		_, err := GradScalar(ctx, sc, T)
		assert.ErrorIs(t, err, schemes.ErrNoScheme)
		assert.Contains(t, err.Error(), "grad(T)")
	}
}

func TestUpwindLine(t *testing.T) {
	var (
		ctx  = context.Background()
		m    = slab(t, 10, 1)
		vals = make([]types.Scalar, m.NCells())
		phi  = make([]float64, m.NFaces())
	)
	for i := range vals {
		vals[i] = types.Scalar((i + 1) * (i + 1))
	}
	for f, s := range m.Sf() {
		phi[f] = s[0]
	}
	bcs := map[string]fields.Dict{
		"left":   {"type": "fixedValue", "value": 0.},
		"right":  {"type": "zeroGradient"},
		"bottom": {"type": "zeroGradient"},
		"top":    {"type": "zeroGradient"},
	}
	f, err := fields.New("f", m, dimensions.Dimensionless, vals, bcs)
	require.NoError(t, err)
	flux := fields.NewFlux("phi", m, dimensions.DimVolFlux, phi)
	sc := newSchemes(t, func(d *schemes.Dictionary) { d.Div = schemes.Section{"div(phi,f)": "Gauss upwind"} })
	div, err := Div(ctx, sc, flux, f)
	require.NoError(t, err)
	assert.Equal(t, "div(phi,f)", div.Name())
	assert.Equal(t, dimensions.DimTime.Pow(-1), div.Dimensions())
	for i, v := range div.Internal() {
		prev := 0.
		if i > 0 {
			prev = float64(vals[i-1])
		}
		assert.InDelta(t, float64(vals[i])-prev, float64(v), 1e-12, "cell %d", i)
	}
	{ // bounded removes div(phi)*f, zero for this divergence free flux
		sc := newSchemes(t, func(d *schemes.Dictionary) { d.Div = schemes.Section{"div(phi,f)": "bounded Gauss upwind"} })
		bdiv, err := Div(ctx, sc, flux, f)
		require.NoError(t, err)
		assert.InDeltaSlice(t, types.Float64s(div.Internal()), types.Float64s(bdiv.Internal()), 1e-12)
	}
	{ // Unit flux carrying the cell index, every interior cell sees f[i] - f[i-1]
		var (
			index = make([]types.Scalar, m.NCells())
			unit  = make([]float64, m.NFaces())
		)
		for i := range index {
			index[i] = types.Scalar(i)
		}
		for face := range unit {
			if face < m.NInternalFaces() {
				unit[face] = 1
			} else {
				unit[face] = m.Sf()[face][0]
			}
		}
		fi, err := fields.New("f", m, dimensions.Dimensionless, index, bcs)
		require.NoError(t, err)
		uflux := fields.NewFlux("phi", m, dimensions.DimVolFlux, unit)
		div, err := Div(ctx, sc, uflux, fi)
		require.NoError(t, err)
		for i := 1; i < m.NCells()-1; i++ {
			want := float64(index[i]-index[i-1]) * 1 / m.V()[i]
			assert.InDelta(t, want, float64(div.Internal()[i]), 1e-12, "cell %d", i)
		}
	}
	{ // The flux integrates to zero in every cell
		dphi, err := DivFlux(ctx, flux)
		require.NoError(t, err)
		for _, v := range dphi.Internal() {
			assert.InDelta(t, 0, float64(v), 1e-12)
		}
	}
}

func TestFaceOperators(t *testing.T) {
	var (
		ctx = context.Background()
		m   = slab(t, 4, 1)
		sc  = newSchemes(t, nil)
		T   = sampled(t, m, "T", dimensions.Dimensionless, func(x types.Vector) types.Scalar { return types.Scalar(x[0] * x[0]) })
	)
	{ // Face normal gradients on internal faces and from the boundary condition
		sn, err := SnGrad(ctx, sc, T)
		require.NoError(t, err)
		assert.True(t, sn.Oriented)
		// Internal faces at x = 1, 2, 3 between centres 0.5 apart on either side
		assert.InDeltaSlice(t, []float64{2, 4, 6}, types.Float64s(sn.Internal()), 1e-12)
		left, _ := m.FindPatch("left")
		// Outward from cell 0 at x = 0.5 to the face at x = 0, value 0
		assert.InDelta(t, (0-0.25)*2, float64(sn.Patch(left.Index())[0]), 1e-12)
	}
	{ // Linear interpolation on internal faces, boundary values elsewhere
		fv, err := Interpolate(ctx, sc, T, nil)
		require.NoError(t, err)
		assert.False(t, fv.Oriented)
		assert.InDeltaSlice(t, []float64{1.25, 4.25, 9.25}, types.Float64s(fv.Internal()), 1e-12)
		right, _ := m.FindPatch("right")
		assert.InDelta(t, 16, float64(fv.Patch(right.Index())[0]), 1e-12)
	}
	{ // Flow dependent interpolation needs the flux
		sc := newSchemes(t, func(d *schemes.Dictionary) { d.Interpolation = schemes.Section{"default": "upwind"} })
		_, err := Interpolate(ctx, sc, T, nil)
		assert.ErrorIs(t, err, ErrNeedsFlux)
	}
	{ // The laplacian of x^2 away from the boundary
		gamma := fields.NewSurfaceFieldFrom("gamma", m, dimensions.DimKinVisc,
			make([]types.Scalar, m.NFaces()), false)
		for f := range gamma.Values() {
			gamma.Values()[f] = 3
		}
		lap, err := Laplacian(ctx, sc, gamma, T)
		require.NoError(t, err)
		assert.Equal(t, "laplacian(gamma,T)", lap.Name())
		assert.Equal(t, dimensions.DimTime.Pow(-1), lap.Dimensions())
		assert.InDelta(t, 6, float64(lap.Internal()[1]), 1e-12)
		assert.InDelta(t, 6, float64(lap.Internal()[2]), 1e-12)

		nu, err := fields.NewUniform("gamma", m, dimensions.DimKinVisc, types.Scalar(3), zeroGradient(m))
		require.NoError(t, err)
		lapVol, err := LaplacianVol(ctx, sc, nu, T)
		require.NoError(t, err)
		assert.InDeltaSlice(t, types.Float64s(lap.Internal()), types.Float64s(lapVol.Internal()), 1e-12)
	}
	{ // Sums over the faces of each cell
		ones := fields.NewSurfaceFieldFrom("one", m, dimensions.Dimensionless,
			make([]types.Scalar, m.NFaces()), false)
		for f := range ones.Values() {
			ones.Values()[f] = 1
		}
		sum, err := SurfaceSum(ctx, ones)
		require.NoError(t, err)
		// Empty faces take no part
		assert.Equal(t, []types.Scalar{4, 4, 4, 4}, sum.Internal())
		integ, err := SurfaceIntegrate(ctx, ones)
		require.NoError(t, err)
		// Neighbours lose the internal face values their owners gain
		assert.Equal(t, []types.Scalar{4, 2, 2, 2}, integ.Internal())
	}
}

func TestDdt(t *testing.T) {
	var (
		ctx      = context.Background()
		m        = slab(t, 2, 1)
		bcs      = zeroGradient(m)
		euler    = newSchemes(t, nil)
		backward = newSchemes(t, func(d *schemes.Dictionary) { d.Ddt = schemes.Section{"default": "backward"} })
	)
	T, err := fields.NewUniform("T", m, dimensions.DimTemperature, types.Scalar(0), bcs)
	require.NoError(t, err)
	rho, err := fields.NewUniform("rho", m, dimensions.DimDensity, types.Scalar(2), bcs)
	require.NoError(t, err)
	rate := func(sc *schemes.Schemes) []float64 {
		d, err := Ddt(ctx, sc, T)
		require.NoError(t, err)
		assert.Equal(t, dimensions.DimTemperature.Div(dimensions.DimTime), d.Dimensions())
		return types.Float64s(d.Internal())
	}
	{ // The first step has no history and no rate of change
		assert.Equal(t, []float64{0, 0}, rate(euler))
	}
	m.Time().Advance()
	T.Assign([]types.Scalar{1, 1})
	{ // backward starts as Euler
		assert.Equal(t, []float64{1, 1}, rate(euler))
		assert.Equal(t, []float64{1, 1}, rate(backward))
		d, err := DdtRho(ctx, euler, rho, T)
		require.NoError(t, err)
		assert.Equal(t, []types.Scalar{2, 2}, d.Internal())
	}
	m.Time().Advance()
	T.Assign([]types.Scalar{3, 3})
	{ // and uses both old levels once they exist
		assert.Equal(t, []float64{2, 2}, rate(euler))
		assert.InDeltaSlice(t, []float64{1.5*3 - 2*1, 1.5*3 - 2*1}, rate(backward), 1e-12)
	}
}

func TestMeshFluxes(t *testing.T) {
	var (
		ctx = context.Background()
		m   = slab(t, 2, 1)
	)
	phi := fields.NewFlux("phi", m, dimensions.DimVolFlux, make([]float64, m.NFaces()))
	{ // Static meshes have no motion flux
		for _, v := range MeshPhi(m).Values() {
			assert.Equal(t, types.Scalar(0), v)
		}
		require.NoError(t, MakeRelative(phi))
		assert.Equal(t, types.Scalar(0), phi.Values()[0])
	}
	pts := make([]types.Vector, m.NPoints())
	for i, p := range m.Points() {
		pts[i] = types.Vector{1.1 * p[0], p[1], p[2]}
	}
	require.NoError(t, m.Move(ctx, pts, 1))
	{ // The swept volumes account for the growth of every cell
		div, err := DivFlux(ctx, MeshPhi(m))
		require.NoError(t, err)
		for i, v := range div.Internal() {
			assert.InDelta(t, m.V()[i]-m.V0()[i], float64(v)*m.V()[i], 1e-12)
		}
	}
	{ // Relative fluxes remove the motion, absolute ones restore it
		require.NoError(t, MakeRelative(phi))
		assert.InDelta(t, -0.1, float64(phi.Values()[0]), 1e-12)
		require.NoError(t, MakeAbsolute(phi))
		assert.InDelta(t, 0, float64(phi.Values()[0]), 1e-12)
		bad := fields.NewFlux("U", m, dimensions.DimVelocity, make([]float64, m.NFaces()))
		assert.ErrorIs(t, MakeRelative(bad), dimensions.ErrMismatch)
	}
	{ // Volume fluxes of a uniform velocity
		U := sampled(t, m, "U", dimensions.DimVelocity, func(types.Vector) types.Vector { return types.Vector{1, 0, 0} })
		flux, err := Flux(ctx, U)
		require.NoError(t, err)
		assert.Equal(t, dimensions.DimVolFlux, flux.Dimensions())
		for f, v := range flux.Values() {
			assert.InDelta(t, m.Sf()[f][0], float64(v), 1e-12)
		}
	}
}
