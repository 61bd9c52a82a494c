package schemes

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/fvcore/mesh"
	"github.com/notargets/fvcore/types"
)

// linearComponent samples fn at the cell and boundary face centres
func linearComponent(t *testing.T, m *mesh.Mesh, fn func(x types.Vector) float64) *Component {
	var (
		cells = make([]float64, m.NCells())
		faces = make([]float64, m.NFaces())
	)
	for i, c := range m.C() {
		cells[i] = fn(c)
	}
	for _, p := range m.Patches() {
		for f := p.Start; f < p.Start+p.Size; f++ {
			faces[f] = fn(m.Cf()[f])
		}
	}
	c, err := ScalarComponent(context.Background(), "T", m, cells, faces)
	require.NoError(t, err)
	return c
}

func plane(x types.Vector) float64 { return 2*x[0] + 3*x[1] + 1 }

func TestSchemeParsing(t *testing.T) {
	{ // Composite specifications
		d, err := Divs.New("bounded Gauss linearUpwind Gauss linear")
		require.NoError(t, err)
		assert.Equal(t, "bounded Gauss linearUpwind Gauss linear", d.Name())
		assert.True(t, d.Bounded())
		assert.True(t, d.Interpolation().NeedsFlux())

		l, err := Laplacians.New("Gauss linear limited corrected 0.33")
		require.NoError(t, err)
		assert.Equal(t, "Gauss linear limited corrected 0.33", l.Name())

		g, err := Grads.New("cellLimited leastSquares 1")
		require.NoError(t, err)
		assert.Equal(t, "cellLimited leastSquares 1", g.Name())
	}
	{ // Syntax problems
		_, err := Divs.New("Gauss")
		assert.ErrorIs(t, err, ErrSyntax)
		_, err = Interpolations.New("linear extra")
		assert.ErrorIs(t, err, ErrSyntax)
		_, err = Interpolations.New("limitedLinear 2")
		assert.ErrorIs(t, err, ErrSyntax)
		_, err = Interpolations.New("limitedLinear one")
		assert.ErrorIs(t, err, ErrSyntax)
		_, err = Grads.New("Gauss upwind")
		assert.ErrorIs(t, err, ErrSyntax)
		_, err = Laplacians.New("Gauss vanLeer corrected")
		assert.ErrorIs(t, err, ErrSyntax)
	}
	{ // Registries
		assert.Panics(t, func() {
			Ddts.Register("Euler", func(*Tokens) (Ddt, error) { return euler{}, nil })
		})
		assert.Equal(t, []string{"Euler", "backward", "steadyState"}, Names(KindDdt))
		assert.Len(t, Kinds(), 6)
		assert.NoError(t, Lookup(KindSnGrad, "corrected"))
		assert.ErrorIs(t, Lookup(KindSnGrad, "bogus"), ErrUnknownScheme)
		assert.Nil(t, Names("bogus"))
	}
}

func TestDictionary(t *testing.T) {
	{ // An unknown name fails at construction and names the term and the alternatives
		d := DefaultDictionary()
		d.Div = Section{"default": "none", "div(phi,U)": "Gauss bogus"}
		_, err := New(d)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnknownScheme)
		var use *UnknownSchemeError
		require.True(t, errors.As(err, &use))
		assert.Equal(t, "bogus", use.Token)
		assert.Equal(t, "div(phi,U)", use.Key)
		assert.Equal(t, KindInterpolation, use.Kind)
		assert.Contains(t, use.Valid, "linear")
		assert.Contains(t, err.Error(), `"bogus" for div(phi,U)`)
		assert.Contains(t, err.Error(), "linearUpwind")
	}
	{ // Exact keys win over the default
		d := DefaultDictionary()
		d.Div["div(phi,T)"] = "Gauss upwind"
		s, err := New(d)
		require.NoError(t, err)
		div, err := s.Div("div(phi,T)")
		require.NoError(t, err)
		assert.Equal(t, "Gauss upwind", div.Name())
		div, err = s.Div("div(phi,U)")
		require.NoError(t, err)
		assert.Equal(t, "Gauss linear", div.Name())
		lap, err := s.Laplacian("laplacian(DT,T)")
		require.NoError(t, err)
		assert.Equal(t, "corrected", lap.SnGrad().Name())
		_, err = s.Ddt("ddt(T)")
		assert.NoError(t, err)
		_, err = s.Grad("grad(T)")
		assert.NoError(t, err)
		_, err = s.SnGrad("snGrad(T)")
		assert.NoError(t, err)
		_, err = s.Interpolation("interpolate(T)")
		assert.NoError(t, err)
	}
	{ // No default
		d := DefaultDictionary()
		d.Div = Section{"default": "none", "div(phi,T)": "Gauss upwind"}
		s, err := New(d)
		require.NoError(t, err)
		_, err = s.Div("div(phi,U)")
		assert.ErrorIs(t, err, ErrNoScheme)
		assert.Contains(t, err.Error(), "div(phi,U)")
		d.Div = nil
		s, err = New(d)
		require.NoError(t, err)
		_, err = s.Div("div(phi,T)")
		assert.ErrorIs(t, err, ErrNoScheme)
	}
}

func TestGradientsExactForLinearFields(t *testing.T) {
	var (
		ctx = context.Background()
	)
	m, err := mesh.NewBlock(3, 2, 1, 3, 2, 1)
	require.NoError(t, err)
	c := linearComponent(t, m, plane)
	for _, spec := range []string{"Gauss linear", "leastSquares", "cellLimited Gauss linear 1", "cellLimited leastSquares 0.5"} {
		g, err := Grads.New(spec)
		require.NoError(t, err)
		grad, err := g.Grad(ctx, nil, c)
		require.NoError(t, err)
		for i, v := range grad {
			assert.InDeltaSlice(t, []float64{2, 3, 0}, v[:], 1e-10, "%s, cell %d", spec, i)
		}
	}
}

func TestCellLimitedClipsOvershoots(t *testing.T) {
	var (
		ctx = context.Background()
	)
	m, err := mesh.NewBlock(4, 1, 1, 4, 1, 1)
	require.NoError(t, err)
	// A step: the Gauss gradient of cell 1 reconstructs above the maximum
	c := linearComponent(t, m, func(x types.Vector) float64 {
		if x[0] > 2 {
			return 1
		}
		return 0
	})
	plain, err := Grads.New("Gauss linear")
	require.NoError(t, err)
	g, err := plain.Grad(ctx, nil, c)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, g[1][0], 1e-12)

	lim, err := Grads.New("cellLimited Gauss linear 1")
	require.NoError(t, err)
	gl, err := lim.Grad(ctx, nil, c)
	require.NoError(t, err)
	// The value of cell 1 is already the minimum of its neighbourhood
	assert.InDelta(t, 0, gl[1][0], 1e-12)
	assert.InDelta(t, 0, gl[2][0], 1e-12)

	off, err := Grads.New("cellLimited Gauss linear 0")
	require.NoError(t, err)
	g0, err := off.Grad(ctx, nil, c)
	require.NoError(t, err)
	assert.Equal(t, g, g0)
}

func TestLimiters(t *testing.T) {
	{
		assert.Equal(t, 1., vanLeerLimiter(1))
		assert.Equal(t, 0., vanLeerLimiter(-1))
		assert.Equal(t, 1.5, vanLeerLimiter(3))
		assert.Equal(t, 0.5, minmodLimiter(0.5))
		assert.Equal(t, 1., minmodLimiter(4))
		assert.Equal(t, 0., minmodLimiter(-4))
		ll := limitedLinearLimiter(1)
		assert.InDelta(t, 0.4, ll(0.1), 1e-15)
		assert.Equal(t, 1., ll(1))
		assert.Equal(t, 0., ll(-1))
	}
	{ // Gradient ratio
		var (
			d    = types.Vector{1, 0, 0}
			grad = types.Vector{1, 0, 0}
		)
		assert.InDelta(t, 1, gradientRatio(1, 0, 1, grad, types.Vector{}, d), 1e-15)
		assert.InDelta(t, 1999, gradientRatio(1, 1, 1, grad, types.Vector{}, d), 1e-12)
		// Reverse flow takes the neighbour gradient
		assert.InDelta(t, -1, gradientRatio(-1, 0, 1, grad, types.Vector{}, d), 1e-15)
		assert.Equal(t, 1., sign(0))
	}
}

func TestInterpolation(t *testing.T) {
	var (
		ctx = context.Background()
	)
	m, err := mesh.NewBlock(4, 1, 1, 4, 1, 1)
	require.NoError(t, err)
	var (
		c     = linearComponent(t, m, func(x types.Vector) float64 { return x[0] })
		owner = m.Owners()
		flux  = make([]float64, m.NFaces())
	)
	for f := range flux {
		flux[f] = 1
	}
	{ // Upwind takes the owner value for positive flux
		s, err := Interpolations.New("upwind")
		require.NoError(t, err)
		fv, err := Interpolate(ctx, nil, s, flux, c)
		require.NoError(t, err)
		for f := 0; f < m.NInternalFaces(); f++ {
			assert.Equal(t, c.Cells[owner[f]], fv[f])
		}
		assert.Panics(t, func() { _, _ = Interpolate(ctx, nil, s, nil, c) })
	}
	{ // Linear, limited and linear upwind schemes reproduce a linear field
		for _, spec := range []string{"linear", "midPoint", "vanLeer", "Minmod", "limitedLinear 1", "linearUpwind Gauss linear"} {
			s, err := Interpolations.New(spec)
			require.NoError(t, err)
			fv, err := Interpolate(ctx, nil, s, flux, c)
			require.NoError(t, err)
			for f := 0; f < m.NFaces(); f++ {
				assert.InDelta(t, m.Cf()[f][0], fv[f], 1e-12, "%s, face %d", spec, f)
			}
		}
	}
	{ // Downwind is upwind reversed
		s, err := Interpolations.New("downwind")
		require.NoError(t, err)
		fv, err := Interpolate(ctx, nil, s, flux, c)
		require.NoError(t, err)
		for f, n := range m.Neighbours() {
			assert.Equal(t, c.Cells[n], fv[f])
		}
	}
}

func TestSnGrad(t *testing.T) {
	var (
		ctx = context.Background()
	)
	m, err := mesh.NewBlock(3, 2, 1, 3, 2, 1)
	require.NoError(t, err)
	c := linearComponent(t, m, plane)
	for _, spec := range []string{"corrected", "uncorrected", "orthogonal", "limited 0.5", "limited corrected 0"} {
		s, err := SnGrads.New(spec)
		require.NoError(t, err)
		sn, err := SnGradFaces(ctx, nil, s, c)
		require.NoError(t, err)
		for f, n := range m.Neighbours() {
			d := m.C()[n].Sub(m.C()[m.Owners()[f]])
			want := 2*d[0] + 3*d[1]
			assert.InDelta(t, want, sn[f], 1e-12, "%s, face %d", spec, f)
		}
		for f := m.NInternalFaces(); f < m.NFaces(); f++ {
			assert.Equal(t, 0., sn[f])
		}
	}
}

func TestCache(t *testing.T) {
	var (
		ctx    = context.Background()
		cache  = NewCache()
		builds int
	)
	m, err := mesh.NewBlock(2, 2, 1, 1, 1, 1)
	require.NoError(t, err)
	build := func() int {
		builds++
		return builds
	}
	assert.Equal(t, 1, Get(cache, m, "k", build))
	assert.Equal(t, 1, Get(cache, m, "k", build))
	assert.Equal(t, 1, cache.Len())
	// A nil cache always builds
	assert.Equal(t, 2, Get[int](nil, m, "k", build))

	require.NoError(t, m.Move(ctx, append([]types.Vector(nil), m.Points()...), 1))
	assert.Equal(t, 0, cache.Len())
	assert.Equal(t, 3, Get(cache, m, "k", build))

	ls := Get(cache, m, leastSquaresKey, func() *LeastSquaresVectors { return NewLeastSquaresVectors(m) })
	assert.Len(t, ls.Own, m.NFaces())
	assert.Equal(t, 2, cache.Len())

	m.Retire()
	assert.Equal(t, 0, cache.Len())
	assert.Panics(t, func() { Get(cache, m, "k", build) })
	cache.Close()
}
