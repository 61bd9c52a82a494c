package schemes

import (
	"context"
	"fmt"

	"github.com/notargets/fvcore/mesh"
	"github.com/notargets/fvcore/types"
)

// Grad computes the cell gradient of one field component
type Grad interface {
	Name() string
	Grad(ctx context.Context, cache *Cache, c *Component) ([]types.Vector, error)
}

var Grads = NewRegistry[Grad](KindGrad)

func init() {
	Grads.Register("Gauss", func(ts *Tokens) (Grad, error) {
		interp, err := Interpolations.Parse(ts)
		if err != nil {
			return nil, err
		}
		if interp.NeedsFlux() {
			return nil, fmt.Errorf("%w: Gauss gradient cannot use the flux dependent %s interpolation in %q",
				ErrSyntax, interp.Name(), ts)
		}
		return gauss{interp: interp}, nil
	})
	Grads.Register("leastSquares", func(*Tokens) (Grad, error) { return leastSquares{}, nil })
	Grads.Register("cellLimited", func(ts *Tokens) (Grad, error) {
		g, err := Grads.Parse(ts)
		if err != nil {
			return nil, err
		}
		k, err := ts.Coefficient("cellLimited")
		if err != nil {
			return nil, err
		}
		return cellLimited{grad: g, k: k}, nil
	})
}

// gauss sums the face values times the face area vectors over each cell
type gauss struct {
	interp Interpolation
}

func (g gauss) Name() string { return "Gauss " + g.interp.Name() }

func (g gauss) Grad(ctx context.Context, cache *Cache, c *Component) (grad []types.Vector, err error) {
	var (
		m  = c.Mesh
		fv []float64
	)
	if fv, err = Interpolate(ctx, cache, g.interp, nil, c); err != nil {
		return
	}
	return GaussSum(m, fv), nil
}

// GaussSum returns sum(Sf*fv)/V per cell, fv runs over all faces
func GaussSum(m *mesh.Mesh, fv []float64) (grad []types.Vector) {
	var (
		owner = m.Owners()
		sf    = m.Sf()
		V     = m.V()
	)
	grad = make([]types.Vector, m.NCells())
	for f, n := range m.Neighbours() {
		s := sf[f].Scale(fv[f])
		grad[owner[f]] = grad[owner[f]].Add(s)
		grad[n] = grad[n].Sub(s)
	}
	for _, p := range m.Patches() {
		if Skip(p) {
			continue
		}
		for f := p.Start; f < p.Start+p.Size; f++ {
			grad[owner[f]] = grad[owner[f]].Add(sf[f].Scale(fv[f]))
		}
	}
	for i := range grad {
		grad[i] = grad[i].Scale(1 / V[i])
	}
	return
}

// LeastSquaresVectors weight the differences to the face neighbours of a
// cell. Own applies to the owner of every face, Nei to the neighbour of
// internal faces.
type LeastSquaresVectors struct {
	Own, Nei []types.Vector
}

const leastSquaresKey = "leastSquaresVectors"

// NewLeastSquaresVectors inverts the per cell sum of d*d/|d|^2. Directions
// without any face contribution, the empty direction of a 2-D case, get a
// unit diagonal so the inverse exists.
func NewLeastSquaresVectors(m *mesh.Mesh) (ls *LeastSquaresVectors) {
	var (
		owner = m.Owners()
		nbr   = m.Neighbours()
		delta = m.Delta()
		dd    = make([]types.Tensor, m.NCells())
		nf    = m.NFaces()
	)
	add := func(cell int, d types.Vector) {
		dd[cell] = dd[cell].Add(d.OuterV(d).Scale(1 / d.MagSqr()))
	}
	for f, n := range nbr {
		add(owner[f], delta[f])
		add(n, delta[f])
	}
	for _, p := range m.Patches() {
		if Skip(p) {
			continue
		}
		for f := p.Start; f < p.Start+p.Size; f++ {
			add(owner[f], delta[f])
		}
	}
	inv := make([]types.Tensor, len(dd))
	for c, t := range dd {
		trace := t[0] + t[4] + t[8]
		for k := 0; k < 3; k++ {
			if t[4*k] <= types.Small*trace {
				t[4*k] = 1
			}
		}
		var err error
		if inv[c], err = t.Inv(); err != nil {
			panic(fmt.Errorf("least squares vectors of cell %d: %w", c, err))
		}
	}
	ls = &LeastSquaresVectors{Own: make([]types.Vector, nf), Nei: make([]types.Vector, nf)}
	for f := 0; f < nf; f++ {
		d := delta[f]
		ls.Own[f] = inv[owner[f]].Dot(d).Scale(1 / d.MagSqr())
		if f < len(nbr) {
			ls.Nei[f] = inv[nbr[f]].Dot(d.Scale(-1)).Scale(1 / d.MagSqr())
		}
	}
	return
}

type leastSquares struct{}

func (leastSquares) Name() string { return "leastSquares" }

func (leastSquares) Grad(_ context.Context, cache *Cache, c *Component) (grad []types.Vector, err error) {
	var (
		m     = c.Mesh
		owner = m.Owners()
		ls    = Get(cache, m, leastSquaresKey, func() *LeastSquaresVectors { return NewLeastSquaresVectors(m) })
	)
	grad = make([]types.Vector, m.NCells())
	for f, n := range m.Neighbours() {
		P, N := owner[f], n
		dv := c.Cells[N] - c.Cells[P]
		grad[P] = grad[P].Add(ls.Own[f].Scale(dv))
		grad[N] = grad[N].Add(ls.Nei[f].Scale(-dv))
	}
	for _, p := range m.Patches() {
		if Skip(p) {
			continue
		}
		for f := p.Start; f < p.Start+p.Size; f++ {
			P := owner[f]
			other := c.Faces[f]
			if p.Coupled() {
				other = c.Nbr[f]
			}
			grad[P] = grad[P].Add(ls.Own[f].Scale(other - c.Cells[P]))
		}
	}
	return
}

// cellLimited scales the gradient of each cell so that the values it
// reconstructs at the faces stay within the range of the neighbouring cell
// values, widened by (1/k - 1) times that range
type cellLimited struct {
	grad Grad
	k    float64
}

func (g cellLimited) Name() string { return fmt.Sprintf("cellLimited %s %g", g.grad.Name(), g.k) }

func (g cellLimited) Grad(ctx context.Context, cache *Cache, c *Component) (grad []types.Vector, err error) {
	if grad, err = g.grad.Grad(ctx, cache, c); err != nil || g.k == 0 {
		return
	}
	var (
		m       = c.Mesh
		owner   = m.Owners()
		C, Cf   = m.C(), m.Cf()
		nc      = m.NCells()
		maxV    = append([]float64(nil), c.Cells...)
		minV    = append([]float64(nil), c.Cells...)
		limiter = make([]float64, nc)
	)
	for f, n := range m.Neighbours() {
		P := owner[f]
		maxV[P], minV[P] = max(maxV[P], c.Cells[n]), min(minV[P], c.Cells[n])
		maxV[n], minV[n] = max(maxV[n], c.Cells[P]), min(minV[n], c.Cells[P])
	}
	for _, p := range m.Patches() {
		if Skip(p) {
			continue
		}
		for f := p.Start; f < p.Start+p.Size; f++ {
			P := owner[f]
			other := c.Faces[f]
			if p.Coupled() {
				other = c.Nbr[f]
			}
			maxV[P], minV[P] = max(maxV[P], other), min(minV[P], other)
		}
	}
	for i := range limiter {
		maxV[i] -= c.Cells[i]
		minV[i] -= c.Cells[i]
		if g.k < 1 {
			widen := (1/g.k - 1) * (maxV[i] - minV[i])
			maxV[i] += widen
			minV[i] -= widen
		}
		limiter[i] = 1
	}
	limitFace := func(cell int, f int) {
		extrap := Cf[f].Sub(C[cell]).Dot(grad[cell])
		switch {
		case extrap > maxV[cell]+types.VSmall:
			limiter[cell] = min(limiter[cell], maxV[cell]/extrap)
		case extrap < minV[cell]-types.VSmall:
			limiter[cell] = min(limiter[cell], minV[cell]/extrap)
		}
	}
	for f, n := range m.Neighbours() {
		limitFace(owner[f], f)
		limitFace(n, f)
	}
	for _, p := range m.Patches() {
		if Skip(p) {
			continue
		}
		for f := p.Start; f < p.Start+p.Size; f++ {
			limitFace(owner[f], f)
		}
	}
	for i := range grad {
		grad[i] = grad[i].Scale(limiter[i])
	}
	return
}
