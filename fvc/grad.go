package fvc

import (
	"context"
	"fmt"

	"github.com/notargets/fvcore/dimensions"
	"github.com/notargets/fvcore/fields"
	"github.com/notargets/fvcore/schemes"
	"github.com/notargets/fvcore/types"
)

// Grad is the cell gradient of vf with the scheme configured for
// grad(name). G holds the derivative of component c along axis d at
// d*NComponents(T)+c. On non-coupled patches the tangential part is
// extrapolated from the cell and the normal part comes from the boundary
// condition.
func Grad[T types.Value[T], G types.Value[G]](ctx context.Context, sc *schemes.Schemes,
	vf *fields.VolField[T]) (g *fields.VolField[G], err error) {
	var (
		m      = vf.Mesh()
		key    = "grad(" + vf.Name() + ")"
		nT     = types.NComponents[T]()
		scheme schemes.Grad
		cs     []*schemes.Component
	)
	if types.NComponents[G]() != 3*nT {
		panic(fmt.Errorf("gradient of %s cannot be stored as %s", vf, types.Zero[G]().TypeName()))
	}
	if scheme, err = sc.Grad(key); err != nil {
		return
	}
	if cs, err = components(ctx, vf); err != nil {
		return
	}
	internal := make([]G, m.NCells())
	for k, c := range cs {
		var gk []types.Vector
		if gk, err = scheme.Grad(ctx, sc.Cache, c); err != nil {
			return
		}
		for i, v := range gk {
			for d := 0; d < 3; d++ {
				internal[i] = internal[i].WithComponent(d*nT+k, v[d])
			}
		}
	}
	if g, err = result(ctx, key, m, vf.Dimensions().Div(dimensions.DimLength), internal); err != nil {
		return
	}
	correctBoundaryGrad(vf, g)
	return
}

func correctBoundaryGrad[T types.Value[T], G types.Value[G]](vf *fields.VolField[T], g *fields.VolField[G]) {
	var (
		m    = vf.Mesh()
		sf   = m.Sf()
		grad = g.Internal()
	)
	for pi, p := range m.Patches() {
		if p.Coupled() || schemes.Skip(p) {
			continue
		}
		var (
			sn   = vf.Boundary()[pi].SnGrad()
			vals = make([]G, p.Size)
		)
		for i, c := range p.FaceCells() {
			n := sf[p.Start+i].Normalised()
			normal := sn[i].Sub(types.InnerVector[G, T](n, grad[c]))
			vals[i] = grad[c].Add(types.Outer[T, G](n, normal))
		}
		g.Boundary()[pi].(interface{ Assign([]G) }).Assign(vals)
	}
}

func GradScalar(ctx context.Context, sc *schemes.Schemes, vf *fields.ScalarField) (*fields.VectorField, error) {
	return Grad[types.Scalar, types.Vector](ctx, sc, vf)
}

func GradVector(ctx context.Context, sc *schemes.Schemes, vf *fields.VectorField) (*fields.TensorField, error) {
	return Grad[types.Vector, types.Tensor](ctx, sc, vf)
}
