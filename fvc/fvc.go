// Package fvc holds the explicit finite volume operators. Each call
// evaluates the operator on the current values of its operands and returns
// a newly allocated field. The boundary conditions of the operands are
// corrected first, so every rank of a decomposed case must make the same
// calls in the same order.
package fvc

import (
	"context"
	"errors"

	"github.com/notargets/fvcore/dimensions"
	"github.com/notargets/fvcore/fields"
	"github.com/notargets/fvcore/mesh"
	"github.com/notargets/fvcore/schemes"
	"github.com/notargets/fvcore/types"
)

var ErrNeedsFlux = errors.New("interpolation scheme needs a flux")

// components corrects the boundary of vf and splits it for the schemes
func components[T types.Value[T]](ctx context.Context, vf *fields.VolField[T]) (cs []*schemes.Component, err error) {
	if err = vf.CorrectBoundaryConditions(ctx); err != nil {
		return
	}
	return schemes.Components(vf), nil
}

// result wraps cell values into a calculated field with evaluated patches
func result[T types.Value[T]](ctx context.Context, name string, m *mesh.Mesh, dims dimensions.Set,
	internal []T) (vf *fields.VolField[T], err error) {
	vf = fields.NewCalculated(name, m, dims, internal)
	err = vf.CorrectBoundaryConditions(ctx)
	return
}

// setComponent writes vals into component k of out
func setComponent[T types.Value[T]](out []T, k int, vals []float64) {
	for i, v := range vals {
		out[i] = out[i].WithComponent(k, v)
	}
}

// signedSum adds every face value to its owner and subtracts it from its
// neighbour. Empty patches take no part.
func signedSum[T types.Value[T]](m *mesh.Mesh, faces []T) (cells []T) {
	var (
		owner = m.Owners()
	)
	cells = make([]T, m.NCells())
	for f, n := range m.Neighbours() {
		cells[owner[f]] = cells[owner[f]].Add(faces[f])
		cells[n] = cells[n].Sub(faces[f])
	}
	for _, p := range m.Patches() {
		if schemes.Skip(p) {
			continue
		}
		for f := p.Start; f < p.Start+p.Size; f++ {
			cells[owner[f]] = cells[owner[f]].Add(faces[f])
		}
	}
	return
}

func perVolume[T types.Value[T]](m *mesh.Mesh, cells []T) []T {
	V := m.V()
	for i := range cells {
		cells[i] = cells[i].Scale(1 / V[i])
	}
	return cells
}

// SurfaceIntegrate is the sum over the faces of each cell of the face
// values, outward positive, divided by the cell volume
func SurfaceIntegrate[T types.Value[T]](ctx context.Context, sf *fields.SurfaceField[T]) (*fields.VolField[T], error) {
	m := sf.Mesh()
	return result(ctx, "surfaceIntegrate("+sf.Name()+")", m, sf.Dimensions().Div(dimensions.DimVolume),
		perVolume(m, signedSum(m, sf.Values())))
}

// SurfaceSum adds the face values of every cell without orientation
func SurfaceSum[T types.Value[T]](ctx context.Context, sf *fields.SurfaceField[T]) (*fields.VolField[T], error) {
	var (
		m     = sf.Mesh()
		vals  = sf.Values()
		owner = m.Owners()
		cells = make([]T, m.NCells())
	)
	for f, n := range m.Neighbours() {
		cells[owner[f]] = cells[owner[f]].Add(vals[f])
		cells[n] = cells[n].Add(vals[f])
	}
	for _, p := range m.Patches() {
		if schemes.Skip(p) {
			continue
		}
		for f := p.Start; f < p.Start+p.Size; f++ {
			cells[owner[f]] = cells[owner[f]].Add(vals[f])
		}
	}
	return result(ctx, "surfaceSum("+sf.Name()+")", m, sf.Dimensions(), cells)
}
