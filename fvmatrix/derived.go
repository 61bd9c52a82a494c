package fvmatrix

import (
	"context"

	"github.com/notargets/fvcore/dimensions"
	"github.com/notargets/fvcore/fields"
	"github.com/notargets/fvcore/types"
)

// cmptAv is the average of the components of v
func cmptAv[T types.Value[T]](v T) (s float64) {
	n := v.NComponents()
	for i := 0; i < n; i++ {
		s += v.Component(i)
	}
	return s / float64(n)
}

// A is the diagonal coefficient per unit volume, including the
// component averaged boundary contributions
func (m *Matrix[T]) A(ctx context.Context) (a *fields.ScalarField, err error) {
	var (
		msh = m.psi.Mesh()
		V   = msh.V()
		D   = append([]float64(nil), m.Diag...)
	)
	for pi, p := range msh.Patches() {
		for i, c := range p.FaceCells() {
			D[c] += cmptAv(m.internalCoeffs[pi][i])
		}
	}
	for i := range D {
		D[i] /= V[i]
	}
	a = fields.NewCalculated("A("+m.psi.Name()+")", msh,
		m.dims.Div(m.psi.Dimensions()).Div(dimensions.DimVolume), types.Scalars(D))
	err = a.CorrectBoundaryConditions(ctx)
	return
}

// neighbourPsi returns the values of psi across every coupled face, indexed
// by patch
func (m *Matrix[T]) neighbourPsi(ctx context.Context) (nbr [][]T, err error) {
	var (
		msh   = m.psi.Mesh()
		ncmpt = types.NComponents[T]()
		flat  = types.Flatten(m.psi.Internal())
	)
	nbr = make([][]T, len(msh.Patches()))
	for pi, p := range msh.Patches() {
		if !p.Coupled() {
			continue
		}
		var vals []float64
		if vals, err = msh.NeighbourValues(ctx, p, flat, ncmpt); err != nil {
			return
		}
		nbr[pi] = types.Unflatten[T](vals)
	}
	return
}

// H is the off-diagonal part of the operator applied to psi, moved to the
// right hand side and divided by the cell volume:
//
//	H = (b - sum(offdiag * psi_N))/V
//
// with the coupled boundary contributions treated like internal neighbours.
func (m *Matrix[T]) H(ctx context.Context) (h *fields.VolField[T], err error) {
	var (
		msh   = m.psi.Mesh()
		V     = msh.V()
		psi   = m.psi.Internal()
		owner = msh.Owners()
		Hphi  = append([]T(nil), m.Source...)
		nbr   [][]T
	)
	if nbr, err = m.neighbourPsi(ctx); err != nil {
		return
	}
	for f, u := range msh.Neighbours() {
		l := owner[f]
		Hphi[u] = Hphi[u].Sub(psi[l].Scale(m.Lower[f]))
		Hphi[l] = Hphi[l].Sub(psi[u].Scale(m.Upper[f]))
	}
	for pi, p := range msh.Patches() {
		var (
			iC = m.internalCoeffs[pi]
			bC = m.boundaryCoeffs[pi]
		)
		for i, c := range p.FaceCells() {
			// The diagonal keeps the component average of the boundary
			// coefficient, the anisotropic remainder is explicit
			av := types.One[T]().Scale(cmptAv(iC[i]))
			Hphi[c] = Hphi[c].Add(types.CmptMultiply(av.Sub(iC[i]), psi[c]))
			if p.Coupled() {
				Hphi[c] = Hphi[c].Add(types.CmptMultiply(bC[i], nbr[pi][i]))
			} else {
				Hphi[c] = Hphi[c].Add(bC[i])
			}
		}
	}
	for i := range Hphi {
		Hphi[i] = Hphi[i].Scale(1 / V[i])
	}
	h = fields.NewCalculated("H("+m.psi.Name()+")", msh, m.dims.Div(dimensions.DimVolume), Hphi)
	err = h.CorrectBoundaryConditions(ctx)
	return
}

// H1 is minus the sum of the off-diagonal coefficients of every row,
// divided by the cell volume
func (m *Matrix[T]) H1(ctx context.Context) (h1 *fields.ScalarField, err error) {
	var (
		msh   = m.psi.Mesh()
		V     = msh.V()
		owner = msh.Owners()
		H1    = make([]float64, msh.NCells())
	)
	for f, u := range msh.Neighbours() {
		l := owner[f]
		H1[u] -= m.Lower[f]
		H1[l] -= m.Upper[f]
	}
	for pi, p := range msh.Patches() {
		if !p.Coupled() {
			continue
		}
		for i, c := range p.FaceCells() {
			H1[c] += cmptAv(m.boundaryCoeffs[pi][i])
		}
	}
	for i := range H1 {
		H1[i] /= V[i]
	}
	h1 = fields.NewCalculated("H(1)", msh,
		m.dims.Div(m.psi.Dimensions()).Div(dimensions.DimVolume), types.Scalars(H1))
	err = h1.CorrectBoundaryConditions(ctx)
	return
}

// Flux is the face flux of the operator for the current psi: the implicit
// part from the matrix coefficients plus FaceFluxCorrection. For operators
// made of face fluxes, the owner minus neighbour sum over the faces of a
// cell gives A psi - b of that cell.
func (m *Matrix[T]) Flux(ctx context.Context) (flux *fields.SurfaceField[T], err error) {
	var (
		msh   = m.psi.Mesh()
		psi   = m.psi.Internal()
		owner = msh.Owners()
		vals  = make([]T, msh.NFaces())
		nbr   [][]T
	)
	if nbr, err = m.neighbourPsi(ctx); err != nil {
		return
	}
	for f, u := range msh.Neighbours() {
		l := owner[f]
		vals[f] = psi[u].Scale(m.Upper[f]).Sub(psi[l].Scale(m.Lower[f]))
	}
	for pi, p := range msh.Patches() {
		var (
			iC = m.internalCoeffs[pi]
			bC = m.boundaryCoeffs[pi]
		)
		for i, c := range p.FaceCells() {
			internal := types.CmptMultiply(iC[i], psi[c])
			if p.Coupled() {
				vals[p.Start+i] = internal.Sub(types.CmptMultiply(bC[i], nbr[pi][i]))
			} else {
				vals[p.Start+i] = internal.Sub(bC[i])
			}
		}
	}
	if m.FaceFluxCorrection != nil {
		addValues(vals, m.FaceFluxCorrection, 1)
	}
	flux = fields.NewSurfaceFieldFrom("flux("+m.psi.Name()+")", msh, m.dims, vals, true)
	return
}
