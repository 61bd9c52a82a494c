package fvm

import (
	"context"

	"github.com/notargets/fvcore/fields"
	"github.com/notargets/fvcore/fvmatrix"
	"github.com/notargets/fvcore/mesh"
	"github.com/notargets/fvcore/schemes"
	"github.com/notargets/fvcore/types"
)

// Div is the convection term div(flux*vf) with the scheme configured for
// div(flux,vf). The scheme weights give the implicit part; the correction
// of corrected interpolations is deferred to the source.
func Div[T types.Value[T]](ctx context.Context, sc *schemes.Schemes, flux *fields.ScalarSurfaceField,
	vf *fields.VolField[T]) (fm *fvmatrix.Matrix[T], err error) {
	var (
		m      = vf.Mesh()
		key    = "div(" + flux.Name() + "," + vf.Name() + ")"
		phi    = fields.Floats(flux)
		scheme schemes.Div
	)
	fields.CheckCompatible(flux.Name(), flux.Mesh(), vf.Name(), m)
	if scheme, err = sc.Div(key); err != nil {
		return
	}
	if err = vf.CorrectBoundaryConditions(ctx); err != nil {
		return
	}
	var (
		interp = scheme.Interpolation()
		w      = interp.Weights(m, phi)
	)
	fm = fvmatrix.New(vf, flux.Dimensions().Mul(vf.Dimensions()))
	for f := range fm.Lower {
		fm.Lower[f] = -w[f] * phi[f]
		fm.Upper[f] = fm.Lower[f] + phi[f]
	}
	negSumDiag(m, fm)
	for pi, p := range m.Patches() {
		if schemes.Skip(p) {
			continue
		}
		var (
			pf   = vf.Boundary()[pi]
			pPhi = mesh.PatchSlice(p, phi)
			pw   = mesh.PatchSlice(p, w)
		)
		copy(fm.InternalCoeffs()[pi], scaleCoeffs(pf.ValueInternalCoeffs(pw), pPhi))
		copy(fm.BoundaryCoeffs()[pi], scaleCoeffs(pf.ValueBoundaryCoeffs(pw), pPhi))
		scaleValues(fm.BoundaryCoeffs()[pi], -1)
	}
	if interp.Corrected() {
		corr := make([]T, m.NFaces())
		for k, c := range schemes.Components(vf) {
			var cf []float64
			if cf, err = interp.Correction(ctx, sc.Cache, phi, c); err != nil {
				return
			}
			for f, v := range cf {
				corr[f] = corr[f].WithComponent(k, phi[f]*v)
			}
		}
		addFluxCorrection(m, fm, corr)
	}
	if scheme.Bounded() {
		divPhi := make([]float64, m.NCells())
		owner := m.Owners()
		for f, n := range m.Neighbours() {
			divPhi[owner[f]] += phi[f]
			divPhi[n] -= phi[f]
		}
		for _, p := range m.Patches() {
			if schemes.Skip(p) {
				continue
			}
			for f := p.Start; f < p.Start+p.Size; f++ {
				divPhi[owner[f]] += phi[f]
			}
		}
		for i := range fm.Diag {
			fm.Diag[i] -= divPhi[i]
		}
	}
	return
}

func scaleValues[T types.Value[T]](vals []T, s float64) {
	for i := range vals {
		vals[i] = vals[i].Scale(s)
	}
}
