// Package fvm builds the implicit finite volume operators as matrices for
// the field they act on. Each operator is the volume integral of the term,
// so matrices of one equation add directly; explicit parts such as limiter
// or non-orthogonal corrections go to the source and to the face flux
// correction of the matrix.
package fvm

import (
	"github.com/notargets/fvcore/fvmatrix"
	"github.com/notargets/fvcore/mesh"
	"github.com/notargets/fvcore/schemes"
	"github.com/notargets/fvcore/types"
)

// negSumDiag sets the diagonal to minus the sum of the off-diagonal
// coefficients of every row
func negSumDiag[T types.Value[T]](m *mesh.Mesh, fm *fvmatrix.Matrix[T]) {
	owner := m.Owners()
	for f, u := range m.Neighbours() {
		l := owner[f]
		fm.Diag[l] -= fm.Lower[f]
		fm.Diag[u] -= fm.Upper[f]
	}
}

// addFluxCorrection records the explicit face flux corr and moves its
// surface sum to the source
func addFluxCorrection[T types.Value[T]](m *mesh.Mesh, fm *fvmatrix.Matrix[T], corr []T) {
	var (
		owner = m.Owners()
	)
	if fm.FaceFluxCorrection == nil {
		fm.FaceFluxCorrection = make([]T, m.NFaces())
	}
	for f, v := range corr {
		fm.FaceFluxCorrection[f] = fm.FaceFluxCorrection[f].Add(v)
	}
	for f, n := range m.Neighbours() {
		fm.Source[owner[f]] = fm.Source[owner[f]].Sub(corr[f])
		fm.Source[n] = fm.Source[n].Add(corr[f])
	}
	for _, p := range m.Patches() {
		if schemes.Skip(p) {
			continue
		}
		for f := p.Start; f < p.Start+p.Size; f++ {
			fm.Source[owner[f]] = fm.Source[owner[f]].Sub(corr[f])
		}
	}
}

// scaleCoeffs multiplies coefficient values by per face factors
func scaleCoeffs[T types.Value[T]](vals []T, s []float64) []T {
	for i := range vals {
		vals[i] = vals[i].Scale(s[i])
	}
	return vals
}
