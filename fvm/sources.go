package fvm

import (
	"github.com/notargets/fvcore/dimensions"
	"github.com/notargets/fvcore/fields"
	"github.com/notargets/fvcore/fvmatrix"
	"github.com/notargets/fvcore/types"
)

// Sp is the implicit source sp*vf
func Sp[T types.Value[T]](sp *fields.ScalarField, vf *fields.VolField[T]) (fm *fvmatrix.Matrix[T]) {
	fields.CheckCompatible(sp.Name(), sp.Mesh(), vf.Name(), vf.Mesh())
	fm = fvmatrix.New(vf, sp.Dimensions().Mul(vf.Dimensions()).Mul(dimensions.DimVolume))
	V := vf.Mesh().V()
	for i, s := range sp.Internal() {
		fm.Diag[i] += V[i] * float64(s)
	}
	return
}

// Su is the explicit source su, acting on the equation for vf
func Su[T types.Value[T]](su *fields.VolField[T], vf *fields.VolField[T]) (fm *fvmatrix.Matrix[T]) {
	fields.CheckCompatible(su.Name(), su.Mesh(), vf.Name(), vf.Mesh())
	fm = fvmatrix.New(vf, su.Dimensions().Mul(dimensions.DimVolume))
	V := vf.Mesh().V()
	for i, s := range su.Internal() {
		fm.Source[i] = fm.Source[i].Sub(s.Scale(V[i]))
	}
	return
}

// SuSp is the source susp*vf, implicit where susp is positive and explicit
// where it is negative
func SuSp[T types.Value[T]](susp *fields.ScalarField, vf *fields.VolField[T]) (fm *fvmatrix.Matrix[T]) {
	fields.CheckCompatible(susp.Name(), susp.Mesh(), vf.Name(), vf.Mesh())
	var (
		V   = vf.Mesh().V()
		psi = vf.Internal()
	)
	fm = fvmatrix.New(vf, susp.Dimensions().Mul(vf.Dimensions()).Mul(dimensions.DimVolume))
	for i, s := range susp.Internal() {
		fm.Diag[i] += V[i] * max(float64(s), 0)
		fm.Source[i] = fm.Source[i].Sub(psi[i].Scale(V[i] * min(float64(s), 0)))
	}
	return
}
