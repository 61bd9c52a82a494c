package fvm

import (
	"github.com/notargets/fvcore/dimensions"
	"github.com/notargets/fvcore/fields"
	"github.com/notargets/fvcore/fvmatrix"
	"github.com/notargets/fvcore/schemes"
	"github.com/notargets/fvcore/types"
)

// Ddt is the time derivative of vf with the scheme configured for
// ddt(name): c0*V on the diagonal and the old levels in the source
func Ddt[T types.Value[T]](sc *schemes.Schemes, vf *fields.VolField[T]) (*fvmatrix.Matrix[T], error) {
	scheme, err := sc.Ddt("ddt(" + vf.Name() + ")")
	if err != nil {
		return nil, err
	}
	return ddt(scheme, nil, vf, vf.Dimensions()), nil
}

// DdtRho is the time derivative of rho*vf
func DdtRho[T types.Value[T]](sc *schemes.Schemes, rho *fields.ScalarField, vf *fields.VolField[T]) (
	*fvmatrix.Matrix[T], error) {
	fields.CheckCompatible(rho.Name(), rho.Mesh(), vf.Name(), vf.Mesh())
	scheme, err := sc.Ddt("ddt(" + rho.Name() + "," + vf.Name() + ")")
	if err != nil {
		return nil, err
	}
	return ddt(scheme, rho, vf, rho.Dimensions().Mul(vf.Dimensions())), nil
}

func ddt[T types.Value[T]](scheme schemes.Ddt, rho *fields.ScalarField, vf *fields.VolField[T],
	dims dimensions.Set) (fm *fvmatrix.Matrix[T]) {
	var (
		m          = vf.Mesh()
		V, V0, V00 = m.V(), m.V0(), m.V00()
		c0, c1, c2 = scheme.Coeffs(m.Time(), vf.NOldTimes())
		density    = func(r *fields.ScalarField, i int) float64 {
			if r == nil {
				return 1
			}
			return float64(r.Internal()[i])
		}
	)
	fm = fvmatrix.New(vf, dims.Mul(dimensions.DimVolume).Div(dimensions.DimTime))
	for i := range fm.Diag {
		fm.Diag[i] = c0 * V[i] * density(rho, i)
	}
	if c1 == 0 {
		return
	}
	var (
		old  = vf.OldTime()
		rho0 *fields.ScalarField
	)
	if rho != nil {
		rho0 = rho.OldTime()
	}
	for i, v := range old.Internal() {
		fm.Source[i] = fm.Source[i].Sub(v.Scale(c1 * V0[i] * density(rho0, i)))
	}
	if c2 == 0 {
		return
	}
	var (
		old00 = old.OldTime()
		rho00 *fields.ScalarField
	)
	if rho0 != nil {
		rho00 = rho0.OldTime()
	}
	for i, v := range old00.Internal() {
		fm.Source[i] = fm.Source[i].Sub(v.Scale(c2 * V00[i] * density(rho00, i)))
	}
	return
}
