package fvc

import (
	"context"

	"github.com/notargets/fvcore/dimensions"
	"github.com/notargets/fvcore/fields"
	"github.com/notargets/fvcore/schemes"
	"github.com/notargets/fvcore/types"
)

// Ddt is the rate of change of vf over the last time step. On the first
// step the previous level is a copy of the current one and the rate is
// zero.
func Ddt[T types.Value[T]](ctx context.Context, sc *schemes.Schemes, vf *fields.VolField[T]) (
	*fields.VolField[T], error) {
	var (
		key = "ddt(" + vf.Name() + ")"
	)
	scheme, err := sc.Ddt(key)
	if err != nil {
		return nil, err
	}
	return result(ctx, key, vf.Mesh(), vf.Dimensions().Div(dimensions.DimTime), ddtValues(scheme, nil, vf))
}

// DdtRho is the rate of change of rho*vf
func DdtRho[T types.Value[T]](ctx context.Context, sc *schemes.Schemes, rho *fields.ScalarField,
	vf *fields.VolField[T]) (*fields.VolField[T], error) {
	var (
		key = "ddt(" + rho.Name() + "," + vf.Name() + ")"
	)
	fields.CheckCompatible(rho.Name(), rho.Mesh(), vf.Name(), vf.Mesh())
	scheme, err := sc.Ddt(key)
	if err != nil {
		return nil, err
	}
	return result(ctx, key, vf.Mesh(), rho.Dimensions().Mul(vf.Dimensions()).Div(dimensions.DimTime),
		ddtValues(scheme, rho, vf))
}

// ddtValues evaluates c0*phi + c1*phi_0*V0/V + c2*phi_00*V00/V, with every
// level multiplied by its density when rho is given
func ddtValues[T types.Value[T]](scheme schemes.Ddt, rho *fields.ScalarField, vf *fields.VolField[T]) (out []T) {
	var (
		m          = vf.Mesh()
		V          = m.V()
		c0, c1, c2 = scheme.Coeffs(m.Time(), vf.NOldTimes())
		f, r       = vf, rho
	)
	out = make([]T, m.NCells())
	for l, lv := range []struct {
		c   float64
		vol []float64
	}{{c0, V}, {c1, m.V0()}, {c2, m.V00()}} {
		if lv.c == 0 {
			break
		}
		if l > 0 {
			f = f.OldTime()
			if r != nil {
				r = r.OldTime()
			}
		}
		for i, v := range f.Internal() {
			s := lv.c * lv.vol[i] / V[i]
			if r != nil {
				s *= float64(r.Internal()[i])
			}
			out[i] = out[i].Add(v.Scale(s))
		}
	}
	return
}
