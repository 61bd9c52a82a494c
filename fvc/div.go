package fvc

import (
	"context"
	"fmt"

	"github.com/notargets/fvcore/dimensions"
	"github.com/notargets/fvcore/fields"
	"github.com/notargets/fvcore/schemes"
	"github.com/notargets/fvcore/types"
)

// Div is the convection term div(flux*vf) with the scheme configured for
// div(flux,vf). The convected face values come from the interpolation of
// the scheme; bounded schemes subtract div(flux)*vf.
func Div[T types.Value[T]](ctx context.Context, sc *schemes.Schemes, flux *fields.ScalarSurfaceField,
	vf *fields.VolField[T]) (div *fields.VolField[T], err error) {
	var (
		m      = vf.Mesh()
		key    = "div(" + flux.Name() + "," + vf.Name() + ")"
		phi    = fields.Floats(flux)
		scheme schemes.Div
		cs     []*schemes.Component
	)
	fields.CheckCompatible(flux.Name(), flux.Mesh(), vf.Name(), m)
	if scheme, err = sc.Div(key); err != nil {
		return
	}
	if cs, err = components(ctx, vf); err != nil {
		return
	}
	faceFlux := make([]T, m.NFaces())
	for k, c := range cs {
		var fv []float64
		if fv, err = schemes.Interpolate(ctx, sc.Cache, scheme.Interpolation(), phi, c); err != nil {
			return
		}
		for f := range fv {
			fv[f] *= phi[f]
		}
		setComponent(faceFlux, k, fv)
	}
	vals := signedSum(m, faceFlux)
	if scheme.Bounded() {
		divPhi := signedSum(m, flux.Values())
		for i, v := range vf.Internal() {
			vals[i] = vals[i].Sub(v.Scale(float64(divPhi[i])))
		}
	}
	return result(ctx, key, m, flux.Dimensions().Mul(vf.Dimensions()).Div(dimensions.DimVolume), perVolume(m, vals))
}

// DivFlux integrates a face flux over every cell
func DivFlux(ctx context.Context, flux *fields.ScalarSurfaceField) (*fields.ScalarField, error) {
	m := flux.Mesh()
	return result(ctx, "div("+flux.Name()+")", m, flux.Dimensions().Div(dimensions.DimVolume),
		perVolume(m, signedSum(m, flux.Values())))
}

// DivVol is the divergence of a vector field, the sum of Sf.U_f over the
// faces of each cell with the interpolation of the div(U) scheme
func DivVol(ctx context.Context, sc *schemes.Schemes, U *fields.VectorField) (div *fields.ScalarField, err error) {
	var (
		m      = U.Mesh()
		key    = "div(" + U.Name() + ")"
		sf     = m.Sf()
		scheme schemes.Div
		cs     []*schemes.Component
	)
	if scheme, err = sc.Div(key); err != nil {
		return
	}
	interp := scheme.Interpolation()
	if interp.NeedsFlux() {
		return nil, fmt.Errorf("%w: %s for %s", ErrNeedsFlux, interp.Name(), key)
	}
	if cs, err = components(ctx, U); err != nil {
		return
	}
	faceFlux := make([]types.Scalar, m.NFaces())
	for k, c := range cs {
		var fv []float64
		if fv, err = schemes.Interpolate(ctx, sc.Cache, interp, nil, c); err != nil {
			return
		}
		for f, v := range fv {
			faceFlux[f] += types.Scalar(sf[f][k] * v)
		}
	}
	return result(ctx, key, m, U.Dimensions().Div(dimensions.DimLength), perVolume(m, signedSum(m, faceFlux)))
}
