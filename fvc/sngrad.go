package fvc

import (
	"context"
	"fmt"

	"github.com/notargets/fvcore/dimensions"
	"github.com/notargets/fvcore/fields"
	"github.com/notargets/fvcore/schemes"
	"github.com/notargets/fvcore/types"
)

// snGradValues evaluates the face normal gradient over all faces. Non-coupled
// patches take the gradient of their boundary condition, empty patches zero.
func snGradValues[T types.Value[T]](ctx context.Context, cache *schemes.Cache, s schemes.SnGrad,
	vf *fields.VolField[T]) (vals []T, err error) {
	var (
		m  = vf.Mesh()
		cs []*schemes.Component
	)
	if cs, err = components(ctx, vf); err != nil {
		return
	}
	vals = make([]T, m.NFaces())
	for k, c := range cs {
		var sn []float64
		if sn, err = schemes.SnGradFaces(ctx, cache, s, c); err != nil {
			return
		}
		setComponent(vals, k, sn)
	}
	for pi, p := range m.Patches() {
		if p.Coupled() || schemes.Skip(p) {
			continue
		}
		copy(vals[p.Start:p.Start+p.Size], vf.Boundary()[pi].SnGrad())
	}
	return
}

// SnGrad is the gradient of vf normal to every face, with the scheme
// configured for snGrad(name)
func SnGrad[T types.Value[T]](ctx context.Context, sc *schemes.Schemes, vf *fields.VolField[T]) (
	*fields.SurfaceField[T], error) {
	var (
		m   = vf.Mesh()
		key = "snGrad(" + vf.Name() + ")"
	)
	s, err := sc.SnGrad(key)
	if err != nil {
		return nil, err
	}
	vals, err := snGradValues(ctx, sc.Cache, s, vf)
	if err != nil {
		return nil, err
	}
	return fields.NewSurfaceFieldFrom(key, m, vf.Dimensions().Div(dimensions.DimLength), vals, true), nil
}

// Interpolate returns the face values of vf with the scheme configured for
// interpolate(name). flux may be nil unless the scheme follows the flow.
func Interpolate[T types.Value[T]](ctx context.Context, sc *schemes.Schemes, vf *fields.VolField[T],
	flux *fields.ScalarSurfaceField) (*fields.SurfaceField[T], error) {
	var (
		m   = vf.Mesh()
		key = "interpolate(" + vf.Name() + ")"
		phi []float64
	)
	s, err := sc.Interpolation(key)
	if err != nil {
		return nil, err
	}
	if flux != nil {
		fields.CheckCompatible(flux.Name(), flux.Mesh(), vf.Name(), m)
		phi = fields.Floats(flux)
	} else if s.NeedsFlux() {
		return nil, fmt.Errorf("%w: %s for %s", ErrNeedsFlux, s.Name(), key)
	}
	vals, err := interpolateValues(ctx, sc.Cache, s, phi, vf)
	if err != nil {
		return nil, err
	}
	return fields.NewSurfaceFieldFrom(key, m, vf.Dimensions(), vals, false), nil
}

func interpolateValues[T types.Value[T]](ctx context.Context, cache *schemes.Cache, s schemes.Interpolation,
	phi []float64, vf *fields.VolField[T]) (vals []T, err error) {
	var (
		cs []*schemes.Component
	)
	if cs, err = components(ctx, vf); err != nil {
		return
	}
	vals = make([]T, vf.Mesh().NFaces())
	for k, c := range cs {
		var fv []float64
		if fv, err = schemes.Interpolate(ctx, cache, s, phi, c); err != nil {
			return
		}
		setComponent(vals, k, fv)
	}
	return
}

// InterpolateGamma interpolates a diffusivity to the faces with the
// interpolation of the laplacian scheme configured for key
func InterpolateGamma(ctx context.Context, sc *schemes.Schemes, key string, gamma *fields.ScalarField) (
	*fields.ScalarSurfaceField, error) {
	scheme, err := sc.Laplacian(key)
	if err != nil {
		return nil, err
	}
	vals, err := interpolateValues(ctx, sc.Cache, scheme.Interpolation(), nil, gamma)
	if err != nil {
		return nil, err
	}
	return fields.NewSurfaceFieldFrom(gamma.Name(), gamma.Mesh(), gamma.Dimensions(), vals, false), nil
}

// Laplacian is div(gamma*grad(vf)) for a face diffusivity, with the scheme
// configured for laplacian(gamma,vf)
func Laplacian[T types.Value[T]](ctx context.Context, sc *schemes.Schemes, gamma *fields.ScalarSurfaceField,
	vf *fields.VolField[T]) (*fields.VolField[T], error) {
	fields.CheckCompatible(gamma.Name(), gamma.Mesh(), vf.Name(), vf.Mesh())
	return laplacian(ctx, sc, "laplacian("+gamma.Name()+","+vf.Name()+")", gamma, vf)
}

// LaplacianVol is Laplacian with a cell diffusivity, interpolated by the
// laplacian scheme
func LaplacianVol[T types.Value[T]](ctx context.Context, sc *schemes.Schemes, gamma *fields.ScalarField,
	vf *fields.VolField[T]) (*fields.VolField[T], error) {
	fields.CheckCompatible(gamma.Name(), gamma.Mesh(), vf.Name(), vf.Mesh())
	key := "laplacian(" + gamma.Name() + "," + vf.Name() + ")"
	gf, err := InterpolateGamma(ctx, sc, key, gamma)
	if err != nil {
		return nil, err
	}
	return laplacian(ctx, sc, key, gf, vf)
}

func laplacian[T types.Value[T]](ctx context.Context, sc *schemes.Schemes, key string,
	gamma *fields.ScalarSurfaceField, vf *fields.VolField[T]) (*fields.VolField[T], error) {
	var (
		m     = vf.Mesh()
		magSf = m.MagSf()
		gf    = gamma.Values()
	)
	scheme, err := sc.Laplacian(key)
	if err != nil {
		return nil, err
	}
	sn, err := snGradValues(ctx, sc.Cache, scheme.SnGrad(), vf)
	if err != nil {
		return nil, err
	}
	for f := range sn {
		sn[f] = sn[f].Scale(float64(gf[f]) * magSf[f])
	}
	dims := gamma.Dimensions().Mul(vf.Dimensions()).Div(dimensions.DimArea)
	return result(ctx, key, m, dims, perVolume(m, signedSum(m, sn)))
}
