package fvm

import (
	"context"

	"github.com/notargets/fvcore/dimensions"
	"github.com/notargets/fvcore/fields"
	"github.com/notargets/fvcore/fvc"
	"github.com/notargets/fvcore/fvmatrix"
	"github.com/notargets/fvcore/mesh"
	"github.com/notargets/fvcore/schemes"
	"github.com/notargets/fvcore/types"
)

// Laplacian is div(gamma*grad(vf)) for a face diffusivity, with the scheme
// configured for laplacian(gamma,vf)
func Laplacian[T types.Value[T]](ctx context.Context, sc *schemes.Schemes, gamma *fields.ScalarSurfaceField,
	vf *fields.VolField[T]) (*fvmatrix.Matrix[T], error) {
	fields.CheckCompatible(gamma.Name(), gamma.Mesh(), vf.Name(), vf.Mesh())
	return laplacian(ctx, sc, "laplacian("+gamma.Name()+","+vf.Name()+")", fields.Floats(gamma),
		gamma.Dimensions(), vf)
}

// LaplacianVol takes a cell diffusivity, interpolated with the laplacian
// scheme
func LaplacianVol[T types.Value[T]](ctx context.Context, sc *schemes.Schemes, gamma *fields.ScalarField,
	vf *fields.VolField[T]) (*fvmatrix.Matrix[T], error) {
	fields.CheckCompatible(gamma.Name(), gamma.Mesh(), vf.Name(), vf.Mesh())
	key := "laplacian(" + gamma.Name() + "," + vf.Name() + ")"
	gf, err := fvc.InterpolateGamma(ctx, sc, key, gamma)
	if err != nil {
		return nil, err
	}
	return laplacian(ctx, sc, key, fields.Floats(gf), gamma.Dimensions(), vf)
}

// LaplacianOf is the laplacian of vf with unit diffusivity, configured as
// laplacian(name)
func LaplacianOf[T types.Value[T]](ctx context.Context, sc *schemes.Schemes, vf *fields.VolField[T]) (
	*fvmatrix.Matrix[T], error) {
	gf := make([]float64, vf.Mesh().NFaces())
	for f := range gf {
		gf[f] = 1
	}
	return laplacian(ctx, sc, "laplacian("+vf.Name()+")", gf, dimensions.Dimensionless, vf)
}

func laplacian[T types.Value[T]](ctx context.Context, sc *schemes.Schemes, key string, gamma []float64,
	gammaDims dimensions.Set, vf *fields.VolField[T]) (fm *fvmatrix.Matrix[T], err error) {
	var (
		m      = vf.Mesh()
		magSf  = m.MagSf()
		scheme schemes.Laplacian
	)
	if scheme, err = sc.Laplacian(key); err != nil {
		return
	}
	if err = vf.CorrectBoundaryConditions(ctx); err != nil {
		return
	}
	var (
		sn       = scheme.SnGrad()
		dc       = sn.DeltaCoeffs(m)
		gammaMag = make([]float64, m.NFaces())
	)
	for f := range gammaMag {
		gammaMag[f] = gamma[f] * magSf[f]
	}
	fm = fvmatrix.New(vf, gammaDims.Mul(vf.Dimensions()).Mul(dimensions.DimLength))
	for f := range fm.Upper {
		fm.Upper[f] = dc[f] * gammaMag[f]
		fm.Lower[f] = fm.Upper[f]
	}
	negSumDiag(m, fm)
	for pi, p := range m.Patches() {
		if schemes.Skip(p) {
			continue
		}
		var (
			pf  = vf.Boundary()[pi]
			pgm = mesh.PatchSlice(p, gammaMag)
			pdc = mesh.PatchSlice(p, dc)
		)
		// Non-coupled conditions take the gradient on their own delta
		// coefficients, as their SnGrad does
		if !p.Coupled() {
			pdc = mesh.PatchSlice(p, m.DeltaCoeffs())
		}
		copy(fm.InternalCoeffs()[pi], scaleCoeffs(pf.GradientInternalCoeffs(pdc), pgm))
		copy(fm.BoundaryCoeffs()[pi], scaleCoeffs(pf.GradientBoundaryCoeffs(pdc), pgm))
		scaleValues(fm.BoundaryCoeffs()[pi], -1)
	}
	if !sn.Corrected() {
		return
	}
	corr := make([]T, m.NFaces())
	for k, c := range schemes.Components(vf) {
		var cf []float64
		if cf, err = sn.Correction(ctx, sc.Cache, c); err != nil {
			return
		}
		for f, v := range cf {
			corr[f] = corr[f].WithComponent(k, gammaMag[f]*v)
		}
	}
	addFluxCorrection(m, fm, corr)
	return
}
