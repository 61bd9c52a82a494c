package fvc

import (
	"context"

	"github.com/notargets/fvcore/dimensions"
	"github.com/notargets/fvcore/fields"
	"github.com/notargets/fvcore/mesh"
	"github.com/notargets/fvcore/schemes"
	"github.com/notargets/fvcore/types"
)

// Flux is the volume flux Sf . U of a velocity, linearly interpolated
func Flux(ctx context.Context, U *fields.VectorField) (flux *fields.ScalarSurfaceField, err error) {
	var (
		m    = U.Mesh()
		sf   = m.Sf()
		Uf   []types.Vector
		lin  schemes.Interpolation
		vals = make([]float64, m.NFaces())
	)
	if lin, err = schemes.Interpolations.New("linear"); err != nil {
		return
	}
	if Uf, err = interpolateValues(ctx, nil, lin, nil, U); err != nil {
		return
	}
	for f, v := range Uf {
		vals[f] = sf[f].Dot(v)
	}
	for _, p := range m.Patches() {
		if schemes.Skip(p) {
			clear(vals[p.Start : p.Start+p.Size])
		}
	}
	return fields.NewFlux("flux("+U.Name()+")", m, U.Dimensions().Mul(dimensions.DimArea), vals), nil
}

// MeshPhi is the volume flux swept by the faces in the last mesh motion,
// zero on a static mesh
func MeshPhi(m *mesh.Mesh) *fields.ScalarSurfaceField {
	phi := m.Phi()
	if phi == nil {
		phi = make([]float64, m.NFaces())
	}
	return fields.NewFlux("meshPhi", m, dimensions.DimVolFlux, phi)
}

// MakeRelative subtracts the mesh motion flux from an absolute volume flux
func MakeRelative(phi *fields.ScalarSurfaceField) error {
	return addMeshPhi(phi, -1)
}

// MakeAbsolute undoes MakeRelative
func MakeAbsolute(phi *fields.ScalarSurfaceField) error {
	return addMeshPhi(phi, 1)
}

func addMeshPhi(phi *fields.ScalarSurfaceField, sign float64) (err error) {
	m := phi.Mesh()
	if !m.Moving() {
		return
	}
	if err = dimensions.Check("makeRelative", phi.Name(), phi.Dimensions(), "meshPhi", dimensions.DimVolFlux); err != nil {
		return
	}
	vals := phi.Values()
	for f, v := range m.Phi() {
		vals[f] += types.Scalar(sign * v)
	}
	return
}
