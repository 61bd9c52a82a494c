package fields

import (
	"fmt"

	"github.com/notargets/fvcore/dimensions"
	"github.com/notargets/fvcore/mesh"
	"github.com/notargets/fvcore/types"
)

// SurfaceField holds one value per face, internal faces first and then the
// boundary faces patch by patch, following the mesh face numbering.
// Oriented fields (fluxes) change sign with the face normal.
type SurfaceField[T types.Value[T]] struct {
	name     string
	mesh     *mesh.Mesh
	dims     dimensions.Set
	values   []T
	Oriented bool
}

type ScalarSurfaceField = SurfaceField[types.Scalar]

func NewSurfaceField[T types.Value[T]](name string, m *mesh.Mesh, dims dimensions.Set, oriented bool) *SurfaceField[T] {
	m.CheckLive()
	return &SurfaceField[T]{
		name:     name,
		mesh:     m,
		dims:     dims,
		values:   make([]T, m.NFaces()),
		Oriented: oriented,
	}
}

// NewSurfaceFieldFrom takes over vals, which must run over all faces
func NewSurfaceFieldFrom[T types.Value[T]](name string, m *mesh.Mesh, dims dimensions.Set, vals []T,
	oriented bool) *SurfaceField[T] {
	if len(vals) != m.NFaces() {
		panic(fmt.Errorf("surface field %s has %d values for %d faces", name, len(vals), m.NFaces()))
	}
	sf := NewSurfaceField[T](name, m, dims, oriented)
	sf.values = vals
	return sf
}

// NewFlux builds an oriented scalar surface field from per face values
func NewFlux(name string, m *mesh.Mesh, dims dimensions.Set, vals []float64) *ScalarSurfaceField {
	return NewSurfaceFieldFrom(name, m, dims, types.Scalars(vals), true)
}

func (sf *SurfaceField[T]) Name() string               { return sf.name }
func (sf *SurfaceField[T]) Mesh() *mesh.Mesh           { return sf.mesh }
func (sf *SurfaceField[T]) Dimensions() dimensions.Set { return sf.dims }

// Values runs over all faces
func (sf *SurfaceField[T]) Values() []T {
	sf.mesh.CheckLive()
	return sf.values
}

func (sf *SurfaceField[T]) Internal() []T {
	return sf.Values()[:sf.mesh.NInternalFaces()]
}

// Patch returns the values of the faces of patch i
func (sf *SurfaceField[T]) Patch(i int) []T {
	return mesh.PatchSlice(sf.mesh.Patches()[i], sf.Values())
}

// Flip reverses the sign of the values on the given faces of an oriented
// field, and is a no-op on unoriented fields
func (sf *SurfaceField[T]) Flip(faces []int) {
	if !sf.Oriented {
		return
	}
	for _, f := range faces {
		sf.values[f] = sf.values[f].Scale(-1)
	}
}

func (sf *SurfaceField[T]) String() string {
	o := ""
	if sf.Oriented {
		o = " oriented"
	}
	return fmt.Sprintf("surface %s %s %s%s", types.Zero[T]().TypeName(), sf.name, sf.dims, o)
}

// Floats returns the components of a scalar surface field as float64
func Floats(sf *ScalarSurfaceField) []float64 {
	return types.Float64s(sf.Values())
}
