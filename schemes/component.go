package schemes

import (
	"context"
	"fmt"

	"github.com/notargets/fvcore/fields"
	"github.com/notargets/fvcore/mesh"
	"github.com/notargets/fvcore/types"
)

// Component is one component of a volume field in the form the schemes
// work on. Faces and Nbr run over all mesh faces: Faces holds the boundary
// values of every non-empty patch and Nbr the cell value across every
// coupled face.
type Component struct {
	Name  string
	Mesh  *mesh.Mesh
	Cells []float64
	Faces []float64
	Nbr   []float64
}

// ComponentOf extracts component cmpt of vf. The boundary is read through
// the checked accessor, so coupled patches must have been corrected.
func ComponentOf[T types.Value[T]](vf *fields.VolField[T], cmpt int) (c *Component) {
	var (
		m  = vf.Mesh()
		nf = m.NFaces()
	)
	c = &Component{
		Name:  vf.Name(),
		Mesh:  m,
		Cells: make([]float64, m.NCells()),
		Faces: make([]float64, nf),
		Nbr:   make([]float64, nf),
	}
	if types.NComponents[T]() > 1 {
		c.Name = fmt.Sprintf("%s.%d", vf.Name(), cmpt)
	}
	for i, v := range vf.Internal() {
		c.Cells[i] = v.Component(cmpt)
	}
	for i, p := range m.Patches() {
		if p.Kind == mesh.KindEmpty {
			continue
		}
		for j, v := range vf.BoundaryValues(i) {
			c.Faces[p.Start+j] = v.Component(cmpt)
		}
		if p.Coupled() {
			for j, v := range vf.Boundary()[i].PatchNeighbourField() {
				c.Nbr[p.Start+j] = v.Component(cmpt)
			}
		}
	}
	return
}

// Components splits vf into all of its components
func Components[T types.Value[T]](vf *fields.VolField[T]) (cs []*Component) {
	cs = make([]*Component, types.NComponents[T]())
	for i := range cs {
		cs[i] = ComponentOf(vf, i)
	}
	return
}

// ScalarComponent wraps plain cell and boundary arrays, boundary is indexed
// by mesh face and may be nil for fields used on internal faces only
func ScalarComponent(ctx context.Context, name string, m *mesh.Mesh, cells, boundary []float64) (c *Component, err error) {
	c = &Component{
		Name:  name,
		Mesh:  m,
		Cells: cells,
		Faces: boundary,
	}
	if c.Faces == nil {
		c.Faces = make([]float64, m.NFaces())
	}
	c.Nbr, err = NeighbourCells(ctx, m, cells)
	return
}

// NeighbourCells returns, per coupled face, the value of cells on the other
// side of the coupling. Processor patches exchange, so every rank must make
// the call.
func NeighbourCells(ctx context.Context, m *mesh.Mesh, cells []float64) (nbr []float64, err error) {
	nbr = make([]float64, m.NFaces())
	for _, p := range m.Patches() {
		if !p.Coupled() {
			continue
		}
		var vals []float64
		if vals, err = m.NeighbourValues(ctx, p, cells, 1); err != nil {
			return
		}
		copy(nbr[p.Start:p.Start+p.Size], vals)
	}
	return
}

// NeighbourGradients is NeighbourCells for cell gradients
func NeighbourGradients(ctx context.Context, m *mesh.Mesh, grad []types.Vector) (nbr []types.Vector, err error) {
	var (
		flat = types.Flatten(grad)
	)
	nbr = make([]types.Vector, m.NFaces())
	for _, p := range m.Patches() {
		if !p.Coupled() {
			continue
		}
		var vals []float64
		if vals, err = m.NeighbourValues(ctx, p, flat, 3); err != nil {
			return
		}
		copy(nbr[p.Start:p.Start+p.Size], types.Unflatten[types.Vector](vals))
	}
	return
}

// Skip is true for patches that take no part in face sums
func Skip(p *mesh.Patch) bool { return p.Kind == mesh.KindEmpty }
