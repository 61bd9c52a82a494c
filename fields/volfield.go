package fields

import (
	"context"
	"fmt"

	"github.com/notargets/fvcore/dimensions"
	"github.com/notargets/fvcore/mesh"
	"github.com/notargets/fvcore/types"
)

// maxOldTimes is the depth of the old-time chain, enough for second order
// backward differencing
const maxOldTimes = 2

// VolField holds one value per cell and a boundary condition per patch
type VolField[T types.Value[T]] struct {
	name     string
	mesh     *mesh.Mesh
	dims     dimensions.Set
	internal []T
	boundary []PatchField[T]

	old       *VolField[T]
	nOld      int
	timeIndex int
	isOld     bool
}

type (
	ScalarField = VolField[types.Scalar]
	VectorField = VolField[types.Vector]
	TensorField = VolField[types.Tensor]
)

// New creates a field from its cell values and the boundary conditions keyed
// by patch name. Coupled and empty patches take their implied condition
// when bcs has no entry for them.
func New[T types.Value[T]](name string, m *mesh.Mesh, dims dimensions.Set, internal []T,
	bcs map[string]Dict) (f *VolField[T], err error) {
	if len(internal) != m.NCells() {
		return nil, fmt.Errorf("field %s has %d values for %d cells", name, len(internal), m.NCells())
	}
	f = newField[T](name, m, dims)
	copy(f.internal, internal)
	for _, p := range m.Patches() {
		d, ok := bcs[p.Name]
		switch {
		case !ok && p.Coupled():
			d = Dict{"type": CoupledTypeName(p.Kind)}
		case !ok && p.Kind == mesh.KindEmpty:
			d = Dict{"type": "empty"}
		case !ok:
			return nil, &ParameterError{Param: "type", Patch: p.Name, Field: name, Err: ErrMissingParameter,
				Cause: fmt.Errorf("no boundary condition given")}
		}
		var pf PatchField[T]
		if pf, err = NewPatchField(p, f, d); err != nil {
			return nil, err
		}
		if pf.Coupled() != p.Coupled() {
			return nil, fmt.Errorf("%w: field %s patch %s of kind %s cannot take a %s condition",
				ErrInvalidParameter, name, p.Name, p.Kind, pf.Type())
		}
		f.boundary[p.Index()] = pf
	}
	return
}

// NewUniform creates a field with the same value in every cell
func NewUniform[T types.Value[T]](name string, m *mesh.Mesh, dims dimensions.Set, v T,
	bcs map[string]Dict) (*VolField[T], error) {
	return New(name, m, dims, fill(m.NCells(), v), bcs)
}

// NewCalculated creates the result field of an explicit operator. Coupled
// patches carry their coupled condition, empty patches stay empty and all
// other patches extrapolate the cell values.
func NewCalculated[T types.Value[T]](name string, m *mesh.Mesh, dims dimensions.Set, internal []T) (f *VolField[T]) {
	f = newField[T](name, m, dims)
	if internal != nil {
		copy(f.internal, internal)
	}
	for _, p := range m.Patches() {
		var (
			pf  PatchField[T]
			err error
		)
		switch {
		case p.Coupled():
			pf, err = newCoupled[T](CoupledTypeName(p.Kind))(p, f, nil)
		case p.Kind == mesh.KindEmpty:
			pf, err = NewEmpty(p, f, nil)
		default:
			pf, err = NewExtrapolatedCalculated(p, f, nil)
		}
		if err != nil {
			panic(err)
		}
		f.boundary[p.Index()] = pf
	}
	return
}

func newField[T types.Value[T]](name string, m *mesh.Mesh, dims dimensions.Set) *VolField[T] {
	m.CheckLive()
	return &VolField[T]{
		name:      name,
		mesh:      m,
		dims:      dims,
		internal:  make([]T, m.NCells()),
		boundary:  make([]PatchField[T], len(m.Patches())),
		timeIndex: m.Time().Index,
	}
}

func (f *VolField[T]) Name() string               { return f.name }
func (f *VolField[T]) Mesh() *mesh.Mesh           { return f.mesh }
func (f *VolField[T]) Dimensions() dimensions.Set { return f.dims }

func (f *VolField[T]) String() string {
	return fmt.Sprintf("%s %s %s", types.Zero[T]().TypeName(), f.name, f.dims)
}

// Internal returns the cell values for reading
func (f *VolField[T]) Internal() []T {
	f.mesh.CheckLive()
	return f.internal
}

// Ref returns the cell values for writing. The boundary becomes stale and
// the old-time levels are stored when the time step moved on.
func (f *VolField[T]) Ref() []T {
	f.mesh.CheckLive()
	f.storeOldTimes()
	for _, pf := range f.boundary {
		pf.MarkStale()
	}
	return f.internal
}

// Assign overwrites the cell values
func (f *VolField[T]) Assign(vals []T) {
	if len(vals) != len(f.internal) {
		panic(fmt.Errorf("assigning %d values to field %s of %d cells", len(vals), f.name, len(f.internal)))
	}
	copy(f.Ref(), vals)
}

func (f *VolField[T]) Boundary() []PatchField[T] {
	f.mesh.CheckLive()
	return f.boundary
}

// Patch returns the boundary condition of the named patch
func (f *VolField[T]) Patch(name string) (PatchField[T], bool) {
	if p, ok := f.mesh.FindPatch(name); ok {
		return f.boundary[p.Index()], true
	}
	return nil, false
}

// SetPatchField replaces the boundary condition of patch i
func (f *VolField[T]) SetPatchField(i int, pf PatchField[T]) {
	if pf.Patch() != f.mesh.Patches()[i] || pf.Field() != f {
		panic(fmt.Errorf("boundary condition for patch %s of field %s belongs elsewhere",
			f.mesh.Patches()[i].Name, f.name))
	}
	f.boundary[i] = pf
}

// BoundaryValues is the checked read of the face values of patch i. Stale
// non-coupled conditions are re-evaluated. Reading a value-fixing condition
// that was never evaluated, or a coupled patch outside
// CorrectBoundaryConditions, panics.
func (f *VolField[T]) BoundaryValues(i int) []T {
	f.mesh.CheckLive()
	pf := f.boundary[i]
	switch pf.State() {
	case Evaluated:
		return pf.Values()
	case Uninitialised:
		if pf.FixesValue() {
			panic(fmt.Errorf("boundary condition %s on patch %s of field %s read before evaluation",
				pf.Type(), pf.Patch().Name, f.name))
		}
	}
	if pf.Coupled() {
		panic(fmt.Errorf("coupled patch %s of field %s is %s, call CorrectBoundaryConditions first",
			pf.Patch().Name, f.name, pf.State()))
	}
	if err := pf.Evaluate(context.Background()); err != nil {
		panic(err)
	}
	return pf.Values()
}

// CorrectBoundaryConditions updates and evaluates every patch. Patches
// already evaluated in this outer iteration are skipped. All ranks must
// call it together since processor patches exchange here.
func (f *VolField[T]) CorrectBoundaryConditions(ctx context.Context) (err error) {
	var (
		t    = f.mesh.Time()
		key  = [2]int{t.Index, t.OuterIteration}
		todo = make([]PatchField[T], 0, len(f.boundary))
	)
	f.mesh.CheckLive()
	for _, pf := range f.boundary {
		if pf.State() == Evaluated && pf.EvaluatedAt() == key {
			continue
		}
		todo = append(todo, pf)
	}
	for _, pf := range todo {
		if err = pf.UpdateCoeffs(ctx); err != nil {
			return
		}
	}
	for _, pf := range todo {
		if err = pf.Evaluate(ctx); err != nil {
			return
		}
	}
	return
}

// OldTime returns the field at the previous time step. When no old level
// was ever stored the current values are copied, giving a zero rate of
// change on the first step.
func (f *VolField[T]) OldTime() *VolField[T] {
	f.storeOldTimes()
	if f.old == nil {
		f.old = f.snapshot(f.name + "_0")
	}
	return f.old
}

// NOldTimes counts the stored previous time levels, at most two
func (f *VolField[T]) NOldTimes() int {
	f.storeOldTimes()
	return f.nOld
}

func (f *VolField[T]) IsOldTime() bool { return f.isOld }

func (f *VolField[T]) storeOldTimes() {
	if f.isOld {
		return
	}
	idx := f.mesh.Time().Index
	if f.timeIndex == idx {
		return
	}
	f.timeIndex = idx
	prev := f.old
	f.old = f.snapshot(f.name + "_0")
	if prev != nil {
		prev.name = f.name + "_0_0"
		prev.old = nil
		f.old.old = prev
	}
	f.nOld = min(f.nOld+1, maxOldTimes)
}

func (f *VolField[T]) snapshot(name string) (s *VolField[T]) {
	s = newField[T](name, f.mesh, f.dims)
	s.isOld = true
	copy(s.internal, f.internal)
	for i, pf := range f.boundary {
		s.boundary[i] = pf.Snapshot(s)
	}
	return
}

// Copy returns an independent field with the same values and conditions
func (f *VolField[T]) Copy(name string) (c *VolField[T], err error) {
	bcs := make(map[string]Dict, len(f.boundary))
	for _, pf := range f.boundary {
		bcs[pf.Patch().Name] = pf.Dict()
	}
	if c, err = New(name, f.mesh, f.dims, f.internal, bcs); err != nil {
		return
	}
	for i, pf := range f.boundary {
		if pf.State() == Evaluated && !pf.Coupled() {
			if b, ok := c.boundary[i].(interface{ Assign([]T) }); ok {
				b.Assign(pf.Values())
			}
		}
	}
	return
}

// CheckCompatible panics when g lives on a different mesh than f
func CheckCompatible(aName string, a *mesh.Mesh, bName string, b *mesh.Mesh) {
	if a != b {
		panic(fmt.Errorf("%s on mesh %s and %s on mesh %s cannot be combined", aName, a.Name, bName, b.Name))
	}
	a.CheckLive()
}
