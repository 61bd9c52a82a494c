package fields

import (
	"context"
	"fmt"

	"github.com/notargets/fvcore/mesh"
	"github.com/notargets/fvcore/types"
)

// State of the face values of a boundary condition
type State uint8

const (
	Uninitialised State = iota
	Evaluated
	Stale // internal field changed since the last evaluation
)

func (s State) String() string {
	return [...]string{"uninitialised", "evaluated", "stale"}[s]
}

// PatchField is the boundary condition of one patch of a volume field. The
// four coefficient families express the face value and the face normal
// gradient as linear functions of the owner cell value:
//
//	value  = ValueInternalCoeffs*P + ValueBoundaryCoeffs
//	snGrad = GradientInternalCoeffs*P + GradientBoundaryCoeffs
//
// For coupled patches the boundary coefficients multiply the neighbour cell
// value instead of being constant.
type PatchField[T types.Value[T]] interface {
	Type() string
	Patch() *mesh.Patch
	Field() *VolField[T]
	State() State
	Coupled() bool
	// FixesValue is true for conditions that prescribe the face value
	FixesValue() bool

	// Values is the raw face storage, VolField.BoundaryValues is the checked
	// read
	Values() []T
	UpdateCoeffs(ctx context.Context) error
	Evaluate(ctx context.Context) error
	MarkStale()
	EvaluatedAt() [2]int

	SnGrad() []T
	PatchInternalField() []T
	// PatchNeighbourField is nil for non-coupled patches
	PatchNeighbourField() []T

	ValueInternalCoeffs(w []float64) []T
	ValueBoundaryCoeffs(w []float64) []T
	GradientInternalCoeffs(deltaCoeffs []float64) []T
	GradientBoundaryCoeffs(deltaCoeffs []float64) []T

	// Dict returns the parameters needed to recreate the condition
	Dict() Dict
	// Snapshot copies the condition for an old-time field
	Snapshot(f *VolField[T]) PatchField[T]
}

// Base carries the storage and state shared by all boundary conditions
type Base[T types.Value[T]] struct {
	patch   *mesh.Patch
	field   *VolField[T]
	values  []T
	state   State
	evalKey [2]int
}

func NewBase[T types.Value[T]](p *mesh.Patch, f *VolField[T]) Base[T] {
	return Base[T]{
		patch:  p,
		field:  f,
		values: make([]T, p.Size),
	}
}

func (b *Base[T]) Patch() *mesh.Patch  { return b.patch }
func (b *Base[T]) Field() *VolField[T] { return b.field }
func (b *Base[T]) State() State        { return b.state }
func (b *Base[T]) Values() []T         { return b.values }
func (b *Base[T]) Coupled() bool       { return false }
func (b *Base[T]) FixesValue() bool    { return false }
func (b *Base[T]) EvaluatedAt() [2]int { return b.evalKey }

func (b *Base[T]) MarkStale() {
	if b.state == Evaluated {
		b.state = Stale
	}
}

func (b *Base[T]) UpdateCoeffs(context.Context) error { return nil }

func (b *Base[T]) PatchNeighbourField() []T { return nil }

// SetEvaluated commits the face values for the current outer iteration
func (b *Base[T]) SetEvaluated() {
	t := b.field.mesh.Time()
	b.state = Evaluated
	b.evalKey = [2]int{t.Index, t.OuterIteration}
}

// Assign overwrites the face values and marks them evaluated
func (b *Base[T]) Assign(vals []T) {
	if len(vals) != len(b.values) {
		panic(fmt.Errorf("assigning %d values to patch %s of %d faces", len(vals), b.patch.Name, b.patch.Size))
	}
	copy(b.values, vals)
	b.SetEvaluated()
}

func (b *Base[T]) PatchInternalField() (out []T) {
	var (
		in = b.field.internal
	)
	out = make([]T, b.patch.Size)
	for i, c := range b.patch.FaceCells() {
		out[i] = in[c]
	}
	return
}

func (b *Base[T]) deltaCoeffs() []float64 {
	return mesh.PatchSlice(b.patch, b.field.mesh.DeltaCoeffs())
}

// checked panics when the face values have never been evaluated
func (b *Base[T]) checked(typeName string) []T {
	if b.state == Uninitialised {
		panic(fmt.Errorf("boundary condition %s on patch %s of field %s used before evaluation",
			typeName, b.patch.Name, b.field.name))
	}
	return b.values
}

// snGradFromValues is (face - owner) * deltaCoeffs
func (b *Base[T]) snGradFromValues(vals []T) (sn []T) {
	var (
		pif = b.PatchInternalField()
		dc  = b.deltaCoeffs()
	)
	sn = make([]T, len(vals))
	for i := range vals {
		sn[i] = vals[i].Sub(pif[i]).Scale(dc[i])
	}
	return
}

func fill[T any](n int, v T) (out []T) {
	out = make([]T, n)
	for i := range out {
		out[i] = v
	}
	return
}

func scaleOne[T types.Value[T]](s []float64) (out []T) {
	var (
		one = types.One[T]()
	)
	out = make([]T, len(s))
	for i, v := range s {
		out[i] = one.Scale(v)
	}
	return
}

func notImplicit(typeName, patch, field string) error {
	return fmt.Errorf("boundary condition %s on patch %s of field %s has no implicit coefficients, "+
		"a field with a derived or calculated boundary cannot be solved for", typeName, patch, field)
}
