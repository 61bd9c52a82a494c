package fields

import (
	"context"
	"fmt"

	"github.com/notargets/fvcore/mesh"
	"github.com/notargets/fvcore/types"
)

// FixedValue prescribes the face values
type FixedValue[T types.Value[T]] struct {
	Base[T]
}

func NewFixedValue[T types.Value[T]](p *mesh.Patch, f *VolField[T], d Dict) (PatchField[T], error) {
	vals, err := readParam(d, "value", p, f)
	if err != nil {
		return nil, err
	}
	bc := &FixedValue[T]{Base: NewBase(p, f)}
	copy(bc.values, vals)
	return bc, nil
}

func (bc *FixedValue[T]) Type() string     { return "fixedValue" }
func (bc *FixedValue[T]) FixesValue() bool { return true }

// SetValue replaces the prescribed values, they take effect immediately
func (bc *FixedValue[T]) SetValue(vals []T) { bc.Assign(vals) }

func (bc *FixedValue[T]) Evaluate(context.Context) error {
	bc.SetEvaluated()
	return nil
}

func (bc *FixedValue[T]) SnGrad() []T {
	return bc.snGradFromValues(bc.checked(bc.Type()))
}

func (bc *FixedValue[T]) ValueInternalCoeffs([]float64) []T {
	return make([]T, bc.patch.Size)
}

func (bc *FixedValue[T]) ValueBoundaryCoeffs([]float64) []T {
	return append([]T(nil), bc.checked(bc.Type())...)
}

func (bc *FixedValue[T]) GradientInternalCoeffs(dc []float64) []T {
	out := scaleOne[T](dc)
	for i := range out {
		out[i] = out[i].Scale(-1)
	}
	return out
}

func (bc *FixedValue[T]) GradientBoundaryCoeffs(dc []float64) (out []T) {
	vals := bc.checked(bc.Type())
	out = make([]T, len(vals))
	for i, v := range vals {
		out[i] = v.Scale(dc[i])
	}
	return
}

func (bc *FixedValue[T]) Dict() Dict {
	return Dict{"type": bc.Type(), "value": EncodeValues(bc.values)}
}

func (bc *FixedValue[T]) Snapshot(f *VolField[T]) PatchField[T] { return snapshotOf(&bc.Base, f) }

// ZeroGradient copies the owner cell value to the face
type ZeroGradient[T types.Value[T]] struct {
	Base[T]
}

func NewZeroGradient[T types.Value[T]](p *mesh.Patch, f *VolField[T], _ Dict) (PatchField[T], error) {
	return &ZeroGradient[T]{Base: NewBase(p, f)}, nil
}

func (bc *ZeroGradient[T]) Type() string { return "zeroGradient" }

func (bc *ZeroGradient[T]) Evaluate(context.Context) error {
	bc.Assign(bc.PatchInternalField())
	return nil
}

func (bc *ZeroGradient[T]) SnGrad() []T { return make([]T, bc.patch.Size) }

func (bc *ZeroGradient[T]) ValueInternalCoeffs([]float64) []T {
	return fill(bc.patch.Size, types.One[T]())
}

func (bc *ZeroGradient[T]) ValueBoundaryCoeffs([]float64) []T {
	return make([]T, bc.patch.Size)
}

func (bc *ZeroGradient[T]) GradientInternalCoeffs([]float64) []T {
	return make([]T, bc.patch.Size)
}

func (bc *ZeroGradient[T]) GradientBoundaryCoeffs([]float64) []T {
	return make([]T, bc.patch.Size)
}

func (bc *ZeroGradient[T]) Dict() Dict { return Dict{"type": bc.Type()} }

func (bc *ZeroGradient[T]) Snapshot(f *VolField[T]) PatchField[T] { return snapshotOf(&bc.Base, f) }

// FixedGradient prescribes the face normal gradient
type FixedGradient[T types.Value[T]] struct {
	Base[T]
	Gradient []T
}

func NewFixedGradient[T types.Value[T]](p *mesh.Patch, f *VolField[T], d Dict) (PatchField[T], error) {
	g, err := readParam(d, "gradient", p, f)
	if err != nil {
		return nil, err
	}
	return &FixedGradient[T]{Base: NewBase(p, f), Gradient: g}, nil
}

func (bc *FixedGradient[T]) Type() string { return "fixedGradient" }

func (bc *FixedGradient[T]) Evaluate(context.Context) error {
	var (
		pif = bc.PatchInternalField()
		dc  = bc.deltaCoeffs()
	)
	for i := range pif {
		pif[i] = pif[i].Add(bc.Gradient[i].Scale(1 / dc[i]))
	}
	bc.Assign(pif)
	return nil
}

func (bc *FixedGradient[T]) SnGrad() []T { return append([]T(nil), bc.Gradient...) }

func (bc *FixedGradient[T]) ValueInternalCoeffs([]float64) []T {
	return fill(bc.patch.Size, types.One[T]())
}

func (bc *FixedGradient[T]) ValueBoundaryCoeffs([]float64) (out []T) {
	dc := bc.deltaCoeffs()
	out = make([]T, bc.patch.Size)
	for i, g := range bc.Gradient {
		out[i] = g.Scale(1 / dc[i])
	}
	return
}

func (bc *FixedGradient[T]) GradientInternalCoeffs([]float64) []T {
	return make([]T, bc.patch.Size)
}

func (bc *FixedGradient[T]) GradientBoundaryCoeffs([]float64) []T {
	return append([]T(nil), bc.Gradient...)
}

func (bc *FixedGradient[T]) Dict() Dict {
	return Dict{"type": bc.Type(), "gradient": EncodeValues(bc.Gradient)}
}

func (bc *FixedGradient[T]) Snapshot(f *VolField[T]) PatchField[T] { return snapshotOf(&bc.Base, f) }

// Mixed blends a fixed value and a fixed gradient per face:
// value = f*RefValue + (1-f)*(P + RefGradient/deltaCoeffs)
type Mixed[T types.Value[T]] struct {
	Base[T]
	RefValue      []T
	RefGradient   []T
	ValueFraction []float64
}

func NewMixed[T types.Value[T]](p *mesh.Patch, f *VolField[T], d Dict) (PatchField[T], error) {
	bc := &Mixed[T]{Base: NewBase(p, f)}
	var err error
	if bc.RefValue, err = readParam(d, "refValue", p, f); err != nil {
		return nil, err
	}
	if bc.RefGradient, err = readParam(d, "refGradient", p, f); err != nil {
		return nil, err
	}
	raw, ok := d["valueFraction"]
	if !ok {
		return nil, paramError(d, "valueFraction", p, f, ErrMissingParameter, nil)
	}
	if bc.ValueFraction, err = DecodeFloats(raw, p.Size); err != nil {
		return nil, paramError(d, "valueFraction", p, f, ErrInvalidParameter, err)
	}
	for i, vf := range bc.ValueFraction {
		if vf < 0 || vf > 1 {
			return nil, paramError(d, "valueFraction", p, f, ErrInvalidParameter,
				fmt.Errorf("face %d has fraction %g outside [0,1]", i, vf))
		}
	}
	return bc, nil
}

func (bc *Mixed[T]) Type() string { return "mixed" }

func (bc *Mixed[T]) Evaluate(context.Context) error {
	var (
		pif = bc.PatchInternalField()
		dc  = bc.deltaCoeffs()
	)
	for i, f := range bc.ValueFraction {
		grad := pif[i].Add(bc.RefGradient[i].Scale(1 / dc[i]))
		pif[i] = bc.RefValue[i].Scale(f).Add(grad.Scale(1 - f))
	}
	bc.Assign(pif)
	return nil
}

func (bc *Mixed[T]) SnGrad() (out []T) {
	var (
		pif = bc.PatchInternalField()
		dc  = bc.deltaCoeffs()
	)
	out = make([]T, bc.patch.Size)
	for i, f := range bc.ValueFraction {
		out[i] = bc.RefValue[i].Sub(pif[i]).Scale(f * dc[i]).Add(bc.RefGradient[i].Scale(1 - f))
	}
	return
}

func (bc *Mixed[T]) ValueInternalCoeffs([]float64) (out []T) {
	out = make([]T, bc.patch.Size)
	for i, f := range bc.ValueFraction {
		out[i] = types.One[T]().Scale(1 - f)
	}
	return
}

func (bc *Mixed[T]) ValueBoundaryCoeffs([]float64) (out []T) {
	dc := bc.deltaCoeffs()
	out = make([]T, bc.patch.Size)
	for i, f := range bc.ValueFraction {
		out[i] = bc.RefValue[i].Scale(f).Add(bc.RefGradient[i].Scale((1 - f) / dc[i]))
	}
	return
}

func (bc *Mixed[T]) GradientInternalCoeffs(dc []float64) (out []T) {
	out = make([]T, bc.patch.Size)
	for i, f := range bc.ValueFraction {
		out[i] = types.One[T]().Scale(-f * dc[i])
	}
	return
}

func (bc *Mixed[T]) GradientBoundaryCoeffs(dc []float64) (out []T) {
	out = make([]T, bc.patch.Size)
	for i, f := range bc.ValueFraction {
		out[i] = bc.RefValue[i].Scale(f * dc[i]).Add(bc.RefGradient[i].Scale(1 - f))
	}
	return
}

func (bc *Mixed[T]) Dict() Dict {
	return Dict{
		"type":          bc.Type(),
		"refValue":      EncodeValues(bc.RefValue),
		"refGradient":   EncodeValues(bc.RefGradient),
		"valueFraction": EncodeFloats(bc.ValueFraction),
	}
}

func (bc *Mixed[T]) Snapshot(f *VolField[T]) PatchField[T] { return snapshotOf(&bc.Base, f) }

// Calculated holds face values computed by an operator. It has no implicit
// form and cannot be the boundary of a field that is solved for.
type Calculated[T types.Value[T]] struct {
	Base[T]
}

func NewCalculatedPatch[T types.Value[T]](p *mesh.Patch, f *VolField[T], d Dict) (PatchField[T], error) {
	vals, err := readParam(d, "value", p, f)
	if err != nil {
		return nil, err
	}
	bc := &Calculated[T]{Base: NewBase(p, f)}
	bc.Assign(vals)
	return bc, nil
}

func (bc *Calculated[T]) Type() string { return "calculated" }

func (bc *Calculated[T]) Evaluate(context.Context) error {
	bc.SetEvaluated()
	return nil
}

func (bc *Calculated[T]) SnGrad() []T { return bc.snGradFromValues(bc.values) }

func (bc *Calculated[T]) ValueInternalCoeffs([]float64) []T {
	panic(notImplicit(bc.Type(), bc.patch.Name, bc.field.name))
}

func (bc *Calculated[T]) ValueBoundaryCoeffs([]float64) []T {
	panic(notImplicit(bc.Type(), bc.patch.Name, bc.field.name))
}

func (bc *Calculated[T]) GradientInternalCoeffs([]float64) []T {
	panic(notImplicit(bc.Type(), bc.patch.Name, bc.field.name))
}

func (bc *Calculated[T]) GradientBoundaryCoeffs([]float64) []T {
	panic(notImplicit(bc.Type(), bc.patch.Name, bc.field.name))
}

func (bc *Calculated[T]) Dict() Dict {
	return Dict{"type": bc.Type(), "value": EncodeValues(bc.values)}
}

func (bc *Calculated[T]) Snapshot(f *VolField[T]) PatchField[T] { return snapshotOf(&bc.Base, f) }

// ExtrapolatedCalculated is a calculated condition that evaluates to the
// owner cell value, used for the results of explicit operators
type ExtrapolatedCalculated[T types.Value[T]] struct {
	Calculated[T]
}

func NewExtrapolatedCalculated[T types.Value[T]](p *mesh.Patch, f *VolField[T], _ Dict) (PatchField[T], error) {
	return &ExtrapolatedCalculated[T]{Calculated[T]{Base: NewBase(p, f)}}, nil
}

func (bc *ExtrapolatedCalculated[T]) Type() string { return "extrapolatedCalculated" }

func (bc *ExtrapolatedCalculated[T]) Evaluate(context.Context) error {
	bc.Assign(bc.PatchInternalField())
	return nil
}

func (bc *ExtrapolatedCalculated[T]) Dict() Dict { return Dict{"type": bc.Type()} }

// Empty marks the unused direction of a one or two dimensional case.
// Operators skip empty patches.
type Empty[T types.Value[T]] struct {
	Base[T]
}

func NewEmpty[T types.Value[T]](p *mesh.Patch, f *VolField[T], _ Dict) (PatchField[T], error) {
	if p.Kind != mesh.KindEmpty {
		return nil, fmt.Errorf("%w: empty condition on patch %s of kind %s", ErrInvalidParameter, p.Name, p.Kind)
	}
	return &Empty[T]{Base: NewBase(p, f)}, nil
}

func (bc *Empty[T]) Type() string { return "empty" }

func (bc *Empty[T]) Evaluate(context.Context) error {
	bc.Assign(bc.PatchInternalField())
	return nil
}

func (bc *Empty[T]) SnGrad() []T                           { return make([]T, bc.patch.Size) }
func (bc *Empty[T]) ValueInternalCoeffs([]float64) []T     { return make([]T, bc.patch.Size) }
func (bc *Empty[T]) ValueBoundaryCoeffs([]float64) []T     { return make([]T, bc.patch.Size) }
func (bc *Empty[T]) GradientInternalCoeffs([]float64) []T  { return make([]T, bc.patch.Size) }
func (bc *Empty[T]) GradientBoundaryCoeffs([]float64) []T  { return make([]T, bc.patch.Size) }
func (bc *Empty[T]) Dict() Dict                            { return Dict{"type": bc.Type()} }
func (bc *Empty[T]) Snapshot(f *VolField[T]) PatchField[T] { return snapshotOf(&bc.Base, f) }

// Coupled is the condition of cyclic, processor and non-conformal cyclic
// patches. The face value interpolates between the owner and the cell on
// the other side of the coupling with the mesh weights.
type Coupled[T types.Value[T]] struct {
	Base[T]
	typeName string
	nbr      []T
	updated  bool
}

var coupledKinds = map[string]mesh.Kind{
	"cyclic":             mesh.KindCyclic,
	"processor":          mesh.KindProcessor,
	"nonConformalCyclic": mesh.KindNonConformal,
}

// CoupledTypeName is the condition type forced onto a coupled patch kind
func CoupledTypeName(k mesh.Kind) string {
	for name, kind := range coupledKinds {
		if kind == k {
			return name
		}
	}
	return ""
}

func newCoupled[T types.Value[T]](typeName string) Constructor[T] {
	return func(p *mesh.Patch, f *VolField[T], _ Dict) (PatchField[T], error) {
		if coupledKinds[typeName] != p.Kind {
			return nil, fmt.Errorf("%w: %s condition on patch %s of kind %s",
				ErrInvalidParameter, typeName, p.Name, p.Kind)
		}
		return &Coupled[T]{Base: NewBase(p, f), typeName: typeName}, nil
	}
}

func (bc *Coupled[T]) Type() string  { return bc.typeName }
func (bc *Coupled[T]) Coupled() bool { return true }

func (bc *Coupled[T]) MarkStale() {
	bc.Base.MarkStale()
	bc.updated = false
}

// UpdateCoeffs fetches the neighbour cell values. On processor patches
// this blocks until the neighbouring rank makes the matching call.
func (bc *Coupled[T]) UpdateCoeffs(ctx context.Context) (err error) {
	if bc.updated {
		return
	}
	var (
		m   = bc.field.mesh
		nbr []float64
	)
	if nbr, err = m.NeighbourValues(ctx, bc.patch, types.Flatten(bc.field.internal), types.NComponents[T]()); err != nil {
		return fmt.Errorf("field %s patch %s: %w", bc.field.name, bc.patch.Name, err)
	}
	bc.nbr = types.Unflatten[T](nbr)
	bc.updated = true
	return
}

func (bc *Coupled[T]) Evaluate(ctx context.Context) (err error) {
	if err = bc.UpdateCoeffs(ctx); err != nil {
		return
	}
	var (
		w   = mesh.PatchSlice(bc.patch, bc.field.mesh.Weights())
		pif = bc.PatchInternalField()
	)
	for i := range pif {
		pif[i] = pif[i].Scale(w[i]).Add(bc.nbr[i].Scale(1 - w[i]))
	}
	bc.Assign(pif)
	bc.updated = false
	return
}

func (bc *Coupled[T]) PatchNeighbourField() []T {
	if bc.nbr == nil {
		panic(fmt.Errorf("coupled patch %s of field %s read before its neighbour values were exchanged",
			bc.patch.Name, bc.field.name))
	}
	return bc.nbr
}

func (bc *Coupled[T]) SnGrad() (out []T) {
	var (
		nbr = bc.PatchNeighbourField()
		pif = bc.PatchInternalField()
		dc  = bc.deltaCoeffs()
	)
	out = make([]T, len(pif))
	for i := range pif {
		out[i] = nbr[i].Sub(pif[i]).Scale(dc[i])
	}
	return
}

func (bc *Coupled[T]) ValueInternalCoeffs(w []float64) []T { return scaleOne[T](w) }

func (bc *Coupled[T]) ValueBoundaryCoeffs(w []float64) (out []T) {
	out = make([]T, len(w))
	for i, wi := range w {
		out[i] = types.One[T]().Scale(1 - wi)
	}
	return
}

func (bc *Coupled[T]) GradientInternalCoeffs(dc []float64) (out []T) {
	out = scaleOne[T](dc)
	for i := range out {
		out[i] = out[i].Scale(-1)
	}
	return
}

func (bc *Coupled[T]) GradientBoundaryCoeffs(dc []float64) []T { return scaleOne[T](dc) }

func (bc *Coupled[T]) Dict() Dict { return Dict{"type": bc.typeName} }

func (bc *Coupled[T]) Snapshot(f *VolField[T]) PatchField[T] { return snapshotOf(&bc.Base, f) }

// snapshotOf copies the face values of b into a calculated condition of f
func snapshotOf[T types.Value[T]](b *Base[T], f *VolField[T]) PatchField[T] {
	bc := &Calculated[T]{Base: NewBase(b.patch, f)}
	copy(bc.values, b.values)
	bc.state, bc.evalKey = b.state, b.evalKey
	return bc
}

func paramError[T types.Value[T]](d Dict, key string, p *mesh.Patch, f *VolField[T], kind, cause error) error {
	return &ParameterError{Param: key, Type: d.Type(), Patch: p.Name, Field: f.name, Err: kind, Cause: cause}
}

func readParam[T types.Value[T]](d Dict, key string, p *mesh.Patch, f *VolField[T]) ([]T, error) {
	raw, ok := d[key]
	if !ok {
		return nil, paramError(d, key, p, f, ErrMissingParameter, nil)
	}
	vals, err := DecodeValues[T](raw, p.Size)
	if err != nil {
		return nil, paramError(d, key, p, f, ErrInvalidParameter, err)
	}
	return vals, nil
}
