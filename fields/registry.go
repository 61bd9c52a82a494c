package fields

import (
	"fmt"
	"sort"
	"strings"

	"github.com/notargets/fvcore/mesh"
	"github.com/notargets/fvcore/types"
)

// Constructor builds a boundary condition of one type from its parameters
type Constructor[T types.Value[T]] func(p *mesh.Patch, f *VolField[T], d Dict) (PatchField[T], error)

// constructors is keyed by value type name, then condition type name. It is
// filled during init and only read afterwards.
var constructors = make(map[string]map[string]any)

// Register adds a boundary condition type for values of type T
func Register[T types.Value[T]](name string, c Constructor[T]) {
	var (
		tn = types.Zero[T]().TypeName()
	)
	if constructors[tn] == nil {
		constructors[tn] = make(map[string]any)
	}
	if _, present := constructors[tn][name]; present {
		panic(fmt.Errorf("boundary condition %s registered twice for %s fields", name, tn))
	}
	constructors[tn][name] = c
}

func registerAll[T types.Value[T]]() {
	Register[T]("fixedValue", NewFixedValue[T])
	Register[T]("zeroGradient", NewZeroGradient[T])
	Register[T]("fixedGradient", NewFixedGradient[T])
	Register[T]("mixed", NewMixed[T])
	Register[T]("calculated", NewCalculatedPatch[T])
	Register[T]("extrapolatedCalculated", NewExtrapolatedCalculated[T])
	Register[T]("empty", NewEmpty[T])
	for name := range coupledKinds {
		Register[T](name, newCoupled[T](name))
	}
}

func init() {
	registerAll[types.Scalar]()
	registerAll[types.Vector]()
	registerAll[types.Tensor]()
}

// BCNames lists the registered boundary condition types for T
func BCNames[T types.Value[T]]() (names []string) {
	for name := range constructors[types.Zero[T]().TypeName()] {
		names = append(names, name)
	}
	sort.Strings(names)
	return
}

// NewPatchField creates the boundary condition named by d["type"]
func NewPatchField[T types.Value[T]](p *mesh.Patch, f *VolField[T], d Dict) (PatchField[T], error) {
	var (
		name = d.Type()
	)
	if name == "" {
		return nil, paramError(d, "type", p, f, ErrMissingParameter, nil)
	}
	c, ok := constructors[types.Zero[T]().TypeName()][name]
	if !ok {
		return nil, fmt.Errorf("%w %q for patch %s of field %s, valid types are: %s",
			ErrUnknownBC, name, p.Name, f.name, strings.Join(BCNames[T](), ", "))
	}
	return c.(Constructor[T])(p, f, d)
}
