package InputParameters

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ghodss/yaml"

	"github.com/notargets/fvcore/dimensions"
	"github.com/notargets/fvcore/fields"
	"github.com/notargets/fvcore/mesh"
	"github.com/notargets/fvcore/mesh/decompose"
	"github.com/notargets/fvcore/mesh/readers"
	"github.com/notargets/fvcore/schemes"
	"github.com/notargets/fvcore/solvers"
	"github.com/notargets/fvcore/types"
)

var ErrMissing = errors.New("missing case parameter")

// MeshParameters selects a mesh file, or a block mesh when File is empty
type MeshParameters struct {
	File    string            `json:"file"`
	Cells   [3]int            `json:"cells"`
	Lengths [3]float64        `json:"lengths"`
	Origin  [3]float64        `json:"origin"`
	Patches map[string]string `json:"patches"` // patch name to type, e.g. "wall", "empty", "cyclic"
}

// FieldParameters hold the initial state of one field
type FieldParameters struct {
	Dimensions    string                 `json:"dimensions"` // e.g. "[0 1 -1 0 0 0 0]"
	InternalField any                    `json:"internalField"`
	BoundaryField map[string]fields.Dict `json:"boundaryField"`
}

// CaseParameters are read from the YAML case file
type CaseParameters struct {
	Title         string                      `json:"Title"`
	StartTime     float64                     `json:"StartTime"`
	EndTime       float64                     `json:"EndTime"`
	DeltaT        float64                     `json:"DeltaT"`
	WriteInterval int                         `json:"WriteInterval"`
	WriteFormat   string                      `json:"WriteFormat"`
	NOuter        int                         `json:"NOuterCorrectors"`
	Diffusivity   float64                     `json:"Diffusivity"`
	Mesh          MeshParameters              `json:"Mesh"`
	Schemes       schemes.Dictionary          `json:"Schemes"`
	Solvers       map[string]solvers.Controls `json:"Solvers"`
	Relaxation    map[string]float64          `json:"RelaxationFactors"`
	Fields        map[string]FieldParameters  `json:"Fields"`
	Decomposition decompose.Config            `json:"Decomposition"`
}

// Parse reads a case file. Scheme entries of the file are added to the
// default dictionary.
func (cp *CaseParameters) Parse(data []byte) (err error) {
	cp.Schemes = schemes.DefaultDictionary()
	cp.Decomposition = decompose.DefaultConfig(1)
	if err = yaml.Unmarshal(data, cp); err != nil {
		return fmt.Errorf("reading case parameters: %w", err)
	}
	return cp.Validate()
}

func (cp *CaseParameters) Validate() error {
	if cp.DeltaT <= 0 {
		return fmt.Errorf("%w: DeltaT must be positive, have %g", ErrMissing, cp.DeltaT)
	}
	if cp.EndTime < cp.StartTime {
		return fmt.Errorf("EndTime %g is before StartTime %g", cp.EndTime, cp.StartTime)
	}
	for name, a := range cp.Relaxation {
		if a <= 0 || a > 1 {
			return fmt.Errorf("relaxation factor for %s must be in (0, 1], have %g", name, a)
		}
	}
	if cp.Mesh.File == "" {
		for d := 0; d < 3; d++ {
			if cp.Mesh.Cells[d] < 1 || cp.Mesh.Lengths[d] <= 0 {
				return fmt.Errorf("%w: block mesh needs cells and lengths in every direction", ErrMissing)
			}
		}
	}
	if _, err := schemes.New(cp.Schemes); err != nil {
		return err
	}
	return nil
}

// SolverControls returns the controls configured for field
func (cp *CaseParameters) SolverControls(field string) (c solvers.Controls, err error) {
	var ok bool
	if c, ok = cp.Solvers[field]; !ok {
		err = fmt.Errorf("%w: no solver controls for field %s", ErrMissing, field)
	}
	return
}

// RelaxationFactor is 1 for fields that are not relaxed
func (cp *CaseParameters) RelaxationFactor(field string) float64 {
	if a, ok := cp.Relaxation[field]; ok {
		return a
	}
	return 1
}

func (cp *CaseParameters) patchKinds() (kinds map[string]mesh.Kind, err error) {
	kinds = make(map[string]mesh.Kind, len(cp.Mesh.Patches))
	for name, typ := range cp.Mesh.Patches {
		if kinds[name], err = mesh.ParseKind(typ); err != nil {
			return nil, fmt.Errorf("patch %s: %w", name, err)
		}
	}
	return
}

// NewMesh builds or reads the case mesh on a clock set up from the case times
func (cp *CaseParameters) NewMesh(name string) (m *mesh.Mesh, err error) {
	var (
		kinds map[string]mesh.Kind
		opts  = mesh.Options{Name: name, Time: mesh.NewTime(cp.StartTime, cp.DeltaT)}
	)
	if kinds, err = cp.patchKinds(); err != nil {
		return
	}
	if cp.Mesh.File != "" {
		opts.Kinds = kinds
		return readers.ReadMeshFile(cp.Mesh.File, opts)
	}
	return mesh.Block{
		N:      cp.Mesh.Cells,
		L:      cp.Mesh.Lengths,
		Origin: types.Vector(cp.Mesh.Origin),
		Kinds:  kinds,
	}.Build(opts)
}

// InitialValues reads the internal field of name over nCells cells
func InitialValues[T types.Value[T]](cp *CaseParameters, name string, nCells int) (vals []T, err error) {
	fp, ok := cp.Fields[name]
	if !ok {
		return nil, fmt.Errorf("%w: no field %s", ErrMissing, name)
	}
	if fp.InternalField == nil {
		return nil, fmt.Errorf("%w: field %s has no internalField", ErrMissing, name)
	}
	if vals, err = fields.DecodeValues[T](fp.InternalField, nCells); err != nil {
		return nil, fmt.Errorf("field %s: %w", name, err)
	}
	return
}

// NewField builds field name on m from the case. internal may be nil when
// the internal field is uniform or m is the undecomposed mesh.
func NewField[T types.Value[T]](cp *CaseParameters, name string, m *mesh.Mesh, internal []T) (
	f *fields.VolField[T], err error) {
	var (
		dims dimensions.Set
	)
	fp, ok := cp.Fields[name]
	if !ok {
		return nil, fmt.Errorf("%w: no field %s", ErrMissing, name)
	}
	if dims, err = dimensions.Parse(fp.Dimensions); err != nil {
		return nil, fmt.Errorf("field %s: %w", name, err)
	}
	if internal == nil {
		if internal, err = InitialValues[T](cp, name, m.NCells()); err != nil {
			return
		}
	}
	return fields.New(name, m, dims, internal, fp.BoundaryField)
}

func (cp *CaseParameters) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", cp.Title)
	fmt.Printf("%8.5f\t\t= StartTime\n", cp.StartTime)
	fmt.Printf("%8.5f\t\t= EndTime\n", cp.EndTime)
	fmt.Printf("%8.5f\t\t= DeltaT\n", cp.DeltaT)
	fmt.Printf("%8.5f\t\t= Diffusivity\n", cp.Diffusivity)
	fmt.Printf("[%d]\t\t\t= Subdomains\n", cp.Decomposition.NumPartitions)
	names := make([]string, 0, len(cp.Fields))
	for name := range cp.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fp := cp.Fields[name]
		fmt.Printf("Fields[%s] %s\n", name, fp.Dimensions)
		patches := make([]string, 0, len(fp.BoundaryField))
		for p := range fp.BoundaryField {
			patches = append(patches, p)
		}
		sort.Strings(patches)
		for _, p := range patches {
			fmt.Printf("\t%s = %v\n", p, fp.BoundaryField[p])
		}
		if c, ok := cp.Solvers[name]; ok {
			fmt.Printf("\tsolver %s %s, tolerance %g, relTol %g, relax %g\n",
				c.Solver, c.Preconditioner, c.Tolerance, c.RelTol, cp.RelaxationFactor(name))
		}
	}
}
