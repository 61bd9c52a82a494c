package mesh

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/notargets/fvcore/types"
)

// ElementType represents the element shapes accepted by FromElements
type ElementType uint8

const (
	Line ElementType = iota
	Triangle
	Quad
	Tet
	Hex
	Prism
	Pyramid
)

func (e ElementType) String() string {
	return [...]string{"Line", "Triangle", "Quad", "Tet", "Hex", "Prism", "Pyramid"}[e]
}

func (e ElementType) NumNodes() int {
	return [...]int{2, 3, 4, 4, 8, 6, 5}[e]
}

func (e ElementType) Dimension() int {
	switch e {
	case Line:
		return 1
	case Triangle, Quad:
		return 2
	default:
		return 3
	}
}

// ElementFaces returns the faces of a 3D element as vertex lists, ordered so
// the right hand normal points out of the element
func ElementFaces(elemType ElementType, v []int) [][]int {
	switch elemType {
	case Tet:
		return [][]int{
			{v[0], v[2], v[1]},
			{v[0], v[1], v[3]},
			{v[1], v[2], v[3]},
			{v[0], v[3], v[2]},
		}
	case Hex:
		return [][]int{
			{v[0], v[3], v[2], v[1]}, // bottom
			{v[4], v[5], v[6], v[7]}, // top
			{v[0], v[1], v[5], v[4]},
			{v[1], v[2], v[6], v[5]},
			{v[2], v[3], v[7], v[6]},
			{v[3], v[0], v[4], v[7]},
		}
	case Prism:
		return [][]int{
			{v[0], v[2], v[1]}, // bottom tri
			{v[3], v[4], v[5]}, // top tri
			{v[0], v[1], v[4], v[3]},
			{v[1], v[2], v[5], v[4]},
			{v[2], v[0], v[3], v[5]},
		}
	case Pyramid:
		return [][]int{
			{v[0], v[3], v[2], v[1]}, // base quad
			{v[0], v[1], v[4]},
			{v[1], v[2], v[4]},
			{v[2], v[3], v[4]},
			{v[3], v[0], v[4]},
		}
	default:
		return [][]int{}
	}
}

// Elements is element-to-vertex connectivity. Boundary maps patch names to
// boundary faces given by their vertices (3D) or to boundary edges (2D).
// A 2D mesh of triangles and quads is extruded one cell of Thickness in z and
// gets an extra empty patch "frontAndBack".
type Elements struct {
	Points    []types.Vector
	Conn      [][]int
	Types     []ElementType
	Boundary  map[string][][]int
	Kinds     map[string]Kind
	Thickness float64
}

// DefaultPatch collects boundary faces not named in Elements.Boundary
const DefaultPatch = "defaultFaces"

func faceKey(verts []int) string {
	sorted := append([]int(nil), verts...)
	sort.Ints(sorted)
	var sb strings.Builder
	for i, v := range sorted {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(strconv.Itoa(v))
	}
	return sb.String()
}

type elemFace struct {
	verts     []int
	owner     int
	neighbour int
}

// FromElements builds owner/neighbour face addressing from element
// connectivity
func FromElements(el Elements, opts Options) (m *Mesh, err error) {
	var (
		points   = el.Points
		conn     = el.Conn
		types3D  = el.Types
		boundary = el.Boundary
		is2D     bool
	)
	if len(conn) != len(el.Types) {
		return nil, fmt.Errorf("%w: %d elements with %d types", ErrInvalidMesh, len(conn), len(el.Types))
	}
	for e, t := range el.Types {
		if len(conn[e]) != t.NumNodes() {
			return nil, fmt.Errorf("%w: element %d of type %s has %d nodes", ErrInvalidMesh, e, t, len(conn[e]))
		}
		if t.Dimension() == 2 {
			is2D = true
		} else if is2D || t.Dimension() != 3 {
			return nil, fmt.Errorf("%w: element %d of type %s cannot be mixed into this mesh", ErrInvalidMesh, e, t)
		}
	}
	if is2D {
		if points, conn, types3D, boundary, err = extrude(el); err != nil {
			return nil, err
		}
	}
	var (
		faceMap = make(map[string]int)
		allF    []*elemFace
	)
	for e, verts := range conn {
		for _, fv := range ElementFaces(types3D[e], verts) {
			key := faceKey(fv)
			if id, exists := faceMap[key]; exists {
				f := allF[id]
				if f.neighbour >= 0 {
					return nil, fmt.Errorf("%w: face %v shared by more than two elements", ErrInvalidMesh, fv)
				}
				f.neighbour = e
				continue
			}
			faceMap[key] = len(allF)
			allF = append(allF, &elemFace{verts: fv, owner: e, neighbour: -1})
		}
	}
	centres := make([]types.Vector, len(conn))
	for e, verts := range conn {
		for _, v := range verts {
			centres[e] = centres[e].Add(points[v])
		}
		centres[e] = centres[e].Scale(1 / float64(len(verts)))
	}
	orient := func(f *elemFace) []int {
		ctr, area := faceGeometry(points, f.verts)
		if area.Dot(ctr.Sub(centres[f.owner])) < 0 {
			r := make([]int, len(f.verts))
			for i, v := range f.verts {
				r[len(f.verts)-1-i] = v
			}
			return r
		}
		return f.verts
	}
	var (
		internal []*elemFace
		byPatch  = make(map[string][]*elemFace)
		bKeys    = make(map[string]string)
	)
	for name, bfaces := range boundary {
		for _, fv := range bfaces {
			bKeys[faceKey(fv)] = name
		}
	}
	for _, f := range allF {
		if f.neighbour >= 0 {
			if f.neighbour < f.owner {
				f.owner, f.neighbour = f.neighbour, f.owner
			}
			internal = append(internal, f)
			continue
		}
		name, ok := bKeys[faceKey(f.verts)]
		if !ok {
			name = DefaultPatch
		}
		byPatch[name] = append(byPatch[name], f)
	}
	sort.SliceStable(internal, func(i, j int) bool {
		if internal[i].owner != internal[j].owner {
			return internal[i].owner < internal[j].owner
		}
		return internal[i].neighbour < internal[j].neighbour
	})
	var (
		faces     [][]int
		owner     []int
		neighbour []int
		patches   []*Patch
		names     []string
	)
	for _, f := range internal {
		faces = append(faces, orient(f))
		owner = append(owner, f.owner)
		neighbour = append(neighbour, f.neighbour)
	}
	for name := range boundary {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(byPatch[DefaultPatch]) > 0 {
		names = append(names, DefaultPatch)
	}
	for _, name := range names {
		p := &Patch{Name: name, Kind: KindPatch, Start: len(faces), Size: len(byPatch[name])}
		if kind, ok := el.Kinds[name]; ok {
			p.Kind = kind
		} else if kind, ok = opts.Kinds[name]; ok {
			p.Kind = kind
		}
		if name == frontAndBack {
			p.Kind = KindEmpty
		}
		for _, f := range byPatch[name] {
			faces = append(faces, orient(f))
			owner = append(owner, f.owner)
		}
		patches = append(patches, p)
	}
	return New(points, faces, owner, neighbour, patches, opts)
}

const frontAndBack = "frontAndBack"

func extrude(el Elements) (points []types.Vector, conn [][]int, elTypes []ElementType,
	boundary map[string][][]int, err error) {
	var (
		np        = len(el.Points)
		thickness = el.Thickness
	)
	if thickness == 0 {
		thickness = 1
	}
	points = make([]types.Vector, 2*np)
	for i, p := range el.Points {
		points[i] = types.Vector{p[0], p[1], 0}
		points[i+np] = types.Vector{p[0], p[1], thickness}
	}
	conn = make([][]int, len(el.Conn))
	elTypes = make([]ElementType, len(el.Conn))
	var fb [][]int
	for e, v := range el.Conn {
		switch el.Types[e] {
		case Triangle:
			conn[e] = []int{v[0], v[1], v[2], v[0] + np, v[1] + np, v[2] + np}
			elTypes[e] = Prism
		case Quad:
			conn[e] = []int{v[0], v[1], v[2], v[3], v[0] + np, v[1] + np, v[2] + np, v[3] + np}
			elTypes[e] = Hex
		}
		bottom := append([]int(nil), v...)
		top := make([]int, len(v))
		for i := range v {
			top[i] = v[i] + np
		}
		fb = append(fb, bottom, top)
	}
	boundary = make(map[string][][]int)
	for name, edges := range el.Boundary {
		if name == frontAndBack {
			return nil, nil, nil, nil, fmt.Errorf("%w: patch name %s is reserved for 2D meshes", ErrInvalidMesh, name)
		}
		for _, ed := range edges {
			if len(ed) != 2 {
				return nil, nil, nil, nil, fmt.Errorf("%w: 2D boundary %s entry %v is not an edge", ErrInvalidMesh, name, ed)
			}
			boundary[name] = append(boundary[name], []int{ed[0], ed[1], ed[1] + np, ed[0] + np})
		}
	}
	boundary[frontAndBack] = fb
	return
}
