package mesh

import (
	"fmt"

	"github.com/notargets/fvcore/types"
)

// Block patch names, in boundary order
var BlockPatchNames = [6]string{"left", "right", "bottom", "top", "back", "front"}

var blockPartners = map[string]string{
	"left": "right", "right": "left",
	"bottom": "top", "top": "bottom",
	"back": "front", "front": "back",
}

// Block describes a hexahedral box of N[0] x N[1] x N[2] cells. Kinds
// overrides the default "patch" type of any of the six sides; cyclic sides
// are paired with the opposite side.
type Block struct {
	N      [3]int
	L      [3]float64
	Origin types.Vector
	Kinds  map[string]Kind
}

func NewBlock(nx, ny, nz int, lx, ly, lz float64) (*Mesh, error) {
	return Block{N: [3]int{nx, ny, nz}, L: [3]float64{lx, ly, lz}}.Build(Options{})
}

// Cell returns the cell number of block cell (i, j, k)
func (b Block) Cell(i, j, k int) int {
	return i + b.N[0]*(j+b.N[1]*k)
}

func (b Block) Build(opts Options) (m *Mesh, err error) {
	var (
		nx, ny, nz = b.N[0], b.N[1], b.N[2]
		points     []types.Vector
		faces      [][]int
		owner      []int
		neighbour  []int
		patches    []*Patch
	)
	if nx < 1 || ny < 1 || nz < 1 {
		return nil, fmt.Errorf("%w: block needs at least one cell per direction, have %v", ErrInvalidMesh, b.N)
	}
	for d := 0; d < 3; d++ {
		if b.L[d] <= 0 {
			return nil, fmt.Errorf("%w: block lengths must be positive, have %v", ErrInvalidMesh, b.L)
		}
	}
	pt := func(i, j, k int) int {
		return i + (nx+1)*(j+(ny+1)*k)
	}
	for k := 0; k <= nz; k++ {
		for j := 0; j <= ny; j++ {
			for i := 0; i <= nx; i++ {
				points = append(points, b.Origin.Add(types.Vector{
					b.L[0] * float64(i) / float64(nx),
					b.L[1] * float64(j) / float64(ny),
					b.L[2] * float64(k) / float64(nz),
				}))
			}
		}
	}
	// Faces whose normal points in +x, +y, +z from the lower corner (i, j, k)
	xFace := func(i, j, k int) []int { return []int{pt(i, j, k), pt(i, j+1, k), pt(i, j+1, k+1), pt(i, j, k+1)} }
	yFace := func(i, j, k int) []int { return []int{pt(i, j, k), pt(i, j, k+1), pt(i+1, j, k+1), pt(i+1, j, k)} }
	zFace := func(i, j, k int) []int { return []int{pt(i, j, k), pt(i+1, j, k), pt(i+1, j+1, k), pt(i, j+1, k)} }
	reversed := func(f []int) []int {
		r := make([]int, len(f))
		for i, v := range f {
			r[len(f)-1-i] = v
		}
		return r
	}
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				c := b.Cell(i, j, k)
				if i+1 < nx {
					faces = append(faces, xFace(i+1, j, k))
					owner = append(owner, c)
					neighbour = append(neighbour, b.Cell(i+1, j, k))
				}
				if j+1 < ny {
					faces = append(faces, yFace(i, j+1, k))
					owner = append(owner, c)
					neighbour = append(neighbour, b.Cell(i, j+1, k))
				}
				if k+1 < nz {
					faces = append(faces, zFace(i, j, k+1))
					owner = append(owner, c)
					neighbour = append(neighbour, b.Cell(i, j, k+1))
				}
			}
		}
	}
	addPatch := func(name string, add func()) {
		start := len(faces)
		add()
		p := &Patch{Name: name, Kind: KindPatch, Start: start, Size: len(faces) - start}
		if kind, ok := b.Kinds[name]; ok {
			p.Kind = kind
			if kind == KindCyclic {
				p.Partner = blockPartners[name]
			}
		}
		patches = append(patches, p)
	}
	addPatch("left", func() {
		for k := 0; k < nz; k++ {
			for j := 0; j < ny; j++ {
				faces = append(faces, reversed(xFace(0, j, k)))
				owner = append(owner, b.Cell(0, j, k))
			}
		}
	})
	addPatch("right", func() {
		for k := 0; k < nz; k++ {
			for j := 0; j < ny; j++ {
				faces = append(faces, xFace(nx, j, k))
				owner = append(owner, b.Cell(nx-1, j, k))
			}
		}
	})
	addPatch("bottom", func() {
		for k := 0; k < nz; k++ {
			for i := 0; i < nx; i++ {
				faces = append(faces, reversed(yFace(i, 0, k)))
				owner = append(owner, b.Cell(i, 0, k))
			}
		}
	})
	addPatch("top", func() {
		for k := 0; k < nz; k++ {
			for i := 0; i < nx; i++ {
				faces = append(faces, yFace(i, ny, k))
				owner = append(owner, b.Cell(i, ny-1, k))
			}
		}
	})
	addPatch("back", func() {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				faces = append(faces, reversed(zFace(i, j, 0)))
				owner = append(owner, b.Cell(i, j, 0))
			}
		}
	})
	addPatch("front", func() {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				faces = append(faces, zFace(i, j, nz))
				owner = append(owner, b.Cell(i, j, nz-1))
			}
		}
	})
	for _, p := range patches {
		if p.Kind == KindCyclic {
			if q := patches[indexOf(BlockPatchNames[:], p.Partner)]; q.Kind != KindCyclic {
				return nil, fmt.Errorf("%w: cyclic block side %s needs %s to be cyclic too", ErrInvalidMesh, p.Name, q.Name)
			}
		}
	}
	return New(points, faces, owner, neighbour, patches, opts)
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}
