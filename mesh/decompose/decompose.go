package decompose

import (
	"fmt"
	"sort"

	"github.com/notargets/fvcore/mesh"
	"github.com/notargets/fvcore/parallel"
	"github.com/notargets/fvcore/types"
)

// Part is one processor mesh together with its addressing into the
// undecomposed mesh
type Part struct {
	Proc     int
	Mesh     *mesh.Mesh
	CellMap  []int  // local cell -> global cell
	FaceMap  []int  // local face -> global face
	FaceFlip []bool // local face points the opposite way to the global face
	// PatchMap maps every local patch to the global patch it came from, -1
	// for processor patches
	PatchMap []int
}

// ProcessorPatchName names the boundary of proc facing nbr
func ProcessorPatchName(proc, nbr int) string {
	return fmt.Sprintf("procBoundary%dto%d", proc, nbr)
}

func pairTag(a, b, np int) int {
	if a > b {
		a, b = b, a
	}
	return a*np + b
}

// Decompose splits m along cellProc into one mesh per rank of world. Cyclic
// and non-conformal patches must not span processors.
func Decompose(m *mesh.Mesh, cellProc []int, world *parallel.World) (parts []*Part, err error) {
	var (
		np      = world.NP
		nCells  = m.NCells()
		owner   = m.Owners()
		nbr     = m.Neighbours()
		C       = m.C()
		gFaces  = m.Faces()
		gPoints = m.Points()
	)
	if len(cellProc) != nCells {
		return nil, fmt.Errorf("cell to processor map has %d entries for %d cells", len(cellProc), nCells)
	}
	for c, p := range cellProc {
		if p < 0 || p >= np {
			return nil, fmt.Errorf("cell %d assigned to processor %d of %d", c, p, np)
		}
	}
	if err = checkPeriodic(m, cellProc); err != nil {
		return
	}
	localCell := make([]int, nCells)
	counts := make([]int, np)
	for c, p := range cellProc {
		localCell[c] = counts[p]
		counts[p]++
	}
	parts = make([]*Part, np)
	for proc := 0; proc < np; proc++ {
		var (
			pt        = &Part{Proc: proc}
			faces     [][]int
			owners    []int
			neighbour []int
			patches   []*mesh.Patch
			procFaces = make(map[int][]int) // neighbour proc -> global faces
		)
		for c, p := range cellProc {
			if p == proc {
				pt.CellMap = append(pt.CellMap, c)
			}
		}
		if len(pt.CellMap) == 0 {
			return nil, fmt.Errorf("processor %d has no cells", proc)
		}
		for f, n := range nbr {
			po, pn := cellProc[owner[f]], cellProc[n]
			switch {
			case po == proc && pn == proc:
				faces = append(faces, gFaces[f])
				owners = append(owners, localCell[owner[f]])
				neighbour = append(neighbour, localCell[n])
				pt.FaceMap = append(pt.FaceMap, f)
				pt.FaceFlip = append(pt.FaceFlip, false)
			case po == proc:
				procFaces[pn] = append(procFaces[pn], f)
			case pn == proc:
				procFaces[po] = append(procFaces[po], f)
			}
		}
		for pi, gp := range m.Patches() {
			lp := &mesh.Patch{
				Name:    gp.Name,
				Kind:    gp.Kind,
				Start:   len(faces),
				Partner: gp.Partner,
			}
			var kept []int
			for i := 0; i < gp.Size; i++ {
				f := gp.Face(i)
				if cellProc[owner[f]] != proc {
					continue
				}
				kept = append(kept, i)
				faces = append(faces, gFaces[f])
				owners = append(owners, localCell[owner[f]])
				pt.FaceMap = append(pt.FaceMap, f)
				pt.FaceFlip = append(pt.FaceFlip, false)
			}
			lp.Size = len(kept)
			if gp.Kind == mesh.KindNonConformal {
				lp.NbrWeights = remapWeights(m, gp, kept, cellProc, proc)
			}
			patches = append(patches, lp)
			pt.PatchMap = append(pt.PatchMap, pi)
		}
		var nbrProcs []int
		for q := range procFaces {
			nbrProcs = append(nbrProcs, q)
		}
		sort.Ints(nbrProcs)
		for _, q := range nbrProcs {
			lp := &mesh.Patch{
				Name:          ProcessorPatchName(proc, q),
				Kind:          mesh.KindProcessor,
				Start:         len(faces),
				Size:          len(procFaces[q]),
				NeighbourRank: q,
				Tag:           pairTag(proc, q, np),
			}
			for _, f := range procFaces[q] {
				if cellProc[owner[f]] == proc {
					faces = append(faces, gFaces[f])
					owners = append(owners, localCell[owner[f]])
					lp.NeighbourCentres = append(lp.NeighbourCentres, C[nbr[f]])
					pt.FaceFlip = append(pt.FaceFlip, false)
				} else {
					faces = append(faces, reversed(gFaces[f]))
					owners = append(owners, localCell[nbr[f]])
					lp.NeighbourCentres = append(lp.NeighbourCentres, C[owner[f]])
					pt.FaceFlip = append(pt.FaceFlip, true)
				}
				pt.FaceMap = append(pt.FaceMap, f)
			}
			patches = append(patches, lp)
			pt.PatchMap = append(pt.PatchMap, -1)
		}
		points, lfaces := compactPoints(gPoints, faces)
		tm := m.Time()
		lt := mesh.NewTime(tm.Value, tm.DeltaT)
		lt.DeltaT0, lt.Index = tm.DeltaT0, tm.Index
		if pt.Mesh, err = mesh.New(points, lfaces, owners, neighbour, patches, mesh.Options{
			Name: fmt.Sprintf("processor%d", proc),
			Comm: world.Comm(proc),
			Time: lt,
		}); err != nil {
			return nil, fmt.Errorf("processor %d: %w", proc, err)
		}
		parts[proc] = pt
	}
	return
}

func checkPeriodic(m *mesh.Mesh, cellProc []int) error {
	for _, p := range m.Patches() {
		switch p.Kind {
		case mesh.KindCyclic:
			q := m.Partner(p)
			for i := 0; i < p.Size; i++ {
				if cellProc[p.FaceCells()[i]] != cellProc[q.FaceCells()[i]] {
					return fmt.Errorf("cyclic patch %s face %d spans processors %d and %d",
						p.Name, i, cellProc[p.FaceCells()[i]], cellProc[q.FaceCells()[i]])
				}
			}
		case mesh.KindNonConformal:
			q := m.Partner(p)
			for i, ws := range p.NbrWeights {
				for _, w := range ws {
					if cellProc[p.FaceCells()[i]] != cellProc[q.FaceCells()[w.Face]] {
						return fmt.Errorf("non-conformal patch %s face %d spans processors", p.Name, i)
					}
				}
			}
		}
	}
	return nil
}

// remapWeights renumbers the partner faces of the kept faces of a
// non-conformal patch into the partner's local numbering
func remapWeights(m *mesh.Mesh, gp *mesh.Patch, kept []int, cellProc []int, proc int) (ws [][]mesh.FaceWeight) {
	var (
		q        = m.Partner(gp)
		localOfQ = make(map[int]int)
		n        int
	)
	for i := 0; i < q.Size; i++ {
		if cellProc[q.FaceCells()[i]] == proc {
			localOfQ[i] = n
			n++
		}
	}
	ws = make([][]mesh.FaceWeight, len(kept))
	for k, i := range kept {
		for _, w := range gp.NbrWeights[i] {
			ws[k] = append(ws[k], mesh.FaceWeight{Face: localOfQ[w.Face], Weight: w.Weight})
		}
	}
	return
}

func reversed(f []int) []int {
	r := make([]int, len(f))
	for i, v := range f {
		r[len(f)-1-i] = v
	}
	return r
}

func compactPoints(gPoints []types.Vector, faces [][]int) (points []types.Vector, lfaces [][]int) {
	local := make(map[int]int)
	lfaces = make([][]int, len(faces))
	for i, f := range faces {
		lf := make([]int, len(f))
		for j, v := range f {
			lv, ok := local[v]
			if !ok {
				lv = len(points)
				local[v] = lv
				points = append(points, gPoints[v])
			}
			lf[j] = lv
		}
		lfaces[i] = lf
	}
	return
}

// Distribute scatters a cell array of the undecomposed mesh to the parts
func Distribute[T any](parts []*Part, global []T) (local [][]T) {
	local = make([][]T, len(parts))
	for p, pt := range parts {
		local[p] = make([]T, len(pt.CellMap))
		for i, c := range pt.CellMap {
			local[p][i] = global[c]
		}
	}
	return
}

// Reconstruct gathers per part cell arrays back into the undecomposed
// numbering
func Reconstruct[T any](parts []*Part, local [][]T, nCells int) (global []T, err error) {
	global = make([]T, nCells)
	seen := 0
	for p, pt := range parts {
		if len(local[p]) != len(pt.CellMap) {
			return nil, fmt.Errorf("processor %d holds %d values for %d cells", p, len(local[p]), len(pt.CellMap))
		}
		for i, c := range pt.CellMap {
			global[c] = local[p][i]
		}
		seen += len(pt.CellMap)
	}
	if seen != nCells {
		return nil, fmt.Errorf("parts cover %d of %d cells", seen, nCells)
	}
	return
}
