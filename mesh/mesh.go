package mesh

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/notargets/fvcore/parallel"
	"github.com/notargets/fvcore/types"
)

var ErrInvalidMesh = errors.New("invalid mesh")

// Options carries the optional collaborators of a mesh
type Options struct {
	Name string
	Comm parallel.Communicator // serial when nil
	Time *Time                 // a clock starting at zero with unit step when nil
	// Kinds sets the type of named patches of meshes read from element
	// lists, unnamed patches are plain
	Kinds map[string]Kind
}

// Mesh is a polyhedral finite volume mesh. Faces [0, NInternalFaces) are
// internal with owner < neighbour; the remaining faces are grouped by patch.
type Mesh struct {
	Name string

	points    []types.Vector
	faces     [][]int
	owner     []int
	neighbour []int
	patches   []*Patch
	nCells    int
	cellFaces [][]int

	// Geometry, face arrays run over all faces
	sf, cf, c     []types.Vector
	magSf, v      []float64
	weights       []float64
	delta         []types.Vector
	deltaCoeffs   []float64
	nonOrthDeltaC []float64
	nonOrthCorr   []types.Vector

	// Motion
	v0, v00    []float64
	sweptVols  []float64
	motionDt   float64
	moving     bool
	comm       parallel.Communicator
	time       *Time
	state      uint64
	retired    bool
	obsMu      sync.Mutex
	observers  map[int]func(Event)
	nextObsKey int
}

// New validates the face addressing and computes the mesh geometry. The
// patches are taken over by the mesh and must not be modified afterwards.
func New(points []types.Vector, faces [][]int, owner, neighbour []int,
	patches []*Patch, opts Options) (m *Mesh, err error) {
	m = &Mesh{
		Name:      opts.Name,
		points:    points,
		faces:     faces,
		owner:     owner,
		neighbour: neighbour,
		patches:   patches,
		comm:      opts.Comm,
		time:      opts.Time,
		state:     1,
		observers: make(map[int]func(Event)),
	}
	if m.Name == "" {
		m.Name = "region0"
	}
	if m.comm == nil {
		m.comm = parallel.Serial{}
	}
	if m.time == nil {
		m.time = NewTime(0, 1)
	}
	if err = m.checkAddressing(); err != nil {
		return nil, err
	}
	m.buildCellFaces()
	m.calcGeometry()
	if err = m.updateCoupledGeometry(); err != nil {
		return nil, err
	}
	return
}

func (m *Mesh) checkAddressing() (err error) {
	var (
		nFaces = len(m.faces)
		nInt   = len(m.neighbour)
		np     = len(m.points)
	)
	if len(m.owner) != nFaces {
		return fmt.Errorf("%w: %d faces but %d owners", ErrInvalidMesh, nFaces, len(m.owner))
	}
	if nInt > nFaces {
		return fmt.Errorf("%w: %d neighbours for %d faces", ErrInvalidMesh, nInt, nFaces)
	}
	for f, verts := range m.faces {
		if len(verts) < 3 {
			return fmt.Errorf("%w: face %d has %d vertices", ErrInvalidMesh, f, len(verts))
		}
		for _, p := range verts {
			if p < 0 || p >= np {
				return fmt.Errorf("%w: face %d references point %d, have %d points", ErrInvalidMesh, f, p, np)
			}
		}
	}
	for f, o := range m.owner {
		if o < 0 {
			return fmt.Errorf("%w: face %d has no owner", ErrInvalidMesh, f)
		}
		if o+1 > m.nCells {
			m.nCells = o + 1
		}
	}
	for f, n := range m.neighbour {
		if n <= m.owner[f] {
			return fmt.Errorf("%w: internal face %d has owner %d >= neighbour %d",
				ErrInvalidMesh, f, m.owner[f], n)
		}
		if n+1 > m.nCells {
			m.nCells = n + 1
		}
	}
	next := nInt
	names := make(map[string]int)
	for i, p := range m.patches {
		if p.Start != next {
			return fmt.Errorf("%w: patch %s starts at face %d, expected %d", ErrInvalidMesh, p.Name, p.Start, next)
		}
		if _, dup := names[p.Name]; dup {
			return fmt.Errorf("%w: duplicate patch name %s", ErrInvalidMesh, p.Name)
		}
		names[p.Name] = i
		p.index = i
		p.partnerIndex = -1
		next += p.Size
	}
	if next != nFaces {
		return fmt.Errorf("%w: patches cover faces up to %d of %d", ErrInvalidMesh, next, nFaces)
	}
	for _, p := range m.patches {
		p.faceCells = make([]int, p.Size)
		for i := range p.faceCells {
			p.faceCells[i] = m.owner[p.Start+i]
		}
		switch p.Kind {
		case KindCyclic, KindNonConformal:
			j, ok := names[p.Partner]
			if !ok {
				return fmt.Errorf("%w: patch %s has unknown partner %q", ErrInvalidMesh, p.Name, p.Partner)
			}
			p.partnerIndex = j
			if p.Kind == KindCyclic && m.patches[j].Size != p.Size {
				return fmt.Errorf("%w: cyclic patch %s has %d faces, partner %s has %d",
					ErrInvalidMesh, p.Name, p.Size, p.Partner, m.patches[j].Size)
			}
			if p.Kind == KindNonConformal {
				if len(p.NbrWeights) != p.Size {
					return fmt.Errorf("%w: non-conformal patch %s needs %d weight lists, has %d",
						ErrInvalidMesh, p.Name, p.Size, len(p.NbrWeights))
				}
				for i, ws := range p.NbrWeights {
					for _, w := range ws {
						if w.Face < 0 || w.Face >= m.patches[j].Size {
							return fmt.Errorf("%w: non-conformal patch %s face %d references partner face %d",
								ErrInvalidMesh, p.Name, i, w.Face)
						}
					}
				}
			}
		case KindProcessor:
			if len(p.NeighbourCentres) != p.Size {
				return fmt.Errorf("%w: processor patch %s needs %d neighbour centres, has %d",
					ErrInvalidMesh, p.Name, p.Size, len(p.NeighbourCentres))
			}
			if p.NeighbourRank == m.comm.Rank() || p.NeighbourRank < 0 || p.NeighbourRank >= m.comm.Size() {
				return fmt.Errorf("%w: processor patch %s on rank %d points at rank %d of %d",
					ErrInvalidMesh, p.Name, m.comm.Rank(), p.NeighbourRank, m.comm.Size())
			}
		}
	}
	if m.nCells == 0 {
		return fmt.Errorf("%w: no cells", ErrInvalidMesh)
	}
	return
}

func (m *Mesh) buildCellFaces() {
	counts := make([]int, m.nCells)
	for f, o := range m.owner {
		counts[o]++
		if f < len(m.neighbour) {
			counts[m.neighbour[f]]++
		}
	}
	m.cellFaces = make([][]int, m.nCells)
	for c := range m.cellFaces {
		m.cellFaces[c] = make([]int, 0, counts[c])
	}
	for f, o := range m.owner {
		m.cellFaces[o] = append(m.cellFaces[o], f)
		if f < len(m.neighbour) {
			m.cellFaces[m.neighbour[f]] = append(m.cellFaces[m.neighbour[f]], f)
		}
	}
}

// CheckLive panics when the mesh was retired by a topology change
func (m *Mesh) CheckLive() {
	if m.retired {
		panic(fmt.Errorf("mesh %s was retired by a topology change (state %d), fields bound to it are stale",
			m.Name, m.state))
	}
}

func (m *Mesh) NCells() int         { return m.nCells }
func (m *Mesh) NFaces() int         { return len(m.faces) }
func (m *Mesh) NInternalFaces() int { return len(m.neighbour) }
func (m *Mesh) NPoints() int        { return len(m.points) }

func (m *Mesh) Points() []types.Vector { return m.points }
func (m *Mesh) Faces() [][]int         { return m.faces }

func (m *Mesh) Owner(face int) int {
	m.CheckLive()
	return m.owner[face]
}

// Neighbour returns -1 for boundary faces
func (m *Mesh) Neighbour(face int) int {
	m.CheckLive()
	if face < len(m.neighbour) {
		return m.neighbour[face]
	}
	return -1
}

// Owners runs over all faces, Neighbours over the internal faces only
func (m *Mesh) Owners() []int {
	m.CheckLive()
	return m.owner
}

func (m *Mesh) Neighbours() []int {
	m.CheckLive()
	return m.neighbour
}

func (m *Mesh) CellFaces(cell int) []int {
	m.CheckLive()
	return m.cellFaces[cell]
}

func (m *Mesh) Patches() []*Patch {
	m.CheckLive()
	return m.patches
}

func (m *Mesh) FindPatch(name string) (*Patch, bool) {
	for _, p := range m.patches {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// Partner returns the partner of a cyclic or non-conformal patch
func (m *Mesh) Partner(p *Patch) *Patch {
	if p.partnerIndex < 0 {
		panic(fmt.Errorf("patch %s of type %s has no partner", p.Name, p.Kind))
	}
	return m.patches[p.partnerIndex]
}

func (m *Mesh) Comm() parallel.Communicator { return m.comm }
func (m *Mesh) Time() *Time                 { return m.time }

// Parallel is true when the mesh is one partition of a decomposed case
func (m *Mesh) Parallel() bool { return m.comm.Size() > 1 }

// StateID changes every time the geometry or topology changes
func (m *Mesh) StateID() uint64 { return m.state }
func (m *Mesh) Retired() bool   { return m.retired }

// Sf, MagSf, Cf and the interpolation factors below run over all faces, the
// value of boundary face i of patch p is at index p.Start+i
func (m *Mesh) Sf() []types.Vector {
	m.CheckLive()
	return m.sf
}

func (m *Mesh) MagSf() []float64 {
	m.CheckLive()
	return m.magSf
}

func (m *Mesh) Cf() []types.Vector {
	m.CheckLive()
	return m.cf
}

func (m *Mesh) C() []types.Vector {
	m.CheckLive()
	return m.c
}

func (m *Mesh) V() []float64 {
	m.CheckLive()
	return m.v
}

// Weights are the owner side linear interpolation factors. Non-coupled
// boundary faces carry 1.
func (m *Mesh) Weights() []float64 {
	m.CheckLive()
	return m.weights
}

// Delta is the vector from the owner cell centre to the neighbour cell
// centre. On non-coupled boundary faces it is the normal distance vector to
// the face.
func (m *Mesh) Delta() []types.Vector {
	m.CheckLive()
	return m.delta
}

func (m *Mesh) DeltaCoeffs() []float64 {
	m.CheckLive()
	return m.deltaCoeffs
}

func (m *Mesh) NonOrthDeltaCoeffs() []float64 {
	m.CheckLive()
	return m.nonOrthDeltaC
}

func (m *Mesh) NonOrthCorrectionVectors() []types.Vector {
	m.CheckLive()
	return m.nonOrthCorr
}

// PatchSlice returns the part of a face indexed array belonging to p
func PatchSlice[T any](p *Patch, all []T) []T {
	return all[p.Start : p.Start+p.Size]
}

// Summary is used by checkMesh
type Summary struct {
	Cells, Faces, InternalFaces, Points int
	TotalVolume, MinVolume, MaxVolume   float64
	MaxNonOrthogonality                 float64 // degrees
	OpenCells                           int     // cells whose face area vectors do not close
}

func (s Summary) String() string {
	return fmt.Sprintf("cells: %d faces: %d internal faces: %d points: %d\n"+
		"total volume: %g min volume: %g max volume: %g\n"+
		"max non-orthogonality: %.2f open cells: %d",
		s.Cells, s.Faces, s.InternalFaces, s.Points,
		s.TotalVolume, s.MinVolume, s.MaxVolume, s.MaxNonOrthogonality, s.OpenCells)
}

// Check collects mesh quality statistics
func (m *Mesh) Check(ctx context.Context) (s Summary, err error) {
	m.CheckLive()
	s = Summary{
		Cells:         m.nCells,
		Faces:         len(m.faces),
		InternalFaces: len(m.neighbour),
		Points:        len(m.points),
		MinVolume:     types.Great,
	}
	for _, vol := range m.v {
		s.TotalVolume += vol
		s.MinVolume = min(s.MinVolume, vol)
		s.MaxVolume = max(s.MaxVolume, vol)
	}
	for f := range m.neighbour {
		s.MaxNonOrthogonality = max(s.MaxNonOrthogonality, nonOrthAngle(m.sf[f], m.delta[f]))
	}
	closure := make([]types.Vector, m.nCells)
	magClosure := make([]float64, m.nCells)
	for f, o := range m.owner {
		closure[o] = closure[o].Add(m.sf[f])
		magClosure[o] += m.magSf[f]
		if f < len(m.neighbour) {
			n := m.neighbour[f]
			closure[n] = closure[n].Sub(m.sf[f])
			magClosure[n] += m.magSf[f]
		}
	}
	for c := range closure {
		if closure[c].Mag() > 1e-8*magClosure[c] {
			s.OpenCells++
		}
	}
	var sums []float64
	sums = []float64{s.TotalVolume, float64(s.OpenCells)}
	if err = m.comm.AllReduceSum(ctx, sums); err != nil {
		return
	}
	s.TotalVolume, s.OpenCells = sums[0], int(sums[1])
	return
}
