package mesh

import (
	"fmt"
	"strings"

	"github.com/notargets/fvcore/types"
)

// Kind describes how a boundary patch couples to the rest of the domain
type Kind uint8

const (
	// Physical, non-coupled patches
	KindPatch Kind = iota
	KindWall
	KindSymmetry
	KindEmpty

	// Coupled patches
	KindProcessor    // Boundary between parallel partitions
	KindCyclic       // Translational periodic, face i matches partner face i
	KindNonConformal // Periodic with per face interpolation weights onto the partner
)

var kindNames = map[Kind]string{
	KindPatch:        "patch",
	KindWall:         "wall",
	KindSymmetry:     "symmetry",
	KindEmpty:        "empty",
	KindProcessor:    "processor",
	KindCyclic:       "cyclic",
	KindNonConformal: "nonConformal",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// ParseKind is case insensitive
func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if strings.EqualFold(n, name) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown patch type %q", name)
}

func (k Kind) Coupled() bool {
	return k == KindProcessor || k == KindCyclic || k == KindNonConformal
}

// FaceWeight is one contribution of a partner face to a non-conformal face
type FaceWeight struct {
	Face   int // index within the partner patch
	Weight float64
}

// Patch is a contiguous range of boundary faces [Start, Start+Size) with a
// coupling descriptor. Fields below Size are only read for the coupled kinds.
type Patch struct {
	Name  string
	Kind  Kind
	Start int
	Size  int

	// Processor
	NeighbourRank    int
	Tag              int            // shared by both sides of a processor boundary
	NeighbourCentres []types.Vector // cell centres across the boundary, one per face

	// Cyclic and NonConformal
	Partner    string
	Separation types.Vector   // partner position + Separation = position on this side
	NbrWeights [][]FaceWeight // NonConformal only, one list per face

	index        int
	partnerIndex int
	faceCells    []int
}

// Index is the position of the patch in the mesh boundary
func (p *Patch) Index() int { return p.index }

func (p *Patch) Coupled() bool { return p.Kind.Coupled() }

// Face returns the global face number of local patch face i
func (p *Patch) Face(i int) int { return p.Start + i }

// FaceCells are the cells owning the patch faces
func (p *Patch) FaceCells() []int { return p.faceCells }

func (p *Patch) String() string {
	return fmt.Sprintf("%s (%s, %d faces from %d)", p.Name, p.Kind, p.Size, p.Start)
}

func (p *Patch) clone() *Patch {
	c := *p
	c.NeighbourCentres = append([]types.Vector(nil), p.NeighbourCentres...)
	if p.NbrWeights != nil {
		c.NbrWeights = make([][]FaceWeight, len(p.NbrWeights))
		for i, w := range p.NbrWeights {
			c.NbrWeights[i] = append([]FaceWeight(nil), w...)
		}
	}
	c.faceCells = nil
	return &c
}
