package mesh

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/fvcore/types"
)

func TestBlockGeometry(t *testing.T) {
	m, err := NewBlock(2, 2, 2, 1, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 8, m.NCells())
	assert.Equal(t, 12, m.NInternalFaces())
	assert.Equal(t, 36, m.NFaces())
	require.Len(t, m.Patches(), 6)
	for i, p := range m.Patches() {
		assert.Equal(t, BlockPatchNames[i], p.Name)
		assert.Equal(t, 4, p.Size)
	}
	for c, v := range m.V() {
		assert.InDelta(t, 0.125, v, 1e-14, "cell %d", c)
	}
	assert.InDeltaSlice(t, []float64{0.25, 0.25, 0.25}, m.C()[0][:], 1e-14)
	assert.InDeltaSlice(t, []float64{0.75, 0.75, 0.75}, m.C()[7][:], 1e-14)
	for f := 0; f < m.NInternalFaces(); f++ {
		assert.InDelta(t, 0.5, m.Weights()[f], 1e-14)
		assert.InDelta(t, 2, m.DeltaCoeffs()[f], 1e-12)
		assert.InDelta(t, 2, m.NonOrthDeltaCoeffs()[f], 1e-12)
		assert.InDelta(t, 0, m.NonOrthCorrectionVectors()[f].Mag(), 1e-12)
		assert.InDelta(t, 0.25, m.MagSf()[f], 1e-14)
		d := m.C()[m.Neighbour(f)].Sub(m.C()[m.Owner(f)])
		assert.True(t, m.Sf()[f].Dot(d) > 0, "face %d must point from owner to neighbour", f)
	}
	for _, p := range m.Patches() {
		for i := 0; i < p.Size; i++ {
			f := p.Face(i)
			assert.Equal(t, 1., m.Weights()[f])
			assert.InDelta(t, 4, m.DeltaCoeffs()[f], 1e-12)
			assert.True(t, m.Sf()[f].Dot(m.Cf()[f].Sub(m.C()[p.FaceCells()[i]])) > 0)
		}
	}
	left, ok := m.FindPatch("left")
	require.True(t, ok)
	assert.InDeltaSlice(t, []float64{-0.25, 0, 0}, m.Sf()[left.Start][:], 1e-14)

	s, err := m.Check(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 1, s.TotalVolume, 1e-14)
	assert.Equal(t, 0, s.OpenCells)
	assert.InDelta(t, 0, s.MaxNonOrthogonality, 1e-6)
}

func TestMeshValidation(t *testing.T) {
	pts := []types.Vector{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	faces := [][]int{{0, 2, 1}, {0, 1, 3}, {1, 2, 3}, {0, 3, 2}}
	{ // A single tet
		m, err := New(pts, faces, []int{0, 0, 0, 0}, nil,
			[]*Patch{{Name: "walls", Kind: KindWall, Start: 0, Size: 4}}, Options{})
		require.NoError(t, err)
		assert.InDelta(t, 1./6., m.V()[0], 1e-14)
		assert.InDeltaSlice(t, []float64{0.25, 0.25, 0.25}, m.C()[0][:], 1e-14)
	}
	{ // Patches must cover every boundary face
		_, err := New(pts, faces, []int{0, 0, 0, 0}, nil,
			[]*Patch{{Name: "walls", Start: 0, Size: 3}}, Options{})
		assert.ErrorIs(t, err, ErrInvalidMesh)
	}
	{ // Owner must be lower than neighbour
		_, err := New(pts, faces, []int{1, 0, 0, 0}, []int{0},
			[]*Patch{{Name: "walls", Start: 1, Size: 3}}, Options{})
		assert.ErrorIs(t, err, ErrInvalidMesh)
	}
	{ // Unknown cyclic partner
		_, err := New(pts, faces, []int{0, 0, 0, 0}, nil,
			[]*Patch{{Name: "a", Kind: KindCyclic, Partner: "b", Start: 0, Size: 4}}, Options{})
		assert.ErrorIs(t, err, ErrInvalidMesh)
	}
	{
		k, err := ParseKind("Wall")
		require.NoError(t, err)
		assert.Equal(t, KindWall, k)
		_, err = ParseKind("bogus")
		assert.Error(t, err)
	}
}

func TestFromElements(t *testing.T) {
	{ // Two hexes sharing a face match a 2x1x1 block
		pts := []types.Vector{
			{0, 0, 0}, {1, 0, 0}, {2, 0, 0}, {0, 1, 0}, {1, 1, 0}, {2, 1, 0},
			{0, 0, 1}, {1, 0, 1}, {2, 0, 1}, {0, 1, 1}, {1, 1, 1}, {2, 1, 1},
		}
		conn := [][]int{
			{0, 1, 4, 3, 6, 7, 10, 9},
			{1, 2, 5, 4, 7, 8, 11, 10},
		}
		m, err := FromElements(Elements{
			Points:   pts,
			Conn:     conn,
			Types:    []ElementType{Hex, Hex},
			Boundary: map[string][][]int{"inlet": {{0, 3, 9, 6}}},
		}, Options{})
		require.NoError(t, err)
		assert.Equal(t, 2, m.NCells())
		assert.Equal(t, 1, m.NInternalFaces())
		assert.InDeltaSlice(t, []float64{1, 0, 0}, m.Sf()[0][:], 1e-14)
		require.Len(t, m.Patches(), 2)
		assert.Equal(t, "inlet", m.Patches()[0].Name)
		assert.Equal(t, 1, m.Patches()[0].Size)
		assert.Equal(t, DefaultPatch, m.Patches()[1].Name)
		assert.Equal(t, 9, m.Patches()[1].Size)
		assert.InDelta(t, 1, m.V()[0], 1e-14)
		for f := 1; f < m.NFaces(); f++ {
			assert.True(t, m.Sf()[f].Dot(m.Cf()[f].Sub(m.C()[m.Owner(f)])) > 0)
		}
	}
	{ // 2D triangles are extruded into prisms
		pts := []types.Vector{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}}
		m, err := FromElements(Elements{
			Points:    pts,
			Conn:      [][]int{{0, 1, 2}, {0, 2, 3}},
			Types:     []ElementType{Triangle, Triangle},
			Boundary:  map[string][][]int{"outer": {{0, 1}, {1, 2}, {2, 3}, {3, 0}}},
			Thickness: 0.1,
		}, Options{})
		require.NoError(t, err)
		assert.Equal(t, 2, m.NCells())
		assert.Equal(t, 1, m.NInternalFaces())
		fb, ok := m.FindPatch("frontAndBack")
		require.True(t, ok)
		assert.Equal(t, KindEmpty, fb.Kind)
		assert.Equal(t, 4, fb.Size)
		assert.InDelta(t, 0.05, m.V()[0], 1e-14)
		assert.InDelta(t, 0.05, m.V()[1], 1e-14)
	}
}

func TestCyclicBlock(t *testing.T) {
	m, err := Block{
		N:     [3]int{4, 1, 1},
		L:     [3]float64{1, 1, 1},
		Kinds: map[string]Kind{"left": KindCyclic, "right": KindCyclic},
	}.Build(Options{})
	require.NoError(t, err)
	left, _ := m.FindPatch("left")
	right := m.Partner(left)
	assert.Equal(t, "right", right.Name)
	assert.InDeltaSlice(t, []float64{-1, 0, 0}, left.Separation[:], 1e-14)
	f := left.Face(0)
	assert.InDelta(t, 0.5, m.Weights()[f], 1e-14)
	assert.InDelta(t, 4, m.DeltaCoeffs()[f], 1e-12)
	cells := []float64{1, 2, 3, 4}
	nbr, err := m.NeighbourValues(context.Background(), left, cells, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{4}, nbr)
	nbr, err = m.NeighbourValues(context.Background(), right, cells, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{1}, nbr)
}

func TestMotionAndRetire(t *testing.T) {
	m, err := NewBlock(2, 1, 1, 2, 1, 1)
	require.NoError(t, err)
	var events []Event
	unsub := m.Subscribe(func(ev Event) { events = append(events, ev) })
	state := m.StateID()
	assert.False(t, m.Moving())
	assert.Nil(t, m.Phi())

	// Stretch the block in x by 10 percent
	newPts := make([]types.Vector, m.NPoints())
	for i, p := range m.Points() {
		newPts[i] = types.Vector{1.1 * p[0], p[1], p[2]}
	}
	require.NoError(t, m.Move(context.Background(), newPts, 0.5))
	assert.True(t, m.Moving())
	assert.Greater(t, m.StateID(), state)
	require.Len(t, events, 1)
	assert.Equal(t, Motion, events[0].Kind)
	assert.InDelta(t, 1, m.V0()[0], 1e-14)
	assert.InDelta(t, 1.1, m.V()[0], 1e-14)

	// Swept volumes account for the volume change of every cell
	for c := 0; c < m.NCells(); c++ {
		var sum float64
		for _, f := range m.CellFaces(c) {
			if m.Owner(f) == c {
				sum += m.SweptVolumes()[f]
			} else {
				sum -= m.SweptVolumes()[f]
			}
		}
		assert.InDelta(t, m.V()[c]-m.V0()[c], sum, 1e-12)
	}
	right, _ := m.FindPatch("right")
	assert.InDelta(t, 0.2/0.5, m.Phi()[right.Start], 1e-12)

	unsub()
	m.Retire()
	assert.Len(t, events, 1)
	assert.True(t, m.Retired())
	assert.Panics(t, func() { m.Owner(0) })
	assert.Panics(t, func() { _ = m.V() })
}

func TestTime(t *testing.T) {
	tm := NewTime(0, 0.1)
	tm.Advance()
	assert.Equal(t, 1, tm.Index)
	assert.InDelta(t, 0.1, tm.Value, 1e-15)
	assert.Equal(t, 0.1, tm.DeltaT0)
	tm.SetDeltaT(0.2)
	tm.NextOuter()
	assert.Equal(t, 1, tm.OuterIteration)
	tm.Advance()
	assert.Equal(t, 0.1, tm.DeltaT0)
	assert.Equal(t, 0, tm.OuterIteration)
	tm.Advance()
	assert.Equal(t, 0.2, tm.DeltaT0)
	assert.True(t, math.Abs(tm.Value-0.5) < 1e-14)
	assert.Panics(t, func() { tm.SetDeltaT(0) })
}
