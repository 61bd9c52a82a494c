package decompose

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/fvcore/mesh"
	"github.com/notargets/fvcore/parallel"
)

func TestSimpleDecomposition(t *testing.T) {
	m, err := mesh.NewBlock(4, 2, 1, 4, 2, 1)
	require.NoError(t, err)
	cellProc, err := Partition(m, DefaultConfig(2))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 1, 1, 0, 0, 1, 1}, cellProc)

	world := parallel.NewWorld(2)
	parts, err := Decompose(m, cellProc, world)
	require.NoError(t, err)
	require.Len(t, parts, 2)
	for proc, pt := range parts {
		lm := pt.Mesh
		assert.Equal(t, 4, lm.NCells())
		assert.Equal(t, 4, lm.NInternalFaces())
		require.Len(t, lm.Patches(), 7)
		pp := lm.Patches()[6]
		assert.Equal(t, ProcessorPatchName(proc, 1-proc), pp.Name)
		assert.Equal(t, mesh.KindProcessor, pp.Kind)
		assert.Equal(t, 2, pp.Size)
		for i := 0; i < pp.Size; i++ {
			f := pp.Face(i)
			gf := pt.FaceMap[f]
			assert.InDelta(t, m.Weights()[gf], lm.Weights()[f], 1e-14)
			assert.InDelta(t, m.DeltaCoeffs()[gf], lm.DeltaCoeffs()[f], 1e-14)
			assert.Equal(t, proc == 1, pt.FaceFlip[f])
			// Processor faces point out of the local domain
			d := lm.Cf()[f].Sub(lm.C()[lm.Owner(f)])
			assert.True(t, lm.Sf()[f].Dot(d) > 0)
		}
		var vol float64
		for _, v := range lm.V() {
			vol += v
		}
		assert.InDelta(t, 4, vol, 1e-12)
	}
	assert.Equal(t, 2, parts[0].Mesh.Patches()[0].Size, "left stays on processor 0")
	assert.Equal(t, 0, parts[1].Mesh.Patches()[0].Size)

	// Neighbour values across the processor boundary are the global cell
	// numbers of the cells on the other side
	global := make([]float64, m.NCells())
	for c := range global {
		global[c] = float64(c)
	}
	local := Distribute(parts, global)
	got := make([][]float64, 2)
	err = parallel.Run(context.Background(), world, func(ctx context.Context, comm parallel.Communicator) error {
		lm := parts[comm.Rank()].Mesh
		pp := lm.Patches()[6]
		nbr, err := lm.NeighbourValues(ctx, pp, local[comm.Rank()], 1)
		if err != nil {
			return err
		}
		got[comm.Rank()] = nbr
		s, err := lm.Check(ctx)
		if err != nil {
			return err
		}
		if s.TotalVolume < 7.9999 || s.TotalVolume > 8.0001 {
			return fmt.Errorf("global volume %g", s.TotalVolume)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 6}, got[0])
	assert.Equal(t, []float64{1, 5}, got[1])

	back, err := Reconstruct(parts, local, m.NCells())
	require.NoError(t, err)
	assert.Equal(t, global, back)
}

func TestDecompositionErrors(t *testing.T) {
	m, err := mesh.Block{
		N:     [3]int{4, 1, 1},
		L:     [3]float64{1, 1, 1},
		Kinds: map[string]mesh.Kind{"left": mesh.KindCyclic, "right": mesh.KindCyclic},
	}.Build(mesh.Options{})
	require.NoError(t, err)
	_, err = Decompose(m, []int{0, 0, 1, 1}, parallel.NewWorld(2))
	assert.Error(t, err, "cyclic spanning processors")

	parts, err := Decompose(m, []int{0, 1, 1, 0}, parallel.NewWorld(2))
	require.NoError(t, err, "cyclic faces kept together")
	assert.Len(t, parts[0].Mesh.Patches(), 7)

	_, err = Partition(m, Config{Method: "bogus", NumPartitions: 2})
	assert.Error(t, err)
	_, err = Simple(m, 5, 0)
	assert.Error(t, err)
	_, err = Decompose(m, []int{0, 0, 0}, parallel.NewWorld(1))
	assert.Error(t, err)
}
