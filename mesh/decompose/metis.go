//go:build metis

package decompose

import (
	"fmt"

	metis "github.com/notargets/go-metis"

	"github.com/notargets/fvcore/mesh"
)

// Metis partitions the cell adjacency graph with METIS k-way partitioning
func Metis(m *mesh.Mesh, cfg Config) (cellProc []int, err error) {
	xadj, adjncy := cellGraph(m)

	opts := make([]int32, metis.NoOptions)
	if err = metis.SetDefaultOptions(opts); err != nil {
		return nil, fmt.Errorf("failed to set METIS options: %w", err)
	}
	if cfg.Objective == "cut" {
		opts[metis.OptionObjType] = metis.ObjTypeCut
	} else {
		opts[metis.OptionObjType] = metis.ObjTypeVol
	}
	ubvec := []float32{cfg.ImbalanceFactor}
	if cfg.ImbalanceFactor == 0 {
		ubvec[0] = 1.05
	}
	part, _, err := metis.PartGraphKwayWeighted(
		xadj, adjncy, nil, nil,
		int32(cfg.NumPartitions), nil, ubvec, opts,
	)
	if err != nil {
		return nil, fmt.Errorf("METIS partitioning failed: %w", err)
	}
	cellProc = make([]int, m.NCells())
	for i := range cellProc {
		cellProc[i] = int(part[i])
	}
	return
}
