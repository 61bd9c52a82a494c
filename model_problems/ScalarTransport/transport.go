package ScalarTransport

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/notargets/fvcore/InputParameters"
	"github.com/notargets/fvcore/dimensions"
	"github.com/notargets/fvcore/fields"
	"github.com/notargets/fvcore/fvc"
	"github.com/notargets/fvcore/fvm"
	"github.com/notargets/fvcore/mesh"
	"github.com/notargets/fvcore/mesh/decompose"
	"github.com/notargets/fvcore/parallel"
	"github.com/notargets/fvcore/schemes"
	"github.com/notargets/fvcore/solvers"
	"github.com/notargets/fvcore/types"
)

// ScalarTransport advances ddt(T) + div(phi,T) - laplacian(DT,T) = 0 for the
// case field T, carried by the fixed velocity field U
type ScalarTransport struct {
	Case *InputParameters.CaseParameters
	Mesh *mesh.Mesh // undecomposed
	Dir  string     // output directory, nothing is written when empty
	// T holds the final state on the undecomposed mesh once Run returns
	T *fields.ScalarField

	mu   sync.Mutex
	Perf []solvers.Performance // worst performance of each step
}

func NewScalarTransport(cp *InputParameters.CaseParameters, m *mesh.Mesh, dir string) *ScalarTransport {
	fmt.Printf("Scalar transport\n%s\n", cp.Title)
	fmt.Printf("Cells = %d, Faces = %d, Subdomains = %d\n\n", m.NCells(), m.NFaces(), cp.Decomposition.NumPartitions)
	return &ScalarTransport{
		Case: cp,
		Mesh: m,
		Dir:  dir,
	}
}

// Run solves the case in serial, or on one goroutine per subdomain when the
// case is decomposed
func (c *ScalarTransport) Run(ctx context.Context) (err error) {
	var (
		cp     = c.Case
		nparts = cp.Decomposition.NumPartitions
		final  []types.Scalar
	)
	T0, err := InputParameters.InitialValues[types.Scalar](cp, "T", c.Mesh.NCells())
	if err != nil {
		return
	}
	U0, err := InputParameters.InitialValues[types.Vector](cp, "U", c.Mesh.NCells())
	if err != nil {
		return
	}
	if nparts <= 1 {
		var T *fields.ScalarField
		if T, err = c.solve(ctx, c.Mesh, T0, U0, ""); err != nil {
			return
		}
		final = T.Internal()
	} else {
		var (
			world    = parallel.NewWorld(nparts)
			cellProc []int
			parts    []*decompose.Part
		)
		if cellProc, err = decompose.Partition(c.Mesh, cp.Decomposition); err != nil {
			return
		}
		if parts, err = decompose.Decompose(c.Mesh, cellProc, world); err != nil {
			return
		}
		var (
			localT = decompose.Distribute(parts, T0)
			localU = decompose.Distribute(parts, U0)
			result = make([][]types.Scalar, nparts)
		)
		err = parallel.Run(ctx, world, func(ctx context.Context, comm parallel.Communicator) error {
			rank := comm.Rank()
			T, err := c.solve(ctx, parts[rank].Mesh, localT[rank], localU[rank], fmt.Sprintf("processor%d", rank))
			if err != nil {
				return err
			}
			result[rank] = T.Internal()
			return nil
		})
		if err != nil {
			return
		}
		if final, err = decompose.Reconstruct(parts, result, c.Mesh.NCells()); err != nil {
			return
		}
	}
	c.T, err = InputParameters.NewField(cp, "T", c.Mesh, final)
	return
}

func (c *ScalarTransport) solve(ctx context.Context, m *mesh.Mesh, T0 []types.Scalar, U0 []types.Vector,
	subDir string) (T *fields.ScalarField, err error) {
	var (
		cp     = c.Case
		t      = m.Time()
		master = m.Comm().Rank() == 0
		nOuter = max(cp.NOuter, 1)
		alpha  = cp.RelaxationFactor("T")
		sc     *schemes.Schemes
		U      *fields.VectorField
		phi    *fields.ScalarSurfaceField
	)
	if sc, err = schemes.New(cp.Schemes); err != nil {
		return
	}
	controls, err := cp.SolverControls("T")
	if err != nil {
		return
	}
	if T, err = InputParameters.NewField(cp, "T", m, T0); err != nil {
		return
	}
	if U, err = InputParameters.NewField(cp, "U", m, U0); err != nil {
		return
	}
	if phi, err = fvc.Flux(ctx, U); err != nil {
		return
	}
	phi = fields.NewFlux("phi", m, phi.Dimensions(), fields.Floats(phi))
	DT := fields.NewSurfaceField[types.Scalar]("DT", m, dimensions.DimKinVisc, false)
	for f := range DT.Values() {
		DT.Values()[f] = types.Scalar(cp.Diffusivity)
	}
	for step := 1; t.Value+0.5*t.DeltaT < cp.EndTime; step++ {
		t.Advance()
		var stepPerf solvers.Performance
		for outer := 0; outer < nOuter; outer++ {
			if outer > 0 {
				t.NextOuter()
			}
			var perf solvers.Performance
			if perf, err = c.solveT(ctx, sc, T, phi, DT, alpha, controls); err != nil {
				return
			}
			stepPerf = solvers.Max(stepPerf, perf)
		}
		var total float64
		for i, v := range T.Internal() {
			total += float64(v) * m.V()[i]
		}
		if total, err = parallel.Sum(ctx, m.Comm(), total); err != nil {
			return
		}
		if master {
			c.mu.Lock()
			c.Perf = append(c.Perf, stepPerf)
			c.mu.Unlock()
			log.Printf("%s, integral(T) = %.6g, %s", t, total, stepPerf)
		}
		if c.Dir != "" && cp.WriteInterval > 0 && (step%cp.WriteInterval == 0 || t.Value+0.5*t.DeltaT >= cp.EndTime) {
			if err = c.write(T, subDir); err != nil {
				return
			}
		}
	}
	return
}

// solveT assembles and solves one outer iteration of the transport equation
func (c *ScalarTransport) solveT(ctx context.Context, sc *schemes.Schemes, T *fields.ScalarField,
	phi, DT *fields.ScalarSurfaceField, alpha float64, controls solvers.Controls) (perf solvers.Performance, err error) {
	eq, err := fvm.Ddt(sc, T)
	if err != nil {
		return
	}
	conv, err := fvm.Div(ctx, sc, phi, T)
	if err != nil {
		return
	}
	diff, err := fvm.Laplacian(ctx, sc, DT, T)
	if err != nil {
		return
	}
	if err = eq.Add(conv); err != nil {
		return
	}
	if err = eq.Sub(diff); err != nil {
		return
	}
	if alpha < 1 {
		eq.Relax(alpha)
	}
	return eq.Solve(ctx, controls)
}

func (c *ScalarTransport) write(T *fields.ScalarField, subDir string) (err error) {
	var (
		format fields.Format
		dir    = filepath.Join(c.Dir, subDir, fmt.Sprintf("%g", T.Mesh().Time().Value))
	)
	if format, err = fields.ParseFormat(c.Case.WriteFormat); err != nil {
		return
	}
	if err = os.MkdirAll(dir, 0o755); err != nil {
		return
	}
	return fields.WriteVolFieldFile(filepath.Join(dir, T.Name()), T, format)
}
