package solvers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/fvcore/parallel"
)

// chain is the tridiagonal system of n rows with the given coefficients
func chain(n int, diag, lower, upper float64) *System {
	sys := &System{Name: "T", Diag: make([]float64, n)}
	for i := range sys.Diag {
		sys.Diag[i] = diag
	}
	for i := 0; i+1 < n; i++ {
		sys.LowerAddr = append(sys.LowerAddr, i)
		sys.UpperAddr = append(sys.UpperAddr, i+1)
		sys.Lower = append(sys.Lower, lower)
		sys.Upper = append(sys.Upper, upper)
	}
	return sys
}

func ones(n int) (v []float64) {
	v = make([]float64, n)
	for i := range v {
		v[i] = 1
	}
	return
}

func solve(t *testing.T, c Controls, sys *System, b []float64) ([]float64, Performance) {
	x := make([]float64, sys.NRows())
	perf, err := Solve(context.Background(), c, sys, x, b)
	require.NoError(t, err)
	return x, perf
}

func TestSolversAgree(t *testing.T) {
	var (
		n = 10
		b = ones(n)
	)
	{ // Symmetric
		sys := chain(n, 2, -1, -1)
		ref, perf := solve(t, Controls{Solver: "direct"}, sys, b)
		assert.True(t, perf.Converged)
		assert.Less(t, perf.FinalResidual, 1e-12)
		for _, c := range []Controls{
			{Solver: "PCG", Preconditioner: "DIC", Tolerance: 1e-12},
			{Solver: "PCG", Preconditioner: "diagonal", Tolerance: 1e-12},
			{Solver: "PCG", Tolerance: 1e-12},
			{Solver: "PBiCGStab", Preconditioner: "DILU", Tolerance: 1e-12},
			{Solver: "smoothSolver", Smoother: "GaussSeidel", Tolerance: 1e-12, MaxIter: 5000},
			{Solver: "smoothSolver", Smoother: "Jacobi", Tolerance: 1e-10, MaxIter: 10000, NSweeps: 2},
		} {
			x, perf := solve(t, c, sys, b)
			assert.True(t, perf.Converged, "%+v", c)
			assert.Equal(t, 1., perf.InitialResidual, "%+v", c)
			assert.InDeltaSlice(t, ref, x, 1e-7, "%+v", c)
		}
	}
	{ // Asymmetric
		sys := chain(n, 2.5, -1.5, -0.5)
		ref, _ := solve(t, Controls{Solver: "direct"}, sys, b)
		x, perf := solve(t, Controls{Solver: "PBiCGStab", Preconditioner: "DILU", Tolerance: 1e-12}, sys, b)
		assert.True(t, perf.Converged)
		assert.InDeltaSlice(t, ref, x, 1e-8)
		_, err := Solve(context.Background(), Controls{Solver: "PCG"}, sys, make([]float64, n), b)
		assert.ErrorIs(t, err, ErrUnsupported)
	}
}

func TestConvergenceControls(t *testing.T) {
	var (
		n   = 10
		sys = chain(n, 2, -1, -1)
		b   = ones(n)
	)
	{ // An already converged start does no iterations
		x, _ := solve(t, Controls{Solver: "direct"}, sys, b)
		perf, err := Solve(context.Background(), Controls{Solver: "PCG", Preconditioner: "DIC", Tolerance: 1e-6}, sys, x, b)
		require.NoError(t, err)
		assert.Equal(t, 0, perf.NIterations)
		assert.True(t, perf.Converged)
		// unless minIter asks for them
		perf, err = Solve(context.Background(), Controls{Solver: "PCG", Tolerance: 2, MinIter: 2}, sys, make([]float64, n), b)
		require.NoError(t, err)
		assert.Equal(t, 2, perf.NIterations)
		assert.True(t, perf.Converged)
	}
	{ // maxIter bounds the work and non-convergence is not an error
		_, perf := solve(t, Controls{Solver: "smoothSolver", Tolerance: 1e-12, MaxIter: 3}, sys, b)
		assert.Equal(t, 3, perf.NIterations)
		assert.False(t, perf.Converged)
	}
	{ // Relative tolerance
		_, perf := solve(t, Controls{Solver: "smoothSolver", Smoother: "GaussSeidel", Tolerance: 0, RelTol: 0.1}, sys, b)
		assert.True(t, perf.Converged)
		assert.Less(t, perf.FinalResidual, 0.1*perf.InitialResidual)
	}
	{ // Configuration errors
		_, err := New(Controls{Solver: "bogus"})
		assert.ErrorIs(t, err, ErrUnknownSolver)
		assert.Contains(t, err.Error(), "PBiCGStab")
		_, err = New(Controls{Solver: "PCG", Preconditioner: "bogus"})
		assert.ErrorIs(t, err, ErrUnsupported)
		_, err = New(Controls{Solver: "smoothSolver", Smoother: "bogus"})
		assert.ErrorIs(t, err, ErrUnsupported)
		assert.Panics(t, func() { Register("PCG", nil) })
	}
	{
		p := Performance{Solver: "DICPCG", Field: "T", InitialResidual: 1, FinalResidual: 1e-7, NIterations: 12}
		assert.Equal(t, "DICPCG:  Solving for T, Initial residual = 1, Final residual = 1e-07, No Iterations 12", p.String())
		q := Max(p, Performance{Solver: "DICPCG", InitialResidual: 0.5, FinalResidual: 1e-6, NIterations: 3, Converged: true})
		assert.Equal(t, 1e-6, q.FinalResidual)
		assert.Equal(t, 12, q.NIterations)
		assert.False(t, q.Converged)
	}
}

func TestSingularDirect(t *testing.T) {
	// Pure Neumann: every row sums to zero
	sys := chain(4, 2, -1, -1)
	sys.Diag[0], sys.Diag[3] = 1, 1
	x := make([]float64, 4)
	perf, err := Solve(context.Background(), Controls{Solver: "direct"}, sys, x, []float64{1, 0, 0, -1})
	require.NoError(t, err)
	assert.True(t, perf.Singular)
}

func TestBiCGStabRestart(t *testing.T) {
	// Pure upwind: x[i] - x[i-1] = b[i]
	var (
		n   = 10
		sys = chain(n, 1, -1, 0)
		b   = make([]float64, n)
	)
	b[0] = 1
	{ // The first step leaves a residual orthogonal to b, the solve restarts from it
		x, perf := solve(t, Controls{Solver: "PBiCGStab", Tolerance: 1e-12}, sys, b)
		assert.True(t, perf.Converged)
		assert.False(t, perf.Singular)
		assert.Greater(t, perf.NIterations, 1)
		assert.InDeltaSlice(t, ones(n), x, 1e-8)
	}
	{ // and so does the same chain split over two ranks
		w := parallel.NewWorld(2)
		halves := make([][]float64, 2)
		err := parallel.Run(context.Background(), w, func(ctx context.Context, comm parallel.Communicator) error {
			sys := chain(n/2, 1, -1, 0)
			sys.Comm = comm
			rhs := make([]float64, n/2)
			if comm.Rank() == 0 {
				rhs[0] = 1
				sys.Interfaces = []Interface{rankInterface{comm: comm, row: n/2 - 1, coeff: 0}}
			} else {
				sys.Interfaces = []Interface{rankInterface{comm: comm, row: 0, coeff: 1}}
			}
			x := make([]float64, n/2)
			perf, err := Solve(ctx, Controls{Solver: "PBiCGStab", Tolerance: 1e-12}, sys, x, rhs)
			if err != nil {
				return err
			}
			if !perf.Converged || perf.Singular {
				t.Errorf("rank %d: %s", comm.Rank(), perf)
			}
			halves[comm.Rank()] = x
			return nil
		})
		require.NoError(t, err)
		assert.InDeltaSlice(t, ones(n), append(halves[0], halves[1]...), 1e-8)
	}
}

// rankInterface couples the last row of rank 0 with the first row of rank 1
type rankInterface struct {
	comm  parallel.Communicator
	row   int
	coeff float64
}

func (in rankInterface) Update(ctx context.Context, x, y []float64) error {
	peer := 1 - in.comm.Rank()
	if err := in.comm.Send(ctx, peer, 0, []float64{x[in.row]}); err != nil {
		return err
	}
	nbr, err := in.comm.Recv(ctx, peer, 0)
	if err != nil {
		return err
	}
	y[in.row] -= in.coeff * nbr[0]
	return nil
}

func TestParallelSolveMatchesSerial(t *testing.T) {
	var (
		n = 10
		b = ones(n)
	)
	ref, _ := solve(t, Controls{Solver: "direct"}, chain(n, 2, -1, -1), b)
	for _, c := range []Controls{
		{Solver: "PCG", Preconditioner: "DIC", Tolerance: 1e-12},
		{Solver: "PBiCGStab", Preconditioner: "DILU", Tolerance: 1e-12},
		{Solver: "smoothSolver", Smoother: "GaussSeidel", Tolerance: 1e-12, MaxIter: 5000},
	} {
		var (
			w      = parallel.NewWorld(2)
			halves = make([][]float64, 2)
		)
		err := parallel.Run(context.Background(), w, func(ctx context.Context, comm parallel.Communicator) error {
			sys := chain(n/2, 2, -1, -1)
			sys.Comm = comm
			row := n/2 - 1
			if comm.Rank() == 1 {
				row = 0
			}
			sys.Interfaces = []Interface{rankInterface{comm: comm, row: row, coeff: 1}}
			x := make([]float64, n/2)
			perf, err := Solve(ctx, c, sys, x, ones(n/2))
			if err != nil {
				return err
			}
			if !perf.Converged {
				t.Errorf("%+v did not converge on rank %d", c, comm.Rank())
			}
			halves[comm.Rank()] = x
			return nil
		})
		require.NoError(t, err)
		assert.InDeltaSlice(t, ref, append(halves[0], halves[1]...), 1e-8, "%+v", c)
	}
	{ // The direct solver is serial only
		w := parallel.NewWorld(2)
		err := parallel.Run(context.Background(), w, func(ctx context.Context, comm parallel.Communicator) error {
			sys := chain(2, 2, -1, -1)
			sys.Comm = comm
			_, err := Solve(ctx, Controls{Solver: "direct"}, sys, make([]float64, 2), ones(2))
			return err
		})
		assert.ErrorIs(t, err, ErrUnsupported)
	}
}

func TestCSR(t *testing.T) {
	sys := chain(3, 2, -1, -0.5)
	csr, err := sys.CSR()
	require.NoError(t, err)
	assert.Equal(t, 2., csr.At(1, 1))
	assert.Equal(t, -0.5, csr.At(0, 1))
	assert.Equal(t, -1., csr.At(1, 0))
	assert.Equal(t, 0., csr.At(0, 2))
	sys.Interfaces = []Interface{rankInterface{}}
	_, err = sys.CSR()
	assert.ErrorIs(t, err, ErrUnsupported)
}
