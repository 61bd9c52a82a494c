package solvers

import (
	"context"
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

func init() {
	Register("direct", func(c Controls) (Solver, error) { return direct{c: c}, nil })
}

// direct factorises the assembled matrix with a dense LU decomposition. It
// is meant for small serial systems and for checking the iterative solvers.
type direct struct {
	c Controls
}

func (direct) Name() string { return "direct" }

func (s direct) Solve(ctx context.Context, sys *System, x, b []float64) (perf Performance, err error) {
	var (
		n          = sys.NRows()
		r          = make([]float64, n)
		normFactor float64
		lu         mat.LU
		sum        float64
	)
	perf = Performance{Solver: s.Name(), Field: sys.Name}
	if sys.comm().Size() > 1 {
		return perf, fmt.Errorf("%w: direct solver on %d ranks", ErrUnsupported, sys.comm().Size())
	}
	if normFactor, err = start(ctx, sys, x, b, r, &perf); err != nil {
		return
	}
	if n == 0 {
		perf.Converged = true
		return
	}
	csr, err := sys.CSR()
	if err != nil {
		return
	}
	lu.Factorize(mat.DenseCopyOf(csr))
	sol := mat.NewVecDense(n, nil)
	if err = lu.SolveVecTo(sol, false, mat.NewVecDense(n, append([]float64(nil), b...))); err != nil {
		var cond mat.Condition
		if errors.As(err, &cond) {
			perf.Singular = true
			return perf, nil
		}
		return
	}
	copy(x, sol.RawVector().Data)
	perf.NIterations = 1
	if err = sys.Residual(ctx, x, b, r); err != nil {
		return
	}
	if sum, err = sys.sumMag(ctx, r); err != nil {
		return
	}
	perf.FinalResidual = sum / normFactor
	perf.Converged = true
	return
}
