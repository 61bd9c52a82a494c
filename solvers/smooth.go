package solvers

import (
	"context"
	"fmt"
)

func init() {
	Register("smoothSolver", func(c Controls) (Solver, error) {
		switch c.Smoother {
		case "", "Jacobi", "GaussSeidel":
		default:
			return nil, fmt.Errorf("%w: smoother %q, valid smoothers are: GaussSeidel, Jacobi", ErrUnsupported, c.Smoother)
		}
		return smoothSolver{c: c}, nil
	})
}

// smoothSolver repeats nSweeps smoothing sweeps until the residual meets the
// tolerances
type smoothSolver struct {
	c Controls
}

func (s smoothSolver) smoother() string {
	if s.c.Smoother == "" {
		return "Jacobi"
	}
	return s.c.Smoother
}

func (s smoothSolver) Name() string { return "smoothSolver" }

func (s smoothSolver) Solve(ctx context.Context, sys *System, x, b []float64) (perf Performance, err error) {
	var (
		n          = sys.NRows()
		r          = make([]float64, n)
		nSweeps    = max(s.c.NSweeps, 1)
		normFactor float64
		sweep      func(ctx context.Context) error
		sum        float64
	)
	perf = Performance{Solver: s.Name(), Field: sys.Name}
	if normFactor, err = start(ctx, sys, x, b, r, &perf); err != nil {
		return
	}
	if s.c.MinIter <= 0 && perf.checkConvergence(s.c.Tolerance, s.c.RelTol) {
		return
	}
	switch s.smoother() {
	case "Jacobi":
		sweep = func(ctx context.Context) error { return jacobi(ctx, sys, x, b, r) }
	case "GaussSeidel":
		gs := newGaussSeidel(sys)
		sweep = func(ctx context.Context) error { return gs.sweep(ctx, x, b) }
	}
	for {
		for i := 0; i < nSweeps; i++ {
			if err = sweep(ctx); err != nil {
				return
			}
		}
		perf.NIterations += nSweeps
		if err = sys.Residual(ctx, x, b, r); err != nil {
			return
		}
		if sum, err = sys.sumMag(ctx, r); err != nil {
			return
		}
		perf.FinalResidual = sum / normFactor
		if !iterate(s.c, perf.NIterations, &perf) {
			break
		}
	}
	perf.checkConvergence(s.c.Tolerance, s.c.RelTol)
	return
}

// jacobi updates x += (b - A x)/D, work is scratch space
func jacobi(ctx context.Context, sys *System, x, b, work []float64) (err error) {
	if err = sys.Residual(ctx, x, b, work); err != nil {
		return
	}
	for i, d := range sys.Diag {
		x[i] += work[i] / d
	}
	return
}

type entry struct {
	col   int
	coeff float64
}

// gaussSeidel sweeps the rows in order with the interface contributions held
// at their values from the start of the sweep
type gaussSeidel struct {
	sys     *System
	rows    [][]entry
	bPrime  []float64
	scratch []float64
}

func newGaussSeidel(sys *System) *gaussSeidel {
	gs := &gaussSeidel{
		sys:     sys,
		rows:    make([][]entry, sys.NRows()),
		bPrime:  make([]float64, sys.NRows()),
		scratch: make([]float64, sys.NRows()),
	}
	for f, l := range sys.LowerAddr {
		u := sys.UpperAddr[f]
		gs.rows[l] = append(gs.rows[l], entry{col: u, coeff: sys.Upper[f]})
		gs.rows[u] = append(gs.rows[u], entry{col: l, coeff: sys.Lower[f]})
	}
	return gs
}

func (gs *gaussSeidel) sweep(ctx context.Context, x, b []float64) (err error) {
	for i := range gs.scratch {
		gs.scratch[i] = 0
	}
	for _, in := range gs.sys.Interfaces {
		if err = in.Update(ctx, x, gs.scratch); err != nil {
			return
		}
	}
	for i := range gs.bPrime {
		gs.bPrime[i] = b[i] - gs.scratch[i]
	}
	for i, row := range gs.rows {
		sum := gs.bPrime[i]
		for _, e := range row {
			sum -= e.coeff * x[e.col]
		}
		x[i] = sum / gs.sys.Diag[i]
	}
	return
}
