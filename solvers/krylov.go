package solvers

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/notargets/fvcore/types"
)

func init() {
	Register("PCG", func(c Controls) (Solver, error) {
		if err := checkPreconditioner(c.Preconditioner); err != nil {
			return nil, err
		}
		return pcg{c: c}, nil
	})
	Register("PBiCGStab", func(c Controls) (Solver, error) {
		if err := checkPreconditioner(c.Preconditioner); err != nil {
			return nil, err
		}
		return pbicgstab{c: c}, nil
	})
}

// pcg is the preconditioned conjugate gradient method for symmetric systems
type pcg struct {
	c Controls
}

func (s pcg) Name() string { return s.c.Preconditioner + "PCG" }

func (s pcg) Solve(ctx context.Context, sys *System, x, b []float64) (perf Performance, err error) {
	var (
		n          = sys.NRows()
		rA         = make([]float64, n)
		wA         = make([]float64, n)
		pA         = make([]float64, n)
		normFactor float64
		precon     Preconditioner
		wArA       = math.MaxFloat64
		wArAold    float64
		wApA       float64
		sum        float64
	)
	perf = Performance{Solver: s.Name(), Field: sys.Name}
	if !sys.Symmetric() {
		return perf, fmt.Errorf("%w: PCG needs a symmetric matrix, %s is asymmetric", ErrUnsupported, sys.Name)
	}
	if normFactor, err = start(ctx, sys, x, b, rA, &perf); err != nil {
		return
	}
	if s.c.MinIter <= 0 && perf.checkConvergence(s.c.Tolerance, s.c.RelTol) {
		return
	}
	if precon, err = newPreconditioner(s.c.Preconditioner, sys); err != nil {
		return
	}
	for {
		wArAold = wArA
		precon.Precondition(wA, rA)
		if wArA, err = sys.sumProd(ctx, wA, rA); err != nil {
			return
		}
		if perf.NIterations == 0 {
			copy(pA, wA)
		} else {
			beta := wArA / wArAold
			for i := range pA {
				pA[i] = wA[i] + beta*pA[i]
			}
		}
		if err = sys.Amul(ctx, pA, wA); err != nil {
			return
		}
		if wApA, err = sys.sumProd(ctx, wA, pA); err != nil {
			return
		}
		if math.Abs(wApA)/normFactor < types.VSmall {
			perf.Singular = true
			break
		}
		alpha := wArA / wApA
		floats.AddScaled(x, alpha, pA)
		floats.AddScaled(rA, -alpha, wA)
		if sum, err = sys.sumMag(ctx, rA); err != nil {
			return
		}
		perf.FinalResidual = sum / normFactor
		perf.NIterations++
		if !iterate(s.c, perf.NIterations, &perf) {
			break
		}
	}
	perf.checkConvergence(s.c.Tolerance, s.c.RelTol)
	return
}

// pbicgstab is the preconditioned stabilised bi-conjugate gradient method,
// it handles asymmetric systems
type pbicgstab struct {
	c Controls
}

func (s pbicgstab) Name() string { return s.c.Preconditioner + "PBiCGStab" }

func (s pbicgstab) Solve(ctx context.Context, sys *System, x, b []float64) (perf Performance, err error) {
	var (
		n          = sys.NRows()
		rA         = make([]float64, n)
		rA0        = make([]float64, n)
		pA         = make([]float64, n)
		yA         = make([]float64, n)
		AyA        = make([]float64, n)
		sA         = make([]float64, n)
		zA         = make([]float64, n)
		tA         = make([]float64, n)
		normFactor float64
		precon     Preconditioner
		rA0rA      float64
		rA0rAold   float64
		alpha      float64
		omega      float64
		sum        float64
	)
	perf = Performance{Solver: s.Name(), Field: sys.Name}
	if normFactor, err = start(ctx, sys, x, b, rA, &perf); err != nil {
		return
	}
	if s.c.MinIter <= 0 && perf.checkConvergence(s.c.Tolerance, s.c.RelTol) {
		return
	}
	if precon, err = newPreconditioner(s.c.Preconditioner, sys); err != nil {
		return
	}
	copy(rA0, rA)
	for {
		rA0rAold = rA0rA
		if rA0rA, err = sys.sumProd(ctx, rA0, rA); err != nil {
			return
		}
		if perf.NIterations > 0 && math.Abs(rA0rA)/normFactor < types.VSmall {
			// Shadow residual orthogonal to the residual, restart from rA
			copy(rA0, rA)
			if rA0rA, err = sys.sumProd(ctx, rA0, rA); err != nil {
				return
			}
			if math.Abs(rA0rA)/normFactor < types.VSmall {
				perf.Singular = true
				break
			}
			copy(pA, rA)
		} else if perf.NIterations == 0 {
			copy(pA, rA)
		} else {
			beta := (rA0rA / rA0rAold) * (alpha / omega)
			for i := range pA {
				pA[i] = rA[i] + beta*(pA[i]-omega*AyA[i])
			}
		}
		precon.Precondition(yA, pA)
		if err = sys.Amul(ctx, yA, AyA); err != nil {
			return
		}
		var rA0AyA float64
		if rA0AyA, err = sys.sumProd(ctx, rA0, AyA); err != nil {
			return
		}
		alpha = rA0rA / rA0AyA
		for i := range sA {
			sA[i] = rA[i] - alpha*AyA[i]
		}
		if sum, err = sys.sumMag(ctx, sA); err != nil {
			return
		}
		// Converged on the half step
		if res := sum / normFactor; perf.NIterations >= s.c.MinIter-1 &&
			(res < s.c.Tolerance || (s.c.RelTol > 0 && res < s.c.RelTol*perf.InitialResidual)) {
			floats.AddScaled(x, alpha, yA)
			perf.FinalResidual = res
			perf.NIterations++
			break
		}
		precon.Precondition(zA, sA)
		if err = sys.Amul(ctx, zA, tA); err != nil {
			return
		}
		var tAtA, tAsA float64
		if tAtA, err = sys.sumProd(ctx, tA, tA); err != nil {
			return
		}
		if tAsA, err = sys.sumProd(ctx, tA, sA); err != nil {
			return
		}
		omega = tAsA / tAtA
		floats.AddScaled(x, alpha, yA)
		floats.AddScaled(x, omega, zA)
		for i := range rA {
			rA[i] = sA[i] - omega*tA[i]
		}
		if sum, err = sys.sumMag(ctx, rA); err != nil {
			return
		}
		perf.FinalResidual = sum / normFactor
		perf.NIterations++
		if !iterate(s.c, perf.NIterations, &perf) {
			break
		}
	}
	perf.checkConvergence(s.c.Tolerance, s.c.RelTol)
	return
}
