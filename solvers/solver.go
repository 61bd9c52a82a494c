package solvers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/notargets/fvcore/parallel"
)

var (
	ErrUnknownSolver = errors.New("unknown linear solver")
	ErrUnsupported   = errors.New("unsupported by the linear solver")
)

// Verbose logs one performance line per solve
var Verbose = false

// Controls select and configure a solver, they are read from the case file
type Controls struct {
	Solver         string  `json:"solver"`
	Preconditioner string  `json:"preconditioner,omitempty"`
	Smoother       string  `json:"smoother,omitempty"`
	Tolerance      float64 `json:"tolerance"`
	RelTol         float64 `json:"relTol"`
	MaxIter        int     `json:"maxIter,omitempty"`
	MinIter        int     `json:"minIter,omitempty"`
	NSweeps        int     `json:"nSweeps,omitempty"`
}

func DefaultControls() Controls {
	return Controls{
		Solver:         "PCG",
		Preconditioner: "DIC",
		Tolerance:      1e-6,
		MaxIter:        1000,
	}
}

func (c Controls) maxIter() int {
	if c.MaxIter <= 0 {
		return 1000
	}
	return c.MaxIter
}

// Performance reports the outcome of a solve. A solve that does not converge
// is not an error, callers inspect Converged.
type Performance struct {
	Solver          string
	Field           string
	InitialResidual float64
	FinalResidual   float64
	NIterations     int
	Converged       bool
	Singular        bool
}

func (p Performance) String() string {
	return fmt.Sprintf("%s:  Solving for %s, Initial residual = %g, Final residual = %g, No Iterations %d",
		p.Solver, p.Field, p.InitialResidual, p.FinalResidual, p.NIterations)
}

// checkConvergence sets Converged from the absolute and relative tolerances
func (p *Performance) checkConvergence(tol, relTol float64) bool {
	p.Converged = p.FinalResidual < tol ||
		(relTol > 0 && p.FinalResidual < relTol*p.InitialResidual)
	return p.Converged
}

// Max combines the performance of the components of one segregated solve,
// keeping the worst residuals and the most iterations
func Max(a, b Performance) Performance {
	if a.Solver == "" {
		return b
	}
	a.InitialResidual = max(a.InitialResidual, b.InitialResidual)
	a.FinalResidual = max(a.FinalResidual, b.FinalResidual)
	a.NIterations = max(a.NIterations, b.NIterations)
	a.Converged = a.Converged && b.Converged
	a.Singular = a.Singular || b.Singular
	return a
}

type Solver interface {
	Name() string
	// Solve improves x in place towards A x = b
	Solve(ctx context.Context, sys *System, x, b []float64) (Performance, error)
}

type Constructor func(c Controls) (Solver, error)

var constructors = make(map[string]Constructor)

func Register(name string, c Constructor) {
	if _, present := constructors[name]; present {
		panic(fmt.Errorf("solver %s registered twice", name))
	}
	constructors[name] = c
}

func Names() (names []string) {
	for name := range constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return
}

func New(c Controls) (Solver, error) {
	ctor, ok := constructors[c.Solver]
	if !ok {
		return nil, fmt.Errorf("%w %q, valid solvers are: %s",
			ErrUnknownSolver, c.Solver, strings.Join(Names(), ", "))
	}
	return ctor(c)
}

// Solve resolves the solver named by c and runs it on sys
func Solve(ctx context.Context, c Controls, sys *System, x, b []float64) (perf Performance, err error) {
	var (
		s Solver
	)
	if s, err = New(c); err != nil {
		return
	}
	ctx, span := parallel.StartSpan(ctx, sys.comm(), "solvers.Solve")
	defer span.End()
	if perf, err = s.Solve(ctx, sys, x, b); err != nil {
		span.RecordError(err)
		return
	}
	span.SetAttributes(
		attribute.String("solver", perf.Solver),
		attribute.String("field", perf.Field),
		attribute.Int("iterations", perf.NIterations),
		attribute.Float64("finalResidual", perf.FinalResidual),
	)
	if Verbose && sys.comm().Rank() == 0 {
		log.Println(perf)
	}
	return
}

// iterate reports whether the iteration loop should continue after n
// iterations
func iterate(c Controls, n int, perf *Performance) bool {
	return (n < c.maxIter() && !perf.checkConvergence(c.Tolerance, c.RelTol)) || n < c.MinIter
}

// start computes the initial residual r = b - A x and its normalisation
func start(ctx context.Context, sys *System, x, b, r []float64, perf *Performance) (normFactor float64, err error) {
	var (
		Ax = make([]float64, len(x))
	)
	if err = sys.Amul(ctx, x, Ax); err != nil {
		return
	}
	for i := range r {
		r[i] = b[i] - Ax[i]
	}
	if normFactor, err = sys.NormFactor(ctx, x, b, Ax); err != nil {
		return
	}
	var sum float64
	if sum, err = sys.sumMag(ctx, r); err != nil {
		return
	}
	perf.InitialResidual = sum / normFactor
	perf.FinalResidual = perf.InitialResidual
	return
}
