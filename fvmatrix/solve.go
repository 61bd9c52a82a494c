package fvmatrix

import (
	"context"
	"fmt"
	"math"

	"github.com/james-bowman/sparse"
	"go.opentelemetry.io/otel/attribute"

	"github.com/notargets/fvcore/mesh"
	"github.com/notargets/fvcore/parallel"
	"github.com/notargets/fvcore/solvers"
	"github.com/notargets/fvcore/types"
)

// interfaceCoeffs couples the cells of a coupled patch to the cells across
// it, y -= coeffs*x(neighbour)
type interfaceCoeffs struct {
	mesh   *mesh.Mesh
	patch  *mesh.Patch
	coeffs []float64
}

func (in *interfaceCoeffs) Update(ctx context.Context, x, y []float64) (err error) {
	var (
		nbr []float64
	)
	if nbr, err = in.mesh.NeighbourValues(ctx, in.patch, x, 1); err != nil {
		return
	}
	for i, c := range in.patch.FaceCells() {
		y[c] -= in.coeffs[i] * nbr[i]
	}
	return
}

// localInterface is a periodic coupling within one mesh
type localInterface struct {
	*interfaceCoeffs
}

func (in localInterface) Couplings() (cs []solvers.Coupling) {
	var (
		p    = in.patch
		own  = p.FaceCells()
		nbrs = in.mesh.Partner(p).FaceCells()
	)
	for i, c := range own {
		if p.Kind == mesh.KindNonConformal {
			for _, w := range p.NbrWeights[i] {
				cs = append(cs, solvers.Coupling{Row: c, Col: nbrs[w.Face], Coeff: -in.coeffs[i] * w.Weight})
			}
			continue
		}
		cs = append(cs, solvers.Coupling{Row: c, Col: nbrs[i], Coeff: -in.coeffs[i]})
	}
	return
}

// System returns component cmpt of the matrix as a linear system with the
// boundary contributions folded in, and its right hand side
func (m *Matrix[T]) System(cmpt int) (sys *solvers.System, b []float64) {
	var (
		msh = m.psi.Mesh()
	)
	sys = &solvers.System{
		Name:      componentName(m.psi.Name(), cmpt, types.NComponents[T]()),
		Diag:      append([]float64(nil), m.Diag...),
		Lower:     m.Lower,
		Upper:     m.Upper,
		LowerAddr: msh.Owners()[:msh.NInternalFaces()],
		UpperAddr: msh.Neighbours(),
		Comm:      msh.Comm(),
	}
	b = make([]float64, len(m.Source))
	for i, s := range m.Source {
		b[i] = s.Component(cmpt)
	}
	for pi, p := range msh.Patches() {
		var (
			iC = m.internalCoeffs[pi]
			bC = m.boundaryCoeffs[pi]
		)
		for i, c := range p.FaceCells() {
			sys.Diag[c] += iC[i].Component(cmpt)
		}
		if !p.Coupled() {
			for i, c := range p.FaceCells() {
				b[c] += bC[i].Component(cmpt)
			}
			continue
		}
		in := &interfaceCoeffs{mesh: msh, patch: p, coeffs: make([]float64, p.Size)}
		for i := range in.coeffs {
			in.coeffs[i] = bC[i].Component(cmpt)
		}
		if p.Kind == mesh.KindProcessor {
			sys.Interfaces = append(sys.Interfaces, in)
		} else {
			sys.Interfaces = append(sys.Interfaces, localInterface{in})
		}
	}
	return
}

var componentNames = map[int][]string{
	3: {"x", "y", "z"},
	9: {"xx", "xy", "xz", "yx", "yy", "yz", "zx", "zy", "zz"},
}

func componentName(name string, cmpt, ncmpt int) string {
	if ncmpt == 1 {
		return name
	}
	if names, ok := componentNames[ncmpt]; ok {
		return name + names[cmpt]
	}
	return fmt.Sprintf("%s%d", name, cmpt)
}

// Solve solves every component of the matrix in turn and corrects the
// boundary conditions of psi. The performance reported is the worst over
// the components; failing to converge is not an error.
func (m *Matrix[T]) Solve(ctx context.Context, c solvers.Controls) (perf solvers.Performance, err error) {
	var (
		msh   = m.psi.Mesh()
		ncmpt = types.NComponents[T]()
	)
	ctx, span := parallel.StartSpan(ctx, msh.Comm(), "fvmatrix.Solve")
	span.SetAttributes(attribute.String("field", m.psi.Name()), attribute.String("solver", c.Solver))
	defer span.End()
	psi := m.psi.Ref()
	x := make([]float64, len(psi))
	for cmpt := 0; cmpt < ncmpt; cmpt++ {
		sys, b := m.System(cmpt)
		for i, v := range psi {
			x[i] = v.Component(cmpt)
		}
		var p solvers.Performance
		if p, err = solvers.Solve(ctx, c, sys, x, b); err != nil {
			span.RecordError(err)
			return
		}
		for i := range psi {
			psi[i] = psi[i].WithComponent(cmpt, x[i])
		}
		perf = solvers.Max(perf, p)
	}
	perf.Field = m.psi.Name()
	err = m.psi.CorrectBoundaryConditions(ctx)
	return
}

// Relax makes the matrix diagonally dominant and under-relaxes it with the
// factor alpha in (0, 1]. The diagonal grows to max(|D|, sum|offdiag|)/alpha
// and the growth times the current psi goes to the source, so a converged
// solution is unchanged.
func (m *Matrix[T]) Relax(alpha float64) {
	if alpha <= 0 || alpha > 1 {
		panic(fmt.Errorf("relaxation factor %g of %s outside (0, 1]", alpha, m))
	}
	var (
		msh    = m.psi.Mesh()
		psi    = m.psi.Internal()
		D      = append([]float64(nil), m.Diag...)
		D0     = m.Diag
		sumOff = make([]float64, len(D))
	)
	for f, l := range msh.Owners()[:msh.NInternalFaces()] {
		u := msh.Neighbours()[f]
		sumOff[l] += math.Abs(m.Upper[f])
		sumOff[u] += math.Abs(m.Lower[f])
	}
	for pi, p := range msh.Patches() {
		var (
			iC = m.internalCoeffs[pi]
			bC = m.boundaryCoeffs[pi]
		)
		for i, c := range p.FaceCells() {
			if p.Coupled() {
				D[c] += iC[i].Component(0)
				sumOff[c] += math.Abs(bC[i].Component(0))
			} else {
				D[c] += types.CmptMax(types.CmptMag(iC[i]))
			}
		}
	}
	for i := range D {
		D[i] = max(math.Abs(D[i]), sumOff[i]) / alpha
	}
	for pi, p := range msh.Patches() {
		iC := m.internalCoeffs[pi]
		for i, c := range p.FaceCells() {
			if p.Coupled() {
				D[c] -= iC[i].Component(0)
			} else {
				D[c] -= types.CmptMin(iC[i])
			}
		}
	}
	for i := range D {
		m.Source[i] = m.Source[i].Add(psi[i].Scale(D[i] - D0[i]))
	}
	m.Diag = D
}

// Residual is b - A psi per cell and component, with the boundary
// contributions the solver sees
func (m *Matrix[T]) Residual(ctx context.Context) (res []T, err error) {
	var (
		psi = m.psi.Internal()
		x   = make([]float64, len(psi))
		r   = make([]float64, len(psi))
	)
	res = make([]T, len(psi))
	for cmpt := 0; cmpt < types.NComponents[T](); cmpt++ {
		sys, b := m.System(cmpt)
		for i, v := range psi {
			x[i] = v.Component(cmpt)
		}
		if err = sys.Residual(ctx, x, b, r); err != nil {
			return
		}
		for i := range res {
			res[i] = res[i].WithComponent(cmpt, r[i])
		}
	}
	return
}

// Apply evaluates the operator on the current psi, (A psi - b)/V per cell.
// It is the explicit counterpart of the matrix.
func (m *Matrix[T]) Apply(ctx context.Context) (out []T, err error) {
	if out, err = m.Residual(ctx); err != nil {
		return
	}
	V := m.psi.Mesh().V()
	for i := range out {
		out[i] = out[i].Scale(-1 / V[i])
	}
	return
}

// CSR exports component cmpt of the assembled matrix. Processor couplings
// cannot be represented and make it fail.
func (m *Matrix[T]) CSR(cmpt int) (*sparse.CSR, error) {
	sys, _ := m.System(cmpt)
	return sys.CSR()
}

// NeedsReference is true when no patch of psi fixes its value on any rank,
// leaving the solution determined up to a constant
func (m *Matrix[T]) NeedsReference(ctx context.Context) (bool, error) {
	var fixed float64
	for _, pf := range m.psi.Boundary() {
		if pf.FixesValue() {
			fixed++
		}
	}
	total, err := parallel.Sum(ctx, m.psi.Mesh().Comm(), fixed)
	return total == 0, err
}
