// Package solvers holds the iterative and direct linear solvers for the
// LDU systems assembled by the finite volume operators. Systems may span
// several ranks, coupled through their interfaces; every global reduction
// goes through the communicator of the system.
package solvers

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/floats"

	"github.com/notargets/fvcore/parallel"
)

// Interface couples the system to values outside of its own rows, either
// across a periodic boundary or on another rank
type Interface interface {
	// Update subtracts coeff*x(neighbour) from y for every interface face
	Update(ctx context.Context, x, y []float64) error
}

// Coupling is one matrix entry contributed by an interface
type Coupling struct {
	Row, Col int
	Coeff    float64
}

// LocalInterface is an Interface whose neighbour cells belong to the same
// system, its entries can be assembled into a global matrix
type LocalInterface interface {
	Interface
	Couplings() []Coupling
}

// System is a square matrix in LDU form: the diagonal plus one lower and one
// upper coefficient per face, addressed by the lower (owner) and upper
// (neighbour) row of the face
type System struct {
	Name       string
	Diag       []float64
	Lower      []float64
	Upper      []float64
	LowerAddr  []int
	UpperAddr  []int
	Interfaces []Interface
	Comm       parallel.Communicator
}

func (s *System) NRows() int { return len(s.Diag) }

func (s *System) comm() parallel.Communicator {
	if s.Comm == nil {
		return parallel.Serial{}
	}
	return s.Comm
}

// Symmetric is true when every lower coefficient equals its upper partner
func (s *System) Symmetric() bool {
	for f := range s.Lower {
		if s.Lower[f] != s.Upper[f] {
			return false
		}
	}
	return true
}

// Amul sets y = A x, including the interface contributions. Processor
// interfaces exchange, so every rank must call it.
func (s *System) Amul(ctx context.Context, x, y []float64) (err error) {
	for i, d := range s.Diag {
		y[i] = d * x[i]
	}
	for f, l := range s.LowerAddr {
		u := s.UpperAddr[f]
		y[u] += s.Lower[f] * x[l]
		y[l] += s.Upper[f] * x[u]
	}
	for _, in := range s.Interfaces {
		if err = in.Update(ctx, x, y); err != nil {
			return
		}
	}
	return
}

// Residual sets r = b - A x
func (s *System) Residual(ctx context.Context, x, b, r []float64) (err error) {
	if err = s.Amul(ctx, x, r); err != nil {
		return
	}
	floats.SubTo(r, b, r)
	return
}

// NormFactor is the normalisation of the residual that makes it independent
// of the scale of the solution:
//
//	sum(|A x - A xRef| + |b - A xRef|) + 1e-20
//
// where xRef is the global average of x
func (s *System) NormFactor(ctx context.Context, x, b, Ax []float64) (nf float64, err error) {
	var (
		n      = s.NRows()
		sums   = []float64{floats.Sum(x), float64(n)}
		xRef   = make([]float64, n)
		AxRef  = make([]float64, n)
		local  float64
		global float64
	)
	if err = s.comm().AllReduceSum(ctx, sums); err != nil {
		return
	}
	avg := 0.
	if sums[1] > 0 {
		avg = sums[0] / sums[1]
	}
	for i := range xRef {
		xRef[i] = avg
	}
	if err = s.Amul(ctx, xRef, AxRef); err != nil {
		return
	}
	for i := range AxRef {
		local += math.Abs(Ax[i]-AxRef[i]) + math.Abs(b[i]-AxRef[i])
	}
	if global, err = parallel.Sum(ctx, s.comm(), local); err != nil {
		return
	}
	return global + 1e-20, nil
}

func (s *System) sumMag(ctx context.Context, v []float64) (float64, error) {
	return parallel.Sum(ctx, s.comm(), floats.Norm(v, 1))
}

func (s *System) sumProd(ctx context.Context, a, b []float64) (float64, error) {
	return parallel.Sum(ctx, s.comm(), floats.Dot(a, b))
}

// faceOrder lists the faces sorted by lower then upper address, the order
// the triangular sweeps need
func (s *System) faceOrder() (order []int) {
	order = make([]int, len(s.LowerAddr))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		fi, fj := order[i], order[j]
		if s.LowerAddr[fi] != s.LowerAddr[fj] {
			return s.LowerAddr[fi] < s.LowerAddr[fj]
		}
		return s.UpperAddr[fi] < s.UpperAddr[fj]
	})
	return
}

// DOK assembles the local rows into a sparse matrix. Local interfaces are
// included, processor interfaces cannot be and make the call fail.
func (s *System) DOK() (dok *sparse.DOK, err error) {
	n := s.NRows()
	dok = sparse.NewDOK(n, n)
	add := func(i, j int, v float64) {
		dok.Set(i, j, dok.At(i, j)+v)
	}
	for i, d := range s.Diag {
		add(i, i, d)
	}
	for f, l := range s.LowerAddr {
		u := s.UpperAddr[f]
		add(u, l, s.Lower[f])
		add(l, u, s.Upper[f])
	}
	for i, in := range s.Interfaces {
		local, ok := in.(LocalInterface)
		if !ok {
			return nil, fmt.Errorf("%w: interface %d of %s couples to another rank", ErrUnsupported, i, s.Name)
		}
		for _, c := range local.Couplings() {
			add(c.Row, c.Col, c.Coeff)
		}
	}
	return
}

// CSR is the compressed row form of DOK
func (s *System) CSR() (*sparse.CSR, error) {
	dok, err := s.DOK()
	if err != nil {
		return nil, err
	}
	return dok.ToCSR(), nil
}
