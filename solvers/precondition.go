package solvers

import (
	"fmt"
	"sort"
	"strings"
)

// Preconditioner applies an approximate inverse of the system, w = M^-1 r
type Preconditioner interface {
	Precondition(w, r []float64)
}

var preconditioners = map[string]func(sys *System) Preconditioner{
	"none":     func(*System) Preconditioner { return noPreconditioner{} },
	"diagonal": newDiagonal,
	"DIC":      newDILU,
	"DILU":     newDILU,
}

func newPreconditioner(name string, sys *System) (Preconditioner, error) {
	if err := checkPreconditioner(name); err != nil {
		return nil, err
	}
	if name == "" {
		name = "none"
	}
	return preconditioners[name](sys), nil
}

func Preconditioners() (names []string) {
	for n := range preconditioners {
		names = append(names, n)
	}
	sort.Strings(names)
	return
}

func checkPreconditioner(name string) error {
	if _, ok := preconditioners[name]; name != "" && !ok {
		return fmt.Errorf("%w: preconditioner %q, valid preconditioners are: %s",
			ErrUnsupported, name, strings.Join(Preconditioners(), ", "))
	}
	return nil
}

type noPreconditioner struct{}

func (noPreconditioner) Precondition(w, r []float64) { copy(w, r) }

type diagonal struct {
	rD []float64
}

func newDiagonal(sys *System) Preconditioner {
	rD := make([]float64, sys.NRows())
	for i, d := range sys.Diag {
		rD[i] = 1 / d
	}
	return diagonal{rD: rD}
}

func (p diagonal) Precondition(w, r []float64) {
	for i, rD := range p.rD {
		w[i] = rD * r[i]
	}
}

// dilu is the incomplete LU factorisation with the sparsity of the system,
// for a symmetric system it is the incomplete Cholesky factorisation. The
// interfaces are left out.
type dilu struct {
	sys   *System
	rD    []float64
	order []int
}

func newDILU(sys *System) Preconditioner {
	p := &dilu{
		sys:   sys,
		rD:    append([]float64(nil), sys.Diag...),
		order: sys.faceOrder(),
	}
	for _, f := range p.order {
		l, u := sys.LowerAddr[f], sys.UpperAddr[f]
		p.rD[u] -= sys.Upper[f] * sys.Lower[f] / p.rD[l]
	}
	for i := range p.rD {
		p.rD[i] = 1 / p.rD[i]
	}
	return p
}

func (p *dilu) Precondition(w, r []float64) {
	var (
		sys = p.sys
	)
	for i, rD := range p.rD {
		w[i] = rD * r[i]
	}
	for _, f := range p.order {
		l, u := sys.LowerAddr[f], sys.UpperAddr[f]
		w[u] -= p.rD[u] * sys.Lower[f] * w[l]
	}
	for k := len(p.order) - 1; k >= 0; k-- {
		f := p.order[k]
		l, u := sys.LowerAddr[f], sys.UpperAddr[f]
		w[l] -= p.rD[l] * sys.Upper[f] * w[u]
	}
}
