// Package fvmatrix holds the finite volume matrix: an LDU system for one
// field together with the boundary coefficients and the explicit source.
// The matrix stands for the operator A psi - Source, so that solving it
// means A psi = Source.
package fvmatrix

import (
	"errors"
	"fmt"

	"github.com/notargets/fvcore/dimensions"
	"github.com/notargets/fvcore/fields"
	"github.com/notargets/fvcore/types"
)

var ErrIncompatible = errors.New("incompatible matrix operands")

// Matrix couples the cells of psi through one lower and one upper
// coefficient per internal face. Boundary faces contribute InternalCoeffs to
// the diagonal and BoundaryCoeffs to the source; on coupled patches the
// boundary coefficients multiply the cell values across the coupling.
type Matrix[T types.Value[T]] struct {
	psi  *fields.VolField[T]
	dims dimensions.Set

	Diag   []float64
	Lower  []float64
	Upper  []float64
	Source []T

	internalCoeffs [][]T
	boundaryCoeffs [][]T

	// FaceFluxCorrection is the explicit part of the face flux of the
	// operator, over all faces. It is nil when the operator has none.
	FaceFluxCorrection []T
}

type ScalarMatrix = Matrix[types.Scalar]

// New returns an empty matrix for psi. dims are the dimensions of the
// volume integrated operator, A psi.
func New[T types.Value[T]](psi *fields.VolField[T], dims dimensions.Set) (m *Matrix[T]) {
	var (
		msh = psi.Mesh()
		nc  = msh.NCells()
		nf  = msh.NInternalFaces()
	)
	msh.CheckLive()
	m = &Matrix[T]{
		psi:            psi,
		dims:           dims,
		Diag:           make([]float64, nc),
		Lower:          make([]float64, nf),
		Upper:          make([]float64, nf),
		Source:         make([]T, nc),
		internalCoeffs: make([][]T, len(msh.Patches())),
		boundaryCoeffs: make([][]T, len(msh.Patches())),
	}
	for i, p := range msh.Patches() {
		m.internalCoeffs[i] = make([]T, p.Size)
		m.boundaryCoeffs[i] = make([]T, p.Size)
	}
	return
}

func (m *Matrix[T]) Psi() *fields.VolField[T]   { return m.psi }
func (m *Matrix[T]) Dimensions() dimensions.Set { return m.dims }

// InternalCoeffs are the boundary contributions to the diagonal, one slice
// per patch
func (m *Matrix[T]) InternalCoeffs() [][]T { return m.internalCoeffs }

// BoundaryCoeffs are the boundary contributions to the source, one slice per
// patch
func (m *Matrix[T]) BoundaryCoeffs() [][]T { return m.boundaryCoeffs }

func (m *Matrix[T]) String() string {
	return fmt.Sprintf("fvMatrix(%s) %s", m.psi.Name(), m.dims)
}

func (m *Matrix[T]) check(op string, o *Matrix[T]) error {
	if m.psi != o.psi {
		return fmt.Errorf("%w: %s of %s and %s, the matrices solve for different fields",
			ErrIncompatible, op, m, o)
	}
	fields.CheckCompatible(m.String(), m.psi.Mesh(), o.String(), o.psi.Mesh())
	return dimensions.Check(op, m.String(), m.dims, o.String(), o.dims)
}

// Add adds o to m
func (m *Matrix[T]) Add(o *Matrix[T]) error {
	return m.combine("+", o, 1)
}

// Sub subtracts o from m
func (m *Matrix[T]) Sub(o *Matrix[T]) error {
	return m.combine("-", o, -1)
}

func (m *Matrix[T]) combine(op string, o *Matrix[T], sign float64) (err error) {
	if err = m.check(op, o); err != nil {
		return
	}
	axpy(m.Diag, o.Diag, sign)
	axpy(m.Lower, o.Lower, sign)
	axpy(m.Upper, o.Upper, sign)
	addValues(m.Source, o.Source, sign)
	for i := range m.internalCoeffs {
		addValues(m.internalCoeffs[i], o.internalCoeffs[i], sign)
		addValues(m.boundaryCoeffs[i], o.boundaryCoeffs[i], sign)
	}
	if o.FaceFluxCorrection != nil {
		if m.FaceFluxCorrection == nil {
			m.FaceFluxCorrection = make([]T, len(o.FaceFluxCorrection))
		}
		addValues(m.FaceFluxCorrection, o.FaceFluxCorrection, sign)
	}
	return
}

// Negate flips the sign of the operator
func (m *Matrix[T]) Negate() *Matrix[T] {
	return m.Scale(-1)
}

func (m *Matrix[T]) Scale(s float64) *Matrix[T] {
	scale(m.Diag, s)
	scale(m.Lower, s)
	scale(m.Upper, s)
	scaleValues(m.Source, s)
	for i := range m.internalCoeffs {
		scaleValues(m.internalCoeffs[i], s)
		scaleValues(m.boundaryCoeffs[i], s)
	}
	scaleValues(m.FaceFluxCorrection, s)
	return m
}

// AddSource moves the explicit field su to the right hand side, the
// equation m == su
func (m *Matrix[T]) AddSource(su *fields.VolField[T]) (err error) {
	fields.CheckCompatible(m.String(), m.psi.Mesh(), su.Name(), su.Mesh())
	if err = dimensions.Check("==", m.String(), m.dims, su.Name(), su.Dimensions().Mul(dimensions.DimVolume)); err != nil {
		return
	}
	V := m.psi.Mesh().V()
	for i, v := range su.Internal() {
		m.Source[i] = m.Source[i].Add(v.Scale(V[i]))
	}
	return
}

// SetReference pins the value of cell to value, for systems without any
// value fixing boundary. A negative cell does nothing, so that only the rank
// holding the reference cell acts.
func (m *Matrix[T]) SetReference(cell int, value T) {
	if cell < 0 {
		return
	}
	m.Source[cell] = m.Source[cell].Add(value.Scale(m.Diag[cell]))
	m.Diag[cell] += m.Diag[cell]
}

func axpy(dst, src []float64, a float64) {
	for i, v := range src {
		dst[i] += a * v
	}
}

func scale(v []float64, s float64) {
	for i := range v {
		v[i] *= s
	}
}

func addValues[T types.Value[T]](dst, src []T, a float64) {
	for i, v := range src {
		dst[i] = dst[i].Add(v.Scale(a))
	}
}

func scaleValues[T types.Value[T]](v []T, s float64) {
	for i := range v {
		v[i] = v[i].Scale(s)
	}
}
