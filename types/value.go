package types

import "fmt"

// Value is satisfied by every cell/face value type carried by a field. The
// self-referencing constraint lets generic field code do arithmetic without
// knowing whether it holds a Scalar, a Vector or a Tensor.
type Value[T any] interface {
	Add(T) T
	Sub(T) T
	Scale(s float64) T
	Mag() float64
	// NComponents is a property of the type, it never depends on the value
	NComponents() int
	Component(i int) float64
	WithComponent(i int, v float64) T
	TypeName() string
}

// Zero returns the additive identity of T
func Zero[T Value[T]]() (z T) {
	return
}

// One returns the value of T with every component set to 1
func One[T Value[T]]() (o T) {
	for i := 0; i < o.NComponents(); i++ {
		o = o.WithComponent(i, 1)
	}
	return
}

// NComponents returns the number of components of T
func NComponents[T Value[T]]() int {
	var z T
	return z.NComponents()
}

// CmptMultiply multiplies a and b component by component
func CmptMultiply[T Value[T]](a, b T) (r T) {
	for i := 0; i < a.NComponents(); i++ {
		r = r.WithComponent(i, a.Component(i)*b.Component(i))
	}
	return
}

// CmptMax returns the largest component of a
func CmptMax[T Value[T]](a T) (m float64) {
	m = a.Component(0)
	for i := 1; i < a.NComponents(); i++ {
		if c := a.Component(i); c > m {
			m = c
		}
	}
	return
}

// CmptMin returns the smallest component of a
func CmptMin[T Value[T]](a T) (m float64) {
	m = a.Component(0)
	for i := 1; i < a.NComponents(); i++ {
		if c := a.Component(i); c < m {
			m = c
		}
	}
	return
}

// CmptMag returns a with every component replaced by its magnitude
func CmptMag[T Value[T]](a T) (r T) {
	for i := 0; i < a.NComponents(); i++ {
		c := a.Component(i)
		if c < 0 {
			c = -c
		}
		r = r.WithComponent(i, c)
	}
	return
}

// Outer forms the outer product of a face area vector (or any vector) with a
// value of type T, storing the result in G. G must carry three times the
// components of T, laid out as G[d*nT+c] = v[d]*a[c].
func Outer[T Value[T], G Value[G]](v Vector, a T) (g G) {
	var (
		nT = a.NComponents()
	)
	if g.NComponents() != 3*nT {
		panic(fmt.Errorf("cannot form outer product of vector and %s into %s",
			a.TypeName(), g.TypeName()))
	}
	for d := 0; d < 3; d++ {
		for c := 0; c < nT; c++ {
			g = g.WithComponent(d*nT+c, v[d]*a.Component(c))
		}
	}
	return
}

// InnerVector contracts the leading (spatial) index of a gradient-like value G
// with v, returning the T valued directional derivative v.G
func InnerVector[G Value[G], T Value[T]](v Vector, g G) (r T) {
	var (
		nT = r.NComponents()
	)
	if g.NComponents() != 3*nT {
		panic(fmt.Errorf("cannot contract %s with a vector into %s",
			g.TypeName(), r.TypeName()))
	}
	for c := 0; c < nT; c++ {
		var sum float64
		for d := 0; d < 3; d++ {
			sum += v[d] * g.Component(d*nT+c)
		}
		r = r.WithComponent(c, sum)
	}
	return
}

// Flatten lays out the components of vals contiguously, NComponents per item
func Flatten[T Value[T]](vals []T) (flat []float64) {
	var (
		n = NComponents[T]()
	)
	flat = make([]float64, n*len(vals))
	for i, v := range vals {
		for c := 0; c < n; c++ {
			flat[i*n+c] = v.Component(c)
		}
	}
	return
}

// Unflatten is the inverse of Flatten
func Unflatten[T Value[T]](flat []float64) (vals []T) {
	var (
		n = NComponents[T]()
	)
	if len(flat)%n != 0 {
		panic(fmt.Errorf("cannot split %d components into values of %d", len(flat), n))
	}
	vals = make([]T, len(flat)/n)
	for i := range vals {
		for c := 0; c < n; c++ {
			vals[i] = vals[i].WithComponent(c, flat[i*n+c])
		}
	}
	return
}
