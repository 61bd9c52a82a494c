package types

import "math"

// Scalar is the value type of scalar fields
type Scalar float64

func (s Scalar) Add(o Scalar) Scalar    { return s + o }
func (s Scalar) Sub(o Scalar) Scalar    { return s - o }
func (s Scalar) Scale(f float64) Scalar { return Scalar(f) * s }
func (s Scalar) Mag() float64           { return math.Abs(float64(s)) }
func (s Scalar) NComponents() int       { return 1 }
func (s Scalar) Component(int) float64  { return float64(s) }
func (s Scalar) TypeName() string       { return "scalar" }

func (s Scalar) WithComponent(_ int, v float64) Scalar {
	return Scalar(v)
}

// Scalars converts a []float64 into a []Scalar
func Scalars(v []float64) (s []Scalar) {
	s = make([]Scalar, len(v))
	for i, val := range v {
		s[i] = Scalar(val)
	}
	return
}

// Float64s is the inverse of Scalars
func Float64s(s []Scalar) (v []float64) {
	v = make([]float64, len(s))
	for i, val := range s {
		v[i] = float64(val)
	}
	return
}
