package types

import (
	"fmt"
	"math"
)

// Vector is a Cartesian 3-vector
type Vector [3]float64

func NewVector(x, y, z float64) Vector { return Vector{x, y, z} }

func (v Vector) Add(o Vector) Vector {
	return Vector{v[0] + o[0], v[1] + o[1], v[2] + o[2]}
}

func (v Vector) Sub(o Vector) Vector {
	return Vector{v[0] - o[0], v[1] - o[1], v[2] - o[2]}
}

func (v Vector) Scale(s float64) Vector {
	return Vector{s * v[0], s * v[1], s * v[2]}
}

func (v Vector) Dot(o Vector) float64 {
	return v[0]*o[0] + v[1]*o[1] + v[2]*o[2]
}

func (v Vector) Cross(o Vector) Vector {
	return Vector{
		v[1]*o[2] - v[2]*o[1],
		v[2]*o[0] - v[0]*o[2],
		v[0]*o[1] - v[1]*o[0],
	}
}

func (v Vector) Mag() float64    { return math.Sqrt(v.Dot(v)) }
func (v Vector) MagSqr() float64 { return v.Dot(v) }

// Normalised returns v/|v|, or the zero vector when |v| vanishes
func (v Vector) Normalised() Vector {
	m := v.Mag()
	if m < VSmall {
		return Vector{}
	}
	return v.Scale(1 / m)
}

// OuterV is the vector-vector outer product v o
func (v Vector) OuterV(o Vector) (t Tensor) {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			t[i*3+j] = v[i] * o[j]
		}
	}
	return
}

func (v Vector) NComponents() int        { return 3 }
func (v Vector) Component(i int) float64 { return v[i] }
func (v Vector) TypeName() string        { return "vector" }

func (v Vector) WithComponent(i int, val float64) Vector {
	v[i] = val
	return v
}

func (v Vector) String() string {
	return fmt.Sprintf("(%g %g %g)", v[0], v[1], v[2])
}
