package types

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	Small  = 1.e-15
	VSmall = 1.e-300
	Great  = 1.e+15
)

// Tensor is a row major 3x3 tensor, T[i*3+j] = T_ij
type Tensor [9]float64

// I is the identity tensor
var I = Tensor{1, 0, 0, 0, 1, 0, 0, 0, 1}

func (t Tensor) Add(o Tensor) (r Tensor) {
	for i := range t {
		r[i] = t[i] + o[i]
	}
	return
}

func (t Tensor) Sub(o Tensor) (r Tensor) {
	for i := range t {
		r[i] = t[i] - o[i]
	}
	return
}

func (t Tensor) Scale(s float64) (r Tensor) {
	for i := range t {
		r[i] = s * t[i]
	}
	return
}

// Mag is the Frobenius norm
func (t Tensor) Mag() float64 {
	var sum float64
	for _, v := range t {
		sum += v * v
	}
	return math.Sqrt(sum)
}

// Dot is the inner product t.v
func (t Tensor) Dot(v Vector) Vector {
	return Vector{
		t[0]*v[0] + t[1]*v[1] + t[2]*v[2],
		t[3]*v[0] + t[4]*v[1] + t[5]*v[2],
		t[6]*v[0] + t[7]*v[1] + t[8]*v[2],
	}
}

// Transpose returns t^T
func (t Tensor) Transpose() Tensor {
	return Tensor{t[0], t[3], t[6], t[1], t[4], t[7], t[2], t[5], t[8]}
}

func (t Tensor) Det() float64 {
	return mat.Det(t.dense())
}

// Inv returns the inverse of t. A singular tensor is reported as an error
// rather than producing Inf entries.
func (t Tensor) Inv() (r Tensor, err error) {
	var (
		inv mat.Dense
	)
	if err = inv.Inverse(t.dense()); err != nil {
		err = fmt.Errorf("unable to invert tensor %v: %w", t, err)
		return
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i*3+j] = inv.At(i, j)
		}
	}
	return
}

func (t Tensor) dense() *mat.Dense {
	return mat.NewDense(3, 3, []float64{t[0], t[1], t[2], t[3], t[4], t[5], t[6], t[7], t[8]})
}

func (t Tensor) NComponents() int        { return 9 }
func (t Tensor) Component(i int) float64 { return t[i] }
func (t Tensor) TypeName() string        { return "tensor" }

func (t Tensor) WithComponent(i int, val float64) Tensor {
	t[i] = val
	return t
}

func (t Tensor) String() string {
	return fmt.Sprintf("(%g %g %g %g %g %g %g %g %g)",
		t[0], t[1], t[2], t[3], t[4], t[5], t[6], t[7], t[8])
}
