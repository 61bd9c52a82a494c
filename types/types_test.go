package types

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueTypes(t *testing.T) {
	{ // Identity and component access are uniform across the value types
		assert.Equal(t, Scalar(1), One[Scalar]())
		assert.Equal(t, Vector{1, 1, 1}, One[Vector]())
		assert.Equal(t, Tensor{1, 1, 1, 1, 1, 1, 1, 1, 1}, One[Tensor]())
		assert.Equal(t, 1, NComponents[Scalar]())
		assert.Equal(t, 3, NComponents[Vector]())
		assert.Equal(t, 9, NComponents[Tensor]())
	}
	{
		v := NewVector(1, 2, 3)
		assert.Equal(t, Vector{2, 4, 6}, v.Add(v))
		assert.Equal(t, Vector{}, v.Sub(v))
		assert.InDelta(t, math.Sqrt(14), v.Mag(), 1.e-14)
		assert.Equal(t, Vector{0, 0, 1}, Vector{1, 0, 0}.Cross(Vector{0, 1, 0}))
		assert.Equal(t, 2., v.Component(1))
		assert.Equal(t, Vector{1, 7, 3}, v.WithComponent(1, 7))
	}
	{ // Outer products build gradients, InnerVector contracts them back
		g := Outer[Scalar, Vector](Vector{1, 2, 3}, Scalar(2))
		assert.Equal(t, Vector{2, 4, 6}, g)
		gt := Outer[Vector, Tensor](Vector{1, 0, 0}, Vector{4, 5, 6})
		assert.Equal(t, Tensor{4, 5, 6, 0, 0, 0, 0, 0, 0}, gt)
		assert.Equal(t, Vector{4, 5, 6}, InnerVector[Tensor, Vector](Vector{1, 0, 0}, gt))
		assert.Equal(t, Scalar(28), InnerVector[Vector, Scalar](Vector{1, 2, 3}, Vector{2, 4, 6}))
		assert.Panics(t, func() { Outer[Vector, Vector](Vector{1, 0, 0}, Vector{}) })
	}
	{
		tt := Tensor{2, 0, 0, 0, 4, 0, 0, 0, 8}
		inv, err := tt.Inv()
		require.NoError(t, err)
		assert.InDeltaSlice(t, []float64{0.5, 0, 0, 0, 0.25, 0, 0, 0, 0.125}, inv[:], 1.e-14)
		assert.InDelta(t, 64., tt.Det(), 1.e-12)
		assert.Equal(t, Vector{2, 4, 8}, tt.Dot(Vector{1, 1, 1}))
		_, err = Tensor{}.Inv()
		assert.Error(t, err)
	}
	{
		assert.Equal(t, 3., CmptMax(Vector{1, -4, 3}))
		assert.Equal(t, -4., CmptMin(Vector{1, -4, 3}))
		assert.Equal(t, Vector{1, 4, 3}, CmptMag(Vector{1, -4, 3}))
		assert.Equal(t, Vector{2, -8, 9}, CmptMultiply(Vector{1, -4, 3}, Vector{2, 2, 3}))
	}
	{
		vs := []Vector{{1, 2, 3}, {4, 5, 6}}
		flat := Flatten(vs)
		assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, flat)
		assert.Equal(t, vs, Unflatten[Vector](flat))
		assert.Panics(t, func() { Unflatten[Vector](flat[:4]) })
	}
}
