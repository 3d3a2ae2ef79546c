package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArrayIndexing(t *testing.T) {
	a := NewArray(2, 3, 4)
	assert.Equal(t, 24, a.Len())

	a.Set(42, 1, 2, 3)
	assert.Equal(t, 42.0, a.At(1, 2, 3))
	// column-major: element (1,2,3) lives at 1 + 2*(2 + 3*3)
	assert.Equal(t, 42.0, a.Data()[1+2*(2+3*3)])
}

func TestNewArrayFrom(t *testing.T) {
	_, err := NewArrayFrom([]float64{1, 2, 3}, 2, 2)
	assert.Error(t, err)

	a, err := NewArrayFrom([]float64{1, 2, 3, 4}, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 1.0, a.At(0, 0))
	assert.Equal(t, 2.0, a.At(1, 0))
	assert.Equal(t, 3.0, a.At(0, 1))
}

func TestArrayReshape(t *testing.T) {
	a := NewArray(2, 6)
	assert.Error(t, a.Reshape(5, 2))
	require.NoError(t, a.Reshape(3, 4))
	assert.Equal(t, []int{3, 4}, a.Dims())
}

func TestRowMajorRoundTrip(t *testing.T) {
	a := NewArray(2, 3)
	v := 0.0
	for j := 0; j < 3; j++ {
		for i := 0; i < 2; i++ {
			a.Set(v, i, j)
			v++
		}
	}

	rm := a.RowMajor()
	// row-major order walks j fastest for a (2,3) array
	assert.Equal(t, []float64{0, 2, 4, 1, 3, 5}, rm)

	b, err := FromRowMajor(rm, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, a.Data(), b.Data())
}
