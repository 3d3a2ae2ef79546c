package grid

import "fmt"

// Array is a dense numeric array stored in column-major (Fortran) order,
// matching the layout the solver writes and the VTK appended format expects.
// The flat backing slice of a (nx, ny, nz) array therefore holds element
// (i, j, k) at index i + nx*(j + ny*k).
type Array struct {
	dims []int
	data []float64
}

// NewArray allocates a zero-filled array with the provided dimensions.
func NewArray(dims ...int) *Array {
	n := 1
	for _, d := range dims {
		n *= d
	}
	return &Array{
		dims: append([]int(nil), dims...),
		data: make([]float64, n),
	}
}

// NewArrayFrom wraps an existing column-major flat slice.  The slice is not
// copied, so subsequent writes through the returned Array are visible to the
// caller.
func NewArrayFrom(data []float64, dims ...int) (*Array, error) {
	n := 1
	for _, d := range dims {
		if d <= 0 {
			return nil, fmt.Errorf("invalid dimension %d", d)
		}
		n *= d
	}
	if n != len(data) {
		return nil, fmt.Errorf("data length %d does not match dimensions %v", len(data), dims)
	}
	return &Array{dims: append([]int(nil), dims...), data: data}, nil
}

// Dims returns the dimensions of the array.
func (a *Array) Dims() []int {
	return append([]int(nil), a.dims...)
}

// Rank returns the number of dimensions.
func (a *Array) Rank() int { return len(a.dims) }

// Len returns the total number of elements.
func (a *Array) Len() int { return len(a.data) }

// Data returns the column-major backing slice.
func (a *Array) Data() []float64 { return a.data }

// At returns the element at the provided index.
func (a *Array) At(idx ...int) float64 {
	return a.data[a.offset(idx)]
}

// Set assigns the element at the provided index.
func (a *Array) Set(v float64, idx ...int) {
	a.data[a.offset(idx)] = v
}

// Reshape reinterprets the array with new dimensions of the same total size.
func (a *Array) Reshape(dims ...int) error {
	n := 1
	for _, d := range dims {
		n *= d
	}
	if n != len(a.data) {
		return fmt.Errorf("cannot reshape %v array to %v", a.dims, dims)
	}
	a.dims = append([]int(nil), dims...)
	return nil
}

func (a *Array) offset(idx []int) int {
	if len(idx) != len(a.dims) {
		panic(fmt.Sprintf("grid: %d indices for rank-%d array", len(idx), len(a.dims)))
	}
	off, stride := 0, 1
	for d, i := range idx {
		if i < 0 || i >= a.dims[d] {
			panic(fmt.Sprintf("grid: index %d out of range for dimension %d (size %d)", i, d, a.dims[d]))
		}
		off += i * stride
		stride *= a.dims[d]
	}
	return off
}

// RowMajor returns a copy of the data in row-major (C) order.  HDF5 stores
// datasets row-major, so this is the buffer layout for writes to disk.
func (a *Array) RowMajor() []float64 {
	out := make([]float64, len(a.data))
	idx := make([]int, len(a.dims))
	for c := range out {
		out[c] = a.data[a.offset(idx)]
		// advance the row-major counter: last index varies fastest
		for d := len(idx) - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < a.dims[d] {
				break
			}
			idx[d] = 0
		}
	}
	return out
}

// FromRowMajor builds a column-major Array from a row-major flat buffer.
func FromRowMajor(data []float64, dims ...int) (*Array, error) {
	n := 1
	for _, d := range dims {
		if d <= 0 {
			return nil, fmt.Errorf("invalid dimension %d", d)
		}
		n *= d
	}
	if n != len(data) {
		return nil, fmt.Errorf("data length %d does not match dimensions %v", len(data), dims)
	}
	a := NewArray(dims...)
	idx := make([]int, len(dims))
	for c := range data {
		a.data[a.offset(idx)] = data[c]
		for d := len(idx) - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < dims[d] {
				break
			}
			idx[d] = 0
		}
	}
	return a, nil
}
