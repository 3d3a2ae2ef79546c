package grid

import "fmt"

// Field is a named point or cell field with one or more components.  Each
// component is a flattened column-major slice over the grid points, so a
// velocity field on a (nx, ny, nz) grid has 3 components of nx*ny*nz values.
type Field struct {
	Name  string
	Comps [][]float64
}

// Scalar wraps a single flattened component as a Field.
func Scalar(name string, data []float64) Field {
	return Field{Name: name, Comps: [][]float64{data}}
}

// NumComp returns the number of components.
func (f Field) NumComp() int { return len(f.Comps) }

// Len returns the number of values per component.
func (f Field) Len() int {
	if len(f.Comps) == 0 {
		return 0
	}
	return len(f.Comps[0])
}

// Validate confirms that the field has at least one component and that all
// components have length n.
func (f Field) Validate(n int) error {
	if len(f.Comps) == 0 {
		return fmt.Errorf("field %q has no components", f.Name)
	}
	for i, c := range f.Comps {
		if len(c) != n {
			return fmt.Errorf("field %q component %d has %d values, want %d", f.Name, i, len(c), n)
		}
	}
	return nil
}
