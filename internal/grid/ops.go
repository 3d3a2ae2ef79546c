package grid

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ClipMask computes keep-masks for the x and y axes when clipping against an
// axis-aligned plane.  normal selects the plane orientation: ±1 for a plane
// normal to x, ±2 for a plane normal to y.  A positive normal keeps points at
// or below origin, a negative normal keeps points at or above it.
func ClipMask(x, y []float64, normal int, origin float64) (xmask, ymask []bool, err error) {
	switch normal {
	case -2, -1, 1, 2:
	default:
		return nil, nil, fmt.Errorf("invalid clip normal %d: must be one of -2, -1, 1, 2", normal)
	}

	xmask = make([]bool, len(x))
	ymask = make([]bool, len(y))
	for i := range xmask {
		xmask[i] = true
	}
	for j := range ymask {
		ymask[j] = true
	}

	if normal == 1 || normal == -1 {
		for i, v := range x {
			if normal > 0 {
				xmask[i] = v <= origin
			} else {
				xmask[i] = v >= origin
			}
		}
		return xmask, ymask, nil
	}
	for j, v := range y {
		if normal > 0 {
			ymask[j] = v <= origin
		} else {
			ymask[j] = v >= origin
		}
	}
	return xmask, ymask, nil
}

// Clip discards the part of a point field on the far side of an axis-aligned
// plane and returns the reduced grid and field.
func Clip(f Field, g Grid, normal int, origin float64) (Grid, Field, error) {
	nx, ny, nz := g.Counts()
	if err := f.Validate(g.Points()); err != nil {
		return Grid{}, Field{}, err
	}
	xmask, ymask, err := ClipMask(g.X, g.Y, normal, origin)
	if err != nil {
		return Grid{}, Field{}, err
	}

	keptX := maskedIndices(xmask)
	keptY := maskedIndices(ymask)

	out := Field{Name: f.Name, Comps: make([][]float64, f.NumComp())}
	for c, comp := range f.Comps {
		clipped := make([]float64, 0, len(keptX)*len(keptY)*nz)
		// column-major walk so the output stays in Fortran order
		for k := 0; k < nz; k++ {
			for _, j := range keptY {
				for _, i := range keptX {
					clipped = append(clipped, comp[i+nx*(j+ny*k)])
				}
			}
		}
		out.Comps[c] = clipped
	}

	cg := Grid{
		X: selectValues(g.X, keptX),
		Y: selectValues(g.Y, keptY),
		Z: append([]float64(nil), g.Z...),
	}
	return cg, out, nil
}

// PhaseAverage folds a horizontally periodic field onto a single px-by-py
// tile and averages the repetitions.  Axes with an even point count drop
// their last plane first so the cell count divides evenly.
func PhaseAverage(f Field, g Grid, px, py int) (Grid, Field, error) {
	if px < 1 || py < 1 {
		return Grid{}, Field{}, fmt.Errorf("phase counts must be positive, got px=%d py=%d", px, py)
	}
	onx, ony, onz := g.Counts()
	if err := f.Validate(g.Points()); err != nil {
		return Grid{}, Field{}, err
	}

	nx, ny := onx, ony
	if onx%2 == 0 {
		nx = onx - 1
	}
	if ony%2 == 0 {
		ny = ony - 1
	}
	npx, npy := (nx-1)/px, (ny-1)/py
	if npx < 1 || npy < 1 {
		return Grid{}, Field{}, fmt.Errorf("grid too small for %dx%d phase average", px, py)
	}

	out := Field{Name: f.Name, Comps: make([][]float64, f.NumComp())}
	scale := 1.0 / float64(px*py)
	for c, comp := range f.Comps {
		avg := make([]float64, (npx+1)*(npy+1)*onz)
		for pi := 0; pi < px; pi++ {
			for pj := 0; pj < py; pj++ {
				for k := 0; k < onz; k++ {
					for j := 0; j <= npy; j++ {
						for i := 0; i <= npx; i++ {
							src := (npx*pi + i) + onx*((npy*pj+j)+ony*k)
							avg[i+(npx+1)*(j+(npy+1)*k)] += comp[src]
						}
					}
				}
			}
		}
		floats.Scale(scale, avg)
		out.Comps[c] = avg
	}

	ag := Grid{
		X: append([]float64(nil), g.X[:npx+1]...),
		Y: append([]float64(nil), g.Y[:npy+1]...),
		Z: append([]float64(nil), g.Z...),
	}
	return ag, out, nil
}

// HorizontalProfile averages each component of a point field over every
// horizontal (x-y) plane, producing one profile along z per component.
func HorizontalProfile(f Field, g Grid) ([][]float64, error) {
	nx, ny, nz := g.Counts()
	if err := f.Validate(g.Points()); err != nil {
		return nil, err
	}

	profiles := make([][]float64, f.NumComp())
	plane := make([]float64, nx*ny)
	for c, comp := range f.Comps {
		p := make([]float64, nz)
		for k := 0; k < nz; k++ {
			copy(plane, comp[nx*ny*k:nx*ny*(k+1)])
			p[k] = stat.Mean(plane, nil)
		}
		profiles[c] = p
	}
	return profiles, nil
}

// ProfileTable horizontally averages a set of point fields and assembles the
// result as a spreadsheet: a z column followed by one column per field
// component.  Multi-component fields get "name:i" column labels.
func ProfileTable(fields []Field, g Grid) (items []string, rows [][]float64, err error) {
	_, _, nz := g.Counts()

	items = append(items, "z")
	cols := [][]float64{append([]float64(nil), g.Z...)}
	for _, f := range fields {
		profiles, err := HorizontalProfile(f, g)
		if err != nil {
			return nil, nil, err
		}
		for c, p := range profiles {
			if len(profiles) > 1 {
				items = append(items, fmt.Sprintf("%s:%d", f.Name, c))
			} else {
				items = append(items, f.Name)
			}
			cols = append(cols, p)
		}
	}

	rows = make([][]float64, nz)
	for k := 0; k < nz; k++ {
		row := make([]float64, len(cols))
		for c := range cols {
			row[c] = cols[c][k]
		}
		rows[k] = row
	}
	return items, rows, nil
}

// VelocityGradient computes the cell-centered velocity gradient tensor from a
// 3-component point field.  The returned grid holds the cell-centered axes
// and grad[i][j] approximates du_i/dx_j on the (nx-1, ny-1, nz-1) cells.
func VelocityGradient(u Field, g Grid) (Grid, [3][3]*Array, error) {
	var grad [3][3]*Array
	if u.NumComp() != 3 {
		return Grid{}, grad, fmt.Errorf("velocity field must have 3 components, got %d", u.NumComp())
	}
	nx, ny, nz := g.Counts()
	if err := u.Validate(g.Points()); err != nil {
		return Grid{}, grad, err
	}
	if nx < 2 || ny < 2 || nz < 2 {
		return Grid{}, grad, fmt.Errorf("grid must have at least 2 points per axis")
	}

	cg := Grid{X: midpoints(g.X), Y: midpoints(g.Y), Z: midpoints(g.Z)}
	spacing := [3][]float64{diffs(g.X), diffs(g.Y), diffs(g.Z)}

	at := func(comp []float64, i, j, k int) float64 { return comp[i+nx*(j+ny*k)] }

	// forward-difference each component along its own axis, restricted to
	// the shared (nx-1, ny-1, nz-1) cell block
	delta := [3]*Array{NewArray(nx-1, ny-1, nz-1), NewArray(nx-1, ny-1, nz-1), NewArray(nx-1, ny-1, nz-1)}
	for k := 0; k < nz-1; k++ {
		for j := 0; j < ny-1; j++ {
			for i := 0; i < nx-1; i++ {
				delta[0].Set(at(u.Comps[0], i+1, j, k)-at(u.Comps[0], i, j, k), i, j, k)
				delta[1].Set(at(u.Comps[1], i, j+1, k)-at(u.Comps[1], i, j, k), i, j, k)
				delta[2].Set(at(u.Comps[2], i, j, k+1)-at(u.Comps[2], i, j, k), i, j, k)
			}
		}
	}

	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			d := NewArray(nx-1, ny-1, nz-1)
			copy(d.Data(), delta[i].Data())
			divideAlongAxis(d, spacing[j], j)
			grad[i][j] = d
		}
	}
	return cg, grad, nil
}

// divideAlongAxis divides every element of a by the spacing value matching
// its index along the given axis.
func divideAlongAxis(a *Array, dx []float64, axis int) {
	dims := a.Dims()
	data := a.Data()
	stride := 1
	for d := 0; d < axis; d++ {
		stride *= dims[d]
	}
	for c := range data {
		idx := (c / stride) % dims[axis]
		data[c] /= dx[idx]
	}
}

func midpoints(x []float64) []float64 {
	m := make([]float64, len(x)-1)
	for i := range m {
		m[i] = (x[i] + x[i+1]) / 2
	}
	return m
}

func diffs(x []float64) []float64 {
	d := make([]float64, len(x)-1)
	for i := range d {
		d[i] = x[i+1] - x[i]
	}
	return d
}

func maskedIndices(mask []bool) []int {
	var idx []int
	for i, keep := range mask {
		if keep {
			idx = append(idx, i)
		}
	}
	return idx
}

func selectValues(x []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for n, i := range idx {
		out[n] = x[i]
	}
	return out
}
