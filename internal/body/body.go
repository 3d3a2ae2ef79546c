// Package body handles spanwise-extruded immersed bodies: a 2D ring of
// profile points read from a geometry file and swept along z into a closed
// structured surface.
package body

import (
	"bufio"
	"fmt"
	"os"
	"strconv"

	"github.com/chenyongxin/mytools/internal/grid"
	"github.com/chenyongxin/mytools/internal/vtk"
)

// Geometry is a 2D profile ring and the spanwise station count it is
// extruded over.
type Geometry struct {
	// NZ is the number of spanwise stations.
	NZ int
	// XY holds the profile points of one ring, in order.
	XY [][2]float64
}

// NumPoints returns the number of points in the ring.
func (g *Geometry) NumPoints() int { return len(g.XY) }

// ReadGeometry parses a geometry file.  The format is line oriented:
//
//	nz
//	n
//	x1 y1
//	...
//	xn yn
func ReadGeometry(path string) (*Geometry, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	sc := bufio.NewScanner(fh)
	sc.Split(bufio.ScanWords)
	next := func() (float64, error) {
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return 0, err
			}
			return 0, fmt.Errorf("unexpected end of geometry file")
		}
		return strconv.ParseFloat(sc.Text(), 64)
	}

	nzf, err := next()
	if err != nil {
		return nil, fmt.Errorf("unable to read station count from %s: %w", path, err)
	}
	nf, err := next()
	if err != nil {
		return nil, fmt.Errorf("unable to read ring size from %s: %w", path, err)
	}
	nz, n := int(nzf), int(nf)
	if nz < 2 {
		return nil, fmt.Errorf("%s: need at least 2 spanwise stations, got %d", path, nz)
	}
	if n < 3 {
		return nil, fmt.Errorf("%s: a ring needs at least 3 points, got %d", path, n)
	}

	geo := &Geometry{NZ: nz, XY: make([][2]float64, n)}
	for i := range geo.XY {
		for d := 0; d < 2; d++ {
			if geo.XY[i][d], err = next(); err != nil {
				return nil, fmt.Errorf("%s: point %d: %w", path, i, err)
			}
		}
	}
	return geo, nil
}

// Extrude sweeps the ring along z from lzs to lze, closing the ring by
// repeating its first point.  The returned coordinate arrays have dimensions
// (n+1, nz, 1).
func (g *Geometry) Extrude(lzs, lze float64) (x, y, z *grid.Array, err error) {
	if lze <= lzs {
		return nil, nil, nil, fmt.Errorf("spanwise extent must be positive, got [%g, %g]", lzs, lze)
	}
	n, nz := g.NumPoints(), g.NZ
	x = grid.NewArray(n+1, nz, 1)
	y = grid.NewArray(n+1, nz, 1)
	z = grid.NewArray(n+1, nz, 1)
	dz := (lze - lzs) / float64(nz-1)
	for j := 0; j < nz; j++ {
		for i := 0; i < n; i++ {
			x.Set(g.XY[i][0], i, j, 0)
			y.Set(g.XY[i][1], i, j, 0)
			z.Set(lzs+float64(j)*dz, i, j, 0)
		}
		x.Set(g.XY[0][0], n, j, 0)
		y.Set(g.XY[0][1], n, j, 0)
		z.Set(lzs+float64(j)*dz, n, j, 0)
	}
	return x, y, z, nil
}

// CloseField extends a surface field defined on the open ring (n points by nz
// stations, column-major) onto the closed ring by duplicating the first ring
// row into the seam.
func (g *Geometry) CloseField(f grid.Field) (grid.Field, error) {
	n, nz := g.NumPoints(), g.NZ
	if err := f.Validate(n * nz); err != nil {
		return grid.Field{}, err
	}
	out := grid.Field{Name: f.Name, Comps: make([][]float64, f.NumComp())}
	for c, comp := range f.Comps {
		closed := make([]float64, (n+1)*nz)
		for j := 0; j < nz; j++ {
			copy(closed[j*(n+1):], comp[j*n:(j+1)*n])
			closed[j*(n+1)+n] = comp[j*n]
		}
		out.Comps[c] = closed
	}
	return out, nil
}

// WriteSurface extrudes the geometry and writes the closed surface with the
// given ring fields as a structured grid file.
func (g *Geometry) WriteSurface(path string, lzs, lze float64, fields ...grid.Field) error {
	x, y, z, err := g.Extrude(lzs, lze)
	if err != nil {
		return err
	}
	closed := make([]grid.Field, len(fields))
	for i, f := range fields {
		if closed[i], err = g.CloseField(f); err != nil {
			return fmt.Errorf("field %q: %w", f.Name, err)
		}
	}
	return vtk.WriteStructuredFile(path, x, y, z, closed...)
}
