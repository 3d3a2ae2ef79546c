// Package vtk writes Paraview XML files with raw appended binary payloads
// and reads back the rectilinear flavor.  Rectilinear (.vtr), structured
// (.vts) and unstructured (.vtu) grids are supported.  To keep file sizes
// down all payload data is written in single precision, and only point data
// is written.
package vtk

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/google/renameio/v2"

	"github.com/chenyongxin/mytools/internal/grid"
)

// CellType identifies a VTK cell type in an unstructured grid.
type CellType int32

// Cell types used by the toolkit.  Values are VTK's.
const (
	Voxel      CellType = 11
	Hexahedron CellType = 12
)

// WriteRectilinear writes a rectilinear grid (.vtr) with zero or more point
// fields to w.
func WriteRectilinear(w io.Writer, g grid.Grid, fields ...grid.Field) error {
	nx, ny, nz := g.Counts()
	if nx == 0 || ny == 0 || nz == 0 {
		return fmt.Errorf("all three axes must be non-empty")
	}
	for _, f := range fields {
		if err := f.Validate(g.Points()); err != nil {
			return err
		}
	}

	extent := fmt.Sprintf("1 %d 1 %d 1 %d", nx, ny, nz)
	fmt.Fprintf(w, "<VTKFile type=\"RectilinearGrid\" version=\"0.1\" byte_order=\"LittleEndian\">\n")
	fmt.Fprintf(w, "<RectilinearGrid WholeExtent=\"%s\">\n", extent)
	fmt.Fprintf(w, "<Piece Extent=\"%s\">\n", extent)
	fmt.Fprintf(w, "<Coordinates>\n")
	off := 0
	for _, axis := range []struct {
		name string
		n    int
	}{{"x", nx}, {"y", ny}, {"z", nz}} {
		fmt.Fprintf(w, "<DataArray type=\"Float32\" Name=\"%s\" format=\"appended\" offset=\"%d\" NumberOfComponents=\"1\"/>\n", axis.name, off)
		off += axis.n*4 + 4
	}
	fmt.Fprintf(w, "</Coordinates>\n")
	off = writePointDataHeader(w, off, fields)
	fmt.Fprintf(w, "</Piece>\n")
	fmt.Fprintf(w, "</RectilinearGrid>\n")

	openAppended(w)
	for _, axis := range [][]float64{g.X, g.Y, g.Z} {
		if err := writeBlock(w, toFloat32(axis)); err != nil {
			return err
		}
	}
	if err := writeFieldBlocks(w, fields); err != nil {
		return err
	}
	closeAppended(w)
	return nil
}

// WriteStructured writes a structured grid (.vts).  x, y, and z hold the
// point coordinates and must share (nx, ny, nz) dimensions.
func WriteStructured(w io.Writer, x, y, z *grid.Array, fields ...grid.Field) error {
	dims := x.Dims()
	if len(dims) != 3 {
		return fmt.Errorf("coordinate arrays must be rank 3, got rank %d", x.Rank())
	}
	for _, a := range []*grid.Array{y, z} {
		ad := a.Dims()
		if len(ad) != 3 || ad[0] != dims[0] || ad[1] != dims[1] || ad[2] != dims[2] {
			return fmt.Errorf("coordinate arrays must share dimensions: %v vs %v", dims, ad)
		}
	}
	nx, ny, nz := dims[0], dims[1], dims[2]
	npts := nx * ny * nz
	for _, f := range fields {
		if err := f.Validate(npts); err != nil {
			return err
		}
	}

	extent := fmt.Sprintf("1 %d 1 %d 1 %d", nx, ny, nz)
	fmt.Fprintf(w, "<VTKFile type=\"StructuredGrid\" version=\"0.1\" byte_order=\"LittleEndian\">\n")
	fmt.Fprintf(w, "<StructuredGrid WholeExtent=\"%s\">\n", extent)
	fmt.Fprintf(w, "<Piece Extent=\"%s\">\n", extent)
	fmt.Fprintf(w, "<Points>\n")
	fmt.Fprintf(w, "<DataArray type=\"Float32\" Name=\"Points\" format=\"appended\" offset=\"0\" NumberOfComponents=\"3\"/>\n")
	fmt.Fprintf(w, "</Points>\n")
	writePointDataHeader(w, npts*3*4+4, fields)
	fmt.Fprintf(w, "</Piece>\n")
	fmt.Fprintf(w, "</StructuredGrid>\n")

	openAppended(w)
	// points are interleaved (x,y,z) tuples in Fortran point order
	pts := make([]float32, 0, npts*3)
	xd, yd, zd := x.Data(), y.Data(), z.Data()
	for p := 0; p < npts; p++ {
		pts = append(pts, float32(xd[p]), float32(yd[p]), float32(zd[p]))
	}
	if err := writeBlock(w, pts); err != nil {
		return err
	}
	if err := writeFieldBlocks(w, fields); err != nil {
		return err
	}
	closeAppended(w)
	return nil
}

// WriteUnstructured writes an unstructured grid (.vtu).  points holds the
// vertex coordinates, cells the per-cell connectivity (point indices), and
// cellTypes the VTK cell type of each cell.
func WriteUnstructured(w io.Writer, points [][3]float64, cells [][]int32, cellTypes []CellType, fields ...grid.Field) error {
	if len(cells) != len(cellTypes) {
		return fmt.Errorf("%d cells but %d cell types", len(cells), len(cellTypes))
	}
	for _, f := range fields {
		if err := f.Validate(len(points)); err != nil {
			return err
		}
	}
	nconn := 0
	for _, c := range cells {
		nconn += len(c)
	}

	fmt.Fprintf(w, "<VTKFile type=\"UnstructuredGrid\" version=\"0.1\" byte_order=\"LittleEndian\">\n")
	fmt.Fprintf(w, "<UnstructuredGrid>\n")
	fmt.Fprintf(w, "<Piece NumberOfPoints=\"%d\" NumberOfCells=\"%d\">\n", len(points), len(cells))
	fmt.Fprintf(w, "<Points>\n")
	fmt.Fprintf(w, "<DataArray type=\"Float32\" Name=\"Points\" format=\"appended\" offset=\"0\" NumberOfComponents=\"3\"/>\n")
	fmt.Fprintf(w, "</Points>\n")
	fmt.Fprintf(w, "<Cells>\n")
	off := len(points)*3*4 + 4
	fmt.Fprintf(w, "<DataArray type=\"Int32\" Name=\"connectivity\" format=\"appended\" offset=\"%d\" NumberOfComponents=\"1\"/>\n", off)
	off += nconn*4 + 4
	fmt.Fprintf(w, "<DataArray type=\"Int32\" Name=\"offsets\" format=\"appended\" offset=\"%d\" NumberOfComponents=\"1\"/>\n", off)
	off += len(cells)*4 + 4
	fmt.Fprintf(w, "<DataArray type=\"Int32\" Name=\"types\" format=\"appended\" offset=\"%d\" NumberOfComponents=\"1\"/>\n", off)
	off += len(cells)*4 + 4
	fmt.Fprintf(w, "</Cells>\n")
	writePointDataHeader(w, off, fields)
	fmt.Fprintf(w, "</Piece>\n")
	fmt.Fprintf(w, "</UnstructuredGrid>\n")

	openAppended(w)
	pts := make([]float32, 0, len(points)*3)
	for _, p := range points {
		pts = append(pts, float32(p[0]), float32(p[1]), float32(p[2]))
	}
	if err := writeBlock(w, pts); err != nil {
		return err
	}

	conn := make([]int32, 0, nconn)
	offsets := make([]int32, len(cells))
	var cum int32
	for i, c := range cells {
		conn = append(conn, c...)
		cum += int32(len(c))
		offsets[i] = cum
	}
	types := make([]int32, len(cellTypes))
	for i, ct := range cellTypes {
		types[i] = int32(ct)
	}
	for _, block := range [][]int32{conn, offsets, types} {
		if err := writeIntBlock(w, block); err != nil {
			return err
		}
	}
	if err := writeFieldBlocks(w, fields); err != nil {
		return err
	}
	closeAppended(w)
	return nil
}

// WriteRectilinearFile writes a .vtr atomically to path.
func WriteRectilinearFile(path string, g grid.Grid, fields ...grid.Field) error {
	return writeFile(path, func(w io.Writer) error {
		return WriteRectilinear(w, g, fields...)
	})
}

// WriteStructuredFile writes a .vts atomically to path.
func WriteStructuredFile(path string, x, y, z *grid.Array, fields ...grid.Field) error {
	return writeFile(path, func(w io.Writer) error {
		return WriteStructured(w, x, y, z, fields...)
	})
}

// WriteUnstructuredFile writes a .vtu atomically to path.
func WriteUnstructuredFile(path string, points [][3]float64, cells [][]int32, cellTypes []CellType, fields ...grid.Field) error {
	return writeFile(path, func(w io.Writer) error {
		return WriteUnstructured(w, points, cells, cellTypes, fields...)
	})
}

// writeFile runs fn against a pending file that only replaces path once the
// full payload was produced, so a crashed conversion never leaves a
// truncated artifact behind.
func writeFile(path string, fn func(io.Writer) error) error {
	pf, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return err
	}
	defer pf.Cleanup() //nolint:errcheck // no-op after CloseAtomicallyReplace

	if err := fn(pf); err != nil {
		return err
	}
	return pf.CloseAtomicallyReplace()
}

// writePointDataHeader emits the <PointData> header section, returning the
// appended-data offset after all field blocks.
func writePointDataHeader(w io.Writer, off int, fields []grid.Field) int {
	if len(fields) == 0 {
		return off
	}
	fmt.Fprintf(w, "<PointData>\n")
	for _, f := range fields {
		fmt.Fprintf(w, "<DataArray type=\"Float32\" Name=\"%s\" format=\"appended\" offset=\"%d\" NumberOfComponents=\"%d\"/>\n",
			f.Name, off, f.NumComp())
		off += f.NumComp()*f.Len()*4 + 4
	}
	fmt.Fprintf(w, "</PointData>\n")
	return off
}

// writeFieldBlocks packs each field as one appended block with the
// components interleaved per point, which is what Paraview expects for
// multi-component arrays.
func writeFieldBlocks(w io.Writer, fields []grid.Field) error {
	for _, f := range fields {
		vals := make([]float32, 0, f.NumComp()*f.Len())
		for p := 0; p < f.Len(); p++ {
			for c := 0; c < f.NumComp(); c++ {
				vals = append(vals, float32(f.Comps[c][p]))
			}
		}
		if err := writeBlock(w, vals); err != nil {
			return err
		}
	}
	return nil
}

func openAppended(w io.Writer) {
	fmt.Fprintf(w, "<AppendedData encoding=\"raw\">\n_")
}

func closeAppended(w io.Writer) {
	fmt.Fprintf(w, "\n</AppendedData>\n</VTKFile>\n")
}

func writeBlock(w io.Writer, vals []float32) error {
	if err := binary.Write(w, binary.LittleEndian, int32(4*len(vals))); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, vals)
}

func writeIntBlock(w io.Writer, vals []int32) error {
	if err := binary.Write(w, binary.LittleEndian, int32(4*len(vals))); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, vals)
}

func toFloat32(vals []float64) []float32 {
	out := make([]float32, len(vals))
	for i, v := range vals {
		out[i] = float32(v)
	}
	return out
}
