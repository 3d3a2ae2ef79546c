package vtk

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chenyongxin/mytools/internal/grid"
)

func testGridAndFields(t *testing.T) (grid.Grid, []grid.Field) {
	t.Helper()
	g := grid.Grid{
		X: []float64{0, 1, 2},
		Y: []float64{0, 0.5},
		Z: []float64{0, 1},
	}
	n := g.Points()
	p := make([]float64, n)
	u := make([]float64, n)
	v := make([]float64, n)
	w := make([]float64, n)
	for i := range p {
		p[i] = float64(i)
		u[i] = 1
		v[i] = -2
		w[i] = 0.5
	}
	return g, []grid.Field{
		grid.Scalar("Pressure", p),
		{Name: "Velocity", Comps: [][]float64{u, v, w}},
	}
}

func TestRectilinearRoundTrip(t *testing.T) {
	g, fields := testGridAndFields(t)

	path := filepath.Join(t.TempDir(), "flow.vtr")
	require.NoError(t, WriteRectilinearFile(path, g, fields...))

	got, err := ReadRectilinear(path)
	require.NoError(t, err)
	assert.Equal(t, g.X, got.Grid.X)
	assert.Equal(t, g.Y, got.Grid.Y)
	assert.Equal(t, g.Z, got.Grid.Z)

	require.Len(t, got.PointData, 2)
	pres, err := got.PointField("Pressure")
	require.NoError(t, err)
	require.Equal(t, 1, pres.NumComp())
	for i, v := range pres.Comps[0] {
		assert.Equal(t, float64(i), v)
	}

	vel, err := got.PointField("Velocity")
	require.NoError(t, err)
	require.Equal(t, 3, vel.NumComp())
	assert.Equal(t, 1.0, vel.Comps[0][0])
	assert.Equal(t, -2.0, vel.Comps[1][g.Points()-1])
	assert.Equal(t, 0.5, vel.Comps[2][3])

	_, err = got.PointField("nope")
	assert.Error(t, err)
}

func TestWriteRectilinearHeader(t *testing.T) {
	g, fields := testGridAndFields(t)

	var buf bytes.Buffer
	require.NoError(t, WriteRectilinear(&buf, g, fields...))
	content := buf.String()

	assert.Contains(t, content, `<VTKFile type="RectilinearGrid" version="0.1" byte_order="LittleEndian">`)
	assert.Contains(t, content, `WholeExtent="1 3 1 2 1 2"`)
	// axis offsets: x at 0, y after 3 floats + count, z after y
	assert.Contains(t, content, `Name="x" format="appended" offset="0"`)
	assert.Contains(t, content, `Name="y" format="appended" offset="16"`)
	assert.Contains(t, content, `Name="z" format="appended" offset="28"`)
	// first field starts after all three axes
	assert.Contains(t, content, fmt.Sprintf(`Name="Pressure" format="appended" offset="%d" NumberOfComponents="1"`, 40))
	assert.Contains(t, content, fmt.Sprintf(`Name="Velocity" format="appended" offset="%d" NumberOfComponents="3"`, 40+12*4+4))
}

func TestWriteRectilinearValidates(t *testing.T) {
	g := grid.Grid{X: []float64{0}, Y: []float64{0}, Z: []float64{0}}
	var buf bytes.Buffer
	err := WriteRectilinear(&buf, g, grid.Scalar("p", []float64{1, 2}))
	assert.Error(t, err)

	err = WriteRectilinear(&buf, grid.Grid{})
	assert.Error(t, err)
}

func TestWriteStructured(t *testing.T) {
	// extrude a 2x2 slice over 3 spanwise stations
	nx, ny, nz := 2, 2, 3
	x := grid.NewArray(nx, ny, nz)
	y := grid.NewArray(nx, ny, nz)
	z := grid.NewArray(nx, ny, nz)
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				x.Set(float64(i), i, j, k)
				y.Set(float64(j), i, j, k)
				z.Set(float64(k)*0.25, i, j, k)
			}
		}
	}
	f := grid.Scalar("p", make([]float64, nx*ny*nz))

	var buf bytes.Buffer
	require.NoError(t, WriteStructured(&buf, x, y, z, f))
	content := buf.String()
	assert.Contains(t, content, `<VTKFile type="StructuredGrid"`)
	assert.Contains(t, content, `WholeExtent="1 2 1 2 1 3"`)
	assert.Contains(t, content, fmt.Sprintf(`Name="p" format="appended" offset="%d"`, nx*ny*nz*3*4+4))

	// dimension mismatch is rejected
	bad := grid.NewArray(nx, ny, nz+1)
	assert.Error(t, WriteStructured(&buf, x, y, bad, f))
}

func TestWriteUnstructured(t *testing.T) {
	// a single voxel cell
	points := [][3]float64{
		{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {1, 1, 0},
		{0, 0, 1}, {1, 0, 1}, {0, 1, 1}, {1, 1, 1},
	}
	cells := [][]int32{{0, 1, 2, 3, 4, 5, 6, 7}}
	types := []CellType{Voxel}
	f := grid.Scalar("p", make([]float64, len(points)))

	var buf bytes.Buffer
	require.NoError(t, WriteUnstructured(&buf, points, cells, types, f))
	content := buf.Bytes()

	assert.Contains(t, string(content), `NumberOfPoints="8" NumberOfCells="1"`)
	connOff := len(points)*3*4 + 4
	assert.Contains(t, string(content), fmt.Sprintf(`Name="connectivity" format="appended" offset="%d"`, connOff))

	// the connectivity block holds 8 int32s preceded by its byte count
	payload := content[bytes.Index(content, []byte("_"))+1:]
	nbytes := int32(binary.LittleEndian.Uint32(payload[connOff:]))
	assert.Equal(t, int32(32), nbytes)
	last := int32(binary.LittleEndian.Uint32(payload[connOff+4+7*4:]))
	assert.Equal(t, int32(7), last)

	// cell count / type count mismatch
	assert.Error(t, WriteUnstructured(&buf, points, cells, nil, f))
}

func TestReadRectilinearErrors(t *testing.T) {
	dir := t.TempDir()

	write := func(name string, content []byte) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, content, 0o644))
		return path
	}

	_, err := ReadRectilinear(filepath.Join(dir, "missing.vtr"))
	assert.Error(t, err)

	_, err = ReadRectilinear(write("notvtk.vtr", []byte("hello")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "appended")

	// structured grid file rejected by the rectilinear reader
	var buf bytes.Buffer
	x := grid.NewArray(1, 1, 1)
	require.NoError(t, WriteStructured(&buf, x, x, x))
	_, err = ReadRectilinear(write("wrongtype.vtr", buf.Bytes()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a rectilinear grid")

	// truncated payload
	buf.Reset()
	g, fields := testGridAndFields(t)
	require.NoError(t, WriteRectilinear(&buf, g, fields...))
	_, err = ReadRectilinear(write("truncated.vtr", buf.Bytes()[:buf.Len()-200]))
	assert.Error(t, err)
}
