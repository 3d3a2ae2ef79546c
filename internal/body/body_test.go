package body

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chenyongxin/mytools/internal/grid"
)

const squareGeom = `3
4
0 0
1 0
1 1
0 1
`

func writeGeom(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "geom")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadGeometry(t *testing.T) {
	geo, err := ReadGeometry(writeGeom(t, squareGeom))
	require.NoError(t, err)
	assert.Equal(t, 3, geo.NZ)
	assert.Equal(t, 4, geo.NumPoints())
	assert.Equal(t, [2]float64{1, 1}, geo.XY[2])
}

func TestReadGeometryErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "empty", content: ""},
		{name: "too few stations", content: "1\n4\n0 0\n1 0\n1 1\n0 1\n"},
		{name: "too few points", content: "3\n2\n0 0\n1 0\n"},
		{name: "truncated points", content: "3\n4\n0 0\n1 0\n"},
		{name: "not a number", content: "3\n4\n0 0\n1 zero\n1 1\n0 1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadGeometry(writeGeom(t, tt.content))
			assert.Error(t, err)
		})
	}

	_, err := ReadGeometry(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestExtrude(t *testing.T) {
	geo, err := ReadGeometry(writeGeom(t, squareGeom))
	require.NoError(t, err)

	x, y, z, err := geo.Extrude(0, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{5, 3, 1}, x.Dims())

	// seam point repeats the first ring point at every station
	for j := 0; j < geo.NZ; j++ {
		assert.Equal(t, x.At(0, j, 0), x.At(4, j, 0))
		assert.Equal(t, y.At(0, j, 0), y.At(4, j, 0))
	}
	assert.Equal(t, 0.0, z.At(0, 0, 0))
	assert.Equal(t, 0.5, z.At(2, 1, 0))
	assert.Equal(t, 1.0, z.At(4, 2, 0))

	_, _, _, err = geo.Extrude(1, 1)
	assert.Error(t, err)
}

func TestCloseField(t *testing.T) {
	geo := &Geometry{NZ: 2, XY: [][2]float64{{0, 0}, {1, 0}, {0, 1}}}

	f := grid.Scalar("p", []float64{1, 2, 3, 4, 5, 6})
	closed, err := geo.CloseField(f)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 1, 4, 5, 6, 4}, closed.Comps[0])

	_, err = geo.CloseField(grid.Scalar("p", []float64{1, 2}))
	assert.Error(t, err)
}

func TestWriteSurface(t *testing.T) {
	geo, err := ReadGeometry(writeGeom(t, squareGeom))
	require.NoError(t, err)

	pressure := grid.Scalar("Pressure", make([]float64, geo.NumPoints()*geo.NZ))
	path := filepath.Join(t.TempDir(), "body.vts")
	require.NoError(t, geo.WriteSurface(path, 0, 2, pressure))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `<VTKFile type="StructuredGrid"`)
	assert.Contains(t, string(raw), `WholeExtent="1 5 1 3 1 1"`)
}
