package convert

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chenyongxin/mytools/internal/grid"
	"github.com/chenyongxin/mytools/internal/vtk"
)

// fakeSource serves in-memory datasets and records the access order.
type fakeSource struct {
	mu   sync.Mutex
	data map[string]*grid.Array
	got  []string
	err  error
}

func (f *fakeSource) Datasets() []string {
	names := make([]string, 0, len(f.data))
	for name := range f.data {
		names = append(names, name)
	}
	return names
}

func (f *fakeSource) Get(name string) (*grid.Array, error) {
	f.mu.Lock()
	f.got = append(f.got, name)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	a, ok := f.data[name]
	if !ok {
		return nil, fmt.Errorf("no dataset %q", name)
	}
	return a, nil
}

func testSource(t *testing.T, g grid.Grid) *fakeSource {
	t.Helper()
	n := g.Points()
	mk := func(scale float64) *grid.Array {
		vals := make([]float64, n)
		for i := range vals {
			vals[i] = scale * float64(i)
		}
		a, err := grid.NewArrayFrom(vals, len(g.X), len(g.Y), len(g.Z))
		require.NoError(t, err)
		return a
	}
	return &fakeSource{data: map[string]*grid.Array{
		"P": mk(1),
		"U": mk(2),
		"V": mk(3),
	}}
}

func TestRun(t *testing.T) {
	g := grid.Grid{X: []float64{0, 1, 2}, Y: []float64{0, 1}, Z: []float64{0, 1}}
	src := testSource(t, g)

	var msgs []string
	out := filepath.Join(t.TempDir(), "flow.vtr")
	opts := Options{Status: func(m string) { msgs = append(msgs, m) }, Workers: 1}
	require.NoError(t, Run(context.Background(), src, g, out, opts))

	got, err := vtk.ReadRectilinear(out)
	require.NoError(t, err)
	require.Len(t, got.PointData, 3)

	// sorted field order regardless of map iteration
	assert.Equal(t, "P", got.PointData[0].Name)
	assert.Equal(t, "U", got.PointData[1].Name)
	assert.Equal(t, "V", got.PointData[2].Name)

	u, err := got.PointField("U")
	require.NoError(t, err)
	assert.Equal(t, 2.0*float64(g.Points()-1), u.Comps[0][g.Points()-1])
	assert.NotEmpty(t, msgs)
}

func TestRunFieldSubset(t *testing.T) {
	g := grid.Grid{X: []float64{0, 1}, Y: []float64{0, 1}, Z: []float64{0, 1}}
	src := testSource(t, g)

	out := filepath.Join(t.TempDir(), "flow.vtr")
	opts := Options{Fields: []string{"V", "P"}}
	require.NoError(t, Run(context.Background(), src, g, out, opts))

	got, err := vtk.ReadRectilinear(out)
	require.NoError(t, err)
	require.Len(t, got.PointData, 2)
	assert.Equal(t, "P", got.PointData[0].Name)
	assert.Equal(t, "V", got.PointData[1].Name)
}

func TestRunErrors(t *testing.T) {
	g := grid.Grid{X: []float64{0, 1}, Y: []float64{0, 1}, Z: []float64{0, 1}}
	out := filepath.Join(t.TempDir(), "flow.vtr")

	t.Run("unknown field", func(t *testing.T) {
		src := testSource(t, g)
		err := Run(context.Background(), src, g, out, Options{Fields: []string{"W"}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), `no dataset "W"`)
	})

	t.Run("no datasets", func(t *testing.T) {
		src := &fakeSource{data: map[string]*grid.Array{}}
		assert.Error(t, Run(context.Background(), src, g, out, Options{}))
	})

	t.Run("size mismatch", func(t *testing.T) {
		src := testSource(t, g)
		bigger := grid.Grid{X: []float64{0, 1, 2}, Y: g.Y, Z: g.Z}
		err := Run(context.Background(), src, bigger, out, Options{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "points")
	})

	t.Run("source failure", func(t *testing.T) {
		src := testSource(t, g)
		src.err = fmt.Errorf("disk on fire")
		err := Run(context.Background(), src, g, out, Options{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk on fire")
	})

	t.Run("canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		src := testSource(t, g)
		assert.Error(t, Run(ctx, src, g, out, Options{Workers: 1}))
	})
}

func TestFileMissingInputs(t *testing.T) {
	dir := t.TempDir()
	opts := Options{
		HDFDir:  filepath.Join(dir, "HDF"),
		GridDir: filepath.Join(dir, "GRID"),
		OutDir:  filepath.Join(dir, "VTK"),
	}
	_, err := File(context.Background(), "nope", opts)
	assert.Error(t, err)
}
