// Package convert turns solver HDF5 snapshots into Paraview rectilinear grid
// files.  A snapshot named foo is read from <hdf dir>/foo.h5, combined with
// the axis files in the grid directory, and written to <out dir>/foo.vtr
// with every dataset as a scalar point field.
package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/chenyongxin/mytools/internal/grid"
	"github.com/chenyongxin/mytools/internal/hdf"
	"github.com/chenyongxin/mytools/internal/vtk"
)

// Source yields named datasets as column-major arrays.  *hdf.File satisfies
// it; tests substitute fakes.
type Source interface {
	Datasets() []string
	Get(name string) (*grid.Array, error)
}

// Options tunes a conversion.
type Options struct {
	// HDFDir holds the input snapshots.  Defaults to "HDF".
	HDFDir string
	// GridDir holds the x, y and z axis files.  Defaults to "GRID".
	GridDir string
	// OutDir receives the .vtr files.  Defaults to "VTK".
	OutDir string
	// Fields selects a subset of datasets.  Empty selects all.
	Fields []string
	// Workers bounds the parallel dataset reads.  Zero or less means 4.
	Workers int
	// Status receives progress messages when non-nil.
	Status func(msg string)
}

func (o *Options) setDefaults() {
	if o.HDFDir == "" {
		o.HDFDir = "HDF"
	}
	if o.GridDir == "" {
		o.GridDir = "GRID"
	}
	if o.OutDir == "" {
		o.OutDir = "VTK"
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
}

func (o *Options) status(format string, args ...any) {
	if o.Status != nil {
		o.Status(fmt.Sprintf(format, args...))
	}
}

// File converts the named snapshot on disk.  It returns the path of the
// written .vtr file.
func File(ctx context.Context, name string, opts Options) (string, error) {
	opts.setDefaults()

	opts.status("reading grid from %s", opts.GridDir)
	g, err := grid.ReadDir(opts.GridDir)
	if err != nil {
		return "", err
	}

	in := filepath.Join(opts.HDFDir, name+".h5")
	opts.status("opening %s", in)
	src, err := hdf.OpenReadOnly(in)
	if err != nil {
		return "", err
	}
	defer src.Close()

	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return "", err
	}
	out := filepath.Join(opts.OutDir, name+".vtr")
	if err := Run(ctx, src, g, out, opts); err != nil {
		return "", err
	}
	return out, nil
}

// Run reads the selected datasets from src and writes them as scalar point
// fields of the grid to the .vtr file at outPath.  Dataset reads run in
// parallel, bounded by opts.Workers.
func Run(ctx context.Context, src Source, g grid.Grid, outPath string, opts Options) error {
	opts.setDefaults()

	names, err := selectFields(src.Datasets(), opts.Fields)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return fmt.Errorf("no datasets to convert")
	}

	npts := g.Points()
	fields := make([]grid.Field, len(names))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(opts.Workers)
	for i, name := range names {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			opts.status("reading dataset %s", name)
			a, err := src.Get(name)
			if err != nil {
				return err
			}
			if a.Len() != npts {
				return fmt.Errorf("dataset %s has %d values but the grid has %d points", name, a.Len(), npts)
			}
			fields[i] = grid.Scalar(name, a.Data())
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	opts.status("writing %s", outPath)
	return vtk.WriteRectilinearFile(outPath, g, fields...)
}

// selectFields intersects the available dataset names with the requested
// subset, keeping a stable sorted order.
func selectFields(available, requested []string) ([]string, error) {
	if len(requested) == 0 {
		names := append([]string(nil), available...)
		sort.Strings(names)
		return names, nil
	}
	have := make(map[string]bool, len(available))
	for _, name := range available {
		have[name] = true
	}
	names := append([]string(nil), requested...)
	sort.Strings(names)
	for _, name := range names {
		if !have[name] {
			return nil, fmt.Errorf("no dataset %q in source (have %v)", name, available)
		}
	}
	return names, nil
}
