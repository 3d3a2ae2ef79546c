// Package hdf wraps HDF5 files following the solver's conventions: datasets
// of float64 values stored flat in the root group (groups are tolerated but
// discouraged).  It builds on the cgo binding, so the HDF5 C library must be
// installed.
package hdf

import (
	"fmt"
	"os"
	"sort"

	"gonum.org/v1/hdf5"

	"github.com/chenyongxin/mytools/internal/grid"
)

// File is an open HDF5 file together with a cached inventory of its dataset
// and group names.
type File struct {
	fh       *hdf5.File
	path     string
	readOnly bool
	datasets []string
	groups   []string
}

// Open opens an existing file for reading and writing.
func Open(path string) (*File, error) {
	return open(path, false)
}

// OpenReadOnly opens an existing file for reading.
func OpenReadOnly(path string) (*File, error) {
	return open(path, true)
}

func open(path string, readOnly bool) (*File, error) {
	flags := hdf5.F_ACC_RDWR
	if readOnly {
		flags = hdf5.F_ACC_RDONLY
	}
	fh, err := hdf5.OpenFile(path, flags)
	if err != nil {
		return nil, fmt.Errorf("unable to open HDF5 file %s: %w", path, err)
	}
	f := &File{fh: fh, path: path, readOnly: readOnly}
	if err := f.scan(); err != nil {
		_ = fh.Close()
		return nil, err
	}
	return f, nil
}

// Create creates (or truncates) a file.
func Create(path string) (*File, error) {
	fh, err := hdf5.CreateFile(path, hdf5.F_ACC_TRUNC)
	if err != nil {
		return nil, fmt.Errorf("unable to create HDF5 file %s: %w", path, err)
	}
	return &File{fh: fh, path: path}, nil
}

// Close closes the underlying file.
func (f *File) Close() error {
	return f.fh.Close()
}

// Path returns the file path the wrapper was opened with.
func (f *File) Path() string { return f.path }

// Datasets returns the names of all datasets, sorted, including those inside
// groups (as "group/name").
func (f *File) Datasets() []string {
	return append([]string(nil), f.datasets...)
}

// Groups returns the names of all groups, sorted.
func (f *File) Groups() []string {
	return append([]string(nil), f.groups...)
}

// scan rebuilds the dataset/group inventory by walking the file.
func (f *File) scan() error {
	f.datasets, f.groups = nil, nil
	if err := f.walk(&f.fh.CommonFG, ""); err != nil {
		return fmt.Errorf("unable to scan %s: %w", f.path, err)
	}
	sort.Strings(f.datasets)
	sort.Strings(f.groups)
	return nil
}

func (f *File) walk(g *hdf5.CommonFG, prefix string) error {
	n, err := g.NumObjects()
	if err != nil {
		return err
	}
	for i := uint(0); i < n; i++ {
		name, err := g.ObjectNameByIndex(i)
		if err != nil {
			return err
		}
		full := name
		if prefix != "" {
			full = prefix + "/" + name
		}
		// probe: a name opens either as a dataset or as a group
		if ds, err := g.OpenDataset(name); err == nil {
			_ = ds.Close()
			f.datasets = append(f.datasets, full)
			continue
		}
		sub, err := g.OpenGroup(name)
		if err != nil {
			return fmt.Errorf("object %q is neither dataset nor group: %w", full, err)
		}
		f.groups = append(f.groups, full)
		err = f.walk(&sub.CommonFG, full)
		_ = sub.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// Get reads the named dataset into a column-major array.  The name must be
// one of the names returned by Datasets.
func (f *File) Get(name string) (*grid.Array, error) {
	if !f.hasDataset(name) {
		return nil, fmt.Errorf("no dataset %q in %s (have %v)", name, f.path, f.datasets)
	}
	ds, err := f.fh.OpenDataset(name)
	if err != nil {
		return nil, fmt.Errorf("unable to open dataset %q: %w", name, err)
	}
	defer ds.Close()

	space := ds.Space()
	defer space.Close()
	udims, _, err := space.SimpleExtentDims()
	if err != nil {
		return nil, fmt.Errorf("unable to read extents of dataset %q: %w", name, err)
	}
	dims := make([]int, len(udims))
	n := 1
	for i, d := range udims {
		dims[i] = int(d)
		n *= int(d)
	}

	buf := make([]float64, n)
	if err := ds.Read(&buf); err != nil {
		return nil, fmt.Errorf("unable to read dataset %q: %w", name, err)
	}
	// HDF5 stores row-major; convert to the toolkit's column-major layout
	return grid.FromRowMajor(buf, dims...)
}

// Append adds a new dataset with the provided name and refreshes the
// inventory.  The name must not already exist.
func (f *File) Append(name string, a *grid.Array) error {
	if f.readOnly {
		return fmt.Errorf("%s is open read-only", f.path)
	}
	if f.hasDataset(name) {
		return fmt.Errorf("dataset %q already exists in %s", name, f.path)
	}
	if err := writeDataset(f.fh, name, a); err != nil {
		return fmt.Errorf("unable to write dataset %q: %w", name, err)
	}
	return f.scan()
}

// Concatenate replaces an existing dataset with the original data followed by
// the rows of a.  The trailing dimensions of a must match the dataset's.
//
// The HDF5 library cannot reclaim the space of a deleted dataset, so the
// whole file is rewritten through a temp copy and renamed over the original.
func (f *File) Concatenate(name string, a *grid.Array) error {
	if f.readOnly {
		return fmt.Errorf("%s is open read-only", f.path)
	}
	existing, err := f.Get(name)
	if err != nil {
		return err
	}
	combined, err := concatRows(existing, a)
	if err != nil {
		return fmt.Errorf("unable to concatenate to dataset %q: %w", name, err)
	}

	// read every other dataset before the file is replaced
	replacement := map[string]*grid.Array{name: combined}
	for _, ds := range f.datasets {
		if ds == name {
			continue
		}
		if replacement[ds], err = f.Get(ds); err != nil {
			return err
		}
	}
	order := f.Datasets()

	tmp := f.path + ".rewrite"
	out, err := Create(tmp)
	if err != nil {
		return err
	}
	for _, ds := range order {
		if err := writeDataset(out.fh, ds, replacement[ds]); err != nil {
			_ = out.Close()
			_ = os.Remove(tmp)
			return fmt.Errorf("unable to rewrite dataset %q: %w", ds, err)
		}
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}

	if err := f.fh.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return err
	}
	if f.fh, err = hdf5.OpenFile(f.path, hdf5.F_ACC_RDWR); err != nil {
		return fmt.Errorf("unable to reopen %s after rewrite: %w", f.path, err)
	}
	return f.scan()
}

func (f *File) hasDataset(name string) bool {
	for _, ds := range f.datasets {
		if ds == name {
			return true
		}
	}
	return false
}

// writeDataset creates a float64 dataset from a column-major array.
func writeDataset(fh *hdf5.File, name string, a *grid.Array) error {
	dims := a.Dims()
	udims := make([]uint, len(dims))
	for i, d := range dims {
		udims[i] = uint(d)
	}
	space, err := hdf5.CreateSimpleDataspace(udims, nil)
	if err != nil {
		return err
	}
	defer space.Close()

	ds, err := fh.CreateDataset(name, hdf5.T_NATIVE_DOUBLE, space)
	if err != nil {
		return err
	}
	defer ds.Close()

	buf := a.RowMajor()
	return ds.Write(&buf)
}

// concatRows stacks b under a along the first dimension.
func concatRows(a, b *grid.Array) (*grid.Array, error) {
	ad, bd := a.Dims(), b.Dims()
	if len(ad) != len(bd) {
		return nil, fmt.Errorf("rank mismatch: %v vs %v", ad, bd)
	}
	for i := 1; i < len(ad); i++ {
		if ad[i] != bd[i] {
			return nil, fmt.Errorf("trailing dimensions differ: %v vs %v", ad, bd)
		}
	}

	outDims := append([]int(nil), ad...)
	outDims[0] = ad[0] + bd[0]
	// stack in row-major space, where rows of the first dimension are
	// contiguous blocks
	rowA, rowB := a.RowMajor(), b.RowMajor()
	return grid.FromRowMajor(append(rowA, rowB...), outDims...)
}
