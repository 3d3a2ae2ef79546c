package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chenyongxin/mytools/internal/hdf"
	"github.com/chenyongxin/mytools/internal/vtk"
)

// createInfoCommand initializes and returns a *cobra.Command that implements the 'info' CLI sub-command
func createInfoCommand() *cobra.Command {
	cmd := cobra.Command{
		Use:          "info path/to/file.(h5|vtr)",
		Aliases:      []string{"i"},
		Short:        "Outputs the datasets of an HDF5 snapshot or the fields of a converted .vtr file",
		RunE:         runInfoCmd,
		SilenceUsage: true,
	}
	addFormatFlags(cmd.Flags())
	return &cmd
}

// runInfoCmd implements the logic behind the 'info' CLI sub-command
func runInfoCmd(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("The snapshot file must be provided")
	}
	if err := validateFormatFlags(); err != nil {
		return err
	}
	if filepath.Ext(args[0]) == ".vtr" {
		return writeRectilinearInfo(args[0])
	}

	fh, err := hdf.OpenReadOnly(args[0])
	if err != nil {
		return err
	}
	defer func() { _ = fh.Close() }()

	if groups := fh.Groups(); len(groups) > 0 {
		debugLog("snapshot contains groups", "groups", groups)
	}

	results := make([]datasetItem, 0, len(fh.Datasets()))
	for _, name := range fh.Datasets() {
		a, err := fh.Get(name)
		if err != nil {
			return fmt.Errorf("unable to read dataset %q: %w", name, err)
		}
		results = append(results, datasetItem{Name: name, Dims: a.Dims()})
	}
	return writeResults(os.Stdout, results)
}

// writeRectilinearInfo lists the point fields of a converted .vtr file.
func writeRectilinearInfo(path string) error {
	r, err := vtk.ReadRectilinear(path)
	if err != nil {
		return err
	}
	nx, ny, nz := r.Grid.Counts()
	results := make([]datasetItem, 0, len(r.PointData))
	for _, f := range r.PointData {
		dims := []int{nx, ny, nz}
		if f.NumComp() > 1 {
			dims = append([]int{f.NumComp()}, dims...)
		}
		results = append(results, datasetItem{Name: f.Name, Dims: dims})
	}
	return writeResults(os.Stdout, results)
}

// datasetItem represents one dataset of a snapshot for the command output
type datasetItem struct {
	// the dataset name, ex: P or U
	Name string `json:"name"`
	// the dataset extents, outermost dimension first
	Dims []int `json:"dims"`
}

func (datasetItem) tabularHeader() string { return "Dataset\tDims" }

func (d datasetItem) tabularRow() string {
	dims := make([]string, len(d.Dims))
	for i, n := range d.Dims {
		dims[i] = fmt.Sprint(n)
	}
	return d.Name + "\t" + strings.Join(dims, "x")
}
