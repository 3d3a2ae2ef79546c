package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/chenyongxin/mytools/internal/grid"
	"github.com/chenyongxin/mytools/internal/hdf"
	"github.com/chenyongxin/mytools/internal/store"
	"github.com/chenyongxin/mytools/internal/table"
	"github.com/chenyongxin/mytools/internal/vtk"
)

const averageExampleUsage = `  # write horizontal mean profiles of every field to TABLE/cyl300.dat
  mytools average profile cyl300

  # phase-average a spanwise-periodic case over 4x2 tiles
  mytools average phase cyl300 --px 4 --py 2`

// createAverageCommand initializes and returns a *cobra.Command that implements the 'average' CLI sub-command
func createAverageCommand() *cobra.Command {
	cmd := cobra.Command{
		Use:          "average ...",
		Aliases:      []string{"avg"},
		Short:        "Computes spatial averages of a snapshot's fields",
		Example:      averageExampleUsage,
		SilenceUsage: true,
	}
	fset := cmd.PersistentFlags()
	fset.String("hdf-dir", "HDF", "the directory holding the input .h5 snapshots")
	fset.String("grid-dir", "GRID", "the directory holding the x, y and z axis files")
	fset.StringSlice("fields", nil, "datasets to process (default is all)")
	fset.Bool("record", false, "record the run and its artifacts in the catalog")
	addCatalogFlag(fset)

	profileCmd := cobra.Command{
		Use:          "profile name",
		Short:        "Averages each field over the horizontal planes and writes the wall-normal profiles as a table",
		RunE:         runAverageProfileCmd,
		SilenceUsage: true,
	}
	profileCmd.Flags().String("out", "", "the output table path (default TABLE/<name>.dat)")
	cmd.AddCommand(&profileCmd)

	phaseCmd := cobra.Command{
		Use:          "phase name",
		Short:        "Averages each field over periodic tiles in x and y and writes the result as a .vtr file",
		RunE:         runAveragePhaseCmd,
		SilenceUsage: true,
	}
	phaseCmd.Flags().Int("px", 1, "the number of periodic tiles in x")
	phaseCmd.Flags().Int("py", 1, "the number of periodic tiles in y")
	phaseCmd.Flags().String("out-dir", "VTK", "the directory to write the phase-averaged .vtr file into")
	cmd.AddCommand(&phaseCmd)

	return &cmd
}

// loadSnapshot reads the grid and the selected datasets of the named snapshot
// as scalar point fields.
func loadSnapshot(name string, fset *pflag.FlagSet, status func(string)) (grid.Grid, []grid.Field, error) {
	hdfDir, _ := fset.GetString("hdf-dir")
	gridDir, _ := fset.GetString("grid-dir")
	want, _ := fset.GetStringSlice("fields")

	status("reading grid from " + gridDir)
	g, err := grid.ReadDir(gridDir)
	if err != nil {
		return grid.Grid{}, nil, err
	}

	in := filepath.Join(hdfDir, name+".h5")
	status("opening " + in)
	fh, err := hdf.OpenReadOnly(in)
	if err != nil {
		return grid.Grid{}, nil, err
	}
	defer func() { _ = fh.Close() }()

	names := fh.Datasets()
	if len(want) > 0 {
		names = want
	}
	fields := make([]grid.Field, 0, len(names))
	for _, ds := range names {
		status("reading dataset " + ds)
		a, err := fh.Get(ds)
		if err != nil {
			return grid.Grid{}, nil, err
		}
		if a.Len() != g.Points() {
			return grid.Grid{}, nil, fmt.Errorf("dataset %s has %d values but the grid has %d points", ds, a.Len(), g.Points())
		}
		fields = append(fields, grid.Scalar(ds, a.Data()))
	}
	return g, fields, nil
}

// recordFromFlags records the run when --record was given.
func recordFromFlags(ctx context.Context, fset *pflag.FlagSet, run store.Run, artifacts ...store.Artifact) error {
	record, _ := fset.GetBool("record")
	if !record {
		return nil
	}
	catalogPath, _ := fset.GetString("catalog")
	return recordRun(ctx, catalogPath, run, artifacts...)
}

// runAverageProfileCmd implements the logic behind the 'average profile' CLI sub-command
func runAverageProfileCmd(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("The snapshot name must be provided")
	}
	name := args[0]
	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		out = filepath.Join("TABLE", name+".dat")
	}

	updateSpinner, stopSpinner := startSpinner()
	defer stopSpinner()

	g, fields, err := loadSnapshot(name, cmd.Flags(), updateSpinner)
	if err != nil {
		return err
	}

	updateSpinner("averaging over horizontal planes")
	items, rows, err := grid.ProfileTable(fields, g)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return err
	}
	updateSpinner("writing " + out)
	if err := table.Write(out, items, rows, "Horizontal mean profiles of "+name); err != nil {
		return err
	}
	stopSpinner()

	err = recordFromFlags(cmd.Context(), cmd.Flags(),
		store.Run{Name: name + "-profile", Kind: "average", Source: catalogSource(name)},
		artifactForPath(out, "table"),
	)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "wrote %s\n", out)
	return nil
}

// runAveragePhaseCmd implements the logic behind the 'average phase' CLI sub-command
func runAveragePhaseCmd(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("The snapshot name must be provided")
	}
	name := args[0]
	px, _ := cmd.Flags().GetInt("px")
	py, _ := cmd.Flags().GetInt("py")
	outDir, _ := cmd.Flags().GetString("out-dir")

	updateSpinner, stopSpinner := startSpinner()
	defer stopSpinner()

	g, fields, err := loadSnapshot(name, cmd.Flags(), updateSpinner)
	if err != nil {
		return err
	}

	var (
		tile     grid.Grid
		averaged []grid.Field
	)
	for _, f := range fields {
		updateSpinner("phase averaging " + f.Name)
		tg, af, err := grid.PhaseAverage(f, g, px, py)
		if err != nil {
			return fmt.Errorf("unable to phase average %s: %w", f.Name, err)
		}
		tile = tg
		averaged = append(averaged, af)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	out := filepath.Join(outDir, name+"_phase.vtr")
	updateSpinner("writing " + out)
	if err := vtk.WriteRectilinearFile(out, tile, averaged...); err != nil {
		return err
	}
	stopSpinner()

	err = recordFromFlags(cmd.Context(), cmd.Flags(),
		store.Run{Name: name + "-phase", Kind: "average", Source: catalogSource(name)},
		artifactForPath(out, "vtr"),
	)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "wrote %s\n", out)
	return nil
}
