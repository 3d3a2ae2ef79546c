package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/chenyongxin/mytools/internal/convert"
	"github.com/chenyongxin/mytools/internal/store"
)

const convertExampleUsage = `  # convert HDF/cyl300.h5 with the axes in GRID/ to VTK/cyl300.vtr
  mytools convert cyl300

  # convert several snapshots, keeping only the pressure and streamwise velocity
  mytools convert ts0100 ts0200 ts0300 --fields P,U

  # use explicit directories and record the run in the catalog
  mytools convert cyl300 --hdf-dir /data/HDF --grid-dir /data/GRID --out-dir /data/VTK --record`

// createConvertCommand initializes and returns a *cobra.Command that implements the 'convert' CLI sub-command
func createConvertCommand() *cobra.Command {
	cmd := cobra.Command{
		Use:          "convert name [name ...]",
		Aliases:      []string{"c"},
		Short:        "Converts solver HDF5 snapshots into Paraview .vtr files",
		Example:      convertExampleUsage,
		RunE:         runConvertCmd,
		SilenceUsage: true,
	}
	fset := cmd.Flags()
	addConvertFlags(fset)
	fset.Bool("record", false, "record the conversion and its artifacts in the catalog")
	addCatalogFlag(fset)
	return &cmd
}

// addConvertFlags registers the conversion pipeline flags shared with the 'watch' command.
func addConvertFlags(fset *pflag.FlagSet) {
	fset.String("hdf-dir", "HDF", "the directory holding the input .h5 snapshots")
	fset.String("grid-dir", "GRID", "the directory holding the x, y and z axis files")
	fset.String("out-dir", "VTK", "the directory to write .vtr files into")
	fset.StringSlice("fields", nil, "datasets to convert (default is all)")
	fset.Int("workers", 4, "the number of datasets to read concurrently")
}

// convertOptionsFromFlags builds the pipeline options from the CLI flags.
func convertOptionsFromFlags(fset *pflag.FlagSet, status func(string)) convert.Options {
	opts := convert.Options{Status: status}
	opts.HDFDir, _ = fset.GetString("hdf-dir")
	opts.GridDir, _ = fset.GetString("grid-dir")
	opts.OutDir, _ = fset.GetString("out-dir")
	opts.Fields, _ = fset.GetStringSlice("fields")
	opts.Workers, _ = fset.GetInt("workers")
	return opts
}

// runConvertCmd implements the logic behind the 'convert' CLI sub-command
func runConvertCmd(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("At least one snapshot name must be provided")
	}

	record, _ := cmd.Flags().GetBool("record")
	catalogPath := ""
	if record {
		catalogPath, _ = cmd.Flags().GetString("catalog")
	}

	updateSpinner, stopSpinner := startSpinner()
	defer stopSpinner()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	opts := convertOptionsFromFlags(cmd.Flags(), updateSpinner)
	for _, name := range args {
		out, err := convert.File(ctx, name, opts)
		if err != nil {
			return fmt.Errorf("unable to convert snapshot %s: %w", name, err)
		}
		logger.Info("converted snapshot", "name", name, "output", out)

		err = recordRun(ctx, catalogPath,
			store.Run{Name: name, Kind: "convert", Source: catalogSource(opts.HDFDir + "/" + name + ".h5")},
			artifactForPath(out, "vtr"),
		)
		if err != nil {
			return fmt.Errorf("unable to record the conversion of %s: %w", name, err)
		}
	}
	stopSpinner()

	fmt.Fprintf(os.Stdout, "converted %d snapshot(s)\n", len(args))
	return nil
}
