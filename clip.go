package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/chenyongxin/mytools/internal/grid"
	"github.com/chenyongxin/mytools/internal/store"
	"github.com/chenyongxin/mytools/internal/vtk"
)

const clipExampleUsage = `  # keep the region x <= 5 of every field
  mytools clip cyl300 --normal 1 --origin 5

  # keep the region y >= 0, writing only the pressure
  mytools clip cyl300 --normal -2 --origin 0 --fields P`

// createClipCommand initializes and returns a *cobra.Command that implements the 'clip' CLI sub-command
func createClipCommand() *cobra.Command {
	cmd := cobra.Command{
		Use:          "clip name",
		Short:        "Cuts a snapshot along an axis-aligned plane and writes the kept half as a .vtr file",
		Example:      clipExampleUsage,
		RunE:         runClipCmd,
		SilenceUsage: true,
	}
	fset := cmd.Flags()
	fset.String("hdf-dir", "HDF", "the directory holding the input .h5 snapshots")
	fset.String("grid-dir", "GRID", "the directory holding the x, y and z axis files")
	fset.StringSlice("fields", nil, "datasets to process (default is all)")
	fset.Int("normal", 1, "the clip plane normal: 1/-1 keeps x at or below/above origin, 2/-2 the same for y")
	fset.Float64("origin", 0, "the coordinate of the clip plane along the normal axis")
	fset.String("out-dir", "VTK", "the directory to write the clipped .vtr file into")
	fset.Bool("record", false, "record the run and its artifacts in the catalog")
	addCatalogFlag(fset)
	return &cmd
}

// runClipCmd implements the logic behind the 'clip' CLI sub-command
func runClipCmd(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("The snapshot name must be provided")
	}
	name := args[0]
	normal, _ := cmd.Flags().GetInt("normal")
	origin, _ := cmd.Flags().GetFloat64("origin")
	outDir, _ := cmd.Flags().GetString("out-dir")

	updateSpinner, stopSpinner := startSpinner()
	defer stopSpinner()

	g, fields, err := loadSnapshot(name, cmd.Flags(), updateSpinner)
	if err != nil {
		return err
	}

	if len(fields) == 0 {
		return fmt.Errorf("snapshot %s has no datasets to clip", name)
	}
	var (
		clipped grid.Grid
		kept    []grid.Field
	)
	for _, f := range fields {
		updateSpinner("clipping " + f.Name)
		cg, cf, err := grid.Clip(f, g, normal, origin)
		if err != nil {
			return fmt.Errorf("unable to clip %s: %w", f.Name, err)
		}
		clipped = cg
		kept = append(kept, cf)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	out := filepath.Join(outDir, name+"_clip.vtr")
	updateSpinner("writing " + out)
	if err := vtk.WriteRectilinearFile(out, clipped, kept...); err != nil {
		return err
	}
	stopSpinner()

	err = recordFromFlags(cmd.Context(), cmd.Flags(),
		store.Run{Name: name + "-clip", Kind: "clip", Source: catalogSource(name)},
		artifactForPath(out, "vtr"),
	)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "wrote %s\n", out)
	return nil
}
