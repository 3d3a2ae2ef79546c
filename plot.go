package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chenyongxin/mytools/internal/grid"
	"github.com/chenyongxin/mytools/internal/plot"
	"github.com/chenyongxin/mytools/internal/table"
	"github.com/chenyongxin/mytools/internal/vtk"
)

const plotExampleUsage = `  # plot the drag and lift histories against the time column
  mytools plot xy TABLE/forces.dat --items cd,cl

  # contour of the pressure on the bottom z-plane of a converted snapshot
  mytools plot contour VTK/cyl300.vtr --field P`

// createPlotCommand initializes and returns a *cobra.Command that implements the 'plot' CLI sub-command
func createPlotCommand() *cobra.Command {
	cmd := cobra.Command{
		Use:          "plot ...",
		Short:        "Renders figures from recorded tables and converted snapshots",
		Example:      plotExampleUsage,
		SilenceUsage: true,
	}
	fset := cmd.PersistentFlags()
	fset.String("out", "", "the output image path (default <input>.png)")
	fset.String("title", "", "the figure title")

	xyCmd := cobra.Command{
		Use:          "xy path/to/table.dat",
		Short:        "Plots table columns against the time column as labelled curves",
		RunE:         runPlotXYCmd,
		SilenceUsage: true,
	}
	xyCmd.Flags().StringSlice("items", nil, "the table items to plot (default is all but the first)")
	xyCmd.Flags().String("x", "", "the table item providing the x axis (default is the first item)")
	cmd.AddCommand(&xyCmd)

	contourCmd := cobra.Command{
		Use:          "contour path/to/file.vtr",
		Short:        "Renders a filled contour of one scalar field on a z-plane of a rectilinear snapshot",
		RunE:         runPlotContourCmd,
		SilenceUsage: true,
	}
	contourCmd.Flags().String("field", "", "the point field to render (required)")
	contourCmd.Flags().Int("k", 0, "the z-plane index to slice at")
	contourCmd.Flags().Float64Slice("range", nil, "fixed color range as min,max (default is the data range)")
	cmd.AddCommand(&contourCmd)

	return &cmd
}

// tableForPlot reads a table file and checks it has enough columns to plot.
func tableForPlot(path string) (*table.Table, error) {
	t, err := table.Read(path)
	if err != nil {
		return nil, err
	}
	if len(t.Items) < 2 {
		return nil, fmt.Errorf("%s holds %d item(s), need an x column and at least one curve", path, len(t.Items))
	}
	return t, nil
}

// outputPath returns the --out flag value, defaulting to the input path with
// a .png extension.
func outputPath(cmd *cobra.Command, input string) string {
	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		out = strings.TrimSuffix(input, filepath.Ext(input)) + ".png"
	}
	return out
}

// runPlotXYCmd implements the logic behind the 'plot xy' CLI sub-command
func runPlotXYCmd(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("The table file must be provided")
	}
	t, err := tableForPlot(args[0])
	if err != nil {
		return err
	}

	xItem, _ := cmd.Flags().GetString("x")
	if xItem == "" {
		xItem = t.Items[0]
	}
	x, err := t.Column(xItem)
	if err != nil {
		return err
	}

	items, _ := cmd.Flags().GetStringSlice("items")
	if len(items) == 0 {
		for _, it := range t.Items {
			if it != xItem {
				items = append(items, it)
			}
		}
	}
	lines := make([]plot.Line, 0, len(items))
	for _, it := range items {
		y, err := t.Column(it)
		if err != nil {
			return err
		}
		lines = append(lines, plot.Line{Label: it, X: x, Y: y})
	}

	title, _ := cmd.Flags().GetString("title")
	out := outputPath(cmd, args[0])
	if err := plot.XY(out, plot.Config{Title: title, XLabel: xItem}, lines...); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "wrote %s\n", out)
	return nil
}

// runPlotContourCmd implements the logic behind the 'plot contour' CLI sub-command
func runPlotContourCmd(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("The .vtr file must be provided")
	}
	fieldName, _ := cmd.Flags().GetString("field")
	if fieldName == "" {
		return fmt.Errorf("The --field flag must be provided")
	}
	k, _ := cmd.Flags().GetInt("k")

	r, err := vtk.ReadRectilinear(args[0])
	if err != nil {
		return err
	}
	f, err := r.PointField(fieldName)
	if err != nil {
		return err
	}
	if f.NumComp() != 1 {
		return fmt.Errorf("field %q has %d components, only scalars can be contoured", fieldName, f.NumComp())
	}

	slice, err := zPlaneSlice(f.Comps[0], r.Grid, k)
	if err != nil {
		return err
	}

	title, _ := cmd.Flags().GetString("title")
	cfg := plot.ContourConfig{Config: plot.Config{Title: title, XLabel: "x", YLabel: "y"}}
	if rng, _ := cmd.Flags().GetFloat64Slice("range"); len(rng) == 2 {
		cfg.Range = &[2]float64{rng[0], rng[1]}
	}

	out := outputPath(cmd, args[0])
	if err := plot.Contour(out, cfg, r.Grid.X, r.Grid.Y, slice); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "wrote %s\n", out)
	return nil
}

// zPlaneSlice extracts the (nx, ny) plane at index k from a flat column-major
// point field.
func zPlaneSlice(vals []float64, g grid.Grid, k int) (*grid.Array, error) {
	nx, ny, nz := g.Counts()
	if k < 0 || k >= nz {
		return nil, fmt.Errorf("z-plane index %d out of range [0, %d)", k, nz)
	}
	if len(vals) != g.Points() {
		return nil, fmt.Errorf("field has %d values but the grid has %d points", len(vals), g.Points())
	}
	plane := make([]float64, nx*ny)
	copy(plane, vals[k*nx*ny:(k+1)*nx*ny])
	return grid.NewArrayFrom(plane, nx, ny)
}
