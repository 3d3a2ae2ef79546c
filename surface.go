package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chenyongxin/mytools/internal/binrec"
	"github.com/chenyongxin/mytools/internal/body"
	"github.com/chenyongxin/mytools/internal/grid"
	"github.com/chenyongxin/mytools/internal/store"
)

const surfaceExampleUsage = `  # write the bare extruded body surface spanning z in [0, 3.2]
  mytools surface GEOM/cylinder.dat --lzs 0 --lze 3.2

  # overlay the last recorded pressure ring history on the surface
  mytools surface GEOM/cylinder.dat --lze 3.2 --field P=RECORD/pbody.bin`

// createSurfaceCommand initializes and returns a *cobra.Command that implements the 'surface' CLI sub-command
func createSurfaceCommand() *cobra.Command {
	cmd := cobra.Command{
		Use:          "surface path/to/geom.dat",
		Short:        "Extrudes a ring geometry into a closed spanwise surface and writes it as a .vts file",
		Example:      surfaceExampleUsage,
		RunE:         runSurfaceCmd,
		SilenceUsage: true,
	}
	fset := cmd.Flags()
	fset.Float64("lzs", 0, "the spanwise start coordinate")
	fset.Float64("lze", 1, "the spanwise end coordinate")
	fset.StringArray("field", nil, "a surface field as name=path/to/record.bin, repeatable")
	fset.String("prec", "f", "the record precision, f for float32 or d for float64")
	fset.Int("step", -1, "the record index to overlay (default is the last record)")
	fset.String("out", "", "the output surface path (default VTK/<geom>.vts)")
	fset.Bool("record", false, "record the run and its artifacts in the catalog")
	addCatalogFlag(fset)
	return &cmd
}

// runSurfaceCmd implements the logic behind the 'surface' CLI sub-command
func runSurfaceCmd(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("The geometry file must be provided")
	}
	lzs, _ := cmd.Flags().GetFloat64("lzs")
	lze, _ := cmd.Flags().GetFloat64("lze")
	specs, _ := cmd.Flags().GetStringArray("field")
	prec, _ := cmd.Flags().GetString("prec")
	step, _ := cmd.Flags().GetInt("step")

	updateSpinner, stopSpinner := startSpinner()
	defer stopSpinner()

	updateSpinner("reading " + args[0])
	geom, err := body.ReadGeometry(args[0])
	if err != nil {
		return err
	}

	fields := make([]grid.Field, 0, len(specs))
	for _, spec := range specs {
		name, path, ok := strings.Cut(spec, "=")
		if !ok || name == "" || path == "" {
			return fmt.Errorf("invalid field %q, expected name=path/to/record.bin", spec)
		}
		updateSpinner("reading field " + name)
		f, err := surfaceField(geom, name, path, prec, step)
		if err != nil {
			return err
		}
		fields = append(fields, f)
	}

	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		base := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
		out = filepath.Join("VTK", base+".vts")
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return err
	}
	updateSpinner("writing " + out)
	if err := geom.WriteSurface(out, lzs, lze, fields...); err != nil {
		return err
	}
	stopSpinner()

	err = recordFromFlags(cmd.Context(), cmd.Flags(),
		store.Run{Name: filepath.Base(out), Kind: "surface", Source: catalogSource(args[0])},
		artifactForPath(out, "vts"),
	)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "wrote %s\n", out)
	return nil
}

// surfaceField loads one ring-history record file and picks the record at the
// requested step as a scalar surface field.
func surfaceField(geom *body.Geometry, name, path, prec string, step int) (grid.Field, error) {
	if len(prec) != 1 {
		return grid.Field{}, fmt.Errorf("invalid precision %q, expected f or d", prec)
	}
	format, err := binrec.Uniform(geom.NumPoints()*geom.NZ, prec[0])
	if err != nil {
		return grid.Field{}, err
	}
	rows, err := binrec.ReadFile(path, format, 0)
	if err != nil {
		return grid.Field{}, fmt.Errorf("unable to read %s: %w", path, err)
	}
	if len(rows) == 0 {
		return grid.Field{}, fmt.Errorf("%s holds no complete records", path)
	}
	if step < 0 {
		step = len(rows) - 1
	}
	if step >= len(rows) {
		return grid.Field{}, fmt.Errorf("step %d out of range, %s holds %d record(s)", step, path, len(rows))
	}
	return grid.Scalar(name, rows[step]), nil
}
