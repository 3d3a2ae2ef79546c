package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/chenyongxin/mytools/internal/convert"
	"github.com/chenyongxin/mytools/internal/store"
	"github.com/chenyongxin/mytools/internal/watch"
)

const watchExampleUsage = `  # convert every snapshot the solver drops into HDF/
  mytools watch

  # watch a shared scratch directory and record each conversion
  mytools watch --hdf-dir /scratch/run42/HDF --out-dir /scratch/run42/VTK --record`

// createWatchCommand initializes and returns a *cobra.Command that implements the 'watch' CLI sub-command
func createWatchCommand() *cobra.Command {
	cmd := cobra.Command{
		Use:          "watch",
		Short:        "Watches the snapshot directory and converts new files as they settle",
		Example:      watchExampleUsage,
		RunE:         runWatchCmd,
		SilenceUsage: true,
	}
	fset := cmd.Flags()
	addConvertFlags(fset)
	fset.Duration("quiesce", 500*time.Millisecond, "how long a file must stop growing before it is converted")
	fset.Bool("record", false, "record each conversion and its artifacts in the catalog")
	addCatalogFlag(fset)
	return &cmd
}

// runWatchCmd implements the logic behind the 'watch' CLI sub-command
func runWatchCmd(cmd *cobra.Command, _ []string) error {
	record, _ := cmd.Flags().GetBool("record")
	catalogPath := ""
	if record {
		catalogPath, _ = cmd.Flags().GetString("catalog")
	}
	quiesce, _ := cmd.Flags().GetDuration("quiesce")

	opts := convertOptionsFromFlags(cmd.Flags(), nil)
	convertSnapshot := func(ctx context.Context, name string) error {
		out, err := convert.File(ctx, name, opts)
		if err != nil {
			return err
		}
		return recordRun(ctx, catalogPath,
			store.Run{Name: name, Kind: "convert", Source: catalogSource(opts.HDFDir + "/" + name + ".h5")},
			artifactForPath(out, "vtr"),
		)
	}

	w, err := watch.New(watch.Config{Dir: opts.HDFDir, Quiesce: quiesce}, convertSnapshot, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)
	defer stop()
	if err := w.Run(ctx); err != nil && err != context.Canceled {
		return err
	}
	return nil
}
