package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chenyongxin/mytools/internal/plot"
	"github.com/chenyongxin/mytools/internal/series"
	"github.com/chenyongxin/mytools/internal/store"
	"github.com/chenyongxin/mytools/internal/table"
)

const spectrumExampleUsage = `  # plot the amplitude spectrum of the lift coefficient history
  mytools spectrum TABLE/forces.dat --item cl

  # Welch power spectral density with custom segmentation
  mytools spectrum TABLE/forces.dat --item cl --psd --segment 512 --overlap 256`

// createSpectrumCommand initializes and returns a *cobra.Command that implements the 'spectrum' CLI sub-command
func createSpectrumCommand() *cobra.Command {
	cmd := cobra.Command{
		Use:          "spectrum path/to/table.dat",
		Short:        "Computes the frequency spectrum of a recorded time series and plots it",
		Example:      spectrumExampleUsage,
		RunE:         runSpectrumCmd,
		SilenceUsage: true,
	}
	fset := cmd.Flags()
	fset.String("item", "", "the table item holding the signal (required)")
	fset.String("time", "", "the table item holding the time samples (default is the first item)")
	fset.String("out", "", "the output image path (default <table>_spectrum.png)")
	fset.Bool("psd", false, "estimate the power spectral density with Welch's method instead of the amplitude spectrum")
	fset.Int("segment", 0, "Welch segment length in samples (default min(256, n))")
	fset.Int("overlap", 0, "Welch segment overlap in samples (default half the segment)")
	fset.Bool("record", false, "record the run and its artifacts in the catalog")
	addCatalogFlag(fset)
	return &cmd
}

// runSpectrumCmd implements the logic behind the 'spectrum' CLI sub-command
func runSpectrumCmd(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("The table file must be provided")
	}
	item, _ := cmd.Flags().GetString("item")
	if item == "" {
		return fmt.Errorf("The --item flag must be provided")
	}

	timeItem, _ := cmd.Flags().GetString("time")
	s, err := loadSeries(args[0], item, timeItem)
	if err != nil {
		return err
	}

	usePSD, _ := cmd.Flags().GetBool("psd")
	var (
		freq, vals []float64
		yLabel     = "Amplitude"
	)
	if usePSD {
		segment, _ := cmd.Flags().GetInt("segment")
		overlap, _ := cmd.Flags().GetInt("overlap")
		freq, vals, err = s.PSD(series.PSDConfig{SegmentLength: segment, Overlap: overlap})
		if err != nil {
			return err
		}
		yLabel = "PSD"
	} else {
		freq, vals = s.Spectrum()
	}

	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		base := strings.TrimSuffix(args[0], filepath.Ext(args[0]))
		out = base + "_spectrum.png"
	}
	cfg := plot.Config{Title: item, XLabel: "Frequency", YLabel: yLabel}
	if err := plot.Spectrum(out, cfg, freq, vals); err != nil {
		return err
	}

	err = recordFromFlags(cmd.Context(), cmd.Flags(),
		store.Run{Name: filepath.Base(out), Kind: "spectrum", Source: catalogSource(args[0])},
		artifactForPath(out, "image"),
	)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "wrote %s (peak at %g)\n", out, s.PeakFrequency())
	return nil
}

// loadSeries builds a uniformly resampled series from two columns of a table
// file.
func loadSeries(path, item, timeItem string) (*series.Series, error) {
	t, err := table.Read(path)
	if err != nil {
		return nil, err
	}
	if len(t.Items) < 2 {
		return nil, fmt.Errorf("%s holds %d item(s), need a time column and a signal column", path, len(t.Items))
	}
	if timeItem == "" {
		timeItem = t.Items[0]
	}

	ts, err := t.Column(timeItem)
	if err != nil {
		return nil, err
	}
	vals, err := t.Column(item)
	if err != nil {
		return nil, err
	}
	return series.New(ts, vals)
}
