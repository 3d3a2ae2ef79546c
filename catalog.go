package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/chenyongxin/mytools/internal/store"
)

const catalogExampleUsage = `  # list every recorded run
  mytools catalog runs --list

  # list the conversion runs for the cylinder cases
  mytools catalog runs 'cyl*'

  # show the files produced by one run
  mytools catalog artifacts cyl300 --list`

// createCatalogCommand initializes and returns a *cobra.Command that implements the 'catalog' CLI sub-command
func createCatalogCommand() *cobra.Command {
	cmd := cobra.Command{
		Use:          "catalog ...",
		Aliases:      []string{"cat"},
		Short:        "Queries the local catalog of recorded runs and their artifacts",
		Example:      catalogExampleUsage,
		SilenceUsage: true,
	}
	fset := cmd.PersistentFlags()
	addCatalogFlag(fset)
	addFormatFlags(fset)

	runsCmd := cobra.Command{
		Use:          "runs [pattern]",
		Short:        "Outputs the recorded runs that match a provided glob pattern",
		RunE:         runCatalogRunsCmd,
		SilenceUsage: true,
	}
	cmd.AddCommand(&runsCmd)

	artifactsCmd := cobra.Command{
		Use:          "artifacts (run name or ID)",
		Short:        "Outputs the artifacts recorded for the specified run",
		RunE:         runCatalogArtifactsCmd,
		SilenceUsage: true,
	}
	cmd.AddCommand(&artifactsCmd)

	return &cmd
}

// addCatalogFlag registers the shared --catalog flag on fset.
func addCatalogFlag(fset *pflag.FlagSet) {
	def := os.Getenv("CATALOG_PATH")
	if def == "" {
		def = "catalog.db"
	}
	fset.String("catalog", def, "the path of the catalog database file (default is $CATALOG_PATH environment variable)")
}

// openCatalog opens the catalog database named by the --catalog flag.
func openCatalog(ctx context.Context, cmd *cobra.Command) (*store.SQLiteClient, error) {
	path, err := cmd.Flags().GetString("catalog")
	if err != nil || path == "" {
		return nil, fmt.Errorf("the catalog database path must be specified")
	}
	return store.NewSQLiteClient(ctx, path, store.WithLog(logger))
}

// runCatalogRunsCmd implements the logic behind the 'catalog runs' CLI sub-command
func runCatalogRunsCmd(cmd *cobra.Command, args []string) error {
	if err := validateFormatFlags(); err != nil {
		return err
	}
	var filter string
	if len(args) > 0 {
		filter = args[0]
	}

	updateSpinner, stopSpinner := startSpinner()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	db, err := openCatalog(ctx, cmd)
	if err != nil {
		stopSpinner()
		return err
	}
	defer func() { _ = db.Close() }()

	var (
		results   []runItem
		pageToken string
	)
	for done := false; !done; {
		updateSpinner("retrieving runs")
		runs, next, err := db.QueryRuns(ctx, filter, pageToken, 100)
		if err != nil {
			stopSpinner()
			return err
		}
		for _, r := range runs {
			results = append(results, runItem{r})
		}
		pageToken = next
		done = (pageToken == "")
	}
	stopSpinner()

	if len(results) == 0 {
		debugLog("found no matching runs", "filter", filter)
		return nil
	}
	return writeResults(os.Stdout, results)
}

// runCatalogArtifactsCmd implements the logic behind the 'catalog artifacts' CLI sub-command
func runCatalogArtifactsCmd(cmd *cobra.Command, args []string) error {
	if err := validateFormatFlags(); err != nil {
		return err
	}
	if len(args) != 1 {
		return fmt.Errorf("The run name or ID must be provided")
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	db, err := openCatalog(ctx, cmd)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	artifacts, err := db.GetArtifacts(ctx, args[0])
	if err != nil {
		return err
	}
	if len(artifacts) == 0 {
		debugLog("found no artifacts", "run", args[0])
		return nil
	}
	results := make([]artifactItem, len(artifacts))
	for i, a := range artifacts {
		results[i] = artifactItem{a}
	}
	return writeResults(os.Stdout, results)
}

// recordRun stores a run and its artifacts in the catalog.  A blank catalog
// path disables recording.
func recordRun(ctx context.Context, catalogPath string, run store.Run, artifacts ...store.Artifact) error {
	if catalogPath == "" {
		return nil
	}
	db, err := store.NewSQLiteClient(ctx, catalogPath, store.WithLog(logger))
	if err != nil {
		return fmt.Errorf("unable to open the catalog database: %w", err)
	}
	defer func() { _ = db.Close() }()

	id, err := db.SaveRun(ctx, run)
	if err != nil {
		return err
	}
	if len(artifacts) == 0 {
		return nil
	}
	return db.SaveArtifacts(ctx, id, artifacts...)
}

// artifactForPath builds an Artifact record for a file on disk.
func artifactForPath(path, kind string) store.Artifact {
	a := store.Artifact{Path: path, Kind: kind}
	if fi, err := os.Stat(path); err == nil {
		a.SizeBytes = fi.Size()
	}
	return a
}

func catalogSource(s string) store.NullString {
	return store.NullString{NullString: sql.NullString{String: s, Valid: s != ""}}
}

// runItem wraps a catalog run for the --list output
type runItem struct {
	store.Run
}

func (runItem) tabularHeader() string { return "ID\tName\tKind\tSource\tCreated" }

func (r runItem) tabularRow() string {
	return fmt.Sprintf("%d\t%s\t%s\t%s\t%s", r.ID, r.Name, r.Kind, r.Source.String, r.CreatedAt.Format("2006-01-02 15:04:05"))
}

// artifactItem wraps a catalog artifact for the --list output
type artifactItem struct {
	store.Artifact
}

func (artifactItem) tabularHeader() string { return "ID\tRun\tPath\tKind\tBytes" }

func (a artifactItem) tabularRow() string {
	return fmt.Sprintf("%d\t%d\t%s\t%s\t%d", a.ID, a.RunID, a.Path, a.Kind, a.SizeBytes)
}
