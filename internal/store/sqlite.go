package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" //nolint: revive // intentional blank import to register the driver
)

const (
	tableRuns      = "run"
	tableArtifacts = "artifact"
)

var (
	columnsRuns      = []string{"id", "name", "kind", "source", "created_at"}
	columnsArtifacts = []string{"id", "run_id", "path", "kind", "size_bytes"}

	qsql = sq.StatementBuilder.PlaceholderFormat(sq.Question)
)

const schema = `
CREATE TABLE IF NOT EXISTS run (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL UNIQUE,
	kind       TEXT NOT NULL,
	source     TEXT,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS artifact (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id     INTEGER NOT NULL REFERENCES run(id),
	path       TEXT NOT NULL,
	kind       TEXT,
	size_bytes INTEGER NOT NULL DEFAULT 0,
	UNIQUE (run_id, path)
);`

// SQLiteClient performs catalog operations against a local SQLite database
// file.
type SQLiteClient struct {
	db  *sqlx.DB
	log Logger
}

// ensure the SQLite client satisfies the Store interface
var _ Store = (*SQLiteClient)(nil)

// NewSQLiteClient opens (creating if necessary) the catalog database at path
// and ensures the schema exists.
func NewSQLiteClient(ctx context.Context, path string, opts ...Option) (*SQLiteClient, error) {
	db, err := sqlx.ConnectContext(ctx, "sqlite", path)
	if err != nil {
		return nil, err
	}
	c := &SQLiteClient{
		db:  db,
		log: nopLogger{},
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("unable to apply client option: %w", err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("unable to initialize catalog schema: %w", err)
	}
	return c, nil
}

// Ping verifies the database connection is alive.
func (c *SQLiteClient) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close releases the database connection.
func (c *SQLiteClient) Close() error {
	return c.db.Close()
}

// SaveRun upserts a run record.  If a run with the provided name already
// exists its kind and source are updated, otherwise a new run is inserted.
// The run's ID is returned either way.
func (c *SQLiteClient) SaveRun(ctx context.Context, run Run) (int64, error) {
	if run.Name == "" {
		return -1, fmt.Errorf("run name must be provided")
	}
	if run.Kind == "" {
		return -1, fmt.Errorf("run kind must be provided")
	}

	sql, args, err := qsql.
		Insert(tableRuns).
		Columns("name", "kind", "source").
		Values(run.Name, run.Kind, run.Source).
		Suffix(`ON CONFLICT (name) DO UPDATE SET kind = ?, source = ? RETURNING id`, run.Kind, run.Source).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("error constructing database command: %w", err)
	}
	c.log.Debug("saving run", "name", run.Name, "kind", run.Kind)
	res, err := c.db.QueryContext(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("error executing database command: %w", err)
	}
	defer func() { _ = res.Close() }()

	if !res.Next() {
		return 0, fmt.Errorf("database insert modified 0 rows")
	}
	var runID int64
	if err = res.Scan(&runID); err != nil {
		return 0, fmt.Errorf("error processing database command result: %w", err)
	}
	if res.Next() {
		return 0, fmt.Errorf("database insert modified more than 1 row")
	}
	return runID, res.Err()
}

// GetRuns retrieves runs by name or ID, where if no keys are provided, all
// runs are returned.
func (c *SQLiteClient) GetRuns(ctx context.Context, namesOrIDs ...string) ([]Run, error) {
	q := qsql.
		Select(columnsRuns...).
		From(tableRuns)
	if len(namesOrIDs) != 0 {
		if _, parseErr := strconv.ParseInt(namesOrIDs[0], 10, 64); parseErr == nil {
			q = q.Where(sq.Eq{"id": namesOrIDs})
		} else {
			q = q.Where(sq.Eq{"name": namesOrIDs})
		}
	}
	q = q.OrderBy("created_at DESC", "id DESC")
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}

	var runs []Run
	err = c.db.SelectContext(ctx, &runs, sql, args...)
	if err != nil {
		return nil, err
	}
	return runs, nil
}

// QueryRuns returns a list of 0 to count runs that match the specified name
// filter (glob format), along with a paging token.
//
// The pageToken argument, if provided, should be the return value from a
// prior call to this method with the same filter.  It will be decoded to
// determine the next "page" of results.  An invalid page token will result in
// an error being returned.
func (c *SQLiteClient) QueryRuns(ctx context.Context, nameFilter string, pageToken string, count int) ([]Run, string, error) {
	offset := 0
	if pageToken != "" {
		var err error
		offset, err = decodePageToken(pageToken, "runs:"+nameFilter)
		if err != nil {
			return nil, "", fmt.Errorf("invalid page token: %w", err)
		}
	}
	q := qsql.
		Select(columnsRuns...).
		From(tableRuns)
	q = applyNameFilter(q, "name", nameFilter)
	q = q.OrderBy("name")
	if offset > 0 {
		q = q.Offset(uint64(offset))
	}
	if count > 0 {
		q = q.Limit(uint64(count))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, "", err
	}

	var results []Run
	err = c.db.SelectContext(ctx, &results, sql, args...)
	if err != nil {
		return nil, "", err
	}

	return results, encodePageToken("runs:"+nameFilter, len(results), offset, count), nil
}

// SaveArtifacts records the output files of a run.  Re-recording a path that
// already exists for the run updates its kind and size.
func (c *SQLiteClient) SaveArtifacts(ctx context.Context, runID int64, artifacts ...Artifact) error {
	if runID == 0 {
		return fmt.Errorf("runID must be provided")
	}
	var (
		cmd  string
		args []interface{}
		err  error
	)

	for i, a := range artifacts {
		if a.Path == "" {
			return fmt.Errorf("artifacts[%d] has no path", i)
		}
		cmd, args, err = qsql.
			Insert(tableArtifacts).
			Columns("run_id", "path", "kind", "size_bytes").
			Values(runID, a.Path, a.Kind, a.SizeBytes).
			Suffix("ON CONFLICT (run_id, path) DO UPDATE SET kind = ?, size_bytes = ?", a.Kind, a.SizeBytes).
			ToSql()
		if err != nil {
			return fmt.Errorf("error constructing SQL operation for artifacts[%d] (%v): %w", i, a.Path, err)
		}

		_, err = c.db.ExecContext(ctx, cmd, args...)
		if err != nil {
			return fmt.Errorf("error executing database operation for artifacts[%d] (%v): %w", i, a.Path, err)
		}
	}

	return nil
}

// GetArtifacts retrieves all recorded artifacts of a given run.  The provided
// ID can be either a run name or an integer run ID.
func (c *SQLiteClient) GetArtifacts(ctx context.Context, runNameOrID string) ([]Artifact, error) {
	if runNameOrID == "" {
		return nil, fmt.Errorf("runNameOrID must be provided")
	}
	var (
		sql  string
		args []interface{}
		err  error
	)
	if ival, parseErr := strconv.ParseInt(runNameOrID, 10, 64); parseErr == nil {
		sql, args, err = qsql.
			Select("a.id", "a.run_id", "a.path", "a.kind", "a.size_bytes").
			From(tableArtifacts + " a").
			Where(sq.Eq{"a.run_id": ival}).
			OrderBy("a.path").
			ToSql()
	} else {
		sql, args, err = qsql.
			Select("a.id", "a.run_id", "a.path", "a.kind", "a.size_bytes").
			From(tableArtifacts + " a").
			Join(tableRuns + " r ON (r.id = a.run_id)").
			Where(sq.Eq{"r.name": runNameOrID}).
			OrderBy("a.path").
			ToSql()
	}

	if err != nil {
		return nil, err
	}

	var artifacts []Artifact
	err = c.db.SelectContext(ctx, &artifacts, sql, args...)
	if err != nil {
		return nil, err
	}

	return artifacts, nil
}

// QueryArtifacts returns a list of 0 or more artifacts for the specified run,
// along with a paging token.
//
// The pageToken argument, if provided, should be the return value from a
// prior call to this method with the same run.  It will be decoded to
// determine the next "page" of results.  An invalid page token will result in
// an error being returned.
func (c *SQLiteClient) QueryArtifacts(ctx context.Context, run string, pageToken string, count int) (results []Artifact, nextPageToken string, err error) {
	offset := 0
	if pageToken != "" {
		var err error
		offset, err = decodePageToken(pageToken, "artifacts:"+run)
		if err != nil {
			return nil, "", fmt.Errorf("invalid page token: %w", err)
		}
	}

	if run == "" {
		return nil, "", fmt.Errorf("the run name must be specified")
	}
	q := qsql.
		Select("a.id", "a.run_id", "a.path", "a.kind", "a.size_bytes").
		From(tableArtifacts + " a").
		Join(tableRuns + " r ON (r.id = a.run_id)").
		Where(sq.Eq{"r.name": run}).
		OrderBy("a.path")
	if offset > 0 {
		q = q.Offset(uint64(offset))
	}
	if count > 0 {
		q = q.Limit(uint64(count))
	}

	var (
		sql  string
		args []interface{}
	)
	sql, args, err = q.ToSql()
	if err != nil {
		return nil, "", err
	}

	err = c.db.SelectContext(ctx, &results, sql, args...)
	if err != nil {
		return nil, "", err
	}

	return results, encodePageToken("artifacts:"+run, len(results), offset, count), nil
}

func applyNameFilter(q sq.SelectBuilder, column, nameFilter string) sq.SelectBuilder {
	if nameFilter == "" {
		return q
	}
	// translate glob ? and * wildcards to SQL equivalents
	where := strings.Map(func(c rune) rune {
		switch c {
		case '?':
			return '_'
		case '*':
			return '%'
		default:
			return c
		}
	}, nameFilter)
	// treat a filter with no wildards as a "contains" substring match
	if !strings.ContainsAny(where, "%_") {
		where = "%" + where + "%"
	}
	return q.Where(sq.Like{column: where})
}
