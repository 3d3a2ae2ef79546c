package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T) *SQLiteClient {
	t.Helper()
	c, err := NewSQLiteClient(context.Background(), filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func source(s string) NullString {
	return NullString{sql.NullString{String: s, Valid: true}}
}

func TestRunJSON(t *testing.T) {
	run := Run{ID: 7, Name: "cyl300", Kind: "convert", Source: source("HDF/cyl300.h5")}
	data, err := json.Marshal(run)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"source":"HDF/cyl300.h5"`)
	assert.NotContains(t, string(data), `"Valid"`)

	var got Run
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, run.Source, got.Source)

	data, err = json.Marshal(Run{ID: 8, Name: "bare", Kind: "clip"})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"source":null`)
}

func TestSaveRun(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()

	id, err := c.SaveRun(ctx, Run{Name: "cyl300", Kind: "convert", Source: source("HDF/cyl300.h5")})
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))

	// same name upserts and keeps the ID
	id2, err := c.SaveRun(ctx, Run{Name: "cyl300", Kind: "average", Source: source("HDF/cyl300.h5")})
	require.NoError(t, err)
	assert.Equal(t, id, id2)

	runs, err := c.GetRuns(ctx, "cyl300")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "average", runs[0].Kind)

	_, err = c.SaveRun(ctx, Run{Kind: "convert"})
	assert.Error(t, err)
	_, err = c.SaveRun(ctx, Run{Name: "x"})
	assert.Error(t, err)
}

func TestGetRuns(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()

	id, err := c.SaveRun(ctx, Run{Name: "alpha", Kind: "convert"})
	require.NoError(t, err)
	_, err = c.SaveRun(ctx, Run{Name: "beta", Kind: "clip"})
	require.NoError(t, err)

	all, err := c.GetRuns(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	byID, err := c.GetRuns(ctx, fmt.Sprint(id))
	require.NoError(t, err)
	require.Len(t, byID, 1)
	assert.Equal(t, "alpha", byID[0].Name)

	byName, err := c.GetRuns(ctx, "beta")
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, "clip", byName[0].Kind)
}

func TestQueryRunsPaging(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := c.SaveRun(ctx, Run{Name: fmt.Sprintf("case%02d", i), Kind: "convert"})
		require.NoError(t, err)
	}
	_, err := c.SaveRun(ctx, Run{Name: "other", Kind: "convert"})
	require.NoError(t, err)

	page1, token, err := c.QueryRuns(ctx, "case*", "", 3)
	require.NoError(t, err)
	require.Len(t, page1, 3)
	require.NotEmpty(t, token)
	assert.Equal(t, "case00", page1[0].Name)

	page2, token2, err := c.QueryRuns(ctx, "case*", token, 3)
	require.NoError(t, err)
	require.Len(t, page2, 2)
	assert.Empty(t, token2)
	assert.Equal(t, "case04", page2[1].Name)

	// a token minted for a different filter is rejected
	_, _, err = c.QueryRuns(ctx, "other*", token, 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid page token")

	_, _, err = c.QueryRuns(ctx, "case*", "not base64!", 3)
	assert.Error(t, err)
}

func TestArtifacts(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()

	id, err := c.SaveRun(ctx, Run{Name: "cyl300", Kind: "convert"})
	require.NoError(t, err)

	err = c.SaveArtifacts(ctx, id,
		Artifact{Path: "VTK/cyl300.vtr", Kind: "vtr", SizeBytes: 1024},
		Artifact{Path: "TABLE/cyl300.dat", Kind: "table", SizeBytes: 64},
	)
	require.NoError(t, err)

	// re-recording a path updates in place
	err = c.SaveArtifacts(ctx, id, Artifact{Path: "VTK/cyl300.vtr", Kind: "vtr", SizeBytes: 2048})
	require.NoError(t, err)

	byName, err := c.GetArtifacts(ctx, "cyl300")
	require.NoError(t, err)
	require.Len(t, byName, 2)
	assert.Equal(t, "TABLE/cyl300.dat", byName[0].Path)
	assert.Equal(t, int64(2048), byName[1].SizeBytes)

	byID, err := c.GetArtifacts(ctx, fmt.Sprint(id))
	require.NoError(t, err)
	assert.Len(t, byID, 2)

	err = c.SaveArtifacts(ctx, 0, Artifact{Path: "x"})
	assert.Error(t, err)
	err = c.SaveArtifacts(ctx, id, Artifact{})
	assert.Error(t, err)
	_, err = c.GetArtifacts(ctx, "")
	assert.Error(t, err)
}

func TestQueryArtifacts(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()

	id, err := c.SaveRun(ctx, Run{Name: "cyl300", Kind: "convert"})
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		err = c.SaveArtifacts(ctx, id, Artifact{Path: fmt.Sprintf("VTK/out%d.vtr", i), Kind: "vtr"})
		require.NoError(t, err)
	}

	page1, token, err := c.QueryArtifacts(ctx, "cyl300", "", 3)
	require.NoError(t, err)
	require.Len(t, page1, 3)
	require.NotEmpty(t, token)

	page2, token2, err := c.QueryArtifacts(ctx, "cyl300", token, 3)
	require.NoError(t, err)
	require.Len(t, page2, 1)
	assert.Empty(t, token2)

	_, _, err = c.QueryArtifacts(ctx, "", "", 3)
	assert.Error(t, err)
}

func TestPing(t *testing.T) {
	c := testClient(t)
	assert.NoError(t, c.Ping(context.Background()))
}
