package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chenyongxin/mytools/internal/store"
)

// fakeStore implements store.Store with function fields so each test can
// plug in exactly the behavior it needs.
type fakeStore struct {
	queryRuns      func(ctx context.Context, filter, token string, count int) ([]store.Run, string, error)
	getRuns        func(ctx context.Context, namesOrIDs ...string) ([]store.Run, error)
	getArtifacts   func(ctx context.Context, run string) ([]store.Artifact, error)
	queryArtifacts func(ctx context.Context, run, token string, count int) ([]store.Artifact, string, error)
	ping           func(ctx context.Context) error
}

func (f *fakeStore) SaveRun(context.Context, store.Run) (int64, error) {
	return 0, fmt.Errorf("not implemented")
}

func (f *fakeStore) GetRuns(ctx context.Context, namesOrIDs ...string) ([]store.Run, error) {
	return f.getRuns(ctx, namesOrIDs...)
}

func (f *fakeStore) QueryRuns(ctx context.Context, filter, token string, count int) ([]store.Run, string, error) {
	return f.queryRuns(ctx, filter, token, count)
}

func (f *fakeStore) SaveArtifacts(context.Context, int64, ...store.Artifact) error {
	return fmt.Errorf("not implemented")
}

func (f *fakeStore) GetArtifacts(ctx context.Context, run string) ([]store.Artifact, error) {
	return f.getArtifacts(ctx, run)
}

func (f *fakeStore) QueryArtifacts(ctx context.Context, run, token string, count int) ([]store.Artifact, string, error) {
	return f.queryArtifacts(ctx, run, token, count)
}

func (f *fakeStore) Ping(ctx context.Context) error {
	if f.ping != nil {
		return f.ping(ctx)
	}
	return nil
}

func (f *fakeStore) Close() error { return nil }

func TestListRuns(t *testing.T) {
	src := store.NullString{NullString: sql.NullString{String: "HDF/cyl300.h5", Valid: true}}
	db := &fakeStore{
		queryRuns: func(_ context.Context, filter, token string, count int) ([]store.Run, string, error) {
			assert.Equal(t, "cyl*", filter)
			assert.Equal(t, "tok1", token)
			assert.Equal(t, 2, count)
			return []store.Run{{ID: 1, Name: "cyl300", Kind: "convert", Source: src}}, "tok2", nil
		},
	}
	srv := httptest.NewServer(apiRoutes(db))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/runs?filter=cyl*&page_token=tok1&count=2")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	// source is emitted as a plain string, not a wrapper object
	assert.Contains(t, string(raw), `"source":"HDF/cyl300.h5"`)

	var body runsResponse
	require.NoError(t, json.Unmarshal(raw, &body))
	require.Len(t, body.Runs, 1)
	assert.Equal(t, "cyl300", body.Runs[0].Name)
	assert.Equal(t, src, body.Runs[0].Source)
	assert.Equal(t, "tok2", body.NextPageToken)
}

func TestListRunsClampsCount(t *testing.T) {
	for _, param := range []string{"-5", "0"} {
		t.Run("count="+param, func(t *testing.T) {
			db := &fakeStore{
				queryRuns: func(_ context.Context, _, _ string, count int) ([]store.Run, string, error) {
					assert.Equal(t, defaultPageSize, count)
					return nil, "", nil
				},
			}
			srv := httptest.NewServer(apiRoutes(db))
			defer srv.Close()

			resp, err := http.Get(srv.URL + "/runs?count=" + param)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusOK, resp.StatusCode)
		})
	}
}

func TestListRunsErrors(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		storeErr error
		want     int
	}{
		{name: "bad count", url: "/runs?count=nan", want: http.StatusBadRequest},
		{name: "bad token", url: "/runs", storeErr: fmt.Errorf("invalid page token: nope"), want: http.StatusBadRequest},
		{name: "store failure", url: "/runs", storeErr: fmt.Errorf("disk on fire"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := &fakeStore{
				queryRuns: func(context.Context, string, string, int) ([]store.Run, string, error) {
					return nil, "", tt.storeErr
				},
			}
			srv := httptest.NewServer(apiRoutes(db))
			defer srv.Close()

			resp, err := http.Get(srv.URL + tt.url)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestGetRun(t *testing.T) {
	db := &fakeStore{
		getRuns: func(_ context.Context, namesOrIDs ...string) ([]store.Run, error) {
			require.Equal(t, []string{"cyl300"}, namesOrIDs)
			return []store.Run{{ID: 7, Name: "cyl300", Kind: "convert"}}, nil
		},
	}
	srv := httptest.NewServer(apiRoutes(db))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/runs/cyl300")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var run store.Run
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&run))
	assert.Equal(t, int64(7), run.ID)
}

func TestGetRunNotFound(t *testing.T) {
	db := &fakeStore{
		getRuns: func(context.Context, ...string) ([]store.Run, error) { return nil, nil },
	}
	srv := httptest.NewServer(apiRoutes(db))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/runs/missing")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetRunArtifacts(t *testing.T) {
	db := &fakeStore{
		getArtifacts: func(_ context.Context, run string) ([]store.Artifact, error) {
			assert.Equal(t, "cyl300", run)
			return []store.Artifact{{ID: 1, RunID: 7, Path: "VTK/cyl300.vtr", Kind: "vtr"}}, nil
		},
	}
	srv := httptest.NewServer(apiRoutes(db))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/runs/cyl300/artifacts")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body artifactsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Artifacts, 1)
	assert.Equal(t, "VTK/cyl300.vtr", body.Artifacts[0].Path)
}

func TestListArtifacts(t *testing.T) {
	db := &fakeStore{
		queryArtifacts: func(_ context.Context, run, token string, count int) ([]store.Artifact, string, error) {
			assert.Equal(t, "cyl300", run)
			assert.Equal(t, defaultPageSize, count)
			return nil, "", nil
		},
	}
	srv := httptest.NewServer(apiRoutes(db))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/artifacts?run=cyl300")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body artifactsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotNil(t, body.Artifacts)

	// the run parameter is required
	resp2, err := http.Get(srv.URL + "/artifacts")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)
}

func TestHealthz(t *testing.T) {
	healthy := &fakeStore{}
	srv := httptest.NewServer(handleHealthz(healthy, 100*time.Millisecond, nopLogger{}))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	sick := &fakeStore{ping: func(context.Context) error { return fmt.Errorf("catalog unreachable") }}
	srv2 := httptest.NewServer(handleHealthz(sick, 100*time.Millisecond, nopLogger{}))
	defer srv2.Close()

	resp2, err := http.Get(srv2.URL)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp2.StatusCode)
}
