package store

import "context"

// Store defines the operations available on the conversion catalog.
type Store interface {
	SaveRun(ctx context.Context, run Run) (int64, error)
	GetRuns(ctx context.Context, namesOrIDs ...string) ([]Run, error)
	QueryRuns(ctx context.Context, nameFilter string, pageToken string, count int) ([]Run, string, error)

	SaveArtifacts(ctx context.Context, runID int64, artifacts ...Artifact) error
	GetArtifacts(ctx context.Context, runNameOrID string) ([]Artifact, error)
	QueryArtifacts(ctx context.Context, run string, pageToken string, count int) (results []Artifact, nextPageToken string, err error)

	Ping(ctx context.Context) error
	Close() error
}
