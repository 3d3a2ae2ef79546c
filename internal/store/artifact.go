package store

// An Artifact represents one output file produced by a run.
type Artifact struct {
	ID        int64  `json:"id" db:"id"`
	RunID     int64  `json:"run_id" db:"run_id"`
	Path      string `json:"path" db:"path"`
	Kind      string `json:"kind,omitempty" db:"kind"`
	SizeBytes int64  `json:"size_bytes" db:"size_bytes"`
}
