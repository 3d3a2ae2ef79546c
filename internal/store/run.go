package store

import (
	"database/sql"
	"encoding/json"
	"time"
)

// NullString is a nullable string column that marshals to JSON as a plain
// string or null instead of the sql.NullString wrapper object.
type NullString struct {
	sql.NullString
}

func (s NullString) MarshalJSON() ([]byte, error) {
	if !s.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(s.NullString.String)
}

func (s *NullString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = NullString{}
		return nil
	}
	s.Valid = true
	return json.Unmarshal(data, &s.NullString.String)
}

// A Run represents one recorded invocation of a processing command.
type Run struct {
	ID        int64      `json:"id" db:"id"`
	Name      string     `json:"name,omitempty" db:"name"`
	Kind      string     `json:"kind,omitempty" db:"kind"`
	Source    NullString `json:"source" db:"source"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}
