// Package seed loads the station seed document (spec §6) and
// de-duplicates entries by (name, line).
package seed

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/windowhan/airbnb-demands-research/store"
)

type stationDoc struct {
	Stations []stationEntry `json:"stations"`
}

type stationEntry struct {
	Name     string  `json:"name"`
	Line     string  `json:"line"`
	District string  `json:"district"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Priority int     `json:"priority"`
}

// ConfigError marks a missing or malformed seed file, one of the
// configuration failure modes named in spec §7.4.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("seed: %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Load reads the station seed document at path and returns the
// de-duplicated list of store.Station records, assigning each a fresh
// id. Duplicate (name, line) pairs are skipped, keeping the first
// occurrence.
func Load(path string) ([]store.Station, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}

	var doc stationDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}

	seen := make(map[string]bool, len(doc.Stations))
	out := make([]store.Station, 0, len(doc.Stations))
	for _, e := range doc.Stations {
		key := e.Name + "\x00" + e.Line
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, store.Station{
			ID:        uuid.NewString(),
			Name:      e.Name,
			Line:      e.Line,
			District:  e.District,
			Latitude:  e.Lat,
			Longitude: e.Lng,
			Priority:  e.Priority,
		})
	}
	return out, nil
}
