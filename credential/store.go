// Package credential implements the persisted credential store (L1,
// spec §4.2) and the fast-path/browser-fallback extractor (L2, spec
// §4.3) that bootstraps an API key and persisted-query hashes for the
// three operations this crawler needs.
package credential

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// validFor is the window a persisted credential record remains usable
// for before load() treats it as absent (spec §4.2).
const validFor = 72 * time.Hour

// Credentials is the in-memory record L5 consults when building every
// outbound request.
type Credentials struct {
	APIKey    string            `json:"api_key"`
	Hashes    map[string]string `json:"hashes"`
	CachedAt  float64           `json:"cached_at"`
}

// Empty reports whether c carries no usable API key.
func (c Credentials) Empty() bool {
	return c.APIKey == ""
}

// HasOperation reports whether a persisted-query hash is present for
// the named operation.
func (c Credentials) HasOperation(name string) bool {
	_, ok := c.Hashes[name]
	return ok
}

// Store is the file-backed persisted credential store.
type Store struct {
	path string
	now  func() time.Time
}

// NewStore constructs a Store backed by path.
func NewStore(path string) *Store {
	return &Store{path: path, now: time.Now}
}

// Load returns the persisted Credentials, or an empty/false result
// when the record doesn't exist, fails to parse, carries an empty API
// key, or is older than 72 hours (spec §4.2).
func (s *Store) Load() (Credentials, bool) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return Credentials{}, false
	}

	var c Credentials
	if err := json.Unmarshal(raw, &c); err != nil {
		return Credentials{}, false
	}

	if c.APIKey == "" {
		return Credentials{}, false
	}

	cachedAt := time.Unix(int64(c.CachedAt), 0)
	if s.now().Sub(cachedAt) > validFor {
		return Credentials{}, false
	}

	return c, true
}

// Save atomically persists c, stamping the wall-clock time. It writes
// to a temp file in the same directory then renames over the target,
// so a concurrent Load never observes a partial write.
func (s *Store) Save(c Credentials) error {
	c.CachedAt = float64(s.now().Unix())

	raw, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".credentials-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	return os.Rename(tmpPath, s.path)
}
