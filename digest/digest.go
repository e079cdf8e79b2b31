// Package digest computes the 16-hex content digest used by the HTTP
// client façade to flag duplicate search responses (spec §4.7).
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Of returns a 16-hex digest of v, stable across key order: v is first
// round-tripped through encoding/json into a canonical form (Go maps
// marshal keys in sorted order) before hashing.
func Of(v interface{}) (string, error) {
	canonical, err := canonicalize(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])[:16], nil
}

// OfBytes hashes raw response bytes directly, re-marshaling through
// json.Unmarshal/Marshal first so key order in the wire payload never
// affects the digest.
func OfBytes(raw []byte) (string, error) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		sum := sha256.Sum256(raw)
		return hex.EncodeToString(sum[:])[:16], nil
	}
	return Of(v)
}

func canonicalize(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}
