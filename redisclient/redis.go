// Package redisclient wires the optional cache layer named in
// SPEC_FULL.md §A.2.1: a short-TTL response-digest dedup set and a
// 72h credential-cache mirror. Both are graceful-degradation
// features — when REDIS_URL is unset or the server is unreachable,
// New returns a *Client whose rdb is nil; on such a Client SeenDigest
// falls back to a bounded in-process set and the other methods are
// no-ops, so callers never need a second code path for "Redis is
// absent."
package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/windowhan/airbnb-demands-research/config"
	"github.com/windowhan/airbnb-demands-research/credential"
)

// dedupTTL bounds how long a response digest is remembered for the
// purpose of skipping a redundant store write (spec §A.2.1).
const dedupTTL = 10 * time.Minute

// credentialTTL mirrors credential.Store's own 72h validity window.
const credentialTTL = 72 * time.Hour

const localFallbackCap = 256

const credentialMirrorKey = "credentials:mirror"

// Client is a best-effort cache layer in front of the persisted
// store and the credential file. A nil *Client is valid: every method
// is a no-op and SeenDigest always reports false (no in-process
// fallback set).
type Client struct {
	rdb *redis.Client

	// localDedup backstops the digest-dedup cache when Redis is
	// configured but momentarily unreachable, or never configured at
	// all.
	mu         sync.Mutex
	localDedup []string
	localSeen  map[string]struct{}
}

// New builds a Client from cfg.RedisURL. A blank URL is not an
// error: it means the cache layer runs in local-only mode. A
// malformed URL or unreachable server is reported so startup can log
// it, but the returned Client is still usable in local-only mode,
// matching the teacher's "continue without Redis" posture.
func New(cfg *config.Config) (*Client, error) {
	c := &Client{localSeen: make(map[string]struct{})}

	if cfg.RedisURL == "" {
		return c, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return c, fmt.Errorf("invalid REDIS_URL, continuing without Redis: %w", err)
	}
	rdb := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return c, fmt.Errorf("redis ping failed, continuing without Redis: %w", err)
	}
	c.rdb = rdb
	return c, nil
}

// Close releases the underlying connection pool, if any.
func (c *Client) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}

// SeenDigest reports whether digest was recorded recently, and
// records it for future calls. A true result means the caller may
// skip writing a snapshot whose content hasn't changed since the
// last crawl. Falls back to a bounded in-process set when Redis is
// unavailable.
func (c *Client) SeenDigest(ctx context.Context, digest string) bool {
	if c == nil {
		return false
	}

	if c.rdb != nil {
		key := "digest:" + digest
		set, err := c.rdb.SetNX(ctx, key, 1, dedupTTL).Result()
		if err == nil {
			return !set
		}
		// Redis errored mid-flight; fall through to the local set
		// rather than failing the caller's crawl step.
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.localSeen[digest]; ok {
		return true
	}
	c.localDedup = append(c.localDedup, digest)
	c.localSeen[digest] = struct{}{}
	if len(c.localDedup) > localFallbackCap {
		oldest := c.localDedup[0]
		c.localDedup = c.localDedup[1:]
		delete(c.localSeen, oldest)
	}
	return false
}

// MirrorCredentials writes a 72h-TTL copy of creds to Redis so a
// second crawler process can reuse them without re-running
// extraction (spec §A.2.1). A Client without a live Redis connection
// makes this a no-op; the file-backed credential.Store remains the
// source of truth either way.
func (c *Client) MirrorCredentials(ctx context.Context, creds credential.Credentials) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	raw, err := json.Marshal(creds)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, credentialMirrorKey, raw, credentialTTL).Err()
}

// LoadMirroredCredentials reads back a credential mirror written by
// MirrorCredentials, if Redis is configured and the key hasn't
// expired.
func (c *Client) LoadMirroredCredentials(ctx context.Context) (credential.Credentials, bool) {
	if c == nil || c.rdb == nil {
		return credential.Credentials{}, false
	}
	raw, err := c.rdb.Get(ctx, credentialMirrorKey).Bytes()
	if err != nil {
		return credential.Credentials{}, false
	}
	var creds credential.Credentials
	if err := json.Unmarshal(raw, &creds); err != nil {
		return credential.Credentials{}, false
	}
	if creds.Empty() {
		return credential.Credentials{}, false
	}
	return creds, true
}
