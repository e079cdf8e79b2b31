// Package proxypool implements the round-robin proxy manager (spec
// §4.5) with per-proxy cooldown and rotation counters. Its per-key
// mutex-guarded map of runtime state follows the same shape as the
// teacher's ConnectionPool (provider.ConnectionPool), adapted from a
// shared-transport cache keyed by provider name into a cursor-based
// rotation keyed by proxy URL.
package proxypool

import (
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const cooldownDuration = 300 * time.Second

// ProxyState is the per-proxy runtime record (spec §3), mutated only
// by the Pool that owns it.
type ProxyState struct {
	URL string

	WindowCount   int
	LifetimeCount int
	BlockedCount  int

	LastUsed     time.Time
	CooldownUntil time.Time
	Healthy      bool
}

// Pool is the L4 proxy-pool manager.
type Pool struct {
	mu sync.Mutex

	proxies              []*ProxyState
	cursor               int
	rotateThreshold      int
	log                  zerolog.Logger
	now                  func() time.Time
}

// New constructs a Pool from a list of already-validated proxy URLs.
// rotateThreshold is the tier's requests-per-IP-before-rotate value.
func New(urls []string, rotateThreshold int, log zerolog.Logger) *Pool {
	states := make([]*ProxyState, 0, len(urls))
	for _, u := range urls {
		states = append(states, &ProxyState{URL: u, Healthy: true})
	}
	return &Pool{
		proxies:         states,
		rotateThreshold: rotateThreshold,
		log:             log.With().Str("component", "proxypool").Logger(),
		now:             time.Now,
	}
}

// ParseURLs checks a list of raw proxy URL strings (expected form
// protocol://[user:pass@]host:port) with url.Parse, skipping blanks.
// An entry url.Parse rejects is a ConfigError per spec §7.4; the
// scheme and host:port parts are not checked beyond that.
type ConfigError struct {
	Entry string
	Err   error
}

func (e *ConfigError) Error() string {
	return "proxypool: malformed proxy URL " + e.Entry + ": " + e.Err.Error()
}

func (e *ConfigError) Unwrap() error { return e.Err }

func ParseURLs(raw []string) ([]string, error) {
	out := make([]string, 0, len(raw))
	for _, entry := range raw {
		if entry == "" {
			continue
		}
		if _, err := url.Parse(entry); err != nil {
			return nil, &ConfigError{Entry: entry, Err: err}
		}
		out = append(out, entry)
	}
	return out, nil
}

// Len reports how many proxies the pool was constructed with.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.proxies)
}

// Get returns the next admissible proxy URL, or "" if the pool is
// empty or every proxy is in cooldown — both are the valid "proceed
// direct" state, not an error (spec §4.5, §9).
func (p *Pool) Get() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.proxies)
	if n == 0 {
		return ""
	}

	now := p.now()

	for attempts := 0; attempts < n; attempts++ {
		idx := p.cursor % n
		state := p.proxies[idx]

		if !state.Healthy && !state.CooldownUntil.IsZero() && now.After(state.CooldownUntil) {
			state.Healthy = true
			state.CooldownUntil = time.Time{}
		}

		if !state.Healthy {
			p.cursor = (p.cursor + 1) % n
			continue
		}

		if p.rotateThreshold > 0 && state.WindowCount >= p.rotateThreshold {
			state.WindowCount = 0
			p.cursor = (p.cursor + 1) % n
			continue
		}

		state.WindowCount++
		state.LifetimeCount++
		state.LastUsed = now
		return state.URL
	}

	return ""
}

// ReportSuccess clears any unhealthy flag on the proxy at the current
// cursor position.
func (p *Pool) ReportSuccess() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.proxies) == 0 {
		return
	}
	p.proxies[p.cursor%len(p.proxies)].Healthy = true
}

// ReportBlocked marks the proxy at the current cursor position
// unhealthy, sets its cooldown, and advances the cursor.
func (p *Pool) ReportBlocked() {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.proxies)
	if n == 0 {
		return
	}
	state := p.proxies[p.cursor%n]
	state.Healthy = false
	state.CooldownUntil = p.now().Add(cooldownDuration)
	state.BlockedCount++
	p.cursor = (p.cursor + 1) % n
	p.log.Warn().Str("proxy", state.URL).Time("cooldown_until", state.CooldownUntil).Msg("proxy blocked, entering cooldown")
}

// States returns a snapshot of all proxy runtime records, for status
// reporting.
func (p *Pool) States() []ProxyState {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ProxyState, len(p.proxies))
	for i, s := range p.proxies {
		out[i] = *s
	}
	return out
}
