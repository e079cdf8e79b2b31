// Package httpclient is the L5 HTTP client façade (spec §4.7): it
// wires the rate limiter, proxy pool, credential store, and block
// classifier around a single `request(url, params)` call. Its retry
// loop and header-building shape follows the teacher's outbound
// provider connectors (provider.Provider implementations such as
// provider/openai.go's ChatCompletion, now generalized from per-
// provider auth headers to the three fixed Airbnb persisted-query
// operations), and its transport construction follows
// provider.ConnectionPool (provider/pool.go)'s shared *http.Transport
// pattern, adapted to proxy-per-attempt dialing instead of a
// provider-keyed transport cache.
package httpclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/windowhan/airbnb-demands-research/blockclassifier"
	"github.com/windowhan/airbnb-demands-research/credential"
	"github.com/windowhan/airbnb-demands-research/digest"
	"github.com/windowhan/airbnb-demands-research/proxypool"
	"github.com/windowhan/airbnb-demands-research/ratelimit"
)

const maxAttempts = 3

const (
	searchURL   = "https://www.airbnb.co.kr/s/Seoul--South-Korea/homes"
	apiBaseURL  = "https://www.airbnb.co.kr/api/v3"
)

// desktopUserAgents is the spec-mandated fixed pool of 8 randomized
// desktop user agents the façade rotates through on every request;
// these are intentionally literal, not generated, per spec §4.7.
var desktopUserAgents = [8]string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36 Edg/123.0.0.0",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15",
}

// Operation names the three persisted-query operations this façade
// can issue.
type Operation string

const (
	OpStaysSearch              Operation = "StaysSearch"
	OpPdpAvailabilityCalendar  Operation = "PdpAvailabilityCalendar"
	OpStaysPdpSections         Operation = "StaysPdpSections"
)

// Params is one request's variable/extension payload.
type Params struct {
	Operation Operation
	Variables map[string]interface{}
}

// Result is the outcome of one façade call. Body is nil on exhaustion
// (spec §4.7, "Exhaustion returns a null result with a logged error").
type Result struct {
	Body   map[string]interface{}
	Raw    []byte
	Digest string
}

// Client is the L5 HTTP client façade.
type Client struct {
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	proxies    *proxypool.Pool
	creds      *credential.Store
	log        zerolog.Logger
	rnd        *rand.Rand
}

// New constructs a façade. The transport prefers a TLS-fingerprint-
// impersonating client when one is available in the build; no such
// library is vendored in this module (none of the retrieved reference
// repos carried one), so the fallback below is always taken: a
// standard library *http.Transport with HTTP/2 negotiated via ALPN,
// which is the same posture provider.ConnectionPool takes with its
// ForceHTTP2 flag.
func New(limiter *ratelimit.Limiter, proxies *proxypool.Pool, creds *credential.Store, log zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Transport: newTransport(),
			Timeout:   30 * time.Second,
		},
		limiter: limiter,
		proxies: proxies,
		creds:   creds,
		log:     log.With().Str("component", "httpclient").Logger(),
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func newTransport() *http.Transport {
	return &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

func withProxy(base *http.Transport, proxyURL string) (*http.Transport, error) {
	t := base.Clone()
	if proxyURL == "" {
		return t, nil
	}
	u, err := url.Parse(proxyURL)
	if err != nil {
		return nil, err
	}
	t.Proxy = http.ProxyURL(u)
	return t, nil
}

// Request performs up to 3 attempts of the §4.7 algorithm and returns
// the decoded object, or a nil Result.Body on exhaustion.
func (c *Client) Request(ctx context.Context, p Params) *Result {
	creds, ok := c.creds.Load()
	if !ok {
		c.log.Error().Msg("no valid credentials available, refusing to build request")
		return &Result{}
	}
	hash, ok := creds.Hashes[string(p.Operation)]
	if !ok {
		c.log.Error().Str("operation", string(p.Operation)).Msg("missing persisted-query hash for operation")
		return &Result{}
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		c.limiter.Wait()

		proxyURL := c.proxies.Get()
		transport, err := withProxy(c.httpClient.Transport.(*http.Transport), proxyURL)
		if err != nil {
			c.log.Warn().Err(err).Str("proxy", proxyURL).Msg("failed to build proxy transport, skipping attempt")
			c.limiter.ReportFailure(blockclassifier.None)
			continue
		}
		attemptClient := &http.Client{Transport: transport, Timeout: c.httpClient.Timeout}

		req, err := c.buildRequest(ctx, p, creds.APIKey, hash)
		if err != nil {
			c.log.Error().Err(err).Msg("failed to build request")
			return &Result{}
		}

		resp, err := attemptClient.Do(req)
		if err != nil {
			c.limiter.ReportFailure(blockclassifier.None)
			if proxyURL != "" {
				c.proxies.ReportBlocked()
			}
			continue
		}

		raw, err := io.ReadAll(io.LimitReader(resp.Body, 16*1024*1024))
		resp.Body.Close()
		if err != nil {
			c.limiter.ReportFailure(blockclassifier.None)
			continue
		}

		bt := blockclassifier.Detect(resp.StatusCode, raw)
		if bt != blockclassifier.None {
			c.limiter.ReportFailure(bt)
			if proxyURL != "" {
				c.proxies.ReportBlocked()
			}
			continue
		}

		var decoded map[string]interface{}
		if err := json.Unmarshal(raw, &decoded); err != nil {
			c.limiter.ReportFailure(blockclassifier.None)
			continue
		}

		c.limiter.ReportSuccess()
		if proxyURL != "" {
			c.proxies.ReportSuccess()
		}

		d, _ := digest.OfBytes(raw)
		return &Result{Body: decoded, Raw: raw, Digest: d}
	}

	c.log.Error().Str("operation", string(p.Operation)).Msg("request exhausted all attempts")
	return &Result{}
}

func (c *Client) buildRequest(ctx context.Context, p Params, apiKey, hash string) (*http.Request, error) {
	variables, err := json.Marshal(p.Variables)
	if err != nil {
		return nil, fmt.Errorf("encode variables: %w", err)
	}
	extensions, err := json.Marshal(map[string]interface{}{
		"persistedQuery": map[string]interface{}{
			"version":   1,
			"sha256Hash": hash,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encode extensions: %w", err)
	}

	q := url.Values{}
	q.Set("operationName", string(p.Operation))
	q.Set("locale", "ko")
	q.Set("currency", "KRW")
	q.Set("variables", string(variables))
	q.Set("extensions", string(extensions))

	endpoint := fmt.Sprintf("%s/%s?%s", apiBaseURL, p.Operation, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, bytes.NewReader(nil))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}

	ua := desktopUserAgents[c.rnd.Intn(len(desktopUserAgents))]
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", "ko-KR,ko;q=0.9,en;q=0.8")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Airbnb-API-Key", apiKey)
	req.Header.Set("X-Airbnb-Currency", "KRW")
	req.Header.Set("X-Airbnb-Locale", "ko")
	req.Header.Set("Referer", searchURL)
	req.Header.Set("Origin", "https://www.airbnb.co.kr")
	req.Header.Set("Sec-Fetch-Site", "same-origin")
	req.Header.Set("Sec-Fetch-Mode", "cors")
	req.Header.Set("Sec-Fetch-Dest", "empty")

	return req, nil
}
