package credential

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// runBrowser is the slow path (spec §4.3 step 7): a headless browser
// session navigates to the search page, intercepts outgoing requests
// to /api/v3/ to capture the API key header and the extensions query
// parameter, scrolls to induce more XHR activity, then, once an API
// key has been captured, visits a listing page to trigger calendar/PDP
// operations. Without a captured key the listing page is not visited.
func (e *Extractor) runBrowser() Credentials {
	found := Credentials{Hashes: map[string]string{}}

	opts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.Flag("headless", !e.Visible))
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	defer cancelAlloc()

	ctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	ctx, cancelTimeout := context.WithTimeout(ctx, 90*time.Second)
	defer cancelTimeout()

	chromedp.ListenTarget(ctx, func(ev interface{}) {
		req, ok := ev.(*network.EventRequestWillBeSent)
		if !ok {
			return
		}
		captureFromRequest(req, &found)
	})

	err := chromedp.Run(ctx,
		network.Enable(),
		chromedp.Navigate(searchLandingURL),
		chromedp.Sleep(3*time.Second),
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
		chromedp.Sleep(2*time.Second),
		chromedp.ActionFunc(func(ctx context.Context) error {
			if found.APIKey == "" {
				return nil
			}
			return chromedp.Navigate(discoverListingURLFromAny())(ctx)
		}),
		chromedp.Sleep(2*time.Second),
	)
	if err != nil {
		e.log.Error().Err(err).Msg("browser extraction failed")
	}

	return found
}

func discoverListingURLFromAny() string {
	return fallbackListingURL
}

func captureFromRequest(req *network.EventRequestWillBeSent, found *Credentials) {
	reqURL := req.Request.URL
	if !strings.Contains(reqURL, "/api/v3/") {
		return
	}

	if key, ok := req.Request.Headers["x-airbnb-api-key"]; ok {
		if s, ok := key.(string); ok && s != "" {
			found.APIKey = s
		}
	}

	opName := operationNameFromURL(reqURL)
	if opName == "" {
		return
	}
	if hash := extensionsHashFromURL(reqURL); hash != "" {
		found.Hashes[opName] = hash
	}
}

func operationNameFromURL(reqURL string) string {
	idx := strings.LastIndex(reqURL, "/api/v3/")
	if idx < 0 {
		return ""
	}
	rest := reqURL[idx+len("/api/v3/"):]
	if q := strings.IndexAny(rest, "/?"); q >= 0 {
		rest = rest[:q]
	}
	return rest
}

// extensionsExtra is the shape of the URL-encoded JSON carried by a
// GraphQL request's "extensions" query parameter.
type extensionsExtra struct {
	PersistedQuery struct {
		Sha256Hash string `json:"sha256Hash"`
	} `json:"persistedQuery"`
}

// extensionsHashFromURL recovers the persisted-query hash from a
// captured request URL. The extensions query parameter is
// URL-encoded JSON, so it must be decoded and unmarshaled rather than
// regex-matched against the raw URL (the regex path never matches
// real, percent-encoded browser traffic).
func extensionsHashFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	raw := parsed.Query().Get("extensions")
	if raw == "" {
		return ""
	}

	var extra extensionsExtra
	if err := json.Unmarshal([]byte(raw), &extra); err != nil {
		return ""
	}
	return extra.PersistedQuery.Sha256Hash
}
