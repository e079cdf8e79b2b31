package credential

import (
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/corpix/uarand"
	"github.com/rs/zerolog"
)

// RequiredOperations are the three persisted-query operations this
// crawler issues; a fast-path extraction is "done" once all three
// have a hash and the API key is non-empty.
var RequiredOperations = []string{"StaysSearch", "PdpAvailabilityCalendar", "StaysPdpSections"}

// fallbackListingURL is used only when no /rooms/<id> link, base64
// DemandStayListing token, or propertyId field can be found on the
// search landing page (spec §4.3 step 5).
const fallbackListingURL = "https://www.airbnb.co.kr/rooms/1001265769718371918"

const maxBundleFetches = 40
const maxAsyncBundleFetches = 20

var hexKeyPattern = regexp.MustCompile(`(?i)(?:"key"|"api_key"|"AIRBNB_API_KEY")\s*:\s*"([0-9a-f]{32,})"`)
var headerKeyPattern = regexp.MustCompile(`(?i)x-airbnb-api-key:\s*([0-9a-f]{32,})`)

var opIDPattern = regexp.MustCompile(`name:\s*'([A-Za-z0-9]+)'[\s\S]{0,300}?operationId:\s*'([0-9a-f]{64})'`)
var shaHashForwardPattern = regexp.MustCompile(`"([A-Za-z0-9]+)"[\s\S]{0,300}?"sha256Hash"\s*:\s*"([0-9a-f]{64})"`)
var shaHashReversePattern = regexp.MustCompile(`"sha256Hash"\s*:\s*"([0-9a-f]{64})"[\s\S]{0,300}?"([A-Za-z0-9]+)"`)

var roomsLinkPattern = regexp.MustCompile(`/rooms/(\d+)`)
var demandStayListingPattern = regexp.MustCompile(`[A-Za-z0-9+/=]{16,}`)
var propertyIDPattern = regexp.MustCompile(`"propertyId"\s*:\s*"?(\d+)"?`)

var asyncBundlePattern = regexp.MustCompile(`(?:RoomCalendar|AvailabilityCalendar|PdpPlatformRoute)[A-Za-z0-9_.-]*\.js`)

const searchLandingURL = "https://www.airbnb.co.kr/s/Seoul--South-Korea/homes"

// Extractor runs the §4.3 algorithm: the fast regex/HTML mining path
// first, falling back to a headless browser session only when the
// fast path fails to produce an API key.
type Extractor struct {
	client *http.Client
	log    zerolog.Logger
	Visible bool
}

// NewExtractor constructs an Extractor using plain HTTP GETs; a nil
// client is replaced by a new http.Client with a 20-second timeout.
func NewExtractor(client *http.Client, log zerolog.Logger) *Extractor {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &Extractor{client: client, log: log.With().Str("component", "credential_extractor").Logger()}
}

// Run executes the full algorithm and returns the best Credentials it
// could produce. On total failure it returns an empty Credentials and
// a logged error; callers must refuse to run jobs against an empty
// result.
func (e *Extractor) Run() Credentials {
	found := Credentials{Hashes: map[string]string{}}

	landingBody, landingErr := e.get(searchLandingURL)
	if landingErr == nil {
		e.scan(landingBody, &found)
	}

	if e.satisfied(found) {
		return found
	}

	if landingErr == nil {
		bundles := discoverScriptBundles(landingBody)
		if len(bundles) > maxBundleFetches {
			bundles = bundles[:maxBundleFetches]
		}
		for _, bundleURL := range bundles {
			body, err := e.get(bundleURL)
			if err != nil {
				continue
			}
			e.scan(body, &found)
			if e.satisfied(found) {
				return found
			}
		}
	}

	if !found.HasOperation("PdpAvailabilityCalendar") || !found.HasOperation("StaysPdpSections") {
		listingURL := discoverListingURL(landingBody)
		if body, err := e.get(listingURL); err == nil {
			e.scan(body, &found)
			for _, bundleURL := range discoverScriptBundles(body) {
				b, err := e.get(bundleURL)
				if err != nil {
					continue
				}
				e.scan(b, &found)
				if e.satisfied(found) {
					return found
				}
			}
		}
	}

	if !e.satisfied(found) {
		for _, bundleURL := range discoverAsyncBundles(landingBody, maxAsyncBundleFetches) {
			body, err := e.get(bundleURL)
			if err != nil {
				continue
			}
			e.scan(body, &found)
			if e.satisfied(found) {
				return found
			}
		}
	}

	if found.APIKey == "" {
		e.log.Warn().Msg("fast path failed to discover an API key, falling back to browser extraction")
		return e.runBrowser()
	}

	return found
}

func (e *Extractor) satisfied(c Credentials) bool {
	if c.APIKey == "" {
		return false
	}
	for _, op := range RequiredOperations {
		if !c.HasOperation(op) {
			return false
		}
	}
	return true
}

func (e *Extractor) get(url string) (string, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", uarand.GetRandom())
	req.Header.Set("Accept-Language", "ko-KR,ko;q=0.9,en;q=0.8")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8*1024*1024))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (e *Extractor) scan(body string, found *Credentials) {
	if found.APIKey == "" {
		if m := hexKeyPattern.FindStringSubmatch(body); m != nil {
			found.APIKey = m[1]
		} else if m := headerKeyPattern.FindStringSubmatch(body); m != nil {
			found.APIKey = m[1]
		}
	}

	for _, m := range opIDPattern.FindAllStringSubmatch(body, -1) {
		found.Hashes[m[1]] = m[2]
	}
	for _, m := range shaHashForwardPattern.FindAllStringSubmatch(body, -1) {
		found.Hashes[m[1]] = m[2]
	}
	for _, m := range shaHashReversePattern.FindAllStringSubmatch(body, -1) {
		found.Hashes[m[2]] = m[1]
	}
}

func discoverScriptBundles(html string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	var urls []string
	doc.Find("script[src]").Each(func(_ int, sel *goquery.Selection) {
		if src, ok := sel.Attr("src"); ok && strings.Contains(src, ".js") {
			urls = append(urls, absoluteBundleURL(src))
		}
	})
	return urls
}

func discoverAsyncBundles(html string, limit int) []string {
	matches := asyncBundlePattern.FindAllString(html, -1)
	seen := map[string]bool{}
	var urls []string
	for _, m := range matches {
		if seen[m] {
			continue
		}
		seen[m] = true
		urls = append(urls, absoluteBundleURL(m))
		if len(urls) >= limit {
			break
		}
	}
	return urls
}

func absoluteBundleURL(src string) string {
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		return src
	}
	if strings.HasPrefix(src, "//") {
		return "https:" + src
	}
	return "https://www.airbnb.co.kr" + src
}

// discoverListingURL implements step 5: a /rooms/<id> link, a
// base64-encoded DemandStayListing:<id> token, or a propertyId field,
// falling back to a hard-coded listing URL on total failure.
func discoverListingURL(html string) string {
	if m := roomsLinkPattern.FindStringSubmatch(html); m != nil {
		return fmt.Sprintf("https://www.airbnb.co.kr/rooms/%s", m[1])
	}
	if id, ok := decodeDemandStayListingID(html); ok {
		return fmt.Sprintf("https://www.airbnb.co.kr/rooms/%s", id)
	}
	if m := propertyIDPattern.FindStringSubmatch(html); m != nil {
		return fmt.Sprintf("https://www.airbnb.co.kr/rooms/%s", m[1])
	}
	return fallbackListingURL
}

func decodeDemandStayListingID(html string) (string, bool) {
	for _, candidate := range demandStayListingPattern.FindAllString(html, -1) {
		decoded, err := base64.StdEncoding.DecodeString(candidate)
		if err != nil {
			continue
		}
		if id, ok := strings.CutPrefix(string(decoded), "DemandStayListing:"); ok && id != "" {
			return id, true
		}
	}
	return "", false
}
