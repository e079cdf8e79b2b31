package credential

import (
	"testing"

	"github.com/chromedp/cdproto/network"
)

func fakeRequestWillBeSent(url string, headers map[string]interface{}) *network.EventRequestWillBeSent {
	return &network.EventRequestWillBeSent{
		Request: &network.Request{
			URL:     url,
			Headers: network.Headers(headers),
		},
	}
}

func TestOperationNameFromURL(t *testing.T) {
	cases := map[string]string{
		"https://www.airbnb.co.kr/api/v3/StaysSearch/abcd1234?operationName=StaysSearch&locale=ko":        "StaysSearch",
		"https://www.airbnb.co.kr/api/v3/PdpAvailabilityCalendar/ef567890":                                "PdpAvailabilityCalendar",
		"https://www.airbnb.co.kr/api/v3/StaysPdpSections/ab12cd34/extra/path?x=1":                        "StaysPdpSections",
		"https://www.airbnb.co.kr/not-graphql":                                                            "",
	}
	for url, want := range cases {
		if got := operationNameFromURL(url); got != want {
			t.Errorf("operationNameFromURL(%q) = %q, want %q", url, got, want)
		}
	}
}

func TestExtensionsHashFromURLDecodesURLEncodedJSON(t *testing.T) {
	// extensions={"persistedQuery":{"version":1,"sha256Hash":"deadbeef..."}}
	// URL-encoded, the way a real browser request carries it.
	rawURL := "https://www.airbnb.co.kr/api/v3/StaysSearch/deadbeefcafef00d1234567890abcdef1234567890abcdef1234567890abcdef?operationName=StaysSearch&locale=ko&extensions=%7B%22persistedQuery%22%3A%7B%22version%22%3A1%2C%22sha256Hash%22%3A%22deadbeefcafef00d1234567890abcdef1234567890abcdef1234567890abcdef%22%7D%7D"

	want := "deadbeefcafef00d1234567890abcdef1234567890abcdef1234567890abcdef"
	if got := extensionsHashFromURL(rawURL); got != want {
		t.Fatalf("extensionsHashFromURL = %q, want %q", got, want)
	}
}

func TestExtensionsHashFromURLMissingExtensionsParam(t *testing.T) {
	if got := extensionsHashFromURL("https://www.airbnb.co.kr/api/v3/StaysSearch/abc?operationName=StaysSearch"); got != "" {
		t.Fatalf("expected empty hash when extensions param is absent, got %q", got)
	}
}

func TestExtensionsHashFromURLMalformedJSON(t *testing.T) {
	if got := extensionsHashFromURL("https://www.airbnb.co.kr/api/v3/StaysSearch/abc?extensions=%7Bnot-json"); got != "" {
		t.Fatalf("expected empty hash for malformed extensions JSON, got %q", got)
	}
}

func TestCaptureFromRequestPopulatesAPIKeyAndHash(t *testing.T) {
	found := Credentials{Hashes: map[string]string{}}
	req := fakeRequestWillBeSent(
		"https://www.airbnb.co.kr/api/v3/StaysSearch/x?operationName=StaysSearch&extensions=%7B%22persistedQuery%22%3A%7B%22sha256Hash%22%3A%22abc123%22%7D%7D",
		map[string]interface{}{"x-airbnb-api-key": "d306zoyjsyarp7ifhu67rjxn52tv0t20"},
	)

	captureFromRequest(req, &found)

	if found.APIKey != "d306zoyjsyarp7ifhu67rjxn52tv0t20" {
		t.Fatalf("APIKey = %q, want the captured header value", found.APIKey)
	}
	if found.Hashes["StaysSearch"] != "abc123" {
		t.Fatalf("Hashes[StaysSearch] = %q, want abc123", found.Hashes["StaysSearch"])
	}
}
