// Package blockclassifier implements the pure response classifier
// (spec §4.6) that the rate limiter and HTTP client façade consult to
// tell a soft block from a genuine response.
package blockclassifier

import "strings"

// BlockType is the closed sum type spec §3 names for a classified
// response.
type BlockType string

const (
	None        BlockType = "none"
	RateLimit   BlockType = "rate_limit"
	Forbidden   BlockType = "forbidden"
	Captcha     BlockType = "captcha"
	Skeleton    BlockType = "skeleton"
	ServerError BlockType = "server_error"
)

const sniffWindow = 5000

var captchaMarkers = []string{"captcha", "recaptcha", "hcaptcha", "challenge-platform"}

// Detect classifies a response by status code and body, per spec
// §4.6. It never touches anything outside the first 5000 bytes of the
// body when inspecting content, and it is total: every (status, body)
// pair maps to exactly one BlockType.
func Detect(status int, body []byte) BlockType {
	switch status {
	case 429:
		return RateLimit
	case 403:
		return Forbidden
	case 503:
		return ServerError
	}

	window := body
	if len(window) > sniffWindow {
		window = window[:sniffWindow]
	}
	lower := strings.ToLower(string(window))

	if status == 200 {
		for _, marker := range captchaMarkers {
			if strings.Contains(lower, marker) {
				return Captcha
			}
		}
		if strings.Contains(lower, "pardon our interruption") || strings.Contains(lower, "access denied") {
			return Forbidden
		}
		if len(body) < 100 && !strings.Contains(lower, "error") {
			return Skeleton
		}
	}

	return None
}
