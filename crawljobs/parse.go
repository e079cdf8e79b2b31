// Package crawljobs implements the L7 search, calendar and listing-
// detail jobs (spec §4.8), composing the L5 HTTP client façade with
// response parsing and persistence. Parsing helpers here are grounded
// on the defensive, never-raise recursive-walk idiom spec §4.8 and
// §9 describe for both the search and calendar fallbacks.
package crawljobs

import (
	"encoding/base64"
	"regexp"
	"strconv"
	"strings"
)

// maxWalkDepth bounds the fallback recursive extractor (spec §4.8,
// §8 property vii): it must never raise and must respect a depth-10
// cap, returning an empty sequence on exhausted depth.
const maxWalkDepth = 10

var digitsOnly = regexp.MustCompile(`[0-9]+(\.[0-9]+)?`)

// parsePrice extracts a numeric amount from a localized currency
// string such as "₩119,824", reducing it to digits. Returns false if
// no digits are present.
func parsePrice(s string) (float64, bool) {
	cleaned := strings.ReplaceAll(s, ",", "")
	m := digitsOnly.FindString(cleaned)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// decodeDemandStayListingID decodes a base64 token of the form
// "DemandStayListing:<N>" into the numeric upstream id.
func decodeDemandStayListingID(token string) (string, bool) {
	return decodeBase64WithPrefix(token, "DemandStayListing:")
}

// decodeBase64WithPrefix decodes a standard-base64 token and strips a
// required prefix, as used for both listing ids (DemandStayListing:)
// and host ids (DemandUser:).
func decodeBase64WithPrefix(token, prefix string) (string, bool) {
	decoded, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return "", false
	}
	id, ok := strings.CutPrefix(string(decoded), prefix)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// walkLeaf is the shape the fallback recursive extractors recognize:
// any object bearing both an id and a name, plus either a coordinate
// sub-object or lat/lng fields.
type walkLeaf struct {
	ID   string
	Name string
	Lat  float64
	Lng  float64
}

// walkForListingLeaves performs the bounded-depth recursive walk used
// by the search job's fallback parser (spec §4.8 "Fallback"). It never
// panics: malformed shapes are simply skipped, and depth exhaustion
// yields an empty slice.
func walkForListingLeaves(v interface{}, depth int) []walkLeaf {
	if depth > maxWalkDepth {
		return nil
	}

	var out []walkLeaf
	switch node := v.(type) {
	case map[string]interface{}:
		if leaf, ok := asListingLeaf(node); ok {
			out = append(out, leaf)
		}
		for _, child := range node {
			out = append(out, walkForListingLeaves(child, depth+1)...)
		}
	case []interface{}:
		for _, child := range node {
			out = append(out, walkForListingLeaves(child, depth+1)...)
		}
	}
	return out
}

func asListingLeaf(node map[string]interface{}) (walkLeaf, bool) {
	idVal, hasID := node["id"]
	nameVal, hasName := node["name"]
	if !hasID || !hasName {
		return walkLeaf{}, false
	}
	id := stringify(idVal)
	name := stringify(nameVal)
	if id == "" || name == "" {
		return walkLeaf{}, false
	}

	lat, lng, ok := extractCoordinates(node)
	if !ok {
		return walkLeaf{}, false
	}
	return walkLeaf{ID: id, Name: name, Lat: lat, Lng: lng}, true
}

func extractCoordinates(node map[string]interface{}) (float64, float64, bool) {
	if coord, ok := node["coordinate"].(map[string]interface{}); ok {
		lat, latOK := toFloat(coord["latitude"])
		lng, lngOK := toFloat(coord["longitude"])
		if latOK && lngOK {
			return lat, lng, true
		}
	}
	lat, latOK := toFloat(node["lat"])
	lng, lngOK := toFloat(node["lng"])
	if latOK && lngOK {
		return lat, lng, true
	}
	return 0, 0, false
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func stringify(v interface{}) string {
	switch n := v.(type) {
	case string:
		return n
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	default:
		return ""
	}
}

// walkForCalendarLeaves performs the bounded-depth recursive walk used
// by the calendar job's fallback parser: any object bearing both
// calendarDate and available.
type calendarLeaf struct {
	Date      string
	Available bool
}

func walkForCalendarLeaves(v interface{}, depth int) []calendarLeaf {
	if depth > maxWalkDepth {
		return nil
	}

	var out []calendarLeaf
	switch node := v.(type) {
	case map[string]interface{}:
		if leaf, ok := asCalendarLeaf(node); ok {
			out = append(out, leaf)
		}
		for _, child := range node {
			out = append(out, walkForCalendarLeaves(child, depth+1)...)
		}
	case []interface{}:
		for _, child := range node {
			out = append(out, walkForCalendarLeaves(child, depth+1)...)
		}
	}
	return out
}

func asCalendarLeaf(node map[string]interface{}) (calendarLeaf, bool) {
	dateVal, hasDate := node["calendarDate"]
	availVal, hasAvail := node["available"]
	if !hasDate || !hasAvail {
		return calendarLeaf{}, false
	}
	date, ok := dateVal.(string)
	if !ok || date == "" {
		return calendarLeaf{}, false
	}
	avail, ok := availVal.(bool)
	if !ok {
		return calendarLeaf{}, false
	}
	return calendarLeaf{Date: date, Available: avail}, true
}
