package archive

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
)

// linkSentinel is the provider's "no link" value for copyrightlink.
const linkSentinel = "javascript:void(0)"

// urlBaseRe matches the image identity suffix inside either raw urlbase
// shape: "/az/hprichbg/rb/<Name>_<MARKET><digits>" or
// "/th?id=OHR.<Name>_<MARKET><digits>".
var urlBaseRe = regexp.MustCompile(`(\w+)_((?:ROW|[A-Z]{2}-[A-Z]{2})\d+)`)

// copyrightRe splits a copyright string into description and attribution
// around the © glyph, tolerating full-width spaces and half- or
// full-width parentheses.
var copyrightRe = regexp.MustCompile(`^(.+?)(?:[ \x{3000}])?(?:[(\x{FF08}])?\x{00A9}(?:[ \x{3000}])?(.+?)(?:[)\x{FF09}])?$`)

// ParseURLBase normalizes a raw urlbase and extracts the image name.
// It returns the canonical suffix ("PineBough_ROW6233127332") and the
// name ("PineBough"); the full canonical urlbase is URLBaseRoot + suffix.
func ParseURLBase(raw string) (suffix, name string, err error) {
	m := urlBaseRe.FindStringSubmatch(raw)
	if m == nil {
		return "", "", &Error{
			Kind:    KindInvalidInput,
			Message: fmt.Sprintf("failed to parse URL base %q", raw),
		}
	}
	return m[0], m[1], nil
}

// ParseCopyright splits a copyright string into the image description and
// the author and/or stock photo agency.
func ParseCopyright(raw string) (description, attribution string, err error) {
	m := copyrightRe.FindStringSubmatch(raw)
	if m == nil {
		return "", "", &Error{
			Kind:    KindInvalidInput,
			Message: fmt.Sprintf("failed to parse copyright string %q", raw),
		}
	}
	return m[1], m[2], nil
}

// ExtractKeyword pulls a search keyword out of a web search engine URL's
// query string. It understands the q and wd parameter conventions and
// reports false when the URL carries no usable keyword.
func ExtractKeyword(rawurl string) (string, bool) {
	u, err := url.Parse(rawurl)
	if err != nil || u.RawQuery == "" {
		return "", false
	}
	q, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return "", false
	}
	for _, field := range []string{"q", "wd"} {
		if v := q.Get(field); v != "" {
			return v, true
		}
	}
	return "", false
}

// imageEntry is the wire shape of one element of the provider's images
// array. wp is a pointer so that an explicit false survives the
// required-field check while a missing value does not.
type imageEntry struct {
	FullStartDate string          `json:"fullstartdate"`
	URLBase       string          `json:"urlbase"`
	Copyright     string          `json:"copyright"`
	CopyrightLink string          `json:"copyrightlink"`
	WP            *bool           `json:"wp"`
	Hotspots      json.RawMessage `json:"hs"`
	Messages      json.RawMessage `json:"msg"`
	Video         json.RawMessage `json:"vid"`
}

func (e *imageEntry) validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"fullstartdate", e.FullStartDate},
		{"urlbase", e.URLBase},
		{"copyright", e.Copyright},
		{"copyrightlink", e.CopyrightLink},
	}
	for _, f := range required {
		if f.value == "" {
			return &Error{
				Kind:    KindValidation,
				Message: fmt.Sprintf("required field %s does not exist in response", f.name),
			}
		}
	}
	if e.WP == nil {
		return &Error{
			Kind:    KindValidation,
			Message: "required field wp does not exist in response",
		}
	}
	return nil
}

// archiveResponse is the wire shape of the provider's response body.
type archiveResponse struct {
	Images []imageEntry `json:"images"`
}

// ParseResponse decodes a provider response body and normalizes its first
// image entry into a Record. A malformed body or missing first entry
// yields KindEmptyResponse.
func ParseResponse(body []byte, market string) (*Record, error) {
	var resp archiveResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &Error{
			Kind:    KindEmptyResponse,
			Message: "failed to decode JSON response",
			Market:  market,
			cause:   err,
		}
	}
	if len(resp.Images) == 0 {
		return nil, &Error{
			Kind:    KindEmptyResponse,
			Message: "response contains no image entries",
			Market:  market,
		}
	}
	return parseEntry(&resp.Images[0], market)
}

// parseEntry normalizes one provider image entry into a Record.
func parseEntry(entry *imageEntry, market string) (*Record, error) {
	if err := entry.validate(); err != nil {
		return nil, err
	}

	date, err := ParseFullStartDate(entry.FullStartDate)
	if err != nil {
		return nil, err
	}

	suffix, name, err := ParseURLBase(entry.URLBase)
	if err != nil {
		return nil, err
	}

	description, attribution, err := ParseCopyright(entry.Copyright)
	if err != nil {
		return nil, err
	}

	rec := &Record{
		Market:      market,
		Date:        date,
		Description: description,
		Hotspots:    passthrough(entry.Hotspots),
		Messages:    passthrough(entry.Messages),
		Image: Image{
			Name:      name,
			URLBase:   URLBaseRoot + suffix,
			Copyright: attribution,
			HighRes:   *entry.WP,
			Video:     passthrough(entry.Video),
		},
	}

	if entry.CopyrightLink != linkSentinel {
		u, err := url.Parse(entry.CopyrightLink)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, &Error{
				Kind:    KindValidation,
				Message: fmt.Sprintf("copyright link %q is not a valid URL", entry.CopyrightLink),
			}
		}
		rec.Link = entry.CopyrightLink
	}

	return rec, nil
}

// passthrough keeps an optional raw payload only when it is present and
// non-empty; null and empty composites count as absent.
func passthrough(raw json.RawMessage) json.RawMessage {
	t := bytes.TrimSpace(raw)
	switch string(t) {
	case "", "null", "[]", "{}", `""`, "0", "false":
		return nil
	}
	return raw
}
