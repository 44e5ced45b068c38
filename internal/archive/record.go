// Package archive implements the homepage image archive client: date and
// timezone resolution, response parsing and validation, the per-market
// fetch state machine, and the concurrent batch coordinator.
package archive

import (
	"encoding/json"
	"time"
)

// DefaultEndpoint is the archive API endpoint queried for image metadata.
const DefaultEndpoint = "https://global.bing.com/HPImageArchive.aspx"

// URLBaseRoot is the canonical path prefix every image urlbase is re-rooted to.
const URLBaseRoot = "/az/hprichbg/rb/"

// ReferenceTimezone anchors batch cycles when no date is given.
const ReferenceTimezone = "America/Los_Angeles"

// DefaultTimezones maps market codes to the IANA timezone the provider
// publishes them in. Markets outside the table need an explicit timezone.
// The table is copied by NewClient so callers can substitute their own.
var DefaultTimezones = map[string]string{
	"ROW":   "America/Los_Angeles",
	"en-US": "America/Los_Angeles",
	"pt-BR": "America/Los_Angeles",
	"en-CA": "America/Toronto",
	"fr-CA": "America/Toronto",
	"en-GB": "Europe/London",
	"fr-FR": "Europe/Paris",
	"de-DE": "Europe/Berlin",
	"en-IN": "Asia/Kolkata",
	"zh-CN": "Asia/Shanghai",
	"ja-JP": "Asia/Tokyo",
	"en-AU": "Australia/Sydney",
}

// Image identifies one image asset family, independent of rendition size.
// Multiple markets may report the same Image on the same cycle; the
// repository keys readiness on URLBase.
type Image struct {
	// Name is the stable identifier extracted from the raw urlbase,
	// e.g. "PineBough".
	Name string `json:"name"`
	// URLBase is the canonical path prefix,
	// e.g. "/az/hprichbg/rb/PineBough_ROW6233127332".
	URLBase string `json:"urlbase"`
	// Copyright is the author and/or stock photo agency.
	Copyright string `json:"copyright"`
	// HighRes reports whether a 1920x1200 rendition exists.
	HighRes bool `json:"wp"`
	// Video carries the provider's video metadata verbatim, if any.
	Video json.RawMessage `json:"vid,omitempty"`
}

// Record is the canonical normalized result of one (market, date) fetch.
// It is constructed fresh per fetch and immutable once returned.
type Record struct {
	Market string `json:"market"`
	// Date is local midnight of the archive entry's calendar date, carrying
	// the provider's reported UTC offset (which may legitimately differ
	// from the locally expected one).
	Date        time.Time `json:"date"`
	Description string    `json:"description"`
	// Link is the copyright link, empty when the provider sent its
	// "no link" sentinel.
	Link     string          `json:"link,omitempty"`
	Hotspots json.RawMessage `json:"hs,omitempty"`
	Messages json.RawMessage `json:"msg,omitempty"`
	Image    Image           `json:"image"`
}

// Clock abstracts time.Now so fetch targeting can be pinned in tests.
type Clock interface {
	Now() time.Time
}
