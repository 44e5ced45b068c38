package archive

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Kind tags the failure classes a fetch can produce. Callers branch on
// the tag, never on concrete error types beyond *Error itself.
type Kind string

const (
	// KindUnknownMarket means no timezone could be derived for the market.
	KindUnknownMarket Kind = "unknown_market"
	// KindOutOfRange means the requested offset is outside the provider's
	// servable window of 0 to 7 days.
	KindOutOfRange Kind = "out_of_range"
	// KindTransport covers exhausted retries, non-retryable HTTP statuses
	// and connection failures.
	KindTransport Kind = "transport"
	// KindEmptyResponse means the JSON body was malformed or images[0]
	// was missing.
	KindEmptyResponse Kind = "empty_response"
	// KindValidation means a required response field was missing or empty.
	KindValidation Kind = "validation"
	// KindInvalidInput means a pattern match failed on a urlbase,
	// copyright string or timestamp.
	KindInvalidInput Kind = "invalid_input"
	// KindDateMismatch means the resolved calendar date differs from the
	// requested one. Always fatal.
	KindDateMismatch Kind = "date_mismatch"
)

// Error is the single structured failure type of the archive package.
// Optional fields are left at their zero value when unknown.
type Error struct {
	Kind    Kind
	Message string
	Market  string
	// Date is the requested date, if known at failure time.
	Date time.Time
	// Offset is the requested offset; valid only when HasOffset is set,
	// since 0 is a legitimate offset.
	Offset    int
	HasOffset bool
	// ResponseDate is the date the provider actually answered with.
	ResponseDate time.Time

	cause error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if e.Market != "" {
		fmt.Fprintf(&b, ": market %s", e.Market)
	}
	if !e.Date.IsZero() {
		fmt.Fprintf(&b, ", date %s", formatDate(e.Date))
	}
	if e.HasOffset {
		fmt.Fprintf(&b, ", offset %d", e.Offset)
	}
	if !e.ResponseDate.IsZero() {
		fmt.Fprintf(&b, ", response date %s", formatDate(e.ResponseDate))
	}
	if e.cause != nil {
		fmt.Fprintf(&b, ": %v", e.cause)
	}
	return b.String()
}

// Unwrap exposes the wrapped cause for errors.Is/As.
func (e *Error) Unwrap() error { return e.cause }

// Is matches against another *Error by kind, so callers can probe with
// errors.Is(err, &Error{Kind: KindDateMismatch}).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf extracts the failure kind from err, or "" if err is not an
// archive error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func formatDate(t time.Time) string {
	zone, offset := t.Zone()
	name := OffsetName(offset)
	if zone != "" && zone != name {
		name = zone + " (" + name + ")"
	}
	return t.Format("2006-01-02") + " " + name
}

// BatchError aggregates per-market failures of a batch fetch. The batch
// contract is all-or-nothing: no partial result map accompanies it.
type BatchError struct {
	// Failures maps each failed market to its cause.
	Failures map[string]error
}

func (e *BatchError) Error() string {
	markets := make([]string, 0, len(e.Failures))
	for m := range e.Failures {
		markets = append(markets, m)
	}
	sort.Strings(markets)
	return fmt.Sprintf("batch fetch failed for %d of the requested markets (%s)",
		len(e.Failures), strings.Join(markets, ", "))
}
