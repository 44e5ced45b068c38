package archive

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/bohanco/hpimage/internal/metrics"
)

// maxOffset is the oldest entry the provider still serves, in days.
const maxOffset = 7

// maxBodyBytes caps how much of a response body is read; archive payloads
// are a few kilobytes.
const maxBodyBytes = 4 << 20

// ClientConfig captures the parameters of the archive fetch client.
type ClientConfig struct {
	// Endpoint is the archive API URL; DefaultEndpoint when empty.
	Endpoint string
	// Timeout bounds each individual HTTP attempt.
	Timeout time.Duration
	// Timezones overrides the market→IANA timezone table; DefaultTimezones
	// when nil.
	Timezones map[string]string
}

// Client fetches and validates archive entries for one (market, date) at
// a time. It is safe for concurrent use; concurrent fetches share only
// the underlying HTTP transport.
type Client struct {
	endpoint  string
	http      *http.Client
	retry     *RetryPolicy
	timezones map[string]*time.Location
	clock     Clock
	logger    *zap.Logger
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// NewClient builds a Client. A nil clock falls back to the system clock,
// a nil logger to a no-op logger.
func NewClient(cfg ClientConfig, clock Clock, logger *zap.Logger) (*Client, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	table := cfg.Timezones
	if table == nil {
		table = DefaultTimezones
	}
	timezones := make(map[string]*time.Location, len(table))
	for market, name := range table {
		loc, err := time.LoadLocation(name)
		if err != nil {
			return nil, fmt.Errorf("load timezone %q for market %q: %w", name, market, err)
		}
		timezones[market] = loc
	}
	if clock == nil {
		clock = systemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		endpoint:  cfg.Endpoint,
		http:      &http.Client{Timeout: cfg.Timeout},
		retry:     NewRetryPolicy(ArchiveStatusDecider),
		timezones: timezones,
		clock:     clock,
		logger:    logger,
	}, nil
}

// Fetch retrieves the archive record for market on the given date.
// A zero date means today in the market's timezone; a nil loc resolves
// the timezone from the market table. The terminal failure, if any, is
// logged before being returned.
func (c *Client) Fetch(ctx context.Context, market string, date time.Time, loc *time.Location) (*Record, error) {
	rec, err := c.get(ctx, market, date, loc)
	if err != nil {
		c.logger.Error("fetch failed",
			zap.String("market", market),
			zap.Error(err))
		return nil, err
	}
	return rec, nil
}

// get runs the fetch state machine: resolve, request, parse, validate.
func (c *Client) get(ctx context.Context, market string, date time.Time, loc *time.Location) (*Record, error) {
	// Resolving.
	if loc == nil {
		var ok bool
		if loc, ok = c.timezones[market]; !ok {
			return nil, &Error{
				Kind:    KindUnknownMarket,
				Message: "unknown market with no timezone provided",
				Market:  market,
			}
		}
	}

	var target time.Time
	if date.IsZero() {
		target = Today(loc, c.clock.Now())
	} else {
		// Reproject the caller's calendar date into the market timezone.
		y, m, d := date.Date()
		target = time.Date(y, m, d, 0, 0, 0, 0, loc)
	}

	offset := DaysAgo(target, c.clock.Now())
	if offset < 0 || offset > maxOffset {
		return nil, &Error{
			Kind: KindOutOfRange,
			Message: fmt.Sprintf("offset is outside the available range (0 to %d)",
				maxOffset),
			Market:    market,
			Date:      target,
			Offset:    offset,
			HasOffset: true,
		}
	}

	// Requesting.
	body, err := c.request(ctx, market, offset)
	if err != nil {
		return nil, withContext(err, market, target, offset)
	}

	// Parsing.
	rec, err := ParseResponse(body, market)
	if err != nil {
		return nil, withContext(err, market, target, offset)
	}

	// Validating. The calendar date must match what was requested; the
	// provider's own UTC offset is authoritative and is only compared to
	// flag anomalies.
	const layout = "2006-01-02"
	if rec.Date.Format(layout) != target.Format(layout) {
		return nil, &Error{
			Kind: KindDateMismatch,
			Message: fmt.Sprintf("got unexpected date %s instead of the requested one",
				rec.Date.Format(layout)),
			Market:       market,
			Date:         target,
			Offset:       offset,
			HasOffset:    true,
			ResponseDate: rec.Date,
		}
	}
	_, wantOffset := target.Zone()
	if _, gotOffset := rec.Date.Zone(); gotOffset != wantOffset {
		c.logger.Warn("response date offset differs from the expected timezone offset",
			zap.String("market", market),
			zap.String("date", target.Format(layout)),
			zap.String("expected_offset", OffsetName(wantOffset)),
			zap.String("response_offset", OffsetName(gotOffset)))
	}

	return rec, nil
}

// request issues the archive GET for (market, offset), retrying per the
// policy. It returns the response body of the first successful attempt.
func (c *Client) request(ctx context.Context, market string, offset int) ([]byte, error) {
	q := url.Values{}
	q.Set("format", "js")
	q.Set("idx", strconv.Itoa(offset))
	q.Set("n", "1")
	q.Set("video", "1")
	q.Set("mkt", market)
	reqURL := c.endpoint + "?" + q.Encode()

	var lastErr error
	for attempt := 1; ; attempt++ {
		start := time.Now()
		body, status, err := c.attempt(ctx, reqURL)
		metrics.ObserveFetchDuration(market, time.Since(start))
		attemptLog := c.logger.With(
			zap.String("market", market),
			zap.Int("offset", offset),
			zap.Int("attempt", attempt),
			zap.Int("status", status))
		if err == nil && status < http.StatusBadRequest {
			attemptLog.Debug("archive request succeeded")
			metrics.ObserveFetch(market, "ok")
			return body, nil
		}
		if err == nil {
			err = fmt.Errorf("unexpected HTTP status %d", status)
		}
		lastErr = err
		attemptLog.Debug("archive request attempt failed", zap.Error(err))
		if !c.retry.ShouldRetry(attempt, status, ctxOrTransportErr(ctx, status, err)) {
			break
		}
		metrics.ObserveFetch(market, "retry")
		select {
		case <-ctx.Done():
			lastErr = ctx.Err()
			attempt = c.retry.MaxAttempts()
		case <-time.After(c.retry.Backoff(attempt)):
			continue
		}
		break
	}

	metrics.ObserveFetch(market, "error")
	return nil, &Error{
		Kind:    KindTransport,
		Message: "archive request failed",
		Market:  market,
		cause:   lastErr,
	}
}

// attempt performs a single GET. status is 0 when no response arrived.
func (c *Client) attempt(ctx context.Context, reqURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, resp.StatusCode, nil
	}
	return body, resp.StatusCode, nil
}

// ctxOrTransportErr keeps the retry predicate pure: a status response
// carries no error, a transport failure does, and a canceled context is
// never retried.
func ctxOrTransportErr(ctx context.Context, status int, err error) error {
	if ctx.Err() != nil {
		return nil
	}
	if status != 0 {
		return nil
	}
	return err
}

// withContext fills in the market, requested date and offset on an
// archive error that lacks them, and wraps any other error as a
// transport-level failure with that context.
func withContext(err error, market string, date time.Time, offset int) error {
	e, ok := err.(*Error)
	if !ok {
		return &Error{
			Kind:      KindTransport,
			Message:   "archive request failed",
			Market:    market,
			Date:      date,
			Offset:    offset,
			HasOffset: true,
			cause:     err,
		}
	}
	if e.Market == "" {
		e.Market = market
	}
	if e.Date.IsZero() {
		e.Date = date
	}
	if !e.HasOffset {
		e.Offset = offset
		e.HasOffset = true
	}
	return e
}
