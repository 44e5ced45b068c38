package archive

import (
	"crypto/rand"
	"math"
	"math/big"
	"net/http"
	"time"
)

// StatusDecider reports whether an HTTP status code is worth retrying.
type StatusDecider func(status int) bool

// ArchiveStatusDecider retries server-side failures and request timeouts.
func ArchiveStatusDecider(status int) bool {
	return status >= http.StatusInternalServerError || status == http.StatusRequestTimeout
}

// DownloadStatusDecider additionally retries 302: the image origin is
// fronted by a redirector that intermittently bounces asset requests, and
// the downloader never follows redirects.
func DownloadStatusDecider(status int) bool {
	return status == http.StatusFound || ArchiveStatusDecider(status)
}

// RetryPolicy decides retry eligibility and backoff for HTTP attempts.
// The decision function is pure so transports can be tested without a
// network.
type RetryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	decider     StatusDecider
}

// NewRetryPolicy builds a policy with the provider defaults: three
// attempts, jittered exponential backoff.
func NewRetryPolicy(decider StatusDecider) *RetryPolicy {
	if decider == nil {
		decider = ArchiveStatusDecider
	}
	return &RetryPolicy{
		maxAttempts: 3,
		baseDelay:   250 * time.Millisecond,
		maxDelay:    5 * time.Second,
		decider:     decider,
	}
}

// MaxAttempts returns the attempt budget, counting the first try.
func (p *RetryPolicy) MaxAttempts() int { return p.maxAttempts }

// ShouldRetry decides whether another attempt is warranted. attempt is
// 1-based; status is 0 when the request failed before a response arrived
// (connection failures are always retryable within the budget).
func (p *RetryPolicy) ShouldRetry(attempt, status int, err error) bool {
	if attempt >= p.maxAttempts {
		return false
	}
	if err != nil {
		return true
	}
	return p.decider(status)
}

// Backoff returns the wait duration before the given 1-based attempt.
func (p *RetryPolicy) Backoff(attempt int) time.Duration {
	delay := float64(p.baseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(p.maxDelay) {
		delay = float64(p.maxDelay)
	}
	return time.Duration(delay/2) + p.randomJitter(time.Duration(delay)/2)
}

func (p *RetryPolicy) randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(limit)))
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}
