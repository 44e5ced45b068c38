package archive

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/bohanco/hpimage/internal/metrics"
)

// Batch fetches the archive record of every market concurrently, anchored
// on date (zero date means today in ReferenceTimezone). The join settles
// every fetch before returning: one market's failure never cancels or
// blocks the others. On any failure each cause is logged with its market
// tag and a single *BatchError is returned with no partial results.
func (c *Client) Batch(ctx context.Context, markets []string, date time.Time) (map[string]*Record, error) {
	if date.IsZero() {
		loc, err := time.LoadLocation(ReferenceTimezone)
		if err != nil {
			return nil, err
		}
		date = Today(loc, c.clock.Now())
	}

	// One result slot per market, filled by its own goroutine and read
	// only after every goroutine has signalled completion.
	type outcome struct {
		rec *Record
		err error
	}
	slots := make([]outcome, len(markets))
	done := make(chan int)
	for i, market := range markets {
		go func(i int, market string) {
			rec, err := c.get(ctx, market, date, nil)
			slots[i] = outcome{rec: rec, err: err}
			done <- i
		}(i, market)
	}
	for range markets {
		<-done
	}

	results := make(map[string]*Record, len(markets))
	var failures map[string]error
	for i, market := range markets {
		if slots[i].err != nil {
			if failures == nil {
				failures = make(map[string]error)
			}
			failures[market] = slots[i].err
			c.logger.Error("batch fetch failed for market",
				zap.String("market", market),
				zap.Error(slots[i].err))
			continue
		}
		results[market] = slots[i].rec
	}

	if failures != nil {
		metrics.IncBatchFailure()
		return nil, &BatchError{Failures: failures}
	}
	return results, nil
}
