// Package downloader fetches image renditions and writes them to the
// configured storage sinks.
package downloader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bohanco/hpimage/internal/archive"
	"github.com/bohanco/hpimage/internal/metrics"
	"github.com/bohanco/hpimage/internal/storage"
)

// DefaultEndpoint is the origin image renditions are fetched from.
const DefaultEndpoint = "https://www.bing.com"

// DefaultSizes are the renditions downloaded for every image.
var DefaultSizes = []string{
	"1920x1080",
	"1080x1920",
	"1366x768",
	"768x1280",
	"800x480",
	"480x800",
}

// HighResSize is the extra rendition downloaded when an image's high-res
// flag is set.
const HighResSize = "1920x1200"

// maxRenditionBytes caps a single rendition read; wallpapers stay well
// under this.
const maxRenditionBytes = 64 << 20

// Config captures the downloader parameters.
type Config struct {
	// Endpoint is the rendition origin; DefaultEndpoint when empty.
	Endpoint string
	// Timeout bounds each individual HTTP attempt.
	Timeout time.Duration
	// Concurrency bounds in-flight rendition fetches; 6 when zero.
	Concurrency int
}

// Downloader fetches every rendition of a set of images and writes them
// through a BlobStore. A batch is all-or-nothing: on any rendition
// failure the whole batch fails and everything it wrote is removed.
type Downloader struct {
	endpoint    string
	http        *http.Client
	retry       *archive.RetryPolicy
	store       storage.BlobStore
	concurrency int
	logger      *zap.Logger
}

// New builds a Downloader writing to store.
func New(cfg Config, store storage.BlobStore, logger *zap.Logger) (*Downloader, error) {
	if store == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 6
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Downloader{
		endpoint: cfg.Endpoint,
		http: &http.Client{
			Timeout: cfg.Timeout,
			// The origin intermittently bounces asset requests through a
			// redirector; a 3xx answer is treated as a retryable failure
			// rather than followed.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		retry:       archive.NewRetryPolicy(archive.DownloadStatusDecider),
		store:       store,
		concurrency: cfg.Concurrency,
		logger:      logger,
	}, nil
}

// Filenames lists every rendition file of the given images, sorted.
func Filenames(images map[string]bool) []string {
	var files []string
	for urlBase, highRes := range images {
		sizes := DefaultSizes
		if highRes {
			sizes = append(append([]string(nil), DefaultSizes...), HighResSize)
		}
		for _, size := range sizes {
			files = append(files, fmt.Sprintf("%s_%s.jpg", urlBase, size))
		}
	}
	sort.Strings(files)
	return files
}

// Download fetches every rendition of images (urlbase→highRes) and writes
// each to the blob store. Fetches settle independently; once all are done,
// any failure removes every file of the batch from the store and fails
// the batch.
func (d *Downloader) Download(ctx context.Context, images map[string]bool) error {
	files := Filenames(images)
	if len(files) == 0 {
		return nil
	}

	batchLog := d.logger.With(
		zap.String("batch_id", uuid.NewString()),
		zap.Int("files", len(files)))
	batchLog.Info("starting download batch")

	errs := make([]error, len(files))
	sem := make(chan struct{}, d.concurrency)
	var wg sync.WaitGroup
	for i, file := range files {
		wg.Add(1)
		go func(i int, file string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			errs[i] = d.fetchOne(ctx, file)
		}(i, file)
	}
	wg.Wait()

	failed := false
	for i, err := range errs {
		if err != nil {
			failed = true
			batchLog.Error("download failed",
				zap.String("file", files[i]),
				zap.Error(err))
		}
	}
	if !failed {
		batchLog.Info("download batch complete")
		return nil
	}

	for _, file := range files {
		if err := d.store.RemoveObject(ctx, file); err != nil {
			batchLog.Warn("failed to remove partial artifact",
				zap.String("file", file),
				zap.Error(err))
		}
	}
	return fmt.Errorf("download operation failed")
}

// fetchOne retrieves a single rendition with retries and stores it.
func (d *Downloader) fetchOne(ctx context.Context, file string) error {
	var lastErr error
	for attempt := 1; ; attempt++ {
		body, err := d.attempt(ctx, file)
		if err == nil {
			metrics.ObserveDownload("ok")
			metrics.AddDownloadBytes(int64(len(body)))
			_, err = d.store.PutObject(ctx, file, "image/jpeg", bytes.NewReader(body))
			if err != nil {
				return fmt.Errorf("store %s: %w", file, err)
			}
			return nil
		}
		lastErr = err
		status := 0
		var se *statusError
		if errors.As(err, &se) {
			status = se.status
		}
		d.logger.Debug("rendition request attempt failed",
			zap.String("file", file),
			zap.Int("attempt", attempt),
			zap.Int("status", status),
			zap.Error(err))
		if ctx.Err() != nil || !d.retry.ShouldRetry(attempt, status, transportErr(status, err)) {
			break
		}
		metrics.ObserveDownload("retry")
		select {
		case <-ctx.Done():
			lastErr = ctx.Err()
		case <-time.After(d.retry.Backoff(attempt)):
			continue
		}
		break
	}
	metrics.ObserveDownload("error")
	return lastErr
}

type statusError struct {
	status int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected HTTP status %d", e.status)
}

// transportErr feeds the retry predicate: status failures carry no error,
// everything else is a connection-level failure.
func transportErr(status int, err error) error {
	if status != 0 {
		return nil
	}
	return err
}

func (d *Downloader) attempt(ctx context.Context, file string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.endpoint+file, nil)
	if err != nil {
		return nil, err
	}
	resp, err := d.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{status: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRenditionBytes))
	if err != nil {
		return nil, err
	}
	return body, nil
}
