// Package metrics exposes Prometheus collectors for the hpimage service.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fetchRequestsTotal   *prometheus.CounterVec
	fetchDurationSeconds *prometheus.HistogramVec
	batchFailuresTotal   prometheus.Counter
	downloadsTotal       *prometheus.CounterVec
	downloadBytesTotal   prometheus.Counter

	once sync.Once
)

// Init registers the Prometheus collectors. It is safe to call more than
// once.
func Init() {
	once.Do(func() {
		fetchRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hpimage_fetch_requests_total",
				Help: "Archive fetch attempts, labeled by market and outcome.",
			},
			[]string{"market", "outcome"},
		)

		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hpimage_fetch_duration_seconds",
				Help:    "Archive request duration per attempt, labeled by market.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"market"},
		)

		batchFailuresTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "hpimage_batch_failures_total",
				Help: "Batch fetch cycles that ended with at least one failed market.",
			},
		)

		downloadsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hpimage_downloads_total",
				Help: "Image rendition downloads, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		downloadBytesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "hpimage_download_bytes_total",
				Help: "Total bytes of downloaded image renditions.",
			},
		)
	})
}

// ObserveFetch counts one archive fetch attempt outcome.
func ObserveFetch(market, outcome string) {
	if fetchRequestsTotal == nil {
		return
	}
	fetchRequestsTotal.WithLabelValues(market, outcome).Inc()
}

// ObserveFetchDuration records the duration of one archive request attempt.
func ObserveFetchDuration(market string, d time.Duration) {
	if fetchDurationSeconds == nil {
		return
	}
	fetchDurationSeconds.WithLabelValues(market).Observe(d.Seconds())
}

// IncBatchFailure counts one failed batch cycle.
func IncBatchFailure() {
	if batchFailuresTotal == nil {
		return
	}
	batchFailuresTotal.Inc()
}

// ObserveDownload counts one rendition download outcome.
func ObserveDownload(outcome string) {
	if downloadsTotal == nil {
		return
	}
	downloadsTotal.WithLabelValues(outcome).Inc()
}

// AddDownloadBytes accumulates downloaded payload size.
func AddDownloadBytes(n int64) {
	if downloadBytesTotal == nil {
		return
	}
	downloadBytesTotal.Add(float64(n))
}
