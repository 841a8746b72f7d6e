// Package metrics provides Prometheus metrics for downloads and archive
// extraction.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	downloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "updater_downloads_total",
			Help: "Total number of downloads by outcome",
		},
		[]string{"outcome"},
	)

	bytesDownloaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "updater_bytes_downloaded_total",
			Help: "Total bytes written by downloads",
		},
	)

	entriesExtracted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "updater_archive_entries_extracted_total",
			Help: "Total archive entries materialized on disk",
		},
		[]string{"format"},
	)

	entriesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "updater_archive_entries_skipped_total",
			Help: "Total archive entries skipped during extraction",
		},
		[]string{"reason"},
	)
)

// RecordDownload records the outcome of one download.
func RecordDownload(outcome string) {
	downloadsTotal.WithLabelValues(outcome).Inc()
}

// RecordBytes adds n transferred bytes.
func RecordBytes(n int) {
	bytesDownloaded.Add(float64(n))
}

// RecordExtracted records one entry extracted from an archive of format.
func RecordExtracted(format string) {
	entriesExtracted.WithLabelValues(format).Inc()
}

// RecordSkipped records one entry skipped for reason.
func RecordSkipped(reason string) {
	entriesSkipped.WithLabelValues(reason).Inc()
}
