package backfill

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// capturesSeen counts index records considered across all runs.
	capturesSeen = promauto.NewCounter(prometheus.CounterOpts{
		Name: "backfill_captures_seen_total",
		Help: "The total number of capture records returned by the index.",
	})
	// snapshotsDownloaded counts snapshots fetched and persisted.
	snapshotsDownloaded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "backfill_snapshots_downloaded_total",
		Help: "The total number of snapshots downloaded and written.",
	})
	// duplicatesSkipped counts captures skipped because their id was
	// already in the dedup window.
	duplicatesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "backfill_duplicates_skipped_total",
		Help: "The total number of captures skipped as already emitted.",
	})
	// changesDetected counts emitted change events.
	changesDetected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "backfill_changes_detected_total",
		Help: "The total number of content change events emitted.",
	})
	// indexErrors counts failed index queries (the URL is skipped).
	indexErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "backfill_index_errors_total",
		Help: "The total number of failed capture index queries.",
	})
	// fetchErrors counts failed snapshot fetches (the capture is skipped).
	fetchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "backfill_fetch_errors_total",
		Help: "The total number of failed snapshot fetches.",
	})
)
