// Package backfill drives the incremental archive backfill: cursor
// resume, pagination against the run budget, dedup, rate-limited fetch,
// artifact emission, and change detection.
package backfill

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/laruecivic/civic-intel/internal/artifact"
	"github.com/laruecivic/civic-intel/internal/cdx"
	"github.com/laruecivic/civic-intel/internal/hashutil"
	"github.com/laruecivic/civic-intel/internal/notify"
	"github.com/laruecivic/civic-intel/internal/snapshot"
	"github.com/laruecivic/civic-intel/internal/state"
	"github.com/laruecivic/civic-intel/internal/storage"
)

// CaptureIndex queries the remote capture index.
type CaptureIndex interface {
	Query(ctx context.Context, q cdx.Query) ([]cdx.Capture, error)
}

// SnapshotFetcher downloads one capture's bytes to a destination path.
type SnapshotFetcher interface {
	Fetch(ctx context.Context, snapshotURL, dest string) (string, []byte, error)
}

// Config holds the orchestrator's per-deployment settings.
type Config struct {
	URLs            []string
	IncludeSubpaths bool
	LimitPerRun     int
	Keywords        []string
	BaseTags        []string
	ArtifactsDir    string
	SnapshotsDir    string
}

// Options are the per-invocation overrides.
type Options struct {
	Start  string
	End    string
	Limit  int
	Resume bool
}

// Summary carries the run counters. They are observational only and are
// never persisted.
type Summary struct {
	Found      int
	Downloaded int
	Skipped    int
	Changes    int
	StateSize  int
}

// Orchestrator owns the in-memory URL state for the duration of one run
// and is the sole writer of the state file.
type Orchestrator struct {
	cfg      Config
	index    CaptureIndex
	fetcher  SnapshotFetcher
	state    *state.Store
	mirror   storage.Provider
	notifier notify.Publisher
	logger   *zap.Logger
	now      func() time.Time
}

// New builds an Orchestrator. A nil mirror or notifier falls back to the
// no-op implementation.
func New(cfg Config, index CaptureIndex, fetcher SnapshotFetcher, st *state.Store,
	mirror storage.Provider, notifier notify.Publisher, logger *zap.Logger) *Orchestrator {
	if mirror == nil {
		mirror = storage.NoOpProvider{}
	}
	if notifier == nil {
		notifier = notify.NoOpPublisher{}
	}
	return &Orchestrator{
		cfg:      cfg,
		index:    index,
		fetcher:  fetcher,
		state:    st,
		mirror:   mirror,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// processed tracks the freshest capture handled for a URL in this run.
type processed struct {
	timestamp string
	hash      string
	original  string
}

// Run executes one backfill pass over the configured URLs in order. URLs
// are served first come first served against the global budget; a
// single URL's failure never aborts the run. State is persisted once at
// the end.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (Summary, error) {
	var sum Summary
	runID := uuid.NewString()
	logger := o.logger.With(zap.String("run_id", runID))

	if len(o.cfg.URLs) == 0 {
		logger.Info("No archive URLs configured; nothing to do.")
		sum.StateSize = o.state.Size()
		return sum, nil
	}

	remaining := opts.Limit
	if remaining <= 0 {
		remaining = o.cfg.LimitPerRun
	}

	match := cdx.MatchExact
	if o.cfg.IncludeSubpaths {
		match = cdx.MatchPrefix
	}

	for _, sourceURL := range o.cfg.URLs {
		if remaining <= 0 {
			break
		}
		if strings.TrimSpace(sourceURL) == "" {
			continue
		}

		from := opts.Start
		if opts.Resume && opts.Start == "" {
			from = o.state.URL(sourceURL).LastProcessed
		}

		captures, err := o.index.Query(ctx, cdx.Query{
			URL:   sourceURL,
			Match: match,
			Sort:  cdx.SortAscending,
			From:  from,
			To:    opts.End,
			Limit: remaining,
		})
		if err != nil {
			indexErrors.Inc()
			logger.Warn("Capture index query failed; skipping URL",
				zap.String("url", sourceURL), zap.Error(err))
			continue
		}

		freshest := o.processURL(ctx, logger, sourceURL, captures, &remaining, &sum)
		if freshest != nil {
			o.detectChange(ctx, logger, runID, sourceURL, *freshest, &sum)
			o.state.Advance(sourceURL, freshest.timestamp, freshest.hash, freshest.original)
		}
	}

	if err := o.state.Save(); err != nil {
		return sum, fmt.Errorf("persist state: %w", err)
	}
	sum.StateSize = o.state.Size()

	logger.Info("Backfill run complete",
		zap.Int("found", sum.Found),
		zap.Int("downloaded", sum.Downloaded),
		zap.Int("skipped", sum.Skipped),
		zap.Int("changes", sum.Changes),
		zap.Int("state_size", sum.StateSize),
	)
	return sum, nil
}

// processURL walks one URL's capture page, downloading new captures
// until the page or the global budget is exhausted. It returns the
// freshest capture processed this run, or nil when nothing was
// downloaded.
func (o *Orchestrator) processURL(ctx context.Context, logger *zap.Logger, sourceURL string,
	captures []cdx.Capture, remaining *int, sum *Summary) *processed {
	var freshest *processed

	for _, rec := range captures {
		if rec.Timestamp == "" || rec.OriginalURL == "" {
			continue
		}
		sum.Found++
		capturesSeen.Inc()

		id := artifact.CaptureID(rec.OriginalURL, rec.Timestamp)
		if o.state.Seen(sourceURL, id) {
			sum.Skipped++
			duplicatesSkipped.Inc()
			continue
		}

		snapshotURL := artifact.ArchivedURL(rec.OriginalURL, rec.Timestamp)
		dest := filepath.Join(o.cfg.SnapshotsDir, id+snapshot.PlaceholderExt)

		contentType, data, err := o.fetcher.Fetch(ctx, snapshotURL, dest)
		if err != nil {
			fetchErrors.Inc()
			logger.Warn("Snapshot fetch failed; skipping capture",
				zap.String("url", rec.OriginalURL),
				zap.String("timestamp", rec.Timestamp),
				zap.Error(err))
			continue
		}

		ext := snapshot.ResolveExtension(contentType, rec.MIMEType, rec.OriginalURL)
		finalPath, err := snapshot.Finalize(dest, ext)
		if err != nil {
			fetchErrors.Inc()
			logger.Warn("Snapshot finalize failed; skipping capture",
				zap.String("capture_id", id), zap.Error(err))
			continue
		}

		art := artifact.Artifact{
			ContentType: snapshot.ResolveContentType(contentType, rec.MIMEType, rec.OriginalURL),
			ID:          id,
			Source: artifact.SourceRef{
				Kind:        "wayback",
				RetrievedAt: artifact.Timestamp(o.now()),
				Value:       snapshotURL,
			},
			Tags:  o.deriveTags(rec.OriginalURL),
			Title: fmt.Sprintf("Wayback snapshot: %s @ %s", rec.OriginalURL, rec.Timestamp),
		}
		artPath := artifact.Path(o.cfg.ArtifactsDir, id)
		if err := artifact.Write(artPath, art); err != nil {
			logger.Warn("Artifact write failed; skipping capture",
				zap.String("capture_id", id), zap.Error(err))
			continue
		}
		o.mirrorFile(ctx, logger, path.Join("artifacts", id+".json"), artPath)
		o.mirrorBytes(ctx, logger, path.Join("snapshots", filepath.Base(finalPath)), data)

		o.state.MarkSeen(sourceURL, id)
		sum.Downloaded++
		snapshotsDownloaded.Inc()

		hash := hashutil.Digest(data)
		if freshest == nil || rec.Timestamp > freshest.timestamp {
			freshest = &processed{
				timestamp: rec.Timestamp,
				hash:      hash,
				original:  rec.OriginalURL,
			}
		}

		*remaining--
		if *remaining <= 0 {
			break
		}
	}
	return freshest
}

// detectChange compares the freshest capture processed this run against
// the stored hash and emits at most one change event per URL per run.
func (o *Orchestrator) detectChange(ctx context.Context, logger *zap.Logger, runID, sourceURL string,
	fresh processed, sum *Summary) {
	prev := o.state.URL(sourceURL)
	if prev.LastHash == "" || prev.LastHash == fresh.hash {
		return
	}

	changeID := artifact.ChangeID(sourceURL, fresh.timestamp)
	if o.state.Seen(sourceURL, changeID) {
		return
	}

	currentURL := artifact.ArchivedURL(fresh.original, fresh.timestamp)
	// Under prefix match the cursor capture may belong to a different
	// original URL than the freshest one; state files written before the
	// original was recorded fall back to the freshest capture's URL.
	prevOriginal := prev.LastOriginal
	if prevOriginal == "" {
		prevOriginal = fresh.original
	}
	previousURL := artifact.ArchivedURL(prevOriginal, prev.LastProcessed)
	body := fmt.Sprintf("%s -> %s\nprevious: %s\ncurrent: %s",
		prev.LastProcessed, fresh.timestamp, previousURL, currentURL)

	art := artifact.Artifact{
		BodyText:    &body,
		ContentType: "text/plain",
		ID:          changeID,
		Source: artifact.SourceRef{
			Kind:        "wayback",
			RetrievedAt: artifact.Timestamp(o.now()),
			Value:       currentURL,
		},
		Tags:  []string{"wayback", "change"},
		Title: fmt.Sprintf("Wayback change detected: %s", fresh.original),
	}
	artPath := artifact.Path(o.cfg.ArtifactsDir, changeID)
	if err := artifact.Write(artPath, art); err != nil {
		logger.Warn("Change artifact write failed",
			zap.String("change_id", changeID), zap.Error(err))
		return
	}
	o.mirrorFile(ctx, logger, path.Join("artifacts", changeID+".json"), artPath)

	o.state.MarkSeen(sourceURL, changeID)
	sum.Changes++
	changesDetected.Inc()

	if err := o.notifier.Publish(ctx, notify.ChangeNotice{
		ArtifactID: changeID,
		URL:        sourceURL,
		Previous:   previousURL,
		Current:    currentURL,
		RunID:      runID,
	}); err != nil {
		logger.Warn("Change notification failed",
			zap.String("change_id", changeID), zap.Error(err))
	}
}

func (o *Orchestrator) deriveTags(originalURL string) []string {
	tags := append([]string(nil), o.cfg.BaseTags...)
	lowered := strings.ToLower(originalURL)
	for _, kw := range o.cfg.Keywords {
		if kw != "" && strings.Contains(lowered, strings.ToLower(kw)) {
			tags = append(tags, "high_impact")
			break
		}
	}
	return tags
}

func (o *Orchestrator) mirrorFile(ctx context.Context, logger *zap.Logger, objectName, filePath string) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		logger.Warn("Mirror read failed", zap.String("path", filePath), zap.Error(err))
		return
	}
	o.mirrorBytes(ctx, logger, objectName, data)
}

func (o *Orchestrator) mirrorBytes(ctx context.Context, logger *zap.Logger, objectName string, data []byte) {
	if err := o.mirror.Save(ctx, objectName, data); err != nil {
		logger.Warn("Mirror upload failed", zap.String("object", objectName), zap.Error(err))
	}
}
