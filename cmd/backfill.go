package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/laruecivic/civic-intel/internal/api"
	"github.com/laruecivic/civic-intel/internal/backfill"
	"github.com/laruecivic/civic-intel/internal/cdx"
	"github.com/laruecivic/civic-intel/internal/notify"
	"github.com/laruecivic/civic-intel/internal/ratelimit"
	"github.com/laruecivic/civic-intel/internal/snapshot"
	"github.com/laruecivic/civic-intel/internal/state"
	"github.com/laruecivic/civic-intel/internal/storage"
)

// newBackfillCmd creates the 'backfill' subcommand, the Wayback Machine
// historical collector.
func newBackfillCmd() *cobra.Command {
	var (
		start  string
		end    string
		limit  int
		resume bool
	)

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Backfill historical captures from the Wayback Machine",
		Long: `Walks the Wayback Machine capture index for the configured source
URLs, downloads snapshots that have not been seen before, and emits one
artifact per capture. Progress is saved per URL, so interrupted runs
resume where they left off.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return runBackfill(cmd, appInstance, backfill.Options{
				Start:  start,
				End:    end,
				Limit:  limit,
				Resume: resume,
			})
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "earliest capture timestamp (YYYYMMDDhhmmss, inclusive)")
	cmd.Flags().StringVar(&end, "end", "", "latest capture timestamp (YYYYMMDDhhmmss, inclusive)")
	cmd.Flags().IntVar(&limit, "limit", 0, "max captures to process this run (overrides config)")
	cmd.Flags().BoolVar(&resume, "resume", true, "resume from saved per-URL state")

	return cmd
}

func runBackfill(cmd *cobra.Command, app *App, opts backfill.Options) error {
	ctx := cmd.Context()
	cfg := app.Config
	logger := app.Logger
	wayback := cfg.Sources.Wayback

	if !wayback.Enabled {
		logger.Info("wayback backfill disabled in config")
		return nil
	}

	for _, dir := range []string{
		cfg.Storage.ArtifactsDir(),
		cfg.Storage.SnapshotsDir("wayback"),
		cfg.Storage.StateDir(),
	} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create output dir %s: %w", dir, err)
		}
	}

	pacer := ratelimit.New(wayback.RateLimit())
	httpClient := snapshot.NewHTTPClient(cfg.HTTP.Timeout())

	index := cdx.New(cdx.Config{
		UserAgent: cfg.HTTP.UserAgent,
		Client:    httpClient,
		Pacer:     pacer,
		Logger:    logger,
	})
	fetcher := snapshot.NewFetcher(snapshot.Config{
		UserAgent: cfg.HTTP.UserAgent,
		Client:    httpClient,
		Pacer:     pacer,
		Logger:    logger,
	})

	statePath := filepath.Join(cfg.Storage.StateDir(), "wayback_state.json")
	st := state.Load(statePath, wayback.SeenRetention, logger)

	var mirror storage.Provider = storage.NoOpProvider{}
	if cfg.Mirror.Enabled {
		gcs, err := storage.NewGCSProvider(ctx, cfg.Mirror.Bucket, cfg.Mirror.Prefix, logger)
		if err != nil {
			return fmt.Errorf("init mirror: %w", err)
		}
		defer gcs.Close()
		mirror = gcs
	}

	var notifier notify.Publisher = notify.NoOpPublisher{}
	if cfg.Notify.Enabled {
		ps, err := notify.NewPubSubPublisher(ctx, cfg.Notify.ProjectID, cfg.Notify.Topic, logger)
		if err != nil {
			return fmt.Errorf("init notifier: %w", err)
		}
		defer ps.Close()
		notifier = ps
	}

	if cfg.Metrics.Enabled {
		metricsServer := api.NewServer(cfg.Metrics.Addr, logger)
		metricsServer.Start()
		defer metricsServer.Shutdown(ctx)
	}

	orchestrator := backfill.New(backfill.Config{
		URLs:            wayback.URLs,
		IncludeSubpaths: wayback.IncludeSubpaths,
		LimitPerRun:     wayback.LimitPerRun,
		Keywords:        cfg.Importance.HighImpactURLKeywords,
		BaseTags:        wayback.Tags,
		ArtifactsDir:    cfg.Storage.ArtifactsDir(),
		SnapshotsDir:    cfg.Storage.SnapshotsDir("wayback"),
	}, index, fetcher, st, mirror, notifier, logger)

	summary, err := orchestrator.Run(ctx, opts)
	if err != nil {
		logger.Error("backfill run failed", zap.Error(err))
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(),
		"Wayback summary: found=%d downloaded=%d skipped=%d changes=%d state_size=%d\n",
		summary.Found, summary.Downloaded, summary.Skipped, summary.Changes, summary.StateSize)
	return nil
}
