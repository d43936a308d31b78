package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/laruecivic/civic-intel/internal/notices"
	"github.com/laruecivic/civic-intel/internal/ratelimit"
	"github.com/laruecivic/civic-intel/internal/snapshot"
)

// newNoticesCmd creates the 'notices' subcommand.
func newNoticesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notices",
		Short: "Collect public notice search results",
		Long: `Queries the statewide public notice search for the configured county
query and archives each result not already collected, emitting one
artifact per notice.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return runNotices(cmd, appInstance)
		},
	}
	return cmd
}

func runNotices(cmd *cobra.Command, app *App) error {
	cfg := app.Config

	if !cfg.Notices.Enabled {
		app.Logger.Info("notice collection disabled in config")
		return nil
	}

	for _, dir := range []string{
		cfg.Storage.ArtifactsDir(),
		cfg.Storage.SnapshotsDir("notices"),
	} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create output dir %s: %w", dir, err)
		}
	}

	fetcher := snapshot.NewFetcher(snapshot.Config{
		UserAgent: cfg.HTTP.UserAgent,
		Client:    snapshot.NewHTTPClient(cfg.HTTP.Timeout()),
		Pacer:     ratelimit.New(cfg.Sources.Wayback.RateLimit()),
		Logger:    app.Logger,
	})

	collector := notices.New(notices.Config{
		SearchURL:    cfg.Notices.SearchURL,
		Query:        cfg.Notices.Query,
		Tags:         cfg.Notices.Tags,
		ArtifactsDir: cfg.Storage.ArtifactsDir(),
		SnapshotsDir: cfg.Storage.SnapshotsDir("notices"),
	}, fetcher, app.Logger)

	summary, err := collector.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("run notice collection: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(),
		"Notice summary: found=%d written=%d skipped=%d failed=%d\n",
		summary.Found, summary.Written, summary.Skipped, summary.Failed)
	return nil
}
