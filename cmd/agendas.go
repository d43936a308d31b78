package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/laruecivic/civic-intel/internal/agendas"
	"github.com/laruecivic/civic-intel/internal/ratelimit"
	"github.com/laruecivic/civic-intel/internal/snapshot"
)

// newAgendasCmd creates the 'agendas' subcommand.
func newAgendasCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agendas",
		Short: "Collect meeting agenda and minutes documents",
		Long: `Discovers agenda and minutes documents linked from the governing
body's web page and archives any not already collected, emitting one
artifact per document.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return runAgendas(cmd, appInstance)
		},
	}
	return cmd
}

func runAgendas(cmd *cobra.Command, app *App) error {
	cfg := app.Config

	if !cfg.Agendas.Enabled {
		app.Logger.Info("agenda collection disabled in config")
		return nil
	}

	for _, dir := range []string{
		cfg.Storage.ArtifactsDir(),
		cfg.Storage.SnapshotsDir("agendas"),
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

	collector := agendas.New(agendas.Config{
		BaseURL:      cfg.Agendas.BaseURL,
		Keywords:     cfg.Agendas.Keywords,
		Tags:         cfg.Agendas.Tags,
		UserAgent:    cfg.HTTP.UserAgent,
		ArtifactsDir: cfg.Storage.ArtifactsDir(),
		SnapshotsDir: cfg.Storage.SnapshotsDir("agendas"),
	}, fetcher, app.Logger)

	summary, err := collector.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("run agenda collection: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(),
		"Agenda summary: discovered=%d downloaded=%d skipped=%d failed=%d\n",
		summary.Discovered, summary.Downloaded, summary.Skipped, summary.Failed)
	return nil
}
