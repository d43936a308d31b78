package cmd

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/laruecivic/civic-intel/internal/artifact"
	"github.com/laruecivic/civic-intel/internal/catalog"
)

// newIndexCmd creates the 'index' subcommand.
func newIndexCmd() *cobra.Command {
	var artifactsDir string

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index collected artifacts into the Postgres catalog",
		Long: `Upserts every artifact JSON file into the Postgres catalog table,
creating the schema if needed. Re-running reindexes in place, so the
catalog always reflects the current artifact store.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			dir := artifactsDir
			if dir == "" {
				dir = appInstance.Config.Storage.ArtifactsDir()
			}
			return runIndex(cmd, appInstance, dir)
		},
	}

	cmd.Flags().StringVar(&artifactsDir, "artifacts", "", "artifacts directory (defaults to <out_dir>/artifacts)")

	return cmd
}

func runIndex(cmd *cobra.Command, app *App, artifactsDir string) error {
	ctx := cmd.Context()
	cfg := app.Config

	if cfg.DB.DSN == "" {
		return fmt.Errorf("db.dsn must be set to index artifacts")
	}

	store, err := catalog.New(ctx, catalog.Config{
		DSN:      cfg.DB.DSN,
		Table:    cfg.DB.Table,
		MaxConns: cfg.DB.MaxConns,
	})
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer store.Close()

	if err := store.CreateSchema(ctx); err != nil {
		return err
	}

	paths, err := filepath.Glob(filepath.Join(artifactsDir, "*.json"))
	if err != nil {
		return fmt.Errorf("list artifacts: %w", err)
	}
	sort.Strings(paths)

	indexed := 0
	skipped := 0
	for _, path := range paths {
		a, err := artifact.Load(path)
		if err != nil {
			app.Logger.Warn("skipping unreadable artifact", zap.String("path", path), zap.Error(err))
			skipped++
			continue
		}
		raw, err := json.Marshal(a)
		if err != nil {
			app.Logger.Warn("skipping unmarshalable artifact", zap.String("id", a.ID), zap.Error(err))
			skipped++
			continue
		}
		if err := store.Upsert(ctx, a, raw); err != nil {
			return fmt.Errorf("index artifact %s: %w", a.ID, err)
		}
		indexed++
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Index summary: indexed=%d skipped=%d\n", indexed, skipped)
	return nil
}
