package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/laruecivic/civic-intel/internal/extraction"
)

// newExtractCmd creates the 'extract' subcommand.
func newExtractCmd() *cobra.Command {
	var artifactsDir string

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract normalized text from artifact snapshots",
		Long: `Walks the artifact store and fills body_text for every artifact
whose snapshot can be parsed. HTML, PDF and plain text snapshots are
supported; artifacts already carrying text are left alone.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			dir := artifactsDir
			if dir == "" {
				dir = appInstance.Config.Storage.ArtifactsDir()
			}

			extractor := extraction.New(dir, appInstance.Config.Storage.SnapshotsRoot(), appInstance.Logger)
			summary, err := extractor.Run()
			if err != nil {
				return fmt.Errorf("run extraction: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(),
				"Extraction summary: processed=%d extracted=%d skipped=%d failed=%d\n",
				summary.Processed, summary.Extracted, summary.Skipped, summary.Failed)
			return nil
		},
	}

	cmd.Flags().StringVar(&artifactsDir, "artifacts", "", "artifacts directory (defaults to <out_dir>/artifacts)")

	return cmd
}
