package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/laruecivic/civic-intel/internal/tagging"
)

// newTagCmd creates the 'tag' subcommand.
func newTagCmd() *cobra.Command {
	var (
		artifactsDir string
		force        bool
	)

	cmd := &cobra.Command{
		Use:   "tag",
		Short: "Apply keyword issue tags to extracted artifacts",
		Long: `Matches rule phrases against artifact body text and records the
issue tags that clear their hit thresholds, with the matched phrases
kept as evidence. Artifacts tagged in an earlier run are skipped unless
--force is given.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			if !appInstance.Config.Tagging.Enabled {
				appInstance.Logger.Info("tagging disabled in config")
				return nil
			}

			dir := artifactsDir
			if dir == "" {
				dir = appInstance.Config.Storage.ArtifactsDir()
			}

			tagger, err := tagging.New(appInstance.Config.Tagging, tagging.Options{Force: force}, appInstance.Logger)
			if err != nil {
				return fmt.Errorf("init tagger: %w", err)
			}

			summary, err := tagger.Run(dir)
			if err != nil {
				return fmt.Errorf("run tagging: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(),
				"Tagging summary: processed=%d tagged=%d skipped=%d forced=%d\n",
				summary.Processed, summary.Tagged, summary.Skipped, summary.Forced)
			return nil
		},
	}

	cmd.Flags().StringVar(&artifactsDir, "artifacts", "", "artifacts directory (defaults to <out_dir>/artifacts)")
	cmd.Flags().BoolVar(&force, "force", false, "re-tag artifacts tagged in an earlier run")

	return cmd
}
