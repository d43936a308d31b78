package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/laruecivic/civic-intel/internal/minutes"
)

// newMinutesCmd creates the 'minutes' subcommand.
func newMinutesCmd() *cobra.Command {
	var (
		artifactPath string
		snapshotPath string
	)

	cmd := &cobra.Command{
		Use:   "minutes",
		Short: "Parse a meeting snapshot into a Meeting document",
		Long: `Parses one collected meeting snapshot into a Meeting JSON document
with the meeting date inferred from the text and any roll-call votes
recorded as motions.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			parser := minutes.New(
				appInstance.Config.Minutes.BodyID,
				appInstance.Config.Storage.MeetingsDir(),
				appInstance.Logger,
			)

			meeting, err := parser.Parse(artifactPath, snapshotPath)
			if err != nil {
				return fmt.Errorf("parse meeting: %w", err)
			}
			path, err := parser.Write(meeting)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Meeting written: %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&artifactPath, "artifact", "", "path to the artifact JSON file")
	cmd.Flags().StringVar(&snapshotPath, "snapshot", "", "path to the snapshot file")
	_ = cmd.MarkFlagRequired("artifact")
	_ = cmd.MarkFlagRequired("snapshot")

	return cmd
}
