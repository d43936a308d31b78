// Package cmd defines and implements the CLI commands for the larue
// executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/laruecivic/civic-intel/internal/config"
	"github.com/laruecivic/civic-intel/internal/logging"
)

var cfgFile string

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App holds the services every subcommand needs.
type App struct {
	Config config.Config
	Logger *zap.Logger
}

// newApp is the application factory. It is a variable so tests can
// replace it with a factory returning canned config.
var newApp = func(_ context.Context) (*App, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("civic.yaml"); err == nil {
			path = "civic.yaml"
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return &App{Config: cfg, Logger: logger}, nil
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "larue",
		Short: "Civic intelligence collectors and parsers for LaRue County.",
		Long: `larue gathers the public record of LaRue County government bodies.
Collectors archive web captures and meeting documents into the local
artifact store; parsers extract text, apply issue tags, and parse
meeting minutes from what the collectors gathered.`,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context())
			if err != nil {
				return fmt.Errorf("initialize application services: %w", err)
			}
			ctx := context.WithValue(cmd.Context(), appKey, appInstance)
			cmd.SetContext(ctx)
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(*App); ok && appInstance != nil {
				_ = appInstance.Logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./civic.yaml)")

	cmd.AddCommand(newBackfillCmd())
	cmd.AddCommand(newAgendasCmd())
	cmd.AddCommand(newNoticesCmd())
	cmd.AddCommand(newExtractCmd())
	cmd.AddCommand(newTagCmd())
	cmd.AddCommand(newMinutesCmd())
	cmd.AddCommand(newIndexCmd())

	return cmd
}

func resolveApp(ctx context.Context) (*App, error) {
	appInstance, ok := ctx.Value(appKey).(*App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
