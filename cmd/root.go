// Package cmd defines and implements the CLI commands for the leadsite executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/hvac-leadsite/internal/config"
	"github.com/JakeFAU/hvac-leadsite/internal/logging"
)

// envKeyType is the key for storing the Env in the context.
type envKeyType string

const envKey envKeyType = "env"

// Env carries what every subcommand needs once flags are parsed.
type Env struct {
	Config *config.Config
	Logger *zap.Logger
}

// newEnv loads configuration and the logger. It's a variable so tests can
// substitute a quiet logger.
var newEnv = func(cfgFile string) (*Env, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewService(cfg.Logging.Development, cfg.App.ServiceName, cfg.App.Environment)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	return &Env{Config: &cfg, Logger: logger}, nil
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "leadsite",
		Short: "Backend for the HVAC lead-generation site.",
		Long: `leadsite serves the sitemap, the service catalog and location directory,
and the lead and conversion tracking endpoints of the HVAC marketing site.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			env, err := newEnv(cfgFile)
			if err != nil {
				return fmt.Errorf("failed to initialize: %w", err)
			}
			zap.ReplaceGlobals(env.Logger)
			cmd.SetContext(context.WithValue(cmd.Context(), envKey, env))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if env, ok := cmd.Context().Value(envKey).(*Env); ok && env != nil {
				_ = env.Logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (defaults and LEADSITE_* environment only when empty)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newSitemapCmd())

	return cmd
}

func resolveEnv(ctx context.Context) (*Env, error) {
	env, ok := ctx.Value(envKey).(*Env)
	if !ok || env == nil {
		return nil, errors.New("command environment not initialized")
	}
	return env, nil
}

// Execute is the main entry point.
func Execute() {
	root := newRootCmd()
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
