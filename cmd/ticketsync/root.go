package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-sync/internal/config"
	"github.com/spec-kit/ticket-sync/internal/observability"
)

type contextKey string

const (
	cfgKey    contextKey = "cfg"
	loggerKey contextKey = "logger"
)

var rootCmd = &cobra.Command{
	Use:   "ticketsync",
	Short: "Copy helpdesk tickets into the record store",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if _, ok := cmd.Annotations["skipConfig"]; ok {
			return nil
		}

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if profile, _ := cmd.Flags().GetString("profile"); profile != "" {
			resolved, err := config.ResolveProfile(profile, cfg.Sync.ProfileFile)
			if err != nil {
				return err
			}
			cfg.Sync.ProfileName = profile
			cfg.Profile = resolved
		}
		if silent, _ := cmd.Flags().GetBool("silent"); silent {
			cfg.Sync.Silent = true
		}

		logger, err := observability.NewLogger(cfg.App, cfg.Logger)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		ctx := context.WithValue(cmd.Context(), cfgKey, cfg)
		cmd.SetContext(context.WithValue(ctx, loggerKey, logger))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger := getLogger(cmd); logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().String("profile", "", "Destination schema profile (overrides SYNC_PROFILE)")
	rootCmd.PersistentFlags().Bool("silent", false, "Suppress record store notifications for created records and comments")
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
}

func getCfg(cmd *cobra.Command) *config.Config {
	cfg, _ := cmd.Context().Value(cfgKey).(*config.Config)
	return cfg
}

func getLogger(cmd *cobra.Command) *zap.Logger {
	logger, _ := cmd.Context().Value(loggerKey).(*zap.Logger)
	return logger
}

// Execute runs the root command and returns an exit code.
func Execute() int {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}
