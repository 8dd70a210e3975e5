package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ebogdum/mediasource/config"
)

// newRootCmd builds the command tree. Every invocation gets its own flag
// state.
func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "mediasource",
		Short: "MediaSource - S3 compatible media browser and tree transfer tool",
		Long: `MediaSource browses S3 compatible buckets as folder trees, edits and
uploads media objects and copies or moves whole trees between sources.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configFilePath, "config", "c", "", "Path to configuration file")

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management commands",
	}
	configCmd.AddCommand(newValidateCmd(opts))

	rootCmd.AddCommand(
		newServerCmd(opts),
		configCmd,
		newSourcesCmd(opts),
		newLsCmd(opts),
		newThumbsCmd(opts),
		newCatCmd(opts),
		newMkdirCmd(opts),
		newRmdirCmd(opts),
		newRmCmd(opts),
		newMvCmd(opts),
		newRenameCmd(opts),
		newTransferCmd(opts),
		newAuditCmd(opts),
		newRedirectsCmd(opts),
	)

	return rootCmd
}

type globalOptions struct {
	configFilePath string
}

func main() {
	// If no command specified, default to server
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "server")
	}

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
		os.Exit(1)
	}
}

// newValidateCmd validates the configuration and displays the settings
func newValidateCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		Long:  "Validate the MediaSource configuration and display the loaded settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Validating configuration...")

			cfg, err := config.LoadConfigFromFile(opts.configFilePath)
			if err != nil {
				fmt.Fprintf(out, "%s Configuration validation failed: %v\n", color.RedString("✗"), err)
				return err
			}

			fmt.Fprintf(out, "%s Configuration is valid\n", color.GreenString("✓"))
			fmt.Fprintf(out, "Listen Address: %s\n", cfg.Server.ListenAddr)
			fmt.Fprintf(out, "Audit Store: %s\n", cfg.Audit.Type)
			switch cfg.Audit.Type {
			case "sqlite":
				fmt.Fprintf(out, "Audit SQLite Path: %s\n", cfg.Audit.SQLitePath)
			case "postgres":
				fmt.Fprintf(out, "Audit DSN: %s\n", config.MaskDSN(cfg.Audit.DSN))
			}
			fmt.Fprintf(out, "Lock Manager: %s\n", cfg.DLM.Type)
			if cfg.DLM.Type == "redis" {
				fmt.Fprintf(out, "Redis Address: %s\n", cfg.DLM.RedisAddr)
			}
			fmt.Fprintf(out, "Sources: %d\n", len(cfg.Sources))
			return nil
		},
	}
}

// initializeLogger creates a zap logger based on configuration
func initializeLogger(logCfg config.LogConfig) (*zap.Logger, error) {
	var cfg zap.Config

	if logCfg.Format == "json" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}

	// Set log level
	switch logCfg.Level {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	return cfg.Build()
}
