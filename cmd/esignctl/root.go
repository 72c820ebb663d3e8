package main

import (
	"fmt"

	"github.com/SUNET/go-esign/pkg/config"
	"github.com/SUNET/go-esign/pkg/logging"
	"github.com/SUNET/go-esign/pkg/service"
	"github.com/spf13/cobra"
)

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configFile string
	logLevel   string
	testMode   bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:          "esignctl",
		Short:        "Sign XML documents with a GOST certificate",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "Config file path")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Logging level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&opts.testMode, "test-mode", false, "Sign with the test certificate when no provider is available")

	rootCmd.AddCommand(
		newCertsCmd(opts),
		newSignCmd(opts),
		newTestModeCmd(opts),
	)
	return rootCmd
}

// openService loads the configuration and assembles the signing service.
// Logs go to stderr so that stdout carries only command output.
func openService(cmd *cobra.Command, opts *globalOptions) (*service.Service, error) {
	cfg, err := config.LoadConfig(opts.configFile)
	if err != nil {
		return nil, err
	}
	cfg.Logging.Level = opts.logLevel
	cfg.Logging.Format = "text"
	cfg.Logging.Output = "stderr"
	if cmd.Flags().Changed("test-mode") {
		cfg.Signing.TestMode = opts.testMode
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, _, err := service.NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}
	logger.Debug("Configuration loaded",
		logging.F("provider", cfg.Provider.Type),
		logging.F("state_file", cfg.Signing.StateFile))
	return service.New(cfg, logger)
}
