package main

import (
	"fmt"
	"os"

	"github.com/dominhhai/mws-sdk/config"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile     string
	catalogFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mws",
	Short: "Signed calls to Amazon Marketplace Web Service",
	Long: `mws signs and sends Amazon MWS calls described by an action catalog.

Quick start:
  mws actions                          # List catalog actions
  mws call Products GetServiceStatus   # Call an action
  mws sign Orders ListOrders -p ...    # Show the signed request without sending
  mws serve                            # Start the JSON relay

Credentials come from mws.yaml (or --config) or MWS_* environment variables.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "mws.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&catalogFile, "catalog", "", "action catalog path (overrides config)")
}

// loadConfig reads the config file when present, otherwise the environment.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if _, statErr := os.Stat(cfgFile); statErr == nil {
		cfg, err = config.Load(cfgFile)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		return nil, err
	}
	if catalogFile != "" {
		cfg.Catalog.Path = catalogFile
	}
	return cfg, nil
}
