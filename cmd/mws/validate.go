package main

import (
	"fmt"

	"github.com/dominhhai/mws-sdk/catalog"
	"github.com/dominhhai/mws-sdk/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the config file and catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("configuration invalid: %w", err)
		}
		if catalogFile != "" {
			cfg.Catalog.Path = catalogFile
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Configuration valid")
		fmt.Fprintf(out, "  Region: %s (%s)\n", cfg.Endpoint.Region, cfg.Endpoint.Host)
		fmt.Fprintf(out, "  Marketplace: %s\n", cfg.Endpoint.MarketplaceID)
		fmt.Fprintf(out, "  Credentials complete: %v\n", cfg.Credentials.Complete())

		if cfg.Catalog.Path == "" {
			fmt.Fprintln(out, "  Catalog: none")
			return nil
		}
		cat, err := catalog.Load(cfg.Catalog.Path)
		if err != nil {
			return fmt.Errorf("catalog invalid: %w", err)
		}
		fmt.Fprintf(out, "  Catalog: %d sections, %d actions\n", len(cat.Sections()), cat.Len())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
