package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/dominhhai/mws-sdk/config"
	"github.com/spf13/cobra"
)

var regionsCmd = &cobra.Command{
	Use:   "regions",
	Short: "List known regions with their host and marketplace",
	Run: func(cmd *cobra.Command, args []string) {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		defer w.Flush()
		fmt.Fprintln(w, "CODE\tHOST\tMARKETPLACE")
		for _, code := range config.RegionCodes() {
			r := config.Regions[code]
			fmt.Fprintf(w, "%s\t%s\t%s\n", r.Code, r.Host, r.MarketplaceID)
		}
	},
}

func init() {
	rootCmd.AddCommand(regionsCmd)
}
