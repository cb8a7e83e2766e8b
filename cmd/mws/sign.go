package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/dominhhai/mws-sdk/adapters/clock"
	"github.com/dominhhai/mws-sdk/adapters/mws"
	"github.com/dominhhai/mws-sdk/bootstrap"
	"github.com/dominhhai/mws-sdk/catalog"
	"github.com/spf13/cobra"
)

var (
	signFlags     targetFlags
	signTimestamp string
)

var signCmd = &cobra.Command{
	Use:   "sign SECTION ACTION | sign ACTION",
	Short: "Show the signed request without sending it",
	Long: `Build and sign a call exactly as 'call' would, then print it.

--timestamp freezes the clock so the output is reproducible.

Example:
  mws sign Reports GetReport -p ReportId=123 --timestamp 2024-01-15T12:00:00Z`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSign,
}

func init() {
	rootCmd.AddCommand(signCmd)
	signFlags.register(signCmd)
	signCmd.Flags().StringVar(&signTimestamp, "timestamp", "", "RFC 3339 time to stamp the call with")
}

func runSign(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	cat, err := loadCatalog(cfg.Catalog.Path)
	if err != nil {
		return err
	}
	t, err := signFlags.resolve(cat, args)
	if err != nil {
		return err
	}

	cc := bootstrap.ClientConfig(cfg)
	if signTimestamp != "" {
		at, err := time.Parse(time.RFC3339, signTimestamp)
		if err != nil {
			return fmt.Errorf("--timestamp: %w", err)
		}
		cc.Clock = clock.Frozen{At: at}
	}
	client := mws.New(cc)

	p, err := client.Prepare(t.descriptor, t.action, t.query)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s\n", p.Method, p.URL)
	names := make([]string, 0, len(p.Header))
	for name := range p.Header {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "%s: %s\n", name, p.Header.Get(name))
	}
	fmt.Fprintf(out, "\n%s\n", p.Body)
	fmt.Fprintf(out, "\nTimestamp: %s\n", p.Query[mws.FieldTimestamp])
	fmt.Fprintf(out, "String to sign:\n%s\n", p.StringToSign)
	return nil
}

// loadCatalog returns the catalog at path, or an empty one.
func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Parse(nil)
	}
	return catalog.Load(path)
}
