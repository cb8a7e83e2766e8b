package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/dominhhai/mws-sdk/bootstrap"
	"github.com/dominhhai/mws-sdk/domain/reply"
	"github.com/spf13/cobra"
)

var (
	callFlags targetFlags
	callQuery string
)

var callCmd = &cobra.Command{
	Use:   "call SECTION ACTION | call ACTION",
	Short: "Sign and send a call",
	Long: `Sign and send a call and print the decoded reply as JSON.

With SECTION ACTION the parameters are checked against the catalog.
With a single ACTION the parameters are sent as literal wire keys.
--query selects part of an XML reply with a JMESPath expression.

Examples:
  mws call Products GetMatchingProduct -p MarketplaceId=ATVPDKIKX0DER -p ASINList=B00005N5PF
  mws call Feeds SubmitFeed -p FeedType=_POST_FLAT_FILE_LISTINGS_DATA_ --body-file listings.txt
  mws call ListOrders --path /Orders/2013-09-01 --version 2013-09-01 -p MarketplaceId.Id.1=ATVPDKIKX0DER -p CreatedAfter=2024-01-01T00:00:00Z
  mws call Products GetMatchingProduct -p MarketplaceId=ATVPDKIKX0DER -p ASINList=B00005N5PF \
    --query 'GetMatchingProductResponse.GetMatchingProductResult[0]."$".status'`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runCall,
}

func init() {
	rootCmd.AddCommand(callCmd)
	callFlags.register(callCmd)
	callCmd.Flags().StringVarP(&callQuery, "query", "q", "", "JMESPath expression applied to an XML reply")
}

func runCall(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	app, err := bootstrap.NewWithOptions(cfg, bootstrap.Options{LogOutput: cmd.ErrOrStderr()})
	if err != nil {
		return err
	}
	defer app.Shutdown()

	t, err := callFlags.resolve(app.Catalog.Get(), args)
	if err != nil {
		return err
	}

	rep, err := app.Client.Call(cmd.Context(), t.descriptor, t.action, t.query)
	if err != nil {
		var verr *reply.VendorError
		if errors.As(err, &verr) {
			_ = writeTree(cmd.OutOrStdout(), verr.Tree)
		}
		return err
	}

	if !rep.IsXML() {
		_, err := io.WriteString(cmd.OutOrStdout(), rep.Raw)
		return err
	}
	out, err := applyQuery(rep.Tree, callQuery)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), out)
}

func writeTree(w io.Writer, tree reply.Tree) error {
	return writeJSON(w, tree)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode reply: %w", err)
	}
	return nil
}
