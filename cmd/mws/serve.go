package main

import (
	"github.com/dominhhai/mws-sdk/bootstrap"
	"github.com/spf13/cobra"
)

var watchCatalog bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the JSON relay server",
	Long: `Start an HTTP server that exposes catalog actions as JSON endpoints.

Routes:
  GET  /health
  GET  /actions
  POST /actions/{section}/{action}   body: {"params": {...}}
  GET  /calls?limit=N
  GET  /metrics                      when metrics.enabled is set

Environment variables override the config file:
  MWS_ACCESS_KEY_ID, MWS_SECRET_ACCESS_KEY, MWS_MERCHANT_ID, MWS_AUTH_TOKEN
  MWS_REGION, MWS_SERVER_PORT, MWS_DATABASE_DSN, MWS_LOG_LEVEL

Examples:
  mws serve
  mws serve --config /etc/mws/mws.yaml --watch`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().BoolVar(&watchCatalog, "watch", false, "reload the catalog when its file changes")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if watchCatalog {
		cfg.Catalog.Watch = true
	}

	app, err := bootstrap.NewWithOptions(cfg, bootstrap.Options{LogOutput: cmd.ErrOrStderr()})
	if err != nil {
		return err
	}
	return app.Run(cmd.Context())
}
