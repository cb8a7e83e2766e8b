// Package bootstrap wires all dependencies and starts the application.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dominhhai/mws-sdk/adapters/hasher"
	apihttp "github.com/dominhhai/mws-sdk/adapters/http"
	"github.com/dominhhai/mws-sdk/adapters/idgen"
	"github.com/dominhhai/mws-sdk/adapters/memory"
	"github.com/dominhhai/mws-sdk/adapters/metrics"
	"github.com/dominhhai/mws-sdk/adapters/mws"
	"github.com/dominhhai/mws-sdk/adapters/sqlite"
	"github.com/dominhhai/mws-sdk/catalog"
	"github.com/dominhhai/mws-sdk/config"
	"github.com/dominhhai/mws-sdk/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// memoryHistory bounds the in-memory call log.
const memoryHistory = 10000

// App represents the running application.
type App struct {
	Config     *config.Config
	Logger     zerolog.Logger
	DB         *sqlite.DB
	History    ports.CallLogStore
	Metrics    *metrics.Collector
	Registry   *prometheus.Registry
	Catalog    *catalog.Holder
	Throttle   *mws.Throttle
	Client     *mws.Client
	HTTPServer *http.Server
}

// Options provides optional overrides for application initialization.
type Options struct {
	// LogOutput receives log lines. Defaults to stderr.
	LogOutput io.Writer
	// HTTPClient replaces the client used to reach the service.
	HTTPClient ports.HTTPDoer
	// Clock replaces the wall clock used to stamp calls.
	Clock ports.Clock
}

// New creates and initializes the application from cfg.
func New(cfg *config.Config) (*App, error) {
	return NewWithOptions(cfg, Options{})
}

// NewWithOptions creates and initializes the application with overrides.
func NewWithOptions(cfg *config.Config, opts Options) (*App, error) {
	out := opts.LogOutput
	if out == nil {
		out = os.Stderr
	}
	logger := NewLogger(cfg.Logging, out)
	logger.Info().Str("region", cfg.Endpoint.Region).Str("host", cfg.Endpoint.Host).Msg("initializing mws")

	a := &App{Config: cfg, Logger: logger}

	if cfg.Metrics.Enabled {
		a.Registry = prometheus.NewRegistry()
		a.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		a.Metrics = metrics.NewWithRegistry(a.Registry)
		logger.Info().Msg("prometheus metrics enabled")
	}

	if err := a.initHistory(); err != nil {
		a.Shutdown()
		return nil, fmt.Errorf("init history: %w", err)
	}

	if err := a.initCatalog(); err != nil {
		a.Shutdown()
		return nil, fmt.Errorf("init catalog: %w", err)
	}

	cc := ClientConfig(cfg)
	cc.HTTPClient = opts.HTTPClient
	cc.Clock = opts.Clock
	cc.Logger = &logger
	cc.Metrics = a.Metrics
	cc.Recorder = a.History
	if cfg.Throttle.Enabled {
		a.initThrottle(opts.Clock)
		cc.Throttle = a.Throttle
	}
	a.Client = mws.New(cc)
	if !cfg.Credentials.Complete() {
		logger.Warn().Msg("credentials incomplete, calls will fail until they are set")
	}

	a.initHTTPServer()
	return a, nil
}

// ClientConfig maps the application configuration onto a client
// configuration. Observability hooks are left for the caller.
func ClientConfig(cfg *config.Config) mws.Config {
	return mws.Config{
		Host:            cfg.Endpoint.Host,
		Scheme:          cfg.Endpoint.Scheme,
		AccessKeyID:     cfg.Credentials.AccessKeyID,
		SecretAccessKey: cfg.Credentials.SecretAccessKey,
		MerchantID:      cfg.Credentials.MerchantID,
		AuthToken:       cfg.Credentials.AuthToken,
		AppName:         cfg.App.Name,
		AppVersion:      cfg.App.Version,
		Timeout:         cfg.Endpoint.Timeout,
		Retry: mws.RetryPolicy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			Backoff:     cfg.Retry.Backoff,
			MaxBackoff:  cfg.Retry.MaxBackoff,
		},
		IDs: idgen.UUID{},
	}
}

func (a *App) initHistory() error {
	switch a.Config.Database.Driver {
	case "memory":
		a.History = memory.NewCallLog(memoryHistory)
		a.Logger.Info().Int("capacity", memoryHistory).Msg("in-memory call history")
		return nil
	default:
		db, err := sqlite.Open(a.Config.Database.DSN)
		if err != nil {
			return err
		}
		if err := db.Migrate(context.Background()); err != nil {
			db.Close()
			return fmt.Errorf("migrate: %w", err)
		}
		a.DB = db
		a.History = sqlite.NewCallLogStore(db)
		a.Logger.Info().Str("dsn", a.Config.Database.DSN).Msg("database initialized")
		return nil
	}
}

// staleQuota is how long unused quota state is kept.
const staleQuota = 24 * time.Hour

// initThrottle keeps quota state next to the call history, so CLI runs
// and the relay share it when the history is in SQLite.
func (a *App) initThrottle(c ports.Clock) {
	if a.DB == nil {
		a.Throttle = mws.NewThrottle(memory.NewThrottleStore(), c)
		a.Logger.Info().Str("store", "memory").Msg("request quotas enforced")
		return
	}

	store := sqlite.NewThrottleStore(a.DB)
	if n, err := store.Cleanup(context.Background(), time.Now().Add(-staleQuota)); err != nil {
		a.Logger.Warn().Err(err).Msg("quota cleanup failed")
	} else if n > 0 {
		a.Logger.Debug().Int64("removed", n).Msg("stale quota state removed")
	}
	a.Throttle = mws.NewThrottle(store, c)
	a.Logger.Info().Str("store", "sqlite").Msg("request quotas enforced")
}

func (a *App) initCatalog() error {
	path := a.Config.Catalog.Path
	if path == "" {
		empty, err := catalog.Parse(nil)
		if err != nil {
			return err
		}
		a.Catalog = catalog.NewStaticHolder(empty)
		a.Logger.Warn().Msg("no catalog configured, only raw calls are available")
		return nil
	}

	h, err := catalog.NewHolder(path, a.Logger)
	if err != nil {
		return err
	}
	h.OnReload(func(err error) {
		a.Metrics.CatalogReloaded(err, time.Now())
	})
	a.Catalog = h
	a.Logger.Info().Str("path", path).Int("actions", h.Get().Len()).Msg("catalog loaded")

	if a.Config.Catalog.Watch {
		if err := h.WatchFile(); err != nil {
			a.Logger.Warn().Err(err).Msg("catalog file watch unavailable")
		}
		h.WatchSignals()
	}
	return nil
}

func (a *App) initHTTPServer() {
	rc := apihttp.Config{
		Catalog: a.Catalog,
		Client:  a.Client,
		IDs:     idgen.UUID{},
		History: a.History,
		Logger:  a.Logger,
		Metrics: a.Metrics,
		Timeout: a.Config.Server.WriteTimeout,
	}
	if hash := a.Config.Server.TokenHash; hash != "" {
		rc.Hasher = hasher.NewBcrypt(0)
		rc.TokenHash = []byte(hash)
		a.Logger.Info().Msg("relay requires an access token")
	}
	if a.Registry != nil {
		rc.MetricsHandler = promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{})
		rc.MetricsPath = a.Config.Metrics.Path
	}

	a.HTTPServer = &http.Server{
		Addr:         a.Config.Server.Address(),
		Handler:      apihttp.NewRouter(rc),
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
	}
}

// Run starts the HTTP server and blocks until a signal, ctx is done, or
// the server fails.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.HTTPServer.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return a.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().
			Str("addr", ln.Addr().String()).
			Msg("starting http server")
		if err := a.HTTPServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		a.Shutdown()
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case <-ctx.Done():
		a.Logger.Info().Msg("context done, shutting down")
	}

	return a.Shutdown()
}

// Shutdown gracefully stops the application. It is safe to call on a
// partially initialized App.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}

	if a.Catalog != nil {
		a.Catalog.Stop()
	}

	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("database close error")
		}
		a.DB = nil
	}

	a.Logger.Info().Msg("shutdown complete")
	return nil
}

// Reload reloads the catalog from disk.
func (a *App) Reload() error {
	return a.Catalog.Reload()
}
