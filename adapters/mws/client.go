// Package mws is the client runtime shared by every action: it stamps,
// signs and dispatches a query, then decodes the reply.
package mws

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dominhhai/mws-sdk/adapters/clock"
	"github.com/dominhhai/mws-sdk/adapters/idgen"
	"github.com/dominhhai/mws-sdk/adapters/metrics"
	"github.com/dominhhai/mws-sdk/domain/calllog"
	"github.com/dominhhai/mws-sdk/domain/query"
	"github.com/dominhhai/mws-sdk/domain/reply"
	"github.com/dominhhai/mws-sdk/domain/request"
	"github.com/dominhhai/mws-sdk/domain/signature"
	"github.com/dominhhai/mws-sdk/ports"
	"github.com/rs/zerolog"
)

// Defaults applied by New.
const (
	DefaultHost       = "mws.amazonservices.com"
	DefaultScheme     = "https"
	DefaultTimeout    = 30 * time.Second
	DefaultAppName    = "mws-go"
	DefaultAppVersion = "0.1.0"
)

// Config configures a Client. Only the credentials are required, and only
// when a call is made.
type Config struct {
	Host            string
	Scheme          string
	AccessKeyID     string
	SecretAccessKey string
	MerchantID      string
	AuthToken       string

	AppName    string
	AppVersion string

	Timeout time.Duration
	Retry   RetryPolicy

	HTTPClient ports.HTTPDoer
	Clock      ports.Clock
	IDs        ports.IDGenerator
	Logger     *zerolog.Logger
	Metrics    *metrics.Collector
	Recorder   ports.CallRecorder
	// Throttle paces calls to actions that declare a quota.
	Throttle ports.Throttler
}

// Client signs and sends calls. It is safe for concurrent use; only the
// auth token may change after construction.
type Client struct {
	host            string
	scheme          string
	accessKeyID     string
	secretAccessKey string
	merchantID      string
	userAgent       string

	signer   *signature.Signer
	http     ports.HTTPDoer
	clock    ports.Clock
	ids      ports.IDGenerator
	retry    RetryPolicy
	logger   zerolog.Logger
	metrics  *metrics.Collector
	recorder ports.CallRecorder
	throttle ports.Throttler

	mu        sync.RWMutex
	authToken string
}

// New creates a client from cfg, filling defaults.
func New(cfg Config) *Client {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Scheme == "" {
		cfg.Scheme = DefaultScheme
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.AppName == "" {
		cfg.AppName = DefaultAppName
	}
	if cfg.AppVersion == "" {
		cfg.AppVersion = DefaultAppVersion
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	if cfg.IDs == nil {
		cfg.IDs = idgen.UUID{}
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	return &Client{
		host:            cfg.Host,
		scheme:          cfg.Scheme,
		accessKeyID:     cfg.AccessKeyID,
		secretAccessKey: cfg.SecretAccessKey,
		merchantID:      cfg.MerchantID,
		userAgent:       fmt.Sprintf("%s/%s (Language=Go)", cfg.AppName, cfg.AppVersion),
		signer:          signature.NewSigner(cfg.Host, cfg.SecretAccessKey),
		http:            cfg.HTTPClient,
		clock:           cfg.Clock,
		ids:             cfg.IDs,
		retry:           cfg.Retry,
		logger:          logger.With().Str("component", "mws").Logger(),
		metrics:         cfg.Metrics,
		recorder:        cfg.Recorder,
		throttle:        cfg.Throttle,
		authToken:       cfg.AuthToken,
	}
}

// Host returns the service host calls are signed for.
func (c *Client) Host() string { return c.host }

// SetAuthToken replaces the MWSAuthToken sent with later calls. An empty
// token stops sending it.
func (c *Client) SetAuthToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authToken = token
}

// AuthToken returns the current auth token.
func (c *Client) AuthToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authToken
}

// Invoke builds the query of r and calls its action.
func (c *Client) Invoke(ctx context.Context, r *request.Request) (*reply.Reply, error) {
	q, err := r.Query()
	if err != nil {
		return nil, err
	}
	return c.Call(ctx, r.Descriptor(), r.Action(), q)
}

// Result is the outcome of an asynchronous call.
type Result struct {
	Reply *reply.Reply
	Err   error
}

// Go invokes r in its own goroutine. The channel receives exactly one
// Result and is then closed.
func (c *Client) Go(ctx context.Context, r *request.Request) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		defer close(ch)
		rep, err := c.Invoke(ctx, r)
		ch <- Result{Reply: rep, Err: err}
	}()
	return ch
}

// Call sends action with the parameters q. Configuration and validation
// errors return before any I/O. Every attempt gets a fresh Timestamp and
// signature.
//
// Errors: *ConfigurationError, *request.ValidationError, *TransportError,
// *reply.ParseError, *reply.VendorError.
func (c *Client) Call(ctx context.Context, d request.Descriptor, action string, q query.Values) (*reply.Reply, error) {
	d = d.WithDefaults()

	if err := c.precheck(d, q); err != nil {
		return nil, err
	}

	callID, ok := CallIDFrom(ctx)
	if !ok {
		callID = c.ids.New()
	}
	logger := c.logger.With().Str("call_id", callID).Str("action", action).Logger()

	done := c.metrics.CallStarted()
	defer done()

	entry := calllog.Entry{
		ID:        callID,
		Action:    action,
		Path:      d.Path,
		Version:   d.Version,
		Upload:    d.Upload,
		Timestamp: c.clock.Now().UTC(),
	}
	started := time.Now()

	var (
		rep *reply.Reply
		err error
	)
	for attempt := 1; ; attempt++ {
		entry.Attempts = attempt
		logger.Debug().Int("attempt", attempt).Msg("sending call")

		rep, err = c.attempt(ctx, d, action, q, &entry)
		if err == nil || attempt >= c.retry.attempts() || !Retryable(err) {
			break
		}

		logger.Warn().Err(err).Int("attempt", attempt).Msg("call failed, retrying")
		if werr := c.retry.wait(ctx, attempt); werr != nil {
			break
		}
	}

	entry.DurationMs = time.Since(started).Milliseconds()
	c.finish(ctx, logger, &entry, err)
	return rep, err
}

// attempt performs one signed exchange.
func (c *Client) attempt(ctx context.Context, d request.Descriptor, action string, q query.Values, entry *calllog.Entry) (*reply.Reply, error) {
	if err := c.await(ctx, d, action); err != nil {
		return nil, err
	}

	p, err := c.Prepare(d, action, q)
	if err != nil {
		return nil, err
	}
	entry.RequestBytes = p.Size()

	status, body, err := c.send(ctx, p)
	entry.StatusCode = status
	entry.ResponseBytes = int64(len(body))
	if err != nil {
		return nil, err
	}

	rep, err := reply.Decode(body)
	if err != nil {
		return nil, err
	}
	rep.StatusCode = status
	if verr := rep.VendorError(); verr != nil {
		verr.StatusCode = status
		if verr.Throttled() && c.throttle != nil {
			if err := c.throttle.Exhaust(context.WithoutCancel(ctx), throttleKey(d, action), d.Throttle); err != nil {
				c.logger.Error().Err(err).Str("action", action).Msg("failed to mark quota exhausted")
			}
		}
		return nil, verr
	}
	return rep, nil
}

// await blocks until the action's quota admits a call.
func (c *Client) await(ctx context.Context, d request.Descriptor, action string) error {
	if c.throttle == nil || !d.Throttle.Enabled() {
		return nil
	}
	started := time.Now()
	if err := c.throttle.Wait(ctx, throttleKey(d, action), d.Throttle); err != nil {
		return &TransportError{Op: "await quota", URL: c.scheme + "://" + c.host + d.Path, Err: err}
	}
	if waited := time.Since(started); waited > time.Millisecond {
		c.metrics.ObserveThrottleWait(action, waited)
		c.logger.Debug().Str("action", action).Dur("waited", waited).Msg("held by request quota")
	}
	return nil
}

// Quotas are per action and API section.
func throttleKey(d request.Descriptor, action string) string {
	return strings.TrimSuffix(d.Path, "/") + "/" + action
}

// send dispatches p and reads the whole body.
func (c *Client) send(ctx context.Context, p *Prepared) (int, []byte, error) {
	// Errors name the endpoint only; the query string carries credentials.
	endpoint, _, _ := strings.Cut(p.URL, "?")

	req, err := http.NewRequestWithContext(ctx, p.Method, p.URL, bytes.NewReader(p.Body))
	if err != nil {
		return 0, nil, &TransportError{Op: "create request", URL: endpoint, Err: err}
	}
	req.Header = p.Header.Clone()

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, &TransportError{Op: "execute request", URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, body, &TransportError{Op: "read response", URL: endpoint, Err: err}
	}
	return resp.StatusCode, body, nil
}

// finish records metrics, the call log entry and the completion log line.
func (c *Client) finish(ctx context.Context, logger zerolog.Logger, e *calllog.Entry, err error) {
	e.Outcome = outcomeOf(err)
	var verr *reply.VendorError
	if errors.As(err, &verr) {
		e.ErrorCode = verr.Code
	}

	c.metrics.ObserveCall(e.Action, string(e.Outcome), time.Duration(e.DurationMs)*time.Millisecond,
		e.Attempts, e.RequestBytes, e.ResponseBytes)

	if c.recorder != nil {
		// The call already happened; a recording failure must not hide its result.
		if rerr := c.recorder.Record(context.WithoutCancel(ctx), *e); rerr != nil {
			logger.Error().Err(rerr).Msg("failed to record call")
		}
	}

	var ev *zerolog.Event
	if err != nil {
		ev = logger.Error().Err(err).Str("outcome", string(e.Outcome))
		if e.ErrorCode != "" {
			ev = ev.Str("error_code", e.ErrorCode)
		}
	} else {
		ev = logger.Info()
	}
	ev.Int("status", e.StatusCode).
		Int("attempts", e.Attempts).
		Int64("duration_ms", e.DurationMs).
		Msg("call finished")
}

func outcomeOf(err error) calllog.Outcome {
	var (
		verr *reply.VendorError
		perr *reply.ParseError
	)
	switch {
	case err == nil:
		return calllog.OutcomeOK
	case errors.As(err, &verr):
		return calllog.OutcomeVendorError
	case errors.As(err, &perr):
		return calllog.OutcomeParseError
	default:
		return calllog.OutcomeTransportError
	}
}

type callIDKey struct{}

// WithCallID makes calls made with ctx use id instead of a generated one.
func WithCallID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, callIDKey{}, id)
}

// CallIDFrom returns the call id carried by ctx.
func CallIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(callIDKey{}).(string)
	return id, ok && id != ""
}
