// Package http exposes catalog actions over a small JSON API.
package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dominhhai/mws-sdk/adapters/metrics"
	"github.com/dominhhai/mws-sdk/adapters/mws"
	"github.com/dominhhai/mws-sdk/catalog"
	"github.com/dominhhai/mws-sdk/domain/calllog"
	"github.com/dominhhai/mws-sdk/domain/param"
	"github.com/dominhhai/mws-sdk/domain/reply"
	"github.com/dominhhai/mws-sdk/domain/request"
	"github.com/dominhhai/mws-sdk/ports"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// maxBody caps a relay request body. Feed uploads travel inside it.
const maxBody = 32 << 20

// ErrorDetail is the body of a failed relay call.
type ErrorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Vendor    string `json:"vendor_code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Status    int    `json:"upstream_status,omitempty"`
}

// CallResponse is returned by POST /actions/{section}/{action}.
type CallResponse struct {
	CallID string       `json:"call_id"`
	Status int          `json:"status,omitempty"`
	Result reply.Tree   `json:"result,omitempty"`
	Raw    *string      `json:"raw,omitempty"`
	Error  *ErrorDetail `json:"error,omitempty"`
}

// CallRequest is the body of POST /actions/{section}/{action}.
type CallRequest struct {
	Params map[string]any `json:"params"`
}

// Relay forwards JSON calls to the service through a client.
type Relay struct {
	catalog *catalog.Holder
	client  ports.Invoker
	ids     ports.IDGenerator
	history ports.CallLogStore
	logger  zerolog.Logger
}

// Config wires a router.
type Config struct {
	Catalog *catalog.Holder
	Client  ports.Invoker
	IDs     ports.IDGenerator
	// History enables GET /calls. Optional.
	History ports.CallLogStore
	Logger  zerolog.Logger
	// Metrics enables request counting. Optional.
	Metrics *metrics.Collector
	// MetricsHandler is mounted at MetricsPath when set.
	MetricsHandler http.Handler
	MetricsPath    string
	// Timeout bounds each relay request; zero means 2 minutes.
	Timeout time.Duration
	// TokenHash, when set, requires a matching access token on every
	// route except /health and the metrics path.
	TokenHash []byte
	Hasher    ports.Hasher
}

// NewRelay creates the action handlers.
func NewRelay(cfg Config) *Relay {
	return &Relay{
		catalog: cfg.Catalog,
		client:  cfg.Client,
		ids:     cfg.IDs,
		history: cfg.History,
		logger:  cfg.Logger.With().Str("component", "relay").Logger(),
	}
}

// NewRouter builds the relay HTTP routes.
func NewRouter(cfg Config) chi.Router {
	relay := NewRelay(cfg)

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewLoggingMiddleware(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	if cfg.Metrics != nil {
		r.Use(NewMetricsMiddleware(cfg.Metrics))
	}

	r.Get("/health", Health)
	if cfg.MetricsHandler != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, cfg.MetricsHandler)
	}

	r.Group(func(r chi.Router) {
		if len(cfg.TokenHash) > 0 && cfg.Hasher != nil {
			r.Use(NewTokenAuth(cfg.Hasher, cfg.TokenHash))
		}
		r.Get("/actions", relay.ListActions)
		r.Post("/actions/{section}/{action}", relay.Call)
		if cfg.History != nil {
			r.Get("/calls", relay.ListCalls)
		}
	})
	return r
}

// Health reports liveness.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type paramView struct {
	Name     string   `json:"name"`
	Wire     string   `json:"wire,omitempty"`
	Kind     string   `json:"kind"`
	Type     string   `json:"type"`
	Required bool     `json:"required,omitempty"`
	Choices  []string `json:"choices,omitempty"`
}

type actionView struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Upload      bool        `json:"upload,omitempty"`
	Throttle    *quotaView  `json:"throttle,omitempty"`
	Params      []paramView `json:"params"`
}

type quotaView struct {
	Quota   int    `json:"quota"`
	Restore string `json:"restore"`
}

type sectionView struct {
	Name    string       `json:"name"`
	Path    string       `json:"path"`
	Version string       `json:"version"`
	Legacy  bool         `json:"legacy,omitempty"`
	Actions []actionView `json:"actions"`
}

// ListActions describes the loaded catalog.
func (h *Relay) ListActions(w http.ResponseWriter, r *http.Request) {
	c := h.catalog.Get()
	out := make([]sectionView, 0, len(c.Sections()))
	for _, s := range c.Sections() {
		sv := sectionView{Name: s.Name, Path: s.Path, Version: s.Version, Legacy: s.Legacy}
		for _, a := range s.Actions() {
			av := actionView{Name: a.Name, Description: a.Description, Upload: a.Descriptor.Upload, Params: []paramView{}}
			if tc := a.Descriptor.Throttle; tc.Enabled() {
				av.Throttle = &quotaView{Quota: tc.Quota, Restore: tc.Restore.String()}
			}
			for _, p := range a.Specs {
				pv := paramView{Name: p.Name, Kind: p.Kind.String(), Type: p.Type.String(), Required: p.Required, Choices: p.Choices}
				if p.Renamed() {
					pv.Wire = p.Wire
				}
				av.Params = append(av.Params, pv)
			}
			sv.Actions = append(sv.Actions, av)
		}
		out = append(out, sv)
	}
	writeJSON(w, http.StatusOK, map[string]any{"sections": out})
}

// Call runs one catalog action with the JSON params of the body.
func (h *Relay) Call(w http.ResponseWriter, r *http.Request) {
	section := chi.URLParam(r, "section")
	name := chi.URLParam(r, "action")
	callID := h.ids.New()
	logger := h.logger.With().Str("call_id", callID).Str("section", section).Str("action", name).Logger()

	action, err := h.catalog.Get().Action(section, name)
	if err != nil {
		h.fail(w, logger, callID, err)
		return
	}

	var body CallRequest
	if r.Body != nil {
		data, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
		if err != nil {
			h.fail(w, logger, callID, &badRequest{"failed to read request body"})
			return
		}
		if len(strings.TrimSpace(string(data))) > 0 {
			if err := json.Unmarshal(data, &body); err != nil {
				h.fail(w, logger, callID, &badRequest{"invalid JSON body: " + err.Error()})
				return
			}
		}
	}

	req, err := action.Bind(body.Params)
	if err != nil {
		h.fail(w, logger, callID, err)
		return
	}

	ctx := mws.WithCallID(r.Context(), callID)
	rep, err := h.client.Invoke(ctx, req)
	if err != nil {
		h.fail(w, logger, callID, err)
		return
	}

	resp := CallResponse{CallID: callID, Status: rep.StatusCode}
	if rep.IsXML() {
		resp.Result = rep.Tree
	} else {
		raw := rep.Raw
		resp.Raw = &raw
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListCalls returns recent call history and its summary.
func (h *Relay) ListCalls(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, CallResponse{Error: &ErrorDetail{Code: "invalid_request", Message: "limit must be a non-negative integer"}})
			return
		}
		limit = n
	}

	entries, err := h.history.List(r.Context(), limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list calls")
		writeJSON(w, http.StatusInternalServerError, CallResponse{Error: &ErrorDetail{Code: "internal", Message: "failed to list calls"}})
		return
	}

	views := make([]entryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, newEntryView(e))
	}
	sum := calllog.Summarize(entries)
	writeJSON(w, http.StatusOK, map[string]any{
		"calls": views,
		"summary": map[string]any{
			"calls":          sum.Calls,
			"by_outcome":     sum.ByOutcome,
			"retries":        sum.Retries,
			"avg_latency_ms": sum.AvgLatencyMs,
			"bytes_out":      sum.BytesOut,
			"bytes_in":       sum.BytesIn,
		},
	})
}

type entryView struct {
	ID            string    `json:"id"`
	Action        string    `json:"action"`
	Path          string    `json:"path"`
	Version       string    `json:"version"`
	Upload        bool      `json:"upload,omitempty"`
	StatusCode    int       `json:"status_code"`
	Outcome       string    `json:"outcome"`
	ErrorCode     string    `json:"error_code,omitempty"`
	Attempts      int       `json:"attempts"`
	DurationMs    int64     `json:"duration_ms"`
	RequestBytes  int64     `json:"request_bytes"`
	ResponseBytes int64     `json:"response_bytes"`
	Timestamp     time.Time `json:"timestamp"`
}

func newEntryView(e calllog.Entry) entryView {
	return entryView{
		ID:            e.ID,
		Action:        e.Action,
		Path:          e.Path,
		Version:       e.Version,
		Upload:        e.Upload,
		StatusCode:    e.StatusCode,
		Outcome:       string(e.Outcome),
		ErrorCode:     e.ErrorCode,
		Attempts:      e.Attempts,
		DurationMs:    e.DurationMs,
		RequestBytes:  e.RequestBytes,
		ResponseBytes: e.ResponseBytes,
		Timestamp:     e.Timestamp,
	}
}

type badRequest struct{ msg string }

func (e *badRequest) Error() string { return e.msg }

// fail maps err to a status and writes it.
func (h *Relay) fail(w http.ResponseWriter, logger zerolog.Logger, callID string, err error) {
	status, detail := classify(err)
	ev := logger.Warn()
	if status >= 500 {
		ev = logger.Error()
	}
	ev.Err(err).Int("status", status).Str("error_code", detail.Code).Msg("relay call failed")
	writeJSON(w, status, CallResponse{CallID: callID, Error: detail})
}

func classify(err error) (int, *ErrorDetail) {
	detail := &ErrorDetail{Message: err.Error()}

	var (
		bad   *badRequest
		verr  *reply.VendorError
		terr  *mws.TransportError
		perr  *reply.ParseError
		valid *request.ValidationError
	)
	switch {
	case errors.As(err, &bad), errors.As(err, &valid),
		errors.Is(err, request.ErrUnknownParameter),
		errors.Is(err, request.ErrInvalidValue),
		errors.Is(err, param.ErrUnsupportedValue):
		detail.Code = "invalid_request"
		return http.StatusBadRequest, detail
	case errors.Is(err, catalog.ErrNotFound):
		detail.Code = "not_found"
		return http.StatusNotFound, detail
	case errors.Is(err, mws.ErrConfiguration):
		detail.Code = "configuration"
		return http.StatusInternalServerError, detail
	case errors.As(err, &verr):
		detail.Code = "vendor_error"
		detail.Message = verr.Message
		detail.Vendor = verr.Code
		detail.RequestID = verr.RequestID
		detail.Status = verr.StatusCode
		return http.StatusBadGateway, detail
	case errors.As(err, &terr):
		detail.Code = "transport_error"
		if terr.Timeout() {
			return http.StatusGatewayTimeout, detail
		}
		return http.StatusBadGateway, detail
	case errors.As(err, &perr):
		detail.Code = "parse_error"
		return http.StatusBadGateway, detail
	default:
		detail.Code = "internal"
		return http.StatusInternalServerError, detail
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// NewMetricsMiddleware counts relay requests by route pattern and status class.
func NewMetricsMiddleware(m *metrics.Collector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			m.RelayRequests.WithLabelValues(route, metrics.StatusClass(ww.Status())).Inc()
		})
	}
}

// NewLoggingMiddleware logs HTTP requests.
func NewLoggingMiddleware(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			// Skip logging for health checks and metrics
			if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
				return
			}

			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}
