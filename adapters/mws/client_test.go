package mws_test

import (
	"context"
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dominhhai/mws-sdk/adapters/clock"
	"github.com/dominhhai/mws-sdk/adapters/idgen"
	"github.com/dominhhai/mws-sdk/adapters/memory"
	"github.com/dominhhai/mws-sdk/adapters/metrics"
	"github.com/dominhhai/mws-sdk/adapters/mws"
	"github.com/dominhhai/mws-sdk/domain/calllog"
	"github.com/dominhhai/mws-sdk/domain/param"
	"github.com/dominhhai/mws-sdk/domain/query"
	"github.com/dominhhai/mws-sdk/domain/reply"
	"github.com/dominhhai/mws-sdk/domain/request"
	"github.com/dominhhai/mws-sdk/domain/throttle"
	"github.com/prometheus/client_golang/prometheus"
)

var frozen = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

const okXML = `<?xml version="1.0"?>
<GetServiceStatusResponse xmlns="https://mws.amazonservices.com/Products/2011-10-01">
  <GetServiceStatusResult><Status>GREEN</Status></GetServiceStatusResult>
  <ResponseMetadata><RequestId>req-1</RequestId></ResponseMetadata>
</GetServiceStatusResponse>`

const throttledXML = `<?xml version="1.0"?>
<ErrorResponse xmlns="http://mws.amazonaws.com/doc/2009-01-01/">
  <Error><Type>Sender</Type><Code>RequestThrottled</Code><Message>Request is throttled</Message></Error>
  <RequestID>req-throttled</RequestID>
</ErrorResponse>`

// captured is what the stand-in service saw.
type captured struct {
	Method   string
	Path     string
	Header   http.Header
	Body     string
	RawQuery string
	Form     url.Values // body parameters for form posts
}

type standIn struct {
	server *httptest.Server
	hits   atomic.Int32

	mu   sync.Mutex
	reqs []captured
}

// newStandIn starts a service that answers with respond for each hit.
func newStandIn(t *testing.T, respond func(n int, w http.ResponseWriter)) *standIn {
	t.Helper()
	s := &standIn{}
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(s.hits.Add(1))
		body, _ := io.ReadAll(r.Body)
		c := captured{
			Method:   r.Method,
			Path:     r.URL.Path,
			Header:   r.Header.Clone(),
			Body:     string(body),
			RawQuery: r.URL.RawQuery,
		}
		if form, err := url.ParseQuery(string(body)); err == nil {
			c.Form = form
		}
		s.mu.Lock()
		s.reqs = append(s.reqs, c)
		s.mu.Unlock()
		respond(n, w)
	}))
	t.Cleanup(s.server.Close)
	return s
}

func (s *standIn) host() string {
	return strings.TrimPrefix(s.server.URL, "http://")
}

func (s *standIn) last(t *testing.T) captured {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.reqs) == 0 {
		t.Fatal("service received no request")
	}
	return s.reqs[len(s.reqs)-1]
}

func xmlReply(body string) func(int, http.ResponseWriter) {
	return func(_ int, w http.ResponseWriter) {
		w.Header().Set("Content-Type", "text/xml")
		_, _ = io.WriteString(w, body)
	}
}

func newClient(s *standIn, mutate ...func(*mws.Config)) *mws.Client {
	cfg := mws.Config{
		Host:            s.host(),
		Scheme:          "http",
		AccessKeyID:     "AK",
		SecretAccessKey: "SK",
		MerchantID:      "M1",
		Clock:           clock.Frozen{At: frozen},
		IDs:             idgen.NewSequential("call-"),
	}
	for _, m := range mutate {
		m(&cfg)
	}
	return mws.New(cfg)
}

// expectedSignature recomputes the signature without the package's encoder.
func expectedSignature(host, path, secret string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		if k != "Signature" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	enc := func(s string) string { return strings.ReplaceAll(url.QueryEscape(s), "+", "%20") }
	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = enc(k) + "=" + enc(form.Get(k))
	}
	canonical := "POST\n" + host + "\n" + path + "\n" + strings.Join(pairs, "&")

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(canonical))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func fooRequest(t *testing.T, legacy bool) *request.Request {
	t.Helper()
	req, err := request.New("GetFoo",
		request.Descriptor{Path: "/", Version: "2009-01-01", Legacy: legacy},
		param.Spec{Name: "Foo", Required: true},
	)
	if err != nil {
		t.Fatalf("request.New() error = %v", err)
	}
	if err := req.Set("Foo", "bar"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	return req
}

func TestInvoke_EndToEnd(t *testing.T) {
	tests := []struct {
		name        string
		legacy      bool
		merchantKey string
		absentKey   string
	}{
		{"legacy uses Merchant", true, "Merchant", "SellerId"},
		{"current uses SellerId", false, "SellerId", "Merchant"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStandIn(t, xmlReply(okXML))
			client := newClient(s)

			rep, err := client.Invoke(context.Background(), fooRequest(t, tt.legacy))
			if err != nil {
				t.Fatalf("Invoke() error = %v", err)
			}
			if got := rep.Tree.Text("GetServiceStatusResponse", "GetServiceStatusResult", "Status"); got != "GREEN" {
				t.Errorf("Status = %q, want GREEN", got)
			}
			if rep.StatusCode != http.StatusOK {
				t.Errorf("StatusCode = %d", rep.StatusCode)
			}

			got := s.last(t)
			if got.Method != http.MethodPost || got.Path != "/" {
				t.Errorf("request = %s %s, want POST /", got.Method, got.Path)
			}
			if got.RawQuery != "" {
				t.Errorf("form call sent a query string: %q", got.RawQuery)
			}

			want := map[string]string{
				"Action":           "GetFoo",
				"Version":          "2009-01-01",
				"Timestamp":        "2024-01-15T12:00:00.000Z",
				"AWSAccessKeyId":   "AK",
				tt.merchantKey:     "M1",
				"Foo":              "bar",
				"SignatureMethod":  "HmacSHA256",
				"SignatureVersion": "2",
			}
			for k, v := range want {
				if got.Form.Get(k) != v {
					t.Errorf("%s = %q, want %q", k, got.Form.Get(k), v)
				}
			}
			if _, ok := got.Form[tt.absentKey]; ok {
				t.Errorf("%s should not be sent", tt.absentKey)
			}
			if _, ok := got.Form["MWSAuthToken"]; ok {
				t.Error("MWSAuthToken sent without a token")
			}
			if len(got.Form) != len(want)+1 {
				t.Errorf("form has %d keys, want %d: %v", len(got.Form), len(want)+1, got.Form)
			}

			wantSig := expectedSignature(s.host(), "/", "SK", got.Form)
			if got.Form.Get("Signature") != wantSig {
				t.Errorf("Signature = %q, want %q", got.Form.Get("Signature"), wantSig)
			}
		})
	}
}

func TestCall_Headers(t *testing.T) {
	s := newStandIn(t, xmlReply(okXML))
	client := newClient(s, func(c *mws.Config) {
		c.AppName = "inventory-sync"
		c.AppVersion = "2.1.0"
	})

	if _, err := client.Call(context.Background(), request.Descriptor{}, "GetServiceStatus", nil); err != nil {
		t.Fatalf("Call() error = %v", err)
	}

	got := s.last(t)
	if ua := got.Header.Get("User-Agent"); ua != "inventory-sync/2.1.0 (Language=Go)" {
		t.Errorf("User-Agent = %q", ua)
	}
	if ct := got.Header.Get("Content-Type"); ct != mws.ContentTypeForm {
		t.Errorf("Content-Type = %q", ct)
	}
	if got.Header.Get("Content-MD5") != "" {
		t.Error("Content-MD5 sent for a form call")
	}
}

func TestCall_Upload(t *testing.T) {
	s := newStandIn(t, xmlReply(okXML))
	client := newClient(s)

	feed := "<?xml version=\"1.0\"?><AmazonEnvelope><Message>+ & = ü</Message></AmazonEnvelope>"
	q := query.Values{
		"FeedType":            "_POST_PRODUCT_DATA_",
		"MarketplaceIdList.1": "ATVPDKIKX0DER",
		mws.FieldBody:         feed,
		mws.FieldFormat:       "text/xml",
	}
	d := request.Descriptor{Path: "/", Version: "2009-01-01", Legacy: true, Upload: true}

	if _, err := client.Call(context.Background(), d, "SubmitFeed", q); err != nil {
		t.Fatalf("Call() error = %v", err)
	}

	got := s.last(t)
	if got.Body != feed {
		t.Errorf("body = %q, want feed verbatim", got.Body)
	}

	sum := md5.Sum([]byte(feed))
	if want := base64.StdEncoding.EncodeToString(sum[:]); got.Header.Get("Content-MD5") != want {
		t.Errorf("Content-MD5 = %q, want %q", got.Header.Get("Content-MD5"), want)
	}
	if ct := got.Header.Get("Content-Type"); ct != mws.ContentTypeForm {
		t.Errorf("Content-Type = %q", ct)
	}

	params, err := url.ParseQuery(got.RawQuery)
	if err != nil {
		t.Fatalf("parse query string: %v", err)
	}
	for _, k := range []string{mws.FieldBody, mws.FieldFormat} {
		if _, ok := params[k]; ok {
			t.Errorf("%s leaked into the signed query", k)
		}
	}
	if params.Get("FeedType") != "_POST_PRODUCT_DATA_" || params.Get("Merchant") != "M1" {
		t.Errorf("query string = %v", params)
	}
	if want := expectedSignature(s.host(), "/", "SK", params); params.Get("Signature") != want {
		t.Errorf("Signature = %q, want %q", params.Get("Signature"), want)
	}

	if _, ok := q[mws.FieldBody]; !ok {
		t.Error("Call() modified the caller's query")
	}
}

func TestCall_UploadWithoutBody(t *testing.T) {
	s := newStandIn(t, xmlReply(okXML))
	client := newClient(s)

	_, err := client.Call(context.Background(), request.Descriptor{Upload: true}, "SubmitFeed", query.Values{"FeedType": "x"})

	var verr *request.ValidationError
	if !errors.As(err, &verr) || verr.Missing[0] != mws.FieldBody {
		t.Fatalf("Call() error = %v, want missing %s", err, mws.FieldBody)
	}
	if s.hits.Load() != 0 {
		t.Error("request was sent")
	}
}

func TestCall_ConfigurationError(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*mws.Config)
		missing string
	}{
		{"no access key", func(c *mws.Config) { c.AccessKeyID = "" }, "accessKeyId"},
		{"no secret", func(c *mws.Config) { c.SecretAccessKey = "" }, "secretAccessKey"},
		{"no merchant", func(c *mws.Config) { c.MerchantID = "" }, "merchantId"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStandIn(t, xmlReply(okXML))
			client := newClient(s, tt.mutate)

			_, err := client.Invoke(context.Background(), fooRequest(t, false))
			if !errors.Is(err, mws.ErrConfiguration) {
				t.Fatalf("Invoke() error = %v, want ErrConfiguration", err)
			}
			var cerr *mws.ConfigurationError
			if !errors.As(err, &cerr) || len(cerr.Missing) != 1 || cerr.Missing[0] != tt.missing {
				t.Errorf("Missing = %v, want [%s]", cerr, tt.missing)
			}
			if s.hits.Load() != 0 {
				t.Error("request was sent despite missing credentials")
			}
		})
	}
}

func TestInvoke_ValidationError(t *testing.T) {
	s := newStandIn(t, xmlReply(okXML))
	client := newClient(s)

	req, err := request.New("ListOrders", request.Descriptor{Path: "/Orders/2013-09-01", Version: "2013-09-01"},
		param.Spec{Name: "CreatedAfter", Type: param.Timestamp, Required: true},
		param.Spec{Name: "MarketplaceId", Wire: "MarketplaceId.Id", Kind: param.List, Required: true},
	)
	if err != nil {
		t.Fatalf("request.New() error = %v", err)
	}

	_, err = client.Invoke(context.Background(), req)

	var verr *request.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Invoke() error = %v, want *ValidationError", err)
	}
	if strings.Join(verr.Missing, ",") != "CreatedAfter,MarketplaceId.Id" {
		t.Errorf("Missing = %v", verr.Missing)
	}
	if s.hits.Load() != 0 {
		t.Error("request was sent")
	}
}

func TestCall_RawPassthrough(t *testing.T) {
	report := "sku\tprice\nA-1\t10.00\n"
	s := newStandIn(t, func(_ int, w http.ResponseWriter) {
		_, _ = io.WriteString(w, report)
	})
	client := newClient(s)

	rep, err := client.Call(context.Background(), request.Descriptor{Legacy: true}, "GetReport", query.Values{"ReportId": "42"})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if rep.IsXML() || rep.Raw != report {
		t.Errorf("reply = %+v, want raw report", rep)
	}
}

func TestCall_ParseError(t *testing.T) {
	s := newStandIn(t, xmlReply(`<?xml version="1.0"?><Broken><Open></Broken>`))
	client := newClient(s)

	_, err := client.Call(context.Background(), request.Descriptor{}, "GetServiceStatus", nil)

	var perr *reply.ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("Call() error = %v, want *reply.ParseError", err)
	}
	var terr *mws.TransportError
	if errors.As(err, &terr) {
		t.Error("parse failure reported as transport error")
	}
}

func TestCall_VendorError(t *testing.T) {
	s := newStandIn(t, func(_ int, w http.ResponseWriter) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, throttledXML)
	})
	client := newClient(s)

	rep, err := client.Call(context.Background(), request.Descriptor{}, "ListOrders", nil)
	if rep != nil {
		t.Errorf("reply = %+v, want nil on vendor error", rep)
	}

	var verr *reply.VendorError
	if !errors.As(err, &verr) {
		t.Fatalf("Call() error = %v, want *reply.VendorError", err)
	}
	if verr.Code != "RequestThrottled" || verr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("VendorError = %+v", verr)
	}
	if verr.Tree == nil {
		t.Error("VendorError should carry the decoded document")
	}
	if s.hits.Load() != 1 {
		t.Errorf("hits = %d, want 1 with the default policy", s.hits.Load())
	}
}

func TestCall_TransportError(t *testing.T) {
	s := newStandIn(t, xmlReply(okXML))
	client := newClient(s)
	s.server.Close()

	_, err := client.Call(context.Background(), request.Descriptor{}, "GetServiceStatus", nil)

	var terr *mws.TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("Call() error = %v, want *TransportError", err)
	}
	if errors.Unwrap(terr) == nil {
		t.Error("TransportError should wrap the HTTP error")
	}
	var perr *reply.ParseError
	if errors.As(err, &perr) {
		t.Error("transport failure reported as parse error")
	}
}

func TestCall_Timeout(t *testing.T) {
	release := make(chan struct{})
	s := newStandIn(t, func(_ int, w http.ResponseWriter) {
		<-release
	})
	defer close(release)
	client := newClient(s, func(c *mws.Config) { c.Timeout = 50 * time.Millisecond })

	_, err := client.Call(context.Background(), request.Descriptor{}, "GetServiceStatus", nil)

	var terr *mws.TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("Call() error = %v, want *TransportError", err)
	}
	if !terr.Timeout() {
		t.Errorf("Timeout() = false for %v", terr)
	}
}

func TestCall_RetryRestampsAndResigns(t *testing.T) {
	s := newStandIn(t, func(n int, w http.ResponseWriter) {
		if n == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = io.WriteString(w, throttledXML)
			return
		}
		_, _ = io.WriteString(w, okXML)
	})
	log := memory.NewCallLog(0)
	client := newClient(s, func(c *mws.Config) {
		c.Clock = clock.NewStepper(frozen, time.Second)
		c.Retry = mws.RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond}
		c.Recorder = log
	})

	if _, err := client.Call(context.Background(), request.Descriptor{}, "ListOrders", nil); err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if s.hits.Load() != 2 {
		t.Fatalf("hits = %d, want 2", s.hits.Load())
	}

	s.mu.Lock()
	first, second := s.reqs[0].Form, s.reqs[1].Form
	s.mu.Unlock()
	if first.Get("Timestamp") == second.Get("Timestamp") {
		t.Error("retry reused the Timestamp")
	}
	if first.Get("Signature") == second.Get("Signature") {
		t.Error("retry reused the Signature")
	}

	entries, _ := log.List(context.Background(), 1)
	if len(entries) != 1 || entries[0].Attempts != 2 || entries[0].Outcome != calllog.OutcomeOK {
		t.Errorf("entries = %+v, want one ok entry with 2 attempts", entries)
	}
}

func TestCall_NoRetryForNonRetryableVendorError(t *testing.T) {
	s := newStandIn(t, xmlReply(`<?xml version="1.0"?>
<ErrorResponse><Error><Type>Sender</Type><Code>InvalidParameterValue</Code><Message>bad</Message></Error></ErrorResponse>`))
	client := newClient(s, func(c *mws.Config) {
		c.Retry = mws.RetryPolicy{MaxAttempts: 5}
	})

	_, err := client.Call(context.Background(), request.Descriptor{}, "ListOrders", nil)
	if err == nil {
		t.Fatal("Call() error = nil")
	}
	if s.hits.Load() != 1 {
		t.Errorf("hits = %d, want 1", s.hits.Load())
	}
}

func TestCall_RetryStopsOnContextCancel(t *testing.T) {
	s := newStandIn(t, func(_ int, w http.ResponseWriter) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, throttledXML)
	})
	client := newClient(s, func(c *mws.Config) {
		c.Retry = mws.RetryPolicy{MaxAttempts: 10, Backoff: time.Hour}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Call(ctx, request.Descriptor{}, "ListOrders", nil)
	var verr *reply.VendorError
	if !errors.As(err, &verr) {
		t.Fatalf("Call() error = %v, want last vendor error", err)
	}
	if s.hits.Load() != 1 {
		t.Errorf("hits = %d, want 1", s.hits.Load())
	}
}

func TestSetAuthToken(t *testing.T) {
	s := newStandIn(t, xmlReply(okXML))
	client := newClient(s, func(c *mws.Config) { c.AuthToken = "amzn.mws.initial" })
	ctx := context.Background()

	if _, err := client.Invoke(ctx, fooRequest(t, false)); err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if got := s.last(t).Form.Get("MWSAuthToken"); got != "amzn.mws.initial" {
		t.Errorf("MWSAuthToken = %q", got)
	}

	client.SetAuthToken("amzn.mws.rotated")
	if _, err := client.Invoke(ctx, fooRequest(t, false)); err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	got := s.last(t).Form
	if got.Get("MWSAuthToken") != "amzn.mws.rotated" {
		t.Errorf("MWSAuthToken = %q", got.Get("MWSAuthToken"))
	}
	if want := expectedSignature(s.host(), "/", "SK", got); got.Get("Signature") != want {
		t.Error("auth token not covered by the signature")
	}

	client.SetAuthToken("")
	if _, err := client.Invoke(ctx, fooRequest(t, false)); err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if _, ok := s.last(t).Form["MWSAuthToken"]; ok {
		t.Error("MWSAuthToken sent after clearing it")
	}
}

func TestGo_ManyInFlight(t *testing.T) {
	s := newStandIn(t, xmlReply(okXML))
	client := newClient(s)
	ctx := context.Background()

	const n = 10
	futures := make([]<-chan mws.Result, n)
	for i := range futures {
		futures[i] = client.Go(ctx, fooRequest(t, false))
	}
	for i, f := range futures {
		res, ok := <-f
		if !ok {
			t.Fatalf("future %d closed without a result", i)
		}
		if res.Err != nil || res.Reply == nil {
			t.Errorf("future %d = %+v", i, res)
		}
		if _, ok := <-f; ok {
			t.Errorf("future %d delivered more than one result", i)
		}
	}
	if s.hits.Load() != n {
		t.Errorf("hits = %d, want %d", s.hits.Load(), n)
	}
}

func TestCall_RecordsAndMeasures(t *testing.T) {
	s := newStandIn(t, xmlReply(okXML))
	reg := prometheus.NewRegistry()
	log := memory.NewCallLog(0)
	client := newClient(s, func(c *mws.Config) {
		c.Metrics = metrics.NewWithRegistry(reg)
		c.Recorder = log
	})

	ctx := mws.WithCallID(context.Background(), "relay-7")
	d := request.Descriptor{Path: "/Products/2011-10-01", Version: "2011-10-01"}
	if _, err := client.Call(ctx, d, "GetServiceStatus", nil); err != nil {
		t.Fatalf("Call() error = %v", err)
	}

	entries, _ := log.List(context.Background(), 0)
	if len(entries) != 1 {
		t.Fatalf("recorded %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.ID != "relay-7" || e.Action != "GetServiceStatus" || e.Path != "/Products/2011-10-01" {
		t.Errorf("entry = %+v", e)
	}
	if e.StatusCode != http.StatusOK || e.RequestBytes == 0 || e.ResponseBytes != int64(len(okXML)) {
		t.Errorf("entry sizes = %+v", e)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather error: %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "mws_calls_total" {
			found = true
		}
	}
	if !found {
		t.Error("mws_calls_total not recorded")
	}
}

type failingRecorder struct{}

func (failingRecorder) Record(context.Context, calllog.Entry) error {
	return errors.New("disk full")
}

func TestCall_RecorderFailureDoesNotFailCall(t *testing.T) {
	s := newStandIn(t, xmlReply(okXML))
	client := newClient(s, func(c *mws.Config) { c.Recorder = failingRecorder{} })

	if _, err := client.Call(context.Background(), request.Descriptor{}, "GetServiceStatus", nil); err != nil {
		t.Fatalf("Call() error = %v", err)
	}
}

func TestNew_Defaults(t *testing.T) {
	client := mws.New(mws.Config{})
	if client.Host() != mws.DefaultHost {
		t.Errorf("Host() = %q, want %q", client.Host(), mws.DefaultHost)
	}
	if client.AuthToken() != "" {
		t.Errorf("AuthToken() = %q", client.AuthToken())
	}
}

func TestCall_ThrottleHoldsCallsOverQuota(t *testing.T) {
	s := newStandIn(t, xmlReply(okXML))
	th := mws.NewThrottle(memory.NewThrottleStore(), clock.Frozen{At: frozen})
	client := newClient(s, func(c *mws.Config) { c.Throttle = th })
	d := request.Descriptor{
		Path:     "/Orders/2013-09-01",
		Version:  "2013-09-01",
		Throttle: throttle.Config{Quota: 1, Restore: time.Hour},
	}

	if _, err := client.Call(context.Background(), d, "ListOrders", nil); err != nil {
		t.Fatalf("first call: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := client.Call(ctx, d, "ListOrders", nil)

	var terr *mws.TransportError
	if !errors.As(err, &terr) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want quota wait to time out", err)
	}
	if s.hits.Load() != 1 {
		t.Errorf("service hits = %d, want 1", s.hits.Load())
	}

	// Another action has its own quota.
	if _, err := client.Call(context.Background(), d, "GetOrder", nil); err != nil {
		t.Errorf("independent action: %v", err)
	}
}

func TestCall_RequestThrottledExhaustsQuota(t *testing.T) {
	s := newStandIn(t, func(_ int, w http.ResponseWriter) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, throttledXML)
	})
	store := memory.NewThrottleStore()
	client := newClient(s, func(c *mws.Config) { c.Throttle = mws.NewThrottle(store, clock.Frozen{At: frozen}) })
	d := request.Descriptor{
		Path:     "/Orders/2013-09-01",
		Version:  "2013-09-01",
		Throttle: throttle.Config{Quota: 6, Restore: time.Minute},
	}

	_, err := client.Call(context.Background(), d, "ListOrders", nil)
	var verr *reply.VendorError
	if !errors.As(err, &verr) || !verr.Throttled() {
		t.Fatalf("err = %v, want RequestThrottled", err)
	}

	state, _ := store.Get(context.Background(), "/Orders/2013-09-01/ListOrders")
	if state.Used != 6 || !state.Marked.Equal(frozen) {
		t.Errorf("quota state = %+v, want exhausted at %v", state, frozen)
	}
}
