package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dominhhai/mws-sdk/adapters/hasher"
	"github.com/dominhhai/mws-sdk/catalog"
	"github.com/dominhhai/mws-sdk/domain/reply"
)

const testCatalog = `
sections:
  - name: Products
    path: /Products/2011-10-01
    version: 2011-10-01
    actions:
      - name: GetMatchingProduct
        params:
          - {name: MarketplaceId, required: true}
          - {name: ASINList, wire: ASINList.ASIN, kind: list, required: true}
  - name: Feeds
    path: /
    version: 2009-01-01
    legacy: true
    actions:
      - name: SubmitFeed
        upload: true
        throttle: {quota: 15, restore: 2m}
        params:
          - {name: FeedContents, wire: _BODY_, required: true}
          - {name: FeedType, required: true}
      - name: GetFeedSubmissionCount
`

const statusXML = `<?xml version="1.0"?>
<GetMatchingProductResponse><GetMatchingProductResult><Status>GREEN</Status></GetMatchingProductResult></GetMatchingProductResponse>`

// writeFiles creates a config and catalog pointing at host.
func writeFiles(t *testing.T, host string) string {
	t.Helper()
	dir := t.TempDir()
	catPath := filepath.Join(dir, "catalog.yaml")
	if err := os.WriteFile(catPath, []byte(testCatalog), 0644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	cfg := `
credentials:
  access_key_id: AK
  secret_access_key: SK
  merchant_id: M1
endpoint:
  host: "` + host + `"
  scheme: http
catalog:
  path: "` + catPath + `"
database:
  dsn: "` + filepath.Join(dir, "mws.db") + `"
logging:
  level: error
`
	cfgPath := filepath.Join(dir, "mws.yaml")
	if err := os.WriteFile(cfgPath, []byte(cfg), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return cfgPath
}

// run executes the root command with args and returns its output.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	// Flag values persist on the package-level commands between runs.
	cfgFile, catalogFile = "mws.yaml", ""
	callFlags, signFlags = targetFlags{}, targetFlags{}
	signTimestamp = ""
	historyLimit = 20
	callQuery = ""
	tokenCost = 0

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestParseParams(t *testing.T) {
	values, err := parseParams([]string{
		"MarketplaceId=ATVPDKIKX0DER",
		"ASINList=A",
		"ASINList=B",
		"Items=[{\"SellerSKU\":\"S1\"}]",
		"Query=a=b",
	})
	if err != nil {
		t.Fatalf("parseParams error: %v", err)
	}
	if values["MarketplaceId"] != "ATVPDKIKX0DER" {
		t.Errorf("MarketplaceId = %v", values["MarketplaceId"])
	}
	if list, ok := values["ASINList"].([]any); !ok || len(list) != 2 || list[1] != "B" {
		t.Errorf("ASINList = %#v", values["ASINList"])
	}
	if items, ok := values["Items"].([]any); !ok || len(items) != 1 {
		t.Errorf("Items = %#v", values["Items"])
	}
	if values["Query"] != "a=b" {
		t.Errorf("Query = %v, want value split at the first '='", values["Query"])
	}

	for _, bad := range []string{"NoEquals", "=value", "Items=[broken"} {
		if _, err := parseParams([]string{bad}); err == nil {
			t.Errorf("parseParams(%q) succeeded, want error", bad)
		}
	}
}

func TestRawQuery(t *testing.T) {
	q, err := rawQuery(map[string]any{"Single": "x", "List": []any{"a", "b"}})
	if err != nil {
		t.Fatalf("rawQuery error: %v", err)
	}
	if q["Single"] != "x" || q["List.1"] != "a" || q["List.2"] != "b" {
		t.Errorf("query = %v", q)
	}
}

func TestResolve(t *testing.T) {
	cat, err := catalog.Parse([]byte(testCatalog))
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}

	t.Run("catalog action", func(t *testing.T) {
		f := targetFlags{params: []string{"MarketplaceId=M", "ASINList=A,B"}}
		got, err := f.resolve(cat, []string{"Products", "GetMatchingProduct"})
		if err != nil {
			t.Fatalf("resolve error: %v", err)
		}
		if got.descriptor.Path != "/Products/2011-10-01" || got.query["ASINList.ASIN.2"] != "B" {
			t.Errorf("target = %+v", got)
		}
	})

	t.Run("body file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "feed.txt")
		os.WriteFile(path, []byte("sku\tqty\n"), 0644)
		f := targetFlags{params: []string{"FeedType=_POST_FLAT_FILE_LISTINGS_DATA_"}, bodyFile: path}
		got, err := f.resolve(cat, []string{"Feeds", "SubmitFeed"})
		if err != nil {
			t.Fatalf("resolve error: %v", err)
		}
		if got.query["_BODY_"] != "sku\tqty\n" || !got.descriptor.Upload {
			t.Errorf("target = %+v", got)
		}
	})

	t.Run("body file on action without body", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "feed.txt")
		os.WriteFile(path, []byte("x"), 0644)
		f := targetFlags{bodyFile: path}
		if _, err := f.resolve(cat, []string{"Feeds", "GetFeedSubmissionCount"}); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("raw", func(t *testing.T) {
		f := targetFlags{params: []string{"MarketplaceId.Id.1=M"}, path: "/Orders/2013-09-01", version: "2013-09-01"}
		got, err := f.resolve(cat, []string{"ListOrders"})
		if err != nil {
			t.Fatalf("resolve error: %v", err)
		}
		if got.action != "ListOrders" || got.descriptor.Version != "2013-09-01" || got.query["MarketplaceId.Id.1"] != "M" {
			t.Errorf("target = %+v", got)
		}
	})

	t.Run("missing required", func(t *testing.T) {
		f := targetFlags{params: []string{"MarketplaceId=M"}}
		if _, err := f.resolve(cat, []string{"Products", "GetMatchingProduct"}); err == nil {
			t.Error("expected validation error")
		}
	})
}

func TestSignCommand(t *testing.T) {
	cfgPath := writeFiles(t, "mws.amazonservices.com")

	out, err := run(t, "sign", "--config", cfgPath,
		"Products", "GetMatchingProduct",
		"-p", "MarketplaceId=ATVPDKIKX0DER", "-p", "ASINList=B00005N5PF",
		"--timestamp", "2024-01-15T12:00:00Z")
	if err != nil {
		t.Fatalf("sign error: %v", err)
	}

	for _, want := range []string{
		"POST http://mws.amazonservices.com/Products/2011-10-01",
		"Timestamp: 2024-01-15T12:00:00.000Z",
		"ASINList.ASIN.1=B00005N5PF",
		"SellerId=M1",
		"Signature=",
		"POST\nmws.amazonservices.com\n/Products/2011-10-01\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	again, err := run(t, "sign", "--config", cfgPath,
		"Products", "GetMatchingProduct",
		"-p", "MarketplaceId=ATVPDKIKX0DER", "-p", "ASINList=B00005N5PF",
		"--timestamp", "2024-01-15T12:00:00Z")
	if err != nil {
		t.Fatalf("sign error: %v", err)
	}
	if again != out {
		t.Error("frozen timestamp did not give reproducible output")
	}
}

func TestCallAndHistoryCommands(t *testing.T) {
	service := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, statusXML)
	}))
	defer service.Close()
	cfgPath := writeFiles(t, strings.TrimPrefix(service.URL, "http://"))

	out, err := run(t, "call", "--config", cfgPath,
		"Products", "GetMatchingProduct", "-p", "MarketplaceId=M", "-p", "ASINList=A")
	if err != nil {
		t.Fatalf("call error: %v", err)
	}
	if !strings.Contains(out, `"GREEN"`) {
		t.Errorf("call output = %s", out)
	}

	out, err = run(t, "history", "--config", cfgPath)
	if err != nil {
		t.Fatalf("history error: %v", err)
	}
	if !strings.Contains(out, "GetMatchingProduct") || !strings.Contains(out, "1 calls") {
		t.Errorf("history output = %s", out)
	}
}

func TestCallQuery(t *testing.T) {
	service := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, statusXML)
	}))
	defer service.Close()
	cfgPath := writeFiles(t, strings.TrimPrefix(service.URL, "http://"))

	out, err := run(t, "call", "--config", cfgPath,
		"Products", "GetMatchingProduct", "-p", "MarketplaceId=M", "-p", "ASINList=A",
		"--query", "GetMatchingProductResponse.GetMatchingProductResult[0].Status[0]")
	if err != nil {
		t.Fatalf("call error: %v", err)
	}
	if strings.TrimSpace(out) != `"GREEN"` {
		t.Errorf("query output = %q, want \"GREEN\"", out)
	}

	_, err = run(t, "call", "--config", cfgPath,
		"Products", "GetMatchingProduct", "-p", "MarketplaceId=M", "-p", "ASINList=A",
		"--query", "[[")
	if err == nil || !strings.Contains(err.Error(), "invalid query") {
		t.Errorf("bad query error = %v", err)
	}
}

func TestApplyQuery(t *testing.T) {
	tree := reply.Tree{"ListOrdersResponse": reply.Tree{
		"ListOrdersResult": []any{reply.Tree{
			"Orders": []any{reply.Tree{"Order": []any{
				reply.Tree{"AmazonOrderId": []any{"111"}},
				reply.Tree{"AmazonOrderId": []any{"222"}},
			}}},
		}},
	}}

	tests := []struct {
		name string
		expr string
		want string
	}{
		{"empty returns tree", "", `{"ListOrdersResponse":{"ListOrdersResult":[{"Orders":[{"Order":[{"AmazonOrderId":["111"]},{"AmazonOrderId":["222"]}]}]}]}}`},
		{"projection", "ListOrdersResponse.ListOrdersResult[0].Orders[0].Order[].AmazonOrderId[0]", `["111","222"]`},
		{"missing", "Nope", `null`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := applyQuery(tree, tt.expr)
			if err != nil {
				t.Fatalf("applyQuery: %v", err)
			}
			raw, _ := json.Marshal(got)
			if string(raw) != tt.want {
				t.Errorf("result = %s, want %s", raw, tt.want)
			}
		})
	}
}

func TestActionsCommand(t *testing.T) {
	cfgPath := writeFiles(t, "mws.amazonservices.com")

	out, err := run(t, "actions", "--config", cfgPath, "Products", "GetMatchingProduct")
	if err != nil {
		t.Fatalf("actions error: %v", err)
	}
	if !strings.Contains(out, "ASINList.ASIN") || !strings.Contains(out, "list") {
		t.Errorf("actions output = %s", out)
	}

	out, err = run(t, "actions", "--config", cfgPath, "Feeds")
	if err != nil {
		t.Fatalf("actions error: %v", err)
	}
	if !strings.Contains(out, "QUOTA") || !strings.Contains(out, "15/2m0s") {
		t.Errorf("section listing = %s", out)
	}

	if _, err := run(t, "actions", "--config", cfgPath, "Nope"); err == nil {
		t.Error("expected error for unknown section")
	}
}

func TestValidateCommand(t *testing.T) {
	cfgPath := writeFiles(t, "mws.amazonservices.com")

	out, err := run(t, "validate", "--config", cfgPath)
	if err != nil {
		t.Fatalf("validate error: %v", err)
	}
	if !strings.Contains(out, "Configuration valid") || !strings.Contains(out, "2 sections, 3 actions") {
		t.Errorf("validate output = %s", out)
	}
}

func TestHashTokenCommand(t *testing.T) {
	out, err := run(t, "hash-token", "--cost", "4", "relay-token")
	if err != nil {
		t.Fatalf("hash-token error: %v", err)
	}
	hash := strings.TrimSpace(out)
	if !hasher.NewBcrypt(4).Compare([]byte(hash), "relay-token") {
		t.Errorf("output %q does not verify", hash)
	}

	if _, err := run(t, "hash-token"); err == nil {
		t.Error("expected error for empty stdin")
	}
}
