package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dominhhai/mws-sdk/adapters/mws"
	"github.com/dominhhai/mws-sdk/catalog"
	"github.com/dominhhai/mws-sdk/domain/param"
	"github.com/dominhhai/mws-sdk/domain/query"
	"github.com/dominhhai/mws-sdk/domain/request"
	"github.com/spf13/cobra"
)

// targetFlags select what a call or sign command sends.
type targetFlags struct {
	params   []string
	bodyFile string

	// Raw mode, used when only an action name is given.
	path    string
	version string
	legacy  bool
	upload  bool
}

func (f *targetFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&f.params, "param", "p", nil, "parameter as Name=Value (repeat for lists)")
	cmd.Flags().StringVar(&f.bodyFile, "body-file", "", "file sent as the upload body")
	cmd.Flags().StringVar(&f.path, "path", "", "service path for a raw call")
	cmd.Flags().StringVar(&f.version, "version", "", "API version for a raw call")
	cmd.Flags().BoolVar(&f.legacy, "legacy", false, "raw call sends Merchant instead of SellerId")
	cmd.Flags().BoolVar(&f.upload, "upload", false, "raw call uses upload mode")
}

// target is a resolved call.
type target struct {
	descriptor request.Descriptor
	action     string
	query      query.Values
}

// resolve builds the call named by args: SECTION ACTION from the catalog,
// or a single ACTION sent raw with the parameters as literal wire keys.
func (f *targetFlags) resolve(cat *catalog.Catalog, args []string) (*target, error) {
	values, err := parseParams(f.params)
	if err != nil {
		return nil, err
	}

	var body *string
	if f.bodyFile != "" {
		data, err := os.ReadFile(f.bodyFile)
		if err != nil {
			return nil, fmt.Errorf("read body file: %w", err)
		}
		s := string(data)
		body = &s
	}

	switch len(args) {
	case 2:
		action, err := cat.Action(args[0], args[1])
		if err != nil {
			return nil, err
		}
		if body != nil {
			name, ok := bodyParam(action)
			if !ok {
				return nil, fmt.Errorf("%s.%s takes no upload body", args[0], args[1])
			}
			values[name] = *body
		}
		r, err := action.Bind(values)
		if err != nil {
			return nil, err
		}
		q, err := r.Query()
		if err != nil {
			return nil, err
		}
		return &target{descriptor: r.Descriptor(), action: r.Action(), query: q}, nil

	case 1:
		q, err := rawQuery(values)
		if err != nil {
			return nil, err
		}
		if body != nil {
			q[mws.FieldBody] = *body
		}
		d := request.Descriptor{Path: f.path, Version: f.version, Legacy: f.legacy, Upload: f.upload}
		return &target{descriptor: d.WithDefaults(), action: args[0], query: q}, nil

	default:
		return nil, fmt.Errorf("want SECTION ACTION or a single raw ACTION, got %d arguments", len(args))
	}
}

func bodyParam(a *catalog.Action) (string, bool) {
	for _, s := range a.Specs {
		if s.WireName() == mws.FieldBody {
			return s.Name, true
		}
	}
	return "", false
}

// parseParams turns repeated Name=Value flags into call values. A name
// given more than once becomes a list; a value starting with [ or { is
// read as JSON.
func parseParams(pairs []string) (map[string]any, error) {
	values := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("parameter %q: want Name=Value", pair)
		}

		var v any = raw
		if strings.HasPrefix(raw, "[") || strings.HasPrefix(raw, "{") {
			if err := json.Unmarshal([]byte(raw), &v); err != nil {
				return nil, fmt.Errorf("parameter %s: %w", name, err)
			}
		}

		switch prev := values[name].(type) {
		case nil:
			values[name] = v
		case []any:
			values[name] = append(prev, v)
		default:
			values[name] = []any{prev, v}
		}
	}
	return values, nil
}

// rawQuery renders values as literal wire keys. Lists become Name.1, Name.2, ...
func rawQuery(values map[string]any) (query.Values, error) {
	q := make(query.Values, len(values))
	for name, v := range values {
		items, isList := v.([]any)
		if !isList {
			s, err := param.Coerce(param.String, v)
			if err != nil {
				return nil, fmt.Errorf("parameter %s: %w", name, err)
			}
			q[name] = s
			continue
		}
		for i, item := range items {
			s, err := param.Coerce(param.String, item)
			if err != nil {
				return nil, fmt.Errorf("parameter %s item %d: %w", name, i+1, err)
			}
			q[name+"."+strconv.Itoa(i+1)] = s
		}
	}
	return q, nil
}
