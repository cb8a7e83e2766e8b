package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dominhhai/mws-sdk/domain/param"
	"github.com/dominhhai/mws-sdk/domain/request"
)

// Bind builds a request for the action from loosely typed values, as
// decoded from JSON or command-line flags:
//
//   - a string given to a list or enum parameter is split on commas
//   - a complex parameter takes a list of objects, each becoming one member
//
// Other values are passed to request.Set unchanged.
func (a *Action) Bind(values map[string]any) (*request.Request, error) {
	r, err := a.NewRequest()
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(values))
	for n := range values {
		names = append(names, n)
	}
	sort.Strings(names)

	for _, name := range names {
		v := values[name]
		if spec, ok := a.Spec(name); ok {
			v, err = normalize(spec, v)
			if err != nil {
				return nil, fmt.Errorf("set %s: %w", spec.WireName(), err)
			}
		}
		if err := r.Set(name, v); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func normalize(spec param.Spec, v any) (any, error) {
	switch spec.Kind {
	case param.List, param.Enum:
		if s, ok := v.(string); ok {
			return splitList(s), nil
		}
	case param.Complex:
		return complexList(spec.WireName(), v)
	}
	return v, nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func complexList(prefix string, v any) (any, error) {
	switch x := v.(type) {
	case *request.ComplexList:
		return x, nil
	case []map[string]string:
		cl := request.NewComplexList(prefix)
		for _, m := range x {
			cl.Add(m)
		}
		return cl, nil
	case []any:
		cl := request.NewComplexList(prefix)
		for i, item := range x {
			obj, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: member %d is %T, want object", request.ErrInvalidValue, i+1, item)
			}
			member := make(map[string]string, len(obj))
			for k, fv := range obj {
				s, err := param.Coerce(param.String, fv)
				if err != nil {
					return nil, fmt.Errorf("member %d field %s: %w", i+1, k, err)
				}
				member[k] = s
			}
			cl.Add(member)
		}
		return cl, nil
	default:
		return nil, fmt.Errorf("%w: complex parameter needs a list of objects, got %T", request.ErrInvalidValue, v)
	}
}
