// Package request builds the parameter query for a single action call.
//
// A Request is a single-use builder: create it from a schema, Set values,
// call Query once, hand it to the client, discard it. It is not safe for
// concurrent use.
package request

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dominhhai/mws-sdk/domain/enum"
	"github.com/dominhhai/mws-sdk/domain/param"
	"github.com/dominhhai/mws-sdk/domain/query"
	"github.com/dominhhai/mws-sdk/domain/throttle"
)

// Defaults applied to an empty Descriptor.
const (
	DefaultPath    = "/"
	DefaultVersion = "2009-01-01"
)

// Descriptor is the static metadata of an action.
type Descriptor struct {
	Path    string
	Version string
	// Legacy actions identify the seller as Merchant instead of SellerId.
	Legacy bool
	// Upload actions send the _BODY_ parameter as the raw request body.
	Upload bool
	// Throttle is the request quota of the action. The zero value is
	// unlimited.
	Throttle throttle.Config
}

// WithDefaults fills an empty path or version.
func (d Descriptor) WithDefaults() Descriptor {
	if d.Path == "" {
		d.Path = DefaultPath
	}
	if d.Version == "" {
		d.Version = DefaultVersion
	}
	return d
}

var (
	// ErrUnknownParameter is returned by Set for names outside the schema.
	ErrUnknownParameter = errors.New("unknown parameter")
	// ErrInvalidSchema is returned by New for malformed schemas.
	ErrInvalidSchema = errors.New("invalid parameter schema")
	// ErrInvalidValue is returned by Set when a value does not fit its parameter kind or choices.
	ErrInvalidValue = errors.New("invalid parameter value")
)

// ValidationError lists every required parameter that has no value.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "missing required parameter(s): " + strings.Join(e.Missing, ",")
}

// value is the per-request state of one parameter.
type value struct {
	kind    param.Kind
	scalar  string
	list    []string
	complex *ComplexList
}

// Request holds a schema and the values set against it.
type Request struct {
	action     string
	descriptor Descriptor

	specs   map[string]param.Spec // by wire name
	order   []string              // wire names, declaration order
	aliases map[string]string     // logical name -> wire name
	values  map[string]value      // by wire name
}

// New creates a request for action. Logical and wire names must be unique.
func New(action string, d Descriptor, specs ...param.Spec) (*Request, error) {
	if action == "" {
		return nil, fmt.Errorf("%w: action name is empty", ErrInvalidSchema)
	}

	r := &Request{
		action:     action,
		descriptor: d.WithDefaults(),
		specs:      make(map[string]param.Spec, len(specs)),
		aliases:    make(map[string]string),
		values:     make(map[string]value),
	}

	logical := make(map[string]bool, len(specs))
	for _, s := range specs {
		if s.Name == "" {
			return nil, fmt.Errorf("%w: parameter without a name", ErrInvalidSchema)
		}
		wire := s.WireName()
		if logical[s.Name] {
			return nil, fmt.Errorf("%w: duplicate parameter %q", ErrInvalidSchema, s.Name)
		}
		if _, dup := r.specs[wire]; dup {
			return nil, fmt.Errorf("%w: duplicate wire name %q", ErrInvalidSchema, wire)
		}
		logical[s.Name] = true
		r.specs[wire] = s
		r.order = append(r.order, wire)
		if s.Renamed() {
			r.aliases[s.Name] = wire
		}
	}

	return r, nil
}

// Action returns the action name.
func (r *Request) Action() string { return r.action }

// Descriptor returns the action metadata.
func (r *Request) Descriptor() Descriptor { return r.descriptor }

// Specs returns the schema in declaration order.
func (r *Request) Specs() []param.Spec {
	out := make([]param.Spec, 0, len(r.order))
	for _, w := range r.order {
		out = append(out, r.specs[w])
	}
	return out
}

// resolve maps a logical or wire name to the wire name.
func (r *Request) resolve(name string) (string, bool) {
	if wire, ok := r.aliases[name]; ok {
		return wire, true
	}
	_, ok := r.specs[name]
	return name, ok
}

// Set assigns value to the named parameter. A nil value is ignored.
// Setting a parameter again replaces its previous value.
func (r *Request) Set(name string, v any) error {
	if isNil(v) {
		return nil
	}

	wire, ok := r.resolve(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownParameter, name)
	}
	spec := r.specs[wire]

	var (
		val value
		err error
	)
	switch spec.Kind {
	case param.Scalar:
		val, err = scalarValue(spec, v)
	case param.List:
		val, err = listValue(spec, v)
	case param.Enum:
		val, err = enumValue(spec, v)
	case param.Complex:
		val, err = complexValue(spec, v)
	default:
		err = fmt.Errorf("%w: unsupported kind %v", ErrInvalidSchema, spec.Kind)
	}
	if err != nil {
		return fmt.Errorf("set %s: %w", wire, err)
	}

	r.values[wire] = val
	return nil
}

// SetMultiple calls Set for each entry. It stops at the first error.
// Entries are applied in sorted name order so failures are reproducible.
func (r *Request) SetMultiple(values map[string]any) error {
	names := make([]string, 0, len(values))
	for n := range values {
		names = append(names, n)
	}
	sort.Strings(names)

	for _, n := range names {
		if err := r.Set(n, values[n]); err != nil {
			return err
		}
	}
	return nil
}

// Unset clears a parameter's value.
func (r *Request) Unset(name string) error {
	wire, ok := r.resolve(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownParameter, name)
	}
	delete(r.values, wire)
	return nil
}

// IsSet reports whether the named parameter has a value.
func (r *Request) IsSet(name string) bool {
	wire, ok := r.resolve(name)
	if !ok {
		return false
	}
	_, set := r.values[wire]
	return set
}

// Query validates required parameters and flattens every set value into
// the wire query. Unset optional parameters are omitted.
func (r *Request) Query() (query.Values, error) {
	var missing []string
	for _, wire := range r.order {
		if r.specs[wire].Required {
			if _, ok := r.values[wire]; !ok {
				missing = append(missing, wire)
			}
		}
	}
	if len(missing) > 0 {
		return nil, &ValidationError{Missing: missing}
	}

	q := make(query.Values)
	for _, wire := range r.order {
		v, ok := r.values[wire]
		if !ok {
			continue
		}
		flatten(r.specs[wire], v, q)
	}
	return q, nil
}

func flatten(spec param.Spec, v value, q query.Values) {
	wire := spec.WireName()
	switch v.kind {
	case param.Scalar:
		q[wire] = v.scalar
	case param.List:
		for i, item := range v.list {
			q[wire+"."+strconv.Itoa(i+1)] = item
		}
	case param.Enum:
		if spec.Joined {
			if len(v.list) > 0 {
				q[wire] = strings.Join(v.list, ",")
			}
			return
		}
		for i, item := range v.list {
			q[wire+"."+strconv.Itoa(i+1)] = item
		}
	case param.Complex:
		v.complex.AppendTo(q)
	}
}

func scalarValue(spec param.Spec, v any) (value, error) {
	s, err := param.Coerce(spec.Type, v)
	if err != nil {
		return value{}, err
	}
	return value{kind: param.Scalar, scalar: s}, nil
}

func listValue(spec param.Spec, v any) (value, error) {
	items, err := listItems(spec.Type, v)
	if err != nil {
		return value{}, err
	}
	return value{kind: param.List, list: items}, nil
}

func enumValue(spec param.Spec, v any) (value, error) {
	items, err := listItems(spec.Type, v)
	if err != nil {
		return value{}, err
	}
	for _, item := range items {
		if !spec.Allows(item) {
			return value{}, fmt.Errorf("%w: %q is not one of %v", ErrInvalidValue, item, spec.Choices)
		}
	}
	return value{kind: param.Enum, list: items}, nil
}

func complexValue(spec param.Spec, v any) (value, error) {
	cl, ok := v.(*ComplexList)
	if !ok {
		return value{}, fmt.Errorf("%w: complex parameter needs *ComplexList, got %T", ErrInvalidValue, v)
	}
	return value{kind: param.Complex, complex: cl.Clone()}, nil
}

// listItems normalizes a scalar, slice, enum or map into coerced list items.
// Slices keep their order; maps are taken in sorted key order.
func listItems(t param.ValueType, v any) ([]string, error) {
	switch x := v.(type) {
	case *enum.Enum:
		return coerceAll(t, x.Values())
	case []string:
		return coerceAll(t, x)
	case string, []byte, bool, time.Time:
		s, err := param.Coerce(t, x)
		if err != nil {
			return nil, err
		}
		return []string{s}, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
		return coerceAll(t, items)
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("%w: map keys must be strings, got %s", ErrInvalidValue, rv.Type().Key())
		}
		keys := make([]string, 0, rv.Len())
		for _, k := range rv.MapKeys() {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		items := make([]any, len(keys))
		for i, k := range keys {
			items[i] = rv.MapIndex(reflect.ValueOf(k).Convert(rv.Type().Key())).Interface()
		}
		return coerceAll(t, items)
	default:
		s, err := param.Coerce(t, v)
		if err != nil {
			return nil, err
		}
		return []string{s}, nil
	}
}

func coerceAll[T any](t param.ValueType, in []T) ([]string, error) {
	out := make([]string, len(in))
	for i, item := range in {
		s, err := param.Coerce(t, item)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i+1, err)
		}
		out[i] = s
	}
	return out, nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
