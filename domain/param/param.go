// Package param describes the parameters an action accepts.
//
// A Spec is an immutable schema entry. Values are never stored on a Spec;
// they live on the request that captured it, so one schema table can back
// any number of requests.
package param

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// TimestampLayout is the ISO-8601 form the service expects (UTC, millisecond precision).
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Kind is the shape of a parameter on the wire.
type Kind int

const (
	// Scalar renders as a single wire key.
	Scalar Kind = iota
	// List renders as numbered keys: wire.1, wire.2, ...
	List
	// Complex renders itself through a request.ComplexList.
	Complex
	// Enum renders the active choices of an enum as numbered keys,
	// or as one comma-joined key when Spec.Joined is set.
	Enum
)

// String returns the catalog name of the kind.
func (k Kind) String() string {
	switch k {
	case Scalar:
		return "scalar"
	case List:
		return "list"
	case Complex:
		return "complex"
	case Enum:
		return "enum"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// ParseKind converts a catalog name to a Kind. Empty means Scalar.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "scalar":
		return Scalar, nil
	case "list":
		return List, nil
	case "complex":
		return Complex, nil
	case "enum":
		return Enum, nil
	default:
		return Scalar, fmt.Errorf("unknown parameter kind %q", s)
	}
}

// ValueType controls how individual values are coerced to strings.
type ValueType int

const (
	String ValueType = iota
	Timestamp
	Boolean
	Custom
)

// String returns the catalog name of the value type.
func (t ValueType) String() string {
	switch t {
	case String:
		return "String"
	case Timestamp:
		return "Timestamp"
	case Boolean:
		return "Boolean"
	case Custom:
		return "Custom"
	default:
		return "type(" + strconv.Itoa(int(t)) + ")"
	}
}

// ParseValueType converts a catalog name to a ValueType. Empty means String.
func ParseValueType(s string) (ValueType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "string":
		return String, nil
	case "timestamp":
		return Timestamp, nil
	case "boolean", "bool":
		return Boolean, nil
	case "custom":
		return Custom, nil
	default:
		return String, fmt.Errorf("unknown value type %q", s)
	}
}

// Spec is the schema of one parameter.
type Spec struct {
	// Name is the logical name callers use with Set.
	Name string
	// Wire is the name sent to the service. Empty means Name.
	Wire     string
	Kind     Kind
	Type     ValueType
	Required bool
	// Choices restricts the labels an Enum parameter accepts. Empty means any.
	Choices []string
	// Joined renders an Enum parameter as "a,b,c" under the wire name.
	Joined bool
}

// WireName returns the name the parameter is sent under.
func (s Spec) WireName() string {
	if s.Wire != "" {
		return s.Wire
	}
	return s.Name
}

// Renamed reports whether the logical name differs from the wire name.
func (s Spec) Renamed() bool {
	return s.Wire != "" && s.Wire != s.Name
}

// Allows reports whether label is an accepted choice.
func (s Spec) Allows(label string) bool {
	if len(s.Choices) == 0 {
		return true
	}
	for _, c := range s.Choices {
		if c == label {
			return true
		}
	}
	return false
}

// ErrUnsupportedValue is returned when a value cannot be coerced.
var ErrUnsupportedValue = errors.New("unsupported parameter value")

// Coerce renders v as a wire string according to t.
func Coerce(t ValueType, v any) (string, error) {
	switch t {
	case Timestamp:
		return coerceTimestamp(v)
	case Boolean:
		return coerceBoolean(v)
	default:
		return coerceString(v)
	}
}

func coerceTimestamp(v any) (string, error) {
	switch x := v.(type) {
	case time.Time:
		return x.UTC().Format(TimestampLayout), nil
	case *time.Time:
		if x == nil {
			return "", fmt.Errorf("%w: nil time", ErrUnsupportedValue)
		}
		return x.UTC().Format(TimestampLayout), nil
	case string:
		// Already formatted by the caller.
		return x, nil
	default:
		return "", fmt.Errorf("%w: %T is not a timestamp", ErrUnsupportedValue, v)
	}
}

func coerceBoolean(v any) (string, error) {
	switch x := v.(type) {
	case bool:
		return strconv.FormatBool(x), nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		if err != nil {
			return "", fmt.Errorf("%w: %q is not a boolean", ErrUnsupportedValue, x)
		}
		return strconv.FormatBool(b), nil
	default:
		return "", fmt.Errorf("%w: %T is not a boolean", ErrUnsupportedValue, v)
	}
}

func coerceString(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	case bool:
		return strconv.FormatBool(x), nil
	case int:
		return strconv.Itoa(x), nil
	case int32:
		return strconv.FormatInt(int64(x), 10), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case uint:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint64:
		return strconv.FormatUint(x, 10), nil
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case time.Time:
		return x.UTC().Format(TimestampLayout), nil
	case fmt.Stringer:
		return x.String(), nil
	default:
		return coerceKind(v)
	}
}

// coerceKind renders named types by their underlying kind, e.g.
// type OrderStatus string.
func coerceKind(v any) (string, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String(), nil
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Float32:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 32), nil
	case reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64), nil
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return string(rv.Bytes()), nil
		}
	}
	return "", fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
}
