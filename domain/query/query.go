// Package query holds the flat key/value form every request takes on the wire.
package query

import (
	"sort"
	"strings"
)

// Values is a flat wire query. Nested parameters are flattened before
// they reach this type.
type Values map[string]string

// Clone returns an independent copy.
func (v Values) Clone() Values {
	out := make(Values, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// SortedKeys returns the keys in byte order.
func (v Values) SortedKeys() []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Encode renders the values as application/x-www-form-urlencoded with keys
// in byte order and RFC 3986 escaping (space becomes %20).
func (v Values) Encode() string {
	if len(v) == 0 {
		return ""
	}
	var b strings.Builder
	for i, k := range v.SortedKeys() {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(Escape(k))
		b.WriteByte('=')
		b.WriteString(Escape(v[k]))
	}
	return b.String()
}

// Escape percent-encodes s per RFC 3986: only A-Z a-z 0-9 - _ . ~ are kept.
func Escape(s string) string {
	n := 0
	for i := 0; i < len(s); i++ {
		if !unreserved(s[i]) {
			n++
		}
	}
	if n == 0 {
		return s
	}

	const hex = "0123456789ABCDEF"
	buf := make([]byte, 0, len(s)+2*n)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if unreserved(c) {
			buf = append(buf, c)
			continue
		}
		buf = append(buf, '%', hex[c>>4], hex[c&15])
	}
	return string(buf)
}

func unreserved(c byte) bool {
	switch {
	case 'A' <= c && c <= 'Z', 'a' <= c && c <= 'z', '0' <= c && c <= '9':
		return true
	case c == '-', c == '_', c == '.', c == '~':
		return true
	}
	return false
}
